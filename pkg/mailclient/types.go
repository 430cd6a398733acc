package mailclient

type EmailCredential struct {
	Protocol     string `json:"protocol" yaml:"protocol" validate:"required,oneof=smtp"` // smtp, ...
	ServerHost   string `json:"server_host" yaml:"server_host" validate:"required"`
	ServerPort   int    `json:"server_port" yaml:"server_port" validate:"required"`
	AuthIdentity string `json:"auth_identity" yaml:"auth_identity" validate:"-"` //  Authorization identity may be left blank to indicate that it is the same as the username.
	Username     string `json:"username" yaml:"username" validate:"required"`
	Password     string `json:"password" yaml:"password" validate:"required"`

	// Insecure skips STARTTLS, only for local relays such as mailhog.
	Insecure bool `json:"insecure" yaml:"insecure"`
}
