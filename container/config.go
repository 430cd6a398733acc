package container

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yusufsyaifudin/katalog/pkg/errtrack"
	"github.com/yusufsyaifudin/katalog/pkg/mailclient"
	"github.com/yusufsyaifudin/katalog/pkg/validator"
	"gopkg.in/yaml.v3"
)

const DefaultConfigFile = "config.yml"

// ConfigApp identifies the running process in logs, traces and error reports.
type ConfigApp struct {
	Name        string `yaml:"name" validate:"required,alphanum"`
	Version     string `yaml:"version" validate:"required"`
	Environment string `yaml:"environment" validate:"required"`
}

type ConfigRateLimit struct {
	RequestsPerSecond float64       `yaml:"requestsPerSecond" validate:"min=0"`
	Burst             int           `yaml:"burst" validate:"min=0"`
	IdleTTL           time.Duration `yaml:"idleTTL" validate:"min=0"`
}

// ConfigHTTPServer struct for HTTP ConfigTransport configuration
type ConfigHTTPServer struct {
	Port            int             `yaml:"port" validate:"required,min=1,max=65535"`
	AllowedOrigins  []string        `yaml:"allowedOrigins"`
	TrustProxy      bool            `yaml:"trustProxy"`
	RequestTimeout  time.Duration   `yaml:"requestTimeout" validate:"min=0"`
	ShutdownTimeout time.Duration   `yaml:"shutdownTimeout" validate:"min=0"`
	RateLimit       ConfigRateLimit `yaml:"rateLimit"`
}

// ConfigTransport is a configuration for ConfigTransport: HTTP, gRPC or anything
type ConfigTransport struct {
	HTTP ConfigHTTPServer `yaml:"http"`
}

type ConfigGoSqlDb struct {
	Debug bool   `yaml:"debug"`
	DSN   string `yaml:"dsn"` // Data Source Name

	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

type ConfigDatabaseResource struct {
	Disable bool   `yaml:"disable"`
	Driver  string `yaml:"driver"` // postgres

	// per driver configuration
	Postgres ConfigGoSqlDb `yaml:"postgres"`
}

// ConfigDatabaseResources redefine config
type ConfigDatabaseResources map[string]ConfigDatabaseResource

type ConfigRedis struct {
	Mode       string   `yaml:"mode" validate:"required,oneof=single sentinel cluster"`
	Address    []string `yaml:"address" validate:"required,min=1"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	DB         int      `yaml:"db" validate:"min=0"`
	MasterName string   `yaml:"masterName" validate:"required_if=Mode sentinel"`
}

// ConfigCacheBroadcast publishes in-memory cache invalidations through redis,
// so every replica drops its listing when one of them writes.
type ConfigCacheBroadcast struct {
	Enable  bool   `yaml:"enable"`
	Channel string `yaml:"channel"`
}

// ConfigCache selects where the public app listing is cached.
type ConfigCache struct {
	Type      string               `yaml:"type" validate:"required,oneof=disable inmemory redis"`
	Expiry    time.Duration        `yaml:"expiry" validate:"min=0"`
	PrefixKey string               `yaml:"prefixKey" validate:"omitempty,alphanum"`
	MaxBytes  int                  `yaml:"maxBytes" validate:"min=0"`
	Redis     ConfigRedis          `yaml:"redis" validate:"-"`
	Broadcast ConfigCacheBroadcast `yaml:"broadcast"`
}

type ConfigServiceApp struct {
	DBLabel string `yaml:"dbLabel" validate:"required"`
}

type ConfigServiceReport struct {
	DBLabel string `yaml:"dbLabel" validate:"required"`
}

type ConfigServiceAuth struct {
	// PasswordHash is a bcrypt hash, generate it with `htpasswd -bnBC 10 "" <password>`.
	PasswordHash string        `yaml:"passwordHash" validate:"required"`
	Secret       string        `yaml:"secret" validate:"required,min=32"`
	TTL          time.Duration `yaml:"ttl" validate:"required"`
	Issuer       string        `yaml:"issuer" validate:"required"`
}

type ConfigServiceMail struct {
	Enable     bool                       `yaml:"enable"`
	Credential mailclient.EmailCredential `yaml:"credential" validate:"-"`
	From       string                     `yaml:"from"`
	To         []string                   `yaml:"to"`
}

type ConfigServicePush struct {
	Enable    bool   `yaml:"enable"`
	ServerKey string `yaml:"serverKey"`
	Topic     string `yaml:"topic"`
}

// ConfigServiceNotify configures moderator notifications, both channels are optional.
type ConfigServiceNotify struct {
	MachineID   uint16            `yaml:"machineID"`
	MaxBuffer   int               `yaml:"maxBuffer" validate:"min=0"`
	MaxParallel int               `yaml:"maxParallel" validate:"min=0"`
	Timeout     time.Duration     `yaml:"timeout" validate:"min=0"`
	Mail        ConfigServiceMail `yaml:"mail"`
	Push        ConfigServicePush `yaml:"push"`
}

type ConfigServices struct {
	App    ConfigServiceApp    `yaml:"app"`
	Report ConfigServiceReport `yaml:"report"`
	Auth   ConfigServiceAuth   `yaml:"auth"`
	Notify ConfigServiceNotify `yaml:"notify"`
}

type ConfigTracing struct {
	Disable           bool   `yaml:"disable"`
	CollectorEndpoint string `yaml:"collectorEndpoint" validate:"omitempty,url"`
}

// Config contains application config
type Config struct {
	App               ConfigApp               `yaml:"app"`
	Transport         ConfigTransport         `yaml:"transport"`
	DatabaseResources ConfigDatabaseResources `yaml:"databaseResources"`
	Cache             ConfigCache             `yaml:"cache"`
	Services          ConfigServices          `yaml:"services"`
	Tracing           ConfigTracing           `yaml:"tracing"`
	ErrTrack          errtrack.Config         `yaml:"errTrack"`
}

// LoadConfig need config file name and pointer to struct to hold the configuration value.
// It only supports YAML file content. An empty file name reads DefaultConfigFile.
// Environment variables PORT, FRONTEND_URL, DATABASE_URL, ADMIN_PASSWORD_HASH and ADMIN_TOKEN_SECRET
// take precedence over the file.
func LoadConfig(configFileName string) (cfg Config, err error) {
	if configFileName == "" {
		configFileName = DefaultConfigFile
	}

	fileContent, err := os.ReadFile(configFileName)
	if err != nil {
		err = fmt.Errorf("error read file config %s: %w", configFileName, err)
		return
	}

	cfg, err = ParseConfig(fileContent, os.Getenv)
	if err != nil {
		err = fmt.Errorf("error parse config %s: %w", configFileName, err)
		return
	}

	return
}

// ParseConfig decodes the YAML content, applies defaults and the env overrides read through getenv.
func ParseConfig(content []byte, getenv func(string) string) (cfg Config, err error) {
	cfg = defaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(false)
	err = dec.Decode(&cfg)
	if err != nil {
		err = fmt.Errorf("yaml decode: %w", err)
		return
	}

	if getenv != nil {
		err = applyEnv(&cfg, getenv)
		if err != nil {
			return
		}
	}

	err = validator.Validate(cfg)
	if err != nil {
		return
	}

	if !cfg.Tracing.Disable && cfg.Tracing.CollectorEndpoint == "" {
		err = fmt.Errorf("tracing: collector endpoint is required when tracing is enabled")
		return
	}

	if cfg.Cache.Broadcast.Enable && cfg.Cache.Type != "inmemory" {
		err = fmt.Errorf("cache broadcast: only an inmemory cache needs it, got type %s", cfg.Cache.Type)
		return
	}

	if cfg.Cache.Type == "redis" || cfg.Cache.Broadcast.Enable {
		err = validator.Validate(cfg.Cache.Redis)
		if err != nil {
			err = fmt.Errorf("cache redis: %w", err)
			return
		}
	}

	return
}

func defaultConfig() Config {
	return Config{
		App: ConfigApp{
			Name:        "katalog",
			Version:     "1.0.0",
			Environment: "development",
		},
		Transport: ConfigTransport{
			HTTP: ConfigHTTPServer{
				Port:            3001,
				RequestTimeout:  30 * time.Second,
				ShutdownTimeout: 10 * time.Second,
			},
		},
		Cache: ConfigCache{
			Type: "disable",
		},
		Services: ConfigServices{
			Auth: ConfigServiceAuth{
				TTL:    12 * time.Hour,
				Issuer: "katalog",
			},
		},
		Tracing: ConfigTracing{
			Disable: true,
		},
	}
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("env PORT is not a number: %w", err)
		}

		cfg.Transport.HTTP.Port = port
	}

	if v := strings.TrimSpace(getenv("FRONTEND_URL")); v != "" {
		cfg.Transport.HTTP.AllowedOrigins = []string{v}
	}

	// DATABASE_URL replaces the dsn of the database used by the app service
	if v := strings.TrimSpace(getenv("DATABASE_URL")); v != "" {
		label := cfg.Services.App.DBLabel
		if label == "" {
			label = "default"
			cfg.Services.App.DBLabel = label
		}

		if cfg.Services.Report.DBLabel == "" {
			cfg.Services.Report.DBLabel = label
		}

		if cfg.DatabaseResources == nil {
			cfg.DatabaseResources = ConfigDatabaseResources{}
		}

		res := cfg.DatabaseResources[label]
		if res.Driver == "" {
			res.Driver = "postgres"
		}

		res.Postgres.DSN = v
		cfg.DatabaseResources[label] = res
	}

	if v := strings.TrimSpace(getenv("ADMIN_PASSWORD_HASH")); v != "" {
		cfg.Services.Auth.PasswordHash = v
	}

	if v := strings.TrimSpace(getenv("ADMIN_TOKEN_SECRET")); v != "" {
		cfg.Services.Auth.Secret = v
	}

	return nil
}
