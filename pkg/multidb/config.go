package multidb

import "time"

type Driver string

func (d Driver) String() string {
	return string(d)
}

const (
	Postgres Driver = "postgres"
)

type GoSqlDb struct {
	Debug bool   `yaml:"debug"`
	DSN   string `yaml:"dsn" validate:"required"` // Data Source Name

	MaxOpenConns    int           `yaml:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" validate:"min=0"`
}

type DatabaseResource struct {
	Disable bool   `yaml:"disable"`
	Driver  Driver `yaml:"driver"` // postgres

	// per driver configuration
	Postgres GoSqlDb `yaml:"postgres"`
}

type DatabaseResources map[string]DatabaseResource
