package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/yusufsyaifudin/katalog/pkg/validator"
	"github.com/yusufsyaifudin/ylog"
	"go.uber.org/multierr"
)

type SQLImmigrationConfig struct {
	// DB is owned by the migration afterwards, Close closes it.
	DB             *sql.DB `validate:"required"`
	MigrationTable string  `validate:"required"`
	Source         fs.FS   `validate:"required"`

	// Dir inside Source, "." when the sql files sit at the root.
	Dir string `validate:"required"`
}

type SQLImmigration struct {
	m *migrate.Migrate
}

var _ Immigration = (*SQLImmigration)(nil)

func NewSQLImmigration(config SQLImmigrationConfig) (*SQLImmigration, error) {
	err := validator.Validate(config)
	if err != nil {
		return nil, err
	}

	src, err := iofs.New(config.Source, config.Dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read migration source: %w", err)
	}

	drv, err := postgres.WithInstance(config.DB, &postgres.Config{
		MigrationsTable: config.MigrationTable,
	})
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("cannot prepare postgres migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", drv)
	if err != nil {
		return nil, fmt.Errorf("cannot create migration: %w", err)
	}

	m.Log = &logger{}
	return &SQLImmigration{m: m}, nil
}

// Up is a no-op when already at the latest version.
func (p *SQLImmigration) Up() error {
	return ignoreNoChange(p.m.Up())
}

// Down rolls back every version.
func (p *SQLImmigration) Down() error {
	return ignoreNoChange(p.m.Down())
}

// Steps moves n versions up, or down when n is negative.
func (p *SQLImmigration) Steps(n int) error {
	return ignoreNoChange(p.m.Steps(n))
}

func (p *SQLImmigration) Version() (version uint, dirty bool, err error) {
	version, dirty, err = p.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}

	return
}

func (p *SQLImmigration) Close() error {
	srcErr, dbErr := p.m.Close()
	return multierr.Combine(srcErr, dbErr)
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}

	return err
}

type logger struct{}

func (*logger) Printf(format string, v ...interface{}) {
	ylog.Info(context.Background(), strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (*logger) Verbose() bool {
	return false
}
