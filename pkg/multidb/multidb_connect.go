package multidb

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/lib/pq"

	"github.com/jmoiron/sqlx"
	sqldblogger "github.com/simukti/sqldb-logger"
	"github.com/yusufsyaifudin/katalog/pkg/validator"
	"go.uber.org/multierr"
)

type SqlDbConnMakerConfig struct {
	Config DatabaseResources `validate:"required,min=1"`
}

type SqlDbConnMaker struct {
	conf     DatabaseResources
	disabled map[string]struct{} // list of disabled databases, using struct for minimal memory footprint
	dbSQL    map[string]*sqlx.DB // db key name => real connection
	dbDriver map[string]Driver   // db key name => driver name
	closer   []*dbCloser
}

var _ MultiDB = (*SqlDbConnMaker)(nil)

// NewSqlDbConnMaker opens every enabled database. sql.Open does not dial, use Ping to check the servers.
func NewSqlDbConnMaker(conf SqlDbConnMakerConfig) (*SqlDbConnMaker, error) {
	err := validator.Validate(conf)
	if err != nil {
		err = fmt.Errorf("sql db connection maker failed: %w", err)
		return nil, err
	}

	instance := &SqlDbConnMaker{
		conf:     conf.Config,
		disabled: make(map[string]struct{}),
		dbSQL:    make(map[string]*sqlx.DB),
		dbDriver: make(map[string]Driver),
		closer:   make([]*dbCloser, 0),
	}

	err = instance.connect()
	if err != nil {
		// close previous opened connection if error happen
		if _err := instance.Close(); _err != nil {
			err = multierr.Append(err, fmt.Errorf("close db sql error: %w", _err))
		}

		return nil, err
	}

	return instance, nil
}

func (i *SqlDbConnMaker) GetSqlx(driver Driver, key string) (*sqlx.DB, error) {
	key = normalizeLabel(key)

	_, exists := i.disabled[key]
	if exists {
		return nil, fmt.Errorf("db with key '%s' is disabled", key)
	}

	dbConnection, ok := i.dbSQL[key]
	if !ok {
		return nil, fmt.Errorf("key '%s' is not exist on db list", key)
	}

	registeredDriver, ok := i.dbDriver[key]
	if ok && driver == registeredDriver {
		return dbConnection, nil
	}

	return nil, fmt.Errorf("db key '%s' not using driver %s", key, driver)
}

// Ping checks every enabled database.
func (i *SqlDbConnMaker) Ping(ctx context.Context) error {
	var err error
	for _, label := range i.labels() {
		if e := i.dbSQL[label].PingContext(ctx); e != nil {
			err = multierr.Append(err, fmt.Errorf("(%s) %w", label, e))
		}
	}

	return err
}

func (i *SqlDbConnMaker) Close() error {
	var err error
	for _, c := range i.closer {
		if c == nil {
			continue
		}

		err = multierr.Append(err, c.Close())
	}

	i.closer = nil
	return err
}

func (i *SqlDbConnMaker) labels() []string {
	labels := make([]string, 0, len(i.dbSQL))
	for label := range i.dbSQL {
		labels = append(labels, label)
	}

	sort.Strings(labels)
	return labels
}

func (i *SqlDbConnMaker) connect() error {
	// Preparing database connection SQL
	for dbLabel, dbConfig := range i.conf {
		dbLabel = normalizeLabel(dbLabel)
		if err := validator.Var(dbLabel, "required,alphanum"); err != nil {
			err = fmt.Errorf("error connecting to database dbLabel '%s': %w", dbLabel, err)
			return err
		}

		if dbConfig.Disable {
			i.disabled[dbLabel] = struct{}{}
			continue
		}

		var sqlxConn *sqlx.DB

		switch dbConfig.Driver {
		case Postgres:
			pgConf := dbConfig.Postgres
			if err := validator.Validate(pgConf); err != nil {
				return fmt.Errorf("invalid postgres config '%s': %w", dbLabel, err)
			}

			db, err := sql.Open(dbConfig.Driver.String(), pgConf.DSN)
			if err != nil {
				err = fmt.Errorf("cannot open db connection '%s': %w", dbLabel, err)
				return err
			}

			if pgConf.Debug {
				drv := db.Driver()
				_ = db.Close()
				db = sqldblogger.OpenDriver(pgConf.DSN, drv, &queryLogger{label: dbLabel}, sqldblogger.WithConnectionIDFieldname(dbLabel))
			}

			if pgConf.MaxOpenConns > 0 {
				db.SetMaxOpenConns(pgConf.MaxOpenConns)
			}

			if pgConf.MaxIdleConns > 0 {
				db.SetMaxIdleConns(pgConf.MaxIdleConns)
			}

			if pgConf.ConnMaxLifetime > 0 {
				db.SetConnMaxLifetime(pgConf.ConnMaxLifetime)
			}

			sqlxConn = sqlx.NewDb(db, dbConfig.Driver.String())

		default:
			return fmt.Errorf("not supported driver '%s' for '%s'", dbConfig.Driver, dbLabel)
		}

		i.dbSQL[dbLabel] = sqlxConn
		i.dbDriver[dbLabel] = dbConfig.Driver
		i.closer = append(i.closer, &dbCloser{label: dbLabel, driver: dbConfig.Driver, db: sqlxConn})
	}

	return nil
}

func normalizeLabel(label string) string {
	return strings.TrimSpace(strings.ToLower(label))
}
