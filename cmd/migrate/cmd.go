package migrate

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/mitchellh/cli"
	"github.com/yusufsyaifudin/katalog/assets/migrations"
	"github.com/yusufsyaifudin/katalog/container"
	"github.com/yusufsyaifudin/katalog/extd"
	"github.com/yusufsyaifudin/katalog/pkg/migration"
	"github.com/yusufsyaifudin/katalog/pkg/multidb"
	"github.com/yusufsyaifudin/ylog"
)

const migrationTable = "migration_records_katalog"

type Cmd struct {
	flags      *flag.FlagSet
	configFile string
	out        io.Writer
}

func NewCmd() func() (cli.Command, error) {
	return func() (cli.Command, error) {
		cmd := &Cmd{
			out: os.Stdout,
		}

		cmd.flags = flag.NewFlagSet("migrate", flag.ContinueOnError)
		cmd.flags.StringVar(&cmd.configFile, "config", container.DefaultConfigFile, "Config file to load")
		cmd.flags.StringVar(&cmd.configFile, "c", container.DefaultConfigFile, "Alias for config file to load")
		return cmd, nil
	}
}

var _ cli.Command = (*Cmd)(nil)

func (c *Cmd) Help() string {
	return `Usage: katalog migrate [-config config.yml] <up|down|steps N|version>

  Migrate the database used by the apps and reports tables.

  up        apply every pending migration
  down      roll back every migration
  steps N   apply N migrations, roll back when N is negative
  version   print the current version`
}

func (c *Cmd) Synopsis() string {
	return "Migrate the database schema"
}

func (c *Cmd) Run(args []string) int {
	if err := c.flags.Parse(args); err != nil {
		log.Printf("error parsing argument: %s", err)
		return cli.RunResultHelp
	}

	args = c.flags.Args()
	if len(args) < 1 {
		return cli.RunResultHelp
	}

	cfg, err := container.LoadConfig(c.configFile)
	if err != nil {
		log.Printf("error load config: %s", err)
		return 1
	}

	ctx := extd.SetupLog(context.Background())

	dbLabel := cfg.Services.App.DBLabel
	dbRes, ok := cfg.DatabaseResources[dbLabel]
	if !ok {
		ylog.Error(ctx, "unknown database label", ylog.KV("label", dbLabel))
		return 1
	}

	conn, err := multidb.NewSqlDbConnMaker(multidb.SqlDbConnMakerConfig{
		Config: multidb.DatabaseResources{
			dbLabel: {
				Driver:   multidb.Driver(dbRes.Driver),
				Postgres: multidb.GoSqlDb(dbRes.Postgres),
			},
		},
	})
	if err != nil {
		ylog.Error(ctx, "connect database failed", ylog.KV("error", err))
		return 1
	}

	defer func() {
		if _err := conn.Close(); _err != nil {
			ylog.Error(ctx, "close database failed", ylog.KV("error", _err))
		}
	}()

	sqlConn, err := conn.GetSqlx(multidb.Postgres, dbLabel)
	if err != nil {
		ylog.Error(ctx, "get database failed", ylog.KV("error", err))
		return 1
	}

	mig, err := migration.NewSQLImmigration(migration.SQLImmigrationConfig{
		DB:             sqlConn.DB,
		MigrationTable: migrationTable,
		Source:         migrations.FS,
		Dir:            ".",
	})
	if err != nil {
		ylog.Error(ctx, "prepare migration failed", ylog.KV("error", err))
		return 1
	}

	defer func() {
		if _err := mig.Close(); _err != nil {
			ylog.Error(ctx, "close migration failed", ylog.KV("error", _err))
		}
	}()

	if err = run(mig, args, c.out); err != nil {
		ylog.Error(ctx, "migration failed", ylog.KV("error", err))
		return 1
	}

	ylog.Info(ctx, "migration done", ylog.KV("command", args[0]))
	return 0
}

func run(mig migration.Immigration, args []string, out io.Writer) error {
	switch args[0] {
	case "up":
		return mig.Up()

	case "down":
		return mig.Down()

	case "steps":
		if len(args) < 2 {
			return fmt.Errorf("steps needs a number")
		}

		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("steps needs a number: %w", err)
		}

		return mig.Steps(n)

	case "version":
		version, dirty, err := mig.Version()
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(out, "version=%d dirty=%t\n", version, dirty)
		return err

	default:
		return fmt.Errorf("unknown migrate command: '%s'", args[0])
	}
}
