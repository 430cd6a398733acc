package main

import (
	"log"
	"os"

	_ "github.com/lib/pq"
	"github.com/mitchellh/cli"
	"github.com/yusufsyaifudin/katalog/cmd/admin"
	"github.com/yusufsyaifudin/katalog/cmd/api"
	"github.com/yusufsyaifudin/katalog/cmd/gen/genapidoc"
	"github.com/yusufsyaifudin/katalog/cmd/migrate"
)

func main() {
	const appName, appVersion = "katalog", "1.0.0"

	apiCmd := api.NewCmd(appName, appVersion)

	c := cli.NewCLI(appName, appVersion)
	c.Args = os.Args[1:]
	c.Autocomplete = true
	c.Commands = map[string]cli.CommandFactory{
		"":        apiCmd, // default command if no subcommand defined
		"api":     apiCmd,
		"migrate": migrate.NewCmd(),
		"admin":   admin.NewCmd(),
		"apidoc":  genapidoc.NewApiDocCmd(),
	}

	exitStatus, err := c.Run()
	if err != nil {
		log.Println(err)
	}

	os.Exit(exitStatus)
}
