package main

import (
	"fmt"
	"os"

	"github.com/mwantia/illustag/cmd/illustag/cli"
	"github.com/mwantia/illustag/cmd/illustag/cli/client"
	"github.com/mwantia/illustag/cmd/illustag/cli/server"
)

var (
	version = "0.0.1-dev"
	commit  = "main"
)

func main() {
	info := cli.VersionInfo{
		Version: version,
		Commit:  commit,
	}
	root := cli.NewRootCommand(info)

	root.AddCommand(cli.NewVersionCommand(info))

	root.AddCommand(server.NewAgentCommand())
	root.AddCommand(server.NewConfigCommand())
	root.AddCommand(server.NewMigrateCommand())

	root.AddCommand(client.NewEstimateCommand())
	root.AddCommand(client.NewImageCommand())
	root.AddCommand(client.NewTagsCommand())
	root.AddCommand(client.NewCurateCommand())
	root.AddCommand(client.NewTokenCommand())

	if err := root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
