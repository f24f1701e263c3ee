// Package main implements the gsta static timing analysis CLI.
package main

import (
	"os"

	"github.com/l3aro/go-sta/cmd/gsta/commands"
)

var (
	version   = "dev"
	buildTime = ""
)

func main() {
	commands.Version = version
	commands.RootCmd.Version = version
	if buildTime != "" {
		commands.RootCmd.Version += " (built " + buildTime + ")"
	}
	commands.RootCmd.SetVersionTemplate(`gsta version {{.Version}}
`)

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
