package main

import (
	"context"
	"os"

	"github.com/cardforge/cardforge/cmd"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	cmd.Version = version
	cmd.Commit = commit
	os.Exit(cmd.Execute(context.Background()))
}
