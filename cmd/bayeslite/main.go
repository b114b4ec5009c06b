// cmd/bayeslite/main.go
//
// bayeslite - interactive shell for bayesdb databases.
//
// Usage:
//
//	bayeslite [-j N] [-s SEED] [-f FILE...] [--batch] [--debug] [--no-init-file] [bdbpath]
//
// If no database file is specified, opens an in-memory database.
// Use .help for available commands.
package main

import (
	"context"
	"os"

	"bayeslite/pkg/cli"
)

func main() {
	os.Exit(cli.Run(context.Background(), os.Stdin, os.Stdout, os.Stderr, os.Args))
}
