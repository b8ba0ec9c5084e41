/*
main.go - Application entry point

Loads .env (if present), parses the command line and runs the selected
command. See cli/commands.go for the command tree and configuration.
*/
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/warp/inventory-ledger/cli"
)

func main() {
	// missing .env is fine; real environment variables take precedence
	_ = godotenv.Load()

	var c cli.CLI
	parser, err := cli.New(&c)
	if err != nil {
		panic(err)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	ctx.FatalIfErrorf(ctx.Run())
}
