// Command liveledger serves the match store and operates device queues.
package main

import (
	"context"
	"os"

	"github.com/roach88/liveledger/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
