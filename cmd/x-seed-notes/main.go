package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcao2/x-seed-notes/internal/cli"
)

func main() {
	// Ctrl-C stops the sync between posts; finished notes stay recorded
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
