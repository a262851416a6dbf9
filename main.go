package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/yumyai/regionfinder/internal/app"
)

func main() {
	// Stop the scan on Ctrl-C, outputs written so far are kept
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := app.RunContext(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
