// Package main is the entry point for the bz2jira CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielolaszy/bz2jira/cmd"
	"github.com/danielolaszy/bz2jira/internal/logging"
)

// main is the entry point of the application.
// It executes the root command and handles any errors that occur.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	logging.Debug("starting bz2jira", "log_level", os.Getenv("LOG_LEVEL"))

	err := cmd.Execute(ctx)
	stop()
	if err != nil {
		logging.Error("command execution failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
