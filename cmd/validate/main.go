// Command validate checks one license key against the authority, falling
// back to the verified offline cache when the authority is unreachable.
//
//	validate [-config file] [-timeout 15s] <license-key>
//
// It prints one line:
//
//	valid=<bool> code=<code> time=<timestamp> is_online=<bool> origin=<origin>
//
// Exit status is 0 for a valid license, 1 for an invalid or unavailable
// answer and 2 for configuration errors or hard failures.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keygen-sh/example-go-offline-validation-caching/internal/app"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/config"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/infrastructure"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/license"
)

const (
	exitValid   = 0
	exitInvalid = 1
	exitFailure = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command and returns the exit status. Logs go to stderr
// so stdout carries only the result line.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("validate", flag.ContinueOnError)
	flags.SetOutput(stderr)
	configFile := flags.String("config", os.Getenv(config.ConfigFileEnv), "optional YAML config file")
	timeout := flags.Duration("timeout", 0, "overall deadline (0 uses the authority timeout plus 5s)")
	flags.Usage = func() {
		fmt.Fprintf(stderr, "usage: validate [flags] <license-key>\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return exitFailure
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return exitFailure
	}
	licenseKey := flags.Arg(0)

	cfg, err := config.LoadFile(*configFile)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return exitFailure
	}
	logger := infrastructure.NewLogger(cfg.Logging, stderr)

	store, closeStore, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.ErrorContext(ctx, "failed to open cache", slog.String("error", err.Error()))
		return exitFailure
	}
	defer func() { _ = closeStore() }()

	components, err := app.NewValidator(cfg, store, logger, nil)
	if err != nil {
		logger.ErrorContext(ctx, "failed to build validator", slog.String("error", err.Error()))
		return exitFailure
	}

	if *timeout <= 0 {
		*timeout = cfg.Timeout + 5*time.Second
	}
	ctx, cancel := context.WithTimeout(infrastructure.ContextWithTraceID(ctx), *timeout)
	defer cancel()

	outcome, err := components.Validator.Validate(ctx, licenseKey)
	printOutcome(stdout, outcome)
	if err != nil {
		logger.ErrorContext(ctx, "license validation failed", slog.String("error", err.Error()))
		return exitFailure
	}
	if !outcome.Valid {
		return exitInvalid
	}
	return exitValid
}

func printOutcome(w io.Writer, o license.Outcome) {
	fmt.Fprintf(w, "valid=%t code=%s time=%s is_online=%t origin=%s\n",
		o.Valid, o.Code, o.Timestamp, o.IsOnline(), o.Origin)
}
