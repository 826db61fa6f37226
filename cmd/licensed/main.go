// Command licensed runs the license validation agent. It serves the status
// API and Prometheus metrics, and revalidates KEYGEN_LICENSE_KEY in the
// background, answering from the verified offline cache while the
// authority is unreachable.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/keygen-sh/example-go-offline-validation-caching/internal/app"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/config"
	"github.com/keygen-sh/example-go-offline-validation-caching/internal/infrastructure"
)

func main() {
	configFile := flag.String("config", "", "optional YAML config file (overrides "+config.ConfigFileEnv+")")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("%s %s\n", config.AppName, config.AppVersion)
		return
	}
	if *configFile != "" {
		if err := os.Setenv(config.ConfigFileEnv, *configFile); err != nil {
			slog.Error("failed to set config file", slog.String("error", err.Error()))
			os.Exit(2)
		}
	}

	application, err := app.NewApplication()
	if err != nil {
		slog.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(2)
	}
	defer func() { _ = infrastructure.CloseLogFile() }()

	if err := application.Run(); err != nil {
		application.Logger.Error("application error", slog.String("error", err.Error()))
		_ = infrastructure.CloseLogFile()
		os.Exit(1)
	}
}
