package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/chrissnell/pvestimate/internal/app"
	"github.com/chrissnell/pvestimate/internal/log"
	"github.com/chrissnell/pvestimate/pkg/config"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to configuration source:\n\t\t\t  YAML: config.yaml\n\t\t\t  SQLite: config.db\n\t\t\t  Use 'config-convert' tool to convert YAML→SQLite")
	cfgBackend := flag.String("config-backend", config.BackendYAML, "Configuration backend type: 'yaml' for YAML files, 'sqlite' for SQLite databases")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	logFile := flag.String("log-file", "", "Also write JSON logs to this file, rotated by size (overrides logging.file)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("pvestimate-server %s\n", version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Load configuration
	provider, err := loadConfig(*cfgFile, *cfgBackend)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	defer provider.Close()

	// The configuration may ask for debug output or a log file
	settings, _ := provider.GetSettings()
	path := settings.Logging.File
	if *logFile != "" {
		path = *logFile
	}
	if path != "" || settings.Logging.Debug {
		if err := log.InitWithFile(*debug || settings.Logging.Debug, path); err != nil {
			log.Errorf("Failed to initialize log file: %v", err)
			os.Exit(1)
		}
	}

	// Create and run the application
	application := app.New(provider, log.GetSugaredLogger())
	if err := application.Run(context.Background()); err != nil {
		log.Errorf("Application error: %v", err)
		os.Exit(1)
	}
}

func loadConfig(cfgFile, cfgBackend string) (*config.CachedProvider, error) {
	provider, err := config.Open(cfgFile, cfgBackend)
	if err != nil {
		return nil, err
	}

	cached, err := config.NewCachedProvider(provider)
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("error reading config file. Did you pass the -config flag? Run with -h for help: %w", err)
	}

	return cached, nil
}
