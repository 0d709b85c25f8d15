package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrissnell/pvestimate/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file (required)")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite database file (required)")
		force      = flag.Bool("force", false, "Overwrite an existing target file")
		dryRun     = flag.Bool("dry-run", false, "Show what would be done without executing")
		export     = flag.Bool("export", false, "Convert SQLite to YAML instead of YAML to SQLite")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db> [-export]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	src, dst := *yamlFile, *sqliteFile
	if *export {
		src, dst = dst, src
	}
	if _, err := os.Stat(src); err != nil {
		fmt.Fprintf(os.Stderr, "Error: source does not exist: %s\n", src)
		os.Exit(1)
	}
	if _, err := os.Stat(dst); err == nil && !*force {
		fmt.Fprintf(os.Stderr, "Error: %s already exists; use -force to overwrite\n", dst)
		os.Exit(1)
	}

	fmt.Printf("Converting %s -> %s\n", src, dst)
	cfg, err := load(src, *export)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  Loaded %d sites\n", len(cfg.Sites))

	if *dryRun {
		printConfigSummary(cfg)
		fmt.Println("DRY RUN complete - nothing written")
		return
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}
	if *export {
		err = writeYAML(cfg, dst)
	} else {
		err = writeSQLite(cfg, dst, *force)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Conversion completed successfully!")
	if !*export {
		fmt.Printf("You can now use the SQLite backend with: -config-backend sqlite -config %s\n", dst)
	}
}

// load reads and validates the source configuration.
func load(path string, fromSQLite bool) (*config.ConfigData, error) {
	backend := config.BackendYAML
	if fromSQLite {
		backend = config.BackendSQLite
	}
	provider, err := config.Open(path, backend)
	if err != nil {
		return nil, err
	}
	defer provider.Close()

	cfg, err := provider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s is invalid: %w", path, err)
	}
	return cfg, nil
}

func writeYAML(cfg *config.ConfigData, path string) error {
	data, err := config.MarshalYAML(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func writeSQLite(cfg *config.ConfigData, path string, force bool) error {
	if force {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing existing database: %w", err)
		}
	}

	// Opening the provider creates the database and applies the schema migrations
	provider, err := config.NewSQLiteProvider(path)
	if err != nil {
		return fmt.Errorf("creating SQLite database: %w", err)
	}
	defer provider.Close()

	return provider.SaveConfig(cfg)
}

func printConfigSummary(cfg *config.ConfigData) {
	fmt.Printf("\nSites (%d):\n", len(cfg.Sites))
	for _, site := range cfg.Sites {
		fmt.Printf("  - %s (%.4f, %.4f, %.0f m, %d arrays)\n",
			site.Name, site.Latitude, site.Longitude, site.Altitude, len(site.Arrays))
		for _, a := range site.Arrays {
			fmt.Printf("      %s: tilt %.1f°, azimuth %.1f°, %.0f W DC\n", a.Name, a.Tilt, a.Azimuth, a.DCRating)
		}
	}

	m := cfg.Models
	fmt.Printf("\nModels: clear-sky %s, decomposition %s, transposition %s\n",
		m.ClearSky, m.Decomposition, m.Transposition)
	fmt.Printf("Turbidity: %s", cfg.Turbidity.Source)
	if cfg.Turbidity.GridPath != "" {
		fmt.Printf(" (%s)", cfg.Turbidity.GridPath)
	}
	fmt.Printf("\nServer: %s:%d\n", cfg.Server.ListenAddr, cfg.Server.Port)
}
