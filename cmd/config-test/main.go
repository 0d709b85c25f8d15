package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"reflect"

	"github.com/chrissnell/pvestimate/pkg/config"
)

func main() {
	var (
		yamlFile   = flag.String("yaml", "", "Path to YAML configuration file")
		sqliteFile = flag.String("sqlite", "", "Path to SQLite configuration file")
	)
	flag.Parse()

	if *yamlFile == "" || *sqliteFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -yaml <config.yaml> -sqlite <config.db>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("Configuration Comparison Test")
	fmt.Println("===========================")

	// Load YAML configuration
	fmt.Printf("Loading YAML configuration: %s\n", *yamlFile)
	yamlConfig, err := config.NewYAMLProvider(*yamlFile).LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading YAML config: %v\n", err)
		os.Exit(1)
	}

	// Load SQLite configuration
	fmt.Printf("Loading SQLite configuration: %s\n", *sqliteFile)
	sqliteProvider, err := config.NewSQLiteProvider(*sqliteFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating SQLite provider: %v\n", err)
		os.Exit(1)
	}
	defer sqliteProvider.Close()

	sqliteConfig, err := sqliteProvider.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading SQLite config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nComparison Results:")
	fmt.Println("==================")

	mismatches := compareSites(yamlConfig.Sites, sqliteConfig.Sites)

	fmt.Println("\nSettings:")
	sections := []struct {
		name         string
		yaml, sqlite any
	}{
		{"models", yamlConfig.Models, sqliteConfig.Models},
		{"turbidity", yamlConfig.Turbidity, sqliteConfig.Turbidity},
		{"constants", yamlConfig.Constants, sqliteConfig.Constants},
		{"server", yamlConfig.Server, sqliteConfig.Server},
		{"logging", yamlConfig.Logging, sqliteConfig.Logging},
	}
	for _, s := range sections {
		if reflect.DeepEqual(s.yaml, s.sqlite) {
			fmt.Printf("✓ %s matches\n", s.name)
		} else {
			fmt.Printf("✗ %s differs\n  YAML:   %+v\n  SQLite: %+v\n", s.name, s.yaml, s.sqlite)
			mismatches++
		}
	}

	if mismatches > 0 {
		fmt.Printf("\nTest completed with %d mismatches\n", mismatches)
		os.Exit(1)
	}
	fmt.Println("\nTest completed!")
}

func compareSites(yaml, sqlite []config.SiteData) int {
	fmt.Printf("Sites - YAML: %d, SQLite: %d\n", len(yaml), len(sqlite))

	byName := make(map[string]config.SiteData, len(sqlite))
	for _, s := range sqlite {
		byName[s.Name] = s
	}

	mismatches := 0
	if len(yaml) != len(sqlite) {
		fmt.Println("✗ Site count mismatch")
		mismatches++
	}
	for _, y := range yaml {
		s, ok := byName[y.Name]
		switch {
		case !ok:
			fmt.Printf("✗ Site %s missing from SQLite\n", y.Name)
			mismatches++
		case !compareSite(y, s):
			fmt.Printf("✗ Site %s differs\n", y.Name)
			printSiteDiff(y, s)
			mismatches++
		default:
			fmt.Printf("✓ Site %s matches\n", y.Name)
		}
	}
	return mismatches
}

func compareSite(yaml, sqlite config.SiteData) bool {
	const tolerance = 1e-6
	if math.Abs(yaml.Latitude-sqlite.Latitude) > tolerance ||
		math.Abs(yaml.Longitude-sqlite.Longitude) > tolerance ||
		math.Abs(yaml.Altitude-sqlite.Altitude) > tolerance {
		return false
	}
	yaml.Latitude, yaml.Longitude, yaml.Altitude = sqlite.Latitude, sqlite.Longitude, sqlite.Altitude
	return reflect.DeepEqual(yaml, sqlite)
}

func printSiteDiff(yaml, sqlite config.SiteData) {
	if yaml.Timezone != sqlite.Timezone {
		fmt.Printf("  Timezone: YAML='%s', SQLite='%s'\n", yaml.Timezone, sqlite.Timezone)
	}
	if yaml.LocationClass != sqlite.LocationClass {
		fmt.Printf("  LocationClass: YAML='%s', SQLite='%s'\n", yaml.LocationClass, sqlite.LocationClass)
	}
	if len(yaml.Arrays) != len(sqlite.Arrays) {
		fmt.Printf("  Arrays: YAML=%d, SQLite=%d\n", len(yaml.Arrays), len(sqlite.Arrays))
		return
	}
	for i := range yaml.Arrays {
		if !reflect.DeepEqual(yaml.Arrays[i], sqlite.Arrays[i]) {
			fmt.Printf("  Array %s: YAML=%+v\n  %*s SQLite=%+v\n", yaml.Arrays[i].Name, yaml.Arrays[i], len(yaml.Arrays[i].Name)+7, "", sqlite.Arrays[i])
		}
	}
}
