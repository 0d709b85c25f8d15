package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/chrissnell/pvestimate/pkg/config"
	"github.com/chrissnell/pvestimate/pkg/migrate"
)

const usage = `Configuration database migration tool

Usage:
  migrate -db config.db [-target N] <command>

Commands:
  up       apply every pending migration (default)
  down     roll back to -target
  to       move up or down to -target
  plan     list the steps to reach -target, or the latest version
  status   show the applied version and pending migrations

Flags:
`

func main() {
	dbPath := flag.String("db", "", "SQLite configuration database (required)")
	target := flag.String("target", "", "Target version for down, to and plan")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}
	if *dbPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", *dbPath, err)
		os.Exit(1)
	}
	defer db.Close()

	m := config.NewMigrator(db)
	m.Logf = func(format string, args ...any) {
		fmt.Printf("  "+format+"\n", args...)
	}

	if err := run(m, command, *target); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", command, err)
		os.Exit(1)
	}
}

func run(m *migrate.Migrator, command, target string) error {
	switch command {
	case "up":
		return m.MigrateUp()
	case "down", "to":
		v, err := parseTarget(target)
		if err != nil {
			return err
		}
		if command == "down" {
			return m.MigrateDown(v)
		}
		return m.MigrateTo(v)
	case "plan":
		v := migrate.Latest
		if target != "" {
			var err error
			if v, err = parseTarget(target); err != nil {
				return err
			}
		}
		steps, err := m.Plan(v)
		if err != nil {
			return err
		}
		printSteps(steps)
		return nil
	case "status":
		v, err := m.GetCurrentVersion()
		if err != nil {
			return err
		}
		steps, err := m.Plan(migrate.Latest)
		if err != nil {
			return err
		}
		fmt.Printf("Schema version %d, %d pending\n", v, len(steps))
		printSteps(steps)
		return nil
	}
	return fmt.Errorf("unknown command %q", command)
}

func parseTarget(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("-target is required")
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid target version %q", s)
	}
	return v, nil
}

func printSteps(steps []migrate.Step) {
	for _, s := range steps {
		dir := "up"
		if !s.Forward {
			dir = "down"
		}
		fmt.Printf("  %03d %-4s %s\n", s.Version, dir, s.Name)
	}
}
