package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/menusam/partner-billing/pkg/config"
	"github.com/menusam/partner-billing/pkg/db"
	"github.com/menusam/partner-billing/pkg/logger"
	"github.com/menusam/partner-billing/pkg/migrate"
)

const usage = "migration command: up|down|status|version|create|validate"

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func parseFlags(args []string) (options, error) {
	var o options
	flags := flag.NewFlagSet("migrate", flag.ContinueOnError)
	flags.StringVar(&o.cmd, "cmd", "up", usage)
	flags.StringVar(&o.dir, "dir", "", "migrations directory; defaults to the embedded set ("+migrate.DefaultDir+" for create)")
	flags.StringVar(&o.name, "name", "", "migration name (for create)")
	flags.StringVar(&o.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	if err := flags.Parse(args); err != nil {
		return o, err
	}
	return o, nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}

	switch o.cmd {
	case "create":
		if o.name == "" {
			return errors.New("missing -name for create")
		}
		dir := o.dir
		if dir == "" {
			dir = migrate.DefaultDir
		}
		path, err := migrate.Create(dir, o.name)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "created migration:", path)
		return nil
	case "validate":
		if err := migrate.Validate(source(o.dir)); err != nil {
			return err
		}
		fmt.Fprintln(out, "migration validation passed")
		return nil
	case "up", "down", "status", "version":
	default:
		return fmt.Errorf("unknown -cmd %q (%s)", o.cmd, usage)
	}
	if o.cmd == "version" && o.version == "" {
		return errors.New("missing -version for version command")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logg := logger.New(logger.Options{ServiceName: "migrate", Level: logger.ParseLevel(cfg.App.LogLevel)})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": o.cmd})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return err
	}
	runner, err := migrate.NewRunner(sqlDB, sourceOrNil(o.dir))
	if err != nil {
		return err
	}

	var results []*goose.MigrationResult
	switch o.cmd {
	case "up":
		results, err = runner.Up(ctx)
	case "down":
		var res *goose.MigrationResult
		if res, err = runner.Down(ctx); res != nil {
			results = append(results, res)
		}
	case "version":
		results, err = runner.To(ctx, o.version)
	case "status":
		statuses, serr := runner.Status(ctx)
		for _, s := range statuses {
			fmt.Fprintf(out, "%-8s %d %s\n", s.State, s.Source.Version, s.Source.Path)
		}
		return serr
	}
	for _, res := range results {
		fmt.Fprintf(out, "%-4s %d %s (%s)\n", res.Direction, res.Source.Version, res.Source.Path, res.Duration)
	}
	return err
}

func source(dir string) fs.FS {
	if dir == "" {
		return migrate.Embedded()
	}
	return os.DirFS(dir)
}

func sourceOrNil(dir string) fs.FS {
	if dir == "" {
		return nil
	}
	return os.DirFS(dir)
}
