package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/learnhub/payrecon/pkg/config"
	"github.com/learnhub/payrecon/pkg/db"
	"github.com/learnhub/payrecon/pkg/logger"
	"github.com/learnhub/payrecon/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "up|down|status|version|create|validate")
	dir := flag.String("dir", "", "migrations directory on disk (defaults to the embedded set)")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	ctx := logg.WithField(context.Background(), "cmd", *cmd)

	// create and validate work on files only
	switch *cmd {
	case "create":
		target := *dir
		if target == "" {
			target = migrate.SourceDir
		}
		path, err := migrate.Create(target, *name, time.Now())
		exitOn(ctx, logg, "create migration", err)
		fmt.Println("created migration:", path)
		return
	case "validate":
		files, err := migrate.Files(*dir)
		exitOn(ctx, logg, "load migrations", err)
		exitOn(ctx, logg, "validate migrations", migrate.Validate(files))
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	exitOn(ctx, logg, "load config", err)
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(context.Background(), map[string]any{"cmd": *cmd, "env": cfg.App.Env, "dir": *dir})

	if cfg.FeatureFlags.UseSQLite {
		exitOn(ctx, logg, "migrate", fmt.Errorf("goose migrations target postgres; sqlite uses the dev auto-run schema"))
	}

	dbClient, err := db.New(ctx, cfg.DB, false, logg)
	exitOn(ctx, logg, "connect database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	exitOn(ctx, logg, "sql handle", err)
	files, err := migrate.Files(*dir)
	exitOn(ctx, logg, "load migrations", err)
	runner, err := migrate.NewRunner(sqlDB, files)
	exitOn(ctx, logg, "create runner", err)

	switch *cmd {
	case "up":
		applied, err := runner.Up(ctx)
		exitOn(ctx, logg, "goose up", err)
		logg.Info(logg.WithField(ctx, "applied", applied), "migrations applied")
	case "down":
		exitOn(ctx, logg, "goose down", runner.Down(ctx))
		logg.Info(ctx, "rolled back one migration")
	case "status":
		statuses, err := runner.Status(ctx)
		exitOn(ctx, logg, "goose status", err)
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
		for _, s := range statuses {
			applied := "-"
			if !s.AppliedAt.IsZero() {
				applied = s.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Source.Version, s.State, applied, s.Source.Path)
		}
		tw.Flush()
	case "version":
		if *version == "" {
			exitOn(ctx, logg, "goose version", fmt.Errorf("missing -version"))
		}
		exitOn(ctx, logg, "goose version", runner.MigrateTo(ctx, *version))
		logg.Info(logg.WithField(ctx, "version", *version), "schema at requested version")
	default:
		exitOn(ctx, logg, "migrate", fmt.Errorf("unknown -cmd value %q", *cmd))
	}
}

func exitOn(ctx context.Context, logg *logger.Logger, step string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("%s failed", step), err)
	os.Exit(1)
}
