// Command migrate manages the Foodgram schema and the bundled catalog.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"foodgram/internal/bootstrap"
	"foodgram/internal/config"
	"foodgram/internal/database"
	"foodgram/internal/middleware"

	"gorm.io/gorm"
)

type command struct {
	args string
	help string
	run  func(ctx context.Context, cfg *config.Config, db *gorm.DB, args []string) error
}

var commands = map[string]command{
	"up": {
		help: "apply pending SQL migrations",
		run: func(ctx context.Context, _ *config.Config, db *gorm.DB, _ []string) error {
			return database.RunMigrations(ctx, db)
		},
	},
	"auto": {
		help: "run GORM AutoMigrate for every persistent model",
		run: func(ctx context.Context, cfg *config.Config, db *gorm.DB, _ []string) error {
			cfg.DBSchemaMode = database.SchemaModeAuto
			return database.ApplySchema(ctx, db, cfg)
		},
	},
	"status": {
		help: "show schema mode and pending migrations",
		run:  status,
	},
	"down": {
		args: "<version>",
		help: "revert one applied migration",
		run:  down,
	},
	"catalog": {
		help: "load the bundled ingredients and tags, skipping existing rows",
		run: func(ctx context.Context, cfg *config.Config, db *gorm.DB, _ []string) error {
			cfg.SeedCatalog = true
			return bootstrap.SeedCatalog(ctx, cfg, db)
		},
	},
}

func main() {
	flag.Usage = usage
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flag.Args()); err != nil {
		middleware.Logger.Error("migrate failed", slog.String("error", err.Error()))
		if errors.Is(err, errUsage) {
			usage()
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var errUsage = errors.New("invalid usage")

func usage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(os.Stderr, "usage: migrate <command> [args]")
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(os.Stderr, "  %-18s %s\n", strings.TrimSpace(name+" "+c.args), c.help)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	name := strings.ToLower(strings.TrimSpace(args[0]))
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	if err := cmd.run(ctx, cfg, db, args[1:]); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	middleware.Logger.Info("migrate finished", slog.String("command", name))
	return nil
}

func status(ctx context.Context, cfg *config.Config, db *gorm.DB, _ []string) error {
	st, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return err
	}
	middleware.Logger.Info("schema status",
		slog.String("mode", st.Mode),
		slog.String("env", st.Environment),
		slog.Bool("run_sql", st.WillRunSQL),
		slog.Bool("run_auto", st.WillRunAutoMigrate),
		slog.Int("applied", len(st.AppliedVersions)),
		slog.Int("pending", len(st.PendingMigrations)),
	)
	for _, m := range st.PendingMigrations {
		fmt.Printf("pending: %06d_%s\n", m.Version, m.Name)
	}
	return nil
}

func down(ctx context.Context, _ *config.Config, db *gorm.DB, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: down needs a version", errUsage)
	}
	version, err := strconv.Atoi(args[0])
	if err != nil || version <= 0 {
		return fmt.Errorf("%w: invalid version %q", errUsage, args[0])
	}
	return database.RollbackMigration(ctx, db, version)
}
