package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"kenoadmin.org/internal/auth"
	"kenoadmin.org/internal/config"
	"kenoadmin.org/internal/docstore"
	"kenoadmin.org/internal/migrate"
	"kenoadmin.org/internal/obs"
)

func main() {
	logger := obs.Logger()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	var (
		dsn            = flag.String("dsn", cfg.Store.PGDSN, "PostgreSQL DSN (defaults to store.pg_dsn)")
		migrationsPath = flag.String("migrations", "ops/migrations/sql", "Path to SQL migrations")
		timeout        = flag.Duration("timeout", 60*time.Second, "Overall timeout")
	)
	flag.Parse()

	if *dsn == "" {
		logger.Fatal("missing DSN: provide -dsn or KENO_STORE__PG_DSN")
	}
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: migrate [up|down|status|pending|seed]")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pg, err := docstore.OpenPG(*dsn)
	if err != nil {
		logger.Fatal("open db", zap.Error(err))
	}
	defer pg.Close()

	mgr := migrate.NewManager(pg.DB(), os.DirFS(*migrationsPath))

	cmd := flag.Arg(0)
	switch cmd {
	case "up":
		var applied []string
		if applied, err = mgr.Up(ctx); err == nil {
			logger.Info("migrations applied", zap.Strings("names", applied))
		}
	case "down":
		var name string
		if name, err = mgr.Down(ctx); err == nil {
			logger.Info("migration rolled back", zap.String("name", name))
		}
	case "status", "pending":
		var names []string
		if cmd == "status" {
			names, err = mgr.Status(ctx)
		} else {
			names, err = mgr.Pending(ctx)
		}
		for _, n := range names {
			fmt.Println(n)
		}
	case "seed":
		var rep auth.SeedReport
		if rep, err = auth.Seed(ctx, pg, auth.Collections(cfg.Collections)); err == nil {
			logger.Info("catalog seeded", zap.Int("created", rep.Created), zap.Int("skipped", rep.Skipped))
		}
	default:
		logger.Fatal("unknown command", zap.String("command", cmd))
	}
	if err != nil {
		logger.Fatal("migrate failed", zap.String("command", cmd), zap.Error(err))
	}
}
