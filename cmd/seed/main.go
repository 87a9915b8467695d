// Command seed writes the permission catalog, builtin roles and their grants
// to the configured document store, and optionally the owner staff record.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	"kenoadmin.org/internal/auth"
	"kenoadmin.org/internal/baas"
	"kenoadmin.org/internal/config"
	"kenoadmin.org/internal/docstore"
	"kenoadmin.org/internal/obs"
)

type result struct {
	Catalog      auth.SeedReport `json:"catalog"`
	OwnerCreated bool            `json:"ownerCreated"`
}

func main() {
	var (
		ownerID    = flag.String("owner-user-id", "", "Identity id of the owner staff record (skipped when empty)")
		ownerEmail = flag.String("owner-email", "", "Owner email")
		ownerName  = flag.String("owner-name", "", "Owner full name")
		timeout    = flag.Duration("timeout", 60*time.Second, "Overall timeout")
	)
	flag.Parse()

	logger := obs.Logger()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	docs, closeDocs, err := openStore(cfg)
	if err != nil {
		logger.Fatal("open store", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer closeDocs()

	cols := auth.Collections(cfg.Collections)
	var out result
	if out.Catalog, err = auth.Seed(ctx, docs, cols); err != nil {
		logger.Fatal("seed catalog", zap.Error(err))
	}
	if *ownerID != "" {
		out.OwnerCreated, err = auth.SeedOwner(ctx, docs, cols, auth.OwnerStaff{
			UserID:   *ownerID,
			Email:    *ownerEmail,
			FullName: *ownerName,
		})
		if err != nil {
			logger.Fatal("seed owner", zap.Error(err))
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func openStore(cfg config.Config) (docstore.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pg, err := docstore.OpenPG(cfg.Store.PGDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, func() { _ = pg.Close() }, nil
	default:
		client, err := baas.New(baas.Config{
			Endpoint:  cfg.Provider.Endpoint,
			ProjectID: cfg.Provider.ProjectID,
			APIKey:    cfg.Provider.APIKey,
			Timeout:   cfg.Provider.Timeout,
		}, baas.WithLogger(obs.Logger().Named("baas")))
		if err != nil {
			return nil, nil, err
		}
		return baas.NewDocuments(client, cfg.DatabaseID), func() {}, nil
	}
}
