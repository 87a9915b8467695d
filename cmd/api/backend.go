package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"kenoadmin.org/internal/auth"
	"kenoadmin.org/internal/baas"
	"kenoadmin.org/internal/config"
	"kenoadmin.org/internal/docstore"
	"kenoadmin.org/internal/identity"
	"kenoadmin.org/internal/ids"
	"kenoadmin.org/internal/obs"
)

type backend struct {
	identity identity.Provider
	docs     docstore.Store
	close    func()
}

// openBackend selects the identity provider and document store for the
// configured driver:
//
//	provider  hosted identity + hosted documents
//	postgres  hosted identity + PostgreSQL documents
//	memory    in-process identity and documents with a seeded dev owner
func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	switch cfg.Store.Driver {
	case config.DriverProvider, config.DriverPostgres:
		client, err := baas.New(baas.Config{
			Endpoint:  cfg.Provider.Endpoint,
			ProjectID: cfg.Provider.ProjectID,
			APIKey:    cfg.Provider.APIKey,
			Timeout:   cfg.Provider.Timeout,
		}, baas.WithLogger(obs.Logger().Named("baas")))
		if err != nil {
			return nil, err
		}
		b := &backend{identity: baas.NewIdentity(client), close: func() {}}
		if cfg.Store.Driver == config.DriverProvider {
			b.docs = baas.NewDocuments(client, cfg.DatabaseID)
			return b, nil
		}
		pg, err := docstore.OpenPG(cfg.Store.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		b.docs = pg
		b.close = func() { _ = pg.Close() }
		return b, nil
	case config.DriverMemory:
		return openMemory(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func openMemory(ctx context.Context, cfg config.Config) (*backend, error) {
	cols := auth.Collections(cfg.Collections)
	idp := identity.NewMemory()
	docs := docstore.NewMemory(
		docstore.WithUnique(cols.Staff, "userId"),
		docstore.WithUnique(cols.RolePermissions, "roleId", "permissionId"),
		docstore.WithUnique(cols.Roles, "name"),
		docstore.WithUnique(cols.Venues, "code"),
	)
	rep, err := auth.Seed(ctx, docs, cols)
	if err != nil {
		return nil, fmt.Errorf("seed catalog: %w", err)
	}
	obs.Logger().Info("seeded memory store", zap.Int("created", rep.Created))

	if cfg.DevAdmin.Email != "" {
		userID := ids.NewIdentityID()
		idp.Put(identity.Identity{
			ID:            userID,
			Email:         cfg.DevAdmin.Email,
			Name:          "Dev Admin",
			EmailVerified: true,
			Enabled:       true,
		}, cfg.DevAdmin.Password)
		idp.AddMembership(identity.Membership{
			TeamID:   cfg.StaffTeamID,
			TeamName: cfg.StaffTeamName,
			UserID:   userID,
			Roles:    []string{"owner"},
		})
		if _, err := auth.SeedOwner(ctx, docs, cols, auth.OwnerStaff{UserID: userID, Email: cfg.DevAdmin.Email}); err != nil {
			return nil, fmt.Errorf("seed owner: %w", err)
		}
		obs.Logger().Info("dev owner ready", zap.String("email", cfg.DevAdmin.Email))
	}
	return &backend{identity: idp, docs: docs, close: func() {}}, nil
}
