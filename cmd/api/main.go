package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"kenoadmin.org/internal/auth"
	"kenoadmin.org/internal/config"
	"kenoadmin.org/internal/httpapi"
	"kenoadmin.org/internal/obs"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)
	logger := obs.Logger()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Fatal("open backend", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}
	defer store.close()

	svc, err := buildServices(cfg, store)
	if err != nil {
		logger.Fatal("build services", zap.Error(err))
	}

	probe := httpapi.ReadyProbe{Store: store.docs}
	api := httpapi.New(probe, version, svc,
		httpapi.WithCookies(cookiesFor(cfg)),
		httpapi.WithPublicURL(cfg.PublicURL),
		httpapi.WithCORSOrigins(cfg.CORS.AllowedOrigins...),
		httpapi.WithRateLimit(cfg.RateLimit.Burst, cfg.RateLimit.PerSecond),
	)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcSrv := grpc.NewServer()
	health := httpapi.NewGRPCServer(probe)
	health.Register(grpcSrv)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", srv.Addr), zap.String("version", version), zap.String("driver", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			logger.Fatal("grpc listen", zap.String("addr", cfg.GRPC.Addr), zap.Error(err))
		}
		g.Go(func() error {
			logger.Info("grpc listening", zap.String("addr", cfg.GRPC.Addr))
			return grpcSrv.Serve(lis)
		})
	}
	g.Go(func() error {
		health.Watch(gctx, 10*time.Second)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcSrv.GracefulStop()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return
	}
	logger.Info("stopped")
}

func buildServices(cfg config.Config, b *backend) (httpapi.Services, error) {
	cols := auth.Collections(cfg.Collections)

	resolver, err := auth.NewResolver(b.identity, b.docs, cfg.StaffTeamID,
		auth.WithResolverCollections(cols),
		auth.WithTeamName(cfg.StaffTeamName),
		auth.WithParallelLookups(cfg.ParallelLookups),
	)
	if err != nil {
		return httpapi.Services{}, err
	}
	rbac, err := auth.NewRBACService(b.docs,
		auth.WithRBACCollections(cols),
		auth.WithRoleCache(auth.NewRoleCache(cfg.RolesCacheTTL)),
	)
	if err != nil {
		return httpapi.Services{}, err
	}
	staff, err := auth.NewStaffService(b.identity, b.docs, cfg.DatabaseID, auth.WithStaffCollections(cols))
	if err != nil {
		return httpapi.Services{}, err
	}
	venues, err := auth.NewVenueService(b.docs, cols)
	if err != nil {
		return httpapi.Services{}, err
	}
	return httpapi.Services{
		Resolver: resolver,
		Identity: b.identity,
		RBAC:     rbac,
		Staff:    staff,
		Venues:   venues,
	}, nil
}

func cookiesFor(cfg config.Config) httpapi.Cookies {
	c := httpapi.DefaultCookies(cfg.Provider.ProjectID)
	if names := cfg.ProviderSessionCookies(); len(names) == 2 {
		c.Session, c.Legacy = names[0], names[1]
	}
	if cfg.AppCookie != "" {
		c.App = cfg.AppCookie
	}
	return c
}
