package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/tabletop-sync/internal/config"
	"github.com/DoyleJ11/tabletop-sync/internal/fanout"
	"github.com/DoyleJ11/tabletop-sync/internal/httpapi"
	"github.com/DoyleJ11/tabletop-sync/internal/hub"
	"github.com/DoyleJ11/tabletop-sync/internal/logging"
	"github.com/DoyleJ11/tabletop-sync/internal/store"
	"github.com/DoyleJ11/tabletop-sync/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() (err error) {
	var cfg config.Server
	if err := config.Load(&cfg); err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, catalog, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeStore()) }()

	h := hub.NewHub(ctx, log)
	defer h.Shutdown()

	wsOpts := ws.Options{OriginPatterns: cfg.WSOrigins, Log: log}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.RedisAddr != "" {
		instanceID := cfg.InstanceID
		if instanceID == "" {
			instanceID = uuid.NewString()
		}
		bp := fanout.NewRedis(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}), instanceID, log)
		defer func() { err = multierr.Append(err, bp.Close()) }()
		wsOpts.Backplane = bp
		g.Go(func() error { return bp.Run(ctx, h.Deliver) })
		log.Info("redis backplane enabled", zap.String("addr", cfg.RedisAddr), zap.String("instance_id", instanceID))
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub:      h,
			Sessions: sessions,
			Catalog:  catalog,
			WS:       wsOpts,
			Log:      log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openStore picks postgres when DATABASE_URL is set and the in-memory store
// otherwise.
func openStore(cfg config.Server, log *zap.Logger) (store.SessionStore, store.Catalog, func() error, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, sessions are kept in memory")
		return store.NewMemory(), &store.MemoryCatalog{}, func() error { return nil }, nil
	}
	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, nil, err
	}
	return store.NewGormSessions(db), store.NewGormCatalog(db), sqlDB.Close, nil
}
