package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/bot-draft-backend/internal/broadcast"
	"github.com/DoyleJ11/bot-draft-backend/internal/catalog"
	"github.com/DoyleJ11/bot-draft-backend/internal/config"
	"github.com/DoyleJ11/bot-draft-backend/internal/engine"
	"github.com/DoyleJ11/bot-draft-backend/internal/httpapi"
	"github.com/DoyleJ11/bot-draft-backend/internal/hub"
	"github.com/DoyleJ11/bot-draft-backend/internal/logging"
	"github.com/DoyleJ11/bot-draft-backend/internal/store/memory"
	"github.com/DoyleJ11/bot-draft-backend/internal/store/postgres"
	"github.com/DoyleJ11/bot-draft-backend/internal/ws"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, closeStore()) }()

	cat, err := loadCatalog(cfg.CatalogPath, log)
	if err != nil {
		return err
	}

	// The broadcaster reads snapshots from the hub and the hub publishes
	// through the broadcaster.
	var h *hub.Hub
	b, err := broadcast.New(func(ctx context.Context, id string) (engine.Snapshot, error) {
		return h.Snapshot(ctx, id)
	},
		broadcast.WithQueueSize(cfg.SubscriberQueueSize),
		broadcast.WithWriteTimeout(cfg.WriteTimeout),
		broadcast.WithWorkers(cfg.BroadcastWorkers),
		broadcast.WithLogger(log.Named("broadcast")),
	)
	if err != nil {
		return fmt.Errorf("broadcaster: %w", err)
	}
	h = hub.NewHub(context.Background(), store, cat, b, hub.Options{
		Logger:         log.Named("hub"),
		AutoPickRetry:  cfg.AutoPickRetry,
		SaveTimeout:    cfg.SaveTimeout,
		RecoverWorkers: cfg.RecoverWorkers,
	})

	recovered, err := h.Recover(ctx)
	if err != nil {
		return err
	}
	log.Info("drafts recovered", zap.Int("count", recovered))

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.SetupRoutes(httpapi.Deps{
			Hub:         h,
			Broadcaster: b,
			Catalog:     cat,
			Defaults:    httpapi.Defaults{Rounds: cfg.DefaultRounds, PickDuration: cfg.DefaultPickDuration},
			WS: ws.Options{
				WriteTimeout:   cfg.WriteTimeout,
				ReadTimeout:    cfg.ReadTimeout,
				OriginPatterns: cfg.WSOriginPatterns,
				Logger:         log.Named("ws"),
			},
			Logger: log.Named("http"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		err = multierr.Append(err, h.Shutdown(shutdownCtx))
		b.Close()
		return err
	})
	return g.Wait()
}

func openStore(cfg config.Config, log *zap.Logger) (engine.Store, func() error, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, drafts will not survive a restart")
		return memory.New(), func() error { return nil }, nil
	}
	st, err := postgres.Open(cfg.DatabaseURL, postgres.Options{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	return st, st.Close, nil
}

func loadCatalog(path string, log *zap.Logger) (*catalog.Catalog, error) {
	cat, err := catalog.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("player pool file missing, starting empty", zap.String("path", path))
		return catalog.New(nil), nil
	}
	if err != nil {
		return nil, err
	}
	log.Info("player pool loaded", zap.String("path", path), zap.Int("players", cat.Len()))
	return cat, nil
}
