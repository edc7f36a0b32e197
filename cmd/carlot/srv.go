package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"carlot/internal/config"
	"carlot/internal/links"
	"carlot/internal/metrics"
	"carlot/internal/objectstore"
	"carlot/internal/reconcile"
	"carlot/internal/retrieval"
	"carlot/internal/server"
	"carlot/internal/store"
	"carlot/internal/upload"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the carlot API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			logger.Info("opening database", "path", cfg.DBPath)
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			logger.Info("opening object store", "backend", cfg.Objects.Backend, "bucket", cfg.Objects.Bucket)
			objects, err := objectstore.Open(ctx, objectStoreConfig(cfg.Objects))
			if err != nil {
				return err
			}
			defer objects.Close(context.WithoutCancel(ctx))

			locker, closeLocker, err := openLocker(ctx, cfg.Locks, logger)
			if err != nil {
				return err
			}
			defer closeLocker()

			m := metrics.New()
			pipeline := upload.NewPipeline(objects, upload.Policy{
				MaxFiles:          cfg.Uploads.MaxFiles,
				MaxFileBytes:      cfg.Uploads.MaxFileBytes,
				AllowedExtensions: cfg.Uploads.AllowedExtensions,
				AllowedMediaTypes: cfg.Uploads.AllowedMediaTypes,
			}, logger, m)
			manager := links.NewManager(st, objects, locker, logger, m)
			sweeper := reconcile.NewSweeper(st, objects, manager, logger, m)
			sweeper.SetGracePeriod(time.Duration(cfg.Reconcile.GraceMinutes) * time.Minute)

			srv := server.New(addr, server.Options{
				Records:   st,
				Pipeline:  pipeline,
				Links:     manager,
				Gateway:   retrieval.NewGateway(objects, m),
				Sweeper:   sweeper,
				Metrics:   m,
				FieldName: cfg.Uploads.FieldName,
			}, logger)
			return srv.Serve(ctx)
		},
	}
}

func objectStoreConfig(cfg config.ObjectsConfig) objectstore.Config {
	return objectstore.Config{
		Backend:       cfg.Backend,
		Bucket:        cfg.Bucket,
		LocalRoot:     cfg.LocalRoot,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
		S3: objectstore.S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Prefix:    cfg.S3Prefix,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		},
	}
}

// openLocker returns a Redis-backed locker when a URL is configured so that
// several server processes can share one database.
func openLocker(ctx context.Context, cfg config.LocksConfig, logger *slog.Logger) (links.Locker, func(), error) {
	if cfg.RedisURL == "" {
		return links.NewLocalLocker(), func() {}, nil
	}
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	locker, err := links.NewRedisLocker(ctx, cfg.RedisURL, ttl, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open redis locker: %w", err)
	}
	logger.Info("using redis locks", "ttl", ttl)
	return locker, func() { _ = locker.Close() }, nil
}
