// Package main implements the jukebox server: an in-memory song catalog,
// sharded by genre, with a search cache and periodic durable snapshots.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│                jukebox                  │
//	├─────────────────────────────────────────┤
//	│  HTTP API:                              │
//	│    /               - Welcome text       │
//	│    /count          - Visit counter      │
//	│    /songs/new      - Add a song         │
//	│    /songs/search   - Search songs       │
//	│    /songs/play/ID  - Play a song        │
//	│    /shards         - Shard statistics   │
//	│    /cache          - Cache statistics   │
//	│    /health         - Health check       │
//	│    /metrics        - Prometheus         │
//	├─────────────────────────────────────────┤
//	│  Components:                            │
//	│    catalog.Service - Core operations    │
//	│    Scheduler       - Periodic snapshots │
//	│    storage.Store   - Snapshot backend   │
//	└─────────────────────────────────────────┘
//
// Configuration is taken from flags, each of which falls back to a
// JUKEBOX_* environment variable (see options.go).
//
// Example usage:
//
//	# Start with a local snapshot in /var/lib/jukebox
//	./jukebox --snapshot-dir /var/lib/jukebox
//
//	# Add and search songs
//	curl -X POST localhost:8080/songs/new \
//	  -d '{"title":"Blue Train","artist":"John Coltrane","genre":"Jazz"}'
//	curl 'localhost:8080/songs/search?genre=jazz'
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-logr/logr"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"

	"github.com/dreamware/jukebox/internal/catalog"
	"github.com/dreamware/jukebox/internal/logging"
	"github.com/dreamware/jukebox/internal/metrics"
	"github.com/dreamware/jukebox/internal/persistence"
	"github.com/dreamware/jukebox/internal/querycache"
	"github.com/dreamware/jukebox/internal/storage"
	"github.com/dreamware/jukebox/internal/storage/minio"
	"github.com/dreamware/jukebox/internal/storage/s3"
)

func main() {
	opts := NewOptions()
	opts.AddFlags(pflag.CommandLine)
	pflag.Parse()

	if err := opts.Complete(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := opts.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := logging.NewLogger(opts.LogVerbosity, opts.LogDevelopment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register(prometheus.DefaultRegisterer)

	a, err := newApp(ctx, opts, logger)
	if err != nil {
		logging.Fatal(logger, err, "failed to start")
	}

	ln, err := net.Listen("tcp", opts.Listen)
	if err != nil {
		logging.Fatal(logger, err, "listen failed", "addr", opts.Listen)
	}

	go func() {
		if err := a.serve(ln); err != nil {
			logging.Fatal(logger, err, "serve failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	if err := a.shutdown(shutdownCtx); err != nil {
		logger.Error(err, "shutdown incomplete")
		os.Exit(1)
	}
	logger.Info("jukebox stopped")
}

// app is one running jukebox: the catalog, its snapshot machinery, and the
// HTTP server in front of them.
type app struct {
	opts      *Options
	logger    logr.Logger
	store     *catalog.Store
	svc       *catalog.Service
	manager   *persistence.Manager
	scheduler *persistence.Scheduler
	httpSrv   *http.Server
}

// newApp restores the catalog from the configured snapshot backend and starts
// the snapshot scheduler. A missing or unreadable snapshot is logged and the
// catalog starts empty.
func newApp(ctx context.Context, opts *Options, logger logr.Logger) (*app, error) {
	blobs, err := newBlobStore(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("creating %s snapshot backend: %w", opts.SnapshotBackend, err)
	}

	manager := persistence.NewManager(blobs, logger.WithName("persistence"),
		persistence.WithName(opts.SnapshotName),
		persistence.WithCompression(opts.SnapshotCompress),
	)

	store := catalog.NewStore()
	ids := catalog.NewIDAllocator()
	if _, err := manager.Restore(ctx, store, ids); err != nil {
		logger.Error(err, "snapshot not restored, serving an empty catalog")
	}

	cache, err := querycache.New(opts.CacheCapacity, opts.CacheStripes)
	if err != nil {
		return nil, fmt.Errorf("creating query cache: %w", err)
	}

	svc := catalog.NewService(store, cache, ids, logger.WithName("catalog"))
	scheduler := persistence.NewScheduler(manager, store, opts.SnapshotInterval, logger.WithName("scheduler"))
	scheduler.Start(context.Background())

	return &app{
		opts:      opts,
		logger:    logger,
		store:     store,
		svc:       svc,
		manager:   manager,
		scheduler: scheduler,
		httpSrv: &http.Server{
			Handler:           newServer(svc, scheduler, logger.WithName("http")).routes(),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// serve accepts connections on ln until shutdown is called.
func (a *app) serve(ln net.Listener) error {
	a.logger.Info("jukebox listening", "addr", ln.Addr().String(), "songs", a.store.Len(), "backend", a.opts.SnapshotBackend)
	if err := a.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// shutdown stops accepting requests, stops the scheduler, and writes one
// final snapshot so that songs added since the last tick are not lost.
func (a *app) shutdown(ctx context.Context) error {
	var errs error
	if err := a.httpSrv.Shutdown(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	a.scheduler.Stop()
	if err := a.manager.Save(ctx, a.store); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("final snapshot: %w", err))
	}
	return errs
}

// newBlobStore builds the snapshot backend selected by opts.
func newBlobStore(ctx context.Context, opts *Options) (storage.Store, error) {
	switch opts.SnapshotBackend {
	case BackendMemory:
		return storage.NewMemoryStore(), nil
	case BackendMinIO:
		client, err := miniogo.New(opts.MinioEndpoint, &miniogo.Options{
			Creds:  credentials.NewStaticV4(opts.MinioAccessKey, opts.MinioSecretKey, ""),
			Secure: opts.MinioSecure,
		})
		if err != nil {
			return nil, err
		}
		return minio.NewStore(client, opts.Bucket, opts.Prefix), nil
	case BackendS3:
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, err
		}
		return s3.NewStore(awss3.NewFromConfig(cfg), opts.Bucket, opts.Prefix), nil
	default:
		local, err := storage.NewLocalStore(opts.SnapshotDir)
		if err != nil {
			return nil, err
		}
		return local, nil
	}
}
