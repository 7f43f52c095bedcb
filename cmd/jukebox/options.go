package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/dreamware/jukebox/internal/logging"
	"github.com/dreamware/jukebox/internal/persistence"
	"github.com/dreamware/jukebox/internal/querycache"
)

// Snapshot backends selectable with --snapshot-backend.
const (
	BackendLocal  = "local"
	BackendMemory = "memory"
	BackendMinIO  = "minio"
	BackendS3     = "s3"
)

// envPrefix is prepended to a flag's upper-cased name to find its environment fallback.
const envPrefix = "JUKEBOX_"

// Options contains the command-line configuration for the jukebox server.
type Options struct {
	//
	// HTTP.
	//
	Listen          string        // Listen address.
	ShutdownTimeout time.Duration // Grace period for in-flight requests on shutdown.
	//
	// Snapshots.
	//
	SnapshotBackend  string        // One of local, memory, minio, s3.
	SnapshotDir      string        // Directory for the local backend.
	SnapshotName     string        // Blob name of the snapshot.
	SnapshotInterval time.Duration // Time between periodic saves.
	SnapshotCompress bool          // zstd-compress snapshots.
	Bucket           string        // Bucket for the minio and s3 backends.
	Prefix           string        // Key prefix for the minio and s3 backends.
	MinioEndpoint    string        // host:port of the MinIO server.
	MinioAccessKey   string
	MinioSecretKey   string
	MinioSecure      bool // Use TLS to reach MinIO.
	//
	// Query cache.
	//
	CacheCapacity int // Maximum number of cached queries.
	CacheStripes  int // Number of independently locked cache stripes.
	//
	// Diagnostics.
	//
	LogVerbosity   int  // Number for the log level verbosity.
	LogDevelopment bool // Human-readable console logs.

	// internal
	fs *pflag.FlagSet // FlagSet used in AddFlags() and consulted in Complete()
}

// NewOptions returns a new Options struct initialized with default values.
func NewOptions() *Options {
	return &Options{
		Listen:           "127.0.0.1:8080",
		ShutdownTimeout:  5 * time.Second,
		SnapshotBackend:  BackendLocal,
		SnapshotDir:      ".",
		SnapshotName:     persistence.DefaultName,
		SnapshotInterval: persistence.DefaultInterval,
		MinioSecure:      true,
		CacheCapacity:    querycache.DefaultCapacity,
		CacheStripes:     querycache.DefaultStripes,
		LogVerbosity:     logging.DEFAULT,
	}
}

// AddFlags binds the Options fields to command-line flags on the given FlagSet.
func (opts *Options) AddFlags(fs *pflag.FlagSet) {
	if fs == nil {
		fs = pflag.CommandLine
	}
	opts.fs = fs

	fs.StringVar(&opts.Listen, "listen", opts.Listen,
		"Address the HTTP server listens on.")
	fs.DurationVar(&opts.ShutdownTimeout, "shutdown-timeout", opts.ShutdownTimeout,
		"Grace period for in-flight requests on shutdown.")
	fs.StringVar(&opts.SnapshotBackend, "snapshot-backend", opts.SnapshotBackend,
		"Where snapshots are stored: local, memory, minio or s3.")
	fs.StringVar(&opts.SnapshotDir, "snapshot-dir", opts.SnapshotDir,
		"Directory holding the snapshot when --snapshot-backend=local.")
	fs.StringVar(&opts.SnapshotName, "snapshot-name", opts.SnapshotName,
		"Name of the snapshot blob.")
	fs.DurationVar(&opts.SnapshotInterval, "snapshot-interval", opts.SnapshotInterval,
		"Time between periodic snapshots.")
	fs.BoolVar(&opts.SnapshotCompress, "snapshot-compress", opts.SnapshotCompress,
		"Compress snapshots with zstd. Either encoding is accepted on load.")
	fs.StringVar(&opts.Bucket, "bucket", opts.Bucket,
		"Bucket holding the snapshot for the minio and s3 backends.")
	fs.StringVar(&opts.Prefix, "prefix", opts.Prefix,
		"Key prefix for the minio and s3 backends.")
	fs.StringVar(&opts.MinioEndpoint, "minio-endpoint", opts.MinioEndpoint,
		"host:port of the MinIO server.")
	fs.StringVar(&opts.MinioAccessKey, "minio-access-key", opts.MinioAccessKey,
		"MinIO access key.")
	fs.StringVar(&opts.MinioSecretKey, "minio-secret-key", opts.MinioSecretKey,
		"MinIO secret key.")
	fs.BoolVar(&opts.MinioSecure, "minio-secure", opts.MinioSecure,
		"Use TLS when talking to MinIO.")
	fs.IntVar(&opts.CacheCapacity, "cache-capacity", opts.CacheCapacity,
		"Maximum number of distinct queries held in the search cache.")
	fs.IntVar(&opts.CacheStripes, "cache-stripes", opts.CacheStripes,
		"Number of independently locked search cache stripes. Must be a power of two.")
	fs.IntVarP(&opts.LogVerbosity, "v", "v", opts.LogVerbosity,
		"Number for the log level verbosity.")
	fs.BoolVar(&opts.LogDevelopment, "log-development", opts.LogDevelopment,
		"Human-readable console logs instead of JSON.")
}

// envName returns the environment variable consulted for flag name.
func envName(name string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// Complete performs post-processing of parsed command-line arguments.
// Flags not given on the command line take their value from the environment
// (e.g. --snapshot-dir from JUKEBOX_SNAPSHOT_DIR) when it is set.
func (opts *Options) Complete() error {
	if opts.fs == nil {
		return nil
	}
	var err error
	opts.fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed {
			return
		}
		if v := getenv(envName(f.Name), ""); v != "" {
			if serr := opts.fs.Set(f.Name, v); serr != nil {
				err = fmt.Errorf("invalid value %q for %s: %w", v, envName(f.Name), serr)
			}
		}
	})
	return err
}

// Validate checks the Options for invalid or conflicting values.
func (opts *Options) Validate() error {
	switch opts.SnapshotBackend {
	case BackendLocal, BackendMemory:
	case BackendMinIO:
		if opts.MinioEndpoint == "" {
			return fmt.Errorf("flag %q is required for the %s backend", "minio-endpoint", BackendMinIO)
		}
		fallthrough
	case BackendS3:
		if opts.Bucket == "" {
			return fmt.Errorf("flag %q is required for the %s backend", "bucket", opts.SnapshotBackend)
		}
	default:
		return fmt.Errorf("invalid value %q for flag %q: must be one of %s, %s, %s, %s",
			opts.SnapshotBackend, "snapshot-backend", BackendLocal, BackendMemory, BackendMinIO, BackendS3)
	}

	if opts.SnapshotName == "" {
		return fmt.Errorf("flag %q must not be empty", "snapshot-name")
	}
	if opts.SnapshotInterval <= 0 {
		return fmt.Errorf("invalid value %s for flag %q: must be positive", opts.SnapshotInterval, "snapshot-interval")
	}
	if opts.CacheCapacity < 1 {
		return fmt.Errorf("invalid value %d for flag %q: must be >= 1", opts.CacheCapacity, "cache-capacity")
	}
	if opts.CacheStripes < 1 || opts.CacheStripes&(opts.CacheStripes-1) != 0 {
		return fmt.Errorf("invalid value %d for flag %q: must be a power of two", opts.CacheStripes, "cache-stripes")
	}
	if opts.LogVerbosity < 0 {
		return fmt.Errorf("invalid value %d for flag %q: must be >= 0", opts.LogVerbosity, "v")
	}
	return nil
}

// getenv retrieves an environment variable with a default fallback value.
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
