// Package config loads worker configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Annotation sinks
const (
	SinkSQL           = "sql"
	SinkHTTP          = "http"
	SinkSimpleContent = "simplecontent"
)

// NoAssetRechecks disables rechecking for a missing asset; only the first
// look is made
const NoAssetRechecks = -1

// Config holds worker configuration
type Config struct {
	HTTPAddr string

	// Asset volume. AssetWaitAttempts counts rechecks after the first look:
	// zero selects the default and a negative value disables rechecks.
	AssetBaseDir      string
	AssetWaitAttempts int
	AssetWaitDelay    time.Duration
	AssetMaxDimension int

	// Detection tool
	DetectorCommand        string
	DetectorArgs           []string
	DetectorTimeout        time.Duration
	DetectorMaxOutputBytes int

	// Annotation sink
	AnnotationSink string
	DatabaseDriver string
	DatabaseURL    string
	ContentAPIURL  string
	ContentDataDir string

	// Async execution. An empty DBOSDatabaseURL selects the local worker pool.
	DBOSDatabaseURL        string
	DBOSQueueName          string
	DBOSApplicationVersion string
	WorkerConcurrency      int
	WorkerQueueSize        int
}

// Load reads configuration from the environment, after loading .env if present
func Load() (Config, error) {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	var errs []error
	cfg := Config{
		HTTPAddr:               os.Getenv("WORKER_HTTP_ADDR"),
		AssetBaseDir:           os.Getenv("ASSET_BASE_DIR"),
		AssetWaitAttempts:      envInt("ASSET_WAIT_ATTEMPTS", &errs),
		AssetWaitDelay:         envDuration("ASSET_WAIT_DELAY", &errs),
		AssetMaxDimension:      envInt("ASSET_MAX_DIMENSION", &errs),
		DetectorCommand:        os.Getenv("DETECTOR_COMMAND"),
		DetectorArgs:           strings.Fields(os.Getenv("DETECTOR_ARGS")),
		DetectorTimeout:        envDuration("DETECTOR_TIMEOUT", &errs),
		DetectorMaxOutputBytes: envInt("DETECTOR_MAX_OUTPUT_BYTES", &errs),
		AnnotationSink:         strings.ToLower(os.Getenv("ANNOTATION_SINK")),
		DatabaseDriver:         strings.ToLower(os.Getenv("DATABASE_DRIVER")),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		ContentAPIURL:          os.Getenv("CONTENT_API_URL"),
		ContentDataDir:         os.Getenv("CONTENT_DATA_DIR"),
		DBOSDatabaseURL:        os.Getenv("DBOS_SYSTEM_DATABASE_URL"),
		DBOSQueueName:          os.Getenv("DBOS_QUEUE_NAME"),
		DBOSApplicationVersion: os.Getenv("DBOS_APPLICATION_VERSION"),
		WorkerConcurrency:      envInt("WORKER_CONCURRENCY", &errs),
		WorkerQueueSize:        envInt("WORKER_QUEUE_SIZE", &errs),
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if os.Getenv("ASSET_WAIT_ATTEMPTS") != "" && cfg.AssetWaitAttempts == 0 {
		cfg.AssetWaitAttempts = NoAssetRechecks
	}

	cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithDefaults fills in default values for optional fields
func (c *Config) WithDefaults() {
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8081"
	}
	if c.AssetBaseDir == "" {
		c.AssetBaseDir = "."
	}
	if c.AssetWaitAttempts == 0 {
		c.AssetWaitAttempts = 5
	}
	if c.AssetWaitDelay == 0 {
		c.AssetWaitDelay = 200 * time.Millisecond
	}
	if c.DetectorCommand == "" {
		c.DetectorCommand = "python3"
		if len(c.DetectorArgs) == 0 {
			c.DetectorArgs = []string{"AI/run_detection.py"}
		}
	}
	if c.DetectorTimeout == 0 {
		c.DetectorTimeout = 30 * time.Second
	}
	if c.DetectorMaxOutputBytes == 0 {
		c.DetectorMaxOutputBytes = 1 << 20
	}
	if c.AnnotationSink == "" {
		c.AnnotationSink = SinkSQL
	}
	if c.DatabaseDriver == "" {
		c.DatabaseDriver = "sqlite"
	}
	if c.DatabaseURL == "" && c.DatabaseDriver == "sqlite" {
		c.DatabaseURL = "annotator.db"
	}
	if c.ContentDataDir == "" {
		c.ContentDataDir = "./dev-data"
	}
	if c.DBOSQueueName == "" {
		c.DBOSQueueName = "default"
	}
	if c.WorkerConcurrency == 0 {
		c.WorkerConcurrency = 4
	}
	if c.WorkerQueueSize == 0 {
		c.WorkerQueueSize = 64
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	var errs []error

	if c.AssetWaitDelay < 0 {
		errs = append(errs, errors.New("ASSET_WAIT_DELAY must not be negative"))
	}
	if c.DetectorTimeout < 0 {
		errs = append(errs, errors.New("DETECTOR_TIMEOUT must not be negative"))
	}
	if c.WorkerConcurrency < 0 || c.WorkerQueueSize < 0 {
		errs = append(errs, errors.New("WORKER_CONCURRENCY and WORKER_QUEUE_SIZE must not be negative"))
	}

	switch c.AnnotationSink {
	case SinkSQL:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the sql sink"))
		}
	case SinkHTTP:
		if c.ContentAPIURL == "" {
			errs = append(errs, errors.New("CONTENT_API_URL is required for the http sink"))
		}
	case SinkSimpleContent:
	default:
		errs = append(errs, fmt.Errorf("unknown ANNOTATION_SINK %q", c.AnnotationSink))
	}

	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown DATABASE_DRIVER %q", c.DatabaseDriver))
	}

	return errors.Join(errs...)
}

// AssetRechecks returns how many times a missing asset is rechecked
func (c Config) AssetRechecks() int {
	return max(c.AssetWaitAttempts, 0)
}

// UseDBOS reports whether runs are queued on DBOS instead of the local pool
func (c Config) UseDBOS() bool {
	return c.DBOSDatabaseURL != ""
}

func envInt(key string, errs *[]error) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return 0
	}
	return n
}

func envDuration(key string, errs *[]error) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return 0
	}
	return d
}
