package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/gatherly/pushpipe/internal/domain"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only PARTITION_DSNS is required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Regional partitions: ordered list of id=dsn pairs. Declaration order
	// is the router's probe order; DefaultPartition must be one of the
	// declared ids.
	Partitions       []Partition
	DefaultPartition domain.PartitionID
	DBMaxConns       int32
	DBMinConns       int32

	// Push provider
	ProviderBaseURL string
	ProviderTimeout time.Duration
	ProviderRate    int // provider calls per second
	ChunkSize       int
	ChunkDelay      time.Duration
	ReceiptDelay    time.Duration

	// Queue semantics
	DedupWindow   time.Duration
	StaleAfter    time.Duration
	MaxAttempts   int
	DrainBatch    int
	SweepInterval time.Duration
	SweepBudget   time.Duration

	// Idempotency lock retention. Zero keeps locks forever.
	LockTTL time.Duration

	// Circuit breaker (direct send path)
	BreakerWindow  time.Duration
	BreakerMaxSize int

	// Legacy notify endpoint shared secret. Empty disables the endpoint.
	LegacySecret string
}

// Partition pairs a partition id with its database DSN.
type Partition struct {
	ID  domain.PartitionID
	DSN string
}

func Load() (*Config, error) {
	// Best-effort: a missing .env file is the normal production case.
	_ = godotenv.Load()

	partitions, err := parsePartitions(os.Getenv("PARTITION_DSNS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 15*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		Partitions:       partitions,
		DefaultPartition: domain.PartitionID(getEnv("DEFAULT_PARTITION", string(partitions[0].ID))),
		DBMaxConns:       int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:       int32(getInt("DB_MIN_CONNS", 2)),

		ProviderBaseURL: getEnv("PROVIDER_BASE_URL", "https://exp.host/--/api/v2/push"),
		ProviderTimeout: getDuration("PROVIDER_TIMEOUT", 10*time.Second),
		ProviderRate:    getInt("PROVIDER_RATE_PER_SEC", 10),
		ChunkSize:       getInt("PUSH_CHUNK_SIZE", 100),
		ChunkDelay:      getDuration("PUSH_CHUNK_DELAY", 250*time.Millisecond),
		ReceiptDelay:    getDuration("RECEIPT_DELAY", 15*time.Second),

		DedupWindow:   getDuration("DEDUP_WINDOW", 2*time.Minute),
		StaleAfter:    getDuration("JOB_STALE_AFTER", 24*time.Hour),
		MaxAttempts:   getInt("JOB_MAX_ATTEMPTS", 5),
		DrainBatch:    getInt("DRAIN_BATCH_SIZE", 10),
		SweepInterval: getDuration("SWEEP_INTERVAL", time.Minute),
		SweepBudget:   getDuration("SWEEP_BUDGET", 50*time.Second),

		LockTTL: getDuration("LOCK_TTL", 720*time.Hour),

		BreakerWindow:  getDuration("BREAKER_WINDOW", 10*time.Second),
		BreakerMaxSize: getInt("BREAKER_MAX_SIZE", 1000),

		LegacySecret: os.Getenv("LEGACY_NOTIFY_SECRET"),
	}

	if !cfg.hasPartition(cfg.DefaultPartition) {
		return nil, fmt.Errorf("DEFAULT_PARTITION %q is not in PARTITION_DSNS", cfg.DefaultPartition)
	}
	if cfg.ChunkSize < 1 {
		return nil, fmt.Errorf("PUSH_CHUNK_SIZE must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.ProviderRate < 1 {
		return nil, fmt.Errorf("PROVIDER_RATE_PER_SEC must be positive, got %d", cfg.ProviderRate)
	}
	if cfg.DrainBatch < 1 {
		return nil, fmt.Errorf("DRAIN_BATCH_SIZE must be positive, got %d", cfg.DrainBatch)
	}
	return cfg, nil
}

func (c *Config) hasPartition(id domain.PartitionID) bool {
	for _, p := range c.Partitions {
		if p.ID == id {
			return true
		}
	}
	return false
}

// parsePartitions parses "us=postgres://...,eu=postgres://...".
func parsePartitions(raw string) ([]Partition, error) {
	if raw == "" {
		return nil, fmt.Errorf("PARTITION_DSNS is required (format: id=dsn,id=dsn)")
	}

	var out []Partition
	seen := map[string]bool{}
	for _, entry := range strings.Split(raw, ",") {
		id, dsn, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || id == "" || dsn == "" {
			return nil, fmt.Errorf("malformed PARTITION_DSNS entry %q", entry)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate partition id %q", id)
		}
		seen[id] = true
		out = append(out, Partition{ID: domain.PartitionID(id), DSN: dsn})
	}
	return out, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
