package config_test

import (
	"testing"

	"github.com/gatherly/pushpipe/internal/config"
)

func TestLoad_ParsesPartitions(t *testing.T) {
	t.Setenv("PARTITION_DSNS", "us=postgres://u:p@us-db/app,eu=postgres://u:p@eu-db/app")

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Partitions) != 2 {
		t.Fatalf("expected 2 partitions, got %d", len(cfg.Partitions))
	}
	if cfg.Partitions[0].ID != "us" || cfg.Partitions[1].ID != "eu" {
		t.Fatalf("declaration order not preserved: %+v", cfg.Partitions)
	}
	// First declared partition is the default when none is named.
	if cfg.DefaultPartition != "us" {
		t.Fatalf("expected default partition us, got %s", cfg.DefaultPartition)
	}
}

func TestLoad_RejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"missing partitions", map[string]string{}},
		{"malformed entry", map[string]string{
			"PARTITION_DSNS": "us=dsn,garbage",
		}},
		{"duplicate partition id", map[string]string{
			"PARTITION_DSNS": "us=dsn1,us=dsn2",
		}},
		{"unknown default partition", map[string]string{
			"PARTITION_DSNS":    "us=dsn",
			"DEFAULT_PARTITION": "mars",
		}},
		{"zero chunk size", map[string]string{
			"PARTITION_DSNS":  "us=dsn",
			"PUSH_CHUNK_SIZE": "0",
		}},
		{"negative provider rate", map[string]string{
			"PARTITION_DSNS":        "us=dsn",
			"PROVIDER_RATE_PER_SEC": "-1",
		}},
		{"zero drain batch", map[string]string{
			"PARTITION_DSNS":   "us=dsn",
			"DRAIN_BATCH_SIZE": "0",
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("PARTITION_DSNS", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := config.Load(); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}
