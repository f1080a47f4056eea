package region_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/gatherly/pushpipe/internal/domain"
	"github.com/gatherly/pushpipe/internal/region"
	"github.com/gatherly/pushpipe/internal/store"
)

func newRouter() (*region.Router, map[domain.PartitionID]*store.MockPartition) {
	mocks := map[domain.PartitionID]*store.MockPartition{
		"us": store.NewMockPartition(),
		"eu": store.NewMockPartition(),
		"ap": store.NewMockPartition(),
	}
	reg := store.NewRegistry("us")
	for _, id := range []domain.PartitionID{"us", "eu", "ap"} {
		reg.Add(id, mocks[id].Bundle())
	}
	return region.NewRouter(reg, zap.NewNop()), mocks
}

func TestRouter_ResolveByCountry(t *testing.T) {
	r, _ := newRouter()

	tests := []struct {
		country string
		want    domain.PartitionID
	}{
		{"DE", "eu"},
		{"JP", "ap"},
		{"US", "us"},
		{"ZZ", "us"}, // unknown country falls back to default
		{"", "us"},
	}
	for _, tc := range tests {
		if got := r.ResolveByCountry(tc.country); got != tc.want {
			t.Errorf("ResolveByCountry(%q) = %s, want %s", tc.country, got, tc.want)
		}
	}
}

func TestRouter_ResolveByEventID_IndexHit(t *testing.T) {
	r, mocks := newRouter()
	ctx := context.Background()

	// Index lives in the default partition.
	_ = mocks["us"].Routes.Put(ctx, "evt1", "eu")

	got, err := r.ResolveByEventID(ctx, "evt1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "eu" {
		t.Fatalf("expected eu, got %s", got)
	}
}

func TestRouter_ResolveByEventID_ProbeFallback(t *testing.T) {
	r, mocks := newRouter()
	ctx := context.Background()

	// No index entry; only the ap partition holds the event.
	_ = mocks["ap"].Events.Insert(ctx, &domain.Event{ID: "evt2", Country: "JP", CreatedAt: time.Now()})

	got, err := r.ResolveByEventID(ctx, "evt2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ap" {
		t.Fatalf("expected ap via probe, got %s", got)
	}
}

func TestRouter_ResolveByEventID_SoftFailDefault(t *testing.T) {
	r, _ := newRouter()

	got, err := r.ResolveByEventID(context.Background(), "missing-event")
	if err != nil {
		t.Fatalf("missing event must be a soft failure, got error: %v", err)
	}
	if got != "us" {
		t.Fatalf("expected default partition us, got %s", got)
	}
}

func TestRouter_Register_PopulatesIndex(t *testing.T) {
	r, mocks := newRouter()
	ctx := context.Background()

	pid, err := r.Register(ctx, &domain.Event{ID: "evt3", Country: "FR", CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pid != "eu" {
		t.Fatalf("expected eu, got %s", pid)
	}

	if exists, _ := mocks["eu"].Events.Exists(ctx, "evt3"); !exists {
		t.Fatal("event row not created in eu partition")
	}
	if got, err := mocks["us"].Routes.Lookup(ctx, "evt3"); err != nil || got != "eu" {
		t.Fatalf("routing index not populated: got %s, err %v", got, err)
	}
}
