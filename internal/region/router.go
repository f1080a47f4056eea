package region

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gatherly/pushpipe/internal/domain"
	"github.com/gatherly/pushpipe/internal/store"
)

// countryPartitions is the static country -> partition lookup table.
// Countries not listed here land in the default partition.
var countryPartitions = map[string]domain.PartitionID{
	"US": "us", "CA": "us", "MX": "us", "BR": "us",
	"GB": "eu", "IE": "eu", "DE": "eu", "FR": "eu", "ES": "eu",
	"IT": "eu", "NL": "eu", "SE": "eu", "PL": "eu",
	"JP": "ap", "KR": "ap", "SG": "ap", "AU": "ap", "NZ": "ap", "IN": "ap",
}

// Router resolves which regional partition owns an event or should receive
// a new one. Resolution by event id consults the routing index first
// (populated at event creation); the sequential full-partition probe is the
// degraded fallback for events created before the index existed.
//
// Results are not cached here; callers needing repeated resolution should
// cache at a higher layer.
type Router struct {
	stores *store.Registry
	logger *zap.Logger
}

func NewRouter(stores *store.Registry, logger *zap.Logger) *Router {
	return &Router{stores: stores, logger: logger}
}

// ResolveByCountry returns the partition serving a country code, or the
// default partition for unknown countries. A mapped partition that is not
// actually configured also falls back to the default.
func (r *Router) ResolveByCountry(country string) domain.PartitionID {
	if p, ok := countryPartitions[country]; ok {
		if _, configured := r.stores.Get(p); configured {
			return p
		}
	}
	return r.stores.DefaultID()
}

// ResolveByEventID returns the partition holding the event. An index miss
// triggers a sequential probe of every partition in fixed order; if nothing
// matches, the default partition is returned with a warning. A missing
// event is a soft failure here, never an error.
func (r *Router) ResolveByEventID(ctx context.Context, eventID string) (domain.PartitionID, error) {
	if p, err := r.stores.Default().Routes.Lookup(ctx, eventID); err == nil {
		return p, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("routing index lookup: %w", err)
	}

	for _, id := range r.stores.Order() {
		part, _ := r.stores.Get(id)
		found, err := part.Events.Exists(ctx, eventID)
		if err != nil {
			return "", fmt.Errorf("probe partition %s: %w", id, err)
		}
		if found {
			return id, nil
		}
	}

	r.logger.Warn("event not found in any partition, using default",
		zap.String("event_id", eventID),
		zap.String("partition", string(r.stores.DefaultID())))
	return r.stores.DefaultID(), nil
}

// Register creates the event in its country's partition and populates the
// routing index so later resolutions skip the probe.
func (r *Router) Register(ctx context.Context, e *domain.Event) (domain.PartitionID, error) {
	pid := r.ResolveByCountry(e.Country)
	part, ok := r.stores.Get(pid)
	if !ok {
		return "", domain.ErrUnknownPartition
	}

	if err := part.Events.Insert(ctx, e); err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}
	if err := r.stores.Default().Routes.Put(ctx, e.ID, pid); err != nil {
		// The probe fallback still finds the event; log and continue.
		r.logger.Warn("failed to populate routing index",
			zap.String("event_id", e.ID), zap.Error(err))
	}
	return pid, nil
}
