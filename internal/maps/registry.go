package maps

import (
	"slices"

	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/samber/lo"

	"expiring-kv/internal/clock"
	"expiring-kv/internal/config"
	"expiring-kv/internal/logs"
	"expiring-kv/internal/metrics"
	"expiring-kv/internal/store"
)

// Registry hands out one Store per map name, created on first use from
// the map's configuration.
type Registry struct {
	stores  cmap.ConcurrentMap[string, *store.Store]
	cfg     config.Config
	clock   clock.Clock
	metrics *metrics.Registry
	logger  *logs.Logger
}

func NewRegistry(
	cfg config.Config,
	clk clock.Clock,
	metricsRegistry *metrics.Registry,
	logger *logs.Logger,
) *Registry {
	return &Registry{
		stores:  cmap.New[*store.Store](),
		cfg:     cfg,
		clock:   clk,
		metrics: metricsRegistry,
		logger:  logger.With("maps"),
	}
}

// Map returns the store for name, creating it if needed.
func (r *Registry) Map(name string) *store.Store {
	if st, ok := r.stores.Get(name); ok {
		return st
	}

	// Upsert runs under the bucket lock, so concurrent callers agree on one store.
	return r.stores.Upsert(name, nil, func(exist bool, inMap, _ *store.Store) *store.Store {
		if exist {
			return inMap
		}
		mc := r.cfg.ForMap(name)
		r.metrics.Inc(metrics.MapsTotal)
		r.logger.Info("map created",
			"map", name,
			"max_idle", mc.MaxIdle.String(),
			"default_ttl", mc.DefaultTTL.String(),
			"shards", mc.Shards,
		)
		return store.NewStore(name, mc, r.clock, r.metrics)
	})
}

// Lookup returns an existing store without creating one.
func (r *Registry) Lookup(name string) (*store.Store, bool) {
	return r.stores.Get(name)
}

// Drop clears and forgets a map.
func (r *Registry) Drop(name string) bool {
	st, ok := r.stores.Pop(name)
	if !ok {
		return false
	}
	st.Close()
	r.metrics.Add(metrics.MapsTotal, -1)
	r.logger.Info("map dropped", "map", name)
	return true
}

// Names returns the map names in sorted order.
func (r *Registry) Names() []string {
	names := r.stores.Keys()
	slices.Sort(names)
	return names
}

// Stores returns the stores ordered by map name.
func (r *Registry) Stores() []*store.Store {
	items := r.stores.Items()
	names := lo.Keys(items)
	slices.Sort(names)
	return lo.Map(names, func(name string, _ int) *store.Store {
		return items[name]
	})
}

// Sizes maps each name to its record count.
func (r *Registry) Sizes() map[string]int {
	return lo.MapValues(r.stores.Items(), func(st *store.Store, _ string) int {
		return st.Len()
	})
}
