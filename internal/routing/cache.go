package routing

import (
	"time"

	"github.com/loopnet/routingctl/internal/metrics"
	"github.com/loopnet/routingctl/internal/topology"
)

// Cache wraps ComputeTables with structural-equality suppression: two
// consecutive recomputes against an unchanged effective topology report
// no change, so the driver can skip the broadcast and the log line
// (spec §4.2, §8 "Caching idempotence").
type Cache struct {
	key    string
	tables map[int][]Route
}

// Update recomputes routing tables if the effective topology's key
// differs from the last one cached. It returns the (possibly cached)
// tables and whether this call produced a new computation.
func (c *Cache) Update(eff *topology.Effective, n int) (tables map[int][]Route, changed bool) {
	key := eff.Key()
	if c.tables != nil && key == c.key {
		return c.tables, false
	}
	start := time.Now()
	c.key = key
	c.tables = ComputeTables(eff, n)
	metrics.RoutingComputeDuration.Observe(time.Since(start).Seconds())
	return c.tables, true
}
