// Package metrics accumulates the counters and gauges SPEC_FULL.md's
// Metrics component names: NO_SPACE alarms, dirty-flush counts, and
// waiter-queue depth. It follows the atomic-counter-plus-snapshot shape of
// jontk-slurm-client's pkg/metrics, scaled down to the three signals this
// service actually produces.
package metrics

import "sync/atomic"

// Collector accumulates counters for the lifetime of a server process.
// All methods are safe for concurrent use.
type Collector struct {
	noSpaceAlarms int64
	dirtyFlushes  int64
}

// New returns a zeroed Collector.
func New() *Collector {
	return &Collector{}
}

// IncNoSpaceAlarm records one NO_SPACE result returned to a client.
func (c *Collector) IncNoSpaceAlarm() {
	atomic.AddInt64(&c.noSpaceAlarms, 1)
}

// IncDirtyFlush records one completed flush of at least one dirty name.
func (c *Collector) IncDirtyFlush() {
	atomic.AddInt64(&c.dirtyFlushes, 1)
}

// Stats is a point-in-time snapshot of the collector's counters, plus the
// waiter-queue-depth gauge supplied by the caller at snapshot time (the
// registry, not the collector, owns that count).
type Stats struct {
	NoSpaceAlarms    int64
	DirtyFlushes     int64
	WaiterQueueDepth int
}

// Snapshot reads the current counters and pairs them with
// waiterQueueDepth, the caller's current trigger.Registry.Len().
func (c *Collector) Snapshot(waiterQueueDepth int) Stats {
	return Stats{
		NoSpaceAlarms:    atomic.LoadInt64(&c.noSpaceAlarms),
		DirtyFlushes:     atomic.LoadInt64(&c.dirtyFlushes),
		WaiterQueueDepth: waiterQueueDepth,
	}
}
