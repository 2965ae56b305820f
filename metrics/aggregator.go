// File: metrics/aggregator.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runtime metrics aggregation for toolkit components. Components
// register named sources; a snapshot walks every source and flattens
// the results into a single keyed map suitable for export.

package metrics

import (
	"sync"
	"time"
)

// Source produces a point-in-time set of gauge values.
type Source func() map[string]float64

// Aggregator holds counters set directly plus registered sources,
// both readable as one merged snapshot.
type Aggregator struct {
	mu      sync.RWMutex
	gauges  map[string]float64
	sources map[string]Source
	updated time.Time
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		gauges:  make(map[string]float64),
		sources: make(map[string]Source),
	}
}

// Set sets or updates a gauge directly.
func (a *Aggregator) Set(key string, value float64) {
	a.mu.Lock()
	a.gauges[key] = value
	a.updated = time.Now()
	a.mu.Unlock()
}

// Add increments a gauge by delta.
func (a *Aggregator) Add(key string, delta float64) {
	a.mu.Lock()
	a.gauges[key] += delta
	a.updated = time.Now()
	a.mu.Unlock()
}

// Register attaches a named source; its values appear in snapshots
// prefixed with "name.". Re-registering a name replaces the source.
func (a *Aggregator) Register(name string, src Source) {
	a.mu.Lock()
	a.sources[name] = src
	a.mu.Unlock()
}

// Unregister removes a named source.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	delete(a.sources, name)
	a.mu.Unlock()
}

// Snapshot merges direct gauges with every source's current values.
// Sources are invoked outside the aggregator lock so a slow source
// cannot stall writers.
func (a *Aggregator) Snapshot() map[string]float64 {
	a.mu.RLock()
	out := make(map[string]float64, len(a.gauges))
	for k, v := range a.gauges {
		out[k] = v
	}
	sources := make(map[string]Source, len(a.sources))
	for name, src := range a.sources {
		sources[name] = src
	}
	a.mu.RUnlock()

	for name, src := range sources {
		for k, v := range src() {
			out[name+"."+k] = v
		}
	}
	return out
}

// Updated reports when a gauge was last written directly.
func (a *Aggregator) Updated() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.updated
}
