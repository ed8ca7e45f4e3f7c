// Copyright 2024 The go-nano Authors
// This file is part of the go-nano library.
//
// The go-nano library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-nano library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-nano library. If not, see <http://www.gnu.org/licenses/>.

// Package metrics is a minimal counter/gauge registry; subsystems register
// metrics by slash-separated name at init and bump them on the hot paths.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Counter is a monotonically increasing event count.
type Counter struct {
	v atomic.Int64
}

func (c *Counter) Inc(delta int64) { c.v.Add(delta) }
func (c *Counter) Count() int64    { return c.v.Load() }

// Gauge is an instantaneous value.
type Gauge struct {
	v atomic.Int64
}

func (g *Gauge) Update(v int64) { g.v.Store(v) }
func (g *Gauge) Value() int64   { return g.v.Load() }

// Registry maps metric names to instruments.
type Registry struct {
	mu       sync.Mutex
	counters map[string]*Counter
	gauges   map[string]*Gauge
}

// DefaultRegistry is the process-wide registry.
var DefaultRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
	}
}

// Counter returns the named counter, creating it on first use.
func (r *Registry) Counter(name string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.counters[name]
	if !ok {
		c = &Counter{}
		r.counters[name] = c
	}
	return c
}

// Gauge returns the named gauge, creating it on first use.
func (r *Registry) Gauge(name string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.gauges[name]
	if !ok {
		g = &Gauge{}
		r.gauges[name] = g
	}
	return g
}

// Each walks all instruments in name order; used by status dumps.
func (r *Registry) Each(fn func(name string, value int64)) {
	r.mu.Lock()
	snapshot := make(map[string]int64, len(r.counters)+len(r.gauges))
	for n, c := range r.counters {
		snapshot[n] = c.Count()
	}
	for n, g := range r.gauges {
		snapshot[n] = g.Value()
	}
	r.mu.Unlock()
	names := make([]string, 0, len(snapshot))
	for n := range snapshot {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fn(n, snapshot[n])
	}
}

// NewRegisteredCounter fetches a counter from the default registry.
func NewRegisteredCounter(name string) *Counter {
	return DefaultRegistry.Counter(name)
}

// NewRegisteredGauge fetches a gauge from the default registry.
func NewRegisteredGauge(name string) *Gauge {
	return DefaultRegistry.Gauge(name)
}
