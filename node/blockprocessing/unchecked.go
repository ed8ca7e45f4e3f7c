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

package blockprocessing

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/nanocurrency/go-nano/common"
	"github.com/nanocurrency/go-nano/core/types"
	"github.com/nanocurrency/go-nano/metrics"
)

// DefaultUncheckedMax bounds the total number of dependency keys held.
const DefaultUncheckedMax = 65536

// maxPerKey bounds how many distinct blocks wait on one dependency.
const maxPerKey = 64

// UncheckedMap buffers blocks whose dependencies are not yet satisfied,
// keyed by the missing hash (or account, for epoch opens waiting on a
// pending entry). Capacity-bounded; the stalest key is evicted first.
type UncheckedMap struct {
	mu      sync.Mutex
	entries *lru.Cache

	// satisfied receives the freed blocks on Trigger; the block processor
	// installs it to re-enqueue them.
	satisfied func(types.Block)

	putCounter     *metrics.Counter
	triggerCounter *metrics.Counter
	sizeGauge      *metrics.Gauge
}

// NewUncheckedMap builds a map bounded to maxKeys dependency keys.
func NewUncheckedMap(maxKeys int) *UncheckedMap {
	if maxKeys <= 0 {
		maxKeys = DefaultUncheckedMax
	}
	cache, err := lru.New(maxKeys)
	if err != nil {
		panic(err)
	}
	return &UncheckedMap{
		entries:        cache,
		putCounter:     metrics.NewRegisteredCounter("unchecked/put"),
		triggerCounter: metrics.NewRegisteredCounter("unchecked/trigger"),
		sizeGauge:      metrics.NewRegisteredGauge("unchecked/keys"),
	}
}

// SetSatisfiedHandler installs the re-enqueue callback.
func (u *UncheckedMap) SetSatisfiedHandler(fn func(types.Block)) {
	u.mu.Lock()
	u.satisfied = fn
	u.mu.Unlock()
}

// Put parks a block under its missing dependency.
func (u *UncheckedMap) Put(key common.HashOrAccount, block types.Block) {
	u.mu.Lock()
	defer u.mu.Unlock()
	var waiting []types.Block
	if v, ok := u.entries.Get(key); ok {
		waiting = v.([]types.Block)
	}
	hash := block.Hash()
	for _, w := range waiting {
		if w.Hash() == hash {
			return
		}
	}
	if len(waiting) >= maxPerKey {
		return
	}
	u.entries.Add(key, append(waiting, block))
	u.putCounter.Inc(1)
	u.sizeGauge.Update(int64(u.entries.Len()))
}

// Trigger releases every block waiting on key into the satisfied handler
// and clears the key. Triggering an absent key is a no-op, which makes it
// idempotent.
func (u *UncheckedMap) Trigger(key common.HashOrAccount) {
	u.mu.Lock()
	v, ok := u.entries.Get(key)
	if ok {
		u.entries.Remove(key)
	}
	handler := u.satisfied
	u.sizeGauge.Update(int64(u.entries.Len()))
	u.mu.Unlock()
	if !ok || handler == nil {
		return
	}
	u.triggerCounter.Inc(1)
	for _, b := range v.([]types.Block) {
		handler(b)
	}
}

// Len reports the number of dependency keys held.
func (u *UncheckedMap) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.entries.Len()
}
