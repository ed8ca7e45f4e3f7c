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

// Package consensus holds the election surface: the vote cache for early
// votes, per-root elections, the active-election manager and the online
// representative tracker.
package consensus

import (
	"container/list"
	"sync"
	"time"

	"github.com/nanocurrency/go-nano/common"
	"github.com/nanocurrency/go-nano/core/types"
	"github.com/nanocurrency/go-nano/metrics"
	"golang.org/x/exp/slices"
)

// VoteCacheConfig bounds the cache.
type VoteCacheConfig struct {
	MaxSize   int
	MaxVoters int
	AgeCutoff time.Duration
}

// DefaultVoteCacheConfig mirrors the deployed defaults.
func DefaultVoteCacheConfig() VoteCacheConfig {
	return VoteCacheConfig{
		MaxSize:   128 * 1024,
		MaxVoters: 128,
		AgeCutoff: 5 * time.Minute,
	}
}

// VoterEntry is one representative's latest vote on a cached hash.
type VoterEntry struct {
	Representative common.Account
	Timestamp      uint64
}

// CacheEntry accumulates votes for one block hash that has no active
// election yet.
type CacheEntry struct {
	Hash       common.Hash
	Voters     []VoterEntry
	Tally      common.Amount
	FinalTally common.Amount

	lastVote time.Time
	elem     *list.Element
}

func (e *CacheEntry) vote(rep common.Account, timestamp uint64, weight common.Amount, maxVoters int, now time.Time) bool {
	for i := range e.Voters {
		if e.Voters[i].Representative != rep {
			continue
		}
		// Same rep again: only a strictly newer timestamp counts, and the
		// weight stays counted once in the running tally.
		if timestamp <= e.Voters[i].Timestamp {
			return false
		}
		e.Voters[i].Timestamp = timestamp
		if timestamp == types.FinalVoteTimestamp {
			// Wrapping add: transient over-counts during weight refresh are
			// tolerated here; elections re-tally from the weight index, so
			// only cache ordering can be briefly off. Revisit once the
			// weight update order provably preserves the invariant.
			e.FinalTally = e.FinalTally.Add(weight)
		}
		e.lastVote = now
		return true
	}
	if len(e.Voters) >= maxVoters {
		return false
	}
	e.Voters = append(e.Voters, VoterEntry{Representative: rep, Timestamp: timestamp})
	e.Tally = e.Tally.Add(weight)
	if timestamp == types.FinalVoteTimestamp {
		e.FinalTally = e.FinalTally.Add(weight)
	}
	e.lastVote = now
	return true
}

// TopEntry is a tally summary returned by Top.
type TopEntry struct {
	Hash       common.Hash
	Tally      common.Amount
	FinalTally common.Amount
}

// VoteCache holds votes for blocks with no active election, bounded in
// size with oldest-inserted eviction.
type VoteCache struct {
	mu     sync.Mutex
	cfg    VoteCacheConfig
	byHash map[common.Hash]*CacheEntry
	// order tracks insertion order for eviction; front is oldest.
	order       *list.List
	lastCleanup time.Time

	// now is overridable for deterministic tests.
	now func() time.Time

	insertCounter  *metrics.Counter
	updateCounter  *metrics.Counter
	cleanupCounter *metrics.Counter
}

// NewVoteCache builds an empty cache.
func NewVoteCache(cfg VoteCacheConfig) *VoteCache {
	return &VoteCache{
		cfg:            cfg,
		byHash:         make(map[common.Hash]*CacheEntry),
		order:          list.New(),
		now:            time.Now,
		lastCleanup:    time.Now(),
		insertCounter:  metrics.NewRegisteredCounter("votecache/insert"),
		updateCounter:  metrics.NewRegisteredCounter("votecache/update"),
		cleanupCounter: metrics.NewRegisteredCounter("votecache/cleanup"),
	}
}

// Observe records one (hash, rep, timestamp) observation with the rep's
// weight at observation time.
func (c *VoteCache) Observe(hash common.Hash, rep common.Account, timestamp uint64, weight common.Amount) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if e, ok := c.byHash[hash]; ok {
		if e.vote(rep, timestamp, weight, c.cfg.MaxVoters, now) {
			c.updateCounter.Inc(1)
		}
		return
	}
	c.insertCounter.Inc(1)
	e := &CacheEntry{Hash: hash, lastVote: now}
	e.vote(rep, timestamp, weight, c.cfg.MaxVoters, now)
	e.elem = c.order.PushBack(e)
	c.byHash[hash] = e
	if c.order.Len() > c.cfg.MaxSize {
		oldest := c.order.Front().Value.(*CacheEntry)
		c.removeLocked(oldest)
	}
}

// ObserveVote fans a whole vote message into the cache.
func (c *VoteCache) ObserveVote(v *types.Vote, weightOf func(common.Account) common.Amount) {
	w := weightOf(v.VotingAccount)
	for _, h := range v.Hashes {
		c.Observe(h, v.VotingAccount, v.Timestamp, w)
	}
}

// Find returns a snapshot of the entry for hash.
func (c *VoteCache) Find(hash common.Hash) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byHash[hash]
	if !ok {
		return CacheEntry{}, false
	}
	snapshot := CacheEntry{
		Hash:       e.Hash,
		Voters:     append([]VoterEntry(nil), e.Voters...),
		Tally:      e.Tally,
		FinalTally: e.FinalTally,
	}
	return snapshot, true
}

// Erase drops the entry for hash; returns whether it existed.
func (c *VoteCache) Erase(hash common.Hash) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byHash[hash]
	if ok {
		c.removeLocked(e)
	}
	return ok
}

// Top returns entries with tally >= minTally ordered by final tally then
// tally, descending. Stale entries are swept at most once per half
// age-cutoff.
func (c *VoteCache) Top(minTally common.Amount) []TopEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if now.Sub(c.lastCleanup) >= c.cfg.AgeCutoff/2 {
		c.cleanupLocked(now)
		c.lastCleanup = now
	}
	results := make([]TopEntry, 0, len(c.byHash))
	for _, e := range c.byHash {
		if e.Tally.Cmp(minTally) < 0 {
			continue
		}
		results = append(results, TopEntry{Hash: e.Hash, Tally: e.Tally, FinalTally: e.FinalTally})
	}
	slices.SortFunc(results, func(a, b TopEntry) int {
		if cmp := b.FinalTally.Cmp(a.FinalTally); cmp != 0 {
			return cmp
		}
		return b.Tally.Cmp(a.Tally)
	})
	return results
}

// Len reports the number of cached hashes.
func (c *VoteCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byHash)
}

// Empty reports whether the cache holds nothing.
func (c *VoteCache) Empty() bool { return c.Len() == 0 }

func (c *VoteCache) removeLocked(e *CacheEntry) {
	c.order.Remove(e.elem)
	delete(c.byHash, e.Hash)
}

func (c *VoteCache) cleanupLocked(now time.Time) {
	c.cleanupCounter.Inc(1)
	for _, e := range c.byHash {
		if now.Sub(e.lastVote) >= c.cfg.AgeCutoff {
			c.removeLocked(e)
		}
	}
}
