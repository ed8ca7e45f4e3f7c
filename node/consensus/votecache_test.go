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

package consensus

import (
	"testing"
	"time"

	"github.com/nanocurrency/go-nano/common"
	"github.com/nanocurrency/go-nano/core/types"
	"github.com/stretchr/testify/require"
)

func rep(tag byte) common.Account {
	var a common.Account
	a[0] = tag
	return a
}

func hash(tag byte) common.Hash {
	var h common.Hash
	h[0] = tag
	return h
}

func newTestCache(maxSize int) (*VoteCache, *time.Time) {
	cfg := DefaultVoteCacheConfig()
	cfg.MaxSize = maxSize
	cfg.MaxVoters = 4
	c := NewVoteCache(cfg)
	now := time.Unix(1700000000, 0)
	c.now = func() time.Time { return now }
	c.lastCleanup = now
	return c, &now
}

func TestVoteCacheInsertAndTally(t *testing.T) {
	c, _ := newTestCache(16)
	c.Observe(hash(1), rep(1), 100, common.NewAmount(10))
	c.Observe(hash(1), rep(2), 100, common.NewAmount(20))

	entry, ok := c.Find(hash(1))
	require.True(t, ok)
	require.Len(t, entry.Voters, 2)
	require.Equal(t, common.NewAmount(30), entry.Tally)
	require.True(t, entry.FinalTally.IsZero())
}

func TestVoteCacheTimestampRules(t *testing.T) {
	c, _ := newTestCache(16)
	c.Observe(hash(1), rep(1), 100, common.NewAmount(10))
	// Stale and equal timestamps are ignored.
	c.Observe(hash(1), rep(1), 99, common.NewAmount(10))
	c.Observe(hash(1), rep(1), 100, common.NewAmount(10))

	entry, _ := c.Find(hash(1))
	require.Equal(t, common.NewAmount(10), entry.Tally)
	require.Equal(t, uint64(100), entry.Voters[0].Timestamp)

	// A newer timestamp updates in place without double counting.
	c.Observe(hash(1), rep(1), 200, common.NewAmount(10))
	entry, _ = c.Find(hash(1))
	require.Equal(t, common.NewAmount(10), entry.Tally)
	require.Equal(t, uint64(200), entry.Voters[0].Timestamp)

	// Upgrading to a final vote adds to the final tally even though the
	// weight is already in the running tally.
	c.Observe(hash(1), rep(1), types.FinalVoteTimestamp, common.NewAmount(10))
	entry, _ = c.Find(hash(1))
	require.Equal(t, common.NewAmount(10), entry.Tally)
	require.Equal(t, common.NewAmount(10), entry.FinalTally)
}

func TestVoteCacheMaxVoters(t *testing.T) {
	c, _ := newTestCache(16)
	for i := byte(0); i < 6; i++ {
		c.Observe(hash(1), rep(i+1), 100, common.NewAmount(1))
	}
	entry, _ := c.Find(hash(1))
	require.Len(t, entry.Voters, 4)
	require.Equal(t, common.NewAmount(4), entry.Tally)
}

func TestVoteCacheEvictsOldestWhenFull(t *testing.T) {
	c, _ := newTestCache(2)
	c.Observe(hash(1), rep(1), 100, common.NewAmount(1))
	c.Observe(hash(2), rep(1), 100, common.NewAmount(1))
	c.Observe(hash(3), rep(1), 100, common.NewAmount(1))

	require.Equal(t, 2, c.Len())
	_, ok := c.Find(hash(1))
	require.False(t, ok, "oldest entry is evicted first")
	_, ok = c.Find(hash(3))
	require.True(t, ok)
}

func TestVoteCacheTopOrdering(t *testing.T) {
	c, _ := newTestCache(16)
	c.Observe(hash(1), rep(1), 100, common.NewAmount(10))
	c.Observe(hash(2), rep(2), types.FinalVoteTimestamp, common.NewAmount(5))
	c.Observe(hash(3), rep(3), 100, common.NewAmount(50))

	top := c.Top(common.NewAmount(1))
	require.Len(t, top, 3)
	// Final tally dominates the ordering, then the running tally.
	require.Equal(t, hash(2), top[0].Hash)
	require.Equal(t, hash(3), top[1].Hash)
	require.Equal(t, hash(1), top[2].Hash)

	filtered := c.Top(common.NewAmount(20))
	require.Len(t, filtered, 1)
	require.Equal(t, hash(3), filtered[0].Hash)
}

func TestVoteCacheAgeCleanup(t *testing.T) {
	c, now := newTestCache(16)
	c.Observe(hash(1), rep(1), 100, common.NewAmount(1))

	// Advance past the cutoff; Top sweeps the stale entry.
	*now = now.Add(6 * time.Minute)
	top := c.Top(common.Amount{})
	require.Empty(t, top)
	require.Equal(t, 0, c.Len())
}

func TestVoteCacheErase(t *testing.T) {
	c, _ := newTestCache(16)
	c.Observe(hash(1), rep(1), 100, common.NewAmount(1))
	require.True(t, c.Erase(hash(1)))
	require.False(t, c.Erase(hash(1)))
	require.True(t, c.Empty())
}
