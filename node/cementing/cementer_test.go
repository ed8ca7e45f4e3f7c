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

package cementing

import (
	"testing"
	"time"

	"github.com/nanocurrency/go-nano/common"
	"github.com/nanocurrency/go-nano/core/types"
	"github.com/nanocurrency/go-nano/crypto"
	"github.com/nanocurrency/go-nano/ledger"
	"github.com/nanocurrency/go-nano/params"
	"github.com/nanocurrency/go-nano/store"
	"github.com/stretchr/testify/require"
)

func testKey(tag byte) crypto.PrivateKey {
	var seed [32]byte
	seed[0] = tag
	seed[31] = 0x66
	return crypto.NewPrivateKey(seed)
}

func signState(b *types.StateBlock, k crypto.PrivateKey) *types.StateBlock {
	h := b.Hash()
	b.SetSignature(k.Sign(h[:]))
	return b
}

func apply(t *testing.T, l *ledger.Ledger, b types.Block) {
	t.Helper()
	txn, err := l.Store.BeginWrite()
	require.NoError(t, err)
	require.Equal(t, ledger.Progress, l.Process(txn, b), "block %s", b.Hash())
	require.NoError(t, txn.Commit())
}

// buildCrossAccountChains applies G→S1→S2→S3 (sends to A) and A's chain
// O(=receive S1)→R2(=receive S2)→R3(=receive S3).
func buildCrossAccountChains(t *testing.T, l *ledger.Ledger) (sends, recvs []*types.StateBlock) {
	t.Helper()
	a := testKey(1)
	genesis := l.Net.GenesisAccount
	gKey := l.Net.GenesisKey

	prev := l.GenesisBlock().Hash()
	balance := common.MaxAmount
	for i := 0; i < 3; i++ {
		balance = balance.Sub(common.NewAmount(100))
		send := signState(&types.StateBlock{
			Account:        genesis,
			PreviousHash:   prev,
			Representative: genesis,
			Balance:        balance,
			Link:           a.PublicKey().ToLink(),
		}, gKey)
		apply(t, l, send)
		sends = append(sends, send)
		prev = send.Hash()
	}

	aPrev := common.ZeroHash
	aBalance := common.Amount{}
	for i := 0; i < 3; i++ {
		aBalance = aBalance.Add(common.NewAmount(100))
		recv := signState(&types.StateBlock{
			Account:        a.PublicKey(),
			PreviousHash:   aPrev,
			Representative: a.PublicKey(),
			Balance:        aBalance,
			Link:           sends[i].Hash().ToAccount().ToLink(),
		}, a)
		apply(t, l, recv)
		recvs = append(recvs, recv)
		aPrev = recv.Hash()
	}
	return sends, recvs
}

func testCementer(t *testing.T, cfg Config) (*Cementer, *ledger.Ledger, chan common.Hash, chan common.Hash) {
	t.Helper()
	s := store.NewMemoryStore()
	l, err := ledger.NewLedger(s, params.DevNetwork())
	require.NoError(t, err)
	c := New(cfg, l)
	cemented := make(chan common.Hash, 256)
	already := make(chan common.Hash, 16)
	c.SubscribeCemented(cemented)
	c.SubscribeAlreadyCemented(already)
	return c, l, cemented, already
}

func collectCemented(t *testing.T, ch chan common.Hash, n int) []common.Hash {
	t.Helper()
	out := make([]common.Hash, 0, n)
	deadline := time.After(5 * time.Second)
	for len(out) < n {
		select {
		case h := <-ch:
			out = append(out, h)
		case <-deadline:
			t.Fatalf("timed out after %d/%d cemented notifications", len(out), n)
		}
	}
	return out
}

// The cross-account walk: cementing A's top receive must first cement every
// send it depends on, previous before successor everywhere.
func TestCementerCrossAccountWalk(t *testing.T) {
	c, l, cemented, _ := testCementer(t, DefaultConfig())
	sends, recvs := buildCrossAccountChains(t, l)

	c.Start()
	t.Cleanup(c.Stop)
	c.Cement(recvs[2].Hash())

	// 3 sends + 3 receives.
	order := collectCemented(t, cemented, 6)

	position := make(map[common.Hash]int)
	for i, h := range order {
		position[h] = i
	}
	// Dependency order: previous and source come before each block.
	for i, send := range sends {
		require.Contains(t, position, send.Hash())
		require.Contains(t, position, recvs[i].Hash())
		require.Less(t, position[send.Hash()], position[recvs[i].Hash()],
			"source cemented before its receive")
		if i > 0 {
			require.Less(t, position[sends[i-1].Hash()], position[sends[i].Hash()])
			require.Less(t, position[recvs[i-1].Hash()], position[recvs[i].Hash()])
		}
	}

	// Confirmation heights advanced to the frontiers.
	txn, _ := l.Store.BeginRead()
	defer txn.Discard()
	gConf := l.ConfirmationHeight(txn, l.Net.GenesisAccount)
	require.Equal(t, uint64(4), gConf.Height)
	require.Equal(t, sends[2].Hash(), gConf.Frontier)
	aConf := l.ConfirmationHeight(txn, testKey(1).PublicKey())
	require.Equal(t, uint64(3), aConf.Height)
	require.Equal(t, recvs[2].Hash(), aConf.Frontier)
}

func TestCementerAlreadyCemented(t *testing.T) {
	c, l, cemented, already := testCementer(t, DefaultConfig())
	_, recvs := buildCrossAccountChains(t, l)

	c.Start()
	t.Cleanup(c.Stop)
	c.Cement(recvs[2].Hash())
	collectCemented(t, cemented, 6)

	c.Cement(recvs[2].Hash())
	select {
	case h := <-already:
		require.Equal(t, recvs[2].Hash(), h)
	case <-time.After(5 * time.Second):
		t.Fatal("no already-cemented notification")
	}
	// And nothing else was cemented.
	select {
	case h := <-cemented:
		t.Fatalf("unexpected cemented notification %s", h)
	case <-time.After(100 * time.Millisecond):
	}
}

// The unbounded walker must produce the same coverage as the bounded one.
func TestUnboundedWalkMatchesBounded(t *testing.T) {
	cfg := DefaultConfig()
	// Force every request down the unbounded path.
	cfg.UnboundedCutoff = -1
	c, l, cemented, _ := testCementer(t, cfg)
	sends, recvs := buildCrossAccountChains(t, l)

	c.Start()
	t.Cleanup(c.Stop)
	c.Cement(recvs[2].Hash())

	order := collectCemented(t, cemented, 6)
	seen := make(map[common.Hash]bool)
	for _, h := range order {
		seen[h] = true
	}
	for _, b := range append(append([]*types.StateBlock{}, sends...), recvs...) {
		require.True(t, seen[b.Hash()], "missing %s", b.Hash())
	}

	txn, _ := l.Store.BeginRead()
	defer txn.Discard()
	require.Equal(t, uint64(3), l.ConfirmationHeight(txn, testKey(1).PublicKey()).Height)
	require.Equal(t, uint64(4), l.ConfirmationHeight(txn, l.Net.GenesisAccount).Height)
}

// Small write batches still cement everything, in more commits.
func TestCementerSmallBatches(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchWriteSize = 2
	cfg.MinBatchWriteSize = 1
	cfg.MaxBatchWriteSize = 4
	c, l, cemented, _ := testCementer(t, cfg)
	_, recvs := buildCrossAccountChains(t, l)

	c.Start()
	t.Cleanup(c.Stop)
	c.Cement(recvs[2].Hash())
	collectCemented(t, cemented, 6)

	txn, _ := l.Store.BeginRead()
	defer txn.Discard()
	require.Equal(t, uint64(3), l.ConfirmationHeight(txn, testKey(1).PublicKey()).Height)
}

func TestBatchSizeAdaptation(t *testing.T) {
	m := newBatchSizeManager(Config{
		BatchWriteSize:    8,
		MinBatchWriteSize: 2,
		MaxBatchWriteSize: 32,
		TargetBatchTime:   100 * time.Millisecond,
	})
	m.observe(10 * time.Millisecond) // fast: double
	require.Equal(t, 16, m.size())
	m.observe(10 * time.Millisecond)
	require.Equal(t, 32, m.size())
	m.observe(10 * time.Millisecond) // capped
	require.Equal(t, 32, m.size())
	m.observe(300 * time.Millisecond) // slow: halve
	require.Equal(t, 16, m.size())
	for i := 0; i < 5; i++ {
		m.observe(time.Second)
	}
	require.Equal(t, 2, m.size())
}
