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
	"sync"
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

func key(tag byte) crypto.PrivateKey {
	var seed [32]byte
	seed[0] = tag
	seed[31] = 0x44
	return crypto.NewPrivateKey(seed)
}

func signState(b *types.StateBlock, k crypto.PrivateKey) *types.StateBlock {
	h := b.Hash()
	b.SetSignature(k.Sign(h[:]))
	return b
}

func fixedWeights(w map[common.Account]uint64) func(common.Account) common.Amount {
	return func(a common.Account) common.Amount {
		return common.NewAmount(w[a])
	}
}

func forkPair(l *ledger.Ledger, a, b crypto.PrivateKey) (*types.StateBlock, *types.StateBlock) {
	genesisHash := l.GenesisBlock().Hash()
	send1 := signState(&types.StateBlock{
		Account:        l.Net.GenesisAccount,
		PreviousHash:   genesisHash,
		Representative: l.Net.GenesisAccount,
		Balance:        common.MaxAmount.Sub(common.NewAmount(10)),
		Link:           a.PublicKey().ToLink(),
	}, l.Net.GenesisKey)
	send2 := signState(&types.StateBlock{
		Account:        l.Net.GenesisAccount,
		PreviousHash:   genesisHash,
		Representative: l.Net.GenesisAccount,
		Balance:        common.MaxAmount.Sub(common.NewAmount(20)),
		Link:           b.PublicKey().ToLink(),
	}, l.Net.GenesisKey)
	return send1, send2
}

func TestElectionVoteReplayAndCooldown(t *testing.T) {
	k := key(1)
	block := signState(&types.StateBlock{
		Account:      k.PublicKey(),
		PreviousHash: common.Hash{1},
		Balance:      common.NewAmount(1),
	}, k)
	other := signState(&types.StateBlock{
		Account:      k.PublicKey(),
		PreviousHash: common.Hash{1},
		Balance:      common.NewAmount(2),
	}, k)

	now := time.Unix(1700000000, 0)
	e := NewElection(block, now)
	weights := fixedWeights(map[common.Account]uint64{rep(1): 100})
	require.True(t, e.AddCandidate(other, common.Amount{}, 10, weights))

	require.Equal(t, VoteProcessed,
		e.ApplyVote(rep(1), 100, block.Hash(), 15*time.Second, now, weights))
	// Same or older timestamp is a replay.
	require.Equal(t, VoteReplay,
		e.ApplyVote(rep(1), 100, block.Hash(), 15*time.Second, now, weights))
	require.Equal(t, VoteReplay,
		e.ApplyVote(rep(1), 50, other.Hash(), 15*time.Second, now, weights))
	// A quick switch to another candidate is held off.
	require.Equal(t, VoteIgnored,
		e.ApplyVote(rep(1), 200, other.Hash(), 15*time.Second, now.Add(time.Second), weights))
	// After the cooldown the switch lands.
	require.Equal(t, VoteProcessed,
		e.ApplyVote(rep(1), 300, other.Hash(), 15*time.Second, now.Add(16*time.Second), weights))
	require.Equal(t, other.Hash(), e.Winner())
	// A final vote bypasses the cooldown.
	require.Equal(t, VoteProcessed,
		e.ApplyVote(rep(1), types.FinalVoteTimestamp, block.Hash(), 15*time.Second,
			now.Add(17*time.Second), weights))
}

func TestElectionTally(t *testing.T) {
	k := key(1)
	block := signState(&types.StateBlock{
		Account: k.PublicKey(), PreviousHash: common.Hash{1}, Balance: common.NewAmount(1),
	}, k)
	other := signState(&types.StateBlock{
		Account: k.PublicKey(), PreviousHash: common.Hash{1}, Balance: common.NewAmount(2),
	}, k)
	weights := fixedWeights(map[common.Account]uint64{rep(1): 100, rep(2): 40, rep(3): 30})

	now := time.Unix(1700000000, 0)
	e := NewElection(block, now)
	require.True(t, e.AddCandidate(other, common.Amount{}, 10, weights))

	e.ApplyVote(rep(1), 100, block.Hash(), 0, now, weights)
	e.ApplyVote(rep(2), 100, other.Hash(), 0, now, weights)
	e.ApplyVote(rep(3), types.FinalVoteTimestamp, other.Hash(), 0, now, weights)

	tally, final := e.Tally(weights)
	require.Equal(t, common.NewAmount(100), tally[block.Hash()])
	require.Equal(t, common.NewAmount(70), tally[other.Hash()])
	require.Equal(t, common.NewAmount(30), final[other.Hash()])
	require.True(t, final[block.Hash()].IsZero())
	require.Equal(t, block.Hash(), e.Winner())
}

func TestElectionForkReplacement(t *testing.T) {
	k := key(1)
	mk := func(balance uint64) *types.StateBlock {
		return signState(&types.StateBlock{
			Account: k.PublicKey(), PreviousHash: common.Hash{1},
			Balance: common.NewAmount(balance),
		}, k)
	}
	weights := fixedWeights(map[common.Account]uint64{rep(1): 10})
	now := time.Unix(1700000000, 0)

	first := mk(1)
	e := NewElection(first, now)
	second := mk(2)
	require.True(t, e.AddCandidate(second, common.Amount{}, 2, weights))
	// Give the first candidate a vote so the second is the weakest.
	e.ApplyVote(rep(1), 100, first.Hash(), 0, now, weights)

	// At capacity, a zero-tally newcomer is dropped.
	require.False(t, e.AddCandidate(mk(3), common.Amount{}, 2, weights))
	// A newcomer with cached votes displaces the weakest.
	replacement := mk(4)
	require.True(t, e.AddCandidate(replacement, common.NewAmount(5), 2, weights))
	_, stillThere := e.Block(second.Hash())
	require.False(t, stillThere)
	_, kept := e.Block(first.Hash())
	require.True(t, kept)
}

type recordingCementer struct {
	mu     sync.Mutex
	hashes []common.Hash
}

func (r *recordingCementer) Cement(h common.Hash) {
	r.mu.Lock()
	r.hashes = append(r.hashes, h)
	r.mu.Unlock()
}

func (r *recordingCementer) cemented() []common.Hash {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]common.Hash(nil), r.hashes...)
}

type recordingForcer struct {
	mu     sync.Mutex
	blocks []types.Block
}

func (r *recordingForcer) Force(b types.Block) {
	r.mu.Lock()
	r.blocks = append(r.blocks, b)
	r.mu.Unlock()
}

func (r *recordingForcer) forced() []types.Block {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Block(nil), r.blocks...)
}

func testElections(t *testing.T) (*ActiveElections, *ledger.Ledger, *recordingCementer, *recordingForcer) {
	t.Helper()
	s := store.NewMemoryStore()
	l, err := ledger.NewLedger(s, params.DevNetwork())
	require.NoError(t, err)
	cache := NewVoteCache(DefaultVoteCacheConfig())
	online := NewOnlineReps(l.Weight)
	a := NewActiveElections(DefaultElectionsConfig(), l, cache, online)
	cementer := &recordingCementer{}
	forcer := &recordingForcer{}
	a.SetCementer(cementer)
	a.SetForcer(forcer)
	return a, l, cementer, forcer
}

// Fork confirmation: the ledger holds one branch, a quorum final vote picks
// the other, and the loser is displaced through the forced path.
func TestForkConfirmationRollsBackLoser(t *testing.T) {
	a, l, cementer, forcer := testElections(t)
	k1, k2 := key(1), key(2)
	send1, send2 := forkPair(l, k1, k2)

	// The ledger applies send1.
	txn, err := l.Store.BeginWrite()
	require.NoError(t, err)
	require.Equal(t, ledger.Progress, l.Process(txn, send1))
	require.NoError(t, txn.Commit())

	confirmed := make(chan Confirmed, 1)
	sub := a.SubscribeConfirmed(confirmed)
	defer sub.Unsubscribe()

	require.True(t, a.InsertBlock(send1))
	require.True(t, a.InsertBlock(send2))

	// One representative holding effectively all weight votes final for
	// send2.
	vote := types.NewVote(l.Net.GenesisKey, types.FinalVoteTimestamp, []common.Hash{send2.Hash()})
	a.ProcessVote(vote)

	select {
	case ev := <-confirmed:
		require.Equal(t, send2.Hash(), ev.Winner)
	case <-time.After(time.Second):
		t.Fatal("election did not confirm")
	}

	require.Equal(t, []common.Hash{send2.Hash()}, cementer.cemented())
	blocks := forcer.forced()
	require.Len(t, blocks, 1)
	require.Equal(t, send2.Hash(), blocks[0].Hash())

	// The decided root cannot restart an election.
	require.False(t, a.InsertBlock(send1))
	require.Equal(t, 0, a.Len())
}

// Early votes buffered in the cache count once the block arrives.
func TestCachedVotesReplayIntoElection(t *testing.T) {
	a, l, cementer, _ := testElections(t)
	k1 := key(1)
	send1, _ := forkPair(l, k1, key(2))

	// The vote arrives before any election exists.
	vote := types.NewVote(l.Net.GenesisKey, types.FinalVoteTimestamp, []common.Hash{send1.Hash()})
	a.ProcessVote(vote)
	_, buffered := a.cache.Find(send1.Hash())
	require.True(t, buffered)

	require.True(t, a.InsertBlock(send1))

	require.Eventually(t, func() bool {
		return len(cementer.cemented()) == 1
	}, time.Second, 10*time.Millisecond)
	// The cache entry was consumed.
	_, still := a.cache.Find(send1.Hash())
	require.False(t, still)
}

func TestQuorumDeltaTracksOnlineWeight(t *testing.T) {
	a, l, _, _ := testElections(t)
	require.True(t, a.QuorumDelta().IsZero())

	a.online.Observe(l.Net.GenesisAccount)
	delta := a.QuorumDelta()
	require.False(t, delta.IsZero())
	// 67% of the online weight.
	require.Equal(t, common.MaxAmount.MulDiv(67, 100), delta)
}
