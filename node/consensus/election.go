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
	"time"

	"github.com/nanocurrency/go-nano/common"
	"github.com/nanocurrency/go-nano/core/types"
)

// Phase is the election lifecycle state.
type Phase uint8

const (
	PhasePassive Phase = iota
	PhaseActive
	PhaseConfirmed
	PhaseExpired
)

func (p Phase) String() string {
	switch p {
	case PhasePassive:
		return "passive"
	case PhaseActive:
		return "active"
	case PhaseConfirmed:
		return "confirmed"
	default:
		return "expired"
	}
}

// VoteOutcome classifies one vote against one election.
type VoteOutcome uint8

const (
	// VoteProcessed installed a new last-vote for the representative.
	VoteProcessed VoteOutcome = iota
	// VoteReplay carried nothing newer than the recorded last-vote.
	VoteReplay
	// VoteIgnored hit the flip-flop cooldown.
	VoteIgnored
)

type voteRecord struct {
	Hash      common.Hash
	Timestamp uint64
	at        time.Time
}

// Election is the per-qualified-root state machine deciding a single winner
// among competing blocks.
type Election struct {
	mu sync.Mutex

	root   common.QualifiedRoot
	blocks map[common.Hash]types.Block
	// lastVotes records each representative's newest vote.
	lastVotes map[common.Account]voteRecord

	phase        Phase
	started      time.Time
	activated    time.Time
	winner       common.Hash
	winnerSince  time.Time
	requestCount int
}

// NewElection seeds an election with its first candidate.
func NewElection(block types.Block, now time.Time) *Election {
	e := &Election{
		root:        types.QualifiedRoot(block),
		blocks:      map[common.Hash]types.Block{block.Hash(): block},
		lastVotes:   make(map[common.Account]voteRecord),
		phase:       PhasePassive,
		started:     now,
		winner:      block.Hash(),
		winnerSince: now,
	}
	return e
}

// Root returns the election key.
func (e *Election) Root() common.QualifiedRoot { return e.root }

// Phase returns the lifecycle state.
func (e *Election) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Activate moves a passive election into the active phase.
func (e *Election) Activate(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase == PhasePassive {
		e.phase = PhaseActive
		e.activated = now
	}
}

// Winner returns the current plurality block hash.
func (e *Election) Winner() common.Hash {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.winner
}

// Blocks snapshots the candidate set.
func (e *Election) Blocks() []types.Block {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.Block, 0, len(e.blocks))
	for _, b := range e.blocks {
		out = append(out, b)
	}
	return out
}

// Block fetches a candidate by hash.
func (e *Election) Block(hash common.Hash) (types.Block, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.blocks[hash]
	return b, ok
}

// AddCandidate admits a competing block. At capacity the newcomer replaces
// the weakest candidate, and only if its cached tally beats it.
func (e *Election) AddCandidate(block types.Block, cachedTally common.Amount, maxBlocks int, weightOf func(common.Account) common.Amount) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	hash := block.Hash()
	if _, ok := e.blocks[hash]; ok {
		return true
	}
	if len(e.blocks) < maxBlocks {
		e.blocks[hash] = block
		return true
	}
	tallies, _ := e.tallyLocked(weightOf)
	var weakest common.Hash
	first := true
	for h := range e.blocks {
		if first || tallies[h].Cmp(tallies[weakest]) < 0 {
			weakest = h
			first = false
		}
	}
	if cachedTally.Cmp(tallies[weakest]) <= 0 {
		return false
	}
	delete(e.blocks, weakest)
	e.blocks[hash] = block
	return true
}

// ApplyVote installs one representative's vote for hash.
func (e *Election) ApplyVote(rep common.Account, timestamp uint64, hash common.Hash, cooldown time.Duration, now time.Time, weightOf func(common.Account) common.Amount) VoteOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev, voted := e.lastVotes[rep]
	if voted && prev.Timestamp >= timestamp {
		return VoteReplay
	}
	// A rep flip-flopping between candidates is held off briefly; final
	// votes always land.
	if voted && prev.Hash != hash && timestamp != types.FinalVoteTimestamp &&
		now.Sub(prev.at) < cooldown {
		return VoteIgnored
	}
	e.lastVotes[rep] = voteRecord{Hash: hash, Timestamp: timestamp, at: now}
	e.updateWinnerLocked(now, weightOf)
	return VoteProcessed
}

// Tally sums, per candidate, the weight of representatives whose last vote
// names it; final tallies count only saturated-timestamp votes.
func (e *Election) Tally(weightOf func(common.Account) common.Amount) (map[common.Hash]common.Amount, map[common.Hash]common.Amount) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tallyLocked(weightOf)
}

func (e *Election) tallyLocked(weightOf func(common.Account) common.Amount) (map[common.Hash]common.Amount, map[common.Hash]common.Amount) {
	tally := make(map[common.Hash]common.Amount, len(e.blocks))
	final := make(map[common.Hash]common.Amount, len(e.blocks))
	for rep, rec := range e.lastVotes {
		w := weightOf(rep)
		if w.IsZero() {
			continue
		}
		tally[rec.Hash] = tally[rec.Hash].Add(w)
		if rec.Timestamp == types.FinalVoteTimestamp {
			final[rec.Hash] = final[rec.Hash].Add(w)
		}
	}
	return tally, final
}

func (e *Election) updateWinnerLocked(now time.Time, weightOf func(common.Account) common.Amount) {
	tally, _ := e.tallyLocked(weightOf)
	best := e.winner
	for h := range e.blocks {
		if tally[h].Cmp(tally[best]) > 0 {
			best = h
		}
	}
	if best != e.winner {
		e.winner = best
		e.winnerSince = now
	}
}

// WinnerSince reports how long the current plurality has held.
func (e *Election) WinnerSince() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.winnerSince
}

// Age reports time since the election started.
func (e *Election) Age(now time.Time) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return now.Sub(e.started)
}

func (e *Election) markConfirmed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase == PhaseConfirmed {
		return false
	}
	e.phase = PhaseConfirmed
	return true
}

func (e *Election) markExpired() {
	e.mu.Lock()
	e.phase = PhaseExpired
	e.mu.Unlock()
}
