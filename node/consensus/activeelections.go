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

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/nanocurrency/go-nano/common"
	"github.com/nanocurrency/go-nano/core/types"
	"github.com/nanocurrency/go-nano/event"
	"github.com/nanocurrency/go-nano/ledger"
	"github.com/nanocurrency/go-nano/log"
	"github.com/nanocurrency/go-nano/metrics"
)

// ElectionsConfig tunes the manager.
type ElectionsConfig struct {
	// MaxElections bounds concurrently tracked elections.
	MaxElections int
	// MaxActive bounds elections in the active phase.
	MaxActive int
	// MaxBlocksPerElection caps candidates per root before replacement.
	MaxBlocksPerElection int
	// ConfirmationMinimumTime is how long a plurality (non-final) winner
	// must hold to confirm.
	ConfirmationMinimumTime time.Duration
	// VoteCooldown holds off a representative that just switched choice.
	VoteCooldown time.Duration
	// Expiry drops unconfirmed elections.
	Expiry time.Duration
}

// DefaultElectionsConfig mirrors the deployed defaults.
func DefaultElectionsConfig() ElectionsConfig {
	return ElectionsConfig{
		MaxElections:            5000,
		MaxActive:               2500,
		MaxBlocksPerElection:    10,
		ConfirmationMinimumTime: 2 * time.Second,
		VoteCooldown:            15 * time.Second,
		Expiry:                  5 * time.Minute,
	}
}

// Cementer is the confirmation-height hand-off.
type Cementer interface {
	Cement(hash common.Hash)
}

// Forcer enqueues a winner for forced fork resolution.
type Forcer interface {
	Force(b types.Block)
}

// Confirmed is the election-confirmed observer event.
type Confirmed struct {
	Root   common.QualifiedRoot
	Winner common.Hash
}

// ActiveElections owns every running election, routes votes into them, and
// commits winners through the cementer.
type ActiveElections struct {
	cfg    ElectionsConfig
	ledger *ledger.Ledger
	cache  *VoteCache
	online *OnlineReps
	logger log.Logger

	cementer Cementer
	forcer   Forcer

	mu     sync.Mutex
	roots  map[common.QualifiedRoot]*Election
	byHash map[common.Hash]common.QualifiedRoot
	// recentlyConfirmed suppresses re-election of just-decided roots.
	recentlyConfirmed mapset.Set[common.QualifiedRoot]

	confirmedFeed event.Feed[Confirmed]

	stop chan struct{}
	wg   sync.WaitGroup

	startedCounter   *metrics.Counter
	confirmedCounter *metrics.Counter
	voteCounter      *metrics.Counter
	replayCounter    *metrics.Counter
	ignoredCounter   *metrics.Counter
	expiredCounter   *metrics.Counter
	droppedCounter   *metrics.Counter
}

// NewActiveElections wires the manager; SetCementer and SetForcer must be
// called before Start.
func NewActiveElections(cfg ElectionsConfig, l *ledger.Ledger, cache *VoteCache, online *OnlineReps) *ActiveElections {
	return &ActiveElections{
		cfg:               cfg,
		ledger:            l,
		cache:             cache,
		online:            online,
		logger:            log.New("module", "elections"),
		roots:             make(map[common.QualifiedRoot]*Election),
		byHash:            make(map[common.Hash]common.QualifiedRoot),
		recentlyConfirmed: mapset.NewSet[common.QualifiedRoot](),
		stop:              make(chan struct{}),
		startedCounter:    metrics.NewRegisteredCounter("elections/started"),
		confirmedCounter:  metrics.NewRegisteredCounter("elections/confirmed"),
		voteCounter:       metrics.NewRegisteredCounter("elections/vote"),
		replayCounter:     metrics.NewRegisteredCounter("elections/vote_replay"),
		ignoredCounter:    metrics.NewRegisteredCounter("elections/vote_ignored"),
		expiredCounter:    metrics.NewRegisteredCounter("elections/expired"),
		droppedCounter:    metrics.NewRegisteredCounter("elections/dropped"),
	}
}

// SetCementer installs the confirmation-height hand-off.
func (a *ActiveElections) SetCementer(c Cementer) { a.cementer = c }

// SetForcer installs the fork-resolution hand-off.
func (a *ActiveElections) SetForcer(f Forcer) { a.forcer = f }

// SubscribeConfirmed delivers election outcomes.
func (a *ActiveElections) SubscribeConfirmed(ch chan<- Confirmed) event.Subscription {
	return a.confirmedFeed.Subscribe(ch)
}

// Start launches the scheduler loop.
func (a *ActiveElections) Start() {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-a.stop:
				return
			case <-ticker.C:
				a.tick()
			}
		}
	}()
}

// Stop halts the scheduler.
func (a *ActiveElections) Stop() {
	close(a.stop)
	a.wg.Wait()
}

// Len reports the number of tracked elections.
func (a *ActiveElections) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.roots)
}

// Election looks up an election by root.
func (a *ActiveElections) Election(root common.QualifiedRoot) (*Election, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.roots[root]
	return e, ok
}

// ElectionByHash looks up the election containing a candidate hash.
func (a *ActiveElections) ElectionByHash(hash common.Hash) (*Election, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	root, ok := a.byHash[hash]
	if !ok {
		return nil, false
	}
	e, ok := a.roots[root]
	return e, ok
}

func (a *ActiveElections) weightOf(rep common.Account) common.Amount {
	return a.ledger.Weight(rep)
}

// InsertBlock publishes a freshly applied block into its election, starting
// one if resources permit. Cached early votes are replayed into the
// election.
func (a *ActiveElections) InsertBlock(b types.Block) bool {
	root := types.QualifiedRoot(b)
	hash := b.Hash()

	a.mu.Lock()
	if a.recentlyConfirmed.Contains(root) {
		a.mu.Unlock()
		return false
	}
	e, exists := a.roots[root]
	if !exists {
		if len(a.roots) >= a.cfg.MaxElections {
			a.droppedCounter.Inc(1)
			a.mu.Unlock()
			return false
		}
		e = NewElection(b, time.Now())
		a.roots[root] = e
		a.byHash[hash] = root
		a.startedCounter.Inc(1)
		a.mu.Unlock()
		a.logger.Debug("Election started", "root", root, "hash", hash)
	} else {
		cached := common.Amount{}
		if entry, ok := a.cache.Find(hash); ok {
			cached = entry.Tally
		}
		admitted := e.AddCandidate(b, cached, a.cfg.MaxBlocksPerElection, a.weightOf)
		if admitted {
			a.byHash[hash] = root
		}
		a.mu.Unlock()
		if !admitted {
			a.droppedCounter.Inc(1)
			return false
		}
	}

	a.replayCachedVotes(e, hash)
	a.tryConfirm(e)
	return true
}

// replayCachedVotes drains early votes buffered for hash into the election.
func (a *ActiveElections) replayCachedVotes(e *Election, hash common.Hash) {
	entry, ok := a.cache.Find(hash)
	if !ok {
		return
	}
	now := time.Now()
	for _, voter := range entry.Voters {
		e.ApplyVote(voter.Representative, voter.Timestamp, hash, a.cfg.VoteCooldown, now, a.weightOf)
	}
	a.cache.Erase(hash)
}

// ProcessVote routes one vote message: hashes with live elections tally
// directly, the rest are buffered in the vote cache.
func (a *ActiveElections) ProcessVote(v *types.Vote) {
	a.online.Observe(v.VotingAccount)
	weight := a.weightOf(v.VotingAccount)
	now := time.Now()
	for _, hash := range v.Hashes {
		e, ok := a.ElectionByHash(hash)
		if !ok {
			a.cache.Observe(hash, v.VotingAccount, v.Timestamp, weight)
			continue
		}
		switch e.ApplyVote(v.VotingAccount, v.Timestamp, hash, a.cfg.VoteCooldown, now, a.weightOf) {
		case VoteProcessed:
			a.voteCounter.Inc(1)
			a.tryConfirm(e)
		case VoteReplay:
			a.replayCounter.Inc(1)
		case VoteIgnored:
			a.ignoredCounter.Inc(1)
		}
	}
}

// QuorumDelta is the current confirmation threshold.
func (a *ActiveElections) QuorumDelta() common.Amount {
	return a.ledger.Net.QuorumDelta(a.online.OnlineWeight())
}

func (a *ActiveElections) tryConfirm(e *Election) {
	if e.Phase() == PhaseConfirmed {
		return
	}
	delta := a.QuorumDelta()
	tally, final := e.Tally(a.weightOf)
	winner := e.Winner()
	switch {
	case final[winner].Cmp(delta) >= 0 && !delta.IsZero():
		a.confirm(e, winner)
	case tally[winner].Cmp(delta) >= 0 && !delta.IsZero() &&
		time.Since(e.WinnerSince()) >= a.cfg.ConfirmationMinimumTime:
		a.confirm(e, winner)
	}
}

func (a *ActiveElections) confirm(e *Election, winner common.Hash) {
	if !e.markConfirmed() {
		return
	}
	root := e.Root()
	a.confirmedCounter.Inc(1)
	a.logger.Info("Election confirmed", "root", root, "winner", winner)

	// Losing branches still in the store are displaced by forcing the
	// winner back through the processor.
	winnerBlock, hasBlock := e.Block(winner)
	if hasBlock && a.forcer != nil {
		if a.loserInStore(root, winner) {
			a.forcer.Force(winnerBlock)
		}
	}

	a.removeElection(root, e)
	a.confirmedFeed.Send(Confirmed{Root: root, Winner: winner})
	if a.cementer != nil {
		a.cementer.Cement(winner)
	}
}

// loserInStore checks whether the ledger currently holds a different block
// at the election's position.
func (a *ActiveElections) loserInStore(root common.QualifiedRoot, winner common.Hash) bool {
	txn, err := a.ledger.Store.BeginRead()
	if err != nil {
		return false
	}
	defer txn.Discard()
	successor, ok := a.ledger.SuccessorAtRoot(txn, root)
	return ok && !successor.IsZero() && successor != winner
}

func (a *ActiveElections) removeElection(root common.QualifiedRoot, e *Election) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, b := range e.Blocks() {
		delete(a.byHash, b.Hash())
	}
	delete(a.roots, root)
	a.recentlyConfirmed.Add(root)
	// Bound the suppression set; losing old entries only risks a redundant
	// election, which re-confirms immediately.
	if a.recentlyConfirmed.Cardinality() > 1<<16 {
		a.recentlyConfirmed = mapset.NewSet[common.QualifiedRoot]()
	}
}

// tick promotes passive elections into the active set and expires stale
// ones.
func (a *ActiveElections) tick() {
	now := time.Now()
	a.mu.Lock()
	elections := make([]*Election, 0, len(a.roots))
	active := 0
	for _, e := range a.roots {
		elections = append(elections, e)
		if e.Phase() == PhaseActive {
			active++
		}
	}
	a.mu.Unlock()

	for _, e := range elections {
		switch e.Phase() {
		case PhasePassive:
			if active < a.cfg.MaxActive {
				e.Activate(now)
				active++
			}
		case PhaseActive:
			a.tryConfirm(e)
		}
		if e.Phase() != PhaseConfirmed && e.Age(now) >= a.cfg.Expiry {
			e.markExpired()
			a.expiredCounter.Inc(1)
			a.mu.Lock()
			for _, b := range e.Blocks() {
				delete(a.byHash, b.Hash())
			}
			delete(a.roots, e.Root())
			a.mu.Unlock()
			a.logger.Debug("Election expired", "root", e.Root())
		}
	}
}
