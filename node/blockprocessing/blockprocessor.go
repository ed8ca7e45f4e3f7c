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

// Package blockprocessing drives candidate blocks from every source through
// validation and into the ledger on a single writer goroutine, with fair
// multi-source queueing, gap parking and observer notification.
package blockprocessing

import (
	"sync"
	"time"

	"github.com/nanocurrency/go-nano/common"
	"github.com/nanocurrency/go-nano/core/types"
	"github.com/nanocurrency/go-nano/crypto"
	"github.com/nanocurrency/go-nano/event"
	"github.com/nanocurrency/go-nano/ledger"
	"github.com/nanocurrency/go-nano/log"
	"github.com/nanocurrency/go-nano/metrics"
	"github.com/nanocurrency/go-nano/params"
	"github.com/nanocurrency/go-nano/store"
)

// BlockSource identifies where a candidate block came from; it selects the
// queue bucket's priority and capacity.
type BlockSource uint8

const (
	SourceUnknown BlockSource = iota
	SourceLive
	SourceLiveOriginator
	SourceBootstrap
	SourceBootstrapLegacy
	SourceUnchecked
	SourceLocal
	SourceForced
)

func (s BlockSource) String() string {
	switch s {
	case SourceLive:
		return "live"
	case SourceLiveOriginator:
		return "live_originator"
	case SourceBootstrap:
		return "bootstrap"
	case SourceBootstrapLegacy:
		return "bootstrap_legacy"
	case SourceUnchecked:
		return "unchecked"
	case SourceLocal:
		return "local"
	case SourceForced:
		return "forced"
	default:
		return "unknown"
	}
}

// Config tunes the processor queue and batching.
type Config struct {
	// MaxPeerQueue caps blocks queued per network peer.
	MaxPeerQueue int
	// MaxSystemQueue caps blocks queued from system components.
	MaxSystemQueue int
	PriorityLive      int
	PriorityBootstrap int
	PriorityLocal     int
	BatchSize         int
	BatchMaxTime      time.Duration
	// FullSize is the total queue length at which Full reports pressure; Add
	// does not consult it.
	FullSize int
	// BlockingTimeout bounds AddBlocking waits.
	BlockingTimeout time.Duration
}

// DefaultConfig mirrors the deployed defaults.
func DefaultConfig() Config {
	return Config{
		MaxPeerQueue:      128,
		MaxSystemQueue:    16 * 1024,
		PriorityLive:      1,
		PriorityBootstrap: 8,
		PriorityLocal:     16,
		BatchSize:         256,
		BatchMaxTime:      500 * time.Millisecond,
		FullSize:          65536,
		BlockingTimeout:   30 * time.Second,
	}
}

// Processed is the per-block observer event.
type Processed struct {
	Status ledger.BlockStatus
	Block  types.Block
	Source BlockSource
}

// RolledBack is the forced-rollback observer event: the undone blocks plus
// the block replacing them.
type RolledBack struct {
	Blocks      []*types.SavedBlock
	Replacement types.Block
}

type processContext struct {
	block   types.Block
	source  BlockSource
	arrival time.Time
	// result is buffered size 1; nil for fire-and-forget submissions. A
	// waiter that gave up simply never drains it.
	result chan ledger.BlockStatus
}

// BlockProcessor is the single-writer pipeline. Producers call Add /
// AddBlocking / Force from any goroutine; one worker drains the queue in
// batches under the store write transaction.
type BlockProcessor struct {
	cfg    Config
	ledger *ledger.Ledger
	unchecked *UncheckedMap
	logger log.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   *fairQueue[*processContext]
	stopped bool
	lastLog time.Time

	wg sync.WaitGroup

	processedFeed  event.Feed[Processed]
	batchFeed      event.Feed[[]Processed]
	rolledBackFeed event.Feed[RolledBack]

	processCounter           *metrics.Counter
	overfillCounter          *metrics.Counter
	forcedCounter            *metrics.Counter
	insufficientWorkCounter  *metrics.Counter
	statusCounters  map[ledger.BlockStatus]*metrics.Counter
}

// New wires a processor over the ledger and unchecked map; Start launches
// the worker.
func New(cfg Config, l *ledger.Ledger, unchecked *UncheckedMap) *BlockProcessor {
	p := &BlockProcessor{
		cfg:       cfg,
		ledger:    l,
		unchecked: unchecked,
		logger:    log.New("module", "blockprocessor"),
		processCounter:          metrics.NewRegisteredCounter("blockprocessor/process"),
		overfillCounter:         metrics.NewRegisteredCounter("blockprocessor/overfill"),
		forcedCounter:           metrics.NewRegisteredCounter("blockprocessor/forced"),
		insufficientWorkCounter: metrics.NewRegisteredCounter("blockprocessor/insufficient_work"),
		statusCounters:  make(map[ledger.BlockStatus]*metrics.Counter),
	}
	p.cond = sync.NewCond(&p.mu)
	p.queue = newFairQueue[*processContext](p.bucketMax, p.bucketPriority)
	unchecked.SetSatisfiedHandler(func(b types.Block) {
		p.Add(b, SourceUnchecked, LoopbackChannel)
	})
	return p
}

func (p *BlockProcessor) bucketMax(origin Origin) int {
	switch origin.Source {
	case SourceLive, SourceLiveOriginator:
		return p.cfg.MaxPeerQueue
	case SourceForced:
		// Forced rollbacks must never be dropped.
		return 0
	default:
		return p.cfg.MaxSystemQueue
	}
}

func (p *BlockProcessor) bucketPriority(origin Origin) int {
	switch origin.Source {
	case SourceLive, SourceLiveOriginator:
		return p.cfg.PriorityLive
	case SourceBootstrap, SourceBootstrapLegacy, SourceUnchecked:
		return p.cfg.PriorityBootstrap
	case SourceLocal:
		return p.cfg.PriorityLocal
	default:
		return 1
	}
}

// Start launches the worker goroutine.
func (p *BlockProcessor) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run()
	}()
}

// Stop halts the worker and cancels pending waiters.
func (p *BlockProcessor) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
}

// SubscribeProcessed delivers one event per processing attempt.
func (p *BlockProcessor) SubscribeProcessed(ch chan<- Processed) event.Subscription {
	return p.processedFeed.Subscribe(ch)
}

// SubscribeBatch delivers the full batch at end of batch.
func (p *BlockProcessor) SubscribeBatch(ch chan<- []Processed) event.Subscription {
	return p.batchFeed.Subscribe(ch)
}

// SubscribeRolledBack delivers forced-rollback events.
func (p *BlockProcessor) SubscribeRolledBack(ch chan<- RolledBack) event.Subscription {
	return p.rolledBackFeed.Subscribe(ch)
}

// Add enqueues without waiting; false means the block was rejected (entry
// work or bucket capacity).
func (p *BlockProcessor) Add(b types.Block, source BlockSource, channel ChannelID) bool {
	if !p.ledger.Net.Work.ValidateEntry(crypto.WorkValue(b.Root(), b.Work())) {
		p.insufficientWorkCounter.Inc(1)
		p.logger.Debug("Rejecting under-worked block", "hash", b.Hash(), "source", source)
		return false
	}
	p.processCounter.Inc(1)
	return p.addImpl(&processContext{block: b, source: source, arrival: time.Now()}, channel)
}

// AddBlocking enqueues and waits for the outcome; ok=false when the block is
// not queued, on timeout, or on shutdown. A block whose wait timed out is
// still processed; blocks still queued at shutdown are not.
func (p *BlockProcessor) AddBlocking(b types.Block, source BlockSource) (ledger.BlockStatus, bool) {
	ctx := &processContext{
		block:   b,
		source:  source,
		arrival: time.Now(),
		result:  make(chan ledger.BlockStatus, 1),
	}
	if !p.addImpl(ctx, LoopbackChannel) {
		return 0, false
	}
	timer := time.NewTimer(p.cfg.BlockingTimeout)
	defer timer.Stop()
	select {
	case st, ok := <-ctx.result:
		if !ok {
			// Shutdown cancelled the waiter.
			return 0, false
		}
		return st, true
	case <-timer.C:
		p.logger.Warn("Timed out waiting for block processing", "hash", b.Hash())
		return 0, false
	}
}

// Force enqueues a fork-resolution block: its competitor chain is rolled
// back before it is applied.
func (p *BlockProcessor) Force(b types.Block) {
	p.forcedCounter.Inc(1)
	p.logger.Debug("Forcing block", "hash", b.Hash())
	p.addImpl(&processContext{block: b, source: SourceForced, arrival: time.Now()}, LoopbackChannel)
}

func (p *BlockProcessor) addImpl(ctx *processContext, channel ChannelID) bool {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false
	}
	added := p.queue.push(Origin{Source: ctx.source, Channel: channel}, ctx)
	p.mu.Unlock()
	if added {
		p.cond.Signal()
	} else {
		p.overfillCounter.Inc(1)
		p.logger.Debug("Queue bucket full, dropping block",
			"hash", ctx.block.Hash(), "source", ctx.source, "channel", channel)
	}
	return added
}

// QueueLen reports the total queued block count.
func (p *BlockProcessor) QueueLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.len()
}

// QueueLenOf reports one source's queued count.
func (p *BlockProcessor) QueueLenOf(source BlockSource) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.lenOf(source)
}

// Full reports back-pressure against the configured high-water mark.
func (p *BlockProcessor) Full() bool {
	return p.QueueLen() >= p.cfg.FullSize
}

// RemoveChannel drops queued work from a dead peer channel.
func (p *BlockProcessor) RemoveChannel(channel ChannelID) {
	p.mu.Lock()
	p.queue.removeChannel(channel)
	p.mu.Unlock()
}

func (p *BlockProcessor) run() {
	p.mu.Lock()
	for !p.stopped {
		if p.queue.empty() {
			p.cond.Wait()
			continue
		}
		if time.Since(p.lastLog) >= 15*time.Second {
			p.lastLog = time.Now()
			p.logger.Info("Blocks in processing queue",
				"total", p.queue.len(), "forced", p.queue.lenOf(SourceForced))
		}
		batch := p.nextBatch()
		p.mu.Unlock()

		processed := p.processBatch(batch)

		// Release waiters before notifying, without holding the queue lock.
		for _, r := range processed {
			if ctx := r.ctx; ctx.result != nil {
				ctx.result <- r.status
			}
		}
		p.notify(processed)

		p.mu.Lock()
	}
	// Cancel remaining waiters on shutdown.
	for {
		_, ctx, ok := p.queue.next()
		if !ok {
			break
		}
		if ctx.result != nil {
			close(ctx.result)
		}
	}
	p.mu.Unlock()
}

type processedItem struct {
	status ledger.BlockStatus
	ctx    *processContext
}

func (p *BlockProcessor) nextBatch() []*processContext {
	max := p.cfg.BatchSize
	if max <= 0 {
		max = 256
	}
	batch := make([]*processContext, 0, max)
	for len(batch) < max {
		_, ctx, ok := p.queue.next()
		if !ok {
			break
		}
		batch = append(batch, ctx)
	}
	return batch
}

func (p *BlockProcessor) processBatch(batch []*processContext) []processedItem {
	txn, err := p.ledger.Store.BeginWrite()
	if err != nil {
		p.logger.Error("Failed to open write transaction", "err", err)
		out := make([]processedItem, 0, len(batch))
		for _, ctx := range batch {
			out = append(out, processedItem{status: ledger.Old, ctx: ctx})
		}
		return out
	}
	start := time.Now()
	deadline := start.Add(p.cfg.BatchMaxTime)
	processed := make([]processedItem, 0, len(batch))
	forced := 0
	for i, ctx := range batch {
		if p.cfg.BatchMaxTime > 0 && time.Now().After(deadline) && i < len(batch)-1 {
			// Out of batch time: yield the writer, keep going in a fresh
			// transaction slice.
			if err := txn.Refresh(); err != nil {
				p.logger.Error("Write transaction refresh failed", "err", err)
			}
			deadline = time.Now().Add(p.cfg.BatchMaxTime)
		}
		if ctx.source == SourceForced {
			forced++
			p.rollbackCompetitor(txn, ctx.block)
		}
		status := p.processOne(txn, ctx)
		processed = append(processed, processedItem{status: status, ctx: ctx})
	}
	if err := txn.Commit(); err != nil {
		p.logger.Error("Failed to commit batch", "err", err)
	}
	if elapsed := time.Since(start); len(batch) > 0 && elapsed > 100*time.Millisecond {
		p.logger.Debug("Processed blocks", "count", len(batch), "forced", forced,
			"elapsed", elapsed)
	}
	return processed
}

func (p *BlockProcessor) processOne(txn store.WriteTxn, ctx *processContext) ledger.BlockStatus {
	b := ctx.block
	hash := b.Hash()
	status := p.ledger.Process(txn, b)
	p.statusCounter(status).Inc(1)
	p.logger.Trace("Block processed", "result", status, "hash", hash, "source", ctx.source)

	switch status {
	case ledger.Progress:
		p.unchecked.Trigger(common.HashOrAccount(hash))
		// Wake a parked open/receive on the destination. For state sends
		// below the newest epoch only: a max-epoch pending cannot satisfy
		// an epoch open for the destination.
		if sb, ok := p.ledger.GetBlock(txn, hash); ok && sb.IsSend() {
			if types.IsLegacy(b) || sb.Epoch() < params.EpochMax {
				dest := types.DestinationOrLink(b)
				p.unchecked.Trigger(common.HashOrAccount(dest))
			}
		}
	case ledger.GapPrevious:
		p.unchecked.Put(common.HashOrAccount(b.Previous()), b)
	case ledger.GapSource:
		p.unchecked.Put(common.HashOrAccount(types.SourceOrLink(b)), b)
	case ledger.GapEpochOpenPending:
		if account, ok := b.AccountField(); ok {
			p.unchecked.Put(common.HashOrAccount(account), b)
		}
	}
	return status
}

// rollbackCompetitor clears the position a forced block contends for: any
// existing successor of its qualified root is rolled back, unless it (or a
// descendant) is already confirmed.
func (p *BlockProcessor) rollbackCompetitor(txn store.WriteTxn, b types.Block) {
	hash := b.Hash()
	successor, ok := p.ledger.SuccessorAtRoot(txn, types.QualifiedRoot(b))
	if !ok || successor == hash || successor.IsZero() {
		return
	}
	p.logger.Debug("Rolling back competitor", "loser", successor, "winner", hash)
	list, err := p.ledger.Rollback(txn, successor)
	if err != nil {
		// Confirmed competitors stay; the forced block then fails Fork.
		p.logger.Error("Failed to roll back competitor",
			"hash", successor, "err", err)
	}
	if len(list) > 0 {
		p.rolledBackFeed.Send(RolledBack{Blocks: list, Replacement: b})
	}
}

func (p *BlockProcessor) notify(processed []processedItem) {
	events := make([]Processed, len(processed))
	for i, r := range processed {
		events[i] = Processed{Status: r.status, Block: r.ctx.block, Source: r.ctx.source}
		p.processedFeed.Send(events[i])
	}
	p.batchFeed.Send(events)
}

func (p *BlockProcessor) statusCounter(s ledger.BlockStatus) *metrics.Counter {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.statusCounters[s]
	if !ok {
		c = metrics.NewRegisteredCounter("blockprocessor/result/" + s.String())
		p.statusCounters[s] = c
	}
	return c
}
