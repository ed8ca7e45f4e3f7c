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

// Package cementing advances per-account confirmation heights: given a
// confirmed hash, it walks the transitive previous/source dependencies and
// cements every block below it, in batches that periodically yield the
// store writer.
package cementing

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nanocurrency/go-nano/common"
	"github.com/nanocurrency/go-nano/event"
	"github.com/nanocurrency/go-nano/ledger"
	"github.com/nanocurrency/go-nano/log"
	"github.com/nanocurrency/go-nano/metrics"
	"github.com/nanocurrency/go-nano/store"
)

// Config tunes batching and mode selection.
type Config struct {
	// BatchWriteSize is the starting cap on blocks cemented per write
	// batch; it adapts between MinBatchWriteSize and MaxBatchWriteSize.
	BatchWriteSize    int
	MinBatchWriteSize int
	MaxBatchWriteSize int
	// TargetBatchTime steers the adaptation: faster batches grow, slower
	// ones shrink.
	TargetBatchTime time.Duration
	// UnboundedCutoff selects the walk mode: request backlogs at or below
	// it use the bounded walker, larger ones the unbounded walker with its
	// memoized maps.
	UnboundedCutoff int
}

// DefaultConfig mirrors the deployed defaults.
func DefaultConfig() Config {
	return Config{
		BatchWriteSize:    16384,
		MinBatchWriteSize: 16384 / 16,
		MaxBatchWriteSize: 16384 * 16,
		TargetBatchTime:   250 * time.Millisecond,
		UnboundedCutoff:   16384,
	}
}

// cementStep is one block whose confirmation is to be written; steps are
// ordered dependencies-first.
type cementStep struct {
	account common.Account
	hash    common.Hash
	height  uint64
}

// Cementer is the confirmation-height worker.
type Cementer struct {
	cfg    Config
	ledger *ledger.Ledger
	logger log.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   *list.List // of common.Hash
	queued  map[common.Hash]struct{}
	retries map[common.Hash]int
	stopped bool

	// cancel cooperatively aborts a long walk on shutdown.
	cancel atomic.Bool

	wg sync.WaitGroup

	batch *batchSizeManager

	unbounded *unboundedState

	cementedFeed event.Feed[common.Hash]
	alreadyFeed  event.Feed[common.Hash]

	cementedCounter *metrics.Counter
	alreadyCounter  *metrics.Counter
	queueGauge      *metrics.Gauge
}

// New builds a cementer over the ledger.
func New(cfg Config, l *ledger.Ledger) *Cementer {
	c := &Cementer{
		cfg:             cfg,
		ledger:          l,
		logger:          log.New("module", "cementing"),
		queue:           list.New(),
		queued:          make(map[common.Hash]struct{}),
		retries:         make(map[common.Hash]int),
		batch:           newBatchSizeManager(cfg),
		unbounded:       newUnboundedState(),
		cementedCounter: metrics.NewRegisteredCounter("cementing/cemented"),
		alreadyCounter:  metrics.NewRegisteredCounter("cementing/already"),
		queueGauge:      metrics.NewRegisteredGauge("cementing/queue"),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// SubscribeCemented delivers each cemented hash in commit order.
func (c *Cementer) SubscribeCemented(ch chan<- common.Hash) event.Subscription {
	return c.cementedFeed.Subscribe(ch)
}

// SubscribeAlreadyCemented delivers hashes whose cement request was
// idempotent.
func (c *Cementer) SubscribeAlreadyCemented(ch chan<- common.Hash) event.Subscription {
	return c.alreadyFeed.Subscribe(ch)
}

// Start launches the worker.
func (c *Cementer) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run()
	}()
}

// Stop cancels any running walk and joins the worker.
func (c *Cementer) Stop() {
	c.cancel.Store(true)
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.cond.Broadcast()
	c.wg.Wait()
}

// Cement requests confirmation of hash and everything below it.
func (c *Cementer) Cement(hash common.Hash) {
	c.mu.Lock()
	if _, dup := c.queued[hash]; !dup && !c.stopped {
		c.queue.PushBack(hash)
		c.queued[hash] = struct{}{}
		c.queueGauge.Update(int64(c.queue.Len()))
	}
	c.mu.Unlock()
	c.cond.Signal()
}

// QueueLen reports outstanding cement requests.
func (c *Cementer) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Len()
}

func (c *Cementer) run() {
	c.mu.Lock()
	for !c.stopped {
		front := c.queue.Front()
		if front == nil {
			c.cond.Wait()
			continue
		}
		hash := front.Value.(common.Hash)
		c.queue.Remove(front)
		delete(c.queued, hash)
		backlog := c.queue.Len()
		c.queueGauge.Update(int64(backlog))
		c.mu.Unlock()

		c.process(hash, backlog)

		c.mu.Lock()
	}
	c.mu.Unlock()
}

// process cements one requested hash with the mode suited to the backlog.
func (c *Cementer) process(hash common.Hash, backlog int) {
	txn, err := c.ledger.Store.BeginWrite()
	if err != nil {
		c.logger.Error("Failed to open write transaction", "err", err)
		return
	}
	defer func() {
		if err := txn.Commit(); err != nil {
			c.logger.Error("Failed to commit cementing batch", "err", err)
		}
	}()

	if c.ledger.BlockConfirmed(txn, hash) {
		c.alreadyCounter.Inc(1)
		c.alreadyFeed.Send(hash)
		return
	}
	if _, ok := c.ledger.GetBlock(txn, hash); !ok {
		// A confirmed election can beat its own winner into the store when
		// the block still sits in the processor's forced queue; retry
		// shortly instead of dropping the request.
		c.retry(hash)
		return
	}

	var steps []cementStep
	if backlog <= c.cfg.UnboundedCutoff {
		steps = c.boundedWalk(txn, hash)
	} else {
		steps = c.unboundedWalk(txn, hash)
	}
	if len(steps) == 0 {
		return
	}
	c.writeSteps(txn, steps)
}

const (
	maxCementRetries   = 120
	cementRetryBackoff = 50 * time.Millisecond
)

func (c *Cementer) retry(hash common.Hash) {
	c.mu.Lock()
	attempts := c.retries[hash]
	if attempts >= maxCementRetries {
		delete(c.retries, hash)
		c.mu.Unlock()
		c.logger.Warn("Dropping cement request for missing block", "hash", hash)
		return
	}
	c.retries[hash] = attempts + 1
	c.mu.Unlock()
	time.AfterFunc(cementRetryBackoff, func() {
		if !c.cancel.Load() {
			c.Cement(hash)
		}
	})
}

// writeSteps commits confirmation-height advances in dependency order,
// yielding the writer between adaptive batches. Cemented notifications
// follow each commit, in commit order.
func (c *Cementer) writeSteps(txn store.WriteTxn, steps []cementStep) {
	pendingNotify := make([]common.Hash, 0, c.batch.size())
	start := time.Now()
	written := 0
	for _, step := range steps {
		if c.cancel.Load() {
			break
		}
		conf := c.ledger.ConfirmationHeight(txn, step.account)
		if step.height <= conf.Height {
			continue
		}
		c.ledger.SetConfirmationHeight(txn, step.account, step.height, step.hash)
		pendingNotify = append(pendingNotify, step.hash)
		written++

		if written >= c.batch.size() {
			elapsed := time.Since(start)
			if err := txn.Refresh(); err != nil {
				c.logger.Error("Cementing write yield failed", "err", err)
				return
			}
			c.flushNotifications(pendingNotify)
			pendingNotify = pendingNotify[:0]
			c.batch.observe(elapsed)
			c.logger.Debug("Cemented batch", "count", written, "elapsed", elapsed,
				"next_batch", c.batch.size())
			start = time.Now()
			written = 0
		}
	}
	if len(pendingNotify) > 0 {
		// Refresh commits these writes before they are notified.
		if err := txn.Refresh(); err != nil {
			c.logger.Error("Cementing final yield failed", "err", err)
			return
		}
		c.flushNotifications(pendingNotify)
	}
}

func (c *Cementer) flushNotifications(hashes []common.Hash) {
	for _, h := range hashes {
		c.cementedCounter.Inc(1)
		c.cementedFeed.Send(h)
	}
}

// batchSizeManager adapts the per-batch write cap toward the target batch
// time: quick batches double it, slow ones halve it, within bounds.
type batchSizeManager struct {
	cur    int
	min    int
	max    int
	target time.Duration
}

func newBatchSizeManager(cfg Config) *batchSizeManager {
	return &batchSizeManager{
		cur:    cfg.BatchWriteSize,
		min:    cfg.MinBatchWriteSize,
		max:    cfg.MaxBatchWriteSize,
		target: cfg.TargetBatchTime,
	}
}

func (b *batchSizeManager) size() int { return b.cur }

func (b *batchSizeManager) observe(elapsed time.Duration) {
	switch {
	case elapsed < b.target/2 && b.cur*2 <= b.max:
		b.cur *= 2
	case elapsed > b.target && b.cur/2 >= b.min:
		b.cur /= 2
	}
}
