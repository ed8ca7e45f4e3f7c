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
	"bytes"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/nanocurrency/go-nano/common"
	"github.com/nanocurrency/go-nano/core/types"
	"github.com/nanocurrency/go-nano/store"
)

// unboundedBlockCacheSize caps the decoded-block byte cache used by the
// unbounded walker.
const unboundedBlockCacheSize = 32 * 1024 * 1024

// confirmedIterated tracks, per account, the height already covered by
// earlier unbounded passes: blocks at or below iterated height need no
// re-walk, blocks at or below confirmed height are already planned.
type confirmedIterated struct {
	confirmedHeight uint64
	iteratedHeight  uint64
}

// unboundedState is the memoized cross-request state of the unbounded
// walker. The implicit-receive map records, per source-chain top hash, the
// index of the planned receive step that transitively cements it; indices
// into the plan arena stand in for the original's weak back-references.
type unboundedState struct {
	accounts map[common.Account]confirmedIterated
	// implicitReceiveCemented maps a block hash to the arena index of the
	// receive step above it; a hit means the hash is already covered.
	implicitReceiveCemented map[common.Hash]int
	blocks                  *fastcache.Cache
}

func newUnboundedState() *unboundedState {
	return &unboundedState{
		accounts:                make(map[common.Account]confirmedIterated),
		implicitReceiveCemented: make(map[common.Hash]int),
		blocks:                  fastcache.New(unboundedBlockCacheSize),
	}
}

// reset clears per-run memoization once the backlog drains.
func (u *unboundedState) reset() {
	u.accounts = make(map[common.Account]confirmedIterated)
	u.implicitReceiveCemented = make(map[common.Hash]int)
	u.blocks.Reset()
}

// getBlock reads through the byte cache.
func (u *unboundedState) getBlock(c *Cementer, txn store.Txn, hash common.Hash) (*types.SavedBlock, bool) {
	if raw := u.blocks.Get(nil, hash[:]); len(raw) > 0 {
		blk, err := types.DecodeSavedBlock(bytes.NewReader(raw))
		if err == nil {
			return blk, true
		}
	}
	blk, ok := c.ledger.GetBlock(txn, hash)
	if !ok {
		return nil, false
	}
	var buf bytes.Buffer
	blk.Encode(&buf)
	u.blocks.Set(hash[:], buf.Bytes())
	return blk, true
}

// unboundedWalk plans cement steps like the bounded walker but carries
// memoized per-account coverage and implicit-receive marks across requests,
// so large backlogs with overlapping chains avoid quadratic re-walks.
func (c *Cementer) unboundedWalk(txn store.Txn, target common.Hash) []cementStep {
	u := c.unbounded
	var plan []cementStep
	stack := []common.Hash{target}

	covered := func(h common.Hash, account common.Account, height uint64) bool {
		if idx, ok := u.implicitReceiveCemented[h]; ok {
			// An earlier-planned receive above this block implies its
			// cementing; a stale index is treated as already cemented, not
			// a fault — shutdown can legitimately orphan these marks.
			_ = idx
			return true
		}
		if ci, ok := u.accounts[account]; ok && height <= ci.confirmedHeight {
			return true
		}
		return false
	}

	for len(stack) > 0 {
		if c.cancel.Load() {
			break
		}
		h := stack[len(stack)-1]
		blk, ok := u.getBlock(c, txn, h)
		if !ok {
			// Pruned ancestor: only cemented blocks are pruned.
			stack = stack[:len(stack)-1]
			continue
		}
		account := blk.Account()
		height := blk.Height()
		if covered(h, account, height) {
			stack = stack[:len(stack)-1]
			continue
		}
		ci, tracked := u.accounts[account]
		if !tracked {
			conf := c.ledger.ConfirmationHeight(txn, account)
			ci = confirmedIterated{confirmedHeight: conf.Height, iteratedHeight: conf.Height}
			u.accounts[account] = ci
		}
		if height <= ci.confirmedHeight {
			stack = stack[:len(stack)-1]
			continue
		}

		ready := true
		if prev := blk.Block.Previous(); !prev.IsZero() && height-1 > ci.confirmedHeight {
			if prevBlk, ok := u.getBlock(c, txn, prev); ok && !covered(prev, account, prevBlk.Height()) {
				stack = append(stack, prev)
				ready = false
			}
		}
		if source, isRecv := blk.Source(); isRecv {
			if srcBlk, ok := u.getBlock(c, txn, source); ok {
				srcAccount := srcBlk.Account()
				srcConf := c.ledger.ConfirmationHeight(txn, srcAccount)
				if srcBlk.Height() > srcConf.Height && !covered(source, srcAccount, srcBlk.Height()) {
					stack = append(stack, source)
					ready = false
				}
			}
		}
		if !ready {
			continue
		}
		stack = stack[:len(stack)-1]
		plan = append(plan, cementStep{account: account, hash: h, height: height})
		idx := len(plan) - 1
		ci = u.accounts[account]
		if height > ci.confirmedHeight {
			ci.confirmedHeight = height
		}
		if height > ci.iteratedHeight {
			ci.iteratedHeight = height
		}
		u.accounts[account] = ci
		if _, isRecv := blk.Source(); isRecv {
			// Everything below this receive in its source chain is now
			// implied cemented.
			if source, ok := blk.Source(); ok {
				u.implicitReceiveCemented[source] = idx
			}
		}
	}

	c.mu.Lock()
	drained := c.queue.Len() == 0
	c.mu.Unlock()
	if drained {
		defer u.reset()
	}
	return plan
}
