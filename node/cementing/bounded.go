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
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/nanocurrency/go-nano/common"
	"github.com/nanocurrency/go-nano/store"
)

// maxWalkItems bounds the in-memory walk state of one bounded pass; a walk
// that would exceed it cements what it has and leaves the rest to the next
// request for the same hash.
const maxWalkItems = 131072

// boundedWalk plans the cement steps for target with a depth-first walk
// over unconfirmed previous/source edges, keeping only per-pass state.
// Steps come out dependencies-first, so every block is preceded by its
// previous and its source.
func (c *Cementer) boundedWalk(txn store.Txn, target common.Hash) []cementStep {
	planned := mapset.NewThreadUnsafeSet[common.Hash]()
	var plan []cementStep
	stack := []common.Hash{target}

	for len(stack) > 0 && len(plan) < maxWalkItems {
		if c.cancel.Load() {
			return plan
		}
		h := stack[len(stack)-1]
		if planned.Contains(h) {
			stack = stack[:len(stack)-1]
			continue
		}
		blk, ok := c.ledger.GetBlock(txn, h)
		if !ok {
			// A missing block here means it was pruned, and pruning only
			// removes cemented blocks; nothing to do below it.
			stack = stack[:len(stack)-1]
			continue
		}
		conf := c.ledger.ConfirmationHeight(txn, blk.Account())
		if blk.Height() <= conf.Height {
			stack = stack[:len(stack)-1]
			continue
		}

		ready := true
		if prev := blk.Block.Previous(); !prev.IsZero() && !planned.Contains(prev) {
			if prevBlk, ok := c.ledger.GetBlock(txn, prev); ok && prevBlk.Height() > conf.Height {
				stack = append(stack, prev)
				ready = false
			}
		}
		if source, isRecv := blk.Source(); isRecv && !planned.Contains(source) {
			if !c.ledger.BlockConfirmed(txn, source) && store.BlockExists(txn, source) {
				stack = append(stack, source)
				ready = false
			}
		}
		if !ready {
			continue
		}
		stack = stack[:len(stack)-1]
		planned.Add(h)
		plan = append(plan, cementStep{account: blk.Account(), hash: h, height: blk.Height()})
	}
	if len(plan) >= maxWalkItems {
		c.logger.Debug("Bounded walk truncated at item cap", "target", target,
			"planned", len(plan))
	}
	return plan
}
