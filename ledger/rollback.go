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

package ledger

import (
	"errors"
	"fmt"

	"github.com/nanocurrency/go-nano/common"
	"github.com/nanocurrency/go-nano/core/types"
	"github.com/nanocurrency/go-nano/store"
)

// ErrRollbackFailed marks a rollback that would undo a confirmed block.
var ErrRollbackFailed = errors.New("rollback would undo a confirmed block")

// Rollback undoes target and every block above it, LIFO per account. When a
// send being undone was already received, the receiving chain is rolled
// back first. Returns the undone blocks in undo order.
func (l *Ledger) Rollback(txn store.WriteTxn, target common.Hash) ([]*types.SavedBlock, error) {
	if !store.BlockExists(txn, target) {
		return nil, fmt.Errorf("rollback: unknown block %s", target)
	}
	var list []*types.SavedBlock
	for store.BlockExists(txn, target) {
		blk, _ := store.GetBlock(txn, target)
		account := blk.Account()
		info, ok := store.GetAccount(txn, account)
		if !ok {
			panic(fmt.Sprintf("rollback: block %s has no account info", target))
		}
		head, ok := store.GetBlock(txn, info.Head)
		if !ok {
			panic(fmt.Sprintf("rollback: missing head %s", info.Head))
		}
		conf := store.GetConfirmationHeight(txn, account)
		if head.Height() <= conf.Height {
			return list, ErrRollbackFailed
		}
		if head.IsSend() {
			// A consumed pending entry means a receiver depends on this
			// send; undo the receiver's chain first.
			dest, _ := head.Destination()
			key := types.PendingKey{Account: dest, Hash: head.Hash()}
			if _, pending := store.GetPending(txn, key); !pending {
				recv, found := l.findReceiveBlock(txn, dest, head.Hash())
				if !found {
					return list, ErrRollbackFailed
				}
				sub, err := l.Rollback(txn, recv)
				list = append(list, sub...)
				if err != nil {
					return list, err
				}
				continue
			}
		}
		l.undoHead(txn, account, info, head)
		list = append(list, head)
		l.rollbackCounter.Inc(1)
	}
	return list, nil
}

// undoHead reverses the head block of an account.
func (l *Ledger) undoHead(txn store.WriteTxn, account common.Account, info types.AccountInfo, head *types.SavedBlock) {
	hash := head.Hash()
	prevHash := head.Block.Previous()

	prevBalance := common.Amount{}
	if prevHash.IsZero() {
		store.DelAccount(txn, account)
		l.Weights.Apply(info.Representative, info.Balance, common.BurnAccount, common.Amount{})
	} else {
		prev, ok := store.GetBlock(txn, prevHash)
		if !ok {
			panic(fmt.Sprintf("rollback: missing previous %s", prevHash))
		}
		prevBalance = prev.Balance()
		newInfo := types.AccountInfo{
			Head:           prevHash,
			Representative: l.representativeAt(txn, prev),
			OpenBlock:      info.OpenBlock,
			Balance:        prevBalance,
			Modified:       l.Now(),
			BlockCount:     info.BlockCount - 1,
			Epoch:          prev.Epoch(),
		}
		store.PutAccount(txn, account, &newInfo)
		store.SetBlockSuccessor(txn, prevHash, common.ZeroHash)
		l.Weights.Apply(info.Representative, info.Balance, newInfo.Representative, newInfo.Balance)
		if types.IsLegacy(prev.Block) {
			store.PutFrontier(txn, prevHash, account)
		}
	}

	if head.IsSend() {
		dest, _ := head.Destination()
		store.DelPending(txn, types.PendingKey{Account: dest, Hash: hash})
	}
	if head.IsReceive() {
		if source, ok := head.Source(); ok {
			received := head.Balance().Sub(prevBalance)
			sourceAccount := common.BurnAccount
			if src, ok := store.GetBlock(txn, source); ok {
				sourceAccount = src.Account()
			}
			store.PutPending(txn, types.PendingKey{Account: account, Hash: source}, &types.PendingInfo{
				Source: sourceAccount,
				Amount: received,
				Epoch:  head.SourceEpoch(),
			})
		}
	}

	if types.IsLegacy(head.Block) {
		store.DelFrontier(txn, hash)
	}
	store.DelBlock(txn, hash)

	l.logger.Debug("Rolled back block", "hash", hash, "account", account, "height", head.Height())
}

// representativeAt resolves the representative in force after block: its
// own field when it carries one, otherwise the nearest ancestor's.
func (l *Ledger) representativeAt(txn store.Txn, block *types.SavedBlock) common.Account {
	cur := block
	for {
		if rep, ok := cur.Block.RepresentativeField(); ok {
			return rep
		}
		prev := cur.Block.Previous()
		if prev.IsZero() {
			return common.BurnAccount
		}
		next, ok := store.GetBlock(txn, prev)
		if !ok {
			return common.BurnAccount
		}
		cur = next
	}
}

// findReceiveBlock scans an account chain head-to-open for the block that
// received the given send.
func (l *Ledger) findReceiveBlock(txn store.Txn, account common.Account, sendHash common.Hash) (common.Hash, bool) {
	info, ok := store.GetAccount(txn, account)
	if !ok {
		return common.ZeroHash, false
	}
	cur := info.Head
	for !cur.IsZero() {
		blk, ok := store.GetBlock(txn, cur)
		if !ok {
			return common.ZeroHash, false
		}
		if src, ok := blk.Source(); ok && src == sendHash {
			return cur, true
		}
		cur = blk.Block.Previous()
	}
	return common.ZeroHash, false
}
