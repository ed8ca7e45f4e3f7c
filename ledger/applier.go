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
	"github.com/nanocurrency/go-nano/common"
	"github.com/nanocurrency/go-nano/core/types"
	"github.com/nanocurrency/go-nano/store"
)

// apply commits a validated plan. It must not fail: a failure here is a
// store-invariant bug and the typed accessors panic on it.
func (l *Ledger) apply(txn store.WriteTxn, b types.Block, p *applyPlan) {
	hash := b.Hash()
	saved := &types.SavedBlock{Block: b, Sideband: p.sideband}
	store.PutBlock(txn, saved)

	if prev := b.Previous(); !prev.IsZero() {
		store.SetBlockSuccessor(txn, prev, hash)
	}

	if p.pendingReceived != nil {
		store.DelPending(txn, *p.pendingReceived)
	}
	if p.newPendingKey != nil {
		info := p.newPendingInfo
		store.PutPending(txn, *p.newPendingKey, &info)
	}

	store.PutAccount(txn, p.account, &p.newInfo)

	// The frontier table only indexes legacy heads: add the new head if
	// legacy, drop the superseded one.
	if p.oldInfoExists {
		store.DelFrontier(txn, p.oldInfo.Head)
	}
	if types.IsLegacy(b) {
		store.PutFrontier(txn, hash, p.account)
	}

	oldRep, oldBalance := common.BurnAccount, common.Amount{}
	if p.oldInfoExists {
		oldRep, oldBalance = p.oldInfo.Representative, p.oldInfo.Balance
	}
	l.Weights.Apply(oldRep, oldBalance, p.newInfo.Representative, p.newInfo.Balance)

	l.logger.Trace("Applied block", "hash", hash, "account", p.account,
		"height", p.sideband.Height, "subtype", p.sideband.Details.Subtype())
}
