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
	"sync"

	"github.com/nanocurrency/go-nano/common"
	"github.com/nanocurrency/go-nano/core/types"
	"github.com/nanocurrency/go-nano/store"
)

// RepWeights is the in-memory representative weight index: for each
// representative, the sum of balances of accounts delegating to it. It is
// derived state, rebuilt from account infos at startup, and mutated only
// under the store write lock.
type RepWeights struct {
	mu      sync.RWMutex
	weights map[common.Account]common.Amount
}

// NewRepWeights builds an empty index.
func NewRepWeights() *RepWeights {
	return &RepWeights{weights: make(map[common.Account]common.Amount)}
}

// Weight returns the aggregate balance delegated to rep.
func (r *RepWeights) Weight(rep common.Account) common.Amount {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.weights[rep]
}

// Apply moves a block's delta through the index in one fused operation so
// no reader observes the balance detached from both representatives.
func (r *RepWeights) Apply(oldRep common.Account, oldBalance common.Amount, newRep common.Account, newBalance common.Amount) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subLocked(oldRep, oldBalance)
	r.addLocked(newRep, newBalance)
}

func (r *RepWeights) addLocked(rep common.Account, amount common.Amount) {
	if rep.IsZero() || amount.IsZero() {
		return
	}
	r.weights[rep] = r.weights[rep].Add(amount)
}

func (r *RepWeights) subLocked(rep common.Account, amount common.Amount) {
	if rep.IsZero() || amount.IsZero() {
		return
	}
	next := r.weights[rep].Sub(amount)
	if next.IsZero() {
		delete(r.weights, rep)
		return
	}
	r.weights[rep] = next
}

// Len reports the number of distinct representatives with weight.
func (r *RepWeights) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.weights)
}

// Snapshot copies the index; callers use it for telemetry only.
func (r *RepWeights) Snapshot() map[common.Account]common.Amount {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[common.Account]common.Amount, len(r.weights))
	for k, v := range r.weights {
		out[k] = v
	}
	return out
}

// Rebuild replays every account info and replaces the index contents.
func (r *RepWeights) Rebuild(txn store.Txn) {
	fresh := make(map[common.Account]common.Amount)
	store.IterateAccounts(txn, func(_ common.Account, info types.AccountInfo) bool {
		if !info.Balance.IsZero() {
			fresh[info.Representative] = fresh[info.Representative].Add(info.Balance)
		}
		return true
	})
	r.mu.Lock()
	r.weights = fresh
	r.mu.Unlock()
}
