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
)

// onlineCutoff ages a representative out of the online set.
const onlineCutoff = 5 * time.Minute

// OnlineReps tracks which representatives were recently heard from; the
// transport layer feeds it from incoming votes and the rep crawler. The sum
// of their weights is the denominator of quorum.
type OnlineReps struct {
	mu       sync.Mutex
	seen     map[common.Account]time.Time
	weightOf func(common.Account) common.Amount
	now      func() time.Time
}

// NewOnlineReps builds a tracker reading weights through weightOf.
func NewOnlineReps(weightOf func(common.Account) common.Amount) *OnlineReps {
	return &OnlineReps{
		seen:     make(map[common.Account]time.Time),
		weightOf: weightOf,
		now:      time.Now,
	}
}

// Observe marks a representative as online now.
func (o *OnlineReps) Observe(rep common.Account) {
	o.mu.Lock()
	o.seen[rep] = o.now()
	o.mu.Unlock()
}

// OnlineWeight sums the weights of representatives heard within the
// cutoff, pruning stale ones as it goes.
func (o *OnlineReps) OnlineWeight() common.Amount {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now()
	total := common.Amount{}
	for rep, at := range o.seen {
		if now.Sub(at) >= onlineCutoff {
			delete(o.seen, rep)
			continue
		}
		total = total.Add(o.weightOf(rep))
	}
	return total
}

// Count reports the number of currently online representatives.
func (o *OnlineReps) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.seen)
}
