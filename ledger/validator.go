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
	"github.com/nanocurrency/go-nano/crypto"
	"github.com/nanocurrency/go-nano/params"
	"github.com/nanocurrency/go-nano/store"
)

// applyPlan is the validator's output: every delta the applier commits.
type applyPlan struct {
	account       common.Account
	oldInfo       types.AccountInfo
	oldInfoExists bool
	newInfo       types.AccountInfo
	// pendingReceived is the entry the block consumes, if any.
	pendingReceived *types.PendingKey
	// newPendingKey/Info is the entry a send creates, if any.
	newPendingKey  *types.PendingKey
	newPendingInfo types.PendingInfo
	sideband       types.BlockSideband
	isEpoch        bool
}

// validator evaluates one candidate block against a store view. It reads
// and never writes; both Progress and every error are pure functions of the
// block and the view.
type validator struct {
	l     *Ledger
	txn   store.Txn
	block types.Block

	account     common.Account
	previous    *types.SavedBlock
	oldInfo     types.AccountInfo
	hasOldInfo  bool
	pendingKey  *types.PendingKey
	pendingInfo types.PendingInfo
	hasPending  bool
}

// validate classifies the block and enforces the rule set; the earliest
// violation wins.
func (l *Ledger) validate(txn store.Txn, b types.Block) (*applyPlan, BlockStatus) {
	v := &validator{l: l, txn: txn, block: b}

	// Epoch-link prechecks run before anything else so a forged epoch
	// candidate fails BadSignature instead of landing in the unchecked map.
	if st := v.ensureEpochCandidateSignature(); st != Progress {
		return nil, st
	}
	if st := v.ensureEpochCandidatePrevious(); st != Progress {
		return nil, st
	}
	if l.BlockOrPrunedExists(txn, b.Hash()) {
		return nil, Old
	}
	if st := v.loadRelatedData(); st != Progress {
		return nil, st
	}
	for _, rule := range []func() BlockStatus{
		v.ensureValidSignature,
		v.ensureNotBurnAccount,
		v.ensureAccountExists,
		v.ensureNoDoubleOpen,
		v.ensurePreviousExists,
		v.ensurePreviousIsHead,
		v.ensureOpenHasLink,
		v.ensureNoBalanceChangeWithoutLink,
		v.ensureSourceExists,
		v.ensureReceivesPendingAmount,
		v.ensureLegacySourceIsEpoch0,
		v.ensureSufficientWork,
		v.ensureNoNegativeSpend,
		v.ensureEpochRules,
	} {
		if st := rule(); st != Progress {
			return nil, st
		}
	}
	return v.plan(), Progress
}

// --- classification helpers ---

func (v *validator) previousBalance() common.Amount {
	if v.previous == nil {
		return common.Amount{}
	}
	return v.previous.Balance()
}

func (v *validator) isSend() bool {
	switch b := v.block.(type) {
	case *types.SendBlock:
		return true
	case *types.StateBlock:
		return v.hasOldInfo && b.Balance.Cmp(v.oldInfo.Balance) < 0
	default:
		return false
	}
}

func (v *validator) isReceive() bool {
	switch b := v.block.(type) {
	case *types.ReceiveBlock, *types.OpenBlock:
		return true
	case *types.StateBlock:
		// Receives from the epoch sentinel are forbidden.
		if v.l.Net.Epochs.IsEpochLink(b.Link) {
			return false
		}
		if !v.hasOldInfo {
			return true
		}
		return b.Balance.Cmp(v.oldInfo.Balance) >= 0 && !b.Link.IsZero()
	default:
		return false
	}
}

// isEpochBlock only holds once the previous block is loadable: the balance
// comparison needs it.
func (v *validator) isEpochBlock() bool {
	b, ok := v.block.(*types.StateBlock)
	if !ok {
		return false
	}
	return v.l.Net.Epochs.IsEpochLink(b.Link) && v.previousBalance().Cmp(b.Balance) == 0
}

func (v *validator) blockEpochVersion() params.Epoch {
	b, ok := v.block.(*types.StateBlock)
	if !ok {
		return params.Epoch0
	}
	return v.l.Net.Epochs.Epoch(b.Link)
}

func (v *validator) sourceEpoch() params.Epoch {
	if v.hasPending {
		return v.pendingInfo.Epoch
	}
	return params.Epoch0
}

func (v *validator) epoch() params.Epoch {
	if v.isEpochBlock() {
		return v.blockEpochVersion()
	}
	e := params.Epoch0
	if v.hasOldInfo {
		e = v.oldInfo.Epoch
	}
	if se := v.sourceEpoch(); se > e {
		e = se
	}
	return e
}

func (v *validator) amountReceived() common.Amount {
	switch b := v.block.(type) {
	case *types.ReceiveBlock, *types.OpenBlock:
		if v.hasPending {
			return v.pendingInfo.Amount
		}
		return common.Amount{}
	case *types.StateBlock:
		prev := v.previousBalance()
		if prev.Cmp(b.Balance) < 0 {
			return b.Balance.Sub(prev)
		}
		return common.Amount{}
	default:
		return common.Amount{}
	}
}

func (v *validator) amountSent() common.Amount {
	if !v.hasOldInfo {
		return common.Amount{}
	}
	switch b := v.block.(type) {
	case *types.SendBlock:
		if b.Balance.Cmp(v.oldInfo.Balance) < 0 {
			return v.oldInfo.Balance.Sub(b.Balance)
		}
	case *types.StateBlock:
		if b.Balance.Cmp(v.oldInfo.Balance) < 0 {
			return v.oldInfo.Balance.Sub(b.Balance)
		}
	}
	return common.Amount{}
}

func (v *validator) newBalance() common.Amount {
	old := common.Amount{}
	if v.hasOldInfo {
		old = v.oldInfo.Balance
	}
	return old.Add(v.amountReceived()).Sub(v.amountSent())
}

// amount is the absolute balance delta.
func (v *validator) amount() common.Amount {
	old := common.Amount{}
	if v.hasOldInfo {
		old = v.oldInfo.Balance
	}
	nb := v.newBalance()
	if old.Cmp(nb) > 0 {
		return old.Sub(nb)
	}
	return nb.Sub(old)
}

func (v *validator) newRepresentative() common.Account {
	if rep, ok := v.block.RepresentativeField(); ok {
		return rep
	}
	if v.hasOldInfo {
		return v.oldInfo.Representative
	}
	return common.BurnAccount
}

func (v *validator) openBlock() common.Hash {
	if v.hasOldInfo {
		return v.oldInfo.OpenBlock
	}
	return v.block.Hash()
}

func (v *validator) newBlockCount() uint64 {
	if v.hasOldInfo {
		return v.oldInfo.BlockCount + 1
	}
	return 1
}

func (v *validator) details() types.BlockDetails {
	return types.BlockDetails{
		Epoch:     v.epoch(),
		IsSend:    v.isSend(),
		IsReceive: v.isReceive(),
		IsEpoch:   v.isEpochBlock(),
	}
}

func (v *validator) balanceChanged() bool {
	return v.hasOldInfo && v.newBalance().Cmp(v.oldInfo.Balance) != 0
}

// --- data loading ---

func (v *validator) loadRelatedData() BlockStatus {
	account, st := v.resolveAccount()
	if st != Progress {
		return st
	}
	v.account = account
	v.oldInfo, v.hasOldInfo = store.GetAccount(v.txn, account)
	if prev := v.block.Previous(); !prev.IsZero() {
		if b, ok := store.GetBlock(v.txn, prev); ok {
			v.previous = b
		}
	}
	v.pendingKey = v.pendingReceiveKey()
	if v.pendingKey != nil {
		v.pendingInfo, v.hasPending = store.GetPending(v.txn, *v.pendingKey)
	}
	return Progress
}

// resolveAccount finds the acting account: from the block for state/open
// variants, through the frontier index for legacy non-open blocks.
func (v *validator) resolveAccount() (common.Account, BlockStatus) {
	switch b := v.block.(type) {
	case *types.OpenBlock:
		return b.Account, Progress
	case *types.StateBlock:
		return b.Account, Progress
	default:
		prev, ok := store.GetBlock(v.txn, v.block.Previous())
		if !ok {
			return common.BurnAccount, GapPrevious
		}
		if !v.block.ValidPredecessor(prev.Block.Type()) {
			return common.BurnAccount, BlockPosition
		}
		account, ok := store.GetFrontier(v.txn, v.block.Previous())
		if !ok {
			// The previous block exists but is not a head: a competitor
			// already took this position.
			return common.BurnAccount, Fork
		}
		return account, Progress
	}
}

func (v *validator) pendingReceiveKey() *types.PendingKey {
	switch b := v.block.(type) {
	case *types.StateBlock:
		if v.isReceive() {
			return &types.PendingKey{Account: b.Account, Hash: b.Link.ToHash()}
		}
	case *types.OpenBlock:
		return &types.PendingKey{Account: v.account, Hash: b.Source}
	case *types.ReceiveBlock:
		return &types.PendingKey{Account: v.account, Hash: b.Source}
	}
	return nil
}

// --- rules ---

// ensureEpochCandidateSignature: a state block with an epoch link must be
// signed either by the account owner or by the epoch signer. It may still
// turn out to be a plain send to the epoch account.
func (v *validator) ensureEpochCandidateSignature() BlockStatus {
	b, ok := v.block.(*types.StateBlock)
	if !ok || !v.l.Net.Epochs.IsEpochLink(b.Link) {
		return Progress
	}
	h := b.Hash()
	if crypto.ValidateMessage(b.Account, h[:], b.Sig) != nil &&
		v.l.ValidateEpochSignature(b) != nil {
		return BadSignature
	}
	return Progress
}

func (v *validator) ensureEpochCandidatePrevious() BlockStatus {
	b, ok := v.block.(*types.StateBlock)
	if !ok || !v.l.Net.Epochs.IsEpochLink(b.Link) {
		return Progress
	}
	if !b.PreviousHash.IsZero() && !store.BlockExists(v.txn, b.PreviousHash) {
		return GapPrevious
	}
	return Progress
}

func (v *validator) ensureValidSignature() BlockStatus {
	var err error
	if v.isEpochBlock() {
		err = v.l.ValidateEpochSignature(v.block)
	} else {
		h := v.block.Hash()
		err = crypto.ValidateMessage(v.account, h[:], v.block.Signature())
	}
	if err != nil {
		return BadSignature
	}
	return Progress
}

func (v *validator) ensureNotBurnAccount() BlockStatus {
	if v.account.IsZero() {
		return OpenedBurnAccount
	}
	return Progress
}

func (v *validator) ensureAccountExists() BlockStatus {
	if !types.IsOpen(v.block) && !v.hasOldInfo {
		return GapPrevious
	}
	return Progress
}

func (v *validator) ensureNoDoubleOpen() BlockStatus {
	if v.hasOldInfo && types.IsOpen(v.block) {
		return Fork
	}
	return Progress
}

func (v *validator) ensurePreviousExists() BlockStatus {
	if v.hasOldInfo && v.previous == nil && !v.block.Previous().IsZero() {
		return GapPrevious
	}
	if !v.hasOldInfo && !v.block.Previous().IsZero() {
		return GapPrevious
	}
	return Progress
}

func (v *validator) ensurePreviousIsHead() BlockStatus {
	if v.hasOldInfo && v.block.Previous() != v.oldInfo.Head {
		return Fork
	}
	return Progress
}

// A state open with no link neither receives nor changes anything; the
// missing source reads as a gap.
func (v *validator) ensureOpenHasLink() BlockStatus {
	if b, ok := v.block.(*types.StateBlock); ok {
		if !v.hasOldInfo && b.Link.IsZero() {
			return GapSource
		}
	}
	return Progress
}

// Without a link the balance may not move; only the representative can.
func (v *validator) ensureNoBalanceChangeWithoutLink() BlockStatus {
	if b, ok := v.block.(*types.StateBlock); ok {
		if !v.isSend() && b.Link.IsZero() && !v.amount().IsZero() {
			return BalanceMismatch
		}
	}
	return Progress
}

func (v *validator) ensureSourceExists() BlockStatus {
	var source common.Hash
	switch b := v.block.(type) {
	case *types.ReceiveBlock:
		source = b.Source
	case *types.OpenBlock:
		source = b.Source
	case *types.StateBlock:
		if !v.isReceive() {
			return Progress
		}
		source = b.Link.ToHash()
	default:
		return Progress
	}
	if !v.l.BlockOrPrunedExists(v.txn, source) {
		return GapSource
	}
	return Progress
}

func (v *validator) ensureReceivesPendingAmount() BlockStatus {
	if !v.isReceive() {
		return Progress
	}
	if !v.hasPending {
		return Unreceivable
	}
	if v.amount().Cmp(v.pendingInfo.Amount) != 0 {
		return BalanceMismatch
	}
	return Progress
}

// Legacy receives cannot represent an upgraded source epoch; the account
// must take a state block instead.
func (v *validator) ensureLegacySourceIsEpoch0() BlockStatus {
	switch v.block.(type) {
	case *types.ReceiveBlock, *types.OpenBlock:
		if v.hasPending && v.pendingInfo.Epoch != params.Epoch0 {
			return Unreceivable
		}
	}
	return Progress
}

func (v *validator) ensureSufficientWork() BlockStatus {
	d := v.details()
	value := crypto.WorkValue(v.block.Root(), v.block.Work())
	if !v.l.Net.Work.Validate(value, d.Epoch, d.IsReceive, d.IsEpoch) {
		return InsufficientWork
	}
	return Progress
}

func (v *validator) ensureNoNegativeSpend() BlockStatus {
	if b, ok := v.block.(*types.SendBlock); ok {
		if v.previousBalance().Cmp(b.Balance) < 0 {
			return NegativeSpend
		}
	}
	return Progress
}

func (v *validator) ensureEpochRules() BlockStatus {
	b, ok := v.block.(*types.StateBlock)
	if !ok || !v.isEpochBlock() {
		return Progress
	}
	if v.hasOldInfo {
		if b.Representative != v.oldInfo.Representative {
			return RepresentativeMismatch
		}
		if !params.IsSequentialEpoch(v.oldInfo.Epoch, v.blockEpochVersion()) {
			return BlockPosition
		}
	} else {
		// Epoch opens carry the burn representative and require a pending
		// entry to exist for the account.
		if !b.Representative.IsZero() {
			return RepresentativeMismatch
		}
		if !store.PendingAny(v.txn, b.Account) {
			return GapEpochOpenPending
		}
		if v.blockEpochVersion() == params.EpochInvalid {
			return BlockPosition
		}
	}
	if v.balanceChanged() {
		return BalanceMismatch
	}
	return Progress
}

// --- plan construction ---

func (v *validator) plan() *applyPlan {
	now := v.l.Now()
	p := &applyPlan{
		account:       v.account,
		oldInfo:       v.oldInfo,
		oldInfoExists: v.hasOldInfo,
		newInfo: types.AccountInfo{
			Head:           v.block.Hash(),
			Representative: v.newRepresentative(),
			OpenBlock:      v.openBlock(),
			Balance:        v.newBalance(),
			Modified:       now,
			BlockCount:     v.newBlockCount(),
			Epoch:          v.epoch(),
		},
		sideband: types.BlockSideband{
			Account:     v.account,
			Successor:   common.ZeroHash,
			Balance:     v.newBalance(),
			Height:      v.newBlockCount(),
			Timestamp:   now,
			Details:     v.details(),
			SourceEpoch: v.sourceEpoch(),
		},
		isEpoch: v.isEpochBlock(),
	}
	if v.isReceive() && v.pendingKey != nil {
		p.pendingReceived = v.pendingKey
	}
	switch b := v.block.(type) {
	case *types.StateBlock:
		if v.isSend() {
			p.newPendingKey = &types.PendingKey{Account: b.Link.ToAccount(), Hash: b.Hash()}
			p.newPendingInfo = types.PendingInfo{
				Source: v.account,
				Amount: v.amount(),
				Epoch:  v.epoch(),
			}
		}
	case *types.SendBlock:
		p.newPendingKey = &types.PendingKey{Account: b.Destination, Hash: b.Hash()}
		p.newPendingInfo = types.PendingInfo{
			Source: v.account,
			Amount: v.amountSent(),
			Epoch:  params.Epoch0,
		}
	}
	return p
}
