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

// Package ledger implements the deterministic state machine over the block
// DAG: validation of candidate blocks, atomic application of the resulting
// deltas, rollback, and the representative weight index.
package ledger

import (
	"fmt"
	"time"

	"github.com/nanocurrency/go-nano/common"
	"github.com/nanocurrency/go-nano/core/types"
	"github.com/nanocurrency/go-nano/crypto"
	"github.com/nanocurrency/go-nano/log"
	"github.com/nanocurrency/go-nano/metrics"
	"github.com/nanocurrency/go-nano/params"
	"github.com/nanocurrency/go-nano/store"
)

// Ledger owns the block store view and the derived representative weights.
// All mutation happens through Process and Rollback under a single write
// transaction.
type Ledger struct {
	Store   store.Store
	Net     *params.NetworkConfig
	Weights *RepWeights

	// Now supplies sideband timestamps; overridable for deterministic
	// tests.
	Now func() uint64

	logger log.Logger

	processedCounter *metrics.Counter
	rollbackCounter  *metrics.Counter
}

// NewLedger opens a ledger over s, inserting the network genesis on first
// start and rebuilding the weight index.
func NewLedger(s store.Store, net *params.NetworkConfig) (*Ledger, error) {
	return NewLedgerWithClock(s, net, func() uint64 { return uint64(time.Now().Unix()) })
}

// NewLedgerWithClock is NewLedger with an injected timestamp source; tests
// use it for reproducible sidebands.
func NewLedgerWithClock(s store.Store, net *params.NetworkConfig, now func() uint64) (*Ledger, error) {
	l := &Ledger{
		Store:            s,
		Net:              net,
		Weights:          NewRepWeights(),
		Now:              now,
		logger:           log.New("module", "ledger"),
		processedCounter: metrics.NewRegisteredCounter("ledger/processed"),
		rollbackCounter:  metrics.NewRegisteredCounter("ledger/rollback"),
	}
	txn, err := s.BeginWrite()
	if err != nil {
		return nil, err
	}
	if err := l.ensureGenesis(txn); err != nil {
		txn.Discard()
		return nil, err
	}
	l.Weights.Rebuild(txn)
	if err := txn.Commit(); err != nil {
		return nil, err
	}
	return l, nil
}

// GenesisBlock constructs the network's open block: the embedded literal
// where one is published, otherwise signed on the fly with the dev key.
func (l *Ledger) GenesisBlock() *types.OpenBlock {
	if l.Net.GenesisJSON != "" {
		b, err := types.BlockFromJSON([]byte(l.Net.GenesisJSON))
		if err != nil {
			panic(fmt.Sprintf("embedded genesis invalid: %v", err))
		}
		return b.(*types.OpenBlock)
	}
	genesis := l.Net.GenesisAccount
	open := &types.OpenBlock{
		Source:         genesis.ToHash(),
		Representative: genesis,
		Account:        genesis,
	}
	h := open.Hash()
	open.SetSignature(l.Net.GenesisKey.Sign(h[:]))
	return open
}

func (l *Ledger) ensureGenesis(txn store.WriteTxn) error {
	if _, ok := store.GetAccount(txn, l.Net.GenesisAccount); ok {
		return nil
	}
	open := l.GenesisBlock()
	hash := open.Hash()
	now := l.Now()
	saved := &types.SavedBlock{
		Block: open,
		Sideband: types.BlockSideband{
			Account:   open.Account,
			Balance:   common.MaxAmount,
			Height:    1,
			Timestamp: now,
			Details:   types.BlockDetails{Epoch: params.Epoch0, IsReceive: true},
		},
	}
	store.PutBlock(txn, saved)
	store.PutFrontier(txn, hash, open.Account)
	store.PutAccount(txn, open.Account, &types.AccountInfo{
		Head:           hash,
		Representative: open.Representative,
		OpenBlock:      hash,
		Balance:        common.MaxAmount,
		Modified:       now,
		BlockCount:     1,
		Epoch:          params.Epoch0,
	})
	// Genesis is confirmed by definition.
	store.PutConfirmationHeight(txn, open.Account, types.ConfirmationHeightInfo{
		Height:   1,
		Frontier: hash,
	})
	l.logger.Info("Inserted genesis block", "hash", hash, "network", l.Net.Name)
	return nil
}

// Process validates the candidate against the transaction's view and, on
// Progress, commits its deltas.
func (l *Ledger) Process(txn store.WriteTxn, b types.Block) BlockStatus {
	plan, status := l.validate(txn, b)
	if status != Progress {
		return status
	}
	l.apply(txn, b, plan)
	l.processedCounter.Inc(1)
	return Progress
}

// Validate runs the decision function without applying; it reads the
// transaction's view and nothing else, so equal views yield equal results.
func (l *Ledger) Validate(txn store.Txn, b types.Block) BlockStatus {
	_, status := l.validate(txn, b)
	return status
}

// BlockOrPrunedExists reports whether the hash is either stored or pruned;
// pruned hashes were cemented before removal and still count as known.
func (l *Ledger) BlockOrPrunedExists(txn store.Txn, hash common.Hash) bool {
	return store.BlockExists(txn, hash) || store.PrunedExists(txn, hash)
}

// GetBlock loads a saved block.
func (l *Ledger) GetBlock(txn store.Txn, hash common.Hash) (*types.SavedBlock, bool) {
	return store.GetBlock(txn, hash)
}

// Weight returns the representative's aggregate delegated balance.
func (l *Ledger) Weight(rep common.Account) common.Amount {
	return l.Weights.Weight(rep)
}

// ValidateEpochSignature checks a state block against the designated signer
// of the epoch named by its link.
func (l *Ledger) ValidateEpochSignature(b types.Block) error {
	link, ok := b.LinkField()
	if !ok {
		return fmt.Errorf("no epoch link")
	}
	epoch := l.Net.Epochs.Epoch(link)
	signer, ok := l.Net.Epochs.Signer(epoch)
	if !ok {
		return fmt.Errorf("no signer for epoch %v", epoch)
	}
	h := b.Hash()
	return crypto.ValidateMessage(signer, h[:], b.Signature())
}

// SuccessorAtRoot resolves the block currently occupying the qualified
// root's position: the previous block's successor, or the account's open
// block when the root is an account.
func (l *Ledger) SuccessorAtRoot(txn store.Txn, root common.QualifiedRoot) (common.Hash, bool) {
	if !root.Previous.IsZero() {
		prev, ok := store.GetBlock(txn, root.Previous)
		if !ok {
			return common.ZeroHash, false
		}
		return prev.Successor()
	}
	info, ok := store.GetAccount(txn, common.Account(root.Root))
	if !ok {
		return common.ZeroHash, false
	}
	return info.OpenBlock, true
}

// BlockConfirmed reports whether the hash sits at or below its account's
// confirmation height.
func (l *Ledger) BlockConfirmed(txn store.Txn, hash common.Hash) bool {
	if store.PrunedExists(txn, hash) {
		return true
	}
	b, ok := store.GetBlock(txn, hash)
	if !ok {
		return false
	}
	conf := store.GetConfirmationHeight(txn, b.Account())
	return b.Height() <= conf.Height
}

// ConfirmationHeight reads an account's cemented frontier, zero when none.
func (l *Ledger) ConfirmationHeight(txn store.Txn, account common.Account) types.ConfirmationHeightInfo {
	return store.GetConfirmationHeight(txn, account)
}

// SetConfirmationHeight advances the cemented frontier. Confirmation height
// is monotonic; regressions are store-invariant bugs.
func (l *Ledger) SetConfirmationHeight(txn store.WriteTxn, account common.Account, height uint64, frontier common.Hash) {
	cur := store.GetConfirmationHeight(txn, account)
	if height < cur.Height {
		panic(fmt.Sprintf("confirmation height regression for %s: %d < %d", account, height, cur.Height))
	}
	store.PutConfirmationHeight(txn, account, types.ConfirmationHeightInfo{
		Height:   height,
		Frontier: frontier,
	})
}

// AccountOf deduces the owning account of a stored block.
func (l *Ledger) AccountOf(txn store.Txn, hash common.Hash) (common.Account, bool) {
	b, ok := store.GetBlock(txn, hash)
	if !ok {
		return common.BurnAccount, false
	}
	return b.Account(), true
}
