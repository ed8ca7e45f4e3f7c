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

package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/nanocurrency/go-nano/common"
	"github.com/nanocurrency/go-nano/core/types"
)

// The typed accessors below are the only way ledger code touches tables.
// Key layouts are fixed; values use the codecs in core/types. A store I/O
// failure other than ErrNotFound is a store-invariant bug and panics, per
// the propagation policy: the ledger never half-applies a plan.

func check(err error) {
	if err != nil && !errors.Is(err, ErrNotFound) {
		panic(fmt.Sprintf("store failure: %v", err))
	}
}

// PutBlock persists a saved block under its hash.
func PutBlock(txn WriteTxn, b *types.SavedBlock) {
	var buf bytes.Buffer
	b.Encode(&buf)
	h := b.Hash()
	check(txn.Put(TableBlocks, h[:], buf.Bytes()))
}

// GetBlock loads a saved block.
func GetBlock(txn Txn, hash common.Hash) (*types.SavedBlock, bool) {
	v, err := txn.Get(TableBlocks, hash[:])
	if err != nil {
		check(err)
		return nil, false
	}
	b, err := types.DecodeSavedBlock(bytes.NewReader(v))
	if err != nil {
		panic(fmt.Sprintf("corrupt block record %s: %v", hash, err))
	}
	return b, true
}

// BlockExists reports presence without decoding.
func BlockExists(txn Txn, hash common.Hash) bool {
	ok, err := txn.Has(TableBlocks, hash[:])
	check(err)
	return ok
}

// DelBlock removes a block record.
func DelBlock(txn WriteTxn, hash common.Hash) {
	check(txn.Delete(TableBlocks, hash[:]))
}

// SetBlockSuccessor patches the successor back-pointer of a stored block.
func SetBlockSuccessor(txn WriteTxn, hash, successor common.Hash) {
	b, ok := GetBlock(txn, hash)
	if !ok {
		panic(fmt.Sprintf("successor patch for missing block %s", hash))
	}
	b.Sideband.Successor = successor
	PutBlock(txn, b)
}

// PutAccount writes the account-info record.
func PutAccount(txn WriteTxn, account common.Account, info *types.AccountInfo) {
	var buf bytes.Buffer
	info.Encode(&buf)
	check(txn.Put(TableAccounts, account[:], buf.Bytes()))
}

// GetAccount loads an account-info record.
func GetAccount(txn Txn, account common.Account) (types.AccountInfo, bool) {
	v, err := txn.Get(TableAccounts, account[:])
	if err != nil {
		check(err)
		return types.AccountInfo{}, false
	}
	info, err := types.DecodeAccountInfo(bytes.NewReader(v))
	if err != nil {
		panic(fmt.Sprintf("corrupt account record %s: %v", account, err))
	}
	return info, true
}

// DelAccount removes an account-info record (rollback past the open).
func DelAccount(txn WriteTxn, account common.Account) {
	check(txn.Delete(TableAccounts, account[:]))
}

// IterateAccounts walks all account infos in key order.
func IterateAccounts(txn Txn, fn func(common.Account, types.AccountInfo) bool) {
	check(txn.Iterate(TableAccounts, nil, func(k, v []byte) bool {
		var a common.Account
		copy(a[:], k)
		info, err := types.DecodeAccountInfo(bytes.NewReader(v))
		if err != nil {
			panic(fmt.Sprintf("corrupt account record %s: %v", a, err))
		}
		return fn(a, info)
	}))
}

// PutPending writes a receivable entry.
func PutPending(txn WriteTxn, key types.PendingKey, info *types.PendingInfo) {
	var buf bytes.Buffer
	info.Encode(&buf)
	check(txn.Put(TablePending, key.Bytes(), buf.Bytes()))
}

// GetPending loads a receivable entry.
func GetPending(txn Txn, key types.PendingKey) (types.PendingInfo, bool) {
	v, err := txn.Get(TablePending, key.Bytes())
	if err != nil {
		check(err)
		return types.PendingInfo{}, false
	}
	info, err := types.DecodePendingInfo(bytes.NewReader(v))
	if err != nil {
		panic(fmt.Sprintf("corrupt pending record: %v", err))
	}
	return info, true
}

// DelPending removes a consumed receivable.
func DelPending(txn WriteTxn, key types.PendingKey) {
	check(txn.Delete(TablePending, key.Bytes()))
}

// PendingAny reports whether the account has at least one receivable.
func PendingAny(txn Txn, account common.Account) bool {
	found := false
	check(txn.Iterate(TablePending, account[:], func(k, v []byte) bool {
		found = true
		return false
	}))
	return found
}

// IteratePending walks an account's receivables in send-hash order.
func IteratePending(txn Txn, account common.Account, fn func(types.PendingKey, types.PendingInfo) bool) {
	check(txn.Iterate(TablePending, account[:], func(k, v []byte) bool {
		key := types.DecodePendingKey(k)
		info, err := types.DecodePendingInfo(bytes.NewReader(v))
		if err != nil {
			panic(fmt.Sprintf("corrupt pending record: %v", err))
		}
		return fn(key, info)
	}))
}

// PutFrontier writes the legacy head-hash index entry.
func PutFrontier(txn WriteTxn, hash common.Hash, account common.Account) {
	check(txn.Put(TableFrontiers, hash[:], account[:]))
}

// GetFrontier resolves a legacy head hash to its account.
func GetFrontier(txn Txn, hash common.Hash) (common.Account, bool) {
	v, err := txn.Get(TableFrontiers, hash[:])
	if err != nil {
		check(err)
		return common.BurnAccount, false
	}
	var a common.Account
	copy(a[:], v)
	return a, true
}

// DelFrontier removes a legacy head index entry.
func DelFrontier(txn WriteTxn, hash common.Hash) {
	check(txn.Delete(TableFrontiers, hash[:]))
}

// PutConfirmationHeight writes the cemented frontier for an account.
func PutConfirmationHeight(txn WriteTxn, account common.Account, info types.ConfirmationHeightInfo) {
	var buf bytes.Buffer
	info.Encode(&buf)
	check(txn.Put(TableConfirmationHeight, account[:], buf.Bytes()))
}

// GetConfirmationHeight loads the cemented frontier, zero when absent.
func GetConfirmationHeight(txn Txn, account common.Account) types.ConfirmationHeightInfo {
	v, err := txn.Get(TableConfirmationHeight, account[:])
	if err != nil {
		check(err)
		return types.ConfirmationHeightInfo{}
	}
	info, err := types.DecodeConfirmationHeightInfo(bytes.NewReader(v))
	if err != nil {
		panic(fmt.Sprintf("corrupt confirmation height record: %v", err))
	}
	return info
}

// PutPruned marks a hash as pruned (block removed, identity retained).
func PutPruned(txn WriteTxn, hash common.Hash) {
	check(txn.Put(TablePruned, hash[:], []byte{1}))
}

// PrunedExists reports whether a hash was pruned.
func PrunedExists(txn Txn, hash common.Hash) bool {
	ok, err := txn.Has(TablePruned, hash[:])
	check(err)
	return ok
}

// PutPeer records a peer endpoint with its last-contact timestamp.
func PutPeer(txn WriteTxn, endpoint string, timestamp uint64) {
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], timestamp)
	check(txn.Put(TablePeers, []byte(endpoint), v[:]))
}

// IteratePeers walks recorded peer endpoints.
func IteratePeers(txn Txn, fn func(endpoint string, timestamp uint64) bool) {
	check(txn.Iterate(TablePeers, nil, func(k, v []byte) bool {
		var ts uint64
		if len(v) == 8 {
			ts = binary.BigEndian.Uint64(v)
		}
		return fn(string(k), ts)
	}))
}
