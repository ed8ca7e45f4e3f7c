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

// Package store provides the transactional key-value contract the ledger
// requires, with leveldb and in-memory backends and typed table views.
package store

import "errors"

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("not found")

// Table names one keyspace; each is stored under a distinct prefix byte and
// iterates in key order.
type Table byte

const (
	TableBlocks Table = iota + 1
	TableAccounts
	TablePending
	TableFrontiers
	TableConfirmationHeight
	TablePruned
	TablePeers
	TableMeta
)

func (t Table) String() string {
	switch t {
	case TableBlocks:
		return "blocks"
	case TableAccounts:
		return "accounts"
	case TablePending:
		return "pending"
	case TableFrontiers:
		return "frontiers"
	case TableConfirmationHeight:
		return "confirmation_height"
	case TablePruned:
		return "pruned"
	case TablePeers:
		return "peers"
	case TableMeta:
		return "meta"
	default:
		return "unknown"
	}
}

// Txn is a read view over the store.
type Txn interface {
	// Get returns the value for key, ErrNotFound when absent.
	Get(table Table, key []byte) ([]byte, error)
	// Has reports key existence without decoding.
	Has(table Table, key []byte) (bool, error)
	// Iterate walks entries with the given key prefix in ascending key
	// order; fn returns false to stop.
	Iterate(table Table, prefix []byte, fn func(key, value []byte) bool) error
	// Refresh releases the underlying snapshot and re-acquires a fresh,
	// consistent one. Long-running readers call it to observe writer
	// progress without holding old snapshots alive.
	Refresh() error
	// Discard releases the view.
	Discard()
}

// WriteTxn is the single-writer view. Reads observe the transaction's own
// writes.
type WriteTxn interface {
	Txn
	Put(table Table, key, value []byte) error
	Delete(table Table, key []byte) error
	// Commit publishes the writes and releases the writer slot.
	Commit() error
}

// Store is the transactional KV layer. Exactly one write transaction exists
// at a time; BeginWrite blocks until the writer slot frees up.
type Store interface {
	BeginRead() (Txn, error)
	BeginWrite() (WriteTxn, error)
	Close() error
}

func prefixed(table Table, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = byte(table)
	copy(out[1:], key)
	return out
}
