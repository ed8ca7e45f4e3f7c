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
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelStore implements Store on goleveldb. Write transactions map onto
// leveldb transactions (read-your-writes); read transactions map onto
// snapshots, re-acquired on Refresh.
type LevelStore struct {
	db *leveldb.DB

	// writerMu serializes write transactions: the store write lock.
	writerMu sync.Mutex

	quitOnce sync.Once
}

// NewLevelStore opens (or creates) the database at path.
func NewLevelStore(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		OpenFilesCacheCapacity: 512,
		BlockCacheCapacity:     16 * opt.MiB,
		WriteBuffer:            16 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	})
	if ldberrors.IsCorrupted(err) {
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	return &LevelStore{db: db}, nil
}

func (s *LevelStore) BeginRead() (Txn, error) {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, err
	}
	return &levelReadTxn{store: s, snap: snap}, nil
}

func (s *LevelStore) BeginWrite() (WriteTxn, error) {
	s.writerMu.Lock()
	tx, err := s.db.OpenTransaction()
	if err != nil {
		s.writerMu.Unlock()
		return nil, err
	}
	return &levelWriteTxn{store: s, tx: tx}, nil
}

func (s *LevelStore) Close() error {
	var err error
	s.quitOnce.Do(func() {
		err = s.db.Close()
	})
	return err
}

type levelReadTxn struct {
	store *LevelStore
	snap  *leveldb.Snapshot
}

func (t *levelReadTxn) Get(table Table, key []byte) ([]byte, error) {
	v, err := t.snap.Get(prefixed(table, key), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return v, err
}

func (t *levelReadTxn) Has(table Table, key []byte) (bool, error) {
	return t.snap.Has(prefixed(table, key), nil)
}

func (t *levelReadTxn) Iterate(table Table, prefix []byte, fn func(key, value []byte) bool) error {
	it := t.snap.NewIterator(util.BytesPrefix(prefixed(table, prefix)), nil)
	defer it.Release()
	for it.Next() {
		k := append([]byte(nil), it.Key()[1:]...)
		v := append([]byte(nil), it.Value()...)
		if !fn(k, v) {
			break
		}
	}
	return it.Error()
}

func (t *levelReadTxn) Refresh() error {
	t.snap.Release()
	snap, err := t.store.db.GetSnapshot()
	if err != nil {
		return err
	}
	t.snap = snap
	return nil
}

func (t *levelReadTxn) Discard() { t.snap.Release() }

type levelWriteTxn struct {
	store *LevelStore
	tx    *leveldb.Transaction
	done  bool
}

func (t *levelWriteTxn) Get(table Table, key []byte) ([]byte, error) {
	v, err := t.tx.Get(prefixed(table, key), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return v, err
}

func (t *levelWriteTxn) Has(table Table, key []byte) (bool, error) {
	return t.tx.Has(prefixed(table, key), nil)
}

func (t *levelWriteTxn) Iterate(table Table, prefix []byte, fn func(key, value []byte) bool) error {
	it := t.tx.NewIterator(util.BytesPrefix(prefixed(table, prefix)), nil)
	defer it.Release()
	for it.Next() {
		k := append([]byte(nil), it.Key()[1:]...)
		v := append([]byte(nil), it.Value()...)
		if !fn(k, v) {
			break
		}
	}
	return it.Error()
}

func (t *levelWriteTxn) Put(table Table, key, value []byte) error {
	return t.tx.Put(prefixed(table, key), value, nil)
}

func (t *levelWriteTxn) Delete(table Table, key []byte) error {
	return t.tx.Delete(prefixed(table, key), nil)
}

// Refresh on a write transaction commits, yields the writer slot so a
// queued writer can interleave, then re-acquires it with a fresh
// transaction.
func (t *levelWriteTxn) Refresh() error {
	if err := t.tx.Commit(); err != nil {
		t.done = true
		t.store.writerMu.Unlock()
		return err
	}
	t.store.writerMu.Unlock()
	t.store.writerMu.Lock()
	tx, err := t.store.db.OpenTransaction()
	if err != nil {
		t.done = true
		t.store.writerMu.Unlock()
		return err
	}
	t.tx = tx
	return nil
}

func (t *levelWriteTxn) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	err := t.tx.Commit()
	t.store.writerMu.Unlock()
	return err
}

func (t *levelWriteTxn) Discard() {
	if t.done {
		return
	}
	t.done = true
	t.tx.Discard()
	t.store.writerMu.Unlock()
}
