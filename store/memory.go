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
	"sync"

	"golang.org/x/exp/slices"
)

// MemoryStore is the map-backed Store used by tests and ephemeral dev
// nodes. Writes apply eagerly under the writer slot; there is no crash
// atomicity to provide.
type MemoryStore struct {
	mu       sync.RWMutex
	data     map[Table]map[string][]byte
	writerMu sync.Mutex
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[Table]map[string][]byte)}
}

func (s *MemoryStore) table(t Table) map[string][]byte {
	m, ok := s.data[t]
	if !ok {
		m = make(map[string][]byte)
		s.data[t] = m
	}
	return m
}

func (s *MemoryStore) BeginRead() (Txn, error) {
	return &memTxn{store: s}, nil
}

func (s *MemoryStore) BeginWrite() (WriteTxn, error) {
	s.writerMu.Lock()
	return &memTxn{store: s, write: true}, nil
}

func (s *MemoryStore) Close() error { return nil }

// Dump copies the entire contents, omitting tables with no entries; tests
// use it to compare states.
func (s *MemoryStore) Dump() map[Table]map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Table]map[string][]byte, len(s.data))
	for t, m := range s.data {
		if len(m) == 0 {
			continue
		}
		cp := make(map[string][]byte, len(m))
		for k, v := range m {
			cp[k] = append([]byte(nil), v...)
		}
		out[t] = cp
	}
	return out
}

type memTxn struct {
	store *MemoryStore
	write bool
	done  bool
}

func (t *memTxn) Get(table Table, key []byte) ([]byte, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	v, ok := t.store.data[table][string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (t *memTxn) Has(table Table, key []byte) (bool, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	_, ok := t.store.data[table][string(key)]
	return ok, nil
}

func (t *memTxn) Iterate(table Table, prefix []byte, fn func(key, value []byte) bool) error {
	type kv struct {
		k string
		v []byte
	}
	t.store.mu.RLock()
	var entries []kv
	for k, v := range t.store.data[table] {
		if len(k) >= len(prefix) && k[:len(prefix)] == string(prefix) {
			entries = append(entries, kv{k, append([]byte(nil), v...)})
		}
	}
	t.store.mu.RUnlock()
	slices.SortFunc(entries, func(a, b kv) int {
		switch {
		case a.k < b.k:
			return -1
		case a.k > b.k:
			return 1
		default:
			return 0
		}
	})
	for _, e := range entries {
		if !fn([]byte(e.k), e.v) {
			break
		}
	}
	return nil
}

func (t *memTxn) Put(table Table, key, value []byte) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.table(table)[string(key)] = append([]byte(nil), value...)
	return nil
}

func (t *memTxn) Delete(table Table, key []byte) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	delete(t.store.data[table], string(key))
	return nil
}

func (t *memTxn) Refresh() error {
	if t.write {
		// Yield the writer slot like the leveldb backend does.
		t.store.writerMu.Unlock()
		t.store.writerMu.Lock()
	}
	return nil
}

func (t *memTxn) Commit() error {
	if t.write && !t.done {
		t.done = true
		t.store.writerMu.Unlock()
	}
	return nil
}

func (t *memTxn) Discard() {
	if t.write && !t.done {
		t.done = true
		t.store.writerMu.Unlock()
	}
}
