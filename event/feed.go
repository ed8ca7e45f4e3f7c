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

// Package event provides typed one-to-many subscription feeds for the
// observer surfaces: block processed, rolled back, election confirmed,
// block cemented.
package event

import "sync"

// Subscription represents a stream of events; Unsubscribe detaches it.
type Subscription interface {
	Unsubscribe()
}

// Feed delivers values to every subscribed channel. Send blocks until all
// subscribers have accepted the value, so observer channels are buffered by
// their owners.
type Feed[T any] struct {
	mu   sync.Mutex
	subs map[*feedSub[T]]chan<- T
}

type feedSub[T any] struct {
	feed *Feed[T]
	once sync.Once
}

func (s *feedSub[T]) Unsubscribe() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s)
		s.feed.mu.Unlock()
	})
}

// Subscribe attaches ch to the feed.
func (f *Feed[T]) Subscribe(ch chan<- T) Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[*feedSub[T]]chan<- T)
	}
	sub := &feedSub[T]{feed: f}
	f.subs[sub] = ch
	return sub
}

// Send delivers value to every subscriber and returns the number of
// channels it reached.
func (f *Feed[T]) Send(value T) int {
	f.mu.Lock()
	targets := make([]chan<- T, 0, len(f.subs))
	for _, ch := range f.subs {
		targets = append(targets, ch)
	}
	f.mu.Unlock()
	for _, ch := range targets {
		ch <- value
	}
	return len(targets)
}
