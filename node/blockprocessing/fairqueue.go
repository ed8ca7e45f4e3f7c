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

package blockprocessing

// ChannelID distinguishes submission origins within one source so a single
// noisy peer cannot crowd out the rest.
type ChannelID uint64

// LoopbackChannel marks internally originated submissions.
const LoopbackChannel ChannelID = 0

// Origin keys one bucket of the fair queue.
type Origin struct {
	Source  BlockSource
	Channel ChannelID
}

type bucket[T any] struct {
	items    []T
	priority int
	maxSize  int
	// credit counts how many consecutive pops this bucket may still take in
	// the current round-robin pass.
	credit int
}

// fairQueue is a bounded multi-queue with weighted round-robin draining:
// each non-empty bucket is visited in turn and drained up to its priority
// before the next bucket takes over. Within a bucket order is FIFO.
type fairQueue[T any] struct {
	buckets  map[Origin]*bucket[T]
	order    []Origin
	current  int
	total    int
	maxSize  func(Origin) int
	priority func(Origin) int
}

func newFairQueue[T any](maxSize func(Origin) int, priority func(Origin) int) *fairQueue[T] {
	return &fairQueue[T]{
		buckets:  make(map[Origin]*bucket[T]),
		maxSize:  maxSize,
		priority: priority,
	}
}

// push appends to the origin's bucket; a full bucket drops the item.
func (q *fairQueue[T]) push(origin Origin, item T) bool {
	b, ok := q.buckets[origin]
	if !ok {
		b = &bucket[T]{priority: q.priority(origin), maxSize: q.maxSize(origin)}
		b.credit = b.priority
		q.buckets[origin] = b
		q.order = append(q.order, origin)
	}
	if b.maxSize > 0 && len(b.items) >= b.maxSize {
		return false
	}
	b.items = append(b.items, item)
	q.total++
	return true
}

// next pops the next item per the weighted rotation.
func (q *fairQueue[T]) next() (Origin, T, bool) {
	var zero T
	if q.total == 0 {
		return Origin{}, zero, false
	}
	// Two passes bound the scan: the first may be spent refreshing spent
	// credits, the second must find the non-empty bucket.
	for i := 0; i < 2*len(q.order); i++ {
		if q.current >= len(q.order) {
			q.current = 0
		}
		origin := q.order[q.current]
		b := q.buckets[origin]
		if len(b.items) == 0 || b.credit <= 0 {
			b.credit = b.priority
			q.advance()
			continue
		}
		item := b.items[0]
		b.items = b.items[1:]
		b.credit--
		q.total--
		if len(b.items) == 0 {
			b.credit = b.priority
			q.advance()
		}
		return origin, item, true
	}
	// All buckets were empty despite total > 0; unreachable.
	return Origin{}, zero, false
}

func (q *fairQueue[T]) advance() {
	q.current++
	if q.current >= len(q.order) {
		q.current = 0
	}
}

func (q *fairQueue[T]) len() int { return q.total }

func (q *fairQueue[T]) lenOf(source BlockSource) int {
	n := 0
	for origin, b := range q.buckets {
		if origin.Source == source {
			n += len(b.items)
		}
	}
	return n
}

func (q *fairQueue[T]) empty() bool { return q.total == 0 }

// removeChannel drops every bucket belonging to a dead channel.
func (q *fairQueue[T]) removeChannel(channel ChannelID) {
	kept := q.order[:0]
	for _, origin := range q.order {
		if origin.Channel == channel && origin.Channel != LoopbackChannel {
			q.total -= len(q.buckets[origin].items)
			delete(q.buckets, origin)
			continue
		}
		kept = append(kept, origin)
	}
	q.order = kept
	if q.current >= len(q.order) {
		q.current = 0
	}
}
