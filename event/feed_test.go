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

package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeedDeliversToAllSubscribers(t *testing.T) {
	var feed Feed[int]
	ch1 := make(chan int, 4)
	ch2 := make(chan int, 4)
	sub1 := feed.Subscribe(ch1)
	defer sub1.Unsubscribe()
	sub2 := feed.Subscribe(ch2)
	defer sub2.Unsubscribe()

	require.Equal(t, 2, feed.Send(42))
	require.Equal(t, 42, <-ch1)
	require.Equal(t, 42, <-ch2)
}

func TestFeedUnsubscribeStopsDelivery(t *testing.T) {
	var feed Feed[string]
	ch := make(chan string, 1)
	sub := feed.Subscribe(ch)
	require.Equal(t, 1, feed.Send("a"))
	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent
	require.Equal(t, 0, feed.Send("b"))
	require.Equal(t, "a", <-ch)
	select {
	case v := <-ch:
		t.Fatalf("unexpected delivery %q", v)
	default:
	}
}

func TestFeedSendWithNoSubscribers(t *testing.T) {
	var feed Feed[struct{}]
	require.Equal(t, 0, feed.Send(struct{}{}))
}

func TestFeedConcurrentSend(t *testing.T) {
	var feed Feed[int]
	ch := make(chan int, 128)
	sub := feed.Subscribe(ch)
	defer sub.Unsubscribe()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			for j := 0; j < 16; j++ {
				feed.Send(v)
			}
		}(i)
	}
	wg.Wait()
	require.Len(t, ch, 128)
}
