/*
 * This file is part of Voxhub (https://github.com/vestonlabs/voxhub).
 * Copyright (C) 2026 Veston Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package voice

import (
	"sync"
	"testing"
	"time"
)

func TestLoopRunsPostedWorkInOrder(t *testing.T) {
	loop := NewLoop()
	go loop.Run()

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		i := i
		loop.Post(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			if i == 99 {
				close(done)
			}
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("posted work never ran")
	}
	loop.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 100 {
		t.Fatalf("ran %d of 100 posted funcs", len(order))
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("order[%d] = %d, posts ran out of order", i, got)
		}
	}
}

func TestLoopStopDrainsEnqueuedWork(t *testing.T) {
	loop := NewLoop()

	ran := make(chan int, 10)
	for i := 0; i < 10; i++ {
		i := i
		loop.Post(func() { ran <- i })
	}

	// Run and Stop race deliberately: everything enqueued before Stop
	// must still execute.
	go loop.Run()
	loop.Stop()

	if got := len(ran); got != 10 {
		t.Errorf("drained %d of 10 enqueued funcs", got)
	}
}

func TestLoopPostAfterStopIsDropped(t *testing.T) {
	loop := NewLoop()
	go loop.Run()
	loop.Stop()

	// Must not block or panic.
	loop.Post(func() { t.Error("work ran after Stop") })
	time.Sleep(20 * time.Millisecond)
}

func TestLoopPostDelayed(t *testing.T) {
	loop := NewLoop()
	go loop.Run()
	defer loop.Stop()

	fired := make(chan time.Time, 1)
	start := time.Now()
	loop.PostDelayed(50*time.Millisecond, func() { fired <- time.Now() })

	select {
	case at := <-fired:
		if at.Sub(start) < 40*time.Millisecond {
			t.Errorf("delayed post fired after %v, want ~50ms", at.Sub(start))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("delayed post never fired")
	}
}

func TestLoopPostDelayedCancel(t *testing.T) {
	loop := NewLoop()
	go loop.Run()
	defer loop.Stop()

	timer := loop.PostDelayed(50*time.Millisecond, func() {
		t.Error("cancelled timer still fired")
	})
	timer.Stop()
	time.Sleep(120 * time.Millisecond)
}
