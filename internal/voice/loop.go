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
	"time"
)

// Loop is the single scheduling goroutine that drives all state transitions
// and callback delivery. Everything that touches shared pipeline state is
// posted here first; posting is a non-blocking enqueue for any sane backlog.
type Loop struct {
	fns      chan func()
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a dispatch loop. Run must be called for posted work to
// execute.
func NewLoop() *Loop {
	return &Loop{
		fns:  make(chan func(), 256),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Run consumes posted work until Stop is called. It is intended to be run
// on its own goroutine.
func (l *Loop) Run() {
	defer close(l.done)
	for {
		select {
		case fn := <-l.fns:
			fn()
		case <-l.quit:
			// Drain what was already enqueued so teardown work runs.
			for {
				select {
				case fn := <-l.fns:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Post enqueues fn for execution on the loop goroutine. Work posted after
// Stop is dropped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.quit:
	case l.fns <- fn:
	}
}

// PostDelayed schedules fn to be posted after d. The returned timer can be
// stopped to cancel the post; a timer that already fired posts exactly once.
func (l *Loop) PostDelayed(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() {
		l.Post(fn)
	})
}

// Stop terminates the loop after draining already-enqueued work and waits
// for the Run goroutine to exit.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		close(l.quit)
	})
	<-l.done
}
