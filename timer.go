// Copyright 2025 The go-ghostcore-zmq authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ghostzmq

import (
	"sync"
	"time"
)

type timerState int

const (
	timerPending timerState = iota
	timerPendingWithWaiter
	timerDone
)

// Timer is a one-shot delay primitive backed by a single background goroutine
// performing a blocking sleep. It exists so a bounded handshake wait does not
// depend on any particular scheduler's timer service: the only shared state
// between the sleeper and the consumer is a tri-state flag under a mutex, and
// the waiter channel is closed strictly after the lock is released.
//
// Dropping a Timer before it fires leaks nothing persistent; the background
// goroutine finishes its sleep, finds no waiter, and exits
type Timer struct {
	mu     sync.Mutex
	state  timerState
	waiter chan struct{}
}

// NewTimer starts a timer that fires once after d
func NewTimer(d time.Duration) *Timer {
	t := &Timer{state: timerPending}
	go func() {
		time.Sleep(d)
		t.mu.Lock()
		state := t.state
		waiter := t.waiter
		t.state = timerDone
		t.mu.Unlock()
		if state == timerPendingWithWaiter {
			close(waiter)
		}
	}()
	return t
}

// Done returns a channel that is closed when the timer fires. Every call
// returns the same channel
func (t *Timer) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case timerPending:
		t.waiter = make(chan struct{})
		t.state = timerPendingWithWaiter
	case timerDone:
		if t.waiter == nil {
			t.waiter = make(chan struct{})
			close(t.waiter)
		}
	}
	return t.waiter
}

// Fired reports whether the timer has already fired
func (t *Timer) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == timerDone
}
