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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestTimerFires(t *testing.T) {
	defer goleak.VerifyNone(t)

	timer := NewTimer(20 * time.Millisecond)
	assert.False(t, timer.Fired())

	select {
	case <-timer.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("timer never fired")
	}
	assert.True(t, timer.Fired())

	// Done keeps returning a closed channel after firing
	select {
	case <-timer.Done():
	default:
		t.Fatal("Done channel not closed after firing")
	}
}

func TestTimerDoneBeforeFire(t *testing.T) {
	defer goleak.VerifyNone(t)

	timer := NewTimer(50 * time.Millisecond)
	done := timer.Done()
	require.NotNil(t, done)

	// Registering twice hands back the same channel
	assert.True(t, done == timer.Done())

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("timer never woke its waiter")
	}
}

func TestTimerDoneAfterFire(t *testing.T) {
	defer goleak.VerifyNone(t)

	timer := NewTimer(time.Millisecond)
	require.Eventually(
		t,
		timer.Fired,
		10*time.Second,
		time.Millisecond,
	)

	// First Done call only happens after completion
	select {
	case <-timer.Done():
	default:
		t.Fatal("Done channel not closed for an already-fired timer")
	}
}
