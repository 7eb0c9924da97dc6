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
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeItem struct {
	frames [][]byte
	err    error
}

// fakeFrameSource stands in for a ZMQ socket in stream tests
type fakeFrameSource struct {
	items     chan fakeItem
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeFrameSource() *fakeFrameSource {
	return &fakeFrameSource{
		items: make(chan fakeItem, 32),
		done:  make(chan struct{}),
	}
}

func (f *fakeFrameSource) push(frames ...[]byte) {
	f.items <- fakeItem{frames: frames}
}

func (f *fakeFrameSource) pushErr(err error) {
	f.items <- fakeItem{err: err}
}

func (f *fakeFrameSource) recvFrames() ([][]byte, error) {
	select {
	case <-f.done:
		return nil, errSourceClosed
	case item := <-f.items:
		return item.frames, item.err
	case <-time.After(time.Millisecond):
		return nil, errRecvTimeout
	}
}

func (f *fakeFrameSource) close() error {
	f.closeOnce.Do(func() { close(f.done) })
	return nil
}

func hashBlockFrames(seq uint32) [][]byte {
	return SerializeMessage(&HashBlock{
		Hash: *chaincfg.MainNetParams.GenesisHash,
		Seq:  seq,
	})
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestMessageStreamDelivers(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := testContext(t)
	src := newFakeFrameSource()
	s := newMessageStream(src, 10)
	defer s.Close()

	src.push(hashBlockFrames(1)...)
	src.push(hashBlockFrames(2)...)

	for _, wantSeq := range []uint32{1, 2} {
		msg, err := s.Next(ctx)
		require.NoError(t, err)
		require.IsType(t, &HashBlock{}, msg)
		assert.Equal(t, wantSeq, msg.Sequence())
	}
}

func TestMessageStreamPerItemErrors(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := testContext(t)
	src := newFakeFrameSource()
	s := newMessageStream(src, 10)
	defer s.Close()

	// A malformed group surfaces as an error without poisoning the stream
	src.push([]byte("bogus"), []byte{}, seqFrame(1))
	_, err := s.Next(ctx)
	var topicErr InvalidTopicError
	require.ErrorAs(t, err, &topicErr)
	assert.Equal(t, 5, topicErr.Length)

	// So does a transport-level receive failure
	src.pushErr(errors.New("interrupted system call mid-frame"))
	_, err = s.Next(ctx)
	var transportErr TransportError
	require.ErrorAs(t, err, &transportErr)

	src.push(hashBlockFrames(7)...)
	msg, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), msg.Sequence())
}

func TestMessageStreamClose(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := testContext(t)
	src := newFakeFrameSource()
	s := newMessageStream(src, 10)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func newTestSocketMessageStream() (*SocketMessageStream, *fakeFrameSource, *fakeFrameSource) {
	dataSrc := newFakeFrameSource()
	monitorSrc := newFakeFrameSource()
	msgs := newMessageStream(dataSrc, 10)
	return newSocketMessageStream(msgs, monitorSrc, 10), dataSrc, monitorSrc
}

func TestSocketMessageStreamPrioritizesEvents(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := testContext(t)
	s, dataSrc, monitorSrc := newTestSocketMessageStream()
	defer s.Close()

	dataSrc.push(hashBlockFrames(1)...)
	monitorSrc.push(eventFrames(EventConnected, 3, "tcp://127.0.0.1:28332")...)

	// Wait until both items are buffered so the priority choice is real
	require.Eventually(t, func() bool {
		return len(s.events) == 1 && len(s.msgs.items) == 1
	}, 5*time.Second, time.Millisecond)

	item, err := s.Next(ctx)
	require.NoError(t, err)
	event, ok := item.(*EventMessage)
	require.True(t, ok, "expected the connection event first, got %T", item)
	assert.Equal(t, EventConnected, event.Event.Kind)

	item, err = s.Next(ctx)
	require.NoError(t, err)
	msg, ok := item.(Message)
	require.True(t, ok, "expected a notification, got %T", item)
	assert.Equal(t, uint32(1), msg.Sequence())
}

func TestSocketMessageStreamClose(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := testContext(t)
	s, _, _ := newTestSocketMessageStream()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestFiniteMessageStream(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := testContext(t)
	inner, dataSrc, monitorSrc := newTestSocketMessageStream()
	s := NewFiniteMessageStream(inner)
	defer s.Close()

	// Non-disconnect events are consumed without being surfaced
	monitorSrc.push(eventFrames(EventHandshakeSucceeded, 3, "tcp://127.0.0.1:28332")...)
	require.Eventually(t, func() bool {
		return len(inner.events) == 1
	}, 5*time.Second, time.Millisecond)

	dataSrc.push(hashBlockFrames(1)...)
	msg, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), msg.Sequence())
	assert.False(t, s.Terminated())

	// The first disconnect permanently terminates the stream
	monitorSrc.push(eventFrames(EventDisconnected, 3, "tcp://127.0.0.1:28332")...)
	_, err = s.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
	assert.True(t, s.Terminated())

	for i := 0; i < 3; i++ {
		_, err = s.Next(ctx)
		require.ErrorIs(t, err, io.EOF)
	}
}

func TestWaitHandshake(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := testContext(t)
	s, _, monitorSrc := newTestSocketMessageStream()
	defer s.Close()

	// A disconnect during the wait requires one extra success to compensate
	monitorSrc.push(eventFrames(EventHandshakeSucceeded, 3, "tcp://127.0.0.1:28332")...)
	monitorSrc.push(eventFrames(EventConnectRetried, 100, "tcp://127.0.0.1:28333")...)
	monitorSrc.push(eventFrames(EventDisconnected, 3, "tcp://127.0.0.1:28332")...)
	monitorSrc.push(eventFrames(EventHandshakeSucceeded, 3, "tcp://127.0.0.1:28332")...)
	monitorSrc.push(eventFrames(EventHandshakeSucceeded, 4, "tcp://127.0.0.1:28333")...)

	require.NoError(t, waitHandshake(ctx, s, 2, nil))
}

func TestWaitHandshakeZeroEndpoints(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := testContext(t)
	s, _, _ := newTestSocketMessageStream()
	defer s.Close()

	// No events are consulted at all
	require.NoError(t, waitHandshake(ctx, s, 0, nil))
}

func TestWaitHandshakeTimerExpires(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := testContext(t)
	s, _, _ := newTestSocketMessageStream()
	defer s.Close()

	timer := NewTimer(50 * time.Millisecond)
	err := waitHandshake(ctx, s, 1, timer.Done())
	require.ErrorIs(t, err, ErrHandshakeTimeout)
	assert.True(t, timer.Fired())
}

func TestWaitHandshakeBeatsTimer(t *testing.T) {
	defer goleak.VerifyNone(t)
	ctx := testContext(t)
	s, _, monitorSrc := newTestSocketMessageStream()
	defer s.Close()

	monitorSrc.push(eventFrames(EventHandshakeSucceeded, 3, "tcp://127.0.0.1:28332")...)

	timer := NewTimer(300 * time.Millisecond)
	require.NoError(t, waitHandshake(ctx, s, 1, timer.Done()))
	assert.False(t, timer.Fired())

	// The timer firing later has no observable effect on the stream
	<-timer.Done()
	monitorSrc.push(eventFrames(EventConnected, 3, "tcp://127.0.0.1:28332")...)
	item, err := s.Next(ctx)
	require.NoError(t, err)
	require.IsType(t, &EventMessage{}, item)
}

func TestWaitHandshakeContextCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)
	s, _, _ := newTestSocketMessageStream()
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := waitHandshake(ctx, s, 1, nil)
	require.ErrorIs(t, err, context.Canceled)
}
