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

	zmq "github.com/pebbe/zmq4"
)

// frameSource is an opaque source of multipart frame groups. The concrete
// implementation is a ZMQ socket, but the streams only rely on this interface
type frameSource interface {
	// recvFrames returns the next frame group. It returns errRecvTimeout
	// when nothing arrived within the receive timeout and errSourceClosed
	// once the source is unusable
	recvFrames() ([][]byte, error)

	close() error
}

var (
	errRecvTimeout  = errors.New("receive timed out")
	errSourceClosed = errors.New("frame source closed")
)

type messageItem struct {
	msg Message
	err error
}

type eventItem struct {
	event *EventMessage
	err   error
}

// MessageStream produces Messages from a subscription socket. Each received
// frame group is decoded independently: a malformed group surfaces as a
// per-item error from Next and the stream keeps going. The stream never
// terminates on its own; it stops only when the caller closes it.
//
// A MessageStream is meant for a single consumer. The scratch buffer used to
// stage rawblock/rawtx payloads is owned by the internal receive loop and is
// overwritten on every decode
type MessageStream struct {
	src       frameSource
	items     chan messageItem
	doneChan  chan struct{}
	onceClose sync.Once
	waitGroup sync.WaitGroup
	dataCache []byte

	sock    *zmq.Socket
	zctx    *zmq.Context
	ownsCtx bool
}

func newMessageStream(src frameSource, chanSize int) *MessageStream {
	s := &MessageStream{
		src:       src,
		items:     make(chan messageItem, chanSize),
		doneChan:  make(chan struct{}),
		dataCache: make([]byte, DataMaxLen),
	}
	s.waitGroup.Add(1)
	go s.recvLoop()
	return s
}

// Socket returns the underlying ZMQ subscription socket, or nil if the stream
// was built on a non-ZMQ source. The socket is owned by the receive loop;
// only use this before consuming the stream, e.g. to set socket options
func (s *MessageStream) Socket() *zmq.Socket {
	return s.sock
}

// Next returns the next notification. A non-nil error may be a per-item
// decode or transport failure, in which case the stream remains usable, or
// ErrStreamClosed/context errors
func (s *MessageStream) Next(ctx context.Context) (Message, error) {
	select {
	case item := <-s.items:
		return item.msg, item.err
	default:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.doneChan:
		return nil, ErrStreamClosed
	case item := <-s.items:
		return item.msg, item.err
	}
}

// Close shuts down the receive loop and releases the socket. It is safe to
// call more than once
func (s *MessageStream) Close() error {
	s.onceClose.Do(func() {
		close(s.doneChan)
		s.waitGroup.Wait()
		if s.ownsCtx {
			// Term only returns once every socket in the context has
			// been closed, so this must come after the receive loop
			// has released its socket
			_ = s.zctx.Term()
		}
	})
	return nil
}

func (s *MessageStream) recvLoop() {
	defer s.waitGroup.Done()
	defer s.src.close()
	for {
		select {
		case <-s.doneChan:
			return
		default:
		}
		frames, err := s.src.recvFrames()
		if err != nil {
			switch {
			case errors.Is(err, errRecvTimeout):
				// Nothing arrived yet; check for shutdown and poll again
			case errors.Is(err, errSourceClosed):
				return
			default:
				s.deliver(messageItem{err: TransportError{Op: "recv", Err: err}})
			}
			continue
		}
		msg, err := parseMessage(frames, s.dataCache)
		s.deliver(messageItem{msg: msg, err: err})
	}
}

func (s *MessageStream) deliver(item messageItem) {
	select {
	case s.items <- item:
	case <-s.doneChan:
	}
}

// SocketMessageStream merges a MessageStream with the socket's monitor
// channel. Connection events take priority over data: Next always drains a
// ready event before it considers the next notification, so disconnect
// detection cannot be starved by a burst of data messages
type SocketMessageStream struct {
	msgs      *MessageStream
	monitor   frameSource
	events    chan eventItem
	doneChan  chan struct{}
	onceClose sync.Once
	waitGroup sync.WaitGroup

	zctx    *zmq.Context
	ownsCtx bool
}

func newSocketMessageStream(msgs *MessageStream, monitor frameSource, chanSize int) *SocketMessageStream {
	s := &SocketMessageStream{
		msgs:     msgs,
		monitor:  monitor,
		events:   make(chan eventItem, chanSize),
		doneChan: make(chan struct{}),
	}
	s.waitGroup.Add(1)
	go s.monitorLoop()
	return s
}

// Messages returns the wrapped data stream
func (s *SocketMessageStream) Messages() *MessageStream {
	return s.msgs
}

// Next returns the next notification or connection event. Events are
// returned ahead of any ready notification
func (s *SocketMessageStream) Next(ctx context.Context) (SocketMessage, error) {
	select {
	case item := <-s.events:
		return item.event, item.err
	default:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.doneChan:
		return nil, ErrStreamClosed
	case item := <-s.events:
		return item.event, item.err
	case item := <-s.msgs.items:
		if item.err != nil {
			return nil, item.err
		}
		return item.msg, nil
	}
}

// Close shuts down both the data and monitor receive loops
func (s *SocketMessageStream) Close() error {
	s.onceClose.Do(func() {
		close(s.doneChan)
		_ = s.msgs.Close()
		s.waitGroup.Wait()
		if s.ownsCtx {
			_ = s.zctx.Term()
		}
	})
	return nil
}

func (s *SocketMessageStream) monitorLoop() {
	defer s.waitGroup.Done()
	defer s.monitor.close()
	for {
		select {
		case <-s.doneChan:
			return
		default:
		}
		frames, err := s.monitor.recvFrames()
		if err != nil {
			switch {
			case errors.Is(err, errRecvTimeout):
			case errors.Is(err, errSourceClosed):
				return
			default:
				s.deliver(eventItem{err: TransportError{Op: "monitor recv", Err: err}})
			}
			continue
		}
		event, err := parseEventMessage(frames)
		s.deliver(eventItem{event: event, err: err})
	}
}

func (s *SocketMessageStream) deliver(item eventItem) {
	select {
	case s.events <- item:
	case <-s.doneChan:
	}
}

// FiniteMessageStream is a SocketMessageStream that has already completed its
// handshake. It forwards notifications until the socket reports a
// Disconnected event, at which point the inner stream is dropped and every
// further Next returns io.EOF. Other connection events are consumed silently
type FiniteMessageStream struct {
	inner *SocketMessageStream
}

// NewFiniteMessageStream wraps an already-handshaken stream
func NewFiniteMessageStream(inner *SocketMessageStream) *FiniteMessageStream {
	return &FiniteMessageStream{inner: inner}
}

// Next returns the next notification, or io.EOF once the connection has been
// observed to disconnect. Per-item errors do not terminate the stream
func (s *FiniteMessageStream) Next(ctx context.Context) (Message, error) {
	for {
		if s.inner == nil {
			return nil, io.EOF
		}
		item, err := s.inner.Next(ctx)
		if err != nil {
			return nil, err
		}
		switch v := item.(type) {
		case Message:
			return v, nil
		case *EventMessage:
			if v.Event.Kind == EventDisconnected {
				_ = s.inner.Close()
				s.inner = nil
				return nil, io.EOF
			}
		}
	}
}

// Terminated reports whether the stream has observed a disconnect (or been
// closed) and will produce no further notifications
func (s *FiniteMessageStream) Terminated() bool {
	return s.inner == nil
}

// Close releases the inner stream, after which the stream reports itself
// terminated
func (s *FiniteMessageStream) Close() error {
	if s.inner != nil {
		_ = s.inner.Close()
		s.inner = nil
	}
	return nil
}
