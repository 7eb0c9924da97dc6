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

// Package ghostzmq implements a client for the ZMQ notification feed
// published by a ghostd/bitcoind-style blockchain node.
//
// The node publishes typed notifications (block hashes, transaction hashes,
// wallet-tagged transaction hashes, raw blocks, raw transactions and chain
// sequence events) as three-frame multipart messages. This package decodes
// those frames into typed Messages and layers handshake detection and clean
// disconnect termination on top of the raw subscription, using the socket
// monitor channel libzmq provides
package ghostzmq

import (
	"context"
	"fmt"
	"sync/atomic"
	"syscall"
	"time"

	zmq "github.com/pebbe/zmq4"
)

// monitorSeq disambiguates the inproc monitor endpoints of concurrently
// created subscriptions
var monitorSeq uint64

// zmqFrameSource adapts a ZMQ socket to the frameSource interface. The socket
// must have a receive timeout set so the owning loop can observe shutdown
type zmqFrameSource struct {
	sock *zmq.Socket
}

func (z *zmqFrameSource) recvFrames() ([][]byte, error) {
	frames, err := z.sock.RecvMessageBytes(0)
	if err != nil {
		switch zmq.AsErrno(err) {
		case zmq.Errno(syscall.EAGAIN), zmq.Errno(syscall.EINTR):
			return nil, errRecvTimeout
		case zmq.ETERM, zmq.Errno(syscall.ENOTSOCK):
			return nil, errSourceClosed
		}
		return nil, err
	}
	return frames, nil
}

func (z *zmqFrameSource) close() error {
	return z.sock.Close()
}

// newSubSocket creates and configures the subscription socket without
// connecting it anywhere yet
func newSubSocket(cfg *subscribeConfig) (*zmq.Context, *zmq.Socket, bool, error) {
	zctx := cfg.zctx
	ownsCtx := false
	if zctx == nil {
		var err error
		zctx, err = zmq.NewContext()
		if err != nil {
			return nil, nil, false, TransportError{Op: "new context", Err: err}
		}
		ownsCtx = true
	}
	cleanup := func() {
		if ownsCtx {
			_ = zctx.Term()
		}
	}
	sock, err := zctx.NewSocket(zmq.SUB)
	if err != nil {
		cleanup()
		return nil, nil, false, TransportError{Op: "new socket", Err: err}
	}
	if err := configureSocket(sock, cfg); err != nil {
		_ = sock.Close()
		cleanup()
		return nil, nil, false, err
	}
	topics := cfg.topics
	if len(topics) == 0 {
		// Empty filter subscribes to everything
		topics = []Topic{""}
	}
	for _, topic := range topics {
		if err := sock.SetSubscribe(string(topic)); err != nil {
			_ = sock.Close()
			cleanup()
			return nil, nil, false, TransportError{Op: "subscribe", Err: err}
		}
	}
	return zctx, sock, ownsCtx, nil
}

func configureSocket(sock *zmq.Socket, cfg *subscribeConfig) error {
	if err := sock.SetLinger(0); err != nil {
		return TransportError{Op: "set linger", Err: err}
	}
	if err := sock.SetRcvtimeo(cfg.recvTimeout); err != nil {
		return TransportError{Op: "set receive timeout", Err: err}
	}
	return nil
}

func connectEndpoints(sock *zmq.Socket, endpoints []string) error {
	for _, endpoint := range endpoints {
		if err := sock.Connect(endpoint); err != nil {
			return TransportError{
				Op:  fmt.Sprintf("connect %s", endpoint),
				Err: err,
			}
		}
	}
	return nil
}

// Subscribe connects a subscription socket to the given endpoints and returns
// a stream of decoded notifications
func Subscribe(endpoints []string, options ...SubscribeOptionFunc) (*MessageStream, error) {
	cfg := newSubscribeConfig(options...)
	zctx, sock, ownsCtx, err := newSubSocket(&cfg)
	if err != nil {
		return nil, err
	}
	if err := connectEndpoints(sock, endpoints); err != nil {
		_ = sock.Close()
		if ownsCtx {
			_ = zctx.Term()
		}
		return nil, err
	}
	s := newMessageStream(&zmqFrameSource{sock: sock}, cfg.chanSize)
	s.sock = sock
	s.zctx = zctx
	s.ownsCtx = ownsCtx
	return s, nil
}

// SubscribeMonitor is Subscribe with the socket's monitor channel merged into
// the stream, so connection lifecycle events are delivered alongside (and
// ahead of) notifications
func SubscribeMonitor(endpoints []string, options ...SubscribeOptionFunc) (*SocketMessageStream, error) {
	cfg := newSubscribeConfig(options...)
	zctx, sock, ownsCtx, err := newSubSocket(&cfg)
	if err != nil {
		return nil, err
	}
	cleanup := func() {
		_ = sock.Close()
		if ownsCtx {
			_ = zctx.Term()
		}
	}
	// The monitor pair has to be wired up before connecting so the
	// handshake events of the initial connections are not missed
	addr := fmt.Sprintf(
		"inproc://ghostzmq-monitor-%d",
		atomic.AddUint64(&monitorSeq, 1),
	)
	if err := sock.Monitor(addr, zmq.EVENT_ALL); err != nil {
		cleanup()
		return nil, TransportError{Op: "monitor", Err: err}
	}
	monitor, err := zctx.NewSocket(zmq.PAIR)
	if err != nil {
		cleanup()
		return nil, TransportError{Op: "new monitor socket", Err: err}
	}
	if err := configureSocket(monitor, &cfg); err != nil {
		_ = monitor.Close()
		cleanup()
		return nil, err
	}
	if err := monitor.Connect(addr); err != nil {
		_ = monitor.Close()
		cleanup()
		return nil, TransportError{Op: "connect monitor", Err: err}
	}
	if err := connectEndpoints(sock, endpoints); err != nil {
		_ = monitor.Close()
		cleanup()
		return nil, err
	}
	msgs := newMessageStream(&zmqFrameSource{sock: sock}, cfg.chanSize)
	msgs.sock = sock
	s := newSocketMessageStream(msgs, &zmqFrameSource{sock: monitor}, cfg.chanSize)
	s.zctx = zctx
	s.ownsCtx = ownsCtx
	return s, nil
}

// SubscribeWaitHandshake subscribes to the given endpoints and waits until
// every endpoint has completed its connection handshake, then returns a
// stream that terminates once the connection drops. An endpoint that
// disconnects during the wait has to handshake again before the wait
// completes. With no endpoints the wait succeeds immediately.
//
// The wait is unbounded; use the context or SubscribeWaitHandshakeTimeout to
// bound it
func SubscribeWaitHandshake(ctx context.Context, endpoints []string, options ...SubscribeOptionFunc) (*FiniteMessageStream, error) {
	stream, err := SubscribeMonitor(endpoints, options...)
	if err != nil {
		return nil, err
	}
	if err := waitHandshake(ctx, stream, len(endpoints), nil); err != nil {
		_ = stream.Close()
		return nil, err
	}
	return NewFiniteMessageStream(stream), nil
}

// SubscribeWaitHandshakeTimeout is SubscribeWaitHandshake bounded by a Timer.
// If the timer fires before the handshakes complete, the subscription is torn
// down and ErrHandshakeTimeout is returned
func SubscribeWaitHandshakeTimeout(ctx context.Context, endpoints []string, timeout time.Duration, options ...SubscribeOptionFunc) (*FiniteMessageStream, error) {
	stream, err := SubscribeMonitor(endpoints, options...)
	if err != nil {
		return nil, err
	}
	timer := NewTimer(timeout)
	if err := waitHandshake(ctx, stream, len(endpoints), timer.Done()); err != nil {
		_ = stream.Close()
		return nil, err
	}
	return NewFiniteMessageStream(stream), nil
}

// waitHandshake blocks until the number of pending endpoints reaches zero.
// HandshakeSucceeded decrements the pending count, Disconnected increments it
// and every other event kind is ignored. Notifications are left queued on the
// data stream. A nil timeout channel means no timeout
func waitHandshake(ctx context.Context, s *SocketMessageStream, pending int, timeout <-chan struct{}) error {
	for pending > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return ErrHandshakeTimeout
		case item := <-s.events:
			if item.err != nil {
				return item.err
			}
			switch item.event.Event.Kind {
			case EventHandshakeSucceeded:
				pending--
			case EventDisconnected:
				pending++
			}
		}
	}
	return nil
}
