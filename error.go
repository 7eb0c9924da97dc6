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
	"errors"
	"fmt"
)

var (
	// ErrHandshakeTimeout is returned by SubscribeWaitHandshakeTimeout when
	// the timer fires before every endpoint finished its handshake
	ErrHandshakeTimeout = errors.New("timed out waiting for handshake")

	// ErrMalformedEvent is returned when a socket monitor message does not
	// have the expected shape
	ErrMalformedEvent = errors.New("malformed socket monitor event")

	// ErrStreamClosed is returned by Next after the stream has been closed
	// by the caller
	ErrStreamClosed = errors.New("stream is closed")
)

// InvalidMultipartLengthError reports a frame group that did not contain
// exactly the topic, data and sequence frames
type InvalidMultipartLengthError struct {
	Count int
}

func (e InvalidMultipartLengthError) Error() string {
	return fmt.Sprintf(
		"invalid multipart length %d, expected %d frames",
		e.Count,
		MultipartLen,
	)
}

// InvalidSequenceLengthError reports a trailing sequence frame that was not
// exactly 4 bytes
type InvalidSequenceLengthError struct {
	Length int
}

func (e InvalidSequenceLengthError) Error() string {
	return fmt.Sprintf(
		"invalid sequence frame length %d, expected %d bytes",
		e.Length,
		SequenceLen,
	)
}

// InvalidTopicError reports a topic frame that is not one of the six known
// topics. Length is the true length of the received topic; Snapshot holds its
// first min(TopicMaxLen, Length) bytes for diagnostics
type InvalidTopicError struct {
	Length   int
	Snapshot [TopicMaxLen]byte
}

// TopicSnapshot returns the truncated copy of the unrecognized topic
func (e InvalidTopicError) TopicSnapshot() []byte {
	n := e.Length
	if n > TopicMaxLen {
		n = TopicMaxLen
	}
	return e.Snapshot[:n]
}

func (e InvalidTopicError) Error() string {
	return fmt.Sprintf(
		"invalid topic %q (%d bytes)",
		e.TopicSnapshot(),
		e.Length,
	)
}

// InvalidHashLengthError reports a hash-bearing payload that was not 32 bytes
// (or at least 32 bytes for the wallet-tagged variant)
type InvalidHashLengthError struct {
	Length int
}

func (e InvalidHashLengthError) Error() string {
	return fmt.Sprintf("invalid 256-bit hash length %d", e.Length)
}

// InvalidSequenceMessageLengthError reports a sequence notification payload of
// unexpected size
type InvalidSequenceMessageLengthError struct {
	Length int
}

func (e InvalidSequenceMessageLengthError) Error() string {
	return fmt.Sprintf("invalid sequence message length %d", e.Length)
}

// InvalidSequenceMessageLabelError reports a sequence notification carrying an
// unknown label byte
type InvalidSequenceMessageLabelError struct {
	Label byte
}

func (e InvalidSequenceMessageLabelError) Error() string {
	return fmt.Sprintf("invalid sequence message label 0x%02x", e.Label)
}

// InvalidWalletLabelLengthError reports a wallet label that cannot be encoded
// in the fixed 32-byte label field
type InvalidWalletLabelLengthError struct {
	Length int
}

func (e InvalidWalletLabelLengthError) Error() string {
	return fmt.Sprintf(
		"wallet label length %d exceeds the %d byte maximum",
		e.Length,
		WalletLabelLen,
	)
}

// ConsensusError wraps a failure from the consensus codec while decoding a
// rawblock or rawtx payload
type ConsensusError struct {
	Err error
}

func (e ConsensusError) Error() string {
	return fmt.Sprintf("consensus decode error: %s", e.Err)
}

func (e ConsensusError) Unwrap() error { return e.Err }

// TransportError wraps a failure reported by the underlying messaging
// transport
type TransportError struct {
	Op  string
	Err error
}

func (e TransportError) Error() string {
	return fmt.Sprintf("transport error: %s: %s", e.Op, e.Err)
}

func (e TransportError) Unwrap() error { return e.Err }
