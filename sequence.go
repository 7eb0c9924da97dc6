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
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// SequenceKind is the label byte of a sequence notification
type SequenceKind byte

const (
	// SequenceBlockConnect reports a block connected to the active chain
	SequenceBlockConnect SequenceKind = 'C'

	// SequenceBlockDisconnect reports a block disconnected from the active
	// chain during a reorg
	SequenceBlockDisconnect SequenceKind = 'D'

	// SequenceMempoolAcceptance reports a transaction accepted to the
	// mempool
	SequenceMempoolAcceptance SequenceKind = 'A'

	// SequenceMempoolRemoval reports a transaction removed from the mempool
	// for a reason other than inclusion in a block
	SequenceMempoolRemoval SequenceKind = 'R'
)

func (k SequenceKind) String() string {
	switch k {
	case SequenceBlockConnect:
		return "BlockConnect"
	case SequenceBlockDisconnect:
		return "BlockDisconnect"
	case SequenceMempoolAcceptance:
		return "MempoolAcceptance"
	case SequenceMempoolRemoval:
		return "MempoolRemoval"
	}
	return fmt.Sprintf("Unknown(0x%02x)", byte(k))
}

const (
	// block events: 32-byte hash + label
	sequenceMessageBlockLen = chainhash.HashSize + 1

	// mempool events additionally carry an 8-byte mempool sequence
	sequenceMessageMempoolLen = chainhash.HashSize + 1 + 8
)

// SequenceMessage is the payload of a "sequence" notification. MempoolSequence
// is only meaningful for the mempool acceptance/removal kinds
type SequenceMessage struct {
	Kind            SequenceKind
	Hash            chainhash.Hash
	MempoolSequence uint64
}

// parseSequenceMessage decodes a sequence notification payload. Valid payloads
// are 33 bytes for block events and 41 bytes for mempool events
func parseSequenceMessage(data []byte) (SequenceMessage, error) {
	if len(data) != sequenceMessageBlockLen &&
		len(data) != sequenceMessageMempoolLen {
		return SequenceMessage{}, InvalidSequenceMessageLengthError{Length: len(data)}
	}
	sm := SequenceMessage{
		Kind: SequenceKind(data[chainhash.HashSize]),
		Hash: hashFromWireBytes(data[:chainhash.HashSize]),
	}
	switch sm.Kind {
	case SequenceBlockConnect, SequenceBlockDisconnect:
		if len(data) != sequenceMessageBlockLen {
			return SequenceMessage{}, InvalidSequenceMessageLengthError{Length: len(data)}
		}
	case SequenceMempoolAcceptance, SequenceMempoolRemoval:
		if len(data) != sequenceMessageMempoolLen {
			return SequenceMessage{}, InvalidSequenceMessageLengthError{Length: len(data)}
		}
		sm.MempoolSequence = binary.LittleEndian.Uint64(data[chainhash.HashSize+1:])
	default:
		return SequenceMessage{}, InvalidSequenceMessageLabelError{Label: byte(sm.Kind)}
	}
	return sm, nil
}

// Serialize encodes the sequence payload back to its wire form
func (sm SequenceMessage) Serialize() []byte {
	size := sequenceMessageBlockLen
	if sm.hasMempoolSequence() {
		size = sequenceMessageMempoolLen
	}
	out := make([]byte, size)
	copy(out, hashToWireBytes(&sm.Hash))
	out[chainhash.HashSize] = byte(sm.Kind)
	if sm.hasMempoolSequence() {
		binary.LittleEndian.PutUint64(out[chainhash.HashSize+1:], sm.MempoolSequence)
	}
	return out
}

func (sm SequenceMessage) hasMempoolSequence() bool {
	return sm.Kind == SequenceMempoolAcceptance || sm.Kind == SequenceMempoolRemoval
}

func (sm SequenceMessage) String() string {
	if sm.hasMempoolSequence() {
		return fmt.Sprintf(
			"%s(%s, mempool_sequence=%d)",
			sm.Kind,
			sm.Hash,
			sm.MempoolSequence,
		)
	}
	return fmt.Sprintf("%s(%s)", sm.Kind, sm.Hash)
}
