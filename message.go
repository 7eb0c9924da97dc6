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
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	// MultipartLen is the number of frames that make up one notification
	MultipartLen = 3

	// TopicMaxLen is the length of the longest known topic
	TopicMaxLen = 9

	// SequenceLen is the length of the trailing sequence frame
	SequenceLen = 4

	// DataMaxLen is the largest possible data frame, which is a raw block
	// at the maximum block weight
	DataMaxLen = wire.MaxBlockPayload

	// WalletLabelLen is the fixed size the wallet label is padded to in a
	// hashwtx data frame
	WalletLabelLen = 32
)

// Topic is the ASCII topic carried in the first frame of a notification
type Topic string

const (
	TopicHashBlock    Topic = "hashblock"
	TopicHashTx       Topic = "hashtx"
	TopicHashWalletTx Topic = "hashwtx"
	TopicRawBlock     Topic = "rawblock"
	TopicRawTx        Topic = "rawtx"
	TopicSequence     Topic = "sequence"
)

func (t Topic) String() string {
	return string(t)
}

// SocketMessage is an item produced by a monitor-merged stream. It is
// implemented by every Message variant and by *EventMessage
type SocketMessage interface {
	socketMessage()
}

// Message is a single notification published by the node. It is a closed set:
// the concrete types are HashBlock, HashTx, HashWalletTx, RawBlock, RawTx and
// Sequence
type Message interface {
	SocketMessage
	fmt.Stringer

	// Topic returns the topic this message is published under
	Topic() Topic

	// Sequence returns the per-publisher sequence number carried in the
	// trailing frame. It starts at 0 and wraps at 2^32
	Sequence() uint32

	// SerializeData returns the middle (data) frame for this message
	SerializeData() []byte
}

// HashBlock notifies the hash of a newly accepted block
type HashBlock struct {
	Hash chainhash.Hash
	Seq  uint32
}

func (m *HashBlock) socketMessage() {}

func (m *HashBlock) Topic() Topic { return TopicHashBlock }

func (m *HashBlock) Sequence() uint32 { return m.Seq }

func (m *HashBlock) SerializeData() []byte { return hashToWireBytes(&m.Hash) }

func (m *HashBlock) String() string {
	return fmt.Sprintf("HashBlock(%s, sequence=%d)", m.Hash, m.Seq)
}

// HashTx notifies the hash of a transaction accepted to the mempool or
// included in a block
type HashTx struct {
	Hash chainhash.Hash
	Seq  uint32
}

func (m *HashTx) socketMessage() {}

func (m *HashTx) Topic() Topic { return TopicHashTx }

func (m *HashTx) Sequence() uint32 { return m.Seq }

func (m *HashTx) SerializeData() []byte { return hashToWireBytes(&m.Hash) }

func (m *HashTx) String() string {
	return fmt.Sprintf("HashTx(%s, sequence=%d)", m.Hash, m.Seq)
}

// HashWalletTx notifies the hash of a transaction that involves one of the
// node's wallets, tagged with the wallet label
type HashWalletTx struct {
	Hash   chainhash.Hash
	Wallet string
	Seq    uint32
}

// NewHashWalletTx builds a HashWalletTx, rejecting wallet labels that cannot
// be represented in the fixed 32-byte label field of the wire encoding
func NewHashWalletTx(hash chainhash.Hash, wallet string, seq uint32) (*HashWalletTx, error) {
	if len(wallet) > WalletLabelLen {
		return nil, InvalidWalletLabelLengthError{Length: len(wallet)}
	}
	return &HashWalletTx{Hash: hash, Wallet: wallet, Seq: seq}, nil
}

func (m *HashWalletTx) socketMessage() {}

func (m *HashWalletTx) Topic() Topic { return TopicHashWalletTx }

func (m *HashWalletTx) Sequence() uint32 { return m.Seq }

// SerializeData returns the reversed hash followed by the wallet label
// right-padded with zero bytes to exactly 32 bytes. It panics if the label is
// longer than 32 bytes; use NewHashWalletTx to reject such labels up front
func (m *HashWalletTx) SerializeData() []byte {
	if len(m.Wallet) > WalletLabelLen {
		panic(fmt.Sprintf(
			"ghostzmq: wallet label of %d bytes exceeds the %d byte wire field",
			len(m.Wallet),
			WalletLabelLen,
		))
	}
	out := make([]byte, chainhash.HashSize+WalletLabelLen)
	copy(out, hashToWireBytes(&m.Hash))
	copy(out[chainhash.HashSize:], m.Wallet)
	return out
}

func (m *HashWalletTx) String() string {
	return fmt.Sprintf("HashWalletTx(%s, wallet=%s, sequence=%d)", m.Hash, m.Wallet, m.Seq)
}

// RawBlock notifies a fully decoded block
type RawBlock struct {
	Block *wire.MsgBlock
	Seq   uint32
}

func (m *RawBlock) socketMessage() {}

func (m *RawBlock) Topic() Topic { return TopicRawBlock }

func (m *RawBlock) Sequence() uint32 { return m.Seq }

func (m *RawBlock) SerializeData() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, m.Block.SerializeSize()))
	// Serialize to a bytes.Buffer cannot fail
	_ = m.Block.Serialize(buf)
	return buf.Bytes()
}

func (m *RawBlock) String() string {
	return fmt.Sprintf("RawBlock(%s, sequence=%d)", m.Block.BlockHash(), m.Seq)
}

// RawTx notifies a fully decoded transaction
type RawTx struct {
	Tx  *wire.MsgTx
	Seq uint32
}

func (m *RawTx) socketMessage() {}

func (m *RawTx) Topic() Topic { return TopicRawTx }

func (m *RawTx) Sequence() uint32 { return m.Seq }

func (m *RawTx) SerializeData() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, m.Tx.SerializeSize()))
	_ = m.Tx.Serialize(buf)
	return buf.Bytes()
}

func (m *RawTx) String() string {
	return fmt.Sprintf("RawTx(%s, sequence=%d)", m.Tx.TxHash(), m.Seq)
}

// Sequence notifies a chain reorg or mempool change as a SequenceMessage
type Sequence struct {
	Message SequenceMessage
	Seq     uint32
}

func (m *Sequence) socketMessage() {}

func (m *Sequence) Topic() Topic { return TopicSequence }

func (m *Sequence) Sequence() uint32 { return m.Seq }

func (m *Sequence) SerializeData() []byte { return m.Message.Serialize() }

func (m *Sequence) String() string {
	return fmt.Sprintf("Sequence(%s, sequence=%d)", m.Message, m.Seq)
}

// ParseMessage decodes a multipart frame group into a Message. The group must
// contain exactly the topic, data and sequence frames
func ParseMessage(frames [][]byte) (Message, error) {
	return parseMessage(frames, nil)
}

// parseMessage is ParseMessage with an optional scratch buffer used to stage
// rawblock/rawtx payloads before consensus decoding. The decoded message never
// aliases the scratch buffer
func parseMessage(frames [][]byte, scratch []byte) (Message, error) {
	if len(frames) != MultipartLen {
		return nil, InvalidMultipartLengthError{Count: len(frames)}
	}
	topic, data, seqFrame := frames[0], frames[1], frames[2]
	if len(seqFrame) != SequenceLen {
		return nil, InvalidSequenceLengthError{Length: len(seqFrame)}
	}
	seq := binary.LittleEndian.Uint32(seqFrame)
	switch Topic(topic) {
	case TopicHashBlock:
		if len(data) != chainhash.HashSize {
			return nil, InvalidHashLengthError{Length: len(data)}
		}
		return &HashBlock{Hash: hashFromWireBytes(data), Seq: seq}, nil
	case TopicHashTx:
		if len(data) != chainhash.HashSize {
			return nil, InvalidHashLengthError{Length: len(data)}
		}
		return &HashTx{Hash: hashFromWireBytes(data), Seq: seq}, nil
	case TopicHashWalletTx:
		if len(data) < chainhash.HashSize {
			return nil, InvalidHashLengthError{Length: len(data)}
		}
		return &HashWalletTx{
			Hash:   hashFromWireBytes(data[:chainhash.HashSize]),
			Wallet: decodeWalletLabel(data[chainhash.HashSize:]),
			Seq:    seq,
		}, nil
	case TopicRawBlock:
		payload, err := stageData(data, scratch)
		if err != nil {
			return nil, err
		}
		var block wire.MsgBlock
		if err := block.Deserialize(bytes.NewReader(payload)); err != nil {
			return nil, ConsensusError{Err: err}
		}
		return &RawBlock{Block: &block, Seq: seq}, nil
	case TopicRawTx:
		payload, err := stageData(data, scratch)
		if err != nil {
			return nil, err
		}
		var tx wire.MsgTx
		if err := tx.Deserialize(bytes.NewReader(payload)); err != nil {
			return nil, ConsensusError{Err: err}
		}
		return &RawTx{Tx: &tx, Seq: seq}, nil
	case TopicSequence:
		sm, err := parseSequenceMessage(data)
		if err != nil {
			return nil, err
		}
		return &Sequence{Message: sm, Seq: seq}, nil
	default:
		e := InvalidTopicError{Length: len(topic)}
		copy(e.Snapshot[:], topic)
		return nil, e
	}
}

// SerializeMessage encodes a Message to its three wire frames. It is the
// exact inverse of ParseMessage
func SerializeMessage(m Message) [][]byte {
	seqFrame := make([]byte, SequenceLen)
	binary.LittleEndian.PutUint32(seqFrame, m.Sequence())
	return [][]byte{
		[]byte(m.Topic()),
		m.SerializeData(),
		seqFrame,
	}
}

// stageData bounds-checks a rawblock/rawtx payload and copies it into the
// scratch buffer when one is provided
func stageData(data, scratch []byte) ([]byte, error) {
	if len(data) > DataMaxLen {
		return nil, ConsensusError{
			Err: fmt.Errorf(
				"payload of %d bytes exceeds the %d byte maximum",
				len(data),
				DataMaxLen,
			),
		}
	}
	if scratch == nil {
		return data, nil
	}
	n := copy(scratch, data)
	return scratch[:n], nil
}

// hashFromWireBytes reverses a wire-order hash into its in-memory byte order
func hashFromWireBytes(b []byte) (h chainhash.Hash) {
	for i := range b {
		h[chainhash.HashSize-1-i] = b[i]
	}
	return h
}

// hashToWireBytes reverses an in-memory hash back to wire byte order
func hashToWireBytes(h *chainhash.Hash) []byte {
	out := make([]byte, chainhash.HashSize)
	for i := range h {
		out[chainhash.HashSize-1-i] = h[i]
	}
	return out
}

// decodeWalletLabel strips the zero-byte padding from a wallet label and
// replaces any invalid UTF-8 sequences instead of failing
func decodeWalletLabel(b []byte) string {
	b = bytes.TrimRight(b, "\x00")
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}
