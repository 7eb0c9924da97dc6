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
)

// EventKind identifies a connection lifecycle event reported on the socket
// monitor channel. The values match the libzmq monitor event codes
type EventKind uint16

const (
	EventConnected EventKind = 1 << iota
	EventConnectDelayed
	EventConnectRetried
	EventListening
	EventBindFailed
	EventAccepted
	EventAcceptFailed
	EventClosed
	EventCloseFailed
	EventDisconnected
	EventMonitorStopped
	EventHandshakeFailedNoDetail
	EventHandshakeSucceeded
	EventHandshakeFailedProtocol
	EventHandshakeFailedAuth
)

func (k EventKind) String() string {
	tmp := map[EventKind]string{
		EventConnected:               "Connected",
		EventConnectDelayed:          "ConnectDelayed",
		EventConnectRetried:          "ConnectRetried",
		EventListening:               "Listening",
		EventBindFailed:              "BindFailed",
		EventAccepted:                "Accepted",
		EventAcceptFailed:            "AcceptFailed",
		EventClosed:                  "Closed",
		EventCloseFailed:             "CloseFailed",
		EventDisconnected:            "Disconnected",
		EventMonitorStopped:          "MonitorStopped",
		EventHandshakeFailedNoDetail: "HandshakeFailedNoDetail",
		EventHandshakeSucceeded:      "HandshakeSucceeded",
		EventHandshakeFailedProtocol: "HandshakeFailedProtocol",
		EventHandshakeFailedAuth:     "HandshakeFailedAuth",
	}
	ret, ok := tmp[k]
	if !ok {
		return fmt.Sprintf("Unknown(0x%04x)", uint16(k))
	}
	return ret
}

// SocketEvent is one decoded monitor event. The meaning of Value depends on
// the kind: a file descriptor for connect/accept/close/disconnect events, an
// errno for failure events and the reconnect interval for ConnectRetried
type SocketEvent struct {
	Kind  EventKind
	Value uint32
}

func (e SocketEvent) String() string {
	return fmt.Sprintf("%s(%d)", e.Kind, e.Value)
}

// EventMessage is a monitor event together with the endpoint it refers to
type EventMessage struct {
	Event  SocketEvent
	Source string
}

func (e *EventMessage) socketMessage() {}

func (e *EventMessage) String() string {
	return fmt.Sprintf("EventMessage(%s, source=%s)", e.Event, e.Source)
}

// monitor events arrive as a 2-byte event code plus a 4-byte value
const eventFrameLen = 6

// parseEventMessage decodes the 2-frame message received from a socket
// monitor pair
func parseEventMessage(frames [][]byte) (*EventMessage, error) {
	if len(frames) != 2 {
		return nil, fmt.Errorf(
			"%w: expected 2 frames, got %d",
			ErrMalformedEvent,
			len(frames),
		)
	}
	if len(frames[0]) != eventFrameLen {
		return nil, fmt.Errorf(
			"%w: event frame is %d bytes, expected %d",
			ErrMalformedEvent,
			len(frames[0]),
			eventFrameLen,
		)
	}
	return &EventMessage{
		Event: SocketEvent{
			Kind:  EventKind(binary.LittleEndian.Uint16(frames[0])),
			Value: binary.LittleEndian.Uint32(frames[0][2:]),
		},
		Source: string(frames[1]),
	}, nil
}
