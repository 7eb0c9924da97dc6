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
	"time"

	zmq "github.com/pebbe/zmq4"
)

type subscribeConfig struct {
	zctx        *zmq.Context
	topics      []Topic
	recvTimeout time.Duration
	chanSize    int
}

// SubscribeOptionFunc adjusts how a subscription is established
type SubscribeOptionFunc func(*subscribeConfig)

// WithZmqContext reuses an existing ZMQ context instead of creating one per
// subscription. The caller keeps ownership and must terminate it
func WithZmqContext(zctx *zmq.Context) SubscribeOptionFunc {
	return func(c *subscribeConfig) {
		c.zctx = zctx
	}
}

// WithTopics restricts the subscription to the given topics. The default is
// to receive every notification the node publishes
func WithTopics(topics ...Topic) SubscribeOptionFunc {
	return func(c *subscribeConfig) {
		c.topics = topics
	}
}

// WithRecvTimeout sets the poll interval of the internal receive loops. It
// bounds how long Close can take, not how long Next waits
func WithRecvTimeout(d time.Duration) SubscribeOptionFunc {
	return func(c *subscribeConfig) {
		c.recvTimeout = d
	}
}

// WithChannelSize sets the depth of the internal delivery channels
func WithChannelSize(n int) SubscribeOptionFunc {
	return func(c *subscribeConfig) {
		c.chanSize = n
	}
}

func newSubscribeConfig(options ...SubscribeOptionFunc) subscribeConfig {
	c := subscribeConfig{
		recvTimeout: 100 * time.Millisecond,
		chanSize:    10,
	}
	for _, option := range options {
		option(&c)
	}
	return c
}
