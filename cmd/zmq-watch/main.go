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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	ghostzmq "github.com/bleach86/go-ghostcore-zmq"
)

func main() {
	flagset := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	endpoints := flagset.String(
		"endpoints",
		"tcp://127.0.0.1:28332",
		"comma-separated list of ZMQ endpoints to subscribe to",
	)
	timeout := flagset.Duration(
		"handshake-timeout",
		10*time.Second,
		"how long to wait for every endpoint to finish its handshake",
	)
	if err := flagset.Parse(os.Args[1:]); err != nil {
		fmt.Printf("ERROR: %s\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	stream, err := ghostzmq.SubscribeWaitHandshakeTimeout(
		ctx,
		strings.Split(*endpoints, ","),
		*timeout,
	)
	if err != nil {
		fmt.Printf("ERROR: %s\n", err)
		os.Exit(1)
	}
	defer stream.Close()

	for {
		msg, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			fmt.Println("disconnected")
			return
		}
		if err != nil {
			fmt.Printf("ERROR(Next): %s\n", err)
			continue
		}
		fmt.Println(msg)
	}
}
