/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package transport

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

const kindEcho Kind = 0x01

func TestServerEchoesHandlerReply(t *testing.T) {
	srv, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	srv.Handle(kindEcho, func(payload []byte) ([]byte, error) {
		return append([]byte("echo:"), payload...), nil
	})
	go srv.Serve()

	client := NewClient(time.Second)
	reply, err := client.Call(srv.Addr().String(), kindEcho, []byte("hello"), time.Second)
	if err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	if string(reply) != "echo:hello" {
		t.Fatalf("got %q, want %q", reply, "echo:hello")
	}
}

func TestServerLargePayloadCompressed(t *testing.T) {
	srv, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	srv.Handle(kindEcho, func(payload []byte) ([]byte, error) {
		return payload, nil
	})
	go srv.Serve()

	big := []byte(strings.Repeat("log-entry-payload", 100))
	client := NewClient(time.Second)
	reply, err := client.Call(srv.Addr().String(), kindEcho, big, time.Second)
	if err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	if !bytes.Equal(reply, big) {
		t.Fatalf("round trip mismatch for large payload")
	}
}

func TestClientCallUnreachablePeerFails(t *testing.T) {
	client := NewClient(50 * time.Millisecond)
	_, err := client.Call("127.0.0.1:1", kindEcho, nil, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected error calling an unreachable peer")
	}
}

func TestUnregisteredKindClosesSilently(t *testing.T) {
	srv, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()
	go srv.Serve()

	client := NewClient(200 * time.Millisecond)
	_, err = client.Call(srv.Addr().String(), Kind(0x99), nil, 200*time.Millisecond)
	if err == nil {
		t.Fatal("expected error for a kind with no registered handler")
	}
}
