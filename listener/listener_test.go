// Copyright 2025 The nalix Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package listener

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ppn-systems/nalix/common/frame"
	"github.com/ppn-systems/nalix/internal/bufpool"
	"github.com/ppn-systems/nalix/transport"
)

func startListener(t *testing.T, cfg Config) *Listener {
	if cfg.Address == "" {
		cfg.Address = "127.0.0.1:0"
	}

	l := New(cfg, bufpool.New(65535))
	go func() {
		assert.NoError(t, l.Serve())
	}()

	for i := 0; i < 100; i++ {
		if l.Addr() != nil {
			return l
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("listener not started")
	return nil
}

func buildFrame(header frame.Header, body []byte) []byte {
	out := make([]byte, frame.MinFrameSize+len(body))
	binary.LittleEndian.PutUint16(out[:frame.LengthSize], uint16(len(out)))
	_, _ = frame.MarshalHeaderTo(header, out[frame.LengthSize:])
	copy(out[frame.MinFrameSize:], body)
	return out
}

func TestServeAcceptAndReceive(t *testing.T) {
	accepted := make(chan *transport.Conn, 1)

	l := startListener(t, Config{QueueSize: 16})
	defer l.Close()

	l.OnAccept(func(conn *transport.Conn) {
		accepted <- conn
	})

	nc, err := net.Dial("tcp", l.Addr().String())
	assert.NoError(t, err)
	defer nc.Close()

	var conn *transport.Conn
	select {
	case conn = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("connection not accepted")
	}
	assert.Equal(t, 1, l.ActiveConns())

	raw := buildFrame(frame.Header{Magic: frame.MagicBinary, Transport: frame.TransportTCP}, []byte("hello"))
	_, err = nc.Write(raw)
	assert.NoError(t, err)

	select {
	case got := <-conn.Incoming():
		assert.Equal(t, raw[frame.LengthSize:], got)
	case <-time.After(time.Second):
		t.Fatal("frame not delivered")
	}

	host, _, _ := net.SplitHostPort(nc.LocalAddr().String())
	assert.Equal(t, uint64(1), l.AcceptedByHost(host))
}

func TestRemoveExpired(t *testing.T) {
	l := startListener(t, Config{QueueSize: 16})
	defer l.Close()

	accepted := make(chan *transport.Conn, 1)
	l.OnAccept(func(conn *transport.Conn) {
		accepted <- conn
	})

	nc, err := net.Dial("tcp", l.Addr().String())
	assert.NoError(t, err)
	defer nc.Close()

	var conn *transport.Conn
	select {
	case conn = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("connection not accepted")
	}

	// 从未收到过 Frame 的空闲链接按 accept 时间判定过期
	time.Sleep(20 * time.Millisecond)
	l.removeExpired(time.Millisecond)

	for i := 0; i < 100; i++ {
		if conn.IsClosed() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.True(t, conn.IsClosed())
	assert.Equal(t, 0, l.ActiveConns())
}

func TestCloseDisconnectsAll(t *testing.T) {
	l := startListener(t, Config{QueueSize: 16})

	accepted := make(chan *transport.Conn, 4)
	l.OnAccept(func(conn *transport.Conn) {
		accepted <- conn
	})

	var clients []net.Conn
	for i := 0; i < 3; i++ {
		nc, err := net.Dial("tcp", l.Addr().String())
		assert.NoError(t, err)
		clients = append(clients, nc)
	}
	defer func() {
		for _, nc := range clients {
			nc.Close()
		}
	}()

	conns := make([]*transport.Conn, 0, 3)
	for i := 0; i < 3; i++ {
		select {
		case conn := <-accepted:
			conns = append(conns, conn)
		case <-time.After(time.Second):
			t.Fatal("connection not accepted")
		}
	}

	assert.NoError(t, l.Close())
	for _, conn := range conns {
		assert.True(t, conn.IsClosed())
	}
	assert.Equal(t, 0, l.ActiveConns())
}
