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

package transport

import (
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ppn-systems/nalix/common/frame"
	"github.com/ppn-systems/nalix/internal/bufpool"
	"github.com/ppn-systems/nalix/packet"
	"github.com/ppn-systems/nalix/packet/pbinary"
)

func newPipeConn() (*Conn, net.Conn) {
	client, server := net.Pipe()
	return NewConn(server, bufpool.New(65535), 16), client
}

func readFrame(t *testing.T, r io.Reader) []byte {
	prefix := make([]byte, frame.LengthSize)
	_, err := io.ReadFull(r, prefix)
	assert.NoError(t, err)

	length, err := frame.ReadLength(prefix)
	assert.NoError(t, err)

	body := make([]byte, int(length)-frame.LengthSize)
	_, err = io.ReadFull(r, body)
	assert.NoError(t, err)
	return body
}

func TestConnSendPacket(t *testing.T) {
	conn, client := newPipeConn()
	defer conn.Disconnect("test done")

	var postProcessed atomic.Int32
	conn.SetHooks(Hooks{
		OnPostProcess: func(p packet.Packet) {
			postProcessed.Add(1)
		},
	})

	b, err := pbinary.New(0, frame.PriorityNormal, frame.TransportTCP, []byte{0x41, 0x42, 0x43})
	assert.NoError(t, err)
	defer pbinary.Release(b)

	done := make(chan []byte, 1)
	go func() {
		done <- readFrame(t, client)
	}()

	assert.True(t, conn.Send(b))

	raw := <-done
	// 对端收到的是 Header+Body 可由注册表还原
	got, err := packet.Deserialize(raw)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x41, 0x42, 0x43}, got.(*pbinary.Binary).Data)

	assert.Eventually(t, func() bool {
		return postProcessed.Load() == 1
	}, time.Second, 5*time.Millisecond)
	assert.NotEmpty(t, conn.RecentSent())
}

func TestConnSendUDPTagWithoutChannel(t *testing.T) {
	conn, _ := newPipeConn()
	defer conn.Disconnect("test done")

	b, err := pbinary.New(0, frame.PriorityNormal, frame.TransportUDP, []byte("x"))
	assert.NoError(t, err)
	defer pbinary.Release(b)

	// 未绑定 UDP 通道 按失败处理 不关闭链接
	assert.False(t, conn.Send(b))
	assert.False(t, conn.IsClosed())
}

func TestConnDisconnectIdempotent(t *testing.T) {
	conn, _ := newPipeConn()

	var closed atomic.Int32
	conn.SetHooks(Hooks{
		OnClose: func(reason string) {
			closed.Add(1)
		},
	})

	for i := 0; i < 3; i++ {
		conn.Disconnect("bye")
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), closed.Load())
	assert.True(t, conn.IsClosed())
}

func TestConnState(t *testing.T) {
	conn, _ := newPipeConn()
	defer conn.Disconnect("test done")

	assert.NotEmpty(t, conn.ID())
	assert.NotNil(t, conn.RemoteAddr())
	assert.GreaterOrEqual(t, conn.UptimeMillis(), int64(0))
	assert.Zero(t, conn.LastPingAt())

	key := make([]byte, 32)
	conn.SetSecurity(key, packet.AlgoChaCha20Poly1305)
	gotKey, algo := conn.Security()
	assert.Len(t, gotKey, 32)
	assert.Equal(t, packet.AlgoChaCha20Poly1305, algo)

	conn.SetAuthority(AuthorityOperator)
	assert.Equal(t, AuthorityOperator, conn.Authority())
}
