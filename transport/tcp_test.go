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
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ppn-systems/nalix/common/frame"
	"github.com/ppn-systems/nalix/internal/bufpool"
)

// buildFrame 构造一个完整 Frame 长度前缀自动计算
func buildFrame(t *testing.T, header frame.Header, body []byte) []byte {
	out := make([]byte, frame.MinFrameSize+len(body))
	binary.LittleEndian.PutUint16(out[:frame.LengthSize], uint16(len(out)))

	_, err := frame.MarshalHeaderTo(header, out[frame.LengthSize:])
	assert.NoError(t, err)
	copy(out[frame.MinFrameSize:], body)
	return out
}

func newPipeTransport(maxBuffer, queueSize int) (*TCPTransport, net.Conn, chan struct{}) {
	client, server := net.Pipe()
	tr := NewTCPTransport(server, bufpool.New(maxBuffer), queueSize)

	disconnected := make(chan struct{}, 1)
	tr.OnDisconnected(func() {
		disconnected <- struct{}{}
	})
	return tr, client, disconnected
}

func collectFrames(tr *TCPTransport) [][]byte {
	var frames [][]byte
	for b := range tr.Incoming() {
		frames = append(frames, b)
	}
	return frames
}

func TestReceiveSingleFrame(t *testing.T) {
	tr, client, _ := newPipeTransport(65535, 16)
	defer tr.Close()

	tr.BeginReceive(context.Background())

	header := frame.Header{
		Magic:     frame.MagicBinary,
		Priority:  frame.PriorityNormal,
		Transport: frame.TransportTCP,
	}
	raw := buildFrame(t, header, []byte{0x41, 0x42, 0x43})

	go func() {
		client.Write(raw)
		client.Close()
	}()

	frames := collectFrames(tr)
	assert.Len(t, frames, 1)

	// 入队的是 Header+Body 不含长度前缀
	assert.Equal(t, raw[frame.LengthSize:], frames[0])
	assert.NotZero(t, tr.LastPingAt())
}

func TestReceivePartialChunks(t *testing.T) {
	tests := []struct {
		name   string
		chunks []int
	}{
		{
			name:   "ByteByByte",
			chunks: []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
		},
		{
			name:   "SplitInsidePrefix",
			chunks: []int{1, 13},
		},
		{
			name:   "SplitAtPrefixBoundary",
			chunks: []int{2, 12},
		},
		{
			name:   "SplitInsideBody",
			chunks: []int{5, 4, 5},
		},
	}

	header := frame.Header{Magic: frame.MagicBinary, Transport: frame.TransportTCP}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, client, _ := newPipeTransport(65535, 16)
			defer tr.Close()

			tr.BeginReceive(context.Background())

			raw := buildFrame(t, header, []byte{0x01, 0x02, 0x03})
			assert.Len(t, raw, 14)

			go func() {
				var off int
				for _, n := range tt.chunks {
					client.Write(raw[off : off+n])
					off += n
					time.Sleep(time.Millisecond)
				}
				client.Close()
			}()

			frames := collectFrames(tr)
			assert.Len(t, frames, 1)
			assert.Equal(t, raw[frame.LengthSize:], frames[0])
		})
	}
}

func TestReceiveBackToBackFrames(t *testing.T) {
	tr, client, _ := newPipeTransport(65535, 16)
	defer tr.Close()

	tr.BeginReceive(context.Background())

	header := frame.Header{Magic: frame.MagicBinary, Transport: frame.TransportTCP}
	first := buildFrame(t, header, []byte("first"))
	second := buildFrame(t, header, []byte("second"))

	go func() {
		// 两个 Frame 合并为一次写入
		client.Write(append(append([]byte{}, first...), second...))
		client.Close()
	}()

	frames := collectFrames(tr)
	assert.Len(t, frames, 2)
	assert.Equal(t, first[frame.LengthSize:], frames[0])
	assert.Equal(t, second[frame.LengthSize:], frames[1])
}

func TestReceiveInvalidLength(t *testing.T) {
	tests := []struct {
		name   string
		prefix []byte
	}{
		{
			name:   "ZeroLength",
			prefix: []byte{0x00, 0x00},
		},
		{
			name:   "OneLength",
			prefix: []byte{0x01, 0x00},
		},
		{
			name:   "BelowHeaderSize",
			prefix: []byte{0x05, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, client, disconnected := newPipeTransport(65535, 16)
			defer tr.Close()

			tr.BeginReceive(context.Background())

			go client.Write(tt.prefix)

			select {
			case <-disconnected:
			case <-time.After(time.Second):
				t.Fatal("disconnect not fired")
			}
			assert.Empty(t, collectFrames(tr))
		})
	}
}

func TestReceiveFrameTooLarge(t *testing.T) {
	// bufpool 上限 1024 发送一个声称 2000 字节的 Frame
	tr, client, disconnected := newPipeTransport(1024, 16)
	defer tr.Close()

	tr.BeginReceive(context.Background())

	go client.Write([]byte{0xD0, 0x07})

	select {
	case <-disconnected:
	case <-time.After(time.Second):
		t.Fatal("disconnect not fired")
	}
}

func TestReceiveTruncatedFrame(t *testing.T) {
	tr, client, disconnected := newPipeTransport(65535, 16)
	defer tr.Close()

	tr.BeginReceive(context.Background())

	go func() {
		// 声称 100 字节 只给 40 字节 Body 后关闭
		client.Write([]byte{0x64, 0x00})
		client.Write(make([]byte, 40))
		client.Close()
	}()

	select {
	case <-disconnected:
	case <-time.After(time.Second):
		t.Fatal("disconnect not fired")
	}
	assert.Empty(t, collectFrames(tr))
}

func TestReceiveBufferGrow(t *testing.T) {
	tr, client, _ := newPipeTransport(65535, 16)
	defer tr.Close()

	tr.BeginReceive(context.Background())

	// 超过初始工作缓冲 触发换租
	body := make([]byte, initialBufferSize*2)
	for i := range body {
		body[i] = byte(i)
	}
	header := frame.Header{Magic: frame.MagicBinary, Transport: frame.TransportTCP}
	raw := buildFrame(t, header, body)

	go func() {
		client.Write(raw)
		client.Close()
	}()

	frames := collectFrames(tr)
	assert.Len(t, frames, 1)
	assert.Equal(t, raw[frame.LengthSize:], frames[0])
}

func TestCancelWhileIdle(t *testing.T) {
	tr, _, disconnected := newPipeTransport(65535, 16)

	ctx, cancel := context.WithCancel(context.Background())
	tr.BeginReceive(ctx)

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-disconnected:
	case <-time.After(time.Second):
		t.Fatal("disconnect not fired")
	}
	assert.True(t, tr.IsClosed())

	// 已释放的 Transport 上再次启动是 no-op
	tr.BeginReceive(context.Background())
	assert.True(t, tr.IsClosed())
}

func TestDisconnectExactlyOnce(t *testing.T) {
	client, server := net.Pipe()
	tr := NewTCPTransport(server, bufpool.New(65535), 16)

	var fired atomic.Int32
	tr.OnDisconnected(func() {
		fired.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	tr.BeginReceive(ctx)
	time.Sleep(10 * time.Millisecond)

	// 取消 对端关闭 主动释放 三者并发竞争
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); cancel() }()
	go func() { defer wg.Done(); client.Close() }()
	go func() { defer wg.Done(); tr.Close() }()
	wg.Wait()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestSendOrdering(t *testing.T) {
	client, server := net.Pipe()
	tr := NewTCPTransport(server, bufpool.New(65535), 16)
	defer tr.Close()

	bodies := [][]byte{[]byte("s1"), []byte("s2"), []byte("s3")}

	go func() {
		for _, b := range bodies {
			assert.True(t, tr.Send(b))
		}
	}()

	// 对端按序读回三个 Frame
	for _, want := range bodies {
		prefix := make([]byte, frame.LengthSize)
		_, err := io.ReadFull(client, prefix)
		assert.NoError(t, err)

		length, err := frame.ReadLength(prefix)
		assert.NoError(t, err)
		assert.Equal(t, len(want)+frame.LengthSize, int(length))

		body := make([]byte, int(length)-frame.LengthSize)
		_, err = io.ReadFull(client, body)
		assert.NoError(t, err)
		assert.Equal(t, want, body)
	}
}

func TestSendTooLarge(t *testing.T) {
	_, server := net.Pipe()
	tr := NewTCPTransport(server, bufpool.New(65535), 16)
	defer tr.Close()

	// 总长超过 uint16 上限
	assert.False(t, tr.Send(make([]byte, 65534)))
}

func TestSendMaxSize(t *testing.T) {
	client, server := net.Pipe()
	tr := NewTCPTransport(server, bufpool.New(65535), 16)
	defer tr.Close()

	body := make([]byte, 65533)
	go func() {
		_, _ = io.Copy(io.Discard, client)
	}()
	assert.True(t, tr.Send(body))
}

func TestSendAfterClose(t *testing.T) {
	_, server := net.Pipe()
	tr := NewTCPTransport(server, bufpool.New(65535), 16)

	tr.Close()
	assert.False(t, tr.Send([]byte("x")))
}

func TestSendAsyncCanceled(t *testing.T) {
	_, server := net.Pipe()
	tr := NewTCPTransport(server, bufpool.New(65535), 16)
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, tr.SendAsync(ctx, []byte("x")))
}

func TestSendAsyncUnblockedByCancel(t *testing.T) {
	// net.Pipe 无缓冲 对端不读时写入会一直阻塞 取消必须能唤醒
	_, server := net.Pipe()
	tr := NewTCPTransport(server, bufpool.New(65535), 16)
	defer tr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() {
		done <- tr.SendAsync(ctx, []byte("blocked"))
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send not unblocked by cancel")
	}
}

func TestIncomingQueueOverflow(t *testing.T) {
	tr, client, _ := newPipeTransport(65535, 1)
	defer tr.Close()

	tr.BeginReceive(context.Background())

	header := frame.Header{Magic: frame.MagicBinary, Transport: frame.TransportTCP}
	raw := buildFrame(t, header, []byte("x"))

	go func() {
		for i := 0; i < 3; i++ {
			client.Write(raw)
		}
		client.Close()
	}()

	// 队列深度 1 超出的 Frame 被丢弃 不阻塞接收任务
	frames := collectFrames(tr)
	assert.GreaterOrEqual(t, len(frames), 1)
	assert.LessOrEqual(t, len(frames), 3)
}
