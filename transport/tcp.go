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
	"math"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/ppn-systems/nalix/common"
	"github.com/ppn-systems/nalix/common/frame"
	"github.com/ppn-systems/nalix/internal/bufpool"
	"github.com/ppn-systems/nalix/internal/fasttime"
	"github.com/ppn-systems/nalix/internal/rescue"
	"github.com/ppn-systems/nalix/logger"
)

const (
	// initialBufferSize 接收工作缓冲的初始租借大小
	//
	// 绝大多数 Frame 不会超过 4K 大包到达时再换租更大的 SizeClass
	initialBufferSize = 4096

	// DefaultIncomingQueueSize 入站队列的默认深度
	DefaultIncomingQueueSize = 256
)

// aLongTimeAgo 用于强制唤醒阻塞中的 socket 读写
var aLongTimeAgo = time.Unix(1, 0)

// TCPTransport 基于长度前缀 Frame 的 TCP 传输
//
// 单个 Transport 持有一条 socket 以及一条接收任务
// 接收工作缓冲只归接收任务所有 换租更大缓冲也只发生在该任务上
//
// 接收状态机
//
//	Idle -> ReadingHeader -> ReadingBody -> Deliver -> ReadingHeader
//	                  \________________________________/
//	                          任一阶段出错 -> Closing
//
// 取消依赖 context.AfterFunc 注册的 shutdown 回调 将 socket 的
// Deadline 置为过去的时刻 以唤醒阻塞中的读 没有这一步阻塞读不会醒来
type TCPTransport struct {
	conn net.Conn
	pool *bufpool.Pool

	incoming  chan []byte
	closeOnce sync.Once

	keepReading  atomic.Bool
	disconnected atomic.Bool
	disposed     atomic.Bool

	lastPingAt atomic.Int64

	onDisconnected func()
	onDeliver      func(b []byte)
}

// NewTCPTransport 创建并返回 TCPTransport 实例
func NewTCPTransport(conn net.Conn, pool *bufpool.Pool, queueSize int) *TCPTransport {
	if queueSize <= 0 {
		queueSize = DefaultIncomingQueueSize
	}
	return &TCPTransport{
		conn:     conn,
		pool:     pool,
		incoming: make(chan []byte, queueSize),
	}
}

// OnDisconnected 注册断开回调 必须在 BeginReceive 之前调用
func (t *TCPTransport) OnDisconnected(f func()) {
	t.onDisconnected = f
}

// OnDeliver 注册 Frame 入队后的通知回调 必须在 BeginReceive 之前调用
func (t *TCPTransport) OnDeliver(f func(b []byte)) {
	t.onDeliver = f
}

// Incoming 返回入站队列 元素为 Header+Body 字节(不含长度前缀)
//
// 接收任务退出时队列会被关闭
func (t *TCPTransport) Incoming() <-chan []byte {
	return t.incoming
}

// LastPingAt 返回最近一次收到完整 Frame 的 unix 毫秒时间戳
func (t *TCPTransport) LastPingAt() int64 {
	return t.lastPingAt.Load()
}

// maxFrame 返回接收端允许的最大 Frame 总长
func (t *TCPTransport) maxFrame() int {
	if t.pool.MaxSize() < common.MaxFrameSize {
		return t.pool.MaxSize()
	}
	return common.MaxFrameSize
}

// BeginReceive 启动接收任务
//
// 同一个 Transport 只会有一条接收任务 已释放的 Transport 上调用是 no-op
func (t *TCPTransport) BeginReceive(ctx context.Context) {
	if t.disposed.Load() {
		return
	}
	if !t.keepReading.CompareAndSwap(false, true) {
		return
	}

	rescue.Go("tcp-receive", func() {
		t.receiveLoop(ctx)
	})
}

func (t *TCPTransport) receiveLoop(ctx context.Context) {
	// 取消时执行 shutdown 唤醒阻塞中的读 回调注册一次 整个循环周期内复用
	stop := context.AfterFunc(ctx, func() {
		_ = t.conn.SetDeadline(aLongTimeAgo)
	})
	defer stop()

	wbuf, err := t.pool.Rent(initialBufferSize)
	if err != nil {
		logger.Errorf("rent receive buffer failed: %v", err)
		t.teardown(err)
		return
	}
	defer func() {
		t.pool.Return(wbuf)
	}()

	for t.keepReading.Load() {
		// ReadingHeader: 精确读取 2 字节长度前缀 不足时持续等待
		if _, err := io.ReadFull(t.conn, wbuf[:frame.LengthSize]); err != nil {
			t.teardown(classifyReadError(err, false))
			return
		}

		length, err := frame.ReadLength(wbuf[:frame.LengthSize])
		if err != nil || int(length) < frame.MinFrameSize {
			logger.Warnf("invalid frame length from %s", t.conn.RemoteAddr())
			t.teardown(frame.ErrInvalidHeader)
			return
		}
		if int(length) > t.maxFrame() {
			logger.Warnf("frame too large (%d > %d) from %s", length, t.maxFrame(), t.conn.RemoteAddr())
			t.teardown(frame.ErrFrameTooLarge)
			return
		}

		// 容量不足时换租更大的 SizeClass 并重写已读到的前缀
		if int(length) > len(wbuf) {
			bigger, err := t.pool.Rent(int(length))
			if err != nil {
				t.teardown(err)
				return
			}
			copy(bigger[:frame.LengthSize], wbuf[:frame.LengthSize])
			t.pool.Return(wbuf)
			wbuf = bigger
		}

		// ReadingBody: 循环接收直到凑齐 length 字节 中途对端关闭即为残包
		if _, err := io.ReadFull(t.conn, wbuf[frame.LengthSize:length]); err != nil {
			t.teardown(classifyReadError(err, true))
			return
		}

		// Deliver: 只有完整收到一个 Frame 才更新 lastPingAt
		t.lastPingAt.Store(fasttime.UnixMilli())
		t.deliver(wbuf[frame.LengthSize:length])
	}
}

// deliver 拷贝 Frame 入队 工作缓冲随即可以复用
func (t *TCPTransport) deliver(b []byte) {
	data := append([]byte{}, b...)

	select {
	case t.incoming <- data:
		framesReceivedTotal.Inc()
	default:
		framesDroppedTotal.Inc()
		logger.Warnf("incoming queue full, frame dropped from %s", t.conn.RemoteAddr())
		return
	}

	if t.onDeliver != nil {
		t.onDeliver(data)
	}
}

// teardown 终止接收任务并释放 socket 仅由接收任务调用
//
// 入站队列的关闭也收敛在这里 保证不会与 deliver 的写入竞争
func (t *TCPTransport) teardown(reason error) {
	t.keepReading.Store(false)
	t.dispose()
	t.fireDisconnected(reason)
}

// dispose 释放 socket 幂等
func (t *TCPTransport) dispose() {
	if t.disposed.CompareAndSwap(false, true) {
		_ = t.conn.Close()
	}
}

// fireDisconnected 触发断开事件 由 CAS 保证至多一次
//
// 任何竞争路径(取消/对端关闭/主动释放)都会汇聚到这里
func (t *TCPTransport) fireDisconnected(reason error) {
	if !t.disconnected.CompareAndSwap(false, true) {
		return
	}

	if reason != nil && !errors.Is(reason, ErrPeerClosed) {
		logger.Debugf("connection %s closed: %v", t.conn.RemoteAddr(), reason)
	}
	disconnectsTotal.Inc()
	t.closeOnce.Do(func() {
		close(t.incoming)
	})
	if t.onDisconnected != nil {
		t.onDisconnected()
	}
}

// Close 释放 Transport 幂等
//
// 接收任务存活时只关闭 socket 由被唤醒的接收任务完成收尾
// 避免从别的 goroutine 关闭入站队列
func (t *TCPTransport) Close() error {
	wasRunning := t.keepReading.Load()
	t.dispose()
	if !wasRunning {
		t.fireDisconnected(ErrSocketDisposed)
	}
	return nil
}

// IsClosed 返回 Transport 是否已经释放
func (t *TCPTransport) IsClosed() bool {
	return t.disposed.Load()
}

// Send 同步发送 body 为 Header+Body 字节 长度前缀由本方法写入
//
// 发送失败只返回 false 不会关闭链接 是否断开由上层决定
func (t *TCPTransport) Send(body []byte) bool {
	if t.disposed.Load() {
		return false
	}

	total := len(body) + frame.LengthSize
	if total > math.MaxUint16 || total > t.maxFrame() {
		sendFailuresTotal.Inc()
		logger.Errorf("send frame too large (%d bytes)", total)
		return false
	}

	// 小包直接栈上组包 大包向 bufpool 租借
	var stack [common.SmallSendSize]byte
	var out []byte
	if total <= common.SmallSendSize {
		out = stack[:total]
	} else {
		rented, err := t.pool.Rent(total)
		if err != nil {
			sendFailuresTotal.Inc()
			logger.Errorf("rent send buffer failed: %v", err)
			return false
		}
		defer t.pool.Return(rented)
		out = rented[:total]
	}

	binary.LittleEndian.PutUint16(out[:frame.LengthSize], uint16(total))
	copy(out[frame.LengthSize:], body)

	n, err := t.conn.Write(out)
	if err != nil || n != total {
		sendFailuresTotal.Inc()
		logger.Errorf("send failed (%d/%d bytes): %v", n, total, err)
		return false
	}

	framesSentTotal.Inc()
	return true
}

// SendAsync 发送时关注调用方的取消信号 其余行为与 Send 一致
func (t *TCPTransport) SendAsync(ctx context.Context, body []byte) bool {
	if err := ctx.Err(); err != nil {
		return false
	}

	stop := context.AfterFunc(ctx, func() {
		_ = t.conn.SetWriteDeadline(aLongTimeAgo)
	})
	defer func() {
		if stop() {
			// 回调未执行 恢复写超时设置
			_ = t.conn.SetWriteDeadline(time.Time{})
		}
	}()

	return t.Send(body)
}
