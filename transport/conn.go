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
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/ppn-systems/nalix/common/frame"
	"github.com/ppn-systems/nalix/internal/bufpool"
	"github.com/ppn-systems/nalix/internal/fasttime"
	"github.com/ppn-systems/nalix/logger"
	"github.com/ppn-systems/nalix/packet"
)

// Authority 链接的权限级别 由上层鉴权流程设置
type Authority uint8

const (
	AuthorityNone Authority = iota
	AuthorityUser
	AuthorityOperator
	AuthorityAdmin
)

// Hooks 链接生命周期事件
//
// OnProcess 在 Frame 入队后触发 OnPostProcess 在 TCP 发送成功后触发
// OnClose 在链接断开后触发 且至多一次
type Hooks struct {
	OnClose       func(reason string)
	OnProcess     func(b []byte)
	OnPostProcess func(p packet.Packet)
}

// Conn 链接门面 组合 TCP/UDP 两条传输
//
// Send 依据 Packet 头部的 Transport 标记选择通道
type Conn struct {
	id         string
	remote     net.Addr
	acceptedAt int64

	tcp *TCPTransport
	udp *UDPTransport

	hooks Hooks

	mut       sync.RWMutex
	key       []byte
	algo      packet.SymmetricAlgo
	authority Authority

	outgoing  *diagRing
	closeOnce sync.Once
}

// NewConn 基于已建立的 TCP socket 创建链接
func NewConn(nc net.Conn, pool *bufpool.Pool, queueSize int) *Conn {
	c := &Conn{
		id:         uuid.New().String(),
		remote:     nc.RemoteAddr(),
		acceptedAt: fasttime.UnixMilli(),
		tcp:        NewTCPTransport(nc, pool, queueSize),
		outgoing:   newDiagRing(),
	}

	c.tcp.OnDisconnected(func() {
		c.fireClose("disconnected")
	})
	c.tcp.OnDeliver(func(b []byte) {
		if c.hooks.OnProcess != nil {
			c.hooks.OnProcess(b)
		}
	})
	return c
}

// SetHooks 注册生命周期事件 必须在 BeginReceive 之前调用
func (c *Conn) SetHooks(hooks Hooks) {
	c.hooks = hooks
}

// BindUDP 为链接附加 UDP 通道
//
// 远端地址族与 TCP 端不一致时由 UDPTransport 自行重建 socket
func (c *Conn) BindUDP(remote *net.UDPAddr) error {
	udp, err := NewUDPTransport(remote)
	if err != nil {
		return err
	}
	c.udp = udp
	return nil
}

// ID 链接唯一标识
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr 远端地址
func (c *Conn) RemoteAddr() net.Addr {
	return c.remote
}

// UptimeMillis 自 accept 起经过的毫秒数
func (c *Conn) UptimeMillis() int64 {
	return fasttime.SinceMilli(c.acceptedAt)
}

// LastPingAt 最近一次收到完整 Frame 的 unix 毫秒时间戳
func (c *Conn) LastPingAt() int64 {
	return c.tcp.LastPingAt()
}

// Incoming 入站 Frame 队列 由 dispatcher 消费
func (c *Conn) Incoming() <-chan []byte {
	return c.tcp.Incoming()
}

// IsClosed 返回链接是否已经关闭
func (c *Conn) IsClosed() bool {
	return c.tcp.IsClosed()
}

// SetSecurity 设置链接协商出的密钥与对称算法
func (c *Conn) SetSecurity(key []byte, algo packet.SymmetricAlgo) {
	c.mut.Lock()
	defer c.mut.Unlock()
	c.key = append(c.key[:0], key...)
	c.algo = algo
}

// Security 返回链接的密钥与对称算法
func (c *Conn) Security() ([]byte, packet.SymmetricAlgo) {
	c.mut.RLock()
	defer c.mut.RUnlock()
	return c.key, c.algo
}

// SetAuthority 设置链接权限级别
func (c *Conn) SetAuthority(a Authority) {
	c.mut.Lock()
	defer c.mut.Unlock()
	c.authority = a
}

// Authority 返回链接权限级别
func (c *Conn) Authority() Authority {
	c.mut.RLock()
	defer c.mut.RUnlock()
	return c.authority
}

// BeginReceive 启动 TCP 接收任务
func (c *Conn) BeginReceive(ctx context.Context) {
	c.tcp.BeginReceive(ctx)
}

// Send 序列化并发送 Packet 通道由头部的 Transport 标记决定
//
// TCP 发送成功后触发 OnPostProcess
func (c *Conn) Send(p packet.Packet) bool {
	raw, err := p.Marshal()
	if err != nil {
		logger.Errorf("marshal packet (%s) failed: %v", p.Magic(), err)
		return false
	}

	if p.Header().Transport == frame.TransportUDP {
		if c.udp == nil {
			logger.Warnf("no udp channel bound on connection %s", c.id)
			return false
		}
		return c.udp.Send(raw)
	}

	if !c.tcp.Send(raw) {
		return false
	}

	c.outgoing.record(raw)
	if c.hooks.OnPostProcess != nil {
		c.hooks.OnPostProcess(p)
	}
	return true
}

// SendRaw 直接发送已序列化的 Header+Body 字节 始终走 TCP
func (c *Conn) SendRaw(b []byte) bool {
	ok := c.tcp.Send(b)
	if ok {
		c.outgoing.record(b)
	}
	return ok
}

// SendRawAsync 同 SendRaw 发送过程关注调用方的取消信号
func (c *Conn) SendRawAsync(ctx context.Context, b []byte) bool {
	ok := c.tcp.SendAsync(ctx, b)
	if ok {
		c.outgoing.record(b)
	}
	return ok
}

// RecentSent 返回最近发出的 Frame 前缀快照 诊断用
func (c *Conn) RecentSent() [][]byte {
	return c.outgoing.snapshot()
}

// Disconnect 主动断开链接 幂等
func (c *Conn) Disconnect(reason string) {
	_ = c.tcp.Close()
	if c.udp != nil {
		_ = c.udp.Close()
	}
	c.fireClose(reason)
}

// fireClose 触发 OnClose 至多一次
func (c *Conn) fireClose(reason string) {
	c.closeOnce.Do(func() {
		if c.udp != nil {
			_ = c.udp.Close()
		}
		if c.hooks.OnClose != nil {
			c.hooks.OnClose(reason)
		}
	})
}
