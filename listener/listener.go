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
	"context"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/net/netutil"

	"github.com/ppn-systems/nalix/common"
	"github.com/ppn-systems/nalix/internal/bufpool"
	"github.com/ppn-systems/nalix/internal/fasttime"
	"github.com/ppn-systems/nalix/internal/labels"
	"github.com/ppn-systems/nalix/internal/rescue"
	"github.com/ppn-systems/nalix/logger"
	"github.com/ppn-systems/nalix/transport"
)

type Config struct {
	Address     string        `config:"address"`
	MaxConns    int           `config:"maxConns"`
	QueueSize   int           `config:"queueSize"`
	ConnExpired time.Duration `config:"connExpired"`
}

// GetConnExpired 未活跃链接过期时间 过小的配置回退到默认值
func (c Config) GetConnExpired() time.Duration {
	if c.ConnExpired < time.Minute {
		return 5 * time.Minute
	}
	return c.ConnExpired
}

// endpointStat 按远端 Host 聚合的接入统计
type endpointStat struct {
	Labels   labels.Labels
	Accepted uint64
}

// Listener TCP 接入层 负责 accept 以及链接表的维护
//
// 每条链接一条接收任务 接入上限由 netutil.LimitListener 控制
type Listener struct {
	cfg  Config
	pool *bufpool.Pool

	mut   sync.RWMutex
	ln    net.Listener
	conns map[string]*transport.Conn
	stats map[uint64]*endpointStat

	onAccept func(conn *transport.Conn)

	ctx    context.Context
	cancel context.CancelFunc
}

// New 创建并返回 Listener 实例
func New(cfg Config, pool *bufpool.Pool) *Listener {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		cfg:    cfg,
		pool:   pool,
		conns:  make(map[string]*transport.Conn),
		stats:  make(map[uint64]*endpointStat),
		ctx:    ctx,
		cancel: cancel,
	}
}

// OnAccept 注册新链接回调 必须在 Serve 之前调用
func (l *Listener) OnAccept(f func(conn *transport.Conn)) {
	l.onAccept = f
}

// Serve 启动监听与 accept 循环 阻塞直到 Close 或致命错误
func (l *Listener) Serve() error {
	ln, err := net.Listen("tcp", l.cfg.Address)
	if err != nil {
		return err
	}
	maxConns := l.cfg.MaxConns
	if maxConns <= 0 {
		maxConns = common.DefaultMaxConns()
	}
	ln = netutil.LimitListener(ln, maxConns)

	l.mut.Lock()
	l.ln = ln
	l.mut.Unlock()

	rescue.Go("conn-sweeper", l.sweepLoop)
	logger.Infof("listener serving on %s", l.cfg.Address)

	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-l.ctx.Done():
				return nil
			default:
				return err
			}
		}
		l.handleAccept(nc)
	}
}

func (l *Listener) handleAccept(nc net.Conn) {
	conn := transport.NewConn(nc, l.pool, l.cfg.QueueSize)

	l.mut.Lock()
	l.conns[conn.ID()] = conn
	l.recordAcceptLocked(nc.RemoteAddr())
	l.mut.Unlock()

	if l.onAccept != nil {
		l.onAccept(conn)
	}
	conn.BeginReceive(l.ctx)

	logger.Debugf("accepted connection %s from %s", conn.ID(), nc.RemoteAddr())
}

// recordAcceptLocked 记录按远端 Host 聚合的接入计数
func (l *Listener) recordAcceptLocked(addr net.Addr) {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		host = addr.String()
	}

	ls := labels.FromMap(map[string]string{"remote_host": host})
	h := ls.Hash()
	stat, ok := l.stats[h]
	if !ok {
		stat = &endpointStat{Labels: ls}
		l.stats[h] = stat
	}
	stat.Accepted++
}

// Addr 返回实际监听地址 未启动时为 nil
func (l *Listener) Addr() net.Addr {
	l.mut.RLock()
	defer l.mut.RUnlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Get 按 ID 查找链接
func (l *Listener) Get(id string) (*transport.Conn, bool) {
	l.mut.RLock()
	defer l.mut.RUnlock()
	conn, ok := l.conns[id]
	return conn, ok
}

// Conns 返回链接表快照
func (l *Listener) Conns() []*transport.Conn {
	l.mut.RLock()
	defer l.mut.RUnlock()

	out := make([]*transport.Conn, 0, len(l.conns))
	for _, conn := range l.conns {
		out = append(out, conn)
	}
	return out
}

// ActiveConns 返回活跃的链接数量
func (l *Listener) ActiveConns() int {
	l.mut.RLock()
	defer l.mut.RUnlock()
	return len(l.conns)
}

// sweepLoop 周期性清理已关闭与过期的链接
//
// 过期判定基于 LastPingAt 从未收到过 Frame 的链接按 accept 时间计
func (l *Listener) sweepLoop() {
	expired := l.cfg.GetConnExpired()
	ticker := time.NewTicker(expired / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.removeExpired(expired)

		case <-l.ctx.Done():
			return
		}
	}
}

func (l *Listener) removeExpired(expired time.Duration) {
	l.mut.Lock()
	defer l.mut.Unlock()

	now := fasttime.UnixMilli()
	for id, conn := range l.conns {
		if conn.IsClosed() {
			delete(l.conns, id)
			continue
		}

		lastActive := conn.LastPingAt()
		if lastActive == 0 {
			lastActive = now - conn.UptimeMillis()
		}
		if now-lastActive > expired.Milliseconds() {
			logger.Infof("connection %s expired, disconnecting", id)
			conn.Disconnect("expired")
			delete(l.conns, id)
		}
	}
}

// Stats 返回按远端 Host 聚合的接入统计快照
func (l *Listener) Stats() []labels.Labels {
	l.mut.RLock()
	defer l.mut.RUnlock()

	out := make([]labels.Labels, 0, len(l.stats))
	for _, stat := range l.stats {
		out = append(out, stat.Labels)
	}
	return out
}

// AcceptedByHost 返回远端 Host 的累计接入次数
func (l *Listener) AcceptedByHost(host string) uint64 {
	ls := labels.FromMap(map[string]string{"remote_host": host})

	l.mut.RLock()
	defer l.mut.RUnlock()
	if stat, ok := l.stats[ls.Hash()]; ok {
		return stat.Accepted
	}
	return 0
}

// Close 停止接入并断开所有链接
func (l *Listener) Close() error {
	l.cancel()

	var errs *multierror.Error

	l.mut.Lock()
	if l.ln != nil {
		if err := l.ln.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	conns := make([]*transport.Conn, 0, len(l.conns))
	for id, conn := range l.conns {
		conns = append(conns, conn)
		delete(l.conns, id)
	}
	l.mut.Unlock()

	for _, conn := range conns {
		conn.Disconnect("listener closed")
	}
	return errs.ErrorOrNil()
}
