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
	"encoding/binary"
	"math"
	"net"
	"sync"

	"github.com/ppn-systems/nalix/common"
	"github.com/ppn-systems/nalix/common/frame"
	"github.com/ppn-systems/nalix/logger"
)

// UDPTransport 与 TCP 共享序列化契约的数据报传输
//
// 通过 connect 语义绑定到远端 datagram 的内容与 TCP Frame 完全一致
// 即 2 字节长度前缀加 Header+Body 接收路径不在本层实现
type UDPTransport struct {
	mut    sync.Mutex
	conn   *net.UDPConn
	remote *net.UDPAddr
	closed bool
}

// NewUDPTransport 创建并绑定到 remote 的 UDPTransport 实例
func NewUDPTransport(remote *net.UDPAddr) (*UDPTransport, error) {
	conn, err := net.DialUDP(udpNetwork(remote), nil, remote)
	if err != nil {
		return nil, err
	}
	return &UDPTransport{
		conn:   conn,
		remote: remote,
	}, nil
}

// udpNetwork 依据地址族选择网络类型 IPv6 下使用 DualMode
func udpNetwork(addr *net.UDPAddr) string {
	if addr.IP.To4() != nil {
		return "udp4"
	}
	return "udp"
}

// SetRemote 更新远端地址 远端变化时(包括地址族变化)重建 socket
func (u *UDPTransport) SetRemote(remote *net.UDPAddr) error {
	u.mut.Lock()
	defer u.mut.Unlock()

	if u.closed {
		return ErrSocketDisposed
	}

	if u.remote.IP.Equal(remote.IP) && u.remote.Port == remote.Port {
		return nil
	}

	// socket 使用 connect 语义 远端变化(包括 IPv4/IPv6 切换)都需要重建
	_ = u.conn.Close()
	conn, err := net.DialUDP(udpNetwork(remote), nil, remote)
	if err != nil {
		return err
	}
	u.conn = conn
	u.remote = remote
	return nil
}

// Send 发送一个数据报 body 为 Header+Body 字节
//
// datagram 不可分片重组 部分写入同样视为失败
func (u *UDPTransport) Send(body []byte) bool {
	u.mut.Lock()
	conn := u.conn
	closed := u.closed
	u.mut.Unlock()

	if closed {
		return false
	}

	total := len(body) + frame.LengthSize
	if total > math.MaxUint16 || total > common.MaxFrameSize {
		sendFailuresTotal.Inc()
		logger.Errorf("udp send frame too large (%d bytes)", total)
		return false
	}

	out := make([]byte, total)
	binary.LittleEndian.PutUint16(out[:frame.LengthSize], uint16(total))
	copy(out[frame.LengthSize:], body)

	n, err := conn.Write(out)
	if err != nil || n != total {
		sendFailuresTotal.Inc()
		logger.Errorf("udp send failed (%d/%d bytes): %v", n, total, err)
		return false
	}

	framesSentTotal.Inc()
	return true
}

// Close 释放 socket 幂等
func (u *UDPTransport) Close() error {
	u.mut.Lock()
	defer u.mut.Unlock()

	if u.closed {
		return nil
	}
	u.closed = true
	return u.conn.Close()
}
