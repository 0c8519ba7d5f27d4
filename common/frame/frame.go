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

package frame

import (
	"fmt"
)

/*
* Frame Layout (little-endian)
+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
|     Length (2)      |              Magic (4)                  |
+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
|    OpCode (2)    | Flags (1) | Priority (1) |  Transport (1)  |
+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
|                           Body (var)                          |
+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/

const (
	// LengthSize 长度前缀所占字节数
	//
	// Length 为 uint16 小端编码 `包含其自身的 2 字节`
	// 这是整个线路协议唯一的长度语义 任何以 Header+Body 计长的写法都是错误的
	LengthSize = 2

	// HeaderSize 固定头部所占字节数 Magic(4) + OpCode(2) + Flags(1) + Priority(1) + Transport(1)
	HeaderSize = 9

	// MinFrameSize 合法 Frame 的最小长度 即长度前缀加上固定头部
	MinFrameSize = LengthSize + HeaderSize

	// MaxFrameSize 单个 Frame 在线路上的最大长度 与 common.MaxFrameSize 保持一致
	MaxFrameSize = 65535

	// MagicOffset Magic 字段在 Frame 中的偏移 紧跟长度前缀
	MagicOffset = LengthSize
)

// Magic Frame 家族标识 位于 Header 起始的 4 字节
//
// 每种 Packet 类型在编译期声明唯一的 Magic 重复注册在进程启动时即失败
type Magic uint32

const (
	MagicBinary    Magic = 0x4E4C5801 // "NLX" + 0x01
	MagicText256   Magic = 0x4E4C5802
	MagicControl   Magic = 0x4E4C5803
	MagicHandshake Magic = 0x4E4C5804
	MagicDirective Magic = 0x4E4C5805
)

func (m Magic) String() string {
	switch m {
	case MagicBinary:
		return "binary"
	case MagicText256:
		return "text256"
	case MagicControl:
		return "control"
	case MagicHandshake:
		return "handshake"
	case MagicDirective:
		return "directive"
	}
	return fmt.Sprintf("unknown(0x%08X)", uint32(m))
}

// Flags Packet 标记位集合
type Flags uint8

const (
	FlagNone       Flags = 0
	FlagCompressed Flags = 1 << 0
	FlagEncrypted  Flags = 1 << 1
	FlagSigned     Flags = 1 << 2
)

// Has 判断是否设置了指定标记位
func (f Flags) Has(flag Flags) bool {
	return f&flag != 0
}

// With 返回设置了指定标记位的副本
func (f Flags) With(flag Flags) Flags {
	return f | flag
}

// Without 返回清除了指定标记位的副本
func (f Flags) Without(flag Flags) Flags {
	return f &^ flag
}

// Priority Packet 调度优先级 仅作为给 dispatcher 的提示 不参与传输层排序
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	}
	return "unknown"
}

// Transport Packet 期望的传输通道
type Transport uint8

const (
	TransportNone Transport = iota
	TransportTCP
	TransportUDP
)

func (t Transport) String() string {
	switch t {
	case TransportTCP:
		return "tcp"
	case TransportUDP:
		return "udp"
	}
	return "none"
}

// Header Frame 的固定头部视图
//
// 字段顺序即线路字节序 所有整型均为小端编码
type Header struct {
	Magic     Magic
	OpCode    uint16
	Flags     Flags
	Priority  Priority
	Transport Transport
}

func (h Header) String() string {
	return fmt.Sprintf("magic=%s op=%d flags=0x%02X prio=%s transport=%s",
		h.Magic, h.OpCode, uint8(h.Flags), h.Priority, h.Transport)
}
