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

package pcontrol

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/ppn-systems/nalix/common/frame"
	"github.com/ppn-systems/nalix/internal/fasttime"
	"github.com/ppn-systems/nalix/internal/objpool"
	"github.com/ppn-systems/nalix/internal/zerocopy"
	"github.com/ppn-systems/nalix/packet"
)

func newError(format string, args ...any) error {
	format = "packet/control: " + format
	return errors.Errorf(format, args...)
}

var errShortBody = newError("short body")

// Type 控制报文类型
type Type uint8

const (
	TypeNone Type = iota
	TypePing
	TypePong
	TypeAck
	TypeNack
	TypeShutdown
)

func (t Type) String() string {
	switch t {
	case TypePing:
		return "ping"
	case TypePong:
		return "pong"
	case TypeAck:
		return "ack"
	case TypeNack:
		return "nack"
	case TypeShutdown:
		return "shutdown"
	}
	return "none"
}

/*
* Body Layout (little-endian)
+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
|      SequenceID (4)       | ReasonCode (2) |  ControlType (1)  |
+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
|                         UnixMillis (8)                        |
+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
|                       MonotonicTicks (8)                      |
+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
*/

const bodySize = 4 + 2 + 1 + 8 + 8

// Control 链接级控制报文 心跳/确认/停机通告
type Control struct {
	header         frame.Header
	SequenceID     uint32
	ReasonCode     uint16
	ControlType    Type
	UnixMillis     int64
	MonotonicTicks int64
}

var pool = objpool.New(func() *Control { return &Control{} }, objpool.DefaultMaxCapacity)

// Acquire 从对象池取出一个 Control
func Acquire() *Control {
	return pool.Get()
}

// Release 归还对象池
func Release(c *Control) {
	pool.Put(c)
}

// New 构造并初始化 Control 时间戳取当前时刻
func New(controlType Type, seq uint32, reason uint16, transport frame.Transport) *Control {
	c := Acquire()
	c.header = frame.Header{
		Magic:     frame.MagicControl,
		OpCode:    uint16(controlType),
		Priority:  frame.PriorityUrgent,
		Transport: transport,
	}
	c.SequenceID = seq
	c.ReasonCode = reason
	c.ControlType = controlType
	c.UnixMillis = fasttime.UnixMilli()
	c.MonotonicTicks = fasttime.Ticks()
	return c
}

func (c *Control) Magic() frame.Magic {
	return frame.MagicControl
}

func (c *Control) Header() frame.Header {
	return c.header
}

func (c *Control) SetFlags(flags frame.Flags) {
	c.header.Flags = flags
}

func (c *Control) WireLength() uint16 {
	return uint16(frame.MinFrameSize + bodySize)
}

func (c *Control) MarshalTo(out []byte) (int, error) {
	n, err := frame.MarshalHeaderTo(c.header, out)
	if err != nil {
		return 0, err
	}
	if len(out) < n+bodySize {
		return 0, newError("short buffer")
	}

	binary.LittleEndian.PutUint32(out[n:], c.SequenceID)
	binary.LittleEndian.PutUint16(out[n+4:], c.ReasonCode)
	out[n+6] = uint8(c.ControlType)
	binary.LittleEndian.PutUint64(out[n+7:], uint64(c.UnixMillis))
	binary.LittleEndian.PutUint64(out[n+15:], uint64(c.MonotonicTicks))
	return n + bodySize, nil
}

func (c *Control) Marshal() ([]byte, error) {
	return packet.Marshal(c)
}

func (c *Control) ResetForPool() {
	c.header = frame.Header{}
	c.SequenceID = 0
	c.ReasonCode = 0
	c.ControlType = TypeNone
	c.UnixMillis = 0
	c.MonotonicTicks = 0
}

// Deserialize 从 Header+Body 字节区段构造 Control
func Deserialize(raw []byte) (packet.Packet, error) {
	header, err := frame.ParseHeader(raw)
	if err != nil {
		return nil, err
	}

	r := zerocopy.NewReader(raw)
	if _, err := r.Read(frame.HeaderSize); err != nil {
		return nil, err
	}
	if r.Remaining() < bodySize {
		return nil, errShortBody
	}

	c := Acquire()
	c.header = header
	c.SequenceID, _ = r.ReadUint32()
	c.ReasonCode, _ = r.ReadUint16()

	controlType, _ := r.ReadUint8()
	c.ControlType = Type(controlType)
	c.UnixMillis, _ = r.ReadInt64()
	c.MonotonicTicks, _ = r.ReadInt64()
	return c, nil
}

func init() {
	packet.MustRegister(frame.MagicControl, Deserialize)
}
