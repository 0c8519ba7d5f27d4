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

package pdirective

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/ppn-systems/nalix/common/frame"
	"github.com/ppn-systems/nalix/internal/objpool"
	"github.com/ppn-systems/nalix/internal/zerocopy"
	"github.com/ppn-systems/nalix/packet"
)

func newError(format string, args ...any) error {
	format = "packet/directive: " + format
	return errors.Errorf(format, args...)
}

var errShortBody = newError("short body")

// Type 指令类型
type Type uint8

const (
	TypeNone Type = iota
	TypeCommand
	TypeNotice
)

// Reason 服务端下发指令的原因
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonRateLimited
	ReasonUnauthorized
	ReasonProtocolError
	ReasonServerShutdown
)

// Action 建议客户端采取的动作
type Action uint8

const (
	ActionNone Action = iota
	ActionRetry
	ActionBackoff
	ActionDisconnect
	ActionReauthenticate
)

/*
* Body Layout (little-endian)
+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
|       SequenceID (4)      | Type (1) | Reason (1) | Action (1) |
+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
| Flags (1) |           Arg0 (4)           |       Arg1 (4)      |
+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
|   Arg2 (2)   |
+-+-+-+-+-+-+-+
*/

const bodySize = 4 + 1 + 1 + 1 + 1 + 4 + 4 + 2

// Directive 服务端到客户端的紧凑指令
type Directive struct {
	header     frame.Header
	SequenceID uint32
	Type       Type
	Reason     Reason
	Action     Action
	Flags      uint8
	Arg0       uint32
	Arg1       uint32
	Arg2       uint16
}

var pool = objpool.New(func() *Directive { return &Directive{} }, objpool.DefaultMaxCapacity)

// Acquire 从对象池取出一个 Directive
func Acquire() *Directive {
	return pool.Get()
}

// Release 归还对象池
func Release(d *Directive) {
	pool.Put(d)
}

// New 构造并初始化 Directive
func New(seq uint32, typ Type, reason Reason, action Action) *Directive {
	d := Acquire()
	d.header = frame.Header{
		Magic:     frame.MagicDirective,
		OpCode:    uint16(typ),
		Priority:  frame.PriorityHigh,
		Transport: frame.TransportTCP,
	}
	d.SequenceID = seq
	d.Type = typ
	d.Reason = reason
	d.Action = action
	return d
}

func (d *Directive) Magic() frame.Magic {
	return frame.MagicDirective
}

func (d *Directive) Header() frame.Header {
	return d.header
}

func (d *Directive) SetFlags(flags frame.Flags) {
	d.header.Flags = flags
}

func (d *Directive) WireLength() uint16 {
	return uint16(frame.MinFrameSize + bodySize)
}

func (d *Directive) MarshalTo(out []byte) (int, error) {
	n, err := frame.MarshalHeaderTo(d.header, out)
	if err != nil {
		return 0, err
	}
	if len(out) < n+bodySize {
		return 0, newError("short buffer")
	}

	binary.LittleEndian.PutUint32(out[n:], d.SequenceID)
	out[n+4] = uint8(d.Type)
	out[n+5] = uint8(d.Reason)
	out[n+6] = uint8(d.Action)
	out[n+7] = d.Flags
	binary.LittleEndian.PutUint32(out[n+8:], d.Arg0)
	binary.LittleEndian.PutUint32(out[n+12:], d.Arg1)
	binary.LittleEndian.PutUint16(out[n+16:], d.Arg2)
	return n + bodySize, nil
}

func (d *Directive) Marshal() ([]byte, error) {
	return packet.Marshal(d)
}

func (d *Directive) ResetForPool() {
	*d = Directive{}
}

// Deserialize 从 Header+Body 字节区段构造 Directive
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

	d := Acquire()
	d.header = header
	d.SequenceID, _ = r.ReadUint32()

	typ, _ := r.ReadUint8()
	reason, _ := r.ReadUint8()
	action, _ := r.ReadUint8()
	d.Type = Type(typ)
	d.Reason = Reason(reason)
	d.Action = Action(action)
	d.Flags, _ = r.ReadUint8()
	d.Arg0, _ = r.ReadUint32()
	d.Arg1, _ = r.ReadUint32()
	d.Arg2, _ = r.ReadUint16()
	return d, nil
}

func init() {
	packet.MustRegister(frame.MagicDirective, Deserialize)
}
