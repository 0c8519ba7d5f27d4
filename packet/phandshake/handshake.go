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

package phandshake

import (
	"github.com/pkg/errors"

	"github.com/ppn-systems/nalix/common/frame"
	"github.com/ppn-systems/nalix/internal/objpool"
	"github.com/ppn-systems/nalix/internal/zerocopy"
	"github.com/ppn-systems/nalix/packet"
)

func newError(format string, args ...any) error {
	format = "packet/handshake: " + format
	return errors.Errorf(format, args...)
}

const (
	// MaxMaterialSize 握手材料的最大字节数 对应 32 字节公钥/摘要
	MaxMaterialSize = 32
)

var errMaterialTooLarge = newError("material too large")

// Handshake 不透明的密钥协商材料 内容由上层加密组件解释
type Handshake struct {
	header   frame.Header
	Material []byte
}

var pool = objpool.New(func() *Handshake { return &Handshake{} }, objpool.DefaultMaxCapacity)

// Acquire 从对象池取出一个 Handshake
func Acquire() *Handshake {
	return pool.Get()
}

// Release 归还对象池
func Release(h *Handshake) {
	pool.Put(h)
}

// New 构造并初始化 Handshake
func New(opCode uint16, transport frame.Transport, material []byte) (*Handshake, error) {
	if len(material) > MaxMaterialSize {
		return nil, errMaterialTooLarge
	}

	h := Acquire()
	h.header = frame.Header{
		Magic:     frame.MagicHandshake,
		OpCode:    opCode,
		Priority:  frame.PriorityHigh,
		Transport: transport,
	}
	h.Material = append(h.Material[:0], material...)
	return h, nil
}

func (h *Handshake) Magic() frame.Magic {
	return frame.MagicHandshake
}

func (h *Handshake) Header() frame.Header {
	return h.header
}

func (h *Handshake) SetFlags(flags frame.Flags) {
	h.header.Flags = flags
}

func (h *Handshake) WireLength() uint16 {
	return uint16(frame.MinFrameSize + len(h.Material))
}

func (h *Handshake) MarshalTo(out []byte) (int, error) {
	if len(h.Material) > MaxMaterialSize {
		return 0, errMaterialTooLarge
	}

	n, err := frame.MarshalHeaderTo(h.header, out)
	if err != nil {
		return 0, err
	}
	n += copy(out[n:], h.Material)
	return n, nil
}

func (h *Handshake) Marshal() ([]byte, error) {
	return packet.Marshal(h)
}

func (h *Handshake) ResetForPool() {
	h.header = frame.Header{}
	h.Material = h.Material[:0]
}

// Deserialize 从 Header+Body 字节区段构造 Handshake
func Deserialize(raw []byte) (packet.Packet, error) {
	header, err := frame.ParseHeader(raw)
	if err != nil {
		return nil, err
	}

	r := zerocopy.NewReader(raw)
	if _, err := r.Read(frame.HeaderSize); err != nil {
		return nil, err
	}

	material := r.ReadAll()
	if len(material) > MaxMaterialSize {
		return nil, errMaterialTooLarge
	}

	h := Acquire()
	h.header = header
	h.Material = append(h.Material[:0], material...)
	return h, nil
}

func init() {
	packet.MustRegister(frame.MagicHandshake, Deserialize)
}
