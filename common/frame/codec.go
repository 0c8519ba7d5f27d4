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
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

func newError(format string, args ...any) error {
	format = "frame: " + format
	return errors.Errorf(format, args...)
}

var (
	// ErrInvalidHeader 长度前缀非法或头部不完整
	ErrInvalidHeader = newError("invalid header")

	// ErrFrameTooLarge Frame 长度超过 uint16 上限或 bufpool 最大 SizeClass
	ErrFrameTooLarge = newError("frame too large")
)

// Marshaler 可被序列化为 Frame 的对象
//
// WireLength 返回的长度为 `线路总长` 即包含 2 字节长度前缀
// MarshalTo 只写入 Header+Body 两部分 写入量必须为 WireLength()-LengthSize
type Marshaler interface {
	WireLength() uint16
	MarshalTo(b []byte) (int, error)
}

// WritePrefixed 将 m 序列化至 out 并写入长度前缀 返回写入的总字节数
//
// out 的容量必须不小于 m.WireLength() 由调用方通过 bufpool 保证
func WritePrefixed(m Marshaler, out []byte) (int, error) {
	total := int(m.WireLength())
	if total > math.MaxUint16 {
		return 0, ErrFrameTooLarge
	}
	if len(out) < total {
		return 0, newError("short buffer: need %d got %d", total, len(out))
	}

	binary.LittleEndian.PutUint16(out[:LengthSize], uint16(total))
	n, err := m.MarshalTo(out[LengthSize:total])
	if err != nil {
		return 0, err
	}
	if n != total-LengthSize {
		return 0, newError("marshal size mismatch: want %d got %d", total-LengthSize, n)
	}
	return total, nil
}

// ReadLength 读取 2 字节小端长度前缀
//
// 长度字段包含自身 因此任何小于 LengthSize 的取值均非法
func ReadLength(b []byte) (uint16, error) {
	if len(b) < LengthSize {
		return 0, ErrInvalidHeader
	}
	n := binary.LittleEndian.Uint16(b[:LengthSize])
	if n < LengthSize {
		return 0, ErrInvalidHeader
	}
	return n, nil
}

// ParseHeader 从 Header+Body 区段中提取固定头部 不拷贝 Body
//
// b 为去掉长度前缀后的字节区段 至少要有 HeaderSize 字节
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrInvalidHeader
	}
	return Header{
		Magic:     Magic(binary.LittleEndian.Uint32(b[0:4])),
		OpCode:    binary.LittleEndian.Uint16(b[4:6]),
		Flags:     Flags(b[6]),
		Priority:  Priority(b[7]),
		Transport: Transport(b[8]),
	}, nil
}

// PeekMagic 直接从完整 Frame(含长度前缀)中读取 Magic
func PeekMagic(b []byte) (Magic, error) {
	if len(b) < MagicOffset+4 {
		return 0, ErrInvalidHeader
	}
	return Magic(binary.LittleEndian.Uint32(b[MagicOffset : MagicOffset+4])), nil
}

// MarshalHeaderTo 将 Header 序列化至 b 的前 HeaderSize 字节
func MarshalHeaderTo(h Header, b []byte) (int, error) {
	if len(b) < HeaderSize {
		return 0, newError("short buffer: need %d got %d", HeaderSize, len(b))
	}
	binary.LittleEndian.PutUint32(b[0:4], uint32(h.Magic))
	binary.LittleEndian.PutUint16(b[4:6], h.OpCode)
	b[6] = uint8(h.Flags)
	b[7] = uint8(h.Priority)
	b[8] = uint8(h.Transport)
	return HeaderSize, nil
}
