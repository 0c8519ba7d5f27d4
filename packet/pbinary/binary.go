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

package pbinary

import (
	"github.com/pkg/errors"

	"github.com/ppn-systems/nalix/common/frame"
	"github.com/ppn-systems/nalix/internal/objpool"
	"github.com/ppn-systems/nalix/internal/zerocopy"
	"github.com/ppn-systems/nalix/packet"
	"github.com/ppn-systems/nalix/pipeline"
)

func newError(format string, args ...any) error {
	format = "packet/binary: " + format
	return errors.Errorf(format, args...)
}

const (
	// MaxDataSize Body 的最大长度 受 Frame 总长上限约束
	MaxDataSize = frame.MaxFrameSize - frame.MinFrameSize
)

var errDataTooLarge = newError("data too large")

// Binary 原始字节载荷
//
// 最通用的 Frame 家族 Body 即业务字节本身 不做任何解释
type Binary struct {
	header frame.Header
	Data   []byte
}

var pool = objpool.New(func() *Binary { return &Binary{} }, objpool.DefaultMaxCapacity)

// Acquire 从对象池取出一个 Binary
func Acquire() *Binary {
	return pool.Get()
}

// Release 归还对象池
func Release(b *Binary) {
	pool.Put(b)
}

// New 构造并初始化 Binary
func New(opCode uint16, priority frame.Priority, transport frame.Transport, data []byte) (*Binary, error) {
	if len(data) > MaxDataSize {
		return nil, errDataTooLarge
	}

	b := Acquire()
	b.header = frame.Header{
		Magic:     frame.MagicBinary,
		OpCode:    opCode,
		Priority:  priority,
		Transport: transport,
	}
	b.Data = append(b.Data[:0], data...)
	return b, nil
}

func (b *Binary) Magic() frame.Magic {
	return frame.MagicBinary
}

func (b *Binary) Header() frame.Header {
	return b.header
}

func (b *Binary) SetFlags(flags frame.Flags) {
	b.header.Flags = flags
}

func (b *Binary) WireLength() uint16 {
	return uint16(frame.MinFrameSize + len(b.Data))
}

func (b *Binary) MarshalTo(out []byte) (int, error) {
	if len(b.Data) > MaxDataSize {
		return 0, errDataTooLarge
	}

	n, err := frame.MarshalHeaderTo(b.header, out)
	if err != nil {
		return 0, err
	}
	n += copy(out[n:], b.Data)
	return n, nil
}

func (b *Binary) Marshal() ([]byte, error) {
	return packet.Marshal(b)
}

func (b *Binary) ResetForPool() {
	b.header = frame.Header{}
	b.Data = b.Data[:0]
}

// Deserialize 从 Header+Body 字节区段构造 Binary
func Deserialize(raw []byte) (packet.Packet, error) {
	header, err := frame.ParseHeader(raw)
	if err != nil {
		return nil, err
	}

	r := zerocopy.NewReader(raw)
	if _, err := r.Read(frame.HeaderSize); err != nil {
		return nil, err
	}

	b := Acquire()
	b.header = header
	b.Data = append(b.Data[:0], r.ReadAll()...)
	return b, nil
}

func compress(p packet.Packet) (packet.Packet, error) {
	b := p.(*Binary)
	b.Data = pipeline.CompressBody(b.Data)
	b.header.Flags = b.header.Flags.With(frame.FlagCompressed)
	return b, nil
}

func decompress(p packet.Packet) (packet.Packet, error) {
	b := p.(*Binary)
	data, err := pipeline.DecompressBody(b.Data)
	if err != nil {
		return nil, err
	}
	b.Data = data
	b.header.Flags = b.header.Flags.Without(frame.FlagCompressed)
	return b, nil
}

func encrypt(p packet.Packet, key []byte, algo packet.SymmetricAlgo) (packet.Packet, error) {
	b := p.(*Binary)
	data, err := pipeline.EncryptBody(b.Data, key, algo)
	if err != nil {
		return nil, err
	}
	b.Data = data
	b.header.Flags = b.header.Flags.With(frame.FlagEncrypted)
	return b, nil
}

func decrypt(p packet.Packet, key []byte, algo packet.SymmetricAlgo) (packet.Packet, error) {
	b := p.(*Binary)
	data, err := pipeline.DecryptBody(b.Data, key, algo)
	if err != nil {
		return nil, err
	}
	b.Data = data
	b.header.Flags = b.header.Flags.Without(frame.FlagEncrypted)
	return b, nil
}

func init() {
	packet.MustRegister(frame.MagicBinary, Deserialize)
	packet.MustRegisterTransformer(frame.MagicBinary, packet.TransformerSet{
		Compress:   compress,
		Decompress: decompress,
		Encrypt:    encrypt,
		Decrypt:    decrypt,
	})
}
