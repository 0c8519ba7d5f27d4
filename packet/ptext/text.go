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

package ptext

import (
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/ppn-systems/nalix/common/frame"
	"github.com/ppn-systems/nalix/internal/objpool"
	"github.com/ppn-systems/nalix/internal/zerocopy"
	"github.com/ppn-systems/nalix/packet"
	"github.com/ppn-systems/nalix/pipeline"
)

func newError(format string, args ...any) error {
	format = "packet/text256: " + format
	return errors.Errorf(format, args...)
}

const (
	// MaxTextSize 明文状态下 Body 的最大字节数
	MaxTextSize = 256
)

var (
	errTextTooLarge = newError("text too large")
	errInvalidUTF8  = newError("invalid utf8")
)

// Text UTF-8 文本载荷 明文不超过 256 字节
//
// 经过压缩或加密后 Body 为不透明字节 长度与编码约束只在明文状态下成立
type Text struct {
	header frame.Header
	body   []byte
}

var pool = objpool.New(func() *Text { return &Text{} }, objpool.DefaultMaxCapacity)

// Acquire 从对象池取出一个 Text
func Acquire() *Text {
	return pool.Get()
}

// Release 归还对象池
func Release(t *Text) {
	pool.Put(t)
}

// New 构造并初始化 Text
func New(opCode uint16, priority frame.Priority, transport frame.Transport, s string) (*Text, error) {
	if len(s) > MaxTextSize {
		return nil, errTextTooLarge
	}
	if !utf8.ValidString(s) {
		return nil, errInvalidUTF8
	}

	t := Acquire()
	t.header = frame.Header{
		Magic:     frame.MagicText256,
		OpCode:    opCode,
		Priority:  priority,
		Transport: transport,
	}
	t.body = append(t.body[:0], s...)
	return t, nil
}

// Text 返回明文内容 仅在未压缩未加密状态下有意义
func (t *Text) Text() string {
	return string(t.body)
}

func (t *Text) Magic() frame.Magic {
	return frame.MagicText256
}

func (t *Text) Header() frame.Header {
	return t.header
}

func (t *Text) SetFlags(flags frame.Flags) {
	t.header.Flags = flags
}

func (t *Text) WireLength() uint16 {
	return uint16(frame.MinFrameSize + len(t.body))
}

func (t *Text) MarshalTo(out []byte) (int, error) {
	n, err := frame.MarshalHeaderTo(t.header, out)
	if err != nil {
		return 0, err
	}
	n += copy(out[n:], t.body)
	return n, nil
}

func (t *Text) Marshal() ([]byte, error) {
	return packet.Marshal(t)
}

func (t *Text) ResetForPool() {
	t.header = frame.Header{}
	t.body = t.body[:0]
}

// plain 返回 Body 是否处于明文状态
func (t *Text) plain() bool {
	return !t.header.Flags.Has(frame.FlagCompressed) && !t.header.Flags.Has(frame.FlagEncrypted)
}

// Deserialize 从 Header+Body 字节区段构造 Text
//
// 明文状态下校验 UTF-8 与长度上限 变换态的 Body 原样接收
func Deserialize(raw []byte) (packet.Packet, error) {
	header, err := frame.ParseHeader(raw)
	if err != nil {
		return nil, err
	}

	r := zerocopy.NewReader(raw)
	if _, err := r.Read(frame.HeaderSize); err != nil {
		return nil, err
	}
	body := r.ReadAll()

	t := Acquire()
	t.header = header
	t.body = append(t.body[:0], body...)

	if t.plain() {
		if len(t.body) > MaxTextSize {
			Release(t)
			return nil, errTextTooLarge
		}
		if !utf8.Valid(t.body) {
			Release(t)
			return nil, errInvalidUTF8
		}
	}
	return t, nil
}

func compress(p packet.Packet) (packet.Packet, error) {
	t := p.(*Text)
	t.body = pipeline.CompressBody(t.body)
	t.header.Flags = t.header.Flags.With(frame.FlagCompressed)
	return t, nil
}

func decompress(p packet.Packet) (packet.Packet, error) {
	t := p.(*Text)
	body, err := pipeline.DecompressBody(t.body)
	if err != nil {
		return nil, err
	}
	t.body = body
	t.header.Flags = t.header.Flags.Without(frame.FlagCompressed)
	return t, nil
}

func encrypt(p packet.Packet, key []byte, algo packet.SymmetricAlgo) (packet.Packet, error) {
	t := p.(*Text)
	body, err := pipeline.EncryptBody(t.body, key, algo)
	if err != nil {
		return nil, err
	}
	t.body = body
	t.header.Flags = t.header.Flags.With(frame.FlagEncrypted)
	return t, nil
}

func decrypt(p packet.Packet, key []byte, algo packet.SymmetricAlgo) (packet.Packet, error) {
	t := p.(*Text)
	body, err := pipeline.DecryptBody(t.body, key, algo)
	if err != nil {
		return nil, err
	}
	t.body = body
	t.header.Flags = t.header.Flags.Without(frame.FlagEncrypted)
	return t, nil
}

func init() {
	packet.MustRegister(frame.MagicText256, Deserialize)
	packet.MustRegisterTransformer(frame.MagicText256, packet.TransformerSet{
		Compress:   compress,
		Decompress: decompress,
		Encrypt:    encrypt,
		Decrypt:    decrypt,
	})
}
