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

package packet

import (
	"github.com/pkg/errors"

	"github.com/ppn-systems/nalix/common/frame"
)

func newError(format string, args ...any) error {
	format = "packet: " + format
	return errors.Errorf(format, args...)
}

var (
	// ErrDuplicateMagic 同一个 Magic 被注册了两次 进程启动即失败
	ErrDuplicateMagic = newError("duplicate magic")

	// ErrIncompleteTransformerSet transformer 四元组必须完整提供
	ErrIncompleteTransformerSet = newError("incomplete transformer set")
)

// DeserializeFunc 从 Header+Body 字节区段构造 Packet
type DeserializeFunc func(b []byte) (Packet, error)

// TransformerSet 单个家族的变换四元组
//
// 四个函数均为纯函数 只翻转相应的标记位 不做 IO 不租借缓冲
// 组合顺序由外部 pipeline 决定 接收端仅凭 Flags 即可逆向还原
type TransformerSet struct {
	Compress   func(Packet) (Packet, error)
	Decompress func(Packet) (Packet, error)
	Encrypt    func(Packet, []byte, SymmetricAlgo) (Packet, error)
	Decrypt    func(Packet, []byte, SymmetricAlgo) (Packet, error)
}

func (ts TransformerSet) complete() bool {
	return ts.Compress != nil && ts.Decompress != nil && ts.Encrypt != nil && ts.Decrypt != nil
}

// 注册表在 init 阶段由各 p* 子包写入 此后只读 无需加锁
var (
	deserializers = map[frame.Magic]DeserializeFunc{}
	transformers  = map[frame.Magic]TransformerSet{}
)

// Register 登记家族的反序列化函数 重复的 Magic 返回 ErrDuplicateMagic
func Register(m frame.Magic, fn DeserializeFunc) error {
	if _, ok := deserializers[m]; ok {
		return errors.WithMessagef(ErrDuplicateMagic, "magic (%s)", m)
	}
	deserializers[m] = fn
	return nil
}

// MustRegister 同 Register 失败时 panic 仅供各家族 init 使用
func MustRegister(m frame.Magic, fn DeserializeFunc) {
	if err := Register(m, fn); err != nil {
		panic(err)
	}
}

// RegisterTransformer 登记家族的变换四元组 四元组不完整或 Magic 重复均报错
func RegisterTransformer(m frame.Magic, ts TransformerSet) error {
	if !ts.complete() {
		return errors.WithMessagef(ErrIncompleteTransformerSet, "magic (%s)", m)
	}
	if _, ok := transformers[m]; ok {
		return errors.WithMessagef(ErrDuplicateMagic, "magic (%s)", m)
	}
	transformers[m] = ts
	return nil
}

// MustRegisterTransformer 同 RegisterTransformer 失败时 panic
func MustRegisterTransformer(m frame.Magic, ts TransformerSet) {
	if err := RegisterTransformer(m, ts); err != nil {
		panic(err)
	}
}

// ResolveDeserializer 按 Magic 查找反序列化函数
func ResolveDeserializer(m frame.Magic) (DeserializeFunc, bool) {
	fn, ok := deserializers[m]
	return fn, ok
}

// ResolveDeserializerFromFrame 从完整 Frame(含长度前缀)的固定偏移读取 Magic 并查找
func ResolveDeserializerFromFrame(b []byte) (DeserializeFunc, bool) {
	m, err := frame.PeekMagic(b)
	if err != nil {
		return nil, false
	}
	return ResolveDeserializer(m)
}

// ResolveTransformer 按 Magic 查找变换四元组 未声明变换的家族返回 false
func ResolveTransformer(m frame.Magic) (TransformerSet, bool) {
	ts, ok := transformers[m]
	return ts, ok
}

// Deserialize 解析 Header+Body 字节区段为 Packet
func Deserialize(b []byte) (Packet, error) {
	if len(b) == 0 {
		return nil, newError("deserialize empty bytes")
	}

	header, err := frame.ParseHeader(b)
	if err != nil {
		return nil, err
	}

	fn, ok := ResolveDeserializer(header.Magic)
	if !ok {
		return nil, newError("deserializer (%s) not found", header.Magic)
	}
	return fn(b)
}
