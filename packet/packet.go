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
	"github.com/ppn-systems/nalix/common/frame"
)

// Packet 所有 Frame 家族的统一接口
//
// 具体类型在各 p* 子包中实现 并在 init 阶段向本包注册反序列化函数
// Packet 对象可入池复用 ResetForPool 必须清空所有业务字段
type Packet interface {
	frame.Marshaler

	// Magic 返回家族标识
	Magic() frame.Magic

	// Header 返回固定头部视图
	Header() frame.Header

	// SetFlags 覆盖头部标记位 供 transformer 翻转 Compressed/Encrypted
	SetFlags(flags frame.Flags)

	// Marshal 序列化为 Header+Body 字节 与 WireLength 严格一致
	Marshal() ([]byte, error)

	// ResetForPool 归还对象池前的重置
	ResetForPool()
}

// Marshal 基于 MarshalTo 的通用序列化实现 各家族直接复用
func Marshal(p Packet) ([]byte, error) {
	b := make([]byte, int(p.WireLength())-frame.LengthSize)
	n, err := p.MarshalTo(b)
	if err != nil {
		return nil, err
	}
	return b[:n], nil
}

// SymmetricAlgo 链接协商的对称加密算法
//
// 算法选择随链接握手带外传递 不出现在线路字节中
type SymmetricAlgo uint8

const (
	AlgoNone SymmetricAlgo = iota
	AlgoChaCha20Poly1305
	AlgoXtea
)

func (a SymmetricAlgo) String() string {
	switch a {
	case AlgoChaCha20Poly1305:
		return "chacha20poly1305"
	case AlgoXtea:
		return "xtea"
	}
	return "none"
}
