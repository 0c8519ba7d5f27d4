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

package pipeline

import (
	"github.com/ppn-systems/nalix/common/frame"
	"github.com/ppn-systems/nalix/packet"
)

// Pipeline 按 Flags 组合家族 transformer 的执行器
//
// 出站按 压缩 -> 加密 顺序执行 入站按 解密 -> 解压 逆序还原
// transformer 本身只翻转标记位 接收端仅凭 Flags 即可决定还原路径
// 未声明 transformer 的家族原样通过
type Pipeline struct {
	key  []byte
	algo packet.SymmetricAlgo
}

// New 创建并返回 Pipeline 实例
//
// key/algo 为链接协商结果 algo 为 AlgoNone 时出站跳过加密阶段
// 入站仍按 Flags 执行解密 带 Encrypted 标记的报文在 AlgoNone 下解密报错
func New(key []byte, algo packet.SymmetricAlgo) *Pipeline {
	return &Pipeline{
		key:  key,
		algo: algo,
	}
}

// Outbound 出站变换 compress 控制是否压缩 加密取决于 algo
func (pl *Pipeline) Outbound(p packet.Packet, compress bool) (packet.Packet, error) {
	ts, ok := packet.ResolveTransformer(p.Magic())
	if !ok {
		return p, nil
	}

	var err error
	if compress {
		if p, err = ts.Compress(p); err != nil {
			return nil, err
		}
	}
	if pl.algo != packet.AlgoNone {
		if p, err = ts.Encrypt(p, pl.key, pl.algo); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Inbound 入站还原 依据 Flags 逆向执行
func (pl *Pipeline) Inbound(p packet.Packet) (packet.Packet, error) {
	ts, ok := packet.ResolveTransformer(p.Magic())
	if !ok {
		return p, nil
	}

	var err error
	if p.Header().Flags.Has(frame.FlagEncrypted) {
		if p, err = ts.Decrypt(p, pl.key, pl.algo); err != nil {
			return nil, err
		}
	}
	if p.Header().Flags.Has(frame.FlagCompressed) {
		if p, err = ts.Decompress(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}
