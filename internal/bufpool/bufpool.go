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

package bufpool

import (
	"math/bits"
	"sync"

	"github.com/pkg/errors"
)

func newError(format string, args ...any) error {
	format = "bufpool: " + format
	return errors.Errorf(format, args...)
}

var (
	// ErrSizeOutOfRange 请求长度超过了最大 SizeClass
	ErrSizeOutOfRange = newError("size out of range")
)

const (
	// minClassSize 最小 SizeClass 再小的租借也按此分配
	minClassSize = 256
)

// Pool 按 SizeClass 管理的字节缓冲池
//
// SizeClass 以 2 的幂次增长直到 maxSize 租借返回的缓冲可能大于请求长度
// 调用方需要自行记录实际使用长度 归还容量不属于任何 SizeClass 的切片会被直接丢弃
type Pool struct {
	maxSize int
	classes []*sync.Pool
}

// New 创建并返回 Pool 实例
//
// maxSize 会向上对齐至 2 的幂次 作为最大的 SizeClass
func New(maxSize int) *Pool {
	if maxSize < minClassSize {
		maxSize = minClassSize
	}

	shift := bits.Len(uint(maxSize - 1))
	aligned := 1 << shift

	n := shift - bits.Len(uint(minClassSize-1)) + 1
	classes := make([]*sync.Pool, n)
	for i := 0; i < n; i++ {
		size := minClassSize << i
		classes[i] = &sync.Pool{
			New: func() any {
				b := make([]byte, size)
				return &b
			},
		}
	}

	return &Pool{
		maxSize: aligned,
		classes: classes,
	}
}

// MaxSize 返回最大的 SizeClass
func (p *Pool) MaxSize() int {
	return p.maxSize
}

// Rent 租借一块容量不小于 n 的缓冲
//
// n 超过 MaxSize 时返回 ErrSizeOutOfRange
func (p *Pool) Rent(n int) ([]byte, error) {
	if n > p.maxSize {
		return nil, ErrSizeOutOfRange
	}

	idx := p.classIndex(n)
	b := p.classes[idx].Get().(*[]byte)
	return *b, nil
}

// Return 归还缓冲
//
// 容量不属于任何 SizeClass 的切片视为外来数据 不入池
func (p *Pool) Return(b []byte) {
	c := cap(b)
	if c < minClassSize || c > p.maxSize {
		return
	}
	if c&(c-1) != 0 {
		return
	}

	b = b[:c]
	p.classes[p.classIndex(c)].Put(&b)
}

// classIndex 计算容纳 n 字节的最小 SizeClass 下标
func (p *Pool) classIndex(n int) int {
	if n <= minClassSize {
		return 0
	}
	return bits.Len(uint(n-1)) - bits.Len(uint(minClassSize-1))
}
