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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRent(t *testing.T) {
	tests := []struct {
		name    string
		request int
		minCap  int
		err     error
	}{
		{
			name:    "Small",
			request: 1,
			minCap:  256,
		},
		{
			name:    "ExactClass",
			request: 1024,
			minCap:  1024,
		},
		{
			name:    "RoundUp",
			request: 1025,
			minCap:  2048,
		},
		{
			name:    "MaxSize",
			request: 65536,
			minCap:  65536,
		},
		{
			name:    "OutOfRange",
			request: 65537,
			err:     ErrSizeOutOfRange,
		},
	}

	pool := New(65535)
	assert.Equal(t, 65536, pool.MaxSize())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := pool.Rent(tt.request)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			assert.NoError(t, err)
			assert.GreaterOrEqual(t, cap(b), tt.minCap)
			pool.Return(b)
		})
	}
}

func TestReturnForeign(t *testing.T) {
	pool := New(4096)

	// 外来切片以及非 2 次幂容量的切片均不入池 不应 panic
	pool.Return(make([]byte, 100))
	pool.Return(make([]byte, 300))
	pool.Return(make([]byte, 1<<20))
	pool.Return(nil)
}

func TestRentConcurrent(t *testing.T) {
	pool := New(65535)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				b, err := pool.Rent(j % 8192)
				assert.NoError(t, err)

				// 写满整块缓冲 如有并发重叠租借 race detector 会报告
				for k := range b {
					b[k] = byte(j)
				}
				pool.Return(b)
			}
		}()
	}
	wg.Wait()
}

func BenchmarkRentReturn(b *testing.B) {
	pool := New(65535)
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf, _ := pool.Rent(4096)
			pool.Return(buf)
		}
	})
}
