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

package transport

import (
	"sync"

	"github.com/ppn-systems/nalix/internal/bufbytes"
)

const (
	// diagRingSize 保留最近发出的 Frame 条数
	diagRingSize = 8

	// diagPreviewSize 每条 Frame 保留的前缀字节数
	diagPreviewSize = 64
)

// diagRing 出站诊断环 保留最近发出 Frame 的前缀
//
// 只为排障服务 截断保留避免大包常驻内存
type diagRing struct {
	mut   sync.Mutex
	slots [diagRingSize]*bufbytes.Bytes
	next  int
	count int
}

func newDiagRing() *diagRing {
	r := &diagRing{}
	for i := range r.slots {
		r.slots[i] = bufbytes.New(diagPreviewSize)
	}
	return r
}

func (r *diagRing) record(b []byte) {
	r.mut.Lock()
	defer r.mut.Unlock()

	slot := r.slots[r.next]
	slot.Reset()
	slot.Write(b)

	r.next = (r.next + 1) % diagRingSize
	if r.count < diagRingSize {
		r.count++
	}
}

func (r *diagRing) snapshot() [][]byte {
	r.mut.Lock()
	defer r.mut.Unlock()

	out := make([][]byte, 0, r.count)
	idx := (r.next - r.count + diagRingSize) % diagRingSize
	for i := 0; i < r.count; i++ {
		out = append(out, r.slots[(idx+i)%diagRingSize].Clone())
	}
	return out
}
