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

package zerocopy

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReader(t *testing.T) {
	t.Run("Read", func(t *testing.T) {
		r := NewReader(bytes.Repeat([]byte("a"), 64))
		for i := 0; i < 8; i++ {
			b, err := r.Read(8)
			assert.NoError(t, err)
			assert.Len(t, b, 8)
		}
		_, err := r.Read(1)
		assert.Equal(t, io.EOF, err)
	})

	t.Run("ShortRead", func(t *testing.T) {
		r := NewReader([]byte{0x01, 0x02})
		_, err := r.Read(3)
		assert.Equal(t, io.ErrUnexpectedEOF, err)
	})

	t.Run("Integers", func(t *testing.T) {
		r := NewReader([]byte{
			0x07,
			0x01, 0x02,
			0x01, 0x02, 0x03, 0x04,
			0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF,
		})

		u8, err := r.ReadUint8()
		assert.NoError(t, err)
		assert.Equal(t, uint8(7), u8)

		u16, err := r.ReadUint16()
		assert.NoError(t, err)
		assert.Equal(t, uint16(0x0201), u16)

		u32, err := r.ReadUint32()
		assert.NoError(t, err)
		assert.Equal(t, uint32(0x04030201), u32)

		i64, err := r.ReadInt64()
		assert.NoError(t, err)
		assert.Equal(t, int64(-1), i64)

		assert.Equal(t, 0, r.Remaining())
	})

	t.Run("ReadAll", func(t *testing.T) {
		r := NewReader([]byte("payload"))
		_, err := r.Read(3)
		assert.NoError(t, err)
		assert.Equal(t, []byte("load"), r.ReadAll())
		assert.Equal(t, 0, r.Remaining())
	})
}
