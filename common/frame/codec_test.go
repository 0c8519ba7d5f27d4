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
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeMarshaler struct {
	header Header
	body   []byte
}

func (m fakeMarshaler) WireLength() uint16 {
	return uint16(MinFrameSize + len(m.body))
}

func (m fakeMarshaler) MarshalTo(b []byte) (int, error) {
	n, err := MarshalHeaderTo(m.header, b)
	if err != nil {
		return 0, err
	}
	n += copy(b[n:], m.body)
	return n, nil
}

func TestReadLength(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  uint16
		err   error
	}{
		{
			name:  "Valid",
			input: []byte{0x0B, 0x00},
			want:  11,
		},
		{
			name:  "MaxUint16",
			input: []byte{0xFF, 0xFF},
			want:  65535,
		},
		{
			name:  "ZeroLength",
			input: []byte{0x00, 0x00},
			err:   ErrInvalidHeader,
		},
		{
			name:  "OneLength",
			input: []byte{0x01, 0x00},
			err:   ErrInvalidHeader,
		},
		{
			name:  "ShortSpan",
			input: []byte{0x0B},
			err:   ErrInvalidHeader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ReadLength(tt.input)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestWritePrefixed(t *testing.T) {
	m := fakeMarshaler{
		header: Header{
			Magic:     MagicBinary,
			OpCode:    7,
			Flags:     FlagCompressed,
			Priority:  PriorityHigh,
			Transport: TransportTCP,
		},
		body: []byte{0x41, 0x42, 0x43},
	}

	out := make([]byte, MaxFrameSize)
	n, err := WritePrefixed(m, out)
	assert.NoError(t, err)
	assert.Equal(t, MinFrameSize+3, n)

	length, err := ReadLength(out[:n])
	assert.NoError(t, err)
	assert.Equal(t, uint16(n), length)

	header, err := ParseHeader(out[LengthSize:n])
	assert.NoError(t, err)
	assert.Equal(t, m.header, header)
	assert.Equal(t, m.body, out[MinFrameSize:n])
}

func TestWritePrefixedShortBuffer(t *testing.T) {
	m := fakeMarshaler{header: Header{Magic: MagicControl}}
	_, err := WritePrefixed(m, make([]byte, MinFrameSize-1))
	assert.Error(t, err)
}

func TestParseHeader(t *testing.T) {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], uint32(MagicDirective))
	binary.LittleEndian.PutUint16(b[4:6], 513)
	b[6] = uint8(FlagEncrypted | FlagSigned)
	b[7] = uint8(PriorityUrgent)
	b[8] = uint8(TransportUDP)

	header, err := ParseHeader(b)
	assert.NoError(t, err)
	assert.Equal(t, MagicDirective, header.Magic)
	assert.Equal(t, uint16(513), header.OpCode)
	assert.True(t, header.Flags.Has(FlagEncrypted))
	assert.True(t, header.Flags.Has(FlagSigned))
	assert.False(t, header.Flags.Has(FlagCompressed))
	assert.Equal(t, PriorityUrgent, header.Priority)
	assert.Equal(t, TransportUDP, header.Transport)

	_, err = ParseHeader(b[:HeaderSize-1])
	assert.ErrorIs(t, err, ErrInvalidHeader)
}

func TestPeekMagic(t *testing.T) {
	m := fakeMarshaler{header: Header{Magic: MagicText256}}
	out := make([]byte, MinFrameSize)
	_, err := WritePrefixed(m, out)
	assert.NoError(t, err)

	magic, err := PeekMagic(out)
	assert.NoError(t, err)
	assert.Equal(t, MagicText256, magic)
}

func TestFlags(t *testing.T) {
	f := FlagNone.With(FlagCompressed).With(FlagEncrypted)
	assert.True(t, f.Has(FlagCompressed))
	f = f.Without(FlagCompressed)
	assert.False(t, f.Has(FlagCompressed))
	assert.True(t, f.Has(FlagEncrypted))
}
