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

package pdirective

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ppn-systems/nalix/common/frame"
)

func TestRoundTrip(t *testing.T) {
	d := New(1001, TypeCommand, ReasonRateLimited, ActionBackoff)
	defer Release(d)

	d.Flags = 0x04
	d.Arg0 = 3000
	d.Arg1 = 60000
	d.Arg2 = 7

	raw, err := d.Marshal()
	assert.NoError(t, err)
	assert.Len(t, raw, frame.HeaderSize+bodySize)

	got, err := Deserialize(raw)
	assert.NoError(t, err)

	parsed := got.(*Directive)
	assert.Equal(t, uint32(1001), parsed.SequenceID)
	assert.Equal(t, TypeCommand, parsed.Type)
	assert.Equal(t, ReasonRateLimited, parsed.Reason)
	assert.Equal(t, ActionBackoff, parsed.Action)
	assert.Equal(t, uint8(0x04), parsed.Flags)
	assert.Equal(t, uint32(3000), parsed.Arg0)
	assert.Equal(t, uint32(60000), parsed.Arg1)
	assert.Equal(t, uint16(7), parsed.Arg2)
	Release(parsed)
}

func TestDeserializeShortBody(t *testing.T) {
	d := New(1, TypeNotice, ReasonNone, ActionNone)
	defer Release(d)

	raw, err := d.Marshal()
	assert.NoError(t, err)

	_, err = Deserialize(raw[:frame.HeaderSize+bodySize-2])
	assert.Error(t, err)
}
