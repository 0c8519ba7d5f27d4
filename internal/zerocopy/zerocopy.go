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
	"encoding/binary"
	"io"
)

// Reader ZeroCopy-API
//
// 以零拷贝方式顺序读取字节区段 所有返回的切片均为底层数据的视图
// 调用方 `不允许修改任何字节` 如有修改需求请先 copy 一份
type Reader struct {
	r int
	b []byte
}

// NewReader 创建并返回 *Reader 实例
//
// 各 Packet 家族的反序列化均基于此实现 避免在热路径上逐字段拷贝
func NewReader(b []byte) *Reader {
	return &Reader{b: b}
}

// Read 读取 n 字节 返回底层数据的切片视图
//
// 剩余字节不足 n 时返回 io.ErrUnexpectedEOF 已无数据时返回 io.EOF
func (r *Reader) Read(n int) ([]byte, error) {
	if r.r >= len(r.b) {
		return nil, io.EOF
	}
	if r.r+n > len(r.b) {
		return nil, io.ErrUnexpectedEOF
	}

	b := r.b[r.r : r.r+n]
	r.r += n
	return b, nil
}

// ReadAll 读取剩余的全部字节
func (r *Reader) ReadAll() []byte {
	b := r.b[r.r:]
	r.r = len(r.b)
	return b
}

// Remaining 返回尚未读取的字节数
func (r *Reader) Remaining() int {
	return len(r.b) - r.r
}

// ReadUint8 读取 1 字节无符号整型
func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.Read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint16 读取小端 2 字节无符号整型
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.Read(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadUint32 读取小端 4 字节无符号整型
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.Read(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadInt64 读取小端 8 字节有符号整型
func (r *Reader) ReadInt64() (int64, error) {
	b, err := r.Read(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}
