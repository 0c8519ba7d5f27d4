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
	"io"
	"net"
	"os"
	"syscall"

	"github.com/pkg/errors"
)

func newError(format string, args ...any) error {
	format = "transport: " + format
	return errors.Errorf(format, args...)
}

var (
	// ErrIncompletePacket 对端在一个 Frame 读取到一半时关闭
	ErrIncompletePacket = newError("incomplete packet")

	// ErrSocketReset 链接被本端或对端强制中断
	ErrSocketReset = newError("socket reset")

	// ErrSocketAborted 阻塞中的读被取消唤醒
	ErrSocketAborted = newError("socket aborted")

	// ErrSocketDisposed socket 已经被释放
	ErrSocketDisposed = newError("socket disposed")

	// ErrPeerClosed 对端正常关闭
	ErrPeerClosed = newError("peer closed")
)

// classifyReadError 将底层读错误归类为传输层错误
//
// midFrame 标识错误是否发生在一个 Frame 的中间
func classifyReadError(err error, midFrame bool) error {
	switch {
	case err == nil:
		return nil

	case errors.Is(err, io.EOF):
		if midFrame {
			return ErrIncompletePacket
		}
		return ErrPeerClosed

	case errors.Is(err, io.ErrUnexpectedEOF):
		return ErrIncompletePacket

	case errors.Is(err, os.ErrDeadlineExceeded):
		return ErrSocketAborted

	case errors.Is(err, net.ErrClosed):
		return ErrSocketDisposed

	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		return ErrSocketReset
	}

	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return ErrSocketAborted
	}
	return err
}
