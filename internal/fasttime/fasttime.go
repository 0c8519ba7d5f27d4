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

package fasttime

import (
	"time"
)

var started = time.Now()

// UnixMilli 获取当前 unix 毫秒时间戳
func UnixMilli() int64 {
	return time.Now().UnixMilli()
}

// Ticks 返回进程启动以来的单调纳秒数
//
// time.Since 基于单调时钟 不受系统时间回拨影响
// Control 报文的 MonotonicTicks 字段以此为准 链接的 Uptime 由 UnixMilli 推算
func Ticks() int64 {
	return int64(time.Since(started))
}

// SinceMilli 返回自 unix 毫秒时间戳 t 以来经过的毫秒数
func SinceMilli(t int64) int64 {
	return UnixMilli() - t
}
