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

package common

import "runtime"

var coreNums = runtime.NumCPU()

// Concurrency 返回与核数挂钩的并发基数
//
// 每条链接一条接收任务 任务大部分时间阻塞在 socket 读上
// 因此基数取 2 倍核数 供各组件推导默认并发上限
func Concurrency() int {
	return coreNums * 2
}

// DefaultMaxConns 接入层默认的链接上限
//
// 未显式配置 maxConns 时使用 按并发基数放大 避免单机无上限接入
func DefaultMaxConns() int {
	return Concurrency() * 512
}
