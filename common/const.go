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

const (
	// App 应用程序名称
	App = "nalix"

	// Version 应用程序版本
	Version = "v0.0.1"

	// MaxFrameSize 单个 Frame 在线路上的最大长度
	//
	// Frame 以 2 字节小端长度前缀开头 长度字段本身也计算在内
	// uint16 的上限即 65535 bufpool 以此创建时最大 SizeClass 向上对齐为 65536
	// 超过此长度的 Frame 一定是非法的 接收端应该直接断开链接
	MaxFrameSize = 65535

	// SmallSendSize 小包发送的栈上组包阈值
	//
	// 低于此长度的发送无需向 bufpool 租借 直接在栈上组包即可
	// 大多数 Control/Directive 类报文都能命中这条路径
	SmallSendSize = 512
)
