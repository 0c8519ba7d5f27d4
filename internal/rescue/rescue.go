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

package rescue

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ppn-systems/nalix/common"
	"github.com/ppn-systems/nalix/logger"
)

var panicTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: common.App,
		Name:      "goroutine_panic_total",
		Help:      "Recovered goroutine panics total",
	},
	[]string{"task"},
)

// Go 以崩溃防护的方式启动 goroutine
//
// 接收/分发/巡检等常驻任务一律经由此启动 task 会体现在
// panic 指标与日志中 便于定位是哪类任务在崩溃
func Go(task string, fn func()) {
	go func() {
		defer HandleCrash(task)
		fn()
	}()
}

// HandleCrash 捕获并记录 panic 供 defer 使用
func HandleCrash(task string) {
	r := recover()
	if r == nil {
		return
	}

	panicTotal.WithLabelValues(task).Inc()

	const size = 64 << 10
	stacktrace := make([]byte, size)
	stacktrace = stacktrace[:runtime.Stack(stacktrace, false)]
	if _, ok := r.(string); ok {
		logger.Errorf("Observed a panic in task (%s): %s\n%s", task, r, stacktrace)
	} else {
		logger.Errorf("Observed a panic in task (%s): %#v (%v)\n%s", task, r, r, stacktrace)
	}
}
