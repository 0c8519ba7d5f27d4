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

package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppn-systems/nalix/common"
	"github.com/ppn-systems/nalix/confengine"
	"github.com/ppn-systems/nalix/internal/bufpool"
	"github.com/ppn-systems/nalix/internal/json"
	"github.com/ppn-systems/nalix/internal/pubsub"
	"github.com/ppn-systems/nalix/internal/rescue"
	"github.com/ppn-systems/nalix/listener"
	"github.com/ppn-systems/nalix/logger"
	"github.com/ppn-systems/nalix/server"
	"github.com/ppn-systems/nalix/transport"
)

// InboundFrame 交付给 dispatch 中心的入站事件
type InboundFrame struct {
	ConnID string
	Remote string
	Data   []byte
}

// Controller 程序装配中枢 负责各组件的创建/启动/停止
type Controller struct {
	ctx       context.Context
	cancel    context.CancelFunc
	buildInfo common.BuildInfo

	pool *bufpool.Pool
	lis  *listener.Listener
	svr  *server.Server
	hub  *pubsub.PubSub
}

func setupLogger(conf *confengine.Config) error {
	var opts logger.Options
	if err := conf.UnpackChild("logger", &opts); err != nil {
		return err
	}

	// 缺省项由 logger 自行补齐
	logger.SetOptions(opts)
	return nil
}

// New 创建并返回 Controller 实例
func New(conf *confengine.Config, buildInfo common.BuildInfo) (*Controller, error) {
	if conf.Has("logger") {
		if err := setupLogger(conf); err != nil {
			return nil, err
		}
	}

	var lisConfig listener.Config
	if err := conf.UnpackChild("listener", &lisConfig); err != nil {
		return nil, err
	}

	pool := bufpool.New(common.MaxFrameSize)
	lis := listener.New(lisConfig, pool)

	svr, err := server.New(conf)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctr := &Controller{
		ctx:       ctx,
		cancel:    cancel,
		buildInfo: buildInfo,
		pool:      pool,
		lis:       lis,
		svr:       svr,
		hub:       pubsub.New(),
	}

	lis.OnAccept(ctr.onAccept)
	if svr != nil {
		ctr.registerRoutes()
	}
	return ctr, nil
}

// onAccept 为新链接接上 dispatch 管道
func (c *Controller) onAccept(conn *transport.Conn) {
	rescue.Go("dispatch", func() {
		for data := range conn.Incoming() {
			dispatchedFrames.Inc()
			c.hub.Publish(InboundFrame{
				ConnID: conn.ID(),
				Remote: conn.RemoteAddr().String(),
				Data:   data,
			})
		}
	})
}

// Subscribe dispatcher 从这里订阅入站 Frame 队列
func (c *Controller) Subscribe(size int) pubsub.Queue {
	return c.hub.Subscribe(size)
}

// Unsubscribe 注销订阅队列
func (c *Controller) Unsubscribe(q pubsub.Queue) {
	c.hub.Unsubscribe(q)
}

// Start 启动各组件 非阻塞
func (c *Controller) Start() error {
	rescue.Go("listener", func() {
		if err := c.lis.Serve(); err != nil {
			logger.Errorf("listener serve failed: %v", err)
		}
	})

	if c.svr != nil {
		rescue.Go("admin-server", func() {
			if err := c.svr.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("admin server failed: %v", err)
			}
		})
	}

	rescue.Go("metrics", c.metricsLoop)
	return nil
}

func (c *Controller) metricsLoop() {
	buildInfo.WithLabelValues(c.buildInfo.Version, c.buildInfo.GitHash, c.buildInfo.Time).Set(1)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			uptime.Add(1)
			activeConns.Set(float64(c.lis.ActiveConns()))

		case <-c.ctx.Done():
			return
		}
	}
}

// Reload 重新加载配置 目前仅支持调整日志级别
func (c *Controller) Reload(conf *confengine.Config) error {
	if !conf.Has("logger") {
		return nil
	}

	var opts logger.Options
	if err := conf.UnpackChild("logger", &opts); err != nil {
		return err
	}
	if opts.Level == "" {
		return nil
	}
	return logger.SetLoggerLevel(opts.Level)
}

// Stop 停止各组件并释放资源
func (c *Controller) Stop() error {
	c.cancel()

	var errs *multierror.Error
	if err := c.lis.Close(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if c.svr != nil {
		if err := c.svr.Close(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	c.hub.Close()
	_ = logger.Sync()
	return errs.ErrorOrNil()
}

// connView 链接状态的对外视图
type connView struct {
	ID         string `json:"id"`
	Remote     string `json:"remote"`
	UptimeMs   int64  `json:"uptimeMs"`
	LastPingAt int64  `json:"lastPingAt"`
	Closed     bool   `json:"closed"`
}

func (c *Controller) registerRoutes() {
	c.svr.RegisterGetRoute("/metrics", promhttp.Handler().ServeHTTP)

	c.svr.RegisterGetRoute("/-/conns", func(w http.ResponseWriter, r *http.Request) {
		conns := c.lis.Conns()
		views := make([]connView, 0, len(conns))
		for _, conn := range conns {
			views = append(views, connView{
				ID:         conn.ID(),
				Remote:     conn.RemoteAddr().String(),
				UptimeMs:   conn.UptimeMillis(),
				LastPingAt: conn.LastPingAt(),
				Closed:     conn.IsClosed(),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(views)
	})

	c.svr.RegisterPostRoute("/-/logger", func(w http.ResponseWriter, r *http.Request) {
		level := r.URL.Query().Get("level")
		if level == "" {
			http.Error(w, "missing level", http.StatusBadRequest)
			return
		}
		if err := logger.SetLoggerLevel(level); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}
