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

package confengine

import (
	"github.com/elastic/go-ucfg"
	"github.com/elastic/go-ucfg/yaml"
	"github.com/pkg/errors"
)

// ucfgOpts 统一的解析选项
//
// 支持在配置文件中引用环境变量 如 address: ${NALIX_ADDR}
// 方便容器化部署时按环境注入
var ucfgOpts = []ucfg.Option{
	ucfg.PathSep("."),
	ucfg.ResolveEnv,
	ucfg.VarExp,
}

// Config 是对 ucfg.Config 的封装 并提供一些简便的操作函数
type Config struct {
	conf *ucfg.Config
}

func New(conf *ucfg.Config) *Config {
	return &Config{conf: conf}
}

func (c *Config) Has(s string) bool {
	ok, err := c.conf.Has(s, -1)
	if err != nil {
		return false
	}
	return ok
}

func (c *Config) Child(s string) (*Config, error) {
	content, err := c.conf.Child(s, -1, ucfgOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "confengine: child (%s)", s)
	}
	return &Config{conf: content}, nil
}

func (c *Config) Unpack(to any) error {
	if err := c.conf.Unpack(to, ucfgOpts...); err != nil {
		return errors.Wrap(err, "confengine: unpack")
	}
	return nil
}

func (c *Config) UnpackChild(s string, to any) error {
	child, err := c.Child(s)
	if err != nil {
		return err
	}
	if err := child.conf.Unpack(to, ucfgOpts...); err != nil {
		return errors.Wrapf(err, "confengine: unpack child (%s)", s)
	}
	return nil
}

func LoadConfigPath(path string) (*Config, error) {
	config, err := yaml.NewConfigWithFile(path, ucfgOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "confengine: load (%s)", path)
	}
	return New(config), nil
}

func LoadContent(b []byte) (*Config, error) {
	config, err := yaml.NewConfig(b, ucfgOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "confengine: load content")
	}
	return New(config), nil
}
