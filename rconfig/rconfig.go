/*
 * MIT License
 *
 * Copyright (c) 2026 netreactor contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package rconfig holds the environment-driven tunables for the
// reactor framework: poller backend selection, default high-water
// mark, accept backlog, and the keepalive/no-delay defaults. Backed
// by viper so a config file can override the same keys, with
// fsnotify-driven hot reload for values that are safe to change
// while the framework is running.
package rconfig

import (
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Keys, matching the RNETREACTOR_* environment variables from the
// external interfaces contract.
const (
	KeyPoller        = "poller"
	KeyHWMBytes      = "hwm_bytes"
	KeyAcceptBacklog = "accept_backlog"
	KeyKeepAlive     = "keepalive"
	KeyNoDelay       = "nodelay"
)

const envPrefix = "RNETREACTOR"

const (
	defaultPoller        = "epoll"
	defaultHWMBytes      = 64 * 1024 * 1024
	defaultAcceptBacklog = 4096
	defaultKeepAlive     = true
	defaultNoDelay       = true
)

// Config wraps a viper instance pre-bound to the RNETREACTOR_*
// environment variables and their defaults.
type Config struct {
	v *viper.Viper
}

// New constructs a Config with every tunable defaulted, environment
// variables bound, and (if configPath is non-empty) a config file
// loaded. Watching the file for changes starts only once OnChange is
// called.
func New(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyPoller, defaultPoller)
	v.SetDefault(KeyHWMBytes, defaultHWMBytes)
	v.SetDefault(KeyAcceptBacklog, defaultAcceptBacklog)
	v.SetDefault(KeyKeepAlive, defaultKeepAlive)
	v.SetDefault(KeyNoDelay, defaultNoDelay)

	c := &Config{v: v}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Poller returns the configured poller backend name ("poll" or
// "epoll").
func (c *Config) Poller() string { return c.v.GetString(KeyPoller) }

// HighWaterMarkBytes returns the configured output-buffer backlog
// threshold.
func (c *Config) HighWaterMarkBytes() int { return c.v.GetInt(KeyHWMBytes) }

// AcceptBacklog returns the configured listen(2) backlog.
func (c *Config) AcceptBacklog() int { return c.v.GetInt(KeyAcceptBacklog) }

// KeepAlive returns whether new connections default to SO_KEEPALIVE.
func (c *Config) KeepAlive() bool { return c.v.GetBool(KeyKeepAlive) }

// NoDelay returns whether new connections default to TCP_NODELAY.
func (c *Config) NoDelay() bool { return c.v.GetBool(KeyNoDelay) }

// OnChange registers a hook invoked whenever the backing config file
// changes on disk, and starts watching it. No-op if no config file
// was loaded. The fsnotify.Event is passed through unmodified so
// callers can distinguish write/rename/remove if they need to.
func (c *Config) OnChange(fn func(fsnotify.Event)) {
	c.v.OnConfigChange(fn)
	c.v.WatchConfig()
}
