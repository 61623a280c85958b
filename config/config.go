// Package config is the key/value store the core components read their
// settings from.  Keys are dotted paths flattened from a YAML mapping, so
//
//	channel:
//	  aprsis:
//	    host: rotate.aprs2.net
//	    port: 14580
//
// is read as Str("channel.aprsis.host") and Int("channel.aprsis.port").
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

type Config struct {
	mu     sync.RWMutex
	path   string
	values map[string]string
}

// Load reads and flattens a YAML config file.
func Load(path string) (*Config, error) {
	c := &Config{path: path, values: map[string]string{}}
	if err := c.reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// New builds a store from already-flattened values, for tests and
// programmatic wiring.
func New(values map[string]string) *Config {
	if values == nil {
		values = map[string]string{}
	}
	return &Config{values: values}
}

func (c *Config) reload() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("parse config %s: %w", c.path, err)
	}
	values := map[string]string{}
	flatten("", root, values)

	c.mu.Lock()
	c.values = values
	c.mu.Unlock()
	return nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch child := v.(type) {
		case map[string]any:
			flatten(key, child, out)
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprint(child)
		}
	}
}

// Str returns the value for key, or def when absent or empty.
func (c *Config) Str(key, def string) string {
	c.mu.RLock()
	v, ok := c.values[key]
	c.mu.RUnlock()
	if !ok || v == "" {
		return def
	}
	return v
}

func (c *Config) Bool(key string, def bool) bool {
	v := c.Str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func (c *Config) Int(key string, def int) int {
	v := c.Str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Pos parses a "lat,lon" pair.
func (c *Config) Pos(key string) (lat, lon float64, ok bool) {
	v := c.Str(key, "")
	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

// Watch re-reads the config file whenever it changes on disk and then
// calls onChange.  It blocks until ctx is done.
func (c *Config) Watch(ctx context.Context, logger *log.Logger, onChange func()) error {
	if c.path == "" {
		return fmt.Errorf("config not file-backed")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(c.path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			if err := c.reload(); err != nil {
				logger.Error("config reload failed", "err", err)
				continue
			}
			logger.Info("config reloaded", "path", c.path)
			if onChange != nil {
				onChange()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watch error", "err", err)
		}
	}
}
