// Package config loads the composer process configuration from YAML and
// watches the file for edits.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Modes.
const (
	ModeWS       = "ws"       // serve the editor page, wait for a webview
	ModeChrome   = "chrome"   // serve the page and drive it in Chrome
	ModeHeadless = "headless" // Go document over the websocket
)

// Config is the top-level composer configuration.
type Config struct {
	Listen   string         `yaml:"listen"`
	Assets   string         `yaml:"assets"`
	Mode     string         `yaml:"mode"`
	Chrome   ChromeConfig   `yaml:"chrome"`
	Editor   EditorConfig   `yaml:"editor"`
	Document DocumentConfig `yaml:"document"`
	Drafts   DraftsConfig   `yaml:"drafts"`
	MCP      MCPConfig      `yaml:"mcp"`
}

// ChromeConfig controls the browser in chrome mode.
type ChromeConfig struct {
	Remote      string        `yaml:"remote"`
	Headless    *bool         `yaml:"headless"`
	LoadTimeout time.Duration `yaml:"load_timeout"`
}

// EditorConfig holds the props given to the document.
type EditorConfig struct {
	DefaultValue string         `yaml:"default_value"`
	DefaultFile  string         `yaml:"default_file"` // read when default_value is empty
	Placeholder  string         `yaml:"placeholder"`
	Style        map[string]any `yaml:"style"`
	DarkMode     bool           `yaml:"dark_mode"`
}

// DocumentConfig tunes the Go document of headless mode.
type DocumentConfig struct {
	GeometryDelay time.Duration `yaml:"geometry_delay"`
	RefocusDelay  time.Duration `yaml:"refocus_delay"`
}

// DraftsConfig enables autosave.
type DraftsConfig struct {
	Path string `yaml:"path"` // empty disables drafts
	ID   string `yaml:"id"`   // empty: a new draft per run
}

// MCPConfig enables the MCP tool server on stdio.
type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, filepath.Dir(path))
}

// Parse decodes YAML. Relative paths are resolved against dir.
func Parse(data []byte, dir string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.applyDefaults()
	cfg.resolve(dir)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8095"
	}
	if c.Mode == "" {
		c.Mode = ModeWS
	}
	if c.Chrome.Headless == nil {
		on := true
		c.Chrome.Headless = &on
	}
	if c.Chrome.LoadTimeout <= 0 {
		c.Chrome.LoadTimeout = 30 * time.Second
	}
	if c.Document.GeometryDelay <= 0 {
		c.Document.GeometryDelay = 50 * time.Millisecond
	}
	if c.Document.RefocusDelay <= 0 {
		c.Document.RefocusDelay = 200 * time.Millisecond
	}
}

func (c *Config) resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) || dir == "" {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Assets = abs(c.Assets)
	c.Editor.DefaultFile = abs(c.Editor.DefaultFile)
	c.Drafts.Path = abs(c.Drafts.Path)
}

func (c *Config) validate() error {
	switch c.Mode {
	case ModeWS, ModeChrome, ModeHeadless:
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if c.Mode != ModeHeadless && c.Assets == "" {
		return fmt.Errorf("config: mode %s needs assets", c.Mode)
	}
	return nil
}

// DefaultHTML returns the default value, reading DefaultFile when the inline
// value is empty.
func (e EditorConfig) DefaultHTML() (string, error) {
	if e.DefaultValue != "" || e.DefaultFile == "" {
		return e.DefaultValue, nil
	}
	data, err := os.ReadFile(e.DefaultFile)
	if err != nil {
		return "", fmt.Errorf("config: default file: %w", err)
	}
	return string(data), nil
}
