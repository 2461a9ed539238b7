// Package config loads the settings of the xframe tools from YAML files.
package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/syssam/xframe/dialect"
)

// Defaults applied to zero values.
const (
	DefaultBatchSize     = 200
	DefaultSlowThreshold = 100 * time.Millisecond
	DefaultLogLevel      = "info"
)

// Config holds the connection and tuning settings of a database.
type Config struct {
	// Dialect is one of the dialect names or one of their aliases.
	Dialect string `yaml:"dialect"`
	// DSN is the data source name passed to the database/sql driver.
	DSN string `yaml:"dsn"`
	// BatchSize caps the statements per round-trip and the rows per
	// INSERT.
	BatchSize int `yaml:"batch_size,omitempty"`
	// SlowThreshold is the duration above which a statement is logged as
	// slow.
	SlowThreshold time.Duration `yaml:"slow_threshold,omitempty"`
	LogLevel      string        `yaml:"log_level,omitempty"`
	// Pluralize derives default table names in plural form.
	Pluralize bool `yaml:"pluralize,omitempty"`
	// Debug logs every statement.
	Debug bool `yaml:"debug,omitempty"`
}

// Default returns a Config with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes YAML data, rejecting unknown fields, applies defaults and
// validates the result.
func Parse(data []byte) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.SlowThreshold == 0 {
		c.SlowThreshold = DefaultSlowThreshold
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Dialect != "" {
		c.Dialect = dialect.Normalize(c.Dialect)
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Dialect == "" {
		return errors.New("dialect is required")
	}
	if !slices.Contains(dialect.Names, c.Dialect) {
		return fmt.Errorf("unknown dialect %q: must be one of %v", c.Dialect, dialect.Names)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.SlowThreshold < 0 {
		return fmt.Errorf("slow_threshold must not be negative, got %s", c.SlowThreshold)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return l, nil
}

// Marshal encodes c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Watch reloads the file at path whenever it changes and passes every
// valid result to onChange. Invalid files are reported to onError, if not
// nil, and the previous settings stay in effect. Watch blocks until ctx is
// done.
func Watch(ctx context.Context, path string, onChange func(*Config), onError func(error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	defer w.Close()
	// Editors replace files on save, so the directory is watched.
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("config: watch %s: %w", filepath.Dir(abs), err)
	}
	report := func(err error) {
		if onError != nil {
			onError(err)
		}
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			c, err := Load(abs)
			if err != nil {
				report(err)
				continue
			}
			onChange(c)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			report(fmt.Errorf("config: watch: %w", err))
		}
	}
}
