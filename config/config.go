// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads gdbstub settings from a TOML or YAML file and from
// GDBSTUB_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable that overrides a
// setting.
const EnvPrefix = "GDBSTUB_"

var (
	ErrUnknownFormat = errors.New("unknown config file format")
	ErrInvalid       = errors.New("invalid config")
)

// Config holds every gdbstub setting.
type Config struct {
	Server  Server  `toml:"server" yaml:"server"`
	Machine Machine `toml:"machine" yaml:"machine"`
	Log     Log     `toml:"log" yaml:"log"`
}

// Server configures the debugger listener.
type Server struct {
	Port             int  `toml:"port" yaml:"port"`
	Enabled          bool `toml:"enabled" yaml:"enabled"`
	HaltOnDisconnect bool `toml:"halt_on_disconnect" yaml:"halt_on_disconnect"`
	MaxPacketSize    int  `toml:"max_packet_size" yaml:"max_packet_size"`
}

// Machine configures the emulated RV32I machine.
type Machine struct {
	MemorySize  uint32 `toml:"memory_size" yaml:"memory_size"`
	LoadAddress uint32 `toml:"load_address" yaml:"load_address"`
	Image       string `toml:"image" yaml:"image"`
}

// Log configures the logger.
type Log struct {
	Level string `toml:"level" yaml:"level"`
}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		Server: Server{
			Port:          24689,
			Enabled:       true,
			MaxPacketSize: 0x4000,
		},
		Machine: Machine{
			MemorySize:  0x100000,
			LoadAddress: 0x1000,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// A ParseError reports a malformed config file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing config file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load returns the default settings overridden by the file at path (if
// path is not empty) and then by environment variables.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := c.decode(path, data); err != nil {
			return nil, err
		}
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// decode overlays the file contents on c. The format is chosen by the
// file's extension; unknown keys are rejected.
func (c *Config) decode(path string, data []byte) error {
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(c)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(c)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	if err != nil {
		return &ParseError{Path: path, Err: err}
	}
	return nil
}

// applyEnv overrides settings with GDBSTUB_* environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	vars := []struct {
		name string
		set  func(string) error
	}{
		{"PORT", intSetter(&c.Server.Port)},
		{"ENABLED", boolSetter(&c.Server.Enabled)},
		{"HALT_ON_DISCONNECT", boolSetter(&c.Server.HaltOnDisconnect)},
		{"MAX_PACKET_SIZE", intSetter(&c.Server.MaxPacketSize)},
		{"MEMORY_SIZE", uint32Setter(&c.Machine.MemorySize)},
		{"LOAD_ADDRESS", uint32Setter(&c.Machine.LoadAddress)},
		{"IMAGE", stringSetter(&c.Machine.Image)},
		{"LOG_LEVEL", stringSetter(&c.Log.Level)},
	}
	for _, v := range vars {
		s, ok := lookup(EnvPrefix + v.name)
		if !ok {
			continue
		}
		if err := v.set(s); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, v.name, err)
		}
	}
	return nil
}

func intSetter(p *int) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseInt(s, 0, 0)
		*p = int(v)
		return err
	}
}

func uint32Setter(p *uint32) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseUint(s, 0, 32)
		*p = uint32(v)
		return err
	}
}

func boolSetter(p *bool) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseBool(s)
		*p = v
		return err
	}
}

func stringSetter(p *string) func(string) error {
	return func(s string) error {
		*p = s
		return nil
	}
}

// Validate checks that every setting is in range.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 0xffff:
		return fmt.Errorf("%w: port %d out of range", ErrInvalid, c.Server.Port)
	case c.Server.MaxPacketSize < 64:
		return fmt.Errorf("%w: max_packet_size %d too small", ErrInvalid, c.Server.MaxPacketSize)
	case c.Machine.MemorySize == 0:
		return fmt.Errorf("%w: memory_size must not be zero", ErrInvalid)
	case c.Machine.LoadAddress&3 != 0:
		return fmt.Errorf("%w: load_address %#x is not word aligned", ErrInvalid, c.Machine.LoadAddress)
	case c.Machine.LoadAddress >= c.Machine.MemorySize:
		return fmt.Errorf("%w: load_address %#x outside memory", ErrInvalid, c.Machine.LoadAddress)
	}
	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.Log.Level))
	return l, err
}
