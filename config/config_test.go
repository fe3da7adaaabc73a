// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if *c != *Default() {
		t.Errorf("config incorrect. exp: %+v, got: %+v", *Default(), *c)
	}
	if l, _ := c.LogLevel(); l != slog.LevelInfo {
		t.Errorf("level incorrect. exp: %v, got: %v", slog.LevelInfo, l)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "gdbstub.toml", `
[server]
port = 3333
halt_on_disconnect = true

[machine]
load_address = 0x2000
image = "prog.bin"

[log]
level = "debug"
`)

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Server.Port != 3333 || !c.Server.HaltOnDisconnect || !c.Server.Enabled {
		t.Errorf("server incorrect. got: %+v", c.Server)
	}
	if c.Machine.LoadAddress != 0x2000 || c.Machine.Image != "prog.bin" {
		t.Errorf("machine incorrect. got: %+v", c.Machine)
	}
	if l, _ := c.LogLevel(); l != slog.LevelDebug {
		t.Errorf("level incorrect. exp: %v, got: %v", slog.LevelDebug, l)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "gdbstub.yaml", `
server:
  port: 4444
  enabled: false
machine:
  memory_size: 0x20000
`)

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Server.Port != 4444 || c.Server.Enabled {
		t.Errorf("server incorrect. got: %+v", c.Server)
	}
	if c.Machine.MemorySize != 0x20000 {
		t.Errorf("memory size incorrect. exp: %x, got: %x", 0x20000, c.Machine.MemorySize)
	}
}

func TestLoadEmptyYAML(t *testing.T) {
	c, err := Load(writeFile(t, "empty.yml", ""))
	if err != nil {
		t.Fatal(err)
	}
	if *c != *Default() {
		t.Errorf("config incorrect. exp: %+v, got: %+v", *Default(), *c)
	}
}

func TestUnknownKey(t *testing.T) {
	_, err := Load(writeFile(t, "bad.toml", "[server]\nprot = 1\n"))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Errorf("expected a ParseError, got: %v", err)
	}

	_, err = Load(writeFile(t, "bad.yaml", "server:\n  prot: 1\n"))
	if !errors.As(err, &perr) {
		t.Errorf("expected a ParseError, got: %v", err)
	}
}

func TestUnknownFormat(t *testing.T) {
	_, err := Load(writeFile(t, "gdbstub.ini", "port=1"))
	if !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeFile(t, "gdbstub.toml", "[server]\nport = 3333\n")
	t.Setenv("GDBSTUB_PORT", "5555")
	t.Setenv("GDBSTUB_ENABLED", "false")
	t.Setenv("GDBSTUB_LOAD_ADDRESS", "0x4000")
	t.Setenv("GDBSTUB_LOG_LEVEL", "warn")

	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Server.Port != 5555 || c.Server.Enabled {
		t.Errorf("server incorrect. got: %+v", c.Server)
	}
	if c.Machine.LoadAddress != 0x4000 {
		t.Errorf("load address incorrect. exp: %x, got: %x", 0x4000, c.Machine.LoadAddress)
	}
	if c.Log.Level != "warn" {
		t.Errorf("level incorrect. exp: %s, got: %s", "warn", c.Log.Level)
	}
}

func TestEnvInvalid(t *testing.T) {
	t.Setenv("GDBSTUB_PORT", "many")
	if _, err := Load(""); err == nil {
		t.Error("expected an error")
	}
}

func TestValidate(t *testing.T) {
	tests := []func(c *Config){
		func(c *Config) { c.Server.Port = 70000 },
		func(c *Config) { c.Server.MaxPacketSize = 10 },
		func(c *Config) { c.Machine.MemorySize = 0 },
		func(c *Config) { c.Machine.LoadAddress = 0x1002 },
		func(c *Config) { c.Machine.LoadAddress = c.Machine.MemorySize },
		func(c *Config) { c.Log.Level = "loud" },
	}
	for i, modify := range tests {
		c := Default()
		modify(c)
		if err := c.Validate(); !errors.Is(err, ErrInvalid) {
			t.Errorf("case %d: expected ErrInvalid, got: %v", i, err)
		}
	}
}

func TestWatcherReloads(t *testing.T) {
	path := writeFile(t, "gdbstub.toml", "[server]\nport = 3333\n")

	applied := make(chan *Config, 4)
	w, err := NewWatcher(path, nil, func(c *Config) { applied <- c })
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	if err := os.WriteFile(path, []byte("[server]\nport = 4444\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-applied:
		if c.Server.Port != 4444 {
			t.Errorf("port incorrect. exp: %d, got: %d", 4444, c.Server.Port)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("config was not reloaded")
	}
}
