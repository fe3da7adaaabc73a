// Copyright 2026 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/beevik/gdbstub/asm"
	"github.com/beevik/gdbstub/config"
	"github.com/beevik/gdbstub/host"
	"github.com/beevik/gdbstub/riscv"
	"github.com/beevik/gdbstub/stub"
	"github.com/beevik/gdbstub/term"
	"golang.org/x/sync/errgroup"
)

var (
	configPath string
	assemble   string
	image      string
	loadAddr   uint
	port       int
	noServer   bool
)

func init() {
	flag.StringVar(&configPath, "config", "", "config file (.toml or .yaml)")
	flag.StringVar(&assemble, "a", "", "assemble file and exit")
	flag.StringVar(&image, "image", "", "binary image to load at startup")
	flag.UintVar(&loadAddr, "load", 0, "load address (overrides config)")
	flag.IntVar(&port, "port", -1, "gdb server port (overrides config)")
	flag.BoolVar(&noServer, "no-server", false, "do not listen for debuggers")
	flag.CommandLine.Usage = func() {
		fmt.Println("Usage: gdbstub [script] ..\nOptions:")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		exitOnError(err)
	}
	if err := applyFlags(cfg); err != nil {
		exitOnError(err)
	}

	// Do command-line assemble if requested.
	if assemble != "" {
		if err := asm.AssembleFile(assemble, cfg.Machine.LoadAddress, os.Stdout); err != nil {
			fmt.Printf("Failed to assemble file '%s'.\n", assemble)
			os.Exit(1)
		}
		os.Exit(0)
	}

	var level slog.LevelVar
	l, _ := cfg.LogLevel()
	level.Set(l)
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &level}))

	cpu := riscv.NewCPU(riscv.NewFlatMemory(0, cfg.Machine.MemorySize))
	cpu.Reset(cfg.Machine.LoadAddress)

	s := stub.New(cpu.Target(), &stub.Options{
		Logger:           log,
		MaxPacketSize:    cfg.Server.MaxPacketSize,
		HaltOnDisconnect: cfg.Server.HaltOnDisconnect,
	})
	cpu.AttachDebugger(s)
	s.Break()

	srv := stub.NewServer(s, cfg.Server.Port)
	srv.Toggle(cfg.Server.Enabled)

	h := host.New(cpu, s, srv)
	h.SetLoadAddress(cfg.Machine.LoadAddress)
	s.SetMonitor(h.MonitorCommand)
	cpu.AttachConsole(h.WriteConsole)

	if cfg.Machine.Image != "" {
		n, err := h.Load(cfg.Machine.Image, cfg.Machine.LoadAddress)
		if err != nil {
			exitOnError(err)
		}
		log.Info("image loaded", "file", cfg.Machine.Image, "bytes", n,
			"addr", fmt.Sprintf("%08x", cfg.Machine.LoadAddress))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return cpu.Run(ctx) })
	g.Go(func() error { return srv.Serve(ctx) })

	if configPath != "" {
		w, err := config.NewWatcher(configPath, log, func(c *config.Config) {
			if err := applyFlags(c); err != nil {
				log.Warn("config reload rejected", "err", err)
				return
			}
			if l, err := c.LogLevel(); err == nil {
				level.Set(l)
			}
			srv.SetPort(c.Server.Port)
			srv.Toggle(c.Server.Enabled)
			log.Info("config reloaded", "port", c.Server.Port, "enabled", c.Server.Enabled)
		})
		if err != nil {
			exitOnError(err)
		}
		g.Go(func() error { return w.Run(ctx) })
	}

	// Break on Ctrl-C.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go handleInterrupt(h, c)

	// The console is not part of the group since reading stdin cannot be
	// interrupted.
	done := make(chan struct{})
	go func() {
		defer close(done)

		// Run commands contained in command-line files.
		for _, filename := range flag.Args() {
			file, err := os.Open(filename)
			if err != nil {
				exitOnError(err)
			}
			h.RunCommands(file, os.Stdout, false)
			file.Close()
		}

		// Run commands interactively.
		h.RunCommands(os.Stdin, os.Stdout, term.IsTerminal(int(os.Stdin.Fd())))
	}()

	select {
	case <-done:
		cancel()
	case <-ctx.Done():
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		exitOnError(err)
	}
}

// applyFlags overrides config settings with command-line flags.
func applyFlags(cfg *config.Config) error {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "image":
			cfg.Machine.Image = image
		case "load":
			cfg.Machine.LoadAddress = uint32(loadAddr)
		case "port":
			cfg.Server.Port = port
		}
	})
	if noServer {
		cfg.Server.Enabled = false
	}
	return cfg.Validate()
}

func handleInterrupt(h *host.Host, c chan os.Signal) {
	for {
		<-c
		h.Break()
	}
}

func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	os.Exit(1)
}
