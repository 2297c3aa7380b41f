// Entry Point
//
// Copyright (c) 2024, 2025  the go-prsi authors
//
// This file is part of go-prsi.
//
// go-prsi is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License,
// version 3, as published by the Free Software Foundation.
//
// go-prsi is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public
// License, version 3, along with go-prsi. If not, see
// <http://www.gnu.org/licenses/>

package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"

	"go-prsi/conf"
	"go-prsi/lobby"
	"go-prsi/proto"
	"go-prsi/web"
)

// Default name of the configuration file.
const defconf = "prsi.conf"

type manager interface {
	fmt.Stringer
	Start()
	Shutdown()
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		confFile   string
		ip         = flag.String("ip", "", "address to bind to")
		port       = flag.Int("port", 0, "TCP port of the line protocol")
		maxClients = flag.Int("max-clients", 0, "client slot table size")
		maxRooms   = flag.Int("max-rooms", 0, "room table size")
		wsPort     = flag.Int("ws-port", 0, "websocket port (0 disables)")
		dumpConf   = flag.Bool("dump-config", false, "print the effective configuration and exit")
	)
	flag.StringVar(&confFile, "c", defconf, "path to the configuration file")
	flag.StringVar(&confFile, "config", defconf, "path to the configuration file")
	flag.Parse()
	if flag.NArg() != 0 {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Too many arguments passed to %s.\nUsage:\n", os.Args[0])
		flag.PrintDefaults()
		return 2
	}

	// Config file first, then flag overrides on top.
	cfg, err := conf.Open(confFile)
	if err != nil {
		if confFile != defconf || !os.IsNotExist(errors.Cause(err)) {
			fmt.Fprintf(os.Stderr, "Warning: cannot load config file %q, using defaults\n", confFile)
		}
		cfg = conf.Default()
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ip":
			cfg.IP = *ip
		case "port":
			cfg.Port = *port
		case "max-clients":
			cfg.MaxClients = *maxClients
		case "max-rooms":
			cfg.MaxRooms = *maxRooms
		case "ws-port":
			cfg.WSPort = *wsPort
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 2
	}

	if *dumpConf {
		if err := cfg.Dump(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return 2
		}
		return 0
	}

	cfg.Log.WithFields(cfg.Fields()).Info("effective configuration")

	hub := lobby.New(cfg)
	managers := []manager{hub}

	tcp := proto.NewListener(cfg, hub)
	if err := tcp.Init(); err != nil {
		cfg.Log.WithError(err).Error("listen failed")
		return 1
	}
	managers = append(managers, tcp)

	if cfg.WSPort > 0 {
		ws := web.New(cfg, hub)
		if err := ws.Init(); err != nil {
			cfg.Log.WithError(err).Error("listen failed")
			return 1
		}
		managers = append(managers, ws)
	}

	for _, m := range managers {
		cfg.Log.WithField("component", m.String()).Debug("starting")
		go m.Start()
	}

	intr := make(chan os.Signal, 1)
	signal.Notify(intr, os.Interrupt, syscall.SIGTERM)

	// Typing quit, exit or q on standard input (or closing it) stops
	// the server as well.
	stdin := make(chan struct{})
	go func() {
		defer close(stdin)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			switch strings.TrimSpace(sc.Text()) {
			case "quit", "exit", "q":
				return
			}
		}
	}()

	select {
	case <-intr:
		cfg.Log.Info("caught interrupt")
	case <-stdin:
		cfg.Log.Info("requested shutdown")
	}

	for i := len(managers) - 1; i >= 0; i-- {
		cfg.Log.WithField("component", managers[i].String()).Debug("shutting down")
		managers[i].Shutdown()
	}
	return 0
}
