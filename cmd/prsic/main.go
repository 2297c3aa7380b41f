// Console Client
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

// prsic is a line client for the go-prsi server: it relays standard
// input to the server (bare commands get the REQ prefix), prints
// whatever the server says, and pings often enough to stay ahead of
// the idle eviction.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

const pingInterval = 5 * time.Second

func main() {
	nick := flag.String("nick", "", "log in with this nickname on connect")
	flag.Parse()

	addr := "localhost:7777"
	if flag.NArg() > 0 {
		addr = flag.Arg(0)
	}
	if !strings.Contains(addr, ":") {
		addr += ":7777"
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			fmt.Println(sc.Text())
		}
	}()

	if *nick != "" {
		fmt.Fprintf(conn, "REQ LOGIN nick=%s\n", *nick)
	}

	go func() {
		t := time.NewTicker(pingInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				if _, err := io.WriteString(conn, "REQ PING\n"); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" || line == "q" {
			break
		}
		switch strings.SplitN(line, " ", 2)[0] {
		case "REQ", "RESP", "EVT", "ERR":
		default:
			line = "REQ " + line
		}
		if _, err := io.WriteString(conn, line+"\n"); err != nil {
			break
		}
		select {
		case <-done:
			return
		default:
		}
	}
}
