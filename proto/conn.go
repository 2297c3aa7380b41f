// Connection Framing and Delivery
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

package proto

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tevino/abool"
)

const (
	// Receive buffer per connection. Filling it without delivering a
	// newline is a framing violation.
	recvSize = 8192

	// Queued outbound lines per connection. Writes never block the
	// caller: a peer too slow to drain this many lines is dropped.
	outboxDepth = 256

	// How long the writer waits for terminal errors to flush after
	// the connection is closed.
	flushTimeout = 2 * time.Second
)

// Handler receives the lifecycle of a connection. Connected is called
// before the first Line, Closed exactly once after the last.
type Handler interface {
	Connected(c *Conn)
	Line(c *Conn, line string)
	Closed(c *Conn)
}

// Conn frames a byte stream into protocol lines and delivers outbound
// lines through a dedicated writer, so a stuck peer never blocks the
// rest of the server.
type Conn struct {
	rwc  io.ReadWriteCloser
	name string
	log  *logrus.Logger

	out    chan string
	quit   chan struct{}
	closed *abool.AtomicBool
}

func NewConn(rwc io.ReadWriteCloser, name string, log *logrus.Logger) *Conn {
	return &Conn{
		rwc:    rwc,
		name:   name,
		log:    log,
		out:    make(chan string, outboxDepth),
		quit:   make(chan struct{}),
		closed: abool.New(),
	}
}

// Remote names the peer, for slot bookkeeping and logs.
func (c *Conn) Remote() string { return c.name }

// Start spawns the reader and writer. The Connected callback fires
// before the reader starts, so the handler observes the connection
// before any of its lines.
func (c *Conn) Start(h Handler) {
	h.Connected(c)
	go c.write()
	go c.read(h)
}

// SendLine queues one line for delivery. Best-effort: when the outbox
// is full the connection is dropped instead of blocking the caller.
func (c *Conn) SendLine(line string) {
	if c.closed.IsSet() {
		return
	}
	select {
	case c.out <- line:
	default:
		c.log.WithField("remote", c.name).Warn("outbox overflow, dropping connection")
		c.Close()
	}
}

// SendErr queues an error response for a rejected request.
func (c *Conn) SendErr(cmd, code, msg string) {
	c.SendLine(fmt.Sprintf("ERR %s code=%s msg=%s", cmd, code, msg))
}

// Close shuts the connection down once. Lines queued before the close
// are still flushed, bounded by a short write deadline.
func (c *Conn) Close() {
	if c.closed.SetToIf(false, true) {
		close(c.quit)
	}
}

func (c *Conn) read(h Handler) {
	defer h.Closed(c)
	defer c.Close()

	r := bufio.NewReaderSize(c.rwc, recvSize)
	for {
		raw, err := r.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			c.SendErr("?", "BAD_FORMAT", "buffer_overflow")
			return
		}
		if err != nil {
			return
		}
		if len(raw) >= MaxLine {
			c.SendErr("?", "BAD_FORMAT", "line_too_long")
			return
		}

		line := string(raw)
		if i := strings.IndexAny(line, "\r\n"); i >= 0 {
			line = line[:i]
		}
		if line == "" {
			continue
		}
		h.Line(c, line)
	}
}

func (c *Conn) write() {
	for {
		select {
		case line := <-c.out:
			if !c.put(line) {
				c.Close()
				c.rwc.Close()
				return
			}
		case <-c.quit:
			c.flush()
			c.rwc.Close()
			return
		}
	}
}

func (c *Conn) put(line string) bool {
	if _, err := io.WriteString(c.rwc, line+"\n"); err != nil {
		c.log.WithField("remote", c.name).WithError(err).Debug("write failed")
		return false
	}
	return true
}

// flush drains whatever is still queued at close time, so terminal
// errors reach the peer before the socket goes away.
func (c *Conn) flush() {
	if d, ok := c.rwc.(interface{ SetWriteDeadline(time.Time) error }); ok {
		d.SetWriteDeadline(time.Now().Add(flushTimeout))
	}
	for {
		select {
		case line := <-c.out:
			if !c.put(line) {
				return
			}
		default:
			return
		}
	}
}
