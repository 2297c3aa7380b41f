// TCP Interface
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
	"net"
	"strconv"

	"github.com/pkg/errors"

	"go-prsi/conf"
)

// Listener accepts TCP connections and hands them to the Handler.
type Listener struct {
	conf    *conf.Conf
	handler Handler
	ln      net.Listener
}

func NewListener(c *conf.Conf, h Handler) *Listener {
	return &Listener{conf: c, handler: h}
}

func (l *Listener) String() string { return "tcp listener" }

// Init binds the listening socket. Kept apart from Start so the entry
// point can fail before anything else is running.
func (l *Listener) Init() error {
	addr := net.JoinHostPort(l.conf.IP, strconv.Itoa(l.conf.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	l.ln = ln
	return nil
}

// Start accepts connections until the listener is shut down.
func (l *Listener) Start() {
	l.conf.Log.WithField("addr", l.ln.Addr().String()).Info("accepting connections")
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.conf.Log.WithError(err).Debug("accept failed")
			continue
		}
		NewConn(conn, conn.RemoteAddr().String(), l.conf.Log).Start(l.handler)
	}
}

func (l *Listener) Shutdown() {
	if l.ln != nil {
		l.ln.Close()
	}
}
