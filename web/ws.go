// Websocket Interface
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

package web

import (
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"go-prsi/conf"
	"go-prsi/proto"
)

// adapted from https://github.com/gorilla/websocket/issues/282

// wsrwc is a read-write-closer over websocket text frames, so a
// websocket peer runs through the same connection machinery as TCP.
type wsrwc struct {
	*websocket.Conn
	r io.Reader
}

func (c *wsrwc) Write(p []byte) (int, error) {
	err := c.WriteMessage(websocket.TextMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsrwc) Read(p []byte) (int, error) {
	for {
		if c.r == nil {
			// Advance to the next message.
			var err error
			_, c.r, err = c.NextReader()
			if err != nil {
				return 0, err
			}
		}
		n, err := c.r.Read(p)
		if err == io.EOF {
			c.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Listener serves the line protocol over websocket on /ws.
type Listener struct {
	conf    *conf.Conf
	handler proto.Handler
	ln      net.Listener
	srv     *http.Server
}

func New(c *conf.Conf, h proto.Handler) *Listener {
	return &Listener{conf: c, handler: h}
}

func (l *Listener) String() string { return "websocket listener" }

func (l *Listener) Init() error {
	addr := net.JoinHostPort(l.conf.IP, strconv.Itoa(l.conf.WSPort))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	l.ln = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", l.upgrade)
	l.srv = &http.Server{Handler: mux}
	return nil
}

func (l *Listener) Start() {
	l.conf.Log.WithField("addr", l.ln.Addr().String()).Info("accepting websocket connections")
	if err := l.srv.Serve(l.ln); err != http.ErrServerClosed {
		l.conf.Log.WithError(err).Error("websocket server failed")
	}
}

func (l *Listener) Shutdown() {
	if l.srv != nil {
		l.srv.Close()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func (l *Listener) upgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.conf.Log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	proto.NewConn(&wsrwc{Conn: conn}, conn.RemoteAddr().String(), l.conf.Log).Start(l.handler)
}
