// Request Dispatch and Strike Policy
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

package lobby

import (
	"strconv"

	"github.com/sirupsen/logrus"

	"go-prsi/proto"
)

// line handles one framed line from a connection. Parse failures
// count as strikes; strikes never reset, and the third drops the
// connection. Semantic rejections are error responses, not strikes.
func (s *Server) line(w Wire, raw string) {
	ci, ok := s.byWire[w]
	if !ok {
		return
	}
	c := &s.slots[ci]
	c.lastSeen = s.clock()
	c.online = true

	m, ok := proto.Parse(raw)
	if !ok {
		c.strikes++
		w.SendErr("?", "BAD_FORMAT", "parse_error")
		if c.strikes >= maxStrikes {
			s.log.WithFields(logrus.Fields{"slot": ci, "remote": w.Remote()}).Info("three strikes, dropping connection")
			w.Close()
		}
		return
	}
	if m.Type != proto.Req {
		w.SendErr(m.Cmd, "BAD_FORMAT", "expected_req")
		return
	}

	s.dispatch(ci, m)
}

func (s *Server) dispatch(ci int, m *proto.Msg) {
	w := s.slots[ci].wire

	switch m.Cmd {
	case "LOGIN":
		nick, ok := m.Get("nick")
		if !ok {
			w.SendErr("LOGIN", "BAD_FORMAT", "missing_nick")
			return
		}
		s.login(ci, nick)
	case "RESUME":
		nick, ok1 := m.Get("nick")
		session, ok2 := m.Get("session")
		if !ok1 || !ok2 {
			w.SendErr("RESUME", "BAD_FORMAT", "missing_fields")
			return
		}
		s.resume(ci, nick, session)
	case "LOGOUT":
		s.logout(ci)
	case "LIST_ROOMS":
		s.listRooms(ci)
	case "CREATE_ROOM":
		name, ok1 := m.Get("name")
		size, ok2 := m.Get("size")
		if !ok1 || !ok2 {
			w.SendErr("CREATE_ROOM", "BAD_FORMAT", "missing_fields")
			return
		}
		s.createRoom(ci, name, atoi(size))
	case "JOIN_ROOM":
		id, ok := m.Get("room")
		if !ok {
			w.SendErr("JOIN_ROOM", "BAD_FORMAT", "missing_room")
			return
		}
		s.joinRoom(ci, atoi(id))
	case "LEAVE_ROOM":
		s.leaveRoom(ci)
	case "START_GAME":
		s.startGame(ci)
	case "PLAY":
		s.play(ci, m)
	case "DRAW":
		s.draw(ci)
	case "PING":
		// Deliberately no ok= field.
		w.SendLine("RESP PONG")
	default:
		w.SendErr(m.Cmd, "UNKNOWN_CMD", "unknown")
	}
}

// Numeric request fields tolerate no junk: a non-number reads as zero
// and lands in the regular range rejections.
func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
