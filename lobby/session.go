// Session Identity and Resumption
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
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// newToken mints an unguessable session token: 16 random bytes as 32
// hex characters. Together with the nickname it authorizes a resume.
func newToken() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

func (s *Server) login(ci int, nick string) {
	c := &s.slots[ci]
	w := c.wire
	c.online = true

	if nick == "" {
		w.SendErr("LOGIN", "BAD_FORMAT", "missing_nick")
		return
	}
	if len(nick) >= maxNick {
		w.SendErr("LOGIN", "INVALID_VALUE", "nick_too_long")
		return
	}
	if j := s.slotByNick(nick); j >= 0 && j != ci {
		if s.slots[j].online {
			w.SendErr("LOGIN", "NICK_TAKEN", "already_online")
		} else {
			w.SendErr("LOGIN", "NICK_TAKEN", "use_resume_offline")
		}
		return
	}

	c.nick = nick
	c.token = newToken()
	c.roomID = 0
	c.inGame = false

	w.SendLine("RESP LOGIN ok=1 session=" + c.token)
	s.log.WithFields(logrus.Fields{"nick": nick, "remote": w.Remote()}).Info("login")
}

// resume transplants an offline identity into the caller's slot: the
// nick, token and room membership move over, the room's player
// indices (host included) are rewritten, and the old slot is freed.
// Resuming one's own slot just replays the room context.
func (s *Server) resume(ci int, nick, token string) {
	c := &s.slots[ci]
	w := c.wire
	c.online = true
	c.lastSeen = s.clock()

	j := s.slotByNick(nick)
	if j < 0 {
		w.SendErr("RESUME", "BAD_SESSION", "no_such_nick")
		return
	}
	if s.slots[j].token != token {
		w.SendErr("RESUME", "BAD_SESSION", "token")
		return
	}
	if j != ci && s.slots[j].online {
		w.SendErr("RESUME", "ALREADY_ONLINE", "use_login")
		return
	}

	if j != ci {
		old := &s.slots[j]
		c.nick = old.nick
		c.token = old.token
		c.roomID = old.roomID
		c.inGame = old.inGame

		if r := s.roomByID(c.roomID); r != nil {
			for i, p := range r.players {
				if p == j {
					r.players[i] = ci
				}
			}
			if r.host == j {
				r.host = ci
			}
		}
		*old = slot{}
	}

	w.SendLine("RESP RESUME ok=1")
	s.log.WithFields(logrus.Fields{"nick": c.nick, "remote": w.Remote()}).Info("resume")

	r := s.roomByID(c.roomID)
	if r == nil {
		return
	}

	s.broadcastExceptf(r, ci, "EVT PLAYER_ONLINE nick=%s", c.nick)
	s.sendRoster(r, ci)
	s.sendState(r, ci)

	if r.phase == phaseGame {
		if ppos := r.posOf(ci); ppos >= 0 {
			s.sendHand(r, ppos)
		}
		s.sendTo(ci, s.topLine(r))
		s.sendTo(ci, fmt.Sprintf("EVT TURN nick=%s", s.turnNick(r)))

		if r.paused {
			s.resumeGame(r)
			s.broadcastState(r)
		}
	}
}

// logout needs no authentication: after a disconnect it succeeds or
// is a no-op. A running game aborts; the farewell response is queued
// before the connection closes.
func (s *Server) logout(ci int) {
	c := &s.slots[ci]

	if r := s.roomByID(c.roomID); r != nil {
		s.broadcastf(r, "EVT PLAYER_LEAVE nick=%s", c.nick)
		if r.phase == phaseGame {
			s.abortGame(r, "logout")
		}
		s.removePlayer(r, ci)
		if len(r.players) > 0 {
			s.broadcastState(r)
		}
	}

	if c.wire != nil {
		c.wire.SendLine("RESP LOGOUT ok=1")
		c.wire.Close()
		delete(s.byWire, c.wire)
	}
	s.log.WithFields(logrus.Fields{"slot": ci, "nick": c.nick}).Info("logout")
	*c = slot{}
}

// reap frees a slot whose offline window expired. The player leaves
// their room for good; a game still in progress aborts.
func (s *Server) reap(ci int) {
	c := &s.slots[ci]

	if r := s.roomByID(c.roomID); r != nil {
		s.broadcastf(r, "EVT PLAYER_LEAVE nick=%s", c.nick)
		if r.phase == phaseGame {
			s.abortGame(r, "player_removed")
		}
		s.removePlayer(r, ci)
		if len(r.players) > 0 {
			s.broadcastState(r)
		}
	}

	s.log.WithFields(logrus.Fields{"slot": ci, "nick": c.nick}).Debug("offline slot reclaimed")
	*c = slot{}
}
