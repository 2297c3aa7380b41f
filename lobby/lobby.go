// Hub Ownership and Event Loop
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
	"time"

	"github.com/sirupsen/logrus"

	"go-prsi/conf"
	"go-prsi/proto"
)

const (
	// OfflineTimeout is how long a disconnected identity survives
	// before its slot is reclaimed, and how long a paused game waits
	// for a reconnect.
	OfflineTimeout = 120 * time.Second

	// IdleTimeout evicts online connections that stay silent. The
	// eviction starts the offline window; PING exists for clients
	// with nothing to say.
	IdleTimeout = 15 * time.Second

	tickInterval = 250 * time.Millisecond
	maxStrikes   = 3
	maxNick      = 32
	maxRoomName  = 31
	cardsDealt   = 4
)

// Wire is the narrow capability the hub uses to talk to one client
// connection. *proto.Conn implements it; tests substitute fakes.
type Wire interface {
	SendLine(line string)
	SendErr(cmd, code, msg string)
	Close()
	Remote() string
}

// slot is one entry of the client table: the transport link and the
// session identity it is currently bound to. Identity moves between
// slots on resume, which is why rooms address players by slot index
// rather than by pointer.
type slot struct {
	used     bool
	wire     Wire // nil while offline
	online   bool
	lastSeen time.Time
	strikes  int

	nick   string
	token  string
	roomID int // 0 = not in a room
	inGame bool
}

type evKind uint8

const (
	evConnect evKind = iota
	evLine
	evClose
)

type event struct {
	kind evKind
	wire Wire
	line string
}

// Server owns every client slot, room and game. All mutation happens
// on the hub goroutine, fed by connection events and a fixed tick; no
// other locking exists.
type Server struct {
	conf  *conf.Conf
	log   *logrus.Logger
	clock func() time.Time

	slots      []slot
	rooms      []*room
	nextRoomID int
	byWire     map[Wire]int

	events chan event
	quit   chan struct{}
	done   chan struct{}
}

func New(c *conf.Conf) *Server {
	return &Server{
		conf:       c,
		log:        c.Log,
		clock:      time.Now,
		slots:      make([]slot, c.MaxClients),
		rooms:      make([]*room, c.MaxRooms),
		nextRoomID: 1,
		byWire:     make(map[Wire]int),
		events:     make(chan event, 64),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (s *Server) String() string { return "lobby" }

// The proto.Handler callbacks run on reader goroutines and only post
// events; the hub goroutine is the single owner of all state.

func (s *Server) Connected(c *proto.Conn) { s.post(event{kind: evConnect, wire: c}) }

func (s *Server) Line(c *proto.Conn, line string) {
	s.post(event{kind: evLine, wire: c, line: line})
}

func (s *Server) Closed(c *proto.Conn) { s.post(event{kind: evClose, wire: c}) }

func (s *Server) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.quit:
	}
}

// Start runs the hub loop until Shutdown.
func (s *Server) Start() {
	defer close(s.done)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-s.events:
			switch ev.kind {
			case evConnect:
				s.connect(ev.wire)
			case evLine:
				s.line(ev.wire, ev.line)
			case evClose:
				s.disconnect(ev.wire)
			}
		case <-ticker.C:
			s.tick()
		case <-s.quit:
			s.close()
			return
		}
	}
}

// Shutdown stops the hub loop and closes every live connection. It
// does not drain or persist.
func (s *Server) Shutdown() {
	close(s.quit)
	<-s.done
}

func (s *Server) close() {
	for i := range s.slots {
		if w := s.slots[i].wire; w != nil {
			w.Close()
		}
	}
}

// connect allocates a client slot for a fresh transport connection.
// Slot exhaustion drops the connection without a reply.
func (s *Server) connect(w Wire) {
	ci := -1
	for i := range s.slots {
		if !s.slots[i].used {
			ci = i
			break
		}
	}
	if ci < 0 {
		s.log.WithField("remote", w.Remote()).Warn("client table full, dropping connection")
		w.Close()
		return
	}

	s.slots[ci] = slot{used: true, wire: w, online: true, lastSeen: s.clock()}
	s.byWire[w] = ci
	w.SendLine("EVT SERVER msg=welcome")
	s.log.WithFields(logrus.Fields{"remote": w.Remote(), "slot": ci}).Debug("client connected")
}

// disconnect marks the slot offline and starts its 120 s window. The
// identity survives for a resume; the room pauses a running game.
func (s *Server) disconnect(w Wire) {
	ci, ok := s.byWire[w]
	delete(s.byWire, w)
	if !ok {
		return // slot already cleared by logout
	}

	c := &s.slots[ci]
	if !c.used || c.wire != w {
		return
	}
	c.wire = nil
	c.online = false
	c.lastSeen = s.clock()
	s.log.WithFields(logrus.Fields{"slot": ci, "nick": c.nick}).Debug("client disconnected")

	r := s.roomByID(c.roomID)
	if r == nil {
		c.roomID = 0
		return
	}

	s.broadcastf(r, "EVT PLAYER_OFFLINE nick=%s", c.nick)
	if r.phase == phaseGame {
		s.pause(r, c.nick)
		s.broadcastState(r)
	}
}

// tick runs the clock-driven bookkeeping: room pause expiry and
// resume, reclamation of expired offline slots, then idle eviction.
func (s *Server) tick() {
	now := s.clock()

	for _, r := range s.rooms {
		if r == nil || r.phase != phaseGame {
			continue
		}
		if off := s.firstOffline(r); off >= 0 {
			s.pause(r, s.slots[off].nick)
			if r.paused && now.Sub(r.pauseStart) > OfflineTimeout {
				s.abortGame(r, "reconnect_timeout")
				s.broadcastState(r)
			}
		} else if r.paused {
			s.resumeGame(r)
			s.broadcastState(r)
		}
	}

	for i := range s.slots {
		c := &s.slots[i]
		if !c.used || c.online || now.Sub(c.lastSeen) <= OfflineTimeout {
			continue
		}
		s.reap(i)
	}

	for i := range s.slots {
		c := &s.slots[i]
		if !c.used || !c.online || c.wire == nil {
			continue
		}
		if now.Sub(c.lastSeen) > IdleTimeout {
			s.log.WithFields(logrus.Fields{"slot": i, "nick": c.nick}).Debug("idle eviction")
			c.wire.Close()
		}
	}
}

func (s *Server) logged(ci int) bool {
	return s.slots[ci].nick != "" && s.slots[ci].token != ""
}

func (s *Server) slotByNick(nick string) int {
	for i := range s.slots {
		if s.slots[i].used && s.slots[i].nick != "" && s.slots[i].nick == nick {
			return i
		}
	}
	return -1
}

// sendTo delivers a line to one slot if it still has a transport.
func (s *Server) sendTo(ci int, line string) {
	c := &s.slots[ci]
	if !c.used || c.wire == nil {
		return
	}
	c.wire.SendLine(line)
}
