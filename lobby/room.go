// Room Membership, Phases and Game Flow
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
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"go-prsi"
	"go-prsi/proto"
)

type phase uint8

const (
	phaseLobby phase = iota
	phaseGame
)

func (p phase) String() string {
	if p == phaseGame {
		return "GAME"
	}
	return "LOBBY"
}

// room groups players around one game. Players are slot indices in
// seating order; the engine's positions index this list. After a
// victory the final game state is retained so STATE keeps showing the
// closing suit and penalty; an abort drops it.
type room struct {
	id         int
	name       string
	size       int
	phase      phase
	paused     bool
	pauseStart time.Time

	host    int // slot index
	players []int
	game    *prsi.Game
}

func (r *room) posOf(ci int) int {
	for i, p := range r.players {
		if p == ci {
			return i
		}
	}
	return -1
}

func (s *Server) roomByID(id int) *room {
	if id <= 0 {
		return nil
	}
	for _, r := range s.rooms {
		if r != nil && r.id == id {
			return r
		}
	}
	return nil
}

func (s *Server) destroyRoom(r *room) {
	for i, rr := range s.rooms {
		if rr == r {
			s.rooms[i] = nil
			s.log.WithField("room", r.id).Debug("room destroyed")
			return
		}
	}
}

// active reports whether the slot can receive broadcasts right now.
func (s *Server) active(ci int) bool {
	c := &s.slots[ci]
	return c.used && c.online && c.wire != nil
}

func (s *Server) broadcast(r *room, line string) {
	for _, ci := range r.players {
		if s.active(ci) {
			s.slots[ci].wire.SendLine(line)
		}
	}
}

func (s *Server) broadcastf(r *room, format string, args ...interface{}) {
	s.broadcast(r, fmt.Sprintf(format, args...))
}

func (s *Server) broadcastExceptf(r *room, except int, format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	for _, ci := range r.players {
		if ci != except && s.active(ci) {
			s.slots[ci].wire.SendLine(line)
		}
	}
}

func (s *Server) broadcastState(r *room) {
	s.broadcast(r, s.stateLine(r))
}

func (s *Server) sendState(r *room, ci int) {
	s.sendTo(ci, s.stateLine(r))
}

func (s *Server) stateLine(r *room) string {
	top, turn := "-", "-"
	suit := byte('-')
	penalty := 0
	if r.game != nil {
		if a := r.game.ActiveSuit(); a != 0 {
			suit = a
		}
		penalty = r.game.Penalty()
	}
	if r.phase == phaseGame && r.game != nil {
		top = r.game.Top().String()
		turn = s.turnNick(r)
	}
	paused := 0
	if r.paused {
		paused = 1
	}
	return fmt.Sprintf("EVT STATE room=%d phase=%s paused=%d top=%s active_suit=%c penalty=%d turn=%s",
		r.id, r.phase, paused, top, suit, penalty, turn)
}

func (s *Server) topLine(r *room) string {
	suit := byte('-')
	if a := r.game.ActiveSuit(); a != 0 {
		suit = a
	}
	return fmt.Sprintf("EVT TOP card=%s active_suit=%c penalty=%d",
		r.game.Top(), suit, r.game.Penalty())
}

func (s *Server) turnNick(r *room) string {
	if r.game == nil || r.game.Turn() >= len(r.players) {
		return "-"
	}
	return s.slots[r.players[r.game.Turn()]].nick
}

// sendRoster replays the membership to one client: the host, then
// every member with their online state.
func (s *Server) sendRoster(r *room, to int) {
	if s.slots[r.host].nick != "" {
		s.sendTo(to, "EVT HOST nick="+s.slots[r.host].nick)
	}
	for _, ci := range r.players {
		nick := s.slots[ci].nick
		if nick == "" {
			continue
		}
		s.sendTo(to, "EVT PLAYER_JOIN nick="+nick)
		if s.active(ci) {
			s.sendTo(to, "EVT PLAYER_ONLINE nick="+nick)
		} else {
			s.sendTo(to, "EVT PLAYER_OFFLINE nick="+nick)
		}
	}
}

// sendHand delivers a player's cards privately.
func (s *Server) sendHand(r *room, ppos int) {
	if r.game == nil || ppos >= r.game.Players() {
		return
	}
	hand := r.game.Hand(ppos)
	parts := make([]string, len(hand))
	for i, c := range hand {
		parts[i] = c.String()
	}
	s.sendTo(r.players[ppos], "EVT HAND cards="+strings.Join(parts, ","))
}

// firstOffline returns the slot index of the first member without a
// live connection, or -1 when everyone is reachable.
func (s *Server) firstOffline(r *room) int {
	for _, ci := range r.players {
		if !s.active(ci) {
			return ci
		}
	}
	return -1
}

// pause suspends a running game. Idempotent; the first offline member
// gives the pause its name.
func (s *Server) pause(r *room, nick string) {
	if r.phase != phaseGame || r.paused {
		return
	}
	r.paused = true
	r.pauseStart = s.clock()
	timeout := int(OfflineTimeout / time.Second)
	if nick != "" {
		s.broadcastf(r, "EVT GAME_PAUSED nick=%s timeout=%d", nick, timeout)
	} else {
		s.broadcastf(r, "EVT GAME_PAUSED timeout=%d", timeout)
	}
	s.log.WithFields(logrus.Fields{"room": r.id, "nick": nick}).Info("game paused")
}

// resumeGame lifts the pause once every member is online again.
// No-op otherwise.
func (s *Server) resumeGame(r *room) {
	if r.phase != phaseGame || !r.paused || s.firstOffline(r) >= 0 {
		return
	}
	r.paused = false
	r.pauseStart = time.Time{}
	s.broadcast(r, "EVT GAME_RESUMED")
	s.log.WithField("room", r.id).Info("game resumed")
}

// abortGame ends a running game without a winner and returns the room
// to the lobby. The game state is dropped.
func (s *Server) abortGame(r *room, reason string) {
	if r.phase != phaseGame {
		return
	}
	r.phase = phaseLobby
	r.paused = false
	r.pauseStart = time.Time{}
	for _, ci := range r.players {
		s.slots[ci].inGame = false
	}
	r.game = nil

	s.broadcastf(r, "EVT GAME_ABORT reason=%s", reason)
	s.broadcastState(r)
	s.log.WithFields(logrus.Fields{"room": r.id, "reason": reason}).Info("game aborted")
}

// removePlayer takes a member out of a non-playing room, migrating
// the host role and destroying the room when it empties.
func (s *Server) removePlayer(r *room, ci int) {
	pos := r.posOf(ci)
	if pos < 0 {
		return
	}
	r.players = append(r.players[:pos], r.players[pos+1:]...)

	if r.host == ci && len(r.players) > 0 {
		r.host = r.players[0]
		s.broadcastf(r, "EVT HOST nick=%s", s.slots[r.host].nick)
	}
	if len(r.players) == 0 {
		s.destroyRoom(r)
	}
}

// removePlayerInGame compacts room and engine state together when a
// player leaves mid-game: positions above theirs shift down and the
// turn pointer follows.
func (s *Server) removePlayerInGame(r *room, ci int) {
	pos := r.posOf(ci)
	if pos < 0 {
		s.removePlayer(r, ci)
		return
	}

	if r.game != nil {
		r.game.RemovePlayer(pos)
	}
	r.players = append(r.players[:pos], r.players[pos+1:]...)

	if r.host == ci && len(r.players) > 0 {
		r.host = r.players[0]
		s.broadcastf(r, "EVT HOST nick=%s", s.slots[r.host].nick)
	}
	if len(r.players) == 0 {
		s.destroyRoom(r)
	}
}

func (s *Server) listRooms(ci int) {
	w := s.slots[ci].wire
	if !s.logged(ci) {
		w.SendErr("LIST_ROOMS", "NOT_LOGGED", "login_first")
		return
	}

	count := 0
	for _, r := range s.rooms {
		if r != nil {
			count++
		}
	}
	w.SendLine(fmt.Sprintf("RESP LIST_ROOMS ok=1 rooms=%d", count))
	for _, r := range s.rooms {
		if r == nil {
			continue
		}
		w.SendLine(fmt.Sprintf("EVT ROOM id=%d name=%s players=%d/%d state=%s",
			r.id, r.name, len(r.players), r.size, r.phase))
	}
}

func (s *Server) createRoom(ci int, name string, size int) {
	c := &s.slots[ci]
	w := c.wire
	if !s.logged(ci) {
		w.SendErr("CREATE_ROOM", "NOT_LOGGED", "login_first")
		return
	}
	if c.roomID > 0 {
		w.SendErr("CREATE_ROOM", "BAD_STATE", "already_in_room")
		return
	}
	if name == "" {
		w.SendErr("CREATE_ROOM", "BAD_FORMAT", "missing_name")
		return
	}
	if size < 2 || size > 4 {
		w.SendErr("CREATE_ROOM", "INVALID_VALUE", "size_2_4")
		return
	}

	ri := -1
	for i, rr := range s.rooms {
		if rr == nil {
			ri = i
			break
		}
	}
	if ri < 0 {
		w.SendErr("CREATE_ROOM", "LIMIT_REACHED", "max_rooms")
		return
	}

	if len(name) > maxRoomName {
		name = name[:maxRoomName]
	}
	r := &room{
		id:      s.nextRoomID,
		name:    name,
		size:    size,
		host:    ci,
		players: []int{ci},
	}
	s.nextRoomID++
	s.rooms[ri] = r
	c.roomID = r.id
	c.inGame = false

	w.SendLine(fmt.Sprintf("RESP CREATE_ROOM ok=1 room=%d", r.id))
	s.broadcastf(r, "EVT PLAYER_JOIN nick=%s", c.nick)
	s.broadcastf(r, "EVT HOST nick=%s", c.nick)
	s.broadcastState(r)
	s.log.WithFields(logrus.Fields{"room": r.id, "name": r.name, "host": c.nick}).Info("room created")
}

func (s *Server) joinRoom(ci int, id int) {
	c := &s.slots[ci]
	w := c.wire
	if !s.logged(ci) {
		w.SendErr("JOIN_ROOM", "NOT_LOGGED", "login_first")
		return
	}
	if c.roomID > 0 {
		w.SendErr("JOIN_ROOM", "BAD_STATE", "already_in_room")
		return
	}

	r := s.roomByID(id)
	if r == nil {
		w.SendErr("JOIN_ROOM", "NO_SUCH_ROOM", "id")
		return
	}
	if r.phase != phaseLobby {
		w.SendErr("JOIN_ROOM", "BAD_STATE", "game_running")
		return
	}
	if len(r.players) >= r.size {
		w.SendErr("JOIN_ROOM", "ROOM_FULL", "full")
		return
	}

	r.players = append(r.players, ci)
	c.roomID = r.id
	c.inGame = false

	w.SendLine(fmt.Sprintf("RESP JOIN_ROOM ok=1 room=%d", r.id))
	s.sendRoster(r, ci)
	s.broadcastExceptf(r, ci, "EVT PLAYER_JOIN nick=%s", c.nick)
	s.sendState(r, ci)
	s.broadcastState(r)
	s.log.WithFields(logrus.Fields{"room": r.id, "nick": c.nick}).Info("player joined")
}

func (s *Server) leaveRoom(ci int) {
	c := &s.slots[ci]
	w := c.wire
	if !s.logged(ci) {
		w.SendErr("LEAVE_ROOM", "NOT_LOGGED", "login_first")
		return
	}
	if c.roomID <= 0 {
		w.SendErr("LEAVE_ROOM", "BAD_STATE", "not_in_room")
		return
	}

	r := s.roomByID(c.roomID)
	if r == nil {
		c.roomID = 0
		c.inGame = false
		w.SendLine("RESP LEAVE_ROOM ok=1")
		return
	}

	s.broadcastf(r, "EVT PLAYER_LEAVE nick=%s", c.nick)

	if r.phase == phaseGame {
		s.removePlayerInGame(r, ci)
	} else {
		s.removePlayer(r, ci)
	}
	c.roomID = 0
	c.inGame = false
	w.SendLine("RESP LEAVE_ROOM ok=1")

	if len(r.players) == 0 {
		return
	}

	if r.phase == phaseGame {
		if len(r.players) < 2 {
			// A sole survivor wins; an empty game just stops.
			if len(r.players) == 1 {
				s.broadcastf(r, "EVT GAME_END winner=%s", s.slots[r.players[0]].nick)
			} else {
				s.broadcast(r, "EVT GAME_ABORT reason=not_enough_players")
			}
			r.phase = phaseLobby
			if r.game != nil {
				r.game.Stop()
			}
			for _, p := range r.players {
				s.slots[p].inGame = false
			}
			s.broadcastState(r)
			return
		}

		for ppos := range r.players {
			s.sendHand(r, ppos)
		}
		s.broadcastf(r, "EVT TURN nick=%s", s.turnNick(r))
		s.broadcastState(r)
		return
	}

	s.broadcastState(r)
}

func (s *Server) startGame(ci int) {
	c := &s.slots[ci]
	w := c.wire
	if !s.logged(ci) {
		w.SendErr("START_GAME", "NOT_LOGGED", "login_first")
		return
	}
	if c.roomID <= 0 {
		w.SendErr("START_GAME", "BAD_STATE", "not_in_room")
		return
	}
	r := s.roomByID(c.roomID)
	if r == nil {
		w.SendErr("START_GAME", "BAD_STATE", "no_room")
		return
	}
	if r.phase != phaseLobby {
		w.SendErr("START_GAME", "BAD_STATE", "already_running")
		return
	}
	if r.host != ci {
		w.SendErr("START_GAME", "NOT_HOST", "host_only")
		return
	}
	if len(r.players) < 2 {
		w.SendErr("START_GAME", "NOT_ENOUGH_PLAYERS", "need_at_least_two")
		return
	}

	g := prsi.NewGame(len(r.players), s.clock().Unix()^int64(r.id))
	g.Deal(cardsDealt)
	g.PickStartTop()
	r.game = g
	r.phase = phaseGame
	r.paused = false
	r.pauseStart = time.Time{}
	for _, p := range r.players {
		s.slots[p].inGame = true
	}

	w.SendLine("RESP START_GAME ok=1")
	s.broadcastf(r, "EVT GAME_START players=%d", len(r.players))
	for ppos := range r.players {
		s.sendHand(r, ppos)
	}
	s.broadcast(r, s.topLine(r))
	s.broadcastf(r, "EVT TURN nick=%s", s.turnNick(r))
	s.broadcastState(r)
	s.log.WithFields(logrus.Fields{"room": r.id, "players": len(r.players)}).Info("game started")
}

// inGame resolves the room and player position behind an in-game
// request, rejecting paused rooms and non-members.
func (s *Server) inGame(ci int) (*room, int, bool) {
	r := s.roomByID(s.slots[ci].roomID)
	if r == nil || r.phase != phaseGame || r.paused || r.game == nil {
		return nil, 0, false
	}
	ppos := r.posOf(ci)
	if ppos < 0 {
		return nil, 0, false
	}
	return r, ppos, true
}

// pausedRoom reports whether the client's room holds a paused game,
// which blocks moves with a dedicated error.
func (s *Server) pausedRoom(ci int) bool {
	r := s.roomByID(s.slots[ci].roomID)
	return r != nil && r.phase == phaseGame && r.paused
}

func (s *Server) play(ci int, m *proto.Msg) {
	c := &s.slots[ci]
	w := c.wire
	if s.pausedRoom(ci) {
		w.SendErr("PLAY", "PAUSED", "wait_for_reconnect")
		return
	}
	r, ppos, ok := s.inGame(ci)
	if !ok {
		w.SendErr("PLAY", "BAD_STATE", "no_game")
		return
	}

	scard, ok := m.Get("card")
	if !ok {
		w.SendErr("PLAY", "BAD_FORMAT", "missing_card")
		return
	}
	wish, _ := m.Get("wish")

	card, ok := prsi.ParseCard(scard)
	if !ok {
		w.SendErr("PLAY", "BAD_FORMAT", "bad_card")
		return
	}

	out, err := r.game.Play(ppos, card, wish)
	if err != nil {
		w.SendErr("PLAY", err.Error(), "rejected")
		return
	}

	w.SendLine("RESP PLAY ok=1")
	if wish != "" && card.Rank() == prsi.Queen {
		s.broadcastf(r, "EVT PLAYED nick=%s card=%s wish=%c", c.nick, card, wish[0])
	} else {
		s.broadcastf(r, "EVT PLAYED nick=%s card=%s", c.nick, card)
	}
	s.broadcast(r, s.topLine(r))
	s.sendHand(r, ppos)

	if out.WinnerPos >= 0 {
		s.broadcastf(r, "EVT GAME_END winner=%s", s.slots[r.players[out.WinnerPos]].nick)
		r.phase = phaseLobby
		r.paused = false
		r.pauseStart = time.Time{}
		for _, p := range r.players {
			s.slots[p].inGame = false
		}
		s.broadcastState(r)
		s.log.WithFields(logrus.Fields{"room": r.id, "winner": c.nick}).Info("game won")
		return
	}

	s.broadcastf(r, "EVT TURN nick=%s", s.turnNick(r))
	s.broadcastState(r)
}

func (s *Server) draw(ci int) {
	c := &s.slots[ci]
	w := c.wire
	if s.pausedRoom(ci) {
		w.SendErr("DRAW", "PAUSED", "wait_for_reconnect")
		return
	}
	r, ppos, ok := s.inGame(ci)
	if !ok {
		w.SendErr("DRAW", "BAD_STATE", "no_game")
		return
	}

	drawn, err := r.game.Draw(ppos)
	if err != nil {
		w.SendErr("DRAW", err.Error(), "rejected")
		return
	}

	w.SendLine(fmt.Sprintf("RESP DRAW ok=1 count=%d", len(drawn)))
	s.sendHand(r, ppos)
	s.broadcastf(r, "EVT TURN nick=%s", s.turnNick(r))
	s.broadcastState(r)
}
