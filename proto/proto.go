// Line Protocol Codec
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

import "strings"

// MaxLine is the upper bound on a single protocol line, terminator
// included. Longer lines are a framing error, handled by the
// connection before the codec ever sees them.
const MaxLine = 1024

const (
	maxCmd   = 31
	maxKey   = 31
	maxVal   = 127
	maxPairs = 31
)

// Type is the first token of every message.
type Type uint8

const (
	Req Type = iota + 1 // client request
	Resp                // response to a request
	Evt                 // unsolicited server event
	Err                 // request rejection
)

type pair struct {
	key, val string
}

// Msg is one parsed protocol line: a type, a command, and the
// remaining tokens interpreted as key=value pairs.
type Msg struct {
	Type  Type
	Cmd   string
	pairs []pair
}

// Parse destructs a line into a message. It fails only when fewer
// than two tokens are present or the type token is unknown; malformed
// key=value tokens are silently skipped, oversized values truncated,
// and pairs beyond the limit dropped.
func Parse(line string) (*Msg, bool) {
	tokens := strings.Fields(line)
	if len(tokens) < 2 {
		return nil, false
	}

	var m Msg
	switch tokens[0] {
	case "REQ":
		m.Type = Req
	case "RESP":
		m.Type = Resp
	case "EVT":
		m.Type = Evt
	case "ERR":
		m.Type = Err
	default:
		return nil, false
	}

	m.Cmd = tokens[1]
	if len(m.Cmd) > maxCmd {
		m.Cmd = m.Cmd[:maxCmd]
	}

	for _, tok := range tokens[2:] {
		if len(m.pairs) >= maxPairs {
			break
		}
		eq := strings.IndexByte(tok, '=')
		if eq <= 0 || eq > maxKey {
			continue
		}
		val := tok[eq+1:]
		if len(val) > maxVal {
			val = val[:maxVal]
		}
		m.pairs = append(m.pairs, pair{key: tok[:eq], val: val})
	}

	return &m, true
}

// Get returns the value of a key. With duplicate keys the first
// occurrence wins.
func (m *Msg) Get(key string) (string, bool) {
	for _, p := range m.pairs {
		if p.key == key {
			return p.val, true
		}
	}
	return "", false
}
