// Game State Machine
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

package prsi

import (
	"fmt"
	"math/rand"
)

// MaxPlayers bounds the number of hands a single game tracks.
const MaxPlayers = 4

// RuleError is a rule violation reported by Play or Draw. The text
// doubles as the wire code token of the rejection.
type RuleError string

func (e RuleError) Error() string { return string(e) }

const (
	ErrBadState        RuleError = "BAD_STATE"
	ErrNotYourTurn     RuleError = "NOT_YOUR_TURN"
	ErrNoSuchCard      RuleError = "NO_SUCH_CARD"
	ErrMustStackOrDraw RuleError = "MUST_STACK_OR_DRAW"
	ErrWishRequired    RuleError = "WISH_REQUIRED"
	ErrBadWish         RuleError = "BAD_WISH"
	ErrIllegalCard     RuleError = "ILLEGAL_CARD"
)

// Outcome reports the side effects of a successful play.
type Outcome struct {
	SkipNext     bool // an ace was played, the next player sits out
	AddedPenalty int  // 2 when a seven was played
	WinnerPos    int  // position of the winner, -1 while the game runs
}

// Game holds the complete state of one game: the draw deck and discard
// pile (top of each is the last element), one hand per position, and
// the turn bookkeeping. A Game mutates only through its methods and
// performs no I/O.
//
// The generator seeded at construction drives the initial shuffle and
// every refill shuffle, so a game is replayable from its seed alone.
type Game struct {
	deck    []Card
	discard []Card
	hands   [][]Card

	top     Card
	active  byte // active suit letter, 0 until the starting top is picked
	penalty int
	turn    int

	running bool
	ended   bool

	rng *rand.Rand
}

// NewGame fills the deck with all 32 cards, shuffles it and prepares
// empty hands for the given number of players. Nothing is dealt yet.
func NewGame(players int, seed int64) *Game {
	g := &Game{
		deck:    make([]Card, DeckSize),
		discard: make([]Card, 0, DeckSize),
		hands:   make([][]Card, players),
		rng:     rand.New(rand.NewSource(seed)),
		running: true,
	}
	for i := range g.deck {
		g.deck[i] = Card(i)
	}
	g.shuffle(g.deck)
	return g
}

func (g *Game) shuffle(cards []Card) {
	g.rng.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}

// drawOne pops the top of the deck, refilling from the discard pile
// when the deck runs dry. The refill keeps the top discard in place so
// the table never loses its reference card; with one or zero discards
// left there is nothing to refill from and the draw fails.
func (g *Game) drawOne() (Card, bool) {
	if len(g.deck) == 0 {
		if len(g.discard) <= 1 {
			return 0, false
		}
		keep := g.discard[len(g.discard)-1]
		g.deck = append(g.deck, g.discard[:len(g.discard)-1]...)
		g.shuffle(g.deck)
		g.discard = g.discard[:0]
		g.discard = append(g.discard, keep)
	}
	c := g.deck[len(g.deck)-1]
	g.deck = g.deck[:len(g.deck)-1]
	return c, true
}

// Deal pops cardsEach cards off the deck into every hand, in player
// order. The live protocol deals 4.
func (g *Game) Deal(cardsEach int) {
	for p := range g.hands {
		g.hands[p] = g.hands[p][:0]
		for i := 0; i < cardsEach; i++ {
			c, ok := g.drawOne()
			if !ok {
				return
			}
			g.hands[p] = append(g.hands[p], c)
		}
	}
}

// PickStartTop flips deck cards until one without a special effect
// appears; every skipped card lands on the discard pile beneath the
// chosen top. The game must open neutral: no pending penalty, no wish,
// no skip.
func (g *Game) PickStartTop() {
	for {
		c, ok := g.drawOne()
		if !ok {
			return
		}
		g.discard = append(g.discard, c)
		if r := c.Rank(); r == Queen || r == Seven || r == Ace {
			continue
		}
		g.top = c
		g.active = c.Suit().Byte()
		return
	}
}

func (g *Game) handIndex(ppos int, c Card) int {
	for i, h := range g.hands[ppos] {
		if h == c {
			return i
		}
	}
	return -1
}

// Play validates and applies one move. The checks run in a fixed
// order: game over, turn, card ownership, pending penalty, then the
// queen's wish or the suit/rank match. A queen is legal on any top as
// long as the wish names a suit.
func (g *Game) Play(ppos int, c Card, wish string) (Outcome, error) {
	out := Outcome{WinnerPos: -1}

	if !g.running || g.ended {
		return out, ErrBadState
	}
	if ppos != g.turn {
		return out, ErrNotYourTurn
	}
	hi := g.handIndex(ppos, c)
	if hi < 0 {
		return out, ErrNoSuchCard
	}
	if g.penalty > 0 && c.Rank() != Seven {
		return out, ErrMustStackOrDraw
	}
	if c.Rank() == Queen {
		if wish == "" {
			return out, ErrWishRequired
		}
		if suitIndex(wish[0]) < 0 {
			return out, ErrBadWish
		}
	} else if c.Suit().Byte() != g.active && c.Rank() != g.top.Rank() {
		return out, ErrIllegalCard
	}

	// Swap-with-last removal; order within a hand carries no meaning.
	hand := g.hands[ppos]
	hand[hi] = hand[len(hand)-1]
	g.hands[ppos] = hand[:len(hand)-1]

	g.discard = append(g.discard, c)
	g.top = c
	if c.Rank() == Queen {
		g.active = wish[0]
	} else {
		g.active = c.Suit().Byte()
	}

	switch c.Rank() {
	case Seven:
		g.penalty += 2
		out.AddedPenalty = 2
	case Ace:
		out.SkipNext = true
	}

	if len(g.hands[ppos]) == 0 {
		g.ended = true
		out.WinnerPos = ppos
		return out, nil
	}

	g.advance(out.SkipNext)
	return out, nil
}

// Draw takes the pending penalty (or a single card when none is
// pending), clears the penalty and forfeits the turn. Best-effort:
// with deck and discard both exhausted the draw yields fewer cards,
// possibly none, and still counts as the player's move.
func (g *Game) Draw(ppos int) ([]Card, error) {
	if !g.running || g.ended {
		return nil, ErrBadState
	}
	if ppos != g.turn {
		return nil, ErrNotYourTurn
	}

	n := 1
	if g.penalty > 0 {
		n = g.penalty
	}

	var drawn []Card
	for i := 0; i < n; i++ {
		c, ok := g.drawOne()
		if !ok {
			break
		}
		g.hands[ppos] = append(g.hands[ppos], c)
		drawn = append(drawn, c)
	}

	g.penalty = 0
	g.advance(false)
	return drawn, nil
}

func (g *Game) advance(skip bool) {
	n := len(g.hands)
	g.turn = (g.turn + 1) % n
	if skip {
		g.turn = (g.turn + 1) % n
	}
}

// RemovePlayer compacts the game after the player at ppos left
// mid-game. Their cards drop out of circulation; positions above ppos
// shift down by one and the turn pointer follows.
func (g *Game) RemovePlayer(ppos int) {
	if ppos < 0 || ppos >= len(g.hands) {
		return
	}
	if g.turn > ppos {
		g.turn--
	}
	g.hands = append(g.hands[:ppos], g.hands[ppos+1:]...)
	if len(g.hands) == 0 {
		g.turn = 0
	} else if g.turn >= len(g.hands) {
		g.turn = 0
	}
}

// Stop marks the game as no longer accepting moves. Used when a room
// falls below two players and the game is resolved outside the engine.
func (g *Game) Stop() { g.running = false }

// Running reports whether the game was started and not stopped. A won
// game still runs; callers gate on Ended as well.
func (g *Game) Running() bool { return g.running }

// Ended reports whether some hand emptied on the most recent play.
func (g *Game) Ended() bool { return g.ended }

// Turn returns the position whose move it is.
func (g *Game) Turn() int { return g.turn }

// Top returns the card on top of the discard pile.
func (g *Game) Top() Card { return g.top }

// ActiveSuit returns the letter of the suit the next card must match,
// or 0 before the starting top is picked.
func (g *Game) ActiveSuit() byte { return g.active }

// Penalty returns the accumulated seven-penalty.
func (g *Game) Penalty() int { return g.penalty }

// Players returns the number of positions still in the game.
func (g *Game) Players() int { return len(g.hands) }

// Hand returns the live hand at ppos. Callers must not retain it
// across further moves.
func (g *Game) Hand(ppos int) []Card { return g.hands[ppos] }

// DeckLen returns the number of cards left to draw before a refill.
func (g *Game) DeckLen() int { return len(g.deck) }

// String summarizes the game for logs.
func (g *Game) String() string {
	return fmt.Sprintf("top=%s active=%c penalty=%d turn=%d deck=%d discard=%d",
		g.top, g.active, g.penalty, g.turn, len(g.deck), len(g.discard))
}
