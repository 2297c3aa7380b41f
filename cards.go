// Card Definitions and Text Encoding
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

// Card is one of the 32 cards of a German-suited deck, encoded as a
// single integer in [0, 32). The suit is c/8, the rank c%8.
type Card uint8

// DeckSize is the number of distinct cards in play.
const DeckSize = 32

// Suit of a card. The wire letters are S, H, D and C.
type Suit uint8

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

// Rank of a card, from Seven up to Ace. Ten is written 'X' on the wire
// so every card stays exactly two characters.
type Rank uint8

const (
	Seven Rank = iota
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

var (
	suitChars = [...]byte{'S', 'H', 'D', 'C'}
	rankChars = [...]byte{'7', '8', '9', 'X', 'J', 'Q', 'K', 'A'}
)

// Suit returns the suit of the card.
func (c Card) Suit() Suit { return Suit(c / 8) }

// Rank returns the rank of the card.
func (c Card) Rank() Rank { return Rank(c % 8) }

// Valid reports whether c encodes one of the 32 cards.
func (c Card) Valid() bool { return c < DeckSize }

// Byte returns the wire letter of the suit.
func (s Suit) Byte() byte { return suitChars[s] }

// Byte returns the wire letter of the rank.
func (r Rank) Byte() byte { return rankChars[r] }

// String renders the two-character wire form, suit letter first:
// "SA" is the ace of spades, "HX" the ten of hearts.
func (c Card) String() string {
	if !c.Valid() {
		return "??"
	}
	return string([]byte{c.Suit().Byte(), c.Rank().Byte()})
}

// ParseCard decodes the two-character wire form produced by String.
func ParseCard(s string) (Card, bool) {
	if len(s) != 2 {
		return 0, false
	}
	su := suitIndex(s[0])
	ra := rankIndex(s[1])
	if su < 0 || ra < 0 {
		return 0, false
	}
	return Card(su*8 + ra), true
}

func suitIndex(b byte) int {
	for i, c := range suitChars {
		if c == b {
			return i
		}
	}
	return -1
}

func rankIndex(b byte) int {
	for i, c := range rankChars {
		if c == b {
			return i
		}
	}
	return -1
}
