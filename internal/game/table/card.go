package table

import (
	"fmt"
	"strings"

	"SobeSobe/internal/game/gameerr"
)

var (
	ErrInvalidSuit = gameerr.Validation("InvalidSuit", "unknown suit")
	ErrInvalidRank = gameerr.Validation("InvalidRank", "unknown rank")
	ErrInvalidCard = gameerr.Validation("InvalidCard", "card must look like 7H, AS, KD")
)

type Suit int

const (
	Hearts Suit = iota
	Diamonds
	Clubs
	Spades
)

// Suits lists the four suits in deck order.
var Suits = []Suit{Hearts, Diamonds, Clubs, Spades}

type Rank int

// Ranks are declared weakest first so that the zero value is never a card.
const (
	Two Rank = iota + 1
	Three
	Four
	Five
	Six
	Jack
	Queen
	King
	Seven
	Ace
)

// Ranks lists the ten ranks of the 40-card deck, strongest first.
var Ranks = []Rank{Ace, Seven, King, Queen, Jack, Six, Five, Four, Three, Two}

// RankValue is the trick strength of a rank: Ace=10, 7=9, K=8 ... 2=1.
func RankValue(r Rank) int {
	switch r {
	case Ace:
		return 10
	case Seven:
		return 9
	case King:
		return 8
	case Queen:
		return 7
	case Jack:
		return 6
	case Six:
		return 5
	case Five:
		return 4
	case Four:
		return 3
	case Three:
		return 2
	case Two:
		return 1
	default:
		return 0
	}
}

func (s Suit) Valid() bool { return s >= Hearts && s <= Spades }
func (r Rank) Valid() bool { return r >= Two && r <= Ace }

func (s Suit) String() string {
	switch s {
	case Hearts:
		return "hearts"
	case Diamonds:
		return "diamonds"
	case Clubs:
		return "clubs"
	case Spades:
		return "spades"
	default:
		return "?"
	}
}

func (s Suit) letter() string {
	switch s {
	case Hearts:
		return "H"
	case Diamonds:
		return "D"
	case Clubs:
		return "C"
	case Spades:
		return "S"
	default:
		return "?"
	}
}

func (r Rank) String() string {
	switch r {
	case Ace:
		return "A"
	case Seven:
		return "7"
	case King:
		return "K"
	case Queen:
		return "Q"
	case Jack:
		return "J"
	case Six:
		return "6"
	case Five:
		return "5"
	case Four:
		return "4"
	case Three:
		return "3"
	case Two:
		return "2"
	default:
		return "?"
	}
}

func ParseSuit(s string) (Suit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hearts", "h":
		return Hearts, nil
	case "diamonds", "d":
		return Diamonds, nil
	case "clubs", "c":
		return Clubs, nil
	case "spades", "s":
		return Spades, nil
	}
	return 0, fmt.Errorf("%q: %w", s, ErrInvalidSuit)
}

func ParseRank(s string) (Rank, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A", "ACE":
		return Ace, nil
	case "7":
		return Seven, nil
	case "K", "KING":
		return King, nil
	case "Q", "QUEEN":
		return Queen, nil
	case "J", "JACK":
		return Jack, nil
	case "6":
		return Six, nil
	case "5":
		return Five, nil
	case "4":
		return Four, nil
	case "3":
		return Three, nil
	case "2":
		return Two, nil
	}
	return 0, fmt.Errorf("%q: %w", s, ErrInvalidRank)
}

func (s Suit) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, ErrInvalidSuit
	}
	return []byte(s.String()), nil
}

func (s *Suit) UnmarshalText(b []byte) error {
	v, err := ParseSuit(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Card is an immutable value; two cards are equal when suit and rank match.
type Card struct {
	Suit Suit
	Rank Rank
}

func NewCard(r Rank, s Suit) Card { return Card{Suit: s, Rank: r} }

func (c Card) Valid() bool { return c.Suit.Valid() && c.Rank.Valid() }

// String renders the compact form used on the wire, e.g. "7H" or "AS".
func (c Card) String() string {
	return c.Rank.String() + c.Suit.letter()
}

// ParseCard reads the compact form produced by Card.String.
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return Card{}, fmt.Errorf("%q: %w", s, ErrInvalidCard)
	}
	r, err := ParseRank(s[:len(s)-1])
	if err != nil {
		return Card{}, err
	}
	su, err := ParseSuit(s[len(s)-1:])
	if err != nil {
		return Card{}, err
	}
	return Card{Suit: su, Rank: r}, nil
}

// ParseCards parses every entry and rejects duplicates.
func ParseCards(in []string) ([]Card, error) {
	out := make([]Card, 0, len(in))
	seen := make(map[Card]bool, len(in))
	for _, s := range in {
		c, err := ParseCard(s)
		if err != nil {
			return nil, err
		}
		if seen[c] {
			return nil, fmt.Errorf("duplicate card %s: %w", c, ErrInvalidCard)
		}
		seen[c] = true
		out = append(out, c)
	}
	return out, nil
}

func (c Card) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, ErrInvalidCard
	}
	return []byte(c.String()), nil
}

func (c *Card) UnmarshalText(b []byte) error {
	v, err := ParseCard(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// AceOf returns the ace of the given suit.
func AceOf(s Suit) Card { return Card{Suit: s, Rank: Ace} }

// Contains reports whether cards holds c.
func Contains(cards []Card, c Card) bool {
	for _, x := range cards {
		if x == c {
			return true
		}
	}
	return false
}

// HasSuit reports whether any card is of suit s.
func HasSuit(cards []Card, s Suit) bool {
	for _, c := range cards {
		if c.Suit == s {
			return true
		}
	}
	return false
}

// RemoveCard returns cards without the first occurrence of c, and whether
// it was found. The input slice is not modified.
func RemoveCard(cards []Card, c Card) ([]Card, bool) {
	for i, x := range cards {
		if x == c {
			out := make([]Card, 0, len(cards)-1)
			out = append(out, cards[:i]...)
			return append(out, cards[i+1:]...), true
		}
	}
	return cards, false
}
