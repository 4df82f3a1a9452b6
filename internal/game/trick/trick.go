// Package trick decides which cards may be played into a trick and who
// takes it.
package trick

import (
	"SobeSobe/internal/game/gameerr"
	"SobeSobe/internal/game/table"
)

var (
	ErrNotInHand             = gameerr.Rule("NotInHand", "card is not in hand")
	ErrMustLeadAceOfTrump    = gameerr.Rule("MustLeadAceOfTrump", "holding the ace of trump, you must lead it")
	ErrMustFollowSuit        = gameerr.Rule("MustFollowSuit", "you must follow the lead suit")
	ErrMustCutWithTrump      = gameerr.Rule("MustCutWithTrump", "without the lead suit you must play trump")
	ErrMustEscalateTrump     = gameerr.Rule("MustEscalateTrump", "you must beat the highest trump played")
	ErrMustCutWithAceOfTrump = gameerr.Rule("MustCutWithAceOfTrump", "holding the ace of trump, you must cut with it")
	ErrEmptyTrick            = gameerr.Internal("EmptyTrick", "no cards in trick")
	ErrNoLeadSuitCard        = gameerr.Internal("NoLeadSuitCard", "trick holds neither trump nor the lead suit")
)

// Validate checks that card may be played from hand onto played. played is
// in play order; played[0] is the lead card.
func Validate(card table.Card, hand []table.Card, played []table.Card, trump table.Suit) error {
	if !table.Contains(hand, card) {
		return ErrNotInHand
	}
	ace := table.AceOf(trump)
	holdsAce := table.Contains(hand, ace)

	if len(played) == 0 {
		if holdsAce && card != ace {
			return ErrMustLeadAceOfTrump
		}
		return nil
	}

	lead := played[0].Suit
	if table.HasSuit(hand, lead) {
		if card.Suit != lead {
			return ErrMustFollowSuit
		}
		if lead == trump {
			return checkEscalation(card, hand, played, trump)
		}
		return nil
	}

	if table.HasSuit(hand, trump) {
		if card.Suit != trump {
			return ErrMustCutWithTrump
		}
		if holdsAce && card != ace {
			return ErrMustCutWithAceOfTrump
		}
		return nil
	}

	return nil
}

// checkEscalation applies when trump was led and the player follows with
// trump: a card able to beat the best trump on the table must be played if
// one is held.
func checkEscalation(card table.Card, hand []table.Card, played []table.Card, trump table.Suit) error {
	best := highestOfSuit(played, trump)
	if table.RankValue(card.Rank) > best {
		return nil
	}
	for _, c := range hand {
		if c.Suit == trump && table.RankValue(c.Rank) > best {
			return ErrMustEscalateTrump
		}
	}
	return nil
}

func highestOfSuit(cards []table.Card, s table.Suit) int {
	best := 0
	for _, c := range cards {
		if c.Suit == s && table.RankValue(c.Rank) > best {
			best = table.RankValue(c.Rank)
		}
	}
	return best
}

// LegalCards returns the cards of hand that Validate accepts, in hand order.
func LegalCards(hand []table.Card, played []table.Card, trump table.Suit) []table.Card {
	out := make([]table.Card, 0, len(hand))
	for _, c := range hand {
		if Validate(c, hand, played, trump) == nil {
			out = append(out, c)
		}
	}
	return out
}

// Winner returns the card that takes the trick: the highest trump if any
// trump was played, otherwise the highest card of the lead suit. The result
// does not depend on the order of cards.
func Winner(cards []table.PlayedCard, lead, trump table.Suit) (table.PlayedCard, error) {
	if len(cards) == 0 {
		return table.PlayedCard{}, ErrEmptyTrick
	}
	target := lead
	for _, pc := range cards {
		if pc.Card.Suit == trump {
			target = trump
			break
		}
	}

	var (
		best  table.PlayedCard
		value int
	)
	for _, pc := range cards {
		if pc.Card.Suit != target {
			continue
		}
		if v := table.RankValue(pc.Card.Rank); v > value {
			best, value = pc, v
		}
	}
	if value == 0 {
		return table.PlayedCard{}, ErrNoLeadSuitCard
	}
	return best, nil
}

// TurnOrder is the play order of a trick: active positions ascending from
// the lead, wrapping from the highest back to the lowest.
func TurnOrder(lead int, positions []int) []int {
	return table.Rotation(lead, positions)
}

// NextToPlay returns whose turn it is in t given the active positions, or
// false once everyone has played.
func NextToPlay(t *table.Trick, positions []int) (int, bool) {
	for _, pos := range TurnOrder(t.LeadPosition, positions) {
		if !t.HasPlayed(pos) {
			return pos, true
		}
	}
	return 0, false
}
