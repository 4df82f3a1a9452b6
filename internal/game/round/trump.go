package round

import (
	"fmt"

	"SobeSobe/internal/game/dealer"
	"SobeSobe/internal/game/gameerr"
	"SobeSobe/internal/game/table"
)

var (
	ErrNotPartyPlayer         = gameerr.Rule("NotPartyPlayer", "only the party player selects trump")
	ErrBlindTrumpMustBeHearts = gameerr.Rule("BlindTrumpMustBeHearts", "trump chosen before dealing must be hearts")
	ErrCardsAlreadySeen       = gameerr.Rule("CardsAlreadySeen", "trump cannot be chosen blind after looking at the cards")
	ErrOpeningNotSeen         = gameerr.Rule("OpeningNotSeen", "look at the opening cards before choosing trump after dealing")
	ErrAlreadyLooked          = gameerr.Conflict("AlreadyLooked", "the opening cards are already dealt")
)

// TrickValue is what each trick is worth for the chosen trump. Choosing
// before seeing any cards doubles it.
func TrickValue(s table.Suit, beforeDealing bool) (int, error) {
	var base int
	switch s {
	case table.Hearts:
		base = 2
	case table.Diamonds, table.Clubs, table.Spades:
		base = 1
	default:
		return 0, table.ErrInvalidSuit
	}
	if beforeDealing {
		return base * 2, nil
	}
	return base, nil
}

// Look deals the opening cards to every player, starting after the dealer,
// so the party player can choose trump after seeing them. It gives up the
// blind bonus for the round.
func (m *Machine) Look(s *State, position int) error {
	r := s.Round
	if r.Phase != table.PhaseTrumpSelection {
		return ErrWrongPhase
	}
	if position != r.PartyPosition {
		return ErrNotPartyPlayer
	}
	if s.OpeningSeen() {
		return ErrAlreadyLooked
	}
	positions := s.Positions()
	dealt, stock, err := dealer.Deal(r.Stock, positions, r.DealerPosition, m.Rules.OpeningCards)
	if err != nil {
		return fmt.Errorf("round %d: %w", r.Number, err)
	}
	for _, pos := range positions {
		s.Hands[pos].Cards = append(s.Hands[pos].Cards, dealt[pos]...)
	}
	r.Stock = stock
	return nil
}

// SelectTrump records the party player's trump. A blind choice deals the
// rest of the cards to everyone at once; otherwise players decide whether
// to play.
func (m *Machine) SelectTrump(s *State, position int, suit table.Suit, beforeDealing bool) error {
	r := s.Round
	if r.Phase != table.PhaseTrumpSelection {
		return ErrWrongPhase
	}
	if position != r.PartyPosition {
		return ErrNotPartyPlayer
	}
	if !suit.Valid() {
		return table.ErrInvalidSuit
	}
	if beforeDealing && suit != table.Hearts {
		return ErrBlindTrumpMustBeHearts
	}
	switch seen := s.OpeningSeen(); {
	case beforeDealing && seen:
		return ErrCardsAlreadySeen
	case !beforeDealing && !seen:
		return ErrOpeningNotSeen
	}
	tv, err := TrickValue(suit, beforeDealing)
	if err != nil {
		return err
	}

	r.Trump = &suit
	r.TrumpSelectedBeforeDealing = beforeDealing
	r.TrickValue = tv

	if !beforeDealing {
		return r.Advance(table.PhasePlayerDecisions)
	}

	if err := r.Advance(table.PhaseDealing); err != nil {
		return err
	}
	for _, h := range s.Hands {
		h.Decision = table.Play
		if p, ok := s.Game.PlayerAt(h.Position); ok {
			p.ConsecutiveRoundsOut = 0
		}
	}
	return m.dealRemaining(s)
}

// dealRemaining tops every committed hand up to the hand size from the
// round's stock and opens the exchange window.
func (m *Machine) dealRemaining(s *State) error {
	r := s.Round
	if h, ok := s.Hands[r.DealerPosition]; !ok || h.Decision != table.Play {
		return ErrCommitMissing
	}
	if h, ok := s.Hands[r.PartyPosition]; !ok || h.Decision != table.Play {
		return ErrCommitMissing
	}

	positions := s.Positions()
	held := len(s.Hands[positions[0]].Cards)
	for _, pos := range positions {
		if len(s.Hands[pos].Cards) != held {
			return ErrInconsistentDeal
		}
	}

	dealt, stock, err := dealer.Deal(r.Stock, positions, r.DealerPosition, m.Rules.HandSize-held)
	if err != nil {
		return fmt.Errorf("round %d: %w", r.Number, err)
	}
	for _, pos := range positions {
		s.Hands[pos].Cards = append(s.Hands[pos].Cards, dealt[pos]...)
	}
	r.Stock = stock
	return r.Advance(table.PhaseCardExchange)
}
