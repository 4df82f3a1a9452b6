package round

import (
	"fmt"

	"SobeSobe/internal/game/gameerr"
	"SobeSobe/internal/game/table"
	"SobeSobe/internal/game/trick"
)

var (
	ErrTooManyCards              = gameerr.Validation("TooManyCards", "at most 3 cards may be exchanged")
	ErrDuplicateCards            = gameerr.Validation("DuplicateCards", "the same card was listed twice")
	ErrAceOfTrumpNotExchangeable = gameerr.Rule("AceOfTrumpNotExchangeable", "the ace of trump cannot be exchanged")
	ErrAlreadyExchanged          = gameerr.Conflict("AlreadyExchanged", "cards already exchanged this round")
)

// Exchange swaps up to MaxExchange cards for replacements drawn from the
// reshuffled stock. The stock never holds a card that was dealt this round,
// so replacements cannot duplicate anything held, played or discarded.
func (m *Machine) Exchange(s *State, position int, discard []table.Card) (*table.Hand, []table.Card, error) {
	r := s.Round
	if r.Phase != table.PhaseCardExchange {
		return nil, nil, ErrWrongPhase
	}
	h, ok := s.Hands[position]
	if !ok {
		return nil, nil, ErrNotInRound
	}
	if len(discard) > m.Rules.MaxExchange {
		return nil, nil, ErrTooManyCards
	}
	seen := make(map[table.Card]bool, len(discard))
	for _, c := range discard {
		if seen[c] {
			return nil, nil, ErrDuplicateCards
		}
		seen[c] = true
	}
	if len(discard) == 0 {
		return h, nil, nil
	}
	if h.Exchanged {
		return nil, nil, ErrAlreadyExchanged
	}

	ace, _ := r.AceOfTrump()
	for _, c := range discard {
		if !table.Contains(h.Cards, c) {
			return nil, nil, fmt.Errorf("%s: %w", c, trick.ErrNotInHand)
		}
		if c == ace {
			return nil, nil, ErrAceOfTrumpNotExchangeable
		}
	}

	drawn, stock, err := m.Dealer.Draw(r.Stock, len(discard))
	if err != nil {
		return nil, nil, fmt.Errorf("round %d exchange: %w", r.Number, err)
	}
	cards := h.Cards
	for _, c := range discard {
		cards, _ = table.RemoveCard(cards, c)
	}
	h.Cards = append(cards, drawn...)
	h.Exchanged = true
	r.Stock = stock
	r.Discards = append(r.Discards, discard...)
	return h, drawn, nil
}
