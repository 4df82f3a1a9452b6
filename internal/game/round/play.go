package round

import (
	"fmt"

	"SobeSobe/internal/game/scoring"
	"SobeSobe/internal/game/table"
	"SobeSobe/internal/game/trick"
)

// PlayResult describes what a single card caused.
type PlayResult struct {
	Trick          *table.Trick    `json:"trick"`
	TrickCompleted bool            `json:"trickCompleted"`
	Winner         int             `json:"winner"`
	RoundCompleted bool            `json:"roundCompleted"`
	Deltas         []scoring.Delta `json:"deltas,omitempty"`
	NextTurn       int             `json:"nextTurn"`
}

// PlayCard plays card for the player at position. The first card closes
// the exchange window. Completing a trick settles its winner and the fifth
// trick scores the round.
func (m *Machine) PlayCard(s *State, position int, card table.Card) (*PlayResult, error) {
	r := s.Round
	switch r.Phase {
	case table.PhaseCardExchange, table.PhasePlaying:
	default:
		return nil, ErrWrongPhase
	}
	h, ok := s.Hands[position]
	if !ok {
		return nil, ErrNotInRound
	}
	if r.Trump == nil {
		return nil, fmt.Errorf("round %d has no trump: %w", r.Number, ErrWrongPhase)
	}

	positions := s.Positions()
	t, open := s.OpenTrick()
	expected := s.NextLead()
	if open {
		expected, _ = trick.NextToPlay(t, positions)
	}
	if position != expected {
		return nil, ErrNotYourTurn
	}

	var played []table.Card
	if open {
		played = t.PlayedCards()
	}
	if err := trick.Validate(card, h.Cards, played, *r.Trump); err != nil {
		return nil, err
	}

	if r.Phase == table.PhaseCardExchange {
		if err := r.Advance(table.PhasePlaying); err != nil {
			return nil, err
		}
	}
	if !open {
		t = &table.Trick{
			ID:           m.NewID(),
			RoundID:      r.ID,
			Number:       r.CurrentTrickNumber + 1,
			LeadPosition: position,
		}
		s.Tricks = append(s.Tricks, t)
		r.CurrentTrickNumber = t.Number
	}

	h.Cards, _ = table.RemoveCard(h.Cards, card)
	t.Cards = append(t.Cards, table.PlayedCard{Position: position, Card: card})

	res := &PlayResult{Trick: t}
	if next, more := trick.NextToPlay(t, positions); more {
		res.NextTurn = next
		return res, nil
	}

	lead, _ := t.LeadSuit()
	win, err := trick.Winner(t.Cards, lead, *r.Trump)
	if err != nil {
		return nil, err
	}
	winner := win.Position
	t.WinnerPosition = &winner
	s.Hands[winner].TricksWon++
	res.TrickCompleted = true
	res.Winner = winner
	res.NextTurn = winner

	if t.Number < m.Rules.Tricks {
		return res, nil
	}

	deltas, err := m.score(s)
	if err != nil {
		return nil, err
	}
	res.RoundCompleted = true
	res.Deltas = deltas
	return res, nil
}

// score applies the round's deltas to the players, records them in the
// score history and completes the round.
func (m *Machine) score(s *State) ([]scoring.Delta, error) {
	r := s.Round
	deltas, err := scoring.ScoreRound(r, s.HandList())
	if err != nil {
		return nil, err
	}
	now := m.Now()
	for _, d := range deltas {
		p, ok := s.Game.PlayerByID(d.PlayerID)
		if !ok {
			return nil, fmt.Errorf("score player %s: %w", d.PlayerID, ErrNotInRound)
		}
		p.Points += d.Change
		s.Scores = append(s.Scores, table.ScoreEntry{
			ID:           m.NewID(),
			GameID:       s.Game.ID,
			PlayerID:     p.ID,
			RoundID:      r.ID,
			PointsChange: d.Change,
			PointsAfter:  p.Points,
			Reason:       d.Reason,
			CreatedAt:    now,
		})
	}
	if err := r.Advance(table.PhaseCompleted); err != nil {
		return nil, err
	}
	r.CompletedAt = &now
	return deltas, nil
}
