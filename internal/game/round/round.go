// Package round runs a single deal from trump selection to scoring. It works
// on an in-memory State and never touches storage; the caller decides
// whether the mutated state is committed.
package round

import (
	"sort"
	"time"

	"SobeSobe/internal/game/dealer"
	"SobeSobe/internal/game/gameerr"
	"SobeSobe/internal/game/table"
	"SobeSobe/internal/game/trick"
)

var (
	ErrWrongPhase       = gameerr.Conflict("WrongPhase", "operation not allowed in the current phase")
	ErrNotInRound       = gameerr.Rule("NotInRound", "player holds no hand this round")
	ErrNotYourTurn      = gameerr.Rule("NotYourTurn", "it is not your turn")
	ErrTooFewPlayers    = gameerr.Conflict("TooFewPlayers", "a round needs at least two active players")
	ErrCommitMissing    = gameerr.Internal("CommitMissing", "dealer and party player must play before dealing")
	ErrInconsistentDeal = gameerr.Internal("InconsistentDeal", "hands hold different numbers of cards")
)

// State is everything one intent may change. Removed and Scores collect
// what the intent deleted or appended so the caller can persist them.
type State struct {
	Game    *table.Game
	Round   *table.Round
	Hands   map[int]*table.Hand
	Tricks  []*table.Trick
	Removed []*table.Hand
	Scores  []table.ScoreEntry
}

// Clone deep-copies s; Removed and Scores start empty.
func (s *State) Clone() *State {
	out := &State{
		Game:  s.Game.Clone(),
		Round: s.Round.Clone(),
		Hands: make(map[int]*table.Hand, len(s.Hands)),
	}
	for pos, h := range s.Hands {
		out.Hands[pos] = h.Clone()
	}
	for _, t := range s.Tricks {
		out.Tricks = append(out.Tricks, t.Clone())
	}
	return out
}

// OpeningSeen reports whether the opening cards of the round have been
// dealt, i.e. whether the party player has seen any card.
func (s *State) OpeningSeen() bool {
	h, ok := s.Hands[s.Round.PartyPosition]
	return ok && len(h.Cards) > 0
}

// Positions returns the ascending positions holding a hand this round.
func (s *State) Positions() []int {
	out := make([]int, 0, len(s.Hands))
	for pos := range s.Hands {
		out = append(out, pos)
	}
	sort.Ints(out)
	return out
}

// HandList returns the hands ordered by position.
func (s *State) HandList() []*table.Hand {
	out := make([]*table.Hand, 0, len(s.Hands))
	for _, pos := range s.Positions() {
		out = append(out, s.Hands[pos])
	}
	return out
}

// OpenTrick returns the trick in progress, if a card has been played into
// it and it is not complete.
func (s *State) OpenTrick() (*table.Trick, bool) {
	if n := len(s.Tricks); n > 0 && !s.Tricks[n-1].Completed() {
		return s.Tricks[n-1], true
	}
	return nil, false
}

// NextLead is the lead of the next trick to be opened: the party player for
// the first trick, then the winner of the previous one.
func (s *State) NextLead() int {
	if n := len(s.Tricks); n > 0 && s.Tricks[n-1].WinnerPosition != nil {
		return *s.Tricks[n-1].WinnerPosition
	}
	return s.Round.PartyPosition
}

// Turn reports whose card is expected next while the round is in play.
func (s *State) Turn() (int, bool) {
	switch s.Round.Phase {
	case table.PhaseCardExchange, table.PhasePlaying:
	default:
		return 0, false
	}
	if t, ok := s.OpenTrick(); ok {
		return trick.NextToPlay(t, s.Positions())
	}
	return s.NextLead(), true
}

// Machine applies round transitions under a fixed rule set.
type Machine struct {
	Rules  table.Rules
	Dealer *dealer.Dealer
	NewID  func() string
	Now    func() time.Time
}

// NewRound shuffles a fresh deck into the stock and waits for trump
// selection. Hands start empty: nobody holds a card until the party player
// either picks blind or looks at the opening cards.
func (m *Machine) NewRound(g *table.Game, number, dealerPosition int) (*State, error) {
	positions := g.ActivePositions()
	if len(positions) < 2 {
		return nil, ErrTooFewPlayers
	}
	party, _ := table.NextPosition(dealerPosition, positions)

	r := &table.Round{
		ID:             m.NewID(),
		GameID:         g.ID,
		Number:         number,
		DealerPosition: dealerPosition,
		PartyPosition:  party,
		Phase:          table.PhaseTrumpSelection,
		Stock:          m.Dealer.ShuffledDeck(),
		StartedAt:      m.Now(),
	}
	s := &State{Game: g, Round: r, Hands: make(map[int]*table.Hand, len(positions))}
	for _, pos := range positions {
		p, _ := g.PlayerAt(pos)
		s.Hands[pos] = &table.Hand{
			ID:       m.NewID(),
			RoundID:  r.ID,
			PlayerID: p.ID,
			Position: pos,
			Cards:    []table.Card{},
			Decision: table.Undecided,
		}
	}
	return s, nil
}

// NextDealer picks the dealer of the round after prev among the active
// positions.
func NextDealer(rotation table.DealerRotation, prev *table.Round, positions []int) (int, bool) {
	if rotation == table.RotateDealerSuccessor {
		return table.NextPosition(prev.DealerPosition, positions)
	}
	for _, p := range positions {
		if p == prev.PartyPosition {
			return p, true
		}
	}
	return table.NextPosition(prev.PartyPosition, positions)
}

// Cancel closes an interrupted round without scoring it.
func (m *Machine) Cancel(s *State) {
	if s.Round.Phase == table.PhaseCompleted {
		return
	}
	now := m.Now()
	s.Round.Cancelled = true
	s.Round.Phase = table.PhaseCompleted
	s.Round.CompletedAt = &now
}

func (m *Machine) player(s *State, position int) (*table.Player, error) {
	p, ok := s.Game.PlayerAt(position)
	if !ok || !p.IsActive {
		return nil, ErrNotInRound
	}
	return p, nil
}
