package round

import (
	"SobeSobe/internal/game/gameerr"
	"SobeSobe/internal/game/table"
)

var (
	ErrAlreadyDecided     = gameerr.Conflict("AlreadyDecided", "decision already made this round")
	ErrPartyMustPlay      = gameerr.Rule("PartyMustPlay", "the party player must play")
	ErrDealerMustPlay     = gameerr.Rule("DealerMustPlay", "the dealer must play")
	ErrClubsEveryonePlays = gameerr.Rule("ClubsEveryonePlays", "with clubs as trump everyone must play")
	ErrSitOutLimit        = gameerr.Rule("SitOutLimitReached", "cannot sit out more consecutive rounds")
	ErrLowPointsMustPlay  = gameerr.Rule("LowPointsMustPlay", "players at 5 points or fewer must play")
)

// Decide records whether the player at position plays this round. Once the
// last player has decided the remaining cards are dealt; dealt reports it.
func (m *Machine) Decide(s *State, position int, play bool) (dealt bool, err error) {
	r := s.Round
	if r.Phase != table.PhasePlayerDecisions {
		return false, ErrWrongPhase
	}
	h, ok := s.Hands[position]
	if !ok {
		if r.IsSittingOut(position) {
			return false, ErrAlreadyDecided
		}
		return false, ErrNotInRound
	}
	if h.Decision != table.Undecided {
		return false, ErrAlreadyDecided
	}
	p, err := m.player(s, position)
	if err != nil {
		return false, err
	}

	if play {
		h.Decision = table.Play
		p.ConsecutiveRoundsOut = 0
	} else {
		if err := m.canSitOut(r, p); err != nil {
			return false, err
		}
		r.Discards = append(r.Discards, h.Cards...)
		r.SittingOut = append(r.SittingOut, position)
		delete(s.Hands, position)
		s.Removed = append(s.Removed, h)
		p.ConsecutiveRoundsOut++
	}

	for _, other := range s.Hands {
		if other.Decision == table.Undecided {
			return false, nil
		}
	}
	if err := m.dealRemaining(s); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Machine) canSitOut(r *table.Round, p *table.Player) error {
	switch {
	case p.Position == r.PartyPosition:
		return ErrPartyMustPlay
	case p.Position == r.DealerPosition:
		return ErrDealerMustPlay
	case r.Trump != nil && *r.Trump == table.Clubs:
		return ErrClubsEveryonePlays
	case p.ConsecutiveRoundsOut >= m.Rules.SitOutLimit:
		return ErrSitOutLimit
	case p.Points <= m.Rules.LowPointsThreshold:
		return ErrLowPointsMustPlay
	}
	return nil
}

// MustPlay reports whether the player at position is forced to play.
func (m *Machine) MustPlay(s *State, position int) bool {
	p, ok := s.Game.PlayerAt(position)
	if !ok {
		return false
	}
	return m.canSitOut(s.Round, p) != nil
}
