// Package scoring turns finished rounds into point changes. Points count
// down: the first player to reach zero ends the game and the lowest total
// wins.
package scoring

import (
	"fmt"
	"sort"

	"SobeSobe/internal/game/gameerr"
	"SobeSobe/internal/game/table"
)

var ErrInvalidTrickValue = gameerr.Internal("InvalidTrickValue", "trick value must be 1, 2 or 4")

// Delta is the change owed by one player for one round.
type Delta struct {
	PlayerID  string            `json:"playerId"`
	Position  int               `json:"position"`
	TricksWon int               `json:"tricksWon"`
	Change    int               `json:"change"`
	Reason    table.ScoreReason `json:"reason"`
}

// Penalty is the base penalty for taking no tricks at the given trick value.
func Penalty(trickValue int) (int, error) {
	switch trickValue {
	case 1:
		return 5, nil
	case 2:
		return 10, nil
	case 4:
		return 20, nil
	default:
		return 0, fmt.Errorf("trick value %d: %w", trickValue, ErrInvalidTrickValue)
	}
}

// ScoreRound computes the delta of every hand that played the round, in
// position order. The party player's no-trick penalty is doubled.
func ScoreRound(r *table.Round, hands []*table.Hand) ([]Delta, error) {
	penalty, err := Penalty(r.TrickValue)
	if err != nil {
		return nil, err
	}

	sorted := append([]*table.Hand(nil), hands...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	out := make([]Delta, 0, len(sorted))
	for _, h := range sorted {
		d := Delta{PlayerID: h.PlayerID, Position: h.Position, TricksWon: h.TricksWon}
		switch {
		case h.TricksWon > 0:
			d.Change = -h.TricksWon * r.TrickValue
			d.Reason = table.ReasonTricksWon
		case h.Position == r.PartyPosition:
			d.Change = 2 * penalty
			d.Reason = table.ReasonNoTricksPartyPenalty
		default:
			d.Change = penalty
			d.Reason = table.ReasonNoTricksNormalPenalty
		}
		out = append(out, d)
	}
	return out, nil
}

// GameOver reports whether any active player is at or below zero.
func GameOver(players []*table.Player) bool {
	for _, p := range players {
		if p.IsActive && p.Points <= 0 {
			return true
		}
	}
	return false
}

// Winner is the active player with the fewest points; ties go to the lower
// position.
func Winner(players []*table.Player) (*table.Player, bool) {
	var best *table.Player
	for _, p := range players {
		if !p.IsActive {
			continue
		}
		if best == nil || p.Points < best.Points || (p.Points == best.Points && p.Position < best.Position) {
			best = p
		}
	}
	return best, best != nil
}

// Standing is a display row of the final table.
type Standing struct {
	PlayerID string `json:"playerId"`
	UserID   string `json:"userId"`
	Position int    `json:"position"`
	Points   int    `json:"points"`
	Rank     int    `json:"rank"`
	Prize    int    `json:"prize"`
}

// Standings ranks active players by points ascending. The pot (buyIn for
// every ranked player) is split between the players tied for first, any
// remainder going to the lowest position. It is derived for display only.
func Standings(players []*table.Player, buyIn int) []Standing {
	out := make([]Standing, 0, len(players))
	for _, p := range players {
		if !p.IsActive {
			continue
		}
		out = append(out, Standing{PlayerID: p.ID, UserID: p.UserID, Position: p.Position, Points: p.Points})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points < out[j].Points
		}
		return out[i].Position < out[j].Position
	})

	for i := range out {
		if i > 0 && out[i].Points == out[i-1].Points {
			out[i].Rank = out[i-1].Rank
		} else {
			out[i].Rank = i + 1
		}
	}

	winners := 0
	for _, s := range out {
		if s.Rank == 1 {
			winners++
		}
	}
	if winners == 0 || buyIn <= 0 {
		return out
	}
	pot := buyIn * len(out)
	share, rest := pot/winners, pot%winners
	for i := 0; i < winners; i++ {
		out[i].Prize = share
		if i == 0 {
			out[i].Prize += rest
		}
	}
	return out
}
