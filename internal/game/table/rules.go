package table

import "SobeSobe/internal/game/gameerr"

var (
	ErrPhaseRegression = gameerr.Internal("PhaseRegression", "round phases only move forward")
	ErrInvalidTag      = gameerr.Validation("InvalidTag", "unknown enum tag")
)

type DealerRotation string

const (
	// RotatePreviousParty hands the deal to the previous party player, or
	// to the next active seat after them when they have left.
	RotatePreviousParty DealerRotation = "previous-party"
	// RotateDealerSuccessor hands the deal to the next active seat after
	// the previous dealer.
	RotateDealerSuccessor DealerRotation = "dealer-successor"
)

// Rules carries the table constants. Only BuyIn and DealerRotation are
// expected to differ between deployments.
type Rules struct {
	StartingPoints     int
	MinPlayers         int
	MaxPlayers         int
	HandSize           int
	OpeningCards       int
	MaxExchange        int
	SitOutLimit        int
	LowPointsThreshold int
	Tricks             int
	BuyIn              int
	DealerRotation     DealerRotation
}

func DefaultRules() Rules {
	return Rules{
		StartingPoints:     20,
		MinPlayers:         2,
		MaxPlayers:         5,
		HandSize:           5,
		OpeningCards:       2,
		MaxExchange:        3,
		SitOutLimit:        2,
		LowPointsThreshold: 5,
		Tricks:             5,
		BuyIn:              0,
		DealerRotation:     RotatePreviousParty,
	}
}
