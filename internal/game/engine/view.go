package engine

import (
	"SobeSobe/internal/game/scoring"
	"SobeSobe/internal/game/table"
)

// RoundView is the public part of a round; the stock and discards stay
// hidden.
type RoundView struct {
	ID                         string      `json:"id"`
	Number                     int         `json:"number"`
	DealerPosition             int         `json:"dealerPosition"`
	PartyPosition              int         `json:"partyPosition"`
	OpeningSeen                bool        `json:"openingSeen"`
	Trump                      *table.Suit `json:"trump,omitempty"`
	TrumpSelectedBeforeDealing bool        `json:"trumpSelectedBeforeDealing"`
	TrickValue                 int         `json:"trickValue"`
	CurrentTrickNumber         int         `json:"currentTrickNumber"`
	Phase                      table.Phase `json:"phase"`
	SittingOut                 []int       `json:"sittingOut"`
	Cancelled                  bool        `json:"cancelled"`
	StockCount                 int         `json:"stockCount"`
}

// HandSummary is what everyone may know about another player's hand.
type HandSummary struct {
	Position  int            `json:"position"`
	PlayerID  string         `json:"playerId"`
	Decision  table.Decision `json:"decision"`
	CardCount int            `json:"cardCount"`
	Exchanged bool           `json:"exchanged"`
	TricksWon int            `json:"tricksWon"`
}

type View struct {
	Game      *table.Game        `json:"game"`
	Round     *RoundView         `json:"round,omitempty"`
	Hand      *table.Hand        `json:"hand,omitempty"`
	Hands     []HandSummary      `json:"hands,omitempty"`
	Tricks    []*table.Trick     `json:"tricks,omitempty"`
	Turn      *int               `json:"turn,omitempty"`
	MustPlay  bool               `json:"mustPlay"`
	Standings []scoring.Standing `json:"standings"`
}

func (e *Engine) view(snap *snapshot, user string) (*View, error) {
	g := snap.game
	p, ok := g.PlayerByUser(user)
	if !ok {
		return nil, ErrNotSeated
	}
	v := &View{Game: g, Standings: scoring.Standings(g.Players, e.Machine.Rules.BuyIn)}

	s := snap.state
	if s == nil {
		return v, nil
	}
	r := s.Round
	v.Round = &RoundView{
		ID:                         r.ID,
		Number:                     r.Number,
		DealerPosition:             r.DealerPosition,
		PartyPosition:              r.PartyPosition,
		OpeningSeen:                s.OpeningSeen(),
		Trump:                      r.Trump,
		TrumpSelectedBeforeDealing: r.TrumpSelectedBeforeDealing,
		TrickValue:                 r.TrickValue,
		CurrentTrickNumber:         r.CurrentTrickNumber,
		Phase:                      r.Phase,
		SittingOut:                 r.SittingOut,
		Cancelled:                  r.Cancelled,
		StockCount:                 len(r.Stock),
	}
	v.Tricks = s.Tricks
	for _, h := range s.HandList() {
		v.Hands = append(v.Hands, HandSummary{
			Position:  h.Position,
			PlayerID:  h.PlayerID,
			Decision:  h.Decision,
			CardCount: len(h.Cards),
			Exchanged: h.Exchanged,
			TricksWon: h.TricksWon,
		})
	}
	if h, ok := s.Hands[p.Position]; ok {
		v.Hand = h
	}
	if turn, ok := s.Turn(); ok {
		v.Turn = &turn
	}
	if r.Phase == table.PhasePlayerDecisions && v.Hand != nil && v.Hand.Decision == table.Undecided {
		v.MustPlay = e.Machine.MustPlay(s, p.Position)
	}
	return v, nil
}
