package table

import (
	"fmt"
	"time"
)

type Phase string

const (
	PhaseDealing         Phase = "dealing"
	PhaseTrumpSelection  Phase = "trump_selection"
	PhasePlayerDecisions Phase = "player_decisions"
	PhaseCardExchange    Phase = "card_exchange"
	PhasePlaying         Phase = "playing"
	PhaseCompleted       Phase = "completed"
)

func (p Phase) order() int {
	switch p {
	case PhaseTrumpSelection:
		return 0
	case PhaseDealing:
		return 1
	case PhasePlayerDecisions:
		return 2
	case PhaseCardExchange:
		return 3
	case PhasePlaying:
		return 4
	case PhaseCompleted:
		return 5
	default:
		return -1
	}
}

// Valid rejects tags that do not name a phase.
func (p Phase) Valid() bool { return p.order() >= 0 }

func (p *Phase) UnmarshalText(b []byte) error {
	v := Phase(b)
	if !v.Valid() {
		return fmt.Errorf("phase %q: %w", b, ErrInvalidTag)
	}
	*p = v
	return nil
}

// Round is one deal. Stock is the shuffled undealt remainder and Discards
// holds everything that left a hand without being played, so a card is
// never dealt twice in the same round.
type Round struct {
	ID                         string     `json:"id"`
	GameID                     string     `json:"gameId"`
	Number                     int        `json:"number"`
	DealerPosition             int        `json:"dealerPosition"`
	PartyPosition              int        `json:"partyPosition"`
	Trump                      *Suit      `json:"trump,omitempty"`
	TrumpSelectedBeforeDealing bool       `json:"trumpSelectedBeforeDealing"`
	TrickValue                 int        `json:"trickValue"`
	CurrentTrickNumber         int        `json:"currentTrickNumber"`
	Phase                      Phase      `json:"phase"`
	Stock                      []Card     `json:"stock"`
	Discards                   []Card     `json:"discards"`
	SittingOut                 []int      `json:"sittingOut"`
	Cancelled                  bool       `json:"cancelled"`
	StartedAt                  time.Time  `json:"startedAt"`
	CompletedAt                *time.Time `json:"completedAt,omitempty"`
}

// Advance moves the round to next. Phases only move forward.
func (r *Round) Advance(next Phase) error {
	if next.order() <= r.Phase.order() {
		return fmt.Errorf("round %d: %s -> %s: %w", r.Number, r.Phase, next, ErrPhaseRegression)
	}
	r.Phase = next
	return nil
}

// AceOfTrump returns the ace of the trump suit, if trump is chosen.
func (r *Round) AceOfTrump() (Card, bool) {
	if r.Trump == nil {
		return Card{}, false
	}
	return AceOf(*r.Trump), true
}

func (r *Round) IsSittingOut(position int) bool {
	for _, p := range r.SittingOut {
		if p == position {
			return true
		}
	}
	return false
}

func (r *Round) Clone() *Round {
	if r == nil {
		return nil
	}
	out := *r
	if r.Trump != nil {
		t := *r.Trump
		out.Trump = &t
	}
	out.Stock = append([]Card(nil), r.Stock...)
	out.Discards = append([]Card(nil), r.Discards...)
	out.SittingOut = append([]int(nil), r.SittingOut...)
	return &out
}

type Decision string

const (
	Undecided Decision = "undecided"
	Play      Decision = "play"
	SitOut    Decision = "sit_out"
)

func (d *Decision) UnmarshalText(b []byte) error {
	switch v := Decision(b); v {
	case Undecided, Play, SitOut:
		*d = v
		return nil
	}
	return fmt.Errorf("decision %q: %w", b, ErrInvalidTag)
}

// Hand is what one player holds during one round.
type Hand struct {
	ID        string   `json:"id"`
	RoundID   string   `json:"roundId"`
	PlayerID  string   `json:"playerId"`
	Position  int      `json:"position"`
	Cards     []Card   `json:"cards"`
	Decision  Decision `json:"decision"`
	Exchanged bool     `json:"exchanged"`
	TricksWon int      `json:"tricksWon"`
}

func (h *Hand) Clone() *Hand {
	if h == nil {
		return nil
	}
	out := *h
	out.Cards = append([]Card(nil), h.Cards...)
	return &out
}

type PlayedCard struct {
	Position int  `json:"position"`
	Card     Card `json:"card"`
}

type Trick struct {
	ID             string       `json:"id"`
	RoundID        string       `json:"roundId"`
	Number         int          `json:"number"`
	LeadPosition   int          `json:"leadPosition"`
	WinnerPosition *int         `json:"winnerPosition,omitempty"`
	Cards          []PlayedCard `json:"cards"`
}

// LeadSuit is the suit played by the lead player, if they have played.
func (t *Trick) LeadSuit() (Suit, bool) {
	for _, pc := range t.Cards {
		if pc.Position == t.LeadPosition {
			return pc.Card.Suit, true
		}
	}
	return 0, false
}

func (t *Trick) HasPlayed(position int) bool {
	for _, pc := range t.Cards {
		if pc.Position == position {
			return true
		}
	}
	return false
}

func (t *Trick) PlayedCards() []Card {
	out := make([]Card, len(t.Cards))
	for i, pc := range t.Cards {
		out[i] = pc.Card
	}
	return out
}

func (t *Trick) Completed() bool { return t.WinnerPosition != nil }

func (t *Trick) Clone() *Trick {
	if t == nil {
		return nil
	}
	out := *t
	if t.WinnerPosition != nil {
		w := *t.WinnerPosition
		out.WinnerPosition = &w
	}
	out.Cards = append([]PlayedCard(nil), t.Cards...)
	return &out
}

type ScoreReason string

const (
	ReasonGameStarted           ScoreReason = "GameStarted"
	ReasonTricksWon             ScoreReason = "TricksWon"
	ReasonNoTricksPartyPenalty  ScoreReason = "NoTricksPartyPenalty"
	ReasonNoTricksNormalPenalty ScoreReason = "NoTricksNormalPenalty"
)

// ScoreEntry is an append-only audit row.
type ScoreEntry struct {
	ID           string      `json:"id"`
	GameID       string      `json:"gameId"`
	PlayerID     string      `json:"playerId"`
	RoundID      string      `json:"roundId,omitempty"`
	PointsChange int         `json:"pointsChange"`
	PointsAfter  int         `json:"pointsAfter"`
	Reason       ScoreReason `json:"reason"`
	CreatedAt    time.Time   `json:"createdAt"`
}
