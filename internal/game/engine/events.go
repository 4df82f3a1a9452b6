package engine

import (
	"SobeSobe/internal/game/scoring"
	"SobeSobe/internal/game/table"
	"SobeSobe/internal/websocket"
)

// EventKind names a message pushed to players after a successful commit.
type EventKind string

const (
	EventPlayerJoined   EventKind = "player_joined"
	EventPlayerLeft     EventKind = "player_left"
	EventGameStarted    EventKind = "game_started"
	EventRoundStarted   EventKind = "round_started"
	EventTrumpSelected  EventKind = "trump_selected"
	EventPlayerDecided  EventKind = "player_decided"
	EventCardsDealt     EventKind = "cards_dealt"
	EventCardsExchanged EventKind = "cards_exchanged"
	EventCardPlayed     EventKind = "card_played"
	EventTrickCompleted EventKind = "trick_completed"
	EventRoundCompleted EventKind = "round_completed"
	EventRoundCancelled EventKind = "round_cancelled"
	EventGameCompleted  EventKind = "game_completed"
	EventGameAbandoned  EventKind = "game_abandoned"
	EventChat           EventKind = "chat"
	EventError          EventKind = "error"
)

// Event is queued while an intent runs and delivered only once its changes
// are committed. Recipients are user ids; empty means every active player.
// Except excludes one user from a broadcast.
type Event struct {
	Kind       EventKind
	Payload    any
	Recipients []string
	Except     string
}

func (ev Event) message(gameID string) websocket.OutgoingMessage {
	return websocket.OutgoingMessage{
		Event: string(ev.Kind),
		Data: map[string]any{
			"gameId":  gameID,
			"payload": ev.Payload,
		},
	}
}

type PlayerJoinedPayload struct {
	UserID   string `json:"userId"`
	PlayerID string `json:"playerId"`
	Position int    `json:"position"`
}

type PlayerLeftPayload struct {
	UserID   string `json:"userId"`
	Position int    `json:"position"`
}

type GameStartedPayload struct {
	Players []*table.Player `json:"players"`
}

type RoundStartedPayload struct {
	RoundID        string `json:"roundId"`
	Number         int    `json:"number"`
	DealerPosition int    `json:"dealerPosition"`
	PartyPosition  int    `json:"partyPosition"`
}

type TrumpSelectedPayload struct {
	Trump         table.Suit `json:"trump"`
	BeforeDealing bool       `json:"beforeDealing"`
	TrickValue    int        `json:"trickValue"`
}

type PlayerDecidedPayload struct {
	Position int            `json:"position"`
	Decision table.Decision `json:"decision"`
}

// CardsDealtPayload is private to the player it names.
type CardsDealtPayload struct {
	RoundID string       `json:"roundId"`
	Phase   table.Phase  `json:"phase"`
	Cards   []table.Card `json:"cards"`
}

type CardsExchangedPayload struct {
	Position int          `json:"position"`
	Count    int          `json:"count"`
	Cards    []table.Card `json:"cards,omitempty"`
	Drawn    []table.Card `json:"drawn,omitempty"`
}

type CardPlayedPayload struct {
	Position    int        `json:"position"`
	Card        table.Card `json:"card"`
	TrickNumber int        `json:"trickNumber"`
	NextTurn    *int       `json:"nextTurn,omitempty"`
}

type TrickCompletedPayload struct {
	Number         int                `json:"number"`
	WinnerPosition int                `json:"winnerPosition"`
	Cards          []table.PlayedCard `json:"cards"`
}

type RoundCompletedPayload struct {
	RoundID string          `json:"roundId"`
	Number  int             `json:"number"`
	Deltas  []scoring.Delta `json:"deltas"`
}

type RoundCancelledPayload struct {
	RoundID string `json:"roundId"`
	Number  int    `json:"number"`
}

type GameCompletedPayload struct {
	WinnerPlayerID string             `json:"winnerPlayerId"`
	Standings      []scoring.Standing `json:"standings"`
}

type GameAbandonedPayload struct {
	Standings []scoring.Standing `json:"standings"`
}

type ChatPayload struct {
	UserID string `json:"userId"`
	Text   string `json:"text"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
