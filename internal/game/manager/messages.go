package manager

import (
	"encoding/json"
	"fmt"

	"SobeSobe/internal/game/engine"
	"SobeSobe/internal/game/gameerr"
	"SobeSobe/internal/game/table"
)

var (
	ErrUnknownEvent = gameerr.Validation("UnknownEvent", "unknown event")
	ErrBadPayload   = gameerr.Validation("BadPayload", "malformed event data")
)

// websocket 事件名
const (
	EventJoinGame      = "join_game"
	EventLeaveGame     = "leave_game"
	EventStartGame     = "start_game"
	EventLook          = "look"
	EventSelectTrump   = "select_trump"
	EventDecide        = "decide"
	EventExchangeCards = "exchange_cards"
	EventPlayCard      = "play_card"
	EventChat          = "chat"
)

// Wire forms of the intents. Pointers tell a missing field from a zero
// value: Hearts and "sit out" are both zero.
type trumpRequest struct {
	Suit          *table.Suit `json:"suit" binding:"required"`
	BeforeDealing bool        `json:"beforeDealing"`
}

type decideRequest struct {
	Play *bool `json:"play" binding:"required"`
}

type exchangeRequest struct {
	Cards []table.Card `json:"cards"`
}

type playRequest struct {
	Card *table.Card `json:"card" binding:"required"`
}

type chatRequest struct {
	Text string `json:"text" binding:"required"`
}

func decodeIntent(event string, data json.RawMessage) (any, error) {
	switch event {
	case EventJoinGame:
		return engine.JoinIntent{}, nil
	case EventLeaveGame:
		return engine.LeaveIntent{}, nil
	case EventStartGame:
		return engine.StartIntent{}, nil
	case EventLook:
		return engine.LookIntent{}, nil
	case EventSelectTrump:
		var req trumpRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		if req.Suit == nil {
			return nil, fmt.Errorf("suit is required: %w", ErrBadPayload)
		}
		return engine.TrumpIntent{Suit: *req.Suit, BeforeDealing: req.BeforeDealing}, nil
	case EventDecide:
		var req decideRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		if req.Play == nil {
			return nil, fmt.Errorf("play is required: %w", ErrBadPayload)
		}
		return engine.DecideIntent{Play: *req.Play}, nil
	case EventExchangeCards:
		var req exchangeRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return engine.ExchangeIntent{Cards: req.Cards}, nil
	case EventPlayCard:
		var req playRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		if req.Card == nil {
			return nil, fmt.Errorf("card is required: %w", ErrBadPayload)
		}
		return engine.PlayIntent{Card: *req.Card}, nil
	case EventChat:
		var req chatRequest
		if err := decode(data, &req); err != nil {
			return nil, err
		}
		return engine.ChatIntent{Text: req.Text}, nil
	default:
		return nil, fmt.Errorf("%q: %w", event, ErrUnknownEvent)
	}
}

// decode keeps the classification of card and suit parse errors.
func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("missing data: %w", ErrBadPayload)
	}
	if err := json.Unmarshal(data, v); err != nil {
		if gameerr.KindOf(err) == gameerr.KindValidation {
			return err
		}
		return fmt.Errorf("%v: %w", err, ErrBadPayload)
	}
	return nil
}
