package websocket

import "encoding/json"

type OutgoingMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// IncomingMessage is what a client sends. GameID may be omitted once the
// player is seated; Data is decoded by whoever handles Event.
type IncomingMessage struct {
	From   string          `json:"from"`
	Event  string          `json:"event"`
	GameID string          `json:"gameId,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}
