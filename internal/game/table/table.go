package table

import (
	"sort"
	"time"
)

type GameStatus string

const (
	GameWaiting    GameStatus = "waiting"
	GameInProgress GameStatus = "in_progress"
	GameCompleted  GameStatus = "completed"
	GameAbandoned  GameStatus = "abandoned"
)

// Player is a seat at a game. Position is unique per game and counts
// counter-clockwise.
type Player struct {
	ID                   string     `json:"id"`
	UserID               string     `json:"userId"`
	Position             int        `json:"position"`
	Points               int        `json:"points"`
	IsActive             bool       `json:"isActive"`
	ConsecutiveRoundsOut int        `json:"consecutiveRoundsOut"`
	JoinedAt             time.Time  `json:"joinedAt"`
	LeftAt               *time.Time `json:"leftAt,omitempty"`
}

// Game is one table from lobby to final standings.
type Game struct {
	ID             string     `json:"id"`
	Status         GameStatus `json:"status"`
	MaxPlayers     int        `json:"maxPlayers"`
	CreatorID      string     `json:"creatorId"`
	Players        []*Player  `json:"players"`
	WinnerPlayerID string     `json:"winnerPlayerId,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

func (g *Game) PlayerByUser(userID string) (*Player, bool) {
	for _, p := range g.Players {
		if p.UserID == userID {
			return p, true
		}
	}
	return nil, false
}

func (g *Game) PlayerByID(id string) (*Player, bool) {
	for _, p := range g.Players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

func (g *Game) PlayerAt(position int) (*Player, bool) {
	for _, p := range g.Players {
		if p.Position == position {
			return p, true
		}
	}
	return nil, false
}

// ActivePlayers returns the players still seated, ordered by position.
func (g *Game) ActivePlayers() []*Player {
	out := make([]*Player, 0, len(g.Players))
	for _, p := range g.Players {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// ActivePositions returns the ascending positions of active players.
func (g *Game) ActivePositions() []int {
	active := g.ActivePlayers()
	out := make([]int, len(active))
	for i, p := range active {
		out[i] = p.Position
	}
	return out
}

// UserIDs returns the user ids of every active player, for broadcasting.
func (g *Game) UserIDs() []string {
	active := g.ActivePlayers()
	out := make([]string, len(active))
	for i, p := range active {
		out[i] = p.UserID
	}
	return out
}

// FreePosition returns the lowest unused position, or false when full.
func (g *Game) FreePosition() (int, bool) {
	taken := make(map[int]bool, len(g.Players))
	for _, p := range g.Players {
		taken[p.Position] = true
	}
	for pos := 0; pos < g.MaxPlayers; pos++ {
		if !taken[pos] {
			return pos, true
		}
	}
	return 0, false
}

// Clone returns a deep copy so that a rejected intent never leaks into
// state shared with the store.
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	out := *g
	out.Players = make([]*Player, len(g.Players))
	for i, p := range g.Players {
		cp := *p
		out.Players[i] = &cp
	}
	return &out
}
