package store

import (
	"context"
	"sort"
	"sync"

	"SobeSobe/internal/game/table"
)

type memStore struct {
	mu     sync.RWMutex
	games  map[string]*table.Game
	rounds map[string]map[string]*table.Round // gameID -> roundID -> round
	hands  map[string]map[string]*table.Hand  // roundID -> handID -> hand
	tricks map[string]map[string]*table.Trick // roundID -> trickID -> trick
	scores map[string][]table.ScoreEntry      // gameID -> entries
}

// NewMemoryStore keeps everything in process. Records are copied on the
// way in and out so callers never share memory with the store.
func NewMemoryStore() Store {
	return &memStore{
		games:  make(map[string]*table.Game),
		rounds: make(map[string]map[string]*table.Round),
		hands:  make(map[string]map[string]*table.Hand),
		tricks: make(map[string]map[string]*table.Trick),
		scores: make(map[string][]table.ScoreEntry),
	}
}

func (m *memStore) LoadGame(ctx context.Context, gameID string) (*table.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[gameID]
	if !ok {
		return nil, ErrGameNotFound
	}
	return g.Clone(), nil
}

func (m *memStore) CurrentRound(ctx context.Context, gameID string) (*table.Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var cur *table.Round
	for _, r := range m.rounds[gameID] {
		if cur == nil || r.Number > cur.Number {
			cur = r
		}
	}
	if cur == nil {
		return nil, ErrRoundNotFound
	}
	return cur.Clone(), nil
}

func (m *memStore) FindHand(ctx context.Context, roundID, playerID string) (*table.Hand, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, h := range m.hands[roundID] {
		if h.PlayerID == playerID {
			return h.Clone(), nil
		}
	}
	return nil, ErrHandNotFound
}

func (m *memStore) ListHands(ctx context.Context, roundID string) ([]*table.Hand, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*table.Hand, 0, len(m.hands[roundID]))
	for _, h := range m.hands[roundID] {
		out = append(out, h.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (m *memStore) ListTricks(ctx context.Context, roundID string) ([]*table.Trick, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*table.Trick, 0, len(m.tricks[roundID]))
	for _, t := range m.tricks[roundID] {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *memStore) ScoreHistory(ctx context.Context, gameID string) ([]table.ScoreEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]table.ScoreEntry(nil), m.scores[gameID]...), nil
}

func (m *memStore) ListGames(ctx context.Context, status table.GameStatus) ([]*table.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*table.Game, 0, len(m.games))
	for _, g := range m.games {
		if status == "" || g.Status == status {
			out = append(out, g.Clone())
		}
	}
	sortGames(out)
	return out, nil
}

func (m *memStore) Commit(ctx context.Context, cs *Changeset) error {
	if err := cs.validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.games[cs.Game.ID] = cs.Game.Clone()
	for _, r := range cs.Rounds {
		if m.rounds[r.GameID] == nil {
			m.rounds[r.GameID] = make(map[string]*table.Round)
		}
		m.rounds[r.GameID][r.ID] = r.Clone()
	}
	for _, h := range cs.DeletedHands {
		delete(m.hands[h.RoundID], h.ID)
	}
	for _, h := range cs.Hands {
		if m.hands[h.RoundID] == nil {
			m.hands[h.RoundID] = make(map[string]*table.Hand)
		}
		m.hands[h.RoundID][h.ID] = h.Clone()
	}
	for _, t := range cs.Tricks {
		if m.tricks[t.RoundID] == nil {
			m.tricks[t.RoundID] = make(map[string]*table.Trick)
		}
		m.tricks[t.RoundID][t.ID] = t.Clone()
	}
	m.scores[cs.Game.ID] = append(m.scores[cs.Game.ID], cs.Scores...)
	return nil
}

func sortGames(games []*table.Game) {
	sort.Slice(games, func(i, j int) bool {
		if !games[i].CreatedAt.Equal(games[j].CreatedAt) {
			return games[i].CreatedAt.After(games[j].CreatedAt)
		}
		return games[i].ID < games[j].ID
	})
}
