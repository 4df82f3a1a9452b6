// Package manager keeps one engine per live game and routes websocket and
// REST intents to it.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"SobeSobe/internal/game/engine"
	"SobeSobe/internal/game/gameerr"
	"SobeSobe/internal/game/store"
	"SobeSobe/internal/game/table"
	"SobeSobe/internal/matchmaker"
	"SobeSobe/internal/websocket"
)

var (
	ErrInvalidMaxPlayers = gameerr.Validation("InvalidMaxPlayers", "max players must be between 2 and 5")
	ErrMissingUser       = gameerr.Validation("MissingUser", "user id is required")
	ErrNoGame            = gameerr.Validation("NoGame", "message names no game and the player is not seated anywhere")
	ErrEmptyRoom         = gameerr.Validation("EmptyRoom", "room has fewer than two players")
)

const (
	intentTimeout = 10 * time.Second
	retireDelay   = time.Minute
)

// GameManager 管理所有对局
type GameManager struct {
	mu         sync.RWMutex
	engines    map[string]*engine.Engine // gameID → engine
	playerGame map[string]string         // player address → gameID
	store      store.Store
	hub        engine.Broadcaster
	rules      table.Rules
	log        *log.Logger

	// OnGameOver runs after a game completes or is abandoned, e.g. to let
	// its players queue in the lobby again.
	OnGameOver  func(*table.Game)
	retireDelay time.Duration
}

func NewGameManager(st store.Store, hub engine.Broadcaster, rules table.Rules, logger *log.Logger) *GameManager {
	if logger == nil {
		logger = log.Default()
	}
	return &GameManager{
		engines:     make(map[string]*engine.Engine),
		playerGame:  make(map[string]string),
		store:       st,
		hub:         hub,
		rules:       rules,
		log:         logger.With("component", "manager"),
		retireDelay: retireDelay,
	}
}

// Engine returns the running engine of gameID, starting one if the game
// exists. Engines hold no state of their own, so a new one picks up where
// a retired one stopped. A replacement only starts once the old engine's
// Run has returned.
func (m *GameManager) Engine(ctx context.Context, gameID string) (*engine.Engine, error) {
	for {
		m.mu.RLock()
		old := m.engines[gameID]
		m.mu.RUnlock()
		if old != nil {
			if !old.Stopped() {
				return old, nil
			}
			<-old.Done()
		}

		g, err := m.store.LoadGame(ctx, gameID)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		if m.engines[gameID] != old {
			// another caller replaced it meanwhile
			m.mu.Unlock()
			continue
		}
		eng := m.startEngine(gameID)
		if g.Status == table.GameCompleted || g.Status == table.GameAbandoned {
			m.retire(gameID)
		}
		m.mu.Unlock()
		return eng, nil
	}
}

// startEngine must be called with m.mu held.
func (m *GameManager) startEngine(gameID string) *engine.Engine {
	eng := engine.NewEngine(gameID, m.store, m.hub, m.rules, m.log)
	eng.OnFinished = m.finished
	m.engines[gameID] = eng
	go eng.Run()
	m.log.Debug("engine started", "game", gameID)
	return eng
}

func (m *GameManager) finished(g *table.Game) {
	m.mu.Lock()
	for _, p := range g.Players {
		if m.playerGame[p.UserID] == g.ID {
			delete(m.playerGame, p.UserID)
		}
	}
	m.retire(g.ID)
	m.mu.Unlock()

	if m.OnGameOver != nil {
		go m.OnGameOver(g)
	}
}

// retire stops the engine of a finished game after a grace period so that
// late views still find it. Must be called with m.mu held.
func (m *GameManager) retire(gameID string) {
	time.AfterFunc(m.retireDelay, func() {
		m.mu.RLock()
		eng := m.engines[gameID]
		m.mu.RUnlock()
		if eng == nil {
			return
		}
		eng.Stop()
		<-eng.Done()

		m.mu.Lock()
		if m.engines[gameID] == eng {
			delete(m.engines, gameID)
		}
		m.mu.Unlock()
		m.log.Debug("engine retired", "game", gameID)
	})
}

// CreateGame opens a waiting game and seats its creator at position 0.
func (m *GameManager) CreateGame(ctx context.Context, creator string, maxPlayers int) (*table.Game, error) {
	return m.createGame(ctx, uuid.NewString(), creator, maxPlayers)
}

func (m *GameManager) createGame(ctx context.Context, gameID, creator string, maxPlayers int) (*table.Game, error) {
	if creator == "" {
		return nil, ErrMissingUser
	}
	if maxPlayers == 0 {
		maxPlayers = m.rules.MaxPlayers
	}
	if maxPlayers < m.rules.MinPlayers || maxPlayers > m.rules.MaxPlayers {
		return nil, ErrInvalidMaxPlayers
	}

	g := &table.Game{
		ID:         gameID,
		Status:     table.GameWaiting,
		MaxPlayers: maxPlayers,
		CreatorID:  creator,
		CreatedAt:  time.Now(),
	}
	if err := m.store.Commit(ctx, &store.Changeset{Game: g}); err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	m.log.Info("game created", "game", g.ID, "creator", creator, "maxPlayers", maxPlayers)

	p, err := m.JoinGame(ctx, g.ID, creator)
	if err != nil {
		return nil, err
	}
	g.Players = append(g.Players, p)
	return g, nil
}

func (m *GameManager) JoinGame(ctx context.Context, gameID, user string) (*table.Player, error) {
	eng, err := m.Engine(ctx, gameID)
	if err != nil {
		return nil, err
	}
	p, err := eng.Join(ctx, user)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.playerGame[user] = gameID
	m.mu.Unlock()
	return p, nil
}

func (m *GameManager) LeaveGame(ctx context.Context, gameID, user string) error {
	eng, err := m.Engine(ctx, gameID)
	if err != nil {
		return err
	}
	if err := eng.Leave(ctx, user); err != nil {
		return err
	}
	m.mu.Lock()
	if m.playerGame[user] == gameID {
		delete(m.playerGame, user)
	}
	m.mu.Unlock()
	return nil
}

// StartRoom 为大厅组好的桌创建对局：第一位玩家建局，其余加入，然后开局
func (m *GameManager) StartRoom(r *matchmaker.Room) error {
	if len(r.Players) < m.rules.MinPlayers {
		return ErrEmptyRoom
	}
	ctx, cancel := context.WithTimeout(context.Background(), intentTimeout)
	defer cancel()

	g, err := m.createGame(ctx, r.ID, r.Players[0], r.Seats)
	if err != nil {
		return err
	}
	for _, addr := range r.Players[1:] {
		if _, err := m.JoinGame(ctx, g.ID, addr); err != nil {
			return fmt.Errorf("room %s: join %s: %w", r.ID, addr, err)
		}
	}
	eng, err := m.Engine(ctx, g.ID)
	if err != nil {
		return err
	}
	if err := eng.Start(ctx, r.Players[0]); err != nil {
		return fmt.Errorf("room %s: start: %w", r.ID, err)
	}
	m.log.Info("room started", "game", g.ID, "players", r.Players)
	return nil
}

func (m *GameManager) ListGames(ctx context.Context, status table.GameStatus) ([]*table.Game, error) {
	return m.store.ListGames(ctx, status)
}

// GameOf returns the game user is currently seated at.
func (m *GameManager) GameOf(user string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.playerGame[user]
	return id, ok
}

// HandlePlayerMessage 统一入口（来自 Hub.OnIncoming）
func (m *GameManager) HandlePlayerMessage(msg websocket.IncomingMessage) {
	gameID := msg.GameID
	if gameID == "" {
		gameID, _ = m.GameOf(msg.From)
	}
	if gameID == "" {
		m.hub.SendToPlayer(msg.From, engine.ErrorMessage("", ErrNoGame))
		return
	}

	intent, err := decodeIntent(msg.Event, msg.Data)
	if err != nil {
		m.hub.SendToPlayer(msg.From, engine.ErrorMessage(gameID, err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), intentTimeout)
	defer cancel()

	// 加入/离开需要维护玩家 → 对局映射，同步执行
	switch intent.(type) {
	case engine.JoinIntent:
		_, err = m.JoinGame(ctx, gameID, msg.From)
	case engine.LeaveIntent:
		err = m.LeaveGame(ctx, gameID, msg.From)
	default:
		var eng *engine.Engine
		if eng, err = m.Engine(ctx, gameID); err == nil {
			eng.EnqueueAction(msg.From, intent)
		}
	}
	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			m.log.Debug("message rejected", "player", msg.From, "event", msg.Event, "err", err)
		}
		m.hub.SendToPlayer(msg.From, engine.ErrorMessage(gameID, err))
	}
}

// Close stops every engine.
func (m *GameManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, eng := range m.engines {
		eng.Stop()
		delete(m.engines, id)
	}
}
