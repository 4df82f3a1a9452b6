// Package matchmaker is the lobby queue: players wait in a pool until enough
// of them are present to fill a table, and the table is handed to the game
// layer through OnRoomReady.
package matchmaker

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"SobeSobe/internal/game/gameerr"
	"SobeSobe/internal/websocket"
)

var (
	ErrInvalidSeats  = gameerr.Validation("InvalidSeats", "a table seats 2 to 5 players")
	ErrMissingPlayer = gameerr.Validation("MissingPlayer", "player address is required")
	ErrAlreadyInGame = gameerr.Conflict("AlreadyInGame", "player already has a table")
)

type Service struct {
	repo        Repo
	playerTTL   time.Duration // 防止遗留队列；也是成桌映射的有效期
	hub         HubBroadcaster
	log         *log.Logger
	OnRoomReady func(*Room) // 成桌时调用的回调函数
}

type HubBroadcaster interface {
	BroadcastToPlayers(addrs []string, msg websocket.OutgoingMessage)
}

func NewService(repo Repo, playerTTL time.Duration, hub HubBroadcaster, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{repo: repo, playerTTL: playerTTL, hub: hub, log: logger.With("component", "lobby")}
}

// Join 入队并尝试立即成桌（随机）。若可成桌，返回房间；否则返回排队中。
func (s *Service) Join(ctx context.Context, address string, req JoinRequest) (*Room, bool, error) {
	if address == "" {
		return nil, false, ErrMissingPlayer
	}
	if req.Seats < 2 || req.Seats > 5 {
		return nil, false, ErrInvalidSeats
	}

	// 防止重复匹配：检测玩家是否已经在对局中
	gameID, err := s.repo.PlayerRoom(ctx, address)
	if err != nil {
		return nil, false, err
	}
	if gameID != "" {
		return nil, false, fmt.Errorf("player %s in game %s: %w", address, gameID, ErrAlreadyInGame)
	}

	if err := s.repo.Enqueue(ctx, req.Pool, req.Seats, address, s.playerTTL); err != nil {
		return nil, false, err
	}
	addrs, err := s.repo.PopN(ctx, req.Pool, req.Seats, req.Seats)
	if err != nil {
		return nil, false, err
	}
	if len(addrs) < req.Seats {
		return nil, true, nil // queued
	}

	room := &Room{
		ID:        uuid.NewString(),
		Pool:      req.Pool,
		Seats:     req.Seats,
		Players:   addrs,
		CreatedAt: time.Now(),
	}
	if err := s.repo.SaveRoom(ctx, room, s.playerTTL); err != nil {
		s.log.Warn("save room failed", "game", room.ID, "err", err)
	}
	s.log.Info("table formed", "game", room.ID, "pool", room.Pool, "players", room.Players)

	//通知所有桌内玩家（通过 WebSocket Hub）
	s.hub.BroadcastToPlayers(addrs, websocket.OutgoingMessage{
		Event: "matched",
		Data: map[string]any{
			"gameId":  room.ID,
			"pool":    room.Pool,
			"seats":   room.Seats,
			"players": room.Players,
		},
	})

	// 启动游戏逻辑
	if s.OnRoomReady != nil {
		go s.OnRoomReady(room)
	}
	return room, false, nil
}

func (s *Service) Cancel(ctx context.Context, address string) error {
	return s.repo.Remove(ctx, address)
}

// Release lets players queue again, once their game is over or could not
// be started.
func (s *Service) Release(ctx context.Context, addresses ...string) error {
	return s.repo.Release(ctx, addresses...)
}

func (s *Service) Waiting(ctx context.Context, pool string, seats int) (int64, error) {
	return s.repo.Count(ctx, pool, seats)
}
