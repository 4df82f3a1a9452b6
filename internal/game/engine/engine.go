// Package engine serialises every intent of one game through a single
// goroutine. An intent loads the authoritative snapshot, applies the round
// rules to it, commits the result atomically and only then tells players.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"SobeSobe/internal/game/dealer"
	"SobeSobe/internal/game/gameerr"
	"SobeSobe/internal/game/round"
	"SobeSobe/internal/game/store"
	"SobeSobe/internal/game/table"
	"SobeSobe/internal/websocket"
)

var (
	ErrGameNotWaiting    = gameerr.Conflict("GameNotWaiting", "game is no longer accepting players")
	ErrGameNotInProgress = gameerr.Conflict("GameNotInProgress", "game is not in progress")
	ErrGameFull          = gameerr.Conflict("GameFull", "no free seat left")
	ErrAlreadyJoined     = gameerr.Conflict("AlreadyJoined", "already seated at this game")
	ErrNotSeated         = gameerr.Forbidden("NotSeated", "not a player of this game")
	ErrNotCreator        = gameerr.Forbidden("NotCreator", "only the creator can start the game")
	ErrNotEnoughPlayers  = gameerr.Conflict("NotEnoughPlayers", "not enough players to start")
	ErrNoActiveRound     = gameerr.Conflict("NoActiveRound", "no round in progress")
	ErrCommitFailed      = gameerr.Internal("CommitFailed", "could not save the game")
	ErrEngineStopped     = gameerr.Internal("EngineStopped", "game engine stopped")
	ErrUnknownIntent     = gameerr.Validation("UnknownIntent", "unknown intent")
	ErrBadChat           = gameerr.Validation("BadChat", "chat text must be 1 to 200 bytes")
)

const maxChatLength = 200

// Broadcaster delivers messages to connected players. websocket.Hub
// satisfies it; sends must not block.
type Broadcaster interface {
	BroadcastToPlayers(addrs []string, msg websocket.OutgoingMessage)
	SendToPlayer(addr string, msg websocket.OutgoingMessage)
}

// ---------------------
//   ACTION DEFINITION
// ---------------------

type JoinIntent struct{}

type LeaveIntent struct{}

type StartIntent struct{}

type LookIntent struct{}

type TrumpIntent struct {
	Suit          table.Suit `json:"suit"`
	BeforeDealing bool       `json:"beforeDealing"`
}

type DecideIntent struct {
	Play bool `json:"play"`
}

type ExchangeIntent struct {
	Cards []table.Card `json:"cards"`
}

type PlayIntent struct {
	Card table.Card `json:"card"`
}

// ChatIntent is relayed to the table as is; it changes no state.
type ChatIntent struct {
	Text string `json:"text"`
}

type viewQuery struct{}

// Action is one queued intent. Without a reply channel the outcome is only
// reported to the player as an error event.
type Action struct {
	Player  string
	Payload interface{}
	ctx     context.Context
	reply   chan result
}

type result struct {
	value any
	err   error
}

// ---------------------
//       ENGINE
// ---------------------

type Engine struct {
	GameID  string
	Machine *round.Machine
	// OnFinished is called from the engine goroutine once a commit moves the
	// game to completed or abandoned. It must not call back into the engine.
	OnFinished func(*table.Game)

	store      store.Store
	hub        Broadcaster
	log        *log.Logger
	actionChan chan Action
	quit       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
}

func NewEngine(gameID string, st store.Store, hub Broadcaster, rules table.Rules, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		GameID: gameID,
		Machine: &round.Machine{
			Rules:  rules,
			Dealer: dealer.NewDealer(time.Now().UnixNano()),
			NewID:  uuid.NewString,
			Now:    time.Now,
		},
		store:      st,
		hub:        hub,
		log:        logger.With("game", gameID),
		actionChan: make(chan Action, 32), // 防止死锁
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run processes actions until Stop is called.
func (e *Engine) Run() {
	defer close(e.done)
	for {
		select {
		case a := <-e.actionChan:
			v, err := e.handleAction(a)
			if a.reply != nil {
				a.reply <- result{value: v, err: err}
			} else if err != nil {
				e.sendError(a.Player, err)
			}
		case <-e.quit:
			return
		}
	}
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.quit) })
}

func (e *Engine) Stopped() bool {
	select {
	case <-e.quit:
		return true
	default:
		return false
	}
}

// Done is closed once Run has returned.
func (e *Engine) Done() <-chan struct{} { return e.done }

// 玩家动作入口（GameManager 调用），结果只通过 hub 回给玩家
func (e *Engine) EnqueueAction(player string, payload interface{}) {
	select {
	case e.actionChan <- Action{Player: player, Payload: payload, ctx: context.Background()}:
	case <-e.quit:
	}
}

// do queues an intent and waits for its outcome. Once queued an intent runs
// to completion even if ctx is cancelled while waiting.
func (e *Engine) do(ctx context.Context, player string, payload interface{}) (any, error) {
	a := Action{Player: player, Payload: payload, ctx: ctx, reply: make(chan result, 1)}
	select {
	case e.actionChan <- a:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.quit:
		return nil, ErrEngineStopped
	}
	select {
	case r := <-a.reply:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.quit:
		select {
		case r := <-a.reply:
			return r.value, r.err
		default:
			return nil, ErrEngineStopped
		}
	}
}

func (e *Engine) Join(ctx context.Context, userID string) (*table.Player, error) {
	v, err := e.do(ctx, userID, JoinIntent{})
	if err != nil {
		return nil, err
	}
	return v.(*table.Player), nil
}

func (e *Engine) Leave(ctx context.Context, userID string) error {
	_, err := e.do(ctx, userID, LeaveIntent{})
	return err
}

func (e *Engine) Start(ctx context.Context, userID string) error {
	_, err := e.do(ctx, userID, StartIntent{})
	return err
}

// Look deals the opening cards so the party player can choose trump after
// seeing them.
func (e *Engine) Look(ctx context.Context, userID string) error {
	_, err := e.do(ctx, userID, LookIntent{})
	return err
}

func (e *Engine) SelectTrump(ctx context.Context, userID string, suit table.Suit, beforeDealing bool) error {
	_, err := e.do(ctx, userID, TrumpIntent{Suit: suit, BeforeDealing: beforeDealing})
	return err
}

func (e *Engine) Decide(ctx context.Context, userID string, play bool) error {
	_, err := e.do(ctx, userID, DecideIntent{Play: play})
	return err
}

func (e *Engine) Exchange(ctx context.Context, userID string, cards []table.Card) (*table.Hand, error) {
	v, err := e.do(ctx, userID, ExchangeIntent{Cards: cards})
	if err != nil {
		return nil, err
	}
	return v.(*table.Hand), nil
}

func (e *Engine) PlayCard(ctx context.Context, userID string, card table.Card) (*round.PlayResult, error) {
	v, err := e.do(ctx, userID, PlayIntent{Card: card})
	if err != nil {
		return nil, err
	}
	return v.(*round.PlayResult), nil
}

func (e *Engine) Chat(ctx context.Context, userID, text string) error {
	_, err := e.do(ctx, userID, ChatIntent{Text: text})
	return err
}

// View returns the game as userID may see it.
func (e *Engine) View(ctx context.Context, userID string) (*View, error) {
	v, err := e.do(ctx, userID, viewQuery{})
	if err != nil {
		return nil, err
	}
	return v.(*View), nil
}

// Scores reads the score history straight from the store; entries are
// append-only so no snapshot is needed.
func (e *Engine) Scores(ctx context.Context) ([]table.ScoreEntry, error) {
	return e.store.ScoreHistory(ctx, e.GameID)
}

// snapshot is the authoritative state an intent starts from. state is nil
// until the first round is dealt.
type snapshot struct {
	game  *table.Game
	state *round.State
}

func (e *Engine) load(ctx context.Context) (*snapshot, error) {
	var (
		g   *table.Game
		cur *table.Round
	)
	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		g, err = e.store.LoadGame(gctx, e.GameID)
		return err
	})
	eg.Go(func() error {
		var err error
		cur, err = e.store.CurrentRound(gctx, e.GameID)
		if errors.Is(err, store.ErrRoundNotFound) {
			return nil
		}
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	snap := &snapshot{game: g}
	if cur == nil {
		return snap, nil
	}

	var (
		hands  []*table.Hand
		tricks []*table.Trick
	)
	eg, gctx = errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		hands, err = e.store.ListHands(gctx, cur.ID)
		return err
	})
	eg.Go(func() error {
		var err error
		tricks, err = e.store.ListTricks(gctx, cur.ID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	s := &round.State{Game: g, Round: cur, Hands: make(map[int]*table.Hand, len(hands)), Tricks: tricks}
	for _, h := range hands {
		s.Hands[h.Position] = h
	}
	snap.state = s
	return snap, nil
}

// handleAction runs one intent to completion. Rejected intents never reach
// the store; events go out only after a successful commit.
func (e *Engine) handleAction(a Action) (any, error) {
	ctx := a.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	snap, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	switch p := a.Payload.(type) {
	case viewQuery:
		return e.view(snap, a.Player)
	case ChatIntent:
		return nil, e.chat(snap.game, a.Player, p)
	}

	before := snap.game.Status
	t := &txn{m: e.Machine, game: snap.game, cur: snap.state, now: e.Machine.Now()}
	var out any
	switch p := a.Payload.(type) {
	case JoinIntent:
		out, err = t.join(a.Player)
	case LeaveIntent:
		err = t.leave(a.Player)
	case StartIntent:
		err = t.start(a.Player)
	case LookIntent:
		err = t.look(a.Player)
	case TrumpIntent:
		err = t.selectTrump(a.Player, p)
	case DecideIntent:
		err = t.decide(a.Player, p)
	case ExchangeIntent:
		out, err = t.exchange(a.Player, p)
	case PlayIntent:
		out, err = t.play(a.Player, p)
	default:
		err = fmt.Errorf("%T: %w", a.Payload, ErrUnknownIntent)
	}
	if err != nil {
		e.log.Debug("intent rejected", "player", a.Player, "intent", fmt.Sprintf("%T", a.Payload), "code", gameerr.CodeOf(err))
		return nil, err
	}

	if err := e.store.Commit(ctx, t.changeset()); err != nil {
		e.log.Error("commit failed", "player", a.Player, "intent", fmt.Sprintf("%T", a.Payload), "err", err)
		return nil, fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}
	e.emit(t.game, t.events)
	if finished(t.game.Status) && !finished(before) {
		e.log.Info("game finished", "status", t.game.Status, "winner", t.game.WinnerPlayerID)
		if e.OnFinished != nil {
			e.OnFinished(t.game.Clone())
		}
	}
	return out, nil
}

func finished(s table.GameStatus) bool {
	return s == table.GameCompleted || s == table.GameAbandoned
}

func (e *Engine) emit(g *table.Game, events []Event) {
	everyone := g.UserIDs()
	for _, ev := range events {
		msg := ev.message(g.ID)
		switch {
		case len(ev.Recipients) == 1:
			e.hub.SendToPlayer(ev.Recipients[0], msg)
		case len(ev.Recipients) > 1:
			e.hub.BroadcastToPlayers(ev.Recipients, msg)
		default:
			to := everyone
			if ev.Except != "" {
				to = make([]string, 0, len(everyone))
				for _, u := range everyone {
					if u != ev.Except {
						to = append(to, u)
					}
				}
			}
			e.hub.BroadcastToPlayers(to, msg)
		}
	}
}

func (e *Engine) chat(g *table.Game, user string, in ChatIntent) error {
	if p, ok := g.PlayerByUser(user); !ok || !p.IsActive {
		return ErrNotSeated
	}
	if in.Text == "" || len(in.Text) > maxChatLength {
		return ErrBadChat
	}
	e.emit(g, []Event{{Kind: EventChat, Payload: ChatPayload{UserID: user, Text: in.Text}}})
	return nil
}

func (e *Engine) sendError(player string, err error) {
	e.hub.SendToPlayer(player, ErrorMessage(e.GameID, err))
}

// ErrorMessage is the error event sent to the player whose intent failed.
func ErrorMessage(gameID string, err error) websocket.OutgoingMessage {
	return Event{
		Kind: EventError,
		Payload: ErrorPayload{
			Code:    gameerr.CodeOf(err),
			Kind:    gameerr.KindOf(err).String(),
			Message: err.Error(),
		},
	}.message(gameID)
}
