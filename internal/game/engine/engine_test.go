package engine

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SobeSobe/internal/game/dealer"
	"SobeSobe/internal/game/round"
	"SobeSobe/internal/game/store"
	"SobeSobe/internal/game/table"
	"SobeSobe/internal/game/trick"
	"SobeSobe/internal/websocket"
)

// mockHub 记录每个地址收到的消息
type mockHub struct {
	mu   sync.Mutex
	msgs map[string][]websocket.OutgoingMessage
}

func newMockHub() *mockHub {
	return &mockHub{msgs: make(map[string][]websocket.OutgoingMessage)}
}

func (h *mockHub) BroadcastToPlayers(addrs []string, msg websocket.OutgoingMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, a := range addrs {
		h.msgs[a] = append(h.msgs[a], msg)
	}
}

func (h *mockHub) SendToPlayer(addr string, msg websocket.OutgoingMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs[addr] = append(h.msgs[addr], msg)
}

func (h *mockHub) events(addr string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.msgs[addr]))
	for _, m := range h.msgs[addr] {
		out = append(out, m.Event)
	}
	return out
}

func (h *mockHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, m := range h.msgs {
		n += len(m)
	}
	return n
}

func (h *mockHub) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = make(map[string][]websocket.OutgoingMessage)
}

var users = []string{"0xA", "0xB", "0xC", "0xD", "0xE"}

func newTestEngine(t *testing.T, st store.Store, rules table.Rules, seated int) (*Engine, *mockHub) {
	t.Helper()
	ctx := context.Background()
	g := &table.Game{ID: "g1", Status: table.GameWaiting, MaxPlayers: 5, CreatorID: users[0], CreatedAt: time.Now()}
	require.NoError(t, st.Commit(ctx, &store.Changeset{Game: g}))

	hub := newMockHub()
	eng := NewEngine("g1", st, hub, rules, log.New(io.Discard))
	eng.Machine.Dealer = dealer.NewDealer(42) // deterministic seed for test
	go eng.Run()
	t.Cleanup(eng.Stop)

	for i := 0; i < seated; i++ {
		_, err := eng.Join(ctx, users[i])
		require.NoError(t, err)
	}
	return eng, hub
}

func startedEngine(t *testing.T, seated int) (*Engine, *mockHub) {
	t.Helper()
	eng, hub := newTestEngine(t, store.NewMemoryStore(), table.DefaultRules(), seated)
	require.NoError(t, eng.Start(context.Background(), users[0]))
	return eng, hub
}

func userAt(g *table.Game, pos int) string {
	p, _ := g.PlayerAt(pos)
	return p.UserID
}

// playLegal plays the first legal card for whoever's turn it is until the
// round number changes or the game ends.
func playLegal(t *testing.T, eng *Engine) {
	t.Helper()
	ctx := context.Background()
	start, err := eng.View(ctx, users[0])
	require.NoError(t, err)
	number := start.Round.Number

	for i := 0; i < 50; i++ {
		v, err := eng.View(ctx, users[0])
		require.NoError(t, err)
		if v.Game.Status != table.GameInProgress || v.Round.Number != number {
			return
		}
		require.NotNil(t, v.Turn)
		user := userAt(v.Game, *v.Turn)

		uv, err := eng.View(ctx, user)
		require.NoError(t, err)
		var played []table.Card
		if n := len(uv.Tricks); n > 0 && !uv.Tricks[n-1].Completed() {
			played = uv.Tricks[n-1].PlayedCards()
		}
		legal := trick.LegalCards(uv.Hand.Cards, played, *uv.Round.Trump)
		require.NotEmpty(t, legal)
		_, err = eng.PlayCard(ctx, user, legal[0])
		require.NoError(t, err)
	}
	t.Fatal("round did not finish")
}

func TestJoinAndStart(t *testing.T) {
	ctx := context.Background()
	eng, hub := newTestEngine(t, store.NewMemoryStore(), table.DefaultRules(), 3)

	_, err := eng.Join(ctx, users[1])
	assert.ErrorIs(t, err, ErrAlreadyJoined)
	assert.ErrorIs(t, eng.Start(ctx, users[1]), ErrNotCreator)

	require.NoError(t, eng.Start(ctx, users[0]))

	v, err := eng.View(ctx, users[2])
	require.NoError(t, err)
	assert.Equal(t, table.GameInProgress, v.Game.Status)
	require.NotNil(t, v.Round)
	assert.Equal(t, 1, v.Round.Number)
	assert.Equal(t, 0, v.Round.DealerPosition, "lowest position deals first")
	assert.Equal(t, 1, v.Round.PartyPosition)
	assert.Equal(t, table.PhaseTrumpSelection, v.Round.Phase)
	require.NotNil(t, v.Hand)
	assert.Empty(t, v.Hand.Cards, "nothing is dealt before the party player looks")
	assert.False(t, v.Round.OpeningSeen)
	assert.Len(t, v.Hands, 3)

	for _, u := range users[:3] {
		assert.Contains(t, hub.events(u), string(EventGameStarted))
		assert.NotContains(t, hub.events(u), string(EventCardsDealt))
	}

	scores, err := eng.Scores(ctx)
	require.NoError(t, err)
	require.Len(t, scores, 3)
	for _, e := range scores {
		assert.Equal(t, table.ReasonGameStarted, e.Reason)
		assert.Equal(t, 20, e.PointsAfter)
	}

	_, err = eng.Join(ctx, users[3])
	assert.ErrorIs(t, err, ErrGameNotWaiting)
}

func TestStartNeedsTwoPlayers(t *testing.T) {
	eng, _ := newTestEngine(t, store.NewMemoryStore(), table.DefaultRules(), 1)
	assert.ErrorIs(t, eng.Start(context.Background(), users[0]), ErrNotEnoughPlayers)
}

func TestJoinFullGame(t *testing.T) {
	eng, _ := newTestEngine(t, store.NewMemoryStore(), table.DefaultRules(), 5)
	_, err := eng.Join(context.Background(), "0xF")
	assert.ErrorIs(t, err, ErrGameFull)
}

func TestRejectedIntentChangesNothing(t *testing.T) {
	ctx := context.Background()
	eng, hub := startedEngine(t, 3)
	hub.reset()

	err := eng.SelectTrump(ctx, users[1], table.Spades, true)
	assert.ErrorIs(t, err, round.ErrBlindTrumpMustBeHearts)
	err = eng.SelectTrump(ctx, users[2], table.Hearts, false)
	assert.ErrorIs(t, err, round.ErrNotPartyPlayer)
	err = eng.SelectTrump(ctx, "0xZ", table.Hearts, false)
	assert.ErrorIs(t, err, ErrNotSeated)
	err = eng.SelectTrump(ctx, users[1], table.Spades, false)
	assert.ErrorIs(t, err, round.ErrOpeningNotSeen)
	assert.ErrorIs(t, eng.Look(ctx, users[0]), round.ErrNotPartyPlayer)

	v, err := eng.View(ctx, users[1])
	require.NoError(t, err)
	assert.Nil(t, v.Round.Trump)
	assert.Zero(t, hub.count())
}

func TestDecisionsDealOnceEveryoneDecided(t *testing.T) {
	ctx := context.Background()
	eng, hub := startedEngine(t, 3)

	require.NoError(t, eng.Look(ctx, users[1]))
	require.NoError(t, eng.SelectTrump(ctx, users[1], table.Spades, false))
	assert.Contains(t, hub.events(users[2]), string(EventTrumpSelected))

	v, err := eng.View(ctx, users[0])
	require.NoError(t, err)
	assert.True(t, v.MustPlay, "dealer must play")

	require.NoError(t, eng.Decide(ctx, users[2], false))
	assert.ErrorIs(t, eng.Decide(ctx, users[2], true), round.ErrAlreadyDecided)
	require.NoError(t, eng.Decide(ctx, users[0], true))

	v, err = eng.View(ctx, users[0])
	require.NoError(t, err)
	assert.Equal(t, table.PhasePlayerDecisions, v.Round.Phase)

	require.NoError(t, eng.Decide(ctx, users[1], true))
	v, err = eng.View(ctx, users[0])
	require.NoError(t, err)
	assert.Equal(t, table.PhaseCardExchange, v.Round.Phase)
	assert.Len(t, v.Hand.Cards, 5)
	assert.Len(t, v.Hands, 2)
	assert.Equal(t, []int{2}, v.Round.SittingOut)

	out, err := eng.View(ctx, users[2])
	require.NoError(t, err)
	assert.Nil(t, out.Hand)
	assert.Equal(t, 1, out.Game.Players[2].ConsecutiveRoundsOut)
}

func TestBlindPickRejectedAfterLooking(t *testing.T) {
	ctx := context.Background()
	eng, hub := startedEngine(t, 3)
	party := users[1]

	require.NoError(t, eng.Look(ctx, party))
	v, err := eng.View(ctx, party)
	require.NoError(t, err)
	assert.True(t, v.Round.OpeningSeen)
	assert.Equal(t, table.PhaseTrumpSelection, v.Round.Phase)
	assert.Len(t, v.Hand.Cards, 2)
	for _, u := range users[:3] {
		assert.Contains(t, hub.events(u), string(EventCardsDealt))
	}

	assert.ErrorIs(t, eng.SelectTrump(ctx, party, table.Hearts, true), round.ErrCardsAlreadySeen)
	assert.ErrorIs(t, eng.Look(ctx, party), round.ErrAlreadyLooked)
	v, err = eng.View(ctx, party)
	require.NoError(t, err)
	assert.Nil(t, v.Round.Trump)

	require.NoError(t, eng.SelectTrump(ctx, party, table.Hearts, false))
	v, err = eng.View(ctx, party)
	require.NoError(t, err)
	assert.False(t, v.Round.TrumpSelectedBeforeDealing)
	assert.Equal(t, 2, v.Round.TrickValue)
	assert.Equal(t, table.PhasePlayerDecisions, v.Round.Phase)
}

func TestExchangeThroughEngine(t *testing.T) {
	ctx := context.Background()
	eng, hub := startedEngine(t, 3)
	require.NoError(t, eng.SelectTrump(ctx, users[1], table.Hearts, true))

	v, err := eng.View(ctx, users[2])
	require.NoError(t, err)
	var discard []table.Card
	for _, c := range v.Hand.Cards {
		if c != table.AceOf(table.Hearts) && len(discard) < 2 {
			discard = append(discard, c)
		}
	}
	hub.reset()

	h, err := eng.Exchange(ctx, users[2], discard)
	require.NoError(t, err)
	assert.Len(t, h.Cards, 5)
	for _, c := range discard {
		assert.NotContains(t, h.Cards, c)
	}
	assert.Equal(t, []string{string(EventCardsExchanged)}, hub.events(users[2]))
	assert.Equal(t, []string{string(EventCardsExchanged)}, hub.events(users[0]))

	_, err = eng.Exchange(ctx, users[2], h.Cards[:1])
	assert.ErrorIs(t, err, round.ErrAlreadyExchanged)
}

func TestFullRoundRotatesDealer(t *testing.T) {
	ctx := context.Background()
	eng, hub := startedEngine(t, 3)
	require.NoError(t, eng.SelectTrump(ctx, users[1], table.Hearts, true))

	playLegal(t, eng)

	v, err := eng.View(ctx, users[0])
	require.NoError(t, err)
	if v.Game.Status == table.GameInProgress {
		assert.Equal(t, 2, v.Round.Number)
		assert.Equal(t, 1, v.Round.DealerPosition, "previous party deals")
		assert.Equal(t, 2, v.Round.PartyPosition)
	}
	assert.Contains(t, hub.events(users[0]), string(EventRoundCompleted))
	assert.Contains(t, hub.events(users[0]), string(EventTrickCompleted))

	scores, err := eng.Scores(ctx)
	require.NoError(t, err)
	require.Len(t, scores, 6, "three starting entries and one per player")
	total := 0
	for _, e := range scores[3:] {
		assert.NotEqual(t, table.ReasonGameStarted, e.Reason)
		if e.Reason == table.ReasonTricksWon {
			total += -e.PointsChange / 4
		}
	}
	assert.Equal(t, 5, total, "every trick is paid for")
}

func TestGameCompletesWhenSomeoneReachesZero(t *testing.T) {
	ctx := context.Background()
	rules := table.DefaultRules()
	rules.StartingPoints = 1
	rules.BuyIn = 10
	eng, hub := newTestEngine(t, store.NewMemoryStore(), rules, 3)
	require.NoError(t, eng.Start(ctx, users[0]))
	require.NoError(t, eng.SelectTrump(ctx, users[1], table.Hearts, true))

	playLegal(t, eng)

	v, err := eng.View(ctx, users[0])
	require.NoError(t, err)
	assert.Equal(t, table.GameCompleted, v.Game.Status)
	assert.NotEmpty(t, v.Game.WinnerPlayerID)
	assert.NotNil(t, v.Game.CompletedAt)
	require.Len(t, v.Standings, 3)
	assert.Equal(t, v.Game.WinnerPlayerID, v.Standings[0].PlayerID)
	assert.Contains(t, hub.events(users[2]), string(EventGameCompleted))

	assert.ErrorIs(t, eng.SelectTrump(ctx, users[1], table.Hearts, true), ErrGameNotInProgress)
}

func TestLeaveMidRound(t *testing.T) {
	ctx := context.Background()
	eng, hub := startedEngine(t, 3)

	require.NoError(t, eng.Leave(ctx, users[2]))
	assert.Contains(t, hub.events(users[0]), string(EventRoundCancelled))

	v, err := eng.View(ctx, users[0])
	require.NoError(t, err)
	assert.Equal(t, table.GameInProgress, v.Game.Status)
	assert.Equal(t, 2, v.Round.Number)
	assert.Len(t, v.Hands, 2)
	assert.ErrorIs(t, eng.Leave(ctx, users[2]), ErrNotSeated)

	require.NoError(t, eng.Leave(ctx, users[1]))
	v, err = eng.View(ctx, users[0])
	require.NoError(t, err)
	assert.Equal(t, table.GameAbandoned, v.Game.Status)
	assert.True(t, v.Round.Cancelled)
	assert.Contains(t, hub.events(users[0]), string(EventGameAbandoned))
}

func TestLeaveWhileWaiting(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t, store.NewMemoryStore(), table.DefaultRules(), 2)

	require.NoError(t, eng.Leave(ctx, users[0]))
	_, err := eng.View(ctx, users[0])
	assert.ErrorIs(t, err, ErrNotSeated)

	v, err := eng.View(ctx, users[1])
	require.NoError(t, err)
	assert.Equal(t, users[1], v.Game.CreatorID)

	p, err := eng.Join(ctx, users[2])
	require.NoError(t, err)
	assert.Equal(t, 0, p.Position, "freed seat is reused")
}

type failingStore struct {
	store.Store
	fail bool
}

func (f *failingStore) Commit(ctx context.Context, cs *store.Changeset) error {
	if f.fail {
		return errors.New("disk on fire")
	}
	return f.Store.Commit(ctx, cs)
}

func TestCommitFailureBroadcastsNothing(t *testing.T) {
	ctx := context.Background()
	st := &failingStore{Store: store.NewMemoryStore()}
	eng, hub := newTestEngine(t, st, table.DefaultRules(), 2)
	hub.reset()
	st.fail = true

	err := eng.Start(ctx, users[0])
	assert.ErrorIs(t, err, ErrCommitFailed)
	assert.Zero(t, hub.count())

	v, err := eng.View(ctx, users[0])
	require.NoError(t, err)
	assert.Equal(t, table.GameWaiting, v.Game.Status)
}

func TestEnqueueActionReportsErrors(t *testing.T) {
	eng, hub := newTestEngine(t, store.NewMemoryStore(), table.DefaultRules(), 2)
	hub.reset()

	eng.EnqueueAction(users[1], StartIntent{})
	require.Eventually(t, func() bool {
		return len(hub.events(users[1])) > 0
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{string(EventError)}, hub.events(users[1]))
}

func TestStoppedEngine(t *testing.T) {
	eng, _ := newTestEngine(t, store.NewMemoryStore(), table.DefaultRules(), 2)
	eng.Stop()
	eng.Stop()

	_, err := eng.View(context.Background(), users[0])
	assert.ErrorIs(t, err, ErrEngineStopped)
}

func TestChat(t *testing.T) {
	ctx := context.Background()
	eng, hub := newTestEngine(t, store.NewMemoryStore(), table.DefaultRules(), 2)
	hub.reset()

	require.NoError(t, eng.Chat(ctx, users[0], "gl hf"))
	assert.Equal(t, []string{string(EventChat)}, hub.events(users[1]))

	assert.ErrorIs(t, eng.Chat(ctx, users[0], ""), ErrBadChat)
	assert.ErrorIs(t, eng.Chat(ctx, "0xZ", "hi"), ErrNotSeated)
}
