package round

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SobeSobe/internal/game/dealer"
	"SobeSobe/internal/game/table"
	"SobeSobe/internal/game/trick"
)

func newMachine(seed int64) *Machine {
	n := 0
	return &Machine{
		Rules:  table.DefaultRules(),
		Dealer: dealer.NewDealer(seed),
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
		Now: time.Now,
	}
}

func newGame(players int) *table.Game {
	g := &table.Game{ID: "g1", Status: table.GameInProgress, MaxPlayers: 5}
	for i := 0; i < players; i++ {
		g.Players = append(g.Players, &table.Player{
			ID:       fmt.Sprintf("p%d", i),
			UserID:   fmt.Sprintf("0x%d", i),
			Position: i,
			Points:   20,
			IsActive: true,
		})
	}
	return g
}

func newState(t *testing.T, players int) (*Machine, *State) {
	t.Helper()
	m := newMachine(7)
	s, err := m.NewRound(newGame(players), 1, 0)
	require.NoError(t, err)
	return m, s
}

// seenState is a round whose party player has looked at the opening cards.
func seenState(t *testing.T, players int) (*Machine, *State) {
	t.Helper()
	m, s := newState(t, players)
	require.NoError(t, m.Look(s, s.Round.PartyPosition))
	return m, s
}

// allCards gathers every card the round knows about.
func allCards(s *State) []table.Card {
	out := append([]table.Card(nil), s.Round.Stock...)
	out = append(out, s.Round.Discards...)
	for _, h := range s.Hands {
		out = append(out, h.Cards...)
	}
	for _, t := range s.Tricks {
		out = append(out, t.PlayedCards()...)
	}
	return out
}

func assertWholeDeck(t *testing.T, s *State) {
	t.Helper()
	cards := allCards(s)
	seen := make(map[table.Card]bool)
	for _, c := range cards {
		require.False(t, seen[c], "card %s appears twice", c)
		seen[c] = true
	}
	require.Len(t, cards, dealer.DeckSize)
}

func playOut(t *testing.T, m *Machine, s *State) []*PlayResult {
	t.Helper()
	var results []*PlayResult
	removed := make(map[table.Card]bool)
	for s.Round.Phase != table.PhaseCompleted {
		pos, ok := s.Turn()
		require.True(t, ok)
		var played []table.Card
		if tr, open := s.OpenTrick(); open {
			played = tr.PlayedCards()
		}
		legal := trick.LegalCards(s.Hands[pos].Cards, played, *s.Round.Trump)
		require.NotEmpty(t, legal)

		res, err := m.PlayCard(s, pos, legal[0])
		require.NoError(t, err)
		results = append(results, res)

		removed[legal[0]] = true
		for _, h := range s.Hands {
			for _, c := range h.Cards {
				require.False(t, removed[c], "played card %s came back", c)
			}
		}
		assertWholeDeck(t, s)
	}
	return results
}

func TestNewRound_NothingDealtBeforeTrump(t *testing.T) {
	_, s := newState(t, 4)

	assert.Equal(t, table.PhaseTrumpSelection, s.Round.Phase)
	assert.Equal(t, 0, s.Round.DealerPosition)
	assert.Equal(t, 1, s.Round.PartyPosition)
	require.Len(t, s.Hands, 4)
	for _, h := range s.Hands {
		assert.Empty(t, h.Cards)
		assert.Equal(t, table.Undecided, h.Decision)
	}
	assert.False(t, s.OpeningSeen())
	assert.Len(t, s.Round.Stock, 40)
	assertWholeDeck(t, s)
}

func TestLook_DealsOpeningCards(t *testing.T) {
	m, s := newState(t, 4)

	assert.ErrorIs(t, m.Look(s, 0), ErrNotPartyPlayer)
	require.NoError(t, m.Look(s, 1))

	assert.True(t, s.OpeningSeen())
	assert.Equal(t, table.PhaseTrumpSelection, s.Round.Phase)
	for _, h := range s.Hands {
		assert.Len(t, h.Cards, 2)
	}
	assert.Len(t, s.Round.Stock, 40-8)
	assertWholeDeck(t, s)

	assert.ErrorIs(t, m.Look(s, 1), ErrAlreadyLooked)
}

func TestNewRound_TooFewPlayers(t *testing.T) {
	m := newMachine(1)
	_, err := m.NewRound(newGame(1), 1, 0)
	assert.ErrorIs(t, err, ErrTooFewPlayers)
}

func TestNextDealer(t *testing.T) {
	prev := &table.Round{DealerPosition: 0, PartyPosition: 1}

	d, _ := NextDealer(table.RotatePreviousParty, prev, []int{0, 1, 2})
	assert.Equal(t, 1, d)

	d, _ = NextDealer(table.RotatePreviousParty, prev, []int{0, 2, 3})
	assert.Equal(t, 2, d, "party left: next seat after them")

	prev = &table.Round{DealerPosition: 3, PartyPosition: 0}
	d, _ = NextDealer(table.RotateDealerSuccessor, prev, []int{1, 3})
	assert.Equal(t, 1, d)
}

func TestTrickValue(t *testing.T) {
	cases := []struct {
		suit   table.Suit
		before bool
		want   int
	}{
		{table.Hearts, true, 4},
		{table.Spades, true, 2},
		{table.Hearts, false, 2},
		{table.Diamonds, false, 1},
		{table.Clubs, false, 1},
	}
	for _, c := range cases {
		got, err := TrickValue(c.suit, c.before)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "%s before=%v", c.suit, c.before)
	}
	_, err := TrickValue(table.Suit(9), false)
	assert.ErrorIs(t, err, table.ErrInvalidSuit)
}

func TestSelectTrump_Rejections(t *testing.T) {
	m, s := newState(t, 3)

	assert.ErrorIs(t, m.SelectTrump(s, 0, table.Hearts, true), ErrNotPartyPlayer)
	assert.ErrorIs(t, m.SelectTrump(s, 1, table.Spades, true), ErrBlindTrumpMustBeHearts)
	assert.ErrorIs(t, m.SelectTrump(s, 1, table.Spades, false), ErrOpeningNotSeen)

	require.NoError(t, m.Look(s, 1))
	assert.ErrorIs(t, m.SelectTrump(s, 1, table.Hearts, true), ErrCardsAlreadySeen)
	assert.Nil(t, s.Round.Trump, "rejections leave the round untouched")

	require.NoError(t, m.SelectTrump(s, 1, table.Spades, false))
	assert.ErrorIs(t, m.SelectTrump(s, 1, table.Hearts, false), ErrWrongPhase)
}

func TestSelectTrump_BlindDealsEveryone(t *testing.T) {
	m, s := newState(t, 5)
	s.Game.Players[3].ConsecutiveRoundsOut = 2

	require.NoError(t, m.SelectTrump(s, 1, table.Hearts, true))

	assert.Equal(t, table.PhaseCardExchange, s.Round.Phase)
	assert.Equal(t, 4, s.Round.TrickValue)
	assert.True(t, s.Round.TrumpSelectedBeforeDealing)
	for _, h := range s.Hands {
		assert.Len(t, h.Cards, 5)
		assert.Equal(t, table.Play, h.Decision)
	}
	assert.Equal(t, 0, s.Game.Players[3].ConsecutiveRoundsOut)
	assertWholeDeck(t, s)
}

func TestSelectTrump_AfterLookingWaitsForDecisions(t *testing.T) {
	m, s := seenState(t, 3)

	require.NoError(t, m.SelectTrump(s, 1, table.Diamonds, false))

	assert.Equal(t, table.PhasePlayerDecisions, s.Round.Phase)
	assert.Equal(t, 1, s.Round.TrickValue)
	for _, h := range s.Hands {
		assert.Len(t, h.Cards, 2)
	}
}

func TestDecide_ForcedPlay(t *testing.T) {
	m, s := seenState(t, 4)
	require.NoError(t, m.SelectTrump(s, 1, table.Spades, false))

	_, err := m.Decide(s, 1, false)
	assert.ErrorIs(t, err, ErrPartyMustPlay)
	_, err = m.Decide(s, 0, false)
	assert.ErrorIs(t, err, ErrDealerMustPlay)

	s.Game.Players[2].ConsecutiveRoundsOut = 2
	_, err = m.Decide(s, 2, false)
	assert.ErrorIs(t, err, ErrSitOutLimit)

	s.Game.Players[3].Points = 5
	_, err = m.Decide(s, 3, false)
	assert.ErrorIs(t, err, ErrLowPointsMustPlay)

	assert.Len(t, s.Hands, 4, "rejected sit-outs keep their hands")
}

func TestDecide_ClubsEveryonePlays(t *testing.T) {
	m, s := seenState(t, 3)
	require.NoError(t, m.SelectTrump(s, 1, table.Clubs, false))

	_, err := m.Decide(s, 2, false)
	assert.ErrorIs(t, err, ErrClubsEveryonePlays)
}

func TestDecide_SitOutLimitThenPlayResets(t *testing.T) {
	m, s := seenState(t, 3)
	require.NoError(t, m.SelectTrump(s, 1, table.Spades, false))
	p := s.Game.Players[2]
	p.ConsecutiveRoundsOut = 2

	_, err := m.Decide(s, 2, false)
	require.ErrorIs(t, err, ErrSitOutLimit)

	_, err = m.Decide(s, 2, true)
	require.NoError(t, err)
	assert.Equal(t, 0, p.ConsecutiveRoundsOut)

	_, err = m.Decide(s, 2, true)
	assert.ErrorIs(t, err, ErrAlreadyDecided)
}

func TestDecide_SitOutAndDeal(t *testing.T) {
	m, s := seenState(t, 4)
	require.NoError(t, m.SelectTrump(s, 1, table.Spades, false))

	dealt, err := m.Decide(s, 2, false)
	require.NoError(t, err)
	assert.False(t, dealt)
	assert.NotContains(t, s.Hands, 2)
	assert.Equal(t, 1, s.Game.Players[2].ConsecutiveRoundsOut)
	assert.Len(t, s.Removed, 1)
	assert.Len(t, s.Round.Discards, 2)

	_, err = m.Decide(s, 2, true)
	assert.ErrorIs(t, err, ErrAlreadyDecided)

	for _, pos := range []int{0, 1} {
		dealt, err = m.Decide(s, pos, true)
		require.NoError(t, err)
		assert.False(t, dealt)
	}
	dealt, err = m.Decide(s, 3, true)
	require.NoError(t, err)
	assert.True(t, dealt)

	assert.Equal(t, table.PhaseCardExchange, s.Round.Phase)
	assert.Equal(t, []int{0, 1, 3}, s.Positions())
	for _, h := range s.Hands {
		assert.Len(t, h.Cards, 5)
	}
	assertWholeDeck(t, s)
}

func blindRound(t *testing.T, players int) (*Machine, *State) {
	t.Helper()
	m, s := newState(t, players)
	require.NoError(t, m.SelectTrump(s, 1, table.Hearts, true))
	return m, s
}

func TestExchange(t *testing.T) {
	m, s := blindRound(t, 5)
	h := s.Hands[2]
	before := append([]table.Card(nil), h.Cards...)

	_, _, err := m.Exchange(s, 2, before[:4])
	assert.ErrorIs(t, err, ErrTooManyCards)

	got, drawn, err := m.Exchange(s, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, before, got.Cards)
	assert.Empty(t, drawn)
	assert.False(t, got.Exchanged)

	var discard []table.Card
	for _, c := range before {
		if c != table.AceOf(table.Hearts) && len(discard) < 3 {
			discard = append(discard, c)
		}
	}
	got, drawn, err = m.Exchange(s, 2, discard)
	require.NoError(t, err)
	assert.Len(t, got.Cards, 5)
	assert.Len(t, drawn, 3)
	for _, c := range discard {
		assert.NotContains(t, got.Cards, c)
		assert.Contains(t, s.Round.Discards, c)
	}
	assertWholeDeck(t, s)

	_, _, err = m.Exchange(s, 2, got.Cards[:1])
	assert.ErrorIs(t, err, ErrAlreadyExchanged)
	assert.True(t, m.MustPlay(s, 1))
}

func TestExchange_EveryoneExchangesThree(t *testing.T) {
	m, s := blindRound(t, 5)
	for _, pos := range s.Positions() {
		h := s.Hands[pos]
		var discard []table.Card
		for _, c := range h.Cards {
			if c != table.AceOf(table.Hearts) && len(discard) < 3 {
				discard = append(discard, c)
			}
		}
		_, _, err := m.Exchange(s, pos, discard)
		require.NoError(t, err)
	}
	assertWholeDeck(t, s)
}

func TestExchange_AceOfTrumpAndNotInHand(t *testing.T) {
	m, s := blindRound(t, 3)
	ace := table.AceOf(table.Hearts)

	holder := -1
	for pos, h := range s.Hands {
		if table.Contains(h.Cards, ace) {
			holder = pos
		}
	}
	if holder >= 0 {
		_, _, err := m.Exchange(s, holder, []table.Card{ace})
		assert.ErrorIs(t, err, ErrAceOfTrumpNotExchangeable)
	}

	stranger := s.Round.Stock[0]
	_, _, err := m.Exchange(s, 0, []table.Card{stranger})
	assert.ErrorIs(t, err, trick.ErrNotInHand)
}

func TestPlayCard_TurnAndPhase(t *testing.T) {
	m, s := newState(t, 3)
	_, err := m.PlayCard(s, 1, s.Round.Stock[0])
	assert.ErrorIs(t, err, ErrWrongPhase, "no playing before dealing")

	require.NoError(t, m.SelectTrump(s, 1, table.Hearts, true))

	_, err = m.PlayCard(s, 2, s.Hands[2].Cards[0])
	assert.ErrorIs(t, err, ErrNotYourTurn)

	legal := trick.LegalCards(s.Hands[1].Cards, nil, table.Hearts)
	res, err := m.PlayCard(s, 1, legal[0])
	require.NoError(t, err)
	assert.Equal(t, table.PhasePlaying, s.Round.Phase, "first card closes the exchange window")
	assert.Equal(t, 1, res.Trick.Number)
	assert.Equal(t, 2, res.NextTurn)

	_, _, err = m.Exchange(s, 2, s.Hands[2].Cards[:1])
	assert.ErrorIs(t, err, ErrWrongPhase)
}

func TestPlayCard_FullRound(t *testing.T) {
	m, s := blindRound(t, 3)

	results := playOut(t, m, s)

	last := results[len(results)-1]
	require.True(t, last.RoundCompleted)
	assert.Equal(t, table.PhaseCompleted, s.Round.Phase)
	assert.NotNil(t, s.Round.CompletedAt)
	require.Len(t, s.Tricks, 5)

	total := 0
	for _, h := range s.Hands {
		total += h.TricksWon
		assert.Empty(t, h.Cards)
	}
	assert.Equal(t, 5, total)

	for i, tr := range s.Tricks {
		require.NotNil(t, tr.WinnerPosition)
		if i == 0 {
			assert.Equal(t, 1, tr.LeadPosition, "party leads the first trick")
		} else {
			assert.Equal(t, *s.Tricks[i-1].WinnerPosition, tr.LeadPosition)
		}
	}

	require.Len(t, s.Scores, 3)
	sum, want := 0, 0
	for _, e := range s.Scores {
		sum += e.PointsChange
		p, _ := s.Game.PlayerByID(e.PlayerID)
		assert.Equal(t, p.Points, e.PointsAfter)
	}
	for _, h := range s.Hands {
		switch {
		case h.TricksWon > 0:
			want -= h.TricksWon * 4
		case h.Position == 1:
			want += 40
		default:
			want += 20
		}
	}
	assert.Equal(t, want, sum)
}

// A three-player round with hearts chosen after looking: every trick is
// worth 2 and the no-trick penalties are 10, doubled for the party player.
func TestPlayCard_FullRoundAfterLooking(t *testing.T) {
	m, s := seenState(t, 3)
	require.NoError(t, m.SelectTrump(s, 1, table.Hearts, false))
	assert.Equal(t, 2, s.Round.TrickValue)
	assert.False(t, s.Round.TrumpSelectedBeforeDealing)

	for _, pos := range []int{0, 1, 2} {
		_, err := m.Decide(s, pos, true)
		require.NoError(t, err)
	}
	require.Equal(t, table.PhaseCardExchange, s.Round.Phase)

	for _, pos := range s.Positions() {
		var discard []table.Card
		for _, c := range s.Hands[pos].Cards {
			if c.Suit != table.Hearts && len(discard) < 2 {
				discard = append(discard, c)
			}
		}
		_, _, err := m.Exchange(s, pos, discard)
		require.NoError(t, err)
	}
	assertWholeDeck(t, s)

	playOut(t, m, s)
	require.Len(t, s.Tricks, 5)
	require.Len(t, s.Scores, 3)

	byPlayer := make(map[string]*table.Hand)
	for _, h := range s.Hands {
		byPlayer[h.PlayerID] = h
	}
	for _, e := range s.Scores {
		h := byPlayer[e.PlayerID]
		require.NotNil(t, h)
		switch {
		case h.TricksWon > 0:
			assert.Equal(t, -2*h.TricksWon, e.PointsChange, "position %d", h.Position)
		case h.Position == s.Round.PartyPosition:
			assert.Equal(t, 20, e.PointsChange)
		default:
			assert.Equal(t, 10, e.PointsChange, "position %d", h.Position)
		}
		p, _ := s.Game.PlayerByID(e.PlayerID)
		assert.Equal(t, 20+e.PointsChange, p.Points)
	}
}

func TestCancel(t *testing.T) {
	m, s := newState(t, 3)
	m.Cancel(s)
	assert.True(t, s.Round.Cancelled)
	assert.Equal(t, table.PhaseCompleted, s.Round.Phase)
}

func TestStateClone_Independent(t *testing.T) {
	_, s := seenState(t, 3)
	c := s.Clone()

	c.Hands[0].Cards = nil
	c.Game.Players[0].Points = 1
	c.Round.Stock = nil

	assert.Len(t, s.Hands[0].Cards, 2)
	assert.Equal(t, 20, s.Game.Players[0].Points)
	assert.NotEmpty(t, s.Round.Stock)
}
