package trick

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SobeSobe/internal/game/table"
)

func c(s string) table.Card {
	card, err := table.ParseCard(s)
	if err != nil {
		panic(err)
	}
	return card
}

func cards(ss ...string) []table.Card {
	out := make([]table.Card, len(ss))
	for i, s := range ss {
		out[i] = c(s)
	}
	return out
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name   string
		card   string
		hand   []table.Card
		played []table.Card
		trump  table.Suit
		want   error
	}{
		{"not in hand", "KS", cards("5S"), nil, table.Hearts, ErrNotInHand},
		{"must lead ace of trump", "5S", cards("AH", "5S"), nil, table.Hearts, ErrMustLeadAceOfTrump},
		{"lead ace of trump", "AH", cards("AH", "5S"), nil, table.Hearts, nil},
		{"free lead without ace", "5S", cards("7H", "5S"), nil, table.Hearts, nil},
		{"must follow suit", "7H", cards("7H", "5S"), cards("KS"), table.Hearts, ErrMustFollowSuit},
		{"follow suit low", "5S", cards("7H", "5S"), cards("KS"), table.Hearts, nil},
		{"must cut with trump", "2D", cards("7H", "2D"), cards("KS"), table.Hearts, ErrMustCutWithTrump},
		{"cut", "7H", cards("7H", "2D"), cards("KS"), table.Hearts, nil},
		{"must cut with ace", "7H", cards("AH", "7H", "2D"), cards("KS"), table.Hearts, ErrMustCutWithAceOfTrump},
		{"cut with ace", "AH", cards("AH", "7H", "2D"), cards("KS"), table.Hearts, nil},
		{"nothing to follow or cut", "2D", cards("3C", "2D"), cards("KS"), table.Hearts, nil},
		{"must escalate trump", "2H", cards("7H", "2H"), cards("KH"), table.Hearts, ErrMustEscalateTrump},
		{"escalate", "7H", cards("7H", "2H"), cards("KH"), table.Hearts, nil},
		{"cannot beat, any trump", "2H", cards("QH", "2H"), cards("KH"), table.Hearts, nil},
		{"escalate over later trump", "QH", cards("7H", "QH"), cards("JH", "KH"), table.Hearts, ErrMustEscalateTrump},
		{"follow non-trump lead below cut", "2S", cards("2S", "7H"), cards("KS", "AH"), table.Hearts, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(c(tt.card), tt.hand, tt.played, tt.trump)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLegalCards_AceOfTrumpLead(t *testing.T) {
	legal := LegalCards(cards("AH", "5S"), nil, table.Hearts)

	assert.Equal(t, cards("AH"), legal)
}

func TestLegalCards_AlwaysSomethingToPlay(t *testing.T) {
	hand := cards("2C", "3D", "QS")
	for _, lead := range []string{"AH", "7C", "KS", "4D"} {
		legal := LegalCards(hand, cards(lead), table.Spades)
		assert.NotEmpty(t, legal, "lead %s", lead)
	}
}

func TestWinner_TrumpBeatsLeadSuit(t *testing.T) {
	played := []table.PlayedCard{
		{Position: 0, Card: c("7H")},
		{Position: 1, Card: c("AS")},
		{Position: 2, Card: c("2H")},
	}

	w, err := Winner(played, table.Spades, table.Hearts)

	require.NoError(t, err)
	assert.Equal(t, c("7H"), w.Card)
	assert.Equal(t, 0, w.Position)
}

func TestWinner_PermutationInvariant(t *testing.T) {
	played := []table.PlayedCard{
		{Position: 0, Card: c("7H")},
		{Position: 1, Card: c("AS")},
		{Position: 2, Card: c("2H")},
		{Position: 3, Card: c("KD")},
	}
	perms := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1}}

	for _, p := range perms {
		in := make([]table.PlayedCard, len(p))
		for i, j := range p {
			in[i] = played[j]
		}
		w, err := Winner(in, table.Spades, table.Hearts)
		require.NoError(t, err)
		assert.Equal(t, c("7H"), w.Card)
	}
}

func TestWinner_HighestLeadSuitWithoutTrump(t *testing.T) {
	played := []table.PlayedCard{
		{Position: 1, Card: c("QS")},
		{Position: 2, Card: c("AD")},
		{Position: 0, Card: c("7S")},
	}

	w, err := Winner(played, table.Spades, table.Clubs)

	require.NoError(t, err)
	assert.Equal(t, 0, w.Position, "7 outranks the queen")
}

func TestWinner_Empty(t *testing.T) {
	_, err := Winner(nil, table.Spades, table.Hearts)
	assert.ErrorIs(t, err, ErrEmptyTrick)
}

func TestTurnOrder(t *testing.T) {
	assert.Equal(t, []int{2, 3, 0, 1}, TurnOrder(2, []int{0, 1, 2, 3}))
	assert.Equal(t, []int{4, 0, 3}, TurnOrder(4, []int{3, 0, 4}))
	assert.Equal(t, []int{0, 1}, TurnOrder(0, []int{1, 0}))
}

func TestNextToPlay(t *testing.T) {
	tr := &table.Trick{LeadPosition: 2}
	positions := []int{0, 2, 3}

	pos, ok := NextToPlay(tr, positions)
	require.True(t, ok)
	assert.Equal(t, 2, pos)

	tr.Cards = append(tr.Cards, table.PlayedCard{Position: 2, Card: c("5S")})
	pos, _ = NextToPlay(tr, positions)
	assert.Equal(t, 3, pos)

	tr.Cards = append(tr.Cards, table.PlayedCard{Position: 3, Card: c("6S")})
	pos, _ = NextToPlay(tr, positions)
	assert.Equal(t, 0, pos)

	tr.Cards = append(tr.Cards, table.PlayedCard{Position: 0, Card: c("7S")})
	_, ok = NextToPlay(tr, positions)
	assert.False(t, ok)
}
