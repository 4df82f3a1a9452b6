// Package bots drives games through the engine with simple heuristic
// players. The simulator and the end-to-end tests use it.
package bots

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"SobeSobe/internal/game/engine"
	"SobeSobe/internal/game/gameerr"
	"SobeSobe/internal/game/table"
	"SobeSobe/internal/game/trick"
)

var ErrStalled = errors.New("bots: game did not finish")

// Bot chooses intents from what a player can see.
type Bot struct {
	RNG *rand.Rand
	// BlindRate is the chance the party player picks hearts before dealing.
	BlindRate float64
	MaxSteps  int
}

func New(seed int64) *Bot {
	return &Bot{RNG: rand.New(rand.NewSource(seed)), BlindRate: 0.1, MaxSteps: 5000}
}

// strength scores a hand for trump: trumps count double.
func strength(cards []table.Card, trump table.Suit) int {
	n := 0
	for _, c := range cards {
		v := table.RankValue(c.Rank)
		if c.Suit == trump {
			v *= 2
		}
		n += v
	}
	return n
}

// ChooseBlind decides whether the party player takes hearts without looking.
func (b *Bot) ChooseBlind() bool {
	return b.RNG.Float64() < b.BlindRate
}

// ChooseTrump picks the suit that makes the opening cards strongest.
func (b *Bot) ChooseTrump(hand []table.Card) table.Suit {
	best, bestScore := table.Hearts, -1
	for _, s := range table.Suits {
		if n := strength(hand, s); n > bestScore {
			best, bestScore = s, n
		}
	}
	return best
}

// ChoosePlay decides whether to play the round.
func (b *Bot) ChoosePlay(hand []table.Card, trump table.Suit, mustPlay bool) bool {
	if mustPlay {
		return true
	}
	for _, c := range hand {
		if c.Suit == trump || c.Rank == table.Ace {
			return true
		}
	}
	return b.RNG.Intn(3) == 0
}

// ChooseDiscards throws away weak off-trump cards.
func (b *Bot) ChooseDiscards(hand []table.Card, trump table.Suit, max int) []table.Card {
	var out []table.Card
	for _, c := range hand {
		if len(out) == max {
			break
		}
		if c.Suit != trump && table.RankValue(c.Rank) <= table.RankValue(table.Jack) {
			out = append(out, c)
		}
	}
	return out
}

// ChooseCard plays the strongest legal card, trumps first.
func (b *Bot) ChooseCard(legal []table.Card, trump table.Suit) table.Card {
	cards := append([]table.Card(nil), legal...)
	sort.SliceStable(cards, func(i, j int) bool {
		ti, tj := cards[i].Suit == trump, cards[j].Suit == trump
		if ti != tj {
			return ti
		}
		return table.RankValue(cards[i].Rank) > table.RankValue(cards[j].Rank)
	})
	return cards[0]
}

func userAt(g *table.Game, pos int) (string, error) {
	p, ok := g.PlayerAt(pos)
	if !ok {
		return "", fmt.Errorf("no player at position %d", pos)
	}
	return p.UserID, nil
}

// Play drives eng until the game leaves InProgress. observer is any seated
// user; every seated user is played by b.
func (b *Bot) Play(ctx context.Context, eng *engine.Engine, observer string) (*table.Game, error) {
	exchanged := make(map[string]bool) // roundID/user
	for i := 0; i < b.MaxSteps; i++ {
		v, err := eng.View(ctx, observer)
		if err != nil {
			return nil, err
		}
		if v.Game.Status != table.GameInProgress {
			return v.Game, nil
		}
		if v.Round == nil {
			return nil, engine.ErrNoActiveRound
		}
		if err := b.step(ctx, eng, v, exchanged); err != nil {
			return nil, err
		}
	}
	return nil, ErrStalled
}

func (b *Bot) step(ctx context.Context, eng *engine.Engine, v *engine.View, exchanged map[string]bool) error {
	r := v.Round
	switch r.Phase {
	case table.PhaseTrumpSelection:
		user, err := userAt(v.Game, r.PartyPosition)
		if err != nil {
			return err
		}
		if !r.OpeningSeen {
			if b.ChooseBlind() {
				return eng.SelectTrump(ctx, user, table.Hearts, true)
			}
			return eng.Look(ctx, user)
		}
		pv, err := eng.View(ctx, user)
		if err != nil {
			return err
		}
		return eng.SelectTrump(ctx, user, b.ChooseTrump(pv.Hand.Cards), false)

	case table.PhasePlayerDecisions:
		for _, h := range v.Hands {
			if h.Decision != table.Undecided {
				continue
			}
			user, err := userAt(v.Game, h.Position)
			if err != nil {
				return err
			}
			pv, err := eng.View(ctx, user)
			if err != nil {
				return err
			}
			play := b.ChoosePlay(pv.Hand.Cards, *r.Trump, pv.MustPlay)
			err = eng.Decide(ctx, user, play)
			if !play && gameerr.KindOf(err) == gameerr.KindRule {
				err = eng.Decide(ctx, user, true)
			}
			return err
		}
		return nil

	case table.PhaseCardExchange:
		for _, h := range v.Hands {
			user, err := userAt(v.Game, h.Position)
			if err != nil {
				return err
			}
			key := r.ID + "/" + user
			if exchanged[key] {
				continue
			}
			exchanged[key] = true
			pv, err := eng.View(ctx, user)
			if err != nil {
				return err
			}
			discard := b.ChooseDiscards(pv.Hand.Cards, *r.Trump, 3)
			_, err = eng.Exchange(ctx, user, discard)
			return err
		}
		return b.playTurn(ctx, eng, v)

	case table.PhasePlaying:
		return b.playTurn(ctx, eng, v)
	}
	return fmt.Errorf("round %d stuck in phase %s", r.Number, r.Phase)
}

func (b *Bot) playTurn(ctx context.Context, eng *engine.Engine, v *engine.View) error {
	if v.Turn == nil {
		return fmt.Errorf("round %d: nobody on turn", v.Round.Number)
	}
	user, err := userAt(v.Game, *v.Turn)
	if err != nil {
		return err
	}
	pv, err := eng.View(ctx, user)
	if err != nil {
		return err
	}
	var played []table.Card
	if n := len(pv.Tricks); n > 0 && !pv.Tricks[n-1].Completed() {
		played = pv.Tricks[n-1].PlayedCards()
	}
	legal := trick.LegalCards(pv.Hand.Cards, played, *pv.Round.Trump)
	if len(legal) == 0 {
		return fmt.Errorf("%s holds no legal card", user)
	}
	_, err = eng.PlayCard(ctx, user, b.ChooseCard(legal, *pv.Round.Trump))
	return err
}
