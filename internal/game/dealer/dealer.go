package dealer

import (
	"fmt"
	"math/rand"

	"SobeSobe/internal/game/gameerr"
	"SobeSobe/internal/game/table"
)

// DeckSize is four suits of ten ranks; 8, 9 and 10 are not in the deck.
const DeckSize = 40

var ErrInsufficientCards = gameerr.Internal("InsufficientCards", "deck exhausted while dealing")

// Dealer only shuffles and draws; it knows no rules.
type Dealer struct {
	rnd *rand.Rand
}

func NewDealer(seed int64) *Dealer {
	return &Dealer{rnd: rand.New(rand.NewSource(seed))}
}

// NewDeck returns the 40 distinct cards in suit then rank order.
func NewDeck() []table.Card {
	deck := make([]table.Card, 0, DeckSize)
	for _, s := range table.Suits {
		for _, r := range table.Ranks {
			deck = append(deck, table.Card{Suit: s, Rank: r})
		}
	}
	return deck
}

// Shuffle permutes deck in place (Fisher-Yates).
func (d *Dealer) Shuffle(deck []table.Card) {
	for i := len(deck) - 1; i > 0; i-- {
		j := d.rnd.Intn(i + 1)
		deck[i], deck[j] = deck[j], deck[i]
	}
}

// ShuffledDeck is NewDeck followed by Shuffle.
func (d *Dealer) ShuffledDeck() []table.Card {
	deck := NewDeck()
	d.Shuffle(deck)
	return deck
}

// Draw reshuffles stock and takes n cards off the top. It returns the drawn
// cards and the remaining stock.
func (d *Dealer) Draw(stock []table.Card, n int) ([]table.Card, []table.Card, error) {
	if n > len(stock) {
		return nil, stock, fmt.Errorf("draw %d from %d: %w", n, len(stock), ErrInsufficientCards)
	}
	rest := append([]table.Card(nil), stock...)
	d.Shuffle(rest)
	return rest[:n:n], rest[n:], nil
}

// Deal hands out cardsPerPlayer cards one at a time, counter-clockwise,
// starting with the first position after the dealer within positions. It
// returns position -> cards and the undealt remainder of deck.
func Deal(deck []table.Card, positions []int, dealerPosition, cardsPerPlayer int) (map[int][]table.Card, []table.Card, error) {
	first, ok := table.NextPosition(dealerPosition, positions)
	if !ok {
		return map[int][]table.Card{}, append([]table.Card(nil), deck...), nil
	}
	order := table.Rotation(first, positions)
	need := len(order) * cardsPerPlayer
	if need > len(deck) {
		return nil, deck, fmt.Errorf("need %d cards, have %d: %w", need, len(deck), ErrInsufficientCards)
	}

	out := make(map[int][]table.Card, len(order))
	idx := 0
	for i := 0; i < cardsPerPlayer; i++ {
		for _, pos := range order {
			out[pos] = append(out[pos], deck[idx])
			idx++
		}
	}
	return out, append([]table.Card(nil), deck[idx:]...), nil
}
