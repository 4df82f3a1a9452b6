package engine

import (
	"time"

	"SobeSobe/internal/game/round"
	"SobeSobe/internal/game/scoring"
	"SobeSobe/internal/game/store"
	"SobeSobe/internal/game/table"
)

// txn collects what one intent changed and what to tell players once the
// change is committed.
type txn struct {
	m      *round.Machine
	game   *table.Game
	cur    *round.State
	states []*round.State
	scores []table.ScoreEntry
	events []Event
	now    time.Time
}

func (t *txn) publish(ev Event) {
	t.events = append(t.events, ev)
}

func (t *txn) touch(s *round.State) {
	for _, x := range t.states {
		if x == s {
			return
		}
	}
	t.states = append(t.states, s)
}

func (t *txn) changeset() *store.Changeset {
	cs := &store.Changeset{Game: t.game}
	cs.Scores = append(cs.Scores, t.scores...)
	for _, s := range t.states {
		cs.Rounds = append(cs.Rounds, s.Round)
		cs.Hands = append(cs.Hands, s.HandList()...)
		cs.DeletedHands = append(cs.DeletedHands, s.Removed...)
		cs.Tricks = append(cs.Tricks, s.Tricks...)
		cs.Scores = append(cs.Scores, s.Scores...)
	}
	return cs
}

func (t *txn) userAt(position int) string {
	if p, ok := t.game.PlayerAt(position); ok {
		return p.UserID
	}
	return ""
}

func (t *txn) join(user string) (*table.Player, error) {
	g := t.game
	if g.Status != table.GameWaiting {
		return nil, ErrGameNotWaiting
	}
	if _, ok := g.PlayerByUser(user); ok {
		return nil, ErrAlreadyJoined
	}
	pos, ok := g.FreePosition()
	if !ok {
		return nil, ErrGameFull
	}
	p := &table.Player{
		ID:       t.m.NewID(),
		UserID:   user,
		Position: pos,
		Points:   t.m.Rules.StartingPoints,
		IsActive: true,
		JoinedAt: t.now,
	}
	g.Players = append(g.Players, p)
	t.publish(Event{Kind: EventPlayerJoined, Payload: PlayerJoinedPayload{UserID: user, PlayerID: p.ID, Position: pos}})
	return p, nil
}

// leave frees the seat of a waiting game. Mid-game the player goes inactive;
// a round they hold cards in is cancelled and the next one dealt, unless too
// few players remain and the game is abandoned.
func (t *txn) leave(user string) error {
	g := t.game
	p, ok := g.PlayerByUser(user)
	if !ok || !p.IsActive {
		return ErrNotSeated
	}
	left := PlayerLeftPayload{UserID: user, Position: p.Position}

	switch g.Status {
	case table.GameWaiting:
		kept := g.Players[:0]
		for _, x := range g.Players {
			if x.UserID != user {
				kept = append(kept, x)
			}
		}
		g.Players = kept
		t.publish(Event{Kind: EventPlayerLeft, Payload: left, Recipients: append(g.UserIDs(), user)})
		if len(g.Players) == 0 {
			g.Status = table.GameAbandoned
			g.CompletedAt = &t.now
			return nil
		}
		if g.CreatorID == user {
			g.CreatorID = g.ActivePlayers()[0].UserID
		}
		return nil

	case table.GameInProgress:
		p.IsActive = false
		p.LeftAt = &t.now
		t.publish(Event{Kind: EventPlayerLeft, Payload: left, Recipients: append(g.UserIDs(), user)})

		s := t.cur
		live := s != nil && s.Round.Phase != table.PhaseCompleted
		holds := false
		if live {
			_, holds = s.Hands[p.Position]
		}
		abandon := len(g.ActivePlayers()) < t.m.Rules.MinPlayers

		if live && (holds || abandon) {
			t.m.Cancel(s)
			t.touch(s)
			t.publish(Event{Kind: EventRoundCancelled, Payload: RoundCancelledPayload{RoundID: s.Round.ID, Number: s.Round.Number}})
		}
		if abandon {
			t.finish(table.GameAbandoned)
			return nil
		}
		if live && holds {
			return t.nextRound(s)
		}
		return nil

	default:
		return ErrGameNotInProgress
	}
}

func (t *txn) start(user string) error {
	g := t.game
	if g.Status != table.GameWaiting {
		return ErrGameNotWaiting
	}
	if user != g.CreatorID {
		return ErrNotCreator
	}
	active := g.ActivePlayers()
	if len(active) < t.m.Rules.MinPlayers {
		return ErrNotEnoughPlayers
	}

	g.Status = table.GameInProgress
	g.StartedAt = &t.now
	for _, p := range active {
		p.Points = t.m.Rules.StartingPoints
		p.ConsecutiveRoundsOut = 0
		t.scores = append(t.scores, table.ScoreEntry{
			ID:           t.m.NewID(),
			GameID:       g.ID,
			PlayerID:     p.ID,
			PointsChange: t.m.Rules.StartingPoints,
			PointsAfter:  p.Points,
			Reason:       table.ReasonGameStarted,
			CreatedAt:    t.now,
		})
	}
	t.publish(Event{Kind: EventGameStarted, Payload: GameStartedPayload{Players: active}})

	s, err := t.m.NewRound(g, 1, active[0].Position)
	if err != nil {
		return err
	}
	t.beginRound(s)
	return nil
}

// seat resolves user to a position in the round in progress.
func (t *txn) seat(user string) (int, error) {
	if t.game.Status != table.GameInProgress {
		return 0, ErrGameNotInProgress
	}
	if t.cur == nil || t.cur.Round.Phase == table.PhaseCompleted {
		return 0, ErrNoActiveRound
	}
	p, ok := t.game.PlayerByUser(user)
	if !ok || !p.IsActive {
		return 0, ErrNotSeated
	}
	t.touch(t.cur)
	return p.Position, nil
}

func (t *txn) look(user string) error {
	pos, err := t.seat(user)
	if err != nil {
		return err
	}
	if err := t.m.Look(t.cur, pos); err != nil {
		return err
	}
	t.dealt(t.cur)
	return nil
}

func (t *txn) selectTrump(user string, in TrumpIntent) error {
	pos, err := t.seat(user)
	if err != nil {
		return err
	}
	if err := t.m.SelectTrump(t.cur, pos, in.Suit, in.BeforeDealing); err != nil {
		return err
	}
	r := t.cur.Round
	t.publish(Event{Kind: EventTrumpSelected, Payload: TrumpSelectedPayload{
		Trump:         *r.Trump,
		BeforeDealing: r.TrumpSelectedBeforeDealing,
		TrickValue:    r.TrickValue,
	}})
	if r.Phase == table.PhaseCardExchange {
		t.dealt(t.cur)
	}
	return nil
}

func (t *txn) decide(user string, in DecideIntent) error {
	pos, err := t.seat(user)
	if err != nil {
		return err
	}
	dealt, err := t.m.Decide(t.cur, pos, in.Play)
	if err != nil {
		return err
	}
	d := table.SitOut
	if in.Play {
		d = table.Play
	}
	t.publish(Event{Kind: EventPlayerDecided, Payload: PlayerDecidedPayload{Position: pos, Decision: d}})
	if dealt {
		t.dealt(t.cur)
	}
	return nil
}

func (t *txn) exchange(user string, in ExchangeIntent) (*table.Hand, error) {
	pos, err := t.seat(user)
	if err != nil {
		return nil, err
	}
	h, drawn, err := t.m.Exchange(t.cur, pos, in.Cards)
	if err != nil {
		return nil, err
	}
	if len(drawn) > 0 {
		t.publish(Event{Kind: EventCardsExchanged, Recipients: []string{user}, Payload: CardsExchangedPayload{
			Position: pos, Count: len(drawn), Cards: h.Cards, Drawn: drawn,
		}})
		t.publish(Event{Kind: EventCardsExchanged, Except: user, Payload: CardsExchangedPayload{
			Position: pos, Count: len(drawn),
		}})
	}
	return h.Clone(), nil
}

func (t *txn) play(user string, in PlayIntent) (*round.PlayResult, error) {
	pos, err := t.seat(user)
	if err != nil {
		return nil, err
	}
	res, err := t.m.PlayCard(t.cur, pos, in.Card)
	if err != nil {
		return nil, err
	}

	played := CardPlayedPayload{Position: pos, Card: in.Card, TrickNumber: res.Trick.Number}
	if !res.RoundCompleted {
		next := res.NextTurn
		played.NextTurn = &next
	}
	t.publish(Event{Kind: EventCardPlayed, Payload: played})
	if res.TrickCompleted {
		t.publish(Event{Kind: EventTrickCompleted, Payload: TrickCompletedPayload{
			Number: res.Trick.Number, WinnerPosition: res.Winner, Cards: res.Trick.Cards,
		}})
	}
	if !res.RoundCompleted {
		return res, nil
	}

	r := t.cur.Round
	t.publish(Event{Kind: EventRoundCompleted, Payload: RoundCompletedPayload{RoundID: r.ID, Number: r.Number, Deltas: res.Deltas}})
	if scoring.GameOver(t.game.Players) {
		t.finish(table.GameCompleted)
		return res, nil
	}
	if err := t.nextRound(t.cur); err != nil {
		return nil, err
	}
	return res, nil
}

// nextRound deals the round after prev among the remaining players.
func (t *txn) nextRound(prev *round.State) error {
	positions := t.game.ActivePositions()
	dealerPos, ok := round.NextDealer(t.m.Rules.DealerRotation, prev.Round, positions)
	if !ok {
		return round.ErrTooFewPlayers
	}
	s, err := t.m.NewRound(t.game, prev.Round.Number+1, dealerPos)
	if err != nil {
		return err
	}
	t.beginRound(s)
	return nil
}

func (t *txn) beginRound(s *round.State) {
	t.touch(s)
	r := s.Round
	t.publish(Event{Kind: EventRoundStarted, Payload: RoundStartedPayload{
		RoundID:        r.ID,
		Number:         r.Number,
		DealerPosition: r.DealerPosition,
		PartyPosition:  r.PartyPosition,
	}})
}

// dealt privately shows every hand of s to its owner.
func (t *txn) dealt(s *round.State) {
	for _, h := range s.HandList() {
		t.publish(Event{
			Kind:       EventCardsDealt,
			Recipients: []string{t.userAt(h.Position)},
			Payload: CardsDealtPayload{
				RoundID: s.Round.ID,
				Phase:   s.Round.Phase,
				Cards:   append([]table.Card(nil), h.Cards...),
			},
		})
	}
}

func (t *txn) finish(status table.GameStatus) {
	g := t.game
	g.Status = status
	g.CompletedAt = &t.now
	standings := scoring.Standings(g.Players, t.m.Rules.BuyIn)
	if status != table.GameCompleted {
		t.publish(Event{Kind: EventGameAbandoned, Payload: GameAbandonedPayload{Standings: standings}})
		return
	}
	if w, ok := scoring.Winner(g.Players); ok {
		g.WinnerPlayerID = w.ID
	}
	t.publish(Event{Kind: EventGameCompleted, Payload: GameCompletedPayload{WinnerPlayerID: g.WinnerPlayerID, Standings: standings}})
}
