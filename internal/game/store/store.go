// Package store persists games. The engine reads an authoritative snapshot
// through Store and writes everything one intent changed through a single
// Commit, which every implementation applies atomically.
package store

import (
	"context"

	"SobeSobe/internal/game/gameerr"
	"SobeSobe/internal/game/table"
)

var (
	ErrGameNotFound  = gameerr.NotFound("GameNotFound", "game not found")
	ErrRoundNotFound = gameerr.NotFound("RoundNotFound", "game has no round yet")
	ErrHandNotFound  = gameerr.NotFound("HandNotFound", "no hand for this player in the round")
	ErrEmptyCommit   = gameerr.Internal("EmptyCommit", "commit carries no game")
)

type Store interface {
	LoadGame(ctx context.Context, gameID string) (*table.Game, error)
	// CurrentRound returns the round with the highest number.
	CurrentRound(ctx context.Context, gameID string) (*table.Round, error)
	// FindHand looks up a single hand for readers outside the engine, such
	// as reporting tools; the engine loads whole rounds with ListHands.
	FindHand(ctx context.Context, roundID, playerID string) (*table.Hand, error)
	ListHands(ctx context.Context, roundID string) ([]*table.Hand, error)
	// ListTricks returns tricks ordered by number.
	ListTricks(ctx context.Context, roundID string) ([]*table.Trick, error)
	// ScoreHistory returns score entries in insertion order.
	ScoreHistory(ctx context.Context, gameID string) ([]table.ScoreEntry, error)
	// ListGames returns games with the given status, or all games when
	// status is empty, newest first.
	ListGames(ctx context.Context, status table.GameStatus) ([]*table.Game, error)
	Commit(ctx context.Context, cs *Changeset) error
}

// Changeset is everything one intent wrote. Game, rounds, hands and tricks
// are upserted, DeletedHands removed and Scores appended.
type Changeset struct {
	Game         *table.Game
	Rounds       []*table.Round
	Hands        []*table.Hand
	DeletedHands []*table.Hand
	Tricks       []*table.Trick
	Scores       []table.ScoreEntry
}

func (cs *Changeset) validate() error {
	if cs == nil || cs.Game == nil {
		return ErrEmptyCommit
	}
	return nil
}
