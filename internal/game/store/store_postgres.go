package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"SobeSobe/internal/game/table"
)

// SQLExecutor is satisfied by both *sql.DB and *sql.Tx.
type SQLExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Schema creates the tables used by the Postgres store. Cards are kept as
// JSONB arrays of "7H" style strings.
const Schema = `
CREATE TABLE IF NOT EXISTS games (
	id               TEXT PRIMARY KEY,
	status           TEXT NOT NULL,
	max_players      INT NOT NULL,
	creator_id       TEXT NOT NULL,
	winner_player_id TEXT,
	created_at       TIMESTAMPTZ NOT NULL,
	started_at       TIMESTAMPTZ,
	completed_at     TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS players (
	id                     TEXT PRIMARY KEY,
	game_id                TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	user_id                TEXT NOT NULL,
	position               INT NOT NULL,
	points                 INT NOT NULL,
	is_active              BOOLEAN NOT NULL,
	consecutive_rounds_out INT NOT NULL DEFAULT 0,
	joined_at              TIMESTAMPTZ NOT NULL,
	left_at                TIMESTAMPTZ,
	UNIQUE (game_id, position)
);

CREATE TABLE IF NOT EXISTS rounds (
	id                   TEXT PRIMARY KEY,
	game_id              TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	number               INT NOT NULL,
	dealer_position      INT NOT NULL,
	party_position       INT NOT NULL,
	trump                TEXT,
	trump_before_dealing BOOLEAN NOT NULL DEFAULT FALSE,
	trick_value          INT NOT NULL DEFAULT 0,
	current_trick_number INT NOT NULL DEFAULT 0,
	phase                TEXT NOT NULL,
	stock                JSONB NOT NULL DEFAULT '[]',
	discards             JSONB NOT NULL DEFAULT '[]',
	sitting_out          INT[] NOT NULL DEFAULT '{}',
	cancelled            BOOLEAN NOT NULL DEFAULT FALSE,
	started_at           TIMESTAMPTZ NOT NULL,
	completed_at         TIMESTAMPTZ,
	UNIQUE (game_id, number)
);

CREATE TABLE IF NOT EXISTS hands (
	id         TEXT PRIMARY KEY,
	round_id   TEXT NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
	player_id  TEXT NOT NULL,
	position   INT NOT NULL,
	cards      JSONB NOT NULL DEFAULT '[]',
	decision   TEXT NOT NULL,
	exchanged  BOOLEAN NOT NULL DEFAULT FALSE,
	tricks_won INT NOT NULL DEFAULT 0,
	UNIQUE (round_id, player_id)
);

CREATE TABLE IF NOT EXISTS tricks (
	id              TEXT PRIMARY KEY,
	round_id        TEXT NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
	number          INT NOT NULL,
	lead_position   INT NOT NULL,
	winner_position INT,
	cards           JSONB NOT NULL DEFAULT '[]',
	UNIQUE (round_id, number)
);

CREATE TABLE IF NOT EXISTS score_entries (
	seq           BIGSERIAL PRIMARY KEY,
	id            TEXT NOT NULL UNIQUE,
	game_id       TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	player_id     TEXT NOT NULL,
	round_id      TEXT,
	points_change INT NOT NULL,
	points_after  INT NOT NULL,
	reason        TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
`

type postgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) Store {
	return &postgresStore{db: db}
}

// Migrate applies Schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *postgresStore) LoadGame(ctx context.Context, gameID string) (*table.Game, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, max_players, creator_id, COALESCE(winner_player_id, ''), created_at, started_at, completed_at
		FROM games WHERE id = $1`, gameID)
	g, err := scanGame(row)
	if err != nil {
		return nil, err
	}
	if g.Players, err = s.listPlayers(ctx, s.db, gameID); err != nil {
		return nil, err
	}
	return g, nil
}

func scanGame(row rowScanner) (*table.Game, error) {
	var g table.Game
	var status string
	err := row.Scan(&g.ID, &status, &g.MaxPlayers, &g.CreatorID, &g.WinnerPlayerID, &g.CreatedAt, &g.StartedAt, &g.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	g.Status = table.GameStatus(status)
	return &g, nil
}

func (s *postgresStore) listPlayers(ctx context.Context, exec SQLExecutor, gameID string) ([]*table.Player, error) {
	rows, err := exec.QueryContext(ctx, `
		SELECT id, user_id, position, points, is_active, consecutive_rounds_out, joined_at, left_at
		FROM players WHERE game_id = $1 ORDER BY position`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := make([]*table.Player, 0)
	for rows.Next() {
		var p table.Player
		if err := rows.Scan(&p.ID, &p.UserID, &p.Position, &p.Points, &p.IsActive, &p.ConsecutiveRoundsOut, &p.JoinedAt, &p.LeftAt); err != nil {
			return nil, err
		}
		players = append(players, &p)
	}
	return players, rows.Err()
}

const roundColumns = `id, game_id, number, dealer_position, party_position, trump, trump_before_dealing,
	trick_value, current_trick_number, phase, stock, discards, sitting_out, cancelled, started_at, completed_at`

func (s *postgresStore) CurrentRound(ctx context.Context, gameID string) (*table.Round, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+roundColumns+`
		FROM rounds WHERE game_id = $1 ORDER BY number DESC LIMIT 1`, gameID)

	var r table.Round
	var trump sql.NullString
	var phase string
	var stock, discards []byte
	var sittingOut []int64
	err := row.Scan(&r.ID, &r.GameID, &r.Number, &r.DealerPosition, &r.PartyPosition, &trump, &r.TrumpSelectedBeforeDealing,
		&r.TrickValue, &r.CurrentTrickNumber, &phase, &stock, &discards, pq.Array(&sittingOut), &r.Cancelled, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	if trump.Valid {
		su, err := table.ParseSuit(trump.String)
		if err != nil {
			return nil, fmt.Errorf("round %s trump: %w", r.ID, err)
		}
		r.Trump = &su
	}
	if err := r.Phase.UnmarshalText([]byte(phase)); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(stock, &r.Stock); err != nil {
		return nil, fmt.Errorf("round %s stock: %w", r.ID, err)
	}
	if err := json.Unmarshal(discards, &r.Discards); err != nil {
		return nil, fmt.Errorf("round %s discards: %w", r.ID, err)
	}
	for _, p := range sittingOut {
		r.SittingOut = append(r.SittingOut, int(p))
	}
	return &r, nil
}

func (s *postgresStore) FindHand(ctx context.Context, roundID, playerID string) (*table.Hand, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, round_id, player_id, position, cards, decision, exchanged, tricks_won
		FROM hands WHERE round_id = $1 AND player_id = $2`, roundID, playerID)
	h, err := scanHand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHandNotFound
	}
	return h, err
}

func (s *postgresStore) ListHands(ctx context.Context, roundID string) ([]*table.Hand, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, round_id, player_id, position, cards, decision, exchanged, tricks_won
		FROM hands WHERE round_id = $1 ORDER BY position`, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hands := make([]*table.Hand, 0)
	for rows.Next() {
		h, err := scanHand(rows)
		if err != nil {
			return nil, err
		}
		hands = append(hands, h)
	}
	return hands, rows.Err()
}

func scanHand(row rowScanner) (*table.Hand, error) {
	var h table.Hand
	var cards []byte
	var decision string
	if err := row.Scan(&h.ID, &h.RoundID, &h.PlayerID, &h.Position, &cards, &decision, &h.Exchanged, &h.TricksWon); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cards, &h.Cards); err != nil {
		return nil, fmt.Errorf("hand %s cards: %w", h.ID, err)
	}
	if err := h.Decision.UnmarshalText([]byte(decision)); err != nil {
		return nil, err
	}
	return &h, nil
}

func (s *postgresStore) ListTricks(ctx context.Context, roundID string) ([]*table.Trick, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, round_id, number, lead_position, winner_position, cards
		FROM tricks WHERE round_id = $1 ORDER BY number`, roundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tricks := make([]*table.Trick, 0)
	for rows.Next() {
		var t table.Trick
		var cards []byte
		if err := rows.Scan(&t.ID, &t.RoundID, &t.Number, &t.LeadPosition, &t.WinnerPosition, &cards); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(cards, &t.Cards); err != nil {
			return nil, fmt.Errorf("trick %s cards: %w", t.ID, err)
		}
		tricks = append(tricks, &t)
	}
	return tricks, rows.Err()
}

func (s *postgresStore) ScoreHistory(ctx context.Context, gameID string) ([]table.ScoreEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, game_id, player_id, COALESCE(round_id, ''), points_change, points_after, reason, created_at
		FROM score_entries WHERE game_id = $1 ORDER BY seq`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]table.ScoreEntry, 0)
	for rows.Next() {
		var e table.ScoreEntry
		var reason string
		if err := rows.Scan(&e.ID, &e.GameID, &e.PlayerID, &e.RoundID, &e.PointsChange, &e.PointsAfter, &reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Reason = table.ScoreReason(reason)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *postgresStore) ListGames(ctx context.Context, status table.GameStatus) ([]*table.Game, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, max_players, creator_id, COALESCE(winner_player_id, ''), created_at, started_at, completed_at
		FROM games WHERE $1 = '' OR status = $1
		ORDER BY created_at DESC, id`, string(status))
	if err != nil {
		return nil, err
	}
	games := make([]*table.Game, 0)
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		games = append(games, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, g := range games {
		if g.Players, err = s.listPlayers(ctx, s.db, g.ID); err != nil {
			return nil, err
		}
	}
	return games, nil
}

// Commit writes the changeset inside one transaction.
func (s *postgresStore) Commit(ctx context.Context, cs *Changeset) (err error) {
	if err := cs.validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit game %s: begin: %w", cs.Game.ID, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = upsertGame(ctx, tx, cs.Game); err != nil {
		return fmt.Errorf("commit game %s: %w", cs.Game.ID, err)
	}
	for _, r := range cs.Rounds {
		if err = upsertRound(ctx, tx, r); err != nil {
			return fmt.Errorf("commit round %s: %w", r.ID, err)
		}
	}
	for _, h := range cs.DeletedHands {
		if _, err = tx.ExecContext(ctx, `DELETE FROM hands WHERE id = $1`, h.ID); err != nil {
			return fmt.Errorf("delete hand %s: %w", h.ID, err)
		}
	}
	for _, h := range cs.Hands {
		if err = upsertHand(ctx, tx, h); err != nil {
			return fmt.Errorf("commit hand %s: %w", h.ID, err)
		}
	}
	for _, t := range cs.Tricks {
		if err = upsertTrick(ctx, tx, t); err != nil {
			return fmt.Errorf("commit trick %s: %w", t.ID, err)
		}
	}
	for _, e := range cs.Scores {
		var roundID interface{}
		if e.RoundID != "" {
			roundID = e.RoundID
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO score_entries (id, game_id, player_id, round_id, points_change, points_after, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.ID, e.GameID, e.PlayerID, roundID, e.PointsChange, e.PointsAfter, string(e.Reason), e.CreatedAt)
		if err != nil {
			return fmt.Errorf("append score entry %s: %w", e.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit game %s: %w", cs.Game.ID, err)
	}
	return nil
}

func upsertGame(ctx context.Context, exec SQLExecutor, g *table.Game) error {
	var winner interface{}
	if g.WinnerPlayerID != "" {
		winner = g.WinnerPlayerID
	}
	_, err := exec.ExecContext(ctx, `
		INSERT INTO games (id, status, max_players, creator_id, winner_player_id, created_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			max_players = EXCLUDED.max_players,
			creator_id = EXCLUDED.creator_id,
			winner_player_id = EXCLUDED.winner_player_id,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at`,
		g.ID, string(g.Status), g.MaxPlayers, g.CreatorID, winner, g.CreatedAt, g.StartedAt, g.CompletedAt)
	if err != nil {
		return err
	}

	ids := make([]string, len(g.Players))
	for i, p := range g.Players {
		ids[i] = p.ID
	}
	// 等待中离开的玩家直接让出座位
	if _, err := exec.ExecContext(ctx, `DELETE FROM players WHERE game_id = $1 AND NOT (id = ANY($2))`, g.ID, pq.Array(ids)); err != nil {
		return err
	}
	for _, p := range g.Players {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO players (id, game_id, user_id, position, points, is_active, consecutive_rounds_out, joined_at, left_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				points = EXCLUDED.points,
				is_active = EXCLUDED.is_active,
				consecutive_rounds_out = EXCLUDED.consecutive_rounds_out,
				left_at = EXCLUDED.left_at`,
			p.ID, g.ID, p.UserID, p.Position, p.Points, p.IsActive, p.ConsecutiveRoundsOut, p.JoinedAt, p.LeftAt)
		if err != nil {
			return fmt.Errorf("player %s: %w", p.ID, err)
		}
	}
	return nil
}

func upsertRound(ctx context.Context, exec SQLExecutor, r *table.Round) error {
	var trump interface{}
	if r.Trump != nil {
		trump = r.Trump.String()
	}
	stock, err := cardsJSON(r.Stock)
	if err != nil {
		return err
	}
	discards, err := cardsJSON(r.Discards)
	if err != nil {
		return err
	}
	sittingOut := make([]int64, len(r.SittingOut))
	for i, p := range r.SittingOut {
		sittingOut[i] = int64(p)
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO rounds (`+roundColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			trump = EXCLUDED.trump,
			trump_before_dealing = EXCLUDED.trump_before_dealing,
			trick_value = EXCLUDED.trick_value,
			current_trick_number = EXCLUDED.current_trick_number,
			phase = EXCLUDED.phase,
			stock = EXCLUDED.stock,
			discards = EXCLUDED.discards,
			sitting_out = EXCLUDED.sitting_out,
			cancelled = EXCLUDED.cancelled,
			completed_at = EXCLUDED.completed_at`,
		r.ID, r.GameID, r.Number, r.DealerPosition, r.PartyPosition, trump, r.TrumpSelectedBeforeDealing,
		r.TrickValue, r.CurrentTrickNumber, string(r.Phase), stock, discards, pq.Array(sittingOut), r.Cancelled, r.StartedAt, r.CompletedAt)
	return err
}

func upsertHand(ctx context.Context, exec SQLExecutor, h *table.Hand) error {
	cards, err := cardsJSON(h.Cards)
	if err != nil {
		return err
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO hands (id, round_id, player_id, position, cards, decision, exchanged, tricks_won)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			cards = EXCLUDED.cards,
			decision = EXCLUDED.decision,
			exchanged = EXCLUDED.exchanged,
			tricks_won = EXCLUDED.tricks_won`,
		h.ID, h.RoundID, h.PlayerID, h.Position, cards, string(h.Decision), h.Exchanged, h.TricksWon)
	return err
}

func upsertTrick(ctx context.Context, exec SQLExecutor, t *table.Trick) error {
	if t.Cards == nil {
		t = t.Clone()
		t.Cards = []table.PlayedCard{}
	}
	cards, err := json.Marshal(t.Cards)
	if err != nil {
		return err
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO tricks (id, round_id, number, lead_position, winner_position, cards)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			winner_position = EXCLUDED.winner_position,
			cards = EXCLUDED.cards`,
		t.ID, t.RoundID, t.Number, t.LeadPosition, t.WinnerPosition, string(cards))
	return err
}

func cardsJSON(cards []table.Card) (string, error) {
	if cards == nil {
		cards = []table.Card{}
	}
	b, err := json.Marshal(cards)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
