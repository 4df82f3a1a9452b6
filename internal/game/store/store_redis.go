package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"SobeSobe/internal/game/table"
)

type redisStore struct {
	rdb *redis.Client
}

// NewRedisStore keeps every record as a JSON blob.
func NewRedisStore(rdb *redis.Client) Store {
	return &redisStore{rdb: rdb}
}

// key 约定：
//
//	str : sobe:game:{gameID}              -> Game JSON（含玩家）
//	set : sobe:games                      -> gameID 集合
//	zset: sobe:game:{gameID}:rounds       -> roundID，score = 局数
//	str : sobe:round:{roundID}            -> Round JSON
//	hash: sobe:round:{roundID}:hands      -> handID -> Hand JSON
//	hash: sobe:round:{roundID}:tricks     -> trickID -> Trick JSON
//	list: sobe:game:{gameID}:scores       -> ScoreEntry JSON（只追加）
const gamesKey = "sobe:games"

func gameKey(id string) string        { return fmt.Sprintf("sobe:game:%s", id) }
func roundsKey(gameID string) string  { return fmt.Sprintf("sobe:game:%s:rounds", gameID) }
func scoresKey(gameID string) string  { return fmt.Sprintf("sobe:game:%s:scores", gameID) }
func roundKey(id string) string       { return fmt.Sprintf("sobe:round:%s", id) }
func handsKey(roundID string) string  { return fmt.Sprintf("sobe:round:%s:hands", roundID) }
func tricksKey(roundID string) string { return fmt.Sprintf("sobe:round:%s:tricks", roundID) }

func (r *redisStore) LoadGame(ctx context.Context, gameID string) (*table.Game, error) {
	var g table.Game
	if err := r.getJSON(ctx, gameKey(gameID), &g); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (r *redisStore) CurrentRound(ctx context.Context, gameID string) (*table.Round, error) {
	ids, err := r.rdb.ZRevRange(ctx, roundsKey(gameID), 0, 0).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrRoundNotFound
	}
	var rd table.Round
	if err := r.getJSON(ctx, roundKey(ids[0]), &rd); err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	return &rd, nil
}

func (r *redisStore) FindHand(ctx context.Context, roundID, playerID string) (*table.Hand, error) {
	hands, err := r.ListHands(ctx, roundID)
	if err != nil {
		return nil, err
	}
	for _, h := range hands {
		if h.PlayerID == playerID {
			return h, nil
		}
	}
	return nil, ErrHandNotFound
}

func (r *redisStore) ListHands(ctx context.Context, roundID string) ([]*table.Hand, error) {
	vals, err := r.rdb.HVals(ctx, handsKey(roundID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*table.Hand, 0, len(vals))
	for _, v := range vals {
		var h table.Hand
		if err := json.Unmarshal([]byte(v), &h); err != nil {
			return nil, fmt.Errorf("decode hand in round %s: %w", roundID, err)
		}
		out = append(out, &h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (r *redisStore) ListTricks(ctx context.Context, roundID string) ([]*table.Trick, error) {
	vals, err := r.rdb.HVals(ctx, tricksKey(roundID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*table.Trick, 0, len(vals))
	for _, v := range vals {
		var t table.Trick
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			return nil, fmt.Errorf("decode trick in round %s: %w", roundID, err)
		}
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *redisStore) ScoreHistory(ctx context.Context, gameID string) ([]table.ScoreEntry, error) {
	vals, err := r.rdb.LRange(ctx, scoresKey(gameID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]table.ScoreEntry, 0, len(vals))
	for _, v := range vals {
		var e table.ScoreEntry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, fmt.Errorf("decode score entry of game %s: %w", gameID, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *redisStore) ListGames(ctx context.Context, status table.GameStatus) ([]*table.Game, error) {
	ids, err := r.rdb.SMembers(ctx, gamesKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*table.Game, 0, len(ids))
	for _, id := range ids {
		g, err := r.LoadGame(ctx, id)
		if errors.Is(err, ErrGameNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if status == "" || g.Status == status {
			out = append(out, g)
		}
	}
	sortGames(out)
	return out, nil
}

// Commit encodes everything first and then writes it in one MULTI/EXEC.
func (r *redisStore) Commit(ctx context.Context, cs *Changeset) error {
	if err := cs.validate(); err != nil {
		return err
	}
	game, err := json.Marshal(cs.Game)
	if err != nil {
		return fmt.Errorf("encode game %s: %w", cs.Game.ID, err)
	}
	rounds := make([][]byte, len(cs.Rounds))
	for i, rd := range cs.Rounds {
		if rounds[i], err = json.Marshal(rd); err != nil {
			return fmt.Errorf("encode round %s: %w", rd.ID, err)
		}
	}
	hands := make([][]byte, len(cs.Hands))
	for i, h := range cs.Hands {
		if hands[i], err = json.Marshal(h); err != nil {
			return fmt.Errorf("encode hand %s: %w", h.ID, err)
		}
	}
	tricks := make([][]byte, len(cs.Tricks))
	for i, t := range cs.Tricks {
		if tricks[i], err = json.Marshal(t); err != nil {
			return fmt.Errorf("encode trick %s: %w", t.ID, err)
		}
	}
	scores := make([]any, len(cs.Scores))
	for i, e := range cs.Scores {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode score entry %s: %w", e.ID, err)
		}
		scores[i] = b
	}

	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, gameKey(cs.Game.ID), game, 0)
		p.SAdd(ctx, gamesKey, cs.Game.ID)
		for i, rd := range cs.Rounds {
			p.Set(ctx, roundKey(rd.ID), rounds[i], 0)
			p.ZAdd(ctx, roundsKey(rd.GameID), redis.Z{Score: float64(rd.Number), Member: rd.ID})
		}
		for _, h := range cs.DeletedHands {
			p.HDel(ctx, handsKey(h.RoundID), h.ID)
		}
		for i, h := range cs.Hands {
			p.HSet(ctx, handsKey(h.RoundID), h.ID, hands[i])
		}
		for i, t := range cs.Tricks {
			p.HSet(ctx, tricksKey(t.RoundID), t.ID, tricks[i])
		}
		if len(scores) > 0 {
			p.RPush(ctx, scoresKey(cs.Game.ID), scores...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit game %s: %w", cs.Game.ID, err)
	}
	return nil
}

func (r *redisStore) getJSON(ctx context.Context, key string, v any) error {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
