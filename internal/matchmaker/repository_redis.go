package matchmaker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRepo struct {
	rdb *redis.Client
}

func NewRedisRepo(rdb *redis.Client) Repo {
	return &redisRepo{rdb: rdb}
}

// key 约定：
//
//	set: lobby:pool:{pool}:{seats}       -> Set(address,...)
//	kv : lobby:player:{address}          -> "pool:seats"（便于取消时定位池，带 TTL）
//	kv : lobby:room:{id}                 -> Room JSON
//	kv : lobby:playerRoom:{address}      -> room id
func poolKey(pool string, seats int) string { return fmt.Sprintf("lobby:pool:%s:%d", pool, seats) }
func playerKey(addr string) string          { return "lobby:player:" + addr }
func roomKey(id string) string              { return "lobby:room:" + id }
func playerRoomKey(addr string) string      { return "lobby:playerRoom:" + addr }

// 人数足够才弹出，避免 SCARD 与 SPOP 之间的竞争把玩家弹丢
// KEYS[1] = poolKey, ARGV[1] = n
var popScript = redis.NewScript(`
local n = tonumber(ARGV[1])
if redis.call("SCARD", KEYS[1]) < n then
	return {}
end
local out = redis.call("SPOP", KEYS[1], n)
if redis.call("SCARD", KEYS[1]) == 0 then
	redis.call("DEL", KEYS[1])
end
return out
`)

// KEYS[1] = playerKey, KEYS[2] = poolKey, ARGV[1] = address
var removeScript = redis.NewScript(`
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if redis.call("SCARD", KEYS[2]) == 0 then
	redis.call("DEL", KEYS[2])
end
return 1
`)

func (r *redisRepo) Enqueue(ctx context.Context, pool string, seats int, address string, ttl time.Duration) error {
	// 换池排队时先离开旧池
	if err := r.Remove(ctx, address); err != nil {
		return err
	}
	p := r.rdb.TxPipeline()
	p.SAdd(ctx, poolKey(pool, seats), address)
	p.Set(ctx, playerKey(address), fmt.Sprintf("%s:%d", pool, seats), ttl)
	_, err := p.Exec(ctx)
	return err
}

func (r *redisRepo) PopN(ctx context.Context, pool string, seats int, n int) ([]string, error) {
	res, err := popScript.Run(ctx, r.rdb, []string{poolKey(pool, seats)}, n).StringSlice()
	if err != nil {
		return nil, err
	}
	// 清理 playerKey
	if len(res) > 0 {
		p := r.rdb.Pipeline()
		for _, addr := range res {
			p.Del(ctx, playerKey(addr))
		}
		if _, err := p.Exec(ctx); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r *redisRepo) Remove(ctx context.Context, address string) error {
	kv, err := r.rdb.Get(ctx, playerKey(address)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}

	// "pool:seats"，pool 本身可能含冒号，从右侧拆分
	i := strings.LastIndex(kv, ":")
	seats, convErr := strconv.Atoi(kv[i+1:])
	if i < 0 || convErr != nil {
		return r.rdb.Del(ctx, playerKey(address)).Err()
	}
	return removeScript.Run(ctx, r.rdb, []string{playerKey(address), poolKey(kv[:i], seats)}, address).Err()
}

func (r *redisRepo) Count(ctx context.Context, pool string, seats int) (int64, error) {
	return r.rdb.SCard(ctx, poolKey(pool, seats)).Result()
}

func (r *redisRepo) SaveRoom(ctx context.Context, room *Room, ttl time.Duration) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	p := r.rdb.TxPipeline()
	p.Set(ctx, roomKey(room.ID), data, ttl)
	for _, addr := range room.Players {
		p.Set(ctx, playerRoomKey(addr), room.ID, ttl)
	}
	_, err = p.Exec(ctx)
	return err
}

func (r *redisRepo) PlayerRoom(ctx context.Context, address string) (string, error) {
	val, err := r.rdb.Get(ctx, playerRoomKey(address)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

func (r *redisRepo) Release(ctx context.Context, addresses ...string) error {
	if len(addresses) == 0 {
		return nil
	}
	keys := make([]string, len(addresses))
	for i, a := range addresses {
		keys[i] = playerRoomKey(a)
	}
	return r.rdb.Del(ctx, keys...).Err()
}
