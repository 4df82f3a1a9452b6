package matchmaker

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

type memRepo struct {
	mu          sync.Mutex
	pools       map[string]map[string]struct{} // key -> set(address)
	players     map[string]string              // address -> key
	rooms       map[string]*Room
	playerRooms map[string]string // address -> room id
}

func NewMemoryRepo() Repo {
	return &memRepo{
		pools:       make(map[string]map[string]struct{}),
		players:     make(map[string]string),
		rooms:       make(map[string]*Room),
		playerRooms: make(map[string]string),
	}
}

func memKey(pool string, seats int) string {
	return fmt.Sprintf("%s:%d", pool, seats)
}

// 内存版忽略 TTL，仅供测试与单机运行
func (m *memRepo) Enqueue(ctx context.Context, pool string, seats int, address string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.players[address]; ok {
		delete(m.pools[old], address)
	}
	key := memKey(pool, seats)
	if _, ok := m.pools[key]; !ok {
		m.pools[key] = make(map[string]struct{})
	}
	m.pools[key][address] = struct{}{}
	m.players[address] = key
	return nil
}

func (m *memRepo) PopN(ctx context.Context, pool string, seats int, n int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memKey(pool, seats)
	s, ok := m.pools[key]
	if !ok || len(s) < n {
		return nil, nil
	}

	addrs := make([]string, 0, len(s))
	for a := range s {
		addrs = append(addrs, a)
	}
	rand.Shuffle(len(addrs), func(i, j int) { addrs[i], addrs[j] = addrs[j], addrs[i] })

	chosen := addrs[:n]
	for _, a := range chosen {
		delete(s, a)
		delete(m.players, a)
	}
	if len(s) == 0 {
		delete(m.pools, key)
	}
	return chosen, nil
}

func (m *memRepo) Remove(ctx context.Context, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.players[address]
	if !ok {
		return nil
	}
	if s, ok := m.pools[key]; ok {
		delete(s, address)
		if len(s) == 0 {
			delete(m.pools, key)
		}
	}
	delete(m.players, address)
	return nil
}

func (m *memRepo) Count(ctx context.Context, pool string, seats int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.pools[memKey(pool, seats)])), nil
}

func (m *memRepo) SaveRoom(ctx context.Context, room *Room, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[room.ID] = room
	for _, a := range room.Players {
		m.playerRooms[a] = room.ID
	}
	return nil
}

func (m *memRepo) PlayerRoom(ctx context.Context, address string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playerRooms[address], nil
}

func (m *memRepo) Release(ctx context.Context, addresses ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range addresses {
		delete(m.playerRooms, a)
	}
	return nil
}
