package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// NonceStore 保存一次性 nonce，防止签名重放
type NonceStore interface {
	Put(ctx context.Context, nonce string, ttl time.Duration) error
	// Take reports whether nonce was live and consumes it.
	Take(ctx context.Context, nonce string) (bool, error)
}

func nonceKey(nonce string) string { return "auth:nonce:" + nonce }

type redisNonces struct {
	rdb *redis.Client
}

func NewRedisNonceStore(rdb *redis.Client) NonceStore {
	return &redisNonces{rdb: rdb}
}

func (s *redisNonces) Put(ctx context.Context, nonce string, ttl time.Duration) error {
	return s.rdb.Set(ctx, nonceKey(nonce), 1, ttl).Err()
}

func (s *redisNonces) Take(ctx context.Context, nonce string) (bool, error) {
	err := s.rdb.GetDel(ctx, nonceKey(nonce)).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type memNonces struct {
	mu     sync.Mutex
	nonces map[string]time.Time // nonce → expiry
	now    func() time.Time
}

func NewMemoryNonceStore() NonceStore {
	return &memNonces{nonces: make(map[string]time.Time), now: time.Now}
}

func (s *memNonces) Put(_ context.Context, nonce string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for n, exp := range s.nonces {
		if now.After(exp) {
			delete(s.nonces, n)
		}
	}
	s.nonces[nonce] = now.Add(ttl)
	return nil
}

func (s *memNonces) Take(_ context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.nonces[nonce]
	delete(s.nonces, nonce)
	return ok && !s.now().After(exp), nil
}

func generateNonce() (string, error) {
	b := make([]byte, 16)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Nonce 生成 nonce 并保存，客户端用钱包对 LoginMessage(nonce) 签名
func (h *Handler) Nonce(c *gin.Context) {
	nonce, err := generateNonce()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate nonce"})
		return
	}
	if err := h.nonces.Put(c.Request.Context(), nonce, h.nonceTTL); err != nil {
		h.log.Error("save nonce", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save nonce"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": nonce, "message": LoginMessage(nonce)})
}
