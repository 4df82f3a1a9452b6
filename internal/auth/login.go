package auth

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const loginPrefix = "Sign this message to authenticate with Sobe Sobe. Nonce: "

var (
	ErrBadSignature = errors.New("signature must be 65 hex-encoded bytes")
	ErrRecover      = errors.New("cannot recover signer")
)

type LoginRequest struct {
	Address   string `json:"address" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Nonce     string `json:"nonce" binding:"required"`
}

type Handler struct {
	nonces   NonceStore
	secret   []byte
	tokenTTL time.Duration
	nonceTTL time.Duration
	log      *log.Logger
}

// 工厂方法：创建 handler
func NewHandler(nonces NonceStore, secret []byte, tokenTTL, nonceTTL time.Duration, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		nonces:   nonces,
		secret:   secret,
		tokenTTL: tokenTTL,
		nonceTTL: nonceTTL,
		log:      logger.With("component", "auth"),
	}
}

func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/auth")
	g.GET("/nonce", h.Nonce)
	g.POST("/nonce", h.Nonce)
	g.POST("/login", h.Login)
}

// LoginMessage is the text the wallet signs for nonce.
func LoginMessage(nonce string) string { return loginPrefix + nonce }

// RecoverAddress returns the account that personal_sign'ed msg. The
// recovery id may be 0/1 or 27/28.
func RecoverAddress(msg, signature string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrBadSignature
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(msg)), sig)
	if err != nil {
		return common.Address{}, errors.Join(ErrRecover, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// IssueToken signs an HS256 JWT whose subject is the checksummed address.
func IssueToken(secret []byte, addr common.Address, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   addr.Hex(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	if !common.IsHexAddress(req.Address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid address"})
		return
	}

	// nonce 只允许使用一次
	ok, err := h.nonces.Take(c.Request.Context(), req.Nonce)
	if err != nil {
		h.log.Error("take nonce", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "nonce lookup failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid nonce"})
		return
	}

	recovered, err := RecoverAddress(LoginMessage(req.Nonce), req.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verify failed"})
		return
	}
	if recovered != common.HexToAddress(req.Address) {
		h.log.Warn("signature mismatch", "claimed", req.Address, "recovered", recovered.Hex())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "signature mismatch"})
		return
	}

	token, err := IssueToken(h.secret, recovered, h.tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt generation failed"})
		return
	}
	h.log.Info("login", "address", recovered.Hex())
	c.JSON(http.StatusOK, gin.H{
		"jwt":     token,
		"address": recovered.Hex(),
	})
}
