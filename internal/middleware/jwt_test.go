package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

var secret = []byte("test-secret")

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func claims(sub string, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
}

func TestJwtAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", JwtAuthMiddleware(secret), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("address"))
	})

	get := func(header, query string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me"+query, nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		return w
	}

	good := sign(t, jwt.SigningMethodHS256, secret, claims("0xAbC", time.Hour))

	w := get("Bearer "+good, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0xAbC", w.Body.String())

	w = get("", "?token="+good)
	assert.Equal(t, http.StatusOK, w.Code, "query token for websocket upgrades")

	cases := map[string]string{
		"missing":      "",
		"not bearer":   "Token " + good,
		"garbage":      "Bearer not.a.jwt",
		"wrong secret": "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), claims("0xAbC", time.Hour)),
		"expired":      "Bearer " + sign(t, jwt.SigningMethodHS256, secret, claims("0xAbC", -time.Minute)),
		"no subject":   "Bearer " + sign(t, jwt.SigningMethodHS256, secret, claims("", time.Hour)),
		"no expiry":    "Bearer " + sign(t, jwt.SigningMethodHS256, secret, jwt.RegisteredClaims{Subject: "0xAbC"}),
		"wrong alg":    "Bearer " + sign(t, jwt.SigningMethodHS512, secret, claims("0xAbC", time.Hour)),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, get(header, "").Code)
		})
	}
}
