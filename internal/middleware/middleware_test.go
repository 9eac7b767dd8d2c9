package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nft-sage-go/internal/config"
	"nft-sage-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAdminRouter(jwt *token.JWTManager) *gin.Engine {
	r := gin.New()
	r.GET("/admin", AuthMiddleware(jwt), AdminAuthMiddleware(), func(c *gin.Context) {
		claims := c.MustGet(ClaimsKey).(*token.CustomClaims)
		c.String(http.StatusOK, claims.Username)
	})
	return r
}

func TestAuthAndAdmin(t *testing.T) {
	jwt := token.NewJWTManager("secret", 1)
	r := newAdminRouter(jwt)

	admin, err := jwt.GenerateToken("root", token.RoleAdmin)
	require.NoError(t, err)
	user, err := jwt.GenerateToken("bob", "USER")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Token " + admin, http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"not admin", "Bearer " + user, http.StatusForbidden},
		{"admin", "Bearer " + admin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestAdminWithoutAuth(t *testing.T) {
	r := gin.New()
	r.GET("/x", AdminAuthMiddleware(), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRateLimiter_PerUser(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})
	var seenBody string
	r := gin.New()
	r.POST("/chat", rl.Middleware(), func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		seenBody = string(b)
		c.Status(http.StatusOK)
	})

	send := func(body string) int {
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	alice := `{"userId":"alice","platform":"web","message":"hi"}`
	assert.Equal(t, http.StatusOK, send(alice))
	assert.Equal(t, alice, seenBody)
	assert.Equal(t, http.StatusOK, send(alice))
	assert.Equal(t, http.StatusTooManyRequests, send(alice))
	// 其他用户不受影响
	assert.Equal(t, http.StatusOK, send(`{"userId":"bob","platform":"web","message":"hi"}`))
}

func TestRateLimiter_QueryAndIPKeys(t *testing.T) {
	gin.SetMode(gin.TestMode)
	newCtx := func(target string) *gin.Context {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, target, nil)
		c.Request.RemoteAddr = "10.0.0.1:1234"
		return c
	}
	assert.Equal(t, "user:telegram:42", rateKey(newCtx("/ws?userId=42&platform=telegram")))
	assert.Equal(t, "ip:10.0.0.1", rateKey(newCtx("/market")))
}

func TestRateLimiter_DisabledAndPrune(t *testing.T) {
	assert.Nil(t, NewRateLimiter(config.RateLimitConfig{}))

	var nilLimiter *RateLimiter
	r := gin.New()
	r.GET("/x", nilLimiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	now := time.Unix(1000, 0)
	rl := NewRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	rl.now = func() time.Time { return now }
	rl.Allow("a")
	now = now.Add(time.Hour)
	rl.Allow("b")
	assert.Equal(t, 1, rl.Prune(30*time.Minute))
	assert.Len(t, rl.limits, 1)
}

func TestRequestLoggerKeepsBody(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())
	r.POST("/echo", func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(b))
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("payload")))
	assert.Equal(t, "payload", w.Body.String())
}
