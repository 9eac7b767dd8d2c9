package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"nft-sage-go/internal/config"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// maxPeekBody 是为提取 userId 而读取的请求体上限。
const maxPeekBody = 64 << 10

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 为每个用户（无用户时为客户端 IP）维护一个令牌桶。
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*limiterEntry
	rps    rate.Limit
	burst  int
	now    func() time.Time
}

// NewRateLimiter creates a new rate limiter. RequestsPerSecond <= 0 时返回 nil，表示不限流。
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		limits: make(map[string]*limiterEntry),
		rps:    rate.Limit(cfg.RequestsPerSecond),
		burst:  burst,
		now:    time.Now,
	}
}

// getLimiter gets or creates a limiter for the given key.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.limits[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limits[key] = e
	}
	e.lastSeen = rl.now()
	return e.limiter
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getLimiter(key).AllowN(rl.now(), 1)
}

// Prune 删除 idle 时间内没有请求的令牌桶，返回删除的数量。
func (rl *RateLimiter) Prune(idle time.Duration) int {
	cutoff := rl.now().Add(-idle)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := 0
	for k, e := range rl.limits {
		if e.lastSeen.Before(cutoff) {
			delete(rl.limits, k)
			n++
		}
	}
	return n
}

// Middleware 返回限流中间件，令牌耗尽时响应 429。
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil {
			c.Next()
			return
		}
		if !rl.Allow(rateKey(c)) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"code": http.StatusTooManyRequests, "message": "请求过于频繁，请稍后重试", "data": nil})
			return
		}
		c.Next()
	}
}

// rateKey 依次从查询参数、X-User-ID 头与 JSON 请求体中取 userId，都没有时使用客户端 IP。
func rateKey(c *gin.Context) string {
	if uid := c.Query("userId"); uid != "" {
		return "user:" + c.Query("platform") + ":" + uid
	}
	if uid := c.GetHeader("X-User-ID"); uid != "" {
		return "user:" + c.GetHeader("X-Platform") + ":" + uid
	}
	if c.Request.Body != nil && strings.HasPrefix(c.ContentType(), "application/json") {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPeekBody))
		rest := c.Request.Body
		c.Request.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(body), rest), rest}
		if err == nil {
			var peek struct {
				UserID   string `json:"userId"`
				Platform string `json:"platform"`
			}
			if json.Unmarshal(body, &peek) == nil && peek.UserID != "" {
				return "user:" + peek.Platform + ":" + peek.UserID
			}
		}
	}
	return "ip:" + c.ClientIP()
}
