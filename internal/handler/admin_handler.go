package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"nft-sage-go/internal/model"
	"nft-sage-go/internal/repository"
	"nft-sage-go/internal/service"
	"nft-sage-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责处理所有与管理员相关的 API 请求。
type AdminHandler struct {
	conversations service.ConversationService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(conversations service.ConversationService) *AdminHandler {
	return &AdminHandler{conversations: conversations}
}

// ClearMemory 处理 DELETE /api/admin/memory/:platform/:userId。
func (h *AdminHandler) ClearMemory(c *gin.Context) {
	key := keyFromPath(c)
	removed := h.conversations.Clear(c.Request.Context(), key)
	ok(c, gin.H{"key": key.String(), "removed": removed})
}

// SweepRequest 定义了手动清理的请求体。
type SweepRequest struct {
	MaxAgeMs int64 `json:"maxAgeMs" binding:"required,gt=0"`
}

// Sweep 处理 POST /api/admin/memory/sweep。
func (h *AdminHandler) Sweep(c *gin.Context) {
	var req SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "maxAgeMs 必须为正整数")
		return
	}
	removed := h.conversations.Sweep(c.Request.Context(), sweepAge(req.MaxAgeMs))
	ok(c, gin.H{"removed": removed})
}

// maxSweepAgeMs 是 time.Duration 能表示的最大毫秒数，超出会溢出成负值。
const maxSweepAgeMs = math.MaxInt64 / int64(time.Millisecond)

func sweepAge(ms int64) time.Duration {
	if ms > maxSweepAgeMs {
		ms = maxSweepAgeMs
	}
	return time.Duration(ms) * time.Millisecond
}

// Export 处理 POST /api/admin/memory/export。
func (h *AdminHandler) Export(c *gin.Context) {
	res, err := h.conversations.Export(c.Request.Context())
	if err != nil {
		h.fail(c, "导出会话快照失败", err)
		return
	}
	ok(c, res)
}

// Stats 处理 GET /api/admin/memory/stats。
func (h *AdminHandler) Stats(c *gin.Context) {
	ok(c, h.conversations.Stats())
}

// Transcripts 处理 GET /api/admin/transcripts?userId=&platform=&start=&end=&limit=。
func (h *AdminHandler) Transcripts(c *gin.Context) {
	f := repository.TranscriptFilter{
		UserID:   c.Query("userId"),
		Platform: c.Query("platform"),
	}
	for name, dst := range map[string]*time.Time{"start": &f.Start, "end": &f.End} {
		if s := c.Query(name); s != "" {
			t, err := model.ParseLocalTime(s)
			if err != nil {
				fail(c, http.StatusBadRequest, name+" 时间格式错误")
				return
			}
			*dst = t
		}
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			fail(c, http.StatusBadRequest, "limit 必须是整数")
			return
		}
		f.Limit = n
	}

	rows, err := h.conversations.Transcripts(c.Request.Context(), f)
	if err != nil {
		h.fail(c, "查询问答记录失败", err)
		return
	}
	ok(c, rows)
}

// SearchInteractions 处理 GET /api/admin/interactions/search?q=&size=&userId=&platform=。
func (h *AdminHandler) SearchInteractions(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		fail(c, http.StatusBadRequest, "缺少查询词 q")
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	var key *model.ConversationKey
	if uid := c.Query("userId"); uid != "" {
		k := model.NewConversationKey(uid, c.DefaultQuery("platform", "web"))
		key = &k
	}

	hits, err := h.conversations.Search(c.Request.Context(), q, key, size)
	if err != nil {
		h.fail(c, "检索交互失败", err)
		return
	}
	ok(c, hits)
}

func (h *AdminHandler) fail(c *gin.Context, message string, err error) {
	if errors.Is(err, service.ErrNotConfigured) {
		fail(c, http.StatusServiceUnavailable, "该功能未启用")
		return
	}
	log.Errorw(message, "error", err)
	fail(c, http.StatusInternalServerError, message)
}
