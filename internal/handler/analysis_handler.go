package handler

import (
	"errors"
	"net/http"

	"nft-sage-go/internal/service"
	"nft-sage-go/pkg/analytics"
	"nft-sage-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AnalysisHandler 处理钱包、合集与市场分析请求。
type AnalysisHandler struct {
	service service.AnalysisService
}

// NewAnalysisHandler 创建一个新的 AnalysisHandler。
func NewAnalysisHandler(service service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{service: service}
}

// WalletRequest 是 POST /api/analyze/wallet 的请求体。
type WalletRequest struct {
	Address  string `json:"address" binding:"required"`
	Chain    string `json:"chain"`
	UserID   string `json:"userId"`
	Platform string `json:"platform"`
}

// CollectionRequest 是 POST /api/analyze/collection 的请求体。
type CollectionRequest struct {
	Slug     string `json:"slug" binding:"required"`
	UserID   string `json:"userId"`
	Platform string `json:"platform"`
}

func (h *AnalysisHandler) Wallet(c *gin.Context) {
	var req WalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	res, err := h.service.Wallet(c.Request.Context(), service.AnalysisRequest{
		Target: req.Address, Chain: req.Chain, UserID: req.UserID, Platform: defaultPlatform(req.Platform, req.UserID),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, res)
}

func (h *AnalysisHandler) Collection(c *gin.Context) {
	var req CollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	res, err := h.service.Collection(c.Request.Context(), service.AnalysisRequest{
		Target: req.Slug, UserID: req.UserID, Platform: defaultPlatform(req.Platform, req.UserID),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, res)
}

// Market 处理 GET /api/market/insights，可选 userId/platform 查询参数用于写入记忆。
func (h *AnalysisHandler) Market(c *gin.Context) {
	userID := c.Query("userId")
	res, err := h.service.Market(c.Request.Context(), service.AnalysisRequest{
		UserID: userID, Platform: defaultPlatform(c.Query("platform"), userID),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, res)
}

func (h *AnalysisHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMissingTarget):
		fail(c, http.StatusBadRequest, "缺少分析对象")
	case errors.Is(err, analytics.ErrNotFound):
		fail(c, http.StatusNotFound, "未找到对应的钱包或合集")
	default:
		log.Errorw("分析请求失败", "path", c.FullPath(), "error", err)
		fail(c, http.StatusBadGateway, "数据服务暂时不可用，请稍后重试")
	}
}

func defaultPlatform(platform, userID string) string {
	if platform == "" && userID != "" {
		return "web"
	}
	return platform
}
