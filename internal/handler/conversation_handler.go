package handler

import (
	"net/http"
	"strconv"

	"nft-sage-go/internal/model"
	"nft-sage-go/internal/service"

	"github.com/gin-gonic/gin"
)

// ConversationHandler 处理会话记忆的只读查询。
type ConversationHandler struct {
	service service.ConversationService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(service service.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

func keyFromPath(c *gin.Context) model.ConversationKey {
	return model.NewConversationKey(c.Param("userId"), c.Param("platform"))
}

// intQuery 读取整数查询参数，缺省或非法时返回 0，由下层取默认值。
func intQuery(c *gin.Context, name string) (int, bool) {
	s := c.Query(name)
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// GetContext 返回 GET /api/memory/:platform/:userId/context?window= 的个性化上下文。
func (h *ConversationHandler) GetContext(c *gin.Context) {
	window, valid := intQuery(c, "window")
	if !valid {
		fail(c, http.StatusBadRequest, "window 必须是非负整数")
		return
	}
	ok(c, h.service.Context(keyFromPath(c), window))
}

// GetHistory 返回 GET /api/memory/:platform/:userId/history?limit= 的最近交互。
func (h *ConversationHandler) GetHistory(c *gin.Context) {
	limit, valid := intQuery(c, "limit")
	if !valid {
		fail(c, http.StatusBadRequest, "limit 必须是非负整数")
		return
	}
	ok(c, h.service.History(keyFromPath(c), limit))
}
