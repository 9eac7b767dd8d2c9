package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nft-sage-go/internal/service"
	"nft-sage-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理 REST 与 WebSocket 聊天请求。
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// ChatRequest 是 POST /api/chat 的请求体。
type ChatRequest struct {
	Message  string `json:"message" binding:"required"`
	UserID   string `json:"userId" binding:"required"`
	Platform string `json:"platform"`
}

// Chat 处理一次完整的问答。
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "无效的请求负载")
		return
	}
	if req.Platform == "" {
		req.Platform = "web"
	}

	reply, err := h.chatService.Handle(c.Request.Context(), service.ChatRequest{
		Message:  req.Message,
		UserID:   req.UserID,
		Platform: req.Platform,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmptyMessage) {
			fail(c, http.StatusBadRequest, "消息不能为空")
			return
		}
		log.Errorw("处理聊天请求失败", "userId", req.UserID, "platform", req.Platform, "error", err)
		fail(c, http.StatusBadGateway, "AI服务暂时不可用，请稍后重试")
		return
	}
	ok(c, reply)
}

// lockedConn 串行化对同一连接的写入，gorilla/websocket 不允许并发写。
type lockedConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (l *lockedConn) WriteMessage(messageType int, data []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteMessage(messageType, data)
}

func (l *lockedConn) writeJSON(v any) {
	b, _ := json.Marshal(v)
	_ = l.WriteMessage(websocket.TextMessage, b)
}

// Stream 处理一个 WebSocket 连接：文本帧为问题，{"type":"stop"} 中断当前回答。
// 同一连接上一次只处理一个问题。
func (h *ChatHandler) Stream(c *gin.Context) {
	userID := c.Query("userId")
	platform := c.DefaultQuery("platform", "web")
	if userID == "" {
		fail(c, http.StatusBadRequest, "缺少 userId")
		return
	}

	raw, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer raw.Close()
	conn := &lockedConn{conn: raw}
	log.Infow("WebSocket 连接已建立", "userId", userID, "platform", platform)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	var (
		busy    atomic.Bool
		stopped atomic.Bool
		wg      sync.WaitGroup
	)
	defer wg.Wait()

	for {
		_, message, err := raw.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			cancel()
			return
		}

		if isStopCommand(message) {
			stopped.Store(true)
			conn.writeJSON(map[string]any{
				"type":      "stop",
				"message":   "响应已停止",
				"timestamp": time.Now().UnixMilli(),
			})
			continue
		}

		if !busy.CompareAndSwap(false, true) {
			conn.writeJSON(map[string]string{"error": "上一条消息仍在处理中"})
			continue
		}
		stopped.Store(false)

		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			defer busy.Store(false)
			_, err := h.chatService.Stream(ctx, service.ChatRequest{Message: text, UserID: userID, Platform: platform},
				conn, stopped.Load)
			switch {
			case err == nil, errors.Is(err, service.ErrEmptyResponse), errors.Is(err, service.ErrStopped):
			case errors.Is(err, service.ErrEmptyMessage):
				conn.writeJSON(map[string]string{"error": "消息不能为空"})
			default:
				log.Errorw("处理流式响应失败", "userId", userID, "error", err)
				conn.writeJSON(map[string]string{"error": "AI服务暂时不可用，请稍后重试"})
			}
		}(string(message))
	}
}

func isStopCommand(message []byte) bool {
	if len(message) == 0 || message[0] != '{' {
		return false
	}
	var ctrl struct {
		Type string `json:"type"`
	}
	return json.Unmarshal(message, &ctrl) == nil && ctrl.Type == "stop"
}
