package handler

import (
	"errors"
	"net/http"

	"nft-sage-go/internal/service"
	"nft-sage-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AuthHandler 负责签发管理接口的访问令牌。
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// LoginRequest 定义了 POST /api/auth/token 的请求体结构。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Token 校验管理员账号并返回 access token。
func (h *AuthHandler) Token(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Token: Invalid request payload, error: %v", err)
		fail(c, http.StatusBadRequest, "无效的请求负载")
		return
	}

	accessToken, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			fail(c, http.StatusUnauthorized, "用户名或密码错误")
			return
		}
		log.Error("Token: failed to sign token", err)
		fail(c, http.StatusInternalServerError, "签发令牌失败")
		return
	}
	ok(c, gin.H{"accessToken": accessToken})
}
