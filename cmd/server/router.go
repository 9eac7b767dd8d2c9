package main

import (
	"nft-sage-go/internal/handler"
	"nft-sage-go/internal/middleware"
	"nft-sage-go/pkg/token"

	"github.com/gin-gonic/gin"
)

type routes struct {
	jwt           *token.JWTManager
	limiter       *middleware.RateLimiter
	chat          *handler.ChatHandler
	conversations *handler.ConversationHandler
	analysis      *handler.AnalysisHandler
	auth          *handler.AuthHandler
	admin         *handler.AdminHandler
}

func newRouter(h routes) *gin.Engine {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"code": 200, "message": "success", "data": gin.H{"status": "ok", "version": version}})
	})

	api := r.Group("/api")
	{
		// 调用大模型或数据源的接口需要限流
		limited := api.Group("")
		limited.Use(h.limiter.Middleware())
		{
			limited.POST("/chat", h.chat.Chat)
			limited.GET("/chat/ws", h.chat.Stream)
			limited.POST("/analyze/wallet", h.analysis.Wallet)
			limited.POST("/analyze/collection", h.analysis.Collection)
			limited.GET("/market/insights", h.analysis.Market)
		}

		memory := api.Group("/memory/:platform/:userId")
		{
			memory.GET("/context", h.conversations.GetContext)
			memory.GET("/history", h.conversations.GetHistory)
		}

		api.POST("/auth/token", h.auth.Token)

		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin := api.Group("/admin")
		admin.Use(middleware.AuthMiddleware(h.jwt), middleware.AdminAuthMiddleware())
		{
			admin.DELETE("/memory/:platform/:userId", h.admin.ClearMemory)
			admin.POST("/memory/sweep", h.admin.Sweep)
			admin.POST("/memory/export", h.admin.Export)
			admin.GET("/memory/stats", h.admin.Stats)
			admin.GET("/transcripts", h.admin.Transcripts)
			admin.GET("/interactions/search", h.admin.SearchInteractions)
		}
	}
	return r
}
