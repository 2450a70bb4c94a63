package routes

import (
	"ai_assistant_mini/internal/config"
	"ai_assistant_mini/internal/handlers"
	"ai_assistant_mini/internal/models"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, dialog models.DialogService, wsConfig config.WebSocketConfig) {
	chatHandler := handlers.NewChatHandler(dialog)
	voiceHandler := handlers.NewVoiceHandler(dialog, wsConfig)

	// 根路由
	r.GET("/", func(c *gin.Context) {
		c.String(200, "ARIA Assistant Server Running")
	})

	// 健康检查
	r.GET("/health", chatHandler.HandleHealth)

	// 对话与会话管理
	api := r.Group("/api")
	{
		api.POST("/chat", chatHandler.HandleChat)
		api.POST("/mode", chatHandler.HandleSwitchMode)
		api.GET("/mode", chatHandler.HandleGetMode)
		api.POST("/history/clear", chatHandler.HandleClearHistory)
		api.GET("/stats", chatHandler.HandleStats)
		api.GET("/models", chatHandler.HandleModels)
		api.GET("/welcome", chatHandler.HandleWelcome)
	}

	// 语音通道
	r.GET("/ws/voice", voiceHandler.HandleWebSocket)
}
