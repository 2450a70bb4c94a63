package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ai_assistant_mini/internal/config"
	"ai_assistant_mini/internal/models"
	"ai_assistant_mini/internal/services"

	"github.com/gin-gonic/gin"
)

// healthProbeTimeout 健康检查超时时间
const healthProbeTimeout = 5 * time.Second

// ChatRequest 文本对话请求体
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Model     string `json:"model"`
}

// ModeRequest 模式切换请求体
type ModeRequest struct {
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
}

// SessionRequest 只携带会话ID的请求体
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// ChatHandler 文本对话与会话管理处理器
type ChatHandler struct {
	dialog models.DialogService
}

// NewChatHandler 创建对话处理器
func NewChatHandler(dialog models.DialogService) *ChatHandler {
	return &ChatHandler{dialog: dialog}
}

// HandleChat 处理文本对话请求
func (h *ChatHandler) HandleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体格式错误"})
		return
	}

	result, err := h.dialog.ProcessText(c.Request.Context(), req.SessionID, req.Message, req.Model)
	if err != nil {
		if errors.Is(err, services.ErrEmptyInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "消息内容不能为空"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleSwitchMode 处理显式模式切换请求
func (h *ChatHandler) HandleSwitchMode(c *gin.Context) {
	var req ModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体格式错误"})
		return
	}

	mode, err := h.dialog.SwitchMode(req.SessionID, req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "模式必须为voice或chat"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": req.SessionID,
		"mode":       mode,
	})
}

// HandleGetMode 查询当前会话模式
func (h *ChatHandler) HandleGetMode(c *gin.Context) {
	sessionID := c.Query("session_id")
	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"mode":       h.dialog.GetMode(sessionID),
	})
}

// HandleClearHistory 清除会话历史
func (h *ChatHandler) HandleClearHistory(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求体格式错误"})
		return
	}

	h.dialog.ClearHistory(req.SessionID)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleStats 查询会话历史统计
func (h *ChatHandler) HandleStats(c *gin.Context) {
	sessionID := c.Query("session_id")
	c.JSON(http.StatusOK, h.dialog.Stats(sessionID))
}

// HandleModels 列出可用模型
func (h *ChatHandler) HandleModels(c *gin.Context) {
	models, err := h.dialog.Models(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"models": []string{}, "error": "Ollama not accessible"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": models})
}

// HandleWelcome 返回一条欢迎语
func (h *ChatHandler) HandleWelcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": h.dialog.Welcome()})
}

// HandleHealth 健康检查：后端状态与模型运行时分类结果
func (h *ChatHandler) HandleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
	defer cancel()

	speechEnabled := false
	if cfg := config.GetConfig(); cfg != nil {
		speechEnabled = cfg.Speech.Enabled
	}

	status := h.dialog.Health(ctx)
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"backend":        "running",
		"ollama":         status,
		"speech_enabled": speechEnabled,
		"time":           time.Now().Format(time.RFC3339),
	})
}
