package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"ai_assistant_mini/internal/config"
	"ai_assistant_mini/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// VoiceCommand 语音通道上的文本控制指令
type VoiceCommand struct {
	Type string `json:"type"` // mode或clear
	Mode string `json:"mode,omitempty"`
}

// VoiceResponse 语音回复的文本部分，随后跟一帧二进制音频
type VoiceResponse struct {
	Type      string             `json:"type"`
	SessionID string             `json:"session_id"`
	Text      string             `json:"text,omitempty"`
	Mode      models.SessionMode `json:"mode,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// VoiceHandler 语音WebSocket处理器
type VoiceHandler struct {
	dialog   models.DialogService
	upgrader websocket.Upgrader
	wsConfig config.WebSocketConfig
}

// NewVoiceHandler 创建语音处理器
func NewVoiceHandler(dialog models.DialogService, wsConfig config.WebSocketConfig) *VoiceHandler {
	return &VoiceHandler{
		dialog: dialog,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  wsConfig.ReadBufferSize,
			WriteBufferSize: wsConfig.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		wsConfig: wsConfig,
	}
}

// HandleWebSocket 处理语音WebSocket连接：二进制帧作为一轮语音输入，
// 文本帧作为控制指令。每个连接独立处理，互不阻塞。
func (h *VoiceHandler) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("升级WebSocket连接失败: %v", err)
		return
	}
	defer conn.Close()

	sessionID := c.Query("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var writeMu sync.Mutex
	done := make(chan struct{})
	defer close(done)

	// 心跳保活
	conn.SetReadDeadline(time.Now().Add(h.wsConfig.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.wsConfig.PongWait))
	})
	go func() {
		ticker := time.NewTicker(h.wsConfig.PingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteMessage(websocket.PingMessage, nil)
				writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("读取WebSocket消息错误: %v", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			result := h.dialog.ProcessAudio(c.Request.Context(), sessionID, message)
			if err := h.writeVoiceResult(conn, &writeMu, result); err != nil {
				log.Printf("发送语音回复失败: %v", err)
				return
			}

		case websocket.TextMessage:
			if err := h.handleCommand(conn, &writeMu, sessionID, message); err != nil {
				log.Printf("处理控制指令失败: %v", err)
				return
			}
		}
	}
}

// writeVoiceResult 先发送文本回复，再发送二进制音频帧
func (h *VoiceHandler) writeVoiceResult(conn *websocket.Conn, writeMu *sync.Mutex, result *models.VoiceTurnResult) error {
	writeMu.Lock()
	defer writeMu.Unlock()

	response := VoiceResponse{
		Type:      "response",
		SessionID: result.SessionID,
		Text:      result.Text,
		Mode:      result.Mode,
	}
	if err := conn.WriteJSON(response); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, result.Audio)
}

// handleCommand 处理语音通道上的控制指令
func (h *VoiceHandler) handleCommand(conn *websocket.Conn, writeMu *sync.Mutex, sessionID string, message []byte) error {
	writeMu.Lock()
	defer writeMu.Unlock()

	var cmd VoiceCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		return conn.WriteJSON(VoiceResponse{Type: "error", SessionID: sessionID, Error: "指令格式错误"})
	}

	switch cmd.Type {
	case "mode":
		mode, err := h.dialog.SwitchMode(sessionID, cmd.Mode)
		if err != nil {
			return conn.WriteJSON(VoiceResponse{Type: "error", SessionID: sessionID, Error: "模式必须为voice或chat"})
		}
		return conn.WriteJSON(VoiceResponse{Type: "mode", SessionID: sessionID, Mode: mode})

	case "clear":
		h.dialog.ClearHistory(sessionID)
		return conn.WriteJSON(VoiceResponse{Type: "ok", SessionID: sessionID})

	default:
		return conn.WriteJSON(VoiceResponse{Type: "error", SessionID: sessionID, Error: "不支持的指令类型"})
	}
}
