package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"ai_assistant_mini/internal/models"
	"ai_assistant_mini/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDialogService 可编程的对话服务替身
type mockDialogService struct {
	mu         sync.Mutex
	processErr error
	modelsErr  error
	cleared    bool
	mode       models.SessionMode
}

func (m *mockDialogService) ProcessText(ctx context.Context, sessionID, text, model string) (*models.TurnResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, services.ErrEmptyInput
	}
	if m.processErr != nil {
		return nil, m.processErr
	}
	return &models.TurnResult{
		SessionID: sessionID,
		Response:  "Quite right, the answer is 42.",
		Mode:      models.ModeChat,
		Status:    "success",
	}, nil
}

func (m *mockDialogService) ProcessAudio(ctx context.Context, sessionID string, audio []byte) *models.VoiceTurnResult {
	return &models.VoiceTurnResult{SessionID: sessionID, Text: "ok", Audio: []byte("wav"), Mode: models.ModeVoice}
}

func (m *mockDialogService) SwitchMode(sessionID, mode string) (models.SessionMode, error) {
	parsed, ok := models.ParseMode(mode)
	if !ok {
		return "", services.ErrInvalidMode
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mode = parsed
	return parsed, nil
}

func (m *mockDialogService) GetMode(sessionID string) models.SessionMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode == "" {
		return models.ModeChat
	}
	return m.mode
}

func (m *mockDialogService) ClearHistory(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = true
}

// Cleared 读取清除标记
func (m *mockDialogService) Cleared() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleared
}

func (m *mockDialogService) Stats(sessionID string) models.HistoryStats {
	return models.HistoryStats{Count: 2, Oldest: "2024-03-15T09:00:00Z", Newest: "2024-03-15T09:05:00Z"}
}

func (m *mockDialogService) Health(ctx context.Context) models.HealthStatus {
	return models.HealthStatus{State: models.HealthHealthy, Model: "llama3.2:3b"}
}

func (m *mockDialogService) Models(ctx context.Context) ([]string, error) {
	if m.modelsErr != nil {
		return nil, m.modelsErr
	}
	return []string{"llama3.2:3b", "mistral"}, nil
}

func (m *mockDialogService) Welcome() string {
	return "Good day! ARIA at your service."
}

// newTestRouter 构造挂载了对话处理器的测试路由
func newTestRouter(mock *mockDialogService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewChatHandler(mock)

	r.POST("/api/chat", h.HandleChat)
	r.POST("/api/mode", h.HandleSwitchMode)
	r.GET("/api/mode", h.HandleGetMode)
	r.POST("/api/history/clear", h.HandleClearHistory)
	r.GET("/api/stats", h.HandleStats)
	r.GET("/api/models", h.HandleModels)
	r.GET("/api/welcome", h.HandleWelcome)
	r.GET("/health", h.HandleHealth)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChatHandler_HandleChat(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantField  string
	}{
		{
			name:       "正常对话",
			body:       ChatRequest{SessionID: "s1", Message: "hello"},
			wantStatus: http.StatusOK,
			wantField:  "response",
		},
		{
			name:       "空消息",
			body:       ChatRequest{SessionID: "s1", Message: "   "},
			wantStatus: http.StatusBadRequest,
			wantField:  "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&mockDialogService{})
			w := doJSON(t, r, "POST", "/api/chat", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)

			var resp map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Contains(t, resp, tt.wantField)
		})
	}
}

func TestChatHandler_HandleChatMalformedBody(t *testing.T) {
	r := newTestRouter(&mockDialogService{})

	req := httptest.NewRequest("POST", "/api/chat", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_HandleChatInternalError(t *testing.T) {
	r := newTestRouter(&mockDialogService{processErr: errors.New("boom")})
	w := doJSON(t, r, "POST", "/api/chat", ChatRequest{SessionID: "s1", Message: "hello"})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestChatHandler_HandleSwitchMode(t *testing.T) {
	tests := []struct {
		name       string
		mode       string
		wantStatus int
	}{
		{"切到语音", "voice", http.StatusOK},
		{"切到聊天", "chat", http.StatusOK},
		{"非法模式", "telepathy", http.StatusBadRequest},
		{"空模式", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&mockDialogService{})
			w := doJSON(t, r, "POST", "/api/mode", ModeRequest{SessionID: "s1", Mode: tt.mode})

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				var resp map[string]any
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.mode, resp["mode"])
			}
		})
	}
}

func TestChatHandler_HandleGetMode(t *testing.T) {
	r := newTestRouter(&mockDialogService{})
	w := doJSON(t, r, "GET", "/api/mode?session_id=s1", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "s1", resp["session_id"])
	assert.Equal(t, "chat", resp["mode"])
}

func TestChatHandler_HandleClearHistory(t *testing.T) {
	mock := &mockDialogService{}
	r := newTestRouter(mock)
	w := doJSON(t, r, "POST", "/api/history/clear", SessionRequest{SessionID: "s1"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mock.Cleared())
}

func TestChatHandler_HandleStats(t *testing.T) {
	r := newTestRouter(&mockDialogService{})
	w := doJSON(t, r, "GET", "/api/stats?session_id=s1", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var stats models.HistoryStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Count)
}

func TestChatHandler_HandleModels(t *testing.T) {
	t.Run("运行时可达", func(t *testing.T) {
		r := newTestRouter(&mockDialogService{})
		w := doJSON(t, r, "GET", "/api/models", nil)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp["models"], 2)
	})

	t.Run("运行时不可达时返回空列表", func(t *testing.T) {
		r := newTestRouter(&mockDialogService{modelsErr: errors.New("connection refused")})
		w := doJSON(t, r, "GET", "/api/models", nil)

		// 模型列表失败不是请求错误
		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Empty(t, resp["models"])
		assert.Contains(t, resp, "error")
	})
}

func TestChatHandler_HandleWelcome(t *testing.T) {
	r := newTestRouter(&mockDialogService{})
	w := doJSON(t, r, "GET", "/api/welcome", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["message"])
}

func TestChatHandler_HandleHealth(t *testing.T) {
	r := newTestRouter(&mockDialogService{})
	w := doJSON(t, r, "GET", "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.Equal(t, "running", resp["backend"])
	assert.Contains(t, resp, "ollama")
	assert.Contains(t, resp, "speech_enabled")
}
