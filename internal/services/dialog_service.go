package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"ai_assistant_mini/internal/clients/ollama"
	"ai_assistant_mini/internal/config"
	"ai_assistant_mini/internal/models"

	"github.com/google/uuid"
)

// switchToVoiceMessage 文本指令切入语音模式时的话术
const switchToVoiceMessage = "Switching to voice mode. You can now speak your messages."

// capabilityGatePhrases 能力提问的前置判断关键词，
// 命中后才进入话题分类器
var capabilityGatePhrases = []string{"what can you", "capabilit", "are you able"}

// DialogSession 单个会话的状态：历史、模式与串行化锁
type DialogSession struct {
	ID           string
	History      *ConversationHistory
	Mode         models.SessionMode
	LastActivity time.Time
	mu           sync.Mutex
}

// DialogService 对话编排服务：驱动人格、上下文、模型与语音各环节
type DialogService struct {
	llm      models.LLMClient
	persona  *PersonaService
	speech   *SpeechService
	sessions map[string]*DialogSession

	historySize int
	defaultMode models.SessionMode
	mu          sync.RWMutex
}

// NewDialogService 创建新的对话编排服务
func NewDialogService(cfg *config.Config, llm models.LLMClient, persona *PersonaService, speech *SpeechService) *DialogService {
	defaultMode := models.ModeChat
	if cfg.Speech.Enabled {
		defaultMode = models.ModeVoice
	}
	return &DialogService{
		llm:         llm,
		persona:     persona,
		speech:      speech,
		sessions:    make(map[string]*DialogSession),
		historySize: cfg.Dialog.HistorySize,
		defaultMode: defaultMode,
	}
}

// getOrCreateSession 获取或创建会话，空ID时生成新ID
func (s *DialogService) getOrCreateSession(sessionID string) *DialogSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if sess, exists := s.sessions[sessionID]; exists {
		sess.LastActivity = time.Now()
		return sess
	}

	sess := &DialogSession{
		ID:           sessionID,
		History:      NewConversationHistory(s.historySize),
		Mode:         s.defaultMode,
		LastActivity: time.Now(),
	}
	s.sessions[sessionID] = sess
	return sess
}

// ProcessText 处理一条文本消息：依次经过模式切换检测、能力提问
// 分流、时间上下文增强、模型生成与人格过滤。空输入不记录直接报错；
// 模型失败转换为带技术后缀的人格化错误文案，同样不记录。
func (s *DialogService) ProcessText(ctx context.Context, sessionID, text, model string) (*models.TurnResult, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyInput
	}

	sess := s.getOrCreateSession(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	// 文字输入同样支持模式切换指令
	if target := s.speech.DetectModeSwitch(trimmed); target != "" {
		return &models.TurnResult{
			SessionID: sess.ID,
			Response:  s.applyModeSwitch(sess, target),
			Mode:      sess.Mode,
			Status:    "success",
		}, nil
	}

	// 能力提问不走模型，由固定话术回答
	if isCapabilityQuery(trimmed) {
		response := s.persona.HandleCapabilityQuery(trimmed)
		sess.History.Record(trimmed, response)
		return &models.TurnResult{
			SessionID: sess.ID,
			Response:  response,
			Mode:      sess.Mode,
			Status:    "success",
		}, nil
	}

	prompt := s.persona.EnhancePrompt(trimmed)
	messages := sess.History.BuildContext(prompt, s.persona.SystemPrompt())

	raw, err := s.llm.Chat(ctx, messages, model)
	if err != nil {
		log.Printf("模型生成失败: %v", err)
		return &models.TurnResult{
			SessionID: sess.ID,
			Response:  s.persona.ErrorMessage() + failureSuffix(err),
			Mode:      sess.Mode,
			Status:    "error",
		}, nil
	}

	filtered := s.persona.FilterResponse(raw)
	sess.History.Record(prompt, strings.TrimSpace(raw))

	return &models.TurnResult{
		SessionID: sess.ID,
		Response:  filtered,
		Mode:      sess.Mode,
		Status:    "success",
	}, nil
}

// ProcessAudio 处理一段语音输入，总是返回文本和音频。
// 模型上下文的构建与记录通过闭包交给语音流程回调。
func (s *DialogService) ProcessAudio(ctx context.Context, sessionID string, audio []byte) *models.VoiceTurnResult {
	sess := s.getOrCreateSession(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	generate := func(ctx context.Context, prompt string) (string, error) {
		messages := sess.History.BuildContext(prompt, s.persona.SystemPrompt())
		raw, err := s.llm.Chat(ctx, messages, "")
		if err != nil {
			return "", err
		}
		sess.History.Record(prompt, strings.TrimSpace(raw))
		return raw, nil
	}

	text, audioOut, switched := s.speech.SpeechToSpeech(ctx, audio, generate, s.persona)
	if switched != "" {
		sess.Mode = switched
	}

	return &models.VoiceTurnResult{
		SessionID: sess.ID,
		Text:      text,
		Audio:     audioOut,
		Mode:      sess.Mode,
	}
}

// applyModeSwitch 应用隐式模式切换并返回应答话术。
// 语音模式重复切换返回"已激活"提示，聊天模式重复切换为无副作用应答。
func (s *DialogService) applyModeSwitch(sess *DialogSession, target models.SessionMode) string {
	if target == models.ModeChat {
		sess.Mode = models.ModeChat
		return switchToChatMessage
	}
	if sess.Mode == models.ModeVoice {
		return voiceAlreadyActive
	}
	sess.Mode = models.ModeVoice
	return switchToVoiceMessage
}

// SwitchMode 显式切换会话模式，非法值返回错误
func (s *DialogService) SwitchMode(sessionID, mode string) (models.SessionMode, error) {
	parsed, ok := models.ParseMode(mode)
	if !ok {
		return "", ErrInvalidMode
	}

	sess := s.getOrCreateSession(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.Mode = parsed
	return parsed, nil
}

// GetMode 获取当前会话模式
func (s *DialogService) GetMode(sessionID string) models.SessionMode {
	sess := s.getOrCreateSession(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.Mode
}

// ClearHistory 清除对话历史
func (s *DialogService) ClearHistory(sessionID string) {
	sess := s.getOrCreateSession(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.History.Clear()
}

// Stats 获取对话历史统计
func (s *DialogService) Stats(sessionID string) models.HistoryStats {
	sess := s.getOrCreateSession(sessionID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.History.Stats()
}

// Health 检查模型运行时健康状态
func (s *DialogService) Health(ctx context.Context) models.HealthStatus {
	return s.llm.Health(ctx)
}

// Models 列出可用模型
func (s *DialogService) Models(ctx context.Context) ([]string, error) {
	return s.llm.ListModels(ctx)
}

// Welcome 返回一条欢迎语
func (s *DialogService) Welcome() string {
	return s.persona.WelcomeMessage()
}

// failureSuffix 根据失败类型生成用户可见的技术后缀
func failureSuffix(err error) string {
	switch {
	case errors.Is(err, ollama.ErrTimeout):
		return " (The model timed out - it may be overloaded.)"
	case errors.Is(err, ollama.ErrConnection):
		return " (The model runtime is unreachable - is Ollama running?)"
	default:
		return " (An unexpected model error occurred.)"
	}
}

// isCapabilityQuery 前置判断消息是否在询问助手能力
func isCapabilityQuery(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range capabilityGatePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
