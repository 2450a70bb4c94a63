package models

import "context"

// TurnResult 一次文本对话的处理结果
type TurnResult struct {
	SessionID string      `json:"session_id"` // 会话ID
	Response  string      `json:"response"`   // 助手回复
	Mode      SessionMode `json:"mode"`       // 当前会话模式
	Status    string      `json:"status"`     // success或error
}

// VoiceTurnResult 一次语音对话的处理结果
type VoiceTurnResult struct {
	SessionID string      // 会话ID
	Text      string      // 助手回复文本
	Audio     []byte      // 合成的WAV音频
	Mode      SessionMode // 当前会话模式
}

// DialogService 对话服务接口
type DialogService interface {
	// ProcessText 处理一条文本消息并返回回复
	ProcessText(ctx context.Context, sessionID, text, model string) (*TurnResult, error)

	// ProcessAudio 处理一段语音输入，总是返回文本和音频
	ProcessAudio(ctx context.Context, sessionID string, audio []byte) *VoiceTurnResult

	// SwitchMode 显式切换会话模式
	SwitchMode(sessionID, mode string) (SessionMode, error)

	// GetMode 获取当前会话模式
	GetMode(sessionID string) SessionMode

	// ClearHistory 清除对话历史
	ClearHistory(sessionID string)

	// Stats 获取对话历史统计
	Stats(sessionID string) HistoryStats

	// Health 检查模型运行时健康状态
	Health(ctx context.Context) HealthStatus

	// Models 列出可用模型
	Models(ctx context.Context) ([]string, error)

	// Welcome 返回一条欢迎语
	Welcome() string
}
