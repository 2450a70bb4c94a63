package models

// SessionMode 会话交互模式
type SessionMode string

// 会话模式常量
const (
	ModeVoice SessionMode = "voice"
	ModeChat  SessionMode = "chat"
)

// ParseMode 解析模式字符串，非法值返回false
func ParseMode(s string) (SessionMode, bool) {
	switch SessionMode(s) {
	case ModeVoice:
		return ModeVoice, true
	case ModeChat:
		return ModeChat, true
	}
	return "", false
}
