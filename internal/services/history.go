package services

import (
	"sync"
	"time"

	"ai_assistant_mini/internal/models"
)

// defaultHistoryCapacity 默认保留的对话轮数
const defaultHistoryCapacity = 10

// ConversationHistory 有界的对话历史，超出容量时淘汰最旧记录
type ConversationHistory struct {
	mu        sync.Mutex
	capacity  int
	exchanges []models.Exchange
}

// NewConversationHistory 创建新的对话历史
func NewConversationHistory(capacity int) *ConversationHistory {
	if capacity <= 0 {
		capacity = defaultHistoryCapacity
	}
	return &ConversationHistory{
		capacity:  capacity,
		exchanges: make([]models.Exchange, 0, capacity),
	}
}

// Record 追加一轮问答记录并维持容量上限
func (h *ConversationHistory) Record(user, assistant string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.exchanges = append(h.exchanges, models.Exchange{
		User:      user,
		Assistant: assistant,
		Timestamp: time.Now(),
	})
	if len(h.exchanges) > h.capacity {
		h.exchanges = h.exchanges[len(h.exchanges)-h.capacity:]
	}
}

// BuildContext 构建发送给模型的消息序列：
// 系统提示词在最前，历史按时间顺序展开，当前用户消息在最后。
func (h *ConversationHistory) BuildContext(current, systemPrompt string) []models.Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	messages := make([]models.Message, 0, len(h.exchanges)*2+2)
	messages = append(messages, models.Message{Role: "system", Content: systemPrompt})
	for _, ex := range h.exchanges {
		messages = append(messages,
			models.Message{Role: "user", Content: ex.User},
			models.Message{Role: "assistant", Content: ex.Assistant},
		)
	}
	messages = append(messages, models.Message{Role: "user", Content: current})
	return messages
}

// Clear 清空对话历史
func (h *ConversationHistory) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.exchanges = h.exchanges[:0]
}

// Stats 返回历史统计信息，空历史的时间字段为"none"
func (h *ConversationHistory) Stats() models.HistoryStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := models.HistoryStats{
		Count:  len(h.exchanges),
		Oldest: "none",
		Newest: "none",
	}
	if len(h.exchanges) > 0 {
		stats.Oldest = h.exchanges[0].Timestamp.Format(time.RFC3339)
		stats.Newest = h.exchanges[len(h.exchanges)-1].Timestamp.Format(time.RFC3339)
	}
	return stats
}
