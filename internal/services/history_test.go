package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationHistory_Record(t *testing.T) {
	tests := []struct {
		name      string
		capacity  int
		turns     int
		wantCount int
		wantFirst string // 淘汰后最旧记录的用户消息
	}{
		{
			name:      "未超容量时全部保留",
			capacity:  10,
			turns:     3,
			wantCount: 3,
			wantFirst: "question-1",
		},
		{
			name:      "刚好达到容量",
			capacity:  5,
			turns:     5,
			wantCount: 5,
			wantFirst: "question-1",
		},
		{
			name:      "超出一条时淘汰最旧",
			capacity:  5,
			turns:     6,
			wantCount: 5,
			wantFirst: "question-2",
		},
		{
			name:      "大幅超出时只保留最近容量条",
			capacity:  3,
			turns:     10,
			wantCount: 3,
			wantFirst: "question-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := NewConversationHistory(tt.capacity)
			for i := 1; i <= tt.turns; i++ {
				history.Record(fmt.Sprintf("question-%d", i), fmt.Sprintf("answer-%d", i))
			}

			assert.Equal(t, tt.wantCount, history.Stats().Count)

			// 通过上下文检查保留顺序：最旧在前
			messages := history.BuildContext("current", "system")
			require.True(t, len(messages) >= 3)
			assert.Equal(t, tt.wantFirst, messages[1].Content)
			assert.Equal(t, fmt.Sprintf("answer-%d", tt.turns), messages[len(messages)-2].Content)
		})
	}
}

func TestConversationHistory_BuildContext(t *testing.T) {
	history := NewConversationHistory(10)
	history.Record("first question", "first answer")
	history.Record("second question", "second answer")

	messages := history.BuildContext("third question", "system prompt")

	// 系统提示在最前，历史按时间顺序展开，当前消息在最后
	require.Len(t, messages, 6)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "system prompt", messages[0].Content)
	assert.Equal(t, "user", messages[1].Role)
	assert.Equal(t, "first question", messages[1].Content)
	assert.Equal(t, "assistant", messages[2].Role)
	assert.Equal(t, "first answer", messages[2].Content)
	assert.Equal(t, "user", messages[3].Role)
	assert.Equal(t, "second question", messages[3].Content)
	assert.Equal(t, "assistant", messages[4].Role)
	assert.Equal(t, "second answer", messages[4].Content)
	assert.Equal(t, "user", messages[5].Role)
	assert.Equal(t, "third question", messages[5].Content)
}

func TestConversationHistory_Clear(t *testing.T) {
	history := NewConversationHistory(10)
	history.Record("question", "answer")
	require.Equal(t, 1, history.Stats().Count)

	history.Clear()

	stats := history.Stats()
	assert.Equal(t, 0, stats.Count)
	assert.Equal(t, "none", stats.Oldest)
	assert.Equal(t, "none", stats.Newest)

	// 清空后的上下文只剩系统提示和当前消息
	messages := history.BuildContext("current", "system")
	assert.Len(t, messages, 2)
}

func TestConversationHistory_Stats(t *testing.T) {
	history := NewConversationHistory(10)

	// 空历史的时间字段为"none"
	stats := history.Stats()
	assert.Equal(t, 0, stats.Count)
	assert.Equal(t, "none", stats.Oldest)
	assert.Equal(t, "none", stats.Newest)

	history.Record("question", "answer")
	stats = history.Stats()
	assert.Equal(t, 1, stats.Count)
	assert.NotEqual(t, "none", stats.Oldest)
	assert.NotEqual(t, "none", stats.Newest)
}

func TestNewConversationHistory_InvalidCapacity(t *testing.T) {
	// 非法容量回退到默认值
	history := NewConversationHistory(0)
	for i := 0; i < defaultHistoryCapacity+5; i++ {
		history.Record("q", "a")
	}
	assert.Equal(t, defaultHistoryCapacity, history.Stats().Count)
}
