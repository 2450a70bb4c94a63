package models

import "time"

// Message 对话消息
type Message struct {
	Role    string `json:"role"`    // 消息角色：system/user/assistant
	Content string `json:"content"` // 消息内容
}

// Exchange 一轮完整的问答记录，创建后不可修改
type Exchange struct {
	User      string    // 用户输入
	Assistant string    // 助手回复
	Timestamp time.Time // 记录时间
}

// HistoryStats 对话历史统计信息
type HistoryStats struct {
	Count  int    `json:"count"`  // 当前保留的轮数
	Oldest string `json:"oldest"` // 最早记录时间，空历史为"none"
	Newest string `json:"newest"` // 最新记录时间，空历史为"none"
}
