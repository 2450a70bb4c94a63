package models

import "context"

// LLMClient 模型运行时客户端接口
type LLMClient interface {
	// Chat 发送一次完整的对话补全请求，model为空时使用默认模型
	Chat(ctx context.Context, messages []Message, model string) (string, error)

	// ChatStream 流式对话补全，逐段回调增量文本，必须读完或取消
	ChatStream(ctx context.Context, messages []Message, model string, callback func(string) error) error

	// ListModels 列出运行时可用的模型名称
	ListModels(ctx context.Context) ([]string, error)

	// Health 检查运行时连接与模型可用性
	Health(ctx context.Context) HealthStatus
}

// GenerateFunc 封装一次带上下文的文本生成调用
type GenerateFunc func(ctx context.Context, prompt string) (string, error)
