package ollama

import "errors"

// 客户端错误分类，调用方通过errors.Is区分
var (
	ErrTimeout    = errors.New("请求Ollama超时")
	ErrConnection = errors.New("无法连接Ollama服务")
	ErrProtocol   = errors.New("Ollama响应格式异常")
)
