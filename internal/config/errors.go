package config

import "errors"

// 配置相关错误
var (
	ErrInvalidServerPort  = errors.New("服务器端口必须大于0")
	ErrEmptyOllamaHost    = errors.New("Ollama服务器地址不能为空")
	ErrEmptyOllamaModel   = errors.New("Ollama模型名称不能为空")
	ErrInvalidMaxTokens   = errors.New("Ollama最大生成token数必须大于0")
	ErrInvalidHistorySize = errors.New("对话历史上限必须大于0")
	ErrEmptyASRCommand    = errors.New("语音识别命令不能为空")
	ErrInvalidSampleRate  = errors.New("采样率必须大于0")
)
