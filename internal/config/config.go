// Package config 提供配置加载和管理功能
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var globalConfig *Config

// Config 应用程序配置结构
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Ollama    OllamaConfig    `yaml:"ollama"`
	Dialog    DialogConfig    `yaml:"dialog"`
	Speech    SpeechConfig    `yaml:"speech"`
	WebSocket WebSocketConfig `yaml:"websocket"`
}

// ServerConfig HTTP服务器配置
type ServerConfig struct {
	Host string `yaml:"host"` // 服务器监听地址
	Port int    `yaml:"port"` // 服务器监听端口
}

// OllamaConfig Ollama配置
type OllamaConfig struct {
	Host          string        `yaml:"host"`           // Ollama服务器地址（完整URL）
	Model         string        `yaml:"model"`          // 默认模型名称
	MaxTokens     int           `yaml:"max_tokens"`     // 最大生成token数
	Timeout       time.Duration `yaml:"timeout"`        // 生成请求超时时间
	HealthTimeout time.Duration `yaml:"health_timeout"` // 健康检查超时时间
}

// DialogConfig 对话配置
type DialogConfig struct {
	HistorySize int `yaml:"history_size"` // 保留的对话轮数上限
}

// SpeechConfig 语音配置
type SpeechConfig struct {
	Enabled       bool          `yaml:"enabled"`        // 是否启用语音功能
	ASRCommand    string        `yaml:"asr_command"`    // 语音识别命令
	ASRModel      string        `yaml:"asr_model"`      // 语音识别模型名称
	KokoroPaths   []string      `yaml:"kokoro_paths"`   // Kokoro TTS候选路径，按顺序探测
	DefaultVoice  string        `yaml:"default_voice"`  // 默认语音音色
	SampleRate    int           `yaml:"sample_rate"`    // 采样率
	EngineTimeout time.Duration `yaml:"engine_timeout"` // 语音引擎子进程超时时间
}

// WebSocketConfig WebSocket配置
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size"`  // 读缓冲区大小
	WriteBufferSize int           `yaml:"write_buffer_size"` // 写缓冲区大小
	PingPeriod      time.Duration `yaml:"ping_period"`       // 心跳间隔
	PongWait        time.Duration `yaml:"pong_wait"`         // 等待Pong响应的超时时间
}

// GetConfig 获取全局配置实例
func GetConfig() *Config {
	return globalConfig
}

// Load 从文件加载配置
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %v", err)
	}

	// 设置默认值
	setDefaults(&config)

	// 验证配置
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	// 设置全局配置
	globalConfig = &config

	return &config, nil
}

// Default 返回带默认值的配置，供无配置文件场景使用
func Default() *Config {
	config := &Config{}
	setDefaults(config)
	return config
}

// setDefaults 为缺省项填充默认值
func setDefaults(config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8000
	}
	if config.Ollama.Host == "" {
		config.Ollama.Host = "http://localhost:11434"
	}
	if config.Ollama.Model == "" {
		config.Ollama.Model = "llama3.2:3b"
	}
	if config.Ollama.MaxTokens == 0 {
		config.Ollama.MaxTokens = 512
	}
	if config.Ollama.Timeout == 0 {
		config.Ollama.Timeout = 60 * time.Second
	}
	if config.Ollama.HealthTimeout == 0 {
		config.Ollama.HealthTimeout = 5 * time.Second
	}
	if config.Dialog.HistorySize == 0 {
		config.Dialog.HistorySize = 10
	}
	if config.Speech.ASRCommand == "" {
		config.Speech.ASRCommand = "whisper-cli"
	}
	if len(config.Speech.KokoroPaths) == 0 {
		config.Speech.KokoroPaths = []string{
			"./kokoro/kokoro_tts.py",
			"kokoro",
			"./models/kokoro/kokoro_tts.py",
		}
	}
	if config.Speech.DefaultVoice == "" {
		config.Speech.DefaultVoice = "default"
	}
	if config.Speech.SampleRate == 0 {
		config.Speech.SampleRate = 16000
	}
	if config.Speech.EngineTimeout == 0 {
		config.Speech.EngineTimeout = 30 * time.Second
	}
	if config.WebSocket.ReadBufferSize == 0 {
		config.WebSocket.ReadBufferSize = 4096
	}
	if config.WebSocket.WriteBufferSize == 0 {
		config.WebSocket.WriteBufferSize = 4096
	}
	if config.WebSocket.PingPeriod == 0 {
		config.WebSocket.PingPeriod = 30 * time.Second
	}
	if config.WebSocket.PongWait == 0 {
		config.WebSocket.PongWait = 60 * time.Second
	}
}

// validateConfig 验证配置是否有效
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 {
		return ErrInvalidServerPort
	}
	if config.Ollama.Host == "" {
		return ErrEmptyOllamaHost
	}
	if config.Ollama.Model == "" {
		return ErrEmptyOllamaModel
	}
	if config.Ollama.MaxTokens <= 0 {
		return ErrInvalidMaxTokens
	}
	if config.Dialog.HistorySize <= 0 {
		return ErrInvalidHistorySize
	}
	if config.Speech.Enabled {
		if config.Speech.ASRCommand == "" {
			return ErrEmptyASRCommand
		}
		if config.Speech.SampleRate <= 0 {
			return ErrInvalidSampleRate
		}
	}
	return nil
}
