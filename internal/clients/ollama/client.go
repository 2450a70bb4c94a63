// Package ollama 实现与Ollama运行时的对话补全客户端
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"ai_assistant_mini/internal/models"
)

// 默认生成策略，当前设计不允许调用方覆盖，留作后续配置点
const (
	defaultTemperature = 0.7
	defaultTopP        = 0.9
)

var defaultStop = []string{"Human:", "User:"}

// Config Ollama客户端配置
type Config struct {
	Host          string        // Ollama服务器地址（完整URL）
	Model         string        // 默认模型名称
	MaxTokens     int           // 最大生成token数
	Timeout       time.Duration // 生成请求超时时间
	HealthTimeout time.Duration // 健康检查超时时间
}

// Client Ollama客户端
type Client struct {
	config Config
	client *http.Client
}

// ChatRequest 对话补全请求参数
type ChatRequest struct {
	Model    string           `json:"model"`    // 模型名称
	Messages []models.Message `json:"messages"` // 角色标注的消息序列
	Stream   bool             `json:"stream"`   // 是否流式输出
	Options  Options          `json:"options"`  // 生成选项
}

// Options 生成选项
type Options struct {
	Temperature float64  `json:"temperature"` // 温度参数
	TopP        float64  `json:"top_p"`       // Top-p采样
	MaxTokens   int      `json:"max_tokens"`  // 最大生成token数
	Stop        []string `json:"stop"`        // 停止序列
}

// ChatResponse 对话补全响应
type ChatResponse struct {
	Model     string         `json:"model"`      // 模型名称
	CreatedAt string         `json:"created_at"` // 创建时间
	Message   models.Message `json:"message"`    // 生成的消息
	Done      bool           `json:"done"`       // 是否完成
}

// tagsResponse 模型列表响应
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewClient 创建新的Ollama客户端
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.HealthTimeout == 0 {
		config.HealthTimeout = 5 * time.Second
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 512
	}
	return &Client{
		config: config,
		client: &http.Client{},
	}
}

// defaultOptions 返回固定的生成策略
func (c *Client) defaultOptions() Options {
	return Options{
		Temperature: defaultTemperature,
		TopP:        defaultTopP,
		MaxTokens:   c.config.MaxTokens,
		Stop:        defaultStop,
	}
}

// Chat 发送一次完整的对话补全请求
func (c *Client) Chat(ctx context.Context, messages []models.Message, model string) (string, error) {
	resp, err := c.doChat(ctx, messages, model, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var response ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("解析响应失败: %v: %w", err, ErrProtocol)
	}

	return response.Message.Content, nil
}

// ChatStream 流式对话补全，逐段回调增量文本。
// 无法解码的中间块会被跳过，解码从下一块继续。
func (c *Client) ChatStream(ctx context.Context, messages []models.Message, model string, callback func(string) error) error {
	resp, err := c.doChat(ctx, messages, model, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk ChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			// 坏块不致命，继续读下一块
			continue
		}

		if chunk.Message.Content != "" {
			if err := callback(chunk.Message.Content); err != nil {
				return fmt.Errorf("处理响应块失败: %w", err)
			}
		}
		if chunk.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return c.classifyTransportError(err)
	}
	return nil
}

// doChat 构建并发送对话补全请求
func (c *Client) doChat(ctx context.Context, messages []models.Message, model string, stream bool) (*http.Response, error) {
	if model == "" {
		model = c.config.Model
	}
	reqBody := ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   stream,
		Options:  c.defaultOptions(),
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	resp, err := c.post(ctx, "/api/chat", jsonData)
	if err != nil {
		cancel()
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("服务器返回错误状态 %d: %s: %w", resp.StatusCode, string(body), ErrProtocol)
	}

	// 响应体读取结束时释放超时上下文
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// post 发送POST请求并分类传输层错误
func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	url := c.config.Host + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.classifyTransportError(err)
	}
	return resp, nil
}

// classifyTransportError 将传输层错误归类为超时或连接失败
func (c *Client) classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("请求超时: %v: %w", err, ErrTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("请求超时: %v: %w", err, ErrTimeout)
	}
	return fmt.Errorf("发送请求失败: %v: %w", err, ErrConnection)
}

// ListModels 列出运行时可用的模型名称
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	url := c.config.Host + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %v", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("服务器返回错误状态 %d: %w", resp.StatusCode, ErrProtocol)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("解析模型列表失败: %v: %w", err, ErrProtocol)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Health 检查运行时连接与模型可用性。
// 分类顺序：连接失败优先，其次模型可用性，否则健康。
func (c *Client) Health(ctx context.Context) models.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, c.config.HealthTimeout)
	defer cancel()

	available, err := c.ListModels(ctx)
	if err != nil {
		if errors.Is(err, ErrTimeout) || errors.Is(err, ErrConnection) {
			return models.HealthStatus{
				State:  models.HealthDisconnected,
				Model:  c.config.Model,
				Detail: err.Error(),
			}
		}
		return models.HealthStatus{
			State:  models.HealthError,
			Model:  c.config.Model,
			Detail: err.Error(),
		}
	}

	for _, name := range available {
		if name == c.config.Model {
			return models.HealthStatus{
				State:     models.HealthHealthy,
				Model:     c.config.Model,
				Available: available,
			}
		}
	}
	return models.HealthStatus{
		State:     models.HealthModelMissing,
		Model:     c.config.Model,
		Available: available,
	}
}

// cancelReadCloser 关闭响应体时同时释放请求上下文
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	c.cancel()
	return c.ReadCloser.Close()
}
