package models

// HealthState 模型运行时健康状态
type HealthState string

// 健康状态常量
const (
	HealthHealthy      HealthState = "healthy"
	HealthModelMissing HealthState = "model-missing"
	HealthDisconnected HealthState = "disconnected"
	HealthError        HealthState = "error"
)

// HealthStatus 健康检查结果
type HealthStatus struct {
	State     HealthState `json:"state"`               // 分类结果
	Model     string      `json:"model,omitempty"`     // 配置的模型名称
	Available []string    `json:"available,omitempty"` // 运行时可用的模型列表
	Detail    string      `json:"detail,omitempty"`    // 错误详情
}
