package services

import "errors"

// 对话服务相关错误
var (
	ErrEmptyInput  = errors.New("输入内容不能为空")
	ErrInvalidMode = errors.New("无效的会话模式")
)
