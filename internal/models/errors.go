package models

import "errors"

// 错误分类（HTTP层映射为对应状态码）
var (
	ErrUnauthorized    = errors.New("unauthorized")     // 设备不存在/未激活/令牌不匹配
	ErrInvalidArgument = errors.New("invalid argument") // 缺少必填字段或参数非法
	ErrNotFound        = errors.New("not found")        // 引用的站点/设备/告警不存在
)
