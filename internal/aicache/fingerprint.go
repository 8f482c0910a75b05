// Package aicache 提供 AI 响应的三层缓存（精确/语义/模板）
package aicache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
)

// Fingerprint 计算请求指纹
// 对语义相关字段做规范化（去首尾空白、小写）后按键排序序列化再哈希,
// 保证逻辑等价的两个请求产生相同指纹
func Fingerprint(req *Request) string {
	canonical := map[string]string{
		"prompt":        canonicalize(req.Prompt),
		"system_prompt": canonicalize(req.SystemPrompt),
		"usage_type":    canonicalize(req.UsageType),
		"temperature":   strconv.FormatFloat(req.Temperature, 'f', -1, 64),
		"model":         canonicalize(req.Model),
	}

	// encoding/json 对 map 按键排序,序列化结果稳定
	data, _ := json.Marshal(canonical)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// canonicalize 规范化文本字段
func canonicalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
