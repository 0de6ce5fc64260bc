package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ParseObject 从模型输出中提取第一个 JSON 对象。支持 ```json 代码块包裹，
// 数字以 json.Number 保留，避免大整数丢失精度。
func ParseObject(content string) (map[string]any, error) {
	text := strings.TrimSpace(content)
	if start := strings.Index(text, "```"); start >= 0 {
		rest := text[start+3:]
		if nl := strings.Index(rest, "\n"); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		text = strings.TrimSpace(rest)
	}

	open := strings.Index(text, "{")
	closing := strings.LastIndex(text, "}")
	if open < 0 || closing < open {
		return nil, errors.New("模型输出中没有 JSON 对象")
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(text[open : closing+1])))
	decoder.UseNumber()
	var out map[string]any
	if err := decoder.Decode(&out); err != nil {
		return nil, fmt.Errorf("解析模型输出失败: %w", err)
	}
	return out, nil
}
