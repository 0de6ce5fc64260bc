package llm

import (
	"fmt"
	"strings"
)

// FieldType 是字段允许的 JSON 类型。
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeBoolean FieldType = "boolean"
)

// Field 描述待抽取对象中的一个字段。
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Enum        []string
	// Nullable 表示模型无法确定时可以返回 null。
	Nullable bool
}

// Schema 描述期望模型返回的对象结构。
type Schema struct {
	Name   string
	Fields []Field
}

// JSONSchema 将 Schema 转换为 JSON Schema 对象。
func (s Schema) JSONSchema() map[string]any {
	properties := make(map[string]any, len(s.Fields))
	required := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		prop := map[string]any{}
		if f.Nullable {
			prop["type"] = []string{string(f.Type), "null"}
		} else {
			prop["type"] = string(f.Type)
		}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		if len(f.Enum) > 0 {
			prop["enum"] = append([]string(nil), f.Enum...)
		}
		properties[f.Name] = prop
		required = append(required, f.Name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

// Describe 生成适合放入提示词的字段说明。
func (s Schema) Describe() string {
	var b strings.Builder
	for _, f := range s.Fields {
		fmt.Fprintf(&b, "- %s (%s", f.Name, f.Type)
		if f.Nullable {
			b.WriteString(", or null")
		}
		b.WriteString(")")
		if len(f.Enum) > 0 {
			fmt.Fprintf(&b, " one of: %s", strings.Join(f.Enum, ", "))
		}
		if f.Description != "" {
			fmt.Fprintf(&b, ": %s", f.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}
