package llm

import "context"

// Request 描述一次结构化生成任务。
type Request struct {
	Prompt string
	Schema Schema
}

// Response 是大模型返回的 JSON 对象，Raw 保留原始文本便于排查。
type Response struct {
	Object map[string]any
	Raw    string
}

// Client 定义了调用大模型的统一接口。
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// ClientFunc 允许使用普通函数实现 Client。
type ClientFunc func(ctx context.Context, req Request) (*Response, error)

// Generate 实现 Client 接口。
func (f ClientFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
