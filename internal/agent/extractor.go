package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"text/template"
	"time"

	xerrors "HatterAgent/internal/errors"
	"HatterAgent/internal/llm"
	"HatterAgent/pkg/logger"
)

// WalletInfo 提供提示词中的钱包描述与可用链列表。
type WalletInfo interface {
	Describe() string
	Chains() []string
}

// Extractor 负责渲染提示词并调用大模型获得未经校验的参数。
type Extractor struct {
	client    llm.Client
	wallet    WalletInfo
	agentName string
	recent    int
	timeout   time.Duration
	logger    *slog.Logger
}

// NewExtractor 创建参数抽取器。recent 为参与渲染的最近消息数量，timeout 为零时不设超时。
func NewExtractor(client llm.Client, wallet WalletInfo, agentName string, recent int, timeout time.Duration) *Extractor {
	if agentName == "" {
		agentName = defaultAgentName
	}
	return &Extractor{
		client:    client,
		wallet:    wallet,
		agentName: agentName,
		recent:    recent,
		timeout:   timeout,
		logger:    logger.Named("extractor"),
	}
}

type promptData struct {
	AgentName       string
	RecentMessages  string
	WalletInfo      string
	SupportedChains string
	Fields          string
}

// Render 将模板渲染为完整的提示词。
func (e *Extractor) Render(tmpl *template.Template, schema llm.Schema, state *State) (string, error) {
	name := e.agentName
	if state.AgentName != "" {
		name = state.AgentName
	}
	data := promptData{
		AgentName:       name,
		RecentMessages:  formatMessages(state.RecentMessages, e.recent),
		WalletInfo:      e.wallet.Describe(),
		SupportedChains: supportedChains(e.wallet.Chains()),
		Fields:          schema.Describe(),
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Extract 调用大模型并返回原始参数对象，结果的结构不做任何假设。
func (e *Extractor) Extract(ctx context.Context, tmpl *template.Template, schema llm.Schema, state *State) (map[string]any, error) {
	if e.client == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置大模型客户端")
	}
	prompt, err := e.Render(tmpl, schema, state)
	if err != nil {
		return nil, xerrors.Wrap(CodeExtractionFailed, err, "渲染提示词失败")
	}

	llmCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.client.Generate(llmCtx, llm.Request{Prompt: prompt, Schema: schema})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(llmCtx.Err(), context.DeadlineExceeded) {
			return nil, xerrors.Wrap(xerrors.CodeTimeout, err, "parameter extraction timed out")
		}
		return nil, xerrors.Wrap(CodeExtractionFailed, err, "parameter extraction failed")
	}
	if resp == nil || resp.Object == nil {
		return nil, xerrors.New(CodeExtractionFailed, "model returned no parameters")
	}
	e.logger.DebugContext(ctx, "parameters extracted", "schema", schema.Name, "fields", len(resp.Object))
	return resp.Object, nil
}

// supportedChains 渲染为 "a"|"b" 形式。
func supportedChains(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = `"` + n + `"`
	}
	return strings.Join(quoted, "|")
}
