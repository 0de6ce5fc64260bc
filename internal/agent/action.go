package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"text/template"
	"time"

	xerrors "HatterAgent/internal/errors"
	"HatterAgent/internal/llm"
	"HatterAgent/internal/observability/metrics"
	"HatterAgent/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "HatterAgent/internal/agent"

// Example 是一段演示对话，用于向运行时和工具调用方说明动作的用法。
type Example struct {
	User  string `json:"user"`
	Agent Reply  `json:"agent"`
}

// Definition 描述一个动作的元数据与流水线配置。
type Definition struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Similes     []string  `json:"similes"`
	Examples    []Example `json:"examples"`
	// RequiresSigner 为 true 时执行前必须配置签名私钥。
	RequiresSigner bool `json:"requires_signer"`
	// FailurePrefix 是失败回复文本的前缀，例如 "Error minting hat"。
	FailurePrefix string `json:"-"`
	// ContractLabel 用于包装合约调用错误，例如 "Minting of Hat failed"。
	ContractLabel string                           `json:"-"`
	Template      *template.Template               `json:"-"`
	Schema        func(chains []string) llm.Schema `json:"-"`
}

// Action 是运行时调度的动作接口。
type Action interface {
	Definition() Definition
	// Validate 判断动作当前是否可用，例如写操作是否具备签名凭证。
	Validate(ctx context.Context) bool
	// Handle 执行完整流水线并调用一次 cb，成功时返回 true。
	Handle(ctx context.Context, state *State, cb Callback) bool
}

// Operation 定义某个动作特有的参数校验、合约调用与结果渲染。
type Operation[P, R any] interface {
	Parse(raw map[string]any) (P, error)
	Invoke(ctx context.Context, params P) (R, error)
	Reply(params P, result R) Reply
}

// Executor 以统一的流水线驱动一个 Operation。
type Executor[P, R any] struct {
	def           Definition
	op            Operation[P, R]
	extractor     *Extractor
	wallet        WalletInfo
	signer        func() bool
	actionTimeout time.Duration
	recorder      *metrics.Recorder
	logger        *slog.Logger
}

// NewExecutor 组装一个动作执行器。signer 为 nil 时视为始终可用。
func NewExecutor[P, R any](def Definition, op Operation[P, R], extractor *Extractor, wallet WalletInfo, signer func() bool, actionTimeout time.Duration, recorder *metrics.Recorder) *Executor[P, R] {
	if recorder == nil {
		recorder = metrics.Default()
	}
	return &Executor[P, R]{
		def:           def,
		op:            op,
		extractor:     extractor,
		wallet:        wallet,
		signer:        signer,
		actionTimeout: actionTimeout,
		recorder:      recorder,
		logger:        logger.Named("agent").With("action", def.Name),
	}
}

// Definition 返回动作元数据。
func (e *Executor[P, R]) Definition() Definition {
	return e.def
}

// Validate 写操作要求配置了以 0x 开头的私钥，读操作始终可用。
func (e *Executor[P, R]) Validate(context.Context) bool {
	if !e.def.RequiresSigner || e.signer == nil {
		return true
	}
	return e.signer()
}

// Handle 运行流水线：状态检查、参数抽取、校验、合约调用、结果回传。
func (e *Executor[P, R]) Handle(ctx context.Context, state *State, cb Callback) bool {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "agent."+e.def.Name,
		trace.WithAttributes(attribute.String("hatter.action", e.def.Name)))
	defer span.End()

	reply, err := e.run(ctx, span, state)
	if err != nil {
		reply = e.failure(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(xerrors.CodeOf(err)))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	outcome := "success"
	if err != nil {
		outcome = string(xerrors.CodeOf(err))
	}
	e.recorder.ObserveAction(ctx, e.def.Name, outcome, time.Since(start))
	e.log(ctx, reply, err, time.Since(start))

	if cb != nil {
		cb(reply)
	}
	return err == nil
}

func (e *Executor[P, R]) run(ctx context.Context, span trace.Span, state *State) (Reply, error) {
	// 校验会话状态。
	if state == nil {
		return Reply{}, xerrors.New(CodeMissingState, "")
	}

	// 写操作需要签名凭证。
	if !e.Validate(ctx) {
		return Reply{}, xerrors.New(CodeNoCredential, "EVM_PRIVATE_KEY is not configured or lacks the 0x prefix")
	}

	// 调用大模型抽取参数。
	raw, err := e.extractor.Extract(ctx, e.def.Template, e.def.Schema(e.wallet.Chains()), state)
	if err != nil {
		return Reply{}, err
	}
	span.AddEvent("parameters.extracted")

	// 校验并规范化参数。
	params, err := e.op.Parse(raw)
	if err != nil {
		return Reply{}, err
	}
	span.AddEvent("parameters.validated")

	// 调用合约。
	invokeCtx := ctx
	if e.actionTimeout > 0 {
		var cancel context.CancelFunc
		invokeCtx, cancel = context.WithTimeout(ctx, e.actionTimeout)
		defer cancel()
	}
	result, err := e.op.Invoke(invokeCtx, params)
	if err != nil {
		return Reply{}, e.classify(invokeCtx, err)
	}
	span.AddEvent("contract.invoked")

	return e.op.Reply(params, result), nil
}

// classify 保留已知的领域错误，其余视为合约调用失败并附加动作标签。
func (e *Executor[P, R]) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return xerrors.Wrap(xerrors.CodeTimeout, err, e.def.ContractLabel)
	}
	switch xerrors.CodeOf(err) {
	case CodeUnknownChain, CodeNoCredential, CodeValidationFailed, xerrors.CodeInvalidArgument:
		return err
	}
	return xerrors.Wrap(CodeContractCallFailed, err, e.def.ContractLabel)
}

func (e *Executor[P, R]) failure(err error) Reply {
	message := xerrors.UserMessage(err)
	return Reply{
		Text: fmt.Sprintf("%s: %s", e.def.FailurePrefix, message),
		Content: map[string]any{
			"success": false,
			"error":   message,
		},
	}
}

func (e *Executor[P, R]) log(ctx context.Context, reply Reply, err error, elapsed time.Duration) {
	attrs := []any{"success", err == nil, "duration_ms", elapsed.Milliseconds()}
	if err != nil {
		attrs = append(attrs, "code", string(xerrors.CodeOf(err)), "severity", string(xerrors.SeverityOf(err)), "error", err.Error())
		if xerrors.SeverityOf(err) == xerrors.SeverityCritical {
			e.logger.ErrorContext(ctx, "action failed", attrs...)
		} else {
			e.logger.WarnContext(ctx, "action failed", attrs...)
		}
	} else {
		e.logger.InfoContext(ctx, "action completed", attrs...)
	}
	logger.Audit().InfoContext(ctx, "action outcome",
		"action", e.def.Name,
		"success", err == nil,
		"content", reply.Content,
	)
}
