package task

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"

	"HatterAgent/internal/agent"
	xerrors "HatterAgent/internal/errors"
	"HatterAgent/internal/observability/metrics"
	"HatterAgent/pkg/logger"
)

// ActionSet 按名称查找动作，agent.Plugin 实现了该接口。
type ActionSet interface {
	Lookup(name string) (agent.Action, bool)
}

// Processor 从队列消费轮次并交给对应动作执行。队列只有一个消费者，
// 因此同一时刻最多运行一条流水线。
type Processor struct {
	actions  ActionSet
	store    Store
	consumer Consumer
	logger   *slog.Logger
	recorder *metrics.Recorder
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithProcessorLogger 指定日志输出。
func WithProcessorLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithProcessorRecorder 指定指标记录器。
func WithProcessorRecorder(r *metrics.Recorder) ProcessorOption {
	return func(p *Processor) {
		if r != nil {
			p.recorder = r
		}
	}
}

// NewProcessor 构造 Processor。
func NewProcessor(actions ActionSet, store Store, consumer Consumer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		actions:  actions,
		store:    store,
		consumer: consumer,
		logger:   logger.Named("processor"),
		recorder: metrics.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start 启动处理循环，直到 ctx 结束。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置轮次消费者")
	}
	return p.consumer.Consume(ctx, p.handle)
}

func (p *Processor) handle(ctx context.Context, turnID string) error {
	if p.store == nil || p.actions == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "处理器未初始化")
	}
	p.recorder.TurnQueued(ctx, -1)

	turn, err := p.store.Claim(ctx, turnID)
	if err != nil {
		if stdErrors.Is(err, ErrTurnNotFound) {
			// 队列按实例划分，出现未知轮次说明 key 被其他进程共用。
			p.logger.WarnContext(ctx, "收到本实例不存在的轮次", slog.String("turn_id", turnID))
			return nil
		}
		if stdErrors.Is(err, ErrTurnCompleted) || stdErrors.Is(err, ErrTurnConflict) {
			p.logger.DebugContext(ctx, "跳过轮次", slog.String("turn_id", turnID), slog.String("reason", err.Error()))
			return nil
		}
		p.logger.ErrorContext(ctx, "领取轮次失败", slog.Any("error", err), slog.String("turn_id", turnID))
		return err
	}

	action, ok := p.actions.Lookup(turn.Action)
	if !ok {
		msg := fmt.Sprintf("unknown action %q", turn.Action)
		if err := p.store.MarkFailed(ctx, turn.ID, CodeUnknownAction, msg); err != nil {
			return err
		}
		return xerrors.New(CodeUnknownAction, msg)
	}

	var (
		reply agent.Reply
		calls int
	)
	action.Handle(ctx, turn.State(), func(r agent.Reply) {
		calls++
		reply = r
	})
	if calls != 1 {
		p.logger.ErrorContext(ctx, "动作回调次数异常", slog.String("turn_id", turn.ID), slog.Int("calls", calls))
	}

	if err := p.store.Complete(ctx, turn.ID, reply); err != nil {
		p.logger.ErrorContext(ctx, "记录轮次结果失败", slog.Any("error", err), slog.String("turn_id", turn.ID))
		return err
	}
	p.logger.InfoContext(ctx, "轮次完成",
		slog.String("turn_id", turn.ID),
		slog.String("action", turn.Action),
		slog.Bool("success", reply.Success()),
	)
	return nil
}
