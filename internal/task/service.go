package task

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"HatterAgent/internal/agent"
	xerrors "HatterAgent/internal/errors"
	"HatterAgent/internal/observability/metrics"
	"HatterAgent/pkg/logger"
)

// SubmitRequest 描述一次待执行的动作请求。
type SubmitRequest struct {
	ID        string          `json:"id,omitempty"`
	Action    string          `json:"action"`
	AgentName string          `json:"agent_name,omitempty"`
	Messages  []agent.Message `json:"messages"`
}

// Service 负责轮次的创建与查询。
type Service struct {
	store    Store
	producer Producer
	actions  ActionSet
	recorder *metrics.Recorder
}

// NewService 构造轮次服务。actions 为 nil 时不校验动作名称。
func NewService(store Store, producer Producer, actions ActionSet) *Service {
	return &Service{store: store, producer: producer, actions: actions, recorder: metrics.Default()}
}

// Submit 创建一个新的轮次并推送到队列。携带已存在 ID 的请求直接返回原轮次。
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Turn, error) {
	action := strings.TrimSpace(req.Action)
	if action == "" {
		return nil, xerrors.New(CodeTurnValidation, "action is required")
	}
	if len(req.Messages) == 0 {
		return nil, xerrors.New(CodeTurnValidation, "messages are required")
	}
	if s.actions != nil {
		if _, ok := s.actions.Lookup(action); !ok {
			return nil, xerrors.New(CodeUnknownAction, "unknown action "+action)
		}
	}
	if s.store == nil || s.producer == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "轮次服务未初始化")
	}

	turnID := strings.TrimSpace(req.ID)
	if turnID != "" {
		turn, err := s.store.Get(ctx, turnID)
		if err == nil {
			return turn, nil
		}
		if !stdErrors.Is(err, ErrTurnNotFound) {
			return nil, err
		}
	} else {
		turnID = uuid.NewString()
	}

	turn := &Turn{
		ID:        turnID,
		Action:    action,
		AgentName: strings.TrimSpace(req.AgentName),
		Messages:  cloneMessages(req.Messages),
		Status:    StatusPending,
	}
	if err := s.store.Create(ctx, turn); err != nil {
		if stdErrors.Is(err, ErrTurnConflict) {
			if existing, getErr := s.store.Get(ctx, turnID); getErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}
	if err := s.producer.Publish(ctx, turnID); err != nil {
		logger.L().Error("轮次入队失败", slog.Any("error", err), slog.String("turn_id", turnID))
		wrapped := xerrors.Wrap(CodeTurnPublish, err, "发布轮次到队列失败")
		_ = s.store.MarkFailed(ctx, turnID, CodeTurnPublish, wrapped.Error())
		return nil, wrapped
	}
	s.recorder.TurnQueued(ctx, 1)
	logger.Audit().InfoContext(ctx, "turn queued",
		slog.String("turn_id", turnID),
		slog.String("action", action),
		slog.Int("messages", len(turn.Messages)),
	)
	return turn, nil
}

// Get 返回指定轮次。
func (s *Service) Get(ctx context.Context, id string) (*Turn, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "轮次存储未初始化")
	}
	return s.store.Get(ctx, id)
}

// List 返回符合过滤条件的轮次列表。
func (s *Service) List(ctx context.Context, opts ...ListOption) ([]*Turn, error) {
	if s.store == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "轮次存储未初始化")
	}
	return s.store.List(ctx, buildListOptions(opts))
}

// Stats 返回符合过滤条件的轮次统计。
func (s *Service) Stats(ctx context.Context, opts ...ListOption) (TurnStats, error) {
	if s.store == nil {
		return TurnStats{}, xerrors.New(xerrors.CodeInitializationFailure, "轮次存储未初始化")
	}
	return s.store.Stats(ctx, buildListOptions(opts))
}

// Close 释放资源。
func (s *Service) Close() error {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.producer != nil {
		errs = append(errs, s.producer.Close())
	}
	return stdErrors.Join(errs...)
}

// WaitUntilCompleted 轮询直到轮次结束或 ctx 结束。
func (s *Service) WaitUntilCompleted(ctx context.Context, id string, interval time.Duration) (*Turn, error) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		turn, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if turn.Done() {
			return turn, nil
		}
		select {
		case <-ctx.Done():
			return nil, xerrors.Wrap(xerrors.CodeTimeout, ctx.Err(), "timed out waiting for turn "+id)
		case <-ticker.C:
		}
	}
}

// Run 提交轮次并等待其完成，供需要同步结果的调用方使用。
// ctx 先于轮次结束时不返回错误，而是返回轮次当前的快照（pending 或 running），
// 已提交的动作仍会执行完毕，调用方应通过 Done 判断并按 ID 继续查询。
func (s *Service) Run(ctx context.Context, req SubmitRequest) (*Turn, error) {
	turn, err := s.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	done, err := s.WaitUntilCompleted(ctx, turn.ID, 0)
	if err == nil {
		return done, nil
	}
	if xerrors.CodeOf(err) != xerrors.CodeTimeout {
		return nil, err
	}
	latest, getErr := s.Get(context.WithoutCancel(ctx), turn.ID)
	if getErr != nil {
		return nil, err
	}
	return latest, nil
}
