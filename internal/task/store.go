package task

import (
	"context"

	"HatterAgent/internal/agent"
	xerrors "HatterAgent/internal/errors"
)

// Store 抽象了轮次状态的保存接口。
type Store interface {
	Create(ctx context.Context, turn *Turn) error
	Get(ctx context.Context, id string) (*Turn, error)
	Claim(ctx context.Context, id string) (*Turn, error)
	// Complete 记录动作的唯一回复，状态由回复中的 success 决定。
	Complete(ctx context.Context, id string, reply agent.Reply) error
	MarkFailed(ctx context.Context, id string, code xerrors.Code, lastError string) error
	List(ctx context.Context, opts ListOptions) ([]*Turn, error)
	Stats(ctx context.Context, opts ListOptions) (TurnStats, error)
	Close() error
}
