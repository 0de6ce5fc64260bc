package task

import (
	"context"
	"sort"
	"sync"
	"time"

	"HatterAgent/internal/agent"
	xerrors "HatterAgent/internal/errors"
)

// MemoryStore 以内存方式保存轮次状态。
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[string]*Turn
	now   func() time.Time
}

// NewMemoryStore 创建 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{turns: make(map[string]*Turn), now: time.Now}
}

// Create 实现 Store 接口。
func (m *MemoryStore) Create(_ context.Context, turn *Turn) error {
	if turn == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "turn 不能为空")
	}
	if turn.ID == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "轮次 ID 不能为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.turns[turn.ID]; ok {
		return ErrTurnConflict
	}
	now := m.now().Unix()
	if turn.CreatedAt == 0 {
		turn.CreatedAt = now
	}
	turn.UpdatedAt = now
	if turn.Status == "" {
		turn.Status = StatusPending
	}
	m.turns[turn.ID] = cloneTurn(turn)
	return nil
}

// Get 返回轮次。
func (m *MemoryStore) Get(_ context.Context, id string) (*Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	turn, ok := m.turns[id]
	if !ok {
		return nil, ErrTurnNotFound
	}
	return cloneTurn(turn), nil
}

// Claim 将待处理的轮次更新为运行中。
func (m *MemoryStore) Claim(_ context.Context, id string) (*Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	turn, ok := m.turns[id]
	if !ok {
		return nil, ErrTurnNotFound
	}
	switch turn.Status {
	case StatusSucceeded, StatusFailed:
		return cloneTurn(turn), ErrTurnCompleted
	case StatusRunning:
		return cloneTurn(turn), ErrTurnConflict
	}
	turn.Status = StatusRunning
	turn.UpdatedAt = m.now().Unix()
	return cloneTurn(turn), nil
}

// Complete 记录动作回复。
func (m *MemoryStore) Complete(_ context.Context, id string, reply agent.Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	turn, ok := m.turns[id]
	if !ok {
		return ErrTurnNotFound
	}
	turn.Reply = cloneReply(&reply)
	turn.ErrorCode = ""
	turn.LastError = ""
	if reply.Success() {
		turn.Status = StatusSucceeded
	} else {
		turn.Status = StatusFailed
		if msg, ok := reply.Content["error"].(string); ok {
			turn.LastError = msg
		}
	}
	turn.UpdatedAt = m.now().Unix()
	return nil
}

// MarkFailed 标记轮次在进入流水线之前失败。
func (m *MemoryStore) MarkFailed(_ context.Context, id string, code xerrors.Code, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	turn, ok := m.turns[id]
	if !ok {
		return ErrTurnNotFound
	}
	turn.Status = StatusFailed
	turn.ErrorCode = string(code)
	turn.LastError = lastError
	turn.UpdatedAt = m.now().Unix()
	return nil
}

// List 返回符合条件的轮次。
func (m *MemoryStore) List(_ context.Context, opts ListOptions) ([]*Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	results := make([]*Turn, 0, len(m.turns))
	for _, turn := range m.turns {
		if !matchesListFilters(turn, opts) {
			continue
		}
		results = append(results, cloneTurn(turn))
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.UpdatedAt == b.UpdatedAt {
			if a.CreatedAt == b.CreatedAt {
				return a.ID < b.ID
			}
			if opts.Order == SortByUpdatedAsc {
				return a.CreatedAt < b.CreatedAt
			}
			return a.CreatedAt > b.CreatedAt
		}
		if opts.Order == SortByUpdatedAsc {
			return a.UpdatedAt < b.UpdatedAt
		}
		return a.UpdatedAt > b.UpdatedAt
	})

	if opts.Offset >= len(results) {
		return []*Turn{}, nil
	}
	results = results[opts.Offset:]
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Stats 统计符合条件的轮次数量与更新时间范围。
func (m *MemoryStore) Stats(_ context.Context, opts ListOptions) (TurnStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	opts.applyDefaults()

	stats := TurnStats{}
	for _, turn := range m.turns {
		if !matchesListFilters(turn, opts) {
			continue
		}
		stats.Total++
		switch turn.Status {
		case StatusPending:
			stats.Pending++
		case StatusRunning:
			stats.Running++
		case StatusSucceeded:
			stats.Succeeded++
		case StatusFailed:
			stats.Failed++
		}
		if turn.UpdatedAt > stats.NewestUpdatedAt {
			stats.NewestUpdatedAt = turn.UpdatedAt
		}
		if stats.OldestUpdatedAt == 0 || (turn.UpdatedAt != 0 && turn.UpdatedAt < stats.OldestUpdatedAt) {
			stats.OldestUpdatedAt = turn.UpdatedAt
		}
	}
	return stats, nil
}

// Close 对内存存储无需操作。
func (m *MemoryStore) Close() error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
