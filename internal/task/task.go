package task

import (
	"HatterAgent/internal/agent"
	xerrors "HatterAgent/internal/errors"
)

// Status 表示对话轮次在生命周期中的状态。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Turn 是一次排队执行的动作请求：指定动作名与当时的会话内容。
type Turn struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	AgentName string          `json:"agent_name,omitempty"`
	Messages  []agent.Message `json:"messages"`
	Status    Status          `json:"status"`
	Reply     *agent.Reply    `json:"reply,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt int64           `json:"created_at"`
	UpdatedAt int64           `json:"updated_at"`
}

// Done 报告轮次是否已结束。
func (t *Turn) Done() bool {
	return t.Status == StatusSucceeded || t.Status == StatusFailed
}

// State 将轮次转换为动作流水线的会话状态。
func (t *Turn) State() *agent.State {
	return &agent.State{AgentName: t.AgentName, RecentMessages: cloneMessages(t.Messages)}
}

const (
	CodeTurnNotFound   xerrors.Code = "TURN_NOT_FOUND"
	CodeTurnConflict   xerrors.Code = "TURN_CONFLICT"
	CodeTurnCompleted  xerrors.Code = "TURN_COMPLETED"
	CodeTurnValidation xerrors.Code = "TURN_VALIDATION_FAILED"
	CodeTurnPublish    xerrors.Code = "TURN_PUBLISH_FAILED"
	CodeUnknownAction  xerrors.Code = "UNKNOWN_ACTION"
)

var (
	// ErrTurnNotFound 表示指定的轮次不存在。
	ErrTurnNotFound = xerrors.New(CodeTurnNotFound, "turn not found")
	// ErrTurnConflict 表示轮次在当前状态下无法进行所请求的操作。
	ErrTurnConflict = xerrors.New(CodeTurnConflict, "turn conflict")
	// ErrTurnCompleted 表示轮次已经结束。
	ErrTurnCompleted = xerrors.New(CodeTurnCompleted, "turn already completed")
)

func init() {
	xerrors.Register(CodeTurnNotFound, xerrors.Attributes{
		Message:    "turn not found",
		UserFacing: true,
		Severity:   xerrors.SeverityInfo,
	})
	xerrors.Register(CodeTurnConflict, xerrors.Attributes{
		Message:  "turn conflict",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeTurnCompleted, xerrors.Attributes{
		Message:  "turn already completed",
		Severity: xerrors.SeverityInfo,
	})
	xerrors.Register(CodeTurnValidation, xerrors.Attributes{
		Message:    "turn validation failed",
		UserFacing: true,
		Severity:   xerrors.SeverityInfo,
	})
	xerrors.Register(CodeTurnPublish, xerrors.Attributes{
		Message:  "failed to publish turn",
		Severity: xerrors.SeverityCritical,
	})
	xerrors.Register(CodeUnknownAction, xerrors.Attributes{
		Message:    "unknown action",
		UserFacing: true,
		Severity:   xerrors.SeverityInfo,
	})
}

// IsValidStatus 检查给定的状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusRunning, StatusSucceeded, StatusFailed:
		return true
	default:
		return false
	}
}

func cloneMessages(messages []agent.Message) []agent.Message {
	if messages == nil {
		return nil
	}
	out := make([]agent.Message, len(messages))
	copy(out, messages)
	return out
}

func cloneReply(reply *agent.Reply) *agent.Reply {
	if reply == nil {
		return nil
	}
	clone := agent.Reply{Text: reply.Text}
	if reply.Content != nil {
		clone.Content = make(map[string]any, len(reply.Content))
		for k, v := range reply.Content {
			clone.Content[k] = v
		}
	}
	return &clone
}

func cloneTurn(turn *Turn) *Turn {
	clone := *turn
	clone.Messages = cloneMessages(turn.Messages)
	clone.Reply = cloneReply(turn.Reply)
	return &clone
}
