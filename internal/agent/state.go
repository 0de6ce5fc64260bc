package agent

import (
	"fmt"
	"strings"
)

// Message 是会话中的一条消息。
type Message struct {
	User string `json:"user"`
	Text string `json:"text"`
}

// State 是运行时提供的会话状态快照。
type State struct {
	AgentName      string    `json:"agent_name,omitempty"`
	RecentMessages []Message `json:"recent_messages"`
}

// Reply 是动作结束时回传给运行时的结果。
type Reply struct {
	Text    string         `json:"text"`
	Content map[string]any `json:"content"`
}

// Success 报告回复是否代表成功。
func (r Reply) Success() bool {
	ok, _ := r.Content["success"].(bool)
	return ok
}

// Callback 接收动作的唯一一次回复。
type Callback func(Reply)

// formatMessages 将最近的 limit 条消息渲染为 "user: text" 形式的多行文本。
func formatMessages(messages []Message, limit int) string {
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	var b strings.Builder
	for _, m := range messages {
		user := strings.TrimSpace(m.User)
		if user == "" {
			user = "user"
		}
		fmt.Fprintf(&b, "%s: %s\n", user, strings.TrimSpace(m.Text))
	}
	return strings.TrimRight(b.String(), "\n")
}
