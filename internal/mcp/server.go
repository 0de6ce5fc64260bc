// Package mcp exposes the hats actions as Model Context Protocol tools. Every
// tool call is queued as a turn, so tool calls share the serialised pipeline
// with the REST API.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"HatterAgent/internal/agent"
	xerrors "HatterAgent/internal/errors"
	"HatterAgent/internal/task"
	"HatterAgent/pkg/logger"

	mcpproto "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// TurnRunner submits a turn and waits for its reply.
type TurnRunner interface {
	Run(ctx context.Context, req task.SubmitRequest) (*task.Turn, error)
}

// Server wraps an mcp-go server with one tool per action.
type Server struct {
	mcpServer *mcpserver.MCPServer
	runner    TurnRunner
	timeout   time.Duration
	logger    *slog.Logger
}

// ToolName maps an action name such as MINT_HAT to its tool name mint_hat.
func ToolName(action string) string {
	return strings.ToLower(action)
}

// NewServer registers a tool for every action definition.
func NewServer(name, version string, runner TurnRunner, defs []agent.Definition, timeout time.Duration) *Server {
	s := &Server{
		mcpServer: mcpserver.NewMCPServer(name, version, mcpserver.WithToolCapabilities(false)),
		runner:    runner,
		timeout:   timeout,
		logger:    logger.Named("mcp"),
	}
	for _, def := range defs {
		s.mcpServer.AddTool(newTool(def), s.handler(def.Name))
	}
	return s
}

func newTool(def agent.Definition) mcpproto.Tool {
	description := def.Description
	if len(def.Similes) > 0 {
		description += ". Also known as " + strings.Join(def.Similes, ", ")
	}
	if len(def.Examples) > 0 {
		description += ". Example: " + def.Examples[0].User
	}
	return mcpproto.NewTool(ToolName(def.Name),
		mcpproto.WithDescription(description),
		mcpproto.WithString("conversation",
			mcpproto.Required(),
			mcpproto.Description("Recent conversation, one message per line, optionally prefixed with 'name: '")),
		mcpproto.WithString("agent_name",
			mcpproto.Description("Name the agent uses for itself in the prompt")),
	)
}

func (s *Server) handler(action string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcpproto.CallToolRequest) (*mcpproto.CallToolResult, error) {
		args := req.GetArguments()
		conversation, _ := args["conversation"].(string)
		messages := ParseConversation(conversation)
		if len(messages) == 0 {
			return mcpproto.NewToolResultError("conversation is required"), nil
		}
		agentName, _ := args["agent_name"].(string)

		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		turn, err := s.runner.Run(ctx, task.SubmitRequest{
			Action:    action,
			AgentName: agentName,
			Messages:  messages,
		})
		if err != nil {
			s.logger.WarnContext(ctx, "tool call failed", "action", action, "error", err)
			return mcpproto.NewToolResultError(xerrors.UserMessage(err)), nil
		}
		return toolResult(turn)
	}
}

func toolResult(turn *task.Turn) (*mcpproto.CallToolResult, error) {
	if !turn.Done() {
		return inFlightResult(turn)
	}
	if turn.Reply == nil {
		msg := turn.LastError
		if msg == "" {
			msg = "turn finished without a reply"
		}
		return mcpproto.NewToolResultError(msg), nil
	}
	content, err := json.Marshal(turn.Reply.Content)
	if err != nil {
		return nil, err
	}
	return &mcpproto.CallToolResult{
		Content: []mcpproto.Content{
			mcpproto.NewTextContent(turn.Reply.Text),
			mcpproto.NewTextContent(string(content)),
		},
		IsError: !turn.Reply.Success(),
	}, nil
}

// inFlightResult reports a turn that outlived the wait. The action keeps
// running and must not be resubmitted, so the result is not an error.
func inFlightResult(turn *task.Turn) (*mcpproto.CallToolResult, error) {
	content, err := json.Marshal(map[string]any{
		"turn_id": turn.ID,
		"status":  turn.Status,
	})
	if err != nil {
		return nil, err
	}
	text := fmt.Sprintf("Turn %s is still %s. The action has not been cancelled; check GET /api/v1/turns/%s for the outcome before retrying.",
		turn.ID, turn.Status, turn.ID)
	return &mcpproto.CallToolResult{
		Content: []mcpproto.Content{
			mcpproto.NewTextContent(text),
			mcpproto.NewTextContent(string(content)),
		},
	}, nil
}

// ParseConversation splits a transcript into messages. Lines of the form
// "name: text" keep their speaker; other lines are attributed to "user".
func ParseConversation(text string) []agent.Message {
	var messages []agent.Message
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		user, body := "user", line
		if idx := strings.Index(line, ": "); idx > 0 && !strings.ContainsAny(line[:idx], " \t") {
			user, body = line[:idx], strings.TrimSpace(line[idx+2:])
		}
		messages = append(messages, agent.Message{User: user, Text: body})
	}
	return messages
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// HTTPHandler returns the streamable HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	return mcpserver.NewStreamableHTTPServer(s.mcpServer)
}

// ServeStdio serves the protocol over the given streams until ctx ends.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	err := mcpserver.NewStdioServer(s.mcpServer).Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
