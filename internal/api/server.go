package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"HatterAgent/internal/agent"
	"HatterAgent/internal/auth"
	xerrors "HatterAgent/internal/errors"
	"HatterAgent/internal/observability/metrics"
	"HatterAgent/internal/task"
	"HatterAgent/internal/web3/chains"
	"HatterAgent/internal/web3/ethereum"
	"HatterAgent/pkg/logger"
)

// TurnService 是接口层使用的轮次服务能力。
type TurnService interface {
	Submit(ctx context.Context, req task.SubmitRequest) (*task.Turn, error)
	Run(ctx context.Context, req task.SubmitRequest) (*task.Turn, error)
	Get(ctx context.Context, id string) (*task.Turn, error)
	List(ctx context.Context, opts ...task.ListOption) ([]*task.Turn, error)
	Stats(ctx context.Context, opts ...task.ListOption) (task.TurnStats, error)
}

// ChainInfo 提供已配置链的信息，wallet.Provider 实现了该接口。
type ChainInfo interface {
	Descriptors() []chains.Chain
	CurrentChain() string
	Status(ctx context.Context, name string) (ethereum.Snapshot, error)
}

// Server 负责暴露 REST 接口，供外部提交动作请求。
type Server struct {
	addr        string
	turns       TurnService
	actions     []agent.Action
	chains      ChainInfo
	mcpPath     string
	mcpHandler  http.Handler
	recorder    *metrics.Recorder
	guard       *auth.Guard
	waitTimeout time.Duration
	logger      *slog.Logger
}

// Option 定义可选配置。
type Option func(*Server)

// WithActions 注册动作目录。
func WithActions(actions []agent.Action) Option {
	return func(s *Server) {
		s.actions = actions
	}
}

// WithChains 提供链信息。
func WithChains(info ChainInfo) Option {
	return func(s *Server) {
		s.chains = info
	}
}

// WithMCP 将 MCP HTTP 传输挂载到指定路径。
func WithMCP(path string, handler http.Handler) Option {
	return func(s *Server) {
		if path != "" && handler != nil {
			s.mcpPath = path
			s.mcpHandler = handler
		}
	}
}

// WithRecorder 指定指标记录器。
func WithRecorder(r *metrics.Recorder) Option {
	return func(s *Server) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithAuth 为提交轮次与 MCP 接口启用令牌认证。
func WithAuth(guard *auth.Guard) Option {
	return func(s *Server) {
		s.guard = guard
	}
}

// WithWaitTimeout 设置同步提交时的最长等待时间。
func WithWaitTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.waitTimeout = d
		}
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, turns TurnService, opts ...Option) *Server {
	s := &Server{
		addr:        addr,
		turns:       turns,
		recorder:    metrics.Default(),
		waitTimeout: 2 * time.Minute,
		logger:      logger.Named("api"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回完整的路由。
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.recorder.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.With(s.guard.Middleware).Post("/turns", s.handleCreateTurn)
		r.Get("/turns", s.handleListTurns)
		r.Get("/turns/stats", s.handleTurnStats)
		r.Get("/turns/{id}", s.handleTurnDetail)
		r.Get("/actions", s.handleActions)
		r.Get("/chains", s.handleChains)
	})

	if s.mcpHandler != nil {
		r.Handle(s.mcpPath, s.guard.Middleware(s.mcpHandler))
	}
	return r
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleCreateTurn(w http.ResponseWriter, r *http.Request) {
	// 解析请求体。
	var req task.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败"))
		return
	}

	// wait=true 时同步等待动作回复。
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		ctx, cancel := context.WithTimeout(r.Context(), s.waitTimeout)
		defer cancel()
		turn, err := s.turns.Run(ctx, req)
		if err != nil {
			writeError(w, err)
			return
		}
		// 等待期限内未结束的轮次仍在执行，按异步提交返回。
		if !turn.Done() {
			writeJSON(w, http.StatusAccepted, turn)
			return
		}
		writeJSON(w, http.StatusOK, turn)
		return
	}

	turn, err := s.turns.Submit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, turn)
}

func (s *Server) handleTurnDetail(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "缺少轮次 ID"))
		return
	}
	turn, err := s.turns.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

func (s *Server) handleListTurns(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}
	turns, err := s.turns.List(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

func (s *Server) handleTurnStats(w http.ResponseWriter, r *http.Request) {
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.turns.Stats(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type actionView struct {
	agent.Definition
	Available bool `json:"available"`
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	views := make([]actionView, 0, len(s.actions))
	for _, action := range s.actions {
		views = append(views, actionView{Definition: action.Definition(), Available: action.Validate(r.Context())})
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": views})
}

type chainView struct {
	Name    string             `json:"name"`
	ID      uint64             `json:"id"`
	RPCURL  string             `json:"rpc_url"`
	Current bool               `json:"current"`
	Status  *ethereum.Snapshot `json:"status,omitempty"`
	Error   string             `json:"error,omitempty"`
}

func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	if s.chains == nil {
		writeError(w, xerrors.New(xerrors.CodeInitializationFailure, "钱包未初始化"))
		return
	}
	withStatus, _ := strconv.ParseBool(r.URL.Query().Get("status"))
	current := s.chains.CurrentChain()

	views := make([]chainView, 0)
	for _, c := range s.chains.Descriptors() {
		view := chainView{Name: c.Name, ID: c.ID, RPCURL: c.RPCURL, Current: c.Name == current}
		if withStatus {
			snap, err := s.chains.Status(r.Context(), c.Name)
			if err != nil {
				view.Error = xerrors.UserMessage(err)
			} else {
				view.Status = &snap
			}
		}
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, map[string]any{"current": current, "chains": views})
}

func listOptions(r *http.Request) ([]task.ListOption, error) {
	q := r.URL.Query()
	var opts []task.ListOption
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "limit 必须为正整数")
		}
		opts = append(opts, task.WithLimit(limit))
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "offset 必须为非负整数")
		}
		opts = append(opts, task.WithOffset(offset))
	}
	if raw := q.Get("status"); raw != "" {
		var statuses []task.Status
		for _, part := range strings.Split(raw, ",") {
			status := task.Status(strings.TrimSpace(part))
			if !task.IsValidStatus(status) {
				return nil, xerrors.New(xerrors.CodeInvalidArgument, "未知的状态: "+string(status))
			}
			statuses = append(statuses, status)
		}
		opts = append(opts, task.WithStatuses(statuses...))
	}
	if action := q.Get("action"); action != "" {
		opts = append(opts, task.WithAction(action))
	}
	if q.Get("order") == "asc" {
		opts = append(opts, task.WithSortOrder(task.SortByUpdatedAsc))
	}
	return opts, nil
}

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func statusFor(code xerrors.Code) int {
	switch code {
	case xerrors.CodeInvalidArgument, task.CodeTurnValidation, task.CodeUnknownAction:
		return http.StatusBadRequest
	case xerrors.CodeNotFound, task.CodeTurnNotFound:
		return http.StatusNotFound
	case xerrors.CodeConflict, task.CodeTurnConflict:
		return http.StatusConflict
	case xerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case xerrors.CodeInitializationFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := xerrors.CodeOf(err)
	body := errorBody{Code: string(code), Message: xerrors.UserMessage(err)}
	if e, ok := xerrors.From(err); ok {
		body.Metadata = e.Metadata()
	}
	writeJSON(w, statusFor(code), map[string]any{"error": body})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
