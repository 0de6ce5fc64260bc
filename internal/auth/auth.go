package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"HatterAgent/pkg/logger"
)

var (
	// ErrMissingToken 表示请求未携带 Bearer 令牌。
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken 表示令牌不在允许列表中。
	ErrInvalidToken = errors.New("invalid token")
)

// Subject 是通过认证的调用方。
type Subject struct {
	Name string
}

// Guard 使用静态令牌保护会触发链上交易的接口。未配置令牌时放行所有请求。
type Guard struct {
	tokens map[[sha256.Size]byte]string
	audit  *slog.Logger
}

// NewGuard 根据 name -> token 映射创建守卫。
func NewGuard(tokens map[string]string) *Guard {
	g := &Guard{tokens: make(map[[sha256.Size]byte]string, len(tokens))}
	names := make([]string, 0, len(tokens))
	for name := range tokens {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		token := strings.TrimSpace(tokens[name])
		if token == "" {
			continue
		}
		g.tokens[sha256.Sum256([]byte(token))] = name
	}
	return g
}

// Enabled 报告是否配置了至少一个令牌。
func (g *Guard) Enabled() bool {
	return g != nil && len(g.tokens) > 0
}

// Authenticate 校验 Authorization 头部。
func (g *Guard) Authenticate(header string) (*Subject, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	for candidate, name := range g.tokens {
		if subtle.ConstantTimeCompare(candidate[:], sum[:]) == 1 {
			return &Subject{Name: name}, nil
		}
	}
	return nil, ErrInvalidToken
}

func (g *Guard) auditLogger() *slog.Logger {
	if g.audit != nil {
		return g.audit
	}
	return logger.Audit()
}

type subjectKey struct{}

// WithSubject 将调用方写入上下文。
func WithSubject(ctx context.Context, subject *Subject) context.Context {
	if subject == nil {
		return ctx
	}
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext 从上下文中取出调用方。
func SubjectFromContext(ctx context.Context) *Subject {
	if ctx == nil {
		return nil
	}
	subject, _ := ctx.Value(subjectKey{}).(*Subject)
	return subject
}
