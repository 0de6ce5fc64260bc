package logger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestInitWritesAuditTrail(t *testing.T) {
	dir := t.TempDir()
	appLog := filepath.Join(dir, "app.log")
	auditLog := filepath.Join(dir, "audit", "audit.log")

	err := Init(Config{
		Level:       "debug",
		Format:      "json",
		OutputPaths: []string{appLog},
		Audit:       AuditConfig{Enabled: true, Path: auditLog},
	})
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	t.Cleanup(func() { _ = Init(Config{OutputPaths: []string{"stderr"}}) })

	Named("wallet").Debug("dial", "chain", "sepolia")
	Audit().Info("transaction submitted", "hash", "0xabc")
	if err := Sync(); err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}

	app, err := os.ReadFile(appLog)
	if err != nil {
		t.Fatalf("read app log: %v", err)
	}
	if !strings.Contains(string(app), `"component":"wallet"`) {
		t.Fatalf("expected component attribute, got %s", app)
	}

	audit, err := os.ReadFile(auditLog)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(audit))), &entry); err != nil {
		t.Fatalf("decode audit entry: %v", err)
	}
	if entry["hash"] != "0xabc" || entry["stream"] != "audit" {
		t.Fatalf("unexpected audit entry: %v", entry)
	}
}

func TestAuditRequiresPath(t *testing.T) {
	if err := Init(Config{Audit: AuditConfig{Enabled: true}}); err == nil {
		t.Fatal("expected error for empty audit path")
	}
}

func TestTraceHandlerAddsSpanIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.log")
	if err := Init(Config{OutputPaths: []string{path}}); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	t.Cleanup(func() { _ = Init(Config{OutputPaths: []string{"stderr"}}) })

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	L().InfoContext(ctx, "traced")
	if err := Sync(); err != nil {
		t.Fatalf("Sync returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), sc.TraceID().String()) {
		t.Fatalf("expected trace id in %s", data)
	}
	if !strings.Contains(string(data), sc.SpanID().String()) {
		t.Fatalf("expected span id in %s", data)
	}
}
