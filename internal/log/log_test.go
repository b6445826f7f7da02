package log

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"housefin/internal/core"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{core.Invalid("amount", core.ErrNegativeAmount), ErrorTypeValidation},
		{fmt.Errorf("verify: %w", core.ErrUnauthenticated), ErrorTypeAuth},
		{core.ErrNotFound, ErrorTypeNotFound},
		{fmt.Errorf("%w: dup", core.ErrConflict), ErrorTypeConflict},
		{fmt.Errorf("%w: %w", core.ErrConnection, context.DeadlineExceeded), ErrorTypeTimeout},
		{fmt.Errorf("%w: refused", core.ErrConnection), ErrorTypeDatabase},
		{errors.New("boom"), ErrorTypeInternal},
	}
	for _, tt := range tests {
		if got := ErrorType(tt.err); got != tt.want {
			t.Errorf("ErrorType(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentAuth, Output: &buf})
	l.Info("token issued", FieldUserID, "u-1")

	out := buf.String()
	if !strings.Contains(out, "component=auth") || !strings.Contains(out, "user_id=u-1") {
		t.Fatalf("unexpected log line: %s", out)
	}

	buf.Reset()
	l.WithComponent(ComponentHTTP).Warn("slow")
	if !strings.Contains(buf.String(), "component=http") {
		t.Fatalf("component not switched: %s", buf.String())
	}
}

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Component: ComponentApp, JSON: true, Output: &buf})
	l.Debug("hidden")
	l.Error("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record should be filtered: %s", out)
	}
	if !strings.Contains(out, `"msg":"visible"`) {
		t.Errorf("expected JSON record: %s", out)
	}
}

func TestFromContextFallsBack(t *testing.T) {
	l := FromContext(context.Background())
	if l == nil || l.Component() != "unknown" {
		t.Fatalf("expected fallback logger, got %+v", l)
	}

	stored := New(Config{Component: ComponentAuth, Output: &bytes.Buffer{}})
	if got := FromContext(NewContext(context.Background(), stored)); got != stored {
		t.Fatalf("FromContext returned %p, want %p", got, stored)
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelDebug, Component: ComponentHTTP, Output: &buf}))

	req := httptest.NewRequest("GET", "/dashboard?month=3", nil)
	sl.LogHTTPEnd(context.Background(), req, 503, 12, "10.0.0.1")
	if !strings.Contains(buf.String(), "level=ERROR") || !strings.Contains(buf.String(), "status_code=503") {
		t.Errorf("unexpected http end log: %s", buf.String())
	}

	buf.Reset()
	sl.LogContributionCreated(context.Background(), core.Contribution{
		ID: "c-1", HomeID: "h-1", UserID: "u-1", Amount: decimal.RequireFromString("42.5"), Description: "rice",
	})
	if !strings.Contains(buf.String(), "amount=42.50") || !strings.Contains(buf.String(), "component=contribution") {
		t.Errorf("unexpected contribution log: %s", buf.String())
	}

	buf.Reset()
	sl.LogError(context.Background(), "store failed", core.ErrNotFound, ComponentStorage, OpRead, nil)
	if !strings.Contains(buf.String(), "error_type=not_found_error") {
		t.Errorf("unexpected error log: %s", buf.String())
	}
}
