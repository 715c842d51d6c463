package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestReplaceAndRestore(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := Replace(zap.New(core))

	Info("hello", zap.String("k", "v"))
	Named("bridge").Warn("protocol violation")

	restore()

	if logs.Len() != 2 {
		t.Fatalf("got %d entries, want 2", logs.Len())
	}
	entries := logs.All()
	if entries[0].Message != "hello" {
		t.Errorf("first message = %q, want hello", entries[0].Message)
	}
	if entries[1].LoggerName != "bridge" {
		t.Errorf("logger name = %q, want bridge", entries[1].LoggerName)
	}
}

func TestWithSession(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	defer Replace(zap.New(core))()

	ctx := WithSession(context.Background(), "abc")
	if got := SessionID(ctx); got != "abc" {
		t.Errorf("SessionID = %q, want abc", got)
	}

	WithContext(ctx).Info("scoped")
	if logs.Len() != 1 {
		t.Fatalf("got %d entries, want 1", logs.Len())
	}
	if v := logs.All()[0].ContextMap()["session"]; v != "abc" {
		t.Errorf("session field = %v, want abc", v)
	}
}

func TestMiddlewareCapturesStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	defer Replace(zap.New(core))()

	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
	fields := logs.All()[0].ContextMap()
	if fields["status"] != int64(http.StatusTeapot) {
		t.Errorf("logged status = %v, want %d", fields["status"], http.StatusTeapot)
	}
	if fields["size"] != int64(5) {
		t.Errorf("logged size = %v, want 5", fields["size"])
	}
}
