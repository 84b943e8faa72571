package logger_test

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	obscontext "github.com/emberhollow/storefront/internal/observability/context"
	"github.com/emberhollow/storefront/internal/observability/logger"
)

func TestWithContextCarriesSessionID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithSessionID(context.Background(), "cs_test_123")
	ctx = obscontext.WithRequestID(ctx, "req_abc")

	logger.WithContext(ctx, base).Info("processing session")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["checkout_session_id"] != "cs_test_123" {
		t.Fatalf("expected checkout_session_id field, got %+v", fields)
	}
	if fields["request_id"] != "req_abc" {
		t.Fatalf("expected request_id field, got %+v", fields)
	}
}

func TestWithContextWithoutFieldsReturnsBase(t *testing.T) {
	base := zap.NewNop()

	if logger.WithContext(context.Background(), base) != base {
		t.Fatal("a context without correlation fields must not wrap the logger")
	}
}

func TestWithContextIgnoresEmptySessionID(t *testing.T) {
	base := zap.NewNop()
	ctx := obscontext.WithSessionID(context.Background(), "")

	if logger.WithContext(ctx, base) != base {
		t.Fatal("an empty session id must not be attached")
	}
}
