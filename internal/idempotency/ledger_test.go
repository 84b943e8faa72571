package idempotency

import (
	"context"
	"fmt"
	"testing"
)

func TestMemoryLedgerMarkAndCheck(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger(10)

	if ledger.HasProcessed(ctx, "cs_test_1") {
		t.Fatal("unmarked session reported as processed")
	}
	ledger.MarkProcessed(ctx, "cs_test_1")
	if !ledger.HasProcessed(ctx, "cs_test_1") {
		t.Fatal("marked session not reported as processed")
	}
}

func TestMemoryLedgerIgnoresEmptySession(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger(10)

	ledger.MarkProcessed(ctx, "  ")
	if ledger.HasProcessed(ctx, "") {
		t.Fatal("empty session id should never be processed")
	}
}

func TestMemoryLedgerEvictsOldestHalf(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger(10)

	for i := 0; i < 11; i++ {
		ledger.MarkProcessed(ctx, fmt.Sprintf("cs_test_%d", i))
	}

	// the oldest half is gone, the newest entries survive
	if ledger.HasProcessed(ctx, "cs_test_0") {
		t.Fatal("oldest session should have been evicted")
	}
	if !ledger.HasProcessed(ctx, "cs_test_10") {
		t.Fatal("newest session should survive eviction")
	}
	if !ledger.HasProcessed(ctx, "cs_test_6") {
		t.Fatal("recent session should survive eviction")
	}
}

func TestMemoryLedgerMarkIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger(4)

	for i := 0; i < 10; i++ {
		ledger.MarkProcessed(ctx, "cs_test_same")
	}
	if !ledger.HasProcessed(ctx, "cs_test_same") {
		t.Fatal("repeated marks must not evict the session itself")
	}
}
