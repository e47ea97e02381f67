package ledger

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestLedger(t *testing.T, cfg Config) (*miniredis.Miniredis, *Ledger) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg.Addr = mr.Addr()
	l, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return mr, l
}

func TestAccrueAndBalance(t *testing.T) {
	_, l := newTestLedger(t, Config{CostPer1K: 0.003})
	ctx := context.Background()

	locked, err := l.Accrue(ctx, "alice", 2000)
	if err != nil {
		t.Fatalf("Accrue: %v", err)
	}
	if locked {
		t.Error("2000 tokens should not cross the default threshold")
	}

	balance, err := l.Balance(ctx, "alice")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if math.Abs(balance-0.006) > 1e-9 {
		t.Errorf("balance = %v, want 0.006", balance)
	}
}

func TestBalanceUnknownParticipant(t *testing.T) {
	_, l := newTestLedger(t, Config{})

	balance, err := l.Balance(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 0 {
		t.Errorf("balance = %v, want 0", balance)
	}
}

func TestAccrueCrossingThresholdLocks(t *testing.T) {
	_, l := newTestLedger(t, Config{CostPer1K: 1.0, Threshold: 0.05})
	ctx := context.Background()

	locked, err := l.Accrue(ctx, "alice", 100)
	if err != nil {
		t.Fatalf("Accrue: %v", err)
	}
	if !locked {
		t.Fatal("accrual past the threshold should lock")
	}

	isLocked, err := l.Locked(ctx, "alice")
	if err != nil {
		t.Fatalf("Locked: %v", err)
	}
	if !isLocked {
		t.Error("participant should be locked after crossing the threshold")
	}
}

func TestLockExpires(t *testing.T) {
	mr, l := newTestLedger(t, Config{LockTTL: time.Minute})
	ctx := context.Background()

	if err := l.Lock(ctx, "alice"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	locked, err := l.Locked(ctx, "alice")
	if err != nil {
		t.Fatalf("Locked: %v", err)
	}
	if locked {
		t.Error("lock should expire after its TTL")
	}
}

func TestUnlock(t *testing.T) {
	_, l := newTestLedger(t, Config{})
	ctx := context.Background()

	if err := l.Lock(ctx, "alice"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := l.Unlock(ctx, "alice"); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	locked, err := l.Locked(ctx, "alice")
	if err != nil {
		t.Fatalf("Locked: %v", err)
	}
	if locked {
		t.Error("participant should be unlocked")
	}
}

func TestCreditUnlocksBelowThreshold(t *testing.T) {
	_, l := newTestLedger(t, Config{CostPer1K: 1.0, Threshold: 0.05})
	ctx := context.Background()

	if _, err := l.Accrue(ctx, "alice", 100); err != nil {
		t.Fatalf("Accrue: %v", err)
	}

	balance, err := l.Credit(ctx, "alice", 0.08)
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if math.Abs(balance-0.02) > 1e-9 {
		t.Errorf("balance after credit = %v, want 0.02", balance)
	}
	locked, err := l.Locked(ctx, "alice")
	if err != nil {
		t.Fatalf("Locked: %v", err)
	}
	if locked {
		t.Error("credit below the threshold should unlock")
	}
}
