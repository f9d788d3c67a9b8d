package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"scribbly/internal/entity"
)

type fakeUserStore struct {
	count     int
	updatedAt time.Time
	err       error

	resetCount int
	resetAt    time.Time
	increments int
}

func (f *fakeUserStore) UserUsage(_ context.Context, _ uint) (int, time.Time, error) {
	if f.err != nil {
		return 0, time.Time{}, f.err
	}
	return f.count, f.updatedAt, nil
}

func (f *fakeUserStore) ResetUserUsage(_ context.Context, _ uint, count int, now time.Time) error {
	f.resetCount = count
	f.resetAt = now
	f.count = count
	f.updatedAt = now
	return nil
}

func (f *fakeUserStore) IncrementUserUsage(_ context.Context, _ uint, now time.Time) error {
	f.increments++
	f.count++
	f.updatedAt = now
	return nil
}

func testLimits() Limits {
	return Limits{
		GuestLimit:       3,
		GuestClientLimit: 2,
		GuestWindow:      24 * time.Hour,
		FreeDailyLimit:   5,
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestGuestQuotaLifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)
	guests := NewMemoryGuestStore()
	policy := NewPolicy(guests, &fakeUserStore{}, testLimits(), fixedClock(now))

	id := Identity{GuestKey: "guest-1"}

	for i := 0; i < 3; i++ {
		decision := policy.Evaluate(ctx, id)
		if !decision.Allowed {
			t.Fatalf("generation %d: expected allowed, got denied (%s)", i+1, decision.Reason)
		}
		if decision.Remaining != 3-i {
			t.Fatalf("generation %d: expected remaining %d, got %d", i+1, 3-i, decision.Remaining)
		}
		if err := policy.Commit(ctx, id); err != nil {
			t.Fatalf("generation %d: commit failed: %v", i+1, err)
		}
	}

	decision := policy.Evaluate(ctx, id)
	if decision.Allowed {
		t.Fatal("expected fourth generation to be denied")
	}
	if decision.Reason != ReasonGuestLimitReached {
		t.Fatalf("expected reason %q, got %q", ReasonGuestLimitReached, decision.Reason)
	}

	// 被拒绝的请求不应改变计数
	usage, err := guests.Usage(ctx, "guest-1")
	if err != nil {
		t.Fatalf("usage lookup failed: %v", err)
	}
	if usage.Count != 3 {
		t.Fatalf("expected count to stay 3 after denial, got %d", usage.Count)
	}
}

func TestGuestQuotaWindowExpiry(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)
	guests := NewMemoryGuestStore()

	clock := start
	policy := NewPolicy(guests, &fakeUserStore{}, testLimits(), func() time.Time { return clock })

	id := Identity{GuestKey: "guest-1"}
	for i := 0; i < 3; i++ {
		if err := policy.Commit(ctx, id); err != nil {
			t.Fatalf("commit failed: %v", err)
		}
	}
	if d := policy.Evaluate(ctx, id); d.Allowed {
		t.Fatal("expected denial at limit")
	}

	// 窗口刚好过期后应重新放行
	clock = start.Add(24 * time.Hour)
	decision := policy.Evaluate(ctx, id)
	if !decision.Allowed {
		t.Fatalf("expected allowance after window expiry, got denied (%s)", decision.Reason)
	}
	if decision.Remaining != 3 {
		t.Fatalf("expected full remaining after expiry, got %d", decision.Remaining)
	}

	// 过期后的 Commit 重新开窗
	if err := policy.Commit(ctx, id); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	usage, _ := guests.Usage(ctx, "guest-1")
	if usage.Count != 1 {
		t.Fatalf("expected fresh window count 1, got %d", usage.Count)
	}
	if !usage.StartedAt.Equal(clock) {
		t.Fatalf("expected window restart at %v, got %v", clock, usage.StartedAt)
	}
}

func TestFreeUserDailyLimit(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)

	tests := []struct {
		name        string
		count       int
		updatedAt   time.Time
		wantAllowed bool
		wantUsed    int
		wantReason  string
	}{
		{"under limit same day", 4, now.Add(-time.Hour), true, 4, ""},
		{"at limit same day", 5, now.Add(-time.Hour), false, 5, ReasonDailyLimitReached},
		{"over limit same day", 9, now.Add(-time.Hour), false, 9, ReasonDailyLimitReached},
		{"stale count from yesterday", 5, now.Add(-24 * time.Hour), true, 0, ""},
		{"stale count late yesterday", 5, time.Date(2025, 3, 9, 23, 59, 0, 0, time.Local), true, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := &fakeUserStore{count: tt.count, updatedAt: tt.updatedAt}
			policy := NewPolicy(NewMemoryGuestStore(), users, testLimits(), fixedClock(now))

			decision := policy.Evaluate(ctx, Identity{UserID: 7, Plan: entity.PlanFree})
			if decision.Allowed != tt.wantAllowed {
				t.Fatalf("expected allowed=%v, got %v", tt.wantAllowed, decision.Allowed)
			}
			if decision.Used != tt.wantUsed {
				t.Fatalf("expected used=%d, got %d", tt.wantUsed, decision.Used)
			}
			if decision.Reason != tt.wantReason {
				t.Fatalf("expected reason %q, got %q", tt.wantReason, decision.Reason)
			}
		})
	}
}

func TestFreeUserCommit(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)
	id := Identity{UserID: 7, Plan: entity.PlanFree}

	t.Run("same day increments", func(t *testing.T) {
		users := &fakeUserStore{count: 2, updatedAt: now.Add(-time.Hour)}
		policy := NewPolicy(NewMemoryGuestStore(), users, testLimits(), fixedClock(now))
		if err := policy.Commit(ctx, id); err != nil {
			t.Fatalf("commit failed: %v", err)
		}
		if users.increments != 1 {
			t.Fatalf("expected one increment, got %d", users.increments)
		}
	})

	t.Run("new day resets to one", func(t *testing.T) {
		users := &fakeUserStore{count: 5, updatedAt: now.Add(-24 * time.Hour)}
		policy := NewPolicy(NewMemoryGuestStore(), users, testLimits(), fixedClock(now))
		if err := policy.Commit(ctx, id); err != nil {
			t.Fatalf("commit failed: %v", err)
		}
		if users.resetCount != 1 {
			t.Fatalf("expected reset to 1, got %d", users.resetCount)
		}
		if users.increments != 0 {
			t.Fatalf("expected no increment on reset day, got %d", users.increments)
		}
	})
}

func TestPremiumUnlimited(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)
	users := &fakeUserStore{count: 1000, updatedAt: now}
	policy := NewPolicy(NewMemoryGuestStore(), users, testLimits(), fixedClock(now))

	id := Identity{UserID: 9, Plan: entity.PlanPremium}
	decision := policy.Evaluate(ctx, id)
	if !decision.Allowed {
		t.Fatalf("expected premium to be allowed, got denied (%s)", decision.Reason)
	}
	if decision.Remaining != UnlimitedRemaining {
		t.Fatalf("expected unlimited remaining, got %d", decision.Remaining)
	}

	// 付费账号不记账
	if err := policy.Commit(ctx, id); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if users.increments != 0 || users.resetCount != 0 {
		t.Fatal("expected premium commit to leave counters untouched")
	}
}

func TestQuotaFailsOpenOnStoreErrors(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.Local)
	users := &fakeUserStore{err: errors.New("db down")}
	policy := NewPolicy(NewMemoryGuestStore(), users, testLimits(), fixedClock(now))

	decision := policy.Evaluate(ctx, Identity{UserID: 7, Plan: entity.PlanFree})
	if !decision.Allowed {
		t.Fatal("expected fail-open allowance when usage store errors")
	}
}
