package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"weekly-rewards-api/internal/calendar"
	"weekly-rewards-api/internal/events"
	"weekly-rewards-api/internal/features"
	"weekly-rewards-api/internal/ledger"
	"weekly-rewards-api/internal/validation"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func setupTestService(t *testing.T, now time.Time) (*Service, *testClock) {
	t.Helper()
	clock := &testClock{now: now}
	l := ledger.New(calendar.New(time.UTC), ledger.NewMemoryStore())
	return NewService(l, Options{Now: clock.Now}), clock
}

func TestListRewards_Scenario(t *testing.T) {
	svc, _ := setupTestService(t, time.Date(2020, 3, 19, 12, 0, 0, 0, time.UTC))

	rewards, err := svc.ListRewards(context.Background(), "1", "2020-03-19T12:00:00Z")
	if err != nil {
		t.Fatalf("Failed to list rewards: %v", err)
	}

	expected := []struct{ available, expires string }{
		{"2020-03-15T00:00:00Z", "2020-03-16T00:00:00Z"},
		{"2020-03-16T00:00:00Z", "2020-03-17T00:00:00Z"},
		{"2020-03-17T00:00:00Z", "2020-03-18T00:00:00Z"},
		{"2020-03-18T00:00:00Z", "2020-03-19T00:00:00Z"},
		{"2020-03-19T00:00:00Z", "2020-03-20T00:00:00Z"},
		{"2020-03-20T00:00:00Z", "2020-03-21T00:00:00Z"},
		{"2020-03-21T00:00:00Z", "2020-03-22T00:00:00Z"},
	}
	if len(rewards) != len(expected) {
		t.Fatalf("Expected %d rewards, got %d", len(expected), len(rewards))
	}
	for i, want := range expected {
		got := rewards[i]
		if got.AvailableAt != want.available || got.ExpiresAt != want.expires {
			t.Errorf("reward %d: expected %s-%s, got %s-%s", i, want.available, want.expires, got.AvailableAt, got.ExpiresAt)
		}
		if got.RedeemedAt != nil {
			t.Errorf("reward %d: expected redeemedAt null, got %s", i, *got.RedeemedAt)
		}
	}
}

func TestListRewards_InvalidInput(t *testing.T) {
	svc, _ := setupTestService(t, time.Now())

	var verr *validation.ValidationError
	if _, err := svc.ListRewards(context.Background(), "1", ""); !errors.As(err, &verr) {
		t.Errorf("Expected validation error for missing at, got %v", err)
	}
	if _, err := svc.ListRewards(context.Background(), "1", "not-a-date"); !errors.As(err, &verr) {
		t.Errorf("Expected validation error for bad at, got %v", err)
	}
	if _, err := svc.ListRewards(context.Background(), "", "2020-03-19"); !errors.As(err, &verr) {
		t.Errorf("Expected validation error for missing user, got %v", err)
	}
}

func TestRedeemReward_Scenarios(t *testing.T) {
	ctx := context.Background()
	svc, clock := setupTestService(t, time.Date(2020, 3, 17, 23, 59, 59, 0, time.UTC))
	userID := uuid.New().String()

	if _, err := svc.RedeemReward(ctx, userID, "2020-03-18T00:00:00Z"); !errors.Is(err, ledger.ErrUserUnknown) {
		t.Fatalf("Expected ErrUserUnknown, got %v", err)
	}

	if _, err := svc.ListRewards(ctx, userID, "2020-03-19T12:00:00Z"); err != nil {
		t.Fatalf("Failed to list rewards: %v", err)
	}

	if _, err := svc.RedeemReward(ctx, userID, "2020-02-18T00:00:00Z"); !errors.Is(err, ledger.ErrRewardNotActivated) {
		t.Errorf("Expected ErrRewardNotActivated, got %v", err)
	}

	if _, err := svc.RedeemReward(ctx, userID, "2020-03-18T00:00:00Z"); !errors.Is(err, ledger.ErrNotYetAvailable) {
		t.Errorf("Expected ErrNotYetAvailable, got %v", err)
	}

	clock.now = time.Date(2020, 3, 19, 0, 0, 0, 0, time.UTC)
	if _, err := svc.RedeemReward(ctx, userID, "2020-03-18T00:00:00Z"); !errors.Is(err, ledger.ErrExpired) {
		t.Errorf("Expected ErrExpired, got %v", err)
	}

	clock.now = time.Date(2020, 3, 19, 8, 15, 30, 0, time.UTC)
	reward, err := svc.RedeemReward(ctx, userID, "2020-03-19T00:00:00Z")
	if err != nil {
		t.Fatalf("Failed to redeem reward: %v", err)
	}
	if reward.AvailableAt != "2020-03-19T00:00:00Z" || reward.ExpiresAt != "2020-03-20T00:00:00Z" {
		t.Errorf("Unexpected window %s-%s", reward.AvailableAt, reward.ExpiresAt)
	}
	if reward.RedeemedAt == nil || *reward.RedeemedAt != "2020-03-19T08:15:30Z" {
		t.Errorf("Unexpected redeemedAt %v", reward.RedeemedAt)
	}

	rewards, err := svc.ListRewards(ctx, userID, "2020-03-19T00:00:00Z")
	if err != nil {
		t.Fatalf("Failed to list rewards: %v", err)
	}
	if rewards[4].RedeemedAt == nil || *rewards[4].RedeemedAt != *reward.RedeemedAt {
		t.Errorf("Expected listing to show redemption, got %v", rewards[4].RedeemedAt)
	}

	if _, err := svc.RedeemReward(ctx, userID, "2020-03-19T00:00:00Z"); !errors.Is(err, ledger.ErrAlreadyRedeemed) {
		t.Errorf("Expected ErrAlreadyRedeemed, got %v", err)
	}
}

func TestRedeemReward_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	em := events.NewManager(true, nil)
	received := make(chan events.Event, 4)
	record := func(ctx context.Context, e events.Event) error {
		received <- e
		return nil
	}
	em.Subscribe(events.EventWeekActivated, record)
	em.Subscribe(events.EventRewardRedeemed, record)
	em.Subscribe(events.EventRedeemRejected, record)

	now := time.Date(2020, 3, 19, 9, 0, 0, 0, time.UTC)
	l := ledger.New(calendar.New(time.UTC), ledger.NewMemoryStore())
	svc := NewService(l, Options{
		Now:    func() time.Time { return now },
		Events: em,
		Flags:  features.NewDefaultManager(),
	})

	svc.ListRewards(ctx, "1", "2020-03-19")
	svc.RedeemReward(ctx, "1", "2020-03-19")
	svc.RedeemReward(ctx, "1", "2020-03-19")
	em.Shutdown()
	close(received)

	seen := map[events.EventType]int{}
	for e := range received {
		seen[e.Type]++
	}
	for _, typ := range []events.EventType{events.EventWeekActivated, events.EventRewardRedeemed, events.EventRedeemRejected} {
		if seen[typ] != 1 {
			t.Errorf("Expected one %s event, got %d", typ, seen[typ])
		}
	}
}

func TestRedeemReward_EventsGatedByFlag(t *testing.T) {
	em := events.NewManager(true, nil)
	received := make(chan events.Event, 4)
	em.Subscribe(events.EventWeekActivated, func(ctx context.Context, e events.Event) error {
		received <- e
		return nil
	})

	flags := features.NewDefaultManager()
	flags.Set(features.FeatureEventHooksEnabled, false)
	l := ledger.New(calendar.New(time.UTC), ledger.NewMemoryStore())
	svc := NewService(l, Options{Events: em, Flags: flags})

	svc.ListRewards(context.Background(), "1", "2020-03-19")
	em.Shutdown()

	if len(received) != 0 {
		t.Errorf("Expected no events while flag is disabled, got %d", len(received))
	}
}
