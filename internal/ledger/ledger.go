// Package ledger records which of a user's seven weekly rewards have been
// redeemed and decides whether a redemption attempt is allowed.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"weekly-rewards-api/internal/calendar"
)

// SlotView is the state of one reward slot.
type SlotView struct {
	AvailableAt time.Time
	RedeemedAt  *time.Time
	ExpiresAt   time.Time
}

// WeekView is the state of all slots of one calendar week.
type WeekView struct {
	Key   time.Time
	Slots [calendar.DaysPerWeek]SlotView
	// Created is true when this call activated the week.
	Created bool
}

// Ledger owns the redemption rules. It is safe for concurrent use; all
// operations for one user are serialized.
type Ledger struct {
	cal   calendar.Calendar
	store Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a ledger over store using cal for all day arithmetic.
func New(cal calendar.Calendar, store Store) *Ledger {
	return &Ledger{
		cal:   cal,
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

// Calendar returns the calendar the ledger resolves weeks with.
func (l *Ledger) Calendar() calendar.Calendar {
	return l.cal
}

// lockUser acquires the user's lock and returns its release function.
func (l *Ledger) lockUser(userID string) func() {
	l.mu.Lock()
	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// ListWeek returns the week containing ref for userID, creating the user
// record and the week on first access. A week must be listed before any of
// its slots can be redeemed.
func (l *Ledger) ListWeek(ctx context.Context, userID string, ref time.Time) (WeekView, error) {
	key := l.cal.WeekKey(ref)

	unlock := l.lockUser(userID)
	defer unlock()

	week, created, err := l.store.EnsureWeek(ctx, userID, key)
	if err != nil {
		return WeekView{}, fmt.Errorf("ensure week: %w", err)
	}

	view := WeekView{Key: key, Created: created}
	for i, available := range l.cal.WeekSlotInstants(key) {
		view.Slots[i] = SlotView{
			AvailableAt: available,
			RedeemedAt:  week[i],
			ExpiresAt:   l.cal.NextDay(available),
		}
	}
	return view, nil
}

// Redeem marks the slot that becomes available at availableAt as redeemed at
// now. Checks run in a fixed order and the first failure is returned as an
// *Error; no state changes unless every check passes.
func (l *Ledger) Redeem(ctx context.Context, userID string, availableAt, now time.Time) (SlotView, error) {
	availableAt = l.cal.DayStart(availableAt)
	key := l.cal.WeekKey(availableAt)
	index := l.cal.WeekdayIndex(availableAt)
	expiresAt := l.cal.NextDay(availableAt)

	unlock := l.lockUser(userID)
	defer unlock()

	exists, err := l.store.UserExists(ctx, userID)
	if err != nil {
		return SlotView{}, fmt.Errorf("lookup user: %w", err)
	}
	if !exists {
		return SlotView{}, userUnknown(userID)
	}

	week, ok, err := l.store.GetWeek(ctx, userID, key)
	if err != nil {
		return SlotView{}, fmt.Errorf("get week: %w", err)
	}
	if !ok {
		return SlotView{}, ErrRewardNotActivated
	}

	if week[index] != nil {
		return SlotView{}, ErrAlreadyRedeemed
	}
	if now.Before(availableAt) {
		return SlotView{}, ErrNotYetAvailable
	}
	if !now.Before(expiresAt) {
		return SlotView{}, ErrExpired
	}

	written, err := l.store.MarkRedeemed(ctx, userID, key, index, now)
	if err != nil {
		return SlotView{}, fmt.Errorf("mark redeemed: %w", err)
	}
	if !written {
		// Another process sharing the store got there first.
		return SlotView{}, ErrAlreadyRedeemed
	}

	redeemedAt := now
	return SlotView{
		AvailableAt: availableAt,
		RedeemedAt:  &redeemedAt,
		ExpiresAt:   expiresAt,
	}, nil
}
