package ledger

import (
	"context"
	"time"

	"weekly-rewards-api/internal/calendar"
)

// Week holds the redemption instant of each slot of one calendar week,
// indexed by weekday. A nil entry is unredeemed.
type Week [calendar.DaysPerWeek]*time.Time

// Store persists user records and their weeks.
//
// Implementations need not serialize access per user; the Ledger holds a
// per-user lock around every call sequence. MarkRedeemed must still only
// write an unredeemed slot.
type Store interface {
	// UserExists reports whether any week was ever created for userID.
	UserExists(ctx context.Context, userID string) (bool, error)
	// EnsureWeek creates the user record and the week if absent and returns
	// the week's current state. created is true when the week was new.
	EnsureWeek(ctx context.Context, userID string, weekKey time.Time) (week Week, created bool, err error)
	// GetWeek returns the week if it exists.
	GetWeek(ctx context.Context, userID string, weekKey time.Time) (Week, bool, error)
	// MarkRedeemed sets the slot's redemption instant. It returns false
	// without writing when the slot was already redeemed.
	MarkRedeemed(ctx context.Context, userID string, weekKey time.Time, index int, at time.Time) (bool, error)
}
