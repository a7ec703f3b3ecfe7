package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event.
type EventType string

const (
	// EventWeekActivated is emitted when listing a week creates it
	EventWeekActivated EventType = "reward.week_activated"
	// EventRewardRedeemed is emitted after a successful redemption
	EventRewardRedeemed EventType = "reward.redeemed"
	// EventRedeemRejected is emitted when a redemption breaks a rule
	EventRedeemRejected EventType = "reward.redeem_rejected"
)

// Event represents an event in the system.
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// WeekActivatedData contains data for week activated events.
type WeekActivatedData struct {
	UserID  string
	WeekKey time.Time
}

// RewardRedeemedData contains data for reward redeemed events.
type RewardRedeemedData struct {
	UserID      string
	AvailableAt time.Time
	RedeemedAt  time.Time
}

// RedeemRejectedData contains data for rejected redemption events.
type RedeemRejectedData struct {
	UserID      string
	AvailableAt time.Time
	Reason      string
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// NewManager creates a new event manager.
func NewManager(enabled bool, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
		logger:   logger,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled {
		return
	}
	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish publishes an event to all subscribed handlers. Handlers run
// asynchronously and never block the caller.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	m.mu.RLock()
	if !m.enabled || len(m.handlers[eventType]) == 0 {
		m.mu.RUnlock()
		return
	}
	handlers := m.handlers[eventType]
	// Added under the lock so Shutdown cannot start waiting in between.
	m.wg.Add(len(handlers))
	m.mu.RUnlock()

	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	// Handlers outlive the request; keep values but drop cancellation.
	ctx = context.WithoutCancel(ctx)
	for _, handler := range handlers {
		go func(h Handler) {
			defer m.wg.Done()
			if err := h(ctx, event); err != nil {
				m.logger.Warn("event handler failed",
					"event_id", event.ID,
					"event_type", string(event.Type),
					"error", err,
				)
			}
		}(handler)
	}
}

// PublishWeekActivated publishes a week activated event.
func (m *Manager) PublishWeekActivated(ctx context.Context, userID string, weekKey time.Time) {
	m.Publish(ctx, EventWeekActivated, WeekActivatedData{
		UserID:  userID,
		WeekKey: weekKey,
	})
}

// PublishRewardRedeemed publishes a reward redeemed event.
func (m *Manager) PublishRewardRedeemed(ctx context.Context, userID string, availableAt, redeemedAt time.Time) {
	m.Publish(ctx, EventRewardRedeemed, RewardRedeemedData{
		UserID:      userID,
		AvailableAt: availableAt,
		RedeemedAt:  redeemedAt,
	})
}

// PublishRedeemRejected publishes a rejected redemption event.
func (m *Manager) PublishRedeemRejected(ctx context.Context, userID string, availableAt time.Time, reason string) {
	m.Publish(ctx, EventRedeemRejected, RedeemRejectedData{
		UserID:      userID,
		AvailableAt: availableAt,
		Reason:      reason,
	})
}

// LogHandler returns a handler that writes every event to logger.
func LogHandler(logger *slog.Logger) Handler {
	return func(ctx context.Context, event Event) error {
		logger.InfoContext(ctx, "reward event",
			"event_id", event.ID,
			"event_type", string(event.Type),
			"data", event.Data,
		)
		return nil
	}
}

// Shutdown disables publishing and waits for running handlers.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
	m.mu.Unlock()

	m.wg.Wait()
}
