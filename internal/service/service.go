package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"weekly-rewards-api/internal/calendar"
	"weekly-rewards-api/internal/events"
	"weekly-rewards-api/internal/features"
	"weekly-rewards-api/internal/ledger"
	"weekly-rewards-api/internal/models"
	"weekly-rewards-api/internal/tracing"
	"weekly-rewards-api/internal/validation"
)

// Service provides business logic for the weekly rewards API.
type Service struct {
	ledger *ledger.Ledger
	cal    calendar.Calendar
	now    func() time.Time
	events *events.Manager
	flags  *features.Manager
	tracer *tracing.Tracer
}

// Options holds the optional collaborators of a Service.
type Options struct {
	// Now returns the current instant. Defaults to time.Now.
	Now    func() time.Time
	Events *events.Manager
	Flags  *features.Manager
	Tracer *tracing.Tracer
}

// NewService creates a new service instance.
func NewService(l *ledger.Ledger, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.Noop()
	}
	return &Service{
		ledger: l,
		cal:    l.Calendar(),
		now:    opts.Now,
		events: opts.Events,
		flags:  opts.Flags,
		tracer: opts.Tracer,
	}
}

// ListRewards returns the seven rewards of the week containing at.
func (s *Service) ListRewards(ctx context.Context, userID, at string) (models.WeeklyRewards, error) {
	ctx, span := s.tracer.StartSpan(ctx, "service.ListRewards")
	defer span.End()

	if err := validation.ValidateUserID(userID); err != nil {
		return nil, err
	}
	ref, err := validation.ParseInstant(s.cal, at, "at")
	if err != nil {
		return nil, err
	}

	week, err := s.ledger.ListWeek(ctx, userID, ref)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list week: %w", err)
	}
	span.SetAttributes(
		attribute.String("rewards.week_key", s.cal.Format(week.Key)),
		attribute.Bool("rewards.week_created", week.Created),
	)

	if week.Created && s.publishing() {
		s.events.PublishWeekActivated(ctx, userID, week.Key)
	}

	rewards := make(models.WeeklyRewards, 0, len(week.Slots))
	for _, slot := range week.Slots {
		rewards = append(rewards, s.render(slot))
	}
	return rewards, nil
}

// RedeemReward redeems the reward that becomes available at availableAt,
// using the service clock as the redemption instant.
func (s *Service) RedeemReward(ctx context.Context, userID, availableAt string) (models.Reward, error) {
	ctx, span := s.tracer.StartSpan(ctx, "service.RedeemReward")
	defer span.End()

	if err := validation.ValidateUserID(userID); err != nil {
		return models.Reward{}, err
	}
	available, err := validation.ParseInstant(s.cal, availableAt, "availableAt")
	if err != nil {
		return models.Reward{}, err
	}

	now := s.now()
	slot, err := s.ledger.Redeem(ctx, userID, available, now)
	if err != nil {
		var rejection *ledger.Error
		if errors.As(err, &rejection) {
			span.SetAttributes(attribute.String("rewards.rejection", string(rejection.Kind)))
			if s.publishing() {
				s.events.PublishRedeemRejected(ctx, userID, available, string(rejection.Kind))
			}
			return models.Reward{}, err
		}
		span.SetStatus(codes.Error, err.Error())
		return models.Reward{}, fmt.Errorf("failed to redeem reward: %w", err)
	}

	if s.publishing() {
		s.events.PublishRewardRedeemed(ctx, userID, slot.AvailableAt, now)
	}
	return s.render(slot), nil
}

func (s *Service) publishing() bool {
	return s.events != nil && s.flags.IsEnabled(features.FeatureEventHooksEnabled)
}

func (s *Service) render(slot ledger.SlotView) models.Reward {
	r := models.Reward{
		AvailableAt: s.cal.Format(slot.AvailableAt),
		ExpiresAt:   s.cal.Format(slot.ExpiresAt),
	}
	if slot.RedeemedAt != nil {
		redeemed := s.cal.Format(*slot.RedeemedAt)
		r.RedeemedAt = &redeemed
	}
	return r
}
