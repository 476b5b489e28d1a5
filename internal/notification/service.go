package notification

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/schedule-api/internal/models"
	"github.com/stanstork/schedule-api/internal/repository"
)

// RefreshResult reports what one refresh changed in storage.
type RefreshResult struct {
	Created int `json:"created"`
	Deleted int `json:"deleted"`
}

// ErrUnknownEvent is returned when a manual notification links an event the
// user does not own.
var ErrUnknownEvent = errors.New("event not found")

// ManualInput is a notification authored by the user.
type ManualInput struct {
	Title        string
	Message      string
	Type         models.NotificationType
	EventID      string
	ScheduledFor *time.Time
}

// RefreshSummary aggregates a refresh over every user.
type RefreshSummary struct {
	Users   int
	Failed  int
	Created int
	Deleted int
}

type Service interface {
	// Refresh regenerates the user's event notifications from their events.
	Refresh(ctx context.Context, userID string) (RefreshResult, error)
	// RefreshAll runs Refresh for every user owning events or notifications.
	// Per-user failures are logged and counted, not returned.
	RefreshAll(ctx context.Context) (RefreshSummary, error)
	// Create stores a manual notification. Generation never prunes it.
	Create(ctx context.Context, userID string, in ManualInput) (models.EventNotification, error)
	List(ctx context.Context, userID string, filter models.NotificationFilter) ([]models.EventNotification, error)
	Get(ctx context.Context, userID, notificationID string) (models.EventNotification, error)
	MarkRead(ctx context.Context, userID, notificationID string) (models.EventNotification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID, notificationID string) error
	DeleteRead(ctx context.Context, userID string) (int, error)
	Stats(ctx context.Context, userID string) (models.NotificationStats, error)
}

type service struct {
	events    repository.EventRepository
	repo      repository.NotificationRepository
	generator *Generator
	logger    zerolog.Logger
	notifiers []Notifier
	location  *time.Location
	now       func() time.Time
	locks     *keyedMutex
}

// NewService builds the notification service. loc selects the zone used for
// dates inside messages; nil means the local zone.
func NewService(events repository.EventRepository, repo repository.NotificationRepository, logger zerolog.Logger, loc *time.Location, notifiers ...Notifier) Service {
	if loc == nil {
		loc = time.Local
	}
	active := make([]Notifier, 0, len(notifiers))
	for _, notifier := range notifiers {
		if notifier != nil {
			active = append(active, notifier)
		}
	}
	return &service{
		events:    events,
		repo:      repo,
		generator: NewGenerator(logger),
		logger:    logger.With().Str("component", "notification_service").Logger(),
		notifiers: active,
		location:  loc,
		now:       time.Now,
		locks:     newKeyedMutex(),
	}
}

func (s *service) Refresh(ctx context.Context, userID string) (RefreshResult, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	now := s.now().In(s.location)

	events, err := s.events.List(ctx, userID, models.EventFilter{From: &now})
	if err != nil {
		return RefreshResult{}, errors.Wrap(err, "list events")
	}
	existing, err := s.repo.ListEventNotifications(ctx, userID)
	if err != nil {
		return RefreshResult{}, errors.Wrap(err, "list event notifications")
	}

	res := s.generator.Generate(events, now, existing)

	var out RefreshResult
	if out.Deleted, err = s.repo.DeleteMany(ctx, userID, res.ToDelete); err != nil {
		return RefreshResult{}, errors.Wrap(err, "delete ended notifications")
	}
	inserted, err := s.repo.CreateMany(ctx, res.ToCreate)
	if err != nil {
		return RefreshResult{}, errors.Wrap(err, "create notifications")
	}
	out.Created = len(inserted)

	for _, notif := range inserted {
		s.deliver(ctx, notif)
	}

	if out.Created > 0 || out.Deleted > 0 {
		s.logger.Debug().
			Str("user_id", userID).
			Int("created", out.Created).
			Int("deleted", out.Deleted).
			Msg("refreshed event notifications")
	}
	return out, nil
}

func (s *service) RefreshAll(ctx context.Context) (RefreshSummary, error) {
	userIDs, err := s.events.ListUserIDs(ctx)
	if err != nil {
		return RefreshSummary{}, errors.Wrap(err, "list users with events")
	}

	summary := RefreshSummary{Users: len(userIDs)}
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res, err := s.Refresh(ctx, userID)
		if err != nil {
			summary.Failed++
			s.logger.Error().Err(err).Str("user_id", userID).Msg("failed to refresh event notifications")
			continue
		}
		summary.Created += res.Created
		summary.Deleted += res.Deleted
	}
	return summary, nil
}

func (s *service) Create(ctx context.Context, userID string, in ManualInput) (models.EventNotification, error) {
	if !in.Type.IsManual() {
		return models.EventNotification{}, errors.Errorf("notification type %q cannot be created by hand", in.Type)
	}

	notif := models.EventNotification{
		ID:           uuid.NewString(),
		UserID:       userID,
		Source:       models.SourceManual,
		Title:        strings.TrimSpace(in.Title),
		Type:         in.Type,
		Message:      in.Message,
		ScheduledFor: in.ScheduledFor,
		CreatedAt:    s.now(),
	}
	if in.EventID != "" {
		ev, err := s.events.Get(ctx, userID, in.EventID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return models.EventNotification{}, ErrUnknownEvent
			}
			return models.EventNotification{}, errors.Wrap(err, "load linked event")
		}
		notif.EventID = ev.ID
		notif.EventTitle = ev.Title
	}

	created, err := s.repo.Create(ctx, notif)
	if err != nil {
		return models.EventNotification{}, errors.Wrap(err, "create notification")
	}
	s.deliver(ctx, created)
	return created, nil
}

func (s *service) deliver(ctx context.Context, notif models.EventNotification) {
	for _, notifier := range s.notifiers {
		if err := notifier.Notify(ctx, notif); err != nil {
			logNotifyError(s.logger, err, notifierChannelName(notifier), notif)
		}
	}
}

func (s *service) List(ctx context.Context, userID string, filter models.NotificationFilter) ([]models.EventNotification, error) {
	return s.repo.List(ctx, userID, filter)
}

func (s *service) Get(ctx context.Context, userID, notificationID string) (models.EventNotification, error) {
	return s.repo.Get(ctx, userID, notificationID)
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID string) (models.EventNotification, error) {
	return s.repo.MarkRead(ctx, userID, notificationID)
}

func (s *service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *service) Delete(ctx context.Context, userID, notificationID string) error {
	return s.repo.Delete(ctx, userID, notificationID)
}

func (s *service) DeleteRead(ctx context.Context, userID string) (int, error) {
	return s.repo.DeleteRead(ctx, userID)
}

func (s *service) Stats(ctx context.Context, userID string) (models.NotificationStats, error) {
	return s.repo.Stats(ctx, userID)
}

func notifierChannelName(n Notifier) string {
	type named interface {
		String() string
	}
	if v, ok := n.(named); ok {
		return v.String()
	}
	return fmt.Sprintf("%T", n)
}
