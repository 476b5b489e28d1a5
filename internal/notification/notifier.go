package notification

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stanstork/schedule-api/internal/models"
)

// Notifier receives every notification right after it is persisted.
type Notifier interface {
	Notify(ctx context.Context, notification models.EventNotification) error
}

// LogNotifier writes new notifications to the application log.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "log_notifier").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, notif models.EventNotification) error {
	n.logger.Info().
		Str("notification_id", notif.ID).
		Str("user_id", notif.UserID).
		Str("event_id", notif.EventID).
		Str("type", string(notif.Type)).
		Str("source", string(notif.Source)).
		Time("occurrence_start", notif.OccurrenceStart).
		Msg(notif.Message)
	return nil
}

func (n *LogNotifier) String() string { return "log" }

func logNotifyError(logger zerolog.Logger, err error, channel string, notif models.EventNotification) {
	if err == nil {
		return
	}
	logger.Warn().
		Err(err).
		Str("notification_id", notif.ID).
		Str("type", string(notif.Type)).
		Str("channel", channel).
		Msg("failed to deliver notification")
}
