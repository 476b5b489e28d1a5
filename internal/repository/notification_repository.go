package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/stanstork/schedule-api/internal/models"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

type NotificationRepository interface {
	// ListEventNotifications returns the user's generated notifications, the
	// input the generator deduplicates against. Manual rows are left out.
	ListEventNotifications(ctx context.Context, userID string) ([]models.EventNotification, error)
	List(ctx context.Context, userID string, filter models.NotificationFilter) ([]models.EventNotification, error)
	Get(ctx context.Context, userID, notificationID string) (models.EventNotification, error)
	// Create stores a manual notification.
	Create(ctx context.Context, notification models.EventNotification) (models.EventNotification, error)
	// CreateMany inserts generated notifications in one transaction, silently
	// skipping rows whose occurrence key already exists. It returns the rows
	// actually inserted.
	CreateMany(ctx context.Context, notifications []models.EventNotification) ([]models.EventNotification, error)
	DeleteMany(ctx context.Context, userID string, ids []string) (int, error)
	MarkRead(ctx context.Context, userID, notificationID string) (models.EventNotification, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID, notificationID string) error
	DeleteRead(ctx context.Context, userID string) (int, error)
	Stats(ctx context.Context, userID string) (models.NotificationStats, error)
}

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

const notificationColumns = `id, user_id, event_id, event_title, source, title, type, message, occurrence_start, occurrence_end, scheduled_for, created_at, is_read`

func (r *notificationRepository) ListEventNotifications(ctx context.Context, userID string) ([]models.EventNotification, error) {
	const query = `
		SELECT ` + notificationColumns + `
		FROM planner.event_notifications
		WHERE user_id = $1 AND source = 'generated'`
	return r.query(ctx, query, userID)
}

func (r *notificationRepository) List(ctx context.Context, userID string, filter models.NotificationFilter) ([]models.EventNotification, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	var (
		conds = []string{"user_id = $1"}
		args  = []interface{}{userID}
	)
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.UnreadOnly {
		conds = append(conds, "is_read = FALSE")
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM planner.event_notifications
		WHERE %s
		ORDER BY created_at DESC, occurrence_start ASC
		LIMIT $%d`, notificationColumns, strings.Join(conds, " AND "), len(args))

	return r.query(ctx, query, args...)
}

func (r *notificationRepository) Get(ctx context.Context, userID, notificationID string) (models.EventNotification, error) {
	const query = `
		SELECT ` + notificationColumns + `
		FROM planner.event_notifications
		WHERE id = $1 AND user_id = $2`
	return scanEventNotification(r.db.QueryRowContext(ctx, query, notificationID, userID))
}

func (r *notificationRepository) Create(ctx context.Context, n models.EventNotification) (models.EventNotification, error) {
	const query = `
		INSERT INTO planner.event_notifications
			(id, user_id, event_id, event_title, source, title, type, message, scheduled_for, created_at, is_read)
		VALUES ($1, $2, $3, $4, 'manual', $5, $6, $7, $8, $9, $10)
		RETURNING ` + notificationColumns

	return scanEventNotification(r.db.QueryRowContext(ctx, query,
		n.ID,
		n.UserID,
		nullString(n.EventID),
		n.EventTitle,
		n.Title,
		string(n.Type),
		n.Message,
		n.ScheduledFor,
		n.CreatedAt,
		n.IsRead,
	))
}

func (r *notificationRepository) CreateMany(ctx context.Context, notifications []models.EventNotification) ([]models.EventNotification, error) {
	inserted := make([]models.EventNotification, 0, len(notifications))
	if len(notifications) == 0 {
		return inserted, nil
	}

	const query = `
		INSERT INTO planner.event_notifications
			(id, user_id, event_id, event_title, source, type, message, occurrence_start, occurrence_end, occurrence_minute, created_at, is_read)
		VALUES ($1, $2, $3, $4, 'generated', $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, event_id, occurrence_minute) DO NOTHING`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range notifications {
		result, err := stmt.ExecContext(ctx,
			n.ID,
			n.UserID,
			n.EventID,
			n.EventTitle,
			string(n.Type),
			n.Message,
			n.OccurrenceStart,
			n.OccurrenceEnd,
			models.OccurrenceMinute(n.OccurrenceStart),
			n.CreatedAt,
			n.IsRead,
		)
		if err != nil {
			return nil, fmt.Errorf("insert notification for event %s: %w", n.EventID, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return nil, err
		}
		if rows > 0 {
			n.Source = models.SourceGenerated
			inserted = append(inserted, n)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}

func (r *notificationRepository) DeleteMany(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `DELETE FROM planner.event_notifications WHERE user_id = $1 AND id = ANY($2)`
	return r.exec(ctx, query, userID, pq.Array(ids))
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, notificationID string) (models.EventNotification, error) {
	const query = `
		UPDATE planner.event_notifications
		SET is_read = TRUE
		WHERE id = $1 AND user_id = $2
		RETURNING ` + notificationColumns
	return scanEventNotification(r.db.QueryRowContext(ctx, query, notificationID, userID))
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	const query = `UPDATE planner.event_notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE`
	return r.exec(ctx, query, userID)
}

func (r *notificationRepository) Delete(ctx context.Context, userID, notificationID string) error {
	const query = `DELETE FROM planner.event_notifications WHERE id = $1 AND user_id = $2`
	n, err := r.exec(ctx, query, notificationID, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *notificationRepository) DeleteRead(ctx context.Context, userID string) (int, error) {
	const query = `DELETE FROM planner.event_notifications WHERE user_id = $1 AND is_read = TRUE`
	return r.exec(ctx, query, userID)
}

func (r *notificationRepository) Stats(ctx context.Context, userID string) (models.NotificationStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_read = FALSE),
			COUNT(*) FILTER (WHERE type = 'upcoming'),
			COUNT(*) FILTER (WHERE type = 'starting'),
			COUNT(*) FILTER (WHERE type = 'ongoing'),
			COUNT(*) FILTER (WHERE source = 'manual')
		FROM planner.event_notifications
		WHERE user_id = $1`

	var stats models.NotificationStats
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&stats.Total,
		&stats.Unread,
		&stats.Upcoming,
		&stats.Starting,
		&stats.Ongoing,
		&stats.Manual,
	)
	return stats, err
}

func (r *notificationRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.EventNotification, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]models.EventNotification, 0)
	for rows.Next() {
		n, err := scanEventNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *notificationRepository) exec(ctx context.Context, query string, args ...interface{}) (int, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rows), nil
}

func scanEventNotification(scanner interface {
	Scan(dest ...interface{}) error
}) (models.EventNotification, error) {
	var (
		n                models.EventNotification
		eventID, title   sql.NullString
		source, typ      string
		occStart, occEnd sql.NullTime
		scheduledFor     sql.NullTime
	)
	if err := scanner.Scan(
		&n.ID,
		&n.UserID,
		&eventID,
		&n.EventTitle,
		&source,
		&title,
		&typ,
		&n.Message,
		&occStart,
		&occEnd,
		&scheduledFor,
		&n.CreatedAt,
		&n.IsRead,
	); err != nil {
		return models.EventNotification{}, err
	}
	n.EventID = eventID.String
	n.Title = title.String
	n.Source = models.NotificationSource(source)
	n.Type = models.NotificationType(typ)
	n.OccurrenceStart = occStart.Time
	n.OccurrenceEnd = occEnd.Time
	if scheduledFor.Valid {
		t := scheduledFor.Time
		n.ScheduledFor = &t
	}
	return n, nil
}
