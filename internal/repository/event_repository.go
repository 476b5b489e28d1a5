package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stanstork/schedule-api/internal/models"
)

type EventRepository interface {
	Create(ctx context.Context, ev models.Event) (models.Event, error)
	Get(ctx context.Context, userID, eventID string) (models.Event, error)
	List(ctx context.Context, userID string, filter models.EventFilter) ([]models.Event, error)
	Update(ctx context.Context, ev models.Event) (models.Event, error)
	Delete(ctx context.Context, userID, eventID string) error
	Stats(ctx context.Context, userID string) (models.EventStats, error)
	CountByCategory(ctx context.Context, userID, categoryID string) (int, error)
	// ListUserIDs returns every user that owns events or event notifications.
	ListUserIDs(ctx context.Context) ([]string, error)
}

type eventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) EventRepository {
	return &eventRepository{db: db}
}

const eventColumns = `id, user_id, category_id, title, description, start_date, end_date, all_day, location, reminder, repeat, created_at, updated_at`

func (r *eventRepository) Create(ctx context.Context, ev models.Event) (models.Event, error) {
	const query = `
		INSERT INTO planner.events (user_id, category_id, title, description, start_date, end_date, all_day, location, reminder, repeat, series_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + eventColumns

	reminder, repeat, err := marshalEventJSON(ev)
	if err != nil {
		return models.Event{}, err
	}

	row := r.db.QueryRowContext(ctx, query,
		ev.UserID,
		ev.CategoryID,
		strings.TrimSpace(ev.Title),
		nullString(ev.Description),
		ev.StartDate,
		ev.EndDate,
		ev.AllDay,
		nullString(ev.Location),
		reminder,
		repeat,
		ev.SeriesEnd(),
	)
	return scanEvent(row)
}

func (r *eventRepository) Get(ctx context.Context, userID, eventID string) (models.Event, error) {
	const query = `
		SELECT ` + eventColumns + `
		FROM planner.events
		WHERE id = $1 AND user_id = $2`
	row := r.db.QueryRowContext(ctx, query, eventID, userID)
	return scanEvent(row)
}

// List returns the user's events ordered by start. A date range keeps every
// event with at least one occurrence overlapping it.
func (r *eventRepository) List(ctx context.Context, userID string, filter models.EventFilter) ([]models.Event, error) {
	var (
		conds = []string{"user_id = $1"}
		args  = []interface{}{userID}
	)
	if filter.From != nil {
		args = append(args, *filter.From)
		conds = append(conds, fmt.Sprintf("series_end >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conds = append(conds, fmt.Sprintf("start_date <= $%d", len(args)))
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		conds = append(conds, fmt.Sprintf("category_id = $%d", len(args)))
	}

	query := `
		SELECT ` + eventColumns + `
		FROM planner.events
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY start_date ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]models.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *eventRepository) Update(ctx context.Context, ev models.Event) (models.Event, error) {
	const query = `
		UPDATE planner.events
		SET category_id = $3, title = $4, description = $5, start_date = $6, end_date = $7,
		    all_day = $8, location = $9, reminder = $10, repeat = $11, series_end = $12, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + eventColumns

	reminder, repeat, err := marshalEventJSON(ev)
	if err != nil {
		return models.Event{}, err
	}

	row := r.db.QueryRowContext(ctx, query,
		ev.ID,
		ev.UserID,
		ev.CategoryID,
		strings.TrimSpace(ev.Title),
		nullString(ev.Description),
		ev.StartDate,
		ev.EndDate,
		ev.AllDay,
		nullString(ev.Location),
		reminder,
		repeat,
		ev.SeriesEnd(),
	)
	return scanEvent(row)
}

func (r *eventRepository) Delete(ctx context.Context, userID, eventID string) error {
	const query = `DELETE FROM planner.events WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, eventID, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *eventRepository) Stats(ctx context.Context, userID string) (models.EventStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE series_end >= NOW()),
			COUNT(*) FILTER (WHERE series_end < NOW())
		FROM planner.events
		WHERE user_id = $1`

	var stats models.EventStats
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&stats.TotalEvents, &stats.UpcomingEvents, &stats.PastEvents)
	return stats, err
}

func (r *eventRepository) CountByCategory(ctx context.Context, userID, categoryID string) (int, error) {
	const query = `SELECT COUNT(*) FROM planner.events WHERE user_id = $1 AND category_id = $2`
	var n int
	err := r.db.QueryRowContext(ctx, query, userID, categoryID).Scan(&n)
	return n, err
}

func (r *eventRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	const query = `
		SELECT user_id FROM planner.events
		UNION
		SELECT user_id FROM planner.event_notifications`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func marshalEventJSON(ev models.Event) (reminder, repeat interface{}, err error) {
	if ev.Reminder != nil {
		b, err := json.Marshal(ev.Reminder)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal reminder: %w", err)
		}
		reminder = b
	}
	if ev.Repeat != nil {
		b, err := json.Marshal(ev.Repeat)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal repeat: %w", err)
		}
		repeat = b
	}
	return reminder, repeat, nil
}

func scanEvent(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Event, error) {
	var (
		ev          models.Event
		description sql.NullString
		location    sql.NullString
		reminderRaw []byte
		repeatRaw   []byte
	)

	if err := scanner.Scan(
		&ev.ID,
		&ev.UserID,
		&ev.CategoryID,
		&ev.Title,
		&description,
		&ev.StartDate,
		&ev.EndDate,
		&ev.AllDay,
		&location,
		&reminderRaw,
		&repeatRaw,
		&ev.CreatedAt,
		&ev.UpdatedAt,
	); err != nil {
		return models.Event{}, err
	}

	ev.Description = description.String
	ev.Location = location.String
	if len(reminderRaw) > 0 {
		var reminder models.Reminder
		if err := json.Unmarshal(reminderRaw, &reminder); err != nil {
			return models.Event{}, fmt.Errorf("unmarshal reminder for event %s: %w", ev.ID, err)
		}
		ev.Reminder = &reminder
	}
	if len(repeatRaw) > 0 {
		var repeat models.Repeat
		if err := json.Unmarshal(repeatRaw, &repeat); err != nil {
			return models.Event{}, fmt.Errorf("unmarshal repeat for event %s: %w", ev.ID, err)
		}
		ev.Repeat = &repeat
	}
	return ev, nil
}

func nullString(s string) interface{} {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return s
}
