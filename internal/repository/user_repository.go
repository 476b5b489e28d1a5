package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/stanstork/schedule-api/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
)

type UserRepository interface {
	CreateUser(ctx context.Context, name, email, password string) (models.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, userID string) (models.User, error)
	UpdateProfile(ctx context.Context, userID, name, email string) (models.User, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	DeleteUser(ctx context.Context, userID string) error
	Stats(ctx context.Context, userID string) (models.UserStats, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, name, email, password_hash, created_at, updated_at`

func (u *userRepository) CreateUser(ctx context.Context, name, email, password string) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	const query = `
		INSERT INTO planner.users (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns

	row := u.db.QueryRowContext(ctx, query, strings.TrimSpace(name), normalizeEmail(email), string(hash))
	user, err := scanUser(row)
	if isUniqueViolation(err) {
		return models.User{}, ErrEmailTaken
	}
	return user, err
}

func (u *userRepository) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	user, err := u.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (u *userRepository) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM planner.users WHERE email = $1`
	return scanUser(u.db.QueryRowContext(ctx, query, normalizeEmail(email)))
}

func (u *userRepository) GetUserByID(ctx context.Context, userID string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM planner.users WHERE id = $1`
	return scanUser(u.db.QueryRowContext(ctx, query, userID))
}

func (u *userRepository) UpdateProfile(ctx context.Context, userID, name, email string) (models.User, error) {
	const query = `
		UPDATE planner.users
		SET name = $2, email = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(u.db.QueryRowContext(ctx, query, userID, strings.TrimSpace(name), normalizeEmail(email)))
	if isUniqueViolation(err) {
		return models.User{}, ErrEmailTaken
	}
	return user, err
}

func (u *userRepository) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := u.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	const query = `UPDATE planner.users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	_, err = u.db.ExecContext(ctx, query, userID, string(hash))
	return err
}

// DeleteUser removes the user; categories, events and notifications cascade.
func (u *userRepository) DeleteUser(ctx context.Context, userID string) error {
	const query = `DELETE FROM planner.users WHERE id = $1`

	result, err := u.db.ExecContext(ctx, query, userID)
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

func (u *userRepository) Stats(ctx context.Context, userID string) (models.UserStats, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM planner.events WHERE user_id = $1),
			(SELECT COUNT(*) FROM planner.categories WHERE user_id = $1),
			(SELECT COUNT(*) FROM planner.events WHERE user_id = $1 AND series_end >= NOW()),
			(SELECT COUNT(*) FROM planner.events WHERE user_id = $1 AND series_end < NOW())`

	var stats models.UserStats
	err := u.db.QueryRowContext(ctx, query, userID).Scan(
		&stats.TotalEvents,
		&stats.TotalCategories,
		&stats.UpcomingEvents,
		&stats.PastEvents,
	)
	return stats, err
}

func scanUser(scanner interface {
	Scan(dest ...interface{}) error
}) (models.User, error) {
	var user models.User
	if err := scanner.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
