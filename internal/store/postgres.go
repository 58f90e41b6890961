package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"teambeat/api/internal/util"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ── Users ──

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash)
		VALUES ($1, $2, LOWER($3), $4)
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, created_at, updated_at
		FROM users WHERE email = LOWER($1)
	`, email).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, created_at, updated_at
		FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserName(ctx context.Context, userID, displayName string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET display_name=$2, updated_at=NOW() WHERE id=$1
	`, userID, displayName)
	if err != nil {
		return fmt.Errorf("update display name: %w", err)
	}
	return nil
}

// ── Series ──

func (s *PostgresStore) CreateSeries(ctx context.Context, series Series) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO series (id, name, created_by)
		VALUES ($1, $2, $3)
	`, series.ID, series.Name, series.CreatedBy); err != nil {
		return fmt.Errorf("insert series: %w", err)
	}
	// The creator administers their own series.
	if err := s.AddSeriesMember(ctx, series.ID, series.CreatedBy, "admin"); err != nil {
		return err
	}
	return nil
}

func (s *PostgresStore) GetSeries(ctx context.Context, seriesID string) (Series, error) {
	var item Series
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_by, created_at, updated_at
		FROM series WHERE id=$1
	`, seriesID).Scan(&item.ID, &item.Name, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Series{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListSeriesForUser(ctx context.Context, userID string) ([]Series, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sr.id, sr.name, sr.created_by, sr.created_at, sr.updated_at
		FROM series sr
		JOIN series_members sm ON sm.series_id = sr.id
		WHERE sm.user_id = $1
		ORDER BY sr.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	defer rows.Close()

	items := make([]Series, 0)
	for rows.Next() {
		var item Series
		if err := rows.Scan(&item.ID, &item.Name, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan series: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateSeriesName(ctx context.Context, seriesID, name string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE series SET name=$2, updated_at=NOW() WHERE id=$1
	`, seriesID, name)
	if err != nil {
		return fmt.Errorf("update series: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteSeries(ctx context.Context, seriesID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM series WHERE id=$1`, seriesID)
	if err != nil {
		return fmt.Errorf("delete series: %w", err)
	}
	return nil
}

// ── Series membership ──

var ErrAlreadyMember = errors.New("user already in series")

func (s *PostgresStore) AddSeriesMember(ctx context.Context, seriesID, userID, role string) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM series_members WHERE series_id=$1 AND user_id=$2)
	`, seriesID, userID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if exists {
		return ErrAlreadyMember
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO series_members (series_id, user_id, role)
		VALUES ($1, $2, $3)
	`, seriesID, userID, role)
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveSeriesMember(ctx context.Context, seriesID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM series_members WHERE series_id=$1 AND user_id=$2
	`, seriesID, userID)
	if err != nil {
		return fmt.Errorf("remove membership: %w", err)
	}
	return nil
}

// GetSeriesRole returns the empty string when the user is not a member.
func (s *PostgresStore) GetSeriesRole(ctx context.Context, seriesID, userID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT role FROM series_members WHERE series_id=$1 AND user_id=$2
	`, seriesID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read series role: %w", err)
	}
	return role, nil
}

func (s *PostgresStore) ListSeriesMembers(ctx context.Context, seriesID string) ([]SeriesMember, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sm.series_id, sm.user_id, sm.role, sm.created_at, u.display_name, u.email
		FROM series_members sm
		JOIN users u ON u.id = sm.user_id
		WHERE sm.series_id=$1
		ORDER BY sm.created_at ASC
	`, seriesID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	items := make([]SeriesMember, 0)
	for rows.Next() {
		var item SeriesMember
		if err := rows.Scan(&item.SeriesID, &item.UserID, &item.Role, &item.CreatedAt, &item.DisplayName, &item.Email); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return items, nil
}

// EnsureUserByEmail looks up a user by email and creates a placeholder
// account when none exists, used when inviting someone to a series.
func (s *PostgresStore) EnsureUserByEmail(ctx context.Context, email, displayName string) (User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("lookup user: %w", err)
	}

	user = User{
		ID:          util.NewID("usr"),
		DisplayName: displayName,
		Email:       email,
		// Invited users set a password through the reset flow.
		PasswordHash: util.NewID("inv"),
	}
	if err := s.CreateUser(ctx, user); err != nil {
		return User{}, err
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	return user, nil
}
