package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"student-records/internal/metrics"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

type Repository struct {
	db      *bun.DB
	metrics *metrics.Metrics
}

func NewRepository(db *bun.DB, m *metrics.Metrics) *Repository {
	return &Repository{
		db:      db,
		metrics: m,
	}
}

// CreateUser inserts user; a taken username is ErrUserExists.
func (r *Repository) CreateUser(ctx context.Context, user *User) error {
	start := time.Now()
	_, err := r.db.NewInsert().Model(user).Returning("*").Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "insert", "users", time.Since(start), err)

	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == "23505" {
		return ErrUserExists
	}
	return err
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	start := time.Now()
	user := new(User)
	err := r.db.NewSelect().Model(user).Where("u.username = ?", username).Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "users", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id int) (*User, error) {
	start := time.Now()
	user := new(User)
	err := r.db.NewSelect().Model(user).Where("u.id = ?", id).Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "users", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id int, at time.Time) error {
	start := time.Now()
	_, err := r.db.NewUpdate().
		Model((*User)(nil)).
		Set("last_login = ?", at).
		Where("id = ?", id).
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "update", "users", time.Since(start), err)

	return err
}

func (r *Repository) CreateSession(ctx context.Context, session *Session) error {
	start := time.Now()
	_, err := r.db.NewInsert().Model(session).Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "insert", "sessions", time.Since(start), err)

	return err
}

// GetSession returns the session only while it has not expired.
func (r *Repository) GetSession(ctx context.Context, id uuid.UUID, now time.Time) (*Session, error) {
	start := time.Now()
	session := new(Session)
	err := r.db.NewSelect().
		Model(session).
		Where("se.id = ?", id).
		Where("se.expires_at > ?", now).
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "sessions", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	return session, nil
}

func (r *Repository) DeleteSession(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	_, err := r.db.NewDelete().
		Model((*Session)(nil)).
		Where("id = ?", id).
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "delete", "sessions", time.Since(start), err)

	return err
}

// DeleteExpiredSessions removes sessions past their expiry.
func (r *Repository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	start := time.Now()
	result, err := r.db.NewDelete().
		Model((*Session)(nil)).
		Where("expires_at <= ?", now).
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "delete", "sessions", time.Since(start), err)

	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
