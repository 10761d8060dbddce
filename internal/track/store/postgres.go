package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"soundvault/internal/track/models"
	"soundvault/pkg/platform/sentinel"
)

// Postgres persists tracks in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const trackColumns = `id, owner_id, title, description, genre, price_cents, duration,
	release_date, is_public, audio_key, cover_key, play_count, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, t *models.Track) error {
	const query = `
		INSERT INTO tracks (id, owner_id, title, description, genre, price_cents, duration,
			release_date, is_public, audio_key, cover_key, play_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.OwnerID, t.Title, t.Description, t.Genre, t.PriceCents, t.Duration,
		t.ReleaseDate, t.IsPublic, t.AudioKey, t.CoverKey, t.PlayCount, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create track: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Track, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+trackColumns+` FROM tracks WHERE id = $1`, id)
	t, err := scanTrack(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find track: %w", err)
	}
	return t, nil
}

func (s *Postgres) Update(ctx context.Context, t *models.Track) error {
	const query = `
		UPDATE tracks
		SET title = $2, description = $3, genre = $4, price_cents = $5, duration = $6,
			is_public = $7, audio_key = $8, cover_key = $9, updated_at = $10
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query,
		t.ID, t.Title, t.Description, t.Genre, t.PriceCents, t.Duration,
		t.IsPublic, t.AudioKey, t.CoverKey, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update track: %w", err)
	}
	return requireRow(res, "update track")
}

// Delete removes the track row. Play history cascades with it; a remaining
// purchase reference violates the foreign key and surfaces as
// sentinel.ErrConflict.
func (s *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tracks WHERE id = $1`, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("delete track: %w", err)
	}
	return requireRow(res, "delete track")
}

func (s *Postgres) ListPublic(ctx context.Context, skip, limit int) ([]*models.Track, error) {
	const query = `
		SELECT ` + trackColumns + `
		FROM tracks
		WHERE is_public
		ORDER BY created_at DESC, id DESC
		OFFSET $1 LIMIT $2
	`
	return s.list(ctx, query, skip, limit)
}

func (s *Postgres) ListByOwner(ctx context.Context, ownerID uuid.UUID, skip, limit int) ([]*models.Track, error) {
	const query = `
		SELECT ` + trackColumns + `
		FROM tracks
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3
	`
	return s.list(ctx, query, ownerID, skip, limit)
}

func (s *Postgres) IncrementPlayCount(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tracks SET play_count = play_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("increment play count: %w", err)
	}
	return requireRow(res, "increment play count")
}

func (s *Postgres) CountByOwnerSince(ctx context.Context, ownerID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM tracks WHERE owner_id = $1 AND created_at >= $2`,
		ownerID, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tracks by owner: %w", err)
	}
	return n, nil
}

func (s *Postgres) list(ctx context.Context, query string, args ...any) ([]*models.Track, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var out []*models.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrack(row scanner) (*models.Track, error) {
	var t models.Track
	err := row.Scan(
		&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.Genre, &t.PriceCents, &t.Duration,
		&t.ReleaseDate, &t.IsPublic, &t.AudioKey, &t.CoverKey, &t.PlayCount, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func requireRow(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
