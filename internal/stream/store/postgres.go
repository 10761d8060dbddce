package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"soundvault/internal/stream/models"
)

// Postgres persists play history in the play_history table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Append(ctx context.Context, p *models.Play) error {
	// Anonymous plays store NULL, not the zero UUID, so the FK holds.
	var principalID any
	if p.PrincipalID != (uuid.UUID{}) {
		principalID = p.PrincipalID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO play_history (id, track_id, principal_id, duration, played_at)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.TrackID, principalID, p.Duration, p.PlayedAt,
	)
	if err != nil {
		return fmt.Errorf("insert play: %w", err)
	}
	return nil
}

func (s *Postgres) CountByTrack(ctx context.Context, trackID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM play_history WHERE track_id = $1`, trackID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count plays: %w", err)
	}
	return n, nil
}

func (s *Postgres) CountByPrincipalSince(ctx context.Context, principalID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM play_history WHERE principal_id = $1 AND played_at >= $2`,
		principalID, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count principal plays: %w", err)
	}
	return n, nil
}
