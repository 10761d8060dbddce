package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"soundvault/internal/principal/models"
	"soundvault/pkg/platform/sentinel"
)

// Postgres persists principals in PostgreSQL. Unique indexes on email and
// subject back the duplicate-registration guarantee.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (s *Postgres) Create(ctx context.Context, p *models.Principal) error {
	const query = `
		INSERT INTO principals (id, subject, email, display_name, profile_image, role, verified, created_at, updated_at)
		VALUES ($1, $2, lower($3), $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Subject, p.Email, p.DisplayName, p.ProfileImage,
		p.Role.String(), p.Verified, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create principal: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Principal, error) {
	return s.findOne(ctx, `WHERE id = $1`, id)
}

func (s *Postgres) FindBySubject(ctx context.Context, subject string) (*models.Principal, error) {
	return s.findOne(ctx, `WHERE subject = $1`, subject)
}

func (s *Postgres) findOne(ctx context.Context, where string, arg any) (*models.Principal, error) {
	query := `
		SELECT id, subject, email, display_name, profile_image, role, verified, created_at, updated_at
		FROM principals ` + where
	var (
		p    models.Principal
		role string
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&p.ID, &p.Subject, &p.Email, &p.DisplayName, &p.ProfileImage,
		&role, &p.Verified, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find principal: %w", err)
	}
	p.Role = models.Role(role)
	return &p, nil
}

func (s *Postgres) Update(ctx context.Context, p *models.Principal) error {
	const query = `
		UPDATE principals
		SET display_name = $2, profile_image = $3, verified = $4, updated_at = $5
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, p.ID, p.DisplayName, p.ProfileImage, p.Verified, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update principal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update principal: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
