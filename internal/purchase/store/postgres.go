package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"soundvault/internal/purchase/models"
	"soundvault/pkg/platform/sentinel"
)

// Postgres persists purchase records in PostgreSQL.
//
// The at-most-one-completed guarantee rests on the partial unique index
//
//	CREATE UNIQUE INDEX purchases_one_completed
//	ON purchases (payer_id, track_id) WHERE status = 'completed';
//
// so the duplicate check and the insert are a single atomic statement; two
// concurrent completions for the same pair cannot both commit.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const purchaseColumns = `id, payer_id, track_id, amount_cents, payment_method, transaction_ref, status, created_at`

func (s *Postgres) Create(ctx context.Context, p *models.Purchase) error {
	const query = `
		INSERT INTO purchases (id, payer_id, track_id, amount_cents, payment_method, transaction_ref, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.PayerID, p.TrackID, p.AmountCents, p.Method.String(), p.TransactionRef, string(p.Status), p.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create purchase: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id)
	p, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find purchase: %w", err)
	}
	return p, nil
}

func (s *Postgres) HasCompleted(ctx context.Context, payerID, trackID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM purchases
			WHERE payer_id = $1 AND track_id = $2 AND status = 'completed'
		)`, payerID, trackID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check completed purchase: %w", err)
	}
	return exists, nil
}

// ExistsForTrack reports whether any purchase record references the track.
func (s *Postgres) ExistsForTrack(ctx context.Context, trackID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM purchases WHERE track_id = $1)`, trackID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check purchases for track: %w", err)
	}
	return exists, nil
}

func (s *Postgres) ListCompletedByPayer(ctx context.Context, payerID uuid.UUID, skip, limit int) ([]*models.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+purchaseColumns+`
		FROM purchases
		WHERE payer_id = $1 AND status = 'completed'
		ORDER BY created_at DESC, id DESC
		OFFSET $2 LIMIT $3`, payerID, skip, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var out []*models.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPurchase(row scanner) (*models.Purchase, error) {
	var (
		p      models.Purchase
		method string
		status string
	)
	err := row.Scan(&p.ID, &p.PayerID, &p.TrackID, &p.AmountCents, &method, &p.TransactionRef, &status, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Method = models.PaymentMethod(method)
	p.Status = models.Status(status)
	return &p, nil
}
