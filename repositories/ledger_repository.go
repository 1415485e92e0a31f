package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/P1T0NN/cristian-website-sub000/models"
	"github.com/lib/pq"
)

var ErrLedgerUserInvalid = errors.New("ledger entry user conflict or invalid")

type LedgerRepository interface {
	Create(ctx context.Context, exec SQLExecutor, entry *models.LedgerEntry) error
	ListByUser(ctx context.Context, userID, limit int) ([]*models.LedgerEntry, error)
}

type postgresLedgerRepository struct {
	db *sql.DB
}

func NewPostgresLedgerRepository(db *sql.DB) LedgerRepository {
	return &postgresLedgerRepository{db: db}
}

func (r *postgresLedgerRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresLedgerRepository) Create(ctx context.Context, exec SQLExecutor, e *models.LedgerEntry) error {
	query := `
		INSERT INTO ledger_entries (user_id, amount, kind, reason, reference)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		e.UserID, e.Amount, e.Kind, e.Reason, e.Reference,
	).Scan(&e.ID, &e.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrLedgerUserInvalid
		}
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return nil
}

func (r *postgresLedgerRepository) ListByUser(ctx context.Context, userID, limit int) ([]*models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, user_id, amount, kind, reason, reference, created_at
		FROM ledger_entries
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.LedgerEntry, 0)
	for rows.Next() {
		var e models.LedgerEntry
		err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Kind, &e.Reason, &e.Reference, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry row: %w", err)
		}
		entries = append(entries, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entry rows: %w", err)
	}
	return entries, nil
}
