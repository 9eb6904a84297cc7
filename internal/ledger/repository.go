package ledger

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/ThanosKa/magic-room-sub001/internal/models"
)

type Repository interface {
	DeductCredits(ctx context.Context, userID string, amount int) (bool, error)
	AddCredits(ctx context.Context, userID string, amount int) error
	InsertTransaction(ctx context.Context, tx *models.TransactionDB) error
	ListTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error)
}

type LedgerRepository struct {
	db *bun.DB
}

func NewLedgerRepository(db *bun.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// DeductCredits performs a single conditional decrement so two concurrent
// deductions can never both pass a stale balance check. Returns false when
// the balance is insufficient.
func (r *LedgerRepository) DeductCredits(ctx context.Context, userID string, amount int) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.UserDB)(nil)).
		Set("credits = credits - ?", amount).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", userID).
		Where("credits >= ?", amount).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *LedgerRepository) AddCredits(ctx context.Context, userID string, amount int) error {
	_, err := r.db.NewUpdate().
		Model((*models.UserDB)(nil)).
		Set("credits = credits + ?", amount).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", userID).
		Exec(ctx)
	return err
}

func (r *LedgerRepository) InsertTransaction(ctx context.Context, tx *models.TransactionDB) error {
	_, err := r.db.NewInsert().Model(tx).Exec(ctx)
	return err
}

func (r *LedgerRepository) ListTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	var rows []*models.TransactionDB
	err := r.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	txs := make([]*models.Transaction, 0, len(rows))
	for _, row := range rows {
		txs = append(txs, row.ToTransaction())
	}
	return txs, nil
}
