package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ThanosKa/magic-room-sub001/internal/models"
)

var ErrInvalidAmount = errors.New("credit amount must be positive")

// Service owns credit balances and the append-only transaction log.
// Balance mutation and transaction recording are separate calls: the
// orchestrator decides what to record around each external action.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Deduct decrements the balance if and only if it covers amount.
// A short balance returns (false, nil); storage failures are hard errors
// since they control money-equivalent state.
func (s *Service) Deduct(ctx context.Context, userID string, amount int) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}
	ok, err := s.repo.DeductCredits(ctx, userID, amount)
	if err != nil {
		return false, fmt.Errorf("deduct credits: %w", err)
	}
	return ok, nil
}

// Credit increments the balance unconditionally (purchases, refunds, bonuses).
func (s *Service) Credit(ctx context.Context, userID string, amount int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := s.repo.AddCredits(ctx, userID, amount); err != nil {
		return fmt.Errorf("add credits: %w", err)
	}
	return nil
}

// Record appends an immutable ledger row. Usage entries are stored with a
// negative amount; everything else positive, so a user's entries sum to
// their balance delta.
func (s *Service) Record(ctx context.Context, userID string, kind models.TransactionKind, amount int, externalRef string, metadata map[string]string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	signed := amount
	if kind == models.TransactionUsage {
		signed = -amount
	}

	tx := &models.TransactionDB{
		ID:          uuid.NewString(),
		UserID:      userID,
		Kind:        kind,
		Amount:      signed,
		ExternalRef: externalRef,
		Metadata:    metadata,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.InsertTransaction(ctx, tx); err != nil {
		return fmt.Errorf("record %s transaction: %w", kind, err)
	}
	return nil
}

// History returns the most recent ledger entries, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListTransactions(ctx, userID, limit)
}
