package generation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/ThanosKa/magic-room-sub001/internal/models"
)

var ErrNotFound = errors.New("generation not found")

type Repository interface {
	Create(ctx context.Context, gen *models.Generation) error
	GetByID(ctx context.Context, id string) (*models.Generation, error)
	SetStatus(ctx context.Context, id string, status models.GenerationStatus) error
	Complete(ctx context.Context, id string, status models.GenerationStatus, outputURLs []string, errMsg string) error
}

type GenerationRepository struct {
	db *bun.DB
}

func NewGenerationRepository(db *bun.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

func (r *GenerationRepository) Create(ctx context.Context, gen *models.Generation) error {
	genDB := models.GenerationFromDomain(gen)
	genDB.CreatedAt = time.Now()
	_, err := r.db.NewInsert().Model(genDB).Exec(ctx)
	return err
}

func (r *GenerationRepository) GetByID(ctx context.Context, id string) (*models.Generation, error) {
	genDB := new(models.GenerationDB)
	err := r.db.NewSelect().
		Model(genDB).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return genDB.ToGeneration(), nil
}

func (r *GenerationRepository) SetStatus(ctx context.Context, id string, status models.GenerationStatus) error {
	_, err := r.db.NewUpdate().
		Model((*models.GenerationDB)(nil)).
		Set("status = ?", status).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// Complete records a terminal state together with its outputs or error.
func (r *GenerationRepository) Complete(ctx context.Context, id string, status models.GenerationStatus, outputURLs []string, errMsg string) error {
	now := time.Now()
	genDB := &models.GenerationDB{
		ID:          id,
		Status:      status,
		OutputURLs:  outputURLs,
		Error:       errMsg,
		CompletedAt: &now,
	}
	_, err := r.db.NewUpdate().
		Model(genDB).
		Column("status", "output_urls", "error", "completed_at").
		WherePK().
		Exec(ctx)
	return err
}
