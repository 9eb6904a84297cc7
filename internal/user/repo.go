package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/ThanosKa/magic-room-sub001/internal/models"
)

var ErrNotFound = errors.New("user not found")

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByClerkID(ctx context.Context, clerkID string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (created bool, err error)
}

type UserRepository struct {
	db *bun.DB
}

func NewUserRepository(db *bun.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	userDB := new(models.UserDB)
	err := r.db.NewSelect().
		Model(userDB).
		Where("id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return userDB.ToUser(), nil
}

func (r *UserRepository) GetByClerkID(ctx context.Context, clerkID string) (*models.User, error) {
	userDB := new(models.UserDB)
	err := r.db.NewSelect().
		Model(userDB).
		Where("clerk_id = ?", clerkID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return userDB.ToUser(), nil
}

// Create inserts the user, skipping the insert when another delivery of the
// same sign-up event already created the row. The unique index on clerk_id
// makes the conflict detection authoritative.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (bool, error) {
	userDB := models.UserFromDomain(user)
	if userDB.ID == "" {
		userDB.ID = uuid.NewString()
	}
	userDB.CreatedAt = time.Now()
	userDB.UpdatedAt = time.Now()

	res, err := r.db.NewInsert().
		Model(userDB).
		On("CONFLICT (clerk_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	user.ID = userDB.ID
	return affected > 0, nil
}
