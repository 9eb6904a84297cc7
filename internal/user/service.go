package user

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/ThanosKa/magic-room-sub001/internal/ledger"
	"github.com/ThanosKa/magic-room-sub001/internal/models"
)

type Service interface {
	GetOrCreate(ctx context.Context, clerkID, email, firstName, lastName string) (*models.User, error)
	GetByClerkID(ctx context.Context, clerkID string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type UserService struct {
	repo        Repository
	ledger      *ledger.Service
	signupBonus int
}

func NewUserService(repo Repository, ledgerSvc *ledger.Service, signupBonus int) *UserService {
	return &UserService{
		repo:        repo,
		ledger:      ledgerSvc,
		signupBonus: signupBonus,
	}
}

// GetOrCreate resolves the local record for a Clerk identity, creating it on
// first sight. Creation is idempotent: replayed sign-up events and the first
// authenticated request racing the webhook both converge on one row, and the
// signup bonus is granted only by whichever call actually inserted it.
func (s *UserService) GetOrCreate(ctx context.Context, clerkID, email, firstName, lastName string) (*models.User, error) {
	existing, err := s.repo.GetByClerkID(ctx, clerkID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	newUser := &models.User{
		ClerkID:   clerkID,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Credits:   0,
	}

	created, err := s.repo.Create(ctx, newUser)
	if err != nil {
		return nil, err
	}
	if !created {
		// Lost the race to a concurrent creation; the winner granted the bonus.
		return s.repo.GetByClerkID(ctx, clerkID)
	}

	if s.signupBonus > 0 {
		if err := s.ledger.Credit(ctx, newUser.ID, s.signupBonus); err != nil {
			return nil, err
		}
		if err := s.ledger.Record(ctx, newUser.ID, models.TransactionBonus, s.signupBonus, "", map[string]string{"reason": "signup"}); err != nil {
			log.Error().Err(err).Str("user_id", newUser.ID).Msg("failed to record signup bonus transaction")
		}
		newUser.Credits = s.signupBonus
	}

	return newUser, nil
}

func (s *UserService) GetByClerkID(ctx context.Context, clerkID string) (*models.User, error) {
	return s.repo.GetByClerkID(ctx, clerkID)
}

func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}
