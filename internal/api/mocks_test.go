package api

import (
	"context"
	"errors"
	"sync"

	"github.com/ThanosKa/magic-room-sub001/internal/models"
	"github.com/ThanosKa/magic-room-sub001/internal/user"
)

// In-memory repositories shared by the handler tests.

type memLedgerRepo struct {
	mu       sync.Mutex
	balances map[string]int
	txs      []*models.TransactionDB
	// fail the next N AddCredits calls
	failCredits int
}

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{balances: make(map[string]int)}
}

func (m *memLedgerRepo) DeductCredits(_ context.Context, userID string, amount int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[userID] < amount {
		return false, nil
	}
	m.balances[userID] -= amount
	return true, nil
}

func (m *memLedgerRepo) AddCredits(_ context.Context, userID string, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCredits > 0 {
		m.failCredits--
		return errors.New("storage unavailable")
	}
	m.balances[userID] += amount
	return nil
}

func (m *memLedgerRepo) InsertTransaction(_ context.Context, tx *models.TransactionDB) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs = append(m.txs, tx)
	return nil
}

func (m *memLedgerRepo) ListTransactions(_ context.Context, userID string, limit int) ([]*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Transaction
	for _, tx := range m.txs {
		if tx.UserID == userID {
			out = append(out, tx.ToTransaction())
		}
	}
	return out, nil
}

func (m *memLedgerRepo) balance(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID]
}

func (m *memLedgerRepo) transactions() []*models.TransactionDB {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.TransactionDB(nil), m.txs...)
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUserRepo(users ...*models.User) *memUserRepo {
	repo := &memUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) GetByClerkID(_ context.Context, clerkID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ClerkID == clerkID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (m *memUserRepo) Create(_ context.Context, u *models.User) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.ClerkID == u.ClerkID {
			return false, nil
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return true, nil
}
