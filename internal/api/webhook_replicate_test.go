package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ThanosKa/magic-room-sub001/internal/dedup"
	"github.com/ThanosKa/magic-room-sub001/internal/generation"
	"github.com/ThanosKa/magic-room-sub001/internal/inference"
	"github.com/ThanosKa/magic-room-sub001/internal/ledger"
	"github.com/ThanosKa/magic-room-sub001/internal/models"
	"github.com/ThanosKa/magic-room-sub001/internal/ratelimit"
)

const webhookSecret = "whsec_replicate_test"

type memGenerationRepo struct {
	mu   sync.Mutex
	gens map[string]*models.Generation
}

func newMemGenerationRepo(gens ...*models.Generation) *memGenerationRepo {
	repo := &memGenerationRepo{gens: make(map[string]*models.Generation)}
	for _, gen := range gens {
		cp := *gen
		repo.gens[gen.ID] = &cp
	}
	return repo
}

func (m *memGenerationRepo) Create(_ context.Context, gen *models.Generation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *gen
	m.gens[gen.ID] = &cp
	return nil
}

func (m *memGenerationRepo) GetByID(_ context.Context, id string) (*models.Generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gen, ok := m.gens[id]
	if !ok {
		return nil, generation.ErrNotFound
	}
	cp := *gen
	return &cp, nil
}

func (m *memGenerationRepo) SetStatus(_ context.Context, id string, status models.GenerationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen, ok := m.gens[id]; ok {
		gen.Status = status
	}
	return nil
}

func (m *memGenerationRepo) Complete(_ context.Context, id string, status models.GenerationStatus, outputURLs []string, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	gen, ok := m.gens[id]
	if !ok {
		return generation.ErrNotFound
	}
	now := time.Now()
	gen.Status = status
	gen.OutputURLs = outputURLs
	gen.Error = errMsg
	gen.CompletedAt = &now
	return nil
}

type nopGenerator struct{}

func (nopGenerator) Generate(_ context.Context, _ inference.GenerateInput) ([]string, error) {
	return nil, nil
}

type nopStore struct{}

func (nopStore) Upload(_ context.Context, _ []byte, _, _ string) (string, string, error) {
	return "", "", nil
}

func (nopStore) Delete(_ context.Context, _ string) error { return nil }

type replicateFixture struct {
	handler  *ReplicateWebhookHandler
	ledgerDB *memLedgerRepo
	genRepo  *memGenerationRepo
}

func newReplicateFixture(gens ...*models.Generation) *replicateFixture {
	ledgerDB := newMemLedgerRepo()
	genRepo := newMemGenerationRepo(gens...)
	orch := generation.NewOrchestrator(
		genRepo,
		ledger.NewService(ledgerDB),
		ratelimit.NewLimiter(nil, 5, time.Minute),
		nopGenerator{},
		nopStore{},
	)
	handler := NewReplicateWebhookHandler(webhookSecret, orch, dedup.NewDeduplicator(newMemMarkerStore()))
	return &replicateFixture{handler: handler, ledgerDB: ledgerDB, genRepo: genRepo}
}

func postReplicateWebhook(t *testing.T, handler *ReplicateWebhookHandler, genID string, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/replicate?id="+genID, bytes.NewReader(body))
	req.Header.Set("x-replicate-signature", signature)
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)
	return rec
}

func pendingGeneration(id string) *models.Generation {
	return &models.Generation{
		ID:       id,
		UserID:   "u1",
		Status:   models.GenerationProcessing,
		RoomType: "bedroom",
		Theme:    "modern",
		Quality:  "standard",
	}
}

func TestReplicateWebhookSuccess(t *testing.T) {
	f := newReplicateFixture(pendingGeneration("gen-1"))
	body := []byte(`{"id":"p1","status":"succeeded","output":["https://cdn.example.com/out.png"]}`)

	rec := postReplicateWebhook(t, f.handler, "gen-1", body, inference.Sign(body, webhookSecret))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	gen, err := f.genRepo.GetByID(context.Background(), "gen-1")
	if err != nil {
		t.Fatal(err)
	}
	if gen.Status != models.GenerationSucceeded {
		t.Errorf("status = %s, want succeeded", gen.Status)
	}
	if len(gen.OutputURLs) != 1 {
		t.Errorf("outputs = %v, want one URL", gen.OutputURLs)
	}
}

func TestReplicateWebhookFailureRefunds(t *testing.T) {
	f := newReplicateFixture(pendingGeneration("gen-1"))
	body := []byte(`{"id":"p1","status":"failed","error":"model crashed"}`)

	rec := postReplicateWebhook(t, f.handler, "gen-1", body, inference.Sign(body, webhookSecret))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	if bal := f.ledgerDB.balance("u1"); bal != 1 {
		t.Errorf("balance = %d, want 1 refunded credit", bal)
	}
	gen, _ := f.genRepo.GetByID(context.Background(), "gen-1")
	if gen.Status != models.GenerationFailed {
		t.Errorf("status = %s, want failed", gen.Status)
	}
	if gen.Error != "model crashed" {
		t.Errorf("error = %q, want the provider message", gen.Error)
	}
}

func TestReplicateWebhookRetryAfterTransientFailure(t *testing.T) {
	f := newReplicateFixture(pendingGeneration("gen-1"))
	f.ledgerDB.failCredits = 1
	body := []byte(`{"id":"p1","status":"failed","error":"model crashed"}`)
	sig := inference.Sign(body, webhookSecret)

	// The failed delivery must not burn the dedup marker.
	if rec := postReplicateWebhook(t, f.handler, "gen-1", body, sig); rec.Code != http.StatusInternalServerError {
		t.Fatalf("first delivery: status = %d, want 500", rec.Code)
	}
	gen, _ := f.genRepo.GetByID(context.Background(), "gen-1")
	if gen.Status.Terminal() {
		t.Fatalf("status = %s after failed delivery, want non-terminal", gen.Status)
	}

	if rec := postReplicateWebhook(t, f.handler, "gen-1", body, sig); rec.Code != http.StatusOK {
		t.Fatalf("retry: status = %d", rec.Code)
	}
	if bal := f.ledgerDB.balance("u1"); bal != 1 {
		t.Errorf("balance = %d after retry, want 1 refunded credit", bal)
	}
	gen, _ = f.genRepo.GetByID(context.Background(), "gen-1")
	if gen.Status != models.GenerationFailed {
		t.Errorf("status = %s after retry, want failed", gen.Status)
	}
}

func TestReplicateWebhookInvalidSignature(t *testing.T) {
	f := newReplicateFixture(pendingGeneration("gen-1"))
	body := []byte(`{"id":"p1","status":"failed","error":"x"}`)

	tests := []struct {
		name      string
		signature string
	}{
		{"wrong secret", inference.Sign(body, "other-secret")},
		{"missing header", ""},
		{"garbage", "zzzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postReplicateWebhook(t, f.handler, "gen-1", body, tt.signature)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}

	// No mutation happened under any of the rejected deliveries.
	if bal := f.ledgerDB.balance("u1"); bal != 0 {
		t.Errorf("balance = %d, want 0", bal)
	}
	gen, _ := f.genRepo.GetByID(context.Background(), "gen-1")
	if gen.Status != models.GenerationProcessing {
		t.Errorf("status = %s, want processing untouched", gen.Status)
	}
}

func TestReplicateWebhookDuplicateDelivery(t *testing.T) {
	f := newReplicateFixture(pendingGeneration("gen-1"))
	body := []byte(`{"id":"p1","status":"failed","error":"model crashed"}`)
	sig := inference.Sign(body, webhookSecret)

	for i := 0; i < 3; i++ {
		if rec := postReplicateWebhook(t, f.handler, "gen-1", body, sig); rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d", i, rec.Code)
		}
	}

	if bal := f.ledgerDB.balance("u1"); bal != 1 {
		t.Errorf("balance = %d after 3 deliveries, want 1 (refunded once)", bal)
	}
}

func TestReplicateWebhookMissingGenerationID(t *testing.T) {
	f := newReplicateFixture()
	body := []byte(`{"id":"p1","status":"succeeded","output":["x"]}`)

	rec := postReplicateWebhook(t, f.handler, "", body, inference.Sign(body, webhookSecret))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestReplicateWebhookUnknownGeneration(t *testing.T) {
	f := newReplicateFixture()
	body := []byte(`{"id":"p1","status":"succeeded","output":["x"]}`)

	rec := postReplicateWebhook(t, f.handler, "missing", body, inference.Sign(body, webhookSecret))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
