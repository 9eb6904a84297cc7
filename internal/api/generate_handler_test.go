package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/ThanosKa/magic-room-sub001/internal/auth"
	"github.com/ThanosKa/magic-room-sub001/internal/generation"
	"github.com/ThanosKa/magic-room-sub001/internal/inference"
	"github.com/ThanosKa/magic-room-sub001/internal/ledger"
	"github.com/ThanosKa/magic-room-sub001/internal/models"
	"github.com/ThanosKa/magic-room-sub001/internal/ratelimit"
	"github.com/ThanosKa/magic-room-sub001/internal/user"
)

type scriptedGenerator struct {
	outputs []string
	err     error
}

func (s *scriptedGenerator) Generate(_ context.Context, _ inference.GenerateInput) ([]string, error) {
	return s.outputs, s.err
}

type denyAllLimiter struct{}

func (denyAllLimiter) Check(_ context.Context, _ string) ratelimit.Result {
	return ratelimit.Result{Allowed: false, ResetAt: time.Now().Add(42 * time.Second)}
}

type stubUserService struct {
	dbUser *models.User
}

func (s *stubUserService) GetOrCreate(_ context.Context, _, _, _, _ string) (*models.User, error) {
	return s.dbUser, nil
}

func (s *stubUserService) GetByClerkID(_ context.Context, _ string) (*models.User, error) {
	return s.dbUser, nil
}

func (s *stubUserService) GetByID(_ context.Context, _ string) (*models.User, error) {
	return s.dbUser, nil
}

type generateFixture struct {
	handler  *GenerateHandler
	orch     *generation.Orchestrator
	ledgerDB *memLedgerRepo
	genRepo  *memGenerationRepo
	dbUser   *models.User
}

func newGenerateFixture(credits int, gen *scriptedGenerator) *generateFixture {
	return newGenerateFixtureWithLimiter(credits, gen, ratelimit.NewLimiter(nil, 5, time.Minute))
}

func newGenerateFixtureWithLimiter(credits int, gen *scriptedGenerator, limiter generation.RateLimiter) *generateFixture {
	ledgerDB := newMemLedgerRepo()
	ledgerDB.balances["u1"] = credits
	genRepo := newMemGenerationRepo()
	orch := generation.NewOrchestrator(
		genRepo,
		ledger.NewService(ledgerDB),
		limiter,
		gen,
		nopStore{},
	)
	return &generateFixture{
		handler:  NewGenerateHandler(orch),
		orch:     orch,
		ledgerDB: ledgerDB,
		genRepo:  genRepo,
		dbUser:   &models.User{ID: "u1", ClerkID: "user_abc", Email: "a@b.c", Credits: credits},
	}
}

// serve pushes the request through the auth and user middlewares the real
// router applies.
func (f *generateFixture) serve(req *http.Request, h http.HandlerFunc) *httptest.ResponseRecorder {
	ctx := context.WithValue(req.Context(), auth.UserContextKey, &auth.SessionUser{ClerkID: f.dbUser.ClerkID, Email: f.dbUser.Email})
	rec := httptest.NewRecorder()
	wrapped := user.Middleware(&stubUserService{dbUser: f.dbUser})(h)
	wrapped.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func generateBody(t *testing.T) []byte {
	t.Helper()
	// Enough of a PNG header for content type sniffing.
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
	body, err := json.Marshal(map[string]string{
		"base64Image": "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		"roomType":    "living_room",
		"theme":       "modern",
	})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestGenerateEndpointSuccess(t *testing.T) {
	f := newGenerateFixture(3, &scriptedGenerator{outputs: []string{"https://cdn.example.com/out.png"}})

	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewReader(generateBody(t)))
	rec := f.serve(req, f.handler.Generate)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp generateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.PredictionID == "" || len(resp.OutputURLs) != 1 {
		t.Errorf("response = %+v", resp)
	}
	if bal := f.ledgerDB.balance("u1"); bal != 2 {
		t.Errorf("balance = %d, want 2 after a standard generation", bal)
	}
}

func TestGenerateEndpointInsufficientCredits(t *testing.T) {
	f := newGenerateFixture(0, &scriptedGenerator{})

	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewReader(generateBody(t)))
	rec := f.serve(req, f.handler.Generate)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}
	var resp insufficientCreditsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Credits != 0 {
		t.Errorf("Credits = %d, want the user's balance", resp.Credits)
	}
}

func TestGenerateEndpointRateLimited(t *testing.T) {
	f := newGenerateFixtureWithLimiter(3, &scriptedGenerator{outputs: []string{"x"}}, denyAllLimiter{})

	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewReader(generateBody(t)))
	rec := f.serve(req, f.handler.Generate)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	var resp rateLimitedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if _, err := time.Parse(time.RFC3339, resp.ResetAt); err != nil {
		t.Errorf("resetAt %q is not RFC3339: %v", resp.ResetAt, err)
	}
}

func TestGenerateEndpointProviderFailure(t *testing.T) {
	f := newGenerateFixture(1, &scriptedGenerator{err: errors.New("NSFW content detected")})

	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewReader(generateBody(t)))
	rec := f.serve(req, f.handler.Generate)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Your credit has been refunded.") {
		t.Errorf("body %q should mention the refund", rec.Body.String())
	}
	if bal := f.ledgerDB.balance("u1"); bal != 1 {
		t.Errorf("balance = %d, want 1 restored", bal)
	}
}

func TestGenerateEndpointBadImage(t *testing.T) {
	f := newGenerateFixture(3, &scriptedGenerator{})

	body, _ := json.Marshal(map[string]string{
		"base64Image": "not!!base64",
		"roomType":    "living_room",
		"theme":       "modern",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewReader(body))
	rec := f.serve(req, f.handler.Generate)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGenerateEndpointUnauthenticated(t *testing.T) {
	f := newGenerateFixture(3, &scriptedGenerator{})

	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewReader(generateBody(t)))
	rec := httptest.NewRecorder()
	f.handler.Generate(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestGetStatusEndpoint(t *testing.T) {
	f := newGenerateFixture(0, &scriptedGenerator{})
	gen := &models.Generation{
		ID: "gen-1", UserID: "u1", Status: models.GenerationSucceeded,
		OutputURLs: []string{"https://cdn.example.com/out.png"},
	}
	if err := f.genRepo.Create(context.Background(), gen); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/generate/gen-1", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "gen-1"})
	rec := f.serve(req, f.handler.GetStatus)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp generationStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "succeeded" || len(resp.OutputURLs) != 1 {
		t.Errorf("response = %+v", resp)
	}
}

func TestGetStatusEndpointNotFound(t *testing.T) {
	f := newGenerateFixture(0, &scriptedGenerator{})

	req := httptest.NewRequest(http.MethodGet, "/api/generate/missing", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "missing"})
	rec := f.serve(req, f.handler.GetStatus)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
