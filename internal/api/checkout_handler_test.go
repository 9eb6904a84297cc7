package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stripe/stripe-go/v84"

	"github.com/ThanosKa/magic-room-sub001/internal/billing"
	"github.com/ThanosKa/magic-room-sub001/internal/models"
)

type stubCheckout struct {
	gotUserID  string
	gotPackage *billing.CreditPackage
	session    *stripe.CheckoutSession
	err        error
}

func (s *stubCheckout) CreateCheckoutSession(_ context.Context, userID string, pkg *billing.CreditPackage) (*stripe.CheckoutSession, error) {
	s.gotUserID = userID
	s.gotPackage = pkg
	return s.session, s.err
}

func postCheckout(t *testing.T, handler *CheckoutHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	f := &generateFixture{dbUser: &models.User{ID: "u1", ClerkID: "user_abc", Email: "a@b.c"}}
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", strings.NewReader(body))
	return f.serve(req, handler.CreateCheckout)
}

func TestCreateCheckout(t *testing.T) {
	stub := &stubCheckout{session: &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/cs_1"}}
	handler := NewCheckoutHandler(stub)

	rec := postCheckout(t, handler, `{"packageId":"pro"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp createCheckoutResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.URL != "https://checkout.stripe.com/cs_1" || resp.SessionID != "cs_1" {
		t.Errorf("response = %+v", resp)
	}
	if stub.gotUserID != "u1" {
		t.Errorf("userID = %q, want u1", stub.gotUserID)
	}
	if stub.gotPackage == nil || stub.gotPackage.ID != "pro" {
		t.Errorf("package = %+v, want pro", stub.gotPackage)
	}
}

func TestCreateCheckoutBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"missing package", `{}`, http.StatusBadRequest},
		{"unknown package", `{"packageId":"mega"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCheckoutHandler(&stubCheckout{})
			rec := postCheckout(t, handler, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestCreateCheckoutStripeFailure(t *testing.T) {
	handler := NewCheckoutHandler(&stubCheckout{err: errors.New("stripe is down")})

	rec := postCheckout(t, handler, `{"packageId":"starter"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
