package partner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	contractx "github.com/nexusfin/loan-orchestrator/agent/contract"
)

func newTestClients(t *testing.T, handler http.Handler) (*Clients, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := Config{
		CRMURL:    srv.URL,
		CreditURL: srv.URL,
		OfferURL:  srv.URL,
		DocURL:    srv.URL,
		Timeout:   2 * time.Second,
	}
	return NewClients(cfg), srv
}

func TestVerifyIdentityVerified(t *testing.T) {
	var gotPAN string
	clients, _ := newTestClients(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verify-kyc" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		gotPAN = in["pan"]
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "verified",
			"name":    "Priya Sharma",
			"phone":   "9876543210",
			"address": "42 MG Road, Pune",
		})
	}))

	rec, err := clients.CRM.VerifyIdentity(context.Background(), "abcde1234f")
	if err != nil {
		t.Fatalf("VerifyIdentity: %v", err)
	}
	if gotPAN != "abcde1234f" {
		t.Errorf("sent pan %q", gotPAN)
	}
	if !rec.Verified || rec.Name != "Priya Sharma" || rec.PAN != "ABCDE1234F" {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestVerifyIdentityNotFoundIsCleanRejection(t *testing.T) {
	clients, _ := newTestClients(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_found"})
	}))

	rec, err := clients.CRM.VerifyIdentity(context.Background(), "ZZZZZ9999Z")
	if err != nil {
		t.Fatalf("a miss must not be an error, got %v", err)
	}
	if rec.Verified {
		t.Error("record should not be verified")
	}
}

func TestServerFaultWrapsServiceUnavailable(t *testing.T) {
	clients, _ := newTestClients(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	if _, err := clients.Credit.Score(context.Background(), "ABCDE1234F"); !errors.Is(err, contractx.ErrServiceUnavailable) {
		t.Errorf("want ErrServiceUnavailable, got %v", err)
	}
	if _, err := clients.Offer.PreApprovedLimit(context.Background(), "ABCDE1234F"); !errors.Is(err, contractx.ErrServiceUnavailable) {
		t.Errorf("want ErrServiceUnavailable, got %v", err)
	}
}

func TestUnreachableServiceWrapsServiceUnavailable(t *testing.T) {
	cfg := Config{
		CRMURL:  "http://127.0.0.1:1",
		Timeout: 200 * time.Millisecond,
	}
	clients := NewClients(cfg)

	if _, err := clients.CRM.VerifyIdentity(context.Background(), "ABCDE1234F"); !errors.Is(err, contractx.ErrServiceUnavailable) {
		t.Errorf("want ErrServiceUnavailable, got %v", err)
	}
}

func TestCreditScore(t *testing.T) {
	clients, _ := newTestClients(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]int{"credit_score": 745})
	}))

	score, err := clients.Credit.Score(context.Background(), "ABCDE1234F")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score != 745 {
		t.Errorf("score = %d, want 745", score)
	}
}

func TestPreApprovedLimit(t *testing.T) {
	clients, _ := newTestClients(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]int64{"pre_approved_limit": 300000})
	}))

	limit, err := clients.Offer.PreApprovedLimit(context.Background(), "ABCDE1234F")
	if err != nil {
		t.Fatalf("PreApprovedLimit: %v", err)
	}
	if limit != 300000 {
		t.Errorf("limit = %d, want 300000", limit)
	}
}

func TestIssueSanctionLetter(t *testing.T) {
	var got SanctionRequest
	clients, _ := newTestClients(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://docs.example.com/sanction/abc123.pdf"})
	}))

	url, err := clients.Doc.IssueSanctionLetter(context.Background(), SanctionRequest{
		Name:         "Priya Sharma",
		PAN:          "ABCDE1234F",
		Amount:       250000,
		InterestRate: 10.5,
	})
	if err != nil {
		t.Fatalf("IssueSanctionLetter: %v", err)
	}
	if url != "https://docs.example.com/sanction/abc123.pdf" {
		t.Errorf("url = %q", url)
	}
	if got.Amount != 250000 || got.InterestRate != 10.5 {
		t.Errorf("request body %+v", got)
	}
}
