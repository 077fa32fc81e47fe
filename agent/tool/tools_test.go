package tool

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	contractx "github.com/nexusfin/loan-orchestrator/agent/contract"
	"github.com/nexusfin/loan-orchestrator/agent/loanbook"
	"github.com/nexusfin/loan-orchestrator/agent/partner"
	"github.com/nexusfin/loan-orchestrator/agent/underwriting"
)

func partnerClients(t *testing.T, handler http.HandlerFunc) *partner.Clients {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return partner.NewClients(partner.Config{
		CRMURL:    srv.URL,
		CreditURL: srv.URL,
		OfferURL:  srv.URL,
		DocURL:    srv.URL,
		Timeout:   2 * time.Second,
	})
}

func TestVerifyIdentityRejectsMalformedPANWithoutCalling(t *testing.T) {
	called := false
	clients := partnerClients(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	vt := &VerifyIdentityTool{CRM: clients.CRM}

	_, err := vt.Invoke(context.Background(), map[string]any{"pan": "12345"})
	if !errors.Is(err, contractx.ErrInvalidArgs) {
		t.Fatalf("want ErrInvalidArgs, got %v", err)
	}
	if called {
		t.Error("a malformed pan must never reach the CRM")
	}
}

func TestVerifyIdentityFoldMarksVerified(t *testing.T) {
	clients := partnerClients(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "verified", "name": "Priya Sharma",
			"phone": "9876543210", "address": "42 MG Road, Pune",
		})
	})
	vt := &VerifyIdentityTool{CRM: clients.CRM}
	st := newSession(t)

	payload, err := vt.Invoke(context.Background(), map[string]any{"pan": "abcde1234f"})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if err := vt.Fold(st, payload, now); err != nil {
		t.Fatalf("Fold: %v", err)
	}
	if !st.IdentityVerified || st.CustomerName != "Priya Sharma" || st.IdentityNumber != "ABCDE1234F" {
		t.Errorf("state after fold: %+v", st)
	}
}

func TestVerifyIdentityFoldSkipsUnverified(t *testing.T) {
	vt := &VerifyIdentityTool{}
	st := newSession(t)

	if err := vt.Fold(st, map[string]any{"verified": false, "pan": "ABCDE1234F"}, now); err != nil {
		t.Fatalf("Fold: %v", err)
	}
	if st.IdentityVerified {
		t.Error("an unverified payload must not mark the session verified")
	}
}

func TestEvaluateUnderwritingApprovedWithinLimit(t *testing.T) {
	clients := partnerClients(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/get-score":
			_ = json.NewEncoder(w).Encode(map[string]int{"credit_score": 745})
		case "/get-limit":
			_ = json.NewEncoder(w).Encode(map[string]int64{"pre_approved_limit": 300000})
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	})
	et := &EvaluateUnderwritingTool{Credit: clients.Credit, Offer: clients.Offer}
	st := newSession(t)

	payload, err := et.Invoke(context.Background(), map[string]any{
		"pan": "ABCDE1234F", "amount": float64(250000),
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if payload["status"] != string(underwriting.StatusApproved) {
		t.Fatalf("status = %v", payload["status"])
	}
	if payload["interest_rate"] != underwriting.BaseRate {
		t.Errorf("interest_rate = %v", payload["interest_rate"])
	}

	if err := et.Fold(st, payload, now); err != nil {
		t.Fatalf("Fold: %v", err)
	}
	if st.Underwriting != underwriting.StatusApproved || st.ApprovedRate != underwriting.BaseRate {
		t.Errorf("state after fold: status=%s rate=%v", st.Underwriting, st.ApprovedRate)
	}
	if st.CreditScore != 745 || st.PreApprovedLimit != 300000 || st.LoanAmount != 250000 {
		t.Errorf("bureau facts not folded: %+v", st)
	}
}

func TestEvaluateUnderwritingNeedSalary(t *testing.T) {
	clients := partnerClients(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/get-score":
			_ = json.NewEncoder(w).Encode(map[string]int{"credit_score": 745})
		case "/get-limit":
			_ = json.NewEncoder(w).Encode(map[string]int64{"pre_approved_limit": 200000})
		}
	})
	et := &EvaluateUnderwritingTool{Credit: clients.Credit, Offer: clients.Offer}

	payload, err := et.Invoke(context.Background(), map[string]any{
		"pan": "ABCDE1234F", "amount": float64(250000),
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if payload["status"] != string(underwriting.StatusNeedSalary) {
		t.Errorf("status = %v, want NEED_SALARY", payload["status"])
	}
}

func TestEvaluateUnderwritingBureauDownIsUnavailable(t *testing.T) {
	clients := partnerClients(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	et := &EvaluateUnderwritingTool{Credit: clients.Credit, Offer: clients.Offer}

	_, err := et.Invoke(context.Background(), map[string]any{
		"pan": "ABCDE1234F", "amount": float64(100000),
	})
	if !errors.Is(err, contractx.ErrServiceUnavailable) {
		t.Errorf("want ErrServiceUnavailable, got %v", err)
	}
}

func TestCheckHistoryMissIsSuccess(t *testing.T) {
	ct := &CheckHistoryTool{Book: loanbook.NewMemoryBook()}

	payload, err := ct.Invoke(context.Background(), map[string]any{"name": "Nobody"})
	if err != nil {
		t.Fatalf("a miss must be a successful payload, got %v", err)
	}
	if found, _ := payload["found"].(bool); found {
		t.Errorf("payload = %v", payload)
	}
}

func TestIssueSanctionLetterRecordsAndFolds(t *testing.T) {
	clients := partnerClients(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://docs.example.com/sanction/xyz.pdf"})
	})
	book := loanbook.NewMemoryBook()
	it := &IssueSanctionLetterTool{Doc: clients.Doc, Book: book}
	st := newSession(t)

	payload, err := it.Invoke(context.Background(), map[string]any{
		"name": "Priya Sharma", "pan": "ABCDE1234F",
		"amount": float64(250000), "interest_rate": 10.5,
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if err := it.Fold(st, payload, now); err != nil {
		t.Fatalf("Fold: %v", err)
	}
	if st.SanctionURL != "https://docs.example.com/sanction/xyz.pdf" {
		t.Errorf("sanction url = %q", st.SanctionURL)
	}

	rec, err := book.MostRecentByName(context.Background(), "Priya Sharma")
	if err != nil {
		t.Fatalf("MostRecentByName: %v", err)
	}
	if rec.Amount != 250000 || rec.Status != string(underwriting.StatusApproved) {
		t.Errorf("recorded %+v", rec)
	}
}

func TestArgInt64Coercions(t *testing.T) {
	args := map[string]any{
		"float":  float64(250000),
		"int":    int(42),
		"string": "99000",
		"junk":   "not a number",
	}
	if v, ok := argInt64(args, "float"); !ok || v != 250000 {
		t.Errorf("float: %v %v", v, ok)
	}
	if v, ok := argInt64(args, "int"); !ok || v != 42 {
		t.Errorf("int: %v %v", v, ok)
	}
	if v, ok := argInt64(args, "string"); !ok || v != 99000 {
		t.Errorf("string: %v %v", v, ok)
	}
	if _, ok := argInt64(args, "junk"); ok {
		t.Error("junk string must not coerce")
	}
	if _, ok := argInt64(args, "missing"); ok {
		t.Error("missing key must not coerce")
	}
}
