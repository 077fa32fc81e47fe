// Package state holds the per-conversation mutable record and its stores.
package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/nexusfin/loan-orchestrator/agent/contract"
	"github.com/nexusfin/loan-orchestrator/agent/extract"
	"github.com/nexusfin/loan-orchestrator/agent/underwriting"
)

var (
	ErrInvalidThread = errors.New("thread id is empty")
	ErrStatusValue   = errors.New("invalid underwriting status")
)

// SessionState is the single source of truth for one conversation thread.
// Created on first message for a thread id, mutated by every turn, never
// explicitly destroyed. Transcript ordering is authoritative for "what
// happened when".
type SessionState struct {
	ThreadID   string              `json:"thread_id"`
	Transcript []contractx.Message `json:"transcript,omitempty"`

	CustomerName    string `json:"customer_name,omitempty"`
	IdentityNumber  string `json:"identity_number,omitempty"`
	Phone           string `json:"phone,omitempty"`
	Address         string `json:"address,omitempty"`
	LoanAmount      int64  `json:"loan_amount,omitempty"`
	RequestedTenure string `json:"requested_tenure,omitempty"`
	MonthlySalary   int64  `json:"monthly_salary,omitempty"`

	// IdentityVerified, once true, is never reset within a session.
	IdentityVerified bool `json:"identity_verified"`

	CreditScore      int                  `json:"credit_score,omitempty"`
	PreApprovedLimit int64                `json:"pre_approved_limit,omitempty"`
	Underwriting     underwriting.Status  `json:"underwriting_status"`
	ApprovedRate     float64              `json:"approved_interest_rate,omitempty"`
	SanctionURL      string               `json:"sanction_url,omitempty"`
	LastDecision     contractx.WorkerType `json:"last_router_decision,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewSessionState(threadID string, now time.Time) *SessionState {
	return &SessionState{
		ThreadID:     threadID,
		Underwriting: underwriting.StatusPending,
		UpdatedAt:    now.UTC(),
	}
}

func (s *SessionState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

/* ------------------------------ Transcript ------------------------------ */

func (s *SessionState) AppendUser(text string, now time.Time) {
	s.Transcript = append(s.Transcript, contractx.Message{
		Kind:    contractx.MessageUser,
		Content: text,
		At:      now.UTC(),
	})
}

func (s *SessionState) AppendWorker(worker contractx.WorkerType, text string, now time.Time) {
	s.Transcript = append(s.Transcript, contractx.Message{
		Kind:    contractx.MessageWorker,
		Worker:  worker,
		Content: text,
		At:      now.UTC(),
	})
}

func (s *SessionState) AppendToolRequests(worker contractx.WorkerType, reqs []contractx.ToolRequest, now time.Time) {
	s.Transcript = append(s.Transcript, contractx.Message{
		Kind:         contractx.MessageToolRequest,
		Worker:       worker,
		ToolRequests: reqs,
		At:           now.UTC(),
	})
}

func (s *SessionState) AppendToolResult(res contractx.ToolResult, now time.Time) {
	s.Transcript = append(s.Transcript, contractx.Message{
		Kind:       contractx.MessageToolResult,
		ToolResult: &res,
		At:         now.UTC(),
	})
}

// LatestUserMessage returns the content of the most recent user entry.
func (s *SessionState) LatestUserMessage() string {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Kind == contractx.MessageUser {
			return s.Transcript[i].Content
		}
	}
	return ""
}

// RecentWindow returns up to n trailing transcript entries.
func (s *SessionState) RecentWindow(n int) []contractx.Message {
	if n <= 0 || len(s.Transcript) <= n {
		return s.Transcript
	}
	return s.Transcript[len(s.Transcript)-n:]
}

/* ------------------------------ Mutations ------------------------------- */

// AbsorbUserMessage folds deterministically extractable facts from a raw
// user message into the session, before routing, so the routing predicates
// see this turn's facts. Two guards keep ambiguous digit runs from landing
// in the wrong field: a figure only replaces an already-known loan amount
// when the text names it as one, and a figure only counts as salary when
// salary is what underwriting is waiting for or the text says so.
func (s *SessionState) AbsorbUserMessage(text string, now time.Time) {
	if amount, ok := extract.LoanAmount(text); ok {
		if s.LoanAmount == 0 || extract.HasAmountCue(text) {
			s.SetRequestedAmount(amount, now)
		}
	}
	if tenure, ok := extract.Tenure(text); ok {
		s.RequestedTenure = tenure
	}
	if pan, ok := extract.PAN(text); ok {
		s.SetProvisionalIdentity(pan, now)
	}
	if salary, ok := extract.MonthlySalary(text); ok {
		if s.Underwriting == underwriting.StatusNeedSalary || extract.HasSalaryCue(text) {
			s.SetMonthlySalary(salary, now)
		}
	}
}

// SetRequestedAmount records a requested loan amount. A brand-new amount
// re-enters underwriting at PENDING; repeating the current amount changes
// nothing. This is the only path by which a terminal status may move.
func (s *SessionState) SetRequestedAmount(amount int64, now time.Time) {
	if amount <= 0 || amount == s.LoanAmount {
		return
	}
	s.LoanAmount = amount
	s.Underwriting = underwriting.StatusPending
	s.ApprovedRate = 0
	s.Touch(now)
}

// SetMonthlySalary records the applicant's stated monthly salary.
func (s *SessionState) SetMonthlySalary(salary int64, now time.Time) {
	if salary <= 0 || salary == s.MonthlySalary {
		return
	}
	s.MonthlySalary = salary
	s.Touch(now)
}

// SetProvisionalIdentity records an extracted identity number. It never
// overwrites a tool-verified identity.
func (s *SessionState) SetProvisionalIdentity(pan string, now time.Time) {
	if s.IdentityVerified || strings.TrimSpace(pan) == "" {
		return
	}
	s.IdentityNumber = strings.ToUpper(strings.TrimSpace(pan))
	s.Touch(now)
}

// MarkVerified applies a successful identity-verification result. The
// verified flag is sticky for the remainder of the session.
func (s *SessionState) MarkVerified(name, pan, phone, address string, now time.Time) {
	s.IdentityVerified = true
	if name != "" {
		s.CustomerName = name
	}
	if pan != "" {
		s.IdentityNumber = strings.ToUpper(pan)
	}
	if phone != "" {
		s.Phone = phone
	}
	if address != "" {
		s.Address = address
	}
	s.Touch(now)
}

// AdvanceUnderwriting moves the status along the allowed transitions:
// PENDING -> {APPROVED, REJECTED, NEED_SALARY} and NEED_SALARY ->
// {APPROVED, REJECTED}. A terminal status never regresses here; re-entry
// happens only through SetRequestedAmount. Disallowed transitions are
// reported, not applied.
func (s *SessionState) AdvanceUnderwriting(next underwriting.Status, score int, limit int64, rate float64, now time.Time) error {
	if !next.Valid() {
		return fmt.Errorf("%w: %q", ErrStatusValue, next)
	}
	if score > 0 {
		s.CreditScore = score
	}
	if limit > 0 {
		s.PreApprovedLimit = limit
	}

	cur := s.Underwriting
	switch {
	case cur == next:
		// no movement
	case cur.Terminal():
		return fmt.Errorf("%w: %s -> %s without a new requested amount", ErrStatusValue, cur, next)
	case cur == underwriting.StatusNeedSalary && next == underwriting.StatusPending:
		return fmt.Errorf("%w: %s -> %s", ErrStatusValue, cur, next)
	default:
		s.Underwriting = next
	}

	if s.Underwriting == underwriting.StatusApproved && rate > 0 {
		s.ApprovedRate = rate
	}
	s.Touch(now)
	return nil
}

// SetSanctionURL records the issued document reference.
func (s *SessionState) SetSanctionURL(url string, now time.Time) {
	if url == "" {
		return
	}
	s.SanctionURL = url
	s.Touch(now)
}

// Snapshot flattens the session into the structured context a policy oracle
// receives, with the trailing transcript window attached.
func (s *SessionState) Snapshot(window int) contractx.WorkerContext {
	return contractx.WorkerContext{
		CustomerName:     s.CustomerName,
		IdentityNumber:   s.IdentityNumber,
		LoanAmount:       s.LoanAmount,
		RequestedTenure:  s.RequestedTenure,
		MonthlySalary:    s.MonthlySalary,
		IdentityVerified: s.IdentityVerified,
		CreditScore:      s.CreditScore,
		PreApprovedLimit: s.PreApprovedLimit,
		Underwriting:     string(s.Underwriting),
		ApprovedRate:     s.ApprovedRate,
		SanctionURL:      s.SanctionURL,
		RecentTranscript: s.RecentWindow(window),
	}
}

func (s *SessionState) Validate() error {
	if strings.TrimSpace(s.ThreadID) == "" {
		return ErrInvalidThread
	}
	if !s.Underwriting.Valid() {
		return fmt.Errorf("%w: %q", ErrStatusValue, s.Underwriting)
	}
	if s.LoanAmount < 0 || s.MonthlySalary < 0 {
		return fmt.Errorf("%w: negative amount", contractx.ErrValidation)
	}
	return nil
}
