package tool

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/nexusfin/loan-orchestrator/agent/contract"
	"github.com/nexusfin/loan-orchestrator/agent/extract"
	"github.com/nexusfin/loan-orchestrator/agent/loanbook"
	"github.com/nexusfin/loan-orchestrator/agent/partner"
	"github.com/nexusfin/loan-orchestrator/agent/state"
	"github.com/nexusfin/loan-orchestrator/agent/underwriting"
)

/* ---------------------------- verify_identity ---------------------------- */

type VerifyIdentityTool struct {
	CRM *partner.CRMClient
}

func (t *VerifyIdentityTool) ID() string { return ToolVerifyIdentity }

func (t *VerifyIdentityTool) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolVerifyIdentity,
		Desc: "Verify the customer's PAN against CRM records and retrieve their registered details.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"pan": {Type: schema.String, Desc: "Customer PAN, format AAAAA9999A", Required: true},
		}),
	}
}

func (t *VerifyIdentityTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	pan := strings.ToUpper(strings.TrimSpace(argString(args, "pan")))
	if !extract.ValidPAN(pan) {
		return nil, fmt.Errorf("%w: pan %q is not in AAAAA9999A format", contractx.ErrInvalidArgs, pan)
	}

	rec, err := t.CRM.VerifyIdentity(ctx, pan)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{"verified": rec.Verified, "pan": pan}
	if rec.Verified {
		payload["name"] = rec.Name
		payload["phone"] = rec.Phone
		payload["address"] = rec.Address
	}
	return payload, nil
}

func (t *VerifyIdentityTool) Fold(st *state.SessionState, payload map[string]any, now time.Time) error {
	verified, _ := payload["verified"].(bool)
	if !verified {
		return nil
	}
	st.MarkVerified(
		argString(payload, "name"),
		argString(payload, "pan"),
		argString(payload, "phone"),
		argString(payload, "address"),
		now,
	)
	return nil
}

/* --------------------------- fetch_market_rates -------------------------- */

// MarketRatesTool serves the indicative personal-loan rate table quoted
// during sales conversations. The table is maintained here rather than
// fetched because the quoted band changes rarely.
type MarketRatesTool struct{}

func (t *MarketRatesTool) ID() string { return ToolFetchMarketRates }

func (t *MarketRatesTool) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolFetchMarketRates,
		Desc: "Fetch current personal-loan interest rates offered across the market for comparison.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}
}

func (t *MarketRatesTool) Invoke(_ context.Context, _ map[string]any) (map[string]any, error) {
	return map[string]any{
		"our_rate_from": underwriting.BaseRate,
		"market_rates": []map[string]any{
			{"lender": "HDFC Bank", "rate_from": 10.85},
			{"lender": "ICICI Bank", "rate_from": 10.99},
			{"lender": "SBI", "rate_from": 11.15},
			{"lender": "Axis Bank", "rate_from": 11.25},
		},
	}, nil
}

func (t *MarketRatesTool) Fold(*state.SessionState, map[string]any, time.Time) error { return nil }

/* ----------------------------- check_history ----------------------------- */

type CheckHistoryTool struct {
	Book loanbook.Book
}

func (t *CheckHistoryTool) ID() string { return ToolCheckHistory }

func (t *CheckHistoryTool) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolCheckHistory,
		Desc: "Look up whether the customer has a previous loan application with us.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"name": {Type: schema.String, Desc: "Customer full name", Required: true},
		}),
	}
}

func (t *CheckHistoryTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	name := strings.TrimSpace(argString(args, "name"))
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", contractx.ErrInvalidArgs)
	}

	rec, err := t.Book.MostRecentByName(ctx, name)
	if errors.Is(err, loanbook.ErrNoHistory) {
		return map[string]any{"found": false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrServiceUnavailable, err)
	}
	return map[string]any{
		"found":  true,
		"amount": rec.Amount,
		"status": rec.Status,
		"date":   rec.CreatedAt.Format("2006-01-02"),
	}, nil
}

func (t *CheckHistoryTool) Fold(*state.SessionState, map[string]any, time.Time) error { return nil }

/* ------------------------- evaluate_underwriting ------------------------- */

type EvaluateUnderwritingTool struct {
	Credit *partner.CreditBureauClient
	Offer  *partner.OfferMartClient
}

func (t *EvaluateUnderwritingTool) ID() string { return ToolEvaluateUnderwriting }

func (t *EvaluateUnderwritingTool) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolEvaluateUnderwriting,
		Desc: "Run the underwriting decision for the requested loan amount using the customer's credit score and pre-approved limit.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"pan":            {Type: schema.String, Desc: "Verified customer PAN", Required: true},
			"amount":         {Type: schema.Number, Desc: "Requested loan amount in rupees", Required: true},
			"monthly_salary": {Type: schema.Number, Desc: "Monthly salary in rupees, if the customer has shared it", Required: false},
		}),
	}
}

func (t *EvaluateUnderwritingTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	pan := strings.ToUpper(strings.TrimSpace(argString(args, "pan")))
	if !extract.ValidPAN(pan) {
		return nil, fmt.Errorf("%w: pan %q is not in AAAAA9999A format", contractx.ErrInvalidArgs, pan)
	}
	amount, ok := argInt64(args, "amount")
	if !ok || amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be a positive number", contractx.ErrInvalidArgs)
	}
	salary, _ := argInt64(args, "monthly_salary")
	if salary < 0 {
		return nil, fmt.Errorf("%w: monthly_salary must not be negative", contractx.ErrInvalidArgs)
	}

	score, err := t.Credit.Score(ctx, pan)
	if err != nil {
		return nil, err
	}
	limit, err := t.Offer.PreApprovedLimit(ctx, pan)
	if err != nil {
		return nil, err
	}

	outcome, err := underwriting.Evaluate(amount, score, limit, salary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrInvalidArgs, err)
	}

	payload := map[string]any{
		"status":             string(outcome.Status),
		"reason":             outcome.Reason,
		"credit_score":       score,
		"pre_approved_limit": limit,
		"amount":             amount,
	}
	if outcome.InterestRate > 0 {
		payload["interest_rate"] = outcome.InterestRate
	}
	if outcome.EstimatedEMI > 0 {
		payload["estimated_emi"] = outcome.EstimatedEMI
	}
	if outcome.MaxSupportable > 0 {
		payload["max_supportable_amount"] = outcome.MaxSupportable
	}
	return payload, nil
}

func (t *EvaluateUnderwritingTool) Fold(st *state.SessionState, payload map[string]any, now time.Time) error {
	status := underwriting.Status(argString(payload, "status"))
	score, _ := argInt64(payload, "credit_score")
	limit, _ := argInt64(payload, "pre_approved_limit")
	rate, _ := argFloat(payload, "interest_rate")

	if amount, ok := argInt64(payload, "amount"); ok {
		st.SetRequestedAmount(amount, now)
	}
	return st.AdvanceUnderwriting(status, int(score), limit, rate, now)
}

/* ------------------------- issue_sanction_letter ------------------------- */

type IssueSanctionLetterTool struct {
	Doc  *partner.DocumentClient
	Book loanbook.Book
}

func (t *IssueSanctionLetterTool) ID() string { return ToolIssueSanctionLetter }

func (t *IssueSanctionLetterTool) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolIssueSanctionLetter,
		Desc: "Generate the sanction letter for an approved loan and return its document link.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"name":          {Type: schema.String, Desc: "Customer full name", Required: true},
			"pan":           {Type: schema.String, Desc: "Verified customer PAN", Required: true},
			"amount":        {Type: schema.Number, Desc: "Approved loan amount in rupees", Required: true},
			"interest_rate": {Type: schema.Number, Desc: "Approved interest rate percent", Required: true},
		}),
	}
}

func (t *IssueSanctionLetterTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	name := strings.TrimSpace(argString(args, "name"))
	pan := strings.ToUpper(strings.TrimSpace(argString(args, "pan")))
	amount, okAmount := argInt64(args, "amount")
	rate, okRate := argFloat(args, "interest_rate")
	if name == "" || !extract.ValidPAN(pan) || !okAmount || amount <= 0 || !okRate || rate <= 0 {
		return nil, fmt.Errorf("%w: name, pan, amount and interest_rate are required", contractx.ErrInvalidArgs)
	}

	url, err := t.Doc.IssueSanctionLetter(ctx, partner.SanctionRequest{
		Name:         name,
		PAN:          pan,
		Amount:       amount,
		InterestRate: rate,
	})
	if err != nil {
		return nil, err
	}

	if t.Book != nil {
		rec := &loanbook.Record{
			Name:        name,
			PAN:         pan,
			Amount:      amount,
			Status:      string(underwriting.StatusApproved),
			SanctionURL: url,
		}
		if err := t.Book.Save(ctx, rec); err != nil {
			// The letter exists either way; the ledger write is retried on
			// the next application, not surfaced to the customer.
			return map[string]any{"url": url, "recorded": false}, nil
		}
	}
	return map[string]any{"url": url, "recorded": true}, nil
}

func (t *IssueSanctionLetterTool) Fold(st *state.SessionState, payload map[string]any, now time.Time) error {
	st.SetSanctionURL(argString(payload, "url"), now)
	return nil
}

/* ------------------------------ arg helpers ------------------------------ */

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// argInt64 coerces the numeric encodings a JSON tool-call argument may
// arrive in.
func argInt64(args map[string]any, key string) (int64, bool) {
	switch v := args[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func argFloat(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
