// Package partner holds thin HTTP clients for the external collaborators:
// the CRM identity-verification service, the credit bureau, the offer mart,
// and the sanction-document service. Unreachable or failing services are
// reported as contract.ErrServiceUnavailable so the tool layer can convert
// them into typed failure results.
package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	contractx "github.com/nexusfin/loan-orchestrator/agent/contract"
)

const maxResponseSizeBytes = 1 << 20

type Config struct {
	CRMURL    string        `envconfig:"CRM_URL" split_words:"true" default:"http://localhost:5001"`
	CreditURL string        `envconfig:"CREDIT_URL" split_words:"true" default:"http://localhost:5002"`
	OfferURL  string        `envconfig:"OFFER_URL" split_words:"true" default:"http://localhost:5003"`
	DocURL    string        `envconfig:"DOC_URL" split_words:"true" default:"http://localhost:5004"`
	Timeout   time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

// Clients bundles the four collaborator clients behind one constructor so
// main can wire them in a single call.
type Clients struct {
	CRM    *CRMClient
	Credit *CreditBureauClient
	Offer  *OfferMartClient
	Doc    *DocumentClient
}

func NewClients(cfg Config) *Clients {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	return &Clients{
		CRM:    &CRMClient{baseURL: trim(cfg.CRMURL), httpClient: httpClient},
		Credit: &CreditBureauClient{baseURL: trim(cfg.CreditURL), httpClient: httpClient},
		Offer:  &OfferMartClient{baseURL: trim(cfg.OfferURL), httpClient: httpClient},
		Doc:    &DocumentClient{baseURL: trim(cfg.DocURL), httpClient: httpClient},
	}
}

func trim(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

/* --------------------------------- CRM ---------------------------------- */

type CRMClient struct {
	baseURL    string
	httpClient *http.Client
}

// IdentityRecord is the CRM's answer to a verification request.
type IdentityRecord struct {
	Verified bool   `json:"verified"`
	Name     string `json:"name,omitempty"`
	PAN      string `json:"pan,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
}

// VerifyIdentity checks an identity number against the CRM. A clean
// "not verified" is a successful call with Verified=false; only transport
// and server faults surface as errors.
func (c *CRMClient) VerifyIdentity(ctx context.Context, pan string) (IdentityRecord, error) {
	var out struct {
		Status  string `json:"status"`
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Address string `json:"address"`
	}
	status, err := postJSON(ctx, c.httpClient, c.baseURL+"/verify-kyc", map[string]string{"pan": pan}, &out)
	if err != nil {
		return IdentityRecord{}, err
	}
	if status == http.StatusBadRequest || out.Status != "verified" {
		return IdentityRecord{Verified: false}, nil
	}
	return IdentityRecord{
		Verified: true,
		Name:     out.Name,
		PAN:      strings.ToUpper(pan),
		Phone:    out.Phone,
		Address:  out.Address,
	}, nil
}

/* ----------------------------- Credit bureau ----------------------------- */

type CreditBureauClient struct {
	baseURL    string
	httpClient *http.Client
}

func (c *CreditBureauClient) Score(ctx context.Context, pan string) (int, error) {
	var out struct {
		CreditScore int `json:"credit_score"`
	}
	if _, err := postJSON(ctx, c.httpClient, c.baseURL+"/get-score", map[string]string{"pan": pan}, &out); err != nil {
		return 0, err
	}
	if out.CreditScore <= 0 {
		return 0, fmt.Errorf("%w: credit bureau returned no score", contractx.ErrServiceUnavailable)
	}
	return out.CreditScore, nil
}

/* ------------------------------- Offer mart ------------------------------ */

type OfferMartClient struct {
	baseURL    string
	httpClient *http.Client
}

func (c *OfferMartClient) PreApprovedLimit(ctx context.Context, pan string) (int64, error) {
	var out struct {
		PreApprovedLimit int64 `json:"pre_approved_limit"`
	}
	if _, err := postJSON(ctx, c.httpClient, c.baseURL+"/get-limit", map[string]string{"pan": pan}, &out); err != nil {
		return 0, err
	}
	if out.PreApprovedLimit <= 0 {
		return 0, fmt.Errorf("%w: offer mart returned no limit", contractx.ErrServiceUnavailable)
	}
	return out.PreApprovedLimit, nil
}

/* ---------------------------- Document service --------------------------- */

type DocumentClient struct {
	baseURL    string
	httpClient *http.Client
}

type SanctionRequest struct {
	Name         string  `json:"name"`
	PAN          string  `json:"pan"`
	Amount       int64   `json:"amount"`
	InterestRate float64 `json:"interest_rate"`
}

// IssueSanctionLetter asks the document service to render a sanction letter
// and returns the retrievable document URL.
func (c *DocumentClient) IssueSanctionLetter(ctx context.Context, req SanctionRequest) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if _, err := postJSON(ctx, c.httpClient, c.baseURL+"/sanction-letters", req, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.URL) == "" {
		return "", fmt.Errorf("%w: document service returned no url", contractx.ErrServiceUnavailable)
	}
	return out.URL, nil
}

/* -------------------------------- Shared --------------------------------- */

func postJSON(ctx context.Context, client *http.Client, url string, in any, out any) (int, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", contractx.ErrServiceUnavailable, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: read response from %s: %v", contractx.ErrServiceUnavailable, url, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return resp.StatusCode, fmt.Errorf("%w: %s status=%d", contractx.ErrServiceUnavailable, url, resp.StatusCode)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: decode response from %s: %v", contractx.ErrServiceUnavailable, url, err)
		}
	}
	return resp.StatusCode, nil
}
