package contract

import "time"

// WorkerType is a value from the closed routing set. The string forms are
// stable because they appear in transcripts and logs.
type WorkerType string

const (
	WorkerSales        WorkerType = "SalesWorker"
	WorkerVerification WorkerType = "VerificationWorker"
	WorkerUnderwriting WorkerType = "UnderwritingWorker"
	WorkerFinish       WorkerType = "Finish"
)

// RouterDecision is ephemeral; only Next is ever parsed for control flow.
// Rationale is advisory and goes to the log and the session's
// last-decision field.
type RouterDecision struct {
	Next      WorkerType `json:"next"`
	Rationale string     `json:"rationale,omitempty"`
}

type MessageKind string

const (
	MessageUser        MessageKind = "user"
	MessageWorker      MessageKind = "worker"
	MessageToolRequest MessageKind = "tool_request"
	MessageToolResult  MessageKind = "tool_result"
)

// Message is one immutable transcript entry. Exactly one of Content,
// ToolRequests, or ToolResult is populated depending on Kind.
type Message struct {
	Kind         MessageKind   `json:"kind"`
	Worker       WorkerType    `json:"worker,omitempty"`
	Content      string        `json:"content,omitempty"`
	ToolRequests []ToolRequest `json:"tool_requests,omitempty"`
	ToolResult   *ToolResult   `json:"tool_result,omitempty"`
	At           time.Time     `json:"at"`
}

// ToolRequest names a tool and supplies an argument record. InvocationID is
// assigned by the executor before dispatch and correlates the request with
// its single result.
type ToolRequest struct {
	InvocationID string         `json:"invocation_id,omitempty"`
	Tool         string         `json:"tool"`
	Args         map[string]any `json:"args,omitempty"`
}

// FailureKind classifies a failed tool invocation.
type FailureKind string

const (
	FailureUnknownTool FailureKind = "unknown_tool"
	FailureUnavailable FailureKind = "service_unavailable"
	FailureInvalidArgs FailureKind = "invalid_args"
	FailureInternal    FailureKind = "internal"
)

// ToolResult is the single result produced for a ToolRequest: either a
// structured success payload or a typed failure, never both.
type ToolResult struct {
	InvocationID string         `json:"invocation_id"`
	Tool         string         `json:"tool"`
	Payload      map[string]any `json:"payload,omitempty"`
	Failure      FailureKind    `json:"failure,omitempty"`
	Error        string         `json:"error,omitempty"`
}

func (r ToolResult) Failed() bool {
	return r.Failure != ""
}

// OracleOutput is what a policy oracle produces for one worker turn:
// a user-facing utterance, or one or more tool invocation requests.
type OracleOutput struct {
	Utterance    string        `json:"utterance,omitempty"`
	ToolRequests []ToolRequest `json:"tool_requests,omitempty"`
}

// WorkerContext is the structured context handed to a policy oracle. It is a
// flattened snapshot of session state; the oracle never mutates state
// directly.
type WorkerContext struct {
	UserMessage      string       `json:"user_message"`
	ToolResults      []ToolResult `json:"tool_results,omitempty"`
	CustomerName     string       `json:"customer_name,omitempty"`
	IdentityNumber   string       `json:"identity_number,omitempty"`
	LoanAmount       int64        `json:"loan_amount,omitempty"`
	RequestedTenure  string       `json:"requested_tenure,omitempty"`
	MonthlySalary    int64        `json:"monthly_salary,omitempty"`
	IdentityVerified bool         `json:"identity_verified"`
	CreditScore      int          `json:"credit_score,omitempty"`
	PreApprovedLimit int64        `json:"pre_approved_limit,omitempty"`
	Underwriting     string       `json:"underwriting_status"`
	ApprovedRate     float64      `json:"approved_interest_rate,omitempty"`
	SanctionURL      string       `json:"sanction_url,omitempty"`
	RecentTranscript []Message    `json:"recent_transcript,omitempty"`
}

// Intent identifies a natural-language judgment the router may ask of the
// oracle. Only these two router rules require NL judgment; everything else
// in the router is a pure state predicate.
type Intent string

const (
	IntentWantsSanctionLetter Intent = "wants_sanction_letter"
	IntentAcceptsRejection    Intent = "accepts_rejection"
)
