// Package router implements the supervisor: a stateless function from the
// current session snapshot to the worker that should act next. The priority
// order below is part of the contract; ties resolve deterministically, not
// by oracle whim.
package router

import (
	"context"

	"github.com/rs/zerolog/log"

	contractx "github.com/nexusfin/loan-orchestrator/agent/contract"
	statex "github.com/nexusfin/loan-orchestrator/agent/state"
	"github.com/nexusfin/loan-orchestrator/agent/underwriting"
)

// Decide evaluates the routing rules top to bottom; the first applicable
// rule wins. Only rules 1 and 5 need natural-language judgment and may
// consult the judge; every other rule is a pure state predicate. A judge
// failure or out-of-schema answer evaluates false and the rule falls
// through.
func Decide(ctx context.Context, st *statex.SessionState, judge contractx.Judge) contractx.RouterDecision {
	latest := st.LatestUserMessage()

	// 1. Approved, no document yet, and the user affirmed wanting it.
	if st.Underwriting == underwriting.StatusApproved && st.SanctionURL == "" &&
		ask(ctx, judge, contractx.IntentWantsSanctionLetter, latest) {
		return contractx.RouterDecision{
			Next:      contractx.WorkerUnderwriting,
			Rationale: "approved and the user affirmed wanting the sanction letter",
		}
	}

	// 2. Document issued: the conversation is complete.
	if st.SanctionURL != "" {
		return contractx.RouterDecision{
			Next:      contractx.WorkerFinish,
			Rationale: "sanction letter already issued",
		}
	}

	// 3. Verified identity with pending underwriting.
	if st.IdentityVerified && st.Underwriting == underwriting.StatusPending {
		return contractx.RouterDecision{
			Next:      contractx.WorkerUnderwriting,
			Rationale: "identity verified, underwriting pending",
		}
	}

	// 4. Salary just supplied after a NEED_SALARY evaluation.
	if st.Underwriting == underwriting.StatusNeedSalary && st.MonthlySalary > 0 {
		return contractx.RouterDecision{
			Next:      contractx.WorkerUnderwriting,
			Rationale: "salary supplied, re-evaluating",
		}
	}

	// 5. Rejected and the user has acknowledged.
	if st.Underwriting == underwriting.StatusRejected &&
		ask(ctx, judge, contractx.IntentAcceptsRejection, latest) {
		return contractx.RouterDecision{
			Next:      contractx.WorkerFinish,
			Rationale: "rejection acknowledged by the user",
		}
	}

	// 6. Amount known but identity not verified yet.
	if !st.IdentityVerified && st.LoanAmount > 0 {
		return contractx.RouterDecision{
			Next:      contractx.WorkerVerification,
			Rationale: "loan amount known, identity not verified",
		}
	}

	// 7. Default: sales; also the entry point for a brand-new session.
	return contractx.RouterDecision{
		Next:      contractx.WorkerSales,
		Rationale: "default sales conversation",
	}
}

func ask(ctx context.Context, judge contractx.Judge, intent contractx.Intent, utterance string) bool {
	if judge == nil || utterance == "" {
		return false
	}
	yes, err := judge.Judge(ctx, intent, utterance)
	if err != nil {
		log.Warn().Err(err).Str("intent", string(intent)).Msg("judge failed; treating as no")
		return false
	}
	return yes
}
