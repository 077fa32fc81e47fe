// Package tool holds the closed tool catalog, the per-worker tool exposure,
// and the executor that dispatches requested invocations against session
// state.
package tool

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/nexusfin/loan-orchestrator/agent/contract"
	"github.com/nexusfin/loan-orchestrator/agent/state"
)

// The closed tool set. Anything a model requests outside this set is
// answered with an unknown_tool failure, never executed.
const (
	ToolVerifyIdentity       = "verify_identity"
	ToolFetchMarketRates     = "fetch_market_rates"
	ToolCheckHistory         = "check_history"
	ToolEvaluateUnderwriting = "evaluate_underwriting"
	ToolIssueSanctionLetter  = "issue_sanction_letter"
)

// Tool is one catalog entry. Invoke performs the side effect and returns a
// structured payload; Fold applies a successful payload to session state.
// The split keeps every state mutation in one reviewable place per tool.
type Tool interface {
	ID() string
	Info() *schema.ToolInfo
	Invoke(ctx context.Context, args map[string]any) (map[string]any, error)
	Fold(st *state.SessionState, payload map[string]any, now time.Time) error
}

// Registry indexes the catalog by tool name and answers which tools a given
// worker may see.
type Registry struct {
	byName map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	byName := make(map[string]Tool, len(tools))
	for _, t := range tools {
		byName[t.ID()] = t
	}
	return &Registry{byName: byName}
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// InfosFor returns the tool declarations bound to one worker's model. The
// exposure is fixed per worker.
func (r *Registry) InfosFor(worker contractx.WorkerType) []*schema.ToolInfo {
	var names []string
	switch worker {
	case contractx.WorkerSales:
		names = []string{ToolFetchMarketRates, ToolCheckHistory}
	case contractx.WorkerVerification:
		names = []string{ToolVerifyIdentity}
	case contractx.WorkerUnderwriting:
		names = []string{ToolEvaluateUnderwriting, ToolIssueSanctionLetter}
	default:
		return nil
	}

	infos := make([]*schema.ToolInfo, 0, len(names))
	for _, name := range names {
		if t, ok := r.byName[name]; ok {
			infos = append(infos, t.Info())
		}
	}
	return infos
}
