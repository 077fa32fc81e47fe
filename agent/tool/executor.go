package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/nexusfin/loan-orchestrator/agent/contract"
	"github.com/nexusfin/loan-orchestrator/agent/state"
)

const defaultInvocationTimeout = 15 * time.Second

// Executor runs a batch of tool requests against session state. Each
// request is dispatched exactly once; every request gets exactly one result,
// failures included. Successful payloads are folded into state before the
// next request in the batch runs.
type Executor struct {
	registry *Registry
	timeout  time.Duration
}

type ExecutorOption func(*Executor)

func WithInvocationTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	e := &Executor{registry: registry, timeout: defaultInvocationTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute assigns invocation IDs, records the requests on the transcript,
// dispatches them in order, records each result, and returns the results.
// It never returns an error: every fault becomes a typed failure result so
// the requesting worker can respond to it.
func (e *Executor) Execute(ctx context.Context, st *state.SessionState, worker contractx.WorkerType, reqs []contractx.ToolRequest, now time.Time) []contractx.ToolResult {
	if len(reqs) == 0 {
		return nil
	}

	for i := range reqs {
		if reqs[i].InvocationID == "" {
			reqs[i].InvocationID = uuid.NewString()
		}
	}
	st.AppendToolRequests(worker, reqs, now)

	results := make([]contractx.ToolResult, 0, len(reqs))
	for _, req := range reqs {
		res := e.dispatch(ctx, st, req, now)
		st.AppendToolResult(res, now)
		results = append(results, res)
	}
	return results
}

func (e *Executor) dispatch(ctx context.Context, st *state.SessionState, req contractx.ToolRequest, now time.Time) contractx.ToolResult {
	res := contractx.ToolResult{InvocationID: req.InvocationID, Tool: req.Tool}

	t, ok := e.registry.Lookup(req.Tool)
	if !ok {
		res.Failure = contractx.FailureUnknownTool
		res.Error = fmt.Sprintf("tool %q is not in the catalog", req.Tool)
		return res
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	payload, err := t.Invoke(callCtx, req.Args)
	if err != nil {
		res.Failure = classify(err)
		res.Error = err.Error()
		log.Warn().
			Str("thread_id", st.ThreadID).
			Str("tool", req.Tool).
			Str("invocation_id", req.InvocationID).
			Str("failure", string(res.Failure)).
			Err(err).
			Msg("tool invocation failed")
		return res
	}

	if err := t.Fold(st, payload, now); err != nil {
		log.Warn().
			Str("thread_id", st.ThreadID).
			Str("tool", req.Tool).
			Str("invocation_id", req.InvocationID).
			Err(err).
			Msg("tool payload not folded into state")
	}
	res.Payload = payload
	return res
}

func classify(err error) contractx.FailureKind {
	switch {
	case errors.Is(err, contractx.ErrInvalidArgs):
		return contractx.FailureInvalidArgs
	case errors.Is(err, contractx.ErrServiceUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return contractx.FailureUnavailable
	default:
		return contractx.FailureInternal
	}
}
