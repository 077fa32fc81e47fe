// Package workflow drives one conversation turn end to end: route to a
// worker, loop worker moves against the tool executor, and persist the
// session. Turns on the same thread are serialized; turns on different
// threads run independently.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/nexusfin/loan-orchestrator/agent/contract"
	"github.com/nexusfin/loan-orchestrator/agent/router"
	"github.com/nexusfin/loan-orchestrator/agent/state"
	toolx "github.com/nexusfin/loan-orchestrator/agent/tool"
)

const defaultMaxToolRounds = 8

const closingUtterance = "Thank you for choosing NexusFin. If you need anything else about your loan, just message me here. Have a great day!"

const retryUtterance = "I'm sorry, I'm having trouble completing that right now. Could you please try again in a moment?"

// Worker is one conversational specialist. TakeTurn may fold extracted
// facts into state before producing its move.
type Worker interface {
	Type() contractx.WorkerType
	TakeTurn(ctx context.Context, st *state.SessionState, userText string, results []contractx.ToolResult, now time.Time) (contractx.OracleOutput, error)
	TakeTurnStream(ctx context.Context, st *state.SessionState, userText string, results []contractx.ToolResult, now time.Time) (contractx.OracleStream, error)
}

type EventType string

const (
	EventDelta EventType = "delta"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// Event is one server-sent chunk of a streamed turn. Done carries the full
// assembled reply.
type Event struct {
	Type EventType `json:"type"`
	Text string    `json:"text,omitempty"`
}

type Engine struct {
	store         state.Store
	workers       map[contractx.WorkerType]Worker
	judge         contractx.Judge
	executor      *toolx.Executor
	maxToolRounds int
	clock         func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type Option func(*Engine)

func WithMaxToolRounds(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxToolRounds = n
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

func NewEngine(store state.Store, workers []Worker, judge contractx.Judge, executor *toolx.Executor, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("workflow: store is required")
	}
	if executor == nil {
		return nil, errors.New("workflow: executor is required")
	}

	byType := make(map[contractx.WorkerType]Worker, len(workers))
	for _, w := range workers {
		byType[w.Type()] = w
	}
	for _, required := range []contractx.WorkerType{contractx.WorkerSales, contractx.WorkerVerification, contractx.WorkerUnderwriting} {
		if _, ok := byType[required]; !ok {
			return nil, fmt.Errorf("workflow: worker %s is missing", required)
		}
	}

	e := &Engine{
		store:         store,
		workers:       byType,
		judge:         judge,
		executor:      executor,
		maxToolRounds: defaultMaxToolRounds,
		clock:         time.Now,
		locks:         map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// HandleMessage runs one full turn and returns the customer-facing reply.
func (e *Engine) HandleMessage(ctx context.Context, threadID, text string) (string, error) {
	threadID = strings.TrimSpace(threadID)
	text = strings.TrimSpace(text)
	if threadID == "" {
		return "", fmt.Errorf("%w: thread id is required", contractx.ErrValidation)
	}
	if text == "" {
		return "", fmt.Errorf("%w: message text is required", contractx.ErrValidation)
	}

	lock := e.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	st, err := e.loadOrCreate(ctx, threadID)
	if err != nil {
		return "", err
	}

	now := e.clock()
	st.AppendUser(text, now)
	st.AbsorbUserMessage(text, now)

	decision := router.Decide(ctx, st, e.judge)
	st.LastDecision = decision.Next
	log.Info().
		Str("thread_id", threadID).
		Str("worker", string(decision.Next)).
		Str("rationale", decision.Rationale).
		Msg("turn routed")

	if decision.Next == contractx.WorkerFinish {
		st.AppendWorker(contractx.WorkerFinish, closingUtterance, now)
		if err := e.store.Save(ctx, st); err != nil {
			return "", err
		}
		return closingUtterance, nil
	}

	worker := e.workers[decision.Next]
	reply := e.runWorkerLoop(ctx, st, worker, text, now)

	st.AppendWorker(decision.Next, reply, now)
	if err := e.store.Save(ctx, st); err != nil {
		return "", err
	}
	return reply, nil
}

// HandleMessageStream runs one full turn and emits the reply as events on
// the returned channel. The channel is closed after the done or error
// event. Tool rounds produce no deltas; only the final utterance streams.
func (e *Engine) HandleMessageStream(ctx context.Context, threadID, text string) (<-chan Event, error) {
	threadID = strings.TrimSpace(threadID)
	text = strings.TrimSpace(text)
	if threadID == "" {
		return nil, fmt.Errorf("%w: thread id is required", contractx.ErrValidation)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: message text is required", contractx.ErrValidation)
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)

		lock := e.threadLock(threadID)
		lock.Lock()
		defer lock.Unlock()

		st, err := e.loadOrCreate(ctx, threadID)
		if err != nil {
			events <- Event{Type: EventError, Text: retryUtterance}
			return
		}

		now := e.clock()
		st.AppendUser(text, now)
		st.AbsorbUserMessage(text, now)

		decision := router.Decide(ctx, st, e.judge)
		st.LastDecision = decision.Next

		if decision.Next == contractx.WorkerFinish {
			st.AppendWorker(contractx.WorkerFinish, closingUtterance, now)
			if err := e.store.Save(ctx, st); err != nil {
				events <- Event{Type: EventError, Text: retryUtterance}
				return
			}
			events <- Event{Type: EventDelta, Text: closingUtterance}
			events <- Event{Type: EventDone, Text: closingUtterance}
			return
		}

		worker := e.workers[decision.Next]
		reply := e.runWorkerLoopStream(ctx, st, worker, text, now, events)

		st.AppendWorker(decision.Next, reply, now)
		if err := e.store.Save(ctx, st); err != nil {
			events <- Event{Type: EventError, Text: retryUtterance}
			return
		}
		events <- Event{Type: EventDone, Text: reply}
	}()
	return events, nil
}

// runWorkerLoop alternates worker moves and tool execution until the worker
// produces an utterance or the round budget runs out. Tool results are
// already folded into state by the executor, so an exhausted budget still
// leaves every completed invocation committed.
func (e *Engine) runWorkerLoop(ctx context.Context, st *state.SessionState, worker Worker, text string, now time.Time) string {
	var results []contractx.ToolResult
	for round := 0; round <= e.maxToolRounds; round++ {
		out, err := worker.TakeTurn(ctx, st, text, results, now)
		if err != nil {
			log.Error().
				Str("thread_id", st.ThreadID).
				Str("worker", string(worker.Type())).
				Err(err).
				Msg("worker turn failed")
			return retryUtterance
		}
		if len(out.ToolRequests) == 0 {
			return out.Utterance
		}
		results = e.executor.Execute(ctx, st, worker.Type(), out.ToolRequests, now)
	}

	log.Warn().
		Str("thread_id", st.ThreadID).
		Str("worker", string(worker.Type())).
		Int("max_rounds", e.maxToolRounds).
		Err(contractx.ErrTurnBudgetExceeded).
		Msg("tool round budget exhausted")
	return retryUtterance
}

func (e *Engine) runWorkerLoopStream(ctx context.Context, st *state.SessionState, worker Worker, text string, now time.Time, events chan<- Event) string {
	var results []contractx.ToolResult
	for round := 0; round <= e.maxToolRounds; round++ {
		stream, err := worker.TakeTurnStream(ctx, st, text, results, now)
		if err != nil {
			log.Error().
				Str("thread_id", st.ThreadID).
				Str("worker", string(worker.Type())).
				Err(err).
				Msg("worker stream failed")
			events <- Event{Type: EventDelta, Text: retryUtterance}
			return retryUtterance
		}

		for {
			delta, recvErr := stream.Recv()
			if recvErr == io.EOF {
				break
			}
			if recvErr != nil {
				break
			}
			events <- Event{Type: EventDelta, Text: delta}
		}
		out, outErr := stream.Output()
		stream.Close()
		if outErr != nil {
			log.Error().
				Str("thread_id", st.ThreadID).
				Str("worker", string(worker.Type())).
				Err(outErr).
				Msg("worker stream output failed")
			events <- Event{Type: EventDelta, Text: retryUtterance}
			return retryUtterance
		}

		if len(out.ToolRequests) == 0 {
			return out.Utterance
		}
		results = e.executor.Execute(ctx, st, worker.Type(), out.ToolRequests, now)
	}

	log.Warn().
		Str("thread_id", st.ThreadID).
		Str("worker", string(worker.Type())).
		Int("max_rounds", e.maxToolRounds).
		Err(contractx.ErrTurnBudgetExceeded).
		Msg("tool round budget exhausted")
	events <- Event{Type: EventDelta, Text: retryUtterance}
	return retryUtterance
}

func (e *Engine) loadOrCreate(ctx context.Context, threadID string) (*state.SessionState, error) {
	st, err := e.store.Load(ctx, threadID)
	if errors.Is(err, state.ErrStateNotFound) {
		return state.NewSessionState(threadID, e.clock()), nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (e *Engine) threadLock(threadID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[threadID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[threadID] = lock
	}
	return lock
}
