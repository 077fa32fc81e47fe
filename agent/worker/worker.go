// Package worker implements the three conversational workers and the intent
// judge on top of eino graphs. A worker turns session context into either a
// customer-facing utterance or a batch of tool requests; it never touches
// partner services itself.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/nexusfin/loan-orchestrator/agent/contract"
	"github.com/nexusfin/loan-orchestrator/agent/state"
)

const transcriptWindow = 12

var _ contractx.PolicyOracle = (*Worker)(nil)

type Worker struct {
	workerType contractx.WorkerType
	runner     compose.Runnable[map[string]any, *schema.Message]
	allowed    map[string]struct{}
}

// NewWorker binds the worker's tool declarations to the chat model and
// compiles its turn graph.
func NewWorker(
	ctx context.Context,
	workerType contractx.WorkerType,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
	tools []*schema.ToolInfo,
) (*Worker, error) {
	bound := einomodel.BaseChatModel(chatModel)
	if len(tools) > 0 {
		toolModel, err := chatModel.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("%w: bind tools for worker=%s: %v", contractx.ErrModelInvoke, workerType, err)
		}
		bound = toolModel
	}

	runner, err := compileTurnGraph(ctx, bound, systemPrompt, fmt.Sprintf("worker.%s.turn_graph", workerType))
	if err != nil {
		return nil, fmt.Errorf("%w: compile turn graph for worker=%s: %v", contractx.ErrModelInvoke, workerType, err)
	}

	allowed := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		if t == nil || strings.TrimSpace(t.Name) == "" {
			continue
		}
		allowed[t.Name] = struct{}{}
	}

	return &Worker{
		workerType: workerType,
		runner:     runner,
		allowed:    allowed,
	}, nil
}

func (w *Worker) Type() contractx.WorkerType {
	return w.workerType
}

// Respond asks the model for this worker's move: an utterance or tool
// requests.
func (w *Worker) Respond(ctx context.Context, wc contractx.WorkerContext) (contractx.OracleOutput, error) {
	input, err := w.encodeInput(wc)
	if err != nil {
		return contractx.OracleOutput{}, err
	}

	msg, err := w.runner.Invoke(ctx, map[string]any{"input": input})
	if err != nil {
		return contractx.OracleOutput{}, fmt.Errorf("%w: worker=%s invoke: %v", contractx.ErrModelInvoke, w.workerType, err)
	}
	return w.toOutput(msg)
}

// RespondStream is Respond with the utterance delivered as deltas. Tool
// requests do not stream; a tool-calling turn yields no deltas and the
// requests appear in the final output.
func (w *Worker) RespondStream(ctx context.Context, wc contractx.WorkerContext) (contractx.OracleStream, error) {
	input, err := w.encodeInput(wc)
	if err != nil {
		return nil, err
	}

	sr, err := w.runner.Stream(ctx, map[string]any{"input": input})
	if err != nil {
		return nil, fmt.Errorf("%w: worker=%s stream: %v", contractx.ErrModelInvoke, w.workerType, err)
	}
	return &turnStream{worker: w, sr: sr}, nil
}

// TakeTurn delegates to Respond with a fresh snapshot of the session.
// Deterministic fact extraction has already run by the time a worker takes
// its turn; workers only read state, never parse the raw text themselves.
func (w *Worker) TakeTurn(
	ctx context.Context,
	st *state.SessionState,
	userText string,
	results []contractx.ToolResult,
	now time.Time,
) (contractx.OracleOutput, error) {
	return w.Respond(ctx, w.snapshot(st, userText, results))
}

func (w *Worker) TakeTurnStream(
	ctx context.Context,
	st *state.SessionState,
	userText string,
	results []contractx.ToolResult,
	now time.Time,
) (contractx.OracleStream, error) {
	return w.RespondStream(ctx, w.snapshot(st, userText, results))
}

func (w *Worker) snapshot(st *state.SessionState, userText string, results []contractx.ToolResult) contractx.WorkerContext {
	wc := st.Snapshot(transcriptWindow)
	wc.UserMessage = userText
	wc.ToolResults = results
	return wc
}

func (w *Worker) encodeInput(wc contractx.WorkerContext) (string, error) {
	raw, err := json.Marshal(wc)
	if err != nil {
		return "", fmt.Errorf("%w: marshal worker context: %v", contractx.ErrValidation, err)
	}
	return string(raw), nil
}

func (w *Worker) toOutput(msg *schema.Message) (contractx.OracleOutput, error) {
	if msg == nil {
		return contractx.OracleOutput{}, fmt.Errorf("%w: worker=%s returned no message", contractx.ErrSchemaViolation, w.workerType)
	}

	reqs, err := w.toToolRequests(msg.ToolCalls)
	if err != nil {
		return contractx.OracleOutput{}, err
	}
	if len(reqs) > 0 {
		return contractx.OracleOutput{ToolRequests: reqs}, nil
	}

	utterance := strings.TrimSpace(msg.Content)
	if utterance == "" {
		return contractx.OracleOutput{}, fmt.Errorf("%w: worker=%s produced neither utterance nor tool requests", contractx.ErrSchemaViolation, w.workerType)
	}
	return contractx.OracleOutput{Utterance: utterance}, nil
}

func (w *Worker) toToolRequests(calls []schema.ToolCall) ([]contractx.ToolRequest, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	reqs := make([]contractx.ToolRequest, 0, len(calls))
	for _, call := range calls {
		name := strings.TrimSpace(call.Function.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
		}
		if _, ok := w.allowed[name]; !ok {
			return nil, fmt.Errorf("%w: tool=%s is not allowed for worker=%s", contractx.ErrSchemaViolation, name, w.workerType)
		}

		args := map[string]any{}
		rawArgs := strings.TrimSpace(call.Function.Arguments)
		if rawArgs != "" {
			if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
				return nil, fmt.Errorf("%w: invalid tool args for tool=%s: %v", contractx.ErrSchemaViolation, name, err)
			}
		}
		reqs = append(reqs, contractx.ToolRequest{Tool: name, Args: args})
	}
	return reqs, nil
}

// turnStream adapts an eino message stream to the oracle stream contract.
type turnStream struct {
	worker *Worker
	sr     *schema.StreamReader[*schema.Message]
	chunks []*schema.Message
	out    contractx.OracleOutput
	outErr error
	done   bool
}

func (s *turnStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		msg, err := s.sr.Recv()
		if err == io.EOF {
			s.finalize()
			return "", io.EOF
		}
		if err != nil {
			s.done = true
			s.outErr = fmt.Errorf("%w: worker=%s stream recv: %v", contractx.ErrModelInvoke, s.worker.workerType, err)
			return "", s.outErr
		}
		s.chunks = append(s.chunks, msg)
		if msg.Content != "" {
			return msg.Content, nil
		}
	}
}

func (s *turnStream) Output() (contractx.OracleOutput, error) {
	if !s.done {
		s.outErr = fmt.Errorf("%w: stream output read before EOF", contractx.ErrValidation)
	}
	return s.out, s.outErr
}

func (s *turnStream) Close() {
	s.sr.Close()
}

func (s *turnStream) finalize() {
	s.done = true
	if len(s.chunks) == 0 {
		s.outErr = fmt.Errorf("%w: worker=%s streamed no chunks", contractx.ErrSchemaViolation, s.worker.workerType)
		return
	}
	full, err := schema.ConcatMessages(s.chunks)
	if err != nil {
		s.outErr = fmt.Errorf("%w: concat stream chunks: %v", contractx.ErrModelInvoke, err)
		return
	}
	s.out, s.outErr = s.worker.toOutput(full)
}
