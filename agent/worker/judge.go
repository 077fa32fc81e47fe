package worker

import (
	"context"
	"encoding/json"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/nexusfin/loan-orchestrator/agent/contract"
)

var _ contractx.Judge = (*LLMJudge)(nil)

// LLMJudge answers the router's two yes/no intent questions with a
// JSON-constrained model call.
type LLMJudge struct {
	runner compose.Runnable[map[string]any, judgeOutput]
}

type judgeOutput struct {
	Answer bool `json:"answer"`
}

func NewLLMJudge(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*LLMJudge, error) {
	runner, err := compileStructuredLLMGraph[judgeOutput](ctx, chatModel, systemPrompt, "judge.graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile judge graph: %v", contractx.ErrModelInvoke, err)
	}
	return &LLMJudge{runner: runner}, nil
}

func (j *LLMJudge) Judge(ctx context.Context, intent contractx.Intent, utterance string) (bool, error) {
	question, err := questionFor(intent)
	if err != nil {
		return false, err
	}

	payload := map[string]any{
		"question":  question,
		"utterance": utterance,
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("%w: marshal judge payload: %v", contractx.ErrValidation, err)
	}

	out, err := j.runner.Invoke(ctx, map[string]any{"input": string(input)})
	if err != nil {
		return false, fmt.Errorf("%w: judge invoke: %v", contractx.ErrModelInvoke, err)
	}
	return out.Answer, nil
}

func questionFor(intent contractx.Intent) (string, error) {
	switch intent {
	case contractx.IntentWantsSanctionLetter:
		return "Is the customer asking to receive or generate their sanction letter?", nil
	case contractx.IntentAcceptsRejection:
		return "Is the customer acknowledging or accepting that their loan was declined, with nothing further to discuss?", nil
	default:
		return "", fmt.Errorf("%w: unknown judge intent %q", contractx.ErrValidation, intent)
	}
}
