package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/nexusfin/loan-orchestrator/agent/contract"
	openrouterx "github.com/nexusfin/loan-orchestrator/pkg/openrouter"
)

// Config carries the default OpenRouter credentials plus optional per-worker
// model and temperature overrides.
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.4"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	SalesModel              string  `envconfig:"SALES_MODEL" split_words:"true"`
	VerificationModel       string  `envconfig:"VERIFICATION_MODEL" split_words:"true"`
	UnderwritingModel       string  `envconfig:"UNDERWRITING_MODEL" split_words:"true"`
	JudgeModel              string  `envconfig:"JUDGE_MODEL" split_words:"true"`
	SalesTemperature        float32 `envconfig:"SALES_TEMPERATURE" split_words:"true" default:"-1"`
	VerificationTemperature float32 `envconfig:"VERIFICATION_TEMPERATURE" split_words:"true" default:"-1"`
	UnderwritingTemperature float32 `envconfig:"UNDERWRITING_TEMPERATURE" split_words:"true" default:"-1"`
	JudgeTemperature        float32 `envconfig:"JUDGE_TEMPERATURE" split_words:"true" default:"0"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

// OpenRouterFor resolves the model settings for one worker. The judge
// defaults to temperature zero regardless of the global default.
func (c Config) OpenRouterFor(worker contractx.WorkerType) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	switch worker {
	case contractx.WorkerSales:
		if v := strings.TrimSpace(c.SalesModel); v != "" {
			modelName = v
		}
		if c.SalesTemperature >= 0 {
			temp = c.SalesTemperature
		}
	case contractx.WorkerVerification:
		if v := strings.TrimSpace(c.VerificationModel); v != "" {
			modelName = v
		}
		if c.VerificationTemperature >= 0 {
			temp = c.VerificationTemperature
		}
	case contractx.WorkerUnderwriting:
		if v := strings.TrimSpace(c.UnderwritingModel); v != "" {
			modelName = v
		}
		if c.UnderwritingTemperature >= 0 {
			temp = c.UnderwritingTemperature
		}
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}

// OpenRouterForJudge resolves the judge model settings.
func (c Config) OpenRouterForJudge() openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	if v := strings.TrimSpace(c.JudgeModel); v != "" {
		modelName = v
	}
	temp := c.JudgeTemperature
	if temp < 0 {
		temp = 0
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
