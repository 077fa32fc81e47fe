package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	contractx "github.com/nexusfin/loan-orchestrator/agent/contract"
	llmx "github.com/nexusfin/loan-orchestrator/agent/llm"
	"github.com/nexusfin/loan-orchestrator/agent/loanbook"
	"github.com/nexusfin/loan-orchestrator/agent/partner"
	promptx "github.com/nexusfin/loan-orchestrator/agent/prompt"
	statex "github.com/nexusfin/loan-orchestrator/agent/state"
	toolx "github.com/nexusfin/loan-orchestrator/agent/tool"
	workerx "github.com/nexusfin/loan-orchestrator/agent/worker"
	"github.com/nexusfin/loan-orchestrator/agent/workflow"
	configx "github.com/nexusfin/loan-orchestrator/pkg/config"
	_ "github.com/nexusfin/loan-orchestrator/pkg/logger/autoload"
	"github.com/nexusfin/loan-orchestrator/server"
)

type AppConfig struct {
	PostgresDSN  string `envconfig:"POSTGRES_DSN" split_words:"true"`
	UpstashURL   string `envconfig:"UPSTASH_REDIS_URL" split_words:"true"`
	UpstashToken string `envconfig:"UPSTASH_REDIS_TOKEN" split_words:"true"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[AppConfig]("")
	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	if err := llmCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid llm config")
	}
	partnerCfg := configx.MustNew[partner.Config]("PARTNER")
	serverCfg := configx.MustNew[server.Config]("SERVER")

	store := buildStore(appCfg)
	book := buildLoanBook(ctx, appCfg)
	clients := partner.NewClients(*partnerCfg)

	registry := toolx.NewRegistry(
		&toolx.VerifyIdentityTool{CRM: clients.CRM},
		&toolx.MarketRatesTool{},
		&toolx.CheckHistoryTool{Book: book},
		&toolx.EvaluateUnderwritingTool{Credit: clients.Credit, Offer: clients.Offer},
		&toolx.IssueSanctionLetterTool{Doc: clients.Doc, Book: book},
	)
	executor := toolx.NewExecutor(registry)

	prompts := promptx.LoadPromptSet()
	workers := buildWorkers(ctx, *llmCfg, prompts, registry)
	judge := buildJudge(ctx, *llmCfg, prompts)

	engine, err := workflow.NewEngine(store, workers, judge, executor)
	if err != nil {
		log.Fatal().Err(err).Msg("build workflow engine")
	}

	srv := server.New(*serverCfg, engine)

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

func buildStore(cfg *AppConfig) statex.Store {
	if strings.TrimSpace(cfg.UpstashURL) == "" {
		log.Warn().Msg("no upstash redis configured; using in-memory session store")
		return statex.NewMemoryStore()
	}
	store, err := statex.NewUpstashRedisStore(statex.UpstashRedisConfig{
		URL:   cfg.UpstashURL,
		Token: cfg.UpstashToken,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build session store")
	}
	return store
}

func buildLoanBook(ctx context.Context, cfg *AppConfig) loanbook.Book {
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		log.Warn().Msg("no postgres configured; using in-memory loan book")
		return loanbook.NewMemoryBook()
	}
	book, err := loanbook.NewPostgresBook(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("build loan book")
	}
	return book
}

func buildWorkers(ctx context.Context, cfg llmx.Config, prompts promptx.PromptSet, registry *toolx.Registry) []workflow.Worker {
	specs := []struct {
		workerType contractx.WorkerType
		prompt     string
	}{
		{contractx.WorkerSales, prompts.Sales},
		{contractx.WorkerVerification, prompts.Verification},
		{contractx.WorkerUnderwriting, prompts.Underwriting},
	}

	workers := make([]workflow.Worker, 0, len(specs))
	for _, spec := range specs {
		orCfg := cfg.OpenRouterFor(spec.workerType)
		chatModel, err := orCfg.New(ctx)
		if err != nil {
			log.Fatal().Err(err).Str("worker", string(spec.workerType)).Msg("build chat model")
		}
		w, err := workerx.NewWorker(ctx, spec.workerType, chatModel, spec.prompt, registry.InfosFor(spec.workerType))
		if err != nil {
			log.Fatal().Err(err).Str("worker", string(spec.workerType)).Msg("build worker")
		}
		workers = append(workers, w)
	}
	return workers
}

func buildJudge(ctx context.Context, cfg llmx.Config, prompts promptx.PromptSet) contractx.Judge {
	orCfg := cfg.OpenRouterForJudge()
	chatModel, err := orCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("build judge chat model")
	}
	judge, err := workerx.NewLLMJudge(ctx, chatModel, prompts.Judge)
	if err != nil {
		log.Fatal().Err(err).Msg("build judge")
	}
	return judge
}
