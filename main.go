package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/tanpawarit/chative-retail-assistant/agent/agents/assistant"
	"github.com/tanpawarit/chative-retail-assistant/agent/agents/orchestrator"
	"github.com/tanpawarit/chative-retail-assistant/agent/api"
	contractx "github.com/tanpawarit/chative-retail-assistant/agent/contract"
	inventoryx "github.com/tanpawarit/chative-retail-assistant/agent/inventory"
	"github.com/tanpawarit/chative-retail-assistant/agent/llm"
	"github.com/tanpawarit/chative-retail-assistant/agent/observability"
	"github.com/tanpawarit/chative-retail-assistant/agent/retrieval"
	statex "github.com/tanpawarit/chative-retail-assistant/agent/state"
	"github.com/tanpawarit/chative-retail-assistant/agent/tool"
	"github.com/tanpawarit/chative-retail-assistant/agent/workflow"
	configx "github.com/tanpawarit/chative-retail-assistant/pkg/config"
	geminix "github.com/tanpawarit/chative-retail-assistant/pkg/gemini"
	logx "github.com/tanpawarit/chative-retail-assistant/pkg/logger"
	_ "github.com/tanpawarit/chative-retail-assistant/pkg/logger/autoload"
	openrouterx "github.com/tanpawarit/chative-retail-assistant/pkg/openrouter"
	postgresx "github.com/tanpawarit/chative-retail-assistant/pkg/postgres"
	qstashx "github.com/tanpawarit/chative-retail-assistant/pkg/qstash"
	redisx "github.com/tanpawarit/chative-retail-assistant/pkg/redis"
)

type AppConfig struct {
	DataDir              string        `envconfig:"DATA_DIR" default:"data"`
	OrdersDir            string        `envconfig:"ORDERS_DIR"`
	SessionStoreBackend  string        `envconfig:"SESSION_STORE_BACKEND" default:"memory"`
	SessionTTL           time.Duration `envconfig:"SESSION_TTL" default:"1h"`
	SessionKeyPrefix     string        `envconfig:"SESSION_KEY_PREFIX" default:"chatbot:session:"`
	MaxUnfilteredRecords int           `envconfig:"MAX_UNFILTERED_RECORDS" default:"50"`
	QueueOrders          bool          `envconfig:"QUEUE_ORDERS" default:"false"`
	MetricsNamespace     string        `envconfig:"METRICS_NAMESPACE" default:"retail_assistant"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("APP")
	llmCfg := configx.MustNew[llm.Config]("LLM")
	orchestratorCfg := configx.MustNew[orchestrator.Config]("ORCHESTRATOR")
	assistantCfg := configx.MustNew[assistant.Config]("ASSISTANT")
	retrievalCfg := configx.MustNew[retrieval.Config]("RETRIEVAL")
	workflowCfg := configx.MustNew[workflow.Config]("IMAGE")
	httpCfg := configx.MustNew[api.Config]("HTTP")

	providers := loadProviderConfigs(*llmCfg)
	models, err := llm.Build(ctx, *llmCfg, providers)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build language models")
	}

	store, closeStore := openSessionStore(ctx, *appCfg)
	defer closeStore()

	source := inventoryx.NewJSONDataSource(appCfg.DataDir)

	executor, err := tool.NewExecutor(tool.Dependencies{
		Source:      source,
		Recorder:    orderRecorder(*appCfg),
		CachePolicy: statex.CachePolicy{MaxUnfilteredRecords: appCfg.MaxUnfilteredRecords},
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build tool executor")
	}

	retriever, err := retrieval.NewLocalRetriever(source, *retrievalCfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build retriever")
	}

	orch, err := orchestrator.New(orchestrator.Dependencies{
		ToolModel:     models.ToolPlanner,
		ResponseModel: models.Responder,
		Tools:         executor,
		Retriever:     retriever,
	}, *orchestratorCfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build orchestrator")
	}

	collector := observability.NewCollector(appCfg.MetricsNamespace)

	coordinator, err := assistant.New(assistant.Dependencies{
		Store:        store,
		Orchestrator: orch,
		Images:       imageWorkflow(*workflowCfg, providers, retriever, executor),
		Observer:     collector,
		Metrics:      collector,
	}, *assistantCfg)
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build assistant")
	}

	server, err := api.New(*httpCfg, coordinator, collector.Handler())
	if err != nil {
		logx.Fatal().Err(err).Msg("failed to build http server")
	}
	if err := server.Run(ctx); err != nil {
		logx.Fatal().Err(err).Msg("http server stopped")
	}
	logx.Info().Msg("bye")
}

// loadProviderConfigs reads only the provider block that is in use so that
// its required keys do not leak into other deployments.
func loadProviderConfigs(cfg llm.Config) llm.ProviderConfigs {
	var out llm.ProviderConfigs
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case string(llm.ProviderGemini):
		out.Gemini = *configx.MustNew[geminix.Config]("GEMINI")
	default:
		out.OpenRouter = *configx.MustNew[openrouterx.Config]("OPENROUTER")
	}
	return out
}

// openSessionStore falls back to the memory store when the configured
// backend cannot be reached.
func openSessionStore(ctx context.Context, cfg AppConfig) (statex.Store, func()) {
	noop := func() {}
	opts := []statex.StoreOption{
		statex.WithKeyPrefix(cfg.SessionKeyPrefix),
		statex.WithTTL(cfg.SessionTTL),
	}
	backend := strings.ToLower(strings.TrimSpace(cfg.SessionStoreBackend))

	fallback := func(err error) (statex.Store, func()) {
		logx.Warn().Err(err).Str("backend", backend).Msg("session store unavailable, falling back to memory")
		return statex.NewMemoryStore(), noop
	}

	switch backend {
	case "", "memory":
		return statex.NewMemoryStore(), noop

	case "redis":
		redisCfg, err := configx.New[redisx.Config]("REDIS")
		if err != nil {
			return fallback(err)
		}
		client, err := redisCfg.New(ctx)
		if err != nil {
			return fallback(err)
		}
		store, err := statex.NewRedisStore(client, opts...)
		if err != nil {
			_ = client.Close()
			return fallback(err)
		}
		logx.Info().Msg("using redis session store")
		return store, func() { _ = client.Close() }

	case "upstash":
		upstashCfg, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS")
		if err != nil {
			return fallback(err)
		}
		store, err := statex.NewUpstashRedisStore(*upstashCfg, &http.Client{Timeout: upstashCfg.Timeout}, opts...)
		if err != nil {
			return fallback(err)
		}
		logx.Info().Msg("using upstash session store")
		return store, noop

	case "postgres":
		pgCfg, err := configx.New[postgresx.Config]("POSTGRES")
		if err != nil {
			return fallback(err)
		}
		db, err := postgresx.Open(ctx, *pgCfg)
		if err != nil {
			return fallback(err)
		}
		store, err := statex.NewPostgresStore(db)
		if err != nil {
			_ = db.Close()
			return fallback(err)
		}
		logx.Info().Msg("using postgres session store")
		return store, func() { _ = db.Close() }

	default:
		logx.Warn().Str("backend", backend).Msg("unknown session store backend, using memory")
		return statex.NewMemoryStore(), noop
	}
}

// orderRecorder always persists orders to disk and additionally publishes
// them to QStash when enabled.
func orderRecorder(cfg AppConfig) tool.OrderRecorder {
	dir := cfg.OrdersDir
	if strings.TrimSpace(dir) == "" {
		dir = cfg.DataDir
	}
	recorders := tool.MultiRecorder{tool.NewFileOrderRecorder(filepath.Clean(dir))}

	if cfg.QueueOrders {
		qstashCfg, err := configx.New[qstashx.Config]("QSTASH")
		if err != nil {
			logx.Warn().Err(err).Msg("qstash disabled: invalid configuration")
			return recorders
		}
		client, err := qstashx.NewClient(*qstashCfg)
		if err != nil {
			logx.Warn().Err(err).Msg("qstash disabled")
			return recorders
		}
		recorders = append(recorders, tool.NewQueueOrderRecorder(client))
		logx.Info().Msg("purchase orders will be published to qstash")
	}
	return recorders
}

// imageWorkflow is enabled only when a vision model is configured on an
// OpenAI-compatible provider.
func imageWorkflow(cfg workflow.Config, providers llm.ProviderConfigs, retriever contractx.Retriever, tools contractx.ToolExecutor) contractx.ImageWorkflow {
	if strings.TrimSpace(cfg.VisionModel) == "" {
		return nil
	}
	client := openrouterx.NewClient(providers.OpenRouter)
	if client == nil {
		logx.Warn().Msg("image input disabled: vision needs an openrouter/openai api key")
		return nil
	}
	vision, err := workflow.NewOpenAIVision(client, cfg.VisionModel)
	if err != nil {
		logx.Warn().Err(err).Msg("image input disabled")
		return nil
	}
	w, err := workflow.NewImageWorkflow(vision, retriever, tools, cfg)
	if err != nil {
		logx.Warn().Err(err).Msg("image input disabled")
		return nil
	}
	return w
}
