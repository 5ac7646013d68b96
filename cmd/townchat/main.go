// Command townchat runs the conversation backend for the Intercultural Town
// game client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/ColinWang98/Intercultural-Town/internal/config"
	"github.com/ColinWang98/Intercultural-Town/internal/conversation"
	convpg "github.com/ColinWang98/Intercultural-Town/internal/conversation/postgres"
	"github.com/ColinWang98/Intercultural-Town/internal/health"
	"github.com/ColinWang98/Intercultural-Town/internal/httpapi"
	"github.com/ColinWang98/Intercultural-Town/internal/observe"
	"github.com/ColinWang98/Intercultural-Town/internal/persona"
	"github.com/ColinWang98/Intercultural-Town/internal/sanitize"
	"github.com/ColinWang98/Intercultural-Town/internal/topic"
	"github.com/ColinWang98/Intercultural-Town/pkg/provider/llm"
	"github.com/ColinWang98/Intercultural-Town/pkg/provider/llm/anyllm"
	"github.com/ColinWang98/Intercultural-Town/pkg/provider/llm/openai"
)

const defaultListenAddr = ":8080"

// logLevel backs the default logger so config hot-reloads can adjust
// verbosity without a restart.
var logLevel = new(slog.LevelVar)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "townchat: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "townchat: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}

	slog.Info("townchat starting",
		"config", *configPath,
		"listen_addr", addr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── LLM provider ──────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	var provider llm.Provider
	if cfg.Provider.Name != "" {
		provider, err = reg.Create(cfg.Provider)
		if err != nil {
			slog.Error("failed to create llm provider", "name", cfg.Provider.Name, "err", err)
			return 1
		}
		slog.Info("provider created", "name", cfg.Provider.Name, "model", cfg.Provider.Model)
	} else {
		slog.Warn("no llm provider configured; persona replies degrade to canned text")
	}

	// ── Conversation store ────────────────────────────────────────────────────
	var store conversation.Store = conversation.NewMemoryStore()
	var checkers []health.Checker
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pool.Close()

		pg := convpg.NewStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			slog.Error("failed to migrate postgres schema", "err", err)
			return 1
		}
		store = pg
		checkers = append(checkers, health.Checker{Name: "database", Check: pool.Ping})
		slog.Info("postgres store ready")
	} else {
		slog.Info("using in-memory store")
	}

	// ── Personas ──────────────────────────────────────────────────────────────
	// Built-ins first; configured profiles with a matching id override them.
	personas := persona.Defaults()
	for _, prof := range cfg.Personas {
		personas = append(personas, prof.Persona())
	}
	registry := persona.NewRegistry(personas...)

	// ── Topics ────────────────────────────────────────────────────────────────
	topics := topic.DefaultTopics()
	routes := conversation.DefaultTopicRoutes()
	if len(cfg.Topics) > 0 {
		topics = make([]topic.Topic, 0, len(cfg.Topics))
		routes = make([]conversation.TopicRoute, 0, len(cfg.Topics))
		for _, tc := range cfg.Topics {
			topics = append(topics, topic.Topic{Tag: tc.Tag, Keywords: tc.Keywords})
			routes = append(routes, conversation.TopicRoute{
				Tag:         tc.Tag,
				ExpertID:    tc.ExpertID,
				PossessedID: tc.PossessedID,
				ReactionID:  tc.ReactionID,
			})
		}
	}
	detector := topic.NewKeywordDetector(topics)

	machine := conversation.NewPhaseMachine(conversation.PhaseMachineConfig{
		Detector:       detector,
		Topics:         detector.Tags(),
		DeepDiveTurns:  cfg.Conversation.DeepDiveTurns,
		WrapUpKeywords: cfg.Conversation.WrapUpKeywords,
		Evaluation:     cfg.Conversation.Evaluation,
	})
	policy := conversation.NewSpeakerPolicy(
		rand.New(rand.NewSource(time.Now().UnixNano())),
		cfg.Conversation.SoloReplyProbability,
	)

	var sanitizeOpts []sanitize.Option
	if cfg.Conversation.MaxReplyLength > 0 {
		sanitizeOpts = append(sanitizeOpts, sanitize.WithMaxLength(cfg.Conversation.MaxReplyLength))
	}

	factory := conversation.AgentFactoryFunc(func(p persona.Persona) (persona.Responder, error) {
		if provider == nil {
			return nil, errors.New("no llm provider configured")
		}
		return persona.NewAgent(persona.AgentConfig{Persona: p, Provider: provider})
	})

	orch, err := conversation.NewOrchestrator(conversation.OrchestratorConfig{
		Store:               store,
		Registry:            registry,
		Factory:             factory,
		Machine:             machine,
		Policy:              policy,
		Sanitizer:           sanitize.New(sanitizeOpts...),
		Routes:              routes,
		ObserverID:          cfg.ObserverID,
		AnalyserID:          cfg.AnalyserID,
		DefaultParticipants: cfg.Conversation.DefaultParticipants,
		AgentTimeout:        cfg.Conversation.AgentTimeout.Std(),
		FillerReply:         cfg.Conversation.FillerReply,
		Metrics:             metrics,
	})
	if err != nil {
		slog.Error("failed to build orchestrator", "err", err)
		return 1
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	api, err := httpapi.NewServer(httpapi.ServerConfig{
		Orchestrator: orch,
		Store:        store,
		Registry:     registry,
		Health:       health.New(checkers...),
		Metrics:      metrics,
	})
	if err != nil {
		slog.Error("failed to build http server", "err", err)
		return 1
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	// Log level changes apply live; anything structural needs a restart.
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level updated", "level", d.NewLogLevel)
		}
		if d.PersonasChanged || d.TopicsChanged {
			slog.Warn("persona or topic changes in config take effect after restart")
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	printStartupSummary(cfg, addr)

	// ── Serve ─────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready, press Ctrl+C to shut down", "addr", addr)
		var err error
		if tlsCfg := cfg.Server.TLS; tlsCfg != nil {
			err = srv.ListenAndServeTLS(tlsCfg.CertFile, tlsCfg.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the built-in LLM provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile all
	// share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.Register(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// openai uses the dedicated SDK-backed provider.
	reg.Register("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.Register("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, addr string) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Townchat startup summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("LLM provider", providerLabel(cfg.Provider))
	printRow("Storage", storageLabel(cfg.Storage))
	printRow("Extra personas", fmt.Sprintf("%d", len(cfg.Personas)))
	printRow("Topics", topicsLabel(cfg.Topics))
	printRow("Evaluation", fmt.Sprintf("%t", cfg.Conversation.Evaluation))
	printRow("Listen addr", addr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func providerLabel(entry config.ProviderEntry) string {
	if entry.Name == "" {
		return "(not configured)"
	}
	if entry.Model != "" {
		return entry.Name + " / " + entry.Model
	}
	return entry.Name
}

func storageLabel(storage config.StorageConfig) string {
	if storage.PostgresDSN == "" {
		return "in-memory"
	}
	return "postgres"
}

func topicsLabel(topics []config.TopicConfig) string {
	if len(topics) == 0 {
		return "built-in"
	}
	return fmt.Sprintf("%d configured", len(topics))
}

func printRow(label, value string) {
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:16]) + "…"
	}
	fmt.Printf("║  %-15s : %-19s ║\n", label, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
