// Command daeguchat runs the Daegu webtoon chat service.
//
// Usage:
//
//	export OPENAI_API_KEY=sk-...
//	go run ./cmd/daeguchat
//
// Without an API key the service falls back to scripted replies, which is
// enough for frontend development. Configuration is environment-driven:
//
//	PORT            listen port (default 3001)
//	OPENAI_API_KEY  OpenAI credential; empty selects the scripted provider
//	OPENAI_MODEL    chat completion model override
//	REDIS_ADDR      Redis address; empty selects the in-memory session store
//	ENABLE_SAFETY   "false" disables all safety policy (default true)
//	CHARACTER_PROMPT  persona override for the character
//	AUDIT_DIR       safety audit log directory (default ./data)
//	LOG_LEVEL       debug | info | warn | error
//	LOG_MODULES     per-module level overrides, e.g. "engine=debug,httpapi=warn"
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/daeguwebtoon/chatcore/engine"
	"github.com/daeguwebtoon/chatcore/events"
	"github.com/daeguwebtoon/chatcore/httpapi"
	"github.com/daeguwebtoon/chatcore/logger"
	prom "github.com/daeguwebtoon/chatcore/metrics/prometheus"
	"github.com/daeguwebtoon/chatcore/providers"
	"github.com/daeguwebtoon/chatcore/sessionstore"
	"github.com/daeguwebtoon/chatcore/version"
)

const (
	defaultPort     = "3001"
	defaultAuditDir = "./data"
	sweepInterval   = time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if mods := os.Getenv("LOG_MODULES"); mods != "" {
		if err := logger.Configure(&logger.LoggingConfigSpec{
			DefaultLevel: os.Getenv("LOG_LEVEL"),
			Modules:      logger.ParseModuleLevels(mods),
		}); err != nil {
			return err
		}
	}

	store, err := buildStore(ctx)
	if err != nil {
		return err
	}
	sessionstore.StartSweeper(ctx, store, sweepInterval)

	provider := buildProvider()
	defer provider.Close()

	bus := events.NewEventBus()
	bus.SubscribeAll(prom.NewMetricsListener().Listener())

	audit, err := events.NewAuditStore(envOr("AUDIT_DIR", defaultAuditDir))
	if err != nil {
		return err
	}
	defer audit.Close()
	for _, t := range []events.EventType{
		events.EventSafetyTriggered,
		events.EventSessionTerminated,
		events.EventPlatformTerminated,
	} {
		bus.Subscribe(t, audit.Listener())
	}

	cfg := engine.DefaultConfig()
	if strings.EqualFold(os.Getenv("ENABLE_SAFETY"), "false") {
		cfg.SafetyEnabled = false
		cfg.OffTopicPolicy = false
	}
	if persona := os.Getenv("CHARACTER_PROMPT"); persona != "" {
		cfg.Persona = persona
	}

	eng := engine.New(store, provider,
		engine.WithConfig(cfg),
		engine.WithEventBus(bus),
	)

	exporter := prom.NewExporter("")
	go trackActiveSessions(ctx, eng)

	server := httpapi.NewServer(eng,
		httpapi.WithAuditStore(audit),
		httpapi.WithMetricsHandler(exporter.Handler()),
		httpapi.WithRateLimit(10, 30),
	)

	addr := ":" + envOr("PORT", defaultPort)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		attrs := append([]any{
			"addr", addr,
			"provider", provider.ID(),
			"safety_enabled", cfg.SafetyEnabled,
		}, version.BuildAttrs()...)
		logger.Info("🚀 daeguchat listening", attrs...)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return audit.Sync()
}

func buildStore(ctx context.Context) (sessionstore.Store, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		logger.Info("using in-memory session store")
		return sessionstore.NewMemoryStore(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	logger.Info("using redis session store", "addr", addr)
	return sessionstore.NewRedisStore(client), nil
}

func buildProvider() providers.Provider {
	if os.Getenv("OPENAI_API_KEY") == "" {
		logger.Warn("⚠️ OPENAI_API_KEY not set, using scripted replies")
		return providers.NewScriptProvider(
			"오 그렇구나! 어떤 분위기 좋아해?",
			"대구 처음이야? 기대해도 돼!",
			"응응, 계속 들려줘!",
		)
	}
	opts := []providers.OpenAIOption{}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		opts = append(opts, providers.WithModel(model))
	}
	return providers.NewOpenAIProvider(opts...)
}

// trackActiveSessions refreshes the active-session gauge from store stats.
func trackActiveSessions(ctx context.Context, eng *engine.Engine) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := eng.Stats(ctx)
			if err != nil {
				continue
			}
			prom.SetActiveSessions(stats.Active)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
