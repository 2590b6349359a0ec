// go_transcript: YouTube transcript analyzer.
//
// Serves the JSON API (transcript, analyze, chat, saved analyses) and, when
// MCP_PORT is set, the same operations as MCP tools.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go-mcpserver"
	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/proxypool"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_transcript/internal/auth"
	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/httpapi"
	"github.com/anatolykoptev/go_transcript/internal/render"
	"github.com/anatolykoptev/go_transcript/internal/store"
	"github.com/anatolykoptev/go_transcript/internal/transcript"
	"github.com/anatolykoptev/go_transcript/internal/transcriptserver"
)

var (
	version = "dev"
	apiPort = env.Str("API_PORT", "3000")
	mcpPort = env.Str("MCP_PORT", "8892")
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := initEngine(ctx)
	gen := initGenerator(ctx, c)
	pipeline := transcript.NewPipeline(nil, gen)

	mode := render.Sanitized
	if strings.EqualFold(env.Str("RENDER_SANITIZE", "true"), "false") {
		mode = render.Permissive
	}

	gw, err := store.Open(ctx, store.Config{
		Driver:      env.Str("STORE_DRIVER", "sqlite"),
		SQLitePath:  env.Str("SQLITE_PATH", "data/analyses.db"),
		DatabaseURL: env.Str("DATABASE_URL", ""),
		MongoURI:    env.Str("MONGO_URI", ""),
		MongoDB:     env.Str("MONGO_DB", "go_transcript"),
	})
	if err != nil {
		slog.Warn("store init failed, saved analyses disabled", slog.Any("error", err))
	} else {
		defer gw.Close()
	}

	authProvider, err := auth.New(auth.Config{
		Provider:     env.Str("AUTH_PROVIDER", "none"),
		SupabaseURL:  env.Str("SUPABASE_URL", ""),
		SupabaseKey:  env.Str("SUPABASE_KEY", ""),
		StaticTokens: env.List("AUTH_STATIC_TOKENS", ""),
	})
	if err != nil {
		slog.Error("auth init failed", slog.Any("error", err))
		os.Exit(1)
	}

	api := httpapi.New(httpapi.Deps{
		Pipeline:   pipeline,
		Store:      gw,
		Auth:       authProvider,
		RenderMode: mode,
		RatePerSec: env.Float("API_RATE_PER_SEC", 5),
		RateBurst:  env.Int("API_RATE_BURST", 10),
	})

	slog.Info("starting go_transcript",
		slog.String("api_port", apiPort),
		slog.String("mcp_port", mcpPort),
		slog.String("version", version),
	)

	apiErr := make(chan error, 1)
	go func() { apiErr <- httpapi.Run(ctx, ":"+apiPort, api.Handler()) }()

	if mcpPort == "" {
		if err := <-apiErr; err != nil {
			slog.Error("api server failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_transcript",
		Version: version,
	}, nil)
	n := transcriptserver.RegisterTools(server, pipeline, mode)
	slog.Info("tools registered", slog.Int("count", n))

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_transcript",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 300 * time.Second,
		Metrics:      engine.FormatMetrics,
	}); err != nil {
		slog.Error("mcp server failed", slog.Any("error", err))
	}
	stop()
	<-apiErr
}

func initEngine(ctx context.Context) engine.Config {
	c := engine.Config{
		LLMProvider:        env.Str("LLM_PROVIDER", "openai"),
		LLMAPIKey:          env.Str("LLM_API_KEY", ""),
		LLMAPIKeyFallbacks: env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:         env.Str("LLM_API_BASE", "https://openrouter.ai/api/v1"),
		LLMModel:           env.Str("LLM_MODEL", "deepseek/deepseek-r1:free"),
		GeminiAPIKey:       env.Str("GEMINI_API_KEY", ""),
		GeminiModel:        env.Str("GEMINI_MODEL", "gemini-2.5-flash"),
		LLMTimeout:         env.Duration("LLM_TIMEOUT", 60*time.Second),
		LLMRatePerMin:      env.Int("LLM_RATE_PER_MIN", 30),
		Analyze: engine.Sampling{
			Temperature: env.Float("ANALYZE_TEMPERATURE", 0.7),
			MaxTokens:   env.Int("ANALYZE_MAX_TOKENS", 2500),
		},
		Chat: engine.Sampling{
			Temperature: env.Float("CHAT_TEMPERATURE", 0.7),
			MaxTokens:   env.Int("CHAT_MAX_TOKENS", 1000),
		},
		MaxTranscriptChars:   env.Int("MAX_TRANSCRIPT_CHARS", 0),
		TranscriptLangs:      env.List("TRANSCRIPT_LANGS", "en"),
		FetchTimeout:         env.Duration("FETCH_TIMEOUT", 20*time.Second),
		YouTubeAPIKey:        env.Str("YOUTUBE_API_KEY", ""),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	var opts []stealth.ClientOption
	opts = append(opts, stealth.WithTimeout(15))

	if apiKey := env.Str("WEBSHARE_API_KEY", ""); apiKey != "" {
		pool, err := proxypool.NewWebshare(apiKey)
		if err != nil {
			slog.Warn("proxy pool init failed, running without proxy", slog.Any("error", err))
		} else {
			opts = append(opts, stealth.WithProxyPool(pool))
			slog.Info("proxy pool initialized", slog.Int("proxies", pool.Len()))
		}
	}

	bc, err := stealth.NewClient(opts...)
	if err != nil {
		slog.Error("stealth client init failed", slog.Any("error", err))
	} else {
		c.BrowserClient = bc
		slog.Info("stealth browser client initialized")
	}

	engine.Init(c)
	engine.SetLLMRate(c.LLMRatePerMin)

	if path := env.Str("TUNING_FILE", ""); path != "" {
		base := engine.Tuning{Analyze: c.Analyze, Chat: c.Chat}
		if err := engine.WatchTuning(ctx, path, base); err != nil {
			slog.Warn("tuning file ignored", slog.String("path", path), slog.Any("error", err))
		} else {
			slog.Info("tuning file loaded", slog.String("path", path))
		}
	}

	cacheTTL := env.Duration("CACHE_TTL", 6*time.Hour)
	engine.InitCache(env.Str("REDIS_URL", ""), cacheTTL, c.CacheMaxEntries, c.CacheCleanupInterval)
	return c
}

// initGenerator picks the inference backend. A missing key leaves the
// generator nil; generation calls then fail with a configuration message.
func initGenerator(ctx context.Context, c engine.Config) engine.Generator {
	switch c.LLMProvider {
	case "genai", "gemini":
		if c.GeminiAPIKey == "" {
			slog.Warn("GEMINI_API_KEY not set, analysis disabled")
			return nil
		}
		g, err := engine.NewGenAIGenerator(ctx, c.GeminiAPIKey, c.GeminiModel)
		if err != nil {
			slog.Error("genai init failed", slog.Any("error", err))
			return nil
		}
		slog.Info("llm: gemini", slog.String("model", c.GeminiModel))
		return g
	default:
		if c.LLMAPIKey == "" {
			slog.Warn("LLM_API_KEY not set, analysis disabled")
			return nil
		}
		client := llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
			llm.WithFallbackKeys(c.LLMAPIKeyFallbacks),
			llm.WithMaxTokens(c.Analyze.MaxTokens),
			llm.WithTemperature(c.Analyze.Temperature),
			llm.WithHTTPClient(&http.Client{Timeout: c.LLMTimeout}),
		)
		slog.Info("llm: openai-compatible", slog.String("base", c.LLMAPIBase), slog.String("model", c.LLMModel))
		return engine.NewKitGenerator(client)
	}
}
