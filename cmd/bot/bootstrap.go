package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tweet-trading-bot/internal/content"
	"tweet-trading-bot/internal/exchange/binance"
	"tweet-trading-bot/internal/exchange/exchangeobs"
	"tweet-trading-bot/internal/guard"
	"tweet-trading-bot/internal/interfaces"
	"tweet-trading-bot/internal/logger"
	"tweet-trading-bot/internal/match"
	"tweet-trading-bot/internal/session"
	"tweet-trading-bot/internal/store"
	"tweet-trading-bot/internal/stream"
	"tweet-trading-bot/internal/trace"
	"tweet-trading-bot/internal/trade"
	"tweet-trading-bot/internal/tradelog"
	"tweet-trading-bot/internal/types"
	"tweet-trading-bot/internal/vision"
)

// initializeSystem initializes environment, logger, and tracer
func initializeSystem() error {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logger
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Initialize tracer
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context) (*store.Config, error) {
	cfg, err := store.LoadConfig("config.yaml")
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	return cfg, nil
}

// compressOldLogs compresses old tradelog files if retention is configured
func compressOldLogs(ctx context.Context) {
	if v := os.Getenv("TRADER_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if err := tradelog.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}
}

// buildSession wires the full pipeline: rules, extractor, watcher, exchange,
// executor, and guard.
func buildSession(ctx context.Context, cfg *store.Config) (*session.Session, error) {
	rules := make([]match.Rule, len(cfg.Watcher.Rules))
	for i, r := range cfg.Watcher.Rules {
		rules[i] = match.Rule{Pattern: r.Pattern, Ticker: r.Ticker}
	}
	ruleSet, err := match.Compile(rules)
	if err != nil {
		return nil, err
	}

	extractor := initializeExtractor(ctx, cfg)
	dryRun := cfg.Watcher.TweetText != ""
	handler := session.NewHandler(extractor, ruleSet, dryRun)
	watcher, err := initializeWatcher(ctx, cfg, handler)
	if err != nil {
		return nil, err
	}

	exchange := initializeExchange(ctx, cfg)
	executor := trade.NewExecutor(exchange, trade.Config{
		Bridge:    cfg.Trade.Bridge,
		OrderSize: cfg.Trade.OrderSize,
		BuyDelay:  time.Duration(cfg.Trade.BuyDelaySeconds) * time.Second,
		SellDelay: time.Duration(cfg.Trade.SellDelaySeconds) * time.Second,
	})

	g := guard.New(
		cfg.Trade.Bridge,
		ruleSet.Patterns(),
		time.Duration(cfg.Guard.StartupDelaySeconds)*time.Second,
		cfg.Guard.LockDir,
	)

	logStartupBanner(ctx, cfg, ruleSet, dryRun)
	return session.New(watcher, executor, g, dryRun), nil
}

// initializeExtractor builds the content extractor; the image signal is
// enabled only when both the config flag and the Vision key are present.
func initializeExtractor(ctx context.Context, cfg *store.Config) *content.Extractor {
	var ocr interfaces.TextExtractor
	useImageSignal := cfg.Watcher.UseImageSignal
	if useImageSignal {
		key := os.Getenv("VISION_API_KEY")
		if key == "" {
			logger.Warn(ctx, "VISION_API_KEY not set - image signal disabled")
			useImageSignal = false
		} else {
			ocr = vision.NewClient(key)
		}
	}
	return content.NewExtractor(ocr, useImageSignal)
}

// initializeWatcher returns the stream consumer, or an inert watcher when no
// bearer token is configured and no literal payload was requested.
func initializeWatcher(ctx context.Context, cfg *store.Config, handler stream.Handler) (interfaces.Watcher, error) {
	payload := ""
	if cfg.Watcher.TweetText != "" {
		var ev types.TweetEvent
		ev.Data.Text = cfg.Watcher.TweetText
		b, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("encoding dry-run payload: %w", err)
		}
		payload = string(b)
		logger.Warn(ctx, "Processing literal tweet text - no stream, no trade")
	}

	token := os.Getenv("TWITTER_API_KEY")
	if token == "" && payload == "" {
		return stream.NewInert(), nil
	}

	return stream.NewConsumer(stream.Config{
		BearerToken:   token,
		Username:      cfg.Watcher.Username,
		ConnTimeout:   time.Duration(cfg.Watcher.TimeoutHours) * time.Hour,
		Backoff:       time.Duration(cfg.Watcher.BackoffSeconds) * time.Second,
		DryRunPayload: payload,
	}, handler), nil
}

// initializeExchange initializes the margin exchange with observability
func initializeExchange(ctx context.Context, cfg *store.Config) interfaces.Exchange {
	ex := binance.NewExchange(binance.Params{
		Mode:       cfg.Mode,
		APIKey:     os.Getenv("BINANCE_API_KEY"),
		SecretKey:  os.Getenv("BINANCE_SECRET_KEY"),
		MarginType: cfg.Trade.MarginType,
		UseTestnet: os.Getenv("BINANCE_USE_TESTNET") == "true",
	})

	if cfg.Mode == "DRY_RUN" {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated")
	}

	// Wrap with observability middleware
	return exchangeobs.Wrap(ex)
}

func logStartupBanner(ctx context.Context, cfg *store.Config, rules *match.RuleSet, dryRun bool) {
	logger.Info(ctx, "Session parameters",
		"mode", cfg.Mode,
		"username", cfg.Watcher.Username,
		"rules", strings.Join(rules.Patterns(), ", "),
		"image_signal", cfg.Watcher.UseImageSignal,
		"bridge", cfg.Trade.Bridge,
		"order_size", cfg.Trade.OrderSize,
		"margin_type", cfg.Trade.MarginType,
		"buy_delay_seconds", cfg.Trade.BuyDelaySeconds,
		"sell_delay_seconds", cfg.Trade.SellDelaySeconds,
		"dry_run", dryRun,
	)
}
