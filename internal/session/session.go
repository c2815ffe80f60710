package session

import (
	"context"

	"tweet-trading-bot/internal/content"
	"tweet-trading-bot/internal/guard"
	"tweet-trading-bot/internal/interfaces"
	"tweet-trading-bot/internal/logger"
	"tweet-trading-bot/internal/match"
	"tweet-trading-bot/internal/stream"
	"tweet-trading-bot/internal/tradelog"
	"tweet-trading-bot/internal/types"
)

// Trader runs one buy-then-sell cycle for a matched ticker.
type Trader interface {
	Execute(ctx context.Context, ticker string) (*types.TradeResult, error)
}

// Session is one watch-match-trade run. The stream terminates before the
// trade starts, so there is a single thread of control and at most one
// cycle per process.
type Session struct {
	watcher interfaces.Watcher
	trader  Trader
	guard   *guard.Guard
	dryRun  bool // literal-payload run: match and report, never trade
}

func New(watcher interfaces.Watcher, trader Trader, g *guard.Guard, dryRun bool) *Session {
	return &Session{watcher: watcher, trader: trader, guard: g, dryRun: dryRun}
}

// NewHandler builds the per-event pipeline: extract searchable text, run the
// rule set over it, and record any match.
func NewHandler(extractor *content.Extractor, rules *match.RuleSet, dryRun bool) stream.Handler {
	return func(ctx context.Context, tweet types.TweetEvent) (string, bool) {
		text := extractor.Extract(ctx, tweet)
		ticker, pattern, ok := rules.Match(text)
		if !ok {
			return "", false
		}
		logger.Match(ctx, pattern, ticker, "tweet_id", tweet.Data.ID, "text", text)
		if err := tradelog.AppendMatch(tradelog.MatchEntry{
			Pattern: pattern,
			Ticker:  ticker,
			TweetID: tweet.Data.ID,
			Text:    text,
			DryRun:  dryRun,
		}); err != nil {
			logger.Warn(ctx, "Failed to record match", "error", err)
		}
		return ticker, true
	}
}

// Run acquires the guard, watches until a match, and executes the trade
// cycle. A dry run stops after the match and reports an empty result.
func (s *Session) Run(ctx context.Context) (*types.TradeResult, error) {
	if err := s.guard.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.guard.Release()

	ticker, matched, err := s.watcher.Watch(ctx)
	if err != nil {
		return nil, err
	}
	if !matched {
		logger.Info(ctx, "Watcher finished without a match")
		return &types.TradeResult{}, nil
	}
	if s.dryRun {
		logger.Info(ctx, "Dry run matched, skipping trade", "ticker", ticker)
		return &types.TradeResult{}, nil
	}
	return s.trader.Execute(ctx, ticker)
}
