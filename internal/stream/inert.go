package stream

import (
	"context"

	"tweet-trading-bot/internal/interfaces"
	"tweet-trading-bot/internal/logger"
)

// inertWatcher is the no-op watcher used when no stream API key is
// configured: it logs once and returns without a match.
type inertWatcher struct{}

var _ interfaces.Watcher = inertWatcher{}

// NewInert returns a watcher that never connects and never matches.
func NewInert() interfaces.Watcher {
	return inertWatcher{}
}

func (inertWatcher) Watch(ctx context.Context) (string, bool, error) {
	logger.Info(ctx, "No stream API key configured, watcher is disabled")
	return "", false, nil
}
