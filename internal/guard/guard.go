package guard

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"tweet-trading-bot/internal/logger"
)

// Guard enforces that only one session manipulates a given bridge asset at
// a time. Concurrent sessions racing on the same bridge balance corrupt
// order sizing: available-balance reads go stale between check and trade.
type Guard struct {
	bridge   string
	patterns []string
	delay    time.Duration
	lock     *flock.Flock
}

func New(bridge string, patterns []string, delay time.Duration, lockDir string) *Guard {
	if lockDir == "" {
		lockDir = os.TempDir()
	}
	path := filepath.Join(lockDir, fmt.Sprintf("tweet-trading-bot-%s.lock", strings.ToLower(bridge)))
	return &Guard{
		bridge:   bridge,
		patterns: patterns,
		delay:    delay,
		lock:     flock.New(path),
	}
}

// Acquire takes the advisory lock for the bridge asset, warns the operator
// about the disjointness requirement, and holds startup for the configured
// delay so a misconfigured second instance can be stopped in time.
func (g *Guard) Acquire(ctx context.Context) error {
	locked, err := g.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring session lock %s: %w", g.lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("another session is already trading bridge asset %s (lock %s)", g.bridge, g.lock.Path())
	}

	logger.Warn(ctx, "If running a 2nd instance, make sure its bridge asset and rules do NOT overlap this one",
		"bridge", g.bridge,
		"rules", strings.Join(g.patterns, ", "),
	)
	logger.Info(ctx, "Session resuming shortly", "delay", g.delay.String())
	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// Release drops the advisory lock.
func (g *Guard) Release() error {
	return g.lock.Unlock()
}
