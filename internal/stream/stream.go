package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"tweet-trading-bot/internal/interfaces"
	"tweet-trading-bot/internal/logger"
	"tweet-trading-bot/internal/trace"
	"tweet-trading-bot/internal/types"
)

const (
	defaultAPIBaseURL  = "https://api.twitter.com/2"
	defaultConnTimeout = 24 * time.Hour
	defaultBackoff     = 60 * time.Second

	streamParams = "expansions=attachments.media_keys&media.fields=preview_image_url,media_key,url&tweet.fields=attachments,entities"
)

// errStreamClosed marks a clean upstream disconnect; the consumer treats it
// like any other transient failure and reconnects after the backoff.
var errStreamClosed = errors.New("stream closed by upstream")

// Handler runs the extraction->matching pipeline over one decoded event.
// ok is true when the event produced a ticker.
type Handler func(ctx context.Context, tweet types.TweetEvent) (ticker string, ok bool)

type Config struct {
	BearerToken   string
	Username      string
	APIBaseURL    string        // overridable for tests
	ConnTimeout   time.Duration // bounded per-connection lifetime
	Backoff       time.Duration // fixed delay between reconnect attempts
	DryRunPayload string        // literal payload: bypass the network entirely
}

// Consumer maintains a long-lived connection to the filtered stream,
// reconnects on failure, and feeds each decoded event to the handler.
// It stops on the first event that yields a match.
type Consumer struct {
	cfg     Config
	handler Handler
	httpc   *http.Client
}

var _ interfaces.Watcher = (*Consumer)(nil)

func NewConsumer(cfg Config, handler Handler) *Consumer {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	if cfg.ConnTimeout == 0 {
		cfg.ConnTimeout = defaultConnTimeout
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = defaultBackoff
	}
	return &Consumer{
		cfg:     cfg,
		handler: handler,
		// No client-level timeout: the per-connection deadline bounds the
		// streaming read instead.
		httpc: &http.Client{},
	}
}

// Watch consumes the stream until an event matches, the context is
// cancelled, or (in dry-run) the single literal payload has been processed.
// Once a ticker is handed off the consumer is done: resuming requires a
// process restart.
func (c *Consumer) Watch(ctx context.Context) (string, bool, error) {
	if c.cfg.DryRunPayload != "" {
		return c.processLiteral(ctx)
	}

	// Server-side prefilter only: the matcher re-validates every event, so
	// a failed sync degrades throughput, not correctness.
	if err := c.SyncRules(ctx); err != nil {
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		logger.Warn(ctx, "Failed to sync stream filter rules", "error", err)
	}

	for {
		ticker, matched, err := c.streamOnce(ctx)
		if matched {
			return ticker, true, nil
		}
		if ctx.Err() != nil {
			return "", false, ctx.Err()
		}
		logger.Warn(ctx, "Stream interrupted, backing off",
			"error", err,
			"backoff", c.cfg.Backoff.String(),
		)
		if err := sleepCtx(ctx, c.cfg.Backoff); err != nil {
			return "", false, err
		}
	}
}

// processLiteral runs the pipeline over the configured literal payload.
func (c *Consumer) processLiteral(ctx context.Context) (string, bool, error) {
	var ev types.TweetEvent
	if err := json.Unmarshal([]byte(c.cfg.DryRunPayload), &ev); err != nil {
		return "", false, fmt.Errorf("invalid dry-run payload: %w", err)
	}
	ticker, ok := c.handler(ctx, ev)
	return ticker, ok, nil
}

// streamOnce opens one streaming connection and decodes events until a
// match, a read error, a disconnect, or the connection deadline.
func (c *Consumer) streamOnce(ctx context.Context) (string, bool, error) {
	op := logger.StartOperation(ctx, "stream.connect", "username", c.cfg.Username)
	ctx = op.GetContext()

	connCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, c.streamURL(), nil)
	if err != nil {
		op.EndWithError(err)
		return "", false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)

	resp, err := c.httpc.Do(req)
	if err != nil {
		op.EndWithError(err)
		return "", false, err
	}
	defer resp.Body.Close()

	logger.Info(ctx, "Subscribed to stream", "status", resp.StatusCode)
	if resp.StatusCode != http.StatusOK {
		// The body of a non-200 response is an error document, never a
		// stream: read it for the log and go straight to backoff.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("stream http %d: %s", resp.StatusCode, bytes.TrimSpace(body))
		op.EndWithError(err)
		return "", false, err
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev types.TweetEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			logger.Warn(ctx, "Skipping malformed stream line", "error", err, "length", len(line))
			continue
		}
		logger.Info(ctx, "Tweet received", "id", ev.Data.ID, "text", ev.Data.Text)
		if ticker, ok := c.handler(ctx, ev); ok {
			op.End("ticker", ticker)
			return ticker, true, nil
		}
	}
	if err := sc.Err(); err != nil {
		op.EndWithError(err)
		return "", false, err
	}
	op.EndWithError(errStreamClosed)
	return "", false, errStreamClosed
}

func (c *Consumer) streamURL() string {
	return c.cfg.APIBaseURL + "/tweets/search/stream?" + streamParams
}

func (c *Consumer) rulesURL() string {
	return c.cfg.APIBaseURL + "/tweets/search/stream/rules"
}

type streamRule struct {
	ID    string `json:"id,omitempty"`
	Value string `json:"value"`
}

type rulesResponse struct {
	Data []streamRule `json:"data"`
}

// SyncRules resets the server-side filter rules to a single author rule so
// the stream only delivers potentially relevant posts.
func (c *Consumer) SyncRules(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "stream.SyncRules")
	defer span.End()

	existing, err := c.fetchRules(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		ids := make([]string, len(existing))
		for i, r := range existing {
			ids[i] = r.ID
		}
		payload := map[string]any{"delete": map[string]any{"ids": ids}}
		if err := c.postRules(ctx, payload); err != nil {
			return fmt.Errorf("deleting stale rules: %w", err)
		}
	}

	payload := map[string]any{"add": []streamRule{{Value: "from:" + c.cfg.Username}}}
	if err := c.postRules(ctx, payload); err != nil {
		return fmt.Errorf("adding author rule: %w", err)
	}
	logger.Info(ctx, "Stream filter rules synced", "username", c.cfg.Username)
	return nil
}

func (c *Consumer) fetchRules(ctx context.Context) ([]streamRule, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.rulesURL(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("fetching rules http %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var r rulesResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, err
	}
	return r.Data, nil
}

func (c *Consumer) postRules(ctx context.Context, payload map[string]any) error {
	bb, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rulesURL(), bytes.NewReader(bb))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("rules http %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
