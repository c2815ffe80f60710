package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tweet-trading-bot/internal/types"
)

// fakeTwitter serves the rules endpoints and a scripted sequence of stream
// responses, one per connection attempt.
type fakeTwitter struct {
	mu           sync.Mutex
	rules        []streamRule
	deleted      [][]string
	added        []string
	connects     int
	streamScript []func(w http.ResponseWriter)
}

func (f *fakeTwitter) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.URL.Path == "/tweets/search/stream/rules" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(rulesResponse{Data: f.rules})
		case r.URL.Path == "/tweets/search/stream/rules" && r.Method == http.MethodPost:
			var body struct {
				Add    []streamRule `json:"add"`
				Delete struct {
					IDs []string `json:"ids"`
				} `json:"delete"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			if len(body.Delete.IDs) > 0 {
				f.deleted = append(f.deleted, body.Delete.IDs)
				f.rules = nil
			}
			for _, a := range body.Add {
				f.added = append(f.added, a.Value)
			}
			w.WriteHeader(http.StatusCreated)
		case r.URL.Path == "/tweets/search/stream":
			if r.Header.Get("Authorization") != "Bearer test-token" {
				t.Errorf("missing bearer auth, got %q", r.Header.Get("Authorization"))
			}
			idx := f.connects
			f.connects++
			if idx >= len(f.streamScript) {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			script := f.streamScript[idx]
			f.mu.Unlock()
			script(w)
			f.mu.Lock()
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func streamLines(lines ...string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		fl, _ := w.(http.Flusher)
		for _, l := range lines {
			fmt.Fprintln(w, l)
			if fl != nil {
				fl.Flush()
			}
		}
	}
}

func matchDoge(ctx context.Context, tweet types.TweetEvent) (string, bool) {
	if strings.Contains(strings.ToLower(tweet.Data.Text), "doge") {
		return "DOGE", true
	}
	return "", false
}

func newTestConsumer(tw *fakeTwitter, t *testing.T) (*Consumer, *httptest.Server) {
	srv := httptest.NewServer(tw.handler(t))
	c := NewConsumer(Config{
		BearerToken: "test-token",
		Username:    "elonmusk",
		APIBaseURL:  srv.URL,
		Backoff:     10 * time.Millisecond,
	}, matchDoge)
	return c, srv
}

func TestWatchMatchTerminates(t *testing.T) {
	tw := &fakeTwitter{streamScript: []func(http.ResponseWriter){
		streamLines(
			`{"data":{"id":"1","text":"nothing to see"}}`,
			``,
			`{"data":{"id":"2","text":"Doge to the moon"}}`,
			`{"data":{"id":"3","text":"never delivered"}}`,
		),
	}}
	c, srv := newTestConsumer(tw, t)
	defer srv.Close()

	ticker, ok, err := c.Watch(context.Background())
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if !ok || ticker != "DOGE" {
		t.Errorf("expected DOGE match, got %q ok=%v", ticker, ok)
	}
	if tw.connects != 1 {
		t.Errorf("expected a single connection, got %d", tw.connects)
	}
}

func TestWatchSkipsMalformedLines(t *testing.T) {
	tw := &fakeTwitter{streamScript: []func(http.ResponseWriter){
		streamLines(
			`{not json at all`,
			`{"data":{"id":"2","text":"much doge"}}`,
		),
	}}
	c, srv := newTestConsumer(tw, t)
	defer srv.Close()

	ticker, ok, err := c.Watch(context.Background())
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if !ok || ticker != "DOGE" {
		t.Errorf("expected match after malformed line, got %q ok=%v", ticker, ok)
	}
}

func TestWatchBackoffAfterNon200(t *testing.T) {
	tw := &fakeTwitter{streamScript: []func(http.ResponseWriter){
		func(w http.ResponseWriter) {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		},
		streamLines(`{"data":{"id":"1","text":"doge day"}}`),
	}}
	c, srv := newTestConsumer(tw, t)
	defer srv.Close()

	ticker, ok, err := c.Watch(context.Background())
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if !ok || ticker != "DOGE" {
		t.Errorf("expected match after retry, got %q ok=%v", ticker, ok)
	}
	if tw.connects != 2 {
		t.Errorf("expected reconnect after non-200, got %d connects", tw.connects)
	}
}

func TestWatchReconnectsAfterDisconnect(t *testing.T) {
	tw := &fakeTwitter{streamScript: []func(http.ResponseWriter){
		streamLines(`{"data":{"id":"1","text":"nothing"}}`), // clean EOF, no match
		streamLines(`{"data":{"id":"2","text":"doge!"}}`),
	}}
	c, srv := newTestConsumer(tw, t)
	defer srv.Close()

	ticker, ok, err := c.Watch(context.Background())
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if !ok || ticker != "DOGE" {
		t.Errorf("expected match on second connection, got %q ok=%v", ticker, ok)
	}
	if tw.connects != 2 {
		t.Errorf("expected 2 connections, got %d", tw.connects)
	}
}

func TestWatchCancelledDuringBackoff(t *testing.T) {
	tw := &fakeTwitter{streamScript: []func(http.ResponseWriter){
		func(w http.ResponseWriter) {
			http.Error(w, "nope", http.StatusServiceUnavailable)
		},
	}}
	srv := httptest.NewServer(tw.handler(t))
	defer srv.Close()

	c := NewConsumer(Config{
		BearerToken: "test-token",
		Username:    "elonmusk",
		APIBaseURL:  srv.URL,
		Backoff:     10 * time.Second,
	}, matchDoge)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, ok, err := c.Watch(ctx)
	if ok {
		t.Error("expected no match")
	}
	if err == nil {
		t.Error("expected context error")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not abort the backoff wait")
	}
}

func TestSyncRulesResetsAndAddsAuthorRule(t *testing.T) {
	tw := &fakeTwitter{
		rules: []streamRule{{ID: "11", Value: "stale"}, {ID: "12", Value: "stale2"}},
	}
	c, srv := newTestConsumer(tw, t)
	defer srv.Close()

	if err := c.SyncRules(context.Background()); err != nil {
		t.Fatalf("SyncRules failed: %v", err)
	}

	tw.mu.Lock()
	defer tw.mu.Unlock()
	if len(tw.deleted) != 1 || len(tw.deleted[0]) != 2 {
		t.Errorf("expected stale rules deleted, got %v", tw.deleted)
	}
	if len(tw.added) != 1 || tw.added[0] != "from:elonmusk" {
		t.Errorf("expected author rule added, got %v", tw.added)
	}
}

func TestWatchDryRunBypassesNetwork(t *testing.T) {
	c := NewConsumer(Config{
		Username:      "elonmusk",
		APIBaseURL:    "http://127.0.0.1:1", // would fail if contacted
		DryRunPayload: `{"data":{"id":"1","text":"Doge to the moon"}}`,
	}, matchDoge)

	ticker, ok, err := c.Watch(context.Background())
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if !ok || ticker != "DOGE" {
		t.Errorf("expected DOGE from literal payload, got %q ok=%v", ticker, ok)
	}
}

func TestWatchDryRunNoMatch(t *testing.T) {
	c := NewConsumer(Config{
		Username:      "elonmusk",
		APIBaseURL:    "http://127.0.0.1:1",
		DryRunPayload: `{"data":{"id":"1","text":"nothing here"}}`,
	}, matchDoge)

	ticker, ok, err := c.Watch(context.Background())
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if ok || ticker != "" {
		t.Errorf("expected no match, got %q ok=%v", ticker, ok)
	}
}

func TestWatchDryRunMalformedPayload(t *testing.T) {
	c := NewConsumer(Config{
		Username:      "elonmusk",
		DryRunPayload: `{broken`,
	}, matchDoge)

	if _, _, err := c.Watch(context.Background()); err == nil {
		t.Error("expected error for malformed literal payload")
	}
}

func TestInertWatcher(t *testing.T) {
	w := NewInert()
	ticker, ok, err := w.Watch(context.Background())
	if err != nil || ok || ticker != "" {
		t.Errorf("expected inert no-op, got %q ok=%v err=%v", ticker, ok, err)
	}
}
