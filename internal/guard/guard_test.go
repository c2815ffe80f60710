package guard

import (
	"context"
	"testing"
	"time"
)

func TestAcquireRelease(t *testing.T) {
	dir := t.TempDir()
	g := New("USDT", []string{"doge"}, 0, dir)

	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := g.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
}

func TestAcquireCollidingBridge(t *testing.T) {
	dir := t.TempDir()
	first := New("USDT", []string{"doge"}, 0, dir)
	second := New("USDT", []string{"bitcoin"}, 0, dir)

	if err := first.Acquire(context.Background()); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	defer first.Release()

	if err := second.Acquire(context.Background()); err == nil {
		second.Release()
		t.Fatal("expected second session on the same bridge to fail")
	}
}

func TestAcquireDisjointBridges(t *testing.T) {
	dir := t.TempDir()
	first := New("USDT", []string{"doge"}, 0, dir)
	second := New("BUSD", []string{"doge"}, 0, dir)

	if err := first.Acquire(context.Background()); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	defer first.Release()

	if err := second.Acquire(context.Background()); err != nil {
		t.Fatalf("second Acquire on a different bridge failed: %v", err)
	}
	second.Release()
}

func TestAcquireCancelledDuringDelay(t *testing.T) {
	dir := t.TempDir()
	g := New("USDT", []string{"doge"}, 10*time.Second, dir)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	if err := g.Acquire(ctx); err == nil {
		t.Fatal("expected context error")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not abort the startup delay")
	}
	g.Release()
}
