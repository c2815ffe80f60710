package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tweet-trading-bot/internal/logger"
	"tweet-trading-bot/internal/trace"
)

func main() {
	if err := initializeSystem(); err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	defer trace.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		logger.Info(ctx, "Shutting down...")
		cancel()
	}()

	cfg, err := loadConfig(ctx)
	if err != nil {
		os.Exit(1)
	}

	compressOldLogs(ctx)

	sess, err := buildSession(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to build session", err)
		os.Exit(1)
	}

	result, err := sess.Run(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Session failed", err)
		os.Exit(1)
	}

	b, _ := json.Marshal(result)
	fmt.Println(string(b))
}
