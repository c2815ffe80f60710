package content

import (
	"context"
	"strings"

	"tweet-trading-bot/internal/interfaces"
	"tweet-trading-bot/internal/logger"
	"tweet-trading-bot/internal/types"
)

// Extractor combines the tweet text with the text extracted from the first
// attached image into a single searchable string.
type Extractor struct {
	ocr            interfaces.TextExtractor
	useImageSignal bool
}

func NewExtractor(ocr interfaces.TextExtractor, useImageSignal bool) *Extractor {
	return &Extractor{ocr: ocr, useImageSignal: useImageSignal}
}

// Extract returns tweet text plus the image contribution. OCR failures are
// soft: they degrade to an empty contribution and never propagate.
func (e *Extractor) Extract(ctx context.Context, tweet types.TweetEvent) string {
	base := tweet.Data.Text

	imageText := ""
	if e.useImageSignal && e.ocr != nil {
		if url := tweet.FirstMediaURL(); url != "" {
			text, err := e.ocr.ExtractText(ctx, url)
			if err != nil {
				logger.Warn(ctx, "Failed to process attached image", "url", url, "error", err)
			} else {
				if text != "" {
					logger.Info(ctx, "Extracted text from image", "url", url, "length", len(text))
				}
				imageText = text
			}
		}
	}

	return strings.TrimSpace(base + " " + imageText)
}
