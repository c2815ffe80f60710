package content

import (
	"context"
	"errors"
	"testing"

	"tweet-trading-bot/internal/types"
)

type fakeOCR struct {
	text  string
	err   error
	calls int
	urls  []string
}

func (f *fakeOCR) ExtractText(ctx context.Context, imageURL string) (string, error) {
	f.calls++
	f.urls = append(f.urls, imageURL)
	return f.text, f.err
}

func tweetWithMedia(text, url string) types.TweetEvent {
	var ev types.TweetEvent
	ev.Data.Text = text
	if url != "" {
		ev.Includes.Media = []types.Media{{URL: url}}
	}
	return ev
}

func TestExtractTextOnly(t *testing.T) {
	ocr := &fakeOCR{}
	ex := NewExtractor(ocr, true)

	got := ex.Extract(context.Background(), tweetWithMedia("Doge to the moon", ""))
	if got != "Doge to the moon" {
		t.Errorf("expected base text, got %q", got)
	}
	if ocr.calls != 0 {
		t.Errorf("expected no OCR call without media, got %d", ocr.calls)
	}
}

func TestExtractCombinesImageText(t *testing.T) {
	ocr := &fakeOCR{text: "buy bitcoin"}
	ex := NewExtractor(ocr, true)

	got := ex.Extract(context.Background(), tweetWithMedia("much wow", "https://pbs.example/img.jpg"))
	if got != "much wow buy bitcoin" {
		t.Errorf("expected combined text, got %q", got)
	}
	if len(ocr.urls) != 1 || ocr.urls[0] != "https://pbs.example/img.jpg" {
		t.Errorf("expected OCR called with media url, got %v", ocr.urls)
	}
}

func TestExtractOCRFailureDegradesToBaseText(t *testing.T) {
	ocr := &fakeOCR{err: errors.New("network down")}
	ex := NewExtractor(ocr, true)

	got := ex.Extract(context.Background(), tweetWithMedia("Doge day", "https://pbs.example/img.jpg"))
	if got != "Doge day" {
		t.Errorf("expected base text on OCR failure, got %q", got)
	}
}

func TestExtractEmptyOCRNoDanglingSeparator(t *testing.T) {
	ocr := &fakeOCR{text: ""}
	ex := NewExtractor(ocr, true)

	got := ex.Extract(context.Background(), tweetWithMedia("Doge day", "https://pbs.example/img.jpg"))
	if got != "Doge day" {
		t.Errorf("expected trimmed base text, got %q", got)
	}
}

func TestExtractImageSignalDisabled(t *testing.T) {
	ocr := &fakeOCR{text: "should not appear"}
	ex := NewExtractor(ocr, false)

	got := ex.Extract(context.Background(), tweetWithMedia("plain", "https://pbs.example/img.jpg"))
	if got != "plain" {
		t.Errorf("expected base text with image signal disabled, got %q", got)
	}
	if ocr.calls != 0 {
		t.Errorf("expected no OCR call when disabled, got %d", ocr.calls)
	}
}

func TestExtractIdempotent(t *testing.T) {
	ocr := &fakeOCR{text: "same"}
	ex := NewExtractor(ocr, true)
	tweet := tweetWithMedia("tweet", "https://pbs.example/img.jpg")

	first := ex.Extract(context.Background(), tweet)
	second := ex.Extract(context.Background(), tweet)
	if first != second {
		t.Errorf("expected identical output, got %q vs %q", first, second)
	}
}
