package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tweet-trading-bot/internal/interfaces"
	"tweet-trading-bot/internal/trace"
)

const defaultBaseURL = "https://vision.googleapis.com/v1"

// Client calls the Google Vision images:annotate endpoint to detect text
// in an image referenced by URL. Callers soft-fail its errors.
type Client struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
}

var _ interfaces.TextExtractor = (*Client)(nil)

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithBaseURL is used by tests to point at a fake server.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type imageSource struct {
	ImageURI string `json:"imageUri"`
}

type annotateImage struct {
	Source imageSource `json:"source"`
}

type annotateFeature struct {
	Type string `json:"type"`
}

type annotateEntry struct {
	Image    annotateImage     `json:"image"`
	Features []annotateFeature `json:"features"`
}

type annotateRequest struct {
	Requests []annotateEntry `json:"requests"`
}

type textAnnotation struct {
	Description string `json:"description"`
}

type annotateResult struct {
	TextAnnotations []textAnnotation `json:"textAnnotations"`
	Error           struct {
		Message string `json:"message"`
	} `json:"error"`
}

type annotateResponse struct {
	Responses []annotateResult `json:"responses"`
}

// ExtractText runs TEXT_DETECTION on the image at imageURL and returns the
// detected text joined with spaces.
func (c *Client) ExtractText(ctx context.Context, imageURL string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "vision.ExtractText")
	defer span.End()

	if imageURL == "" {
		return "", errors.New("empty image url")
	}
	if c.apiKey == "" {
		return "", errors.New("vision api key missing")
	}

	reqBody := annotateRequest{
		Requests: []annotateEntry{{
			Image:    annotateImage{Source: imageSource{ImageURI: imageURL}},
			Features: []annotateFeature{{Type: "TEXT_DETECTION"}},
		}},
	}
	bb, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := c.baseURL + "/images:annotate?key=" + c.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bb))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("vision http %d: %s", resp.StatusCode, string(body))
	}

	var r annotateResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Responses) == 0 {
		return "", errors.New("empty vision response")
	}
	if msg := r.Responses[0].Error.Message; msg != "" {
		return "", fmt.Errorf("vision api error: %s", msg)
	}

	parts := make([]string, 0, len(r.Responses[0].TextAnnotations))
	for _, a := range r.Responses[0].TextAnnotations {
		parts = append(parts, a.Description)
	}
	return strings.Join(parts, " "), nil
}
