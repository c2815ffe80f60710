package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images:annotate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key in query")
		}
		var req annotateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if len(req.Requests) != 1 || req.Requests[0].Image.Source.ImageURI != "https://pbs.example/img.jpg" {
			t.Errorf("unexpected request: %+v", req)
		}
		resp := annotateResponse{Responses: []annotateResult{{
			TextAnnotations: []textAnnotation{{Description: "Doge to the moon"}, {Description: "Doge"}},
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	got, err := c.ExtractText(context.Background(), "https://pbs.example/img.jpg")
	if err != nil {
		t.Fatalf("ExtractText failed: %v", err)
	}
	if got != "Doge to the moon Doge" {
		t.Errorf("unexpected text: %q", got)
	}
}

func TestExtractTextEmptyURL(t *testing.T) {
	c := NewClient("test-key")
	if _, err := c.ExtractText(context.Background(), ""); err == nil {
		t.Error("expected error for empty url")
	}
}

func TestExtractTextMissingKey(t *testing.T) {
	c := NewClient("")
	if _, err := c.ExtractText(context.Background(), "https://pbs.example/img.jpg"); err == nil {
		t.Error("expected error for missing api key")
	}
}

func TestExtractTextAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := annotateResponse{Responses: make([]annotateResult, 1)}
		resp.Responses[0].Error.Message = "quota exceeded"
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	if _, err := c.ExtractText(context.Background(), "https://pbs.example/img.jpg"); err == nil {
		t.Error("expected error for API-level error message")
	}
}

func TestExtractTextHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	if _, err := c.ExtractText(context.Background(), "https://pbs.example/img.jpg"); err == nil {
		t.Error("expected error for non-2xx response")
	}
}
