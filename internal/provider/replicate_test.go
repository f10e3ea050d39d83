package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRunSendsPredictionRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models/black-forest-labs/flux-dev/predictions" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %q", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("unexpected authorization header %q", got)
		}
		if got := r.Header.Get("Prefer"); got != "wait" {
			t.Fatalf("unexpected prefer header %q", got)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		input, ok := payload["input"].(map[string]any)
		if !ok {
			t.Fatalf("missing input object: %#v", payload)
		}
		if input["prompt"] != "a red fox in snow" || input["guidance"] != 3.5 {
			t.Fatalf("unexpected input payload: %#v", input)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"succeeded","output":"https://cdn.example/img1.png"}`))
	}))
	defer server.Close()

	client := New("test-token", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	output, err := client.Run(context.Background(), "black-forest-labs/flux-dev", map[string]any{
		"prompt":   "a red fox in snow",
		"guidance": 3.5,
	})
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if output != "https://cdn.example/img1.png" {
		t.Fatalf("unexpected output: %#v", output)
	}
}

func TestRunReturnsArrayOutputVerbatim(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"succeeded","output":["https://cdn.example/a.png","https://cdn.example/b.png"]}`))
	}))
	defer server.Close()

	client := New("test-token", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	output, err := client.Run(context.Background(), "stability-ai/stable-diffusion-3.5-large", map[string]any{"prompt": "x"})
	if err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	arr, ok := output.([]any)
	if !ok || len(arr) != 2 || arr[0] != "https://cdn.example/a.png" {
		t.Fatalf("unexpected output: %#v", output)
	}
}

func TestRunSurfacesProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"guidance must be a number"}`))
	}))
	defer server.Close()

	client := New("test-token", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	_, err := client.Run(context.Background(), "black-forest-labs/flux-dev", map[string]any{"prompt": "x"})

	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if perr.Status != http.StatusUnprocessableEntity || !strings.Contains(perr.Message, "guidance must be a number") {
		t.Fatalf("unexpected error: %+v", perr)
	}
}

func TestRunTreatsFailedPredictionAsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"failed","error":"NSFW content detected"}`))
	}))
	defer server.Close()

	client := New("test-token", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	_, err := client.Run(context.Background(), "black-forest-labs/flux-dev", map[string]any{"prompt": "x"})
	if err == nil || !strings.Contains(err.Error(), "NSFW content detected") {
		t.Fatalf("expected failed prediction error, got %v", err)
	}
}

func TestRunWithoutTokenFailsWithProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer " {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"authentication credentials were not provided"}`))
			return
		}
		t.Fatalf("unexpected authorization header %q", r.Header.Get("Authorization"))
	}))
	defer server.Close()

	client := New("", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
	_, err := client.Run(context.Background(), "black-forest-labs/flux-dev", map[string]any{"prompt": "x"})

	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error for missing token, got %v", err)
	}
	if !strings.Contains(perr.Message, "authentication credentials") {
		t.Fatalf("unexpected message: %q", perr.Message)
	}
}

func TestRunWrapsTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // connection refused

	client := New("test-token", WithBaseURL(server.URL))
	_, err := client.Run(context.Background(), "black-forest-labs/flux-dev", map[string]any{"prompt": "x"})

	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *Error for transport failure, got %v", err)
	}
	if perr.Status != 0 {
		t.Fatalf("transport failures carry no HTTP status, got %d", perr.Status)
	}
}
