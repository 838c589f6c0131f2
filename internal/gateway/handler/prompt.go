package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"promptbridge/internal/bridge"
)

// Runner executes one workflow. *bridge.Bridge satisfies it.
type Runner interface {
	Run(ctx context.Context, workflow bridge.Workflow, baseURL *url.URL) (*bridge.Result, error)
}

type PromptHandler struct {
	runner          Runner
	publicBaseURL   *url.URL
	maxRequestBytes int64
}

// NewPromptHandler builds the POST /prompt handler. A non-empty publicBaseURL
// replaces the base URL derived from each request.
func NewPromptHandler(runner Runner, publicBaseURL string, maxRequestBytes int64) (*PromptHandler, error) {
	h := &PromptHandler{runner: runner, maxRequestBytes: maxRequestBytes}
	if raw := strings.TrimSpace(publicBaseURL); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid public base url %q", raw)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		h.publicBaseURL = u
	}
	return h, nil
}

type promptRequest struct {
	Prompt json.RawMessage `json:"prompt"`
}

type promptResponse struct {
	Images []string `json:"images"`
}

func (h *PromptHandler) HandlePrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	workflow, err := h.decode(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := h.runner.Run(r.Context(), workflow, h.baseURL(r))
	if err != nil {
		writeError(w, err)
		return
	}
	urls := res.URLs
	if urls == nil {
		urls = []string{}
	}
	writeJSON(w, http.StatusOK, promptResponse{Images: urls})
}

func (h *PromptHandler) decode(w http.ResponseWriter, r *http.Request) (bridge.Workflow, error) {
	body := r.Body
	if h.maxRequestBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxRequestBytes)
	}
	var in promptRequest
	if err := json.NewDecoder(body).Decode(&in); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, bridge.InvalidRequest("request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, bridge.InvalidRequest("invalid json body: %v", err)
	}
	raw := strings.TrimSpace(string(in.Prompt))
	if raw == "" || raw == "null" {
		return nil, bridge.InvalidRequest("prompt is required")
	}
	// Numbers stay json.Number so 64-bit seeds reach the worker unchanged.
	dec := json.NewDecoder(bytes.NewReader(in.Prompt))
	dec.UseNumber()
	var workflow bridge.Workflow
	if err := dec.Decode(&workflow); err != nil {
		return nil, bridge.InvalidRequest("prompt must be a json object")
	}
	return workflow, nil
}

// baseURL is the directory of the request URL, so "images/<name>" resolves
// next to the endpoint the caller used.
func (h *PromptHandler) baseURL(r *http.Request) *url.URL {
	if h.publicBaseURL != nil {
		u := *h.publicBaseURL
		return &u
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := firstHeaderValue(r.Header.Get("X-Forwarded-Proto")); proto != "" {
		scheme = proto
	}
	host := r.Host
	if fwd := firstHeaderValue(r.Header.Get("X-Forwarded-Host")); fwd != "" {
		host = fwd
	}
	return &url.URL{Scheme: scheme, Host: host, Path: r.URL.Path}
}

func firstHeaderValue(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}
