package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

const maxErrorBody = 4096

// Options configures a Client.
type Options struct {
	// Addr is either host:port or a full http(s) base URL.
	Addr        string
	UseTLS      bool
	HTTPTimeout time.Duration
	Retry       RetryPolicy

	HTTPClient *http.Client
	Dialer     *websocket.Dialer
}

// Client talks to a single ComfyUI worker.
type Client struct {
	baseURL *url.URL
	wsURL   *url.URL
	http    *http.Client
	dialer  *websocket.Dialer
	retry   RetryPolicy
}

func New(opts Options) (*Client, error) {
	base, err := parseBaseURL(opts.Addr, opts.UseTLS)
	if err != nil {
		return nil, err
	}
	ws := *base
	if base.Scheme == "https" {
		ws.Scheme = "wss"
	} else {
		ws.Scheme = "ws"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.HTTPTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 15 * time.Second,
		}
	}
	return &Client{
		baseURL: base,
		wsURL:   &ws,
		http:    httpClient,
		dialer:  dialer,
		retry:   opts.Retry.normalized(),
	}, nil
}

func parseBaseURL(addr string, useTLS bool) (*url.URL, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("worker address is required")
	}
	if !strings.Contains(addr, "://") {
		scheme := "http"
		if useTLS {
			scheme = "https"
		}
		addr = scheme + "://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid worker address %q: %w", addr, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid worker address %q: unsupported scheme %q", addr, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid worker address %q: missing host", addr)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	return u, nil
}

// BaseURL returns the worker's HTTP base URL.
func (c *Client) BaseURL() string { return c.baseURL.String() }

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Submit queues workflow on the worker under clientID and returns the
// worker's answer, which carries the assigned prompt id.
func (c *Client) Submit(ctx context.Context, workflow map[string]any, clientID string) (*SubmitResponse, error) {
	if workflow == nil {
		return nil, fmt.Errorf("submit: workflow is required")
	}
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("submit: client id is required")
	}
	body, err := json.Marshal(submitRequest{Prompt: workflow, ClientID: clientID})
	if err != nil {
		return nil, fmt.Errorf("submit: encode request: %w", err)
	}

	var out SubmitResponse
	err = c.retry.do(ctx, "submit", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/prompt", nil), bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		raw, err := c.do(req, "submit")
		if err != nil {
			return classify(err)
		}
		out = SubmitResponse{}
		if err := json.Unmarshal(raw, &out); err != nil {
			return classify(&DecodeError{Op: "submit", Err: err})
		}
		if strings.TrimSpace(out.PromptID) == "" {
			return classify(&DecodeError{Op: "submit", Err: fmt.Errorf("response has no prompt_id")})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// History returns the execution record the worker keeps for promptID. An
// unknown prompt id yields an empty History, not an error.
func (c *Client) History(ctx context.Context, promptID string) (History, error) {
	promptID = strings.TrimSpace(promptID)
	if promptID == "" {
		return nil, fmt.Errorf("history: prompt id is required")
	}
	var out History
	err := c.retry.do(ctx, "history", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/history/"+url.PathEscape(promptID), nil), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		raw, err := c.do(req, "history")
		if err != nil {
			return classify(err)
		}
		out = History{}
		if err := json.Unmarshal(raw, &out); err != nil {
			return classify(&DecodeError{Op: "history", Err: err})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// View downloads the raw bytes of one output file.
func (c *Client) View(ctx context.Context, ref ImageRef) ([]byte, error) {
	if strings.TrimSpace(ref.Filename) == "" {
		return nil, fmt.Errorf("view: filename is required")
	}
	query := url.Values{}
	query.Set("filename", ref.Filename)
	query.Set("subfolder", ref.Subfolder)
	query.Set("type", ref.Type)

	var out []byte
	err := c.retry.do(ctx, "view", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/view", query), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		raw, err := c.do(req, "view")
		if err != nil {
			return classify(err)
		}
		out = raw
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Ping checks that the worker answers HTTP requests.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/system_stats", nil), nil)
	if err != nil {
		return err
	}
	_, err = c.do(req, "ping")
	return err
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	return raw, nil
}
