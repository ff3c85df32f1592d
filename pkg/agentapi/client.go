package agentapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// Backend is the surface the orchestrator needs from the agent backend.
// All calls are synchronous request/response; the run itself progresses
// asynchronously on the backend and is observed through snapshots.
type Backend interface {
	// Invoke starts a new run from the full normalized conversation.
	Invoke(ctx context.Context, agentID string, messages []Message) (*Snapshot, error)

	// GetLogs fetches the run's latest status incrementally from cursor.
	GetLogs(ctx context.Context, run RunIdentity, cursor string) (*Snapshot, error)

	// SubmitToolApproval delivers human decisions for paused tool calls.
	SubmitToolApproval(ctx context.Context, run RunIdentity, decisions []ToolDecision) (*Snapshot, error)
}

const (
	actionInvoke             = "invoke"
	actionGetLogs            = "getLogs"
	actionSubmitToolApproval = "submitToolApproval"

	maxErrorBodyBytes int64 = 64 << 10
)

// ClientOptions configures the HTTP backend client.
type ClientOptions struct {
	// BaseURL is the backend root; /api/agent is appended for the
	// action endpoint. A scheme-less host is treated as https.
	BaseURL string

	// AuthToken is sent as a bearer token when set.
	AuthToken string

	// BasicUser/BasicPass take precedence over AuthToken when set.
	BasicUser string
	BasicPass string

	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration

	// HTTPClient overrides the constructed client, mainly for tests.
	HTTPClient *http.Client
}

// Client is the HTTP implementation of Backend. Every call posts a JSON
// action envelope to a single endpoint and decodes the snapshot reply.
type Client struct {
	endpoint   string
	httpClient *http.Client
	authHeader string
}

// NewClient validates options and builds a Client.
func NewClient(opts ClientOptions) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("agentapi: base URL is required")
	}
	// url.Parse treats scheme-less hosts as paths; prefix https:// for convenience.
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("agentapi: invalid base URL: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("agentapi: base URL %q has no host", opts.BaseURL)
	}
	parsed.Path = path.Join(strings.TrimSuffix(parsed.Path, "/"), "/api/agent")

	c := &Client{endpoint: parsed.String()}
	switch {
	case opts.BasicUser != "":
		auth := base64.StdEncoding.EncodeToString([]byte(opts.BasicUser + ":" + opts.BasicPass))
		c.authHeader = "Basic " + auth
	case strings.TrimSpace(opts.AuthToken) != "":
		c.authHeader = "Bearer " + strings.TrimSpace(opts.AuthToken)
	}

	c.httpClient = opts.HTTPClient
	if c.httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	return c, nil
}

type invokeEnvelope struct {
	Action   string    `json:"action"`
	AgentID  string    `json:"agentId"`
	Messages []Message `json:"messages"`
}

type getLogsEnvelope struct {
	Action      string `json:"action"`
	AgentID     string `json:"agentId"`
	AgentRunID  string `json:"agentRunId"`
	LastLogUUID string `json:"lastLogUUID,omitempty"`
}

type approvalEnvelope struct {
	Action     string         `json:"action"`
	AgentID    string         `json:"agentId"`
	AgentRunID string         `json:"agentRunId"`
	Decisions  []ToolDecision `json:"decisions"`
}

func (c *Client) Invoke(ctx context.Context, agentID string, messages []Message) (*Snapshot, error) {
	return c.post(ctx, invokeEnvelope{Action: actionInvoke, AgentID: agentID, Messages: messages})
}

func (c *Client) GetLogs(ctx context.Context, run RunIdentity, cursor string) (*Snapshot, error) {
	if !run.Valid() {
		return nil, fmt.Errorf("agentapi: getLogs requires a run identity")
	}
	return c.post(ctx, getLogsEnvelope{
		Action:      actionGetLogs,
		AgentID:     run.AgentID,
		AgentRunID:  run.AgentRunID,
		LastLogUUID: cursor,
	})
}

func (c *Client) SubmitToolApproval(ctx context.Context, run RunIdentity, decisions []ToolDecision) (*Snapshot, error) {
	if !run.Valid() {
		return nil, fmt.Errorf("agentapi: submitToolApproval requires a run identity")
	}
	if len(decisions) == 0 {
		return nil, fmt.Errorf("agentapi: submitToolApproval requires at least one decision")
	}
	return c.post(ctx, approvalEnvelope{
		Action:     actionSubmitToolApproval,
		AgentID:    run.AgentID,
		AgentRunID: run.AgentRunID,
		Decisions:  decisions,
	})
}

func (c *Client) post(ctx context.Context, envelope any) (*Snapshot, error) {
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("agentapi: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agentapi: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := formatErrorBody(readBodyLimited(resp.Body, maxErrorBodyBytes))
		if detail != "" {
			return nil, fmt.Errorf("agentapi: backend returned %s: %s", resp.Status, detail)
		}
		return nil, fmt.Errorf("agentapi: backend returned %s", resp.Status)
	}

	var snapshot Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("agentapi: decode snapshot: %w", err)
	}
	return &snapshot, nil
}

func readBodyLimited(r io.Reader, maxBytes int64) []byte {
	if r == nil || maxBytes <= 0 {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(r, maxBytes))
	return data
}

func formatErrorBody(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return ""
	}
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(trimmed, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(payload.Error); msg != "" {
			return msg
		}
	}
	return string(trimmed)
}
