package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PabloGalante/lawyrs-chat/internal/domain"
	"github.com/PabloGalante/lawyrs-chat/internal/observability"
)

const maxBodyBytes = 8 << 20

// ErrAgentFailed is returned when the upstream answered but reported that
// the agent run itself failed.
var ErrAgentFailed = errors.New("agent run failed")

// APIError is a non-2xx answer from the upstream.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend: %s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("backend: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

type Config struct {
	// BaseURL is the upstream root, e.g. "http://localhost:3000".
	BaseURL string
	// Timeout bounds each request. Agent turns can be slow.
	Timeout time.Duration
	// HTTPClient defaults to a client with Timeout.
	HTTPClient *http.Client
}

// Client talks JSON over HTTP to the upstream agent service. It implements
// domain.AgentBackend and domain.SummarySource.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend: invalid base url %q", cfg.BaseURL)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 90 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: base, http: hc}, nil
}

var (
	_ domain.AgentBackend  = (*Client)(nil)
	_ domain.SummarySource = (*Client)(nil)
)

func (c *Client) SendTurn(ctx context.Context, req domain.TurnRequest) (*domain.TurnReply, error) {
	var resp chatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", toChatRequest(req), &resp); err != nil {
		return nil, err
	}
	if resp.Success != nil && !*resp.Success {
		msg := string(resp.Error)
		if msg == "" {
			msg = "no detail"
		}
		return nil, fmt.Errorf("%w: %s", ErrAgentFailed, msg)
	}

	text := resp.Content
	if text == "" {
		text = resp.Response
	}
	reply := &domain.TurnReply{
		Text:         text,
		Jurisdiction: domain.ParseJurisdiction(string(resp.Jurisdiction), req.Jurisdiction),
		Envelope:     resp.envelopeDTO.toDomain(),
		Dashboard:    resp.DashboardUpdate.toDomain(),
	}
	observability.LoggerFromContext(ctx).Debug("backend turn decoded",
		"agent", reply.Envelope.Agent,
		"has_dashboard_update", reply.Dashboard != nil,
	)
	return reply, nil
}

// FetchHistory accepts either {"messages": [...]} or a bare array.
func (c *Client) FetchHistory(ctx context.Context, id domain.SessionID) ([]*domain.Message, error) {
	body, err := c.get(ctx, "/api/chat/history/"+url.PathEscape(string(id)))
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}

	var dtos []messageDTO
	if isArray(body) {
		err = json.Unmarshal(body, &dtos)
	} else {
		var wrapped historyResponse
		err = json.Unmarshal(body, &wrapped)
		dtos = wrapped.Messages
	}
	if err != nil {
		return nil, fmt.Errorf("backend: decoding history: %w", err)
	}

	out := make([]*domain.Message, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain(id))
	}
	return out, nil
}

func (c *Client) ClearSession(ctx context.Context, id domain.SessionID) error {
	return c.do(ctx, http.MethodDelete, "/api/chat/history/"+url.PathEscape(string(id)), nil, nil)
}

func (c *Client) ListMemories(ctx context.Context) ([]*domain.Memory, error) {
	return c.memories(ctx, "/api/memories")
}

func (c *Client) SearchMemories(ctx context.Context, q domain.MemoryQuery) ([]*domain.Memory, error) {
	v := url.Values{}
	if q.Text != "" {
		v.Set("q", q.Text)
	}
	if q.MatterID != "" {
		v.Set("matter_id", string(q.MatterID))
	}
	path := "/api/memories"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}
	return c.memories(ctx, path)
}

func (c *Client) DeleteMemory(ctx context.Context, id domain.MemoryID) error {
	err := c.do(ctx, http.MethodDelete, "/api/memories/"+url.PathEscape(string(id)), nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return domain.ErrMemoryNotFound
	}
	return err
}

func (c *Client) VerifyCitation(ctx context.Context, citation string) (*domain.CitationCheck, error) {
	var resp verifyResponse
	path := "/api/research/verify?citation=" + url.QueryEscape(citation)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	r := &resp
	if r.Result != nil {
		r = r.Result
	}
	check := &domain.CitationCheck{
		Citation: string(r.Citation),
		Found:    r.Found,
		CaseName: string(r.CaseName),
		Court:    string(r.Court),
		Year:     int(r.Year),
		URL:      string(r.URL),
	}
	if check.Citation == "" {
		check.Citation = citation
	}
	return check, nil
}

// FetchSummary reads the authoritative dashboard counters.
func (c *Client) FetchSummary(ctx context.Context) (domain.DashboardSummary, error) {
	var dto summaryDTO
	if err := c.do(ctx, http.MethodGet, "/api/dashboard", nil, &dto); err != nil {
		return domain.DashboardSummary{}, err
	}
	return dto.toDomain(), nil
}

func (c *Client) memories(ctx context.Context, path string) ([]*domain.Memory, error) {
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var dtos []memoryDTO
	if isArray(body) {
		err = json.Unmarshal(body, &dtos)
	} else {
		var wrapped memoriesResponse
		err = json.Unmarshal(body, &wrapped)
		dtos = wrapped.Memories
	}
	if err != nil {
		return nil, fmt.Errorf("backend: decoding memories: %w", err)
	}
	out := make([]*domain.Memory, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.roundTrip(ctx, http.MethodGet, path, nil)
}

// do sends in as JSON (nil for no body) and decodes the answer into out
// (nil to discard it).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	body, err := c.roundTrip(ctx, method, path, in)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("backend: decoding %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in any) ([]byte, error) {
	var reader io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("backend: encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("backend: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rid := observability.RequestIDFromContext(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}

	log := observability.LoggerFromContext(ctx)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn("backend request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("backend: reading %s %s: %w", method, path, err)
	}
	log.Debug("backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body),
		}
	}
	return body, nil
}

// errorMessage pulls a readable message out of an error body.
func errorMessage(body []byte) string {
	var e struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Detail  json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Message != "" {
			return e.Message
		}
		for _, raw := range []json.RawMessage{e.Error, e.Detail} {
			var s string
			if json.Unmarshal(raw, &s) == nil && s != "" {
				return s
			}
		}
	}
	s := []rune(strings.TrimSpace(string(body)))
	if len(s) > 200 {
		s = s[:200]
	}
	return string(s)
}

func isArray(body []byte) bool {
	body = bytes.TrimSpace(body)
	return len(body) > 0 && body[0] == '['
}
