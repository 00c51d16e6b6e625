package crewai

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

	domain "github.com/bryanwahyu/insight-relay/internal/domain/insights"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 64 << 10
)

// Client talks to a deployed crew over its inputs/kickoff/status API.
// It is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type kickoffRequest struct {
	Inputs domain.Request `json:"inputs"`
}

type kickoffResponse struct {
	KickoffID json.RawMessage `json:"kickoff_id"`
}

type statusResponse struct {
	State  json.RawMessage `json:"state"`
	Result json.RawMessage `json:"result"`
}

// kickoffID accepts a string or non-zero numeric id; any other shape counts as missing.
func kickoffID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if f, err := n.Float64(); err == nil && f != 0 {
			return n.String()
		}
	}
	return ""
}

// jobState maps a missing or non-string state to "", which never matches a
// terminal state.
func jobState(raw json.RawMessage) domain.JobState {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return domain.JobState(s)
}

// Probe hits GET /inputs to check the token before any job is started.
func (c *Client) Probe(ctx context.Context) error {
	resp, err := c.do(ctx, "inputs", http.MethodGet, "/inputs", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Kickoff starts the crew with the product/company inputs.
func (c *Client) Kickoff(ctx context.Context, req domain.Request) (domain.JobHandle, error) {
	body, err := json.Marshal(kickoffRequest{Inputs: req})
	if err != nil {
		return domain.JobHandle{}, fmt.Errorf("crewai: encode kickoff: %w", err)
	}

	resp, err := c.do(ctx, "kickoff", http.MethodPost, "/kickoff", body)
	if err != nil {
		return domain.JobHandle{}, err
	}
	defer resp.Body.Close()

	var out kickoffResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.JobHandle{}, fmt.Errorf("crewai: decode kickoff response: %w: %w", domain.ErrMalformedResponse, err)
	}
	id := kickoffID(out.KickoffID)
	if id == "" {
		return domain.JobHandle{}, domain.ErrMissingJobHandle
	}
	return domain.JobHandle{KickoffID: id}, nil
}

// Status fetches the current state of a kickoff.
func (c *Client) Status(ctx context.Context, h domain.JobHandle) (domain.JobStatus, error) {
	resp, err := c.do(ctx, "status", http.MethodGet, "/status/"+url.PathEscape(h.KickoffID), nil)
	if err != nil {
		return domain.JobStatus{}, err
	}
	defer resp.Body.Close()

	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.JobStatus{}, fmt.Errorf("crewai: decode status response: %w: %w", domain.ErrMalformedResponse, err)
	}
	return domain.JobStatus{State: jobState(out.State), Result: out.Result}, nil
}

// do sends an authenticated request and turns transport errors and non-2xx
// answers into *domain.UpstreamError. The caller owns the returned body.
func (c *Client) do(ctx context.Context, op, method, path string, body []byte) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("crewai: build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.UpstreamError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &domain.UpstreamError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}
	return resp, nil
}
