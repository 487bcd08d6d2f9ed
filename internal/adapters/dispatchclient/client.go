// Package dispatchclient lets the scheduler binary read automation jobs from
// the server and trigger their dispatch runs over HTTP.
package dispatchclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"mccenter/internal/domain/automation"
)

const maxBody = 1 << 20

// Client talks to the server's /api/automation and /dispatch endpoints with
// the dispatch key.
type Client struct {
	baseURL string
	key     string
	http    *http.Client
}

// New creates a client for the server at baseURL.
// PRE: baseURL is an absolute http(s) URL; key is the plaintext dispatch key
// POST: Returns a client whose requests time out after timeout (60s when <= 0)
func New(baseURL, key string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		http:    &http.Client{Timeout: timeout},
	}
}

// List returns every configured automation job.
// PRE: none
// POST: Returns the jobs, or an error for transport or non-2xx failures
func (c *Client) List(ctx context.Context) ([]automation.Job, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/automation", nil)
	if err != nil {
		return nil, err
	}
	var jobs []automation.Job
	if err := sonic.Unmarshal(body, &jobs); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}
	return jobs, nil
}

type triggerRequest struct {
	Audience string `json:"audience"`
	Job      string `json:"job"`
}

// Summary is the part of a dispatch response the scheduler logs.
type Summary struct {
	Date          string `json:"date"`
	SessionsCount int    `json:"sessionsCount"`
	Sent          int    `json:"sent"`
	Failed        int    `json:"failed"`
}

// Trigger runs job and logs its summary. It satisfies the job trigger the
// scheduler loop expects.
func (c *Client) Trigger(ctx context.Context, job automation.Job) error {
	s, err := c.Dispatch(ctx, job)
	if err != nil {
		return err
	}
	slog.Info("automation_event", "event", "dispatched", "job", job.Type, "date", s.Date,
		"sessions", s.SessionsCount, "sent", s.Sent, "failed", s.Failed)
	return nil
}

// Dispatch runs job now for the business day. The server records the run,
// which advances the job's nextRun.
// PRE: job.Type is a known job type
// POST: Returns the run summary, or an error when the server rejected the run
func (c *Client) Dispatch(ctx context.Context, job automation.Job) (Summary, error) {
	payload, err := sonic.Marshal(triggerRequest{Audience: job.Audience(), Job: job.Type})
	if err != nil {
		return Summary{}, fmt.Errorf("encode dispatch request: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, "/dispatch", payload)
	if err != nil {
		return Summary{}, err
	}
	var s Summary
	if err := sonic.Unmarshal(body, &s); err != nil {
		return Summary{}, fmt.Errorf("decode dispatch response: %w", err)
	}
	return s, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode/100 != 2 {
		msg := string(body)
		if len(msg) > 200 {
			msg = msg[:200] + "..."
		}
		return nil, fmt.Errorf("%s %s responded %d: %s", method, path, resp.StatusCode, msg)
	}
	return body, nil
}
