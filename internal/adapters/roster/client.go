package roster

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"mccenter/internal/domain/roster"
)

// maxBody bounds a roster response.
const maxBody = 8 << 20

// HTTPClient reads students from a remote GET /roster endpoint.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPClient creates a client for the roster service at baseURL.
// PRE: baseURL is an absolute http(s) URL
// POST: Returns a client with a 15s transport timeout
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// ListStudents queries the remote roster. Returned students are normalized
// and re-filtered locally, since remote services disagree on class matching.
// PRE: none
// POST: Returns matching students, or an error for transport or non-2xx failures
func (c *HTTPClient) ListStudents(ctx context.Context, filter roster.Filter) ([]roster.Student, error) {
	q := url.Values{}
	// One class per parameter; class names may contain commas.
	if keys := filter.ClassKeys(); len(keys) > 0 {
		q["class"] = keys
	}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if filter.EmailEnabled != nil {
		q.Set("emailEnabled", strconv.FormatBool(*filter.EmailEnabled))
	}
	endpoint := c.baseURL + "/roster"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build roster request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("roster request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read roster response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("roster responded %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var students []roster.Student
	if err := sonic.Unmarshal(body, &students); err != nil {
		return nil, fmt.Errorf("decode roster response: %w", err)
	}
	out := make([]roster.Student, 0, len(students))
	for _, st := range students {
		st.Normalize()
		if filter.Matches(st) {
			out = append(out, st)
		}
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
