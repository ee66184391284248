package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/markussandin1/Newsdeck-sub001/internal/domain"
)

// PollResult is one successful long-poll response. TimestampMs is the
// server clock at response time and becomes the loop's next watermark.
type PollResult struct {
	Items       []domain.Item
	TimestampMs int64
}

// Transport issues one long-poll request for a column. sinceMs of zero
// means "from the beginning". Implementations must honor ctx
// cancellation; any transport-level failure or malformed response is
// returned as an error and routed into the loop's backoff branch.
type Transport interface {
	Poll(ctx context.Context, columnID string, sinceMs int64, filterExpr string) (*PollResult, error)
}

// HTTPTransport polls the server's long-poll endpoint over HTTP.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport creates a transport against the given base URL
// (e.g. "http://localhost:8080"). The http.Client carries no request
// timeout of its own; the server bounds the poll duration and the loop
// context bounds teardown.
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

func (t *HTTPTransport) Poll(ctx context.Context, columnID string, sinceMs int64, filterExpr string) (*PollResult, error) {
	u := t.baseURL + "/api/columns/" + url.PathEscape(columnID) + "/updates"
	q := url.Values{}
	if sinceMs > 0 {
		q.Set("since", strconv.FormatInt(sinceMs, 10))
	}
	if filterExpr != "" {
		q.Set("filter", filterExpr)
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build poll request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll %s: %w", columnID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll %s: unexpected status %d", columnID, resp.StatusCode)
	}

	var body struct {
		Success   bool          `json:"success"`
		Items     []domain.Item `json:"items"`
		Timestamp int64         `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("poll %s: decode response: %w", columnID, err)
	}
	// A missing timestamp would roll the watermark back to zero and
	// re-deliver the whole history; treat it like a transport failure.
	if !body.Success || body.Timestamp <= 0 {
		return nil, fmt.Errorf("poll %s: malformed response", columnID)
	}

	return &PollResult{Items: body.Items, TimestampMs: body.Timestamp}, nil
}
