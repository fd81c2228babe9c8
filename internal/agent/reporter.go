package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"occupancy-status-backend/internal/model"
)

// ErrUnexpectedStatus is returned when the server answers a report with a non-2xx status.
var ErrUnexpectedStatus = errors.New("unexpected status from occupancy server")

// Reporter delivers one motion reading to the server.
type Reporter interface {
	Report(ctx context.Context, motion bool) error
}

// HTTPReporter posts readings as JSON to a fixed URL.
type HTTPReporter struct {
	url    string
	client *http.Client
}

// NewHTTPReporter creates a reporter whose requests are bounded by timeout.
func NewHTTPReporter(url string, timeout time.Duration) *HTTPReporter {
	return &HTTPReporter{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Report sends {"motion": motion} to the server.
func (r *HTTPReporter) Report(ctx context.Context, motion bool) error {
	jsonBody, err := json.Marshal(model.MotionReport{Motion: &motion})
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused on the next tick.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}
