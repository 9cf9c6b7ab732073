package camera

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jersme/enviro/internal/ports"
)

const maxImageBytes = 32 << 20

// HTTPSnapshot fetches one still per Capture from a camera daemon URL.
type HTTPSnapshot struct {
	URL    string
	Client *http.Client
}

func NewHTTPSnapshot(url string, timeout time.Duration) *HTTPSnapshot {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSnapshot{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (h *HTTPSnapshot) Capture(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, err
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("snapshot %s: status %s", h.URL, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("snapshot body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("snapshot %s: empty body", h.URL)
	}
	return data, nil
}

var _ ports.CaptureProvider = (*HTTPSnapshot)(nil)
