package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/calibrate/pkg/logger"
)

// HTTPClient wraps http.Client with a timeout.
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with the given timeout.
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{Timeout: timeout},
	}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with a JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// marshalJSON marshals a struct to JSON.
func marshalJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// submitSnapshots posts the generated snapshots concurrently.
func submitSnapshots(ctx context.Context, config *Config, snapshots []SnapshotRequest, stats *Stats) error {
	logger.Get().Info(ctx, "submitting snapshots",
		logger.Int("count", len(snapshots)),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/api/v1/snapshots"

	var (
		successful int64
		rejected   int64
		failed     int64
		submitted  int64
	)

	snapChan := make(chan SnapshotRequest, config.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for snap := range snapChan {
				select {
				case <-ctx.Done():
					return
				default:
					result := submitSingleSnapshot(ctx, client, url, snap)

					atomic.AddInt64(&submitted, 1)
					switch result {
					case "success":
						atomic.AddInt64(&successful, 1)
					case "rejected":
						atomic.AddInt64(&rejected, 1)
					case "failed":
						atomic.AddInt64(&failed, 1)
					}
				}
			}
		}()
	}

	go func() {
		defer close(snapChan)
		for _, snap := range snapshots {
			select {
			case <-ctx.Done():
				return
			case snapChan <- snap:
			}
		}
	}()

	wg.Wait()

	stats.SnapshotsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.SnapshotsSuccessful = int(atomic.LoadInt64(&successful))
	stats.SnapshotsRejected = int(atomic.LoadInt64(&rejected))
	stats.SnapshotsFailed = int(atomic.LoadInt64(&failed))

	logger.Get().Info(ctx, "snapshot submission completed",
		logger.Int("successful", stats.SnapshotsSuccessful),
		logger.Int("rejected", stats.SnapshotsRejected),
		logger.Int("failed", stats.SnapshotsFailed))

	return nil
}

// submitSingleSnapshot posts one snapshot and classifies the outcome.
func submitSingleSnapshot(ctx context.Context, client *HTTPClient, url string, snap SnapshotRequest) string {
	resp, err := client.Post(ctx, url, snap)
	if err != nil {
		return "failed"
	}
	if _, err := readResponseBody(resp); err != nil {
		return "failed"
	}

	switch {
	case resp.StatusCode == StatusCreated:
		return "success"
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "rejected"
	default:
		return "failed"
	}
}
