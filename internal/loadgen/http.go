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

	"github.com/agripredict/agripredict/pkg/logger"
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body.
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// outcome classifies one submitted request.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRejected
	outcomeFailed
	outcomeInvalid
)

// submitAll posts bodies to url with config.Workers goroutines and verifies
// every 200 response with verify.
func submitAll[T any](ctx context.Context, config *Config, url string, bodies []T, verify func([]byte) error, stats *Stats) {
	log := logger.Get()
	client := newHTTPClient(config.Timeout)

	var counts [4]atomic.Int64
	jobs := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for range config.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := submitOne(ctx, client, url, bodies[i], verify)
				counts[res].Add(1)
				if err != nil && config.Verbose {
					log.Warn(ctx, "request failed",
						logger.String("url", url),
						logger.Int("index", i),
						logger.Error(err))
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range bodies {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	wg.Wait()

	stats.Successful = int(counts[outcomeSuccess].Load())
	stats.Rejected = int(counts[outcomeRejected].Load())
	stats.Failed = int(counts[outcomeFailed].Load())
	stats.Invalid = int(counts[outcomeInvalid].Load())
	stats.Submitted = stats.Successful + stats.Rejected + stats.Failed + stats.Invalid
}

func submitOne[T any](ctx context.Context, client *HTTPClient, url string, body T, verify func([]byte) error) (outcome, error) {
	resp, err := client.Post(ctx, url, body)
	if err != nil {
		return outcomeFailed, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return outcomeFailed, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := verify(data); err != nil {
			return outcomeInvalid, err
		}
		return outcomeSuccess, nil
	case resp.StatusCode < http.StatusInternalServerError:
		return outcomeRejected, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	default:
		return outcomeFailed, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
}
