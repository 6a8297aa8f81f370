package fleetsim

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

	"github.com/tkhorram/convoytrack/pkg/logger"
)

// HTTP status code constants.
const (
	statusOK       = 200
	statusCreated  = 201
	statusAccepted = 202
)

// HTTPClient wraps http.Client with a fixed timeout.
type HTTPClient struct {
	client *http.Client
}

func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{Timeout: timeout},
	}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
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

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// submitEngagements pushes the engagement stream through a worker pool.
func submitEngagements(ctx context.Context, config *Config, payloads []engagementPayload, stats *Stats) error {
	logger.Get().Info(ctx, "submitting engagements",
		logger.Int("count", len(payloads)),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/engagements"

	var (
		applied   int64
		duplicate int64
		failed    int64
		submitted int64
	)

	payloadChan := make(chan engagementPayload, config.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range payloadChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				atomic.AddInt64(&submitted, 1)
				switch submitSingleEngagement(ctx, client, url, p) {
				case "applied":
					atomic.AddInt64(&applied, 1)
				case "duplicate":
					atomic.AddInt64(&duplicate, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}
			}
		}()
	}

	go func() {
		defer close(payloadChan)
		for _, p := range payloads {
			select {
			case <-ctx.Done():
				return
			case payloadChan <- p:
			}
		}
	}()

	wg.Wait()

	stats.EngagementsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.EngagementsApplied = int(atomic.LoadInt64(&applied))
	stats.EngagementsDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.EngagementsFailed = int(atomic.LoadInt64(&failed))

	logger.Get().Info(ctx, "engagement submission completed",
		logger.Int("applied", stats.EngagementsApplied),
		logger.Int("duplicate", stats.EngagementsDuplicate),
		logger.Int("failed", stats.EngagementsFailed))

	if stats.EngagementsFailed > 0 {
		return fmt.Errorf("%d engagements failed", stats.EngagementsFailed)
	}
	return nil
}

// submitSingleEngagement classifies a single submission outcome.
func submitSingleEngagement(ctx context.Context, client *HTTPClient, url string, p engagementPayload) string {
	resp, err := client.Post(ctx, url, p)
	if err != nil {
		return "failed"
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return "failed"
	}

	switch resp.StatusCode {
	case statusOK:
		var ack ackResponse
		if err := json.Unmarshal(body, &ack); err == nil && ack.Duplicate {
			return "duplicate"
		}
		return "applied"
	case statusAccepted:
		// Durable half committed; the reconciler finishes the cache half.
		return "applied"
	default:
		return "failed"
	}
}

// submitTelemetry pushes telemetry ticks through the same worker pool shape.
func submitTelemetry(ctx context.Context, config *Config, payloads []telemetryPayload, stats *Stats) error {
	logger.Get().Info(ctx, "submitting telemetry",
		logger.Int("count", len(payloads)),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/telemetry"

	var submitted, failed int64

	payloadChan := make(chan telemetryPayload, config.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range payloadChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				resp, err := client.Post(ctx, url, p)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					continue
				}
				_, _ = readResponseBody(resp)
				if resp.StatusCode != statusAccepted {
					atomic.AddInt64(&failed, 1)
					continue
				}
				atomic.AddInt64(&submitted, 1)
			}
		}()
	}

	go func() {
		defer close(payloadChan)
		for _, p := range payloads {
			select {
			case <-ctx.Done():
				return
			case payloadChan <- p:
			}
		}
	}()

	wg.Wait()

	stats.TelemetrySubmitted = int(atomic.LoadInt64(&submitted))
	stats.TelemetryFailed = int(atomic.LoadInt64(&failed))
	return nil
}

// fetchLeaderboard retrieves the convoy's ranked entries.
func fetchLeaderboard(ctx context.Context, config *Config, convoyID string, stats *Stats) ([]leaderboardRow, error) {
	client := newHTTPClient(config.Timeout)
	url := fmt.Sprintf("%s/leaderboard/%s?limit=%d", config.BaseURL, convoyID, config.TopN)

	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard response: %w", err)
	}
	if resp.StatusCode != statusOK {
		return nil, fmt.Errorf("leaderboard request failed with status %d", resp.StatusCode)
	}

	var rows []leaderboardRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode leaderboard: %w", err)
	}
	stats.LeaderboardEntries = len(rows)
	return rows, nil
}
