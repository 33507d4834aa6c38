package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPClient wraps http.Client with a request timeout.
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
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

// submitEvaluations submits evaluations concurrently using a worker pool.
func submitEvaluations(ctx context.Context, config *Config, evaluations []Evaluation, stats *Stats) error {
	log.Printf("submitting %d evaluations with %d workers", len(evaluations), config.Workers)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/evaluations"

	var (
		accepted  int64
		duplicate int64
		failed    int64
		submitted int64
	)

	var lastReport time.Time
	reportInterval := 1 * time.Second

	evalChan := make(chan Evaluation, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for eval := range evalChan {
				select {
				case <-ctx.Done():
					return
				default:
					result := submitSingleEvaluation(ctx, client, url, eval)

					atomic.AddInt64(&submitted, 1)
					switch result {
					case "accepted":
						atomic.AddInt64(&accepted, 1)
					case "duplicate":
						atomic.AddInt64(&duplicate, 1)
					case "failed":
						atomic.AddInt64(&failed, 1)
					}

					if time.Since(lastReport) >= reportInterval {
						lastReport = time.Now()
						total := atomic.LoadInt64(&submitted)
						log.Printf("progress: %d/%d submitted (accepted: %d, duplicate: %d, failed: %d)",
							total, len(evaluations),
							atomic.LoadInt64(&accepted),
							atomic.LoadInt64(&duplicate),
							atomic.LoadInt64(&failed))
					}
				}
			}
		}()
	}

	go func() {
		defer close(evalChan)
		for _, eval := range evaluations {
			select {
			case <-ctx.Done():
				return
			case evalChan <- eval:
			}
		}
	}()

	wg.Wait()

	stats.EvaluationsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.EvaluationsAccepted = int(atomic.LoadInt64(&accepted))
	stats.EvaluationsDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.EvaluationsFailed = int(atomic.LoadInt64(&failed))

	log.Printf(`evaluation submission completed:
   Accepted: %d
   Duplicate: %d
   Failed: %d
`, stats.EvaluationsAccepted, stats.EvaluationsDuplicate, stats.EvaluationsFailed)

	return nil
}

// submitSingleEvaluation submits one evaluation and classifies the outcome.
func submitSingleEvaluation(ctx context.Context, client *HTTPClient, url string, eval Evaluation) string {
	resp, err := client.Post(ctx, url, eval)
	if err != nil {
		return "failed"
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return "failed"
	}

	switch resp.StatusCode {
	case StatusAccepted:
		return "accepted"
	case StatusOK:
		var ack AckResponse
		if err := json.Unmarshal(body, &ack); err == nil && ack.Duplicate {
			return "duplicate"
		}
		return "duplicate"
	default:
		return "failed"
	}
}
