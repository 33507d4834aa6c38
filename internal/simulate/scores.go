package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// retrieveScores fetches presentation scores for all members concurrently.
func retrieveScores(ctx context.Context, config *Config, members []Member, stats *Stats) (map[string]ScoreResult, error) {
	log.Printf("retrieving %d presentation scores with %d workers", len(members), config.Workers)

	client := newHTTPClient(config.Timeout)

	scores := make([]ScoreResult, len(members))
	var (
		retrieved int64
		failed    int64
	)

	var lastReport time.Time
	reportInterval := 1 * time.Second

	indexChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for index := range indexChan {
				select {
				case <-ctx.Done():
					return
				default:
					member := members[index]
					result, err := retrieveSingleScore(ctx, client, config.BaseURL, member.PresentationID)
					if err != nil {
						atomic.AddInt64(&failed, 1)
						if config.Verbose {
							log.Printf("failed to get score for %s: %v", member.PresentationID, err)
						}
					} else {
						scores[index] = result
						atomic.AddInt64(&retrieved, 1)
					}

					if time.Since(lastReport) >= reportInterval {
						lastReport = time.Now()
						total := atomic.LoadInt64(&retrieved) + atomic.LoadInt64(&failed)
						log.Printf("score progress: %d/%d retrieved (success: %d, failed: %d)",
							total, len(members), atomic.LoadInt64(&retrieved), atomic.LoadInt64(&failed))
					}
				}
			}
		}()
	}

	go func() {
		defer close(indexChan)
		for i := range members {
			select {
			case <-ctx.Done():
				return
			case indexChan <- i:
			}
		}
	}()

	wg.Wait()

	byPresentation := make(map[string]ScoreResult, len(scores))
	insufficient := 0
	for _, result := range scores {
		if result.PresentationID == "" {
			continue
		}
		byPresentation[result.PresentationID] = result
		if result.Insufficient {
			insufficient++
		}
	}

	stats.ScoresRetrieved = len(byPresentation)
	stats.ScoresInsufficient = insufficient

	log.Printf(`score retrieval completed:
   Retrieved: %d
   Insufficient: %d
   Failed: %d
`, len(byPresentation), insufficient, int(atomic.LoadInt64(&failed)))

	return byPresentation, nil
}

// retrieveSingleScore fetches the score for one presentation.
func retrieveSingleScore(ctx context.Context, client *HTTPClient, baseURL, presentationID string) (ScoreResult, error) {
	url := fmt.Sprintf("%s/presentations/%s/score", baseURL, presentationID)

	resp, err := client.Get(ctx, url)
	if err != nil {
		return ScoreResult{}, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return ScoreResult{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != StatusOK {
		return ScoreResult{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var result ScoreResult
	if err := json.Unmarshal(body, &result); err != nil {
		return ScoreResult{}, fmt.Errorf("failed to parse response: %w", err)
	}
	return result, nil
}

// getLeaderboard retrieves the top N merit leaderboard entries.
func getLeaderboard(ctx context.Context, config *Config, stats *Stats) ([]Entry, error) {
	log.Printf("getting top %d leaderboard entries", config.TopN)

	client := newHTTPClient(config.Timeout)
	url := fmt.Sprintf("%s/leaderboard?limit=%d", config.BaseURL, config.TopN)

	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var leaderboard []Entry
	if err := json.Unmarshal(body, &leaderboard); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	stats.LeaderboardEntries = len(leaderboard)
	log.Printf("retrieved %d leaderboard entries", len(leaderboard))

	return leaderboard, nil
}
