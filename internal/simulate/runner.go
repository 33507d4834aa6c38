package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/meritum/agora/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes the complete governance simulation.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting agora governance simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("members", config.Members),
		logger.Int("evaluatorsPerTalk", config.Evaluators),
		logger.Int("colluderRing", config.ColluderRing),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Int("topN", config.TopN),
		logger.Any("verbose", config.Verbose))

	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	members := generateMembers(ctx, config)

	evaluations, err := generateEvaluations(ctx, config, members, stats)
	if err != nil {
		return fmt.Errorf("evaluation generation failed: %w", err)
	}

	if err := submitEvaluations(ctx, config, evaluations, stats); err != nil {
		return fmt.Errorf("evaluation submission failed: %w", err)
	}

	logger.Get().Info(ctx, "waiting for evaluations to be processed")
	time.Sleep(ProcessingDelay)

	scores, err := retrieveScores(ctx, config, members, stats)
	if err != nil {
		return fmt.Errorf("score retrieval failed: %w", err)
	}

	leaderboard, err := getLeaderboard(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	session, err := runVotingSession(ctx, config, leaderboard, stats)
	if err != nil {
		logger.Get().Warn(ctx, "voting session failed", logger.Error(err))
	}

	if err := verifyResults(ctx, config, members, scores, leaderboard, session); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	if err := saveEvaluationsToFile(ctx, config, evaluations); err != nil {
		logger.Get().Warn(ctx, "failed to save evaluations to file", logger.Error(err))
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveEvaluationsToFile saves the generated evaluations to a JSON file.
func saveEvaluationsToFile(ctx context.Context, config *Config, evaluations []Evaluation) error {
	if len(evaluations) == 0 {
		return fmt.Errorf("no evaluations to save")
	}

	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "evaluations_" + timestamp + ".json"
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close file", logger.Error(err))
		}
	}()

	if _, err := file.WriteString("[\n"); err != nil {
		return fmt.Errorf("failed to write opening bracket: %w", err)
	}

	for i, eval := range evaluations {
		jsonData, err := json.Marshal(eval)
		if err != nil {
			return fmt.Errorf("failed to marshal evaluation %d: %w", i, err)
		}

		if _, err := file.Write(jsonData); err != nil {
			return fmt.Errorf("failed to write evaluation %d: %w", i, err)
		}

		if i < len(evaluations)-1 {
			if _, err := file.WriteString(","); err != nil {
				return fmt.Errorf("failed to write comma: %w", err)
			}
		}
		_, _ = file.WriteString("\n")
	}

	if _, err := file.WriteString("]\n"); err != nil {
		return fmt.Errorf("failed to write closing bracket: %w", err)
	}

	logger.Get().Info(ctx, "evaluations saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final simulation statistics.
func displayFinalStats(stats *Stats) {
	var acceptRate, evaluationsPerSecond float64

	if stats.EvaluationsSubmitted > 0 {
		acceptRate = float64(stats.EvaluationsAccepted) / float64(stats.EvaluationsSubmitted) * PercentageMultiplier
	}

	if stats.Duration > 0 {
		evaluationsPerSecond = float64(stats.EvaluationsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("evaluationsGenerated", stats.EvaluationsGenerated),
		logger.Int("evaluationsSubmitted", stats.EvaluationsSubmitted),
		logger.Int("evaluationsAccepted", stats.EvaluationsAccepted),
		logger.Int("evaluationsDuplicate", stats.EvaluationsDuplicate),
		logger.Int("evaluationsFailed", stats.EvaluationsFailed),
		logger.Int("scoresRetrieved", stats.ScoresRetrieved),
		logger.Int("scoresInsufficient", stats.ScoresInsufficient),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Int("ballotsCast", stats.BallotsCast),
		logger.Int("ballotsRejected", stats.BallotsRejected),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("evaluationsPerSecond", evaluationsPerSecond))
}
