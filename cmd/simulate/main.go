package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/meritum/agora/internal/simulate"
)

// Default configuration constants.
const (
	defaultMembers          = 100
	defaultEvaluators       = 8
	defaultColluders        = 4
	defaultTopN             = 20
	defaultWorkerMultiplier = 2
	defaultTimeout          = 30 * time.Second
	defaultRunTimeout       = 10 * time.Minute
	defaultCycle            = 1
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		members    = flag.Int("members", defaultMembers, "Number of presenting members to simulate")
		evaluators = flag.Int("evaluators", defaultEvaluators, "Evaluators per presentation")
		colluders  = flag.Int("colluders", defaultColluders, "Size of the colluding evaluator ring, 0 to disable")
		topN       = flag.Int("top", defaultTopN, "Number of leaderboard entries to fetch")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkerMultiplier, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Output file for generated evaluations (default: evaluations_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file for simulation output (default: simulation_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &simulate.Config{
		BaseURL:      *baseURL,
		Members:      *members,
		Evaluators:   *evaluators,
		ColluderRing: *colluders,
		TopN:         *topN,
		Workers:      *workers,
		Timeout:      *timeout,
		OutputFile:   *outputFile,
		LogFile:      *logFile,
		Verbose:      *verbose,
		Cycle:        defaultCycle,
	}

	if err := simulate.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
}
