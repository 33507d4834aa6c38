package simulate

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/meritum/agora/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	eventIDDivisor     = 10000
)

// Constants for presentation quality and evaluator behavior.
const (
	qualityMin   = 2.0
	qualityRange = 7.0

	categoryCount = 5

	honestNoise   = 1.0
	generousBias  = 1.5
	harshBias     = -1.5
	biasedShare   = 4 // one in N evaluators is generous, one in N is harsh
	scoreFloor    = 1
	scoreCeiling  = 10
	colluderScore = 10

	honestTimeMin    = 8.0
	honestTimeRange  = 12.0
	colluderTimeSpan = 1.0
)

// Member is a simulated community member who presents and evaluates.
type Member struct {
	ID             string
	PresentationID string
	Quality        float64 // intrinsic presentation quality, drives honest scores
	Colluder       bool
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// generateMembers creates the simulated community. The first ColluderRing
// members form a ring that rates each other's presentations dishonestly.
func generateMembers(ctx context.Context, config *Config) []Member {
	members := make([]Member, config.Members)
	for i := range members {
		members[i] = Member{
			ID:             "member-" + uuid.New().String(),
			PresentationID: "talk-" + strconv.Itoa(i) + "-" + uuid.New().String(),
			Quality:        qualityMin + getRandomFloat()*qualityRange,
			Colluder:       i < config.ColluderRing,
		}
	}

	logger.Get().Info(ctx, "generated members",
		logger.Int("count", len(members)),
		logger.Int("colluders", config.ColluderRing))
	return members
}

// generateEvaluations produces one batch of peer evaluations per presentation.
// Evaluators are drawn round-robin from the other members so nobody reviews
// their own talk; colluding evaluators score ring presentations with straight
// tens submitted implausibly fast.
func generateEvaluations(ctx context.Context, config *Config, members []Member, stats *Stats) ([]Evaluation, error) {
	if len(members) < 2 {
		return nil, fmt.Errorf("need at least 2 members, got %d", len(members))
	}

	perTalk := config.Evaluators
	if perTalk > len(members)-1 {
		perTalk = len(members) - 1
	}

	evaluations := make([]Evaluation, 0, len(members)*perTalk)
	now := time.Now().UTC()

	for pi, presenter := range members {
		for e := 0; e < perTalk; e++ {
			evaluator := members[(pi+1+e)%len(members)]
			ringPair := presenter.Colluder && evaluator.Colluder
			evaluations = append(evaluations, buildEvaluation(len(evaluations), presenter, evaluator, ringPair, now, config.Cycle))
		}
	}

	stats.EvaluationsGenerated = len(evaluations)
	logger.Get().Info(ctx, "generated evaluations",
		logger.Int("count", len(evaluations)),
		logger.Int("perPresentation", perTalk))
	return evaluations, nil
}

// buildEvaluation creates a single wire evaluation for the given pair.
func buildEvaluation(index int, presenter, evaluator Member, ringPair bool, now time.Time, cycle int) Evaluation {
	var overall int
	var timeSpent float64

	if ringPair {
		overall = colluderScore
		timeSpent = getRandomFloat() * colluderTimeSpan
	} else {
		overall = honestScore(index, presenter.Quality)
		timeSpent = honestTimeMin + getRandomFloat()*honestTimeRange
	}

	categories := make([]int, categoryCount)
	for c := range categories {
		categories[c] = jitterScore(overall)
	}

	randNum, _ := rand.Int(rand.Reader, big.NewInt(eventIDDivisor))
	eventID := "sim_" + strconv.Itoa(index) + "_" + strconv.FormatInt(now.Unix(), 10) + "_" + strconv.FormatInt(randNum.Int64(), 10)

	return Evaluation{
		EventID:          eventID,
		PresentationID:   presenter.PresentationID,
		PresenterID:      presenter.ID,
		EvaluatorID:      evaluator.ID,
		CategoryScores:   categories,
		OverallScore:     overall,
		TimeSpentMinutes: timeSpent,
		SubmittedAt:      now.Add(time.Duration(index) * time.Millisecond).Format(time.RFC3339),
		WeightSnapshot:   1.0,
		Cycle:            cycle,
	}
}

// honestScore derives a score from presentation quality with evaluator bias.
// Every biasedShare-th evaluation leans generous and another leans harsh so
// the aggregator's normalization has something to correct.
func honestScore(index int, quality float64) int {
	score := quality + (getRandomFloat()*2-1)*honestNoise
	switch index % biasedShare {
	case 0:
		score += generousBias
	case 1:
		score += harshBias
	}
	return clampScore(int(score + 0.5))
}

// jitterScore nudges a category score up or down by at most one point.
func jitterScore(base int) int {
	return clampScore(base - 1 + int(getRandomFloat()*3))
}

func clampScore(s int) int {
	if s < scoreFloor {
		return scoreFloor
	}
	if s > scoreCeiling {
		return scoreCeiling
	}
	return s
}
