package model

import "time"

// DetectorKind names one of the independent gaming detectors.
type DetectorKind string

const (
	DetectorCollusion    DetectorKind = "collusion"
	DetectorBias         DetectorKind = "bias"
	DetectorManipulation DetectorKind = "manipulation"
	DetectorSybil        DetectorKind = "sybil"
)

// PenaltySeverity bands a confirmed detection into a sanction level.
type PenaltySeverity string

const (
	PenaltySevere   PenaltySeverity = "severe"
	PenaltyModerate PenaltySeverity = "moderate"
	PenaltyMinor    PenaltySeverity = "minor"
	PenaltyWarning  PenaltySeverity = "warning"
)

// GamingDetectionRecord is the outcome of one evaluation-set analysis.
// Records may be superseded by a manual review outcome but are never
// silently overwritten.
type GamingDetectionRecord struct {
	ID             string
	PresentationID string
	Suspicion      float64 // 0-1, max across detector kinds
	Issues         []string
	RequiresReview bool
	CreatedAt      time.Time
	SupersededBy   string // id of the review record replacing this one
	Confirmed      bool   // set by manual review, never by detection
	Severity       PenaltySeverity
}

// ReciprocalPair records that two evaluators scored each other highly
// within the same cycle. Supplied externally; the detector only consumes it.
type ReciprocalPair struct {
	EvaluatorA string
	EvaluatorB string
}

// IdentityLink is an externally supplied identity-linkage signal for the
// sybil detector.
type IdentityLink struct {
	EvaluatorIDs []string
	Basis        string // e.g. "shared_payment_account"
}

// DetectionSignals is the closed set of externally supplied evidence kinds.
// Each field is statically typed; there is no open-ended payload bag.
type DetectionSignals struct {
	Origins         map[string]string // evaluator id -> network/device origin key
	DemographicSkew bool
	ReciprocalPairs []ReciprocalPair
	IdentityLinks   []IdentityLink
}

// DetectionJob is the queue payload for asynchronous gaming analysis of one
// presentation's evaluation set.
type DetectionJob struct {
	PresentationID string
	Evaluations    []Evaluation
	Signals        DetectionSignals
	Cycle          Cycle
}
