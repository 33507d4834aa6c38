package selector

import "errors"

// ErrNoEligibleCandidates indicates no member passed eligibility and the
// merit floor. Reported, non-fatal; the caller owns the fallback action.
var ErrNoEligibleCandidates = errors.New("no eligible candidates")
