package aggregate

import "errors"

// Sentinel kinds for aggregation errors.
var (
	ErrDuplicateEvaluator = errors.New("duplicate evaluator for presentation")
)
