package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrMemberNotFound       = errors.New("member not found")
	ErrInvalidLimit         = errors.New("invalid leaderboard limit")
	ErrPresentationNotFound = errors.New("presentation not found")
	ErrSessionNotFound      = errors.New("voting session not found")
	ErrSessionClosed        = errors.New("voting session closed")
	ErrSessionNotClosed     = errors.New("voting session still open")
	ErrSessionExists        = errors.New("voting session already exists")
	ErrDuplicateBallot      = errors.New("duplicate ballot for voter")
	ErrNotEligible          = errors.New("voter not in eligible snapshot")
	ErrResultNotReady       = errors.New("session result not decided yet")
	ErrRuleNotFound         = errors.New("rule not found")
	ErrRuleExists           = errors.New("rule already exists")
	ErrCycleClosed          = errors.New("voting closed for cycle")
	ErrRecordNotFound       = errors.New("detection record not found")
	ErrRecordSuperseded     = errors.New("detection record already superseded")
)
