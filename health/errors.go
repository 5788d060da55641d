package health

import "errors"

var (
	// ErrCheckFailed marks a result whose dependency reported an error.
	ErrCheckFailed = errors.New("health: dependency check failed")

	// ErrCheckTimeout marks a check cut off by the aggregator deadline.
	ErrCheckTimeout = errors.New("health: check exceeded deadline")

	// ErrCheckerNotFound is returned by Aggregator.Check for unknown names.
	ErrCheckerNotFound = errors.New("health: no checker registered under that name")
)
