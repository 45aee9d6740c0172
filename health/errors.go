package health

import "errors"

var (
	// ErrCheckFailed indicates a check failed or panicked.
	ErrCheckFailed = errors.New("health: check failed")

	// ErrCheckTimeout indicates a check overran its timeout.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound indicates no checker is registered under a name.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrNilSource indicates a CacheChecker was built without a stats source.
	ErrNilSource = errors.New("health: nil stats source")
)
