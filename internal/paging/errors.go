package paging

import "errors"

var (
	// ErrDeprecated is returned by deprecated operations when the registry is
	// configured to raise instead of warn.
	ErrDeprecated = errors.New("deprecated operation")
	// ErrUnknownDeprecationBehavior is returned when a deprecation behavior name cannot be parsed.
	ErrUnknownDeprecationBehavior = errors.New("unknown deprecation behavior")
)
