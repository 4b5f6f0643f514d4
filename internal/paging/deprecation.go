package paging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// DeprecationBehavior selects what happens when a deprecated operation is used.
type DeprecationBehavior int

const (
	// DeprecationLog emits a warning and carries on.
	DeprecationLog DeprecationBehavior = iota
	// DeprecationSilence carries on without output.
	DeprecationSilence
	// DeprecationRaise rejects the call with ErrDeprecated.
	DeprecationRaise
)

func (b DeprecationBehavior) String() string {
	switch b {
	case DeprecationLog:
		return "log"
	case DeprecationSilence:
		return "silence"
	case DeprecationRaise:
		return "raise"
	default:
		return fmt.Sprintf("DeprecationBehavior(%d)", int(b))
	}
}

// ParseDeprecationBehavior maps "log", "silence" or "raise" to a behavior.
// The empty string selects DeprecationLog.
func ParseDeprecationBehavior(raw string) (DeprecationBehavior, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "log", "warn":
		return DeprecationLog, nil
	case "silence", "silent":
		return DeprecationSilence, nil
	case "raise", "strict":
		return DeprecationRaise, nil
	default:
		return DeprecationLog, fmt.Errorf("%w: %q", ErrUnknownDeprecationBehavior, raw)
	}
}

type deprecator struct {
	logger   *zap.Logger
	behavior DeprecationBehavior
}

func (d deprecator) report(entity, method, replacement string) error {
	switch d.behavior {
	case DeprecationSilence:
		return nil
	case DeprecationRaise:
		return fmt.Errorf("%s is deprecated, use %s instead: %w", method, replacement, ErrDeprecated)
	default:
		d.logger.Warn(method+" is deprecated. Use "+replacement+" instead.",
			zap.String("entity", entity),
			zap.String("method", method),
			zap.String("replacement", replacement),
		)
		return nil
	}
}
