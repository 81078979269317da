//go:build debug

package refbase

import (
	"fmt"
)

// contractViolation reports a misuse of the handle protocol. Debug builds panic
// so the offending call site shows up in the stack trace.
func contractViolation(kind violation, err error) {
	recordViolation(kind)
	panic(fmt.Sprintf("refbase: contract violation (%s): %v", kind, err))
}

// traceCounter records a counter mutation (debug only).
func traceCounter(op string, c *Counter) {
	logger.Debug(
		fmt.Sprintf("%s %s.", c.kind, op),
		"id", c.id,
		"strong", c.strong.Load(),
		"weak", c.weak.Load(),
		"self", c.self.Load(),
	)
}
