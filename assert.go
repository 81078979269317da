//go:build !debug

package refbase

// contractViolation reports a misuse of the handle protocol. Release builds log
// it and let the caller continue with the documented fallback.
func contractViolation(kind violation, err error) {
	recordViolation(kind)
	logger.Error("refbase: contract violation", "kind", string(kind), "error", err)
}

// traceCounter records a counter mutation (debug only).
func traceCounter(op string, c *Counter) {}
