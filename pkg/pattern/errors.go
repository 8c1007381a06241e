package pattern

import "fmt"

// PatternSyntaxError reports a malformed pattern. It is never recovered: the
// pointcut owning the pattern must not be built.
type PatternSyntaxError struct {
	Pattern string
	Reason  string
}

func (e *PatternSyntaxError) Error() string {
	return fmt.Sprintf("pattern syntax error in %q: %s", e.Pattern, e.Reason)
}

func syntaxError(pattern, format string, args ...any) error {
	return &PatternSyntaxError{Pattern: pattern, Reason: fmt.Sprintf(format, args...)}
}
