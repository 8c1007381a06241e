package expression

import "fmt"

type SyntaxError struct {
	Expression string
	Position   int
	Reason     string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("expression syntax error in %q at %d: %s", e.Expression, e.Position, e.Reason)
}

// UndefinedReferenceError is returned when an expression leaf names a pointcut
// that cannot be resolved. It is never treated as false.
type UndefinedReferenceError struct {
	Name       string
	Expression string
}

func (e *UndefinedReferenceError) Error() string {
	if e.Expression == "" {
		return fmt.Sprintf("undefined pointcut reference %q", e.Name)
	}
	return fmt.Sprintf("undefined pointcut reference %q in expression %q", e.Name, e.Expression)
}
