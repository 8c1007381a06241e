package aspect

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFrozen is returned by mutations of an aspect that belongs to a loaded set.
var ErrFrozen = errors.New("aspect is frozen")

// UndefinedAbstractAspectError reports an extends reference that names no
// registered abstract aspect.
type UndefinedAbstractAspectError struct {
	Aspect  string
	Extends string
}

func (e *UndefinedAbstractAspectError) Error() string {
	return fmt.Sprintf("aspect %q extends undefined abstract aspect %q", e.Aspect, e.Extends)
}

// InconsistentPointcutTypeError reports an expression combining pointcut kinds
// that cannot be evaluated at the same join point.
type InconsistentPointcutTypeError struct {
	Aspect     string
	Expression string
	Kinds      []Kind
	Reason     string
}

func (e *InconsistentPointcutTypeError) Error() string {
	kinds := make([]string, 0, len(e.Kinds))
	for _, k := range e.Kinds {
		kinds = append(kinds, k.String())
	}
	return fmt.Sprintf("aspect %q: expression %q mixes pointcut kinds [%s]: %s",
		e.Aspect, e.Expression, strings.Join(kinds, ", "), e.Reason)
}
