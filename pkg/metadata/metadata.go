// Package metadata describes the structural facts the matching engine needs about
// the target program. Values are produced by a Provider and never mutated by the core.
package metadata

import (
	"fmt"
	"strings"
)

type MemberKind int

const (
	MemberMethod MemberKind = iota
	MemberConstructor
	MemberField
)

func (k MemberKind) String() string {
	switch k {
	case MemberMethod:
		return "method"
	case MemberConstructor:
		return "constructor"
	case MemberField:
		return "field"
	default:
		return "unknown"
	}
}

// JoinPointKind is the kind of program location a JoinPoint stands for. The zero
// value leaves the kind unspecified and lets every pointcut kind apply.
type JoinPointKind int

const (
	JoinPointAny JoinPointKind = iota
	JoinPointExecution
	JoinPointCall
	JoinPointFieldGet
	JoinPointFieldSet
	JoinPointHandler
	JoinPointStaticInit
)

func (k JoinPointKind) String() string {
	switch k {
	case JoinPointAny:
		return "any"
	case JoinPointExecution:
		return "execution"
	case JoinPointCall:
		return "call"
	case JoinPointFieldGet:
		return "get"
	case JoinPointFieldSet:
		return "set"
	case JoinPointHandler:
		return "handler"
	case JoinPointStaticInit:
		return "staticinitialization"
	default:
		return "unknown"
	}
}

type (
	// Type is a named type of the target program.
	Type struct {
		Name string
		// Supertypes is the flattened supertype chain, nearest first.
		Supertypes []string
		Attributes []string
	}

	// Member is a method, constructor or field declared by a Type.
	Member struct {
		Name       string
		Kind       MemberKind
		Declaring  string
		ReturnType string
		Params     []string
		Exceptions []string
		Attributes []string
	}

	// JoinPoint is one location of the target program.
	//
	// For call join points Type and Member describe the callee and Caller the type
	// containing the call site. CallPath holds the frames the current join point was
	// reached through, outermost first.
	JoinPoint struct {
		Kind     JoinPointKind
		Type     *Type
		Member   *Member
		Caller   *Type
		CallPath []JoinPoint
	}

	// Attribute is one {target, tag, value} record extracted from source annotations.
	Attribute struct {
		Target string
		Name   string
		Value  string
	}
)

// Is reports whether the type is name or has name in its supertype chain.
func (t *Type) Is(name string) bool {
	if t == nil {
		return false
	}
	if t.Name == name {
		return true
	}
	for _, s := range t.Supertypes {
		if s == name {
			return true
		}
	}
	return false
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.Name
}

func (m *Member) IsMethod() bool {
	return m != nil && (m.Kind == MemberMethod || m.Kind == MemberConstructor)
}

func (m *Member) IsField() bool {
	return m != nil && m.Kind == MemberField
}

func (m *Member) HasAttribute(name string) bool {
	if m == nil {
		return false
	}
	name = strings.TrimPrefix(name, "@")
	for _, a := range m.Attributes {
		if strings.TrimPrefix(a, "@") == name {
			return true
		}
	}
	return false
}

// Signature renders the member the way member patterns are written.
func (m *Member) Signature() string {
	if m == nil {
		return "<nil>"
	}
	if m.IsField() {
		return fmt.Sprintf("%s %s.%s", m.ReturnType, m.Declaring, m.Name)
	}
	return fmt.Sprintf("%s %s.%s(%s)", m.ReturnType, m.Declaring, m.Name, strings.Join(m.Params, ", "))
}

func (jp JoinPoint) String() string {
	var b strings.Builder
	if jp.Caller != nil {
		b.WriteString(jp.Caller.Name)
		b.WriteString("->")
	}
	switch {
	case jp.Member != nil:
		b.WriteString(jp.Member.Signature())
	case jp.Type != nil:
		b.WriteString(jp.Type.Name)
	default:
		b.WriteString("<empty>")
	}
	return b.String()
}

func (a Attribute) String() string {
	if a.Value == "" {
		return a.Target + " @" + a.Name
	}
	return fmt.Sprintf("%s @%s(%s)", a.Target, a.Name, a.Value)
}
