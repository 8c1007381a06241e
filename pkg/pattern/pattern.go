// Package pattern compiles textual wildcard patterns describing types and members
// into immutable matchers.
package pattern

import (
	"strings"

	"github.com/go-park/weaver/pkg/metadata"
)

// Category is the syntactic category of a pattern.
type Category int

const (
	CategoryClass Category = iota
	CategoryMethod
	CategoryField
	CategoryThrows
	CategoryCall
	CategoryAttribute
)

func (c Category) String() string {
	switch c {
	case CategoryClass:
		return "class"
	case CategoryMethod:
		return "method"
	case CategoryField:
		return "field"
	case CategoryThrows:
		return "throws"
	case CategoryCall:
		return "call"
	case CategoryAttribute:
		return "attribute"
	default:
		return "unknown"
	}
}

const (
	throwsDelimiter = "#"
	callDelimiter   = "->"
)

// Pattern is a compiled matcher. A Pattern is immutable and safe for concurrent use.
type Pattern struct {
	category Category
	source   string
	scope    string

	classQualifier  string
	memberQualifier string
	typePattern     string
	returnPattern   string
	paramPattern    string
	hierarchical    bool

	typ    *typeMatcher
	name   *nameMatcher
	ret    *typeMatcher
	params *paramsMatcher

	// throws
	method    *Pattern
	exception *typeMatcher
	// call
	caller *typeMatcher
	callee *Pattern
	// attribute
	attr *nameMatcher
}

// Compile compiles text as a pattern of category c. The scope qualifier is
// prefixed to unqualified class qualifiers.
func Compile(c Category, text, scope string) (*Pattern, error) {
	src := strings.TrimSpace(text)
	if src == "" {
		return nil, syntaxError(text, "empty pattern")
	}
	switch c {
	case CategoryClass:
		return compileClass(src, scope)
	case CategoryMethod:
		return compileMember(src, src, scope, true)
	case CategoryField:
		return compileMember(src, src, scope, false)
	case CategoryThrows:
		return compileThrows(src, scope)
	case CategoryCall:
		return compileCall(src, scope)
	case CategoryAttribute:
		return compileAttribute(src)
	default:
		return nil, syntaxError(src, "unknown pattern category %d", c)
	}
}

// MustCompile is like Compile but panics on error. It is meant for tests and
// package-level literals.
func MustCompile(c Category, text, scope string) *Pattern {
	p, err := Compile(c, text, scope)
	if err != nil {
		panic(err)
	}
	return p
}

func qualify(classQualifier, scope string) string {
	if scope == "" || classQualifier == wildcard || strings.Contains(classQualifier, ".") {
		return classQualifier
	}
	return scope + "." + classQualifier
}

func compileClass(src, scope string) (*Pattern, error) {
	q := strings.TrimSuffix(src, hierarchySuffix)
	tp := qualify(q, scope)
	text := tp
	if q != src {
		text += hierarchySuffix
	}
	typ, err := compileType(src, text)
	if err != nil {
		return nil, err
	}
	return &Pattern{
		category:       CategoryClass,
		source:         src,
		scope:          scope,
		classQualifier: q,
		typePattern:    tp,
		hierarchical:   typ.hierarchical,
		typ:            typ,
	}, nil
}

// compileMember parses "<type> <class>.<name>" optionally followed by "(<params>)".
func compileMember(src, text, scope string, method bool) (*Pattern, error) {
	text = strings.TrimSpace(text)
	sp := strings.IndexAny(text, " \t")
	if sp < 0 {
		return nil, syntaxError(src, "missing return or field type in %q", text)
	}
	retText := text[:sp]
	rest := strings.TrimSpace(text[sp+1:])
	if rest == "" {
		return nil, syntaxError(src, "missing member qualifier in %q", text)
	}

	qualifier := rest
	var paramText string
	open := strings.Index(rest, "(")
	if method {
		if open < 0 {
			return nil, syntaxError(src, "missing parameter list in %q", text)
		}
		if !strings.HasSuffix(rest, ")") {
			return nil, syntaxError(src, "unterminated parameter list in %q", text)
		}
		paramText = rest[open+1 : len(rest)-1]
		if strings.ContainsAny(paramText, "()") {
			return nil, syntaxError(src, "nested parentheses in parameter list %q", paramText)
		}
		qualifier = strings.TrimSpace(rest[:open])
	} else if open >= 0 || strings.Contains(rest, ")") {
		return nil, syntaxError(src, "unexpected parameter list in field pattern %q", text)
	}

	dot := strings.LastIndex(qualifier, ".")
	if dot < 0 {
		return nil, syntaxError(src, "missing class qualifier in %q", qualifier)
	}
	classText := qualifier[:dot]
	nameText := qualifier[dot+1:]
	if classText == "" {
		return nil, syntaxError(src, "empty class qualifier in %q", qualifier)
	}
	if strings.HasSuffix(classText, ".") {
		// "foo..bar" splits into "foo." and "bar"; the class side ends in ".."
		return nil, syntaxError(src, "dangling %q before member name in %q", anySegments, qualifier)
	}

	cq := strings.TrimSuffix(classText, hierarchySuffix)
	tp := qualify(cq, scope)
	typText := tp
	if cq != classText {
		typText += hierarchySuffix
	}
	typ, err := compileType(src, typText)
	if err != nil {
		return nil, err
	}
	name, err := compileName(src, nameText)
	if err != nil {
		return nil, err
	}
	ret, err := compileType(src, retText)
	if err != nil {
		return nil, err
	}

	p := &Pattern{
		category:        CategoryField,
		source:          src,
		scope:           scope,
		classQualifier:  cq,
		memberQualifier: nameText,
		typePattern:     tp,
		returnPattern:   retText,
		hierarchical:    typ.hierarchical,
		typ:             typ,
		name:            name,
		ret:             ret,
	}
	if method {
		params, err := compileParams(src, paramText)
		if err != nil {
			return nil, err
		}
		p.category = CategoryMethod
		p.paramPattern = paramText
		p.params = params
		p.memberQualifier = nameText + "(" + paramText + ")"
	}
	return p, nil
}

func compileThrows(src, scope string) (*Pattern, error) {
	i := strings.Index(src, throwsDelimiter)
	if i < 0 {
		return nil, syntaxError(src, "missing %q between method and exception type", throwsDelimiter)
	}
	if strings.Count(src, throwsDelimiter) > 1 {
		return nil, syntaxError(src, "more than one %q", throwsDelimiter)
	}
	m, err := compileMember(src, src[:i], scope, true)
	if err != nil {
		return nil, err
	}
	exText := strings.TrimSpace(src[i+1:])
	if exText == "" {
		return nil, syntaxError(src, "empty exception type")
	}
	ex, err := compileType(src, exText)
	if err != nil {
		return nil, err
	}
	return &Pattern{
		category:        CategoryThrows,
		source:          src,
		scope:           scope,
		classQualifier:  m.classQualifier,
		memberQualifier: m.memberQualifier,
		typePattern:     m.typePattern,
		returnPattern:   m.returnPattern,
		paramPattern:    m.paramPattern,
		hierarchical:    m.hierarchical,
		typ:             m.typ,
		method:          m,
		exception:       ex,
	}, nil
}

func compileCall(src, scope string) (*Pattern, error) {
	callerText := wildcard
	calleeText := src
	if i := strings.Index(src, callDelimiter); i >= 0 {
		callerText = strings.TrimSpace(src[:i])
		calleeText = src[i+len(callDelimiter):]
		if callerText == "" {
			return nil, syntaxError(src, "empty caller pattern before %q", callDelimiter)
		}
	}
	callee, err := compileMember(src, calleeText, scope, true)
	if err != nil {
		return nil, err
	}
	cq := strings.TrimSuffix(callerText, hierarchySuffix)
	callerTP := qualify(cq, scope)
	if cq != callerText {
		callerTP += hierarchySuffix
	}
	caller, err := compileType(src, callerTP)
	if err != nil {
		return nil, err
	}
	return &Pattern{
		category:        CategoryCall,
		source:          src,
		scope:           scope,
		classQualifier:  callee.classQualifier,
		memberQualifier: callee.memberQualifier,
		typePattern:     callee.typePattern,
		returnPattern:   callee.returnPattern,
		paramPattern:    callee.paramPattern,
		hierarchical:    callee.hierarchical,
		typ:             callee.typ,
		caller:          caller,
		callee:          callee,
	}, nil
}

func compileAttribute(src string) (*Pattern, error) {
	name := strings.TrimPrefix(src, "@")
	attr, err := compileName(src, name)
	if err != nil {
		return nil, err
	}
	return &Pattern{
		category:        CategoryAttribute,
		source:          src,
		memberQualifier: name,
		attr:            attr,
	}, nil
}

func (p *Pattern) Category() Category { return p.category }
func (p *Pattern) Source() string     { return p.source }
func (p *Pattern) Scope() string      { return p.scope }
func (p *Pattern) Hierarchical() bool { return p.hierarchical }

// TypePattern is the scope-qualified class qualifier without the hierarchical '+'.
func (p *Pattern) TypePattern() string { return p.typePattern }

// ClassQualifier is the class qualifier as written, without the hierarchical '+'.
func (p *Pattern) ClassQualifier() string { return p.classQualifier }

// MemberQualifier is the member name, with the parameter list for methods.
func (p *Pattern) MemberQualifier() string { return p.memberQualifier }

func (p *Pattern) ReturnPattern() string { return p.returnPattern }
func (p *Pattern) ParamPattern() string  { return p.paramPattern }

// MemberPattern is the member side of the pattern: "<type> <member qualifier>".
func (p *Pattern) MemberPattern() string {
	switch p.category {
	case CategoryClass:
		return ""
	case CategoryAttribute:
		return p.memberQualifier
	case CategoryThrows:
		return p.returnPattern + " " + p.memberQualifier + throwsDelimiter + p.exception.text
	default:
		return p.returnPattern + " " + p.memberQualifier
	}
}

// CallerPattern is the caller side of a call pattern, empty for other categories.
func (p *Pattern) CallerPattern() string {
	if p.caller == nil {
		return ""
	}
	return p.caller.text
}

// ExceptionPattern is the exception side of a throws pattern.
func (p *Pattern) ExceptionPattern() string {
	if p.exception == nil {
		return ""
	}
	return p.exception.text
}

func (p *Pattern) String() string { return p.source }

// MatchType is the class-level pre-filter. It reports whether the pattern could
// match some join point of t. For call patterns t is the caller side.
func (p *Pattern) MatchType(t *metadata.Type) bool {
	switch p.category {
	case CategoryClass, CategoryMethod, CategoryField, CategoryThrows:
		return p.typ.match(t)
	case CategoryCall:
		return p.caller.match(t)
	case CategoryAttribute:
		// members of any type may carry the attribute
		return true
	default:
		return false
	}
}

// Match reports whether the pattern matches the join point.
func (p *Pattern) Match(jp metadata.JoinPoint) bool {
	switch p.category {
	case CategoryClass:
		return p.typ.match(jp.Type)
	case CategoryMethod:
		return p.matchMethod(jp)
	case CategoryField:
		return p.matchField(jp)
	case CategoryThrows:
		if !p.method.matchMethod(jp) {
			return false
		}
		for _, ex := range jp.Member.Exceptions {
			if p.exception.matchName(ex) {
				return true
			}
		}
		return false
	case CategoryCall:
		if !p.callee.matchMethod(jp) {
			return false
		}
		if p.caller.any {
			return true
		}
		return p.caller.match(jp.Caller)
	case CategoryAttribute:
		if jp.Member != nil {
			for _, a := range jp.Member.Attributes {
				if p.attr.match(strings.TrimPrefix(a, "@")) {
					return true
				}
			}
			return false
		}
		if jp.Type != nil {
			for _, a := range jp.Type.Attributes {
				if p.attr.match(strings.TrimPrefix(a, "@")) {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

func (p *Pattern) declaring(jp metadata.JoinPoint) *metadata.Type {
	if jp.Type != nil {
		return jp.Type
	}
	if jp.Member != nil && jp.Member.Declaring != "" {
		return &metadata.Type{Name: jp.Member.Declaring}
	}
	return nil
}

func (p *Pattern) matchMethod(jp metadata.JoinPoint) bool {
	m := jp.Member
	if !m.IsMethod() {
		return false
	}
	return p.typ.match(p.declaring(jp)) &&
		p.name.match(m.Name) &&
		p.ret.matchName(m.ReturnType) &&
		p.params.match(m.Params)
}

func (p *Pattern) matchField(jp metadata.JoinPoint) bool {
	m := jp.Member
	if !m.IsField() {
		return false
	}
	return p.typ.match(p.declaring(jp)) &&
		p.name.match(m.Name) &&
		p.ret.matchName(m.ReturnType)
}
