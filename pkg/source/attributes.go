package source

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-park/weaver/pkg/metadata"
)

// Attribute tags understood by FromAttributes. Every other tag is kept as a
// custom attribute of the definition set.
const (
	TagAspect       = "Aspect"
	TagPointcut     = "Pointcut"
	TagBefore       = "Before"
	TagAfter        = "After"
	TagAround       = "Around"
	TagIntroduction = "Introduction"
	TagIntroduce    = "Introduce"
)

// Parameter keys of the attribute values.
const (
	KeyDefault        = "default"
	KeyAbstract       = "abstract"
	KeyExtends        = "extends"
	KeyDeployment     = "deployment"
	KeyScope          = "scope"
	KeyKind           = "kind"
	KeyCFlow          = "cflow"
	KeyOrdinal        = "ordinal"
	KeyNonReentrant   = "nonReentrant"
	KeyInterfaces     = "interfaces"
	KeyImplementation = "implementation"
	KeyIntroductions  = "introductions"
	KeyMethods        = "methods"
)

// listSeparator separates list values inside one parameter, as in
// interfaces="Marker|Named".
const listSeparator = "|"

// pointcutTags are the tags that declare a pointcut of the named kind on a
// member of an aspect type.
var pointcutTags = map[string]string{
	"Execution": "execution",
	"Get":       "get",
	"Set":       "set",
	"Throws":    "throws",
	"Call":      "call",
	"CFlow":     "cflow",
	"Class":     "class",
	"Attribute": "attribute",
}

// IsPointcutTag reports whether tag declares a pointcut.
func IsPointcutTag(tag string) bool {
	_, ok := pointcutTags[tag]
	return ok || tag == TagPointcut
}

// IsAdviceTag reports whether tag declares an advice.
func IsAdviceTag(tag string) bool {
	return tag == TagBefore || tag == TagAfter || tag == TagAround
}

// IsSystemTag reports whether FromAttributes interprets tag.
func IsSystemTag(tag string) bool {
	return tag == TagAspect || tag == TagIntroduction || tag == TagIntroduce || IsPointcutTag(tag) || IsAdviceTag(tag)
}

// ParseParams splits an attribute value such as
//
//	"* Foo.bar(int, string)", cflow="tx", ordinal=2
//
// into its positional default and its key/value parameters. Commas inside
// quotes or parentheses do not separate parameters.
func ParseParams(value string) (string, map[string]string, error) {
	params := map[string]string{}
	var def string
	for _, part := range splitParams(value) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if key, v, ok := splitKeyValue(part); ok {
			uq, err := unquote(v)
			if err != nil {
				return "", nil, fmt.Errorf("parameter %s of %q: %w", key, value, err)
			}
			params[key] = uq
			continue
		}
		uq, err := unquote(part)
		if err != nil {
			return "", nil, fmt.Errorf("parameter of %q: %w", value, err)
		}
		def = uq
	}
	if def != "" {
		params[KeyDefault] = def
	}
	return def, params, nil
}

func splitParams(s string) []string {
	var (
		parts   []string
		depth   int
		quoted  bool
		escaped bool
		start   int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && quoted:
			escaped = true
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func splitKeyValue(part string) (string, string, bool) {
	if strings.HasPrefix(part, `"`) {
		return "", "", false
	}
	eq := strings.Index(part, "=")
	if eq <= 0 {
		return "", "", false
	}
	key := strings.TrimSpace(part[:eq])
	for _, c := range key {
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return "", "", false
		}
	}
	return key, strings.TrimSpace(part[eq+1:]), true
}

func unquote(s string) (string, error) {
	if strings.HasPrefix(s, `"`) {
		return strconv.Unquote(s)
	}
	return s, nil
}

func splitList(s string) []string {
	var list []string
	for _, v := range strings.Split(s, listSeparator) {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}
	return list
}

func shortName(target string) string {
	if i := strings.LastIndex(target, "."); i >= 0 {
		return target[i+1:]
	}
	return target
}

// FromAttributes builds definitions from annotation attributes, keeping their
// order: aspects, pointcuts and advice are declared in the order of attrs.
//
// An @Aspect attribute on a type declares an aspect named by its default
// parameter, or by the type. Pointcut and advice attributes apply to the
// aspect whose target prefixes theirs: "pkg.Log.trace" belongs to "pkg.Log".
// Pointcuts are named after the member, advice after the method. @Introduction
// on a type declares an introduction implemented by that type; an empty
// implementation parameter makes it a pure-interface introduction. @Introduce
// on an aspect type binds introductions to a class expression.
func FromAttributes(attrs []metadata.Attribute) (*Definitions, error) {
	defs := &Definitions{Version: CurrentVersion}
	aspects := map[string]int{}

	for _, attr := range attrs {
		if attr.Name != TagAspect {
			continue
		}
		name, params, err := ParseParams(attr.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", attr, err)
		}
		if name == "" {
			name = shortName(attr.Target)
		}
		a := Aspect{
			Name:       name,
			Class:      attr.Target,
			Deployment: params[KeyDeployment],
			Extends:    params[KeyExtends],
			Scope:      params[KeyScope],
		}
		if v, ok := params[KeyAbstract]; ok {
			if a.Abstract, err = strconv.ParseBool(v); err != nil {
				return nil, fmt.Errorf("%s: %s: %w", attr, KeyAbstract, err)
			}
		}
		for k, v := range params {
			switch k {
			case KeyDefault, KeyDeployment, KeyExtends, KeyScope, KeyAbstract:
			default:
				if a.Params == nil {
					a.Params = map[string]string{}
				}
				a.Params[k] = v
			}
		}
		aspects[attr.Target] = len(defs.Aspects)
		defs.Aspects = append(defs.Aspects, a)
	}

	owner := func(target string) (*Aspect, string, bool) {
		i := strings.LastIndex(target, ".")
		if i < 0 {
			return nil, "", false
		}
		idx, ok := aspects[target[:i]]
		if !ok {
			return nil, "", false
		}
		return &defs.Aspects[idx], target[i+1:], true
	}

	for _, attr := range attrs {
		switch {
		case attr.Name == TagAspect:
		case IsPointcutTag(attr.Name):
			a, member, ok := owner(attr.Target)
			if !ok {
				return nil, fmt.Errorf("%s: pointcut outside an aspect type", attr)
			}
			text, params, err := ParseParams(attr.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", attr, err)
			}
			kind := pointcutTags[attr.Name]
			if attr.Name == TagPointcut {
				kind = params[KeyKind]
			}
			p := Pointcut{Name: member, Kind: kind, Pattern: text}
			if v, ok := params[KeyNonReentrant]; ok {
				if p.NonReentrant, err = strconv.ParseBool(v); err != nil {
					return nil, fmt.Errorf("%s: %s: %w", attr, KeyNonReentrant, err)
				}
			}
			a.Pointcuts = append(a.Pointcuts, p)
		case IsAdviceTag(attr.Name):
			a, method, ok := owner(attr.Target)
			if !ok {
				return nil, fmt.Errorf("%s: advice outside an aspect type", attr)
			}
			expr, params, err := ParseParams(attr.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", attr, err)
			}
			adv := Advice{
				Name:       method,
				Type:       strings.ToLower(attr.Name),
				Callable:   attr.Target,
				Expression: expr,
				CFlow:      params[KeyCFlow],
			}
			if v, ok := params[KeyOrdinal]; ok {
				ordinal, err := strconv.Atoi(v)
				if err != nil {
					return nil, fmt.Errorf("%s: %s: %w", attr, KeyOrdinal, err)
				}
				adv.Ordinal = &ordinal
			}
			a.Advices = append(a.Advices, adv)
		case attr.Name == TagIntroduction:
			name, params, err := ParseParams(attr.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", attr, err)
			}
			if name == "" {
				name = shortName(attr.Target)
			}
			intro := Introduction{
				Name:           name,
				Interfaces:     splitList(params[KeyInterfaces]),
				Implementation: attr.Target,
				Deployment:     params[KeyDeployment],
				Methods:        splitList(params[KeyMethods]),
			}
			if v, ok := params[KeyImplementation]; ok {
				intro.Implementation = v
			}
			defs.Introductions = append(defs.Introductions, intro)
		case attr.Name == TagIntroduce:
			idx, ok := aspects[attr.Target]
			if !ok {
				return nil, fmt.Errorf("%s: introduction binding outside an aspect type", attr)
			}
			expr, params, err := ParseParams(attr.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", attr, err)
			}
			a := &defs.Aspects[idx]
			a.IntroductionBindings = append(a.IntroductionBindings, IntroductionBinding{
				Expression:    expr,
				Introductions: splitList(params[KeyIntroductions]),
			})
		default:
			defs.Attributes = append(defs.Attributes, attr)
		}
	}
	return defs, nil
}
