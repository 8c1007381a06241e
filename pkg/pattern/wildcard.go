package pattern

import (
	"regexp"
	"strings"

	"github.com/go-park/weaver/pkg/metadata"
)

const (
	wildcard        = "*"
	anySegments     = ".."
	hierarchySuffix = "+"
)

// typeMatcher matches dotted type names. A '*' matches inside one segment, ".."
// matches any number of intermediate segments.
type typeMatcher struct {
	text         string
	hierarchical bool
	any          bool
	re           *regexp.Regexp
}

func compileType(src, text string) (*typeMatcher, error) {
	text = strings.TrimSpace(text)
	m := &typeMatcher{}
	if strings.HasSuffix(text, hierarchySuffix) {
		m.hierarchical = true
		text = strings.TrimSuffix(text, hierarchySuffix)
	}
	if text == "" {
		return nil, syntaxError(src, "empty type pattern")
	}
	if strings.ContainsAny(text, " \t+()#") {
		return nil, syntaxError(src, "invalid character in type pattern %q", text)
	}
	m.text = text
	if text == wildcard {
		m.any = true
		return m, nil
	}
	expr, err := segmentExpr(src, text, true)
	if err != nil {
		return nil, err
	}
	m.re = regexp.MustCompile("^" + expr + "$")
	return m, nil
}

// segmentExpr translates a wildcard pattern into a regular expression body.
func segmentExpr(src, text string, dotted bool) (string, error) {
	var b strings.Builder
	segment := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '.' && dotted && strings.HasPrefix(text[i:], anySegments):
			if segment == 0 || i+2 >= len(text) || text[i+2] == '.' {
				return "", syntaxError(src, "dangling %q in %q", anySegments, text)
			}
			b.WriteString(`(?:\.[^.]+)*\.`)
			i++
			segment = 0
		case c == '.' && dotted:
			if segment == 0 || i+1 >= len(text) {
				return "", syntaxError(src, "empty segment in %q", text)
			}
			b.WriteString(`\.`)
			segment = 0
		case c == '.':
			return "", syntaxError(src, "unexpected '.' in %q", text)
		case c == '*':
			b.WriteString(`[^.]*`)
			segment++
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			segment++
		}
	}
	return b.String(), nil
}

func (m *typeMatcher) matchName(name string) bool {
	if m == nil || m.any {
		return true
	}
	return m.re.MatchString(name)
}

// match applies the hierarchical flag: a flagged matcher also accepts any type
// whose supertype chain contains a matching name.
func (m *typeMatcher) match(t *metadata.Type) bool {
	if m == nil || m.any {
		return true
	}
	if t == nil {
		return false
	}
	if m.re.MatchString(t.Name) {
		return true
	}
	if !m.hierarchical {
		return false
	}
	for _, s := range t.Supertypes {
		if m.re.MatchString(s) {
			return true
		}
	}
	return false
}

type nameMatcher struct {
	text string
	any  bool
	re   *regexp.Regexp
}

func compileName(src, text string) (*nameMatcher, error) {
	if text == "" {
		return nil, syntaxError(src, "empty member name")
	}
	if text == wildcard {
		return &nameMatcher{text: text, any: true}, nil
	}
	if strings.ContainsAny(text, " \t+()#") {
		return nil, syntaxError(src, "invalid character in member name %q", text)
	}
	expr, err := segmentExpr(src, text, false)
	if err != nil {
		return nil, err
	}
	return &nameMatcher{text: text, re: regexp.MustCompile("^" + expr + "$")}, nil
}

func (m *nameMatcher) match(name string) bool {
	if m == nil || m.any {
		return true
	}
	return m.re.MatchString(name)
}

// paramsMatcher matches a parameter type list. An element ".." matches zero or
// more parameters.
type paramsMatcher struct {
	text  string
	elems []*typeMatcher
}

func compileParams(src, text string) (*paramsMatcher, error) {
	text = strings.TrimSpace(text)
	m := &paramsMatcher{text: text}
	if text == "" {
		return m, nil
	}
	for _, v := range strings.Split(text, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, syntaxError(src, "empty parameter type in (%s)", text)
		}
		if v == anySegments {
			m.elems = append(m.elems, nil)
			continue
		}
		tm, err := compileType(src, v)
		if err != nil {
			return nil, err
		}
		m.elems = append(m.elems, tm)
	}
	return m, nil
}

func (m *paramsMatcher) match(params []string) bool {
	return matchParams(m.elems, params)
}

func matchParams(elems []*typeMatcher, params []string) bool {
	if len(elems) == 0 {
		return len(params) == 0
	}
	head := elems[0]
	if head == nil {
		for i := 0; i <= len(params); i++ {
			if matchParams(elems[1:], params[i:]) {
				return true
			}
		}
		return false
	}
	if len(params) == 0 || !head.matchName(params[0]) {
		return false
	}
	return matchParams(elems[1:], params[1:])
}
