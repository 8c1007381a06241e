package astutils

import (
	"go/ast"
	"go/types"
	"regexp"
	"strings"
)

var regexAnnotation = regexp.MustCompile(`^\s*(@[A-Z][a-zA-Z]*)\s*(\((.*)\))?\s*$`)

type annotated struct {
	anno  Annotation
	value string
}

func trimBrackets(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		return strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// parseAnnotation returns the annotations of a doc comment in order of
// appearance, with the raw text between their outer parentheses.
func parseAnnotation(c *ast.CommentGroup) []annotated {
	if c == nil {
		return nil
	}
	var result []annotated
	for _, v := range strings.Split(c.Text(), "\n") {
		ss := regexAnnotation.FindStringSubmatch(v)
		if len(ss) < 2 {
			continue
		}
		result = append(result, annotated{
			anno:  Annotation(ss[1]),
			value: trimBrackets(ss[2]),
		})
	}
	return result
}

// recvTypeName returns the receiver base type name of a method declaration,
// "Log" for both "(l Log)" and "(l *Log[T])".
func recvTypeName(expr ast.Expr) (string, bool) {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name, true
	case *ast.StarExpr:
		return recvTypeName(t.X)
	case *ast.ParenExpr:
		return recvTypeName(t.X)
	case *ast.IndexExpr:
		return recvTypeName(t.X)
	case *ast.IndexListExpr:
		return recvTypeName(t.X)
	default:
		return "", false
	}
}

// qualifier renders package-qualified names with the package name, matching
// the way targets are named.
func qualifier(p *types.Package) string {
	if p == nil {
		return ""
	}
	return p.Name()
}

func typeString(t types.Type) string {
	return types.TypeString(t, qualifier)
}
