package aspect

import (
	"fmt"
	"strings"

	"github.com/go-park/weaver/pkg/expression"
	"github.com/go-park/weaver/pkg/metadata"
	"github.com/go-park/weaver/pkg/pattern"
)

var (
	_ Nameable = (*Pointcut)(nil)
	_ Nameable = (*Advice)(nil)
	_ Nameable = (*Introduction)(nil)
	_ Nameable = (*Aspect)(nil)
)

type (
	Nameable interface {
		Name() string
	}

	// Pointcut is a named, typed predicate backed by one compiled pattern.
	Pointcut struct {
		name         string
		kind         Kind
		text         string
		scope        string
		nonReentrant bool
		compiler     *pattern.Compiler
		pattern      *pattern.Pattern
	}

	// Advice is a behavior bound to join points through a Rule.
	Advice struct {
		name     string
		aspect   string
		callable string
		ordinal  int
		typ      AdviceType
		position int
	}

	// Introduction declares interfaces, and optionally an implementation, that
	// matched types gain.
	Introduction struct {
		name           string
		interfaces     []string
		implementation string
		deployment     DeploymentModel
		methods        []string
	}

	// Rule binds advice of the owning aspect to a member expression and an
	// optional control-flow expression.
	Rule struct {
		expression *expression.Expression
		cflow      *expression.Expression
		advices    []string
	}

	// IntroductionRule binds introductions to a class-level expression.
	IntroductionRule struct {
		expression    *expression.Expression
		introductions []string
	}
)

// NewPointcut compiles text with the category of kind. Compilation is eager so
// that a built Pointcut is immutable.
func NewPointcut(name string, kind Kind, text string, opts ...Option[Pointcut]) (*Pointcut, error) {
	p := &Pointcut{name: name, kind: kind, text: strings.TrimSpace(text)}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.compile(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pointcut) compile() error {
	var (
		compiled *pattern.Pattern
		err      error
	)
	if p.compiler != nil {
		compiled, err = p.compiler.Compile(p.kind.Category(), p.text, p.scope)
	} else {
		compiled, err = pattern.Compile(p.kind.Category(), p.text, p.scope)
	}
	if err != nil {
		return fmt.Errorf("pointcut %q (%s): %w", p.name, p.kind, err)
	}
	p.pattern = compiled
	return nil
}

func (p *Pointcut) Name() string              { return p.name }
func (p *Pointcut) Kind() Kind                { return p.kind }
func (p *Pointcut) Text() string              { return p.text }
func (p *Pointcut) Scope() string             { return p.scope }
func (p *Pointcut) NonReentrant() bool        { return p.nonReentrant }
func (p *Pointcut) Hierarchical() bool        { return p.pattern.Hierarchical() }
func (p *Pointcut) Pattern() *pattern.Pattern { return p.pattern }

// Rebind returns a copy of the pointcut compiled under scope.
func (p *Pointcut) Rebind(scope string) (*Pointcut, error) {
	return p.rebindWith(scope, p.compiler)
}

func (p *Pointcut) rebindWith(scope string, c *pattern.Compiler) (*Pointcut, error) {
	cp := *p
	cp.scope = scope
	cp.compiler = c
	if err := cp.compile(); err != nil {
		return nil, err
	}
	return &cp, nil
}

// MatchType is the class-level pre-filter of the pointcut.
func (p *Pointcut) MatchType(t *metadata.Type) bool {
	return p.pattern.MatchType(t)
}

// MatchesDirect matches the pattern against the join point itself, ignoring
// the call path. For control-flow pointcuts it tells whether the join point is
// a control-flow marker.
func (p *Pointcut) MatchesDirect(jp metadata.JoinPoint) bool {
	if p.kind == KindCFlow {
		return p.pattern.Match(jp)
	}
	return p.kind.Accepts(jp.Kind) && p.pattern.Match(jp)
}

// Matches evaluates the pointcut at a join point. Control-flow pointcuts match
// when any frame of the call path matches their pattern.
func (p *Pointcut) Matches(jp metadata.JoinPoint) bool {
	if p.kind != KindCFlow {
		return p.MatchesDirect(jp)
	}
	for _, frame := range jp.CallPath {
		if p.pattern.Match(frame) {
			return true
		}
	}
	return false
}

func (p *Pointcut) String() string {
	return fmt.Sprintf("%s %s(%s)", p.name, p.kind, p.text)
}

func NewAdvice(opts ...Option[Advice]) *Advice {
	a := &Advice{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name is the advice name local to its aspect.
func (a *Advice) Name() string     { return a.name }
func (a *Advice) Aspect() string   { return a.aspect }
func (a *Advice) Callable() string { return a.callable }
func (a *Advice) Ordinal() int     { return a.ordinal }
func (a *Advice) Type() AdviceType { return a.typ }

// QualifiedName is "<aspect>.<name>".
func (a *Advice) QualifiedName() string {
	if a.aspect == "" {
		return a.name
	}
	return a.aspect + "." + a.name
}

func (a *Advice) rebind(aspect string) *Advice {
	cp := *a
	cp.aspect = aspect
	return &cp
}

func NewIntroduction(opts ...Option[Introduction]) *Introduction {
	i := &Introduction{}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Introduction) Name() string                { return i.name }
func (i *Introduction) Implementation() string      { return i.implementation }
func (i *Introduction) Deployment() DeploymentModel { return i.deployment }

// PureInterface reports whether the introduction carries no implementation.
func (i *Introduction) PureInterface() bool { return i.implementation == "" }

func (i *Introduction) Interfaces() []string {
	return append([]string(nil), i.interfaces...)
}

func (i *Introduction) Methods() []string {
	return append([]string(nil), i.methods...)
}

// NewRule parses the member expression and the optional control-flow
// expression of an advice binding.
func NewRule(expr, cflow string, advices ...string) (*Rule, error) {
	e, err := expression.Parse(expr)
	if err != nil {
		return nil, err
	}
	r := &Rule{expression: e, advices: advices}
	if strings.TrimSpace(cflow) != "" {
		c, err := expression.Parse(cflow)
		if err != nil {
			return nil, err
		}
		r.cflow = c
	}
	return r, nil
}

func (r *Rule) Expression() *expression.Expression { return r.expression }
func (r *Rule) CFlow() *expression.Expression      { return r.cflow }

func (r *Rule) Advices() []string {
	return append([]string(nil), r.advices...)
}

// Names lists the pointcut names of both expressions.
func (r *Rule) Names() []string {
	names := r.expression.Names()
	if r.cflow != nil {
		for _, n := range r.cflow.Names() {
			if !r.expression.References(n) {
				names = append(names, n)
			}
		}
	}
	return names
}

func (r *Rule) String() string {
	s := r.expression.Source()
	if r.cflow != nil {
		s += " cflow(" + r.cflow.Source() + ")"
	}
	return s + " -> " + strings.Join(r.advices, ", ")
}

func NewIntroductionRule(expr string, introductions ...string) (*IntroductionRule, error) {
	e, err := expression.Parse(expr)
	if err != nil {
		return nil, err
	}
	return &IntroductionRule{expression: e, introductions: introductions}, nil
}

func (r *IntroductionRule) Expression() *expression.Expression { return r.expression }

func (r *IntroductionRule) Introductions() []string {
	return append([]string(nil), r.introductions...)
}

func (r *IntroductionRule) String() string {
	return r.expression.Source() + " -> " + strings.Join(r.introductions, ", ")
}
