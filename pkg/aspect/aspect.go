// Package aspect holds the definition model: pointcuts, advice, introductions,
// weaving rules and the aspects that own them.
package aspect

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/go-park/weaver/pkg/expression"
	"github.com/go-park/weaver/pkg/metadata"
	"github.com/go-park/weaver/pkg/pattern"
)

// Aspect groups pointcuts, advice and weaving rules under one deployment
// model. An aspect is mutable until Freeze is called.
type Aspect struct {
	name       string
	class      string
	deployment DeploymentModel
	abstract   bool
	extends    string
	scope      string
	params     map[string]string
	compiler   *pattern.Compiler

	pointcuts  map[string]*Pointcut
	declared   []*Pointcut
	advices    map[AdviceType][]*Advice
	rules      []*Rule
	introRules []*IntroductionRule
	positions  int

	frozen atomic.Bool
}

func New(name string, opts ...Option[Aspect]) *Aspect {
	a := &Aspect{
		name:      name,
		pointcuts: map[string]*Pointcut{},
		advices:   map[AdviceType][]*Advice{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aspect) Name() string                { return a.name }
func (a *Aspect) Class() string               { return a.class }
func (a *Aspect) Deployment() DeploymentModel { return a.deployment }
func (a *Aspect) Abstract() bool              { return a.abstract }
func (a *Aspect) Extends() string             { return a.extends }
func (a *Aspect) Scope() string               { return a.scope }
func (a *Aspect) Frozen() bool                { return a.frozen.Load() }

func (a *Aspect) Param(key string) (string, bool) {
	v, ok := a.params[key]
	return v, ok
}

func (a *Aspect) Params() map[string]string {
	params := make(map[string]string, len(a.params))
	for k, v := range a.params {
		params[k] = v
	}
	return params
}

// Freeze rejects every later mutation with ErrFrozen.
func (a *Aspect) Freeze() { a.frozen.Store(true) }

// NewPointcut compiles a pointcut under the scope and compiler of the aspect.
// The pointcut is not added.
func (a *Aspect) NewPointcut(name string, kind Kind, text string, opts ...Option[Pointcut]) (*Pointcut, error) {
	opts = append([]Option[Pointcut]{WithPointcutScope(a.scope), WithPointcutCompiler(a.compiler)}, opts...)
	return NewPointcut(name, kind, text, opts...)
}

// AddPointcut declares p. A second pointcut with the same name replaces the
// first for matching; both stay declared so duplicates can be reported.
func (a *Aspect) AddPointcut(p *Pointcut) error {
	if a.frozen.Load() {
		return ErrFrozen
	}
	a.declared = append(a.declared, p)
	a.pointcuts[p.name] = p
	return nil
}

// AddAdvice declares adv. Advice keeps the position of its declaration, which
// orders advice of equal ordinal.
func (a *Aspect) AddAdvice(adv *Advice) error {
	if a.frozen.Load() {
		return ErrFrozen
	}
	a.addAdvice(adv)
	return nil
}

func (a *Aspect) addAdvice(adv *Advice) {
	adv = adv.rebind(a.name)
	adv.position = a.positions
	a.positions++
	a.advices[adv.typ] = append(a.advices[adv.typ], adv)
}

func (a *Aspect) AddRule(r *Rule) error {
	if a.frozen.Load() {
		return ErrFrozen
	}
	a.rules = append(a.rules, r)
	return nil
}

func (a *Aspect) AddIntroductionRule(r *IntroductionRule) error {
	if a.frozen.Load() {
		return ErrFrozen
	}
	a.introRules = append(a.introRules, r)
	return nil
}

// Pointcut returns the visible pointcut named name, inherited ones included.
func (a *Aspect) Pointcut(name string) (*Pointcut, bool) {
	p, ok := a.pointcuts[name]
	return p, ok
}

// Pointcuts returns every visible pointcut sorted by name.
func (a *Aspect) Pointcuts() []*Pointcut {
	ps := make([]*Pointcut, 0, len(a.pointcuts))
	for _, p := range a.pointcuts {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].name < ps[j].name })
	return ps
}

// Declared returns the pointcuts declared by the aspect itself, in declaration
// order and including duplicates.
func (a *Aspect) Declared() []*Pointcut {
	return append([]*Pointcut(nil), a.declared...)
}

func (a *Aspect) Advices(t AdviceType) []*Advice {
	return append([]*Advice(nil), a.advices[t]...)
}

// Advice finds an advice by local or qualified name.
func (a *Aspect) Advice(name string) (*Advice, bool) {
	for _, t := range AdviceTypes {
		for _, adv := range a.advices[t] {
			if adv.name == name || adv.QualifiedName() == name {
				return adv, true
			}
		}
	}
	return nil, false
}

// AllAdvices returns the around, before and after advice ordered by ordinal,
// ties broken by declaration order.
func (a *Aspect) AllAdvices() []*Advice {
	var all []*Advice
	for _, t := range AdviceTypes {
		all = append(all, a.advices[t]...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].ordinal != all[j].ordinal {
			return all[i].ordinal < all[j].ordinal
		}
		return all[i].position < all[j].position
	})
	return all
}

// declaredAdvices returns every advice in declaration order.
func (a *Aspect) declaredAdvices() []*Advice {
	var all []*Advice
	for _, t := range AdviceTypes {
		all = append(all, a.advices[t]...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].position < all[j].position })
	return all
}

func (a *Aspect) Rules() []*Rule {
	return append([]*Rule(nil), a.rules...)
}

func (a *Aspect) IntroductionRules() []*IntroductionRule {
	return append([]*IntroductionRule(nil), a.introRules...)
}

// Binder binds pointcut names of the aspect to their match result at jp.
func (a *Aspect) Binder(jp metadata.JoinPoint) expression.Binder {
	return func(name string) (bool, error) {
		p, ok := a.pointcuts[name]
		if !ok {
			return false, &expression.UndefinedReferenceError{Name: name}
		}
		return p.Matches(jp), nil
	}
}

// TypeBinder binds pointcut names to the class-level pre-filter result for t.
func (a *Aspect) TypeBinder(t *metadata.Type) expression.Binder {
	return func(name string) (bool, error) {
		p, ok := a.pointcuts[name]
		if !ok {
			return false, &expression.UndefinedReferenceError{Name: name}
		}
		return p.MatchType(t), nil
	}
}

// Matches evaluates r at jp with member-then-control-flow semantics.
func (a *Aspect) Matches(r *Rule, jp metadata.JoinPoint) (bool, error) {
	return expression.EvaluateRule(r.expression, r.cflow, a.Binder(jp))
}

// RuleKinds returns the kinds of the pointcuts r references, in order of first
// use. Unresolved names are skipped.
func (a *Aspect) RuleKinds(r *Rule) []Kind {
	return a.kinds(r.Names())
}

func (a *Aspect) kinds(names []string) []Kind {
	var (
		kinds []Kind
		seen  = map[Kind]bool{}
	)
	for _, name := range names {
		p, ok := a.pointcuts[name]
		if !ok || seen[p.kind] {
			continue
		}
		seen[p.kind] = true
		kinds = append(kinds, p.kind)
	}
	return kinds
}

// CheckConsistency verifies that every rule combines compatible pointcut
// kinds. Non control-flow pointcuts of one member expression share a single
// kind, control-flow expressions reference only control-flow pointcuts and
// introduction rules reference only class pointcuts.
func (a *Aspect) CheckConsistency() error {
	for _, r := range a.rules {
		var kinds []Kind
		for _, k := range a.kinds(r.expression.Names()) {
			if k != KindCFlow {
				kinds = append(kinds, k)
			}
		}
		if len(kinds) > 1 {
			return &InconsistentPointcutTypeError{
				Aspect:     a.name,
				Expression: r.expression.Source(),
				Kinds:      kinds,
				Reason:     "only control-flow pointcuts may be combined with another kind",
			}
		}
		if r.cflow == nil {
			continue
		}
		if kinds := a.kinds(r.cflow.Names()); len(kinds) > 1 || (len(kinds) == 1 && kinds[0] != KindCFlow) {
			return &InconsistentPointcutTypeError{
				Aspect:     a.name,
				Expression: r.cflow.Source(),
				Kinds:      kinds,
				Reason:     "control-flow expressions reference only cflow pointcuts",
			}
		}
	}
	for _, r := range a.introRules {
		kinds := a.kinds(r.expression.Names())
		if len(kinds) > 1 || (len(kinds) == 1 && kinds[0] != KindClass) {
			return &InconsistentPointcutTypeError{
				Aspect:     a.name,
				Expression: r.expression.Source(),
				Kinds:      kinds,
				Reason:     "introduction expressions reference only class pointcuts",
			}
		}
	}
	return nil
}

func (a *Aspect) String() string {
	return fmt.Sprintf("aspect %s(%s, %s)", a.name, a.class, a.deployment)
}

// Merge builds a new concrete aspect from an abstract template and a child
// declaring extends. Inherited and own pointcuts are recompiled under the
// effective scope of the child; pointcuts and advice declared by the child
// override inherited ones of the same name. Template rules and advice come
// first. Neither input is modified.
func Merge(template, child *Aspect) (*Aspect, error) {
	if template == nil || !template.abstract {
		return nil, &UndefinedAbstractAspectError{Aspect: child.name, Extends: child.extends}
	}
	if template.extends != "" {
		return nil, fmt.Errorf("abstract aspect %q cannot extend %q: inheritance is one level",
			template.name, template.extends)
	}
	scope := child.scope
	if scope == "" {
		scope = template.scope
	}
	compiler := child.compiler
	if compiler == nil {
		compiler = template.compiler
	}

	merged := New(child.name,
		WithAspectClass(child.class),
		WithDeployment(child.deployment),
		WithExtends(template.name),
		WithScope(scope),
		WithCompiler(compiler),
	)
	for k, v := range template.params {
		WithParam(k, v)(merged)
	}
	for k, v := range child.params {
		WithParam(k, v)(merged)
	}

	for name, p := range template.pointcuts {
		rebound, err := p.rebindWith(scope, compiler)
		if err != nil {
			return nil, fmt.Errorf("inherit %q from %q: %w", name, template.name, err)
		}
		merged.pointcuts[name] = rebound
	}
	for _, p := range child.declared {
		rebound, err := p.rebindWith(scope, compiler)
		if err != nil {
			return nil, fmt.Errorf("aspect %q: %w", child.name, err)
		}
		merged.declared = append(merged.declared, rebound)
		merged.pointcuts[p.name] = rebound
	}

	for _, adv := range template.declaredAdvices() {
		if _, overridden := child.Advice(adv.name); !overridden {
			merged.addAdvice(adv)
		}
	}
	for _, adv := range child.declaredAdvices() {
		merged.addAdvice(adv)
	}

	merged.rules = append(append(merged.rules, template.rules...), child.rules...)
	merged.introRules = append(append(merged.introRules, template.introRules...), child.introRules...)
	return merged, nil
}
