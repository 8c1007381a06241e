package definition

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/go-park/weaver/pkg/aspect"
	"github.com/go-park/weaver/pkg/source"
)

// Build turns a declared definition tree into a loaded set. Building is all
// or nothing: the first structural error aborts and no set is returned. The
// identity of defs, when present, is the identity of the set.
func Build(defs *source.Definitions, opts ...Option) (*Set, error) {
	if defs.ID != "" {
		id, err := uuid.Parse(defs.ID)
		if err != nil {
			return nil, fmt.Errorf("definitions id %q: %w", defs.ID, err)
		}
		opts = append([]Option{WithID(id)}, opts...)
	}
	if defs.Scope != "" {
		opts = append([]Option{WithSetScope(defs.Scope)}, opts...)
	}
	s := NewSet(opts...)

	for _, decl := range defs.Introductions {
		intro, err := buildIntroduction(decl)
		if err != nil {
			return nil, err
		}
		if _, err := s.AddIntroduction(intro); err != nil {
			return nil, err
		}
	}

	// templates first, so that extends may name a template declared later
	for _, abstract := range []bool{true, false} {
		for _, decl := range defs.Aspects {
			if decl.Abstract != abstract {
				continue
			}
			a, err := s.buildAspect(decl)
			if err != nil {
				s.logger.WithField("aspect", decl.Name).WithError(err).Warn("aspect rejected")
				return nil, err
			}
			if _, err := s.AddAspect(a); err != nil {
				s.logger.WithField("aspect", decl.Name).WithError(err).Warn("aspect rejected")
				return nil, err
			}
		}
	}

	for _, attr := range defs.Attributes {
		if err := s.AddAttribute(attr); err != nil {
			return nil, err
		}
	}
	if err := s.MarkLoaded(); err != nil {
		return nil, err
	}
	return s, nil
}

func buildIntroduction(decl source.Introduction) (*aspect.Introduction, error) {
	deployment, err := aspect.ParseDeploymentModel(decl.Deployment)
	if err != nil {
		return nil, fmt.Errorf("introduction %q: %w", decl.Name, err)
	}
	if len(decl.Interfaces) == 0 {
		return nil, fmt.Errorf("introduction %q: no interfaces", decl.Name)
	}
	return aspect.NewIntroduction(
		aspect.WithIntroductionName(decl.Name),
		aspect.WithInterfaces(decl.Interfaces...),
		aspect.WithImplementation(decl.Implementation),
		aspect.WithIntroductionDeployment(deployment),
		aspect.WithIntroducedMethods(decl.Methods...),
	), nil
}

func (s *Set) buildAspect(decl source.Aspect) (*aspect.Aspect, error) {
	wrap := func(err error) error {
		return &AspectError{Aspect: decl.Name, Err: err}
	}
	deployment, err := aspect.ParseDeploymentModel(decl.Deployment)
	if err != nil {
		return nil, wrap(err)
	}
	scope := decl.Scope
	if scope == "" {
		scope = s.scope
	}
	opts := []aspect.Option[aspect.Aspect]{
		aspect.WithAspectClass(decl.Class),
		aspect.WithDeployment(deployment),
		aspect.WithAbstract(decl.Abstract),
		aspect.WithExtends(decl.Extends),
		aspect.WithScope(scope),
		aspect.WithCompiler(s.compiler),
	}
	for k, v := range decl.Params {
		opts = append(opts, aspect.WithParam(k, v))
	}
	a := aspect.New(decl.Name, opts...)

	for _, pc := range decl.Pointcuts {
		kind, err := aspect.ParseKind(pc.Kind)
		if err != nil {
			return nil, wrap(fmt.Errorf("pointcut %q: %w", pc.Name, err))
		}
		p, err := a.NewPointcut(pc.Name, kind, pc.Pattern, aspect.WithNonReentrant(pc.NonReentrant))
		if err != nil {
			return nil, wrap(err)
		}
		if err := a.AddPointcut(p); err != nil {
			return nil, wrap(err)
		}
	}
	for i, ad := range decl.Advices {
		typ, err := aspect.ParseAdviceType(ad.Type)
		if err != nil {
			return nil, wrap(fmt.Errorf("advice %q: %w", ad.Name, err))
		}
		ordinal := i
		if ad.Ordinal != nil {
			ordinal = *ad.Ordinal
		}
		adv := aspect.NewAdvice(
			aspect.WithAdviceName(ad.Name),
			aspect.WithAdviceType(typ),
			aspect.WithAdviceCallable(ad.Callable),
			aspect.WithAdviceOrdinal(ordinal),
		)
		if err := a.AddAdvice(adv); err != nil {
			return nil, wrap(err)
		}
	}
	for _, b := range decl.AllBindings() {
		r, err := aspect.NewRule(b.Expression, b.CFlow, b.Advices...)
		if err != nil {
			return nil, wrap(err)
		}
		if err := a.AddRule(r); err != nil {
			return nil, wrap(err)
		}
	}
	for _, b := range decl.IntroductionBindings {
		r, err := aspect.NewIntroductionRule(b.Expression, b.Introductions...)
		if err != nil {
			return nil, wrap(err)
		}
		if err := a.AddIntroductionRule(r); err != nil {
			return nil, wrap(err)
		}
	}
	s.logger.WithField("aspect", decl.Name).
		WithField("pointcuts", len(decl.Pointcuts)).
		WithField("advices", len(decl.Advices)).
		Debug("aspect built")
	return a, nil
}
