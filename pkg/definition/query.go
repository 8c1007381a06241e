package definition

import (
	"github.com/go-park/weaver/pkg/aspect"
	"github.com/go-park/weaver/pkg/metadata"
)

// Chain is the advice applying at one join point, partitioned by timing. Each
// list keeps aspect registration order, then ordinal order.
type Chain struct {
	Around []*aspect.Advice
	Before []*aspect.Advice
	After  []*aspect.Advice
}

// Len returns the number of advice in the chain.
func (c Chain) Len() int {
	return len(c.Around) + len(c.Before) + len(c.After)
}

// Empty reports whether no advice applies.
func (c Chain) Empty() bool {
	return c.Len() == 0
}

// HasPointcutOfKind is the class-level pre-filter: it reports whether some
// pointcut of kind referenced by a rule of a concrete aspect could match a
// member of t. For call pointcuts t is the caller type.
func (s *Set) HasPointcutOfKind(kind aspect.Kind, t *metadata.Type) (bool, error) {
	if !s.loaded.Load() {
		return false, ErrNotLoaded
	}
	for _, a := range s.aspects {
		for _, p := range referenced(a) {
			if p.Kind() == kind && p.MatchType(t) {
				return true, nil
			}
		}
	}
	return false, nil
}

// HasPointcutOfKindAt reports whether a rule using a pointcut of kind applies
// at jp. For control-flow kind it reports whether jp is itself a control-flow
// marker, that is whether a referenced cflow pointcut matches jp directly.
func (s *Set) HasPointcutOfKindAt(kind aspect.Kind, jp metadata.JoinPoint) (bool, error) {
	if !s.loaded.Load() {
		return false, ErrNotLoaded
	}
	for _, a := range s.aspects {
		if kind == aspect.KindCFlow {
			for _, p := range referenced(a) {
				if p.Kind() == aspect.KindCFlow && p.MatchesDirect(jp) {
					return true, nil
				}
			}
			continue
		}
		for _, r := range a.Rules() {
			if !usesKind(a, r.Names(), kind) {
				continue
			}
			ok, err := a.Matches(r, jp)
			if err != nil {
				return false, &AspectError{Aspect: a.Name(), Err: err}
			}
			if ok {
				return true, nil
			}
		}
		for _, r := range a.IntroductionRules() {
			if !usesKind(a, r.Expression().Names(), kind) {
				continue
			}
			ok, err := r.Expression().Evaluate(a.Binder(jp))
			if err != nil {
				return false, &AspectError{Aspect: a.Name(), Err: err}
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}

// AdvicesFor returns the qualified names of the advice applying at jp, in
// aspect registration order, then ordinal order.
func (s *Set) AdvicesFor(jp metadata.JoinPoint) ([]string, error) {
	advices, err := s.advicesFor(jp)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(advices))
	for _, adv := range advices {
		names = append(names, adv.QualifiedName())
	}
	return names, nil
}

// AdviceChainFor is AdvicesFor partitioned by advice timing.
func (s *Set) AdviceChainFor(jp metadata.JoinPoint) (Chain, error) {
	var chain Chain
	advices, err := s.advicesFor(jp)
	if err != nil {
		return chain, err
	}
	for _, adv := range advices {
		switch adv.Type() {
		case aspect.Around:
			chain.Around = append(chain.Around, adv)
		case aspect.Before:
			chain.Before = append(chain.Before, adv)
		case aspect.After:
			chain.After = append(chain.After, adv)
		default:
			panic("definition: unhandled advice type " + adv.Type().String())
		}
	}
	return chain, nil
}

func (s *Set) advicesFor(jp metadata.JoinPoint) ([]*aspect.Advice, error) {
	if !s.loaded.Load() {
		return nil, ErrNotLoaded
	}
	var result []*aspect.Advice
	for _, a := range s.aspects {
		bound := map[string]bool{}
		for _, r := range a.Rules() {
			ok, err := a.Matches(r, jp)
			if err != nil {
				return nil, &AspectError{Aspect: a.Name(), Err: err}
			}
			if !ok {
				continue
			}
			for _, name := range r.Advices() {
				if adv, found := a.Advice(name); found {
					bound[adv.QualifiedName()] = true
				}
			}
		}
		if len(bound) == 0 {
			continue
		}
		for _, adv := range a.AllAdvices() {
			if bound[adv.QualifiedName()] {
				result = append(result, adv)
				delete(bound, adv.QualifiedName())
			}
		}
	}
	return result, nil
}

// IntroductionsFor returns the introductions whose class expression matches
// t, in aspect registration order then binding order, without duplicates.
func (s *Set) IntroductionsFor(t *metadata.Type) ([]*aspect.Introduction, error) {
	if !s.loaded.Load() {
		return nil, ErrNotLoaded
	}
	var (
		result []*aspect.Introduction
		seen   = map[int]bool{}
	)
	for _, a := range s.aspects {
		for _, r := range a.IntroductionRules() {
			ok, err := r.Expression().Evaluate(a.TypeBinder(t))
			if err != nil {
				return nil, &AspectError{Aspect: a.Name(), Err: err}
			}
			if !ok {
				continue
			}
			for _, name := range r.Introductions() {
				idx, found := s.introductionIndex[name]
				if !found || seen[idx] {
					continue
				}
				seen[idx] = true
				result = append(result, s.introductions[idx])
			}
		}
	}
	return result, nil
}

// referenced returns the pointcuts of a that some rule references.
func referenced(a *aspect.Aspect) []*aspect.Pointcut {
	var (
		ps   []*aspect.Pointcut
		seen = map[string]bool{}
	)
	add := func(names []string) {
		for _, name := range names {
			if seen[name] {
				continue
			}
			seen[name] = true
			if p, ok := a.Pointcut(name); ok {
				ps = append(ps, p)
			}
		}
	}
	for _, r := range a.Rules() {
		add(r.Names())
	}
	for _, r := range a.IntroductionRules() {
		add(r.Expression().Names())
	}
	return ps
}

func usesKind(a *aspect.Aspect, names []string, kind aspect.Kind) bool {
	for _, name := range names {
		if p, ok := a.Pointcut(name); ok && p.Kind() == kind {
			return true
		}
	}
	return false
}
