// Package validator checks a definition set for problems that do not prevent
// building it: dangling references, duplicate names and declarations whose
// implementation cannot be resolved. Every problem is reported, not just the
// first.
package validator

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/sirupsen/logrus"

	"github.com/go-park/weaver/pkg/aspect"
	"github.com/go-park/weaver/pkg/definition"
	"github.com/go-park/weaver/pkg/metadata"
	"github.com/go-park/weaver/pkg/tools/collections"
)

type State int

const (
	NotRun State = iota
	Running
	Done
)

func (s State) String() string {
	switch s {
	case NotRun:
		return "not run"
	case Running:
		return "running"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrAlreadyRun is returned when a validator is run a second time.
var ErrAlreadyRun = errors.New("validator already run")

// Resolver tells whether an implementation identifier (aspect class, advice
// callable, introduction implementation) can be loaded.
type Resolver interface {
	Resolve(identifier string) error
}

type ResolverFunc func(identifier string) error

func (f ResolverFunc) Resolve(identifier string) error { return f(identifier) }

type (
	options struct {
		resolver Resolver
		logger   logrus.FieldLogger
	}
	Option     interface{ apply(*options) }
	optionFunc func(*options)
)

func (f optionFunc) apply(o *options) { f(o) }

// WithResolver enables the implementation check.
func WithResolver(r Resolver) Option {
	return optionFunc(func(o *options) {
		o.resolver = r
	})
}

func WithLogger(l logrus.FieldLogger) Option {
	return optionFunc(func(o *options) {
		if l != nil {
			o.logger = l
		}
	})
}

// Validator runs once over one set and never modifies it.
type Validator struct {
	options
	set    *definition.Set
	state  State
	report []string
}

func New(set *definition.Set, opts ...Option) *Validator {
	v := &Validator{
		options: options{logger: logrus.StandardLogger()},
		set:     set,
	}
	for _, opt := range opts {
		opt.apply(&v.options)
	}
	return v
}

func (v *Validator) State() State { return v.state }

// Validate runs every check and returns the problems found. An empty report
// means the set is usable.
func (v *Validator) Validate() ([]string, error) {
	if v.state != NotRun {
		return nil, ErrAlreadyRun
	}
	v.state = Running
	v.checkUndefinedReferences()
	v.checkDuplicateNames()
	v.checkDuplicateAttributes()
	v.checkResolvableImplementations()
	v.state = Done

	l := v.logger.WithField("definitions", v.set.ID().String())
	for _, msg := range v.report {
		l.Warn(msg)
	}
	l.WithField("problems", len(v.report)).Debug("validation done")
	return v.Report(), nil
}

// Report returns the problems found so far.
func (v *Validator) Report() []string {
	return append([]string(nil), v.report...)
}

func (v *Validator) addf(format string, args ...any) {
	v.report = append(v.report, fmt.Sprintf(format, args...))
}

func (v *Validator) checkUndefinedReferences() {
	introductions := introductionNames(v.set)
	for _, a := range v.set.Aspects() {
		pointcuts := pointcutNames(a)
		advices := adviceNames(a)
		for _, r := range a.Rules() {
			for _, name := range r.Names() {
				if _, ok := a.Pointcut(name); !ok {
					v.addf("aspect %q: rule %q references undefined pointcut %q%s",
						a.Name(), r.String(), name, suggest(name, pointcuts))
				}
			}
			for _, name := range r.Advices() {
				if _, ok := a.Advice(name); !ok {
					v.addf("aspect %q: rule %q references undefined advice %q%s",
						a.Name(), r.String(), name, suggest(name, advices))
				}
			}
		}
		for _, r := range a.IntroductionRules() {
			for _, name := range r.Expression().Names() {
				if _, ok := a.Pointcut(name); !ok {
					v.addf("aspect %q: introduction rule %q references undefined pointcut %q%s",
						a.Name(), r.String(), name, suggest(name, pointcuts))
				}
			}
			for _, name := range r.Introductions() {
				if _, ok := v.set.Introduction(name); !ok {
					v.addf("aspect %q: introduction rule %q references undefined introduction %q%s",
						a.Name(), r.String(), name, suggest(name, introductions))
				}
			}
		}
	}
}

func (v *Validator) checkDuplicateNames() {
	var aspects []string
	for _, a := range v.set.AbstractAspects() {
		aspects = append(aspects, a.Name())
	}
	for _, a := range v.set.Aspects() {
		aspects = append(aspects, a.Name())
	}
	for _, name := range collections.Duplicates(aspects) {
		v.addf("duplicate aspect name %q", name)
	}

	var advices []string
	for _, a := range append(v.set.AbstractAspects(), v.set.Aspects()...) {
		var pointcuts []string
		for _, p := range a.Declared() {
			pointcuts = append(pointcuts, p.Name())
		}
		for _, name := range collections.Duplicates(pointcuts) {
			v.addf("aspect %q: duplicate pointcut name %q", a.Name(), name)
		}
		if a.Abstract() {
			continue
		}
		for _, adv := range a.AllAdvices() {
			advices = append(advices, adv.QualifiedName())
		}
	}
	for _, name := range collections.Duplicates(advices) {
		v.addf("duplicate advice name %q", name)
	}

	for _, name := range collections.Duplicates(introductionNames(v.set)) {
		v.addf("duplicate introduction name %q", name)
	}
}

func (v *Validator) checkDuplicateAttributes() {
	seen := map[metadata.Attribute]bool{}
	for _, attr := range v.set.Attributes() {
		key := metadata.Attribute{Target: attr.Target, Name: attr.Name}
		if seen[key] {
			v.addf("duplicate attribute @%s on %q", attr.Name, attr.Target)
			continue
		}
		seen[key] = true
	}
}

func (v *Validator) checkResolvableImplementations() {
	if v.resolver == nil {
		return
	}
	resolve := func(what, owner, id string) {
		if id == "" {
			return
		}
		if err := v.resolver.Resolve(id); err != nil {
			v.addf("%s %q: cannot resolve implementation %q: %v", what, owner, id, err)
		}
	}
	for _, a := range v.set.Aspects() {
		resolve("aspect", a.Name(), a.Class())
		for _, adv := range a.AllAdvices() {
			resolve("advice", adv.QualifiedName(), adv.Callable())
		}
	}
	for _, i := range v.set.Introductions() {
		resolve("introduction", i.Name(), i.Implementation())
	}
}

func pointcutNames(a *aspect.Aspect) []string {
	var names []string
	for _, p := range a.Pointcuts() {
		names = append(names, p.Name())
	}
	return names
}

func adviceNames(a *aspect.Aspect) []string {
	var names []string
	for _, adv := range a.AllAdvices() {
		names = append(names, adv.Name())
	}
	return names
}

func introductionNames(s *definition.Set) []string {
	var names []string
	for _, i := range s.Introductions() {
		names = append(names, i.Name())
	}
	return names
}

// suggest formats a "did you mean" hint for name, or returns "".
func suggest(name string, candidates []string) string {
	if len(candidates) == 0 || collections.Contains(candidates, name) {
		return ""
	}
	ranks := fuzzy.RankFindFold(name, candidates)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return fmt.Sprintf(" (did you mean %q?)", ranks[0].Target)
	}
	best, bestDistance := "", 3
	for _, c := range candidates {
		if d := fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(c)); d < bestDistance {
			best, bestDistance = c, d
		}
	}
	if best == "" {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", best)
}
