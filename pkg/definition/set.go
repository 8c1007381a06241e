// Package definition holds definition sets, the registry they are published
// in and the read-only queries the weaver runs against a loaded set.
//
// The weaver consumes a Set only through HasPointcutOfKind,
// HasPointcutOfKindAt, AdvicesFor, AdviceChainFor and IntroductionsFor.
package definition

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/go-park/weaver/pkg/aspect"
	"github.com/go-park/weaver/pkg/metadata"
	"github.com/go-park/weaver/pkg/pattern"
)

// Set is one definition set. It is built under a lock, then marked loaded;
// from then on it is immutable and queries run without locking.
type Set struct {
	id       uuid.UUID
	scope    string
	compiler *pattern.Compiler
	logger   logrus.FieldLogger

	mu     sync.Mutex
	loaded atomic.Bool

	aspects           []*aspect.Aspect
	aspectIndex       map[string]int
	abstracts         []*aspect.Aspect
	abstractIndex     map[string]int
	introductions     []*aspect.Introduction
	introductionIndex map[string]int
	attributes        []metadata.Attribute
}

type (
	options struct {
		id       uuid.UUID
		scope    string
		compiler *pattern.Compiler
		logger   logrus.FieldLogger
	}
	Option     interface{ apply(*options) }
	optionFunc func(*options)
)

func (f optionFunc) apply(o *options) { f(o) }

func defaultOptions() options {
	return options{
		id:     uuid.New(),
		logger: logrus.StandardLogger(),
	}
}

// WithID fixes the identity of the set. A nil id keeps the generated one.
func WithID(id uuid.UUID) Option {
	return optionFunc(func(o *options) {
		if id != uuid.Nil {
			o.id = id
		}
	})
}

// WithSetScope is the default scope of aspects declaring none.
func WithSetScope(scope string) Option {
	return optionFunc(func(o *options) {
		o.scope = scope
	})
}

func WithSetCompiler(c *pattern.Compiler) Option {
	return optionFunc(func(o *options) {
		if c != nil {
			o.compiler = c
		}
	})
}

// WithLogger sets the logger used while building. The default is the logrus
// standard logger.
func WithLogger(l logrus.FieldLogger) Option {
	return optionFunc(func(o *options) {
		if l != nil {
			o.logger = l
		}
	})
}

func NewSet(opts ...Option) *Set {
	o := defaultOptions()
	for _, opt := range opts {
		opt.apply(&o)
	}
	if o.compiler == nil {
		o.compiler = pattern.NewCompiler(pattern.DefaultCacheSize)
	}
	return &Set{
		id:                o.id,
		scope:             o.scope,
		compiler:          o.compiler,
		logger:            o.logger.WithField("definitions", o.id.String()),
		aspectIndex:       map[string]int{},
		abstractIndex:     map[string]int{},
		introductionIndex: map[string]int{},
	}
}

func (s *Set) ID() uuid.UUID               { return s.id }
func (s *Set) Scope() string               { return s.scope }
func (s *Set) Compiler() *pattern.Compiler { return s.compiler }
func (s *Set) Loaded() bool                { return s.loaded.Load() }

// AddAspect registers a. Abstract aspects become templates and are never
// woven. An aspect declaring extends is merged with its template, which must
// have been added before. The returned index is the registration position of
// a concrete aspect, or of the template among templates.
func (s *Set) AddAspect(a *aspect.Aspect) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded.Load() {
		return -1, ErrLoaded
	}

	if a.Abstract() {
		if err := a.CheckConsistency(); err != nil {
			return -1, &AspectError{Aspect: a.Name(), Err: err}
		}
		idx := len(s.abstracts)
		s.abstracts = append(s.abstracts, a)
		if _, ok := s.abstractIndex[a.Name()]; !ok {
			s.abstractIndex[a.Name()] = idx
		}
		return idx, nil
	}

	if a.Extends() != "" {
		merged, err := s.resolveExtends(a)
		if err != nil {
			return -1, err
		}
		a = merged
	}
	if err := a.CheckConsistency(); err != nil {
		return -1, &AspectError{Aspect: a.Name(), Err: err}
	}
	idx := len(s.aspects)
	s.aspects = append(s.aspects, a)
	if _, ok := s.aspectIndex[a.Name()]; !ok {
		s.aspectIndex[a.Name()] = idx
	}
	s.logger.WithField("aspect", a.Name()).WithField("index", idx).Debug("aspect added")
	return idx, nil
}

// ResolveExtends merges child with the abstract aspect it extends. Neither is
// modified.
func (s *Set) ResolveExtends(child *aspect.Aspect) (*aspect.Aspect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveExtends(child)
}

func (s *Set) resolveExtends(child *aspect.Aspect) (*aspect.Aspect, error) {
	var template *aspect.Aspect
	if idx, ok := s.abstractIndex[child.Extends()]; ok {
		template = s.abstracts[idx]
	}
	merged, err := aspect.Merge(template, child)
	if err != nil {
		return nil, &AspectError{Aspect: child.Name(), Err: err}
	}
	return merged, nil
}

func (s *Set) AddIntroduction(i *aspect.Introduction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded.Load() {
		return -1, ErrLoaded
	}
	idx := len(s.introductions)
	s.introductions = append(s.introductions, i)
	if _, ok := s.introductionIndex[i.Name()]; !ok {
		s.introductionIndex[i.Name()] = idx
	}
	return idx, nil
}

func (s *Set) AddAttribute(attr metadata.Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded.Load() {
		return ErrLoaded
	}
	s.attributes = append(s.attributes, attr)
	return nil
}

// MarkLoaded freezes every aspect and opens the set for queries.
func (s *Set) MarkLoaded() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded.Load() {
		return ErrLoaded
	}
	for _, a := range s.abstracts {
		a.Freeze()
	}
	for _, a := range s.aspects {
		a.Freeze()
	}
	s.loaded.Store(true)
	s.logger.WithField("aspects", len(s.aspects)).
		WithField("introductions", len(s.introductions)).
		Debug("definitions loaded")
	return nil
}

// The accessors below inspect the definitions themselves, for the validator,
// the loader and tooling. Weaving depends only on the queries of query.go.
// Every slice returned is a copy.

// Aspects returns the concrete aspects in registration order, duplicates
// included.
func (s *Set) Aspects() []*aspect.Aspect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*aspect.Aspect(nil), s.aspects...)
}

// AbstractAspects returns the templates in registration order.
func (s *Set) AbstractAspects() []*aspect.Aspect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*aspect.Aspect(nil), s.abstracts...)
}

// Aspect returns the first concrete aspect registered under name.
func (s *Set) Aspect(name string) (*aspect.Aspect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.aspectIndex[name]
	if !ok {
		return nil, false
	}
	return s.aspects[idx], true
}

func (s *Set) AspectIndex(name string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.aspectIndex[name]
	return idx, ok
}

func (s *Set) Introductions() []*aspect.Introduction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*aspect.Introduction(nil), s.introductions...)
}

func (s *Set) Introduction(name string) (*aspect.Introduction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.introductionIndex[name]
	if !ok {
		return nil, false
	}
	return s.introductions[idx], true
}

func (s *Set) IntroductionIndex(name string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.introductionIndex[name]
	return idx, ok
}

func (s *Set) Attributes() []metadata.Attribute {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]metadata.Attribute(nil), s.attributes...)
}

// AdviceNames lists the qualified names of every advice of the concrete
// aspects, sorted.
func (s *Set) AdviceNames() []string {
	var names []string
	for _, a := range s.Aspects() {
		for _, adv := range a.AllAdvices() {
			names = append(names, adv.QualifiedName())
		}
	}
	sort.Strings(names)
	return names
}

func (s *Set) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("definitions %s (%d aspects, %d templates, %d introductions, loaded=%t)",
		s.id, len(s.aspects), len(s.abstracts), len(s.introductions), s.loaded.Load())
}
