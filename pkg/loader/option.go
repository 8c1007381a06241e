package loader

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/go-park/weaver/pkg/definition"
	"github.com/go-park/weaver/pkg/pattern"
	"github.com/go-park/weaver/pkg/validator"
)

type (
	options struct {
		patterns  []string
		tags      []string
		recursive bool
		deps      []string
		files     []string
		id        uuid.UUID
		scope     string
		strict    bool
		custom    bool
		logger    logrus.FieldLogger
		registry  *definition.Registry
		resolver  validator.Resolver
		compiler  *pattern.Compiler
	}
	Option     interface{ apply(*options) }
	optionFunc func(g *options)
)

func (f optionFunc) apply(o *options) {
	f(o)
}

func DefaultOptions() options {
	return options{
		patterns:  []string{},
		tags:      []string{},
		deps:      []string{},
		files:     []string{},
		recursive: true,
		id:        uuid.New(),
		logger:    logrus.StandardLogger(),
	}
}

// WithPatterns sets the package patterns scanned for annotations. Nothing is
// scanned without patterns.
func WithPatterns(patterns ...string) Option {
	return optionFunc(
		func(o *options) {
			patterns = filterEmptyStr(patterns...)
			if len(patterns) > 0 {
				o.patterns = patterns
			}
		})
}

func WithTags(tags ...string) Option {
	return optionFunc(
		func(o *options) {
			tags = filterEmptyStr(tags...)
			if len(tags) > 0 {
				o.tags = tags
			}
		})
}

func WithRecursive(recursive bool) Option {
	return optionFunc(
		func(o *options) {
			o.recursive = recursive
		})
}

// WithDeps adds the imported packages whose path starts with one of deps to
// the scanned packages.
func WithDeps(deps ...string) Option {
	return optionFunc(
		func(o *options) {
			deps = filterEmptyStr(deps...)
			if len(deps) > 0 {
				o.deps = deps
			}
		})
}

// WithFiles adds definition files. They are merged before the scanned
// annotations.
func WithFiles(files ...string) Option {
	return optionFunc(
		func(o *options) {
			o.files = append(o.files, filterEmptyStr(files...)...)
		})
}

// WithID sets the identity used when no definition file declares one. It is
// kept across reloads.
func WithID(id uuid.UUID) Option {
	return optionFunc(
		func(o *options) {
			if id != uuid.Nil {
				o.id = id
			}
		})
}

func WithScope(scope string) Option {
	return optionFunc(
		func(o *options) {
			o.scope = scope
		})
}

// WithStrict turns validation problems into an *InvalidError.
func WithStrict(strict bool) Option {
	return optionFunc(
		func(o *options) {
			o.strict = strict
		})
}

// WithCustomAnnotations keeps unknown annotations as custom attributes.
func WithCustomAnnotations(keep bool) Option {
	return optionFunc(
		func(o *options) {
			o.custom = keep
		})
}

func WithLogger(l logrus.FieldLogger) Option {
	return optionFunc(
		func(o *options) {
			if l != nil {
				o.logger = l
			}
		})
}

// WithRegistry publishes every built set in r.
func WithRegistry(r *definition.Registry) Option {
	return optionFunc(
		func(o *options) {
			o.registry = r
		})
}

// WithResolver overrides the implementation check. By default implementations
// are resolved against the scanned packages, and not checked when nothing was
// scanned.
func WithResolver(r validator.Resolver) Option {
	return optionFunc(
		func(o *options) {
			o.resolver = r
		})
}

func WithCompiler(c *pattern.Compiler) Option {
	return optionFunc(
		func(o *options) {
			o.compiler = c
		})
}
