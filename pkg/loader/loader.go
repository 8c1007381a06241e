// Package loader assembles definition sets from definition files and from
// annotated Go packages, validates them and publishes them in a registry.
package loader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/tools/go/packages"

	"github.com/go-park/weaver/pkg/astutils"
	"github.com/go-park/weaver/pkg/definition"
	"github.com/go-park/weaver/pkg/metadata"
	"github.com/go-park/weaver/pkg/pattern"
	"github.com/go-park/weaver/pkg/source"
	"github.com/go-park/weaver/pkg/validator"
)

// InvalidError is returned by strict loads whose set has validation problems.
type InvalidError struct {
	Problems []string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("definitions invalid: %d problem(s): %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

// Loader holds the state of one load. Steps are chained and become no-ops
// after the first failure, which Err reports.
type Loader struct {
	options
	pkgList   []*astutils.Package
	attrs     []metadata.Attribute
	provider  *metadata.StaticProvider
	fileDefs  []*source.Definitions
	annotated *source.Definitions
	set       *definition.Set
	report    []string
	err       error
}

func NewLoader(opts ...Option) *Loader {
	l := &Loader{options: DefaultOptions()}
	for _, opt := range opts {
		opt.apply(&l.options)
	}
	if l.compiler == nil {
		l.compiler = pattern.NewCompiler(pattern.DefaultCacheSize)
	}
	return l
}

// LoadFiles decodes the definition files.
func (l *Loader) LoadFiles() *Loader {
	if l.err != nil {
		return l
	}
	for _, f := range l.files {
		defs, err := source.LoadFile(f)
		if err != nil {
			l.err = err
			return l
		}
		l.logger.WithField("file", f).
			WithField("aspects", len(defs.Aspects)).
			Debug("definitions loaded")
		l.fileDefs = append(l.fileDefs, defs)
	}
	return l
}

// ParsePackage loads the packages matched by the patterns and tags, with the
// imported packages named by deps.
func (l *Loader) ParsePackage() *Loader {
	if l.err != nil || len(l.patterns) == 0 {
		return l
	}
	cfg := &packages.Config{
		Mode: packages.NeedName |
			packages.NeedTypes |
			packages.NeedTypesInfo |
			packages.NeedSyntax |
			packages.NeedDeps |
			packages.NeedImports |
			packages.NeedFiles |
			packages.NeedCompiledGoFiles,
		Tests:      false,
		BuildFlags: []string{fmt.Sprintf("-tags=%s", strings.Join(l.tags, ","))},
		Logf:       l.logger.Debugf,
	}
	patterns := l.patterns
	if l.recursive {
		patterns = getAllPathPatterns(patterns, l.logger)
	}
	pkgList, err := packages.Load(cfg, patterns...)
	if err != nil {
		l.err = fmt.Errorf("load packages %v: %w", patterns, err)
		return l
	}
	var depPkgList []*packages.Package
	for _, dep := range l.deps {
		for _, pkg := range pkgList {
			for k, v := range pkg.Imports {
				if strings.HasPrefix(k, dep) {
					depPkgList = append(depPkgList, v)
				}
			}
		}
	}
	l.logger.WithField("patterns", patterns).
		WithField("packages", len(pkgList)).
		WithField("deps", len(depPkgList)).
		Debug("packages loaded")
	l.err = l.addPackage(append(pkgList, depPkgList...)...)
	return l
}

// addPackage adds type checked packages. Directories without Go files are
// skipped; any other package error fails the load.
func (l *Loader) addPackage(list ...*packages.Package) error {
	var errs []error
	seen := map[string]bool{}
	for _, pkg := range list {
		if seen[pkg.PkgPath] {
			continue
		}
		seen[pkg.PkgPath] = true
		if len(pkg.Syntax) == 0 {
			l.logger.WithField("package", pkg.ID).Debug("no Go files, skipped")
			continue
		}
		for _, e := range pkg.Errors {
			errs = append(errs, e)
		}
		l.pkgList = append(l.pkgList, astutils.NewPackage(pkg, astutils.WithCustomAnnotations(l.custom)))
	}
	return errors.Join(errs...)
}

// Inspect extracts the annotation attributes of the loaded packages and turns
// them into definitions.
func (l *Loader) Inspect() *Loader {
	if l.err != nil || len(l.pkgList) == 0 {
		return l
	}
	for _, pkg := range l.pkgList {
		l.attrs = append(l.attrs, pkg.Inspect()...)
	}
	l.provider = astutils.Provide(l.pkgList...)
	l.annotated, l.err = source.FromAttributes(l.attrs)
	l.logger.WithField("attributes", len(l.attrs)).Debug("packages inspected")
	return l
}

// Build builds, validates and publishes the set of the merged definitions.
func (l *Loader) Build() *Loader {
	if l.err != nil {
		return l
	}
	defs, err := l.definitions(l.fileDefs...)
	if err != nil {
		l.err = err
		return l
	}
	l.set, l.report, l.err = l.build(defs)
	return l
}

func (l *Loader) build(defs *source.Definitions) (*definition.Set, []string, error) {
	opts := []definition.Option{
		definition.WithSetCompiler(l.compiler),
		definition.WithLogger(l.logger),
	}
	if defs.ID == "" {
		opts = append(opts, definition.WithID(l.id))
	}
	if defs.Scope == "" && l.scope != "" {
		opts = append(opts, definition.WithSetScope(l.scope))
	}
	set, err := definition.Build(defs, opts...)
	if err != nil {
		return nil, nil, err
	}

	resolver := l.resolver
	if resolver == nil && l.provider != nil {
		resolver = ProviderResolver(l.provider)
	}
	vopts := []validator.Option{validator.WithLogger(l.logger)}
	if resolver != nil {
		vopts = append(vopts, validator.WithResolver(resolver))
	}
	report, err := validator.New(set, vopts...).Validate()
	if err != nil {
		return nil, nil, err
	}
	if l.strict && len(report) > 0 {
		return nil, report, &InvalidError{Problems: report}
	}

	if l.registry != nil {
		old, err := l.registry.Replace(set)
		if err != nil {
			return nil, report, err
		}
		l.logger.WithField("definitions", set.ID().String()).
			WithField("replaced", old != nil).
			Info("definitions published")
	}
	return set, report, nil
}

// definitions merges the file definitions, in order, with the annotated ones.
// Declared identities and scopes must agree.
func (l *Loader) definitions(files ...*source.Definitions) (*source.Definitions, error) {
	merged := &source.Definitions{Version: source.CurrentVersion}
	all := files
	if l.annotated != nil {
		all = append(append([]*source.Definitions(nil), files...), l.annotated)
	}
	for _, d := range all {
		if d.ID != "" {
			if merged.ID != "" && merged.ID != d.ID {
				return nil, fmt.Errorf("conflicting definitions ids %q and %q", merged.ID, d.ID)
			}
			merged.ID = d.ID
		}
		if d.Scope != "" {
			if merged.Scope != "" && merged.Scope != d.Scope {
				return nil, fmt.Errorf("conflicting definitions scopes %q and %q", merged.Scope, d.Scope)
			}
			merged.Scope = d.Scope
		}
		merged.Introductions = append(merged.Introductions, d.Introductions...)
		merged.Aspects = append(merged.Aspects, d.Aspects...)
		merged.Attributes = append(merged.Attributes, d.Attributes...)
	}
	return merged, nil
}

func (l *Loader) Err() error                         { return l.err }
func (l *Loader) Set() *definition.Set               { return l.set }
func (l *Loader) Report() []string                   { return append([]string(nil), l.report...) }
func (l *Loader) Attributes() []metadata.Attribute   { return l.attrs }
func (l *Loader) Provider() *metadata.StaticProvider { return l.provider }
func (l *Loader) Packages() []*astutils.Package      { return l.pkgList }

// Definitions returns the merged definitions the set is built from.
func (l *Loader) Definitions() (*source.Definitions, error) {
	return l.definitions(l.fileDefs...)
}

// Watch rebuilds the set every time the definition file at path changes, on
// top of the other loaded files and the annotations already inspected. A path
// that was not loaded is added after the loaded files. fn receives every
// outcome; a failed reload leaves the published set in place. Watch blocks
// until ctx is done.
func (l *Loader) Watch(ctx context.Context, path string, fn func(*definition.Set, []string, error)) error {
	return source.Watch(ctx, path, func(defs *source.Definitions, err error) {
		var (
			set    *definition.Set
			report []string
		)
		if err == nil {
			defs, err = l.definitions(l.withFile(path, defs)...)
		}
		if err == nil {
			set, report, err = l.build(defs)
		}
		if err != nil {
			l.logger.WithField("file", path).WithError(err).Error("reload failed")
		} else {
			l.logger.WithField("file", path).WithField("problems", len(report)).Info("definitions reloaded")
		}
		if fn != nil {
			fn(set, report, err)
		}
	})
}

// withFile returns the loaded file definitions with those of path replaced by
// defs.
func (l *Loader) withFile(path string, defs *source.Definitions) []*source.Definitions {
	files := append([]*source.Definitions(nil), l.fileDefs...)
	for i, f := range l.files {
		if i < len(files) && sameFile(f, path) {
			files[i] = defs
			return files
		}
	}
	return append(files, defs)
}

// Load runs the whole pipeline.
func Load(opts ...Option) (*Loader, error) {
	l := NewLoader(opts...).LoadFiles().ParsePackage().Inspect().Build()
	return l, l.err
}
