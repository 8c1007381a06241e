package astutils

import (
	"go/ast"

	"github.com/go-park/weaver/pkg/metadata"
)

// Interceptor rewrites the attribute extracted from one annotation of node.
// It returns the attributes to keep; an empty result drops the annotation.
type Interceptor func(anno Annotation, attr metadata.Attribute, node ast.Node) []metadata.Attribute

type (
	options struct {
		interceptors []Interceptor
		custom       bool
	}
	Option     interface{ apply(*options) }
	optionFunc func(*options)
)

func (f optionFunc) apply(o *options) { f(o) }

func WithInterceptors(i ...Interceptor) Option {
	return optionFunc(func(o *options) {
		o.interceptors = append(o.interceptors, i...)
	})
}

// WithCustomAnnotations keeps annotations that are not part of the aspect
// vocabulary as plain attributes. They are dropped otherwise.
func WithCustomAnnotations(keep bool) Option {
	return optionFunc(func(o *options) {
		o.custom = keep
	})
}

func (o *options) intercept(anno Annotation, attr metadata.Attribute, node ast.Node) []metadata.Attribute {
	list := []metadata.Attribute{attr}
	for _, i := range o.interceptors {
		var next []metadata.Attribute
		for _, a := range list {
			next = append(next, i(anno, a, node)...)
		}
		list = next
	}
	return list
}
