package aspect

import (
	"github.com/go-park/weaver/pkg/pattern"
)

type (
	Option[T any] func(*T)
)

func WithPointcutScope(scope string) Option[Pointcut] {
	return func(o *Pointcut) {
		o.scope = scope
	}
}

func WithNonReentrant(nonReentrant bool) Option[Pointcut] {
	return func(o *Pointcut) {
		o.nonReentrant = nonReentrant
	}
}

func WithPointcutCompiler(c *pattern.Compiler) Option[Pointcut] {
	return func(o *Pointcut) {
		o.compiler = c
	}
}

func WithAdviceName(name string) Option[Advice] {
	return func(o *Advice) {
		o.name = name
	}
}

func WithAdviceAspect(aspect string) Option[Advice] {
	return func(o *Advice) {
		o.aspect = aspect
	}
}

func WithAdviceCallable(callable string) Option[Advice] {
	return func(o *Advice) {
		o.callable = callable
	}
}

func WithAdviceOrdinal(ordinal int) Option[Advice] {
	return func(o *Advice) {
		o.ordinal = ordinal
	}
}

func WithAdviceType(t AdviceType) Option[Advice] {
	return func(o *Advice) {
		o.typ = t
	}
}

func WithIntroductionName(name string) Option[Introduction] {
	return func(o *Introduction) {
		o.name = name
	}
}

func WithInterfaces(interfaces ...string) Option[Introduction] {
	return func(o *Introduction) {
		o.interfaces = append(o.interfaces, interfaces...)
	}
}

func WithImplementation(impl string) Option[Introduction] {
	return func(o *Introduction) {
		o.implementation = impl
	}
}

func WithIntroductionDeployment(d DeploymentModel) Option[Introduction] {
	return func(o *Introduction) {
		o.deployment = d
	}
}

func WithIntroducedMethods(methods ...string) Option[Introduction] {
	return func(o *Introduction) {
		o.methods = append(o.methods, methods...)
	}
}

func WithAspectClass(class string) Option[Aspect] {
	return func(o *Aspect) {
		o.class = class
	}
}

func WithDeployment(d DeploymentModel) Option[Aspect] {
	return func(o *Aspect) {
		o.deployment = d
	}
}

func WithAbstract(abstract bool) Option[Aspect] {
	return func(o *Aspect) {
		o.abstract = abstract
	}
}

func WithExtends(name string) Option[Aspect] {
	return func(o *Aspect) {
		o.extends = name
	}
}

func WithScope(scope string) Option[Aspect] {
	return func(o *Aspect) {
		o.scope = scope
	}
}

func WithParam(key, value string) Option[Aspect] {
	return func(o *Aspect) {
		if o.params == nil {
			o.params = map[string]string{}
		}
		o.params[key] = value
	}
}

func WithCompiler(c *pattern.Compiler) Option[Aspect] {
	return func(o *Aspect) {
		o.compiler = c
	}
}
