package astutils

import "github.com/go-park/weaver/pkg/source"

type Annotation string

func (a Annotation) String() string { return string(a) }

// Name is the annotation without its leading "@".
func (a Annotation) Name() string { return string(a[1:]) }

const (
	// CommentAspect on a struct type declares an aspect
	CommentAspect = Annotation("@" + source.TagAspect)
	// CommentPointcut on a struct field declares a pointcut named after the field, kind given by the kind key
	CommentPointcut = Annotation("@" + source.TagPointcut)
	// CommentAdviceBefore on a method of an aspect declares a before advice bound to the expression
	CommentAdviceBefore = Annotation("@" + source.TagBefore)
	// CommentAdviceAfter on a method of an aspect declares an after advice bound to the expression
	CommentAdviceAfter = Annotation("@" + source.TagAfter)
	// CommentAdviceAround on a method of an aspect declares an around advice bound to the expression
	CommentAdviceAround = Annotation("@" + source.TagAround)
	// CommentIntroduction on a type declares an introduction implemented by it
	CommentIntroduction = Annotation("@" + source.TagIntroduction)
	// CommentIntroduce on an aspect binds introductions to a class expression
	CommentIntroduce = Annotation("@" + source.TagIntroduce)

	CommentExecution = Annotation("@Execution")
	CommentGet       = Annotation("@Get")
	CommentSet       = Annotation("@Set")
	CommentThrows    = Annotation("@Throws")
	CommentCall      = Annotation("@Call")
	CommentCFlow     = Annotation("@CFlow")
	CommentClass     = Annotation("@Class")
	CommentAttribute = Annotation("@Attribute")
)

var systemAnnotation = map[Annotation]struct{}{
	CommentAspect:       {},
	CommentPointcut:     {},
	CommentAdviceBefore: {},
	CommentAdviceAfter:  {},
	CommentAdviceAround: {},
	CommentIntroduction: {},
	CommentIntroduce:    {},
	CommentExecution:    {},
	CommentGet:          {},
	CommentSet:          {},
	CommentThrows:       {},
	CommentCall:         {},
	CommentCFlow:        {},
	CommentClass:        {},
	CommentAttribute:    {},
}

func IsSystemAnnotation(anno Annotation) bool {
	_, ok := systemAnnotation[anno]
	return ok
}
