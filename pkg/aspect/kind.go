package aspect

import (
	"fmt"
	"strings"

	"github.com/go-park/weaver/pkg/metadata"
	"github.com/go-park/weaver/pkg/pattern"
)

// Kind is the closed set of pointcut kinds. Switches over Kind list every
// constant and panic in the default branch.
type Kind int

const (
	KindExecution Kind = iota
	KindGet
	KindSet
	KindThrows
	KindCall
	KindCFlow
	KindClass
	KindAttribute
)

// Kinds lists every pointcut kind in declaration order.
var Kinds = []Kind{KindExecution, KindGet, KindSet, KindThrows, KindCall, KindCFlow, KindClass, KindAttribute}

func (k Kind) String() string {
	switch k {
	case KindExecution:
		return "execution"
	case KindGet:
		return "get"
	case KindSet:
		return "set"
	case KindThrows:
		return "throws"
	case KindCall:
		return "call"
	case KindCFlow:
		return "cflow"
	case KindClass:
		return "class"
	case KindAttribute:
		return "attribute"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var kindAliases = map[string]Kind{
	"execution":  KindExecution,
	"method":     KindExecution,
	"get":        KindGet,
	"getfield":   KindGet,
	"set":        KindSet,
	"setfield":   KindSet,
	"throws":     KindThrows,
	"handler":    KindThrows,
	"call":       KindCall,
	"callerside": KindCall,
	"cflow":      KindCFlow,
	"class":      KindClass,
	"attribute":  KindAttribute,
}

// ParseKind parses a kind name. Matching is case-insensitive and accepts the
// older names (method, getField, setField, callerSide, handler).
func ParseKind(s string) (Kind, error) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("unknown pointcut kind %q", s)
	}
	return k, nil
}

// Category is the pattern category compiled for pointcuts of this kind.
func (k Kind) Category() pattern.Category {
	switch k {
	case KindExecution, KindCFlow:
		return pattern.CategoryMethod
	case KindGet, KindSet:
		return pattern.CategoryField
	case KindThrows:
		return pattern.CategoryThrows
	case KindCall:
		return pattern.CategoryCall
	case KindClass:
		return pattern.CategoryClass
	case KindAttribute:
		return pattern.CategoryAttribute
	default:
		panic(fmt.Sprintf("aspect: unhandled pointcut kind %d", int(k)))
	}
}

// MemberLevel reports whether pointcuts of this kind need member metadata.
func (k Kind) MemberLevel() bool {
	switch k {
	case KindExecution, KindGet, KindSet, KindThrows, KindCall, KindCFlow, KindAttribute:
		return true
	case KindClass:
		return false
	default:
		panic(fmt.Sprintf("aspect: unhandled pointcut kind %d", int(k)))
	}
}

// Accepts reports whether a pointcut of this kind may match a join point of
// kind jk.
func (k Kind) Accepts(jk metadata.JoinPointKind) bool {
	if jk == metadata.JoinPointAny {
		return true
	}
	switch k {
	case KindExecution:
		return jk == metadata.JoinPointExecution
	case KindGet:
		return jk == metadata.JoinPointFieldGet
	case KindSet:
		return jk == metadata.JoinPointFieldSet
	case KindThrows:
		return jk == metadata.JoinPointExecution || jk == metadata.JoinPointHandler
	case KindCall:
		return jk == metadata.JoinPointCall
	case KindCFlow, KindClass, KindAttribute:
		return true
	default:
		panic(fmt.Sprintf("aspect: unhandled pointcut kind %d", int(k)))
	}
}

// DeploymentModel is the instance-sharing policy of an aspect or introduction.
type DeploymentModel int

const (
	PerJVM DeploymentModel = iota
	PerClass
	PerInstance
	PerThread
)

func (d DeploymentModel) String() string {
	switch d {
	case PerJVM:
		return "perJVM"
	case PerClass:
		return "perClass"
	case PerInstance:
		return "perInstance"
	case PerThread:
		return "perThread"
	default:
		return fmt.Sprintf("deployment(%d)", int(d))
	}
}

// ParseDeploymentModel parses a deployment model name; the empty string is PerJVM.
func ParseDeploymentModel(s string) (DeploymentModel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "perjvm", "singleton":
		return PerJVM, nil
	case "perclass", "pertype":
		return PerClass, nil
	case "perinstance":
		return PerInstance, nil
	case "perthread":
		return PerThread, nil
	default:
		return 0, fmt.Errorf("unknown deployment model %q", s)
	}
}

// AdviceType is the timing class of an advice.
type AdviceType int

const (
	Around AdviceType = iota
	Before
	After
)

var AdviceTypes = []AdviceType{Around, Before, After}

func (t AdviceType) String() string {
	switch t {
	case Around:
		return "around"
	case Before:
		return "before"
	case After:
		return "after"
	default:
		return fmt.Sprintf("advice(%d)", int(t))
	}
}

func ParseAdviceType(s string) (AdviceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "around":
		return Around, nil
	case "before":
		return Before, nil
	case "after":
		return After, nil
	default:
		return 0, fmt.Errorf("unknown advice type %q", s)
	}
}
