package aspect

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-park/weaver/pkg/expression"
	"github.com/go-park/weaver/pkg/metadata"
	"github.com/go-park/weaver/pkg/pattern"
)

func execution(typ, name string, params ...string) metadata.JoinPoint {
	return metadata.JoinPoint{
		Kind: metadata.JoinPointExecution,
		Type: &metadata.Type{Name: typ},
		Member: &metadata.Member{
			Name:       name,
			Kind:       metadata.MemberMethod,
			Declaring:  typ,
			ReturnType: "void",
			Params:     params,
		},
	}
}

func mustPointcut(t *testing.T, a *Aspect, name string, kind Kind, text string) {
	t.Helper()
	p, err := a.NewPointcut(name, kind, text)
	require.NoError(t, err)
	require.NoError(t, a.AddPointcut(p))
}

func mustRule(t *testing.T, a *Aspect, expr, cflow string, advices ...string) {
	t.Helper()
	r, err := NewRule(expr, cflow, advices...)
	require.NoError(t, err)
	require.NoError(t, a.AddRule(r))
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"execution", KindExecution},
		{"method", KindExecution},
		{"getField", KindGet},
		{"SET", KindSet},
		{"callerSide", KindCall},
		{"cflow", KindCFlow},
		{"class", KindClass},
		{"attribute", KindAttribute},
		{"throws", KindThrows},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	_, err := ParseKind("around")
	assert.Error(t, err)
}

func TestKind_Exhaustive(t *testing.T) {
	for _, k := range Kinds {
		assert.NotPanics(t, func() {
			_ = k.Category()
			_ = k.MemberLevel()
			_ = k.Accepts(metadata.JoinPointCall)
		}, k.String())
	}
	assert.Panics(t, func() { _ = Kind(99).Category() })
}

func TestPointcut_InvalidPattern(t *testing.T) {
	_, err := NewPointcut("broken", KindExecution, "* Foo.bar(")
	require.Error(t, err)
	var syntaxErr *pattern.PatternSyntaxError
	assert.True(t, errors.As(err, &syntaxErr))
	assert.Contains(t, err.Error(), "broken")
}

func TestPointcut_KindSelectsJoinPoint(t *testing.T) {
	get, err := NewPointcut("reads", KindGet, "int Foo.count")
	require.NoError(t, err)
	set, err := NewPointcut("writes", KindSet, "int Foo.count")
	require.NoError(t, err)

	jp := metadata.JoinPoint{
		Kind:   metadata.JoinPointFieldGet,
		Type:   &metadata.Type{Name: "Foo"},
		Member: &metadata.Member{Name: "count", Kind: metadata.MemberField, Declaring: "Foo", ReturnType: "int"},
	}
	assert.True(t, get.Matches(jp))
	assert.False(t, set.Matches(jp))

	jp.Kind = metadata.JoinPointAny
	assert.True(t, get.Matches(jp))
	assert.True(t, set.Matches(jp))
}

func TestPointcut_ControlFlow(t *testing.T) {
	p, err := NewPointcut("inTx", KindCFlow, "* Service.transfer(..)")
	require.NoError(t, err)

	jp := execution("Repo", "save")
	assert.False(t, p.Matches(jp))

	jp.CallPath = []metadata.JoinPoint{execution("Controller", "handle"), execution("Service", "transfer", "int")}
	assert.True(t, p.Matches(jp))

	assert.True(t, p.MatchesDirect(execution("Service", "transfer")))
	assert.False(t, p.MatchesDirect(jp))
}

func adviceNames(list []*Advice) []string {
	var names []string
	for _, adv := range list {
		names = append(names, adv.QualifiedName())
	}
	return names
}

func TestAspect_AllAdvicesOrdinal(t *testing.T) {
	a := New("log")
	require.NoError(t, a.AddAdvice(NewAdvice(WithAdviceName("z"), WithAdviceType(Before), WithAdviceOrdinal(0))))
	require.NoError(t, a.AddAdvice(NewAdvice(WithAdviceName("b"), WithAdviceType(After), WithAdviceOrdinal(2))))
	require.NoError(t, a.AddAdvice(NewAdvice(WithAdviceName("a"), WithAdviceType(Around), WithAdviceOrdinal(2))))
	require.NoError(t, a.AddAdvice(NewAdvice(WithAdviceName("c"), WithAdviceType(Around), WithAdviceOrdinal(1))))

	if diff := cmp.Diff([]string{"log.z", "log.c", "log.b", "log.a"}, adviceNames(a.AllAdvices())); diff != "" {
		t.Errorf("AllAdvices() mismatch (-want +got):\n%s", diff)
	}
}

func TestAspect_AllAdvicesDeclarationOrder(t *testing.T) {
	a := New("log")
	require.NoError(t, a.AddAdvice(NewAdvice(WithAdviceName("zeta"), WithAdviceType(Before))))
	require.NoError(t, a.AddAdvice(NewAdvice(WithAdviceName("alpha"), WithAdviceType(Before))))
	require.NoError(t, a.AddAdvice(NewAdvice(WithAdviceName("mid"), WithAdviceType(Around))))

	assert.Equal(t, []string{"log.zeta", "log.alpha", "log.mid"}, adviceNames(a.AllAdvices()))
}

func TestAspect_Matches(t *testing.T) {
	a := New("log")
	mustPointcut(t, a, "p1", KindExecution, "* Foo.bar(..)")
	mustPointcut(t, a, "p2", KindExecution, "* Foo.baz(..)")
	mustPointcut(t, a, "tx", KindCFlow, "* Service.run(..)")
	mustRule(t, a, "p1 && !p2", "tx", "trace")

	ok, err := a.Matches(a.Rules()[0], execution("Foo", "bar"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Matches(a.Rules()[0], execution("Foo", "baz"))
	require.NoError(t, err)
	assert.False(t, ok)

	jp := execution("Foo", "baz")
	jp.CallPath = []metadata.JoinPoint{execution("Service", "run")}
	ok, err = a.Matches(a.Rules()[0], jp)
	require.NoError(t, err)
	assert.True(t, ok)

	mustRule(t, a, "missing", "")
	_, err = a.Matches(a.Rules()[1], jp)
	assert.Error(t, err)

	mustRule(t, a, "p1 && missing", "")
	for _, at := range []metadata.JoinPoint{execution("Foo", "bar"), execution("Foo", "baz")} {
		ok, err = a.Matches(a.Rules()[2], at)
		var undefined *expression.UndefinedReferenceError
		require.True(t, errors.As(err, &undefined), at.String())
		assert.Equal(t, "missing", undefined.Name)
		assert.False(t, ok)
	}
}

func TestAspect_CheckConsistency(t *testing.T) {
	newAspect := func(t *testing.T) *Aspect {
		a := New("audit")
		mustPointcut(t, a, "exec", KindExecution, "* Foo.*(..)")
		mustPointcut(t, a, "exec2", KindExecution, "* Bar.*(..)")
		mustPointcut(t, a, "read", KindGet, "* Foo.*")
		mustPointcut(t, a, "flow", KindCFlow, "* Service.*(..)")
		mustPointcut(t, a, "foo", KindClass, "Foo")
		return a
	}
	tests := []struct {
		name    string
		expr    string
		cflow   string
		intro   bool
		wantErr bool
	}{
		{"same kind", "exec || exec2", "", false, false},
		{"cflow mixes", "exec && flow", "", false, false},
		{"two kinds", "exec || read", "", false, true},
		{"cflow expression", "exec", "flow", false, false},
		{"cflow expression with member kind", "exec", "exec2", false, true},
		{"introduction over class", "foo", "", true, false},
		{"introduction over method", "exec", "", true, true},
		{"undefined names are left to the validator", "exec || nope", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAspect(t)
			if tt.intro {
				r, err := NewIntroductionRule(tt.expr, "Marker")
				require.NoError(t, err)
				require.NoError(t, a.AddIntroductionRule(r))
			} else {
				mustRule(t, a, tt.expr, tt.cflow, "advice")
			}
			err := a.CheckConsistency()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var inconsistent *InconsistentPointcutTypeError
			require.True(t, errors.As(err, &inconsistent), "got %v", err)
			assert.Equal(t, "audit", inconsistent.Aspect)
		})
	}
}

func TestAspect_Frozen(t *testing.T) {
	a := New("log")
	a.Freeze()
	p, err := NewPointcut("p", KindClass, "Foo")
	require.NoError(t, err)
	assert.ErrorIs(t, a.AddPointcut(p), ErrFrozen)
	assert.ErrorIs(t, a.AddAdvice(NewAdvice(WithAdviceName("x"))), ErrFrozen)
	r, err := NewRule("p", "")
	require.NoError(t, err)
	assert.ErrorIs(t, a.AddRule(r), ErrFrozen)
}

func TestMerge_InheritsPointcutsAndRules(t *testing.T) {
	base := New("Base", WithAbstract(true))
	mustPointcut(t, base, "callMethod", KindExecution, "* Service.*(..)")
	require.NoError(t, base.AddAdvice(NewAdvice(WithAdviceName("log"), WithAdviceType(Before))))
	mustRule(t, base, "callMethod", "", "log")

	derived := New("Derived", WithExtends("Base"), WithScope("com.acme"))

	merged, err := Merge(base, derived)
	require.NoError(t, err)
	assert.False(t, merged.Abstract())
	assert.Equal(t, "Base", merged.Extends())

	p, ok := merged.Pointcut("callMethod")
	require.True(t, ok)
	assert.Equal(t, "com.acme.Service", p.Pattern().TypePattern())
	assert.Empty(t, merged.Declared())

	adv, ok := merged.Advice("log")
	require.True(t, ok)
	assert.Equal(t, "Derived.log", adv.QualifiedName())

	ok, err = merged.Matches(merged.Rules()[0], execution("com.acme.Service", "run"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMerge_CopyIsolation(t *testing.T) {
	base := New("Base", WithAbstract(true), WithParam("level", "debug"))
	mustPointcut(t, base, "callMethod", KindExecution, "* Service.*(..)")

	derived := New("Derived", WithExtends("Base"), WithParam("level", "info"))
	mustPointcut(t, derived, "callMethod", KindExecution, "* Other.*(..)")

	merged, err := Merge(base, derived)
	require.NoError(t, err)

	p, _ := merged.Pointcut("callMethod")
	assert.Equal(t, "* Other.*(..)", p.Text())
	v, _ := merged.Param("level")
	assert.Equal(t, "info", v)

	extra, err := merged.NewPointcut("extra", KindClass, "Foo")
	require.NoError(t, err)
	require.NoError(t, merged.AddPointcut(extra))

	_, ok := base.Pointcut("extra")
	assert.False(t, ok)
	p, _ = base.Pointcut("callMethod")
	assert.Equal(t, "* Service.*(..)", p.Text())
	assert.Len(t, base.Pointcuts(), 1)
}

func TestMerge_RescopesOwnPointcuts(t *testing.T) {
	base := New("Base", WithAbstract(true), WithScope("com.acme"))
	mustPointcut(t, base, "callMethod", KindExecution, "* Service.*(..)")
	require.NoError(t, base.AddAdvice(NewAdvice(WithAdviceName("zeta"), WithAdviceType(Before))))

	derived := New("Derived", WithExtends("Base"))
	mustPointcut(t, derived, "other", KindExecution, "* Other.*(..)")
	require.NoError(t, derived.AddAdvice(NewAdvice(WithAdviceName("alpha"), WithAdviceType(Before))))

	merged, err := Merge(base, derived)
	require.NoError(t, err)
	assert.Equal(t, "com.acme", merged.Scope())
	for name, want := range map[string]string{"callMethod": "com.acme.Service", "other": "com.acme.Other"} {
		p, ok := merged.Pointcut(name)
		require.True(t, ok, name)
		assert.Equal(t, "com.acme", p.Scope(), name)
		assert.Equal(t, want, p.Pattern().TypePattern(), name)
	}
	p, _ := derived.Pointcut("other")
	assert.Equal(t, "Other", p.Pattern().TypePattern())

	assert.Equal(t, []string{"Derived.zeta", "Derived.alpha"}, adviceNames(merged.AllAdvices()))
}

func TestAspect_FrozenConcurrent(t *testing.T) {
	a := New("log")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = a.Frozen()
			}
		}()
	}
	a.Freeze()
	wg.Wait()
	assert.True(t, a.Frozen())
	r, err := NewRule("p1", "")
	require.NoError(t, err)
	assert.ErrorIs(t, a.AddRule(r), ErrFrozen)
}

func TestMerge_Errors(t *testing.T) {
	child := New("Derived", WithExtends("Missing"))

	_, err := Merge(nil, child)
	var undefined *UndefinedAbstractAspectError
	require.True(t, errors.As(err, &undefined))
	assert.Equal(t, "Missing", undefined.Extends)

	_, err = Merge(New("Concrete"), child)
	assert.True(t, errors.As(err, &undefined))

	chained := New("Middle", WithAbstract(true), WithExtends("Root"))
	_, err = Merge(chained, child)
	assert.Error(t, err)
}
