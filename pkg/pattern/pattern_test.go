package pattern

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-park/weaver/pkg/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func method(typ, name, ret string, params ...string) metadata.JoinPoint {
	return metadata.JoinPoint{
		Type: &metadata.Type{Name: typ},
		Member: &metadata.Member{
			Name:       name,
			Kind:       metadata.MemberMethod,
			Declaring:  typ,
			ReturnType: ret,
			Params:     params,
		},
	}
}

func field(typ, name, fieldType string) metadata.JoinPoint {
	return metadata.JoinPoint{
		Type: &metadata.Type{Name: typ},
		Member: &metadata.Member{
			Name:       name,
			Kind:       metadata.MemberField,
			Declaring:  typ,
			ReturnType: fieldType,
		},
	}
}

func TestCompileMember_RoundTrip(t *testing.T) {
	tests := []struct {
		name         string
		category     Category
		text         string
		class        string
		member       string
		ret          string
		hierarchical bool
	}{
		{"any params", CategoryMethod, "* Foo.bar(..)", "Foo", "bar(..)", "*", false},
		{"hierarchical", CategoryMethod, "int com.acme.Foo+.get*(int, ..)", "com.acme.Foo", "get*(int, ..)", "int", true},
		{"package wildcard", CategoryMethod, "String foo..*Service.find(String)", "foo..*Service", "find(String)", "String", false},
		{"no params", CategoryMethod, "void a.b.C.run()", "a.b.C", "run()", "void", false},
		{"field", CategoryField, "String Foo.name", "Foo", "name", "String", false},
		{"field hierarchical", CategoryField, "* Base+.id*", "Base", "id*", "*", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.category, tt.text, "")
			require.NoError(t, err)
			assert.Equal(t, tt.class, p.ClassQualifier())
			assert.Equal(t, tt.member, p.MemberQualifier())
			assert.Equal(t, tt.ret, p.ReturnPattern())
			assert.Equal(t, tt.hierarchical, p.Hierarchical())

			rest := strings.SplitN(tt.text, " ", 2)[1]
			assert.Equal(t, strings.Replace(rest, "+", "", 1), p.ClassQualifier()+"."+p.MemberQualifier())
		})
	}
}

func TestCompileClass_HierarchicalFlag(t *testing.T) {
	tests := []struct {
		text         string
		typePattern  string
		hierarchical bool
	}{
		{"Foo+", "Foo", true},
		{"com.acme.Base+", "com.acme.Base", true},
		{"Foo", "Foo", false},
		{"foo.*", "foo.*", false},
		{"foo..*", "foo..*", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			p, err := Compile(CategoryClass, tt.text, "")
			require.NoError(t, err)
			assert.Equal(t, tt.typePattern, p.TypePattern())
			assert.Equal(t, tt.hierarchical, p.Hierarchical())
		})
	}
}

func TestCompile_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name     string
		category Category
		text     string
	}{
		{"empty", CategoryMethod, "   "},
		{"missing return type", CategoryMethod, "Foo.bar(..)"},
		{"missing parameter list", CategoryMethod, "* Foo.bar"},
		{"unterminated parameter list", CategoryMethod, "* Foo.bar(.."},
		{"missing class qualifier", CategoryMethod, "* bar(..)"},
		{"empty class qualifier", CategoryMethod, "* .bar()"},
		{"dangling any segments", CategoryMethod, "* Foo..bar()"},
		{"empty member name", CategoryMethod, "* Foo.(..)"},
		{"empty parameter", CategoryMethod, "* Foo.bar(int,,String)"},
		{"field with params", CategoryField, "int Foo.bar()"},
		{"throws without delimiter", CategoryThrows, "* Foo.bar(..)"},
		{"throws without exception", CategoryThrows, "* Foo.bar(..)#"},
		{"call without caller", CategoryCall, "->* Foo.bar(..)"},
		{"class trailing any segments", CategoryClass, "foo.."},
		{"class trailing dot", CategoryClass, "foo."},
		{"class leading dot", CategoryClass, ".foo"},
		{"class with space", CategoryClass, "foo bar"},
		{"attribute empty", CategoryAttribute, "@"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.category, tt.text, "")
			require.Error(t, err)
			assert.Nil(t, p)
			var syntaxErr *PatternSyntaxError
			require.True(t, errors.As(err, &syntaxErr))
			assert.Equal(t, strings.TrimSpace(tt.text), strings.TrimSpace(syntaxErr.Pattern))
			assert.Contains(t, err.Error(), "pattern syntax error")
		})
	}
}

func TestMatch_Method(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		jp      metadata.JoinPoint
		want    bool
	}{
		{"scenario match", "* Foo.bar(..)", method("Foo", "bar", "void"), true},
		{"scenario other member", "* Foo.bar(..)", method("Foo", "baz", "void"), false},
		{"field is not a method", "* Foo.bar(..)", field("Foo", "bar", "int"), false},
		{"other type", "* Foo.bar(..)", method("Bar", "bar", "void"), false},
		{"leading param", "* Foo.bar(int, ..)", method("Foo", "bar", "void", "int"), true},
		{"leading param with rest", "* Foo.bar(int, ..)", method("Foo", "bar", "void", "int", "String"), true},
		{"leading param missing", "* Foo.bar(int, ..)", method("Foo", "bar", "void"), false},
		{"leading param mismatch", "* Foo.bar(int, ..)", method("Foo", "bar", "void", "String"), false},
		{"empty params", "* Foo.bar()", method("Foo", "bar", "void"), true},
		{"empty params mismatch", "* Foo.bar()", method("Foo", "bar", "void", "int"), false},
		{"single wildcard param", "* Foo.bar(*, String)", method("Foo", "bar", "void", "int", "String"), true},
		{"trailing fixed param", "* Foo.bar(.., String)", method("Foo", "bar", "void", "int", "long", "String"), true},
		{"return type", "int Foo.size()", method("Foo", "size", "int"), true},
		{"return type mismatch", "int Foo.size()", method("Foo", "size", "long"), false},
		{"name wildcard", "* com.acme.*.save*(..)", method("com.acme.Repo", "saveAll", "void"), true},
		{"segment wildcard stays in segment", "* com.acme.*.save*(..)", method("com.acme.sub.Repo", "saveAll", "void"), false},
		{"any segments", "* com..Repo.save(..)", method("com.acme.sub.Repo", "save", "void"), true},
		{"any segments zero", "* com..Repo.save(..)", method("com.Repo", "save", "void"), true},
		{"lone wildcard type", "* *.*(..)", method("x.y.Z", "any", "int", "a", "b"), true},
		{"match all types", "* *..*.*(..)", method("x.y.Z", "any", "int", "a", "b"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := MustCompile(CategoryMethod, tt.pattern, "")
			assert.Equal(t, tt.want, p.Match(tt.jp))
		})
	}
}

func TestMatch_Hierarchical(t *testing.T) {
	impl := method("Impl", "run", "void")
	impl.Type.Supertypes = []string{"Base", "Runnable"}

	assert.True(t, MustCompile(CategoryMethod, "* Base+.run()", "").Match(impl))
	assert.False(t, MustCompile(CategoryMethod, "* Base.run()", "").Match(impl))
	assert.True(t, MustCompile(CategoryClass, "Runnable+", "").MatchType(impl.Type))
	assert.False(t, MustCompile(CategoryClass, "Runnable", "").MatchType(impl.Type))
}

func TestMatch_Field(t *testing.T) {
	p := MustCompile(CategoryField, "String Foo.name", "")
	assert.True(t, p.Match(field("Foo", "name", "String")))
	assert.False(t, p.Match(field("Foo", "name", "int")))
	assert.False(t, p.Match(method("Foo", "name", "String")))
	assert.Equal(t, "String name", p.MemberPattern())
}

func TestMatch_Throws(t *testing.T) {
	p := MustCompile(CategoryThrows, "* Foo.bar(..)#java.io.IOException", "")
	jp := method("Foo", "bar", "void")
	jp.Member.Exceptions = []string{"java.io.IOException"}
	assert.True(t, p.Match(jp))

	jp.Member.Exceptions = []string{"RuntimeException"}
	assert.False(t, p.Match(jp))
	assert.Equal(t, "java.io.IOException", p.ExceptionPattern())
	assert.Equal(t, "* bar(..)#java.io.IOException", p.MemberPattern())
}

func TestMatch_Call(t *testing.T) {
	p := MustCompile(CategoryCall, "Client->* Service.call(..)", "")
	assert.Equal(t, "Client", p.CallerPattern())
	assert.Equal(t, "Service", p.TypePattern())

	jp := method("Service", "call", "void")
	jp.Caller = &metadata.Type{Name: "Client"}
	assert.True(t, p.Match(jp))

	jp.Caller = &metadata.Type{Name: "Other"}
	assert.False(t, p.Match(jp))

	jp.Caller = nil
	assert.False(t, p.Match(jp))

	assert.True(t, p.MatchType(&metadata.Type{Name: "Client"}))
	assert.False(t, p.MatchType(&metadata.Type{Name: "Service"}))

	anyCaller := MustCompile(CategoryCall, "* Service.call(..)", "")
	assert.Equal(t, "*", anyCaller.CallerPattern())
	assert.True(t, anyCaller.Match(jp))
}

func TestMatch_Attribute(t *testing.T) {
	jp := method("Foo", "bar", "void")
	jp.Member.Attributes = []string{"@Transactional"}

	assert.True(t, MustCompile(CategoryAttribute, "@Transactional", "").Match(jp))
	assert.True(t, MustCompile(CategoryAttribute, "Trans*", "").Match(jp))
	assert.False(t, MustCompile(CategoryAttribute, "@Cached", "").Match(jp))
	assert.True(t, MustCompile(CategoryAttribute, "@Cached", "").MatchType(jp.Type))
}

func TestCompile_Scope(t *testing.T) {
	p := MustCompile(CategoryClass, "Foo", "com.acme")
	assert.Equal(t, "com.acme.Foo", p.TypePattern())
	assert.True(t, p.MatchType(&metadata.Type{Name: "com.acme.Foo"}))
	assert.False(t, p.MatchType(&metadata.Type{Name: "Foo"}))

	assert.Equal(t, "*", MustCompile(CategoryClass, "*", "com.acme").TypePattern())
	assert.Equal(t, "org.Foo", MustCompile(CategoryClass, "org.Foo", "com.acme").TypePattern())

	m := MustCompile(CategoryMethod, "* Foo+.bar()", "com.acme")
	assert.Equal(t, "Foo", m.ClassQualifier())
	assert.Equal(t, "com.acme.Foo", m.TypePattern())
	assert.True(t, m.Hierarchical())
}

func TestCompiler_Cache(t *testing.T) {
	c := NewCompiler(0)
	p1, err := c.Compile(CategoryMethod, "* Foo.bar(..)", "")
	require.NoError(t, err)
	p2, err := c.Compile(CategoryMethod, "* Foo.bar(..)", "")
	require.NoError(t, err)
	assert.Same(t, p1, p2)

	p3, err := c.Compile(CategoryMethod, "* Foo.bar(..)", "com.acme")
	require.NoError(t, err)
	assert.NotSame(t, p1, p3)

	_, err = c.Compile(CategoryMethod, "Foo.bar", "")
	require.Error(t, err)
	assert.Equal(t, 2, c.Len())
}
