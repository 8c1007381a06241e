package source

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-park/weaver/pkg/metadata"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
id: 5b0c3c64-2d7c-4a8e-9d0e-3f7f0f6c1a11
version: 1.2.0
scope: com.acme
introductions:
  - name: marker
    interfaces: [Marker]
aspects:
  - name: Base
    abstract: true
    pointcuts:
      - name: callMethod
        kind: execution
        pattern: "* Service.*(..)"
  - name: log
    class: com.acme.LogAspect
    deployment: perInstance
    extends: Base
    params:
      level: debug
    pointcuts:
      - name: p1
        kind: method
        pattern: "* Foo.bar(..)"
    advices:
      - name: trace
        type: before
        callable: com.acme.LogAspect.trace
        ordinal: 1
      - name: time
        type: around
        expression: callMethod
    bindings:
      - expression: p1 && !callMethod
        advices: [trace]
    introductionBindings:
      - expression: foo
        introductions: [marker]
attributes:
  - target: com.acme.Foo
    name: Entity
    value: users
`

func TestDecode(t *testing.T) {
	defs, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, "1.2.0", defs.Version)
	assert.Equal(t, "com.acme", defs.Scope)
	require.Len(t, defs.Aspects, 2)

	log := defs.Aspects[1]
	assert.Equal(t, "Base", log.Extends)
	assert.Equal(t, "debug", log.Params["level"])
	assert.Equal(t, []string{"marker"}, log.IntroductionBindings[0].Introductions)
	require.NotNil(t, log.Advices[0].Ordinal)
	assert.Equal(t, 1, *log.Advices[0].Ordinal)
	assert.Nil(t, log.Advices[1].Ordinal)

	want := []Binding{
		{Expression: "p1 && !callMethod", Advices: []string{"trace"}},
		{Expression: "callMethod", Advices: []string{"time"}},
	}
	if diff := cmp.Diff(want, log.AllBindings()); diff != "" {
		t.Errorf("AllBindings() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []metadata.Attribute{{Target: "com.acme.Foo", Name: "Entity", Value: "users"}}, defs.Attributes)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		version bool
	}{
		{"major version", "version: 2.0.0\n", true},
		{"old version", "version: 0.9.0\n", true},
		{"bad version", "version: latest\n", true},
		{"unknown field", "aspectz: []\n", false},
		{"bad yaml", "aspects: [\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.Equal(t, tt.version, errors.Is(err, ErrUnsupportedVersion))
		})
	}
}

func TestDecode_Empty(t *testing.T) {
	defs, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, defs.Version)
	assert.Empty(t, defs.Aspects)
}

func TestEncode_Decode(t *testing.T) {
	defs, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, defs))
	again, err := Decode(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(defs, again); diff != "" {
		t.Errorf("definitions changed (-want +got):\n%s", diff)
	}
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		in     string
		def    string
		params map[string]string
	}{
		{`"log"`, "log", map[string]string{KeyDefault: "log"}},
		{`"log", custom="Transactional"`, "log", map[string]string{KeyDefault: "log", "custom": "Transactional"}},
		{`"* Foo.bar(int, string)", cflow="tx", ordinal=2`, "* Foo.bar(int, string)",
			map[string]string{KeyDefault: "* Foo.bar(int, string)", KeyCFlow: "tx", KeyOrdinal: "2"}},
		{`* Foo.bar(int, string)`, "* Foo.bar(int, string)", map[string]string{KeyDefault: "* Foo.bar(int, string)"}},
		{`"a, \"b\""`, `a, "b"`, map[string]string{KeyDefault: `a, "b"`}},
		{``, "", map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			def, params, err := ParseParams(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.def, def)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestFromAttributes(t *testing.T) {
	attrs := []metadata.Attribute{
		{Target: "app.LogAspect.trace", Name: TagBefore, Value: `"p1 && !p2", cflow="tx", ordinal=2`},
		{Target: "app.LogAspect", Name: TagAspect, Value: `"log", deployment="perThread", level="debug"`},
		{Target: "app.LogAspect.p1", Name: "Execution", Value: `"* Foo.bar(..)"`},
		{Target: "app.LogAspect.p2", Name: TagPointcut, Value: `"* Foo.baz(..)", kind="execution", nonReentrant="true"`},
		{Target: "app.LogAspect.tx", Name: "CFlow", Value: `"* Service.run(..)"`},
		{Target: "app.LogAspect.foo", Name: "Class", Value: `"Foo+"`},
		{Target: "app.LogAspect", Name: TagIntroduce, Value: `"foo", introductions="named"`},
		{Target: "app.NamedImpl", Name: TagIntroduction, Value: `"named", interfaces="Named|Marker"`},
		{Target: "app.Foo", Name: "Entity", Value: `"users"`},
	}
	defs, err := FromAttributes(attrs)
	require.NoError(t, err)

	require.Len(t, defs.Aspects, 1)
	a := defs.Aspects[0]
	assert.Equal(t, "log", a.Name)
	assert.Equal(t, "app.LogAspect", a.Class)
	assert.Equal(t, "perThread", a.Deployment)
	assert.Equal(t, map[string]string{"level": "debug"}, a.Params)

	wantPointcuts := []Pointcut{
		{Name: "p1", Kind: "execution", Pattern: "* Foo.bar(..)"},
		{Name: "p2", Kind: "execution", Pattern: "* Foo.baz(..)", NonReentrant: true},
		{Name: "tx", Kind: "cflow", Pattern: "* Service.run(..)"},
		{Name: "foo", Kind: "class", Pattern: "Foo+"},
	}
	if diff := cmp.Diff(wantPointcuts, a.Pointcuts); diff != "" {
		t.Errorf("pointcuts mismatch (-want +got):\n%s", diff)
	}
	ordinal := 2
	assert.Equal(t, []Advice{{
		Name: "trace", Type: "before", Callable: "app.LogAspect.trace",
		Ordinal: &ordinal, Expression: "p1 && !p2", CFlow: "tx",
	}}, a.Advices)
	assert.Equal(t, []IntroductionBinding{{Expression: "foo", Introductions: []string{"named"}}}, a.IntroductionBindings)

	require.Len(t, defs.Introductions, 1)
	assert.Equal(t, Introduction{Name: "named", Interfaces: []string{"Named", "Marker"}, Implementation: "app.NamedImpl"}, defs.Introductions[0])
	assert.Equal(t, []metadata.Attribute{{Target: "app.Foo", Name: "Entity", Value: `"users"`}}, defs.Attributes)
}

func TestFromAttributes_Orphans(t *testing.T) {
	_, err := FromAttributes([]metadata.Attribute{{Target: "app.Foo.bar", Name: TagBefore, Value: `"p1"`}})
	assert.Error(t, err)

	_, err = FromAttributes([]metadata.Attribute{{Target: "app.Foo.p1", Name: "Execution", Value: `"* Foo.bar(..)"`}})
	assert.Error(t, err)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aspects.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1.0.0\n"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	loaded := make(chan *Definitions, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(defs *Definitions, err error) {
			if err == nil {
				loaded <- defs
			}
		})
	}()

	select {
	case defs := <-loaded:
		assert.Empty(t, defs.Aspects)
	case <-ctx.Done():
		t.Fatal("initial load not reported")
	}

	require.NoError(t, os.WriteFile(path, []byte("version: 1.0.0\naspects:\n  - name: log\n"), 0o644))
	for {
		select {
		case defs := <-loaded:
			if len(defs.Aspects) == 1 {
				cancel()
				assert.ErrorIs(t, <-done, context.Canceled)
				return
			}
		case <-ctx.Done():
			t.Fatal("change not reported")
		}
	}
}
