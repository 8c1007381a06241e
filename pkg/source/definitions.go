// Package source reads definition sets from YAML files and from annotation
// attributes into the in-memory Definitions tree consumed by the builder.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/go-park/weaver/pkg/metadata"
)

// CurrentVersion is the definition format version written by this package.
const CurrentVersion = "1.0.0"

// SupportedVersions is the constraint a definition file version must satisfy.
const SupportedVersions = ">= 1.0.0, < 2.0.0"

var ErrUnsupportedVersion = errors.New("unsupported definition version")

type (
	// Definitions is one definition set as declared by its source.
	Definitions struct {
		ID            string               `yaml:"id,omitempty"`
		Version       string               `yaml:"version,omitempty"`
		Scope         string               `yaml:"scope,omitempty"`
		Introductions []Introduction       `yaml:"introductions,omitempty"`
		Aspects       []Aspect             `yaml:"aspects,omitempty"`
		Attributes    []metadata.Attribute `yaml:"attributes,omitempty"`
	}

	Aspect struct {
		Name                 string                `yaml:"name"`
		Class                string                `yaml:"class,omitempty"`
		Deployment           string                `yaml:"deployment,omitempty"`
		Abstract             bool                  `yaml:"abstract,omitempty"`
		Extends              string                `yaml:"extends,omitempty"`
		Scope                string                `yaml:"scope,omitempty"`
		Params               map[string]string     `yaml:"params,omitempty"`
		Pointcuts            []Pointcut            `yaml:"pointcuts,omitempty"`
		Advices              []Advice              `yaml:"advices,omitempty"`
		Bindings             []Binding             `yaml:"bindings,omitempty"`
		IntroductionBindings []IntroductionBinding `yaml:"introductionBindings,omitempty"`
	}

	Pointcut struct {
		Name         string `yaml:"name"`
		Kind         string `yaml:"kind"`
		Pattern      string `yaml:"pattern"`
		NonReentrant bool   `yaml:"nonReentrant,omitempty"`
	}

	// Advice declares one advice. A non-empty Expression also binds the advice
	// as if a Binding listing only this advice had been declared. Without an
	// Ordinal the advice is ordered by its position in the aspect.
	Advice struct {
		Name       string `yaml:"name"`
		Type       string `yaml:"type"`
		Callable   string `yaml:"callable,omitempty"`
		Ordinal    *int   `yaml:"ordinal,omitempty"`
		Expression string `yaml:"expression,omitempty"`
		CFlow      string `yaml:"cflow,omitempty"`
	}

	Binding struct {
		Expression string   `yaml:"expression"`
		CFlow      string   `yaml:"cflow,omitempty"`
		Advices    []string `yaml:"advices"`
	}

	IntroductionBinding struct {
		Expression    string   `yaml:"expression"`
		Introductions []string `yaml:"introductions"`
	}

	Introduction struct {
		Name           string   `yaml:"name"`
		Interfaces     []string `yaml:"interfaces"`
		Implementation string   `yaml:"implementation,omitempty"`
		Deployment     string   `yaml:"deployment,omitempty"`
		Methods        []string `yaml:"methods,omitempty"`
	}
)

// Decode reads a YAML definition set and checks its version.
func Decode(r io.Reader) (*Definitions, error) {
	var defs Definitions
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&defs); err != nil {
		if errors.Is(err, io.EOF) {
			return &Definitions{Version: CurrentVersion}, nil
		}
		return nil, fmt.Errorf("decode definitions: %w", err)
	}
	if err := CheckVersion(defs.Version); err != nil {
		return nil, err
	}
	return &defs, nil
}

// LoadFile decodes the definition file at path.
func LoadFile(path string) (*Definitions, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	defs, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// Encode writes defs as YAML.
func Encode(w io.Writer, defs *Definitions) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(defs); err != nil {
		return err
	}
	return enc.Close()
}

// CheckVersion accepts an empty version as CurrentVersion.
func CheckVersion(version string) error {
	if version == "" {
		return nil
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrUnsupportedVersion, version, err)
	}
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return err
	}
	if !c.Check(v) {
		return fmt.Errorf("%w %q: want %s", ErrUnsupportedVersion, version, SupportedVersions)
	}
	return nil
}

// AllBindings returns the explicit bindings of the aspect followed by the
// implicit ones declared on advices.
func (a *Aspect) AllBindings() []Binding {
	bindings := append([]Binding(nil), a.Bindings...)
	for _, adv := range a.Advices {
		if adv.Expression == "" {
			continue
		}
		bindings = append(bindings, Binding{Expression: adv.Expression, CFlow: adv.CFlow, Advices: []string{adv.Name}})
	}
	return bindings
}
