package metadata

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrNotFound = errors.New("metadata not found")

// Provider supplies type and member metadata for identifiers of the target program.
type Provider interface {
	Type(name string) (*Type, error)
	Member(typeName, memberName string) (*Member, error)
}

var _ Provider = (*StaticProvider)(nil)

// StaticProvider is an in-memory Provider, safe for concurrent use.
type StaticProvider struct {
	mu      sync.RWMutex
	types   map[string]*Type
	members map[string]map[string]*Member
}

func NewStaticProvider() *StaticProvider {
	return &StaticProvider{
		types:   map[string]*Type{},
		members: map[string]map[string]*Member{},
	}
}

func (p *StaticProvider) AddType(t *Type, members ...*Member) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types[t.Name] = t
	ms, ok := p.members[t.Name]
	if !ok {
		ms = map[string]*Member{}
		p.members[t.Name] = ms
	}
	for _, m := range members {
		if m.Declaring == "" {
			m.Declaring = t.Name
		}
		ms[m.Name] = m
	}
}

func (p *StaticProvider) Type(name string) (*Type, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.types[name]
	if !ok {
		return nil, fmt.Errorf("type %q: %w", name, ErrNotFound)
	}
	return t, nil
}

func (p *StaticProvider) Member(typeName, memberName string) (*Member, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.members[typeName][memberName]
	if !ok {
		return nil, fmt.Errorf("member %s.%s: %w", typeName, memberName, ErrNotFound)
	}
	return m, nil
}

// Types lists the known type names in lexical order.
func (p *StaticProvider) Types() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.types))
	for k := range p.types {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Members lists the members of a type in lexical order.
func (p *StaticProvider) Members(typeName string) []*Member {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ms := p.members[typeName]
	list := make([]*Member, 0, len(ms))
	for _, m := range ms {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// JoinPointOf resolves a (type, member) pair into a JoinPoint. An empty member name
// yields a type-level join point.
func JoinPointOf(p Provider, typeName, memberName string) (JoinPoint, error) {
	t, err := p.Type(typeName)
	if err != nil {
		return JoinPoint{}, err
	}
	jp := JoinPoint{Type: t}
	if memberName == "" {
		return jp, nil
	}
	m, err := p.Member(typeName, memberName)
	if err != nil {
		return JoinPoint{}, err
	}
	jp.Member = m
	return jp, nil
}
