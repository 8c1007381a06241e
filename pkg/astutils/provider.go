package astutils

import (
	"go/types"
	"sort"
	"strings"

	"github.com/go-park/weaver/pkg/metadata"
)

const voidType = "void"

// Provide registers the named types of the inspected packages with a static
// metadata provider.
//
// A type's supertypes are its embedded types followed by the interfaces of the
// same packages its pointer implements. Its members are the method set of the
// pointer, the struct fields and the functions "New<Type>" returning it. A
// trailing error result is reported as the exception "error". Attributes are
// the annotation names found by Inspect on the same target.
func Provide(pkgs ...*Package) *metadata.StaticProvider {
	sp := metadata.NewStaticProvider()
	attrs := map[string][]string{}
	var ifaces []*types.Named
	for _, p := range pkgs {
		for _, a := range p.Attributes {
			attrs[a.Target] = append(attrs[a.Target], a.Name)
		}
		for _, obj := range p.typeNames() {
			named, ok := obj.Type().(*types.Named)
			if !ok || !types.IsInterface(named) {
				continue
			}
			if named.Underlying().(*types.Interface).Empty() {
				continue
			}
			ifaces = append(ifaces, named)
		}
	}

	for _, p := range pkgs {
		ctors := p.constructors()
		for _, obj := range p.typeNames() {
			named, ok := obj.Type().(*types.Named)
			if !ok {
				continue
			}
			name := p.Target(obj.Name())
			t := &metadata.Type{
				Name:       name,
				Supertypes: supertypes(named, ifaces),
				Attributes: attrs[name],
			}
			members := methods(named, attrs)
			if st, ok := named.Underlying().(*types.Struct); ok {
				for i := 0; i < st.NumFields(); i++ {
					fi := st.Field(i)
					if fi.Embedded() {
						continue
					}
					members = append(members, &metadata.Member{
						Name:       fi.Name(),
						Kind:       metadata.MemberField,
						Declaring:  name,
						ReturnType: typeString(fi.Type()),
						Attributes: attrs[name+"."+fi.Name()],
					})
				}
			}
			for _, fn := range ctors[obj] {
				m := signature(fn, name, attrs)
				m.Kind = metadata.MemberConstructor
				members = append(members, m)
			}
			sp.AddType(t, members...)
		}
	}
	return sp
}

func (p *Package) typeNames() []*types.TypeName {
	if p.AstPkg == nil || p.AstPkg.Types == nil {
		return nil
	}
	scope := p.AstPkg.Types.Scope()
	var list []*types.TypeName
	for _, n := range scope.Names() {
		obj, ok := scope.Lookup(n).(*types.TypeName)
		if !ok || obj.IsAlias() {
			continue
		}
		list = append(list, obj)
	}
	return list
}

// constructors indexes the "New<Type>" functions by the type they return.
func (p *Package) constructors() map[*types.TypeName][]*types.Func {
	ctors := map[*types.TypeName][]*types.Func{}
	if p.AstPkg == nil || p.AstPkg.Types == nil {
		return ctors
	}
	scope := p.AstPkg.Types.Scope()
	for _, n := range scope.Names() {
		fn, ok := scope.Lookup(n).(*types.Func)
		if !ok || !strings.HasPrefix(n, "New") {
			continue
		}
		res := fn.Type().(*types.Signature).Results()
		if res.Len() == 0 {
			continue
		}
		named, ok := deref(res.At(0).Type()).(*types.Named)
		if !ok || named.Obj().Pkg() != p.AstPkg.Types || n != "New"+named.Obj().Name() {
			continue
		}
		ctors[named.Obj()] = append(ctors[named.Obj()], fn)
	}
	return ctors
}

func deref(t types.Type) types.Type {
	if ptr, ok := t.(*types.Pointer); ok {
		return ptr.Elem()
	}
	return t
}

func supertypes(named *types.Named, ifaces []*types.Named) []string {
	var list []string
	seen := map[string]bool{}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			list = append(list, s)
		}
	}
	if st, ok := named.Underlying().(*types.Struct); ok {
		for i := 0; i < st.NumFields(); i++ {
			if fi := st.Field(i); fi.Embedded() {
				add(typeString(deref(fi.Type())))
			}
		}
	}
	var impl []string
	var ptr types.Type = types.NewPointer(named)
	if types.IsInterface(named) {
		ptr = named
	}
	for _, iface := range ifaces {
		if types.Identical(iface, named) {
			continue
		}
		if types.Implements(ptr, iface.Underlying().(*types.Interface)) {
			impl = append(impl, typeString(iface))
		}
	}
	sort.Strings(impl)
	for _, s := range impl {
		add(s)
	}
	return list
}

func methods(named *types.Named, attrs map[string][]string) []*metadata.Member {
	var recv types.Type = types.NewPointer(named)
	if types.IsInterface(named) {
		recv = named
	}
	owner := typeString(named)
	ms := types.NewMethodSet(recv)
	list := make([]*metadata.Member, 0, ms.Len())
	for i := 0; i < ms.Len(); i++ {
		fn, ok := ms.At(i).Obj().(*types.Func)
		if !ok {
			continue
		}
		declaring := owner
		if r := fn.Type().(*types.Signature).Recv(); r != nil {
			if n, ok := deref(r.Type()).(*types.Named); ok && !types.IsInterface(n) {
				declaring = typeString(n.Origin())
			}
		}
		list = append(list, signature(fn, declaring, attrs))
	}
	return list
}

func signature(fn *types.Func, declaring string, attrs map[string][]string) *metadata.Member {
	sig := fn.Type().(*types.Signature)
	m := &metadata.Member{
		Name:       fn.Name(),
		Kind:       metadata.MemberMethod,
		Declaring:  declaring,
		Attributes: attrs[declaring+"."+fn.Name()],
	}
	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		t := params.At(i).Type()
		if sig.Variadic() && i == params.Len()-1 {
			if s, ok := t.(*types.Slice); ok {
				m.Params = append(m.Params, "..."+typeString(s.Elem()))
				continue
			}
		}
		m.Params = append(m.Params, typeString(t))
	}
	m.ReturnType, m.Exceptions = results(sig)
	return m
}

func results(sig *types.Signature) (string, []string) {
	res := sig.Results()
	var list, exceptions []string
	for i := 0; i < res.Len(); i++ {
		list = append(list, typeString(res.At(i).Type()))
	}
	if n := len(list); n > 0 && list[n-1] == "error" {
		exceptions = []string{"error"}
		list = list[:n-1]
	}
	switch len(list) {
	case 0:
		return voidType, exceptions
	case 1:
		return list[0], exceptions
	default:
		return "(" + strings.Join(list, ", ") + ")", exceptions
	}
}
