package astutils

import (
	"go/ast"
	"go/token"

	"golang.org/x/tools/go/packages"

	"github.com/go-park/weaver/pkg/metadata"
)

// File holds a single parsed file and associated data.
type File struct {
	Pkg  *Package  // Package to which this file belongs.
	File *ast.File // Parsed AST.
}

// Package collects the annotation attributes of one loaded package.
//
// Targets are named after the package name: "app.Log" for a type,
// "app.Log.traced" for a struct field and "app.Log.Trace" for a method.
type Package struct {
	options
	Path       string
	Name       string
	AstPkg     *packages.Package
	Files      []*File
	Attributes []metadata.Attribute
}

func NewPackage(pkg *packages.Package, opts ...Option) *Package {
	p := &Package{
		Path:   pkg.PkgPath,
		Name:   pkg.Name,
		AstPkg: pkg,
	}
	for _, opt := range opts {
		opt.apply(&p.options)
	}
	for _, file := range pkg.Syntax {
		p.Files = append(p.Files, &File{Pkg: p, File: file})
	}
	return p
}

// Inspect walks every file of the package and returns the attributes found,
// in declaration order.
func (p *Package) Inspect() []metadata.Attribute {
	p.Attributes = nil
	for _, f := range p.Files {
		ast.Inspect(f.File, f.InspectDecl)
	}
	return p.Attributes
}

// Target names a declaration of the package.
func (p *Package) Target(names ...string) string {
	target := p.Name
	for _, n := range names {
		target += "." + n
	}
	return target
}

func (p *Package) add(list []annotated, target string, node ast.Node) {
	for _, v := range list {
		if !IsSystemAnnotation(v.anno) && !p.custom {
			continue
		}
		attr := metadata.Attribute{Target: target, Name: v.anno.Name(), Value: v.value}
		p.Attributes = append(p.Attributes, p.intercept(v.anno, attr, node)...)
	}
}

// InspectDecl processes one node.
func (f *File) InspectDecl(node ast.Node) bool {
	switch decl := node.(type) {
	case *ast.GenDecl:
		return f.genDecl(decl)
	case *ast.FuncDecl:
		return f.funcDecl(decl)
	}
	return true
}

// genDecl processes one type declaration clause.
func (f *File) genDecl(decl *ast.GenDecl) bool {
	if decl.Tok != token.TYPE {
		return false
	}
	for _, s := range decl.Specs {
		spec, ok := s.(*ast.TypeSpec)
		if !ok {
			continue
		}
		doc := spec.Doc
		// a lone spec carries its doc on the declaration
		if doc == nil && len(decl.Specs) == 1 {
			doc = decl.Doc
		}
		name := spec.Name.Name
		f.Pkg.add(parseAnnotation(doc), f.Pkg.Target(name), spec)

		structT, ok := spec.Type.(*ast.StructType)
		if !ok || structT.Fields == nil {
			continue
		}
		for _, fi := range structT.Fields.List {
			f.parseField(name, fi)
		}
	}
	return false
}

func (f *File) parseField(typeName string, fi *ast.Field) {
	list := parseAnnotation(fi.Doc)
	if len(list) == 0 {
		return
	}
	for _, name := range fi.Names {
		f.Pkg.add(list, f.Pkg.Target(typeName, name.Name), fi)
	}
}

// funcDecl processes one function declaration clause.
func (f *File) funcDecl(decl *ast.FuncDecl) bool {
	list := parseAnnotation(decl.Doc)
	if len(list) == 0 {
		return false
	}
	if decl.Recv == nil || len(decl.Recv.List) == 0 {
		f.Pkg.add(list, f.Pkg.Target(decl.Name.Name), decl)
		return false
	}
	recv, ok := recvTypeName(decl.Recv.List[0].Type)
	if !ok {
		return false
	}
	f.Pkg.add(list, f.Pkg.Target(recv, decl.Name.Name), decl)
	return false
}
