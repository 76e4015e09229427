package analyzer

import (
	"go/ast"
	"go/token"
	"strconv"
	"strings"
)

// Method is a method declaration together with the file declaring it.
type Method struct {
	Decl *ast.FuncDecl
	File *File
}

// Class is a struct type declared at package level. The same *Class value is
// handed to every visitor, so its identity is stable across the pipeline.
type Class struct {
	Name   string
	File   *File
	Spec   *ast.TypeSpec
	Struct *ast.StructType
	Doc    *ast.CommentGroup
	// Methods are keyed by name and may come from any file of the package.
	Methods map[string]*Method
	// Asserted holds contract names from `var _ pkg.Contract = (*T)(nil)`
	// style assertions, keyed as "importpath.Name".
	Asserted map[string]bool
}

// Dir is the package directory of the class.
func (c *Class) Dir() string { return c.File.Dir }

// Generic reports whether the type declares type parameters.
func (c *Class) Generic() bool {
	return c.Spec.TypeParams != nil && len(c.Spec.TypeParams.List) > 0
}

// Method returns the named method or nil.
func (c *Class) Method(name string) *Method {
	return c.Methods[name]
}

// Classes returns every struct type in the project in file order.
func (p *Project) Classes() []*Class {
	return p.classes
}

// Constructor returns the NewT function for the class, if one is declared
// in the same package.
func (p *Project) Constructor(c *Class) (*ast.FuncDecl, *File) {
	fn := p.Func(c.Dir(), "New"+c.Name)
	if fn == nil {
		return nil, nil
	}
	return fn, p.FileOf(fn.Pos())
}

// Implements reports whether the class satisfies the contract named name
// from the package at importPath, either by embedding it (or its Base
// counterpart) or through a blank-identifier assertion.
//
// Embedded project types are followed, so a shared base struct that embeds
// the contract passes it on.
func (p *Project) Implements(c *Class, importPath, name string) bool {
	return p.implements(c, importPath, name, make(map[*Class]bool))
}

func (p *Project) implements(c *Class, importPath, name string, seen map[*Class]bool) bool {
	if seen[c] {
		return false
	}
	seen[c] = true
	if c.Asserted[importPath+"."+name] {
		return true
	}
	for _, field := range c.Struct.Fields.List {
		if len(field.Names) != 0 {
			continue
		}
		pkg, sel := embeddedName(field.Type)
		if sel == "" {
			continue
		}

		dir := c.Dir()
		if pkg != "" {
			path, ok := ImportPathFor(c.File.AST, pkg)
			if !ok {
				continue
			}
			if path == importPath && (sel == name || sel == "Base"+name) {
				return true
			}
			if dir, ok = p.DirForImport(path); !ok {
				continue
			}
		} else if p.ImportPath(dir) == importPath && (sel == name || sel == "Base"+name) {
			return true
		}

		if embedded := p.Class(dir, sel); embedded != nil && p.implements(embedded, importPath, name, seen) {
			return true
		}
	}
	return false
}

// Class returns the struct type name declared in dir.
func (p *Project) Class(dir, name string) *Class {
	for _, c := range p.classes {
		if c.Name == name && c.Dir() == dir {
			return c
		}
	}
	return nil
}

func embeddedName(expr ast.Expr) (pkg, name string) {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	switch e := expr.(type) {
	case *ast.Ident:
		return "", e.Name
	case *ast.SelectorExpr:
		if id, ok := e.X.(*ast.Ident); ok {
			return id.Name, e.Sel.Name
		}
	}
	return "", ""
}

// ImportName returns the name a file uses for the import path, or "" when
// the file does not import it.
func ImportName(f *ast.File, path string) string {
	for _, imp := range f.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil || p != path {
			continue
		}
		if imp.Name != nil {
			return imp.Name.Name
		}
		return DefaultImportName(path)
	}
	return ""
}

// ImportPathFor returns the import path a file binds to the local name.
func ImportPathFor(f *ast.File, name string) (string, bool) {
	for _, imp := range f.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		local := DefaultImportName(p)
		if imp.Name != nil {
			local = imp.Name.Name
		}
		if local == name {
			return p, true
		}
	}
	return "", false
}

// DefaultImportName guesses the package name of an import path from its last
// element, skipping a major version suffix.
func DefaultImportName(path string) string {
	parts := strings.Split(path, "/")
	last := parts[len(parts)-1]
	if len(parts) > 1 && len(last) > 1 && last[0] == 'v' && strings.Trim(last[1:], "0123456789") == "" {
		last = parts[len(parts)-2]
	}
	if i := strings.IndexAny(last, ".-"); i >= 0 {
		last = last[:i]
	}
	return last
}

func discoverClasses(p *Project) []*Class {
	var classes []*Class
	byKey := make(map[string]*Class)

	for _, file := range p.Files {
		for _, decl := range file.AST.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, spec := range gd.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				st, ok := ts.Type.(*ast.StructType)
				if !ok {
					continue
				}
				doc := ts.Doc
				if doc == nil && !gd.Lparen.IsValid() {
					doc = gd.Doc
				}
				c := &Class{
					Name:     ts.Name.Name,
					File:     file,
					Spec:     ts,
					Struct:   st,
					Doc:      doc,
					Methods:  make(map[string]*Method),
					Asserted: make(map[string]bool),
				}
				classes = append(classes, c)
				byKey[file.Dir+"."+c.Name] = c
			}
		}
	}

	for _, file := range p.Files {
		for _, decl := range file.AST.Decls {
			switch d := decl.(type) {
			case *ast.FuncDecl:
				if d.Recv == nil || len(d.Recv.List) == 0 {
					continue
				}
				if c := byKey[file.Dir+"."+ReceiverType(d)]; c != nil {
					c.Methods[d.Name.Name] = &Method{Decl: d, File: file}
				}
			case *ast.GenDecl:
				if d.Tok != token.VAR {
					continue
				}
				for _, spec := range d.Specs {
					vs, ok := spec.(*ast.ValueSpec)
					if !ok || vs.Type == nil || len(vs.Names) != 1 || vs.Names[0].Name != "_" || len(vs.Values) != 1 {
						continue
					}
					contract := qualifiedType(p, file, vs.Type)
					name := assertedType(vs.Values[0])
					if contract == "" || name == "" {
						continue
					}
					if c := byKey[file.Dir+"."+name]; c != nil {
						c.Asserted[contract] = true
					}
				}
			}
		}
	}
	return classes
}

// ReceiverType returns the base type name of a method receiver.
func ReceiverType(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return ""
	}
	expr := fn.Recv.List[0].Type
	for {
		switch e := expr.(type) {
		case *ast.StarExpr:
			expr = e.X
		case *ast.ParenExpr:
			expr = e.X
		case *ast.IndexExpr:
			expr = e.X
		case *ast.IndexListExpr:
			expr = e.X
		case *ast.Ident:
			return e.Name
		default:
			return ""
		}
	}
}

// qualifiedType renders a (possibly package qualified) type name as
// "importpath.Name".
func qualifiedType(p *Project, file *File, expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.Ident:
		return p.ImportPath(file.Dir) + "." + e.Name
	case *ast.SelectorExpr:
		id, ok := e.X.(*ast.Ident)
		if !ok {
			return ""
		}
		path, ok := ImportPathFor(file.AST, id.Name)
		if !ok {
			return ""
		}
		return path + "." + e.Sel.Name
	}
	return ""
}

// assertedType extracts T from (*T)(nil), &T{} and T{}.
func assertedType(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.CallExpr:
		paren, ok := e.Fun.(*ast.ParenExpr)
		if !ok {
			return ""
		}
		star, ok := paren.X.(*ast.StarExpr)
		if !ok {
			return ""
		}
		if id, ok := star.X.(*ast.Ident); ok {
			return id.Name
		}
	case *ast.UnaryExpr:
		if e.Op == token.AND {
			return assertedType(e.X)
		}
	case *ast.CompositeLit:
		if id, ok := e.Type.(*ast.Ident); ok {
			return id.Name
		}
	}
	return ""
}
