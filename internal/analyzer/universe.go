package analyzer

import (
	"go/ast"
	"go/token"
	"strconv"
)

// TypeDecl is a named type declared at package level.
type TypeDecl struct {
	File *File
	Spec *ast.TypeSpec
	// Doc is the TypeSpec's own doc, or the enclosing declaration's doc when
	// the type is declared outside a parenthesized group.
	Doc *ast.CommentGroup
}

// Const is a package level constant whose type is spelled out, either on
// the ValueSpec itself or inherited through iota repetition.
type Const struct {
	Name string
	Type string
	// Value is the unquoted literal when the constant is a string literal.
	Value    string
	IsString bool
	// Int is set when the constant is an integer literal.
	Int    int
	HasInt bool
	// Bool is set when the constant is true or false.
	Bool    bool
	HasBool bool
}

// Universe maps every package directory to its top-level declarations.
type Universe struct {
	Types     map[string]map[string]*TypeDecl
	Functions map[string]map[string]*ast.FuncDecl
	Constants map[string][]Const
}

// discoverUniverse scans all files to build the lookup tables used when
// resolving types, constructors and constants.
func discoverUniverse(p *Project) *Universe {
	u := &Universe{
		Types:     make(map[string]map[string]*TypeDecl),
		Functions: make(map[string]map[string]*ast.FuncDecl),
		Constants: make(map[string][]Const),
	}

	for _, file := range p.Files {
		for _, decl := range file.AST.Decls {
			switch d := decl.(type) {
			case *ast.FuncDecl:
				if d.Recv == nil {
					u.registerFunction(file, d)
				}
			case *ast.GenDecl:
				switch d.Tok {
				case token.TYPE:
					u.registerTypes(file, d)
				case token.CONST:
					u.registerConstants(file, d)
				}
			}
		}
	}
	return u
}

func (u *Universe) registerFunction(file *File, fn *ast.FuncDecl) {
	if u.Functions[file.Dir] == nil {
		u.Functions[file.Dir] = make(map[string]*ast.FuncDecl)
	}
	u.Functions[file.Dir][fn.Name.Name] = fn
}

func (u *Universe) registerTypes(file *File, gd *ast.GenDecl) {
	if u.Types[file.Dir] == nil {
		u.Types[file.Dir] = make(map[string]*TypeDecl)
	}
	for _, spec := range gd.Specs {
		ts, ok := spec.(*ast.TypeSpec)
		if !ok {
			continue
		}
		doc := ts.Doc
		if doc == nil && !gd.Lparen.IsValid() {
			doc = gd.Doc
		}
		u.Types[file.Dir][ts.Name.Name] = &TypeDecl{File: file, Spec: ts, Doc: doc}
	}
}

// registerConstants records typed constants. A spec without a type or value
// repeats the previous spec's type, the way iota blocks are written.
func (u *Universe) registerConstants(file *File, gd *ast.GenDecl) {
	var typ string
	for _, spec := range gd.Specs {
		vs, ok := spec.(*ast.ValueSpec)
		if !ok {
			continue
		}
		switch {
		case vs.Type != nil:
			if id, ok := vs.Type.(*ast.Ident); ok {
				typ = id.Name
			} else {
				typ = ""
			}
		case len(vs.Values) > 0:
			typ = ""
		}
		for i, name := range vs.Names {
			if name.Name == "_" {
				continue
			}
			c := Const{Name: name.Name, Type: typ}
			if i < len(vs.Values) {
				if v, ok := BoolValue(vs.Values[i]); ok {
					c.Bool, c.HasBool = v, true
				}
				if lit, ok := vs.Values[i].(*ast.BasicLit); ok {
					switch lit.Kind {
					case token.STRING:
						if v, err := strconv.Unquote(lit.Value); err == nil {
							c.Value, c.IsString = v, true
						}
					case token.INT:
						if v, err := strconv.ParseInt(lit.Value, 0, 64); err == nil {
							c.Int, c.HasInt = int(v), true
						}
					}
				}
			}
			u.Constants[file.Dir] = append(u.Constants[file.Dir], c)
		}
	}
}

// Type looks up a named type declared in dir.
func (p *Project) Type(dir, name string) *TypeDecl {
	return p.index.Types[dir][name]
}

// Func looks up a package level function declared in dir.
func (p *Project) Func(dir, name string) *ast.FuncDecl {
	return p.index.Functions[dir][name]
}

// EnumConstants returns the constants of dir declared with the named type,
// in declaration order.
func (p *Project) EnumConstants(dir, typeName string) []Const {
	var out []Const
	for _, c := range p.index.Constants[dir] {
		if c.Type == typeName {
			out = append(out, c)
		}
	}
	return out
}

// Constant looks up a constant declared in dir by name.
func (p *Project) Constant(dir, name string) (Const, bool) {
	for _, c := range p.index.Constants[dir] {
		if c.Name == name {
			return c, true
		}
	}
	return Const{}, false
}
