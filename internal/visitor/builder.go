package visitor

import (
	"go/ast"
	"go/token"
	"path/filepath"
	"strconv"

	"github.com/Zachacious/go-kitgen/internal/analyzer"
	"github.com/cockroachdb/errors"
	"golang.org/x/tools/go/ast/astutil"
)

// Builder is the container builder function that registrars splice their
// statements into.
type Builder struct {
	Project *analyzer.Project
	File    *analyzer.File
	Func    *ast.FuncDecl
	// Container is the name of the variable the function returns.
	Container string

	kit     string
	aliases map[string]string
	counts  map[string]int
}

// FindBuilder locates the builder function and the container variable it
// returns.
func FindBuilder(p *analyzer.Project, opts Options) (*Builder, error) {
	file := p.File(opts.ContainerFile)
	if file == nil {
		return nil, errors.WithHint(
			errors.Wrapf(ErrNoBuilder, "file %s not loaded", opts.ContainerFile),
			"set source.container to the file declaring the builder function")
	}

	var fn *ast.FuncDecl
	for _, decl := range file.AST.Decls {
		if d, ok := decl.(*ast.FuncDecl); ok && d.Recv == nil && d.Name.Name == opts.BuilderFunc {
			fn = d
			break
		}
	}
	if fn == nil || fn.Body == nil {
		return nil, errors.Wrapf(ErrNoBuilder, "%s declares no func %s", file.Rel, opts.BuilderFunc)
	}

	ret, ok := lastReturn(fn)
	if !ok || len(ret.Results) != 1 {
		return nil, errors.Wrapf(ErrNoBuilder, "%s.%s must end with `return <container>`", file.Rel, opts.BuilderFunc)
	}
	id, ok := ret.Results[0].(*ast.Ident)
	if !ok {
		return nil, errors.Wrapf(ErrNoBuilder, "%s.%s must return a container variable", file.Rel, opts.BuilderFunc)
	}

	b := &Builder{
		Project:   p,
		File:      file,
		Func:      fn,
		Container: id.Name,
		aliases:   make(map[string]string),
		counts:    make(map[string]int),
	}
	b.kit = ensureImport(p, file, opts.KitImport)
	return b, nil
}

func lastReturn(fn *ast.FuncDecl) (*ast.ReturnStmt, bool) {
	stmts := fn.Body.List
	if len(stmts) == 0 {
		return nil, false
	}
	ret, ok := stmts[len(stmts)-1].(*ast.ReturnStmt)
	return ret, ok
}

// Append inserts statements before the trailing return, which is detached
// and re-appended so it always stays last.
func (b *Builder) Append(stmts ...ast.Stmt) {
	body := b.Func.Body.List
	ret := body[len(body)-1]
	body = append(body[:len(body)-1:len(body)-1], stmts...)
	b.Func.Body.List = append(body, ret)
}

// Qualifier returns the name the builder file uses for the package in dir,
// adding a uniquely aliased import on first use. The builder's own package
// needs no qualifier.
func (b *Builder) Qualifier(dir, prefix string) string {
	if dir == b.File.Dir {
		return ""
	}
	path := b.Project.ImportPath(dir)
	if alias, ok := b.aliases[path]; ok {
		return alias
	}
	alias := prefix + strconv.Itoa(b.counts[prefix])
	b.counts[prefix]++
	astutil.AddNamedImport(b.Project.Fset, b.File.AST, alias, path)
	b.aliases[path] = alias
	return alias
}

// Kit is the builder file's name for the runtime package.
func (b *Builder) Kit() string { return b.kit }

// ensureImport returns the file's name for path, importing it when missing.
func ensureImport(p *analyzer.Project, file *analyzer.File, path string) string {
	if name := analyzer.ImportName(file.AST, path); name != "" {
		return name
	}
	if p.ImportPath(file.Dir) == path {
		return ""
	}
	astutil.AddImport(p.Fset, file.AST, path)
	return analyzer.DefaultImportName(path)
}

// sel builds x.name, or just name when x is empty.
func sel(x, name string) ast.Expr {
	if x == "" {
		return ast.NewIdent(name)
	}
	return &ast.SelectorExpr{X: ast.NewIdent(x), Sel: ast.NewIdent(name)}
}

func str(s string) *ast.BasicLit {
	return &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(s)}
}

func intLit(n int) *ast.BasicLit {
	return &ast.BasicLit{Kind: token.INT, Value: strconv.Itoa(n)}
}

func call(fun ast.Expr, args ...ast.Expr) *ast.CallExpr {
	return &ast.CallExpr{Fun: fun, Args: args}
}

// nilPointer builds (*q.T)(nil).
func nilPointer(q, name string) ast.Expr {
	return call(&ast.ParenExpr{X: &ast.StarExpr{X: sel(q, name)}}, ast.NewIdent("nil"))
}

// factory builds the container factory for a class: the reflective
// constructor call when the class has an injectable constructor, kit.New
// otherwise.
func (b *Builder) factory(q string, inj injectableLookup, c *analyzer.Class) ast.Expr {
	if i := inj(c); i != nil && i.Constructor != nil {
		args := []ast.Expr{sel(q, i.Constructor.Name.Name)}
		for _, key := range i.Keys() {
			args = append(args, str(key))
		}
		return call(sel(b.kit, "Constructor"), args...)
	}
	return call(&ast.IndexExpr{X: sel(b.kit, "New"), Index: sel(q, c.Name)})
}

func relTo(base, path string) (string, bool) {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == "." || rel == ".." || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
