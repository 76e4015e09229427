package visitor

import (
	"go/ast"
	"go/types"
	"strings"

	"github.com/Zachacious/go-kitgen/internal/analyzer"
	"github.com/Zachacious/go-kitgen/internal/model"
	"github.com/cockroachdb/errors"
)

// AddInjectables marks every struct type as injectable and derives an
// injection key for each constructor parameter. Parameters annotated with
// @Inject("key") keep their explicit key and lose the annotation. Types
// without a usable constructor are injectable through their zero value.
func AddInjectables(p *analyzer.Project) ([]*model.Injectable, error) {
	var out []*model.Injectable
	for _, c := range p.Classes() {
		inj := &model.Injectable{Class: c}
		out = append(out, inj)

		ctor, file := p.Constructor(c)
		if ctor == nil || file == nil || !constructs(ctor, c.Name) {
			continue
		}

		params := ctor.Type.Params
		var injParams []model.InjectionParam
		usable := true
		for _, field := range params.List {
			if _, variadic := field.Type.(*ast.Ellipsis); variadic {
				usable = false
				break
			}

			key := typeKey(p, file, field.Type)
			explicit := false
			if d := analyzer.FindDecorator(analyzer.ParamDecorators(file.AST, params, field), "Inject"); d != nil {
				k, ok := p.StringValue(file.Dir, d.Arg(0))
				if !ok {
					return nil, errors.Wrapf(ErrBadDecorator, "%s: @Inject on %s needs a string key", file.Rel, ctor.Name.Name)
				}
				key, explicit = k, true
				analyzer.RemoveDecorator(file.AST, d)
			}

			if len(field.Names) == 0 {
				injParams = append(injParams, model.InjectionParam{Key: key, Explicit: explicit})
				continue
			}
			for _, name := range field.Names {
				injParams = append(injParams, model.InjectionParam{Name: name.Name, Key: key, Explicit: explicit})
			}
		}
		if !usable {
			continue
		}
		inj.Constructor = ctor
		inj.Params = injParams
	}
	return out, nil
}

// constructs reports whether fn returns T or *T as its first result.
func constructs(fn *ast.FuncDecl, name string) bool {
	res := fn.Type.Results
	if res == nil || len(res.List) == 0 || len(res.List) > 2 {
		return false
	}
	expr := res.List[0].Type
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}
	id, ok := expr.(*ast.Ident)
	return ok && id.Name == name
}

// typeKey renders a parameter type the way reflect prints it: local
// identifiers are qualified with their package name and imported ones use
// the imported package's name.
func typeKey(p *analyzer.Project, file *analyzer.File, expr ast.Expr) string {
	var b strings.Builder
	writeTypeKey(&b, p, file, expr)
	return b.String()
}

func writeTypeKey(b *strings.Builder, p *analyzer.Project, file *analyzer.File, expr ast.Expr) {
	switch e := expr.(type) {
	case *ast.Ident:
		if types.Universe.Lookup(e.Name) != nil {
			if e.Name == "any" {
				b.WriteString("interface {}")
				return
			}
			b.WriteString(e.Name)
			return
		}
		b.WriteString(p.PackageName(file.Dir))
		b.WriteString(".")
		b.WriteString(e.Name)
	case *ast.SelectorExpr:
		pkg := types.ExprString(e.X)
		if path, ok := analyzer.ImportPathFor(file.AST, pkg); ok {
			if dir, ok := p.DirForImport(path); ok {
				pkg = p.PackageName(dir)
			} else {
				pkg = analyzer.DefaultImportName(path)
			}
		}
		b.WriteString(pkg)
		b.WriteString(".")
		b.WriteString(e.Sel.Name)
	case *ast.StarExpr:
		b.WriteString("*")
		writeTypeKey(b, p, file, e.X)
	case *ast.ArrayType:
		b.WriteString("[")
		if e.Len != nil {
			b.WriteString(types.ExprString(e.Len))
		}
		b.WriteString("]")
		writeTypeKey(b, p, file, e.Elt)
	case *ast.MapType:
		b.WriteString("map[")
		writeTypeKey(b, p, file, e.Key)
		b.WriteString("]")
		writeTypeKey(b, p, file, e.Value)
	case *ast.IndexExpr:
		writeTypeKey(b, p, file, e.X)
		b.WriteString("[")
		writeTypeKey(b, p, file, e.Index)
		b.WriteString("]")
	case *ast.IndexListExpr:
		writeTypeKey(b, p, file, e.X)
		b.WriteString("[")
		for i, idx := range e.Indices {
			if i > 0 {
				b.WriteString(",")
			}
			writeTypeKey(b, p, file, idx)
		}
		b.WriteString("]")
	case *ast.ParenExpr:
		writeTypeKey(b, p, file, e.X)
	default:
		b.WriteString(types.ExprString(expr))
	}
}
