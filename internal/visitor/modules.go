package visitor

import (
	"go/ast"
	"strings"

	"github.com/Zachacious/go-kitgen/internal/analyzer"
	"github.com/Zachacious/go-kitgen/internal/model"
)

// RegisterContainerModules finds every file carrying the module suffix and
// splices a Load call into the builder for each of its exported
// `func X(c *kit.Container)` functions.
func RegisterContainerModules(p *analyzer.Project, b *Builder, opts Options) []*model.ContainerModule {
	var out []*model.ContainerModule
	for _, file := range p.Files {
		if !strings.HasSuffix(file.Rel, opts.ModuleSuffix) {
			continue
		}
		kitName := analyzer.ImportName(file.AST, opts.KitImport)
		inKit := p.ImportPath(file.Dir) == opts.KitImport

		for _, decl := range file.AST.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil || !fn.Name.IsExported() || fn.Type.TypeParams != nil {
				continue
			}
			if !takesContainer(fn, kitName, inKit) {
				continue
			}

			q := b.Qualifier(file.Dir, "module")
			b.Append(&ast.ExprStmt{X: call(sel(b.Container, "Load"), sel(q, fn.Name.Name))})
			out = append(out, &model.ContainerModule{File: file, Func: fn.Name.Name, Alias: q})
		}
	}
	return out
}

// takesContainer matches the `func(*kit.Container)` module signature.
func takesContainer(fn *ast.FuncDecl, kitName string, inKit bool) bool {
	if fn.Type.Results != nil && len(fn.Type.Results.List) > 0 {
		return false
	}
	params := fn.Type.Params.List
	if len(params) != 1 || len(params[0].Names) > 1 {
		return false
	}
	star, ok := params[0].Type.(*ast.StarExpr)
	if !ok {
		return false
	}
	switch t := star.X.(type) {
	case *ast.SelectorExpr:
		id, ok := t.X.(*ast.Ident)
		return ok && kitName != "" && id.Name == kitName && t.Sel.Name == "Container"
	case *ast.Ident:
		return inKit && t.Name == "Container"
	}
	return false
}
