package visitor

import (
	"go/ast"
	"go/token"
	"strconv"
	"strings"

	"github.com/Zachacious/go-kitgen/internal/analyzer"
	"github.com/Zachacious/go-kitgen/internal/model"
	"github.com/cockroachdb/errors"
)

// TranspileParameters turns the decorated parameters of every entry method
// into extraction statements at the top of its body, then empties the
// parameter list so the method matches the Endpoint contract:
//
//	func (e *Foo) Execute( /* @FromRoute("bar") */ bar string) (*Out, error)
//
// becomes
//
//	func (e *Foo) Execute() (*Out, error) {
//		var bar string
//		if err := kit.FromRoute(e.Ctx, "bar", &bar); err != nil {
//			return nil, err
//		}
//		...
func TranspileParameters(p *analyzer.Project, manifests []*model.EndpointManifest, opts Options) error {
	for _, m := range manifests {
		if err := transpileParameters(p, m, opts); err != nil {
			return err
		}
	}
	return nil
}

func transpileParameters(p *analyzer.Project, m *model.EndpointManifest, opts Options) error {
	fn, file := m.Entry.Decl, m.Entry.File
	params := fn.Type.Params
	if params == nil || len(params.List) == 0 || fn.Body == nil {
		return nil
	}
	where := file.Rel + ": " + m.Name() + "." + EntryMethod

	for _, param := range m.Params {
		if param.Decorator == "" {
			return errors.WithHint(
				errors.Wrapf(ErrMissingSource, "%s parameter %s", where, param.Name),
				"annotate it with @FromRoute, @FromQuery, @FromHeader or @FromBody")
		}
		if param.Source == "" {
			return errors.Wrapf(ErrUnknownSource, "%s parameter %s: @%s", where, param.Name, param.Decorator)
		}
	}

	results := fn.Type.Results
	if results == nil || len(results.List) == 0 || !isError(results.List[len(results.List)-1].Type) {
		return errors.Wrap(ErrEntrySignature, where)
	}
	var zeros []ast.Expr
	for _, field := range results.List[:len(results.List)-1] {
		n := max(len(field.Names), 1)
		for range n {
			zeros = append(zeros, zeroValue(field.Type))
		}
	}

	recv := receiverName(fn, m.Params)
	kitName := ensureImport(p, file, opts.KitImport)
	ctx := &ast.SelectorExpr{X: ast.NewIdent(recv), Sel: ast.NewIdent("Ctx")}

	var stmts []ast.Stmt
	for _, param := range m.Params {
		decl, dst := declareParam(param)
		stmts = append(stmts, decl)

		var extract ast.Expr
		switch param.Source {
		case model.SourceBody:
			extract = call(sel(kitName, "FromBody"), ctx, dst)
		case model.SourceHeader:
			extract = call(sel(kitName, "FromHeader"), ctx, str(strings.ToLower(param.Key)), dst)
		case model.SourceQuery:
			extract = call(sel(kitName, "FromQuery"), ctx, str(param.Key), dst)
		case model.SourceRoute:
			extract = call(sel(kitName, "FromRoute"), ctx, str(param.Key), dst)
		}
		stmts = append(stmts, returnOnError(extract, zeros))
	}

	fn.Body.List = append(stmts, fn.Body.List...)
	analyzer.RemoveCommentsIn(file.AST, params.Opening, params.Closing)
	params.List = nil
	return nil
}

// receiverName names the receiver so the body can reach the request
// context, avoiding names taken by parameters.
func receiverName(fn *ast.FuncDecl, params []model.Param) string {
	field := fn.Recv.List[0]
	if len(field.Names) == 1 && field.Names[0].Name != "_" {
		return field.Names[0].Name
	}
	taken := make(map[string]bool, len(params))
	for _, param := range params {
		taken[param.Name] = true
	}
	name := "e"
	for i := 1; taken[name]; i++ {
		name = "e" + strconv.Itoa(i)
	}
	field.Names = []*ast.Ident{ast.NewIdent(name)}
	return name
}

// declareParam declares the local variable for a parameter and returns the
// expression handed to the extractor. Pointer bodies are allocated with new.
func declareParam(param model.Param) (ast.Stmt, ast.Expr) {
	if star, ok := param.Type.(*ast.StarExpr); ok && param.Source == model.SourceBody {
		return &ast.AssignStmt{
			Lhs: []ast.Expr{ast.NewIdent(param.Name)},
			Tok: token.DEFINE,
			Rhs: []ast.Expr{call(ast.NewIdent("new"), analyzer.Clone(star.X))},
		}, ast.NewIdent(param.Name)
	}
	return &ast.DeclStmt{Decl: &ast.GenDecl{
		Tok: token.VAR,
		Specs: []ast.Spec{&ast.ValueSpec{
			Names: []*ast.Ident{ast.NewIdent(param.Name)},
			Type:  analyzer.Clone(param.Type),
		}},
	}}, &ast.UnaryExpr{Op: token.AND, X: ast.NewIdent(param.Name)}
}

func returnOnError(extract ast.Expr, zeros []ast.Expr) ast.Stmt {
	results := append(append([]ast.Expr(nil), zeros...), ast.NewIdent("err"))
	return &ast.IfStmt{
		Init: &ast.AssignStmt{
			Lhs: []ast.Expr{ast.NewIdent("err")},
			Tok: token.DEFINE,
			Rhs: []ast.Expr{extract},
		},
		Cond: &ast.BinaryExpr{X: ast.NewIdent("err"), Op: token.NEQ, Y: ast.NewIdent("nil")},
		Body: &ast.BlockStmt{List: []ast.Stmt{&ast.ReturnStmt{Results: results}}},
	}
}

func isError(t ast.Expr) bool {
	id, ok := t.(*ast.Ident)
	return ok && id.Name == "error"
}

// zeroValue builds the zero value expression for a result type.
func zeroValue(t ast.Expr) ast.Expr {
	switch e := t.(type) {
	case *ast.StarExpr, *ast.MapType, *ast.InterfaceType, *ast.FuncType, *ast.ChanType:
		return ast.NewIdent("nil")
	case *ast.ArrayType:
		if e.Len == nil {
			return ast.NewIdent("nil")
		}
	case *ast.Ident:
		switch e.Name {
		case "error", "any":
			return ast.NewIdent("nil")
		case "string":
			return str("")
		case "bool":
			return ast.NewIdent("false")
		case "int", "int8", "int16", "int32", "int64",
			"uint", "uint8", "uint16", "uint32", "uint64", "uintptr",
			"float32", "float64", "byte", "rune":
			return intLit(0)
		}
	}
	return &ast.StarExpr{X: call(ast.NewIdent("new"), analyzer.Clone(t))}
}
