package visitor

import (
	"go/ast"
	"go/token"
	"net/http"
	"strings"

	"github.com/Zachacious/go-kitgen/internal/analyzer"
	"github.com/Zachacious/go-kitgen/internal/model"
	"github.com/cockroachdb/errors"
)

var verbs = map[string]string{
	"Get":    http.MethodGet,
	"Post":   http.MethodPost,
	"Put":    http.MethodPut,
	"Patch":  http.MethodPatch,
	"Delete": http.MethodDelete,
}

var httpMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodConnect: true,
	http.MethodOptions: true,
	http.MethodTrace:   true,
}

// TranspileDecorators rewrites the Route, Methods, verb shortcut and
// BodyParserOptions decorators of each endpoint's entry method into
// generated Route(), Methods() and BodyParserOptions() methods, removing
// the decorators. Methods the type already declares are read, never
// rewritten. Unknown decorators are left alone.
//
// It returns one manifest per endpoint describing everything later steps
// need: route, methods, body parser, documentation and parameters.
func TranspileDecorators(p *analyzer.Project, endpoints []*model.Endpoint, opts Options) ([]*model.EndpointManifest, error) {
	var out []*model.EndpointManifest
	for _, ep := range endpoints {
		m, err := transpileEndpoint(p, ep, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

type declared struct {
	route, methods, bodyParser bool
}

func transpileEndpoint(p *analyzer.Project, ep *model.Endpoint, opts Options) (*model.EndpointManifest, error) {
	c := ep.Class
	entry := c.Method(EntryMethod)
	if entry == nil {
		return nil, errors.Wrapf(ErrNoEntryMethod, "%s: %s", c.File.Rel, c.Name)
	}

	m := &model.EndpointManifest{Endpoint: ep, Entry: entry}
	doc := analyzer.ParseDocComment(c.Doc)
	m.Summary, m.Description = doc.Summary, doc.Description

	have, err := readDeclared(p, c, m)
	if err != nil {
		return nil, err
	}
	where := func(d *analyzer.Decorator) string {
		return entry.File.Rel + ": " + c.Name + " @" + d.Name
	}

	var (
		emit     declared
		tagsSeen bool
	)
	decorators := analyzer.ParseDecorators(entry.Decl.Doc)
	for _, d := range decorators {
		consumed := true
		switch d.Name {
		case "Route":
			route, ok := p.StringValue(entry.File.Dir, d.Arg(0))
			if !ok {
				return nil, errors.Wrapf(ErrBadDecorator, "%s needs a string route", where(d))
			}
			if !have.route {
				m.Route, m.HasRoute, emit.route = route, true, true
			}
		case "Methods":
			var methods []string
			for _, arg := range d.Args {
				method, ok := p.StringValue(entry.File.Dir, arg)
				if !ok {
					return nil, errors.Wrapf(ErrBadDecorator, "%s takes string methods", where(d))
				}
				method = strings.ToUpper(method)
				if !httpMethods[method] {
					return nil, errors.Wrapf(ErrBadDecorator, "%s: unknown HTTP method %q", where(d), method)
				}
				methods = appendUnique(methods, method)
			}
			if !have.methods {
				m.Methods, emit.methods = methods, true
			}
		case "Get", "Post", "Put", "Patch", "Delete":
			if !have.methods {
				if !emit.methods {
					m.Methods = nil
				}
				m.Methods = appendUnique(m.Methods, verbs[d.Name])
				emit.methods = true
			}
			if !analyzer.IsNil(d.Arg(0)) {
				route, ok := p.StringValue(entry.File.Dir, d.Arg(0))
				if !ok {
					return nil, errors.Wrapf(ErrBadDecorator, "%s needs a string route", where(d))
				}
				if !have.route {
					m.Route, m.HasRoute, emit.route = route, true, true
				}
			}
		case "BodyParserOptions":
			expr := d.Arg(0)
			if expr == nil {
				return nil, errors.Wrapf(ErrBadDecorator, "%s needs an options value", where(d))
			}
			if !have.bodyParser {
				bp, err := parseBodyParser(p, entry.File.Dir, expr)
				if err != nil {
					return nil, errors.Wrap(err, where(d))
				}
				m.BodyParser, m.HasBodyParser, emit.bodyParser = bp, true, true
			}
		default:
			consumed = false
			if err := readMetadata(p, entry.File, d, m, &tagsSeen); err != nil {
				return nil, errors.Wrap(err, where(d))
			}
		}
		if consumed && analyzer.RemoveDecorator(entry.File.AST, d) {
			entry.Decl.Doc = nil
		}
	}
	if len(m.Methods) == 0 {
		m.Methods = []string{http.MethodGet}
	}

	params, err := readParams(p, entry)
	if err != nil {
		return nil, err
	}
	m.Params = params

	emitMethods(p, c, entry.File, m, emit, opts)
	return m, nil
}

func appendUnique(list []string, v string) []string {
	for _, cur := range list {
		if cur == v {
			return list
		}
	}
	return append(list, v)
}

// readMetadata records the documentation decorators. They stay in the
// source as comments.
func readMetadata(p *analyzer.Project, file *analyzer.File, d *analyzer.Decorator, m *model.EndpointManifest, tagsSeen *bool) error {
	switch d.Name {
	case "Tags":
		if *tagsSeen {
			return nil
		}
		*tagsSeen = true
		for _, arg := range d.Args {
			tag, ok := p.StringValue(file.Dir, arg)
			if !ok {
				return errors.Wrap(ErrBadDecorator, "tags must be strings")
			}
			m.Tags = append(m.Tags, tag)
		}
	case "Security":
		name, ok := p.StringValue(file.Dir, d.Arg(0))
		if !ok {
			return errors.Wrap(ErrBadDecorator, "security needs a scheme name")
		}
		sec := model.Security{Name: name, Scopes: []string{}}
		for _, arg := range d.Args[1:] {
			scopes, ok := stringList(p, file.Dir, arg)
			if !ok {
				return errors.Wrap(ErrBadDecorator, "security scopes must be strings")
			}
			sec.Scopes = append(sec.Scopes, scopes...)
		}
		m.Security = append(m.Security, sec)
	case "Response":
		status, ok := p.IntValue(file, d.Arg(0))
		if !ok {
			return errors.Wrap(ErrBadDecorator, "response needs an integer status code")
		}
		resp := model.Response{Status: status, Type: d.TypeArg(0)}
		if arg := d.Arg(1); !analyzer.IsNil(arg) {
			if resp.Description, ok = p.StringValue(file.Dir, arg); !ok {
				return errors.Wrap(ErrBadDecorator, "response description must be a string")
			}
		}
		if arg := d.Arg(2); !analyzer.IsNil(arg) {
			if resp.MediaType, ok = p.StringValue(file.Dir, arg); !ok {
				return errors.Wrap(ErrBadDecorator, "response media type must be a string")
			}
		}
		m.Responses = append(m.Responses, resp)
	case "Deprecated":
		m.Deprecated = true
	case "Hidden":
		m.Hidden = true
	}
	return nil
}

// stringList accepts a string or a []string{...} literal.
func stringList(p *analyzer.Project, dir string, expr ast.Expr) ([]string, bool) {
	if s, ok := p.StringValue(dir, expr); ok {
		return []string{s}, true
	}
	lit, ok := expr.(*ast.CompositeLit)
	if !ok {
		return nil, false
	}
	var out []string
	for _, elt := range lit.Elts {
		s, ok := p.StringValue(dir, elt)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// readDeclared loads the values of Route, Methods and BodyParserOptions
// methods the type already declares, e.g. from an earlier run.
func readDeclared(p *analyzer.Project, c *analyzer.Class, m *model.EndpointManifest) (declared, error) {
	var have declared
	if meth := c.Method("Route"); meth != nil {
		have.route = true
		if expr := returned(meth.Decl); expr != nil {
			m.Route, m.HasRoute = p.StringValue(meth.File.Dir, expr)
		}
	}
	if meth := c.Method("Methods"); meth != nil {
		have.methods = true
		if expr := returned(meth.Decl); expr != nil {
			if list, ok := stringList(p, meth.File.Dir, expr); ok {
				for _, method := range list {
					if method = strings.ToUpper(method); httpMethods[method] {
						m.Methods = appendUnique(m.Methods, method)
					}
				}
			}
		}
	}
	if meth := c.Method("BodyParserOptions"); meth != nil {
		have.bodyParser = true
		expr := returned(meth.Decl)
		if expr == nil {
			return have, errors.WithHint(
				errors.Wrapf(ErrBadDecorator, "%s: %s.BodyParserOptions must return a single value", meth.File.Rel, c.Name),
				"return a kit.BodyParserOptions literal")
		}
		bp, err := parseBodyParser(p, meth.File.Dir, expr)
		if err != nil {
			return have, errors.Wrapf(err, "%s: %s.BodyParserOptions", meth.File.Rel, c.Name)
		}
		m.BodyParser, m.HasBodyParser = bp, true
	}
	return have, nil
}

// returned gives the expression of a single-statement `return x` body.
func returned(fn *ast.FuncDecl) ast.Expr {
	if fn.Body == nil || len(fn.Body.List) != 1 {
		return nil
	}
	ret, ok := fn.Body.List[0].(*ast.ReturnStmt)
	if !ok || len(ret.Results) != 1 {
		return nil
	}
	return ret.Results[0]
}

// parseBodyParser reads a kit.BodyParserOptions{...} literal. Every field
// must resolve statically, since the generated method and the document are
// both built from the resolved values.
func parseBodyParser(p *analyzer.Project, dir string, expr ast.Expr) (model.BodyParser, error) {
	var bp model.BodyParser
	if u, ok := expr.(*ast.UnaryExpr); ok && u.Op == token.AND {
		expr = u.X
	}
	lit, ok := expr.(*ast.CompositeLit)
	if !ok {
		return bp, errors.WithHint(errors.Wrap(ErrBadDecorator, "body parser options must be a literal"),
			"write kit.BodyParserOptions{Multipart: true, Limit: \"2M\"}")
	}
	for _, elt := range lit.Elts {
		kv, ok := elt.(*ast.KeyValueExpr)
		if !ok {
			return bp, errors.Wrap(ErrBadDecorator, "body parser options need keyed fields")
		}
		key, ok := kv.Key.(*ast.Ident)
		if !ok {
			return bp, errors.Wrap(ErrBadDecorator, "body parser options need keyed fields")
		}
		switch key.Name {
		case "Multipart":
			if bp.Multipart, ok = p.BoolValue(dir, kv.Value); !ok {
				return bp, errors.Wrap(ErrBadDecorator, "Multipart must be a bool literal or constant")
			}
		case "Limit":
			if bp.Limit, ok = p.StringValue(dir, kv.Value); !ok {
				return bp, errors.Wrap(ErrBadDecorator, "Limit must be a string literal or constant")
			}
		default:
			return bp, errors.Wrapf(ErrBadDecorator, "unknown body parser option %s", key.Name)
		}
	}
	return bp, nil
}

// emitMethods appends the generated methods to the file of the entry method.
func emitMethods(p *analyzer.Project, c *analyzer.Class, file *analyzer.File, m *model.EndpointManifest, emit declared, opts Options) {
	if emit.route {
		file.Append(method(c.Name, "Route", ast.NewIdent("string"), str(m.Route)))
	}
	if emit.methods {
		elts := make([]ast.Expr, len(m.Methods))
		for i, verb := range m.Methods {
			elts[i] = str(verb)
		}
		file.Append(method(c.Name, "Methods", stringSlice(), &ast.CompositeLit{Type: stringSlice(), Elts: elts}))
	}
	if emit.bodyParser {
		kitName := ensureImport(p, file, opts.KitImport)
		var elts []ast.Expr
		if m.BodyParser.Multipart {
			elts = append(elts, &ast.KeyValueExpr{Key: ast.NewIdent("Multipart"), Value: ast.NewIdent("true")})
		}
		if m.BodyParser.Limit != "" {
			elts = append(elts, &ast.KeyValueExpr{Key: ast.NewIdent("Limit"), Value: str(m.BodyParser.Limit)})
		}
		value := &ast.CompositeLit{Type: sel(kitName, "BodyParserOptions"), Elts: elts}
		file.Append(method(c.Name, "BodyParserOptions", sel(kitName, "BodyParserOptions"), value))
	}
}

func stringSlice() ast.Expr {
	return &ast.ArrayType{Elt: ast.NewIdent("string")}
}

// method builds `func (*T) name() result { return value }`. The receiver is
// unnamed so the method works on the nil pointer the container binds.
func method(typeName, name string, result, value ast.Expr) *ast.FuncDecl {
	return &ast.FuncDecl{
		Recv: &ast.FieldList{List: []*ast.Field{{Type: &ast.StarExpr{X: ast.NewIdent(typeName)}}}},
		Name: ast.NewIdent(name),
		Type: &ast.FuncType{
			Params:  &ast.FieldList{},
			Results: &ast.FieldList{List: []*ast.Field{{Type: result}}},
		},
		Body: &ast.BlockStmt{List: []ast.Stmt{&ast.ReturnStmt{Results: []ast.Expr{value}}}},
	}
}

// readParams records each entry-method parameter with its source decorator.
// Missing or unknown sources are recorded, not rejected, so that the schema
// generator and the parameter transpiler report them.
func readParams(p *analyzer.Project, entry *analyzer.Method) ([]model.Param, error) {
	params := entry.Decl.Type.Params
	var out []model.Param
	for _, field := range params.List {
		decorators := analyzer.ParamDecorators(entry.File.AST, params, field)
		var src *analyzer.Decorator
		for _, d := range decorators {
			if strings.HasPrefix(d.Name, "From") {
				src = d
				break
			}
		}
		if src == nil && len(decorators) > 0 {
			src = decorators[0]
		}

		if len(field.Names) == 0 {
			return nil, errors.Wrapf(ErrUnnamedParameter, "%s: %s.%s", entry.File.Rel, analyzer.ReceiverType(entry.Decl), EntryMethod)
		}
		if src != nil && len(field.Names) > 1 && !analyzer.IsNil(src.Arg(0)) && src.Name != "FromBody" {
			return nil, errors.Wrapf(ErrAmbiguousParameter, "%s: %s.%s", entry.File.Rel, analyzer.ReceiverType(entry.Decl), EntryMethod)
		}

		for _, name := range field.Names {
			param := model.Param{Name: name.Name, Type: field.Type, Key: name.Name}
			if src != nil {
				param.Decorator = src.Name
				if err := readSource(p, entry.File.Dir, src, &param); err != nil {
					return nil, errors.Wrapf(err, "%s: %s.%s parameter %s", entry.File.Rel, analyzer.ReceiverType(entry.Decl), EntryMethod, name.Name)
				}
			}
			out = append(out, param)
		}
	}
	return out, nil
}

// readSource fills the parameter from FromHeader/FromQuery(name,
// description, required), FromRoute(name, description) or
// FromBody("json"|"form").
func readSource(p *analyzer.Project, dir string, d *analyzer.Decorator, param *model.Param) error {
	src, ok := model.SourceFromDecorator(d.Name)
	if !ok {
		return nil
	}
	param.Source = src

	if src == model.SourceBody {
		if arg := d.Arg(0); !analyzer.IsNil(arg) {
			kind, ok := p.StringValue(dir, arg)
			if !ok {
				return errors.Wrap(ErrBadDecorator, "body encoding must be a string")
			}
			param.Form = kind == "form"
		}
		param.Required = true
		return nil
	}

	if arg := d.Arg(0); !analyzer.IsNil(arg) {
		key, ok := p.StringValue(dir, arg)
		if !ok {
			return errors.Wrap(ErrBadDecorator, "parameter name must be a string")
		}
		param.Key = key
	}
	if arg := d.Arg(1); !analyzer.IsNil(arg) {
		desc, ok := p.StringValue(dir, arg)
		if !ok {
			return errors.Wrap(ErrBadDecorator, "parameter description must be a string")
		}
		param.Description = desc
	}
	if src == model.SourceRoute {
		param.Required = true
		return nil
	}
	if arg := d.Arg(2); !analyzer.IsNil(arg) {
		if param.Required, ok = p.BoolValue(dir, arg); !ok {
			return errors.Wrap(ErrBadDecorator, "required flag must be a bool literal or constant")
		}
	}
	return nil
}
