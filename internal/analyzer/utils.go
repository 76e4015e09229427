package analyzer

import (
	"go/ast"
	"go/token"
	"reflect"
	"strconv"
)

var (
	posType   = reflect.TypeOf(token.NoPos)
	objType   = reflect.TypeOf((*ast.Object)(nil))
	scopeType = reflect.TypeOf((*ast.Scope)(nil))
	docType   = reflect.TypeOf((*ast.CommentGroup)(nil))
)

// Clone deep copies a syntax tree, dropping positions, resolver objects and
// attached comments so the copy can be spliced anywhere.
func Clone[T ast.Node](n T) T {
	v := reflect.ValueOf(n)
	if !v.IsValid() || (v.Kind() == reflect.Pointer && v.IsNil()) {
		return n
	}
	return cloneValue(v).Interface().(T)
}

func cloneValue(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		switch v.Type() {
		case objType, scopeType, docType:
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(cloneValue(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(cloneValue(v.Elem()))
		return out
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			f := out.Field(i)
			if !f.CanSet() {
				continue
			}
			if v.Field(i).Type() == posType {
				continue
			}
			f.Set(cloneValue(v.Field(i)))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneValue(v.Index(i)))
		}
		return out
	}
	return v
}

// StringValue attempts to find the static string value of an expression.
// It handles string literals, constants declared in dir and concatenations.
func (p *Project) StringValue(dir string, expr ast.Expr) (string, bool) {
	switch e := expr.(type) {
	case *ast.BasicLit:
		if e.Kind == token.STRING {
			val, err := strconv.Unquote(e.Value)
			if err == nil {
				return val, true
			}
		}
	case *ast.Ident:
		if c, ok := p.Constant(dir, e.Name); ok && c.IsString {
			return c.Value, true
		}
	case *ast.ParenExpr:
		return p.StringValue(dir, e.X)
	case *ast.BinaryExpr:
		if e.Op == token.ADD {
			left, lok := p.StringValue(dir, e.X)
			right, rok := p.StringValue(dir, e.Y)
			if lok && rok {
				return left + right, true
			}
		}
	}
	return "", false
}

// IntValue attempts to resolve an expression to an integer value. It
// supports integer literals, constants declared in dir and, through
// the importing file, constants of other project packages.
func (p *Project) IntValue(file *File, expr ast.Expr) (int, bool) {
	switch e := expr.(type) {
	case *ast.BasicLit:
		if e.Kind == token.INT {
			if val, err := strconv.ParseInt(e.Value, 0, 64); err == nil {
				return int(val), true
			}
		}
	case *ast.Ident:
		if c, ok := p.Constant(file.Dir, e.Name); ok && c.HasInt {
			return c.Int, true
		}
	case *ast.SelectorExpr:
		id, ok := e.X.(*ast.Ident)
		if !ok {
			return 0, false
		}
		path, ok := ImportPathFor(file.AST, id.Name)
		if !ok {
			return 0, false
		}
		if path == "net/http" {
			if code, ok := httpStatus[e.Sel.Name]; ok {
				return code, true
			}
			return 0, false
		}
		dir, ok := p.DirForImport(path)
		if !ok {
			return 0, false
		}
		if c, ok := p.Constant(dir, e.Sel.Name); ok && c.HasInt {
			return c.Int, true
		}
	case *ast.ParenExpr:
		return p.IntValue(file, e.X)
	}
	return 0, false
}

// httpStatus covers the net/http status constants endpoints commonly use.
var httpStatus = map[string]int{
	"StatusOK":                    200,
	"StatusCreated":               201,
	"StatusAccepted":              202,
	"StatusNoContent":             204,
	"StatusMovedPermanently":      301,
	"StatusFound":                 302,
	"StatusNotModified":           304,
	"StatusBadRequest":            400,
	"StatusUnauthorized":          401,
	"StatusForbidden":             403,
	"StatusNotFound":              404,
	"StatusMethodNotAllowed":      405,
	"StatusConflict":              409,
	"StatusGone":                  410,
	"StatusRequestEntityTooLarge": 413,
	"StatusUnsupportedMediaType":  415,
	"StatusUnprocessableEntity":   422,
	"StatusTooManyRequests":       429,
	"StatusInternalServerError":   500,
	"StatusNotImplemented":        501,
	"StatusBadGateway":            502,
	"StatusServiceUnavailable":    503,
	"StatusGatewayTimeout":        504,
}

// IsNil reports whether expr is absent or the nil identifier.
func IsNil(expr ast.Expr) bool {
	if expr == nil {
		return true
	}
	id, ok := expr.(*ast.Ident)
	return ok && id.Name == "nil"
}

// BoolValue resolves the true and false identifiers.
func BoolValue(expr ast.Expr) (bool, bool) {
	id, ok := expr.(*ast.Ident)
	if !ok {
		return false, false
	}
	switch id.Name {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// BoolValue resolves an expression to a boolean. Besides the literals it
// follows bool constants declared in dir, parentheses and negation.
func (p *Project) BoolValue(dir string, expr ast.Expr) (bool, bool) {
	switch e := expr.(type) {
	case *ast.Ident:
		if v, ok := BoolValue(e); ok {
			return v, true
		}
		if c, ok := p.Constant(dir, e.Name); ok && c.HasBool {
			return c.Bool, true
		}
	case *ast.ParenExpr:
		return p.BoolValue(dir, e.X)
	case *ast.UnaryExpr:
		if e.Op == token.NOT {
			v, ok := p.BoolValue(dir, e.X)
			return !v, ok
		}
	}
	return false, false
}
