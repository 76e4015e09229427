package kit

import (
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var routeParam = regexp.MustCompile(`\{([^{}/]+)\}`)

// BuildRoute combines an endpoint path with its optional route. A route
// starting with "/" is absolute; any other route is appended to the
// endpoint path. The result uses {name} parameter tokens.
func BuildRoute(endpointPath, route string) string {
	base := "/" + strings.Trim(endpointPath, "/")
	switch {
	case route == "":
		return base
	case strings.HasPrefix(route, "/"):
		return route
	case base == "/":
		return "/" + route
	}
	return base + "/" + route
}

// EchoPath rewrites every {name} token into echo's :name form.
func EchoPath(route string) string {
	return routeParam.ReplaceAllString(route, ":$1")
}

// RouteOf returns the document route of an endpoint binding.
func RouteOf(b EndpointBinding) string {
	var route string
	if r, ok := b.Static.(Router); ok {
		route = r.Route()
	}
	return BuildRoute(b.Path, route)
}

// MethodsOf returns the HTTP methods of an endpoint binding, GET by default.
func MethodsOf(b EndpointBinding) []string {
	if m, ok := b.Static.(MethodLister); ok {
		if methods := m.Methods(); len(methods) > 0 {
			out := make([]string, len(methods))
			for i, method := range methods {
				out[i] = strings.ToUpper(method)
			}
			return out
		}
	}
	return []string{http.MethodGet}
}

// Mount registers every middleware, in ascending order, and every endpoint
// of the container on e. Each request resolves a fresh endpoint instance.
func Mount(e *echo.Echo, c *Container) error {
	for _, mb := range c.Middleware() {
		v, err := mb.Factory(c)
		if err != nil {
			return errors.Wrapf(err, "build middleware %d", mb.Order)
		}
		m, ok := v.(Middleware)
		if !ok {
			return errors.Newf("middleware %d: %T does not implement kit.Middleware", mb.Order, v)
		}
		e.Use(m.Execute)
	}

	for _, b := range c.Endpoints() {
		methods := MethodsOf(b)
		var mws []echo.MiddlewareFunc
		if opts, ok := b.Static.(BodyParserConfigurer); ok && acceptsBody(methods) {
			if limit := opts.BodyParserOptions().Limit; limit != "" {
				mws = append(mws, middleware.BodyLimit(limit))
			}
		}
		e.Match(methods, EchoPath(RouteOf(b)), executor(c, b), mws...)
	}
	return nil
}

func acceptsBody(methods []string) bool {
	for _, m := range methods {
		switch m {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			return true
		}
	}
	return false
}

type contextSetter interface {
	SetContext(echo.Context)
}

func executor(c *Container, b EndpointBinding) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		v, err := b.Factory(c)
		if err != nil {
			return errors.Wrapf(err, "build endpoint %s", b.Path)
		}
		v = addressable(v)
		if s, ok := v.(contextSetter); ok {
			s.SetContext(ctx)
		}

		res, err := execute(v)
		if err != nil {
			return err
		}
		return respond(ctx, res)
	}
}

// addressable turns a struct value into a pointer so pointer-receiver
// methods are reachable.
func addressable(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Struct {
		return v
	}
	p := reflect.New(rv.Type())
	p.Elem().Set(rv)
	return p.Interface()
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// execute calls Execute. Endpoints returning a concrete type instead of any
// are called through reflection.
func execute(v any) (any, error) {
	if ep, ok := v.(Endpoint); ok {
		return ep.Execute()
	}
	m := reflect.ValueOf(v).MethodByName("Execute")
	if !m.IsValid() || m.Type().NumIn() != 0 {
		return nil, errors.Newf("%T has no parameterless Execute method", v)
	}
	out := m.Call(nil)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if out[0].Type() == errorType {
			if out[0].IsNil() {
				return nil, nil
			}
			return nil, out[0].Interface().(error)
		}
		return out[0].Interface(), nil
	default:
		last := out[len(out)-1]
		if last.Type() == errorType && !last.IsNil() {
			return nil, last.Interface().(error)
		}
		return out[0].Interface(), nil
	}
}

func respond(c echo.Context, res any) error {
	if c.Response().Committed {
		return nil
	}
	switch r := res.(type) {
	case nil:
		return c.NoContent(http.StatusNoContent)
	case string:
		return c.String(http.StatusOK, r)
	case []byte:
		return c.Blob(http.StatusOK, echo.MIMEOctetStream, r)
	}
	return c.JSON(http.StatusOK, res)
}
