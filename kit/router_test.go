package kit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRoute(t *testing.T) {
	tests := []struct {
		path, route, want string
	}{
		{"v1/foo", "", "/v1/foo"},
		{"v1/foo", "{bar}", "/v1/foo/{bar}"},
		{"/v1/foo/", "{bar}/items", "/v1/foo/{bar}/items"},
		{"v1/foo", "/things/{id}", "/things/{id}"},
		{"", "health", "/health"},
		{"", "", "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BuildRoute(tt.path, tt.route), "%q + %q", tt.path, tt.route)
	}
}

func TestEchoPath(t *testing.T) {
	assert.Equal(t, "/v1/foo/:bar/items/:id", EchoPath("/v1/foo/{bar}/items/{id}"))
	assert.Equal(t, "/v1/foo", EchoPath("/v1/foo"))
}

type getFoo struct {
	BaseEndpoint
	prefix string
}

func (*getFoo) Route() string { return "{bar}" }

func (e *getFoo) Execute() (any, error) {
	var bar string
	if err := FromRoute(e.Ctx, "bar", &bar); err != nil {
		return nil, err
	}
	var limit int
	if err := FromQuery(e.Ctx, "limit", &limit); err != nil {
		return nil, err
	}
	var trace string
	if err := FromHeader(e.Ctx, "x-trace", &trace); err != nil {
		return nil, err
	}
	return map[string]any{"bar": e.prefix + bar, "limit": limit, "trace": trace}, nil
}

type fooInput struct {
	Name string `json:"name"`
}

type createFoo struct{ BaseEndpoint }

func (*createFoo) Methods() []string { return []string{"post", "PUT"} }

func (*createFoo) BodyParserOptions() BodyParserOptions { return BodyParserOptions{Limit: "1K"} }

func (e *createFoo) Execute() (*fooInput, error) {
	in := new(fooInput)
	if err := FromBody(e.Ctx, in); err != nil {
		return nil, err
	}
	return in, nil
}

type ping struct{ BaseEndpoint }

func (*ping) Route() string { return "/healthz" }

func (*ping) Execute() (any, error) { return nil, nil }

type text struct{ BaseEndpoint }

func (*text) Execute() (string, error) { return "hello", nil }

type stamp struct {
	BaseMiddleware
	value string
}

func (m *stamp) Execute(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("X-Stamp", m.value)
		return next(c)
	}
}

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	c := NewContainer()
	c.ProvideValue("prefix", "id-")
	c.BindMiddleware(200, func(*Container) (any, error) { return &stamp{value: "b"}, nil })
	c.BindMiddleware(100, func(*Container) (any, error) { return &stamp{value: "a"}, nil })
	c.BindEndpoint("v1/foo", (*getFoo)(nil), Constructor(func(prefix string) *getFoo {
		return &getFoo{prefix: prefix}
	}, "prefix"))
	c.BindEndpoint("v2/items", (*createFoo)(nil), New[createFoo]())
	c.BindEndpoint("ping", (*ping)(nil), New[ping]())
	c.BindEndpoint("text", (*text)(nil), func(*Container) (any, error) { return text{}, nil })

	e := echo.New()
	require.NoError(t, Mount(e, c))
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMount(t *testing.T) {
	e := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/foo/42?limit=5", nil)
	req.Header.Set("X-Trace", "t1")
	rec := serve(e, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, map[string]any{"bar": "id-42", "limit": float64(5), "trace": "t1"}, got)
	assert.Equal(t, []string{"a", "b"}, rec.Header().Values("X-Stamp"), "middleware runs in ascending order")

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/v1/foo/42?limit=many", nil))
	assert.GreaterOrEqual(t, rec.Code, 400)

	for _, method := range []string{http.MethodPost, http.MethodPut} {
		req = httptest.NewRequest(method, "/v2/items", strings.NewReader(`{"name":"widget"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec = serve(e, req)
		require.Equal(t, http.StatusOK, rec.Code, method)
		assert.JSONEq(t, `{"name":"widget"}`, rec.Body.String())
	}

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/v2/items", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v2/items", strings.NewReader(`{"name":"`+strings.Repeat("x", 2048)+`"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = serve(e, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(e, httptest.NewRequest(http.MethodGet, "/text", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
}

func TestMountRejectsBadMiddleware(t *testing.T) {
	c := NewContainer()
	c.BindMiddleware(100, New[fooInput]())
	err := Mount(echo.New(), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not implement kit.Middleware")
}

func TestRouteAndMethodsOf(t *testing.T) {
	assert.Equal(t, "/v1/foo/{bar}", RouteOf(EndpointBinding{Path: "v1/foo", Static: (*getFoo)(nil)}))
	assert.Equal(t, "/healthz", RouteOf(EndpointBinding{Path: "ping", Static: (*ping)(nil)}))
	assert.Equal(t, "/text", RouteOf(EndpointBinding{Path: "text", Static: (*text)(nil)}))

	assert.Equal(t, []string{"POST", "PUT"}, MethodsOf(EndpointBinding{Static: (*createFoo)(nil)}))
	assert.Equal(t, []string{"GET"}, MethodsOf(EndpointBinding{Static: (*ping)(nil)}))
}
