// Package kit is the runtime side of kitgen. Generated code binds endpoints
// and middleware into a Container, and Mount turns the container into echo
// routes.
//
// Endpoint types embed BaseEndpoint and declare an Execute method. Before
// generation the method may take parameters annotated with source
// decorators:
//
//	// @Get("{bar}")
//	// @Response[FooResponse](200)
//	func (e *Foo) Execute(/* @FromRoute("bar") */ bar string) (any, error)
//
// kitgen rewrites the annotations into Route, Methods and BodyParserOptions
// methods and into FromRoute/FromQuery/FromHeader/FromBody calls.
package kit

import (
	"mime/multipart"

	"github.com/labstack/echo/v4"
)

// Endpoint is implemented by every generated endpoint.
type Endpoint interface {
	Execute() (any, error)
}

// Middleware is implemented by every middleware type.
type Middleware interface {
	Execute(next echo.HandlerFunc) echo.HandlerFunc
}

// BaseEndpoint holds the request context of one endpoint invocation.
type BaseEndpoint struct {
	Ctx echo.Context
}

// SetContext is called by the router before Execute.
func (b *BaseEndpoint) SetContext(c echo.Context) { b.Ctx = c }

// BaseMiddleware marks a type as middleware.
type BaseMiddleware struct{}

// BodyParserOptions configures request body handling for an endpoint.
type BodyParserOptions struct {
	// Multipart enables multipart/form-data bodies.
	Multipart bool
	// Limit caps the body size, e.g. "2M". Empty means unlimited.
	Limit string
}

// Router is implemented by endpoints with an explicit route. Relative
// routes are appended to the endpoint path, absolute ones replace it.
type Router interface {
	Route() string
}

// MethodLister is implemented by endpoints answering to methods other than GET.
type MethodLister interface {
	Methods() []string
}

// BodyParserConfigurer is implemented by endpoints with body parser options.
type BodyParserConfigurer interface {
	BodyParserOptions() BodyParserOptions
}

// MultiPartForm is the body of a multipart endpoint: plain form fields in
// Fields and uploaded files in Files.
type MultiPartForm[F any, U any] struct {
	Fields F
	Files  U
}

// FileUpload is one uploaded file.
type FileUpload struct {
	Name   string
	Size   int64
	Type   string
	Header *multipart.FileHeader
}

// Open opens the uploaded file for reading.
func (f *FileUpload) Open() (multipart.File, error) {
	return f.Header.Open()
}

func newFileUpload(h *multipart.FileHeader) FileUpload {
	return FileUpload{
		Name:   h.Filename,
		Size:   h.Size,
		Type:   h.Header.Get("Content-Type"),
		Header: h,
	}
}
