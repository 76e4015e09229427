package model

import (
	"go/ast"

	"github.com/Zachacious/go-kitgen/internal/analyzer"
)

// Injectable is a class that may be bound into a container.
type Injectable struct {
	Class *analyzer.Class
	// Constructor is the NewT function, nil when the type has none.
	Constructor *ast.FuncDecl
	// Params are the constructor parameters with their injection keys.
	Params []InjectionParam
}

// Keys returns the injection keys in parameter order.
func (i *Injectable) Keys() []string {
	keys := make([]string, len(i.Params))
	for n, p := range i.Params {
		keys[n] = p.Key
	}
	return keys
}

// InjectionParam is one constructor parameter.
type InjectionParam struct {
	Name string
	Key  string
	// Explicit is set when the key came from an @Inject annotation rather
	// than from the parameter type.
	Explicit bool
}

// ContainerModule is a registration function loaded into the container.
type ContainerModule struct {
	File  *analyzer.File
	Func  string
	Alias string
}

// Endpoint is a class implementing the endpoint contract.
type Endpoint struct {
	Class *analyzer.Class
	// Path is derived from the file path below the endpoints directory,
	// e.g. "v1/foo".
	Path  string
	Alias string
}

// Middleware is a class implementing the middleware contract.
type Middleware struct {
	Class *analyzer.Class
	// Order is the numeric prefix of the file name.
	Order int
	Alias string
}

// Source is where a parameter value is read from at request time.
type Source string

const (
	SourceHeader Source = "header"
	SourceQuery  Source = "query"
	SourceRoute  Source = "route"
	SourceBody   Source = "body"
)

// SourceFromDecorator maps a From* decorator name to its source.
func SourceFromDecorator(name string) (Source, bool) {
	switch name {
	case "FromHeader":
		return SourceHeader, true
	case "FromQuery":
		return SourceQuery, true
	case "FromRoute":
		return SourceRoute, true
	case "FromBody":
		return SourceBody, true
	}
	return "", false
}

// Param is an entry-method parameter and where its value comes from.
type Param struct {
	Name string
	Type ast.Expr
	// Decorator is the name of the source decorator, empty when missing.
	Decorator string
	Source    Source
	// Key is the header, query or route name the value is read from.
	Key         string
	Description string
	Required    bool
	// Form marks a body read from a url-encoded form instead of JSON.
	Form bool
}

// Response is one declared response of an endpoint.
type Response struct {
	Status      int
	Description string
	MediaType   string
	// Type is the schema type argument, nil for responses without a body.
	Type ast.Expr
}

// Security is one security requirement.
type Security struct {
	Name   string
	Scopes []string
}

// BodyParser mirrors the runtime body parser options.
type BodyParser struct {
	Multipart bool
	Limit     string
}

// EndpointManifest is the read-only description of one endpoint, built once
// by static analysis and consumed by the schema generator and the parameter
// transpiler.
type EndpointManifest struct {
	Endpoint *Endpoint
	// Entry is the entry method declaration.
	Entry *analyzer.Method

	Route    string
	HasRoute bool
	Methods  []string

	BodyParser    BodyParser
	HasBodyParser bool

	Summary     string
	Description string
	Tags        []string
	Security    []Security
	Responses   []Response
	Deprecated  bool
	Hidden      bool
	Params      []Param
}

// File is the file declaring the endpoint type.
func (m *EndpointManifest) File() *analyzer.File {
	return m.Endpoint.Class.File
}

// Name is the endpoint type name.
func (m *EndpointManifest) Name() string {
	return m.Endpoint.Class.Name
}
