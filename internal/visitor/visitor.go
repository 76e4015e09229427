// Package visitor holds the ordered rewrite steps of the generator. Each
// step takes the outputs of earlier steps as arguments and returns its own,
// so the call site shows which step depends on which.
package visitor

import (
	"github.com/Zachacious/go-kitgen/internal/analyzer"
	"github.com/Zachacious/go-kitgen/internal/model"
	"github.com/cockroachdb/errors"
)

// Options locate the conventional parts of the project. Paths are relative
// to the project root.
type Options struct {
	EndpointsDir  string
	MiddlewareDir string
	ContainerFile string
	BuilderFunc   string
	ModuleSuffix  string
	// KitImport is the import path of the runtime package.
	KitImport string
}

var (
	ErrNoBuilder          = errors.New("container builder function not found")
	ErrDuplicatePath      = errors.New("duplicate endpoint path")
	ErrMiddlewareOrder    = errors.New("middleware file name has no numeric order prefix")
	ErrGenericClass       = errors.New("generic types cannot be registered")
	ErrNoEntryMethod      = errors.New("endpoint has no Execute method")
	ErrBadDecorator       = errors.New("malformed decorator")
	ErrMissingSource      = errors.New("endpoint parameter has no source decorator")
	ErrUnknownSource      = errors.New("unrecognised source decorator")
	ErrEntrySignature     = errors.New("entry method must return an error as its last result")
	ErrUnnamedParameter   = errors.New("endpoint parameter must be named")
	ErrAmbiguousParameter = errors.New("explicitly named source decorator on a multi-name parameter")
)

const (
	// EntryMethod is the method every endpoint defines.
	EntryMethod = "Execute"
)

type injectableLookup func(*analyzer.Class) *model.Injectable

func lookup(injectables []*model.Injectable) injectableLookup {
	byClass := make(map[*analyzer.Class]*model.Injectable, len(injectables))
	for _, i := range injectables {
		byClass[i.Class] = i
	}
	return func(c *analyzer.Class) *model.Injectable { return byClass[c] }
}
