package analyzer

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Zachacious/go-kitgen/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderFile = `package orders

import (
	"example.com/shop/app/shared"
	"github.com/Zachacious/go-kitgen/kit"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

const prefix = "orders"

// Create places an order.
type Create struct {
	kit.BaseEndpoint
}

func (c *Create) Execute() (any, error) { return nil, nil }

type Cancel struct {
	shared.Authed
}

func (c *Cancel) Execute() (any, error) { return nil, nil }

type Asserted struct{}

var _ kit.Endpoint = (*Asserted)(nil)

type Plain struct{}

func NewPlain() *Plain { return &Plain{} }
`

const sharedFile = `package shared

import "github.com/Zachacious/go-kitgen/kit"

type Authed struct {
	kit.BaseEndpoint
	User string
}
`

func loadProject(t *testing.T, files map[string]string) *Project {
	t.Helper()
	root := testutil.NewProject(t, files)
	p, err := Load(context.Background(), root, LoadOptions{})
	require.NoError(t, err)
	return p
}

func TestLoad(t *testing.T) {
	root := testutil.NewProject(t, map[string]string{
		"app/endpoints/orders/create.go":      orderFile,
		"app/endpoints/orders/create_test.go": "package orders\n",
		"app/shared/authed.go":                sharedFile,
		"vendor/x/x.go":                       "package x\n",
		"testdata/y.go":                       "package y\n",
		".cache/z.go":                         "package z\n",
		"dist/app/container.go":               "package app\n",
		"go.sum":                              "",
	})

	p, err := Load(context.Background(), root, LoadOptions{Skip: []string{"dist"}})
	require.NoError(t, err)

	assert.Equal(t, testutil.ModulePath, p.ModulePath)
	var rels []string
	for _, f := range p.Files {
		rels = append(rels, f.Rel)
	}
	assert.Equal(t, []string{"app/container.go", "app/endpoints/orders/create.go", "app/shared/authed.go"}, rels)
	assert.Equal(t, []string{"go.mod", "go.sum"}, p.Assets)

	f := p.File("app/endpoints/orders/create.go")
	require.NotNil(t, f)
	assert.Equal(t, "orders", p.PackageName(f.Dir))
	assert.Equal(t, "example.com/shop/app/endpoints/orders", p.ImportPath(f.Dir))

	dir, ok := p.DirForImport("example.com/shop/app/shared")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(p.Root, "app", "shared"), dir)
	_, ok = p.DirForImport("github.com/other/module")
	assert.False(t, ok)

	assert.True(t, p.Within(f, "app/endpoints"))
	assert.False(t, p.Within(f, "app/middleware"))
	assert.Same(t, f, p.FileOf(f.AST.Decls[1].Pos()))
}

func TestLoadWithoutModule(t *testing.T) {
	_, err := Load(context.Background(), t.TempDir(), LoadOptions{})
	require.ErrorIs(t, err, ErrNoModule)
}

func TestLoadReportsSyntaxErrors(t *testing.T) {
	root := testutil.NewProject(t, map[string]string{"app/broken.go": "package app\n\nfunc {"})
	_, err := Load(context.Background(), root, LoadOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.go")
}

func TestClassesAndContracts(t *testing.T) {
	p := loadProject(t, map[string]string{
		"app/endpoints/orders/create.go": orderFile,
		"app/shared/authed.go":           sharedFile,
	})
	dir := p.File("app/endpoints/orders/create.go").Dir

	byName := make(map[string]*Class)
	for _, c := range p.Classes() {
		if c.Dir() == dir {
			byName[c.Name] = c
		}
	}
	require.Len(t, byName, 4)

	create := byName["Create"]
	assert.NotNil(t, create.Method("Execute"))
	assert.Equal(t, "Create places an order.", ParseDocComment(create.Doc).Summary)

	assert.True(t, p.Implements(create, testutil.KitImport, "Endpoint"), "embeds kit.BaseEndpoint")
	assert.True(t, p.Implements(byName["Cancel"], testutil.KitImport, "Endpoint"), "inherits through shared.Authed")
	assert.True(t, p.Implements(byName["Asserted"], testutil.KitImport, "Endpoint"), "blank identifier assertion")
	assert.False(t, p.Implements(byName["Plain"], testutil.KitImport, "Endpoint"))
	assert.False(t, p.Implements(create, testutil.KitImport, "Middleware"))

	ctor, file := p.Constructor(byName["Plain"])
	require.NotNil(t, ctor)
	assert.Equal(t, "NewPlain", ctor.Name.Name)
	assert.Equal(t, "app/endpoints/orders/create.go", file.Rel)
	ctor, _ = p.Constructor(create)
	assert.Nil(t, ctor)
}

func TestUniverse(t *testing.T) {
	p := loadProject(t, map[string]string{"app/endpoints/orders/create.go": orderFile})
	dir := p.File("app/endpoints/orders/create.go").Dir

	decl := p.Type(dir, "Status")
	require.NotNil(t, decl)
	assert.Equal(t, "Status is the lifecycle state of an order.", ParseDocComment(decl.Doc).Summary)

	consts := p.EnumConstants(dir, "Status")
	require.Len(t, consts, 2)
	assert.Equal(t, "open", consts[0].Value)
	assert.Equal(t, "closed", consts[1].Value)

	c, ok := p.Constant(dir, "prefix")
	require.True(t, ok)
	assert.Equal(t, "orders", c.Value)
	assert.Empty(t, c.Type)

	assert.NotNil(t, p.Func(dir, "NewPlain"))
	assert.Nil(t, p.Func(dir, "Missing"))
}

func TestDefaultImportName(t *testing.T) {
	tests := map[string]string{
		"net/http":                               "http",
		"github.com/labstack/echo/v4":            "echo",
		"gopkg.in/yaml.v3":                       "yaml",
		"github.com/go-playground/validator/v10": "validator",
		"github.com/Zachacious/go-kitgen/kit":    "kit",
	}
	for path, want := range tests {
		assert.Equal(t, want, DefaultImportName(path), path)
	}
}

func TestRenderAppendsGeneratedDecls(t *testing.T) {
	p := loadProject(t, map[string]string{"app/endpoints/orders/create.go": orderFile})
	f := p.File("app/endpoints/orders/create.go")

	fn := Clone(p.Func(f.Dir, "NewPlain"))
	fn.Name.Name = "NewPlainCopy"
	f.Append(fn)

	out, err := p.Render(f)
	require.NoError(t, err)
	src := string(out)
	assert.Contains(t, src, "// Create places an order.")
	assert.Contains(t, src, "func NewPlain() *Plain { return &Plain{} }")
	assert.Contains(t, src, "func NewPlainCopy() *Plain")
	assert.Less(t, strings.Index(src, "func NewPlain()"), strings.Index(src, "func NewPlainCopy()"))
}
