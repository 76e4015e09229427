package visitor

import (
	"context"
	"testing"

	"github.com/Zachacious/go-kitgen/internal/analyzer"
	"github.com/Zachacious/go-kitgen/internal/testutil"
	"github.com/stretchr/testify/require"
)

const servicesFile = `package services

type DB struct{}

func NewDB() *DB { return &DB{} }

type Repo struct {
	db  *DB
	dsn string
}

func NewRepo(db *DB, /* @Inject("dsn") */ dsn string, opts map[string]any) *Repo {
	return &Repo{db: db, dsn: dsn}
}

type Pool struct{}

func NewPool(sizes ...int) *Pool { return &Pool{} }

type Cache struct{}

func NewCache() string { return "" }
`

const fooBarFile = `package v1

import (
	"example.com/shop/app/services"
	"github.com/Zachacious/go-kitgen/kit"
)

// FooBar returns a bar.
//
// It never fails.
type FooBar struct {
	kit.BaseEndpoint
	repo *services.Repo
}

func NewFooBar(repo *services.Repo) *FooBar { return &FooBar{repo: repo} }

// @Get("{bar}")
// @Tags("foo", "bar")
func (e *FooBar) Execute( /* @FromRoute("bar", "The bar") */ bar string) (*Out, error) {
	return &Out{Bar: bar}, nil
}

type Out struct {
	Bar string ` + "`json:\"bar\"`" + `
}
`

const ordersFile = `package endpoints

import "github.com/Zachacious/go-kitgen/kit"

type List struct{ kit.BaseEndpoint }

func (l *List) Execute() ([]string, error) { return nil, nil }

type Get struct{ kit.BaseEndpoint }

func (g *Get) Execute() (string, error) { return "", nil }

// Authed is shared by endpoints that need a user. It has no entry method.
type Authed struct{ kit.BaseEndpoint }
`

func testOptions() Options {
	return Options{
		EndpointsDir:  "app/endpoints",
		MiddlewareDir: "app/middleware",
		ContainerFile: "app/container.go",
		BuilderFunc:   "BuildContainer",
		ModuleSuffix:  "_container_module.go",
		KitImport:     testutil.KitImport,
	}
}

func load(t *testing.T, files map[string]string) *analyzer.Project {
	t.Helper()
	p, err := analyzer.Load(context.Background(), testutil.NewProject(t, files), analyzer.LoadOptions{})
	require.NoError(t, err)
	return p
}

func builder(t *testing.T, p *analyzer.Project) *Builder {
	t.Helper()
	b, err := FindBuilder(p, testOptions())
	require.NoError(t, err)
	return b
}

func render(t *testing.T, p *analyzer.Project, rel string) string {
	t.Helper()
	f := p.File(rel)
	require.NotNil(t, f, rel)
	out, err := p.Render(f)
	require.NoError(t, err)
	return string(out)
}
