package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Zachacious/go-kitgen/internal/config"
	"github.com/Zachacious/go-kitgen/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const servicesFile = `package services

type Repo struct{}

func NewRepo() *Repo { return &Repo{} }
`

const fooBarFile = `package v1

import (
	"example.com/shop/app/services"
	"github.com/Zachacious/go-kitgen/kit"
)

// FooBar returns a bar.
type FooBar struct {
	kit.BaseEndpoint
	repo *services.Repo
}

func NewFooBar(repo *services.Repo) *FooBar { return &FooBar{repo: repo} }

// @Get("{bar}")
// @Response[Out](200, "The bar")
func (e *FooBar) Execute( /* @FromRoute("bar") */ bar string, /* @FromQuery("limit") */ limit int) (*Out, error) {
	return &Out{Bar: bar}, nil
}

type Out struct {
	Bar string ` + "`json:\"bar\"`" + `
}
`

const loggerFile = `package middleware

import (
	"github.com/Zachacious/go-kitgen/kit"
	"github.com/labstack/echo/v4"
)

type Logger struct{ kit.BaseMiddleware }

func (m *Logger) Execute(next echo.HandlerFunc) echo.HandlerFunc { return next }
`

func run(t *testing.T, root string) (*Result, error) {
	t.Helper()
	cfg, err := config.Load(root, "", nil)
	require.NoError(t, err)
	return Run(context.Background(), root, cfg, zerolog.Nop())
}

func TestRun(t *testing.T) {
	root := testutil.NewProject(t, map[string]string{
		"app/services/services.go":     servicesFile,
		"app/endpoints/v1/FooBar.go":   fooBarFile,
		"app/middleware/100_logger.go": loggerFile,
		".kitgen.yaml":                 "info:\n  title: Shop\n  version: 2.1.0\n",
	})

	res, err := run(t, root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "dist"), res.OutputDir)
	assert.Equal(t, filepath.Join(root, "dist", "app", "swagger.json"), res.SchemaPath)
	assert.Equal(t, 1, res.Endpoints)
	assert.Equal(t, 1, res.Middleware)
	assert.Equal(t, 4, res.Files)

	dist := filepath.Join(root, "dist")
	assert.Equal(t, testutil.GoMod, testutil.ReadFile(t, dist, "go.mod"))

	container := testutil.ReadFile(t, dist, "app/container.go")
	assert.Contains(t, container, `c.BindEndpoint("v1/foo/bar", (*endpoint0.FooBar)(nil), kit.Constructor(endpoint0.NewFooBar, "*services.Repo"))`)
	assert.Contains(t, container, "c.BindMiddleware(100, kit.New[middleware0.Logger]())")

	endpoint := testutil.ReadFile(t, dist, "app/endpoints/v1/FooBar.go")
	assert.Contains(t, endpoint, "func (e *FooBar) Execute() (*Out, error) {")
	assert.Contains(t, endpoint, `if err := kit.FromRoute(e.Ctx, "bar", &bar); err != nil {`)
	assert.Contains(t, endpoint, `if err := kit.FromQuery(e.Ctx, "limit", &limit); err != nil {`)
	assert.Contains(t, endpoint, "func (*FooBar) Route() string")
	assert.NotContains(t, endpoint, "@Get")
	assert.NotContains(t, endpoint, "@FromRoute")

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(testutil.ReadFile(t, dist, "app/swagger.json")), &doc))
	assert.Equal(t, "2.0", doc["swagger"])
	assert.Equal(t, "Shop", doc["info"].(map[string]any)["title"])
	assert.Contains(t, doc["paths"], "/v1/foo/bar/{bar}")

	src := testutil.ReadFile(t, root, "app/endpoints/v1/FooBar.go")
	assert.Equal(t, fooBarFile, src, "sources are never modified")
}

func TestRunWritesNothingOnFailure(t *testing.T) {
	root := testutil.NewProject(t, map[string]string{
		"app/endpoints/broken.go": `package endpoints

import "github.com/Zachacious/go-kitgen/kit"

type Broken struct{ kit.BaseEndpoint }

func (b *Broken) Execute(id string) (any, error) { return nil, nil }
`,
	})

	_, err := run(t, root)
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(root, "dist"))
	assert.True(t, os.IsNotExist(statErr), "no output directory after a failed run")
}

func TestRunOverwritesPreviousOutput(t *testing.T) {
	root := testutil.NewProject(t, map[string]string{
		"app/services/services.go":   servicesFile,
		"app/endpoints/v1/FooBar.go": fooBarFile,
		"dist/stale.txt":             "old",
		"dist/app/container.go":      "package app\n\nfunc stale() {}\n",
	})

	_, err := run(t, root)
	require.NoError(t, err)
	container := testutil.ReadFile(t, root, "dist/app/container.go")
	assert.Contains(t, container, "BuildContainer")
	assert.NotContains(t, container, "stale")
	assert.Equal(t, "old", testutil.ReadFile(t, root, "dist/stale.txt"))
}
