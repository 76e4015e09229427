package visitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dbModuleFile = `package database

import "github.com/Zachacious/go-kitgen/kit"

func Database(c *kit.Container) {
	c.ProvideValue("dsn", "postgres://localhost")
}

func Cache(c *kit.Container) {}

func helper(c *kit.Container) {}

func Options(n int) {}

func Returns(c *kit.Container) error { return nil }
`

func TestRegisterContainerModules(t *testing.T) {
	p := load(t, map[string]string{
		"app/database/db_container_module.go": dbModuleFile,
		"app/local_container_module.go":       "package app\n\nimport \"github.com/Zachacious/go-kitgen/kit\"\n\nfunc Local(c *kit.Container) {}\n",
		"app/database/not_a_module.go":        "package database\n\nimport \"github.com/Zachacious/go-kitgen/kit\"\n\nfunc Ignored(c *kit.Container) {}\n",
	})
	b := builder(t, p)

	modules := RegisterContainerModules(p, b, testOptions())
	require.Len(t, modules, 3)
	assert.Equal(t, "Database", modules[0].Func)
	assert.Equal(t, "module0", modules[0].Alias)
	assert.Equal(t, "Cache", modules[1].Func)
	assert.Equal(t, "Local", modules[2].Func)
	assert.Empty(t, modules[2].Alias)

	out := render(t, p, "app/container.go")
	assert.Contains(t, out, `module0 "example.com/shop/app/database"`)
	assert.Contains(t, out, "c.Load(module0.Database)")
	assert.Contains(t, out, "c.Load(module0.Cache)")
	assert.Contains(t, out, "c.Load(Local)")
	assert.NotContains(t, out, "Ignored")
	assert.NotContains(t, out, "helper")
}
