package visitor

import (
	"go/ast"
	"strings"
	"testing"

	"github.com/Zachacious/go-kitgen/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindBuilder(t *testing.T) {
	p := load(t, nil)
	b := builder(t, p)

	assert.Equal(t, "c", b.Container)
	assert.Equal(t, "kit", b.Kit())
	assert.Equal(t, "BuildContainer", b.Func.Name.Name)
}

func TestFindBuilderErrors(t *testing.T) {
	tests := map[string]struct {
		container string
		opts      func(*Options)
	}{
		"missing file": {
			container: testutil.Container,
			opts:      func(o *Options) { o.ContainerFile = "app/wiring.go" },
		},
		"missing function": {
			container: testutil.Container,
			opts:      func(o *Options) { o.BuilderFunc = "Wire" },
		},
		"no trailing return": {
			container: "package app\n\nimport \"github.com/Zachacious/go-kitgen/kit\"\n\nfunc BuildContainer() *kit.Container {\n\tpanic(\"todo\")\n}\n",
			opts:      func(*Options) {},
		},
		"returns a call": {
			container: "package app\n\nimport \"github.com/Zachacious/go-kitgen/kit\"\n\nfunc BuildContainer() *kit.Container {\n\treturn kit.NewContainer()\n}\n",
			opts:      func(*Options) {},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			p := load(t, map[string]string{"app/container.go": tt.container})
			opts := testOptions()
			tt.opts(&opts)
			_, err := FindBuilder(p, opts)
			require.ErrorIs(t, err, ErrNoBuilder)
		})
	}
}

func TestFindBuilderAddsKitImport(t *testing.T) {
	p := load(t, map[string]string{"app/container.go": `package app

type Container struct{}

func BuildContainer() *Container {
	c := &Container{}
	return c
}
`})
	b := builder(t, p)
	assert.Equal(t, "kit", b.Kit())
	assert.Contains(t, render(t, p, "app/container.go"), `import "github.com/Zachacious/go-kitgen/kit"`)
}

func TestAppendKeepsReturnLast(t *testing.T) {
	p := load(t, nil)
	b := builder(t, p)

	b.Append(&ast.ExprStmt{X: call(sel("c", "First"))})
	b.Append(&ast.ExprStmt{X: call(sel("c", "Second"))})

	body := b.Func.Body.List
	require.Len(t, body, 4)
	assert.IsType(t, &ast.ReturnStmt{}, body[3])

	out := render(t, p, "app/container.go")
	assert.Less(t, strings.Index(out, "c.First()"), strings.Index(out, "c.Second()"))
	assert.Less(t, strings.Index(out, "c.Second()"), strings.Index(out, "return c"))
}

func TestQualifier(t *testing.T) {
	p := load(t, map[string]string{
		"app/endpoints/v1/FooBar.go": fooBarFile,
		"app/endpoints/orders.go":    ordersFile,
		"app/services/services.go":   servicesFile,
	})
	b := builder(t, p)

	v1 := p.File("app/endpoints/v1/FooBar.go").Dir
	orders := p.File("app/endpoints/orders.go").Dir

	assert.Equal(t, "endpoint0", b.Qualifier(v1, "endpoint"))
	assert.Equal(t, "endpoint1", b.Qualifier(orders, "endpoint"))
	assert.Equal(t, "endpoint0", b.Qualifier(v1, "endpoint"), "aliases are stable")
	assert.Equal(t, "module0", b.Qualifier(p.File("app/services/services.go").Dir, "module"))
	assert.Empty(t, b.Qualifier(b.File.Dir, "module"), "the builder's own package")

	out := render(t, p, "app/container.go")
	assert.Contains(t, out, `endpoint0 "example.com/shop/app/endpoints/v1"`)
	assert.Contains(t, out, `endpoint1 "example.com/shop/app/endpoints"`)
	assert.Contains(t, out, `module0 "example.com/shop/app/services"`)
}
