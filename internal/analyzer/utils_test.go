package analyzer

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const constsFile = `package orders

import (
	"net/http"

	"example.com/shop/app/codes"
)

const (
	base    = "v1/"
	version = 2
	Teapot  = 418
	strict  = true
)

var _ = http.StatusOK
var _ = codes.Accepted
`

const codesFile = `package codes

const Accepted = 202
`

func expr(t *testing.T, src string) ast.Expr {
	t.Helper()
	e, err := parser.ParseExpr(src)
	require.NoError(t, err)
	return e
}

func TestStringValue(t *testing.T) {
	p := loadProject(t, map[string]string{"app/orders/consts.go": constsFile, "app/codes/codes.go": codesFile})
	dir := p.File("app/orders/consts.go").Dir

	tests := map[string]string{
		`"plain"`:             "plain",
		"`raw`":               "raw",
		`base`:                "v1/",
		`base + "orders"`:     "v1/orders",
		`(base + "a") + "/b"`: "v1/a/b",
	}
	for src, want := range tests {
		got, ok := p.StringValue(dir, expr(t, src))
		require.True(t, ok, src)
		assert.Equal(t, want, got, src)
	}

	for _, src := range []string{`version`, `missing`, `base + missing`, `42`} {
		_, ok := p.StringValue(dir, expr(t, src))
		assert.False(t, ok, src)
	}
}

func TestIntValue(t *testing.T) {
	p := loadProject(t, map[string]string{"app/orders/consts.go": constsFile, "app/codes/codes.go": codesFile})
	f := p.File("app/orders/consts.go")

	tests := map[string]int{
		`201`:            201,
		`0x10`:           16,
		`(404)`:          404,
		`Teapot`:         418,
		`http.StatusOK`:  200,
		`codes.Accepted`: 202,
	}
	for src, want := range tests {
		got, ok := p.IntValue(f, expr(t, src))
		require.True(t, ok, src)
		assert.Equal(t, want, got, src)
	}

	for _, src := range []string{`base`, `http.StatusTeapotish`, `other.Value`, `"200"`} {
		_, ok := p.IntValue(f, expr(t, src))
		assert.False(t, ok, src)
	}
}

func TestClone(t *testing.T) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "x.go", "package x\n\n// Doc.\nfunc F(a int) int { return a + 1 }\n", parser.ParseComments)
	require.NoError(t, err)
	orig := f.Decls[0].(*ast.FuncDecl)

	c := Clone(orig)
	require.NotSame(t, orig, c)
	assert.Nil(t, c.Doc)
	assert.Equal(t, token.NoPos, c.Pos())
	assert.Equal(t, "F", c.Name.Name)

	c.Name.Name = "G"
	assert.Equal(t, "F", orig.Name.Name, "copy shares no nodes with the original")

	var none *ast.FuncDecl
	assert.Nil(t, Clone(none))
}

func TestIsNilAndBoolValue(t *testing.T) {
	assert.True(t, IsNil(nil))
	assert.True(t, IsNil(expr(t, "nil")))
	assert.False(t, IsNil(expr(t, "x")))

	v, ok := BoolValue(expr(t, "true"))
	assert.True(t, ok)
	assert.True(t, v)
	v, ok = BoolValue(expr(t, "false"))
	assert.True(t, ok)
	assert.False(t, v)
	_, ok = BoolValue(expr(t, `"true"`))
	assert.False(t, ok)
}

func TestProjectBoolValue(t *testing.T) {
	p := loadProject(t, map[string]string{"app/orders/consts.go": constsFile, "app/codes/codes.go": codesFile})
	dir := p.File("app/orders/consts.go").Dir

	tests := map[string]bool{
		"true":     true,
		"false":    false,
		"strict":   true,
		"(strict)": true,
		"!strict":  false,
		"!(false)": true,
	}
	for src, want := range tests {
		got, ok := p.BoolValue(dir, expr(t, src))
		require.True(t, ok, src)
		assert.Equal(t, want, got, src)
	}

	for _, src := range []string{"version", "missing", `"true"`, "!missing", "enabled()"} {
		_, ok := p.BoolValue(dir, expr(t, src))
		assert.False(t, ok, src)
	}
}
