// Package testutil writes throwaway projects for tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ModulePath is the module of every project written by NewProject.
const ModulePath = "example.com/shop"

// KitImport is the runtime package the test projects import.
const KitImport = "github.com/Zachacious/go-kitgen/kit"

// GoMod is the go.mod of test projects.
const GoMod = "module " + ModulePath + "\n\ngo 1.24\n"

// Container is the default container builder file.
const Container = `package app

import "github.com/Zachacious/go-kitgen/kit"

// BuildContainer wires the application.
func BuildContainer() *kit.Container {
	c := kit.NewContainer()
	return c
}
`

// NewProject writes go.mod, app/container.go and files into a temporary
// directory and returns its path. Entries in files replace the defaults.
func NewProject(t testing.TB, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	all := map[string]string{
		"go.mod":           GoMod,
		"app/container.go": Container,
	}
	for name, content := range files {
		all[name] = content
	}
	WriteFiles(t, dir, all)
	return dir
}

// WriteFiles writes each slash separated path below dir.
func WriteFiles(t testing.TB, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// ReadFile returns the content of a slash separated path below dir.
func ReadFile(t testing.TB, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}
