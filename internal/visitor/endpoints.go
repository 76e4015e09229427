package visitor

import (
	"go/ast"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Zachacious/go-kitgen/internal/analyzer"
	"github.com/Zachacious/go-kitgen/internal/model"
	"github.com/cockroachdb/errors"
)

// RegisterEndpoints binds every endpoint below the endpoints directory. The
// endpoint path comes from the file path: app/endpoints/v1/Foo.go is
// registered as "v1/foo".
func RegisterEndpoints(p *analyzer.Project, b *Builder, injectables []*model.Injectable, opts Options) ([]*model.Endpoint, error) {
	classes := contractClasses(p, opts.EndpointsDir, opts.KitImport, "Endpoint")
	inj := lookup(injectables)

	perFile := make(map[*analyzer.File]int)
	for _, c := range classes {
		perFile[c.File]++
	}

	base := p.Abs(opts.EndpointsDir)
	seen := make(map[string]*analyzer.Class)
	var out []*model.Endpoint
	for _, c := range classes {
		if c.Generic() {
			return nil, errors.Wrapf(ErrGenericClass, "%s: endpoint %s", c.File.Rel, c.Name)
		}
		rel, ok := relTo(base, c.File.Path)
		if !ok {
			continue
		}
		path := pathCase(strings.TrimSuffix(rel, ".go"))
		if perFile[c.File] > 1 {
			path += "/" + pathCase(c.Name)
		}
		if prev := seen[path]; prev != nil {
			return nil, errors.Wrapf(ErrDuplicatePath, "%q is claimed by %s.%s and %s.%s",
				path, prev.File.Rel, prev.Name, c.File.Rel, c.Name)
		}
		seen[path] = c

		q := b.Qualifier(c.Dir(), "endpoint")
		b.Append(&ast.ExprStmt{X: call(sel(b.Container, "BindEndpoint"),
			str(path),
			nilPointer(q, c.Name),
			b.factory(q, inj, c),
		)})
		out = append(out, &model.Endpoint{Class: c, Path: path, Alias: q})
	}
	return out, nil
}

var orderPrefix = regexp.MustCompile(`^(\d+)`)

// RegisterMiddleware binds every middleware below the middleware directory
// in ascending order of the numeric prefix of its file name, so
// 100_logger.go runs before 200_too_busy.go. Equal prefixes keep file path
// order.
func RegisterMiddleware(p *analyzer.Project, b *Builder, injectables []*model.Injectable, opts Options) ([]*model.Middleware, error) {
	classes := contractClasses(p, opts.MiddlewareDir, opts.KitImport, "Middleware")
	inj := lookup(injectables)

	var out []*model.Middleware
	for _, c := range classes {
		if c.Generic() {
			return nil, errors.Wrapf(ErrGenericClass, "%s: middleware %s", c.File.Rel, c.Name)
		}
		name := filepath.Base(c.File.Path)
		m := orderPrefix.FindStringSubmatch(name)
		if m == nil {
			return nil, errors.WithHint(
				errors.Wrapf(ErrMiddlewareOrder, "%s", c.File.Rel),
				"prefix the file name with its execution order, e.g. 100_logger.go")
		}
		order, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, errors.Wrapf(ErrMiddlewareOrder, "%s: %v", c.File.Rel, err)
		}
		out = append(out, &model.Middleware{Class: c, Order: order})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	for _, m := range out {
		c := m.Class
		m.Alias = b.Qualifier(c.Dir(), "middleware")
		b.Append(&ast.ExprStmt{X: call(sel(b.Container, "BindMiddleware"),
			intLit(m.Order),
			b.factory(m.Alias, inj, c),
		)})
	}
	return out, nil
}

// contractClasses returns the classes below dir that satisfy the named kit
// contract and declare the entry method. Base types that only embed the
// contract are skipped.
func contractClasses(p *analyzer.Project, dir, kitImport, contract string) []*analyzer.Class {
	var out []*analyzer.Class
	for _, c := range p.Classes() {
		if !p.Within(c.File, dir) {
			continue
		}
		if c.Method(EntryMethod) == nil || !p.Implements(c, kitImport, contract) {
			continue
		}
		out = append(out, c)
	}
	return out
}
