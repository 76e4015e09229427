package analyzer

import (
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/mod/modfile"
	"golang.org/x/sync/errgroup"
)

// ErrNoModule is returned when the project root has no usable go.mod.
var ErrNoModule = errors.New("project has no go.mod module path")

// File is one parsed source unit. It is loaded once and mutated in place by
// every visitor that follows.
type File struct {
	// Path is the absolute path of the file on disk.
	Path string
	// Rel is the slash separated path relative to the project root.
	Rel string
	// Dir is the absolute directory holding the file.
	Dir string
	// AST is the mutable syntax tree, parsed with comments.
	AST *ast.File
	// Generated holds declarations appended by visitors. They are printed
	// after the file's own declarations.
	Generated []ast.Decl
}

// Append adds generated declarations to the end of the file.
func (f *File) Append(decls ...ast.Decl) {
	f.Generated = append(f.Generated, decls...)
}

// Project is the loaded source tree of one Go module.
type Project struct {
	Root       string
	ModulePath string
	Fset       *token.FileSet
	// Files are sorted by Rel.
	Files []*File
	// Assets are module files copied verbatim to the output (go.mod, go.sum).
	Assets []string

	byDir   map[string][]*File
	classes []*Class
	index   *Universe
}

// LoadOptions tunes which parts of the tree Load reads.
type LoadOptions struct {
	// Skip lists directories, relative to the root, that are never loaded.
	Skip []string
}

// Load parses every non-test Go file below root into one shared file set.
func Load(ctx context.Context, root string, opts LoadOptions) (*Project, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve project root %s", root)
	}

	modData, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return nil, errors.Wrapf(ErrNoModule, "read %s: %v", filepath.Join(root, "go.mod"), err)
	}
	modPath := modfile.ModulePath(modData)
	if modPath == "" {
		return nil, errors.Wrapf(ErrNoModule, "%s declares no module", filepath.Join(root, "go.mod"))
	}

	skip := make(map[string]bool, len(opts.Skip))
	for _, s := range opts.Skip {
		if s == "" {
			continue
		}
		if filepath.IsAbs(s) {
			if rel, err := filepath.Rel(root, s); err == nil {
				s = rel
			}
		}
		skip[filepath.Clean(s)] = true
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		if d.IsDir() {
			if path == root {
				return nil
			}
			name := d.Name()
			if name == "vendor" || name == "testdata" || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || skip[rel] {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".go") && !strings.HasSuffix(path, "_test.go") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk %s", root)
	}
	sort.Strings(paths)

	p := &Project{
		Root:       root,
		ModulePath: modPath,
		Fset:       token.NewFileSet(),
		Files:      make([]*File, len(paths)),
		byDir:      make(map[string][]*File),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := parser.ParseFile(p.Fset, path, nil, parser.ParseComments|parser.SkipObjectResolution)
			if err != nil {
				return errors.Wrapf(err, "parse %s", path)
			}
			rel, _ := filepath.Rel(root, path)
			p.Files[i] = &File{
				Path: path,
				Rel:  filepath.ToSlash(rel),
				Dir:  filepath.Dir(path),
				AST:  f,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, f := range p.Files {
		p.byDir[f.Dir] = append(p.byDir[f.Dir], f)
	}
	for _, name := range []string{"go.mod", "go.sum"} {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			p.Assets = append(p.Assets, name)
		}
	}

	p.index = discoverUniverse(p)
	p.classes = discoverClasses(p)
	return p, nil
}

// File returns the loaded file at the given root-relative path.
func (p *Project) File(rel string) *File {
	rel = filepath.ToSlash(filepath.Clean(rel))
	for _, f := range p.Files {
		if f.Rel == rel {
			return f
		}
	}
	return nil
}

// FilesIn returns the files of the package in dir.
func (p *Project) FilesIn(dir string) []*File {
	return p.byDir[dir]
}

// PackageName returns the declared package name of dir.
func (p *Project) PackageName(dir string) string {
	files := p.byDir[dir]
	if len(files) == 0 {
		return filepath.Base(dir)
	}
	return files[0].AST.Name.Name
}

// ImportPath maps a directory inside the project to its import path.
func (p *Project) ImportPath(dir string) string {
	rel, err := filepath.Rel(p.Root, dir)
	if err != nil || rel == "." {
		return p.ModulePath
	}
	return p.ModulePath + "/" + filepath.ToSlash(rel)
}

// DirForImport maps an import path back to a project directory.
func (p *Project) DirForImport(path string) (string, bool) {
	if path == p.ModulePath {
		return p.Root, true
	}
	rest, ok := strings.CutPrefix(path, p.ModulePath+"/")
	if !ok {
		return "", false
	}
	return filepath.Join(p.Root, filepath.FromSlash(rest)), true
}

// Abs resolves a root-relative path.
func (p *Project) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.Root, filepath.FromSlash(rel))
}

// Within reports whether file lives below the root-relative directory dir.
func (p *Project) Within(f *File, dir string) bool {
	dir = strings.Trim(filepath.ToSlash(filepath.Clean(dir)), "/")
	return strings.HasPrefix(f.Rel, dir+"/")
}

// FileOf returns the loaded file that contains pos.
func (p *Project) FileOf(pos token.Pos) *File {
	for _, f := range p.Files {
		if f.AST.FileStart <= pos && pos <= f.AST.FileEnd {
			return f
		}
	}
	return nil
}
