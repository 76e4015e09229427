// Package pipeline runs the generator steps in their fixed order and writes
// the results. Nothing is written unless every step succeeds.
package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/Zachacious/go-kitgen/internal/analyzer"
	"github.com/Zachacious/go-kitgen/internal/assembler"
	"github.com/Zachacious/go-kitgen/internal/config"
	"github.com/Zachacious/go-kitgen/internal/visitor"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Result summarizes a successful run.
type Result struct {
	OutputDir  string
	SchemaPath string
	Files      int
	Modules    int
	Endpoints  int
	Middleware int
}

// Run transforms the project at root and writes the rewritten tree and the
// schema document.
func Run(ctx context.Context, root string, cfg *config.Config, log zerolog.Logger) (*Result, error) {
	ctx = log.WithContext(ctx)
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", root)
	}
	res := &Result{
		OutputDir:  resolve(root, cfg.Output.Dir),
		SchemaPath: resolve(root, cfg.Output.Schema),
	}
	opts := visitor.Options{
		EndpointsDir:  cfg.Source.Endpoints,
		MiddlewareDir: cfg.Source.Middleware,
		ContainerFile: cfg.Source.Container,
		BuilderFunc:   cfg.Source.Builder,
		ModuleSuffix:  cfg.Source.ModuleSuffix,
		KitImport:     cfg.Source.KitImport,
	}

	log.Debug().Str("step", "load").Str("root", root).Msg("loading project")
	p, err := analyzer.Load(ctx, root, analyzer.LoadOptions{Skip: []string{res.OutputDir}})
	if err != nil {
		return nil, err
	}
	res.Files = len(p.Files)

	log.Debug().Str("step", "000").Msg("collecting injectables")
	injectables, err := visitor.AddInjectables(p)
	if err != nil {
		return nil, err
	}

	b, err := visitor.FindBuilder(p, opts)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("step", "100").Msg("registering container modules")
	modules := visitor.RegisterContainerModules(p, b, opts)
	res.Modules = len(modules)

	log.Debug().Str("step", "200").Msg("registering endpoints")
	endpoints, err := visitor.RegisterEndpoints(p, b, injectables, opts)
	if err != nil {
		return nil, err
	}
	res.Endpoints = len(endpoints)

	log.Debug().Str("step", "300").Msg("registering middleware")
	middleware, err := visitor.RegisterMiddleware(p, b, injectables, opts)
	if err != nil {
		return nil, err
	}
	res.Middleware = len(middleware)

	log.Debug().Str("step", "400").Msg("transpiling decorators")
	manifests, err := visitor.TranspileDecorators(p, endpoints, opts)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("step", "500").Msg("generating schema")
	spec, err := assembler.BuildSpec(ctx, p, manifests, cfg)
	if err != nil {
		return nil, err
	}
	doc, err := assembler.Serialize(spec, cfg.Output.Format, cfg.Schemes, res.SchemaPath)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("step", "600").Msg("transpiling parameters")
	if err := visitor.TranspileParameters(p, manifests, opts); err != nil {
		return nil, err
	}

	log.Debug().Str("step", "emit").Msg("rendering files")
	outputs, err := render(p, res.OutputDir)
	if err != nil {
		return nil, err
	}
	outputs = append(outputs, output{path: res.SchemaPath, data: doc})
	for _, out := range outputs {
		if err := writeFile(out.path, out.data); err != nil {
			return nil, err
		}
	}

	log.Info().
		Int("files", res.Files).
		Int("modules", res.Modules).
		Int("endpoints", res.Endpoints).
		Int("middleware", res.Middleware).
		Str("out", res.OutputDir).
		Str("schema", res.SchemaPath).
		Msg("generated")
	return res, nil
}

func resolve(root, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}

type output struct {
	path string
	data []byte
}

// render prints every loaded file and reads the module files, all in
// memory.
func render(p *analyzer.Project, outDir string) ([]output, error) {
	outputs := make([]output, 0, len(p.Files)+len(p.Assets))
	for _, f := range p.Files {
		data, err := p.Render(f)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, output{path: filepath.Join(outDir, filepath.FromSlash(f.Rel)), data: data})
	}
	for _, name := range p.Assets {
		data, err := os.ReadFile(filepath.Join(p.Root, name))
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", name)
		}
		outputs = append(outputs, output{path: filepath.Join(outDir, name), data: data})
	}
	return outputs, nil
}

// writeFile replaces path atomically through a temporary file in the same
// directory.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrapf(err, "create temp file for %s", path)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "chmod %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "rename into %s", path)
	}
	return nil
}
