// Package config loads the generator settings. Values are layered, lowest
// priority first: built-in defaults, the project's .kitgen.yaml (or an
// explicit file), KITGEN_* environment variables and command line
// overrides.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// FileName is the project config file looked up in the project root.
const FileName = ".kitgen.yaml"

// Output formats of the schema document.
const (
	FormatSwagger2 = "swagger2"
	FormatOpenAPI3 = "openapi3"
)

// Info is copied into the info object of the generated document.
type Info struct {
	Title       string  `koanf:"title" validate:"required"`
	Version     string  `koanf:"version" validate:"required,semver"`
	Description string  `koanf:"description"`
	Contact     Contact `koanf:"contact"`
	License     License `koanf:"license"`
}

type Contact struct {
	Name  string `koanf:"name"`
	URL   string `koanf:"url" validate:"omitempty,url"`
	Email string `koanf:"email" validate:"omitempty,email"`
}

type License struct {
	Name string `koanf:"name"`
	URL  string `koanf:"url" validate:"omitempty,url"`
}

// Source locates the conventional parts of the project, relative to its
// root.
type Source struct {
	Endpoints    string `koanf:"endpoints" validate:"required"`
	Middleware   string `koanf:"middleware" validate:"required"`
	Container    string `koanf:"container" validate:"required"`
	Builder      string `koanf:"builder" validate:"required"`
	ModuleSuffix string `koanf:"modulesuffix" validate:"required"`
	KitImport    string `koanf:"kitimport" validate:"required"`
}

// Output says where the transformed tree and the document are written.
type Output struct {
	Dir    string `koanf:"dir" validate:"required"`
	Schema string `koanf:"schema" validate:"required"`
	Format string `koanf:"format" validate:"oneof=swagger2 openapi3"`
}

type Log struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `koanf:"pretty"`
}

type Config struct {
	Info    Info     `koanf:"info"`
	Source  Source   `koanf:"source"`
	Output  Output   `koanf:"output"`
	Schemes []string `koanf:"schemes" validate:"dive,oneof=http https ws wss"`
	// SecuritySchemes are OpenAPI security scheme objects keyed by name.
	// Endpoints may only reference schemes declared here.
	SecuritySchemes map[string]any `koanf:"securityschemes"`
	Log             Log            `koanf:"log"`
}

func defaults() map[string]any {
	return map[string]any{
		"info.title":   "API Documentation",
		"info.version": "1.0.0",

		"source.endpoints":    "app/endpoints",
		"source.middleware":   "app/middleware",
		"source.container":    "app/container.go",
		"source.builder":      "BuildContainer",
		"source.modulesuffix": "_container_module.go",
		"source.kitimport":    "github.com/Zachacious/go-kitgen/kit",

		"output.dir":    "dist",
		"output.schema": "dist/app/swagger.json",
		"output.format": FormatSwagger2,

		"schemes": []string{"http"},

		"log.level":  "info",
		"log.pretty": false,
	}
}

// Load reads the configuration of the project at root. configFile may name
// an explicit config file, which then must exist. overrides use dotted
// keys, e.g. "output.dir".
func Load(root, configFile string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "load defaults")
	}

	path := configFile
	if path == "" {
		path = filepath.Join(root, FileName)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "load %s", path)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        "KITGEN_",
		TransformFunc: envKey,
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load environment")
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, errors.Wrap(err, "load overrides")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps KITGEN_OUTPUT_DIR to output.dir. Schemes are a comma
// separated list.
func envKey(key, value string) (string, any) {
	key = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, "KITGEN_")), "_", ".")
	if key == "schemes" {
		return key, strings.Split(value, ",")
	}
	return key, value
}
