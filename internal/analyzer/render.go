package analyzer

import (
	"bytes"
	"go/printer"
	"go/token"

	"github.com/cockroachdb/errors"
	"golang.org/x/tools/imports"
)

var printConfig = &printer.Config{Mode: printer.UseSpaces | printer.TabIndent, Tabwidth: 8}

// Render prints the mutated file, followed by its generated declarations,
// and normalizes the result with goimports in format-only mode.
func (p *Project) Render(f *File) ([]byte, error) {
	var buf bytes.Buffer
	if err := printConfig.Fprint(&buf, p.Fset, f.AST); err != nil {
		return nil, errors.Wrapf(err, "print %s", f.Rel)
	}

	// Generated nodes carry no positions, so they are printed on their own
	// file set to keep them away from the file's comments.
	genFset := token.NewFileSet()
	for _, decl := range f.Generated {
		buf.WriteString("\n")
		if err := printConfig.Fprint(&buf, genFset, decl); err != nil {
			return nil, errors.Wrapf(err, "print generated declaration in %s", f.Rel)
		}
		buf.WriteString("\n")
	}

	out, err := imports.Process(f.Path, buf.Bytes(), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "format %s", f.Rel)
	}
	return out, nil
}
