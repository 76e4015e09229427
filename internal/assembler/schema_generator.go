package assembler

import (
	"go/ast"
	"go/types"
	"reflect"
	"strconv"
	"strings"

	"github.com/Zachacious/go-kitgen/internal/analyzer"
	"github.com/getkin/kin-openapi/openapi3"
)

// SchemaGenerator turns type expressions of the loaded project into inline
// OpenAPI schemas. It works on syntax only: named project types are
// resolved through the project index, generic instantiations by
// substituting their type arguments.
type SchemaGenerator struct {
	project   *analyzer.Project
	kitImport string
	// visiting guards against recursive types, which cannot be inlined.
	visiting map[string]bool
}

func NewSchemaGenerator(p *analyzer.Project, kitImport string) *SchemaGenerator {
	return &SchemaGenerator{
		project:   p,
		kitImport: kitImport,
		visiting:  make(map[string]bool),
	}
}

// scope is where a type expression is interpreted: the file resolving its
// imports and the type arguments bound to in-scope type parameters.
type scope struct {
	file  *analyzer.File
	subst map[string]binding
}

type binding struct {
	expr  ast.Expr
	scope *scope
}

// GenerateSchema builds the schema of expr as written in file.
func (sg *SchemaGenerator) GenerateSchema(file *analyzer.File, expr ast.Expr) *openapi3.Schema {
	return sg.generate(&scope{file: file}, expr)
}

func (sg *SchemaGenerator) generate(s *scope, expr ast.Expr) *openapi3.Schema {
	switch e := expr.(type) {
	case *ast.ParenExpr:
		return sg.generate(s, e.X)
	case *ast.StarExpr:
		return sg.generate(s, e.X)
	case *ast.ArrayType:
		if id, ok := e.Elt.(*ast.Ident); ok && id.Name == "byte" && e.Len == nil {
			return openapi3.NewBytesSchema()
		}
		return openapi3.NewArraySchema().WithItems(sg.generate(s, e.Elt))
	case *ast.MapType:
		return openapi3.NewObjectSchema().WithAdditionalProperties(sg.generate(s, e.Value))
	case *ast.InterfaceType:
		return &openapi3.Schema{}
	case *ast.StructType:
		return sg.schemaForStruct(s, e)
	case *ast.Ident:
		return sg.schemaForIdent(s, e)
	case *ast.SelectorExpr:
		return sg.schemaForSelector(s, e, nil)
	case *ast.IndexExpr:
		return sg.schemaForInstance(s, e.X, []ast.Expr{e.Index})
	case *ast.IndexListExpr:
		return sg.schemaForInstance(s, e.X, e.Indices)
	}
	return unsupported(types.ExprString(expr))
}

func unsupported(name string) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()
	schema.Description = "Unsupported type: " + name
	return schema
}

func (sg *SchemaGenerator) schemaForIdent(s *scope, id *ast.Ident) *openapi3.Schema {
	if b, ok := s.subst[id.Name]; ok {
		return sg.generate(b.scope, b.expr)
	}
	if schema := schemaForBasic(id.Name); schema != nil {
		return schema
	}
	if decl := sg.project.Type(s.file.Dir, id.Name); decl != nil {
		return sg.schemaForNamed(s.file.Dir, decl, nil, s)
	}
	return unsupported(id.Name)
}

func schemaForBasic(name string) *openapi3.Schema {
	switch name {
	case "string":
		return openapi3.NewStringSchema()
	case "bool":
		return openapi3.NewBoolSchema()
	case "int", "int8", "int16", "uint", "uint8", "uint16", "uintptr", "byte":
		return openapi3.NewIntegerSchema()
	case "int32", "uint32", "rune":
		return openapi3.NewInt32Schema()
	case "int64", "uint64":
		return openapi3.NewInt64Schema()
	case "float32", "float64":
		return openapi3.NewFloat64Schema()
	case "any", "error":
		return &openapi3.Schema{}
	}
	return nil
}

// schemaForSelector resolves pkg.Name against the file's imports. A few
// well-known library types map to string formats.
func (sg *SchemaGenerator) schemaForSelector(s *scope, e *ast.SelectorExpr, args []ast.Expr) *openapi3.Schema {
	pkg, ok := e.X.(*ast.Ident)
	if !ok {
		return unsupported(types.ExprString(e))
	}
	path, ok := analyzer.ImportPathFor(s.file.AST, pkg.Name)
	if !ok {
		return unsupported(types.ExprString(e))
	}

	switch path + "." + e.Sel.Name {
	case "time.Time":
		return openapi3.NewDateTimeSchema()
	case "time.Duration":
		return openapi3.NewInt64Schema()
	case "mime/multipart.FileHeader", sg.kitImport + ".FileUpload":
		return binarySchema()
	case "encoding/json.RawMessage":
		return &openapi3.Schema{}
	case sg.kitImport + ".MultiPartForm":
		return sg.schemaForMultipart(s, args)
	}

	dir, ok := sg.project.DirForImport(path)
	if !ok {
		return unsupported(types.ExprString(e))
	}
	decl := sg.project.Type(dir, e.Sel.Name)
	if decl == nil {
		return unsupported(types.ExprString(e))
	}
	return sg.schemaForNamed(dir, decl, args, s)
}

func binarySchema() *openapi3.Schema {
	return openapi3.NewStringSchema().WithFormat("binary")
}

// schemaForMultipart merges the field and file halves of a
// kit.MultiPartForm into one object.
func (sg *SchemaGenerator) schemaForMultipart(s *scope, args []ast.Expr) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()
	for _, arg := range args {
		mergeObject(schema, sg.generate(s, arg))
	}
	return schema
}

func (sg *SchemaGenerator) schemaForInstance(s *scope, base ast.Expr, args []ast.Expr) *openapi3.Schema {
	switch b := base.(type) {
	case *ast.Ident:
		if decl := sg.project.Type(s.file.Dir, b.Name); decl != nil {
			return sg.schemaForNamed(s.file.Dir, decl, args, s)
		}
	case *ast.SelectorExpr:
		return sg.schemaForSelector(s, b, args)
	}
	return unsupported(types.ExprString(base))
}

// schemaForNamed inlines a named project type. Type arguments are bound to
// the declaration's type parameters and interpreted in the caller's scope.
// Typed constants of the type become an enum.
func (sg *SchemaGenerator) schemaForNamed(dir string, decl *analyzer.TypeDecl, args []ast.Expr, caller *scope) *openapi3.Schema {
	key := dir + "." + decl.Spec.Name.Name
	if len(args) > 0 {
		names := make([]string, len(args))
		for i, arg := range args {
			names[i] = types.ExprString(arg)
		}
		key += "[" + strings.Join(names, ",") + "]"
	}
	if sg.visiting[key] {
		schema := openapi3.NewObjectSchema()
		schema.Description = "Recursive reference to " + decl.Spec.Name.Name
		return schema
	}
	sg.visiting[key] = true
	defer delete(sg.visiting, key)

	inner := &scope{file: decl.File, subst: make(map[string]binding)}
	if tp := decl.Spec.TypeParams; tp != nil {
		i := 0
		for _, field := range tp.List {
			for _, name := range field.Names {
				if i < len(args) {
					inner.subst[name.Name] = binding{expr: args[i], scope: caller}
				}
				i++
			}
		}
	}

	schema := sg.generate(inner, decl.Spec.Type)
	if doc := analyzer.ParseDocComment(decl.Doc); doc.Summary != "" && schema.Description == "" {
		schema.Description = doc.Summary
	}
	if consts := sg.project.EnumConstants(dir, decl.Spec.Name.Name); len(consts) > 0 {
		var values []any
		for _, c := range consts {
			switch {
			case c.IsString:
				values = append(values, c.Value)
			case c.HasInt:
				values = append(values, float64(c.Int))
			}
		}
		if len(values) > 0 {
			schema.Enum = values
		}
	}
	return schema
}

// schemaForStruct inlines the exported fields of a struct. Field names
// follow the json tag, then the form tag. Pointer and omitempty fields are
// optional. Embedded structs without a name tag are flattened.
func (sg *SchemaGenerator) schemaForStruct(s *scope, st *ast.StructType) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()
	for _, field := range st.Fields.List {
		tag := fieldTag(field)
		name, opts := tagName(tag)
		if name == "-" {
			continue
		}

		if len(field.Names) == 0 {
			if name == "" {
				mergeObject(schema, sg.generate(s, field.Type))
				continue
			}
			sg.addProperty(schema, s, field, name, opts)
			continue
		}
		for _, id := range field.Names {
			if !id.IsExported() {
				continue
			}
			propName := name
			if propName == "" {
				propName = id.Name
			}
			sg.addProperty(schema, s, field, propName, opts)
		}
	}
	return schema
}

func (sg *SchemaGenerator) addProperty(schema *openapi3.Schema, s *scope, field *ast.Field, name, opts string) {
	prop := sg.generate(s, field.Type)
	doc := field.Doc
	if doc == nil {
		doc = field.Comment
	}
	if desc := analyzer.ParseDocComment(doc); desc.Summary != "" {
		prop.Description = desc.Summary
	}
	schema.WithProperty(name, prop)

	_, pointer := field.Type.(*ast.StarExpr)
	if !pointer && !strings.Contains(opts, "omitempty") {
		schema.Required = append(schema.Required, name)
	}
}

func fieldTag(field *ast.Field) reflect.StructTag {
	if field.Tag == nil {
		return ""
	}
	raw, err := strconv.Unquote(field.Tag.Value)
	if err != nil {
		return ""
	}
	return reflect.StructTag(raw)
}

func tagName(tag reflect.StructTag) (name, opts string) {
	for _, key := range []string{"json", "form"} {
		if v, ok := tag.Lookup(key); ok {
			name, opts, _ = strings.Cut(v, ",")
			if name != "" || opts != "" {
				return name, opts
			}
		}
	}
	return "", ""
}

// mergeObject copies the properties and required names of src into dst.
func mergeObject(dst, src *openapi3.Schema) {
	if !src.Type.Is(openapi3.TypeObject) {
		return
	}
	for name, prop := range src.Properties {
		dst.Properties[name] = prop
	}
	dst.Required = append(dst.Required, src.Required...)
}
