package assembler

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"sort"
	"strconv"

	"github.com/Zachacious/go-kitgen/internal/analyzer"
	"github.com/Zachacious/go-kitgen/internal/config"
	"github.com/Zachacious/go-kitgen/internal/model"
	"github.com/Zachacious/go-kitgen/kit"
	"github.com/cockroachdb/errors"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/rs/zerolog"
)

var (
	ErrMissingSource    = errors.New("endpoint parameter has no source decorator")
	ErrUnknownSource    = errors.New("unrecognised source decorator")
	ErrComplexParameter = errors.New("header, query and route parameters must have a scalar or array type")
	ErrMultiUpload      = errors.New("unsupported multi-upload")
	ErrUnknownSecurity  = errors.New("security scheme is not declared in the config")
	ErrInvalidDocument  = errors.New("generated document is invalid")
	ErrDuplicateRoute   = errors.New("duplicate route")
	ErrMultipleBodies   = errors.New("an endpoint reads the request body once")
)

// InvalidDocumentError carries the rejected document so it can be shown to
// the user.
type InvalidDocumentError struct {
	Doc []byte
	Err error
}

func (e *InvalidDocumentError) Error() string {
	return ErrInvalidDocument.Error() + ": " + e.Err.Error()
}

func (e *InvalidDocumentError) Unwrap() error { return e.Err }

func (e *InvalidDocumentError) Is(target error) bool { return target == ErrInvalidDocument }

const (
	mimeJSON      = "application/json"
	mimeForm      = "application/x-www-form-urlencoded"
	mimeMultipart = "multipart/form-data"
)

// BuildSpec constructs the OpenAPI 3 document describing every visible
// endpoint, one operation per HTTP method, and validates it.
func BuildSpec(ctx context.Context, p *analyzer.Project, manifests []*model.EndpointManifest, cfg *config.Config) (*openapi3.T, error) {
	log := zerolog.Ctx(ctx)
	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       cfg.Info.Title,
			Version:     cfg.Info.Version,
			Description: cfg.Info.Description,
		},
		Components: &openapi3.Components{
			SecuritySchemes: sanitizeSecuritySchemes(cfg.SecuritySchemes),
		},
		Paths: &openapi3.Paths{},
	}
	if c := cfg.Info.Contact; c.Name != "" || c.URL != "" || c.Email != "" {
		spec.Info.Contact = &openapi3.Contact{Name: c.Name, URL: c.URL, Email: c.Email}
	}
	if l := cfg.Info.License; l.Name != "" {
		spec.Info.License = &openapi3.License{Name: l.Name, URL: l.URL}
	}

	b := &builder{
		schemas: NewSchemaGenerator(p, cfg.Source.KitImport),
		secure:  spec.Components.SecuritySchemes,
	}
	owners := make(map[string]*model.EndpointManifest)
	for _, m := range manifests {
		if m.Hidden {
			log.Debug().Str("endpoint", m.Endpoint.Path).Msg("skipping hidden endpoint")
			continue
		}
		route := kit.BuildRoute(m.Endpoint.Path, m.Route)
		for _, method := range m.Methods {
			key := method + " " + routeParam.ReplaceAllString(route, "{}")
			if prev := owners[key]; prev != nil {
				return nil, errors.WithHint(
					errors.Wrapf(ErrDuplicateRoute, "%s %s is claimed by %s (%s) and %s (%s)",
						method, route, prev.Name(), prev.File().Rel, m.Name(), m.File().Rel),
					"give one of them a different @Route")
			}
			owners[key] = m

			op, err := b.operation(m)
			if err != nil {
				return nil, err
			}
			pathItem := spec.Paths.Find(route)
			if pathItem == nil {
				pathItem = &openapi3.PathItem{}
				spec.Paths.Set(route, pathItem)
			}
			pathItem.SetOperation(method, op)
			log.Debug().Str("method", method).Str("route", route).Msg("added operation")
		}
	}

	if err := spec.Validate(ctx); err != nil {
		doc, _ := json.MarshalIndent(spec, "", "  ")
		return nil, &InvalidDocumentError{Doc: doc, Err: err}
	}
	return spec, nil
}

// routeParam matches {name} tokens; routes differing only in parameter
// names collide at runtime.
var routeParam = regexp.MustCompile(`\{[^{}/]+\}`)

// sanitizeSecuritySchemes builds security scheme objects from the loosely
// typed config map.
func sanitizeSecuritySchemes(raw map[string]any) openapi3.SecuritySchemes {
	schemes := make(openapi3.SecuritySchemes)
	for key, val := range raw {
		schemeMap, ok := val.(map[string]any)
		if !ok {
			continue
		}
		scheme := &openapi3.SecurityScheme{}
		if t, ok := schemeMap["type"].(string); ok {
			scheme.Type = t
		}
		if d, ok := schemeMap["description"].(string); ok {
			scheme.Description = d
		}
		if s, ok := schemeMap["scheme"].(string); ok {
			scheme.Scheme = s
		}
		if bf, ok := schemeMap["bearerFormat"].(string); ok {
			scheme.BearerFormat = bf
		}
		if n, ok := schemeMap["name"].(string); ok {
			scheme.Name = n
		}
		if in, ok := schemeMap["in"].(string); ok {
			scheme.In = in
		}
		schemes[key] = &openapi3.SecuritySchemeRef{Value: scheme}
	}
	return schemes
}

type builder struct {
	schemas *SchemaGenerator
	secure  openapi3.SecuritySchemes
}

func (b *builder) operation(m *model.EndpointManifest) (*openapi3.Operation, error) {
	op := openapi3.NewOperation()
	op.Summary = m.Summary
	op.Description = m.Description
	op.Tags = m.Tags
	op.Deprecated = m.Deprecated

	if len(m.Security) > 0 {
		reqs := openapi3.NewSecurityRequirements()
		for _, sec := range m.Security {
			if _, ok := b.secure[sec.Name]; !ok {
				return nil, errors.WithHint(
					errors.Wrapf(ErrUnknownSecurity, "%s: %s uses %q", m.File().Rel, m.Name(), sec.Name),
					"declare it under securityschemes in .kitgen.yaml")
			}
			reqs.With(openapi3.NewSecurityRequirement().Authenticate(sec.Name, sec.Scopes...))
		}
		op.Security = reqs
	}

	for _, param := range m.Params {
		if err := b.parameter(m, op, param); err != nil {
			return nil, err
		}
	}

	op.Responses = b.responses(m)
	return op, nil
}

func (b *builder) parameter(m *model.EndpointManifest, op *openapi3.Operation, param model.Param) error {
	file := m.Entry.File
	where := file.Rel + ": " + m.Name() + " parameter " + param.Name
	if param.Decorator == "" {
		return errors.WithHint(errors.Wrap(ErrMissingSource, where),
			"annotate it with @FromRoute, @FromQuery, @FromHeader or @FromBody")
	}
	if param.Source == "" {
		return errors.Wrapf(ErrUnknownSource, "%s: @%s", where, param.Decorator)
	}

	if param.Source == model.SourceBody {
		if op.RequestBody != nil {
			return errors.WithHint(errors.Wrap(ErrMultipleBodies, where),
				"bind the whole body into one @FromBody parameter")
		}
		body, err := b.requestBody(m, param)
		if err != nil {
			return errors.Wrap(err, where)
		}
		op.RequestBody = &openapi3.RequestBodyRef{Value: body}
		return nil
	}

	schema := b.schemas.GenerateSchema(file, param.Type)
	if schema.Type.Is(openapi3.TypeObject) {
		return errors.Wrap(ErrComplexParameter, where)
	}

	var p *openapi3.Parameter
	switch param.Source {
	case model.SourceRoute:
		p = openapi3.NewPathParameter(param.Key)
	case model.SourceQuery:
		p = openapi3.NewQueryParameter(param.Key)
	case model.SourceHeader:
		p = openapi3.NewHeaderParameter(param.Key)
	}
	p = p.WithSchema(schema).WithDescription(param.Description)
	if param.Source != model.SourceRoute {
		p = p.WithRequired(param.Required)
	}
	op.AddParameter(p)
	return nil
}

func (b *builder) requestBody(m *model.EndpointManifest, param model.Param) (*openapi3.RequestBody, error) {
	file := m.Entry.File
	schema := b.schemas.GenerateSchema(file, param.Type)
	mime := mimeJSON
	switch {
	case m.BodyParser.Multipart:
		mime = mimeMultipart
		schema = flattenMultipart(schema)
		if name, ok := multiUpload(schema); ok {
			return nil, errors.WithHint(
				errors.Wrapf(ErrMultiUpload, "field %s", name),
				"accept a single file per field, or mark the endpoint @Hidden")
		}
	case param.Form:
		mime = mimeForm
	}

	body := openapi3.NewRequestBody().
		WithContent(openapi3.NewContentWithSchema(schema, []string{mime})).
		WithRequired(true)
	body.Extensions = map[string]any{"x-originalParamName": param.Name}
	return body, nil
}

// flattenMultipart lifts the properties of the Fields and Files halves of
// a multipart body to the top level, matching how the form is sent.
func flattenMultipart(schema *openapi3.Schema) *openapi3.Schema {
	out := openapi3.NewObjectSchema()
	for name, prop := range schema.Properties {
		if (name == "Fields" || name == "Files") && prop.Value.Type.Is(openapi3.TypeObject) {
			mergeObject(out, prop.Value)
			continue
		}
		out.Properties[name] = prop
	}
	for _, name := range schema.Required {
		if name != "Fields" && name != "Files" {
			out.Required = append(out.Required, name)
		}
	}
	return out
}

// multiUpload finds a property holding an array of files.
func multiUpload(schema *openapi3.Schema) (string, bool) {
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		prop := schema.Properties[name].Value
		if prop.Type.Is(openapi3.TypeArray) && prop.Items != nil && prop.Items.Value.Format == "binary" {
			return name, true
		}
	}
	return "", false
}

func (b *builder) responses(m *model.EndpointManifest) *openapi3.Responses {
	responses := &openapi3.Responses{}
	if len(m.Responses) == 0 {
		responses.Set("default", &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("Default Response")})
		return responses
	}
	for _, r := range m.Responses {
		key := strconv.Itoa(r.Status)
		if responses.Value(key) != nil {
			continue
		}
		desc := r.Description
		if desc == "" {
			desc = http.StatusText(r.Status)
		}
		if desc == "" {
			desc = "Default Response"
		}
		resp := openapi3.NewResponse().WithDescription(desc)
		if r.Type != nil {
			mime := r.MediaType
			if mime == "" {
				mime = mimeJSON
			}
			resp.Content = openapi3.NewContentWithSchema(b.schemas.GenerateSchema(m.Entry.File, r.Type), []string{mime})
		}
		responses.Set(key, &openapi3.ResponseRef{Value: resp})
	}
	return responses
}
