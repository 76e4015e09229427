package assembler

import (
	"encoding/json"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Zachacious/go-kitgen/internal/config"
	"github.com/cockroachdb/errors"
	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// Serialize encodes the document in the configured format. Swagger 2
// output is converted from the OpenAPI 3 document and carries the
// configured schemes. Paths ending in .yaml or .yml are written as YAML,
// everything else as indented JSON.
func Serialize(spec *openapi3.T, format string, schemes []string, path string) ([]byte, error) {
	var doc any = spec
	if format == config.FormatSwagger2 {
		v2, err := toSwagger2(spec)
		if err != nil {
			return nil, err
		}
		v2.Schemes = schemes
		doc = v2
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal document")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return toYAML(data)
	}
	return append(data, '\n'), nil
}

// toSwagger2 converts the document and puts back what the converter
// drops. Form parameters take their required flag from the form schema and
// keep their formats. Binary properties stay in body and response schemas.
// The result is checked before it is returned.
func toSwagger2(spec *openapi3.T) (*openapi2.T, error) {
	v2, err := openapi2conv.FromV3(spec)
	if err != nil {
		return nil, errors.Wrap(err, "convert to swagger 2")
	}
	for path, item3 := range spec.Paths.Map() {
		item2 := v2.Paths[path]
		if item2 == nil {
			continue
		}
		ops2 := item2.Operations()
		for method, op3 := range item3.Operations() {
			if op2 := ops2[method]; op2 != nil {
				repairOperation(op3, op2)
			}
		}
	}
	if err := checkSwagger2(v2); err != nil {
		doc, _ := json.MarshalIndent(v2, "", "  ")
		return nil, &InvalidDocumentError{Doc: doc, Err: err}
	}
	return v2, nil
}

func repairOperation(op3 *openapi3.Operation, op2 *openapi2.Operation) {
	if body := op3.RequestBody; body != nil && body.Value != nil {
		for mime, media := range body.Value.Content {
			if media.Schema == nil || media.Schema.Value == nil {
				continue
			}
			switch mime {
			case mimeForm, mimeMultipart:
				repairFormData(media.Schema.Value, op2.Parameters)
			default:
				for _, p := range op2.Parameters {
					if p.In == "body" {
						p.Schema = restoreBinary(media.Schema, p.Schema)
					}
				}
			}
		}
	}
	if op3.Responses == nil {
		return
	}
	for code, resp3 := range op3.Responses.Map() {
		resp2 := op2.Responses[code]
		if resp2 == nil || resp3.Value == nil {
			continue
		}
		if media := resp3.Value.Content[mimeJSON]; media != nil && media.Schema != nil {
			resp2.Schema = restoreBinary(media.Schema, resp2.Schema)
		}
	}
}

// repairFormData reads the required list of the form object, not of each
// property, and restores formats on non-file parameters.
func repairFormData(form *openapi3.Schema, params openapi2.Parameters) {
	for _, p := range params {
		if p.In != "formData" {
			continue
		}
		prop := form.Properties[p.Name]
		if prop == nil || prop.Value == nil {
			continue
		}
		p.Required = slices.Contains(form.Required, p.Name)
		if !p.Type.Is("file") {
			p.Format = prop.Value.Format
		}
	}
}

// restoreBinary returns s2 with every binary string of s3 that the
// converter turned into a form parameter put back as a property or item.
func restoreBinary(s3 *openapi3.SchemaRef, s2 *openapi2.SchemaRef) *openapi2.SchemaRef {
	if s3 == nil || s3.Value == nil {
		return s2
	}
	v := s3.Value
	if s2 == nil {
		if v.Type.Is(openapi3.TypeString) && v.Format == "binary" {
			return &openapi2.SchemaRef{Value: &openapi2.Schema{
				Type:        &openapi3.Types{openapi3.TypeString},
				Format:      "binary",
				Description: v.Description,
			}}
		}
		return nil
	}
	if s2.Ref != "" || s2.Value == nil {
		return s2
	}
	for name, prop := range v.Properties {
		if fixed := restoreBinary(prop, s2.Value.Properties[name]); fixed != nil {
			if s2.Value.Properties == nil {
				s2.Value.Properties = make(openapi2.Schemas)
			}
			s2.Value.Properties[name] = fixed
		}
	}
	s2.Value.Items = restoreBinary(v.Items, s2.Value.Items)
	return s2
}

// checkSwagger2 rejects body parameters without a schema and objects
// requiring properties they do not define.
func checkSwagger2(doc *openapi2.T) error {
	for _, name := range slices.Sorted(maps.Keys(doc.Definitions)) {
		if err := checkSchema("definitions."+name, doc.Definitions[name]); err != nil {
			return err
		}
	}
	for _, path := range slices.Sorted(maps.Keys(doc.Paths)) {
		ops := doc.Paths[path].Operations()
		for _, method := range slices.Sorted(maps.Keys(ops)) {
			op := ops[method]
			where := method + " " + path
			for _, p := range op.Parameters {
				if p.In == "body" && p.Schema == nil {
					return errors.Newf("%s: body parameter %s has no schema", where, p.Name)
				}
				if err := checkSchema(where+" parameter "+p.Name, p.Schema); err != nil {
					return err
				}
			}
			for _, code := range slices.Sorted(maps.Keys(op.Responses)) {
				if resp := op.Responses[code]; resp != nil {
					if err := checkSchema(where+" response "+code, resp.Schema); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func checkSchema(where string, ref *openapi2.SchemaRef) error {
	if ref == nil || ref.Value == nil {
		return nil
	}
	s := ref.Value
	if len(s.AllOf) == 0 {
		for _, name := range s.Required {
			if _, ok := s.Properties[name]; !ok {
				return errors.Newf("%s: required property %q is not defined", where, name)
			}
		}
	}
	for _, name := range slices.Sorted(maps.Keys(s.Properties)) {
		if err := checkSchema(where+"."+name, s.Properties[name]); err != nil {
			return err
		}
	}
	if err := checkSchema(where+"[]", s.Items); err != nil {
		return err
	}
	for i, sub := range s.AllOf {
		if err := checkSchema(fmt.Sprintf("%s.allOf[%d]", where, i), sub); err != nil {
			return err
		}
	}
	return nil
}

// toYAML re-encodes JSON as block style YAML, keeping key order.
func toYAML(data []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, errors.Wrap(err, "decode document")
	}
	blockStyle(&node)
	out, err := yaml.Marshal(&node)
	if err != nil {
		return nil, errors.Wrap(err, "encode yaml")
	}
	return out, nil
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		blockStyle(child)
	}
}
