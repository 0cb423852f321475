package forms

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/DukeRupert/leaguekit/internal/domain"
)

//go:embed templates/default.yaml templates/schema.json
var bundled embed.FS

const schemaURL = "https://leaguekit.local/schemas/templates.schema.json"

// document is the top-level shape of a template file.
type document struct {
	Templates []domain.FormTemplate `yaml:"templates"`
}

// compileSchema compiles the embedded template schema.
func compileSchema() (*jsonschema.Schema, error) {
	raw, err := bundled.ReadFile("templates/schema.json")
	if err != nil {
		return nil, fmt.Errorf("read template schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("template schema load failed: %w", err)
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("template schema compile failed: %w", err)
	}
	return schema, nil
}

// Parse decodes and validates a YAML template document.
func Parse(r io.Reader) ([]domain.FormTemplate, error) {
	const op = "forms.Parse"

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to read templates")
	}

	// Validate the generic shape first so authoring errors name the offending path.
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "templates are not valid YAML")
	}
	instance, err := toJSONValue(generic)
	if err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "templates cannot be represented as JSON")
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, domain.Internal(err, op, "failed to compile template schema")
	}
	if err := schema.Validate(instance); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, fmt.Sprintf("templates failed schema validation: %v", err))
	}

	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, "templates could not be decoded")
	}

	for i := range doc.Templates {
		if err := Validate(&doc.Templates[i]); err != nil {
			return nil, err
		}
	}
	return doc.Templates, nil
}

// LoadBundled returns the templates shipped with the binary.
func LoadBundled() ([]domain.FormTemplate, error) {
	f, err := bundled.Open("templates/default.yaml")
	if err != nil {
		return nil, domain.Internal(err, "forms.LoadBundled", "failed to open bundled templates")
	}
	defer f.Close()
	return Parse(f)
}

// toJSONValue normalizes a YAML-decoded value into encoding/json types.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks invariants the schema cannot express: field ids unique
// across pages, known field types, and override targets that exist.
func Validate(t *domain.FormTemplate) error {
	const op = "forms.Validate"

	seen := make(map[string]bool)
	for _, f := range AllFields(t) {
		if f.ID == "" {
			return domain.Invalid(op, fmt.Sprintf("template %d has a field without an id", t.ID))
		}
		if seen[f.ID] {
			return domain.Invalid(op, fmt.Sprintf("template %d declares field %s more than once", t.ID, f.ID))
		}
		seen[f.ID] = true
		if !f.Type.IsValid() {
			return domain.Invalid(op, fmt.Sprintf("template %d field %s has unknown type %q", t.ID, f.ID, f.Type))
		}
	}

	pages := make(map[int]bool)
	for _, p := range t.Pages {
		if pages[p.PageID] {
			return domain.Invalid(op, fmt.Sprintf("template %d declares page %d more than once", t.ID, p.PageID))
		}
		pages[p.PageID] = true
	}

	for _, o := range t.PageOverrides {
		if !pages[o.PageID] {
			return domain.Invalid(op, fmt.Sprintf("template %d overrides unknown page %d", t.ID, o.PageID))
		}
		for _, id := range o.PinFirst {
			if PageOf(t, id) != o.PageID {
				return domain.Invalid(op, fmt.Sprintf("template %d pins field %s that is not on page %d", t.ID, id, o.PageID))
			}
		}
	}

	for _, f := range AllFields(t) {
		if f.DependsOn != "" && !seen[f.DependsOn] {
			return domain.Invalid(op, fmt.Sprintf("template %d field %s depends on unknown field %s", t.ID, f.ID, f.DependsOn))
		}
	}
	return nil
}
