// Package openapiemitter renders the surface as an OpenAPI 3 document.
package openapiemitter

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/rsgen/internal/emitter"
	"github.com/mark3labs/rsgen/internal/resource"
	"github.com/mark3labs/rsgen/internal/surface"
)

const DefaultVersion = "3.0.3"

// Output formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Options controls how the interface document is rendered.
type Options struct {
	emitter.Options
	Prefix          string   // optional server URL
	OpenAPIVersion  string   // defaults to DefaultVersion
	Format          string   // FormatYAML (default) or FormatJSON
	SecuritySchemes []string // files of extra security schemes to inject
}

// Emit builds, validates, renders and writes the document.
func Emit(ctx context.Context, s *surface.Surface, meta emitter.Metadata, opts Options) (*emitter.Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.AsModules {
		return nil, fmt.Errorf("openapiemitter: per-resource output is not supported")
	}
	doc, err := Build(ctx, s, meta, opts)
	if err != nil {
		return nil, err
	}
	out, err := Render(doc, opts.Format)
	if err != nil {
		return nil, err
	}
	return emitter.Write(ctx, out, nil, opts.Options)
}

// Build assembles and validates the document.
func Build(ctx context.Context, s *surface.Surface, meta emitter.Metadata, opts Options) (*openapi3.T, error) {
	if s == nil {
		return nil, fmt.Errorf("openapiemitter: nil surface")
	}
	meta = meta.WithDefaults()
	version := opts.OpenAPIVersion
	if version == "" {
		version = DefaultVersion
	}

	doc := &openapi3.T{
		OpenAPI: version,
		Info: &openapi3.Info{
			Title:       meta.Title,
			Description: meta.Description,
			Version:     meta.Version,
		},
		Paths: openapi3.Paths{},
		Components: &openapi3.Components{
			Schemas:         openapi3.Schemas{},
			SecuritySchemes: openapi3.SecuritySchemes{},
		},
	}
	if opts.Prefix != "" {
		doc.Servers = openapi3.Servers{{URL: opts.Prefix}}
	}

	c := &converter{reg: s.Components, comps: doc.Components.Schemas}
	for _, op := range s.Operations() {
		item := doc.Paths[op.Path]
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths[op.Path] = item
		}
		item.SetOperation(strings.ToUpper(string(op.Method)), c.operation(op))
		if c.err != nil {
			return nil, c.err
		}
	}
	// Every registered component is published, referenced or not.
	for _, name := range s.Components.Names() {
		c.component(name)
	}
	if c.err != nil {
		return nil, c.err
	}

	for _, r := range s.Resources {
		if r.Definition == nil || r.Definition.Security == nil {
			continue
		}
		for _, sch := range r.Definition.Security.Scheme {
			ref, err := securityScheme(sch.Definition)
			if err != nil {
				return nil, fmt.Errorf("resource %s: security scheme %s: %w", r.Kind, sch.Name, err)
			}
			doc.Components.SecuritySchemes[sch.Name] = ref
		}
	}
	for _, path := range opts.SecuritySchemes {
		if err := injectSchemes(doc.Components.SecuritySchemes, path); err != nil {
			return nil, err
		}
	}

	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("openapiemitter: invalid document: %w", err)
	}
	return doc, nil
}

// Render encodes doc as YAML or JSON.
func Render(doc *openapi3.T, format string) ([]byte, error) {
	switch format {
	case "", FormatYAML:
		raw, err := doc.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("openapiemitter: encode document: %w", err)
		}
		return jsonToYAML(raw)
	case FormatJSON:
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("openapiemitter: encode document: %w", err)
		}
		return append(out, '\n'), nil
	default:
		return nil, fmt.Errorf("openapiemitter: unknown format %q", format)
	}
}

// jsonToYAML re-encodes JSON as block-style YAML, keeping key order.
func jsonToYAML(raw []byte) ([]byte, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("openapiemitter: convert to yaml: %w", err)
	}
	clearStyle(&node)
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("openapiemitter: convert to yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		clearStyle(c)
	}
}

type converter struct {
	reg   *surface.Registry
	comps openapi3.Schemas
	err   error
}

func (c *converter) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *converter) operation(o surface.Operation) *openapi3.Operation {
	op := &openapi3.Operation{
		OperationID: o.ID,
		Description: o.Doc(),
		Tags:        o.Tags,
		Responses:   openapi3.Responses{},
	}
	for _, p := range o.Parameters {
		in := openapi3.ParameterInQuery
		if p.In == surface.InPath {
			in = openapi3.ParameterInPath
		}
		param := &openapi3.Parameter{
			Name:        p.Name,
			In:          in,
			Description: p.Description,
			Required:    p.Required,
			Schema:      c.ref(p.Schema, o),
		}
		if p.Default != nil && param.Schema.Ref == "" {
			param.Schema.Value.Default = p.Default
		}
		op.Parameters = append(op.Parameters, &openapi3.ParameterRef{Value: param})
	}
	if o.Request != nil {
		body := openapi3.NewRequestBody().
			WithDescription(o.Request.Description).
			WithRequired(true).
			WithJSONSchemaRef(c.ref(o.Request.Schema, o))
		op.RequestBody = &openapi3.RequestBodyRef{Value: body}
	}
	resp := openapi3.NewResponse().WithDescription(o.Response.Description)
	if o.Response.Schema != nil {
		resp = resp.WithJSONSchemaRef(c.ref(o.Response.Schema, o))
	}
	op.Responses[o.Response.Status] = &openapi3.ResponseRef{Value: resp}

	if len(o.Security) > 0 {
		sec := openapi3.NewSecurityRequirements()
		for _, name := range o.Security {
			sec.With(openapi3.NewSecurityRequirement().Authenticate(name))
		}
		op.Security = sec
	}
	return op
}

// ref converts s, keeping component references symbolic. References
// outside the component namespace were already resolved by the loader
// and are inlined.
func (c *converter) ref(s *resource.Schema, o surface.Operation) *openapi3.SchemaRef {
	if s == nil {
		return &openapi3.SchemaRef{Value: openapi3.NewSchema()}
	}
	if name, ok := strings.CutPrefix(s.Ref, surface.ComponentPrefix); ok {
		if _, found := c.reg.Lookup(name); !found {
			c.fail(&surface.ComponentReferenceError{Resource: o.Kind, Operation: o.ID, Ref: s.Ref, Reason: "no component registered under " + name})
			return &openapi3.SchemaRef{Value: openapi3.NewSchema()}
		}
		return &openapi3.SchemaRef{Ref: s.Ref, Value: c.component(name)}
	}
	return &openapi3.SchemaRef{Value: c.schema(s, o)}
}

// component converts a registered component once. The entry is stored
// before conversion so self references terminate.
func (c *converter) component(name string) *openapi3.Schema {
	if ref, ok := c.comps[name]; ok {
		return ref.Value
	}
	s, ok := c.reg.Lookup(name)
	if !ok {
		c.fail(&surface.ComponentReferenceError{Ref: surface.ComponentPrefix + name, Reason: "not registered"})
		return openapi3.NewSchema()
	}
	v := &openapi3.Schema{}
	c.comps[name] = &openapi3.SchemaRef{Value: v}
	*v = *c.schema(s, surface.Operation{})
	return v
}

func (c *converter) schema(s *resource.Schema, o surface.Operation) *openapi3.Schema {
	if s.Type == "" && s.Schema != nil {
		return c.schema(s.Schema, o)
	}
	out := &openapi3.Schema{
		Type:        s.Type,
		Format:      s.Format,
		Description: s.Description,
		Default:     s.Default,
		Example:     s.Example,
		Nullable:    s.Nullable,
		ReadOnly:    s.ReadOnly,
	}
	if len(s.Enum) > 0 {
		out.Enum = append([]any(nil), s.Enum...)
	}
	if len(s.Required) > 0 {
		out.Required = append([]string(nil), s.Required...)
	}
	if s.Items != nil {
		out.Items = c.ref(s.Items, o)
	}
	if len(s.Properties) > 0 {
		out.Properties = make(openapi3.Schemas, len(s.Properties))
		for _, p := range s.Properties {
			out.Properties[p.Name] = c.ref(p.Schema, o)
		}
	}
	for _, part := range s.AllOf {
		out.AllOf = append(out.AllOf, c.ref(part, o))
	}
	return out
}

func securityScheme(def map[string]any) (*openapi3.SecuritySchemeRef, error) {
	raw, err := json.Marshal(def)
	if err != nil {
		return nil, err
	}
	var scheme openapi3.SecurityScheme
	if err := json.Unmarshal(raw, &scheme); err != nil {
		return nil, err
	}
	return &openapi3.SecuritySchemeRef{Value: &scheme}, nil
}

// injectSchemes reads a YAML or JSON mapping of scheme name to scheme.
func injectSchemes(dst openapi3.SecuritySchemes, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("security scheme file: %w", err)
	}
	var defs map[string]map[string]any
	if err := yaml.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("security scheme file %s: %w", path, err)
	}
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ref, err := securityScheme(defs[name])
		if err != nil {
			return fmt.Errorf("security scheme file %s: %s: %w", path, name, err)
		}
		dst[name] = ref
	}
	return nil
}
