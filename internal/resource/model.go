package resource

import (
    "fmt"
    "slices"

    "gopkg.in/yaml.v3"
)

// Resource definition model read by the loader and consumed by the surface builder.

type Method string

const (
    GET    Method = "get"
    POST   Method = "post"
    PUT    Method = "put"
    DELETE Method = "delete"
    PATCH  Method = "patch"
    HEAD   Method = "head"
)

type Definition struct {
    Kind               string       `yaml:"kind" validate:"required"`
    APIVersion         string       `yaml:"apiVersion" validate:"required_if=VersionInPath true"`
    Description        string       `yaml:"description"`
    VersionInPath      bool         `yaml:"versionInPath"`
    Methods            Methods      `yaml:"methods"`
    Descriptions       Descriptions `yaml:"descriptions"`
    DefaultQueryParams []QueryParam `yaml:"default_query_params" validate:"dive"`
    Security           *Security    `yaml:"security"`
    AsyncAPI           *AsyncAPI    `yaml:"asyncapi"`
    Schema             *Schema      `yaml:"schema" validate:"required"`

    // Location is the file the definition was read from, if any.
    Location string `yaml:"-"`
}

// Methods holds the per-level allow-lists.
type Methods struct {
    Resource      []Method `yaml:"resource" validate:"dive,oneof=delete get head patch post put"`
    Instance      []Method `yaml:"instance" validate:"dive,oneof=delete get head patch post put"`
    InstanceAttrs []Method `yaml:"instance_attrs" validate:"dive,oneof=delete get head patch post put"`
}

// Descriptions holds per-level, per-method description overrides.
type Descriptions struct {
    Resource      map[Method]string `yaml:"resource"`
    Instance      map[Method]string `yaml:"instance"`
    InstanceAttrs map[Method]string `yaml:"instance_attrs"`
}

type Key struct {
    Name        string  `yaml:"name" validate:"required"`
    Description string  `yaml:"description"`
    Schema      *Schema `yaml:"schema"`
}

type QueryParam struct {
    Name        string   `yaml:"name" validate:"required"`
    Description string   `yaml:"description"`
    Required    bool     `yaml:"required"`
    Schema      *Schema  `yaml:"schema"`
    Default     any      `yaml:"default"`
    Methods     []Method `yaml:"methods" validate:"dive,oneof=delete get head patch post put"`
}

// AppliesTo reports whether the parameter is attached to operations of method m.
func (q QueryParam) AppliesTo(m Method) bool {
    if len(q.Methods) == 0 {
        return true
    }
    return slices.Contains(q.Methods, m)
}

type Security struct {
    Scheme        Schemes  `yaml:"scheme" validate:"required,min=1"`
    Resource      []Method `yaml:"resource"`
    Instance      []Method `yaml:"instance"`
    InstanceAttrs []Method `yaml:"instance_attrs"`
}

// SchemeName is the name of the first declared scheme.
func (s *Security) SchemeName() string {
    if s == nil || len(s.Scheme) == 0 {
        return ""
    }
    return s.Scheme[0].Name
}

// Scoped reports whether any level list is declared. An unscoped policy
// applies to every operation of the resource.
func (s *Security) Scoped() bool {
    return s != nil && (s.Resource != nil || s.Instance != nil || s.InstanceAttrs != nil)
}

type SecurityScheme struct {
    Name       string
    Definition map[string]any
}

// Schemes keeps security schemes in declaration order.
type Schemes []SecurityScheme

func (s *Schemes) UnmarshalYAML(value *yaml.Node) error {
    if value.Kind != yaml.MappingNode {
        return fmt.Errorf("line %d: security scheme must be a mapping", value.Line)
    }
    out := make(Schemes, 0, len(value.Content)/2)
    for i := 0; i+1 < len(value.Content); i += 2 {
        var def map[string]any
        if err := value.Content[i+1].Decode(&def); err != nil {
            return err
        }
        out = append(out, SecurityScheme{Name: value.Content[i].Value, Definition: def})
    }
    *s = out
    return nil
}

type AsyncAPI struct {
    Servers  map[string]any `yaml:"servers"`
    Channels Channels       `yaml:"channels"`
}

type Channels struct {
    Resources     bool `yaml:"resources"`
    Instances     bool `yaml:"instances"`
    InstanceAttrs bool `yaml:"instance_attrs"`
}

// Schema is a JSON-Schema-like node extended with resource annotations
// (key, query_params, methods, descriptions, expose and nested schema).
type Schema struct {
    Ref         string     `yaml:"$ref"`
    Type        string     `yaml:"type"`
    Format      string     `yaml:"format"`
    Description string     `yaml:"description"`
    Enum        []any      `yaml:"enum"`
    Default     any        `yaml:"default"`
    Example     any        `yaml:"example"`
    Nullable    bool       `yaml:"nullable"`
    ReadOnly    bool       `yaml:"readOnly"`
    Items       *Schema    `yaml:"items"`
    Properties  Properties `yaml:"properties" validate:"dive"`
    Required    []string   `yaml:"required"`
    AllOf       []*Schema  `yaml:"allOf"`

    Key          *Key          `yaml:"key"`
    QueryParams  []QueryParam  `yaml:"query_params" validate:"dive"`
    Methods      *Methods      `yaml:"methods"`
    Descriptions *Descriptions `yaml:"descriptions"`
    Expose       *bool         `yaml:"expose"`
    // Schema marks a property as a sub-resource collection.
    Schema *Schema `yaml:"schema"`
}

// Exposed is false only when expose is explicitly false.
func (s *Schema) Exposed() bool {
    return s == nil || s.Expose == nil || *s.Expose
}

// EnumStrings renders enum literals as strings.
func (s *Schema) EnumStrings() []string {
    if s == nil || len(s.Enum) == 0 {
        return nil
    }
    out := make([]string, 0, len(s.Enum))
    for _, v := range s.Enum {
        out = append(out, fmt.Sprint(v))
    }
    return out
}

// Clone returns a deep copy of s.
func (s *Schema) Clone() *Schema {
    if s == nil {
        return nil
    }
    c := *s
    c.Enum = append([]any(nil), s.Enum...)
    c.Required = append([]string(nil), s.Required...)
    c.Items = s.Items.Clone()
    c.Schema = s.Schema.Clone()
    if s.Properties != nil {
        c.Properties = make(Properties, len(s.Properties))
        for i, p := range s.Properties {
            c.Properties[i] = Property{Name: p.Name, Schema: p.Schema.Clone()}
        }
    }
    if s.AllOf != nil {
        c.AllOf = make([]*Schema, len(s.AllOf))
        for i, a := range s.AllOf {
            c.AllOf[i] = a.Clone()
        }
    }
    if s.Key != nil {
        k := *s.Key
        k.Schema = s.Key.Schema.Clone()
        c.Key = &k
    }
    if s.QueryParams != nil {
        c.QueryParams = make([]QueryParam, len(s.QueryParams))
        for i, q := range s.QueryParams {
            q.Schema = q.Schema.Clone()
            q.Methods = append([]Method(nil), q.Methods...)
            c.QueryParams[i] = q
        }
    }
    if s.Expose != nil {
        e := *s.Expose
        c.Expose = &e
    }
    return &c
}

type Property struct {
    Name   string
    Schema *Schema
}

// Properties keeps object properties in declaration order.
type Properties []Property

func (p *Properties) UnmarshalYAML(value *yaml.Node) error {
    if value.Kind != yaml.MappingNode {
        return fmt.Errorf("line %d: properties must be a mapping", value.Line)
    }
    out := make(Properties, 0, len(value.Content)/2)
    for i := 0; i+1 < len(value.Content); i += 2 {
        var s Schema
        if err := value.Content[i+1].Decode(&s); err != nil {
            return err
        }
        out = append(out, Property{Name: value.Content[i].Value, Schema: &s})
    }
    *p = out
    return nil
}

// Get returns the named property schema or nil.
func (p Properties) Get(name string) *Schema {
    for _, prop := range p {
        if prop.Name == name {
            return prop.Schema
        }
    }
    return nil
}

// Set replaces the named property in place, or appends it.
func (p Properties) Set(name string, s *Schema) Properties {
    for i := range p {
        if p[i].Name == name {
            p[i].Schema = s
            return p
        }
    }
    return append(p, Property{Name: name, Schema: s})
}

func (p Properties) Names() []string {
    out := make([]string, len(p))
    for i, prop := range p {
        out[i] = prop.Name
    }
    return out
}
