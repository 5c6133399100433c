package lower

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/rsgen/internal/resource"
	"github.com/mark3labs/rsgen/internal/surface"
)

// ConversionStrategy says how a parsed command-line value becomes a field
// of the typed request body.
type ConversionStrategy int

const (
	// ConvertAbsent sends nothing: the value already travels in the path.
	ConvertAbsent ConversionStrategy = iota
	// ConvertEnumArray maps every element onto the model enum.
	ConvertEnumArray
	// ConvertEnum maps the CLI enum variant onto the model enum.
	ConvertEnum
	// ConvertObjectRef parses the string as JSON into the model type.
	ConvertObjectRef
	// ConvertNullableRequired and ConvertNullableOptional wrap the value
	// for tri-state (present, null, omitted) model fields.
	ConvertNullableRequired
	ConvertNullableOptional
	ConvertClone
	// ConvertNarrowRequired and ConvertNarrowOptional cast i64 to the
	// model's i32.
	ConvertNarrowRequired
	ConvertNarrowOptional
	ConvertDirect
)

var strategyNames = [...]string{
	ConvertAbsent:           "absent",
	ConvertEnumArray:        "enum_array",
	ConvertEnum:             "enum",
	ConvertObjectRef:        "object_ref",
	ConvertNullableRequired: "nullable_required",
	ConvertNullableOptional: "nullable_optional",
	ConvertClone:            "clone",
	ConvertNarrowRequired:   "narrow_required",
	ConvertNarrowOptional:   "narrow_optional",
	ConvertDirect:           "direct",
}

func (c ConversionStrategy) String() string {
	if c < 0 || int(c) >= len(strategyNames) {
		return fmt.Sprintf("ConversionStrategy(%d)", int(c))
	}
	return strategyNames[c]
}

// EnumVariant pairs a literal with its CLI and model variant names.
type EnumVariant struct {
	Value string
	CLI   string
	Model string
}

// StaticAttribute is one field of a statically typed command.
type StaticAttribute struct {
	Field
	Identifier string
	Flag       string
	// Type is the CLI-side type, without the Option wrapper.
	Type string
	// EnumType is the CLI enum declared for enum and enum array
	// attributes. It is scoped to the command and component.
	EnumType string
	Variants []EnumVariant
	// ModelType is the model enum path or the referenced model type.
	ModelType string

	Strategy ConversionStrategy
	// Body is the body-construction expression. Enum strategies leave it
	// empty; the renderer emits the match from Variants.
	Body              string
	NeedsNoneInUpdate bool
	// LowConfidence marks conversions decided by heuristics.
	LowConfidence bool
}

type StaticCommand struct {
	Name        string
	Pascal      string
	ID          string
	Method      string
	Path        string
	Description string
	Attrs       []StaticAttribute
	// QueryParams are the query attributes in attribute order.
	QueryParams []StaticAttribute
}

// Arguments returns the positional attributes in order.
func (c StaticCommand) Arguments() []StaticAttribute {
	var out []StaticAttribute
	for _, a := range c.Attrs {
		if a.Positional() {
			out = append(out, a)
		}
	}
	return out
}

// Enums lists attributes that need a CLI enum declaration.
func (c StaticCommand) Enums() []StaticAttribute {
	var out []StaticAttribute
	for _, a := range c.Attrs {
		if a.EnumType != "" {
			out = append(out, a)
		}
	}
	return out
}

type StaticGroup struct {
	Kind       string
	Name       string
	Identifier string
	Pascal     string
	Upper      string
	// Comp is the singular collection name, CompPascal its type form.
	Comp       string
	CompPascal string
	Component  string
	Parents    []string
	Path       string
	TopLevel   bool
	Resource   []StaticCommand
	Instance   []StaticCommand
}

// Commands returns resource then instance commands.
func (g StaticGroup) Commands() []StaticCommand {
	return append(append([]StaticCommand(nil), g.Resource...), g.Instance...)
}

type StaticModule struct {
	Kind   string
	Groups []StaticGroup
}

// Static lowers one resource for a statically typed CLI.
func Static(r *surface.Resource, reg *surface.Registry) (*StaticModule, error) {
	reg = registry(r, reg)
	m := &StaticModule{Kind: r.Kind}
	for _, n := range nodes(r) {
		comp := surface.Singularize(n.name)
		g := StaticGroup{
			Kind:       n.kind,
			Name:       n.name,
			Identifier: RustIdent(n.name),
			Pascal:     Pascal(n.name),
			Upper:      ShoutCase(n.name),
			Comp:       comp,
			CompPascal: Pascal(comp),
			Component:  n.component,
			Parents:    n.parents,
			Path:       n.path,
			TopLevel:   n.topLevel(),
		}
		for _, op := range n.ops {
			cmd, err := staticCommand(op, comp, reg)
			if err != nil {
				return nil, err
			}
			if op.Level == surface.LevelResource {
				g.Resource = append(g.Resource, cmd)
			} else {
				g.Instance = append(g.Instance, cmd)
			}
		}
		m.Groups = append(m.Groups, g)
	}
	return m, nil
}

// StaticAll lowers every resource of s. See all for failure handling.
func StaticAll(ctx context.Context, s *surface.Surface, opts ...Option) ([]*StaticModule, error) {
	return all(ctx, s, opts, Static)
}

func staticCommand(op surface.Operation, comp string, reg *surface.Registry) (StaticCommand, error) {
	name := OpName(op.Method, op.Level)
	fs, err := fields(op, reg)
	if err != nil {
		return StaticCommand{}, err
	}
	cmd := StaticCommand{
		Name:        name,
		Pascal:      Pascal(name),
		ID:          op.ID,
		Method:      string(op.Method),
		Path:        op.Path,
		Description: description(op, name, op.Resource),
	}
	for _, f := range fs {
		a, err := staticAttr(f, op, name, comp, reg)
		if err != nil {
			return StaticCommand{}, err
		}
		cmd.Attrs = append(cmd.Attrs, a)
		if a.In == InQuery {
			cmd.QueryParams = append(cmd.QueryParams, a)
		}
	}
	return cmd, nil
}

// Multiple reports whether the CLI takes a comma separated list.
func (a StaticAttribute) Multiple() bool { return strings.HasPrefix(a.Type, "Vec<") }

// EnumTypeName names the CLI enum of an attribute, for example
// UpdateUserRoleEnum for role on the update command of user.
func EnumTypeName(opName, comp, attr string) string {
	return Pascal(opName) + Pascal(comp) + Pascal(attr) + "Enum"
}

func rustType(s resource.Shape) string {
	switch {
	case s.IsScalarArray():
		return "Vec<String>"
	case s.Kind != resource.ShapeScalar:
		return "String"
	}
	switch s.Scalar {
	case "integer":
		return "i64"
	case "number":
		return "f64"
	case "boolean":
		return "bool"
	}
	return "String"
}

func staticAttr(f Field, op surface.Operation, opName, comp string, reg *surface.Registry) (StaticAttribute, error) {
	a := StaticAttribute{
		Field:      f,
		Identifier: RustIdent(f.Name),
		Flag:       FlagName(f.Name),
		Type:       rustType(f.Shape),
	}
	s := f.Shape
	arg := "args." + a.Identifier

	switch {
	case f.PathParamInBody:
		a.Strategy = ConvertAbsent
		a.Body = "None"
		a.NeedsNoneInUpdate = true

	case s.IsEnumArray(), s.IsEnum():
		values := s.Enum
		a.Strategy = ConvertEnum
		a.EnumType = EnumTypeName(opName, comp, f.Name)
		a.Type = a.EnumType
		if s.IsEnumArray() {
			values = s.Elem.Enum
			a.Strategy = ConvertEnumArray
			a.Type = "Vec<" + a.EnumType + ">"
		}
		variants, err := enumVariants(op, f.Name, values)
		if err != nil {
			return a, err
		}
		a.Variants = variants
		a.ModelType = fmt.Sprintf("crate::models::%s_%s::%s", opName, comp, Pascal(f.Name))

	case a.Type == "String" && s.IsObjectRef():
		model, low, err := refModel(s, f.Name, op, reg)
		if err != nil {
			return a, err
		}
		a.Strategy = ConvertObjectRef
		a.ModelType = model
		a.LowConfidence = low
		parse := "serde_json::from_str::<" + model + ">"
		if s.Kind == resource.ShapeArray {
			parse = "serde_json::from_str::<Vec<" + model + ">>"
		}
		switch {
		case f.Required && s.Kind == resource.ShapeArray:
			a.Body = fmt.Sprintf("%s(&%s).ok()", parse, arg)
		case f.Required:
			a.Body = fmt.Sprintf("%s(&%s).ok().map(Box::new)", parse, arg)
		case s.Kind == resource.ShapeArray:
			a.Body = fmt.Sprintf("%s.as_ref().and_then(|s| %s(s).ok())", arg, parse)
		default:
			a.Body = fmt.Sprintf("%s.as_ref().and_then(|s| %s(s).ok()).map(|p| Box::new(p))", arg, parse)
		}

	case a.Type == "String" && (!f.Exposed || f.KeyField):
		if f.Required {
			a.Strategy = ConvertNullableRequired
			a.Body = fmt.Sprintf("Some(serde_json::Value::String(%s.clone()))", arg)
		} else {
			a.Strategy = ConvertNullableOptional
			a.Body = fmt.Sprintf("%s.as_ref().map(|s| Some(serde_json::Value::String(s.clone())))", arg)
		}

	case a.Type == "i64" && s.Format != "int64":
		if f.Required {
			a.Strategy = ConvertNarrowRequired
			a.Body = arg + " as i32"
		} else {
			a.Strategy = ConvertNarrowOptional
			a.Body = arg + ".map(|v| v as i32)"
		}

	case a.Type == "i64", a.Type == "f64", a.Type == "bool":
		a.Strategy = ConvertDirect
		a.Body = arg

	default:
		a.Strategy = ConvertClone
		a.Body = arg + ".clone()"
		// Inline objects and untyped values are copied as raw JSON text.
		a.LowConfidence = s.Inferred || s.Structured()
	}
	return a, nil
}

// refModel names the model type an object reference parses into. The
// bool result is true when the name was guessed.
func refModel(s resource.Shape, name string, op surface.Operation, reg *surface.Registry) (string, bool, error) {
	target := s
	if s.Kind == resource.ShapeArray && s.Elem != nil && s.Elem.Kind == resource.ShapeObjectRef {
		target = *s.Elem
	}
	ref := target.Ref
	if ref == "" {
		ref = s.Ref
	}
	if comp, ok := strings.CutPrefix(ref, surface.ComponentPrefix); ok {
		if _, err := reg.Resolve(ref); err != nil {
			return "", false, &surface.ComponentReferenceError{
				Resource:  op.Kind,
				Operation: op.ID,
				Ref:       ref,
				Reason:    "field " + name + " references an unregistered component",
			}
		}
		return "crate::models::" + comp, false, nil
	}
	if target.RefName != "" {
		return "crate::models::" + Pascal(target.RefName), target.Inferred, nil
	}
	return "crate::models::" + Pascal(name), true, nil
}

func enumVariants(op surface.Operation, attr string, values []string) ([]EnumVariant, error) {
	out := make([]EnumVariant, 0, len(values))
	cli := make(map[string]string, len(values))
	model := make(map[string]string, len(values))
	for _, v := range values {
		ev := EnumVariant{Value: v, CLI: ShoutCase(v), Model: Pascal(v)}
		if prev, ok := cli[ev.CLI]; ok {
			return nil, &EnumConflictError{Resource: op.Kind, Operation: op.ID, Attr: attr, Variant: ev.CLI, Values: []string{prev, v}}
		}
		if prev, ok := model[ev.Model]; ok {
			return nil, &EnumConflictError{Resource: op.Kind, Operation: op.ID, Attr: attr, Variant: ev.Model, Values: []string{prev, v}}
		}
		cli[ev.CLI], model[ev.Model] = v, v
		out = append(out, ev)
	}
	return out, nil
}
