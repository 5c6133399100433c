package lower

import (
	"context"

	"github.com/mark3labs/rsgen/internal/surface"
)

// TypeTag is the coarse value type of a dynamic CLI option.
type TypeTag string

const (
	TagString  TypeTag = "str"
	TagInteger TypeTag = "int"
	TagNumber  TypeTag = "float"
	TagBoolean TypeTag = "bool"
	// TagJSON takes embedded structured data parsed at runtime.
	TagJSON TypeTag = "json"
	// TagList takes a list of strings.
	TagList   TypeTag = "list"
	TagChoice TypeTag = "choice"
)

var scalarTags = map[string]TypeTag{
	"string":  TagString,
	"integer": TagInteger,
	"number":  TagNumber,
	"boolean": TagBoolean,
}

// Attribute is one option or argument of a dynamically typed command.
type Attribute struct {
	Field
	Identifier string
	Flag       string
	Type       TypeTag
	Choices    []string
}

type Command struct {
	Name        string
	ID          string
	Method      string
	Path        string
	Description string
	Attrs       []Attribute
}

// Arguments returns the positional attributes in order.
func (c Command) Arguments() []Attribute {
	var out []Attribute
	for _, a := range c.Attrs {
		if a.Positional() {
			out = append(out, a)
		}
	}
	return out
}

// Group is the command group of one collection.
type Group struct {
	// Kind is the top-level resource the group belongs to.
	Kind       string
	Name       string
	Identifier string
	Parents    []string
	Path       string
	Component  string
	TopLevel   bool
	Resource   []Command
	Instance   []Command
}

// Module is the dynamic lowering of one resource definition.
type Module struct {
	Kind   string
	Groups []Group
}

// Dynamic lowers one resource for a dynamically typed CLI. reg resolves
// creation components and defaults to the resource's own registry.
func Dynamic(r *surface.Resource, reg *surface.Registry) (*Module, error) {
	reg = registry(r, reg)
	m := &Module{Kind: r.Kind}
	for _, n := range nodes(r) {
		g := Group{
			Kind:       n.kind,
			Name:       n.name,
			Identifier: Identifier(n.name),
			Parents:    n.parents,
			Path:       n.path,
			Component:  n.component,
			TopLevel:   n.topLevel(),
		}
		for _, op := range n.ops {
			cmd, err := dynamicCommand(op, reg)
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

// DynamicAll lowers every resource of s. See all for failure handling.
func DynamicAll(ctx context.Context, s *surface.Surface, opts ...Option) ([]*Module, error) {
	return all(ctx, s, opts, Dynamic)
}

func dynamicCommand(op surface.Operation, reg *surface.Registry) (Command, error) {
	name := OpName(op.Method, op.Level)
	fs, err := fields(op, reg)
	if err != nil {
		return Command{}, err
	}
	cmd := Command{
		Name:        name,
		ID:          op.ID,
		Method:      string(op.Method),
		Path:        op.Path,
		Description: description(op, name, op.Resource),
	}
	for _, f := range fs {
		cmd.Attrs = append(cmd.Attrs, dynamicAttr(f))
	}
	return cmd, nil
}

func dynamicAttr(f Field) Attribute {
	a := Attribute{Field: f, Identifier: Identifier(f.Name), Flag: FlagName(f.Name)}
	switch s := f.Shape; {
	case s.Structured():
		a.Type = TagJSON
	case s.IsScalarArray():
		a.Type = TagList
	case s.IsEnum():
		a.Type = TagChoice
		a.Choices = s.Enum
	default:
		a.Type = TagString
		if t, ok := scalarTags[s.Scalar]; ok {
			a.Type = t
		}
	}
	return a
}
