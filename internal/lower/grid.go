package lower

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/mark3labs/rsgen/internal/resource"
	"github.com/mark3labs/rsgen/internal/surface"
)

// ColumnType is the grid column widget of a field.
type ColumnType string

const (
	TextColumn      ColumnType = "TextColumn"
	NumberColumn    ColumnType = "NumberColumn"
	CheckboxColumn  ColumnType = "CheckboxColumn"
	JSONColumn      ColumnType = "JsonColumn"
	ListColumn      ColumnType = "ListColumn"
	SelectboxColumn ColumnType = "SelectboxColumn"
)

type Column struct {
	Name        string
	Label       string
	Description string
	Type        ColumnType
	// Data is the JSON array of choices of a SelectboxColumn.
	Data     string
	Required bool
	Key      bool
}

type PageCommand struct {
	Name        string
	ID          string
	Method      string
	Path        string
	Description string
	Columns     []Column
}

// Page is the data grid of one collection.
type Page struct {
	Kind     string
	Name     string
	Label    string
	Path     string
	Key      resource.Key
	Parents  []string
	TopLevel bool
	// Columns follow the column mapping when one is given.
	Columns  []Column
	Resource []PageCommand
	Instance []PageCommand
}

// Can reports whether the page has a command of that name.
func (p Page) Can(name string) bool {
	for _, c := range append(append([]PageCommand(nil), p.Resource...), p.Instance...) {
		if c.Name == name {
			return true
		}
	}
	return false
}

type UIModule struct {
	Kind  string
	Label string
	Pages []Page
}

// Grid lowers one resource to data-grid pages. mappings holds optional
// column orders by collection name.
func Grid(r *surface.Resource, reg *surface.Registry, mappings map[string][]string) (*UIModule, error) {
	reg = registry(r, reg)
	m := &UIModule{Kind: r.Kind, Label: PrettyName(r.Kind)}
	for _, n := range nodes(r) {
		p := Page{
			Kind:     n.kind,
			Name:     n.name,
			Label:    PrettyName(n.name),
			Path:     n.path,
			Parents:  n.parents,
			TopLevel: n.topLevel(),
		}
		if n.coll != nil && n.coll.Key != nil {
			p.Key = *n.coll.Key
		}

		var cols []Column
		for _, f := range properties(surface.Operation{Collection: n.coll, Keys: n.keys}, n.coll.Items.Required, nil, keyNames(n.keys)) {
			c, err := column(f)
			if err != nil {
				return nil, err
			}
			cols = append(cols, c)
		}
		ordered, err := orderColumns(cols, mappings[n.name])
		if err != nil {
			return nil, fmt.Errorf("resource %s: %w", r.Kind, err)
		}
		p.Columns = ordered

		for _, op := range n.ops {
			cmd, err := pageCommand(op, reg)
			if err != nil {
				return nil, err
			}
			if op.Level == surface.LevelResource {
				p.Resource = append(p.Resource, cmd)
			} else {
				p.Instance = append(p.Instance, cmd)
			}
		}
		m.Pages = append(m.Pages, p)
	}
	return m, nil
}

// GridAll lowers every resource of s. See all for failure handling.
func GridAll(ctx context.Context, s *surface.Surface, mappings map[string][]string, opts ...Option) ([]*UIModule, error) {
	return all(ctx, s, opts, func(r *surface.Resource, reg *surface.Registry) (*UIModule, error) {
		return Grid(r, reg, mappings)
	})
}

func pageCommand(op surface.Operation, reg *surface.Registry) (PageCommand, error) {
	name := OpName(op.Method, op.Level)
	cmd := PageCommand{
		Name:        name,
		ID:          op.ID,
		Method:      string(op.Method),
		Path:        op.Path,
		Description: description(op, name, op.Resource),
	}
	// A list needs no inputs; the grid itself is its result.
	if name == CmdList {
		return cmd, nil
	}
	fs, err := fields(op, reg)
	if err != nil {
		return PageCommand{}, err
	}
	for _, f := range fs {
		c, err := column(f)
		if err != nil {
			return PageCommand{}, err
		}
		cmd.Columns = append(cmd.Columns, c)
	}
	return cmd, nil
}

func column(f Field) (Column, error) {
	c := Column{
		Name:        f.Name,
		Label:       PrettyName(f.Name),
		Description: f.Description,
		Required:    f.Required,
		Key:         f.KeyField,
	}
	s := f.Shape
	switch {
	case s.IsEnum():
		data, err := json.Marshal(s.Enum)
		if err != nil {
			return c, fmt.Errorf("column %s: %w", f.Name, err)
		}
		c.Type, c.Data = SelectboxColumn, string(data)
	case s.Kind == resource.ShapeObjectInline, s.Kind == resource.ShapeObjectRef:
		c.Type = JSONColumn
	case s.Kind == resource.ShapeArray:
		c.Type = ListColumn
	case s.Scalar == "integer", s.Scalar == "number":
		c.Type = NumberColumn
	case s.Scalar == "boolean":
		c.Type = CheckboxColumn
	default:
		c.Type = TextColumn
	}
	return c, nil
}

// orderColumns puts the mapped names first, in mapping order, followed
// by the remaining columns in declaration order.
func orderColumns(cols []Column, mapping []string) ([]Column, error) {
	if len(mapping) == 0 {
		return cols, nil
	}
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c.Name] = i
	}
	used := make([]bool, len(cols))
	out := make([]Column, 0, len(cols))
	for _, name := range mapping {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("column mapping names unknown column %q", name)
		}
		if used[i] {
			continue
		}
		used[i] = true
		out = append(out, cols[i])
	}
	for i, c := range cols {
		if !used[i] {
			out = append(out, c)
		}
	}
	return out, nil
}

func keyNames(keys []resource.Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.Name
	}
	return out
}
