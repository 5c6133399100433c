// Package pyemitter renders the dynamic lowering as a Click command line
// client, either as one main.py or as one module per resource.
package pyemitter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"unicode"

	"github.com/goccy/go-json"

	"github.com/mark3labs/rsgen/internal/emitter"
	"github.com/mark3labs/rsgen/internal/lower"
	"github.com/mark3labs/rsgen/internal/surface"
)

// Options controls how the Python CLI is rendered.
type Options struct {
	emitter.Options
	Pkg       string // package the CLI lives in
	ClientPkg string // package of the generated API client
}

func (o Options) validate() error {
	if strings.TrimSpace(o.Pkg) == "" || strings.TrimSpace(o.ClientPkg) == "" {
		return fmt.Errorf("pyemitter: pkg and client pkg are required")
	}
	return o.Options.Validate()
}

// FileData is what the main and module templates are executed with.
type FileData struct {
	Meta      emitter.Metadata
	Pkg       string
	ClientPkg string
	// Root owns top-level groups: "main" in main.py, "click" in a module.
	Root    string
	Modules []Module
}

type Module struct {
	Kind     string
	API      string // client api module, e.g. persons_api
	APIClass string
	Imports  []ModelImport
	Groups   []Group
}

type ModelImport struct {
	Module string // e.g. create_person
	Alias  string
}

type Group struct {
	lower.Group
	Func     string
	Parent   string
	Commands []Command
}

type Command struct {
	lower.Command
	Func string
	// Args are positional, Query and Body the options by destination.
	Args  []lower.Attribute
	Query []lower.Attribute
	Body  []lower.Attribute
	// Model constructs the request body, empty when there is none.
	Model string
}

// Emit lowers s and renders it. In as-modules mode resources that failed
// to lower are reported through the returned error while the rest are
// still written.
func Emit(ctx context.Context, s *surface.Surface, meta emitter.Metadata, opts Options) (*emitter.Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	mods, lerr := lower.DynamicAll(ctx, s, lower.WithLogger(opts.Logger))
	if lerr != nil && !opts.Partial(lerr) {
		return nil, lerr
	}
	combined, modules, err := Render(mods, meta, opts)
	if err != nil {
		return nil, err
	}
	res, err := emitter.Write(ctx, combined, modules, opts.Options)
	if err != nil {
		return nil, err
	}
	return res, lerr
}

// Render executes the combined or per-module template, whichever opts
// selects.
func Render(mods []*lower.Module, meta emitter.Metadata, opts Options) ([]byte, map[string][]byte, error) {
	data := FileData{
		Meta:      meta.WithDefaults(),
		Pkg:       opts.Pkg,
		ClientPkg: opts.ClientPkg,
	}
	for _, m := range mods {
		data.Modules = append(data.Modules, view(m))
	}
	if !opts.AsModules {
		t, err := emitter.Load(opts.Template, "main.py", mainTemplate, templateOptions()...)
		if err != nil {
			return nil, nil, err
		}
		data.Root = "main"
		out, err := t.Execute(data)
		return out, nil, err
	}

	t, err := emitter.Load(opts.Template, "module.py", moduleTemplate, templateOptions()...)
	if err != nil {
		return nil, nil, err
	}
	files := make(map[string][]byte, len(data.Modules))
	for _, m := range data.Modules {
		one := data
		one.Root = "click"
		one.Modules = []Module{m}
		out, err := t.Execute(one)
		if err != nil {
			return nil, nil, err
		}
		files[m.Kind+".py"] = out
	}
	return nil, files, nil
}

func templateOptions() []emitter.TemplateOption {
	return []emitter.TemplateOption{
		emitter.WithFuncs(template.FuncMap{
			"clickType": ClickType,
			"pyident":   Ident,
			"pyvalue":   Literal,
		}),
		emitter.WithPartials(groupsTemplate),
	}
}

func view(m *lower.Module) Module {
	out := Module{
		Kind:     m.Kind,
		API:      Ident(m.Kind) + "_api",
		APIClass: lower.Pascal(m.Kind) + "Api",
	}
	seen := map[string]bool{}
	imp := func(model string) string {
		mod := snake(model)
		if !seen[mod] {
			seen[mod] = true
			out.Imports = append(out.Imports, ModelImport{Module: mod, Alias: mod + "_model"})
		}
		return mod + "_model." + model
	}

	for _, g := range m.Groups {
		vg := Group{
			Group:  g,
			Func:   Ident(strings.Join(append(append([]string(nil), g.Parents...), g.Name), "_")),
			Parent: Ident(strings.Join(g.Parents, "_")),
		}
		names := map[string]bool{}
		for _, c := range append(append([]lower.Command(nil), g.Resource...), g.Instance...) {
			// put and patch both lower to update; the first one wins.
			if names[c.Name] {
				continue
			}
			names[c.Name] = true
			vc := Command{Command: c, Func: Ident(c.ID)}
			for _, a := range c.Attrs {
				switch {
				case a.Positional():
					vc.Args = append(vc.Args, a)
				case a.In == lower.InQuery:
					vc.Query = append(vc.Query, a)
				case a.In == lower.InBody:
					vc.Body = append(vc.Body, a)
				}
			}
			switch c.Name {
			case lower.CmdCreate:
				vc.Model = imp(surface.CreateName(g.Component))
			case lower.CmdUpdate:
				if len(vc.Body) > 0 {
					vc.Model = imp(surface.UpdateName(g.Component))
				}
			}
			vg.Commands = append(vg.Commands, vc)
		}
		out.Groups = append(out.Groups, vg)
	}
	return out
}

// ClickType is the click parameter type of an attribute.
func ClickType(a lower.Attribute) string {
	switch a.Type {
	case lower.TagInteger:
		return "int"
	case lower.TagNumber:
		return "float"
	case lower.TagBoolean:
		return "bool"
	case lower.TagJSON:
		return "cli.FromJSON()"
	case lower.TagList:
		return "cli.StrList"
	case lower.TagChoice:
		quoted := make([]string, len(a.Choices))
		for i, c := range a.Choices {
			quoted[i] = strconv.Quote(c)
		}
		return "click.Choice([" + strings.Join(quoted, ", ") + "])"
	}
	return "str"
}

// Ident turns s into a Python identifier.
func Ident(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r) || (unicode.IsDigit(r) && i > 0):
			b.WriteRune(r)
		case unicode.IsDigit(r):
			b.WriteString("_")
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// Literal renders v as a Python literal.
func Literal(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "None", nil
	case bool:
		if x {
			return "True", nil
		}
		return "False", nil
	case string:
		return strconv.Quote(x), nil
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			p, err := Literal(e)
			if err != nil {
				return "", err
			}
			parts[i] = p
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			p, err := Literal(x[k])
			if err != nil {
				return "", err
			}
			parts[i] = strconv.Quote(k) + ": " + p
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// snake converts a model class name to its module name:
// CreatePostalCode becomes create_postal_code.
func snake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
