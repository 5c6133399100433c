// Package rustemitter renders the static lowering as a clap command line
// client on top of a generated Rust API crate.
package rustemitter

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/mark3labs/rsgen/internal/emitter"
	"github.com/mark3labs/rsgen/internal/lower"
	"github.com/mark3labs/rsgen/internal/surface"
)

// Options controls how the Rust CLI is rendered.
type Options struct {
	emitter.Options
	Pkg       string
	ClientPkg string // dotted names are accepted and turned into a crate path
}

func (o Options) validate() error {
	if strings.TrimSpace(o.Pkg) == "" || strings.TrimSpace(o.ClientPkg) == "" {
		return fmt.Errorf("rustemitter: pkg and client pkg are required")
	}
	return o.Options.Validate()
}

// CratePath turns a Python-style package name into a Rust crate path.
func CratePath(pkg string) string { return strings.ReplaceAll(pkg, ".", "_") }

type FileData struct {
	Meta      emitter.Metadata
	Pkg       string
	ClientPkg string
	Modules   []Module
}

type Module struct {
	Kind   string
	Ident  string
	Pascal string
	// API is the client api module holding the operation functions.
	API       string
	ClientPkg string
	Groups    []Group
	// Enums are the CLI enums of all commands, one per type name.
	Enums []lower.StaticAttribute
}

// Top is the group of the resource itself.
func (m Module) Top() Group {
	for _, g := range m.Groups {
		if g.TopLevel {
			return g
		}
	}
	return Group{}
}

type Group struct {
	lower.StaticGroup
	Handler  string
	Children []Group
	Commands []Command
}

type Command struct {
	lower.StaticCommand
	ArgsType string
	// Model is the request body type, empty when there is none.
	Model    string
	Body     []BodyField
	CallArgs []string
}

// BodyField is one field of a request body literal.
type BodyField struct {
	Name string
	Expr string
	// Note is rendered as a comment above the field.
	Note string
}

// Emit lowers s and renders it. See pyemitter.Emit for the handling of
// per-resource failures.
func Emit(ctx context.Context, s *surface.Surface, meta emitter.Metadata, opts Options) (*emitter.Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	mods, lerr := lower.StaticAll(ctx, s, lower.WithLogger(opts.Logger))
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

// Render executes the combined main.rs or one <kind>.rs per module.
func Render(mods []*lower.StaticModule, meta emitter.Metadata, opts Options) ([]byte, map[string][]byte, error) {
	data := FileData{Meta: meta.WithDefaults(), Pkg: opts.Pkg, ClientPkg: CratePath(opts.ClientPkg)}
	for _, m := range mods {
		vm := view(m)
		vm.ClientPkg = data.ClientPkg
		data.Modules = append(data.Modules, vm)
	}
	tmplOpts := []emitter.TemplateOption{
		emitter.WithFuncs(template.FuncMap{"doc": docLine}),
		emitter.WithPartials(moduleBody),
	}
	if !opts.AsModules {
		t, err := emitter.Load(opts.Template, "main.rs", mainTemplate, tmplOpts...)
		if err != nil {
			return nil, nil, err
		}
		out, err := t.Execute(data)
		return out, nil, err
	}

	t, err := emitter.Load(opts.Template, "cli_module.rs", moduleTemplate, tmplOpts...)
	if err != nil {
		return nil, nil, err
	}
	files := make(map[string][]byte, len(data.Modules))
	for _, m := range data.Modules {
		one := data
		one.Modules = []Module{m}
		out, err := t.Execute(one)
		if err != nil {
			return nil, nil, err
		}
		files[m.Kind+".rs"] = out
	}
	return nil, files, nil
}

func view(m *lower.StaticModule) Module {
	out := Module{
		Kind:   m.Kind,
		Ident:  lower.RustIdent(m.Kind),
		Pascal: lower.Pascal(m.Kind),
		API:    lower.Identifier(m.Kind) + "_api",
	}
	groups := make([]Group, len(m.Groups))
	enums := map[string]bool{}
	for i, g := range m.Groups {
		vg := Group{StaticGroup: g, Handler: "handle_" + groupPath(g) + "_command"}
		seen := map[string]bool{}
		for _, c := range g.Commands() {
			if seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			vg.Commands = append(vg.Commands, command(g, c))
			for _, e := range c.Enums() {
				if !enums[e.EnumType] {
					enums[e.EnumType] = true
					out.Enums = append(out.Enums, e)
				}
			}
		}
		groups[i] = vg
	}
	// Children are attached after all groups are built so nested
	// subcommands see their own children.
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		if g.TopLevel {
			continue
		}
		parent := strings.Join(g.Parents, "/")
		for j := range groups {
			if strings.Join(append(append([]string(nil), groups[j].Parents...), groups[j].Name), "/") == parent {
				groups[j].Children = append([]Group{g}, groups[j].Children...)
				break
			}
		}
	}
	out.Groups = groups
	return out
}

func groupPath(g lower.StaticGroup) string {
	parts := append(append([]string(nil), g.Parents...), g.Name)
	for i, p := range parts {
		parts[i] = lower.Identifier(p)
	}
	return strings.Join(parts, "_")
}

func command(g lower.StaticGroup, c lower.StaticCommand) Command {
	vc := Command{StaticCommand: c, ArgsType: lower.Pascal(groupPath(g)) + c.Pascal + "Args"}
	switch c.Name {
	case lower.CmdCreate:
		vc.Model = "crate::models::" + surface.CreateName(g.Component)
	case lower.CmdUpdate:
		vc.Model = "crate::models::" + surface.UpdateName(g.Component)
	}

	for _, a := range c.Arguments() {
		if a.In == lower.InPath {
			vc.CallArgs = append(vc.CallArgs, "&args."+a.Identifier)
		}
	}
	if vc.Model != "" {
		for _, a := range c.Attrs {
			if a.In != lower.InBody {
				continue
			}
			f := BodyField{Name: a.Identifier, Expr: bodyExpr(a)}
			if a.LowConfidence {
				f.Note = fmt.Sprintf("low confidence: %s is sent as %s, check the model type", a.Name, a.Strategy)
			}
			vc.Body = append(vc.Body, f)
		}
		if len(vc.Body) == 0 {
			vc.Model = ""
		} else {
			vc.CallArgs = append(vc.CallArgs, "body")
		}
	}
	for _, q := range c.QueryParams {
		vc.CallArgs = append(vc.CallArgs, queryArg(q))
	}
	return vc
}

// bodyExpr is the expression assigned to a body field. Enum strategies
// are expanded here from the variant table.
func bodyExpr(a lower.StaticAttribute) string {
	arg := "args." + a.Identifier
	switch a.Strategy {
	case lower.ConvertEnum:
		arms := make([]string, len(a.Variants))
		for i, v := range a.Variants {
			arms[i] = fmt.Sprintf("%s::%s => %s::%s", a.EnumType, v.CLI, a.ModelType, v.Model)
		}
		match := "match v { " + strings.Join(arms, ", ") + " }"
		if a.Required {
			return fmt.Sprintf("{ let v = &%s; %s }", arg, match)
		}
		return fmt.Sprintf("%s.as_ref().map(|v| %s)", arg, match)
	case lower.ConvertEnumArray:
		arms := make([]string, len(a.Variants))
		for i, v := range a.Variants {
			arms[i] = fmt.Sprintf("%s::%s => %s::%s", a.EnumType, v.CLI, a.ModelType, v.Model)
		}
		conv := "xs.iter().map(|v| match v { " + strings.Join(arms, ", ") + " }).collect()"
		if a.Required {
			return fmt.Sprintf("{ let xs = &%s; %s }", arg, conv)
		}
		return fmt.Sprintf("%s.as_ref().map(|xs| %s)", arg, conv)
	}
	return a.Body
}

// wireName is the literal a CLI enum value was parsed from.
func wireName(v string) string {
	return v + ".to_possible_value().unwrap().get_name().to_string()"
}

func queryArg(a lower.StaticAttribute) string {
	arg := "args." + a.Identifier
	switch {
	case a.Strategy == lower.ConvertEnumArray:
		names := "xs.iter().map(|v| " + wireName("v") + ").collect::<Vec<String>>()"
		if a.Required {
			return fmt.Sprintf("{ let xs = &%s; %s }", arg, names)
		}
		return fmt.Sprintf("%s.as_ref().map(|xs| %s)", arg, names)
	case a.EnumType != "":
		if a.Required {
			return "&" + wireName(arg)
		}
		return fmt.Sprintf("%s.as_ref().map(|v| %s).as_deref()", arg, wireName("v"))
	case a.Type == "String" && a.Required:
		return "&" + arg
	case a.Type == "String":
		return arg + ".as_deref()"
	case a.Type == "Vec<String>":
		return arg + ".clone()"
	}
	return arg
}

// ArgType is the field type of an attribute in the clap args struct.
func (c Command) ArgType(a lower.StaticAttribute) string {
	if a.Required || a.Positional() {
		return a.Type
	}
	return "Option<" + a.Type + ">"
}

func docLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
