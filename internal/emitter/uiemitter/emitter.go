// Package uiemitter renders the grid lowering as Streamlit pages backed
// by the resource API.
package uiemitter

import (
	"context"
	"regexp"
	"strings"

	"github.com/mark3labs/rsgen/internal/emitter"
	"github.com/mark3labs/rsgen/internal/emitter/pyemitter"
	"github.com/mark3labs/rsgen/internal/lower"
	"github.com/mark3labs/rsgen/internal/surface"
)

const DefaultBackendURL = "https://localhost"

type Options struct {
	emitter.Options
	BackendURL string // defaults to DefaultBackendURL
	// ColMappings orders grid columns per collection name.
	ColMappings map[string][]string
}

type FileData struct {
	Meta       emitter.Metadata
	BackendURL string
	Modules    []Module
}

type Module struct {
	Kind  string
	Label string
	Pages []Page
}

type Page struct {
	lower.Page
	Func string
	// PathExpr is the Python f-string of the collection path.
	PathExpr string
	// PathParams are the parent keys the user picks before the grid loads.
	PathParams []PathParam
	// Inputs are the columns of the create form.
	Inputs []lower.Column
}

type PathParam struct {
	Name  string
	Ident string
	Label string
}

// Emit lowers s and renders the pages. See pyemitter.Emit for the
// handling of per-resource failures.
func Emit(ctx context.Context, s *surface.Surface, meta emitter.Metadata, opts Options) (*emitter.Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	mods, lerr := lower.GridAll(ctx, s, opts.ColMappings, lower.WithLogger(opts.Logger))
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

// Render executes the combined app or one page module per resource.
func Render(mods []*lower.UIModule, meta emitter.Metadata, opts Options) ([]byte, map[string][]byte, error) {
	data := FileData{Meta: meta.WithDefaults(), BackendURL: opts.BackendURL}
	if strings.TrimSpace(data.BackendURL) == "" {
		data.BackendURL = DefaultBackendURL
	}
	data.BackendURL = strings.TrimRight(data.BackendURL, "/")
	for _, m := range mods {
		data.Modules = append(data.Modules, view(m))
	}
	tmplOpts := []emitter.TemplateOption{emitter.WithPartials(pageTemplate)}
	if !opts.AsModules {
		t, err := emitter.Load(opts.Template, "streamlit.py", appTemplate, tmplOpts...)
		if err != nil {
			return nil, nil, err
		}
		out, err := t.Execute(data)
		return out, nil, err
	}

	t, err := emitter.Load(opts.Template, "streamlit_page.py", moduleTemplate, tmplOpts...)
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
		files[m.Kind+".py"] = out
	}
	return nil, files, nil
}

var placeholder = regexp.MustCompile(`\{([^}]+)\}`)

func view(m *lower.UIModule) Module {
	out := Module{Kind: m.Kind, Label: m.Label}
	for _, p := range m.Pages {
		vp := Page{
			Page: p,
			Func: "page_" + pyemitter.Ident(strings.Join(append(append([]string(nil), p.Parents...), p.Name), "_")),
		}
		vp.PathExpr = placeholder.ReplaceAllStringFunc(p.Path, func(s string) string {
			name := s[1 : len(s)-1]
			pp := PathParam{Name: name, Ident: pyemitter.Ident(name), Label: lower.PrettyName(name)}
			vp.PathParams = append(vp.PathParams, pp)
			return "{" + pp.Ident + "}"
		})
		for _, c := range p.Resource {
			if c.Name == lower.CmdCreate {
				vp.Inputs = c.Columns
			}
		}
		out.Pages = append(out.Pages, vp)
	}
	return out
}
