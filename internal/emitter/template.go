package emitter

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"

	"github.com/goccy/go-json"

	"github.com/mark3labs/rsgen/internal/lower"
)

// RenderError wraps a template that failed to parse or execute.
type RenderError struct {
	Template string
	Cause    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Template, e.Cause)
}

func (e *RenderError) Unwrap() error { return e.Cause }

// Funcs are available to every built-in and custom template.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"pascal": lower.Pascal,
		"pretty": lower.PrettyName,
		"ident":  lower.Identifier,
		"flag":   lower.FlagName,
		"shout":  lower.ShoutCase,
		"quote":  strconv.Quote,
		"lower":  strings.ToLower,
		"upper":  strings.ToUpper,
		"join":   strings.Join,
		"json":   jsonString,
		"add":    func(a, b int) int { return a + b },
		"last":   func(i, n int) bool { return i == n-1 },
		"tail":   tail,
		"isset":  func(v any) bool { return v != nil },
	}
}

func tail(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}

func jsonString(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

// Template is a parsed template with the name used in RenderError.
type Template struct {
	name string
	t    *template.Template
}

// TemplateOption adjusts how a template is parsed.
type TemplateOption func(*parseConfig)

type parseConfig struct {
	funcs    template.FuncMap
	partials []string
}

// WithFuncs adds emitter-specific functions to Funcs.
func WithFuncs(fm template.FuncMap) TemplateOption {
	return func(c *parseConfig) {
		for k, v := range fm {
			c.funcs[k] = v
		}
	}
}

// WithPartials parses shared {{define}} blocks before the template body,
// so custom templates can call the built-in ones.
func WithPartials(texts ...string) TemplateOption {
	return func(c *parseConfig) { c.partials = append(c.partials, texts...) }
}

// Parse compiles a built-in template.
func Parse(name, text string, opts ...TemplateOption) (*Template, error) {
	cfg := &parseConfig{funcs: Funcs()}
	for _, o := range opts {
		o(cfg)
	}
	t := template.New(name).Funcs(cfg.funcs)
	for _, p := range cfg.partials {
		if _, err := t.Parse(p); err != nil {
			return nil, &RenderError{Template: name, Cause: err}
		}
	}
	if _, err := t.Parse(text); err != nil {
		return nil, &RenderError{Template: name, Cause: err}
	}
	return &Template{name: name, t: t}, nil
}

// Load returns the custom template at path when set, else the built-in.
func Load(path, name, builtin string, opts ...TemplateOption) (*Template, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(name, builtin, opts...)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &RenderError{Template: path, Cause: err}
	}
	return Parse(path, string(raw), opts...)
}

// Execute renders data.
func (t *Template) Execute(data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.t.Execute(&buf, data); err != nil {
		return nil, &RenderError{Template: t.name, Cause: err}
	}
	return buf.Bytes(), nil
}

// Name is the built-in name or the custom template path.
func (t *Template) Name() string { return t.name }
