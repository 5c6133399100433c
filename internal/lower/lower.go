// Package lower translates the target-independent surface into the
// attribute shapes the generated CLIs and UI pages are rendered from.
package lower

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/mark3labs/rsgen/internal/resource"
	"github.com/mark3labs/rsgen/internal/surface"
)

// Location is where a field travels in a request.
type Location string

const (
	InPath  Location = "path"
	InQuery Location = "query"
	InBody  Location = "body"
)

// Field is the target-independent part of a lowered attribute.
type Field struct {
	Name        string
	Description string
	In          Location
	Required    bool
	Default     any

	// IsArgument marks a path parameter occurrence, rendered positionally.
	IsArgument bool
	// PathParamInBody marks a body property that shares its name with a
	// path parameter of the same command.
	PathParamInBody bool
	// KeyField marks a name among the accumulated keys.
	KeyField bool
	Exposed  bool

	Schema *resource.Schema
	Shape  resource.Shape
}

// Positional reports whether the field is taken as a positional argument.
func (f Field) Positional() bool { return f.IsArgument || f.PathParamInBody }

// node is one collection within a resource, with its resource and
// instance level operations in generation order.
type node struct {
	kind      string
	name      string
	parents   []string
	path      string
	component string
	keys      []resource.Key
	coll      *resource.Schema
	ops       []surface.Operation
}

func (n node) topLevel() bool { return len(n.parents) == 0 }

// nodes groups the resource's operations by collection. Attribute
// operations and HEAD have no command and are dropped.
func nodes(r *surface.Resource) []node {
	var out []node
	index := make(map[string]int)
	for _, op := range r.Operations {
		if op.Level == surface.LevelInstanceAttr || OpName(op.Method, op.Level) == "" {
			continue
		}
		g := op.Group()
		i, ok := index[g]
		if !ok {
			p := op.Path
			if op.Level == surface.LevelInstance {
				p = path.Dir(p)
			}
			out = append(out, node{
				kind:      op.Kind,
				name:      op.Resource,
				parents:   op.Parents,
				path:      p,
				component: op.Component,
				keys:      op.Keys,
				coll:      op.Collection,
			})
			i = len(out) - 1
			index[g] = i
		}
		out[i].ops = append(out[i].ops, op)
	}
	return out
}

// fields collects the raw fields of one command before target typing.
func fields(op surface.Operation, reg *surface.Registry) ([]Field, error) {
	pathParams := make(map[string]bool)
	for _, p := range op.PathParams() {
		pathParams[p.Name] = true
	}
	keys := op.KeyNames()

	var out []Field
	switch OpName(op.Method, op.Level) {
	case CmdCreate:
		required, err := createRequired(op, reg)
		if err != nil {
			return nil, err
		}
		out = append(out, properties(op, required, pathParams, keys)...)
		for _, p := range op.PathParams() {
			out = append(out, param(p, keys))
		}
	case CmdUpdate:
		out = append(out, properties(op, nil, pathParams, keys)...)
		for _, p := range op.Parameters {
			out = append(out, param(p, keys))
		}
	default:
		for _, p := range op.Parameters {
			out = append(out, param(p, keys))
		}
	}
	return Dedup(out), nil
}

// createRequired reads the required list of the creation component.
func createRequired(op surface.Operation, reg *surface.Registry) ([]string, error) {
	name := surface.CreateName(op.Component)
	comp, err := reg.Resolve(surface.ComponentPrefix + name)
	if err != nil {
		return nil, &surface.ComponentReferenceError{
			Resource:  op.Kind,
			Operation: op.ID,
			Ref:       surface.ComponentPrefix + name,
			Reason:    "creation component is not registered",
		}
	}
	for _, part := range comp.AllOf {
		if part != nil && part.Ref == "" {
			return part.Required, nil
		}
	}
	return comp.Required, nil
}

func properties(op surface.Operation, required []string, pathParams map[string]bool, keys []string) []Field {
	if op.Collection == nil || op.Collection.Items == nil {
		return nil
	}
	out := make([]Field, 0, len(op.Collection.Items.Properties))
	for _, p := range op.Collection.Items.Properties {
		s := p.Schema
		if s != nil && s.Schema != nil {
			s = s.Schema
		}
		var desc string
		if s != nil {
			desc = s.Description
		}
		out = append(out, Field{
			Name:            p.Name,
			Description:     desc,
			In:              InBody,
			Required:        slices.Contains(required, p.Name),
			PathParamInBody: pathParams[p.Name],
			KeyField:        slices.Contains(keys, p.Name),
			Exposed:         p.Schema.Exposed(),
			Schema:          s,
			Shape:           resource.Normalize(s),
		})
	}
	return out
}

func param(p surface.Parameter, keys []string) Field {
	in := InQuery
	if p.In == surface.InPath {
		in = InPath
	}
	return Field{
		Name:        p.Name,
		Description: p.Description,
		In:          in,
		Required:    p.Required,
		Default:     p.Default,
		IsArgument:  in == InPath,
		KeyField:    slices.Contains(keys, p.Name),
		Exposed:     true,
		Schema:      p.Schema,
		Shape:       resource.Normalize(p.Schema),
	}
}

// Dedup keeps one field per name. A later duplicate that is not an
// argument replaces the earlier occurrence in place; any other
// duplicate is dropped.
func Dedup(in []Field) []Field {
	out := make([]Field, 0, len(in))
	index := make(map[string]int, len(in))
	for _, f := range in {
		i, seen := index[f.Name]
		if !seen {
			index[f.Name] = len(out)
			out = append(out, f)
			continue
		}
		if !f.IsArgument {
			if out[i].IsArgument && f.In == InBody {
				f.PathParamInBody = true
			}
			out[i] = f
		}
	}
	return out
}

func description(op surface.Operation, name, collection string) string {
	if op.Description != "" {
		return op.Description
	}
	return fmt.Sprintf("%s operation for %s", Pascal(name), collection)
}

// Option configures the batch lowering functions.
type Option func(*config)

type config struct {
	logger      *slog.Logger
	concurrency int
}

// WithLogger sets the logger used for per-resource diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithConcurrency bounds how many resources are lowered at once.
func WithConcurrency(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func newConfig(opts []Option) *config {
	c := &config{logger: slog.New(slog.NewTextHandler(io.Discard, nil)), concurrency: runtime.GOMAXPROCS(0)}
	for _, o := range opts {
		o(c)
	}
	return c
}

// all lowers every resource of s independently. Results keep input
// order; failures are collected into a *surface.BatchError and the
// failed resources are left out of the result.
func all[T any](ctx context.Context, s *surface.Surface, opts []Option, fn func(*surface.Resource, *surface.Registry) (T, error)) ([]T, error) {
	cfg := newConfig(opts)
	results := make([]T, len(s.Resources))
	errs := make([]error, len(s.Resources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.concurrency)
	for i, r := range s.Resources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			results[i], errs[i] = fn(r, s.Components)
			return nil
		})
	}
	_ = g.Wait()

	var out []T
	var batch surface.BatchError
	for i, r := range s.Resources {
		if errs[i] != nil {
			cfg.logger.Error("lowering failed", slog.String("resource", r.Kind), slog.Any("error", errs[i]))
			batch.Failures = append(batch.Failures, surface.ResourceFailure{Index: i, Kind: r.Kind, Err: errs[i]})
			continue
		}
		out = append(out, results[i])
	}
	if len(batch.Failures) > 0 {
		return out, &batch
	}
	return out, nil
}

func registry(r *surface.Resource, reg *surface.Registry) *surface.Registry {
	if reg == nil {
		return r.Components
	}
	return reg
}
