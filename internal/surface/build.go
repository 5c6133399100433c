package surface

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mark3labs/rsgen/internal/resource"
)

// BuildOption configures how surfaces are built from definitions.
type BuildOption func(*buildConfig)

type buildConfig struct {
	kinds       map[string]struct{}
	methods     map[resource.Method]struct{}
	failFast    bool
	concurrency int
	logger      *slog.Logger
}

// WithKinds keeps only the named resources.
func WithKinds(kinds []string) BuildOption {
	return func(c *buildConfig) {
		for _, k := range kinds {
			k = strings.TrimSpace(k)
			if k == "" {
				continue
			}
			if c.kinds == nil {
				c.kinds = make(map[string]struct{}, len(kinds))
			}
			c.kinds[k] = struct{}{}
		}
	}
}

// WithMethods keeps only operations whose method is listed (case-insensitive).
func WithMethods(methods []string) BuildOption {
	return func(c *buildConfig) {
		for _, m := range methods {
			m = strings.ToLower(strings.TrimSpace(m))
			if m == "" {
				continue
			}
			if c.methods == nil {
				c.methods = make(map[resource.Method]struct{}, len(methods))
			}
			c.methods[resource.Method(m)] = struct{}{}
		}
	}
}

// WithFailFast makes the first failing resource fail the whole batch.
func WithFailFast() BuildOption { return func(c *buildConfig) { c.failFast = true } }

// WithConcurrency bounds how many resources are built at once.
func WithConcurrency(n int) BuildOption {
	return func(c *buildConfig) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func WithLogger(l *slog.Logger) BuildOption {
	return func(c *buildConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

func newBuildConfig(opts []BuildOption) *buildConfig {
	cfg := &buildConfig{concurrency: runtime.GOMAXPROCS(0), logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

func (c *buildConfig) method(m resource.Method) bool {
	if c.methods == nil {
		return true
	}
	_, ok := c.methods[m]
	return ok
}

// BuildOperations builds every definition independently and merges the
// results in input order. A failing resource does not stop its siblings:
// the returned surface holds every successful resource and the error is a
// *BatchError naming the failures. With WithFailFast the surface is nil
// on any failure.
func BuildOperations(ctx context.Context, defs []*resource.Definition, opts ...BuildOption) (*Surface, error) {
	cfg := newBuildConfig(opts)

	var selected []*resource.Definition
	for _, d := range defs {
		if cfg.kinds != nil && d != nil {
			if _, ok := cfg.kinds[d.Kind]; !ok {
				continue
			}
		}
		selected = append(selected, d)
	}

	results := make([]*Resource, len(selected))
	errs := make([]error, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.concurrency)
	for i, d := range selected {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			r, err := buildResource(d, cfg)
			results[i], errs[i] = r, err
			if err != nil && cfg.failFast {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Surface{Components: NewRegistry()}
	var batch BatchError
	for i, r := range results {
		if errs[i] != nil {
			kind := kindOf(selected[i])
			cfg.logger.Error("resource failed", slog.String("resource", kind), slog.Any("error", errs[i]))
			batch.Failures = append(batch.Failures, ResourceFailure{Index: i, Kind: kind, Err: errs[i]})
			continue
		}
		out.Resources = append(out.Resources, r)
		out.Components.Merge(r.Components)
	}
	if len(batch.Failures) > 0 {
		return out, &batch
	}
	return out, nil
}

func kindOf(d *resource.Definition) string {
	if d == nil {
		return ""
	}
	return d.Kind
}

// BuildResource builds the surface of a single definition.
func BuildResource(def *resource.Definition, opts ...BuildOption) (*Resource, error) {
	return buildResource(def, newBuildConfig(opts))
}

func buildResource(def *resource.Definition, cfg *buildConfig) (*Resource, error) {
	if def == nil {
		return nil, fmt.Errorf("surface: nil resource definition")
	}
	for i, q := range def.DefaultQueryParams {
		if q.Name == "" {
			return nil, &MissingKeyError{Resource: def.Kind, Collection: def.Kind, Field: "name", Pointer: fmt.Sprintf("default_query_params/%d", i)}
		}
	}
	b := &builder{cfg: cfg, def: def}
	base := BasePath(def)
	if err := b.collection(def.Kind, def.Schema, base, nil, nil, def.Methods, def.Descriptions, "schema"); err != nil {
		return nil, err
	}
	cfg.logger.Debug("built resource", slog.String("resource", def.Kind), slog.Int("operations", len(b.ops)))
	return &Resource{
		Kind:       def.Kind,
		BasePath:   base,
		Definition: def,
		Operations: b.ops,
		Components: SynthesizeComponents(def.Kind, def.Schema, def.Methods),
	}, nil
}

type builder struct {
	cfg *buildConfig
	def *resource.Definition
	ops []Operation
}

// node carries the per-collection state down the recursion.
type node struct {
	name       string
	collection *resource.Schema
	keys       []resource.Key
	parents    []string
	methods    resource.Methods
	descs      resource.Descriptions
	component  string
}

func (b *builder) collection(name string, coll *resource.Schema, base string, keys []resource.Key, parents []string, methods resource.Methods, descs resource.Descriptions, ptr string) error {
	if coll == nil || coll.Type != "array" || coll.Items == nil {
		return &MissingKeyError{Resource: b.def.Kind, Collection: name, Field: "an array schema with items", Pointer: ptr}
	}
	if coll.Key == nil || coll.Key.Name == "" {
		return &MissingKeyError{Resource: b.def.Kind, Collection: name, Field: "key", Pointer: ptr}
	}
	for i, q := range coll.QueryParams {
		if q.Name == "" {
			return &MissingKeyError{Resource: b.def.Kind, Collection: name, Field: "name", Pointer: fmt.Sprintf("%s/query_params/%d", ptr, i)}
		}
	}

	n := node{
		name:       name,
		collection: coll,
		keys:       appendKey(keys, *coll.Key),
		parents:    parents,
		methods:    methods,
		descs:      descs,
		component:  ComponentName(name),
	}

	for _, m := range ResourceMethods {
		if !permits(methods.Resource, m, true) || !b.cfg.method(m) {
			b.cfg.logger.Debug("skipping method", slog.String("resource", name), slog.String("level", string(LevelResource)), slog.String("method", string(m)))
			continue
		}
		b.ops = append(b.ops, b.operation(n, LevelResource, base, m, ""))
	}

	instPath := base + "/{" + coll.Key.Name + "}"
	if len(methods.Instance) > 0 {
		for _, m := range InstanceMethods {
			if !permits(methods.Instance, m, false) || !b.cfg.method(m) {
				continue
			}
			b.ops = append(b.ops, b.operation(n, LevelInstance, instPath, m, ""))
		}
	}

	childParents := append(append([]string(nil), parents...), name)
	for _, p := range coll.Items.Properties {
		if !p.Schema.Exposed() {
			continue
		}
		attrPath := instPath + "/" + p.Name
		if p.Schema != nil && p.Schema.Schema != nil {
			child := p.Schema.Schema
			cm, cd := methods, descs
			if child.Methods != nil {
				cm = *child.Methods
			}
			if child.Descriptions != nil {
				cd = *child.Descriptions
			}
			if err := b.collection(p.Name, child, attrPath, n.keys, childParents, cm, cd, ptr+"/items/properties/"+p.Name+"/schema"); err != nil {
				return err
			}
			continue
		}
		if len(methods.InstanceAttrs) == 0 {
			continue
		}
		for _, m := range InstanceAttrMethods {
			if !permits(methods.InstanceAttrs, m, false) || !b.cfg.method(m) {
				continue
			}
			b.ops = append(b.ops, b.operation(n, LevelInstanceAttr, attrPath, m, p.Name))
		}
	}
	return nil
}

// appendKey returns keys plus k unless a key of that name is present.
func appendKey(keys []resource.Key, k resource.Key) []resource.Key {
	for _, existing := range keys {
		if existing.Name == k.Name {
			return keys
		}
	}
	return append(append([]resource.Key(nil), keys...), k)
}

func (b *builder) operation(n node, level Level, path string, m resource.Method, attr string) Operation {
	op := Operation{
		ID:          Opid(path, m),
		Method:      m,
		Level:       level,
		Path:        path,
		Kind:        b.def.Kind,
		Resource:    n.name,
		Parents:     n.parents,
		Attr:        attr,
		Description: description(n.descs, level, m),
		Parameters:  b.parameters(n, level, path, m),
		Tags:        []string{b.def.Kind},
		Security:    b.security(level, m),
		Keys:        n.keys,
		Collection:  n.collection,
		Component:   n.component,
	}

	if level == LevelInstanceAttr {
		prop := n.collection.Items.Properties.Get(attr)
		op.Response = response(m, bodySchema(prop))
		if m == resource.PUT {
			op.Request = &RequestBody{Description: "The request body for " + path, Schema: bodySchema(prop)}
		}
		return op
	}

	comp := n.component
	switch m {
	case resource.POST:
		comp = CreateName(n.component)
	case resource.PUT:
		comp = UpdateName(n.component)
	}
	ref := Ref(comp)
	if level == LevelResource && m == resource.GET {
		op.List = true
		op.Response = response(m, &resource.Schema{Type: "array", Items: ref})
	} else {
		op.Response = response(m, ref)
	}
	if m == resource.POST || m == resource.PUT {
		op.Request = &RequestBody{Description: "The request body for " + path, Schema: Ref(comp)}
	}
	return op
}

func response(m resource.Method, schema *resource.Schema) Response {
	switch m {
	case resource.HEAD:
		return Response{Status: "default", Description: "Default HEAD response"}
	case resource.POST:
		return Response{Status: "201", Description: "Response for CREATED", Schema: schema}
	default:
		return Response{Status: "200", Description: "Response for OK", Schema: schema}
	}
}

// bodySchema strips resource annotations from a property schema so it can
// be used as a request or response body.
func bodySchema(s *resource.Schema) *resource.Schema {
	if s == nil {
		return &resource.Schema{}
	}
	c := s.Clone()
	c.Descriptions = nil
	c.Key = nil
	c.Methods = nil
	c.QueryParams = nil
	c.Expose = nil
	return c
}

func description(d resource.Descriptions, level Level, m resource.Method) string {
	switch level {
	case LevelResource:
		return d.Resource[m]
	case LevelInstance:
		return d.Instance[m]
	default:
		return d.InstanceAttrs[m]
	}
}

func (b *builder) security(level Level, m resource.Method) []string {
	sec := b.def.Security
	name := sec.SchemeName()
	if name == "" {
		return nil
	}
	if !sec.Scoped() {
		return []string{name}
	}
	var list []resource.Method
	switch level {
	case LevelResource:
		list = sec.Resource
	case LevelInstance:
		list = sec.Instance
	default:
		list = sec.InstanceAttrs
	}
	if slices.Contains(list, m) {
		return []string{name}
	}
	return nil
}
