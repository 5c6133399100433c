package surface

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mark3labs/rsgen/internal/resource"
)

// ComponentPrefix is the JSON pointer prefix of registered components.
const ComponentPrefix = "#/components/schemas/"

// Registry maps component names to schemas, keeping registration order.
// Registering an existing name replaces it in place.
type Registry struct {
	names   []string
	schemas map[string]*resource.Schema
}

func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*resource.Schema)}
}

func (r *Registry) Register(name string, s *resource.Schema) {
	if _, ok := r.schemas[name]; !ok {
		r.names = append(r.names, name)
	}
	r.schemas[name] = s
}

func (r *Registry) Lookup(name string) (*resource.Schema, bool) {
	s, ok := r.schemas[name]
	return s, ok
}

// Names returns component names in registration order.
func (r *Registry) Names() []string { return append([]string(nil), r.names...) }

func (r *Registry) Len() int { return len(r.names) }

// Merge copies every component of other into r.
func (r *Registry) Merge(other *Registry) {
	if other == nil {
		return
	}
	for _, n := range other.names {
		r.Register(n, other.schemas[n])
	}
}

// Resolve returns the schema a "#/components/schemas/<name>" reference
// points at.
func (r *Registry) Resolve(ref string) (*resource.Schema, error) {
	name, ok := strings.CutPrefix(ref, ComponentPrefix)
	if !ok {
		return nil, &ComponentReferenceError{Ref: ref, Reason: "not a component reference"}
	}
	s, found := r.schemas[name]
	if !found {
		return nil, &ComponentReferenceError{Ref: ref, Reason: "no component registered under " + name}
	}
	return s, nil
}

// Ref builds a reference schema to the named component.
func Ref(name string) *resource.Schema {
	return &resource.Schema{Ref: ComponentPrefix + name}
}

// Singularize strips exactly one trailing "s". Irregular plurals are not
// handled: "addresses" becomes "addresse".
func Singularize(name string) string {
	return strings.TrimSuffix(name, "s")
}

// Capitalize upper-cases the first rune and leaves the rest untouched.
func Capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// ComponentName is the base component name of a collection.
func ComponentName(resourceName string) string {
	return Capitalize(Singularize(resourceName))
}

func CreateName(component string) string { return "Create" + component }
func UpdateName(component string) string { return "Update" + component }

// permits applies an allow-list. An empty list allows everything when
// emptyAll is set and nothing otherwise.
func permits(list []resource.Method, m resource.Method, emptyAll bool) bool {
	if len(list) == 0 {
		return emptyAll
	}
	return slices.Contains(list, m)
}

func allowsResource(m resource.Methods, method resource.Method) bool {
	return slices.Contains(ResourceMethods, method) && permits(m.Resource, method, true)
}

func allowsInstance(m resource.Methods, method resource.Method) bool {
	return permits(m.Instance, method, false)
}

// SynthesizeComponents derives the components of a collection: the base
// entity, its Create/Update body variants, and the same for every nested
// sub-resource. Nested collections are registered under their property
// name and referenced from the parent, so the registry stays acyclic.
func SynthesizeComponents(resourceName string, collection *resource.Schema, methods resource.Methods) *Registry {
	reg := NewRegistry()
	synthesize(reg, resourceName, collection, methods)
	return reg
}

// synthesize registers the components of one collection and returns its
// items schema with nested collections rewritten to references.
func synthesize(reg *Registry, name string, collection *resource.Schema, methods resource.Methods) *resource.Schema {
	items := collection.Items.Clone()
	items.Descriptions = nil
	for _, p := range collection.Items.Properties {
		child := p.Schema
		if child == nil || child.Schema == nil || child.Schema.Items == nil || !child.Exposed() {
			continue
		}
		childMethods := methods
		if child.Schema.Methods != nil {
			childMethods = *child.Schema.Methods
		}
		reg.Register(p.Name, synthesize(reg, p.Name, child.Schema, childMethods))
		items.Properties = items.Properties.Set(p.Name, Ref(p.Name))
	}

	comp := ComponentName(name)
	base := items.Clone()
	base.Required = nil
	reg.Register(comp, base)

	if allowsResource(methods, resource.POST) || allowsInstance(methods, resource.POST) {
		envelope := &resource.Schema{Type: "object"}
		if len(items.Required) > 0 {
			envelope.Required = append([]string(nil), items.Required...)
		}
		reg.Register(CreateName(comp), &resource.Schema{AllOf: []*resource.Schema{Ref(comp), envelope}})
	}
	if allowsResource(methods, resource.PUT) || allowsInstance(methods, resource.PUT) {
		reg.Register(UpdateName(comp), &resource.Schema{AllOf: []*resource.Schema{Ref(comp), {Type: "object"}}})
	}
	return items
}
