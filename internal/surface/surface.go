// Package surface derives the target-independent API surface (operations,
// parameters and component schemas) from resource definitions.
package surface

import (
	"fmt"
	"strings"

	"github.com/mark3labs/rsgen/internal/resource"
)

// Level is the addressing granularity of an operation.
type Level string

const (
	LevelResource     Level = "resource"
	LevelInstance     Level = "instance"
	LevelInstanceAttr Level = "instance_attrs"
)

// Candidate methods per level, in generation order.
var (
	ResourceMethods     = []resource.Method{resource.DELETE, resource.GET, resource.HEAD, resource.PATCH, resource.POST}
	InstanceMethods     = []resource.Method{resource.DELETE, resource.GET, resource.HEAD, resource.PATCH, resource.PUT}
	InstanceAttrMethods = []resource.Method{resource.DELETE, resource.GET, resource.HEAD, resource.PUT}
)

// ContentType is the media type of every request and response body.
const ContentType = "application/json"

type ParamLocation string

const (
	InPath  ParamLocation = "path"
	InQuery ParamLocation = "query"
)

type Parameter struct {
	Name        string
	In          ParamLocation
	Description string
	Schema      *resource.Schema
	Required    bool
	Default     any
}

type Response struct {
	Status      string // "200", "201" or "default"
	Description string
	// Schema is nil for bodiless responses.
	Schema *resource.Schema
}

type RequestBody struct {
	Description string
	Schema      *resource.Schema
}

// Operation is one method on one path. Operations are built once and
// never modified afterwards.
type Operation struct {
	ID     string
	Method resource.Method
	Level  Level
	Path   string

	// Kind is the top-level resource kind, also used as the tag.
	Kind string
	// Resource is the collection this operation addresses; Parents are
	// the enclosing collections, outermost first.
	Resource string
	Parents  []string
	// Attr names the property of an instance-attribute operation.
	Attr string

	// Description holds the override text, empty when none was declared.
	Description string
	Parameters  []Parameter
	Request     *RequestBody
	Response    Response
	List        bool
	Tags        []string
	Security    []string

	// Keys are the keys accumulated down to this collection.
	Keys []resource.Key
	// Collection is the keyed array schema the operation belongs to.
	Collection *resource.Schema
	// Component is the base component name of the collection.
	Component string
}

// Doc returns the description override or the generated default.
func (o Operation) Doc() string {
	if o.Description != "" {
		return o.Description
	}
	return fmt.Sprintf("%s operation for %s", o.Method, o.Path)
}

// TopLevel reports whether the operation addresses a top-level collection.
func (o Operation) TopLevel() bool { return len(o.Parents) == 0 }

func (o Operation) PathParams() []Parameter  { return o.params(InPath) }
func (o Operation) QueryParams() []Parameter { return o.params(InQuery) }

func (o Operation) params(in ParamLocation) []Parameter {
	var out []Parameter
	for _, p := range o.Parameters {
		if p.In == in {
			out = append(out, p)
		}
	}
	return out
}

// KeyNames returns the names of the accumulated keys.
func (o Operation) KeyNames() []string {
	out := make([]string, len(o.Keys))
	for i, k := range o.Keys {
		out[i] = k.Name
	}
	return out
}

// Group identifies the collection node, e.g. "addressbook/persons".
func (o Operation) Group() string {
	return strings.Join(append(append([]string(nil), o.Parents...), o.Resource), "/")
}

// Resource is the surface derived from one definition.
type Resource struct {
	Kind       string
	BasePath   string
	Definition *resource.Definition
	Operations []Operation
	Components *Registry
}

// Surface is the merged surface of a batch.
type Surface struct {
	Resources  []*Resource
	Components *Registry
}

// Operations lists every operation in generation order.
func (s *Surface) Operations() []Operation {
	var out []Operation
	for _, r := range s.Resources {
		out = append(out, r.Operations...)
	}
	return out
}

// Paths indexes operations by path and method.
func (s *Surface) Paths() map[string]map[resource.Method]Operation {
	out := make(map[string]map[resource.Method]Operation)
	for _, op := range s.Operations() {
		if out[op.Path] == nil {
			out[op.Path] = make(map[resource.Method]Operation)
		}
		out[op.Path][op.Method] = op
	}
	return out
}

// Resource returns the named resource or nil.
func (s *Surface) Resource(kind string) *Resource {
	for _, r := range s.Resources {
		if r.Kind == kind {
			return r
		}
	}
	return nil
}

// Opid derives an operation id from a path and method:
// Opid("/foo/{bar}", "get") == "foo_bar_get".
func Opid(path string, method resource.Method) string {
	id := strings.TrimPrefix(path, "/")
	id = strings.ReplaceAll(id, "/", "_")
	id = strings.NewReplacer("{", "", "}", "").Replace(id)
	return id + "_" + string(method)
}

// BasePath is "/" + optional "v<apiVersion>/" + kind.
func BasePath(def *resource.Definition) string {
	base := "/"
	if def.VersionInPath {
		base += "v" + strings.TrimPrefix(def.APIVersion, "v") + "/"
	}
	return base + def.Kind
}
