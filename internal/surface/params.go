package surface

import (
	"strings"

	"github.com/mark3labs/rsgen/internal/resource"
)

// parameters derives the query and path parameters of one operation.
// Resource-level operations also receive the definition's default query
// parameters; duplicates by name keep their first occurrence.
func (b *builder) parameters(n node, level Level, path string, m resource.Method) []Parameter {
	var out []Parameter
	for _, q := range n.collection.QueryParams {
		if q.AppliesTo(m) {
			out = append(out, queryParam(q))
		}
	}
	for _, k := range n.keys {
		if !strings.Contains(path, "{"+k.Name+"}") {
			continue
		}
		schema := k.Schema
		if schema == nil {
			schema = &resource.Schema{Type: "string"}
		}
		out = append(out, Parameter{Name: k.Name, In: InPath, Description: k.Description, Schema: schema, Required: true})
	}
	if level == LevelResource {
		for _, q := range b.def.DefaultQueryParams {
			if q.AppliesTo(m) {
				out = append(out, queryParam(q))
			}
		}
		out = dedupParams(out)
	}
	return out
}

func queryParam(q resource.QueryParam) Parameter {
	schema := q.Schema
	if schema == nil {
		schema = &resource.Schema{Type: "string"}
	}
	return Parameter{
		Name:        q.Name,
		In:          InQuery,
		Description: q.Description,
		Schema:      schema,
		Required:    q.Required,
		Default:     q.Default,
	}
}

func dedupParams(params []Parameter) []Parameter {
	seen := make(map[string]struct{}, len(params))
	out := params[:0:0]
	for _, p := range params {
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		out = append(out, p)
	}
	return out
}
