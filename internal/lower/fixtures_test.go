package lower

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mark3labs/rsgen/internal/resource"
	"github.com/mark3labs/rsgen/internal/surface"
)

func build(t *testing.T, doc string) *surface.Resource {
	t.Helper()
	def, err := resource.Parse([]byte(doc), t.Name()+".yaml")
	require.NoError(t, err)
	r, err := surface.BuildResource(def)
	require.NoError(t, err)
	return r
}

const usersDoc = `
kind: users
methods:
  resource: [get, post]
  instance: [get, put, delete]
default_query_params:
  - name: limit
    description: Limit the number of responses back
    schema: {type: integer}
schema:
  type: array
  key:
    name: user_id
    schema: {type: string}
  query_params:
    - name: role
      schema: {type: string, enum: [admin, admin-ro]}
      methods: [get]
  items:
    type: object
    properties:
      user_id: {type: string}
      name: {type: string, description: Full name}
      age: {type: integer}
      visits: {type: integer, format: int64}
      active: {type: boolean}
      tags: {type: array, items: {type: string}}
      scopes:
        type: array
        items: {type: string, enum: [read, read-write]}
      role: {type: string, enum: [admin, admin-ro]}
      profile:
        type: object
        properties:
          bio: {type: string}
      manager: {type: object}
      token: {type: string, expose: false}
    required: [name]
`

const booksDoc = `
kind: books
methods:
  resource: [get, post]
  instance: [get, delete]
schema:
  type: array
  key:
    name: isbn
    schema: {type: string}
  items:
    type: object
    properties:
      isbn: {type: string}
      title: {type: string}
      chapters:
        schema:
          type: array
          key:
            name: number
            schema: {type: integer}
          items:
            type: object
            properties:
              number: {type: integer}
              heading: {type: string}
            required: [heading]
    required: [title]
`

// ordersDoc has a status enum on both levels with different values.
const ordersDoc = `
kind: orders
methods:
  resource: [get, post]
  instance: [get, put, delete]
schema:
  type: array
  key:
    name: order_id
    schema: {type: string}
  items:
    type: object
    properties:
      order_id: {type: string}
      status: {type: string, enum: [open, closed]}
      lines:
        schema:
          type: array
          key:
            name: line_id
            schema: {type: string}
          items:
            type: object
            properties:
              line_id: {type: string}
              status: {type: string, enum: [shipped, backordered]}
`

func dynamicCmd(t *testing.T, cmds []Command, name string) Command {
	t.Helper()
	for _, c := range cmds {
		if c.Name == name {
			return c
		}
	}
	require.Failf(t, "command not found", "no %q command", name)
	return Command{}
}

func staticCmd(t *testing.T, cmds []StaticCommand, name string) StaticCommand {
	t.Helper()
	for _, c := range cmds {
		if c.Name == name {
			return c
		}
	}
	require.Failf(t, "command not found", "no %q command", name)
	return StaticCommand{}
}

func staticAttrs(cmd StaticCommand) map[string]StaticAttribute {
	out := make(map[string]StaticAttribute, len(cmd.Attrs))
	for _, a := range cmd.Attrs {
		out[a.Name] = a
	}
	return out
}

func names(fs []Field) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name
	}
	return out
}
