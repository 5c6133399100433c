package surface

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mark3labs/rsgen/internal/resource"
)

func parseDef(t *testing.T, doc string) *resource.Definition {
	t.Helper()
	def, err := resource.Parse([]byte(doc), t.Name()+".yaml")
	require.NoError(t, err)
	return def
}

const widgetsDoc = `
kind: widgets
methods:
  resource: [get, post]
  instance: [get, put, delete]
schema:
  type: array
  key:
    name: id
    schema: {type: string}
  items:
    type: object
    properties:
      name: {type: string}
`

const addressBookDoc = `
kind: addressbook
apiVersion: "1"
versionInPath: true
methods:
  resource: [get, post]
  instance: [get, put, delete]
  instance_attrs: [get, put]
descriptions:
  resource:
    get: List all addresses in this addressbook.
default_query_params:
  - name: limit
    description: Limit the number of responses back
    schema: {type: integer}
  - name: city
    description: shadowed by the collection parameter
security:
  scheme:
    bearer_auth: {type: http, scheme: bearer, bearerFormat: JWT}
  resource: [post]
  instance: [put, delete]
asyncapi:
  servers:
    dev: {url: "ws://localhost", protocol: ws}
  channels:
    resources: true
    instances: true
    instance_attrs: true
schema:
  type: array
  key:
    name: address_key
    description: A unique identifier for an addressbook entry.
    schema: {type: string}
  query_params:
    - name: city
      description: Filter by city name
      required: false
      schema: {type: string}
      methods: [get]
  items:
    type: object
    properties:
      address_key: {type: string, description: key}
      street: {type: string}
      city: {type: string}
      secret: {type: string, expose: false}
      persons:
        description: People at this address
        schema:
          type: array
          key:
            name: uuid
            schema: {type: string}
          methods:
            resource: [get, post]
            instance: [get, delete]
          items:
            type: object
            properties:
              first_name: {type: string}
              last_name: {type: string}
            required: [first_name]
    required: [street, city]
`
