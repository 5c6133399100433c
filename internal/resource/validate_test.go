package resource

import (
    "errors"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
    t.Parallel()
    def, err := Parse([]byte(`
kind: widgets
schema:
  type: array
  key: {name: id, schema: {type: string}}
  items: {type: object, properties: {name: {type: string}}}
`), "widgets.yaml", WithValidation(false))
    require.NoError(t, err)
    assert.NoError(t, Validate(def))
}

func TestValidate_Failures(t *testing.T) {
    t.Parallel()
    cases := []struct {
        name  string
        doc   string
        field string
    }{
        {
            name:  "missing kind",
            doc:   "schema: {type: array, key: {name: id}, items: {type: object}}",
            field: "kind",
        },
        {
            name:  "missing schema",
            doc:   "kind: widgets",
            field: "schema",
        },
        {
            name:  "bad method",
            doc:   "kind: widgets\nmethods: {resource: [fetch]}\nschema: {type: array, key: {name: id}, items: {type: object}}",
            field: "methods/resource/0",
        },
        {
            name:  "query param without name",
            doc:   "kind: widgets\nschema: {type: array, key: {name: id}, query_params: [{description: x}], items: {type: object}}",
            field: "schema/query_params/0/name",
        },
        {
            name:  "version in path without apiVersion",
            doc:   "kind: widgets\nversionInPath: true\nschema: {type: array, key: {name: id}, items: {type: object}}",
            field: "apiVersion",
        },
        {
            name:  "empty security scheme",
            doc:   "kind: widgets\nsecurity: {scheme: {}}\nschema: {type: array, key: {name: id}, items: {type: object}}",
            field: "security/scheme",
        },
    }
    for _, tc := range cases {
        tc := tc
        t.Run(tc.name, func(t *testing.T) {
            t.Parallel()
            _, err := Parse([]byte(tc.doc), "widgets.yaml")
            var re *Error
            require.True(t, errors.As(err, &re), "expected *Error, got %T: %v", err, err)
            assert.Equal(t, ValidationError, re.Code)
            require.NotEmpty(t, re.Fields)
            assert.Equal(t, tc.field, re.Fields[0].Field)
            assert.Contains(t, re.Error(), tc.field)
        })
    }
}
