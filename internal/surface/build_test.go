package surface

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/rsgen/internal/resource"
)

func opIDs(ops []Operation) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.ID
	}
	return out
}

func TestOpid(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "foo_bar_get", Opid("/foo/{bar}", resource.GET))
	assert.Equal(t, "v1_addressbook_address_key_persons_post", Opid("/v1/addressbook/{address_key}/persons", resource.POST))
	assert.Equal(t, "widgets_subscribe", Opid("/widgets", Subscribe))
}

func TestBuildResource_Widgets(t *testing.T) {
	t.Parallel()
	r, err := BuildResource(parseDef(t, widgetsDoc))
	require.NoError(t, err)

	assert.ElementsMatch(t,
		[]string{"widgets_get", "widgets_post", "widgets_id_get", "widgets_id_put", "widgets_id_delete"},
		opIDs(r.Operations))
	assert.ElementsMatch(t, []string{"Widget", "CreateWidget", "UpdateWidget"}, r.Components.Names())

	byID := map[string]Operation{}
	for _, op := range r.Operations {
		byID[op.ID] = op
		assert.Equal(t, []string{"widgets"}, op.Tags)
	}
	list := byID["widgets_get"]
	assert.True(t, list.List)
	assert.Equal(t, "200", list.Response.Status)
	assert.Equal(t, "array", list.Response.Schema.Type)
	assert.Equal(t, ComponentPrefix+"Widget", list.Response.Schema.Items.Ref)

	create := byID["widgets_post"]
	assert.Equal(t, "201", create.Response.Status)
	require.NotNil(t, create.Request)
	assert.Equal(t, ComponentPrefix+"CreateWidget", create.Request.Schema.Ref)

	update := byID["widgets_id_put"]
	require.NotNil(t, update.Request)
	assert.Equal(t, ComponentPrefix+"UpdateWidget", update.Request.Schema.Ref)
	require.Len(t, update.Parameters, 1)
	assert.Equal(t, Parameter{Name: "id", In: InPath, Schema: &resource.Schema{Type: "string"}, Required: true}, update.Parameters[0])

	del := byID["widgets_id_delete"]
	assert.Nil(t, del.Request)
	assert.Equal(t, "delete operation for /widgets/{id}", del.Doc())
}

func TestBuildResource_ResourceAllowList(t *testing.T) {
	t.Parallel()
	def := parseDef(t, widgetsDoc)
	def.Methods = resource.Methods{Resource: []resource.Method{resource.GET}}
	r, err := BuildResource(def)
	require.NoError(t, err)
	assert.Equal(t, []string{"widgets_get"}, opIDs(r.Operations))
}

func TestBuildResource_AbsentResourceListAllowsAll(t *testing.T) {
	t.Parallel()
	def := parseDef(t, widgetsDoc)
	def.Methods = resource.Methods{}
	r, err := BuildResource(def)
	require.NoError(t, err)
	assert.Equal(t, []string{"widgets_delete", "widgets_get", "widgets_head", "widgets_patch", "widgets_post"}, opIDs(r.Operations))

	for _, op := range r.Operations {
		if op.Method == resource.HEAD {
			assert.Equal(t, "default", op.Response.Status)
			assert.Nil(t, op.Response.Schema)
		}
	}
	names := r.Components.Names()
	assert.Contains(t, names, "CreateWidget")
	assert.NotContains(t, names, "UpdateWidget")
}

func TestBuildResource_NestedLevels(t *testing.T) {
	t.Parallel()
	r, err := BuildResource(parseDef(t, addressBookDoc))
	require.NoError(t, err)

	paths := map[string]bool{}
	for _, op := range r.Operations {
		paths[op.Path] = true
	}
	for _, p := range []string{
		"/v1/addressbook",
		"/v1/addressbook/{address_key}",
		"/v1/addressbook/{address_key}/street",
		"/v1/addressbook/{address_key}/persons",
		"/v1/addressbook/{address_key}/persons/{uuid}",
	} {
		assert.True(t, paths[p], "missing path %s", p)
	}
	assert.False(t, paths["/v1/addressbook/{address_key}/secret"], "unexposed property must be skipped")

	var nestedGet Operation
	for _, op := range r.Operations {
		if op.ID == "v1_addressbook_address_key_persons_uuid_get" {
			nestedGet = op
		}
	}
	require.NotEmpty(t, nestedGet.ID)
	assert.Equal(t, "persons", nestedGet.Resource)
	assert.Equal(t, []string{"addressbook"}, nestedGet.Parents)
	assert.Equal(t, "addressbook", nestedGet.Kind)
	assert.Equal(t, "Person", nestedGet.Component)
	var names []string
	for _, p := range nestedGet.PathParams() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"address_key", "uuid"}, names)
	assert.Equal(t, []string{"address_key", "uuid"}, nestedGet.KeyNames())
}

func TestBuildResource_Parameters(t *testing.T) {
	t.Parallel()
	r, err := BuildResource(parseDef(t, addressBookDoc))
	require.NoError(t, err)
	ops := map[string]Operation{}
	for _, op := range r.Operations {
		ops[op.ID] = op
	}

	list := ops["v1_addressbook_get"]
	require.Len(t, list.Parameters, 2)
	assert.Equal(t, "city", list.Parameters[0].Name)
	assert.Equal(t, "Filter by city name", list.Parameters[0].Description, "first occurrence wins")
	assert.Equal(t, "limit", list.Parameters[1].Name)
	assert.Equal(t, "integer", list.Parameters[1].Schema.Type)
	assert.Equal(t, "List all addresses in this addressbook.", list.Doc())

	create := ops["v1_addressbook_post"]
	require.Len(t, create.Parameters, 2, "city is restricted to get")
	assert.Equal(t, "limit", create.Parameters[0].Name)
	assert.Equal(t, "city", create.Parameters[1].Name, "default has no method filter")

	inst := ops["v1_addressbook_address_key_get"]
	for _, p := range inst.Parameters {
		assert.NotEqual(t, "limit", p.Name, "defaults apply at resource level only")
	}
	require.Len(t, inst.PathParams(), 1)
	assert.Equal(t, "A unique identifier for an addressbook entry.", inst.PathParams()[0].Description)
}

func TestBuildResource_Security(t *testing.T) {
	t.Parallel()
	r, err := BuildResource(parseDef(t, addressBookDoc))
	require.NoError(t, err)
	secured := map[string]bool{}
	for _, op := range r.Operations {
		if len(op.Security) > 0 {
			assert.Equal(t, []string{"bearer_auth"}, op.Security)
			secured[op.ID] = true
		}
	}
	assert.True(t, secured["v1_addressbook_post"])
	assert.True(t, secured["v1_addressbook_address_key_put"])
	assert.True(t, secured["v1_addressbook_address_key_delete"])
	assert.False(t, secured["v1_addressbook_get"])
	assert.False(t, secured["v1_addressbook_address_key_street_put"])
}

func TestBuildResource_UnscopedSecurityAppliesEverywhere(t *testing.T) {
	t.Parallel()
	def := parseDef(t, widgetsDoc)
	def.Security = &resource.Security{Scheme: resource.Schemes{{Name: "api_key"}}}
	r, err := BuildResource(def)
	require.NoError(t, err)
	for _, op := range r.Operations {
		assert.Equal(t, []string{"api_key"}, op.Security, op.ID)
	}
}

func TestBuildResource_InstanceAttrs(t *testing.T) {
	t.Parallel()
	r, err := BuildResource(parseDef(t, addressBookDoc))
	require.NoError(t, err)
	var get, put *Operation
	for i := range r.Operations {
		op := &r.Operations[i]
		if op.Path != "/v1/addressbook/{address_key}/street" {
			continue
		}
		assert.Equal(t, LevelInstanceAttr, op.Level)
		assert.Equal(t, "street", op.Attr)
		switch op.Method {
		case resource.GET:
			get = op
		case resource.PUT:
			put = op
		default:
			t.Errorf("unexpected attr method %s", op.Method)
		}
	}
	require.NotNil(t, get)
	require.NotNil(t, put)
	assert.Equal(t, "string", get.Response.Schema.Type)
	assert.Empty(t, get.Response.Schema.Ref)
	require.NotNil(t, put.Request)
	assert.Equal(t, "string", put.Request.Schema.Type)
}

func TestBuildResource_NoInstanceListMeansNoInstanceOps(t *testing.T) {
	t.Parallel()
	def := parseDef(t, widgetsDoc)
	def.Methods.Instance = nil
	r, err := BuildResource(def)
	require.NoError(t, err)
	for _, op := range r.Operations {
		assert.Equal(t, LevelResource, op.Level)
	}
}

func TestBuildResource_MissingKey(t *testing.T) {
	t.Parallel()
	def := parseDef(t, widgetsDoc)
	def.Schema.Key = nil
	r, err := BuildResource(def)
	assert.Nil(t, r)
	var mk *MissingKeyError
	require.True(t, errors.As(err, &mk))
	assert.True(t, errors.Is(err, ErrMissingKey))
	assert.Equal(t, "widgets", mk.Resource)
	assert.Equal(t, "schema", mk.Pointer)
}

func TestBuildResource_NestedMissingKey(t *testing.T) {
	t.Parallel()
	def := parseDef(t, addressBookDoc)
	def.Schema.Items.Properties.Get("persons").Schema.Key = nil
	r, err := BuildResource(def)
	assert.Nil(t, r)
	var mk *MissingKeyError
	require.True(t, errors.As(err, &mk))
	assert.Equal(t, "persons", mk.Collection)
	assert.Equal(t, "schema/items/properties/persons/schema", mk.Pointer)
	assert.Contains(t, err.Error(), "resource addressbook")
}

func TestBuildResource_QueryParamWithoutName(t *testing.T) {
	t.Parallel()
	def := parseDef(t, widgetsDoc)
	def.Schema.QueryParams = []resource.QueryParam{{Description: "nameless"}}
	_, err := BuildResource(def)
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestBuildResource_DuplicateKeyName(t *testing.T) {
	t.Parallel()
	def := parseDef(t, `
kind: nodes
methods:
  instance: [get]
schema:
  type: array
  key: {name: id}
  items:
    type: object
    properties:
      children:
        schema:
          type: array
          key: {name: id}
          items: {type: object, properties: {label: {type: string}}}
`)
	r, err := BuildResource(def)
	require.NoError(t, err)
	for _, op := range r.Operations {
		if op.Resource != "children" {
			continue
		}
		assert.Len(t, op.Keys, 1)
		count := 0
		for _, p := range op.PathParams() {
			if p.Name == "id" {
				count++
			}
		}
		assert.LessOrEqual(t, count, 1, op.ID)
	}
}

func TestBuildResource_MethodFilter(t *testing.T) {
	t.Parallel()
	r, err := BuildResource(parseDef(t, widgetsDoc), WithMethods([]string{"GET"}))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"widgets_get", "widgets_id_get"}, opIDs(r.Operations))
}

func TestBuildOperations_IsolatesFailures(t *testing.T) {
	t.Parallel()
	good := parseDef(t, widgetsDoc)
	bad := parseDef(t, addressBookDoc)
	bad.Schema.Key = nil

	s, err := BuildOperations(context.Background(), []*resource.Definition{bad, good})
	require.Error(t, err)
	var be *BatchError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, []string{"addressbook"}, be.FailedKinds())
	assert.ErrorIs(t, err, ErrMissingKey)

	require.NotNil(t, s)
	require.Len(t, s.Resources, 1)
	assert.Equal(t, "widgets", s.Resources[0].Kind)
	_, ok := s.Components.Lookup("Widget")
	assert.True(t, ok)
}

func TestBuildOperations_NilDefinition(t *testing.T) {
	t.Parallel()
	s, err := BuildOperations(context.Background(), []*resource.Definition{nil, parseDef(t, widgetsDoc)}, WithKinds([]string{"widgets"}))
	var be *BatchError
	require.ErrorAs(t, err, &be)
	require.Len(t, be.Failures, 1)
	assert.Equal(t, 0, be.Failures[0].Index)
	assert.Empty(t, be.Failures[0].Kind)
	require.Len(t, s.Resources, 1)
	assert.Equal(t, "widgets", s.Resources[0].Kind)

	_, err = BuildChannels(nil)
	assert.Error(t, err)
}

func TestBuildOperations_FailFast(t *testing.T) {
	t.Parallel()
	bad := parseDef(t, widgetsDoc)
	bad.Schema.Key = nil
	s, err := BuildOperations(context.Background(), []*resource.Definition{bad, parseDef(t, addressBookDoc)}, WithFailFast())
	assert.Nil(t, s)
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestBuildOperations_MergesInOrder(t *testing.T) {
	t.Parallel()
	s, err := BuildOperations(context.Background(),
		[]*resource.Definition{parseDef(t, addressBookDoc), parseDef(t, widgetsDoc)},
		WithConcurrency(1))
	require.NoError(t, err)
	require.Len(t, s.Resources, 2)
	assert.Equal(t, "addressbook", s.Resources[0].Kind)
	assert.Equal(t, "widgets", s.Resources[1].Kind)

	paths := s.Paths()
	assert.Contains(t, paths, "/widgets")
	assert.Equal(t, "widgets_id_put", paths["/widgets/{id}"][resource.PUT].ID)
	assert.Equal(t, len(s.Operations()), len(s.Resources[0].Operations)+len(s.Resources[1].Operations))
}

func TestBuildOperations_WithKinds(t *testing.T) {
	t.Parallel()
	s, err := BuildOperations(context.Background(),
		[]*resource.Definition{parseDef(t, addressBookDoc), parseDef(t, widgetsDoc)},
		WithKinds([]string{"widgets"}))
	require.NoError(t, err)
	require.Len(t, s.Resources, 1)
	assert.NotNil(t, s.Resource("widgets"))
	assert.Nil(t, s.Resource("addressbook"))
}
