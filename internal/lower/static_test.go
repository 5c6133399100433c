package lower

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/rsgen/internal/resource"
	"github.com/mark3labs/rsgen/internal/surface"
)

func TestConversionStrategyString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "absent", ConvertAbsent.String())
	assert.Equal(t, "enum_array", ConvertEnumArray.String())
	assert.Equal(t, "direct", ConvertDirect.String())
	assert.Equal(t, "ConversionStrategy(42)", ConversionStrategy(42).String())
}

func TestStatic_Group(t *testing.T) {
	t.Parallel()
	m, err := Static(build(t, usersDoc), nil)
	require.NoError(t, err)
	require.Len(t, m.Groups, 1)
	g := m.Groups[0]
	assert.Equal(t, "Users", g.Pascal)
	assert.Equal(t, "USERS", g.Upper)
	assert.Equal(t, "user", g.Comp)
	assert.Equal(t, "User", g.CompPascal)

	var cmds []string
	for _, c := range g.Commands() {
		cmds = append(cmds, c.Name)
	}
	assert.Equal(t, []string{CmdList, CmdCreate, CmdDelete, CmdGet, CmdUpdate}, cmds)
}

func TestStatic_UpdateConversions(t *testing.T) {
	t.Parallel()
	m, err := Static(build(t, usersDoc), nil)
	require.NoError(t, err)
	update := staticCmd(t, m.Groups[0].Instance, CmdUpdate)
	attrs := staticAttrs(update)
	require.Len(t, update.Attrs, 11)

	cases := []struct {
		name     string
		typ      string
		strategy ConversionStrategy
		body     string
	}{
		{"user_id", "String", ConvertAbsent, "None"},
		{"name", "String", ConvertClone, "args.name.clone()"},
		{"age", "i64", ConvertNarrowOptional, "args.age.map(|v| v as i32)"},
		{"visits", "i64", ConvertDirect, "args.visits"},
		{"active", "bool", ConvertDirect, "args.active"},
		{"tags", "Vec<String>", ConvertClone, "args.tags.clone()"},
		{"scopes", "Vec<UpdateUserScopesEnum>", ConvertEnumArray, ""},
		{"role", "UpdateUserRoleEnum", ConvertEnum, ""},
		{"profile", "String", ConvertClone, "args.profile.clone()"},
		{"token", "String", ConvertNullableOptional, "args.token.as_ref().map(|s| Some(serde_json::Value::String(s.clone())))"},
	}
	for _, c := range cases {
		a, ok := attrs[c.name]
		require.True(t, ok, c.name)
		assert.Equal(t, c.typ, a.Type, c.name)
		assert.Equal(t, c.strategy, a.Strategy, c.name)
		assert.Equal(t, c.body, a.Body, c.name)
	}

	assert.True(t, attrs["user_id"].NeedsNoneInUpdate)
	assert.True(t, attrs["user_id"].PathParamInBody)
	assert.False(t, attrs["name"].NeedsNoneInUpdate)
	assert.True(t, attrs["profile"].LowConfidence)
	assert.False(t, attrs["name"].LowConfidence)

	role := attrs["role"]
	assert.Equal(t, "UpdateUserRoleEnum", role.EnumType)
	assert.Equal(t, "crate::models::update_user::Role", role.ModelType)
	assert.Equal(t, []EnumVariant{
		{Value: "admin", CLI: "ADMIN", Model: "Admin"},
		{Value: "admin-ro", CLI: "ADMIN_RO", Model: "AdminRo"},
	}, role.Variants)

	scopes := attrs["scopes"]
	assert.Equal(t, "UpdateUserScopesEnum", scopes.EnumType)
	assert.True(t, scopes.Multiple())
	assert.False(t, role.Multiple())
	assert.Equal(t, "crate::models::update_user::Scopes", scopes.ModelType)
	assert.Equal(t, "ReadWrite", scopes.Variants[1].Model)

	manager := attrs["manager"]
	assert.Equal(t, ConvertObjectRef, manager.Strategy)
	assert.Equal(t, "crate::models::Manager", manager.ModelType)
	assert.True(t, manager.LowConfidence)
	assert.Equal(t,
		"args.manager.as_ref().and_then(|s| serde_json::from_str::<crate::models::Manager>(s).ok()).map(|p| Box::new(p))",
		manager.Body)

	assert.Equal(t, []StaticAttribute{scopes, role}, update.Enums())
	assert.Empty(t, update.QueryParams)
}

func TestStatic_CreateKeyIsNullable(t *testing.T) {
	t.Parallel()
	m, err := Static(build(t, usersDoc), nil)
	require.NoError(t, err)
	create := staticCmd(t, m.Groups[0].Resource, CmdCreate)
	attrs := staticAttrs(create)

	key := attrs["user_id"]
	assert.False(t, key.PathParamInBody)
	assert.Equal(t, ConvertNullableOptional, key.Strategy)
	assert.Equal(t, "crate::models::create_user::Role", attrs["role"].ModelType)
	assert.True(t, attrs["name"].Required)
	assert.Equal(t, ConvertClone, attrs["name"].Strategy)
}

func TestStatic_QueryParams(t *testing.T) {
	t.Parallel()
	m, err := Static(build(t, usersDoc), nil)
	require.NoError(t, err)
	list := staticCmd(t, m.Groups[0].Resource, CmdList)
	require.Len(t, list.QueryParams, 2)
	assert.Equal(t, "role", list.QueryParams[0].Name)
	assert.Equal(t, "limit", list.QueryParams[1].Name)
	assert.Equal(t, ConvertNarrowOptional, list.QueryParams[1].Strategy)

	get := staticCmd(t, m.Groups[0].Instance, CmdGet)
	args := get.Arguments()
	require.Len(t, args, 1)
	assert.Equal(t, ConvertNullableRequired, args[0].Strategy)
	assert.Equal(t, "Some(serde_json::Value::String(args.user_id.clone()))", args[0].Body)
}

func TestStatic_NestedEnumsAreScoped(t *testing.T) {
	t.Parallel()
	m, err := Static(build(t, ordersDoc), nil)
	require.NoError(t, err)
	require.Len(t, m.Groups, 2)

	orders := staticAttrs(staticCmd(t, m.Groups[0].Resource, CmdCreate))["status"]
	lines := staticAttrs(staticCmd(t, m.Groups[1].Resource, CmdCreate))["status"]
	assert.Equal(t, "CreateOrderStatusEnum", orders.EnumType)
	assert.Equal(t, "CreateLineStatusEnum", lines.EnumType)
	assert.Equal(t, "SHIPPED", lines.Variants[0].CLI)
	assert.Equal(t, "crate::models::create_line::Status", lines.ModelType)

	update := staticAttrs(staticCmd(t, m.Groups[0].Instance, CmdUpdate))["status"]
	assert.Equal(t, "UpdateOrderStatusEnum", update.EnumType)
}

func TestStatic_NestedRequiredNarrowing(t *testing.T) {
	t.Parallel()
	m, err := Static(build(t, booksDoc), nil)
	require.NoError(t, err)
	require.Len(t, m.Groups, 2)
	chapters := m.Groups[1]
	assert.Equal(t, "chapter", chapters.Comp)

	get := staticCmd(t, chapters.Instance, CmdGet)
	attrs := staticAttrs(get)
	assert.Equal(t, ConvertNarrowRequired, attrs["number"].Strategy)
	assert.Equal(t, "args.number as i32", attrs["number"].Body)

	create := staticCmd(t, m.Groups[0].Resource, CmdCreate)
	sub := staticAttrs(create)["chapters"]
	assert.Equal(t, ConvertObjectRef, sub.Strategy)
	assert.Equal(t, "crate::models::Chapters", sub.ModelType)
	assert.True(t, sub.LowConfidence)
}

func TestStaticAttr_ObjectRefs(t *testing.T) {
	t.Parallel()
	op := surface.Operation{Kind: "users", ID: "users_post"}
	reg := surface.NewRegistry()
	reg.Register("Owner", &resource.Schema{Type: "object"})

	file := Field{Name: "person", In: InBody, Exposed: true, Shape: resource.Shape{Kind: resource.ShapeObjectRef, RefName: "person", Ref: "person.yaml#/schema"}}
	a, err := staticAttr(file, op, CmdCreate, "user", reg)
	require.NoError(t, err)
	assert.Equal(t, "crate::models::Person", a.ModelType)
	assert.False(t, a.LowConfidence)

	owner := Field{Name: "owner", In: InBody, Exposed: true, Required: true, Shape: resource.Shape{Kind: resource.ShapeObjectRef, RefName: "Owner", Ref: surface.ComponentPrefix + "Owner"}}
	a, err = staticAttr(owner, op, CmdCreate, "user", reg)
	require.NoError(t, err)
	assert.Equal(t, "crate::models::Owner", a.ModelType)
	assert.Equal(t, "serde_json::from_str::<crate::models::Owner>(&args.owner).ok().map(Box::new)", a.Body)

	elem := resource.Shape{Kind: resource.ShapeObjectRef, RefName: "tag", Ref: "tag.json"}
	list := Field{Name: "labels", In: InBody, Exposed: true, Shape: resource.Shape{Kind: resource.ShapeArray, Elem: &elem}}
	a, err = staticAttr(list, op, CmdCreate, "user", reg)
	require.NoError(t, err)
	assert.Equal(t, "String", a.Type)
	assert.Equal(t, "args.labels.as_ref().and_then(|s| serde_json::from_str::<Vec<crate::models::Tag>>(s).ok())", a.Body)

	missing := Field{Name: "group", In: InBody, Exposed: true, Shape: resource.Shape{Kind: resource.ShapeObjectRef, RefName: "Group", Ref: surface.ComponentPrefix + "Group"}}
	_, err = staticAttr(missing, op, CmdCreate, "user", reg)
	var refErr *surface.ComponentReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "users", refErr.Resource)
	assert.Equal(t, "users_post", refErr.Operation)
}

func TestStaticAttr_UnknownTypeIsLowConfidence(t *testing.T) {
	t.Parallel()
	f := Field{Name: "blob", In: InBody, Exposed: true, Shape: resource.Normalize(&resource.Schema{Type: "null"})}
	a, err := staticAttr(f, surface.Operation{}, CmdCreate, "user", surface.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, ConvertClone, a.Strategy)
	assert.True(t, a.LowConfidence)
}

func TestEnumVariants_Conflicts(t *testing.T) {
	t.Parallel()
	op := surface.Operation{Kind: "users", ID: "users_post"}

	_, err := enumVariants(op, "role", []string{"admin-ro", "AdminRO"})
	assert.NoError(t, err)

	_, err = enumVariants(op, "role", []string{"admin-ro", "admin_ro"})
	var conflict *EnumConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "ADMIN_RO", conflict.Variant)
	assert.Equal(t, []string{"admin-ro", "admin_ro"}, conflict.Values)

	_, err = enumVariants(op, "mode", []string{"read only", "read-only"})
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "mode", conflict.Attr)
}

func TestStaticAll_EnumConflictFailsResource(t *testing.T) {
	t.Parallel()
	bad := build(t, `
kind: flags
methods:
  resource: [post]
schema:
  type: array
  key: {name: id}
  items:
    type: object
    properties:
      level: {type: string, enum: [a-b, a_b]}
`)
	good := build(t, booksDoc)
	s := &surface.Surface{Resources: []*surface.Resource{good, bad}, Components: surface.NewRegistry()}
	s.Components.Merge(good.Components)
	s.Components.Merge(bad.Components)

	mods, err := StaticAll(context.Background(), s)
	var conflict *EnumConflictError
	require.ErrorAs(t, err, &conflict)
	require.Len(t, mods, 1)
	assert.Equal(t, "books", mods[0].Kind)
}
