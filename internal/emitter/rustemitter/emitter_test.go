package rustemitter

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/mark3labs/rsgen/internal/emitter"
	"github.com/mark3labs/rsgen/internal/lower"
	"github.com/mark3labs/rsgen/internal/resource"
	"github.com/mark3labs/rsgen/internal/surface"
)

const personsDoc = `
kind: persons
methods:
  resource: [get, post]
  instance: [get, put, delete]
schema:
  type: array
  key:
    name: uuid
    schema: {type: string}
  query_params:
    - name: last_name
      description: Filter by last name
      schema: {type: string}
      methods: [get]
    - name: limit
      schema: {type: integer}
      default: 10
      methods: [get]
  items:
    type: object
    properties:
      uuid: {type: string}
      first_name: {type: string, description: The person's first name}
      hobbies: {type: array, items: {type: string}}
      kind:
        type: string
        enum: [friend, close-family]
      profile:
        type: object
        properties:
          bio: {type: string}
    required: [first_name]
`

func personsSurface(t *testing.T) *surface.Surface {
	t.Helper()
	def, err := resource.Parse([]byte(personsDoc), "persons.yaml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s, err := surface.BuildOperations(context.Background(), []*resource.Definition{def})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return s
}

var meta = emitter.Metadata{Title: "Addressbook", Description: "CLI for the addressbook", Version: "1.0.0"}

func TestEmit_Combined(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	_, err := Emit(context.Background(), personsSurface(t), meta, Options{
		Options:   emitter.Options{Stdout: &out},
		Pkg:       "addressbook",
		ClientPkg: "addressbook.client",
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	src := out.String()
	for _, want := range []string{
		"use addressbook_client::apis::configuration::Configuration;",
		"pub mod persons {",
		"pub enum PersonsCommands {",
		"    List(PersonsListArgs),",
		"pub struct PersonsCreateArgs {",
		`#[arg(long = "first-name")]`,
		"    pub first_name: String,",
		`#[arg(long = "hobbies", value_delimiter = ',')]`,
		`#[arg(long = "limit", default_value = "10")]`,
		`#[arg(value_name = "UUID")]`,
		"pub enum CreatePersonKindEnum {",
		"pub enum UpdatePersonKindEnum {",
		`    #[value(name = "close-family")]`,
		"    CLOSE_FAMILY,",
		"let body = crate::models::CreatePerson {",
		"CreatePersonKindEnum::CLOSE_FAMILY => crate::models::create_person::Kind::CloseFamily",
		"// low confidence: profile is sent as clone, check the model type",
		"persons_api::persons_uuid_get(&ctx.api_client, &args.uuid, args.last_name.as_deref(), args.limit).await?;",
		"Persons(persons::PersonsCommands),",
		"persons::handle_persons_command(&ctx, cmd).await?;",
		`#[command(version = "1.0.0")]`,
	} {
		if !strings.Contains(src, want) {
			t.Errorf("main.rs missing %q", want)
		}
	}
}

func TestEmit_AsModules(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	res, err := Emit(context.Background(), personsSurface(t), meta, Options{
		Options:   emitter.Options{OutDir: dir, AsModules: true},
		Pkg:       "addressbook",
		ClientPkg: "addressbook_client",
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(res.Planned) != 1 || res.Planned[0].RelPath != "persons.rs" {
		t.Fatalf("unexpected plan: %+v", res.Planned)
	}
	b, err := os.ReadFile(filepath.Join(dir, "persons.rs"))
	if err != nil {
		t.Fatal(err)
	}
	src := string(b)
	if !strings.Contains(src, "pub async fn handle_persons_command(") {
		t.Errorf("module missing handler:\n%s", src)
	}
	if strings.Contains(src, "fn main()") {
		t.Errorf("module should not define main")
	}
}

func TestEmit_RequiresPackages(t *testing.T) {
	t.Parallel()
	_, err := Emit(context.Background(), personsSurface(t), meta, Options{Pkg: "addressbook"})
	if err == nil || !strings.Contains(err.Error(), "client pkg") {
		t.Fatalf("expected package error, got %v", err)
	}
}

func TestEmit_EnumConflictFailsCombined(t *testing.T) {
	t.Parallel()
	doc := strings.Replace(personsDoc, "enum: [friend, close-family]", "enum: [close-family, close_family]", 1)
	def, err := resource.Parse([]byte(doc), "persons.yaml")
	if err != nil {
		t.Fatal(err)
	}
	s, err := surface.BuildOperations(context.Background(), []*resource.Definition{def})
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	_, err = Emit(context.Background(), s, meta, Options{Options: emitter.Options{Stdout: &out}, Pkg: "p", ClientPkg: "c"})
	var conflict *lower.EnumConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected EnumConflictError, got %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("combined output written despite failure")
	}
}

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

const usersDoc = `
kind: users
methods:
  resource: [get, post]
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
      scopes:
        type: array
        items: {type: string, enum: [read, read-write]}
`

func render(t *testing.T, doc string) string {
	t.Helper()
	def, err := resource.Parse([]byte(doc), "doc.yaml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	s, err := surface.BuildOperations(context.Background(), []*resource.Definition{def})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var out bytes.Buffer
	if _, err := Emit(context.Background(), s, meta, Options{Options: emitter.Options{Stdout: &out}, Pkg: "p", ClientPkg: "c"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	return out.String()
}

var (
	enumDecl = regexp.MustCompile(`(?s)pub enum (\w+Enum) \{(.*?)\n\}`)
	enumUse  = regexp.MustCompile(`(\w+Enum)::(\w+) =>`)
)

func TestEmit_NestedEnumsWithSameName(t *testing.T) {
	t.Parallel()
	src := render(t, ordersDoc)

	declared := map[string]string{}
	for _, m := range enumDecl.FindAllStringSubmatch(src, -1) {
		if _, dup := declared[m[1]]; dup {
			t.Errorf("enum %s declared twice", m[1])
		}
		declared[m[1]] = m[2]
	}
	for _, name := range []string{"CreateOrderStatusEnum", "CreateLineStatusEnum", "UpdateOrderStatusEnum"} {
		if _, ok := declared[name]; !ok {
			t.Errorf("missing enum %s", name)
		}
	}
	uses := enumUse.FindAllStringSubmatch(src, -1)
	if len(uses) == 0 {
		t.Fatalf("no enum conversions rendered:\n%s", src)
	}
	for _, m := range uses {
		body, ok := declared[m[1]]
		if !ok || !strings.Contains(body, "    "+m[2]+",") {
			t.Errorf("%s::%s is used but never declared", m[1], m[2])
		}
	}
}

func TestEmit_EnumQueryAndArrayValues(t *testing.T) {
	t.Parallel()
	src := render(t, usersDoc)
	for _, want := range []string{
		"args.role.as_ref().map(|v| v.to_possible_value().unwrap().get_name().to_string()).as_deref()",
		"pub enum ListUserRoleEnum {",
		`#[arg(long = "scopes", value_delimiter = ',')]`,
		"pub scopes: Option<Vec<CreateUserScopesEnum>>,",
		"args.scopes.as_ref().map(|xs| xs.iter().map(|v| match v { CreateUserScopesEnum::READ => crate::models::create_user::Scopes::Read, CreateUserScopesEnum::READ_WRITE => crate::models::create_user::Scopes::ReadWrite }).collect())",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("main.rs missing %q", want)
		}
	}
	if strings.Contains(src, `format!("{:?}"`) || strings.Contains(src, "_ => None") {
		t.Errorf("enum values must be sent as their literals:\n%s", src)
	}
}

func TestCratePath(t *testing.T) {
	t.Parallel()
	if got := CratePath("addressbook.client"); got != "addressbook_client" {
		t.Fatalf("got %q", got)
	}
}
