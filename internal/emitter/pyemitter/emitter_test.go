package pyemitter

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/rsgen/internal/emitter"
	"github.com/mark3labs/rsgen/internal/lower"
	"github.com/mark3labs/rsgen/internal/resource"
	"github.com/mark3labs/rsgen/internal/surface"
)

const personsDoc = `
kind: persons
apiVersion: v1
methods:
  resource: [get, post]
  instance: [get, put, delete]
schema:
  type: array
  key:
    name: uuid
    description: A UUID associated to this person
    schema: {type: string}
  query_params:
    - name: last_name
      description: Filter by last name
      schema: {type: string}
      methods: [get]
    - name: limit
      description: Limit the number of responses back
      schema: {type: integer}
      default: 10
      methods: [get]
  items:
    type: object
    properties:
      uuid: {type: string, description: A UUID associated to this person}
      first_name: {type: string, description: The person's first name}
      age: {type: integer, description: The person's age}
      hobbies:
        type: array
        description: The person's hobbies
        items: {type: string}
      kind:
        type: string
        enum: [friend, family]
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

var meta = emitter.Metadata{Title: "Addressbook", Description: "CLI for the addressbook", Version: "1.0"}

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
		`from addressbook.client.api import persons_api`,
		`from addressbook.client.models import create_person as create_person_model`,
		`from addressbook.client.models import update_person as update_person_model`,
		`@main.group("persons")`,
		`@persons.command("list")`,
		`@persons.command("create")`,
		`@persons.command("delete")`,
		`"--first-name"`,
		`type=cli.StrList`,
		`type=click.Choice(["friend", "family"])`,
		`@click.argument("uuid", type=str)`,
		`req_body = create_person_model.CreatePerson(**body)`,
		`resp = await api_obj.persons_uuid_get(uuid, **params)`,
		`default=10`,
		`_LOGGER = logging.getLogger("addressbook")`,
		`"""Addressbook 1.0`,
	} {
		if !strings.Contains(src, want) {
			t.Errorf("combined output missing %q", want)
		}
	}
	if strings.Contains(src, "def init():") {
		t.Errorf("combined output should not define init()")
	}
}

func TestEmit_AsModules(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	res, err := Emit(context.Background(), personsSurface(t), meta, Options{
		Options:   emitter.Options{OutDir: dir, AsModules: true},
		Pkg:       "addressbook",
		ClientPkg: "addressbook.client",
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if len(res.Planned) != 1 || res.Planned[0].RelPath != "persons.py" {
		t.Fatalf("unexpected plan: %+v", res.Planned)
	}
	b, err := os.ReadFile(filepath.Join(dir, "persons.py"))
	if err != nil {
		t.Fatalf("read module: %v", err)
	}
	src := string(b)
	for _, want := range []string{`@click.group("persons")`, "def init():", "    return persons\n"} {
		if !strings.Contains(src, want) {
			t.Errorf("module missing %q", want)
		}
	}
}

func TestEmit_RequiresPackages(t *testing.T) {
	t.Parallel()
	_, err := Emit(context.Background(), personsSurface(t), meta, Options{Options: emitter.Options{Stdout: &bytes.Buffer{}}})
	if err == nil || !strings.Contains(err.Error(), "pkg and client pkg are required") {
		t.Fatalf("expected package error, got %v", err)
	}
}

func TestEmit_AsModulesRequiresOutDir(t *testing.T) {
	t.Parallel()
	_, err := Emit(context.Background(), personsSurface(t), meta, Options{
		Options:   emitter.Options{AsModules: true},
		Pkg:       "p",
		ClientPkg: "c",
	})
	if !errors.Is(err, emitter.ErrOutDirRequired) {
		t.Fatalf("expected ErrOutDirRequired, got %v", err)
	}
}

func TestRender_CustomTemplate(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "custom.py.tmpl")
	custom := `{{range .Modules}}{{.Kind}}:{{range .Groups}}{{range .Commands}} {{.Name}}{{end}}{{end}}{{end}}`
	if err := os.WriteFile(path, []byte(custom), 0o644); err != nil {
		t.Fatal(err)
	}
	mods, err := lower.DynamicAll(context.Background(), personsSurface(t))
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	out, _, err := Render(mods, meta, Options{Options: emitter.Options{Template: path}, Pkg: "p", ClientPkg: "c"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got, want := string(out), "persons: list create delete get update"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestRender_BrokenTemplate(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "broken.tmpl")
	if err := os.WriteFile(path, []byte("{{range .Modules}"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := Render(nil, meta, Options{Options: emitter.Options{Template: path}, Pkg: "p", ClientPkg: "c"})
	var rerr *emitter.RenderError
	if err == nil {
		t.Fatal("expected render error")
	}
	if !errors.As(err, &rerr) || rerr.Template != path {
		t.Fatalf("expected RenderError for %s, got %v", path, err)
	}
}

func TestHelpers(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name, got, want string
	}{
		{"ident dots", Ident("v1.0_persons_get"), "v1_0_persons_get"},
		{"ident digit", Ident("1st"), "_1st"},
		{"snake", snake("CreatePostalCode"), "create_postal_code"},
		{"choice", ClickType(lower.Attribute{Type: lower.TagChoice, Choices: []string{"a", "b"}}), `click.Choice(["a", "b"])`},
		{"json", ClickType(lower.Attribute{Type: lower.TagJSON}), "cli.FromJSON()"},
		{"float", ClickType(lower.Attribute{Type: lower.TagNumber}), "float"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, tc.got, tc.want)
		}
	}

	lit, err := Literal(map[string]any{"on": true, "tags": []any{"x", nil}, "n": 2})
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"n": 2, "on": True, "tags": ["x", None]}`; lit != want {
		t.Errorf("literal: got %s, want %s", lit, want)
	}
}
