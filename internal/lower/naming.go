package lower

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mark3labs/rsgen/internal/resource"
	"github.com/mark3labs/rsgen/internal/surface"
)

// Command names produced by OpName.
const (
	CmdList   = "list"
	CmdGet    = "get"
	CmdCreate = "create"
	CmdUpdate = "update"
	CmdDelete = "delete"
)

// OpName maps a method to its command name. A resource-level get is a
// list. HEAD has no command and yields "".
func OpName(m resource.Method, level surface.Level) string {
	switch m {
	case resource.GET:
		if level == surface.LevelResource {
			return CmdList
		}
		return CmdGet
	case resource.POST:
		return CmdCreate
	case resource.PUT, resource.PATCH:
		return CmdUpdate
	case resource.DELETE:
		return CmdDelete
	}
	return ""
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
}

// Pascal title-cases every segment of s split on "-", "_" and space and
// concatenates them: "admin-ro" and "admin_ro" both become "AdminRo".
func Pascal(s string) string {
	// Casers keep state and are not shared between goroutines.
	title := cases.Title(language.Und)
	var b strings.Builder
	for _, w := range splitWords(s) {
		b.WriteString(title.String(w))
	}
	return b.String()
}

// PrettyName is the human label for a name: "postal_codes" is "Postal Codes".
func PrettyName(s string) string {
	title := cases.Title(language.Und)
	words := splitWords(s)
	for i, w := range words {
		words[i] = title.String(w)
	}
	return strings.Join(words, " ")
}

// Identifier replaces "-" and space with "_".
func Identifier(s string) string {
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

// FlagName is the command-line flag spelling of a name.
func FlagName(s string) string {
	return strings.NewReplacer("_", "-", " ", "-").Replace(s)
}

var rustKeywords = map[string]bool{
	"type": true, "match": true, "self": true, "Self": true, "super": true,
	"trait": true, "impl": true, "fn": true, "const": true, "static": true,
	"let": true, "mut": true, "ref": true, "move": true, "as": true,
	"use": true, "pub": true, "mod": true, "crate": true, "extern": true,
	"where": true, "unsafe": true, "async": true, "await": true,
}

// RustIdent is Identifier with Rust keywords escaped as raw identifiers.
func RustIdent(s string) string {
	id := Identifier(s)
	if rustKeywords[id] {
		return "r#" + id
	}
	return id
}

// ShoutCase upper-cases s with "-" and space replaced by "_".
func ShoutCase(s string) string {
	return strings.ToUpper(Identifier(s))
}
