package resource

import (
    "path"
    "strings"
)

// ShapeKind is the normalized structural kind of a schema node.
type ShapeKind int

const (
    ShapeScalar ShapeKind = iota
    ShapeArray
    ShapeObjectInline
    ShapeObjectRef
)

func (k ShapeKind) String() string {
    switch k {
    case ShapeScalar:
        return "scalar"
    case ShapeArray:
        return "array"
    case ShapeObjectInline:
        return "object"
    case ShapeObjectRef:
        return "ref"
    default:
        return "unknown"
    }
}

// Shape is the tagged union produced by Normalize. Only the fields that
// belong to Kind are set.
type Shape struct {
    Kind ShapeKind

    // ShapeScalar
    Scalar string
    Format string
    Enum   []string

    // ShapeArray
    Elem *Shape

    // ShapeObjectInline
    Fields Properties

    // ShapeObjectRef. RefName is empty when the reference was detected
    // without a $ref to name it.
    RefName string
    Ref     string

    // Inferred marks shapes decided by heuristics rather than explicit
    // type information.
    Inferred bool
}

func (s Shape) IsEnum() bool { return s.Kind == ShapeScalar && len(s.Enum) > 0 }

// IsEnumArray reports an array whose elements are enum literals.
func (s Shape) IsEnumArray() bool { return s.Kind == ShapeArray && s.Elem != nil && s.Elem.IsEnum() }

// IsScalarArray reports an array of plain scalars.
func (s Shape) IsScalarArray() bool {
    return s.Kind == ShapeArray && s.Elem != nil && s.Elem.Kind == ShapeScalar
}

// IsObjectRef reports a reference or an array of references.
func (s Shape) IsObjectRef() bool {
    if s.Kind == ShapeObjectRef {
        return true
    }
    return s.Kind == ShapeArray && s.Elem != nil && s.Elem.Kind == ShapeObjectRef
}

// Structured reports values carried as embedded JSON on a command line.
func (s Shape) Structured() bool {
    switch s.Kind {
    case ShapeObjectInline, ShapeObjectRef:
        return true
    case ShapeArray:
        return s.Elem != nil && (s.Elem.Kind == ShapeObjectInline || s.Elem.Kind == ShapeObjectRef)
    }
    return false
}

var scalarTypes = map[string]bool{"string": true, "integer": true, "boolean": true, "number": true}

// Normalize classifies a schema node once so later passes never inspect
// the raw node to decide what it is.
func Normalize(s *Schema) Shape {
    if s == nil {
        return Shape{Kind: ShapeScalar, Scalar: "string", Inferred: true}
    }
    if s.Ref != "" && (s.Type == "" || s.Type == "object" || s.Type == "array") {
        if s.Type == "array" && s.Items != nil {
            elem := Normalize(s.Items)
            return Shape{Kind: ShapeArray, Elem: &elem, Ref: s.Ref}
        }
        return Shape{Kind: ShapeObjectRef, RefName: RefTypeName(s.Ref), Ref: s.Ref}
    }
    if s.Key != nil {
        return Shape{Kind: ShapeObjectRef, Ref: s.Ref, Inferred: true}
    }

    typ := s.Type
    if typ == "" {
        switch {
        case len(s.Properties) > 0:
            typ = "object"
        case s.Items != nil:
            typ = "array"
        }
    }

    switch typ {
    case "object":
        if len(s.Properties) == 0 {
            return Shape{Kind: ShapeObjectRef, Ref: s.Ref, Inferred: true}
        }
        return Shape{Kind: ShapeObjectInline, Fields: s.Properties}
    case "array":
        if s.Items == nil {
            return Shape{Kind: ShapeArray, Elem: &Shape{Kind: ShapeScalar, Scalar: "string", Inferred: true}}
        }
        elem := Normalize(s.Items)
        return Shape{Kind: ShapeArray, Elem: &elem}
    }

    out := Shape{Kind: ShapeScalar, Scalar: typ, Format: s.Format, Enum: s.EnumStrings(), Ref: s.Ref}
    if !scalarTypes[typ] {
        out.Scalar = "string"
        out.Inferred = true
    }
    return out
}

// RefTypeName derives a type name from a $ref: the file name without
// extension for file refs, or the last pointer segment for local ones.
// "person.yaml#/schema" yields "person", "#/components/schemas/Widget"
// yields "Widget".
func RefTypeName(ref string) string {
    filePart, frag, _ := strings.Cut(ref, "#")
    if filePart != "" {
        name := path.Base(filePart)
        for _, ext := range []string{".yaml", ".yml", ".json"} {
            name = strings.TrimSuffix(name, ext)
        }
        return name
    }
    frag = strings.TrimSuffix(frag, "/")
    if i := strings.LastIndex(frag, "/"); i >= 0 {
        return frag[i+1:]
    }
    return frag
}
