package resource

import (
    "context"
    "fmt"
    "log/slog"
    "os"
    "path/filepath"
    "strconv"
    "strings"

    "gopkg.in/yaml.v3"
)

// ErrorCode categorizes loader errors for clearer handling and messaging.
type ErrorCode string

const (
    InputError      ErrorCode = "InputError"
    ParseError      ErrorCode = "ParseError"
    ReferenceError  ErrorCode = "ReferenceError"
    ValidationError ErrorCode = "ValidationError"
)

// Error is a structured error with optional location and JSON Pointer.
type Error struct {
    Code        ErrorCode
    Message     string
    Location    string // file path
    JSONPointer string // e.g. "#/schema/items/properties/name"
    Fields      []FieldError
    Cause       error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Cause }

// FieldError is one failed validation rule.
type FieldError struct {
    Field   string
    Message string
}

// Settings configures loader behavior.
type Settings struct {
    // AllowFileRefs controls whether $ref may point at sibling files.
    AllowFileRefs bool
    // Validate runs struct validation on every loaded definition.
    Validate bool
    Logger   *slog.Logger
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
    return Settings{
        AllowFileRefs: true,
        Validate:      true,
        Logger:        slog.New(slog.DiscardHandler),
    }
}

// Option mutates Settings.
type Option func(*Settings)

func WithAllowFileRefs(allow bool) Option { return func(s *Settings) { s.AllowFileRefs = allow } }
func WithValidation(on bool) Option       { return func(s *Settings) { s.Validate = on } }
func WithLogger(l *slog.Logger) Option {
    return func(s *Settings) {
        if l != nil {
            s.Logger = l
        }
    }
}

// Load reads a resource definition from a YAML or JSON file, dereferences
// every $ref and validates the result.
func Load(ctx context.Context, path string, opts ...Option) (*Definition, error) {
    if strings.TrimSpace(path) == "" {
        return nil, &Error{Code: InputError, Message: "resource: input is empty"}
    }
    if err := ctx.Err(); err != nil {
        return nil, err
    }
    abs, err := filepath.Abs(path)
    if err != nil {
        return nil, &Error{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: path, Cause: err}
    }
    raw, err := os.ReadFile(abs)
    if err != nil {
        return nil, &Error{Code: InputError, Message: fmt.Sprintf("read file %s: %v", abs, err), Location: abs, Cause: err}
    }
    return Parse(raw, abs, opts...)
}

// LoadAll loads each path in order. The first failure aborts the batch.
func LoadAll(ctx context.Context, paths []string, opts ...Option) ([]*Definition, error) {
    defs := make([]*Definition, 0, len(paths))
    for _, p := range paths {
        def, err := Load(ctx, p, opts...)
        if err != nil {
            return nil, err
        }
        defs = append(defs, def)
    }
    return defs, nil
}

// Parse decodes raw bytes as a resource definition. location names the
// document for error messages and anchors relative file refs.
func Parse(raw []byte, location string, opts ...Option) (*Definition, error) {
    settings := DefaultSettings()
    for _, opt := range opts {
        opt(&settings)
    }

    var doc yaml.Node
    if err := yaml.Unmarshal(raw, &doc); err != nil {
        return nil, &Error{Code: ParseError, Message: fmt.Sprintf("parse %s: %v", location, err), Location: location, Cause: err}
    }
    if len(doc.Content) == 0 {
        return nil, &Error{Code: ParseError, Message: fmt.Sprintf("parse %s: empty document", location), Location: location}
    }

    r := &resolver{settings: settings, docs: map[string]*yaml.Node{location: doc.Content[0]}}
    if err := r.resolve(doc.Content[0], location); err != nil {
        return nil, err
    }

    var def Definition
    if err := doc.Content[0].Decode(&def); err != nil {
        return nil, &Error{Code: ParseError, Message: fmt.Sprintf("decode %s: %v", location, err), Location: location, Cause: err}
    }
    def.Location = location
    settings.Logger.Debug("loaded resource", slog.String("kind", def.Kind), slog.String("location", location))

    if settings.Validate {
        settings.Logger.Info("validating resource", slog.String("kind", def.Kind))
        if err := Validate(&def); err != nil {
            return nil, err
        }
    }
    return &def, nil
}

// resolver inlines $ref targets. The resolved mapping keeps the original
// $ref entry so later passes can see what the field pointed at.
type resolver struct {
    settings Settings
    docs     map[string]*yaml.Node
    stack    []string
}

func (r *resolver) resolve(node *yaml.Node, file string) error {
    switch node.Kind {
    case yaml.DocumentNode, yaml.SequenceNode:
        for _, c := range node.Content {
            if err := r.resolve(c, file); err != nil {
                return err
            }
        }
    case yaml.MappingNode:
        var ref *yaml.Node
        for i := 0; i+1 < len(node.Content); i += 2 {
            if node.Content[i].Value == "$ref" {
                ref = node.Content[i+1]
                continue
            }
            if err := r.resolve(node.Content[i+1], file); err != nil {
                return err
            }
        }
        if ref != nil && ref.Kind == yaml.ScalarNode {
            return r.inline(node, ref.Value, file)
        }
    }
    return nil
}

func (r *resolver) inline(node *yaml.Node, ref, file string) error {
    target, targetFile, id, err := r.lookup(ref, file)
    if err != nil {
        return err
    }
    for _, seen := range r.stack {
        if seen == id {
            r.settings.Logger.Debug("leaving cyclic $ref unresolved", slog.String("ref", ref))
            return nil
        }
    }
    r.stack = append(r.stack, id)
    defer func() { r.stack = r.stack[:len(r.stack)-1] }()

    resolved := cloneNode(target)
    if err := r.resolve(resolved, targetFile); err != nil {
        return err
    }
    if resolved.Kind != yaml.MappingNode {
        *node = *resolved
        return nil
    }

    own := map[string]bool{}
    for i := 0; i+1 < len(node.Content); i += 2 {
        own[node.Content[i].Value] = true
    }
    merged := append([]*yaml.Node(nil), node.Content...)
    for i := 0; i+1 < len(resolved.Content); i += 2 {
        k := resolved.Content[i].Value
        if own[k] {
            continue
        }
        merged = append(merged, resolved.Content[i], resolved.Content[i+1])
    }
    node.Content = merged
    return nil
}

func (r *resolver) lookup(ref, file string) (*yaml.Node, string, string, error) {
    filePart, frag, _ := strings.Cut(ref, "#")
    if strings.Contains(filePart, "://") {
        return nil, "", "", &Error{Code: ReferenceError, Message: fmt.Sprintf("unsupported remote $ref %q", ref), Location: file}
    }
    targetFile := file
    if filePart != "" {
        if !r.settings.AllowFileRefs {
            return nil, "", "", &Error{Code: ReferenceError, Message: fmt.Sprintf("file $ref %q is not allowed", ref), Location: file}
        }
        targetFile = filepath.Join(filepath.Dir(file), filepath.FromSlash(filePart))
    }
    root, err := r.document(targetFile)
    if err != nil {
        return nil, "", "", err
    }
    target, err := walkPointer(root, frag)
    if err != nil {
        return nil, "", "", &Error{Code: ReferenceError, Message: fmt.Sprintf("resolve $ref %q: %v", ref, err), Location: file, JSONPointer: "#" + frag, Cause: err}
    }
    return target, targetFile, targetFile + "#" + frag, nil
}

func (r *resolver) document(path string) (*yaml.Node, error) {
    if n, ok := r.docs[path]; ok {
        return n, nil
    }
    raw, err := os.ReadFile(path)
    if err != nil {
        return nil, &Error{Code: ReferenceError, Message: fmt.Sprintf("read referenced file %s: %v", path, err), Location: path, Cause: err}
    }
    var doc yaml.Node
    if err := yaml.Unmarshal(raw, &doc); err != nil {
        return nil, &Error{Code: ParseError, Message: fmt.Sprintf("parse %s: %v", path, err), Location: path, Cause: err}
    }
    if len(doc.Content) == 0 {
        return nil, &Error{Code: ParseError, Message: fmt.Sprintf("parse %s: empty document", path), Location: path}
    }
    r.docs[path] = doc.Content[0]
    return doc.Content[0], nil
}

func walkPointer(root *yaml.Node, frag string) (*yaml.Node, error) {
    cur := root
    if frag == "" || frag == "/" {
        return cur, nil
    }
    for _, tok := range strings.Split(strings.TrimPrefix(frag, "/"), "/") {
        tok = strings.ReplaceAll(strings.ReplaceAll(tok, "~1", "/"), "~0", "~")
        switch cur.Kind {
        case yaml.MappingNode:
            var next *yaml.Node
            for i := 0; i+1 < len(cur.Content); i += 2 {
                if cur.Content[i].Value == tok {
                    next = cur.Content[i+1]
                    break
                }
            }
            if next == nil {
                return nil, fmt.Errorf("no member %q", tok)
            }
            cur = next
        case yaml.SequenceNode:
            idx, err := strconv.Atoi(tok)
            if err != nil || idx < 0 || idx >= len(cur.Content) {
                return nil, fmt.Errorf("bad index %q", tok)
            }
            cur = cur.Content[idx]
        default:
            return nil, fmt.Errorf("cannot descend into scalar at %q", tok)
        }
    }
    return cur, nil
}

func cloneNode(n *yaml.Node) *yaml.Node {
    if n == nil {
        return nil
    }
    c := *n
    if n.Content != nil {
        c.Content = make([]*yaml.Node, len(n.Content))
        for i, ch := range n.Content {
            c.Content[i] = cloneNode(ch)
        }
    }
    return &c
}
