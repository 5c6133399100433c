// Package asyncapiemitter renders event channels as an AsyncAPI 2.5 document.
package asyncapiemitter

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mark3labs/rsgen/internal/emitter"
	"github.com/mark3labs/rsgen/internal/resource"
	"github.com/mark3labs/rsgen/internal/surface"
)

const Version = "2.5.0"

// Options controls where the document is written.
type Options struct {
	emitter.Options
}

// Emit builds the channels of every definition and writes one document.
// A definition that fails to build fails the document.
func Emit(ctx context.Context, defs []*resource.Definition, meta emitter.Metadata, opts Options) (*emitter.Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.AsModules {
		return nil, fmt.Errorf("asyncapiemitter: per-resource output is not supported")
	}
	sets, err := BuildAll(defs)
	if err != nil {
		return nil, err
	}
	out, err := Render(sets, meta)
	if err != nil {
		return nil, err
	}
	return emitter.Write(ctx, out, nil, opts.Options)
}

// BuildAll derives channels per definition. Failures are collected into
// a *surface.BatchError.
func BuildAll(defs []*resource.Definition) ([]*surface.ChannelSet, error) {
	var sets []*surface.ChannelSet
	var batch surface.BatchError
	for i, d := range defs {
		set, err := surface.BuildChannels(d)
		if err == nil {
			err = checkRefs(set)
		}
		if err != nil {
			var kind string
			if d != nil {
				kind = d.Kind
			}
			batch.Failures = append(batch.Failures, surface.ResourceFailure{Index: i, Kind: kind, Err: err})
			continue
		}
		sets = append(sets, set)
	}
	if len(batch.Failures) > 0 {
		return sets, &batch
	}
	return sets, nil
}

// checkRefs verifies that every payload names a registered component.
func checkRefs(set *surface.ChannelSet) error {
	for _, ch := range set.Channels {
		for _, op := range []surface.ChannelOperation{ch.Subscribe, ch.Publish} {
			p := op.Message.Payload
			if p.Items != nil {
				p = p.Items
			}
			name, ok := strings.CutPrefix(p.Ref, surface.ComponentPrefix)
			if !ok {
				continue
			}
			name, _, _ = strings.Cut(name, "/")
			if _, found := set.Components.Lookup(name); !found {
				return &surface.ComponentReferenceError{Resource: set.Kind, Operation: op.ID, Ref: p.Ref, Reason: "no channel component " + name}
			}
		}
	}
	return nil
}

// Render encodes the channel sets as one YAML document.
func Render(sets []*surface.ChannelSet, meta emitter.Metadata) ([]byte, error) {
	meta = meta.WithDefaults()
	doc := mapping()
	put(doc, "asyncapi", str(Version))

	info := mapping()
	put(info, "title", str(meta.Title))
	put(info, "version", str(meta.Version))
	put(info, "description", str(meta.Description))
	put(doc, "info", info)

	servers := map[string]any{}
	for _, set := range sets {
		maps.Copy(servers, set.Servers)
	}
	if len(servers) > 0 {
		n, err := encode(servers)
		if err != nil {
			return nil, fmt.Errorf("asyncapiemitter: servers: %w", err)
		}
		put(doc, "servers", n)
	}

	channels := mapping()
	schemas := mapping()
	for _, set := range sets {
		for _, name := range set.Components.Names() {
			s, _ := set.Components.Lookup(name)
			n, err := schemaNode(s)
			if err != nil {
				return nil, fmt.Errorf("asyncapiemitter: component %s: %w", name, err)
			}
			put(schemas, name, n)
		}
		for _, ch := range set.Channels {
			n, err := channelNode(ch)
			if err != nil {
				return nil, fmt.Errorf("asyncapiemitter: channel %s: %w", ch.Path, err)
			}
			put(channels, ch.Path, n)
		}
	}
	put(doc, "channels", channels)
	components := mapping()
	put(components, "schemas", schemas)
	put(doc, "components", components)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("asyncapiemitter: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func channelNode(ch surface.Channel) (*yaml.Node, error) {
	n := mapping()
	put(n, "description", str(ch.Description))
	params := mapping()
	for _, p := range ch.Parameters {
		pn := mapping()
		put(pn, "description", str(p.Description))
		s, err := schemaNode(p.Schema)
		if err != nil {
			return nil, err
		}
		put(pn, "schema", s)
		put(params, p.Name, pn)
	}
	put(n, "parameters", params)
	for _, op := range []struct {
		key string
		op  surface.ChannelOperation
	}{{surface.Subscribe, ch.Subscribe}, {surface.Publish, ch.Publish}} {
		on, err := operationNode(op.op)
		if err != nil {
			return nil, err
		}
		put(n, op.key, on)
	}
	return n, nil
}

func operationNode(op surface.ChannelOperation) (*yaml.Node, error) {
	n := mapping()
	put(n, "operationId", str(op.ID))
	put(n, "description", str(op.Description))

	msg := mapping()
	put(msg, "name", str(op.Message.Name))
	put(msg, "contentType", str(op.Message.ContentType))
	payload, err := schemaNode(op.Message.Payload)
	if err != nil {
		return nil, err
	}
	put(msg, "payload", payload)
	put(n, "message", msg)

	ws := mapping()
	put(ws, "method", str(strings.ToUpper(string(op.Method))))
	if op.Query != nil {
		q, err := schemaNode(op.Query)
		if err != nil {
			return nil, err
		}
		put(ws, "query", q)
	}
	bindings := mapping()
	put(bindings, "ws", ws)
	put(n, "bindings", bindings)

	tags := &yaml.Node{Kind: yaml.SequenceNode}
	for _, t := range op.Tags {
		tn := mapping()
		put(tn, "name", str(t))
		tags.Content = append(tags.Content, tn)
	}
	put(n, "tags", tags)
	return n, nil
}

// schemaNode encodes a schema in JSON Schema key order. Component
// references stay symbolic, other references were resolved on load.
func schemaNode(s *resource.Schema) (*yaml.Node, error) {
	n := mapping()
	if s == nil {
		return n, nil
	}
	if strings.HasPrefix(s.Ref, surface.ComponentPrefix) {
		put(n, "$ref", str(s.Ref))
		return n, nil
	}
	if s.Type == "" && s.Schema != nil {
		return schemaNode(s.Schema)
	}
	if s.Type != "" {
		put(n, "type", str(s.Type))
	}
	if s.Format != "" {
		put(n, "format", str(s.Format))
	}
	if s.Description != "" {
		put(n, "description", str(s.Description))
	}
	for _, kv := range []struct {
		key string
		v   any
	}{{"enum", s.Enum}, {"default", s.Default}, {"example", s.Example}} {
		if kv.v == nil || (kv.key == "enum" && len(s.Enum) == 0) {
			continue
		}
		v, err := encode(kv.v)
		if err != nil {
			return nil, err
		}
		put(n, kv.key, v)
	}
	if s.Nullable {
		put(n, "nullable", boolean(true))
	}
	if s.ReadOnly {
		put(n, "readOnly", boolean(true))
	}
	if s.Items != nil {
		items, err := schemaNode(s.Items)
		if err != nil {
			return nil, err
		}
		put(n, "items", items)
	}
	if len(s.Properties) > 0 {
		props := mapping()
		for _, p := range s.Properties {
			pn, err := schemaNode(p.Schema)
			if err != nil {
				return nil, err
			}
			put(props, p.Name, pn)
		}
		put(n, "properties", props)
	}
	if len(s.Required) > 0 {
		req := &yaml.Node{Kind: yaml.SequenceNode}
		for _, r := range s.Required {
			req.Content = append(req.Content, str(r))
		}
		put(n, "required", req)
	}
	if len(s.AllOf) > 0 {
		all := &yaml.Node{Kind: yaml.SequenceNode}
		for _, part := range s.AllOf {
			pn, err := schemaNode(part)
			if err != nil {
				return nil, err
			}
			all.Content = append(all.Content, pn)
		}
		put(n, "allOf", all)
	}
	return n, nil
}

func mapping() *yaml.Node { return &yaml.Node{Kind: yaml.MappingNode} }

func put(m *yaml.Node, key string, v *yaml.Node) { m.Content = append(m.Content, str(key), v) }

func str(s string) *yaml.Node { return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s} }

func boolean(b bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprint(b)}
}

func encode(v any) (*yaml.Node, error) {
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	return &n, nil
}
