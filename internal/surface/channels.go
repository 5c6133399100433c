package surface

import (
	"fmt"
	"strings"

	"github.com/mark3labs/rsgen/internal/resource"
)

// Event-channel operations, one pair per channel.
const (
	Subscribe = "subscribe"
	Publish   = "publish"
)

type ChannelParameter struct {
	Name        string
	Description string
	Schema      *resource.Schema
}

type ChannelOperation struct {
	ID          string
	Description string
	Message     Message
	// Query is the websocket binding query object, nil when the
	// collection declares no query parameters.
	Query  *resource.Schema
	Method resource.Method
	Tags   []string
}

type Message struct {
	Name        string
	ContentType string
	Payload     *resource.Schema
}

type Channel struct {
	Path        string
	Level       Level
	Resource    string
	Attr        string
	Description string
	Parameters  []ChannelParameter
	Subscribe   ChannelOperation
	Publish     ChannelOperation
}

// ChannelSet is the event surface of one definition. Components are keyed
// by raw collection name.
type ChannelSet struct {
	Kind       string
	Channels   []Channel
	Components *Registry
	Servers    map[string]any
}

// BuildChannels derives event channels gated by the definition's
// asyncapi.channels flags.
func BuildChannels(def *resource.Definition) (*ChannelSet, error) {
	if def == nil {
		return nil, fmt.Errorf("surface: nil resource definition")
	}
	set := &ChannelSet{Kind: def.Kind, Components: NewRegistry()}
	if def.AsyncAPI != nil {
		set.Servers = def.AsyncAPI.Servers
	}
	coll := def.Schema
	if coll == nil || coll.Items == nil {
		return nil, &MissingKeyError{Resource: def.Kind, Collection: def.Kind, Field: "an array schema with items", Pointer: "schema"}
	}
	comp := coll.Items.Clone()
	comp.Descriptions = nil
	set.Components.Register(def.Kind, comp)

	cb := &channelBuilder{def: def, set: set}
	if err := cb.collection(def.Kind, coll, BasePath(def), nil, def.Descriptions, "schema"); err != nil {
		return nil, err
	}
	return set, nil
}

type channelBuilder struct {
	def *resource.Definition
	set *ChannelSet
}

func (cb *channelBuilder) flags() resource.Channels {
	if cb.def.AsyncAPI == nil {
		return resource.Channels{}
	}
	return cb.def.AsyncAPI.Channels
}

func (cb *channelBuilder) collection(name string, coll *resource.Schema, base string, keys []resource.Key, descs resource.Descriptions, ptr string) error {
	if coll.Key == nil || coll.Key.Name == "" {
		return &MissingKeyError{Resource: cb.def.Kind, Collection: name, Field: "key", Pointer: ptr}
	}
	keys = appendKey(keys, *coll.Key)
	flags := cb.flags()

	if flags.Resources {
		cb.add(cb.channel(name, coll, base, keys, descs.Resource, LevelResource, ""))
	}
	if !flags.Instances && !flags.InstanceAttrs {
		return nil
	}
	instPath := base + "/{" + coll.Key.Name + "}"
	if flags.Instances {
		cb.add(cb.channel(name, coll, instPath, keys, descs.Instance, LevelInstance, ""))
	}
	if !flags.InstanceAttrs {
		return nil
	}
	for _, p := range coll.Items.Properties {
		if !p.Schema.Exposed() {
			continue
		}
		path := instPath + "/" + p.Name
		if p.Schema != nil && p.Schema.Schema != nil && p.Schema.Schema.Items != nil {
			items := p.Schema.Schema.Items.Clone()
			items.Descriptions = nil
			cb.set.Components.Register(p.Name, items)
			childDescs := descs
			if p.Schema.Schema.Descriptions != nil {
				childDescs = *p.Schema.Schema.Descriptions
			}
			if err := cb.collection(p.Name, p.Schema.Schema, path, keys, childDescs, ptr+"/items/properties/"+p.Name+"/schema"); err != nil {
				return err
			}
			continue
		}
		cb.add(cb.channel(name, coll, path, keys, descs.InstanceAttrs, LevelInstanceAttr, p.Name))
	}
	return nil
}

func (cb *channelBuilder) add(ch Channel) { cb.set.Channels = append(cb.set.Channels, ch) }

func (cb *channelBuilder) channel(name string, coll *resource.Schema, path string, keys []resource.Key, descs map[resource.Method]string, level Level, attr string) Channel {
	ch := Channel{
		Path:        path,
		Level:       level,
		Resource:    name,
		Attr:        attr,
		Description: "Channel for " + path,
	}
	for _, k := range keys {
		if !strings.Contains(path, "{"+k.Name+"}") {
			continue
		}
		schema := k.Schema
		if schema == nil {
			schema = &resource.Schema{Type: "string"}
		}
		ch.Parameters = append(ch.Parameters, ChannelParameter{Name: k.Name, Description: k.Description, Schema: schema})
	}

	ref := ComponentPrefix + name
	if attr != "" {
		ref = fmt.Sprintf("%s%s/properties/%s", ComponentPrefix, name, attr)
	}
	payload := &resource.Schema{Ref: ref}

	sub := payload
	if level == LevelResource {
		sub = &resource.Schema{Type: "array", Items: payload}
	}
	ch.Subscribe = ChannelOperation{
		ID:          Opid(path, Subscribe),
		Description: orDefault(descs[resource.GET], "Subscribe from "+path),
		Message:     Message{Name: name, ContentType: ContentType, Payload: sub},
		Query:       cb.query(coll, resource.GET),
		Method:      resource.GET,
		Tags:        []string{name},
	}
	ch.Publish = ChannelOperation{
		ID:          Opid(path, Publish),
		Description: orDefault(descs[resource.POST], "Publish to "+path),
		Message:     Message{Name: name, ContentType: ContentType, Payload: payload},
		Query:       cb.query(coll, resource.POST),
		Method:      resource.POST,
		Tags:        []string{name},
	}
	return ch
}

// query builds the websocket binding query object from the collection's
// query parameters plus the definition defaults.
func (cb *channelBuilder) query(coll *resource.Schema, m resource.Method) *resource.Schema {
	if len(coll.QueryParams) == 0 {
		return nil
	}
	q := &resource.Schema{Type: "object"}
	all := append(append([]resource.QueryParam(nil), coll.QueryParams...), cb.def.DefaultQueryParams...)
	for _, p := range all {
		if !p.AppliesTo(m) || q.Properties.Get(p.Name) != nil {
			continue
		}
		prop := p.Schema.Clone()
		if prop == nil {
			prop = &resource.Schema{Type: "string"}
		}
		prop.Description = p.Description
		q.Properties = append(q.Properties, resource.Property{Name: p.Name, Schema: prop})
		if p.Required {
			q.Required = append(q.Required, p.Name)
		}
	}
	return q
}

func orDefault(s, def string) string {
	if s != "" {
		return s
	}
	return def
}
