package reactive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

// FromPlain converts decoded data (map[string]any, []any and scalars) into
// Objects and Arrays. Map keys are added in sorted order since Go maps carry
// no order of their own.
func FromPlain(v any) any {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		o := NewObject()
		for _, k := range keys {
			o.Set(k, FromPlain(x[k]))
		}
		return o
	case []any:
		a := NewArray()
		for _, item := range x {
			a.items = append(a.items, FromPlain(item))
		}
		return a
	default:
		return v
	}
}

// ToPlain converts Objects and Arrays back into maps and slices. A value
// reached again through a cycle becomes nil.
func ToPlain(v any) any {
	return toPlain(v, map[container]bool{})
}

func toPlain(v any, onPath map[container]bool) any {
	c, ok := v.(container)
	if !ok {
		return v
	}
	if onPath[c] {
		return nil
	}
	onPath[c] = true
	defer delete(onPath, c)

	switch x := c.(type) {
	case *Object:
		m := make(map[string]any, x.Len())
		x.Range(func(k string, v any) bool {
			m[k] = toPlain(v, onPath)
			return true
		})
		return m
	case *Array:
		out := make([]any, 0, x.Len())
		for _, item := range x.items {
			out = append(out, toPlain(item, onPath))
		}
		return out
	}
	return nil
}

// UnmarshalYAML decodes a mapping node, keeping the document's key order.
func (o *Object) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("reactor: line %d: expected a mapping", n.Line)
	}
	if o.props == nil {
		o.props = make(map[string]*Property, len(n.Content)/2)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		var key string
		if err := n.Content[i].Decode(&key); err != nil {
			return err
		}
		v, err := fromNode(n.Content[i+1])
		if err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		o.Set(key, v)
	}
	return nil
}

// UnmarshalYAML decodes a sequence node.
func (a *Array) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		n = n.Content[0]
	}
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("reactor: line %d: expected a sequence", n.Line)
	}
	for i, item := range n.Content {
		v, err := fromNode(item)
		if err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
		a.items = append(a.items, v)
	}
	return nil
}

// FromYAML converts a decoded YAML node into a value: mappings become
// Objects in document order, sequences become Arrays and scalars decode as
// yaml.v3 would into an any.
func FromYAML(n *yaml.Node) (any, error) {
	return fromNode(n)
}

func fromNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromNode(n.Content[0])
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, nil
		}
		return fromNode(n.Alias)
	case yaml.MappingNode:
		o := NewObject()
		return o, o.UnmarshalYAML(n)
	case yaml.SequenceNode:
		a := NewArray()
		return a, a.UnmarshalYAML(n)
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// MarshalYAML encodes o as a mapping in key order.
func (o *Object) MarshalYAML() (any, error) {
	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range o.keys {
		vn := &yaml.Node{}
		if err := vn.Encode(o.Get(k)); err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, vn)
	}
	return n, nil
}

func (a *Array) MarshalYAML() (any, error) {
	return a.items, nil
}

// MarshalJSON encodes o as an object in key order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(o.Get(k))
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (a *Array) MarshalJSON() ([]byte, error) {
	if a.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a.items)
}
