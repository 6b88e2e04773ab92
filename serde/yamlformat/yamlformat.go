// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package yamlformat is a serde format backend over gopkg.in/yaml.v3,
// the struct-tag-driven (de)serialization library the teacher's
// internal/config/agent.go already depends on for its own YAML config
// files. It builds a yaml.Node tree directly rather than unmarshaling
// into a fixed Go struct, so the same descriptor set used for
// XML/form-url can drive a YAML document too.
package yamlformat

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/nishisan-dev/go-protocol-core/sdkerrors"
	"github.com/nishisan-dev/go-protocol-core/serde"
)

// Serializer builds a yaml.Node document from struct/list/map writes.
type Serializer struct {
	root *yaml.Node
}

// New constructs an empty Serializer.
func New() *Serializer {
	return &Serializer{}
}

func (s *Serializer) Bytes() ([]byte, error) {
	if s.root == nil {
		return nil, sdkerrors.NewSerializationException("no document was written", nil)
	}
	out, err := yaml.Marshal(s.root)
	if err != nil {
		return nil, sdkerrors.NewSerializationException("failed to marshal yaml document", err)
	}
	return out, nil
}

func (s *Serializer) BeginStruct(descriptor serde.SdkObjectDescriptor) (serde.StructSerializer, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	s.root = node
	return &structWriter{node: node}, nil
}

func (s *Serializer) BeginList(descriptor serde.SdkFieldDescriptor) (serde.ListSerializer, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	s.root = node
	return &listWriter{node: node}, nil
}

func (s *Serializer) BeginMap(descriptor serde.SdkFieldDescriptor) (serde.MapSerializer, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	s.root = node
	return &mapWriter{node: node}, nil
}

type structWriter struct {
	node *yaml.Node
}

func (w *structWriter) Field(descriptor serde.SdkFieldDescriptor, value any) error {
	scalar, err := scalarNode(descriptor.Kind, value)
	if err != nil {
		return err
	}
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: descriptor.Name}
	w.node.Content = append(w.node.Content, keyNode, scalar)
	return nil
}

func (w *structWriter) EndStruct() error { return nil }

type listWriter struct {
	node *yaml.Node
}

func (w *listWriter) Entry(value any) error {
	w.node.Content = append(w.node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: fmt.Sprintf("%v", value)})
	return nil
}

func (w *listWriter) EndList() error { return nil }

type mapWriter struct {
	node *yaml.Node
}

func (w *mapWriter) Entry(key string, value any) error {
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	valueNode := &yaml.Node{Kind: yaml.ScalarNode, Value: fmt.Sprintf("%v", value)}
	w.node.Content = append(w.node.Content, keyNode, valueNode)
	return nil
}

func (w *mapWriter) EndMap() error { return nil }

func scalarNode(kind serde.SerialKind, value any) (*yaml.Node, error) {
	switch kind {
	case serde.KindBoolean:
		if b, ok := value.(bool); ok {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(b)}, nil
		}
	case serde.KindInteger, serde.KindLong, serde.KindShort, serde.KindByte, serde.KindIntEnum:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprintf("%d", value)}, nil
	case serde.KindFloat, serde.KindDouble:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: fmt.Sprintf("%v", value)}, nil
	case serde.KindString, serde.KindEnum, serde.KindBigNumber, serde.KindTimestamp, serde.KindChar:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: fmt.Sprintf("%v", value)}, nil
	case serde.KindDocument:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: fmt.Sprintf("%v", value)}, nil
	}
	return nil, sdkerrors.NewSerializationException(fmt.Sprintf("unsupported SerialKind %v for yaml format", kind), nil)
}

// Deserializer reads struct/list/map values back out of a parsed
// yaml.Node document.
type Deserializer struct {
	root *yaml.Node
}

// Parse decodes a YAML document into a Deserializer.
func Parse(document []byte) (*Deserializer, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(document, &root); err != nil {
		return nil, sdkerrors.NewDeserializationException("malformed yaml document", err)
	}
	if len(root.Content) == 0 {
		return nil, sdkerrors.NewDeserializationException("empty yaml document", nil)
	}
	return &Deserializer{root: root.Content[0]}, nil
}

func (d *Deserializer) DeserializeStruct(descriptor serde.SdkObjectDescriptor) (serde.StructIterator, error) {
	if d.root.Kind != yaml.MappingNode {
		return nil, sdkerrors.NewDeserializationException("expected a yaml mapping", nil)
	}
	return &structIterator{node: d.root, pos: 0}, nil
}

func (d *Deserializer) DeserializeList(descriptor serde.SdkFieldDescriptor) (serde.ListIterator, error) {
	if d.root.Kind != yaml.SequenceNode {
		return nil, sdkerrors.NewDeserializationException("expected a yaml sequence", nil)
	}
	return &listIterator{node: d.root, pos: 0}, nil
}

func (d *Deserializer) DeserializeMap(descriptor serde.SdkFieldDescriptor) (serde.MapIterator, error) {
	if d.root.Kind != yaml.MappingNode {
		return nil, sdkerrors.NewDeserializationException("expected a yaml mapping", nil)
	}
	return &mapIterator{node: d.root, pos: 0}, nil
}

type structIterator struct {
	node *yaml.Node
	pos  int // index into node.Content, advancing by 2 (key, value) per step
}

func (it *structIterator) FindNextFieldIndex(descriptor serde.SdkObjectDescriptor) (int, bool) {
	if it.pos >= len(it.node.Content) {
		return serde.UnknownFieldIndex, false
	}
	keyNode := it.node.Content[it.pos]
	for _, f := range descriptor.Fields {
		if f.Name == keyNode.Value {
			return f.Index, true
		}
	}
	return serde.UnknownFieldIndex, true
}

func (it *structIterator) DeserializeField(descriptor serde.SdkFieldDescriptor, out any) error {
	valueNode := it.node.Content[it.pos+1]
	it.pos += 2
	return assignScalar(descriptor.Kind, valueNode.Value, out)
}

func (it *structIterator) SkipValue() error {
	it.pos += 2
	return nil
}

func (it *structIterator) EndStruct() error { return nil }

type listIterator struct {
	node *yaml.Node
	pos  int
}

func (it *listIterator) HasNext() bool { return it.pos < len(it.node.Content) }

func (it *listIterator) DeserializeEntry(descriptor serde.SdkFieldDescriptor, out any) error {
	if !it.HasNext() {
		return sdkerrors.NewDeserializationException("no more list entries", nil)
	}
	v := it.node.Content[it.pos]
	it.pos++
	return assignScalar(descriptor.Kind, v.Value, out)
}

func (it *listIterator) EndList() error { return nil }

type mapIterator struct {
	node *yaml.Node
	pos  int
}

func (it *mapIterator) NextKey() (string, bool) {
	if it.pos >= len(it.node.Content) {
		return "", false
	}
	key := it.node.Content[it.pos].Value
	return key, true
}

func (it *mapIterator) DeserializeValue(descriptor serde.SdkFieldDescriptor, out any) error {
	v := it.node.Content[it.pos+1]
	it.pos += 2
	return assignScalar(descriptor.Kind, v.Value, out)
}

func (it *mapIterator) EndMap() error { return nil }

func assignScalar(kind serde.SerialKind, text string, out any) error {
	switch p := out.(type) {
	case *string:
		*p = text
		return nil
	case *bool:
		v, err := strconv.ParseBool(text)
		if err != nil {
			return sdkerrors.NewDeserializationException(fmt.Sprintf("invalid boolean %q", text), err)
		}
		*p = v
		return nil
	case *int64:
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return sdkerrors.NewDeserializationException(fmt.Sprintf("invalid integer %q", text), err)
		}
		*p = v
		return nil
	case *int:
		v, err := strconv.Atoi(text)
		if err != nil {
			return sdkerrors.NewDeserializationException(fmt.Sprintf("invalid integer %q", text), err)
		}
		*p = v
		return nil
	case *float64:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return sdkerrors.NewDeserializationException(fmt.Sprintf("invalid float %q", text), err)
		}
		*p = v
		return nil
	}
	return sdkerrors.NewDeserializationException(fmt.Sprintf("unsupported output type for SerialKind %v", kind), nil)
}
