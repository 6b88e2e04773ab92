// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package serde defines the descriptor-driven serialization model shared
// by the format-specific backends in serde/xmlformat, serde/formurl, and
// serde/yamlformat, the way internal/config/agent.go drives YAML
// (de)serialization off struct tags but generalized to a caller-chosen
// descriptor set rather than one fixed format.
package serde

// SerialKind enumerates the value kinds a descriptor can describe.
type SerialKind int

const (
	KindBoolean SerialKind = iota
	KindByte
	KindShort
	KindInteger
	KindLong
	KindFloat
	KindDouble
	KindChar
	KindString
	KindBlob
	KindBigNumber
	KindTimestamp
	KindList
	KindMap
	KindStruct
	KindEnum
	KindIntEnum
	KindDocument
	KindUnit
)

// Trait is an open-ended, format-specific tag attached to a field
// descriptor. Each format backend defines its own concrete trait
// values and ignores traits it doesn't recognize.
type Trait interface{}

// SdkFieldDescriptor names one field's kind, wire index, and the traits
// that steer format-specific placement (attribute vs. element,
// flattened vs. wrapped, namespace, ...).
type SdkFieldDescriptor struct {
	Kind   SerialKind
	Index  int
	Name   string
	Traits []Trait
}

// TraitOfType returns the first trait attached to this descriptor for
// which match reports true, or ok=false if none does.
func (d SdkFieldDescriptor) TraitOfType(match func(Trait) bool) (Trait, bool) {
	for _, t := range d.Traits {
		if match(t) {
			return t, true
		}
	}
	return nil, false
}

// SdkObjectDescriptor is a struct-level descriptor naming its child
// fields in declaration order.
type SdkObjectDescriptor struct {
	Fields []SdkFieldDescriptor
}

// FieldByIndex looks up a field descriptor by its wire index.
func (o SdkObjectDescriptor) FieldByIndex(index int) (SdkFieldDescriptor, bool) {
	for _, f := range o.Fields {
		if f.Index == index {
			return f, true
		}
	}
	return SdkFieldDescriptor{}, false
}

// UnknownFieldIndex is returned by a field iterator when the current
// field does not match any descriptor in the enclosing object.
const UnknownFieldIndex = -1

// StructSerializer is the scoped writer returned by Serializer.BeginStruct.
// It must be terminated with EndStruct.
type StructSerializer interface {
	Field(descriptor SdkFieldDescriptor, value any) error
	EndStruct() error
}

// ListSerializer is the scoped writer returned by Serializer.BeginList.
type ListSerializer interface {
	Entry(value any) error
	EndList() error
}

// MapSerializer is the scoped writer returned by Serializer.BeginMap.
type MapSerializer interface {
	Entry(key string, value any) error
	EndMap() error
}

// Serializer writes a value tree guided by descriptors.
type Serializer interface {
	BeginStruct(descriptor SdkObjectDescriptor) (StructSerializer, error)
	BeginList(descriptor SdkFieldDescriptor) (ListSerializer, error)
	BeginMap(descriptor SdkFieldDescriptor) (MapSerializer, error)
	// Bytes returns the serialized output once the root scope has ended.
	Bytes() ([]byte, error)
}

// StructIterator yields the next known field index (or UnknownFieldIndex,
// or ok=false at end-of-container) while deserializing a struct.
type StructIterator interface {
	FindNextFieldIndex(descriptor SdkObjectDescriptor) (int, bool)
	DeserializeField(descriptor SdkFieldDescriptor, out any) error
	SkipValue() error
	EndStruct() error
}

// ListIterator yields successive list entries until exhausted.
type ListIterator interface {
	HasNext() bool
	DeserializeEntry(descriptor SdkFieldDescriptor, out any) error
	EndList() error
}

// MapIterator yields successive map entries until exhausted.
type MapIterator interface {
	NextKey() (string, bool)
	DeserializeValue(descriptor SdkFieldDescriptor, out any) error
	EndMap() error
}

// Deserializer reads a value tree guided by descriptors.
type Deserializer interface {
	DeserializeStruct(descriptor SdkObjectDescriptor) (StructIterator, error)
	DeserializeList(descriptor SdkFieldDescriptor) (ListIterator, error)
	DeserializeMap(descriptor SdkFieldDescriptor) (MapIterator, error)
}
