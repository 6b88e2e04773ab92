// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package formurl is the application/x-www-form-urlencoded format
// backend for serde, the shape AWS query-protocol services expect for
// request bodies: a flat "Key.N=value&Key2=value2" encoding built with
// the standard library's url.Values the way the teacher's agent config
// leans on encoding packages from the standard library rather than a
// hand-rolled query string builder.
package formurl

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/nishisan-dev/go-protocol-core/sdkerrors"
	"github.com/nishisan-dev/go-protocol-core/serde"
)

// FormUrlSerialName overrides the wire key for a field.
type FormUrlSerialName struct{ Name string }

// FormUrlFlattened marks a list/map field as flattened (no ".member"/
// ".entry" indirection between the parent key and the index).
type FormUrlFlattened struct{}

// FormUrlCollectionName overrides a list field's per-entry key component
// (default "member").
type FormUrlCollectionName struct{ Name string }

// FormUrlMapName overrides a map field's entry/key/value key components.
type FormUrlMapName struct{ Entry, Key, Value string }

// QueryLiteral attaches a fixed literal value (e.g. an Action/Version
// parameter) that is always emitted regardless of the struct's field value.
type QueryLiteral struct{ Value string }

func (FormUrlSerialName) traitMarker()     {}
func (FormUrlFlattened) traitMarker()      {}
func (FormUrlCollectionName) traitMarker() {}
func (FormUrlMapName) traitMarker()        {}
func (QueryLiteral) traitMarker()          {}

func findTrait[T serde.Trait](d serde.SdkFieldDescriptor) (T, bool) {
	var zero T
	for _, t := range d.Traits {
		if v, ok := t.(T); ok {
			return v, true
		}
	}
	return zero, false
}

func wireName(d serde.SdkFieldDescriptor) string {
	if n, ok := findTrait[FormUrlSerialName](d); ok {
		return n.Name
	}
	return d.Name
}

// Serializer writes a single flat struct into url.Values keyed by
// dotted/indexed paths, per the AWS query-protocol convention.
type Serializer struct {
	values url.Values
}

// New constructs an empty Serializer.
func New() *Serializer {
	return &Serializer{values: url.Values{}}
}

func (s *Serializer) Bytes() ([]byte, error) {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		for j, v := range s.values[k] {
			if j > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(k))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(v))
		}
	}
	return []byte(sb.String()), nil
}

func (s *Serializer) BeginStruct(descriptor serde.SdkObjectDescriptor) (serde.StructSerializer, error) {
	for _, f := range descriptor.Fields {
		if lit, ok := findTrait[QueryLiteral](f); ok {
			s.values.Set(wireName(f), lit.Value)
		}
	}
	return &structWriter{values: s.values, prefix: ""}, nil
}

func (s *Serializer) BeginList(descriptor serde.SdkFieldDescriptor) (serde.ListSerializer, error) {
	return &listWriter{values: s.values, prefix: wireName(descriptor), descriptor: descriptor, index: 0}, nil
}

func (s *Serializer) BeginMap(descriptor serde.SdkFieldDescriptor) (serde.MapSerializer, error) {
	return &mapWriter{values: s.values, prefix: wireName(descriptor), descriptor: descriptor, index: 0}, nil
}

type structWriter struct {
	values url.Values
	prefix string
}

func (w *structWriter) key(name string) string {
	if w.prefix == "" {
		return name
	}
	return w.prefix + "." + name
}

func (w *structWriter) Field(descriptor serde.SdkFieldDescriptor, value any) error {
	rendered, err := renderScalar(descriptor.Kind, value)
	if err != nil {
		return err
	}
	w.values.Set(w.key(wireName(descriptor)), rendered)
	return nil
}

func (w *structWriter) EndStruct() error { return nil }

type listWriter struct {
	values     url.Values
	prefix     string
	descriptor serde.SdkFieldDescriptor
	index      int
}

func (w *listWriter) Entry(value any) error {
	w.index++
	entryName := "member"
	if n, ok := findTrait[FormUrlCollectionName](w.descriptor); ok {
		entryName = n.Name
	}
	key := fmt.Sprintf("%s.%d", w.prefix, w.index)
	if _, flattened := findTrait[FormUrlFlattened](w.descriptor); !flattened {
		key = fmt.Sprintf("%s.%s.%d", w.prefix, entryName, w.index)
	}
	w.values.Set(key, fmt.Sprintf("%v", value))
	return nil
}

func (w *listWriter) EndList() error { return nil }

type mapWriter struct {
	values     url.Values
	prefix     string
	descriptor serde.SdkFieldDescriptor
	index      int
}

func (w *mapWriter) Entry(key string, value any) error {
	w.index++
	entry, keyName, valueName := "entry", "key", "value"
	if n, ok := findTrait[FormUrlMapName](w.descriptor); ok {
		entry, keyName, valueName = n.Entry, n.Key, n.Value
	}
	base := fmt.Sprintf("%s.%s.%d", w.prefix, entry, w.index)
	if _, flattened := findTrait[FormUrlFlattened](w.descriptor); flattened {
		base = fmt.Sprintf("%s.%d", w.prefix, w.index)
	}
	w.values.Set(base+"."+keyName, key)
	w.values.Set(base+"."+valueName, fmt.Sprintf("%v", value))
	return nil
}

func (w *mapWriter) EndMap() error { return nil }

func renderScalar(kind serde.SerialKind, value any) (string, error) {
	switch kind {
	case serde.KindBoolean:
		if b, ok := value.(bool); ok {
			return strconv.FormatBool(b), nil
		}
	case serde.KindInteger, serde.KindLong, serde.KindShort, serde.KindByte, serde.KindIntEnum,
		serde.KindFloat, serde.KindDouble, serde.KindString, serde.KindEnum, serde.KindBigNumber,
		serde.KindTimestamp, serde.KindChar:
		return fmt.Sprintf("%v", value), nil
	}
	return "", sdkerrors.NewSerializationException(fmt.Sprintf("unsupported SerialKind %v for form-url format", kind), nil)
}

// Deserializer reads a flat form-urlencoded body back into struct
// fields by dotted/indexed key. Unlike the streaming XML deserializer,
// url.Values is materialized up front since form-url bodies are small
// and have no meaningful streaming shape.
type Deserializer struct {
	values url.Values
}

// Parse decodes a raw "a=b&c=d" body into a Deserializer.
func Parse(body string) (*Deserializer, error) {
	values, err := url.ParseQuery(body)
	if err != nil {
		return nil, sdkerrors.NewDeserializationException("malformed form-urlencoded body", err)
	}
	return &Deserializer{values: values}, nil
}

func (d *Deserializer) DeserializeStruct(descriptor serde.SdkObjectDescriptor) (serde.StructIterator, error) {
	return &structIterator{values: d.values, descriptor: descriptor, pos: 0}, nil
}

func (d *Deserializer) DeserializeList(descriptor serde.SdkFieldDescriptor) (serde.ListIterator, error) {
	return nil, sdkerrors.NewDeserializationException("form-url list deserialization requires a struct scope for key prefixing", nil)
}

func (d *Deserializer) DeserializeMap(descriptor serde.SdkFieldDescriptor) (serde.MapIterator, error) {
	return nil, sdkerrors.NewDeserializationException("form-url map deserialization requires a struct scope for key prefixing", nil)
}

type structIterator struct {
	values     url.Values
	descriptor serde.SdkObjectDescriptor
	pos        int
}

func (it *structIterator) FindNextFieldIndex(descriptor serde.SdkObjectDescriptor) (int, bool) {
	if it.pos >= len(descriptor.Fields) {
		return serde.UnknownFieldIndex, false
	}
	f := descriptor.Fields[it.pos]
	it.pos++
	if _, present := it.values[wireName(f)]; !present {
		return serde.UnknownFieldIndex, true
	}
	return f.Index, true
}

func (it *structIterator) DeserializeField(descriptor serde.SdkFieldDescriptor, out any) error {
	raw := it.values.Get(wireName(descriptor))
	return assignScalar(descriptor.Kind, raw, out)
}

func (it *structIterator) SkipValue() error { return nil }
func (it *structIterator) EndStruct() error { return nil }

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
