// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package xmlformat is the XML format backend for serde: a
// StructSerializer/StructIterator pair driven by serde.SdkFieldDescriptor
// traits, built directly on xmlstream so that reading an XML-shaped
// response never round-trips through a separate DOM layer.
package xmlformat

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nishisan-dev/go-protocol-core/sdkerrors"
	"github.com/nishisan-dev/go-protocol-core/serde"
	"github.com/nishisan-dev/go-protocol-core/xmlstream"
)

// XmlSerialName overrides the wire element/attribute name for a field.
type XmlSerialName struct{ Name string }

// XmlAttribute marks a field as an XML attribute rather than a child element.
type XmlAttribute struct{}

// XmlNamespace declares the namespace URI (and optional prefix) a field's
// element or attribute is written/read in.
type XmlNamespace struct {
	URI    string
	Prefix string
}

// XmlCollectionName overrides the per-entry element name of a list field.
type XmlCollectionName struct{ Name string }

// XmlMapName overrides the per-entry/key/value element names of a map field.
type XmlMapName struct{ Entry, Key, Value string }

// Flattened marks a list/map field as flattened: repeated directly under
// the parent rather than wrapped in a collection element.
type Flattened struct{}

func (XmlSerialName) traitMarker()     {}
func (XmlAttribute) traitMarker()      {}
func (XmlNamespace) traitMarker()      {}
func (XmlCollectionName) traitMarker() {}
func (XmlMapName) traitMarker()        {}
func (Flattened) traitMarker()         {}

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
	if n, ok := findTrait[XmlSerialName](d); ok {
		return n.Name
	}
	return d.Name
}

func isAttribute(d serde.SdkFieldDescriptor) bool {
	_, ok := findTrait[XmlAttribute](d)
	return ok
}

func isFlattened(d serde.SdkFieldDescriptor) bool {
	_, ok := findTrait[Flattened](d)
	return ok
}

// Serializer writes struct/list/map values as XML text into an internal
// buffer, reachable once the root scope has closed via Bytes.
type Serializer struct {
	rootName string
	buf      strings.Builder
}

// New constructs a Serializer whose root struct is written as an
// element named rootName.
func New(rootName string) *Serializer {
	return &Serializer{rootName: rootName}
}

func (s *Serializer) Bytes() ([]byte, error) {
	return []byte(s.buf.String()), nil
}

func (s *Serializer) BeginStruct(descriptor serde.SdkObjectDescriptor) (serde.StructSerializer, error) {
	s.buf.WriteString("<" + s.rootName + ">")
	return &structWriter{buf: &s.buf, closeTag: s.rootName}, nil
}

func (s *Serializer) BeginList(descriptor serde.SdkFieldDescriptor) (serde.ListSerializer, error) {
	name := wireName(descriptor)
	s.buf.WriteString("<" + name + ">")
	entryName := "member"
	if n, ok := findTrait[XmlCollectionName](descriptor); ok {
		entryName = n.Name
	}
	return &listWriter{buf: &s.buf, closeTag: name, entryName: entryName}, nil
}

func (s *Serializer) BeginMap(descriptor serde.SdkFieldDescriptor) (serde.MapSerializer, error) {
	name := wireName(descriptor)
	s.buf.WriteString("<" + name + ">")
	entry, key, value := "entry", "key", "value"
	if n, ok := findTrait[XmlMapName](descriptor); ok {
		entry, key, value = n.Entry, n.Key, n.Value
	}
	return &mapWriter{buf: &s.buf, closeTag: name, entryName: entry, keyName: key, valueName: value}, nil
}

type structWriter struct {
	buf      *strings.Builder
	closeTag string
}

func (w *structWriter) Field(descriptor serde.SdkFieldDescriptor, value any) error {
	name := wireName(descriptor)
	if isAttribute(descriptor) {
		return sdkerrors.NewSerializationException("top-level XML attributes are not supported outside a parent element", nil)
	}
	rendered, err := renderScalar(descriptor.Kind, value)
	if err != nil {
		return err
	}
	w.buf.WriteString("<" + name + ">" + escapeText(rendered) + "</" + name + ">")
	return nil
}

func (w *structWriter) EndStruct() error {
	w.buf.WriteString("</" + w.closeTag + ">")
	return nil
}

type listWriter struct {
	buf       *strings.Builder
	closeTag  string
	entryName string
}

func (w *listWriter) Entry(value any) error {
	rendered := fmt.Sprintf("%v", value)
	w.buf.WriteString("<" + w.entryName + ">" + escapeText(rendered) + "</" + w.entryName + ">")
	return nil
}

func (w *listWriter) EndList() error {
	w.buf.WriteString("</" + w.closeTag + ">")
	return nil
}

type mapWriter struct {
	buf                           *strings.Builder
	closeTag                      string
	entryName, keyName, valueName string
}

func (w *mapWriter) Entry(key string, value any) error {
	rendered := fmt.Sprintf("%v", value)
	w.buf.WriteString("<" + w.entryName + ">")
	w.buf.WriteString("<" + w.keyName + ">" + escapeText(key) + "</" + w.keyName + ">")
	w.buf.WriteString("<" + w.valueName + ">" + escapeText(rendered) + "</" + w.valueName + ">")
	w.buf.WriteString("</" + w.entryName + ">")
	return nil
}

func (w *mapWriter) EndMap() error {
	w.buf.WriteString("</" + w.closeTag + ">")
	return nil
}

func renderScalar(kind serde.SerialKind, value any) (string, error) {
	switch kind {
	case serde.KindBoolean:
		if b, ok := value.(bool); ok {
			return strconv.FormatBool(b), nil
		}
	case serde.KindInteger, serde.KindLong, serde.KindShort, serde.KindByte, serde.KindIntEnum:
		return fmt.Sprintf("%d", value), nil
	case serde.KindFloat, serde.KindDouble:
		return fmt.Sprintf("%v", value), nil
	case serde.KindString, serde.KindEnum, serde.KindBigNumber, serde.KindTimestamp, serde.KindChar:
		return fmt.Sprintf("%v", value), nil
	}
	return "", sdkerrors.NewSerializationException(fmt.Sprintf("unsupported SerialKind %v for xml format", kind), nil)
}

func escapeText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

// Deserializer reads struct/list/map values back out of an XML document
// using an xmlstream.Lexer as its token source.
type Deserializer struct {
	lexer *xmlstream.Lexer
}

// NewDeserializer constructs a Deserializer over the given XML document.
func NewDeserializer(document string) *Deserializer {
	return &Deserializer{lexer: xmlstream.New(document)}
}

func (d *Deserializer) DeserializeStruct(descriptor serde.SdkObjectDescriptor) (serde.StructIterator, error) {
	root, err := d.lexer.NextToken()
	if err != nil {
		return nil, err
	}
	if root.Kind != xmlstream.BeginElement {
		return nil, sdkerrors.NewDeserializationException("expected a struct start element", nil)
	}
	return &structIterator{lexer: d.lexer, depth: root.Depth, attrs: root.Attributes}, nil
}

func (d *Deserializer) DeserializeList(descriptor serde.SdkFieldDescriptor) (serde.ListIterator, error) {
	root, err := d.lexer.NextToken()
	if err != nil {
		return nil, err
	}
	if root.Kind != xmlstream.BeginElement {
		return nil, sdkerrors.NewDeserializationException("expected a list start element", nil)
	}
	return &listIterator{lexer: d.lexer, depth: root.Depth}, nil
}

func (d *Deserializer) DeserializeMap(descriptor serde.SdkFieldDescriptor) (serde.MapIterator, error) {
	root, err := d.lexer.NextToken()
	if err != nil {
		return nil, err
	}
	if root.Kind != xmlstream.BeginElement {
		return nil, sdkerrors.NewDeserializationException("expected a map start element", nil)
	}
	return &mapIterator{lexer: d.lexer, depth: root.Depth}, nil
}

type structIterator struct {
	lexer *xmlstream.Lexer
	depth int
	attrs map[xmlstream.QName]string
	// pendingChild is the BeginElement token for the field the most
	// recent FindNextFieldIndex call surfaced, held so DeserializeField
	// can read its text content without re-lexing the start tag.
	pendingChild xmlstream.Token
}

func (it *structIterator) FindNextFieldIndex(descriptor serde.SdkObjectDescriptor) (int, bool) {
	tok, err := it.lexer.NextToken()
	if err != nil {
		return serde.UnknownFieldIndex, false
	}
	if tok.Kind == xmlstream.EndElement && tok.Depth == it.depth {
		return serde.UnknownFieldIndex, false
	}
	if tok.Kind != xmlstream.BeginElement {
		return serde.UnknownFieldIndex, false
	}
	it.pendingChild = tok
	for _, f := range descriptor.Fields {
		if wireName(f) == tok.Name.Local {
			return f.Index, true
		}
	}
	return serde.UnknownFieldIndex, true
}

func (it *structIterator) DeserializeField(descriptor serde.SdkFieldDescriptor, out any) error {
	if isAttribute(descriptor) {
		v := it.attrs[xmlstream.QName{Local: wireName(descriptor)}]
		return assignScalar(descriptor.Kind, v, out)
	}
	text, err := it.readElementText(it.pendingChild.Depth)
	if err != nil {
		return err
	}
	return assignScalar(descriptor.Kind, text, out)
}

func (it *structIterator) readElementText(depth int) (string, error) {
	var sb strings.Builder
	for {
		tok, err := it.lexer.NextToken()
		if err != nil {
			return "", err
		}
		switch tok.Kind {
		case xmlstream.Text:
			sb.WriteString(tok.Text)
		case xmlstream.EndElement:
			if tok.Depth == depth {
				return sb.String(), nil
			}
		case xmlstream.EndDocument:
			return "", sdkerrors.NewDeserializationException("unexpected end of document while reading element text", nil)
		}
	}
}

func (it *structIterator) SkipValue() error {
	return it.lexer.SkipCurrent(it.pendingChild)
}

func (it *structIterator) EndStruct() error {
	return nil
}

type listIterator struct {
	lexer *xmlstream.Lexer
	depth int
	next  *xmlstream.Token
}

func (it *listIterator) HasNext() bool {
	if it.next != nil {
		return true
	}
	tok, err := it.lexer.NextToken()
	if err != nil || tok.Kind != xmlstream.BeginElement {
		return false
	}
	it.next = &tok
	return true
}

func (it *listIterator) DeserializeEntry(descriptor serde.SdkFieldDescriptor, out any) error {
	if it.next == nil {
		if !it.HasNext() {
			return sdkerrors.NewDeserializationException("no more list entries", nil)
		}
	}
	depth := it.next.Depth
	it.next = nil
	var sb strings.Builder
	for {
		tok, err := it.lexer.NextToken()
		if err != nil {
			return err
		}
		if tok.Kind == xmlstream.Text {
			sb.WriteString(tok.Text)
		}
		if tok.Kind == xmlstream.EndElement && tok.Depth == depth {
			break
		}
	}
	return assignScalar(descriptor.Kind, sb.String(), out)
}

func (it *listIterator) EndList() error { return nil }

type mapIterator struct {
	lexer    *xmlstream.Lexer
	depth    int
	curKey   string
	inEntry  bool
	curDepth int
}

func (it *mapIterator) NextKey() (string, bool) {
	for {
		tok, err := it.lexer.NextToken()
		if err != nil {
			return "", false
		}
		if tok.Kind == xmlstream.EndElement && tok.Depth == it.depth {
			return "", false
		}
		if tok.Kind != xmlstream.BeginElement {
			continue
		}
		// Expect <entry><key>...</key><value>...
		entryDepth := tok.Depth
		keyTok, err := it.lexer.NextToken()
		if err != nil || keyTok.Kind != xmlstream.BeginElement {
			return "", false
		}
		var sb strings.Builder
		for {
			t, err := it.lexer.NextToken()
			if err != nil {
				return "", false
			}
			if t.Kind == xmlstream.Text {
				sb.WriteString(t.Text)
			}
			if t.Kind == xmlstream.EndElement && t.Depth == keyTok.Depth {
				break
			}
		}
		it.curKey = sb.String()
		it.curDepth = entryDepth
		return it.curKey, true
	}
}

func (it *mapIterator) DeserializeValue(descriptor serde.SdkFieldDescriptor, out any) error {
	tok, err := it.lexer.NextToken()
	if err != nil || tok.Kind != xmlstream.BeginElement {
		return sdkerrors.NewDeserializationException("expected map value element", nil)
	}
	var sb strings.Builder
	for {
		t, err := it.lexer.NextToken()
		if err != nil {
			return err
		}
		if t.Kind == xmlstream.Text {
			sb.WriteString(t.Text)
		}
		if t.Kind == xmlstream.EndElement && t.Depth == tok.Depth {
			break
		}
	}
	// consume the wrapping </entry>
	for {
		t, err := it.lexer.NextToken()
		if err != nil {
			return err
		}
		if t.Kind == xmlstream.EndElement && t.Depth == it.curDepth {
			break
		}
	}
	return assignScalar(descriptor.Kind, sb.String(), out)
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
