// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package yamlformat

import (
	"testing"

	"github.com/nishisan-dev/go-protocol-core/serde"
)

func descriptor() serde.SdkObjectDescriptor {
	return serde.SdkObjectDescriptor{Fields: []serde.SdkFieldDescriptor{
		{Kind: serde.KindString, Index: 0, Name: "name"},
		{Kind: serde.KindBoolean, Index: 1, Name: "enabled"},
	}}
}

func TestStructRoundTrip(t *testing.T) {
	desc := descriptor()
	ser := New()
	w, err := ser.BeginStruct(desc)
	if err != nil {
		t.Fatalf("BeginStruct: %v", err)
	}
	w.Field(desc.Fields[0], "agent-1")
	w.Field(desc.Fields[1], true)
	w.EndStruct()

	out, err := ser.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	de, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	it, err := de.DeserializeStruct(desc)
	if err != nil {
		t.Fatalf("DeserializeStruct: %v", err)
	}

	var name string
	var enabled bool
	for {
		idx, ok := it.FindNextFieldIndex(desc)
		if !ok {
			break
		}
		if idx == serde.UnknownFieldIndex {
			it.SkipValue()
			continue
		}
		field, _ := desc.FieldByIndex(idx)
		switch idx {
		case 0:
			it.DeserializeField(field, &name)
		case 1:
			it.DeserializeField(field, &enabled)
		}
	}
	if name != "agent-1" || !enabled {
		t.Fatalf("expected agent-1/true, got %s/%v", name, enabled)
	}
}

func TestListRoundTrip(t *testing.T) {
	desc := serde.SdkFieldDescriptor{Kind: serde.KindList, Name: "items"}
	ser := New()
	lw, err := ser.BeginList(desc)
	if err != nil {
		t.Fatalf("BeginList: %v", err)
	}
	lw.Entry("a")
	lw.Entry("b")
	lw.EndList()
	out, _ := ser.Bytes()

	de, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	it, err := de.DeserializeList(desc)
	if err != nil {
		t.Fatalf("DeserializeList: %v", err)
	}
	var got []string
	for it.HasNext() {
		var s string
		it.DeserializeEntry(serde.SdkFieldDescriptor{Kind: serde.KindString}, &s)
		got = append(got, s)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected [a b], got %v", got)
	}
}

func TestUnsupportedKindFails(t *testing.T) {
	ser := New()
	w, _ := ser.BeginStruct(serde.SdkObjectDescriptor{})
	err := w.Field(serde.SdkFieldDescriptor{Kind: serde.KindDocument + 100, Name: "bad"}, 1)
	if err == nil {
		t.Fatal("expected SerializationException for unsupported kind")
	}
}
