// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package formurl

import (
	"testing"

	"github.com/nishisan-dev/go-protocol-core/serde"
)

func descriptor() serde.SdkObjectDescriptor {
	return serde.SdkObjectDescriptor{Fields: []serde.SdkFieldDescriptor{
		{Kind: serde.KindString, Index: 0, Name: "Bucket"},
		{Kind: serde.KindInteger, Index: 1, Name: "MaxKeys"},
	}}
}

func TestStructRoundTrip(t *testing.T) {
	desc := descriptor()
	ser := New()
	w, err := ser.BeginStruct(desc)
	if err != nil {
		t.Fatalf("BeginStruct: %v", err)
	}
	w.Field(desc.Fields[0], "my-bucket")
	w.Field(desc.Fields[1], 100)
	w.EndStruct()

	out, err := ser.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	want := "Bucket=my-bucket&MaxKeys=100"
	if string(out) != want {
		t.Fatalf("expected %q, got %q", want, out)
	}

	de, err := Parse(string(out))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	it, err := de.DeserializeStruct(desc)
	if err != nil {
		t.Fatalf("DeserializeStruct: %v", err)
	}

	var bucket string
	var maxKeys int
	for {
		idx, ok := it.FindNextFieldIndex(desc)
		if !ok {
			break
		}
		if idx == serde.UnknownFieldIndex {
			continue
		}
		field, _ := desc.FieldByIndex(idx)
		switch idx {
		case 0:
			it.DeserializeField(field, &bucket)
		case 1:
			it.DeserializeField(field, &maxKeys)
		}
	}
	if bucket != "my-bucket" || maxKeys != 100 {
		t.Fatalf("expected my-bucket/100, got %s/%d", bucket, maxKeys)
	}
}

func TestQueryLiteralAlwaysEmitted(t *testing.T) {
	desc := serde.SdkObjectDescriptor{Fields: []serde.SdkFieldDescriptor{
		{Kind: serde.KindString, Index: 0, Name: "Action", Traits: []serde.Trait{QueryLiteral{Value: "ListBuckets"}}},
	}}
	ser := New()
	w, _ := ser.BeginStruct(desc)
	w.EndStruct()
	out, _ := ser.Bytes()
	if string(out) != "Action=ListBuckets" {
		t.Fatalf("expected Action=ListBuckets, got %q", out)
	}
}

func TestListEntriesIndexedFromOne(t *testing.T) {
	desc := serde.SdkFieldDescriptor{Kind: serde.KindList, Index: 0, Name: "Ids"}
	ser := New()
	lw, err := ser.BeginList(desc)
	if err != nil {
		t.Fatalf("BeginList: %v", err)
	}
	lw.Entry("a")
	lw.Entry("b")
	lw.EndList()
	out, _ := ser.Bytes()
	want := "Ids.member.1=a&Ids.member.2=b"
	if string(out) != want {
		t.Fatalf("expected %q, got %q", want, out)
	}
}
