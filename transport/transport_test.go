// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package transport

import (
	"bytes"
	"context"
	"net/url"
	"testing"

	"github.com/nishisan-dev/go-protocol-core/iosource"
)

func TestFakeRoundTripperRecordsRequestAndReplaysResponse(t *testing.T) {
	u, _ := url.Parse("https://example.com/v1/objects")
	req := &Request{Method: "GET", URL: u, Headers: Header{}, Body: EmptyBody}
	fake := &FakeRoundTripper{
		Responses: []*Response{
			{Status: 200, Headers: Header{}, Body: BytesBody([]byte("ok"))},
		},
	}

	resp, err := fake.RoundTrip(context.Background(), req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if resp.Status != 200 {
		t.Fatalf("expected status 200, got %d", resp.Status)
	}
	body, err := ReadBody(resp.Body)
	if err != nil {
		t.Fatalf("ReadBody: %v", err)
	}
	if !bytes.Equal(body, []byte("ok")) {
		t.Fatalf("unexpected body: %q", body)
	}
	if fake.LastRequest() != req {
		t.Fatal("expected LastRequest to return the recorded request")
	}
}

func TestFakeRoundTripperExhaustionFails(t *testing.T) {
	u, _ := url.Parse("https://example.com/")
	fake := &FakeRoundTripper{}
	_, err := fake.RoundTrip(context.Background(), &Request{Method: "GET", URL: u, Headers: Header{}, Body: EmptyBody})
	if err == nil {
		t.Fatal("expected error when no scripted responses remain")
	}
}

func TestReadBodyHandlesAllThreeVariants(t *testing.T) {
	empty, err := ReadBody(EmptyBody)
	if err != nil || empty != nil {
		t.Fatalf("expected nil, nil for empty body, got %v, %v", empty, err)
	}

	bs, err := ReadBody(BytesBody([]byte("hello")))
	if err != nil || !bytes.Equal(bs, []byte("hello")) {
		t.Fatalf("expected hello, got %v, %v", bs, err)
	}

	src := iosource.NewBoundedSource([]byte("streamed"))
	streamed, err := ReadBody(StreamingBody(src, 8))
	if err != nil || !bytes.Equal(streamed, []byte("streamed")) {
		t.Fatalf("expected streamed, got %v, %v", streamed, err)
	}
}

func TestHeaderSetAddGetCanonicalize(t *testing.T) {
	h := Header{}
	h.Set("content-type", "application/json")
	h.Add("X-Amz-Date", "20150830T123600Z")
	h.Add("x-amz-date", "ignored-if-get-returns-first")

	if got := h.Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected application/json, got %q", got)
	}
	if got := h.Get("X-Amz-Date"); got != "20150830T123600Z" {
		t.Fatalf("expected first added value, got %q", got)
	}
}

func TestDumpRequestOmitsBodyIncludesHeaders(t *testing.T) {
	u, _ := url.Parse("https://example.com/path?x=1")
	h := Header{}
	h.Set("Host", "example.com")
	req := &Request{Method: "POST", URL: u, Headers: h, Body: BytesBody([]byte("secret-body"))}

	dump := DumpRequest(req)
	if bytes.Contains([]byte(dump), []byte("secret-body")) {
		t.Fatal("expected DumpRequest to never include the body")
	}
	if !bytes.Contains([]byte(dump), []byte("Host: example.com")) {
		t.Fatalf("expected headers in dump, got %q", dump)
	}
}
