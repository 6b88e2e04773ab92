// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package transport defines the narrow HTTP engine contract this module
// delegates to (round-trip a Request into a Response) and an in-memory
// fake implementation for tests, the way the teacher keeps its network
// I/O behind a small seam (internal/server.Handler talks to net.Conn,
// never to a concrete transport library).
package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/nishisan-dev/go-protocol-core/iosource"
)

// BodyKind tags which variant of Body a request or response carries.
type BodyKind int

const (
	// Empty means no body at all.
	Empty BodyKind = iota
	// Bytes means a fully materialized, in-memory body.
	Bytes
	// Streaming means a body read incrementally from a Source.
	Streaming
)

// Body is a tagged union over the three wire body shapes named in the
// external interfaces section: an empty body, a fully-buffered byte
// body, or a streaming source with an optional known content length.
type Body struct {
	Kind          BodyKind
	Bytes         []byte
	Source        iosource.Source
	ContentLength int64 // only meaningful when Kind == Streaming and >= 0
}

// EmptyBody is the zero-value Empty body, named for readability at call sites.
var EmptyBody = Body{Kind: Empty}

// BytesBody wraps a fully materialized byte slice.
func BytesBody(b []byte) Body {
	return Body{Kind: Bytes, Bytes: b}
}

// StreamingBody wraps a Source, with contentLength -1 when unknown.
func StreamingBody(src iosource.Source, contentLength int64) Body {
	return Body{Kind: Streaming, Source: src, ContentLength: contentLength}
}

// Header is a case-insensitive, multi-valued header bag, mirroring the
// net/http.Header shape the teacher already relies on for its
// observability HTTP surface.
type Header map[string][]string

// Set replaces all values for name (canonicalized like net/http).
func (h Header) Set(name, value string) {
	h[http.CanonicalHeaderKey(name)] = []string{value}
}

// Add appends value to name's existing values.
func (h Header) Add(name, value string) {
	key := http.CanonicalHeaderKey(name)
	h[key] = append(h[key], value)
}

// Get returns the first value for name, or "" if absent.
func (h Header) Get(name string) string {
	vs := h[http.CanonicalHeaderKey(name)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Request is the shape an injected HTTP engine round-trips. URL carries
// scheme, host, port, path, query, fragment, and user info exactly as
// net/url.URL already models them.
type Request struct {
	Method  string
	URL     *url.URL
	Headers Header
	Body    Body
}

// Response mirrors Request's shape plus a status code.
type Response struct {
	Status  int
	Headers Header
	Body    Body
}

// RoundTripper is the injected HTTP engine capability. Implementations
// must release any response body resources on every exit path,
// including when ctx is cancelled mid-transfer.
type RoundTripper interface {
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
}

// RoundTripperFunc adapts a plain function to RoundTripper.
type RoundTripperFunc func(ctx context.Context, req *Request) (*Response, error)

// RoundTrip calls f.
func (f RoundTripperFunc) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// ReadBody fully materializes req/resp Body into a byte slice,
// regardless of which variant it is.
func ReadBody(b Body) ([]byte, error) {
	switch b.Kind {
	case Empty:
		return nil, nil
	case Bytes:
		return b.Bytes, nil
	case Streaming:
		return b.Source.ReadAll()
	default:
		return nil, fmt.Errorf("transport: unknown body kind %d", b.Kind)
	}
}

// FakeRoundTripper is an in-memory RoundTripper for tests: it records
// every Request it sees and replays a scripted sequence of Responses
// (or a handler function, if set) without touching the network.
type FakeRoundTripper struct {
	Handler   func(ctx context.Context, req *Request) (*Response, error)
	Responses []*Response
	Requests  []*Request

	next int
}

// RoundTrip records req and returns the next scripted response, or
// delegates to Handler if set.
func (f *FakeRoundTripper) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	f.Requests = append(f.Requests, req)
	if f.Handler != nil {
		return f.Handler(ctx, req)
	}
	if f.next >= len(f.Responses) {
		return nil, fmt.Errorf("transport: fake round tripper exhausted scripted responses after %d calls", f.next)
	}
	resp := f.Responses[f.next]
	f.next++
	return resp, nil
}

// LastRequest returns the most recently recorded request, or nil.
func (f *FakeRoundTripper) LastRequest() *Request {
	if len(f.Requests) == 0 {
		return nil
	}
	return f.Requests[len(f.Requests)-1]
}

// sortedHeaderDump renders headers deterministically for diagnostics,
// e.g. when logging a request that a fake round tripper rejected.
func sortedHeaderDump(h Header) string {
	names := make([]string, 0, len(h))
	for k := range h {
		names = append(names, k)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "%s: %s\n", name, strings.Join(h[name], ", "))
	}
	return sb.String()
}

// DumpRequest renders a request's method, URL, and headers for
// diagnostics (never the body, which may be streaming/large).
func DumpRequest(req *Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", req.Method, req.URL.String())
	sb.WriteString(sortedHeaderDump(req.Headers))
	return sb.String()
}

