// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package signing

import (
	"bytes"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/nishisan-dev/go-protocol-core/clock"
)

func fixedClock() *clock.Manual {
	return clock.NewManual(time.Date(2015, 8, 30, 12, 36, 0, 0, time.UTC))
}

func TestCanonicalURIEmptyPathBecomesSlash(t *testing.T) {
	got := canonicalURI("", Config{})
	if got != "/" {
		t.Fatalf("expected /, got %q", got)
	}
}

func TestCanonicalURIEncodesSegments(t *testing.T) {
	got := canonicalURI("/a b/c", Config{})
	if got != "/a%20b/c" {
		t.Fatalf("expected /a%%20b/c, got %q", got)
	}
}

func TestCanonicalQueryStringSortedByKeyThenValue(t *testing.T) {
	q := url.Values{}
	q.Add("b", "2")
	q.Add("a", "2")
	q.Add("a", "1")
	got := canonicalQueryString(q)
	want := "a=1&a=2&b=2"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCanonicalHeadersExcludesDeniedHeaders(t *testing.T) {
	req := &Request{Headers: map[string][]string{
		"Host":             {"example.com"},
		"X-Amzn-Trace-Id":  {"abc"},
		"User-Agent":       {"test/1.0"},
	}}
	names, block := canonicalHeaders(req, Config{})
	if len(names) != 1 || names[0] != "host" {
		t.Fatalf("expected only host to be signed, got %v", names)
	}
	if block != "host:example.com\n" {
		t.Fatalf("unexpected canonical headers block: %q", block)
	}
}

func TestSigningKeyIsDeterministic(t *testing.T) {
	k1 := SigningKey("secret", "20150830", "us-east-1", "service")
	k2 := SigningKey("secret", "20150830", "us-east-1", "service")
	if !bytes.Equal(k1, k2) {
		t.Fatal("expected identical signing keys for identical inputs")
	}
	k3 := SigningKey("other", "20150830", "us-east-1", "service")
	if bytes.Equal(k1, k3) {
		t.Fatal("expected different signing keys for different secrets")
	}
}

func TestSignIsDeterministicGivenFixedInputs(t *testing.T) {
	newReq := func() *Request {
		return &Request{
			Method:  "GET",
			Path:    "/",
			Headers: map[string][]string{"Host": {"example.amazonaws.com"}},
		}
	}
	cfg := Config{
		Region: "us-east-1", Service: "service", SigningDate: fixedClock(),
		HashSpecification: HashSpecification{Kind: EmptyBody},
	}
	creds := Credentials{AccessKeyID: "AKID", SecretAccessKey: "secret"}

	req1 := newReq()
	res1, err := Sign(req1, cfg, creds)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	req2 := newReq()
	res2, err := Sign(req2, cfg, creds)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if res1.Signature != res2.Signature {
		t.Fatalf("expected identical signatures, got %q vs %q", res1.Signature, res2.Signature)
	}
	if len(res1.Signature) != 64 {
		t.Fatalf("expected 64-char hex signature, got %d chars", len(res1.Signature))
	}

	auth, ok := req1.headerValues("Authorization")
	if !ok {
		t.Fatal("expected Authorization header to be set")
	}
	if !strings.Contains(auth[0], "Credential=AKID/") || !strings.Contains(auth[0], "Signature="+res1.Signature) {
		t.Fatalf("unexpected Authorization header: %q", auth[0])
	}
}

func TestQueryPlacementSetsExpectedParams(t *testing.T) {
	req := &Request{Method: "GET", Path: "/", Headers: map[string][]string{"Host": {"example.com"}}}
	cfg := Config{
		Region: "us-east-1", Service: "service", SigningDate: fixedClock(),
		SignatureType: Query, ExpiresAfterSec: 900,
		HashSpecification: HashSpecification{Kind: UnsignedPayload},
	}
	_, err := Sign(req, cfg, Credentials{AccessKeyID: "AKID", SecretAccessKey: "secret"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	for _, param := range []string{"X-Amz-Algorithm", "X-Amz-Credential", "X-Amz-Date", "X-Amz-Expires", "X-Amz-SignedHeaders", "X-Amz-Signature"} {
		if req.Query.Get(param) == "" {
			t.Fatalf("expected query param %s to be set", param)
		}
	}
}

// TestChunkSigningPreservesPayload reproduces spec §8 scenario 7's
// shape: the framed chunk carries the original payload bytes and the
// chunk and final-chunk signatures are 64-char hex.
func TestChunkSigningPreservesPayload(t *testing.T) {
	body := bytes.Repeat([]byte{0x7A}, DefaultChunkSize)
	signingKey := SigningKey("secret", "20150830", "us-east-1", "s3")
	signer := NewChunkSigner(signingKey, "20150830/us-east-1/s3/aws4_request", "20150830T123600Z", strings.Repeat("0", 64))

	framed1, sig1 := signer.SignChunk(body)
	if len(sig1) != 64 {
		t.Fatalf("expected 64-char chunk signature, got %d", len(sig1))
	}
	if !bytes.Contains(framed1, body) {
		t.Fatal("expected framed chunk to contain the original payload bytes")
	}

	framedFinal, sigFinal := signer.FinalChunk()
	if len(sigFinal) != 64 {
		t.Fatalf("expected 64-char final chunk signature, got %d", len(sigFinal))
	}
	if !strings.HasPrefix(string(framedFinal), "0;chunk-signature=") {
		t.Fatalf("expected zero-length final chunk framing, got %q", framedFinal[:30])
	}
}

func TestShouldUseChunkedEncodingThreshold(t *testing.T) {
	if ShouldUseChunkedEncoding(MinStreamingChunks*DefaultChunkSize-1, DefaultChunkSize) {
		t.Fatal("expected body just under threshold to not qualify")
	}
	if !ShouldUseChunkedEncoding(MinStreamingChunks*DefaultChunkSize, DefaultChunkSize) {
		t.Fatal("expected body at threshold to qualify")
	}
}

func TestChunkBodySumOfLengthsEqualsOriginal(t *testing.T) {
	body := bytes.Repeat([]byte{0x41}, 150_000)
	signingKey := SigningKey("secret", "20150830", "us-east-1", "s3")
	signer := NewChunkSigner(signingKey, "scope", "20150830T123600Z", strings.Repeat("0", 64))
	framed := ChunkBody(body, DefaultChunkSize, signer)

	// Reconstruct payload bytes by stripping chunk framing and verify
	// the concatenation matches the original body exactly.
	var reconstructed []byte
	rest := framed
	for {
		semi := bytes.IndexByte(rest, ';')
		if semi < 0 {
			break
		}
		crlf := bytes.Index(rest, []byte("\r\n"))
		lenHex := rest[:semi]
		n, err := strconv.ParseInt(string(lenHex), 16, 64)
		if err != nil {
			t.Fatalf("parse chunk length: %v", err)
		}
		chunkStart := crlf + 2
		reconstructed = append(reconstructed, rest[chunkStart:chunkStart+int(n)]...)
		rest = rest[chunkStart+int(n)+2:]
		if n == 0 {
			break
		}
	}
	if !bytes.Equal(reconstructed, body) {
		t.Fatal("expected concatenation of chunk payloads to equal original body")
	}
}

