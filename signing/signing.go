// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package signing implements AWS Signature Version 4 request signing:
// canonical request construction, the string-to-sign, signing-key
// derivation, header/query placement, and the aws-chunked streaming
// body signer with trailer signatures. Hashing and HMAC chaining follow
// crypto/sha256 and crypto/hmac directly, the one place in this module
// where a hand-rolled implementation over the standard library is the
// actual product rather than a shortcut around a missing dependency.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/nishisan-dev/go-protocol-core/clock"
	"github.com/nishisan-dev/go-protocol-core/sdkerrors"
)

// Algorithm names the signing algorithm family.
type Algorithm int

const (
	SigV4 Algorithm = iota
	SigV4Asymmetric
)

// SignatureType selects where the signature is placed on the request.
type SignatureType int

const (
	Headers SignatureType = iota
	Query
	Chunk
	ChunkTrailer
	Event
)

// HashSpecificationKind tags the variants of HashSpecification.
type HashSpecificationKind int

const (
	CalculateFromPayload HashSpecificationKind = iota
	UnsignedPayload
	EmptyBody
	StreamingAws4HmacSha256Payload
	StreamingAws4HmacSha256PayloadWithTrailers
	Precalculated
)

// HashSpecification tells the signer how to compute PAYLOAD_HASH.
// Precalculated carries its hex digest in Hex; other kinds ignore it.
type HashSpecification struct {
	Kind HashSpecificationKind
	Hex  string
}

const unsignedPayload = "UNSIGNED-PAYLOAD"
const streamingSha256Placeholder = "STREAMING-AWS4-HMAC-SHA256-PAYLOAD"
const streamingSha256TrailerPlaceholder = "STREAMING-AWS4-HMAC-SHA256-PAYLOAD-TRAILER"

var emptySha256Hex = hexSha256(nil)

// Credentials are the values a CredentialsProvider resolves to (see
// package credentials); duplicated here as a minimal shape so that
// signing does not import credentials and each package stays
// independently testable.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// Config carries the non-credential, non-request knobs the signer needs.
type Config struct {
	Region             string
	Service            string
	SigningDate        clock.Clock
	Algorithm          Algorithm
	SignatureType      SignatureType
	UseDoubleURIEncode bool
	NormalizeURIPath   bool
	OmitSessionToken   bool
	HashSpecification  HashSpecification
	ExpiresAfterSec    int64 // only used for SignatureType == Query
	ShouldSignHeader   func(name string) bool
}

// Request is the minimal shape the signer reads and mutates. Headers is
// case-preserving on write but matched case-insensitively on read.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string][]string
	Body    []byte // nil/empty for unsigned or streaming bodies
}

func (r *Request) headerValues(name string) ([]string, bool) {
	lower := strings.ToLower(name)
	for k, v := range r.Headers {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	return nil, false
}

func (r *Request) setHeader(name, value string) {
	if r.Headers == nil {
		r.Headers = map[string][]string{}
	}
	r.Headers[name] = []string{value}
}

var deniedSignedHeaders = map[string]bool{
	"x-amzn-trace-id": true,
	"user-agent":       true,
	"authorization":    true,
	"expect":           true,
}

func defaultShouldSignHeader(name string) bool {
	return !deniedSignedHeaders[strings.ToLower(name)]
}

// dateStamp and amzDate are the two timestamp renderings the signing
// process needs, both derived from a single instant so they can never
// drift apart within one Sign call.
type timestamps struct {
	dateStamp string // YYYYMMDD
	amzDate   string // YYYYMMDDTHHMMSSZ
}

func newTimestamps(t clock.Clock) timestamps {
	now := t.Now().UTC()
	return timestamps{
		dateStamp: now.Format("20060102"),
		amzDate:   now.Format("20060102T150405Z"),
	}
}

func scope(ts timestamps, cfg Config) string {
	return fmt.Sprintf("%s/%s/%s/aws4_request", ts.dateStamp, cfg.Region, cfg.Service)
}

// CanonicalRequest builds the six-line canonical request string and
// returns the exact ordered signed-header-name list used to build it.
func CanonicalRequest(req *Request, cfg Config, payloadHash string) (string, []string) {
	uri := canonicalURI(req.Path, cfg)
	query := canonicalQueryString(req.Query)
	headerNames, canonicalHeaders := canonicalHeaders(req, cfg)
	signedHeaders := strings.Join(headerNames, ";")

	cr := strings.Join([]string{
		req.Method,
		uri,
		query,
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")
	return cr, headerNames
}

func canonicalURI(path string, cfg Config) string {
	if path == "" {
		path = "/"
	}
	if cfg.NormalizeURIPath {
		path = normalizeDotSegments(path)
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		encoded := uriEncode(seg, false)
		if cfg.UseDoubleURIEncode {
			encoded = uriEncode(encoded, false)
		}
		segments[i] = encoded
	}
	out := strings.Join(segments, "/")
	if out == "" {
		return "/"
	}
	return out
}

func normalizeDotSegments(path string) string {
	leadingSlash := strings.HasPrefix(path, "/")
	parts := strings.Split(path, "/")
	var stack []string
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, p)
		}
	}
	joined := strings.Join(stack, "/")
	if leadingSlash {
		return "/" + joined
	}
	return joined
}

// uriEncode percent-encodes every byte not in the RFC 3986 unreserved
// set (ALPHA / DIGIT / "-" / "." / "_" / "~"); encodeSlash controls
// whether '/' is passed through unescaped.
func uriEncode(s string, encodeSlash bool) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) || (c == '/' && !encodeSlash) {
			sb.WriteByte(c)
			continue
		}
		fmt.Fprintf(&sb, "%%%02X", c)
	}
	return sb.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

func canonicalQueryString(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	type pair struct{ k, v string }
	var pairs []pair
	for k, values := range q {
		for _, v := range values {
			pairs = append(pairs, pair{uriEncode(k, true), uriEncode(v, true)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.k + "=" + p.v
	}
	return strings.Join(parts, "&")
}

func collapseWhitespace(s string) string {
	s = strings.TrimSpace(s)
	var sb strings.Builder
	lastWasSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' {
			if !lastWasSpace {
				sb.WriteByte(' ')
			}
			lastWasSpace = true
			continue
		}
		lastWasSpace = false
		sb.WriteRune(r)
	}
	return sb.String()
}

func canonicalHeaders(req *Request, cfg Config) ([]string, string) {
	shouldSign := cfg.ShouldSignHeader
	if shouldSign == nil {
		shouldSign = func(string) bool { return true }
	}

	type entry struct {
		name   string
		values []string
	}
	var entries []entry
	for name, values := range req.Headers {
		lower := strings.ToLower(name)
		if !defaultShouldSignHeader(lower) || !shouldSign(lower) {
			continue
		}
		entries = append(entries, entry{lower, values})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	var sb strings.Builder
	names := make([]string, len(entries))
	for i, e := range entries {
		cleaned := make([]string, len(e.values))
		for j, v := range e.values {
			cleaned[j] = collapseWhitespace(v)
		}
		sb.WriteString(e.name)
		sb.WriteByte(':')
		sb.WriteString(strings.Join(cleaned, ","))
		sb.WriteByte('\n')
		names[i] = e.name
	}
	return names, sb.String()
}

func hexSha256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// ResolvePayloadHash determines PAYLOAD_HASH for the canonical request
// per cfg.HashSpecification.
func ResolvePayloadHash(body []byte, spec HashSpecification) string {
	switch spec.Kind {
	case UnsignedPayload:
		return unsignedPayload
	case EmptyBody:
		return emptySha256Hex
	case StreamingAws4HmacSha256Payload:
		return streamingSha256Placeholder
	case StreamingAws4HmacSha256PayloadWithTrailers:
		return streamingSha256TrailerPlaceholder
	case Precalculated:
		return spec.Hex
	default:
		return hexSha256(body)
	}
}

// SigningKey derives kSigning = HMAC(HMAC(HMAC(HMAC("AWS4"+secret,
// date), region), service), "aws4_request").
func SigningKey(secret, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secret), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte("aws4_request"))
}

// StringToSign builds the SigV4 string-to-sign from a canonical
// request and its signing timestamps/scope.
func StringToSign(ts timestamps, cfg Config, canonicalRequest string) string {
	return strings.Join([]string{
		"AWS4-HMAC-SHA256",
		ts.amzDate,
		scope(ts, cfg),
		hexSha256([]byte(canonicalRequest)),
	}, "\n")
}

// Result carries everything a caller might want after signing: the
// final signature plus the intermediates needed to seed chunk signing.
type Result struct {
	Signature        string
	SigningKey       []byte
	StringToSign     string
	CanonicalRequest string
	Scope            string
	AmzDate          string
}

// Sign computes and applies a SigV4 signature to req in place,
// returning the intermediates (SigningKey, seed Signature, ...) needed
// by ChunkSigner when the body is chunked.
func Sign(req *Request, cfg Config, creds Credentials) (Result, error) {
	if cfg.SigningDate == nil {
		return Result{}, sdkerrors.NewClientException("signing config requires a Clock", nil)
	}
	ts := newTimestamps(cfg.SigningDate)

	req.setHeader("X-Amz-Date", ts.amzDate)
	if !cfg.OmitSessionToken && creds.SessionToken != "" {
		req.setHeader("X-Amz-Security-Token", creds.SessionToken)
	}

	payloadHash := ResolvePayloadHash(req.Body, cfg.HashSpecification)
	if cfg.SignatureType != Query {
		req.setHeader("X-Amz-Content-Sha256", payloadHash)
	}

	switch cfg.SignatureType {
	case Query:
		if req.Query == nil {
			req.Query = url.Values{}
		}
		req.Query.Set("X-Amz-Algorithm", "AWS4-HMAC-SHA256")
		req.Query.Set("X-Amz-Credential", creds.AccessKeyID+"/"+scope(ts, cfg))
		req.Query.Set("X-Amz-Date", ts.amzDate)
		if cfg.ExpiresAfterSec > 0 {
			req.Query.Set("X-Amz-Expires", strconv.FormatInt(cfg.ExpiresAfterSec, 10))
		}
		if !cfg.OmitSessionToken && creds.SessionToken != "" {
			req.Query.Set("X-Amz-Security-Token", creds.SessionToken)
		}
		headerNames, _ := canonicalHeaders(req, cfg)
		req.Query.Set("X-Amz-SignedHeaders", strings.Join(headerNames, ";"))

		cr, _ := CanonicalRequest(req, cfg, payloadHash)
		stringToSign := StringToSign(ts, cfg, cr)
		signingKey := SigningKey(creds.SecretAccessKey, ts.dateStamp, cfg.Region, cfg.Service)
		signature := hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))
		req.Query.Set("X-Amz-Signature", signature)
		return Result{Signature: signature, SigningKey: signingKey, StringToSign: stringToSign, CanonicalRequest: cr, Scope: scope(ts, cfg), AmzDate: ts.amzDate}, nil

	default: // Headers, Chunk, ChunkTrailer, Event all sign like Headers at the top level
		cr, headerNames := CanonicalRequest(req, cfg, payloadHash)
		stringToSign := StringToSign(ts, cfg, cr)
		signingKey := SigningKey(creds.SecretAccessKey, ts.dateStamp, cfg.Region, cfg.Service)
		signature := hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))

		authHeader := fmt.Sprintf("AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
			creds.AccessKeyID, scope(ts, cfg), strings.Join(headerNames, ";"), signature)
		req.setHeader("Authorization", authHeader)

		return Result{Signature: signature, SigningKey: signingKey, StringToSign: stringToSign, CanonicalRequest: cr, Scope: scope(ts, cfg), AmzDate: ts.amzDate}, nil
	}
}
