// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package signing

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// MinStreamingChunks is the 16x-a-chunk threshold below which a body is
// signed as a single payload instead of being rewritten into
// aws-chunked framing.
const MinStreamingChunks = 16

// DefaultChunkSize is the aws-chunked chunk size (64 KiB) per spec §4.7.
const DefaultChunkSize = 64 * 1024

// ShouldUseChunkedEncoding reports whether a body of the given length
// qualifies for aws-chunked framing at the given chunk size.
func ShouldUseChunkedEncoding(bodyLen int, chunkSize int) bool {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return bodyLen >= MinStreamingChunks*chunkSize
}

// ChunkSigner computes successive aws-chunked chunk signatures,
// chaining each chunk's signature from the previous one the way the
// spec's per-chunk string-to-sign threads "prev_sig" forward.
type ChunkSigner struct {
	signingKey []byte
	ts         timestamps
	scope      string
	prevSig    string
}

// NewChunkSigner seeds a ChunkSigner from the request signature that
// resulted from signing the request's headers (the "seed signature").
func NewChunkSigner(signingKey []byte, scope, amzDate, seedSignature string) *ChunkSigner {
	return &ChunkSigner{signingKey: signingKey, ts: timestamps{amzDate: amzDate}, scope: scope, prevSig: seedSignature}
}

// SignChunk computes the next chunk's signature and frames the chunk as
// "HEX(len);chunk-signature=<hex64>\r\n<bytes>\r\n", advancing the
// chain so the following call uses this chunk's signature as its seed.
func (c *ChunkSigner) SignChunk(chunk []byte) (framed []byte, signature string) {
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256-PAYLOAD",
		c.ts.amzDate,
		c.scope,
		c.prevSig,
		emptySha256Hex,
		hexSha256(chunk),
	}, "\n")
	sig := hex.EncodeToString(hmacSHA256(c.signingKey, []byte(stringToSign)))
	c.prevSig = sig

	var sb strings.Builder
	fmt.Fprintf(&sb, "%x;chunk-signature=%s\r\n", len(chunk), sig)
	sb.Write(chunk)
	sb.WriteString("\r\n")
	return []byte(sb.String()), sig
}

// FinalChunk returns the terminating zero-length chunk, signed like any
// other chunk over an empty payload.
func (c *ChunkSigner) FinalChunk() (framed []byte, signature string) {
	return c.SignChunk(nil)
}

// SignTrailer computes the trailer signature over the rendered trailer
// header block (the "<name>:<value>\r\n" lines, without the final
// signature line), using the AWS4-HMAC-SHA256-TRAILER variant.
func (c *ChunkSigner) SignTrailer(trailerHeaderBlock string) string {
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256-TRAILER",
		c.ts.amzDate,
		c.scope,
		c.prevSig,
		hexSha256([]byte(trailerHeaderBlock)),
	}, "\n")
	sig := hex.EncodeToString(hmacSHA256(c.signingKey, []byte(stringToSign)))
	c.prevSig = sig
	return sig
}

// ChunkBody splits body into chunkSize-sized chunks (DefaultChunkSize
// when chunkSize <= 0; the last possibly shorter), signs each in order,
// and returns the fully framed
// aws-chunked wire body including the terminating zero-length chunk.
func ChunkBody(body []byte, chunkSize int, signer *ChunkSigner) []byte {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	var out strings.Builder
	for len(body) > 0 {
		n := chunkSize
		if n > len(body) {
			n = len(body)
		}
		framed, _ := signer.SignChunk(body[:n])
		out.Write(framed)
		body = body[n:]
	}
	framed, _ := signer.FinalChunk()
	out.Write(framed)
	return []byte(out.String())
}

// RenderTrailer renders the trailer section per spec §6: each declared
// header as "<name>:<value>\r\n", followed by
// "x-amz-trailer-signature:<hex64>\r\n", followed by a final blank line.
func RenderTrailer(signer *ChunkSigner, headers map[string]string, order []string) string {
	var block strings.Builder
	for _, name := range order {
		fmt.Fprintf(&block, "%s:%s\r\n", name, headers[name])
	}
	sig := signer.SignTrailer(block.String())
	block.WriteString("x-amz-trailer-signature:" + sig + "\r\n")
	block.WriteString("\r\n")
	return block.String()
}
