// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package iosource

import (
	"bytes"
	"errors"
	"testing"

	"github.com/nishisan-dev/go-protocol-core/bytechannel"
)

func TestBoundedSourceReadAllThenExhausted(t *testing.T) {
	s := NewBoundedSource([]byte("hello"))
	out, err := s.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(out, []byte("hello")) {
		t.Fatalf("expected hello, got %q", out)
	}
	n, err := s.ReadAvailable(make([]byte, 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != -1 {
		t.Fatalf("expected -1 at exhaustion, got %d", n)
	}
}

func TestBoundedSourceRestartableViaReset(t *testing.T) {
	s := NewBoundedSource([]byte("abc"))
	s.ReadAll()
	s.Reset()
	out, err := s.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll after reset: %v", err)
	}
	if string(out) != "abc" {
		t.Fatalf("expected abc after reset, got %q", out)
	}
}

func TestBoundedSourceCancel(t *testing.T) {
	s := NewBoundedSource([]byte("abc"))
	cause := errors.New("stopped")
	s.Cancel(cause)
	if _, err := s.ReadAll(); !errors.Is(err, cause) {
		t.Fatalf("expected cancel cause, got %v", err)
	}
}

func TestChannelSourceSinkRoundTrip(t *testing.T) {
	ch := bytechannel.New(64, true)
	sink := NewChannelSink(ch)
	source := NewChannelSource(ch)

	go func() {
		sink.WriteFully([]byte("payload"))
		sink.Close(nil)
	}()

	out, err := source.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(out) != "payload" {
		t.Fatalf("expected payload, got %q", out)
	}
}
