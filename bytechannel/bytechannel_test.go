// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package bytechannel

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

// TestMadDogScenario reproduces spec §8 scenario 5: feed 7 bytes to an
// autoFlush=false channel, flush, close, then readFully(7) succeeds and
// a subsequent read fails with EndOfStream.
func TestMadDogScenario(t *testing.T) {
	ch := New(64, false)
	if _, err := ch.WriteFully([]byte("Mad dog")); err != nil {
		t.Fatalf("WriteFully: %v", err)
	}
	if ch.AvailableForRead() != 0 {
		t.Fatalf("expected nothing visible before flush, got %d", ch.AvailableForRead())
	}
	if err := ch.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := ch.Close(nil); err != nil {
		t.Fatalf("Close: %v", err)
	}

	buf := make([]byte, 7)
	if err := ch.ReadFully(buf); err != nil {
		t.Fatalf("ReadFully: %v", err)
	}
	if !bytes.Equal(buf, []byte("Mad dog")) {
		t.Fatalf("expected %q, got %q", "Mad dog", buf)
	}

	_, err := ch.ReadByte()
	var eos *EndOfStream
	if !errors.As(err, &eos) {
		t.Fatalf("expected *EndOfStream, got %v", err)
	}
}

func TestAutoFlushMakesBytesImmediatelyVisible(t *testing.T) {
	ch := New(16, true)
	ch.WriteFully([]byte("abc"))
	if ch.AvailableForRead() != 3 {
		t.Fatalf("expected 3 bytes immediately visible, got %d", ch.AvailableForRead())
	}
}

func TestWriteBlocksUntilReaderDrains(t *testing.T) {
	ch := New(4, true)
	ch.WriteFully([]byte("abcd")) // fills capacity

	done := make(chan struct{})
	go func() {
		ch.WriteFully([]byte("ef"))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected write to block while buffer is full")
	case <-time.After(50 * time.Millisecond):
	}

	buf := make([]byte, 2)
	if err := ch.ReadFully(buf); err != nil {
		t.Fatalf("ReadFully: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected blocked write to resume after read drained space")
	}
}

func TestReadAvailableReturnsMinusOneOnExhaustedClosedChannel(t *testing.T) {
	ch := New(8, true)
	ch.Close(nil)
	n, err := ch.ReadAvailable(make([]byte, 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != -1 {
		t.Fatalf("expected -1, got %d", n)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	ch := New(8, true)
	if err := ch.Close(nil); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := ch.Close(nil); err != nil {
		t.Fatalf("second close should be a no-op, got: %v", err)
	}
}

func TestCancelDiscardsUnreadBytes(t *testing.T) {
	ch := New(16, true)
	ch.WriteFully([]byte("unread"))
	cause := errors.New("boom")
	ch.Cancel(cause)

	if ch.AvailableForRead() != 0 {
		t.Fatalf("expected cancel to discard buffered bytes, got %d available", ch.AvailableForRead())
	}
	_, err := ch.ReadByte()
	var eos *EndOfStream
	if !errors.As(err, &eos) {
		t.Fatalf("expected EndOfStream after cancel, got %v", err)
	}
}

func TestCopyToPumpsAllBytesAndClosesDestination(t *testing.T) {
	src := New(32, true)
	dst := New(32, true)

	payload := []byte("the quick brown fox")
	go func() {
		src.WriteFully(payload)
		src.Close(nil)
	}()

	n, err := src.CopyTo(dst, -1, true)
	if err != nil {
		t.Fatalf("CopyTo: %v", err)
	}
	if n != int64(len(payload)) {
		t.Fatalf("expected %d bytes copied, got %d", len(payload), n)
	}

	got, err := dst.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("expected %q, got %q", payload, got)
	}
	if !dst.ClosedForRead() {
		t.Fatalf("expected destination to be closed for read after copy completed")
	}
}

func TestCopyToSelfFails(t *testing.T) {
	ch := New(8, true)
	if _, err := ch.CopyTo(ch, -1, true); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestTotalBytesWrittenIsMonotonic(t *testing.T) {
	ch := New(64, true)
	ch.WriteFully([]byte("abc"))
	ch.ReadFully(make([]byte, 3))
	ch.WriteFully([]byte("def"))
	if ch.TotalBytesWritten() != 6 {
		t.Fatalf("expected total 6, got %d", ch.TotalBytesWritten())
	}
}

func TestThrottledSinkPacesWrites(t *testing.T) {
	ch := NewThrottledSink(context.Background(), New(1024, true), 1024)
	start := time.Now()
	// First write consumes the initial burst instantly.
	if _, err := ch.WriteFully(make([]byte, 1024)); err != nil {
		t.Fatalf("WriteFully: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("expected first burst write to be fast, took %v", elapsed)
	}
}
