// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package iosource unifies reads/writes over in-memory byte buffers and
// bytechannel.ByteChannel streams behind a single Source/Sink contract,
// the way internal/server/assembler.go and chunkbuffer.go in the
// teacher handle a backup chunk whether it arrived as one full buffer
// or as a streamed sequence of smaller writes.
package iosource

import (
	"errors"

	"github.com/nishisan-dev/go-protocol-core/bytechannel"
)

// ErrCancelled is returned by read operations after Cancel has been called.
var ErrCancelled = errors.New("iosource: cancelled")

// Source is a read-only view over bytes, either bounded (backed by a
// finite byte array, restartable by construction) or streaming
// (one-shot, backed by a ByteChannel, possibly unbounded).
type Source interface {
	// ReadAvailable reads up to len(dst) bytes, returning -1 once the
	// source is exhausted.
	ReadAvailable(dst []byte) (int, error)
	// ReadFully reads exactly len(dst) bytes or fails.
	ReadFully(dst []byte) error
	// ReadAll drains the source to completion.
	ReadAll() ([]byte, error)
	// Cancel releases any underlying resources and ends further reads.
	// BoundedSource then fails them with ErrCancelled (or the given
	// cause, if non-nil); ChannelSource reports them as end of stream.
	Cancel(cause error)
}

// Sink is the write-side counterpart of Source.
type Sink interface {
	WriteFully(p []byte) (int, error)
	Flush() error
	Close(cause error) error
}

// BoundedSource is a restartable Source over a fixed byte slice.
type BoundedSource struct {
	data      []byte
	pos       int
	cancelled bool
	cause     error
}

// NewBoundedSource creates a Source over the given bytes. The slice is
// not copied; callers must not mutate it while the source is in use.
func NewBoundedSource(data []byte) *BoundedSource {
	return &BoundedSource{data: data}
}

// Reset rewinds the source to the beginning, making it restartable.
func (s *BoundedSource) Reset() {
	s.pos = 0
	s.cancelled = false
	s.cause = nil
}

// Len returns the total number of bytes backing this source.
func (s *BoundedSource) Len() int { return len(s.data) }

func (s *BoundedSource) ReadAvailable(dst []byte) (int, error) {
	if s.cancelled {
		return 0, s.cancelErr()
	}
	if s.pos >= len(s.data) {
		return -1, nil
	}
	n := copy(dst, s.data[s.pos:])
	s.pos += n
	return n, nil
}

func (s *BoundedSource) ReadFully(dst []byte) error {
	if s.cancelled {
		return s.cancelErr()
	}
	n := copy(dst, s.data[s.pos:])
	s.pos += n
	if n < len(dst) {
		return &bytechannel.EndOfStream{Expected: len(dst), Got: n}
	}
	return nil
}

func (s *BoundedSource) ReadAll() ([]byte, error) {
	if s.cancelled {
		return nil, s.cancelErr()
	}
	out := append([]byte(nil), s.data[s.pos:]...)
	s.pos = len(s.data)
	return out, nil
}

func (s *BoundedSource) Cancel(cause error) {
	s.cancelled = true
	s.cause = cause
}

func (s *BoundedSource) cancelErr() error {
	if s.cause != nil {
		return s.cause
	}
	return ErrCancelled
}

// ChannelSource is a one-shot streaming Source backed by a ByteChannel.
type ChannelSource struct {
	ch *bytechannel.ByteChannel
}

// NewChannelSource wraps ch as a Source.
func NewChannelSource(ch *bytechannel.ByteChannel) *ChannelSource {
	return &ChannelSource{ch: ch}
}

func (s *ChannelSource) ReadAvailable(dst []byte) (int, error) {
	return s.ch.ReadAvailable(dst)
}

func (s *ChannelSource) ReadFully(dst []byte) error {
	return s.ch.ReadFully(dst)
}

func (s *ChannelSource) ReadAll() ([]byte, error) {
	return s.ch.ReadAll()
}

// Cancel cancels the underlying channel with cause. Later reads do not
// fail with ErrCancelled or cause: ReadFully fails with
// *bytechannel.EndOfStream, ReadAvailable returns -1, and ReadAll
// returns with a nil error.
func (s *ChannelSource) Cancel(cause error) {
	s.ch.Cancel(cause)
}

// ChannelSink is a Sink backed by a ByteChannel.
type ChannelSink struct {
	ch *bytechannel.ByteChannel
}

// NewChannelSink wraps ch as a Sink.
func NewChannelSink(ch *bytechannel.ByteChannel) *ChannelSink {
	return &ChannelSink{ch: ch}
}

func (s *ChannelSink) WriteFully(p []byte) (int, error) { return s.ch.WriteFully(p) }
func (s *ChannelSink) Flush() error                      { return s.ch.Flush() }
func (s *ChannelSink) Close(cause error) error           { return s.ch.Close(cause) }
