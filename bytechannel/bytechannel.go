// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package bytechannel implements a suspending, bounded-capacity byte
// stream with a write half and a read half. The spec's cooperative
// single-threaded scheduling model is realized here with a
// sync.Mutex/sync.Cond pair exactly the way the teacher's
// internal/agent/ringbuffer.go blocks producers and consumers — a
// goroutine that cannot make progress waits on a condition variable
// instead of yielding to a coroutine scheduler.
package bytechannel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nishisan-dev/go-protocol-core/ringbuffer"
	"golang.org/x/time/rate"
)

// ErrInvalidArgument is returned for malformed call arguments (e.g.
// copyTo(self)).
var ErrInvalidArgument = errors.New("bytechannel: invalid argument")

// EndOfStream is returned by ReadFully when the channel closes before
// the requested number of bytes arrived.
type EndOfStream struct {
	Expected int
	Got      int
}

func (e *EndOfStream) Error() string {
	return fmt.Sprintf("bytechannel: end of stream: expected %d bytes, got %d", e.Expected, e.Got)
}

// ByteChannel is a bounded, backpressured, single-reader/single-writer
// byte stream. Bytes are delivered to the reader in the exact order
// they were appended by the writer.
type ByteChannel struct {
	mu sync.Mutex

	committed *ringbuffer.RingBuffer // bytes visible to the reader
	pending   []byte                 // buffered, not-yet-flushed writes (autoFlush==false)
	capacity  int

	autoFlush         bool
	closedForWrite    bool
	closeCause        error
	totalBytesWritten int64

	notFull  sync.Cond
	notEmpty sync.Cond

	// Optional write-rate limiter installed by NewThrottledSink.
	limiter    *rate.Limiter
	limiterCtx context.Context
}

// New creates a ByteChannel with the given capacity (bytes that may be
// in flight, committed+pending, at once) and autoFlush mode.
func New(capacity int, autoFlush bool) *ByteChannel {
	bc := &ByteChannel{
		committed: ringbuffer.New(capacity),
		capacity:  capacity,
		autoFlush: autoFlush,
	}
	bc.notFull.L = &bc.mu
	bc.notEmpty.L = &bc.mu
	return bc
}

// AutoFlush reports whether writes become visible to readers immediately.
func (bc *ByteChannel) AutoFlush() bool {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.autoFlush
}

// ClosedForWrite reports whether close()/cancel() has been called.
func (bc *ByteChannel) ClosedForWrite() bool {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.closedForWrite
}

// ClosedForRead reports whether the channel is closed and every
// buffered byte has been consumed.
func (bc *ByteChannel) ClosedForRead() bool {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.closedForWrite && bc.committed.ReadRemaining() == 0 && len(bc.pending) == 0
}

// TotalBytesWritten returns the monotonic count of bytes ever written.
func (bc *ByteChannel) TotalBytesWritten() int64 {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.totalBytesWritten
}

// AvailableForRead returns the number of bytes currently committed and
// ready to read.
func (bc *ByteChannel) AvailableForRead() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.committed.ReadRemaining()
}

// usedLocked returns committed+pending bytes currently occupying
// capacity. Must be called with bc.mu held.
func (bc *ByteChannel) usedLocked() int {
	return bc.committed.ReadRemaining() + len(bc.pending)
}

// WriteByte appends a single byte, suspending if the buffer is full.
func (bc *ByteChannel) WriteByte(b byte) error {
	_, err := bc.WriteFully([]byte{b})
	return err
}

// WriteFully appends all of p, suspending as needed while the buffer is
// full, until the channel is closed. If a rate limiter was installed
// via NewThrottledSink, each chunk additionally waits for tokens before
// being committed, with the mutex released during that wait so readers
// are never blocked by the pacing.
func (bc *ByteChannel) WriteFully(p []byte) (int, error) {
	written := 0
	bc.mu.Lock()
	defer bc.mu.Unlock()

	for written < len(p) {
		for bc.usedLocked() >= bc.capacity && !bc.closedForWrite {
			bc.notFull.Wait()
		}
		if bc.closedForWrite {
			return written, fmt.Errorf("bytechannel: write after close: %w", bc.closeErrLocked())
		}

		space := bc.capacity - bc.usedLocked()
		chunk := len(p) - written
		if chunk > space {
			chunk = space
		}
		if chunk == 0 {
			continue
		}

		if bc.limiter != nil {
			if burst := bc.limiter.Burst(); chunk > burst {
				chunk = burst
			}
			limiter, ctx := bc.limiter, bc.limiterCtx
			bc.mu.Unlock()
			waitErr := limiter.WaitN(ctx, chunk)
			bc.mu.Lock()
			if waitErr != nil {
				return written, fmt.Errorf("bytechannel: rate limiter wait: %w", waitErr)
			}
			if bc.closedForWrite {
				return written, fmt.Errorf("bytechannel: write after close: %w", bc.closeErrLocked())
			}
		}

		if bc.autoFlush {
			bc.committed.Compact()
			if err := bc.committed.WriteFully(p[written:written+chunk], 0, chunk); err != nil {
				return written, err
			}
			bc.notEmpty.Broadcast()
		} else {
			bc.pending = append(bc.pending, p[written:written+chunk]...)
		}

		written += chunk
		bc.totalBytesWritten += int64(chunk)
		bc.notFull.Broadcast()
	}
	return written, nil
}

// WriteUtf8 UTF-8 encodes s and writes it.
func (bc *ByteChannel) WriteUtf8(s string) error {
	_, err := bc.WriteFully([]byte(s))
	return err
}

// Flush publishes buffered (pending) writes so they become available to
// readers.
func (bc *ByteChannel) Flush() error {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.flushLocked()
}

func (bc *ByteChannel) flushLocked() error {
	if len(bc.pending) == 0 {
		return nil
	}
	bc.committed.Compact()
	if err := bc.committed.WriteFully(bc.pending, 0, len(bc.pending)); err != nil {
		return fmt.Errorf("bytechannel: flush: %w", err)
	}
	bc.pending = bc.pending[:0]
	bc.notEmpty.Broadcast()
	return nil
}

// Close transitions the channel to closedForWrite, flushing any
// buffered writes first so they remain readable. Close is idempotent.
// cause, if non-nil, is returned (wrapped) to writers that write after
// the close. Readers are not given cause: once the buffered bytes are
// drained, ReadFully fails with *EndOfStream and ReadAvailable returns -1.
func (bc *ByteChannel) Close(cause error) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if bc.closedForWrite {
		return nil
	}
	if err := bc.flushLocked(); err != nil {
		return err
	}
	bc.closedForWrite = true
	bc.closeCause = cause
	bc.notFull.Broadcast()
	bc.notEmpty.Broadcast()
	return nil
}

// Cancel closes both halves immediately, discarding any unread bytes.
// cause (or a generic cancellation error when nil) is returned to
// pending and future writers. Readers are not given cause: ReadFully
// fails with *EndOfStream and ReadAvailable returns -1.
func (bc *ByteChannel) Cancel(cause error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.pending = nil
	bc.committed.Reset()
	bc.closedForWrite = true
	if cause == nil {
		cause = errors.New("bytechannel: cancelled")
	}
	bc.closeCause = cause
	bc.notFull.Broadcast()
	bc.notEmpty.Broadcast()
}

func (bc *ByteChannel) closeErrLocked() error {
	if bc.closeCause != nil {
		return bc.closeCause
	}
	return errors.New("bytechannel: closed")
}

// ReadByte reads a single byte, suspending until one is available or
// the channel closes.
func (bc *ByteChannel) ReadByte() (byte, error) {
	var b [1]byte
	if err := bc.ReadFully(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadFully reads exactly len(dst) bytes, suspending as needed. If the
// channel closes before enough bytes arrive, returns *EndOfStream.
func (bc *ByteChannel) ReadFully(dst []byte) error {
	read := 0
	bc.mu.Lock()
	defer bc.mu.Unlock()

	for read < len(dst) {
		for bc.committed.ReadRemaining() == 0 && !bc.closedForWrite {
			bc.notEmpty.Wait()
		}
		if bc.committed.ReadRemaining() == 0 && bc.closedForWrite {
			return &EndOfStream{Expected: len(dst), Got: read}
		}
		n, err := bc.committed.ReadAvailable(dst, read, len(dst)-read)
		if err != nil {
			return err
		}
		if n > 0 {
			read += n
			bc.notFull.Broadcast()
		}
	}
	return nil
}

// ReadAvailable reads up to len(dst) bytes without requiring the full
// length, suspending only while nothing is available yet and the
// channel is still open. Returns -1 once the channel is closed and
// empty.
func (bc *ByteChannel) ReadAvailable(dst []byte) (int, error) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	for bc.committed.ReadRemaining() == 0 && !bc.closedForWrite {
		bc.notEmpty.Wait()
	}
	if bc.committed.ReadRemaining() == 0 {
		return -1, nil
	}
	n, err := bc.committed.ReadAvailable(dst, 0, len(dst))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		bc.notFull.Broadcast()
	}
	return n, nil
}

// ReadAll reads until the channel closes and returns everything read.
func (bc *ByteChannel) ReadAll() ([]byte, error) {
	var out []byte
	buf := make([]byte, 32*1024)
	for {
		n, err := bc.ReadAvailable(buf)
		if n == -1 {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, buf[:n]...)
	}
}

// CopyTo pumps bytes from bc to dst until bc closes or limit bytes have
// been copied (limit < 0 means unlimited). If closeDst is true and bc
// ran to completion (not limit-bounded), dst is closed when done. Bytes
// already committed are taken straight from the ring's readable region
// (copied once into a fresh slice before the lock is released);
// otherwise a small intermediate buffer filled by ReadAvailable is the
// transfer path.
func (bc *ByteChannel) CopyTo(dst *ByteChannel, limit int64, closeDst bool) (int64, error) {
	if dst == bc {
		return 0, fmt.Errorf("bytechannel: copyTo(self): %w", ErrInvalidArgument)
	}

	var total int64
	buf := make([]byte, 32*1024)
	for limit < 0 || total < limit {
		want := len(buf)
		if limit >= 0 {
			remaining := limit - total
			if remaining < int64(want) {
				want = int(remaining)
			}
		}

		bc.mu.Lock()
		if direct := bc.committed.Bytes(); len(direct) > 0 {
			n := len(direct)
			if n > want {
				n = want
			}
			chunk := append([]byte(nil), direct[:n]...)
			bc.committed.Discard(n)
			bc.notFull.Broadcast()
			bc.mu.Unlock()

			if _, err := dst.WriteFully(chunk); err != nil {
				return total, err
			}
			total += int64(n)
			continue
		}
		bc.mu.Unlock()

		n, err := bc.ReadAvailable(buf[:want])
		if n == -1 {
			if closeDst && (limit < 0 || total == limit) {
				dst.Close(nil)
			}
			return total, nil
		}
		if err != nil {
			return total, err
		}
		if n > 0 {
			if _, err := dst.WriteFully(buf[:n]); err != nil {
				return total, err
			}
			total += int64(n)
		}
	}
	return total, nil
}
