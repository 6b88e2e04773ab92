// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package bytechannel

import (
	"context"

	"golang.org/x/time/rate"
)

// maxBurstBytes bounds how much a single WriteFully call drains from
// the limiter at once, mirroring the teacher's ThrottledWriter chunking
// so a huge write doesn't demand an enormous token reservation.
const maxBurstBytes = 256 * 1024

// NewThrottledSink installs a token-bucket rate limiter on ch so that
// writes are paced to bytesPerSec bytes/second, generalizing
// internal/agent/throttle.go's io.Writer wrapper to this package's
// suspending channel. If bytesPerSec <= 0, ch is returned unchanged.
func NewThrottledSink(ctx context.Context, ch *ByteChannel, bytesPerSec int64) *ByteChannel {
	if bytesPerSec <= 0 {
		return ch
	}
	burst := int(bytesPerSec)
	if burst > maxBurstBytes {
		burst = maxBurstBytes
	}

	ch.mu.Lock()
	ch.limiter = rate.NewLimiter(rate.Limit(bytesPerSec), burst)
	ch.limiterCtx = ctx
	ch.mu.Unlock()

	return ch
}
