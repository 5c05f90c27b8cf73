package zipfile

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/time/rate"
)

// copyChunks copies src to dst one buffer at a time. After every chunk it reports progress and
// then checks ctx; cancellation stops the copy with ErrCancelled.
func copyChunks(ctx context.Context, dst io.Writer, src io.Reader, total int64, opts *DownloadOptions) (int64, error) {
	buf := make([]byte, opts.BufferSize)
	var written int64
	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			if err := waitN(ctx, opts.Limiter, nr); err != nil {
				if ctx.Err() != nil {
					return written, cancelled(ctx)
				}
				return written, err
			}
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, fmt.Errorf("write: %w", werr)
			}
			if nw != nr {
				return written, fmt.Errorf("write: %w", io.ErrShortWrite)
			}
			if opts.Progress != nil {
				opts.Progress(written, int64(nr), total)
			}
			if ctx.Err() != nil {
				return written, cancelled(ctx)
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return written, cancelled(ctx)
			}
			return written, rerr
		}
	}
}

// waitN waits for n tokens, in pieces no larger than the limiter's burst.
func waitN(ctx context.Context, l *rate.Limiter, n int) error {
	if l == nil || l.Limit() == rate.Inf {
		return nil
	}
	burst := l.Burst()
	if burst <= 0 {
		return fmt.Errorf("rate limiter with zero burst")
	}
	for n > 0 {
		k := min(n, burst)
		if err := l.WaitN(ctx, k); err != nil {
			return err
		}
		n -= k
	}
	return nil
}

func cancelled(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCancelled, context.Cause(ctx))
}
