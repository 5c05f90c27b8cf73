package zipfile

import (
	"context"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/alec-rabold/rangezip/pkg/reader"
)

// DefaultBufferSize is the chunk size used by Download unless DownloadOptions.BufferSize is set.
const DefaultBufferSize = 32 * 1024

// State is the lifecycle of a single transfer.
type State int

const (
	Idle State = iota
	RangeRequested
	Transferring
	Completed
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RangeRequested:
		return "range-requested"
	case Transferring:
		return "transferring"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Done reports whether s is terminal.
func (s State) Done() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// DownloadOptions customises Download.
type DownloadOptions struct {
	// BufferSize is the size of the chunks copied to the destination. Default to DefaultBufferSize.
	BufferSize int

	// Progress is called after every chunk with the bytes written so far, the bytes in this chunk
	// and the uncompressed size of the entry.
	Progress func(bytesSoFar, bytesThisChunk, total int64)

	// Limiter throttles the transfer, one token per uncompressed byte.
	Limiter *rate.Limiter

	// SingleRequest fetches the local header and the data with one request instead of two. If the
	// local header turns out not to match the central directory, a second request is made anyway.
	SingleRequest bool

	// OnState is called on every state change.
	OnState func(State)
}

type transfer struct {
	name  string
	state State
	opts  *DownloadOptions
}

func (t *transfer) set(s State) {
	log.WithFields(log.Fields{"name": t.name, "from": t.state, "to": s}).Debug("transfer state")
	t.state = s
	if t.opts.OnState != nil {
		t.opts.OnState(s)
	}
}

// fail moves the transfer to Cancelled or Failed depending on ctx and returns the error to report.
func (t *transfer) fail(ctx context.Context, err error) error {
	if errors.Is(err, ErrCancelled) {
		t.set(Cancelled)
		return err
	}
	if ctx.Err() != nil {
		t.set(Cancelled)
		return cancelled(ctx)
	}
	t.set(Failed)
	return fmt.Errorf("download %s: %w", t.name, err)
}

// Download writes the uncompressed contents of e to dst and returns the number of bytes written.
//
// Directories and empty entries are completed without any request. The data is checked against the
// size and CRC-32 recorded in the central directory. On cancellation ErrCancelled is returned and
// whatever was already written to dst is left there.
func (a *Archive) Download(ctx context.Context, e reader.Entry, dst io.Writer, optFns ...func(*DownloadOptions)) (int64, error) {
	opts := &DownloadOptions{BufferSize: DefaultBufferSize}
	for _, fn := range optFns {
		fn(opts)
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	t := &transfer{name: e.Name, state: Idle, opts: opts}

	if e.IsDir() {
		t.set(Completed)
		return 0, nil
	}
	if e.CompressedSize == 0 {
		if e.UncompressedSize != 0 {
			return 0, t.fail(ctx, fmt.Errorf("%w: no data for %d uncompressed bytes", reader.ErrFormat, e.UncompressedSize))
		}
		t.set(Completed)
		return 0, nil
	}

	t.set(RangeRequested)
	body, err := a.openData(ctx, e, opts.SingleRequest)
	if err != nil {
		return 0, t.fail(ctx, err)
	}
	defer body.Close()

	fr, err := reader.Open(e, body)
	if err != nil {
		return 0, t.fail(ctx, err)
	}
	defer fr.Close()

	t.set(Transferring)
	n, err := copyChunks(ctx, dst, fr, int64(e.UncompressedSize), opts)
	if err != nil {
		return n, t.fail(ctx, err)
	}

	t.set(Completed)
	log.WithFields(log.Fields{"name": e.Name, "bytes": n}).Debug("download complete")
	return n, nil
}
