package zipfile

import (
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/alec-rabold/rangezip/pkg/reader"
)

// openData returns a body positioned at the first byte of the entry's compressed data and holding
// exactly CompressedSize bytes, as recorded in the central directory.
//
// The local header is read only for its own name and extra lengths, which may differ from the
// central directory's; its sizes and CRC-32 are ignored.
func (a *Archive) openData(ctx context.Context, e reader.Entry, singleRequest bool) (io.ReadCloser, error) {
	if singleRequest {
		rc, ok, err := a.openDataSingle(ctx, e)
		if err != nil || ok {
			return rc, err
		}
		log.WithFields(log.Fields{"name": e.Name}).Debug("local header differs from central directory, refetching")
	}

	b, err := a.fetch(ctx, e.HeaderOffset, reader.LocalHeaderLen)
	if err != nil {
		return nil, fmt.Errorf("read local header: %w", err)
	}
	h, err := reader.ReadLocalHeader(b)
	if err != nil {
		return nil, err
	}

	start := h.DataOffset(e.HeaderOffset)
	end := start + int64(e.CompressedSize) - 1
	if end >= a.size {
		return nil, fmt.Errorf("%w: data of %s (%d-%d) runs past the end of the archive (%d)",
			reader.ErrFormat, e.Name, start, end, a.size)
	}
	return a.t.GetRange(ctx, a.loc, start, end)
}

// openDataSingle fetches the local header and the data with one request, sized on the assumption
// that the local header repeats the central directory's name and extra lengths. ok is false when
// it does not and the body has been discarded.
func (a *Archive) openDataSingle(ctx context.Context, e reader.Entry) (rc io.ReadCloser, ok bool, err error) {
	start := e.HeaderOffset
	end := start + reader.LocalHeaderLen + int64(e.NameLength) + int64(e.ExtraLength) + int64(e.CompressedSize) - 1
	if end >= a.size {
		return nil, false, nil
	}

	body, err := a.t.GetRange(ctx, a.loc, start, end)
	if err != nil {
		return nil, false, err
	}

	b := make([]byte, reader.LocalHeaderLen)
	if _, err := io.ReadFull(body, b); err != nil {
		body.Close()
		return nil, false, fmt.Errorf("read local header: %w", err)
	}
	h, err := reader.ReadLocalHeader(b)
	if err != nil {
		body.Close()
		return nil, false, err
	}
	if h.NameLength != e.NameLength || h.ExtraLength != e.ExtraLength {
		body.Close()
		return nil, false, nil
	}

	skip := int64(h.NameLength) + int64(h.ExtraLength)
	if _, err := io.CopyN(io.Discard, body, skip); err != nil {
		body.Close()
		return nil, false, fmt.Errorf("skip local header fields: %w", err)
	}
	return body, true, nil
}
