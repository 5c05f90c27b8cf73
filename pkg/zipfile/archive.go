// Package zipfile extracts single entries from zip archives on remote servers without downloading
// the whole archive.
//
// Three regions of the archive are fetched with range requests: the tail window holding the end of
// central directory record, the central directory, and the local header plus data of one entry.
package zipfile

import (
	"context"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/alec-rabold/rangezip/pkg/reader"
	"github.com/alec-rabold/rangezip/pkg/transport"
)

var (
	// ErrInvalidArchive is wrapped by every error that means "not a readable remote zip".
	ErrInvalidArchive = errors.New("zipfile: not a valid remote zip archive")
	// ErrNotFound is returned by Find when no entry has the requested name.
	ErrNotFound = errors.New("zipfile: file not found in archive")
	// ErrCancelled is returned when a transfer stops because its context was cancelled.
	ErrCancelled = errors.New("zipfile: transfer cancelled")
)

// Archive is a zip archive on a remote server.
//
// An Archive is immutable after Open and safe for concurrent use.
type Archive struct {
	t    transport.RangeTransport
	loc  transport.Location
	size int64
}

// Open probes loc for its length. The returned Archive addresses the location the probe resolved
// to, so redirects are followed once and not again by later requests.
func Open(ctx context.Context, t transport.RangeTransport, loc transport.Location) (*Archive, error) {
	resolved, size, err := t.Probe(ctx, loc)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidArchive, resolved)
	}
	return &Archive{t: t, loc: resolved, size: size}, nil
}

// Location returns the resolved archive location.
func (a *Archive) Location() transport.Location { return a.loc }

// Size returns the archive length in bytes.
func (a *Archive) Size() int64 { return a.size }

// Entries reads the central directory and returns its entries in on-disk order.
//
// Any failure to locate or decode the directory yields a nil slice and an error wrapping both
// ErrInvalidArchive and the cause.
func (a *Archive) Entries(ctx context.Context) ([]reader.Entry, error) {
	entries, err := a.readEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidArchive, a.loc, err)
	}
	return entries, nil
}

// Find returns the entry named name.
func (a *Archive) Find(ctx context.Context, name string) (reader.Entry, error) {
	entries, err := a.Entries(ctx)
	if err != nil {
		return reader.Entry{}, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e, nil
		}
	}
	return reader.Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
}

func (a *Archive) readEntries(ctx context.Context) ([]reader.Entry, error) {
	d, err := a.readDirectoryEnd(ctx)
	if err != nil {
		return nil, err
	}

	entries := []reader.Entry{}
	if d.DirectorySize > 0 {
		cd, err := a.fetch(ctx, int64(d.DirectoryOffset), int64(d.DirectorySize))
		if err != nil {
			return nil, fmt.Errorf("read central directory: %w", err)
		}
		if entries, err = reader.ReadDirectory(cd); err != nil {
			return nil, err
		}
	}
	if len(entries) != int(d.EntryCount) {
		return nil, fmt.Errorf("%w: end record declares %d entries, found %d",
			reader.ErrMalformedCentralDirectory, d.EntryCount, len(entries))
	}

	log.WithFields(log.Fields{"url": a.loc.URL, "entries": len(entries)}).Debug("read central directory")
	return entries, nil
}

// readDirectoryEnd fetches exactly min(TailWindowSize, size) trailing bytes and decodes the EOCD
// record found in them.
func (a *Archive) readDirectoryEnd(ctx context.Context) (*reader.DirectoryEnd, error) {
	n := min(int64(reader.TailWindowSize), a.size)
	offset := a.size - n

	window, err := a.fetch(ctx, offset, n)
	if err != nil {
		return nil, fmt.Errorf("read tail window: %w", err)
	}
	d, err := reader.ReadDirectoryEnd(window, offset, a.size)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"url":              a.loc.URL,
		"eocd_offset":      d.Offset,
		"directory_offset": d.DirectoryOffset,
		"directory_size":   d.DirectorySize,
		"entries":          d.EntryCount,
	}).Debug("found end of central directory")
	return d, nil
}

// fetch reads length bytes starting at offset. A short body is an error.
func (a *Archive) fetch(ctx context.Context, offset, length int64) ([]byte, error) {
	rc, err := a.t.GetRange(ctx, a.loc, offset, offset+length-1)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	b := make([]byte, length)
	if _, err := io.ReadFull(rc, b); err != nil {
		return nil, fmt.Errorf("read %d bytes at offset %d: %w", length, offset, err)
	}
	return b, nil
}
