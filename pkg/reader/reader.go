package reader

import (
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
)

// FileReader decompresses entry data and verifies it against the size and CRC-32 recorded in the
// central directory.
type FileReader struct {
	rc    io.ReadCloser
	hash  hash.Hash32
	nread uint64 // number of bytes read so far
	entry Entry
	err   error // sticky error
}

var _ io.ReadCloser = (*FileReader)(nil)

// Open returns a ReadCloser that provides access to the entry's contents, given a reader positioned
// at the start of the entry's compressed data.
//
// Data past the recorded uncompressed size is ignored.
func Open(e Entry, r io.Reader) (*FileReader, error) {
	if e.IsEncrypted() {
		return nil, ErrEncrypted
	}
	dcomp := decompressor(e.Method)
	if dcomp == nil {
		return nil, fmt.Errorf("%w: method %d", ErrAlgorithm, e.Method)
	}
	return &FileReader{
		rc:    dcomp(r),
		hash:  crc32.NewIEEE(),
		entry: e,
	}, nil
}

func (r *FileReader) Read(b []byte) (n int, err error) {
	if r.err != nil {
		return 0, r.err
	}
	if remaining := r.entry.UncompressedSize - r.nread; remaining == 0 {
		r.err = r.verify()
		return 0, r.err
	} else if uint64(len(b)) > remaining {
		b = b[:remaining]
	}
	n, err = r.rc.Read(b)
	r.hash.Write(b[:n])
	r.nread += uint64(n)
	if err == nil {
		return
	}
	if err == io.EOF {
		if verr := r.verify(); verr != nil {
			err = verr
		}
	}
	r.err = err
	return
}

func (r *FileReader) verify() error {
	if r.nread != r.entry.UncompressedSize {
		return io.ErrUnexpectedEOF
	}
	if sum := r.hash.Sum32(); sum != r.entry.CRC32 {
		return fmt.Errorf("%w: crc32 mismatch (expected 0x%08x, got 0x%08x)", ErrChecksum, r.entry.CRC32, sum)
	}
	return io.EOF
}

// Close implements io.ReadCloser
func (r *FileReader) Close() error { return r.rc.Close() }

type readBuf []byte

func (b *readBuf) uint16() uint16 {
	v := binary.LittleEndian.Uint16(*b)
	*b = (*b)[2:]
	return v
}

func (b *readBuf) uint32() uint32 {
	v := binary.LittleEndian.Uint32(*b)
	*b = (*b)[4:]
	return v
}

func (b *readBuf) skip(n int) *readBuf {
	*b = (*b)[n:]
	return b
}
