package reader

import "fmt"

// ReadDirectoryEnd locates and decodes the EOCD record in the tail window of an archive.
//
// window holds the last bytes of the archive, windowOffset is the absolute offset of window[0] and
// archiveSize the total archive length.
func ReadDirectoryEnd(window []byte, windowOffset, archiveSize int64) (*DirectoryEnd, error) {
	p := FindDirectoryEnd(window)
	if p < 0 {
		// a bare signature too close to the end is a cut-off record rather than a missing one.
		if q := eocdMatcher.lastIndex(window); q >= 0 && q+directoryEndLen > len(window) {
			return nil, ErrTruncatedRecord
		}
		return nil, ErrSignatureNotFound
	}

	d, err := DecodeDirectoryEnd(window, p)
	if err != nil {
		return nil, err
	}
	d.Offset = windowOffset + int64(p)

	if d.EntryCount == 0xffff || d.DirectorySize == 0xffffffff || d.DirectoryOffset == 0xffffffff {
		return nil, ErrZip64
	}
	if d.DiskNumber != 0 || d.DirectoryDisk != 0 {
		return nil, fmt.Errorf("%w: spanned archive (disk %d, directory disk %d)", ErrFormat, d.DiskNumber, d.DirectoryDisk)
	}

	// Make sure the directory lies before the EOCD record and inside our file.
	if d.Offset > archiveSize || int64(d.DirectoryOffset)+int64(d.DirectorySize) > d.Offset {
		return nil, fmt.Errorf("%w: central directory (offset %d, size %d) overlaps end record at %d",
			ErrFormat, d.DirectoryOffset, d.DirectorySize, d.Offset)
	}

	return d, nil
}

// DecodeDirectoryEnd decodes the fixed 22-byte EOCD record whose signature starts at b[p].
func DecodeDirectoryEnd(b []byte, p int) (*DirectoryEnd, error) {
	if p < 0 || len(b)-p < directoryEndLen {
		return nil, ErrTruncatedRecord
	}

	buf := readBuf(b[p:])
	if sig := buf.uint32(); sig != directoryEndSignature {
		return nil, ErrSignatureNotFound
	}

	d := &DirectoryEnd{
		DiskNumber:      buf.uint16(),
		DirectoryDisk:   buf.uint16(),
		DiskEntryCount:  buf.uint16(),
		EntryCount:      buf.uint16(),
		DirectorySize:   buf.uint32(),
		DirectoryOffset: buf.uint32(),
		CommentLength:   buf.uint16(),
	}

	l := int(d.CommentLength)
	if l > len(buf) {
		return nil, ErrCommentLength
	}
	d.Comment = string(buf[:l])

	return d, nil
}
