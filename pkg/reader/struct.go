package reader

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrFormat indicates the file's format not conforming to zip specification
	ErrFormat = errors.New("zip: not a valid zip file")
	// ErrSignatureNotFound indicates the EOCD signature is missing from the scanned window
	ErrSignatureNotFound = errors.New("zip: unable to locate end of central directory")
	// ErrTruncatedRecord indicates a fixed-size record runs past the end of its buffer
	ErrTruncatedRecord = errors.New("zip: truncated record")
	// ErrCommentLength indicates an invalid comment length
	ErrCommentLength = errors.New("zip: invalid comment length")
	// ErrMalformedCentralDirectory indicates a structural inconsistency in the central directory
	ErrMalformedCentralDirectory = errors.New("zip: malformed central directory")
	// ErrZip64 indicates the archive needs ZIP64 extensions, which are not supported
	ErrZip64 = errors.New("zip: zip64 archives are not supported")
	// ErrAlgorithm indicates an invalid/unsupported compression algorithm
	ErrAlgorithm = errors.New("zip: unsupported compression algorithm")
	// ErrEncrypted indicates the entry is encrypted
	ErrEncrypted = errors.New("zip: encrypted entries are not supported")
	// ErrChecksum indicates the decompressed data does not match the recorded size or CRC-32
	ErrChecksum = errors.New("zip: checksum error")
)

const (
	directoryEndLen    = 22
	directoryHeaderLen = 46
	fileHeaderLen      = 30 // + filename + extra

	directoryEndSignature    = 0x06054b50
	directoryHeaderSignature = 0x02014b50
	fileHeaderSignature      = 0x04034b50

	// TailWindowSize is the number of trailing bytes scanned for the EOCD record.
	TailWindowSize = 4096
	// LocalHeaderLen is the fixed part of a local file header.
	LocalHeaderLen = fileHeaderLen

	flagEncrypted = 0x1
	flagUTF8      = 0x800
)

// Compression methods.
const (
	Store   uint16 = 0 // no compression
	Deflate uint16 = 8 // DEFLATE compressed
)

// Entry describes a file within a zip archive as recorded in its central directory.
//
// Entry is a plain value: it holds copies of every field and no reference to the buffer it was
// decoded from, so it is safe to share between goroutines and to download any number of times.
type Entry struct {
	// Name is the name of the file, decoded as UTF-8 or CP437 depending on the entry flags.
	//
	// A trailing slash indicates that this file is a directory and has no data.
	Name string

	// Comment is the per-entry comment.
	Comment string

	Flags uint16

	// Method is the compression method, Store or Deflate.
	Method uint16

	Modified time.Time

	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64

	InternalAttrs uint16
	ExternalAttrs uint32

	// HeaderOffset is the offset of the local file header, relative to the start of the archive.
	HeaderOffset int64

	// NameLength is the raw name length recorded in the central directory.
	NameLength uint16

	// ExtraLength is the extra field length recorded in the central directory. The local header
	// may record a different value for the same entry.
	ExtraLength uint16
}

// IsDir reports whether the entry names a directory.
func (e Entry) IsDir() bool {
	return strings.HasSuffix(e.Name, "/")
}

// IsEncrypted reports whether the entry data is encrypted.
func (e Entry) IsEncrypted() bool {
	return e.Flags&flagEncrypted != 0
}

// DirectoryEnd describes an EOCD record
type DirectoryEnd struct {
	DiskNumber      uint16
	DirectoryDisk   uint16
	DiskEntryCount  uint16
	EntryCount      uint16
	DirectorySize   uint32
	DirectoryOffset uint32 // relative to file
	CommentLength   uint16
	Comment         string

	// Offset is the absolute position of the EOCD signature within the archive.
	Offset int64
}

// LocalHeader is the fixed part of a local file header.
//
// Sizes and CRC-32 are kept for diagnostics only; the central directory is authoritative.
type LocalHeader struct {
	ReaderVersion    uint16
	Flags            uint16
	Method           uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	NameLength       uint16
	ExtraLength      uint16
}

// DataOffset returns the offset of the entry data for a local header that starts at headerOffset.
func (h LocalHeader) DataOffset(headerOffset int64) int64 {
	return headerOffset + fileHeaderLen + int64(h.NameLength) + int64(h.ExtraLength)
}
