package reader

import "fmt"

// ReadLocalHeader decodes the fixed 30-byte local file header at the start of b.
//
// Only the name and extra lengths are needed to find the entry data; they are read from the local
// header itself because its extra field may differ in length from the central directory's.
func ReadLocalHeader(b []byte) (LocalHeader, error) {
	var h LocalHeader
	if len(b) < fileHeaderLen {
		return h, ErrTruncatedRecord
	}

	buf := readBuf(b[:fileHeaderLen])
	if sig := buf.uint32(); sig != fileHeaderSignature {
		return h, fmt.Errorf("%w: local file header signature 0x%08x", ErrFormat, sig)
	}

	h.ReaderVersion = buf.uint16()
	h.Flags = buf.uint16()
	h.Method = buf.uint16()
	h.CRC32 = buf.skip(4).uint32()
	h.CompressedSize = buf.uint32()
	h.UncompressedSize = buf.uint32()
	h.NameLength = buf.uint16()
	h.ExtraLength = buf.uint16()
	return h, nil
}
