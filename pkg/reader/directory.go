package reader

import (
	"fmt"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ReadDirectory decodes every central directory file header in buf, in on-disk order.
//
// buf must hold exactly the central directory. Decoding stops once fewer than 46 bytes remain.
func ReadDirectory(buf []byte) ([]Entry, error) {
	var entries []Entry
	for offset := 0; len(buf)-offset >= directoryHeaderLen; {
		e, n, err := readDirectoryHeader(buf[offset:])
		if err != nil {
			return nil, fmt.Errorf("entry %d at offset %d: %w", len(entries), offset, err)
		}
		entries = append(entries, e)
		offset += n
	}
	return entries, nil
}

// readDirectoryHeader decodes one file header at the start of b and returns its total length.
func readDirectoryHeader(b []byte) (e Entry, n int, err error) {
	buf := readBuf(b[:directoryHeaderLen])
	if sig := buf.uint32(); sig != directoryHeaderSignature {
		return e, 0, fmt.Errorf("%w: header signature 0x%08x", ErrMalformedCentralDirectory, sig)
	}

	e.Flags = buf.skip(4).uint16()
	e.Method = buf.uint16()
	modifiedTime := buf.uint16()
	modifiedDate := buf.uint16()
	e.CRC32 = buf.uint32()
	compressedSize := buf.uint32()
	uncompressedSize := buf.uint32()
	filenameLen := int(buf.uint16())
	extraLen := int(buf.uint16())
	commentLen := int(buf.uint16())
	e.InternalAttrs = buf.skip(2).uint16()
	e.ExternalAttrs = buf.uint32()
	headerOffset := buf.uint32()

	n = directoryHeaderLen + filenameLen + extraLen + commentLen
	if n > len(b) {
		return e, 0, fmt.Errorf("%w: variable-length fields need %d bytes, only %d left",
			ErrMalformedCentralDirectory, n-directoryHeaderLen, len(b)-directoryHeaderLen)
	}
	if compressedSize == 0xffffffff || uncompressedSize == 0xffffffff || headerOffset == 0xffffffff {
		return e, 0, ErrZip64
	}

	d := b[directoryHeaderLen:n]
	e.Name = decodeString(d[:filenameLen], e.Flags)
	e.Comment = decodeString(d[filenameLen+extraLen:], e.Flags)
	e.Modified = msDosTimeToTime(modifiedDate, modifiedTime)
	e.CompressedSize = uint64(compressedSize)
	e.UncompressedSize = uint64(uncompressedSize)
	e.HeaderOffset = int64(headerOffset)
	e.NameLength = uint16(filenameLen)
	e.ExtraLength = uint16(extraLen)
	return e, n, nil
}

// decodeString converts a name or comment to a string. Bit 11 of the flags marks UTF-8; anything
// else is IBM Code Page 437 unless it happens to be valid UTF-8 already.
func decodeString(b []byte, flags uint16) string {
	if flags&flagUTF8 != 0 || utf8.Valid(b) {
		return string(b)
	}
	s, err := charmap.CodePage437.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// msDosTimeToTime converts an MS-DOS date and time into a time.Time.
// The resolution is 2s.
// See: https://learn.microsoft.com/en-us/windows/win32/api/winbase/nf-winbase-dosdatetimetofiletime
func msDosTimeToTime(dosDate, dosTime uint16) time.Time {
	return time.Date(
		// date bits 0-4: day of month; 5-8: month; 9-15: years since 1980
		int(dosDate>>9+1980),
		time.Month(dosDate>>5&0xf),
		int(dosDate&0x1f),

		// time bits 0-4: second/2; 5-10: minute; 11-15: hour
		int(dosTime>>11),
		int(dosTime>>5&0x3f),
		int(dosTime&0x1f*2),
		0, // nanoseconds

		time.UTC,
	)
}
