package reader

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndexOf(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		pattern  []byte
		expected int
		last     int
	}{
		{
			name:     "single match",
			data:     []byte("xxxxPK\x05\x06yy"),
			pattern:  sigEOCD,
			expected: 4,
			last:     4,
		},
		{
			name:     "no match",
			data:     []byte("PK\x05\x05PK\x03\x04"),
			pattern:  sigEOCD,
			expected: -1,
			last:     -1,
		},
		{
			name:     "two matches",
			data:     []byte("PK\x05\x06--PK\x05\x06"),
			pattern:  sigEOCD,
			expected: 0,
			last:     6,
		},
		{
			name:     "self-overlapping pattern",
			data:     []byte("aaabaabaabaab"),
			pattern:  []byte("aabaab"),
			expected: 1,
			last:     7,
		},
		{
			name:     "partial match at end",
			data:     []byte("abcPK\x05"),
			pattern:  sigEOCD,
			expected: -1,
			last:     -1,
		},
		{
			name:     "empty data",
			data:     nil,
			pattern:  sigEOCD,
			expected: -1,
			last:     -1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IndexOf(tt.data, tt.pattern))
			assert.Equal(t, bytes.Index(tt.data, tt.pattern), IndexOf(tt.data, tt.pattern))
			assert.Equal(t, tt.last, LastIndexOf(tt.data, tt.pattern))
			assert.Equal(t, bytes.LastIndex(tt.data, tt.pattern), LastIndexOf(tt.data, tt.pattern))
		})
	}
}

func TestFindDirectoryEnd(t *testing.T) {
	t.Run("pattern only at p", func(t *testing.T) {
		b := make([]byte, 100)
		copy(b[50:], sigEOCD)
		binary.LittleEndian.PutUint16(b[70:], 100-72)

		assert.Equal(t, 50, FindDirectoryEnd(b))
	})

	t.Run("not found", func(t *testing.T) {
		assert.Equal(t, -1, FindDirectoryEnd(bytes.Repeat([]byte{0x50, 0x4b}, 100)))
		assert.Equal(t, -1, FindDirectoryEnd(nil))
	})

	t.Run("record not flush with end", func(t *testing.T) {
		b := make([]byte, 100)
		copy(b[50:], sigEOCD)
		binary.LittleEndian.PutUint16(b[70:], 3)

		assert.Equal(t, -1, FindDirectoryEnd(b))
	})

	t.Run("signature inside archive comment", func(t *testing.T) {
		comment := "release notes PK\x05\x06" + strings.Repeat("z", 40)
		data := buildZip(t, comment, testFile{name: "a.txt", body: "abcd"})
		window, _ := tailWindow(data)

		p := FindDirectoryEnd(window)
		assert.Equal(t, len(window)-directoryEndLen-len(comment), p)
		assert.Greater(t, LastIndexOf(window, sigEOCD), p, "the comment carries a later, spurious signature")
	})

	t.Run("signature inside entry comment and data", func(t *testing.T) {
		data := buildZip(t, "",
			testFile{name: "a.bin", body: "PK\x05\x06\x00\x00\x00\x00", comment: "PK\x05\x06"},
			testFile{name: "b.txt", body: "hello"})
		window, _ := tailWindow(data)

		p := FindDirectoryEnd(window)
		assert.Equal(t, len(window)-directoryEndLen, p)
		assert.Less(t, IndexOf(window, sigEOCD), p, "a forward scan would stop at the spurious signature")
	})
}
