package reader

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type testFile struct {
	name    string
	body    string
	method  uint16
	comment string
}

// buildZip writes an archive with archive/zip so fixtures stay readable in the test source.
func buildZip(t *testing.T, comment string, files ...testFile) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: f.name, Method: f.method, Comment: f.comment})
		require.NoError(t, err)
		_, err = io.WriteString(fw, f.body)
		require.NoError(t, err)
	}
	if comment != "" {
		require.NoError(t, w.SetComment(comment))
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// tailWindow returns the trailing window of b the same way it is fetched from a server.
func tailWindow(b []byte) ([]byte, int64) {
	n := min(len(b), TailWindowSize)
	return b[len(b)-n:], int64(len(b) - n)
}

func centralDirectory(t *testing.T, b []byte) []byte {
	t.Helper()

	window, offset := tailWindow(b)
	d, err := ReadDirectoryEnd(window, offset, int64(len(b)))
	require.NoError(t, err)
	return b[d.DirectoryOffset : d.DirectoryOffset+d.DirectorySize]
}
