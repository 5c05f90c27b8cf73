package zipfile_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alec-rabold/rangezip/pkg/transport"
	"github.com/alec-rabold/rangezip/pkg/zipfile"
)

type testFile struct {
	name   string
	body   string
	method uint16
}

func buildZip(t *testing.T, comment string, files ...testFile) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: f.name, Method: f.method})
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

// rawEntry is a STORED entry written byte by byte, so that local and central records can disagree.
type rawEntry struct {
	name         string
	body         string
	localExtra   int
	centralExtra int
	badCRC       bool
}

func rawZip(entries ...rawEntry) []byte {
	le := binary.LittleEndian
	var out, cd []byte
	for _, e := range entries {
		crc := crc32.ChecksumIEEE([]byte(e.body))
		if e.badCRC {
			crc ^= 0xffffffff
		}
		offset := uint32(len(out))

		out = le.AppendUint32(out, 0x04034b50)
		out = le.AppendUint16(out, 20) // version needed
		out = le.AppendUint16(out, 0)  // flags
		out = le.AppendUint16(out, 0)  // method
		out = le.AppendUint32(out, 0)  // time, date
		out = le.AppendUint32(out, crc)
		out = le.AppendUint32(out, uint32(len(e.body)))
		out = le.AppendUint32(out, uint32(len(e.body)))
		out = le.AppendUint16(out, uint16(len(e.name)))
		out = le.AppendUint16(out, uint16(e.localExtra))
		out = append(out, e.name...)
		out = append(out, make([]byte, e.localExtra)...)
		out = append(out, e.body...)

		cd = le.AppendUint32(cd, 0x02014b50)
		cd = le.AppendUint16(cd, 20) // version made by
		cd = le.AppendUint16(cd, 20) // version needed
		cd = le.AppendUint16(cd, 0)  // flags
		cd = le.AppendUint16(cd, 0)  // method
		cd = le.AppendUint32(cd, 0)  // time, date
		cd = le.AppendUint32(cd, crc)
		cd = le.AppendUint32(cd, uint32(len(e.body)))
		cd = le.AppendUint32(cd, uint32(len(e.body)))
		cd = le.AppendUint16(cd, uint16(len(e.name)))
		cd = le.AppendUint16(cd, uint16(e.centralExtra))
		cd = le.AppendUint16(cd, 0) // comment length
		cd = le.AppendUint16(cd, 0) // disk number start
		cd = le.AppendUint16(cd, 0) // internal attrs
		cd = le.AppendUint32(cd, 0) // external attrs
		cd = le.AppendUint32(cd, offset)
		cd = append(cd, e.name...)
		cd = append(cd, make([]byte, e.centralExtra)...)
	}

	cdOffset := uint32(len(out))
	out = append(out, cd...)
	out = le.AppendUint32(out, 0x06054b50)
	out = le.AppendUint16(out, 0)
	out = le.AppendUint16(out, 0)
	out = le.AppendUint16(out, uint16(len(entries)))
	out = le.AppendUint16(out, uint16(len(entries)))
	out = le.AppendUint32(out, uint32(len(cd)))
	out = le.AppendUint32(out, cdOffset)
	out = le.AppendUint16(out, 0)
	return out
}

// rangeServer serves an archive at /archive.zip and records the Range header of every GET.
type rangeServer struct {
	*httptest.Server
	data []byte

	mu     sync.Mutex
	ranges []string

	// ignoreRange makes GET answer 200 with the whole archive.
	ignoreRange atomic.Bool
}

func newRangeServer(t *testing.T, data []byte) *rangeServer {
	t.Helper()

	s := &rangeServer{data: data}
	mux := http.NewServeMux()
	mux.HandleFunc("/archive.zip", s.serve)
	mux.HandleFunc("/moved.zip", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/archive.zip", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/loop.zip", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop.zip", http.StatusFound)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *rangeServer) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.mu.Lock()
		s.ranges = append(s.ranges, r.Header.Get("Range"))
		s.mu.Unlock()

		if s.ignoreRange.Load() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(s.data)
			return
		}
	}
	http.ServeContent(w, r, "archive.zip", time.Time{}, bytes.NewReader(s.data))
}

func (s *rangeServer) gets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ranges)
}

func (s *rangeServer) lastRange() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ranges) == 0 {
		return ""
	}
	return s.ranges[len(s.ranges)-1]
}

func (s *rangeServer) location(path string) transport.Location {
	return transport.Location{URL: s.URL + path, UserAgent: "rangezip-test"}
}

func (s *rangeServer) open(t *testing.T) *zipfile.Archive {
	t.Helper()

	a, err := zipfile.Open(context.Background(), transport.NewHTTPTransport(nil), s.location("/archive.zip"))
	require.NoError(t, err)
	return a
}
