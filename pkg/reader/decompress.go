package reader

import (
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
)

// Decompressor returns a new decompressing reader, reading from r. The ReadCloser's Close method
// must be used to release associated resources.
type Decompressor func(r io.Reader) io.ReadCloser

var decompressors sync.Map // map[uint16]Decompressor

func init() {
	decompressors.Store(Store, Decompressor(io.NopCloser))
	decompressors.Store(Deflate, Decompressor(newFlateReader))
}

// newFlateReader reads raw deflate data, without zlib framing.
func newFlateReader(r io.Reader) io.ReadCloser {
	return flate.NewReader(r)
}

// RegisterDecompressor registers or overrides a custom decompressor for a specific method ID.
func RegisterDecompressor(method uint16, dcomp Decompressor) {
	decompressors.Store(method, dcomp)
}

func decompressor(method uint16) Decompressor {
	di, ok := decompressors.Load(method)
	if !ok {
		return nil
	}
	return di.(Decompressor)
}
