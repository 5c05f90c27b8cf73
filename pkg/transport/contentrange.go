package transport

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var errParse = errors.New("content-range parse error")

// ParseContentRange parses a Content-Range header value.
//
//	Content-Range: bytes 42-1233/1234
//	Content-Range: bytes 42-1233/*
//	Content-Range: bytes */1234
//
// Unknown parts are returned as -1.
func ParseContentRange(str string) (first, last, length int64, err error) {
	first, last, length = -1, -1, -1

	unit, spec, ok := strings.Cut(strings.TrimSpace(str), " ")
	if !ok || unit != "bytes" {
		return -1, -1, -1, errParse
	}
	rng, size, ok := strings.Cut(strings.TrimSpace(spec), "/")
	if !ok {
		return -1, -1, -1, errParse
	}
	if size != "*" {
		if length, err = strconv.ParseInt(size, 10, 64); err != nil || length < 0 {
			return -1, -1, -1, errParse
		}
	}
	if rng != "*" {
		a, b, ok := strings.Cut(rng, "-")
		if !ok {
			return -1, -1, -1, errParse
		}
		if first, err = strconv.ParseInt(a, 10, 64); err != nil {
			return -1, -1, -1, errParse
		}
		if last, err = strconv.ParseInt(b, 10, 64); err != nil || last < first {
			return -1, -1, -1, errParse
		}
	}
	if first == -1 && length == -1 {
		return -1, -1, -1, errParse
	}
	return first, last, length, nil
}
