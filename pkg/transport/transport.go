// Package transport fetches byte ranges of remote archives.
//
// A RangeTransport performs one request per call and never retries. Redirects are resolved once,
// up front, by Probe, which returns a new Location instead of updating any shared state; the same
// Location can therefore be used by any number of concurrent GetRange calls.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/pkg/errors"
)

// DefaultMaxRedirects bounds the redirect chain followed by Probe.
const DefaultMaxRedirects = 5

var (
	// ErrUnexpectedStatus is matched by every *StatusError.
	ErrUnexpectedStatus = errors.New("unexpected response status")
	// ErrTooManyRedirects is returned when a redirect chain is longer than the configured limit.
	ErrTooManyRedirects = errors.New("stopped after too many redirects")
	// ErrTransport is matched by every *TransportError.
	ErrTransport = errors.New("transport error")
	// ErrRangeMismatch is returned when the server answers with a different range than requested.
	ErrRangeMismatch = errors.New("received different range than requested")
	// ErrUnknownLength is returned by Probe when the server does not report the archive length.
	ErrUnknownLength = errors.New("unknown content length")
)

// Location addresses a remote archive. It is an immutable value; use WithURL to derive a new one.
type Location struct {
	// URL is the http, https or s3 URL of the archive.
	URL string
	// UserAgent is sent with every request if not empty.
	UserAgent string
}

// WithURL returns a copy of l pointing at u.
func (l Location) WithURL(u string) Location {
	l.URL = u
	return l
}

// Scheme returns the lower-case URL scheme, or an empty string if the URL does not parse.
func (l Location) Scheme() string {
	u, err := url.Parse(l.URL)
	if err != nil {
		return ""
	}
	return u.Scheme
}

func (l Location) String() string {
	return l.URL
}

// RangeTransport is implemented by every backend that can serve byte ranges of an archive.
type RangeTransport interface {
	// Probe resolves loc (following redirects where the backend has them) and returns the resolved
	// location together with the archive length.
	Probe(ctx context.Context, loc Location) (Location, int64, error)

	// GetRange returns the inclusive, zero-based byte range [start, end] of the archive at loc.
	// The caller must close the returned body.
	GetRange(ctx context.Context, loc Location, start, end int64) (io.ReadCloser, error)
}

// FormatRange formats an inclusive byte range as a Range header value.
func FormatRange(start, end int64) string {
	return fmt.Sprintf("bytes=%d-%d", start, end)
}

// StatusError reports a response status the caller did not expect.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected response status: %s", e.Method, e.URL, e.Status)
}

// Is makes errors.Is(err, ErrUnexpectedStatus) true for every StatusError.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// TransportError reports a failure to connect, send a request or read a response.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrTransport) true for every TransportError.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// body turns read errors of a response body into TransportError.
type body struct {
	io.ReadCloser
	method string
	url    string
}

func (b *body) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		err = &TransportError{Method: b.method, URL: b.url, Err: err}
	}
	return n, err
}

// NewBody wraps rc so that read errors other than io.EOF are reported as *TransportError.
func NewBody(rc io.ReadCloser, method, rawURL string) io.ReadCloser {
	return &body{ReadCloser: rc, method: method, url: rawURL}
}
