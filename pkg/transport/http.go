package transport

import (
	"context"
	"io"
	"net/http"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// HTTPTransport is a RangeTransport that makes HTTP Range Requests (RFC 7233).
// New instances must be created with the NewHTTPTransport() function.
// It is safe for concurrent use.
type HTTPTransport struct {
	client       *http.Client
	maxRedirects int
}

var _ RangeTransport = (*HTTPTransport)(nil)

// HTTPOptions customises NewHTTPTransport.
type HTTPOptions struct {
	// MaxRedirects is the number of redirects Probe follows before giving up with
	// ErrTooManyRedirects. Default to DefaultMaxRedirects.
	MaxRedirects int
}

// NewHTTPTransport creates a new HTTPTransport. If nil is passed as http.Client, then
// http.DefaultClient is used. The client is copied so that redirects are never followed
// implicitly; Probe follows them itself, up to HTTPOptions.MaxRedirects.
func NewHTTPTransport(client *http.Client, optFns ...func(*HTTPOptions)) *HTTPTransport {
	opts := &HTTPOptions{MaxRedirects: DefaultMaxRedirects}
	for _, fn := range optFns {
		fn(opts)
	}

	if client == nil {
		client = http.DefaultClient
	}
	c := *client
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &HTTPTransport{client: &c, maxRedirects: max(0, opts.MaxRedirects)}
}

// Probe makes a HEAD request for the archive length. Redirect responses are resolved against their
// Location header and retried, up to the configured limit; the location that finally answered is
// returned and loc itself is left untouched.
func (t *HTTPTransport) Probe(ctx context.Context, loc Location) (Location, int64, error) {
	for hops := 0; ; hops++ {
		resp, err := t.do(ctx, http.MethodHead, loc, "")
		if err != nil {
			return loc, -1, err
		}
		_ = resp.Body.Close()

		switch code := resp.StatusCode; {
		case isRedirect(code):
			if hops >= t.maxRedirects {
				return loc, -1, errors.Wrapf(ErrTooManyRedirects, "HEAD %s: %d redirects", loc.URL, hops)
			}
			next, err := resp.Location()
			if err != nil {
				return loc, -1, &TransportError{Method: http.MethodHead, URL: loc.URL, Err: err}
			}
			log.WithFields(log.Fields{"from": loc.URL, "to": next.String(), "status": code}).Debug("following redirect")
			loc = loc.WithURL(next.String())

		case code >= 200 && code < 300:
			if resp.ContentLength < 0 {
				return loc, -1, errors.Wrapf(ErrUnknownLength, "HEAD %s", loc.URL)
			}
			log.WithFields(log.Fields{"url": loc.URL, "size": resp.ContentLength}).Debug("probed archive")
			return loc, resp.ContentLength, nil

		default:
			return loc, -1, &StatusError{Method: http.MethodHead, URL: loc.URL, StatusCode: code, Status: resp.Status}
		}
	}
}

// GetRange makes a GET request with a Range header. Anything other than 206 Partial Content is
// an error; the response body is closed on every error path.
func (t *HTTPTransport) GetRange(ctx context.Context, loc Location, start, end int64) (io.ReadCloser, error) {
	if start < 0 || end < start {
		return nil, errors.Errorf("invalid range %d-%d", start, end)
	}

	resp, err := t.do(ctx, http.MethodGet, loc, FormatRange(start, end))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusPartialContent {
		_ = resp.Body.Close()
		return nil, &StatusError{Method: http.MethodGet, URL: loc.URL, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if contentRange := resp.Header.Get("Content-Range"); contentRange != "" {
		first, last, _, err := ParseContentRange(contentRange)
		if err != nil {
			_ = resp.Body.Close()
			return nil, errors.Wrapf(err, "GET %s", loc.URL)
		}
		if first != start || last > end {
			_ = resp.Body.Close()
			return nil, errors.Wrapf(ErrRangeMismatch, "GET %s: req=%d-%d, resp=%d-%d", loc.URL, start, end, first, last)
		}
	}

	return NewBody(resp.Body, http.MethodGet, loc.URL), nil
}

func (t *HTTPTransport) do(ctx context.Context, method string, loc Location, byteRange string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, loc.URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create http request error")
	}
	if loc.UserAgent != "" {
		req.Header.Set("User-Agent", loc.UserAgent)
	}
	if byteRange != "" {
		req.Header.Set("Range", byteRange)
	}

	log.WithFields(log.Fields{"method": method, "url": loc.URL, "range": byteRange}).Debug("http request")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, URL: loc.URL, Err: err}
	}
	return resp, nil
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}
