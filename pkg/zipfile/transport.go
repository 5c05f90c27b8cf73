package zipfile

import (
	"net/http"

	"github.com/alec-rabold/rangezip/pkg/aws"
	"github.com/alec-rabold/rangezip/pkg/transport"
)

// TransportOptions customises TransportFor.
type TransportOptions struct {
	// HTTPClient is used for http and https locations. Default to http.DefaultClient.
	HTTPClient *http.Client
	// MaxRedirects bounds redirect resolution for http and https locations.
	MaxRedirects int
	// S3 configures the client for s3 locations.
	S3 aws.Options
}

// TransportFor returns the RangeTransport serving loc: S3 for s3:// URLs and HTTP for anything else.
func TransportFor(loc transport.Location, optFns ...func(*TransportOptions)) (transport.RangeTransport, error) {
	opts := &TransportOptions{MaxRedirects: transport.DefaultMaxRedirects}
	for _, fn := range optFns {
		fn(opts)
	}

	if loc.Scheme() == aws.Scheme {
		return aws.NewClient(func(o *aws.Options) { *o = opts.S3 })
	}
	return transport.NewHTTPTransport(opts.HTTPClient, func(o *transport.HTTPOptions) {
		o.MaxRedirects = opts.MaxRedirects
	}), nil
}
