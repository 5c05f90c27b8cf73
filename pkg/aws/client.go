package aws

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	awssdk "github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	log "github.com/sirupsen/logrus"

	"github.com/alec-rabold/rangezip/pkg/transport"
)

// Scheme is the URL scheme served by Client.
const Scheme = "s3"

// Client is a transport.RangeTransport over S3 objects addressed as s3://bucket/key.
type Client struct {
	s3 s3iface.S3API
}

var _ transport.RangeTransport = (*Client)(nil)

// Options customises NewClient.
type Options struct {
	// Region overrides the region from the environment or shared config.
	Region string
	// Profile selects a shared config profile.
	Profile string
	// Endpoint overrides the S3 endpoint, for S3-compatible stores.
	Endpoint string
}

// NewClient creates a new AWS client, expecting that the environment variables configure the settings.
func NewClient(optFns ...func(*Options)) (*Client, error) {
	opts := &Options{}
	for _, fn := range optFns {
		fn(opts)
	}

	cfg := awssdk.Config{}
	if opts.Region != "" {
		cfg.Region = awssdk.String(opts.Region)
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = awssdk.String(opts.Endpoint)
		cfg.S3ForcePathStyle = awssdk.Bool(true)
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            cfg,
		Profile:           opts.Profile,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("create aws session error: %w", err)
	}
	return NewClientWithAPI(s3.New(sess)), nil
}

// NewClientWithAPI wraps an existing S3 API implementation.
func NewClientWithAPI(api s3iface.S3API) *Client {
	return &Client{s3: api}
}

// ParseLocation splits an s3://bucket/key URL.
func ParseLocation(loc transport.Location) (bucket, key string, err error) {
	u, err := url.Parse(loc.URL)
	if err != nil {
		return "", "", fmt.Errorf("parse s3 url error: %w", err)
	}
	bucket, key = u.Host, strings.TrimPrefix(u.Path, "/")
	if u.Scheme != Scheme || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 url %q: expected s3://bucket/key", loc.URL)
	}
	return bucket, key, nil
}

// Probe implements transport.RangeTransport. S3 has no redirects to resolve so loc is returned as is.
func (c *Client) Probe(ctx context.Context, loc transport.Location) (transport.Location, int64, error) {
	bucket, key, err := ParseLocation(loc)
	if err != nil {
		return loc, -1, err
	}

	output, err := c.GetHeadObject(ctx, bucket, key)
	if err != nil {
		return loc, -1, wrapError("HeadObject", loc, err)
	}
	if output.ContentLength == nil {
		return loc, -1, fmt.Errorf("HeadObject %s: %w", loc.URL, transport.ErrUnknownLength)
	}

	log.WithFields(log.Fields{"bucket": bucket, "key": key, "size": *output.ContentLength}).Debug("probed archive")
	return loc, *output.ContentLength, nil
}

// GetRange implements transport.RangeTransport.
func (c *Client) GetRange(ctx context.Context, loc transport.Location, start, end int64) (io.ReadCloser, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("invalid range %d-%d", start, end)
	}
	bucket, key, err := ParseLocation(loc)
	if err != nil {
		return nil, err
	}

	output, err := c.GetS3ObjectWithRange(ctx, bucket, key, transport.FormatRange(start, end))
	if err != nil {
		return nil, wrapError("GetObject", loc, err)
	}

	// S3 answers a satisfiable Range with 206 and a Content-Range header; the SDK does not expose the
	// status so the header is what tells a partial response from the whole object.
	if output.ContentRange == nil {
		_ = output.Body.Close()
		return nil, &transport.StatusError{Method: "GetObject", URL: loc.URL, StatusCode: 200, Status: "200 OK (no Content-Range)"}
	}
	first, last, _, err := transport.ParseContentRange(*output.ContentRange)
	if err != nil || first != start || last > end {
		_ = output.Body.Close()
		return nil, fmt.Errorf("GetObject %s: req=%d-%d, resp=%s: %w", loc.URL, start, end, *output.ContentRange, transport.ErrRangeMismatch)
	}

	return transport.NewBody(output.Body, "GetObject", loc.URL), nil
}

// GetHeadObject makes a HeadObject request.
func (c *Client) GetHeadObject(ctx context.Context, bucket, key string) (*s3.HeadObjectOutput, error) {
	log.WithFields(log.Fields{"bucket": bucket, "key": key}).Debug("s3 head object")
	return c.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
}

// GetS3ObjectWithRange makes a GetObject request for the given Range header value.
func (c *Client) GetS3ObjectWithRange(ctx context.Context, bucket, key, byteRange string) (*s3.GetObjectOutput, error) {
	log.WithFields(log.Fields{"bucket": bucket, "key": key, "range": byteRange}).Debug("s3 get object")
	return c.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
		Range:  &byteRange,
	})
}

// wrapError maps failed requests with an HTTP status to transport.StatusError and everything else
// to transport.TransportError.
func wrapError(op string, loc transport.Location, err error) error {
	if reqErr, ok := err.(awserr.RequestFailure); ok && reqErr.StatusCode() != 0 {
		return &transport.StatusError{
			Method:     op,
			URL:        loc.URL,
			StatusCode: reqErr.StatusCode(),
			Status:     fmt.Sprintf("%d %s", reqErr.StatusCode(), reqErr.Code()),
		}
	}
	return &transport.TransportError{Method: op, URL: loc.URL, Err: err}
}
