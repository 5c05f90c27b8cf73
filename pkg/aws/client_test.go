package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	awssdk "github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alec-rabold/rangezip/pkg/transport"
)

var object = []byte("0123456789abcdefghijklmnopqrstuvwxyz")

// fakeS3 serves a single in-memory object. Unimplemented methods panic through the nil interface.
type fakeS3 struct {
	s3iface.S3API

	data         []byte
	err          error
	contentRange func(start, end int) *string
	ranges       []string
}

func (f *fakeS3) HeadObjectWithContext(_ awssdk.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &s3.HeadObjectOutput{ContentLength: awssdk.Int64(int64(len(f.data)))}, nil
}

func (f *fakeS3) GetObjectWithContext(_ awssdk.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.ranges = append(f.ranges, *in.Range)

	var start, end int
	if _, err := fmt.Sscanf(*in.Range, "bytes=%d-%d", &start, &end); err != nil {
		return nil, err
	}
	end = min(end, len(f.data)-1)

	cr := awssdk.String(fmt.Sprintf("bytes %d-%d/%d", start, end, len(f.data)))
	if f.contentRange != nil {
		cr = f.contentRange(start, end)
	}
	return &s3.GetObjectOutput{
		Body:         io.NopCloser(bytes.NewReader(f.data[start : end+1])),
		ContentRange: cr,
	}, nil
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		url        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{url: "s3://my-bucket/archive.zip", wantBucket: "my-bucket", wantKey: "archive.zip"},
		{url: "s3://my-bucket/path/to/archive.zip", wantBucket: "my-bucket", wantKey: "path/to/archive.zip"},
		{url: "s3://my-bucket/", wantErr: true},
		{url: "s3:///archive.zip", wantErr: true},
		{url: "https://my-bucket/archive.zip", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			bucket, key, err := ParseLocation(transport.Location{URL: tt.url})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantKey, key)
		})
	}
}

func TestProbe(t *testing.T) {
	c := NewClientWithAPI(&fakeS3{data: object})
	loc := transport.Location{URL: "s3://bucket/file.zip"}

	resolved, size, err := c.Probe(context.Background(), loc)
	require.NoError(t, err)
	assert.Equal(t, loc, resolved)
	assert.Equal(t, int64(len(object)), size)
}

func TestProbeNotFound(t *testing.T) {
	notFound := awserr.NewRequestFailure(awserr.New("NotFound", "not found", nil), 404, "req-id")
	c := NewClientWithAPI(&fakeS3{err: notFound})

	_, _, err := c.Probe(context.Background(), transport.Location{URL: "s3://bucket/file.zip"})
	assert.ErrorIs(t, err, transport.ErrUnexpectedStatus)

	var statusErr *transport.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 404, statusErr.StatusCode)
}

func TestProbeTransportError(t *testing.T) {
	c := NewClientWithAPI(&fakeS3{err: awserr.New(request.ErrCodeSerialization, "connection reset", errors.New("EOF"))})

	_, _, err := c.Probe(context.Background(), transport.Location{URL: "s3://bucket/file.zip"})
	assert.ErrorIs(t, err, transport.ErrTransport)
}

func TestGetRange(t *testing.T) {
	api := &fakeS3{data: object}
	c := NewClientWithAPI(api)

	rc, err := c.GetRange(context.Background(), transport.Location{URL: "s3://bucket/file.zip"}, 10, 15)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(got))
	assert.Equal(t, []string{"bytes=10-15"}, api.ranges)
}

func TestGetRangeWholeObject(t *testing.T) {
	c := NewClientWithAPI(&fakeS3{data: object, contentRange: func(int, int) *string { return nil }})

	_, err := c.GetRange(context.Background(), transport.Location{URL: "s3://bucket/file.zip"}, 0, 3)
	assert.ErrorIs(t, err, transport.ErrUnexpectedStatus)
}

func TestGetRangeMismatch(t *testing.T) {
	c := NewClientWithAPI(&fakeS3{data: object, contentRange: func(int, int) *string {
		return awssdk.String(fmt.Sprintf("bytes 0-3/%d", len(object)))
	}})

	_, err := c.GetRange(context.Background(), transport.Location{URL: "s3://bucket/file.zip"}, 4, 7)
	assert.ErrorIs(t, err, transport.ErrRangeMismatch)
}

func TestGetRangeInvalid(t *testing.T) {
	c := NewClientWithAPI(&fakeS3{data: object})

	_, err := c.GetRange(context.Background(), transport.Location{URL: "s3://bucket/file.zip"}, 5, 4)
	assert.Error(t, err)
}
