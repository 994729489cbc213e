// Package objectstore opens URI-addressed byte streams for metadata documents
// and bitstream payloads. Supported schemes: local paths, s3://, http(s)://.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrNotFound marks a source that does not exist or cannot be read. Callers
// use it to distinguish an unreadable source from a transport failure.
var ErrNotFound = errors.New("object not found")

// S3API is the subset of the S3 client the reader uses (for testing)
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Reader opens byte streams by URI. The zero value supports local paths and
// HTTP; S3 access is configured lazily on first s3:// open.
type Reader struct {
	s3         S3API
	httpClient *http.Client
}

// NewReader creates a reader with default HTTP transport and lazy S3 setup.
func NewReader() *Reader {
	return &Reader{httpClient: http.DefaultClient}
}

// NewReaderWithS3 creates a reader with an injected S3 API (for testing).
func NewReaderWithS3(api S3API) *Reader {
	return &Reader{s3: api, httpClient: http.DefaultClient}
}

// Open returns a readable stream for uri. The caller must close it. A missing
// or unreadable source returns an error wrapping ErrNotFound.
func (r *Reader) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(uri, "s3://"):
		return r.openS3(ctx, uri)
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return r.openHTTP(ctx, uri)
	default:
		return r.openFile(uri)
	}
}

func (r *Reader) openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: '%s'", ErrNotFound, path)
		}
		return nil, err
	}
	return f, nil
}

func (r *Reader) openS3(ctx context.Context, uri string) (io.ReadCloser, error) {
	bucket, key, err := splitS3URI(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, err)
	}

	client, err := r.s3Client(ctx)
	if err != nil {
		return nil, err
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		var noBucket *s3types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			return nil, fmt.Errorf("%w: '%s'", ErrNotFound, uri)
		}
		return nil, fmt.Errorf("failed to get object '%s': %w", uri, err)
	}
	return result.Body, nil
}

func (r *Reader) openHTTP(ctx context.Context, uri string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: '%s'", ErrNotFound, uri)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch '%s': %w", uri, err)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: '%s' returned status %d", ErrNotFound, uri, resp.StatusCode)
	}
	return resp.Body, nil
}

func (r *Reader) s3Client(ctx context.Context) (S3API, error) {
	if r.s3 != nil {
		return r.s3, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	r.s3 = s3.NewFromConfig(awsCfg)
	return r.s3, nil
}

func splitS3URI(uri string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(uri, "s3://")
	bucket, key, ok := strings.Cut(trimmed, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("malformed s3 URI '%s'", uri)
	}
	return bucket, key, nil
}
