package objectstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// mockS3 serves a fixed set of bucket/key pairs
type mockS3 struct {
	objects map[string]string // "bucket/key" -> content
}

func (m *mockS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(params.Bucket) + "/" + aws.ToString(params.Key)
	content, ok := m.objects[key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(content))}, nil
}

func TestOpenLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.json")
	if err := os.WriteFile(path, []byte(`{"metadata":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	reader := NewReader()
	stream, err := reader.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer stream.Close()

	content, _ := io.ReadAll(stream)
	if string(content) != `{"metadata":[]}` {
		t.Errorf("unexpected content %s", content)
	}
}

func TestOpenLocalFileMissing(t *testing.T) {
	reader := NewReader()
	_, err := reader.Open(context.Background(), "tests/fixtures/nothing-here")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenS3(t *testing.T) {
	reader := NewReaderWithS3(&mockS3{
		objects: map[string]string{"dss-payloads/etd/test-file-01.pdf": "%PDF-1.4"},
	})

	stream, err := reader.Open(context.Background(), "s3://dss-payloads/etd/test-file-01.pdf")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer stream.Close()

	content, _ := io.ReadAll(stream)
	if string(content) != "%PDF-1.4" {
		t.Errorf("unexpected content %s", content)
	}
}

func TestOpenS3MissingKey(t *testing.T) {
	reader := NewReaderWithS3(&mockS3{objects: map[string]string{}})

	_, err := reader.Open(context.Background(), "s3://dss-payloads/missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenS3MalformedURI(t *testing.T) {
	reader := NewReaderWithS3(&mockS3{})

	_, err := reader.Open(context.Background(), "s3://bucket-only")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for malformed URI, got %v", err)
	}
}

func TestOpenHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/payload" {
			w.Write([]byte("payload bytes"))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)

	reader := NewReader()

	stream, err := reader.Open(context.Background(), server.URL+"/payload")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer stream.Close()
	content, _ := io.ReadAll(stream)
	if string(content) != "payload bytes" {
		t.Errorf("unexpected content %s", content)
	}

	if _, err := reader.Open(context.Background(), server.URL+"/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for 404, got %v", err)
	}
}
