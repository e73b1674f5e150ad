package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeObjects struct {
	objects map[string][]byte
	types   map[string]string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjects) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	key := aws.ToString(in.Key)
	if _, ok := f.objects[key]; !ok {
		return nil, &s3types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentType: aws.String(f.types[key])}, nil
}

func (f *fakeObjects) GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeObjects) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestR2Store(t *testing.T) {
	ctx := context.Background()
	objects := newFakeObjects()
	store := newR2Store(objects, "media", "https://cdn.example.com/")
	store.tmpDir = t.TempDir()

	ref, err := store.Save(ctx, pngBytes)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !strings.HasPrefix(ref, "r2://") {
		t.Fatalf("Save() ref = %q, want r2:// prefix", ref)
	}
	key := strings.TrimPrefix(ref, "r2://")
	if objects.types[key] != "image/png" {
		t.Errorf("uploaded content type = %q, want image/png", objects.types[key])
	}

	res, err := store.Resolve(ctx, ref)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.URL != "https://cdn.example.com/"+key {
		t.Errorf("Resolve() URL = %q", res.URL)
	}
	got, err := os.ReadFile(res.Path)
	if err != nil {
		t.Fatalf("reading downloaded media: %v", err)
	}
	if !bytes.Equal(got, pngBytes) {
		t.Errorf("downloaded media differs from upload")
	}

	res.Cleanup()
	if _, err := os.Stat(res.Path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Cleanup() left temp file behind: %v", err)
	}

	if err := store.Remove(ctx, ref); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := store.Resolve(ctx, ref); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve() after Remove error = %v, want ErrNotFound", err)
	}
}
