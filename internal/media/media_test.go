package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (f *fakeS3) PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*input.Key] = data
	if input.ContentType != nil {
		f.types[*input.Key] = *input.ContentType
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func testStore(fake *fakeS3) *Store {
	return &Store{client: fake, bucket: "media", publicURL: "https://cdn.example.com"}
}

func TestUpload(t *testing.T) {
	fake := newFakeS3()
	store := testStore(fake)

	payload := []byte("png bytes")
	url, err := store.Upload(context.Background(), bytes.NewReader(payload), "image/png", int64(len(payload)))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if !strings.HasPrefix(url, "https://cdn.example.com/media/") {
		t.Errorf("unexpected url %q", url)
	}
	if !strings.HasSuffix(url, ".png") {
		t.Errorf("expected .png suffix, got %q", url)
	}

	key := strings.TrimPrefix(url, "https://cdn.example.com/")
	if got := fake.objects[key]; !bytes.Equal(got, payload) {
		t.Errorf("stored bytes mismatch: %q", got)
	}
	if got := fake.types[key]; got != "image/png" {
		t.Errorf("content type = %q, want image/png", got)
	}
}

func TestUploadUnsupportedType(t *testing.T) {
	store := testStore(newFakeS3())

	_, err := store.Upload(context.Background(), strings.NewReader("x"), "application/pdf", 1)
	if !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestUploadSizeLimits(t *testing.T) {
	store := testStore(newFakeS3())

	if _, err := store.Upload(context.Background(), strings.NewReader(""), "image/png", 0); err == nil {
		t.Error("expected error for zero size")
	}
	if _, err := store.Upload(context.Background(), strings.NewReader("x"), "image/png", MaxUploadSize+1); err == nil {
		t.Error("expected error for oversized upload")
	}
}

func TestDelete(t *testing.T) {
	fake := newFakeS3()
	store := testStore(fake)

	payload := []byte("mp3 bytes")
	url, err := store.Upload(context.Background(), bytes.NewReader(payload), "audio/mpeg", int64(len(payload)))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if err := store.Delete(context.Background(), url); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(fake.objects) != 0 {
		t.Error("object not deleted")
	}

	// Foreign URLs are ignored
	if err := store.Delete(context.Background(), "https://elsewhere.example.com/x.png"); err != nil {
		t.Errorf("foreign url delete: %v", err)
	}
}
