package objectstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"newsreel/internal/services"
)

type fakeS3 struct {
	key     string
	body    string
	err     error
	expires time.Duration
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.key = aws.ToString(in.Key)
	f.body = string(data)
	return &s3.PutObjectOutput{ETag: aws.String(`"abc123"`)}, nil
}

func (f *fakeS3) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://bucket.example/" + aws.ToString(in.Key) + "?sig=1"}, nil
}

func TestPutFileAndPresign(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "video.mp4")
	if err := os.WriteFile(local, []byte("mp4"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	api := &fakeS3{}
	store := NewWithAPI(api, api, Config{Bucket: "reels", Prefix: "videos/", PresignExpiry: 2 * time.Hour})

	key := store.Key(7, local)
	if key != "videos/7/video.mp4" {
		t.Fatalf("unexpected key %q", key)
	}
	obj, err := store.PutFile(context.Background(), key, local, "video/mp4")
	if err != nil {
		t.Fatalf("PutFile failed: %v", err)
	}
	if obj.ETag != "abc123" || obj.Bucket != "reels" || api.body != "mp4" {
		t.Fatalf("unexpected upload %+v body=%q", obj, api.body)
	}
	url, err := store.PresignURL(context.Background(), key)
	if err != nil {
		t.Fatalf("PresignURL failed: %v", err)
	}
	if url != "https://bucket.example/videos/7/video.mp4?sig=1" {
		t.Fatalf("unexpected url %q", url)
	}
	if api.expires != 2*time.Hour {
		t.Fatalf("expected 2h expiry, got %s", api.expires)
	}
}

func TestPutFileErrors(t *testing.T) {
	api := &fakeS3{}
	store := NewWithAPI(api, api, Config{Bucket: "reels"})
	if _, err := store.PutFile(context.Background(), "k", filepath.Join(t.TempDir(), "missing.mp4"), ""); !errors.Is(err, services.ErrAssetMissing) {
		t.Fatalf("expected asset missing, got %v", err)
	}

	local := filepath.Join(t.TempDir(), "v.mp4")
	if err := os.WriteFile(local, []byte("x"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	api.err = &smithy.GenericAPIError{Code: "SlowDown", Fault: smithy.FaultServer}
	if _, err := store.PutFile(context.Background(), "k", local, ""); !errors.Is(err, services.ErrTransientExternal) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
