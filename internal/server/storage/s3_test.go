package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	sc "github.com/dmitrijs2005/drmkeeper/internal/server/config"
)

func testStorage() *S3Storage {
	return NewS3Storage(&sc.Config{
		S3Region:       "us-east-1",
		S3RootUser:     "minioadmin",
		S3RootPassword: "minioadmin",
		S3BaseEndpoint: "http://127.0.0.1:9000",
		S3Bucket:       "uploads",
	})
}

func stubClient(t *testing.T) {
	t.Helper()

	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			if err := fn(&lo); err != nil {
				t.Fatalf("load options fn error: %v", err)
			}
		}
		if lo.Region != "us-east-1" {
			t.Fatalf("region not applied: %q", lo.Region)
		}
		return aws.Config{}, nil
	}

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		if opts.BaseEndpoint == nil || *opts.BaseEndpoint != "http://127.0.0.1:9000" {
			t.Fatalf("BaseEndpoint not set: %+v", opts.BaseEndpoint)
		}
		if !opts.UsePathStyle {
			t.Fatalf("UsePathStyle must be set for MinIO")
		}
		return &s3.Client{}
	}
}

func TestLoadRaw_Success(t *testing.T) {
	stubClient(t)

	origGet := getObject
	t.Cleanup(func() { getObject = origGet })

	var gotKey, gotBucket string
	getObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		gotBucket = aws.ToString(in.Bucket)
		gotKey = aws.ToString(in.Key)
		return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader([]byte("raw bytes")))}, nil
	}

	s := testStorage()
	got, err := s.LoadRaw(context.Background(), "u1")
	if err != nil {
		t.Fatalf("LoadRaw error: %v", err)
	}
	if string(got) != "raw bytes" {
		t.Fatalf("unexpected body: %q", got)
	}
	if gotBucket != "uploads" || gotKey != "raw/u1" {
		t.Fatalf("unexpected object location: %s/%s", gotBucket, gotKey)
	}
}

func TestLoadRaw_GetError(t *testing.T) {
	stubClient(t)

	origGet := getObject
	t.Cleanup(func() { getObject = origGet })

	getObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		return nil, errors.New("no such key")
	}

	s := testStorage()
	if _, err := s.LoadRaw(context.Background(), "u1"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestStoreEncrypted_Success(t *testing.T) {
	stubClient(t)

	origPut := putObject
	t.Cleanup(func() { putObject = origPut })

	var gotKey string
	var gotBody []byte
	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		gotKey = aws.ToString(in.Key)
		var err error
		gotBody, err = io.ReadAll(in.Body)
		if err != nil {
			t.Fatalf("reading body: %v", err)
		}
		return &s3.PutObjectOutput{}, nil
	}

	s := testStorage()
	key, err := s.StoreEncrypted(context.Background(), "u1", []byte("ciphertext"))
	if err != nil {
		t.Fatalf("StoreEncrypted error: %v", err)
	}
	if key != gotKey {
		t.Fatalf("returned key %q differs from stored key %q", key, gotKey)
	}
	if !strings.HasPrefix(key, "protected/u1/") {
		t.Fatalf("unexpected key format: %q", key)
	}
	if string(gotBody) != "ciphertext" {
		t.Fatalf("unexpected body: %q", gotBody)
	}
}

func TestStoreEncrypted_FreshKeyPerWrite(t *testing.T) {
	stubClient(t)

	origPut := putObject
	t.Cleanup(func() { putObject = origPut })

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return &s3.PutObjectOutput{}, nil
	}

	s := testStorage()
	k1, err := s.StoreEncrypted(context.Background(), "u1", []byte("a"))
	if err != nil {
		t.Fatalf("StoreEncrypted error: %v", err)
	}
	k2, err := s.StoreEncrypted(context.Background(), "u1", []byte("b"))
	if err != nil {
		t.Fatalf("StoreEncrypted error: %v", err)
	}
	if k1 == k2 {
		t.Fatalf("keys must differ between writes: %q", k1)
	}
}

func TestDelete_Success(t *testing.T) {
	stubClient(t)

	origDelete := deleteObject
	t.Cleanup(func() { deleteObject = origDelete })

	var gotKey string
	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
		gotKey = aws.ToString(in.Key)
		return &s3.DeleteObjectOutput{}, nil
	}

	s := testStorage()
	if err := s.Delete(context.Background(), "protected/u1/abc"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if gotKey != "protected/u1/abc" {
		t.Fatalf("unexpected key: %q", gotKey)
	}
}

func TestClientConfigError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("bad credentials")
	}

	s := testStorage()
	if _, err := s.LoadRaw(context.Background(), "u1"); err == nil {
		t.Fatalf("expected config error from LoadRaw")
	}
	if _, err := s.StoreEncrypted(context.Background(), "u1", nil); err == nil {
		t.Fatalf("expected config error from StoreEncrypted")
	}
	if err := s.Delete(context.Background(), "k"); err == nil {
		t.Fatalf("expected config error from Delete")
	}
}
