package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	put    *s3.PutObjectInput
	body   string
	del    *s3.DeleteObjectInput
	putErr error
	delErr error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, f.putErr
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.del = in
	return &s3.DeleteObjectOutput{}, f.delErr
}

type fakePresign struct {
	in      *s3.GetObjectInput
	expires time.Duration
	err     error
}

func (f *fakePresign) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.in = in
	var o s3.PresignOptions
	for _, fn := range optFns {
		fn(&o)
	}
	f.expires = o.Expires
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://s3.example/" + aws.ToString(in.Key) + "?sig"}, nil
}

func TestS3Store_PutDeletePresign(t *testing.T) {
	ctx := context.Background()
	c := &fakeS3{}
	p := &fakePresign{}
	s := &S3Store{client: c, presign: p, bucket: "avatars"}

	require.NoError(t, s.Put(ctx, "avatars/a/k", "image/png", []byte("png-bytes")))
	assert.Equal(t, "avatars", aws.ToString(c.put.Bucket))
	assert.Equal(t, "avatars/a/k", aws.ToString(c.put.Key))
	assert.Equal(t, "image/png", aws.ToString(c.put.ContentType))
	assert.Equal(t, int64(9), aws.ToInt64(c.put.ContentLength))
	assert.Equal(t, "png-bytes", c.body)

	require.NoError(t, s.Delete(ctx, "avatars/a/k"))
	assert.Equal(t, "avatars/a/k", aws.ToString(c.del.Key))

	url, err := s.PresignGet(ctx, "avatars/a/k", 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://s3.example/avatars/a/k?sig", url)
	assert.Equal(t, 15*time.Minute, p.expires)
	assert.Equal(t, "avatars", aws.ToString(p.in.Bucket))
}

func TestS3Store_Errors(t *testing.T) {
	ctx := context.Background()
	s := &S3Store{
		client:  &fakeS3{putErr: errors.New("put boom"), delErr: errors.New("del boom")},
		presign: &fakePresign{err: errors.New("presign boom")},
		bucket:  "avatars",
	}

	err := s.Put(ctx, "k", "image/png", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put boom")

	err = s.Delete(ctx, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "del boom")

	_, err = s.PresignGet(ctx, "k", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "presign boom")
}

func TestNewS3Store_AppliesConfig(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		require.NotNil(t, lo.Credentials)
		creds, err := lo.Credentials.Retrieve(ctx)
		require.NoError(t, err)
		assert.Equal(t, "admin", creds.AccessKeyID)
		assert.Equal(t, "secretpassword", creds.SecretAccessKey)
		return aws.Config{Region: lo.Region, Credentials: lo.Credentials}, nil
	}

	var applied s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&applied)
		}
		return s3.NewFromConfig(cfg, optFns...)
	}

	s, err := NewS3Store(context.Background(), S3Config{
		Region:       "us-east-1",
		User:         "admin",
		Password:     "secretpassword",
		Bucket:       "avatars",
		BaseEndpoint: "http://127.0.0.1:9000/",
	})
	require.NoError(t, err)
	assert.Equal(t, "avatars", s.bucket)
	assert.Equal(t, "http://127.0.0.1:9000/", aws.ToString(applied.BaseEndpoint))
	assert.True(t, applied.UsePathStyle)

	url, err := s.PresignGet(context.Background(), "avatars/a/k", time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://127.0.0.1:9000/"), url)
	assert.Contains(t, url, "avatars/a/k")
	assert.Contains(t, url, "X-Amz-Signature=")
}

func TestNewS3Store_LoadError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })

	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}

	_, err := NewS3Store(context.Background(), S3Config{Region: "us-east-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load aws config")
}
