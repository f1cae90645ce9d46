package upload

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3Uploader_PutsContentAddressedObject(t *testing.T) {
	fake := &fakeS3{}
	u := &S3Uploader{client: fake, cfg: S3Config{
		Endpoint: "https://s3.example.net/",
		Bucket:   "forms",
		Prefix:   "uploads",
	}}

	d, err := u.Upload(context.Background(), File{Filename: "Meter.png", ContentType: "image/png", Data: []byte("abc")})
	require.NoError(t, err)

	assert.Equal(t, "forms", aws.ToString(fake.input.Bucket))
	assert.Equal(t, "uploads/ba7816bf8f01cfea/meter.png", aws.ToString(fake.input.Key))
	assert.Equal(t, "image/png", aws.ToString(fake.input.ContentType))
	assert.Equal(t, []byte("abc"), fake.body)
	require.NotNil(t, d.URL)
	assert.Equal(t, "https://s3.example.net/forms/uploads/ba7816bf8f01cfea/meter.png", *d.URL)
}

func TestS3Uploader_AWSLinkWithoutEndpoint(t *testing.T) {
	u := &S3Uploader{client: &fakeS3{}, cfg: S3Config{Region: "eu-west-1", Bucket: "forms"}}
	assert.Equal(t, "https://forms.s3.eu-west-1.amazonaws.com/k", u.link("k"))

	u.cfg.PublicURL = "https://cdn.example.net"
	assert.Equal(t, "https://cdn.example.net/forms/k", u.link("k"))
}

func TestS3Uploader_PropagatesError(t *testing.T) {
	u := &S3Uploader{client: &fakeS3{err: errors.New("access denied")}, cfg: S3Config{Bucket: "forms"}}
	_, err := u.Upload(context.Background(), File{Filename: "a.txt", Data: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}
