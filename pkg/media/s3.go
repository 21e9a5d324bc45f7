package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Uploader stores media in an S3-compatible bucket and returns public
// URLs under publicBase (the bucket's CDN or website endpoint).
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	up := media.NewS3Uploader(s3.NewFromConfig(cfg), "thoughtnet-media",
//	    "https://media.thoughtnet.app")
//	store := media.NewStore(up, 10<<20)
type S3Uploader struct {
	client     *s3.Client
	bucket     string
	publicBase string
}

// NewS3Uploader creates an uploader for the given bucket.
func NewS3Uploader(client *s3.Client, bucket, publicBase string) *S3Uploader {
	return &S3Uploader{client: client, bucket: bucket, publicBase: publicBase}
}

// Upload puts the object and returns its public URL.
func (u *S3Uploader) Upload(ctx context.Context, key, contentType string, size int64, r io.Reader) (string, error) {
	// Buffer so the SDK can sign a seekable body. Media here is capped at
	// a few megabytes by Store; streaming multipart isn't worth it.
	var buf bytes.Buffer
	if size > 0 {
		buf.Grow(int(size))
	}
	if _, err := io.Copy(&buf, r); err != nil {
		return "", fmt.Errorf("media: read upload: %w", err)
	}

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"upload-time": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("media: s3 upload: %w", err)
	}
	return u.publicBase + "/" + key, nil
}
