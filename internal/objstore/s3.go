package objstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store keeps objects in one S3 bucket. Directories map to key prefixes.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store builds an S3-backed store using the ambient AWS credential
// chain. Endpoint overrides the service URL for S3-compatible stores.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 object storage requires a bucket")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

func (s *S3Store) key(directory, filename string) string {
	return path.Join(directory, filename)
}

// SaveBuffer uploads data under directory/filename.
func (s *S3Store) SaveBuffer(ctx context.Context, directory, filename string, data []byte) error {
	return s.SaveStream(ctx, directory, filename, bytes.NewReader(data))
}

// LoadBuffer downloads directory/filename fully.
func (s *S3Store) LoadBuffer(ctx context.Context, directory, filename string) ([]byte, error) {
	rc, err := s.LoadStream(ctx, directory, filename)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	return data, nil
}

// SaveStream uploads r under directory/filename.
func (s *S3Store) SaveStream(ctx context.Context, directory, filename string, r io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(directory, filename)),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s/%s: %w", directory, filename, err)
	}
	return nil
}

// LoadStream opens directory/filename for reading.
func (s *S3Store) LoadStream(ctx context.Context, directory, filename string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(directory, filename)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download object %s/%s: %w", directory, filename, err)
	}
	return out.Body, nil
}

// Delete removes one object.
func (s *S3Store) Delete(ctx context.Context, directory, filename string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(directory, filename)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s/%s: %w", directory, filename, err)
	}
	return nil
}

// DeleteDirectory removes every object under the directory prefix.
func (s *S3Store) DeleteDirectory(ctx context.Context, directory string) error {
	keys, err := s.listKeys(ctx, directory)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	objects := make([]types.ObjectIdentifier, len(keys))
	for i, k := range keys {
		objects[i] = types.ObjectIdentifier{Key: aws.String(k)}
	}

	_, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{Objects: objects},
	})
	if err != nil {
		return fmt.Errorf("failed to delete object directory %s: %w", directory, err)
	}
	return nil
}

// ListFiles lists filenames under a directory prefix.
func (s *S3Store) ListFiles(ctx context.Context, directory string) ([]string, error) {
	keys, err := s.listKeys(ctx, directory)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = path.Base(k)
	}
	return names, nil
}

func (s *S3Store) listKeys(ctx context.Context, directory string) ([]string, error) {
	prefix := directory
	if prefix != "" {
		prefix += "/"
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects under %s: %w", directory, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

var _ Store = (*S3Store)(nil)
