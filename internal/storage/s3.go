package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options configures an S3-compatible bucket. Endpoint is optional and
// points the client at R2, MinIO or a test server.
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	UsePathStyle    bool
	Timeout         time.Duration
}

// S3 implements Provider on top of an S3 bucket. Paths are object keys
// below Prefix.
type S3 struct {
	client  *s3.Client
	bucket  string
	prefix  string
	timeout time.Duration
}

// NewS3 builds a client from opts. Static credentials are used when both keys
// are set; otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, errors.New("storage: s3 bucket is required")
	}
	region := opts.Region
	if region == "" {
		region = "auto"
	}

	loaders := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &S3{
		client:  client,
		bucket:  opts.Bucket,
		prefix:  strings.Trim(opts.Prefix, "/"),
		timeout: timeout,
	}, nil
}

func (s *S3) key(p string) (string, error) {
	clean := path.Clean("/" + strings.TrimPrefix(p, "/"))
	if clean == "/" {
		return "", fmt.Errorf("storage: empty object key")
	}
	clean = strings.TrimPrefix(clean, "/")
	if s.prefix == "" {
		return clean, nil
	}
	return s.prefix + "/" + clean, nil
}

func (s *S3) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// List returns objects under dir.
func (s *S3) List(dir string) ([]Object, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	prefix := s.prefix
	if d := strings.Trim(dir, "/"); d != "" {
		prefix = strings.TrimPrefix(path.Join(s.prefix, d), "/")
	}
	if prefix != "" {
		prefix += "/"
	}

	out := make([]Object, 0)
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage: s3 list: %w", err)
		}
		for _, obj := range page.Contents {
			rel := strings.TrimPrefix(aws.ToString(obj.Key), s.prefixDir())
			if rel == "" || strings.HasPrefix(path.Base(rel), ".") {
				continue
			}
			out = append(out, Object{
				Path:      rel,
				Size:      aws.ToInt64(obj.Size),
				Checksum:  strings.Trim(aws.ToString(obj.ETag), `"`),
				UpdatedAt: aws.ToTime(obj.LastModified),
			})
		}
	}
	return out, nil
}

func (s *S3) prefixDir() string {
	if s.prefix == "" {
		return ""
	}
	return s.prefix + "/"
}

// Read downloads an object.
func (s *S3) Read(p string) ([]byte, error) {
	key, err := s.key(p)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.ctx()
	defer cancel()

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("storage: read %s: %w", p, os.ErrNotExist)
		}
		return nil, fmt.Errorf("storage: s3 get %s: %w", p, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: s3 read %s: %w", p, err)
	}
	return data, nil
}

// Write uploads content. The upload is atomic from a reader's point of view.
func (s *S3) Write(p string, content []byte) error {
	key, err := s.key(p)
	if err != nil {
		return err
	}
	ctx, cancel := s.ctx()
	defer cancel()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String(contentType(key)),
	})
	if err != nil {
		return fmt.Errorf("storage: s3 put %s: %w", p, err)
	}
	return nil
}

// Delete removes an object.
func (s *S3) Delete(p string) error {
	key, err := s.key(p)
	if err != nil {
		return err
	}
	ctx, cancel := s.ctx()
	defer cancel()

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("storage: s3 delete %s: %w", p, err)
	}
	return nil
}

// Move copies oldPath to newPath and deletes the original.
func (s *S3) Move(oldPath, newPath string) error {
	src, err := s.key(oldPath)
	if err != nil {
		return err
	}
	dst, err := s.key(newPath)
	if err != nil {
		return err
	}
	ctx, cancel := s.ctx()
	defer cancel()

	if _, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(dst),
		CopySource: aws.String(copySource(s.bucket, src)),
	}); err != nil {
		return fmt.Errorf("storage: s3 copy %s: %w", oldPath, err)
	}
	return s.Delete(oldPath)
}

func copySource(bucket, key string) string {
	parts := strings.Split(bucket+"/"+key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func contentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	default:
		return "application/octet-stream"
	}
}
