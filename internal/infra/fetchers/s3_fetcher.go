package fetchers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectConfig configures the S3 object fetcher.
type ObjectConfig struct {
	Region   string
	Endpoint string // custom endpoint for S3-compatible services (MinIO)

	// Static credentials. When empty the default AWS credential chain is
	// used.
	AccessKey string
	SecretKey string

	MaxBytes int64
}

// ObjectFetcher downloads inventories stored as s3://bucket/key objects.
type ObjectFetcher struct {
	client   *s3.Client
	maxBytes int64
}

var _ Fetcher = (*ObjectFetcher)(nil)

// NewObjectFetcher builds an S3 client from cfg.
func NewObjectFetcher(ctx context.Context, cfg ObjectConfig) (*ObjectFetcher, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}

	return &ObjectFetcher{
		client:   s3.NewFromConfig(awsCfg, s3Opts...),
		maxBytes: maxBytes,
	}, nil
}

// ParseObjectURL splits s3://bucket/key into its parts.
func ParseObjectURL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("%w: invalid object URL: %w", ErrBlockedURL, err)
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("%w: object URL must use the s3:// scheme", ErrBlockedURL)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("%w: object URL must be s3://bucket/key", ErrBlockedURL)
	}
	return u.Host, key, nil
}

// Fetch downloads the object at location.
func (f *ObjectFetcher) Fetch(ctx context.Context, location string) (*Result, error) {
	bucket, key, err := ParseObjectURL(location)
	if err != nil {
		return nil, err
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var re *awshttp.ResponseError
		if errors.As(err, &re) && re.HTTPStatusCode() != http.StatusOK {
			return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, &StatusError{StatusCode: re.HTTPStatusCode()})
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	if size := aws.ToInt64(out.ContentLength); size > f.maxBytes {
		return nil, fmt.Errorf("%w: object is %d bytes, limit %d", ErrTooLarge, size, f.maxBytes)
	}

	data, err := readLimited(out.Body, f.maxBytes)
	if err != nil {
		return nil, err
	}

	return &Result{
		Body:      data,
		Location:  "s3://" + bucket + "/" + key,
		ETag:      aws.ToString(out.ETag),
		FetchedAt: time.Now().UTC(),
	}, nil
}
