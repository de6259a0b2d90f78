package notify

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3Config holds the archive bucket settings.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// ObjectPutter is the subset of the S3 client used by Archive.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archive stores generated fax documents in S3.
type Archive struct {
	client ObjectPutter
	bucket string
}

// NewS3Archive builds an S3 client from static credentials.
func NewS3Archive(cfg S3Config) (*Archive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket cannot be empty")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("S3 credentials not available")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg := aws.Config{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	}

	// Buckets with dots break virtual-host TLS, so they always use path style.
	usePathStyle := cfg.PathStyle || strings.Contains(cfg.Bucket, ".")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = usePathStyle
	})

	log.Info().
		Str("bucket", cfg.Bucket).
		Str("region", region).
		Str("endpoint", cfg.Endpoint).
		Bool("pathStyle", usePathStyle).
		Msg("S3 archive initialized")
	return NewArchive(client, cfg.Bucket)
}

// NewArchive wraps an existing S3 client.
func NewArchive(client ObjectPutter, bucket string) (*Archive, error) {
	if client == nil {
		return nil, fmt.Errorf("S3 client cannot be nil")
	}
	return &Archive{client: client, bucket: bucket}, nil
}

// FaxKey builds the object key of an order's fax document.
func FaxKey(shopID, orderNum string, at time.Time) string {
	clean := strings.NewReplacer("@", "", "/", "_", ":", "_").Replace(shopID)
	return fmt.Sprintf("shops/%s/faxes/%s/order-%s.pdf", clean, at.UTC().Format("2006/01/02"), orderNum)
}

// Put uploads data under key.
func (a *Archive) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(a.bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(data),
		ContentType:        aws.String(contentType),
		ContentDisposition: aws.String("inline"),
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Str("bucket", a.bucket).Int("size", len(data)).Msg("Failed to upload file to S3")
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Info().Str("key", key).Str("bucket", a.bucket).Int("size", len(data)).Msg("File successfully uploaded to S3")
	return nil
}
