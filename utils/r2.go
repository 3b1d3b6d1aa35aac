// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
	// Endpoint overrides the account endpoint, e.g. for an S3-compatible server in development.
	Endpoint string
}

// R2ConfigFromEnv reads the R2 settings. ok is false when backups to R2 are not configured.
func R2ConfigFromEnv() (cfg R2Config, ok bool) {
	cfg = R2Config{
		AccountID:       GetEnv("CLOUDFLARE_ACCOUNT_ID", ""),
		AccessKeyID:     GetEnv("R2_ACCESS_KEY_ID", ""),
		AccessKeySecret: GetEnv("R2_ACCESS_KEY_SECRET", ""),
		Bucket:          GetEnv("R2_BUCKET_NAME", ""),
		CDNBaseURL:      GetEnv("CDN_BASE_URL", ""),
		Endpoint:        GetEnv("R2_ENDPOINT", ""),
	}
	ok = cfg.AccountID != "" && cfg.AccessKeyID != "" && cfg.AccessKeySecret != "" && cfg.Bucket != ""
	return cfg, ok
}

// R2Bucket uploads objects to a Cloudflare R2 bucket through the S3 API.
type R2Bucket struct {
	client     *s3.Client
	bucket     string
	cdnBaseURL string
}

func NewR2Bucket(ctx context.Context, cfg R2Config) (*R2Bucket, error) {
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	if cfg.Endpoint != "" {
		endpoint = cfg.Endpoint
	}
	cdn := cfg.CDNBaseURL
	if cdn == "" {
		cdn = endpoint + "/" + cfg.Bucket
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = cfg.Endpoint != ""
	})
	return &R2Bucket{client: client, bucket: cfg.Bucket, cdnBaseURL: cdn}, nil
}

// Put uploads body under key and returns its public URL.
func (b *R2Bucket) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}
	return fmt.Sprintf("%s/%s", b.cdnBaseURL, key), nil
}
