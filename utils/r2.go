// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	appconfig "invest-tournament-system/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// R2Archiver writes settlement reports to a Cloudflare R2 bucket.
type R2Archiver struct {
	client     *s3.Client
	bucket     string
	cdnBaseURL string
}

func NewR2Archiver(ctx context.Context, r2 appconfig.R2Config) (*R2Archiver, error) {
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r2.AccountID)
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			r2.AccessKeyID, r2.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	cdn := strings.TrimRight(r2.CDNBaseURL, "/")
	if cdn == "" {
		cdn = endpoint + "/" + r2.Bucket
	}
	return &R2Archiver{
		client: s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		}),
		bucket:     r2.Bucket,
		cdnBaseURL: cdn,
	}, nil
}

// Archive uploads body under key and returns its public URL.
func (a *R2Archiver) Archive(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}
	return PublicURL(a.cdnBaseURL, key), nil
}

// PublicURL joins a CDN base and an object key with exactly one slash.
func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
