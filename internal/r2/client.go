package r2

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"path/filepath"

	appconfig "studybuddy/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// Client archives uploaded documents in a Cloudflare R2 bucket.
type Client struct {
	s3Client   *s3.Client
	bucketName string
	publicURL  string // Base public URL for the bucket (e.g., https://pub-xxxxxxxx.r2.dev)
	log        *zap.Logger
}

// NewClient returns (nil, nil) when R2 is not fully configured so the
// service runs with archiving disabled.
func NewClient(ctx context.Context, cfg appconfig.R2Config, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("r2")
	if !cfg.Enabled() {
		log.Warn("Cloudflare R2 not fully configured, uploads will not be archived")
		return nil, nil
	}

	// R2 endpoint format: https://<ACCOUNT_ID>.r2.cloudflarestorage.com
	r2Resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID),
		}, nil
	})

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithEndpointResolverWithOptions(r2Resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config for R2: %w", err)
	}

	log.Info("R2 client initialized", zap.String("bucket", cfg.BucketName))
	return &Client{
		s3Client:   s3.NewFromConfig(awsCfg),
		bucketName: cfg.BucketName,
		publicURL:  cfg.PublicURL,
		log:        log,
	}, nil
}

// ObjectKey is "documents/<sessionID>/<documentID>/<filename>".
func ObjectKey(sessionID, documentID, filename string) string {
	return fmt.Sprintf("documents/%s/%s/%s", sessionID, documentID, path.Base(filepath.ToSlash(filename)))
}

// ArchiveDocument uploads data and returns its public URL.
func (c *Client) ArchiveDocument(ctx context.Context, sessionID, documentID, filename, contentType string, data []byte) (string, error) {
	if c == nil || c.s3Client == nil {
		return "", fmt.Errorf("R2 client not initialized, skipping upload")
	}

	objectKey := ObjectKey(sessionID, documentID, filename)
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucketName),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file to R2 (key: %s): %w", objectKey, err)
	}

	publicFileURL, err := PublicURL(c.publicURL, objectKey)
	if err != nil {
		return "", err
	}
	c.log.Info("document archived", zap.String("url", publicFileURL))
	return publicFileURL, nil
}

// PublicURL joins the bucket's public base URL and an object key.
func PublicURL(base, objectKey string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid R2 public base URL configured: %w", err)
	}
	baseURL.Path = path.Join(baseURL.Path, objectKey)
	return baseURL.String(), nil
}
