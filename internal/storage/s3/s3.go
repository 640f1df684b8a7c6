package s3

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/MoonJiyun2/IdeaShelf/internal/storage"
)

// KeyPrefix is prepended to every object key.
const KeyPrefix = "covers/"

const presignExpiry = 15 * time.Minute

// Config holds the bucket and credentials for an S3-compatible store.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // empty for AWS itself
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string // when empty, GetURL presigns a download URL
}

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Storage implements storage.Storage on an S3 bucket.
type Storage struct {
	client    objectAPI
	presigner presignAPI
	bucket    string
	publicURL string
}

// New builds an S3 client from cfg. Static credentials are used when given,
// otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg Config) (*Storage, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newStorage(client, s3.NewPresignClient(client), cfg.Bucket, cfg.PublicBaseURL), nil
}

func newStorage(client objectAPI, p presignAPI, bucket, publicURL string) *Storage {
	return &Storage{
		client:    client,
		presigner: p,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Upload puts the object under covers/<name>.
func (s *Storage) Upload(ctx context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	if input.Name == "" || strings.Contains(input.Name, "/") {
		return nil, fmt.Errorf("invalid object name %q", input.Name)
	}
	key := KeyPrefix + input.Name

	put := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   input.Data,
	}
	if input.ContentType != "" {
		put.ContentType = aws.String(input.ContentType)
	}
	if input.Size > 0 {
		put.ContentLength = aws.Int64(input.Size)
	}

	if _, err := s.client.PutObject(ctx, put); err != nil {
		return nil, fmt.Errorf("s3: put object %s: %w", key, err)
	}

	url, err := s.GetURL(ctx, key)
	if err != nil {
		return nil, err
	}
	return &storage.UploadResult{Key: key, URL: url}, nil
}

// Delete removes the object behind key.
func (s *Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3: delete object %s: %w", key, err)
	}
	return nil
}

// GetURL returns the public URL of key, or a short-lived presigned URL when
// the bucket has no public base URL.
func (s *Storage) GetURL(ctx context.Context, key string) (string, error) {
	if s.publicURL != "" {
		return s.publicURL + "/" + key, nil
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = presignExpiry
	})
	if err != nil {
		return "", fmt.Errorf("s3: presign %s: %w", key, err)
	}
	return req.URL, nil
}
