package transcribe

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anatolykoptev/go_cortex/internal/engine"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const objectPrefix = "cortex-transcription/"

// Object is a staged audio file reachable by URL until it is deleted or the URL expires.
type Object struct {
	Key string
	URL string
}

// ObjectStore stages audio where the recognizer can fetch it.
type ObjectStore interface {
	Put(ctx context.Context, localPath string) (Object, error)
	Delete(ctx context.Context, key string) error
}

// ObjectKey builds a collision-free ASCII key for a staged wav.
func ObjectKey(now time.Time) string {
	return fmt.Sprintf("%s%s_%s.wav", objectPrefix, now.Format("20060102150405"), uuid.NewString()[:8])
}

// OSSRegion normalizes "oss-cn-beijing" to "cn-beijing".
func OSSRegion(region string) string {
	return strings.TrimPrefix(strings.TrimSpace(region), "oss-")
}

// OSSEndpoint returns the S3-compatible endpoint for a region unless one is configured.
func OSSEndpoint(region, endpoint string) string {
	if endpoint != "" {
		if !strings.Contains(endpoint, "://") {
			endpoint = "https://" + endpoint
		}
		return endpoint
	}
	return "https://oss-" + OSSRegion(region) + ".aliyuncs.com"
}

// S3Store stages objects in an S3-compatible bucket and hands out presigned GET URLs.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
	now     func() time.Time
}

// NewS3Store builds a client for the configured OSS bucket with static credentials.
func NewS3Store(ctx context.Context, cfg *engine.Config) (*S3Store, error) {
	if cfg.OSSBucket == "" || cfg.AliyunAccessKeyID == "" || cfg.AliyunAccessKeySecret == "" {
		return nil, fmt.Errorf("object store: OSS_BUCKET and ALIYUN_ACCESS_KEY_ID/SECRET are required: %w", engine.ErrConfiguration)
	}
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(OSSRegion(cfg.OSSRegion)),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AliyunAccessKeyID, cfg.AliyunAccessKeySecret, cfg.AliyunSecurityToken,
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("object store: load sdk config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(OSSEndpoint(cfg.OSSRegion, cfg.OSSEndpoint))
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	ttl := cfg.OSSURLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.OSSBucket,
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

// Put uploads the file and returns a presigned GET URL valid for the configured TTL.
func (s *S3Store) Put(ctx context.Context, localPath string) (Object, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return Object{}, err
	}
	defer f.Close()

	key := ObjectKey(s.now())
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("audio/wav"),
	})
	if err != nil {
		return Object{}, fmt.Errorf("object store: upload %s: %w", key, err)
	}

	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return Object{Key: key}, fmt.Errorf("object store: presign %s: %w", key, err)
	}
	return Object{Key: key, URL: req.URL}, nil
}

// Delete removes a staged object.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("object store: delete %s: %w", key, err)
	}
	return nil
}
