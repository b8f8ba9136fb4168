// Package archive uploads rendered reports to S3-compatible storage.
package archive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/guildkeeper/internal/server/config"
	"github.com/dmitrijs2005/guildkeeper/internal/timex"
)

// PutObjectAPI is the part of *s3.Client the archive needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) PutObjectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type S3Archive struct {
	client PutObjectAPI
	bucket string
	clock  timex.Clock
}

func NewS3Archive(client PutObjectAPI, bucket string, clock timex.Clock) *S3Archive {
	if clock == nil {
		clock = timex.SystemClock
	}
	return &S3Archive{client: client, bucket: bucket, clock: clock}
}

// NewFromConfig builds an archive with static credentials, for MinIO and
// similar S3-compatible services.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*S3Archive, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3RootUser,
			cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3Archive(client, cfg.S3Bucket, nil), nil
}

// StorageKey returns reports/<year>/<month>/<day>/<uuid>.txt for t.
func StorageKey(t time.Time) string {
	return fmt.Sprintf("reports/%d/%d/%d/%v.txt", t.Year(), t.Month(), t.Day(), uuid.New())
}

// Store uploads body under a fresh key and returns the key.
func (a *S3Archive) Store(ctx context.Context, body string) (string, error) {
	key := StorageKey(a.clock())

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(body),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	return key, nil
}
