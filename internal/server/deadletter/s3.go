// Package deadletter archives history entries that could not be written to
// the record store during a buffer flush, so operators can reconcile them.
package deadletter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/pilosopo/internal/server/models"
)

// KeyPrefix is the object key prefix of archived entries.
const KeyPrefix = "history-deadletter"

// Settings selects the S3-compatible endpoint and bucket.
type Settings struct {
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
}

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) putter {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Archive writes one JSON object per dropped entry.
type S3Archive struct {
	bucket string
	client putter
}

func NewS3Archive(ctx context.Context, s Settings) (*S3Archive, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(s.Region)}
	if s.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKey, s.SecretKey, ""),
		))
	}
	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if s.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Archive{bucket: s.Bucket, client: client}, nil
}

// Key returns the object key for e.
func Key(e *models.HistoryEntry) string {
	return fmt.Sprintf("%s/%s/%s.json", KeyPrefix, e.OwnerID, e.ID)
}

// Archive stores e together with the reason it was dropped.
func (a *S3Archive) Archive(ctx context.Context, e *models.HistoryEntry, reason error) error {
	body, err := json.Marshal(struct {
		Entry  *models.HistoryEntry `json:"entry"`
		Reason string               `json:"reason"`
	}{Entry: e, Reason: reason.Error()})
	if err != nil {
		return err
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(Key(e)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", Key(e), err)
	}
	return nil
}
