// Package s3 exports a ledger to an S3 bucket as JSON lines.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/tinymmo/internal/logger"
	"github.com/marmos91/tinymmo/pkg/ledger"
	"github.com/marmos91/tinymmo/pkg/metrics"
)

// Config configures the archive target. Client construction options live in
// the config package.
type Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	MaxRetries      int    `mapstructure:"max_retries" validate:"gte=0"`
}

// Enabled reports whether an archive bucket is configured.
func (c Config) Enabled() bool {
	return c.Bucket != ""
}

// PutObjectAPI is the subset of *s3.Client the archiver uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver uploads a full ledger snapshot as one object.
type Archiver struct {
	client    PutObjectAPI
	bucket    string
	keyPrefix string
	metrics   metrics.LedgerMetrics
	now       func() time.Time
}

// New creates an archiver. m may be nil.
func New(client PutObjectAPI, bucket, keyPrefix string, m metrics.LedgerMetrics) *Archiver {
	if m == nil {
		m = metrics.NewNoopLedgerMetrics()
	}
	return &Archiver{
		client:    client,
		bucket:    bucket,
		keyPrefix: keyPrefix,
		metrics:   m,
		now:       time.Now,
	}
}

// ObjectKey returns the key used for an archive taken at t.
func (a *Archiver) ObjectKey(t time.Time) string {
	return path.Join(a.keyPrefix, "ledger-"+t.UTC().Format("20060102T150405Z")+".jsonl")
}

// Archive writes every record in store, oldest first, one JSON object per
// line, and returns the number of records uploaded. An empty ledger uploads
// nothing.
func (a *Archiver) Archive(ctx context.Context, store ledger.Store) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	count := 0
	err := store.Scan(ctx, func(rec ledger.Record) error {
		count++
		return enc.Encode(rec)
	})
	if err != nil {
		a.metrics.RecordArchive(0, err)
		return 0, fmt.Errorf("failed to read ledger for archive: %w", err)
	}
	if count == 0 {
		logger.Debug("Ledger empty, skipping archive")
		return 0, nil
	}

	key := a.ObjectKey(a.now())
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(int64(buf.Len())),
		ContentType:   aws.String("application/x-ndjson"),
	})
	a.metrics.RecordArchive(count, err)
	if err != nil {
		return 0, fmt.Errorf("failed to upload ledger archive s3://%s/%s: %w", a.bucket, key, err)
	}

	logger.Info("Archived %d ledger records to s3://%s/%s", count, a.bucket, key)
	return count, nil
}
