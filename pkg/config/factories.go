package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/tinymmo/internal/logger"
	"github.com/marmos91/tinymmo/internal/ratelimiter"
	"github.com/marmos91/tinymmo/pkg/ledger"
	"github.com/marmos91/tinymmo/pkg/ledger/badger"
	"github.com/marmos91/tinymmo/pkg/ledger/memory"
	ledgerS3 "github.com/marmos91/tinymmo/pkg/ledger/s3"
	"github.com/marmos91/tinymmo/pkg/metrics"
)

// CreateLedgerStore creates a ledger store based on configuration.
//
// This factory function uses the Type field to determine which store implementation
// to create, then decodes the type-specific configuration from the corresponding
// map and passes it to the store's constructor.
//
// Supported types:
//   - "none": no ledger; returns a nil store
//   - "memory": Uses pkg/ledger/memory (bounded, lost on restart)
//   - "badger": Uses pkg/ledger/badger (persistent)
func CreateLedgerStore(ctx context.Context, cfg *LedgerConfig) (ledger.Store, error) {
	switch cfg.Type {
	case "none":
		return nil, nil
	case "memory":
		return createMemoryLedgerStore(cfg.Memory)
	case "badger":
		return createBadgerLedgerStore(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown ledger store type: %q", cfg.Type)
	}
}

func createMemoryLedgerStore(options map[string]any) (ledger.Store, error) {
	var storeCfg memory.Config
	if err := decodeStoreConfig(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode memory ledger config: %w", err)
	}

	logger.Info("Memory ledger initialized: max_records=%d", storeCfg.MaxRecords)
	return memory.New(storeCfg), nil
}

func createBadgerLedgerStore(ctx context.Context, options map[string]any) (ledger.Store, error) {
	var storeCfg badger.Config
	if err := decodeStoreConfig(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger ledger config: %w", err)
	}

	if storeCfg.DBPath == "" && !storeCfg.InMemory {
		return nil, fmt.Errorf("badger ledger: db_path is required")
	}

	store, err := badger.New(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger ledger: %w", err)
	}

	logger.Info("Badger ledger initialized: path=%s", storeCfg.DBPath)
	return store, nil
}

// CreateArchiver builds the S3 client and archiver for cfg. Returns nil when
// no bucket is configured.
func CreateArchiver(ctx context.Context, cfg *ledgerS3.Config, m metrics.LedgerMetrics) (*ledgerS3.Archiver, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("S3 archive: region is required")
	}

	// ========================================================================
	// Step 1: Build AWS Config
	// ========================================================================

	var configOptions []func(*awsConfig.LoadOptions) error

	configOptions = append(configOptions, awsConfig.WithRegion(cfg.Region))

	// Set credentials if provided, otherwise use default credential chain
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// ========================================================================
	// Step 2: Create S3 Client
	// ========================================================================

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Custom endpoints (MinIO, Localstack) need path-style addressing
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	logger.Info("S3 ledger archive configured: bucket=%s, region=%s, prefix=%s",
		cfg.Bucket, cfg.Region, cfg.KeyPrefix)

	return ledgerS3.New(client, cfg.Bucket, cfg.KeyPrefix, m), nil
}

// CreateLimiter returns the ingress limiter, or nil when limiting is off.
func CreateLimiter(cfg *RateLimitConfig) *ratelimiter.RateLimiter {
	return ratelimiter.New(cfg.PacketsPerSecond, cfg.Burst)
}
