package config

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/dtftp/internal/logger"
	"github.com/marmos91/dtftp/pkg/metrics"
	"github.com/marmos91/dtftp/pkg/source"
	sourceBadger "github.com/marmos91/dtftp/pkg/source/badger"
	sourceFs "github.com/marmos91/dtftp/pkg/source/fs"
	sourceMemory "github.com/marmos91/dtftp/pkg/source/memory"
	sourceS3 "github.com/marmos91/dtftp/pkg/source/s3"
)

// CreateSourceProvider builds the data-source backend selected by
// cfg.Type, decoding the matching option map into the backend's own
// configuration struct.
//
// Backends holding resources (badger) implement io.Closer; the caller is
// responsible for closing the provider at shutdown when it does.
func CreateSourceProvider(ctx context.Context, cfg *SourceConfig) (source.Provider, error) {
	switch cfg.Type {
	case "filesystem":
		return createFilesystemProvider(cfg.Filesystem)
	case "memory":
		return createMemoryProvider(cfg.Memory)
	case "s3":
		return createS3Provider(ctx, cfg.S3)
	case "badger":
		return createBadgerProvider(cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown source type: %q", cfg.Type)
	}
}

func createFilesystemProvider(options map[string]any) (source.Provider, error) {
	type filesystemOptions struct {
		Root string `mapstructure:"root"`
	}

	var opts filesystemOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem source config: %w", err)
	}
	if opts.Root == "" {
		return nil, fmt.Errorf("filesystem source: root is required")
	}

	provider, err := sourceFs.New(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem source: %w", err)
	}

	logger.Info("Filesystem source initialized: root=%s", opts.Root)
	return provider, nil
}

func createMemoryProvider(options map[string]any) (source.Provider, error) {
	type memoryOptions struct {
		// Files maps served paths to their literal contents.
		Files map[string]string `mapstructure:"files"`
	}

	var opts memoryOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode memory source config: %w", err)
	}

	provider := sourceMemory.NewProvider()
	for path, content := range opts.Files {
		provider.Put(path, []byte(content))
	}

	logger.Info("Memory source initialized: %d file(s)", len(opts.Files))
	return provider, nil
}

func createS3Provider(ctx context.Context, options map[string]any) (source.Provider, error) {
	type s3Options struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var opts s3Options
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode S3 source config: %w", err)
	}
	if opts.Bucket == "" {
		return nil, fmt.Errorf("S3 source: bucket is required")
	}
	if opts.Region == "" {
		return nil, fmt.Errorf("S3 source: region is required")
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(opts.Region))

	// custom endpoint support for MinIO, Localstack and friends
	if opts.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               opts.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"",
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := opts.MaxRetries
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

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// path-style addressing for S3-compatible stores behind custom
		// endpoints
		if opts.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	provider, err := sourceS3.New(ctx, sourceS3.Config{
		Client:    client,
		Bucket:    opts.Bucket,
		KeyPrefix: opts.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 source: %w", err)
	}

	logger.Info("S3 source initialized: bucket=%s, region=%s, prefix=%s",
		opts.Bucket, opts.Region, opts.KeyPrefix)
	return provider, nil
}

func createBadgerProvider(options map[string]any) (source.Provider, error) {
	type badgerOptions struct {
		Path     string `mapstructure:"path"`
		InMemory bool   `mapstructure:"in_memory"`
	}

	var opts badgerOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode badger source config: %w", err)
	}
	if !opts.InMemory && opts.Path == "" {
		return nil, fmt.Errorf("badger source: path is required unless in_memory is true")
	}

	provider, err := sourceBadger.New(sourceBadger.Config{
		Path:     opts.Path,
		InMemory: opts.InMemory,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create badger source: %w", err)
	}

	logger.Info("Badger source initialized: path=%s in_memory=%v", opts.Path, opts.InMemory)
	return provider, nil
}

// CreateMetrics initializes the metrics stack when enabled. Returns the
// collector for the TFTP server and the HTTP server exposing /metrics;
// both are nil when metrics are disabled.
func CreateMetrics(cfg *MetricsConfig) (metrics.TFTPMetrics, *metrics.Server) {
	if !cfg.Enabled {
		return nil, nil
	}

	metrics.InitRegistry()
	collector := metrics.NewTFTPMetrics()
	httpServer := metrics.NewServer(metrics.ServerConfig{Port: cfg.Port})
	return collector, httpServer
}
