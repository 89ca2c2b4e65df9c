// Package keytab provisions and validates Kerberos keytab bytes.
//
// Short-lived compute environments have no persistent credential store,
// so the keytab is fetched at warmup from a configured source (a local
// file baked into the deployment package, or an S3 object) and handed
// to the ticket manager, which writes it to the scratch directory.
package keytab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/tgtkeep/pkg/config"
)

// ErrNoSource is returned by FromConfig when the configuration names no
// usable keytab source.
var ErrNoSource = errors.New("no keytab source configured")

// Source fetches keytab bytes from a provisioning backend.
type Source interface {
	// Fetch returns the raw keytab bytes. The caller validates and
	// persists them.
	Fetch(ctx context.Context) ([]byte, error)

	// Describe returns a human-readable description for logs.
	Describe() string
}

// FileSource reads the keytab from a local path.
type FileSource struct {
	Path string
}

// NewFileSource creates a file-backed keytab source.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Fetch(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read keytab %s: %w", s.Path, err)
	}
	return data, nil
}

func (s *FileSource) Describe() string {
	return "file:" + s.Path
}

// S3Source fetches the keytab object from S3 or an S3-compatible store.
type S3Source struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3Source creates an S3-backed keytab source.
//
// Endpoint, path-style addressing and static credentials are optional
// and exist for S3-compatible stores (MinIO, Localstack); with the zero
// values the SDK default region and credential chain are used.
func NewS3Source(ctx context.Context, cfg *config.S3KeytabConfig) (*S3Source, error) {
	if cfg.Bucket == "" || cfg.Key == "" {
		return nil, fmt.Errorf("s3 keytab source requires bucket and key")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &S3Source{
		client: client,
		bucket: cfg.Bucket,
		key:    cfg.Key,
	}, nil
}

func (s *S3Source) Fetch(ctx context.Context) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3 object %s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read s3 object body: %w", err)
	}

	return data, nil
}

func (s *S3Source) Describe() string {
	return "s3://" + s.bucket + "/" + s.key
}

// FromConfig selects and constructs the keytab source named by the
// configuration.
func FromConfig(ctx context.Context, cfg *config.KeytabConfig) (Source, error) {
	if cfg == nil {
		return nil, ErrNoSource
	}

	switch cfg.Source {
	case "", "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("%w: file source has no path", ErrNoSource)
		}
		return NewFileSource(cfg.Path), nil
	case "s3":
		return NewS3Source(ctx, &cfg.S3)
	default:
		return nil, fmt.Errorf("%w: unknown source %q", ErrNoSource, cfg.Source)
	}
}
