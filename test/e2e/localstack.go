//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// LocalstackHelper manages a Localstack S3 testcontainer.
type LocalstackHelper struct {
	T         *testing.T
	Container testcontainers.Container
	Endpoint  string
	Client    *s3.Client
}

// NewLocalstackHelper creates and starts a Localstack container with S3.
func NewLocalstackHelper(t *testing.T) *LocalstackHelper {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "localstack/localstack:3.0",
		ExposedPorts: []string{"4566/tcp"},
		Env: map[string]string{
			"SERVICES":              "s3",
			"DEFAULT_REGION":        "us-east-1",
			"EAGER_SERVICE_LOADING": "1",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("4566/tcp"),
			wait.ForHTTP("/_localstack/health").
				WithPort("4566/tcp").
				WithStartupTimeout(60*time.Second),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start localstack container")

	host, err := container.Host(ctx)
	require.NoError(t, err, "failed to get container host")

	port, err := container.MappedPort(ctx, "4566")
	require.NoError(t, err, "failed to get container port")

	helper := &LocalstackHelper{
		T:         t,
		Container: container,
		Endpoint:  fmt.Sprintf("http://%s:%s", host, port.Port()),
	}
	helper.createClient()

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	return helper
}

// createClient creates an S3 client configured for Localstack.
func (lh *LocalstackHelper) createClient() {
	lh.T.Helper()

	ctx := context.Background()

	cfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion("us-east-1"),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			"test", "test", "",
		)),
	)
	require.NoError(lh.T, err, "failed to load AWS config")

	// Path-style URLs and custom endpoint are required for Localstack
	lh.Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = &lh.Endpoint
		o.UsePathStyle = true
	})
}

// CreateBucket creates a new S3 bucket.
func (lh *LocalstackHelper) CreateBucket(ctx context.Context, bucketName string) {
	lh.T.Helper()

	_, err := lh.Client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucketName),
	})
	require.NoError(lh.T, err, "failed to create bucket %s", bucketName)
}

// PutObject uploads an object into the given bucket.
func (lh *LocalstackHelper) PutObject(ctx context.Context, bucket, key string, data []byte) {
	lh.T.Helper()

	_, err := lh.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	require.NoError(lh.T, err, "failed to put object %s/%s", bucket, key)
}
