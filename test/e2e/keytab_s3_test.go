//go:build e2e

package e2e

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/tgtkeep/pkg/config"
	"github.com/marmos91/tgtkeep/pkg/keytab"
)

// TestKeytabSource_S3 provisions a keytab object in Localstack and
// fetches it through the configured S3 source.
func TestKeytabSource_S3(t *testing.T) {
	localstack := NewLocalstackHelper(t)
	ctx := context.Background()

	kdc := NewKDCHelper(t, KDCConfig{})
	keytabPath := kdc.AddPrincipalWithKeytab(t, "svc-s3")

	original, err := os.ReadFile(keytabPath)
	require.NoError(t, err)

	const bucket = "tgtkeep-e2e-keytabs"
	const key = "keytabs/svc-s3.keytab"

	localstack.CreateBucket(ctx, bucket)
	localstack.PutObject(ctx, bucket, key, original)

	cfg := config.KeytabConfig{
		Source: "s3",
		S3: config.S3KeytabConfig{
			Bucket:          bucket,
			Key:             key,
			Region:          "us-east-1",
			Endpoint:        localstack.Endpoint,
			ForcePathStyle:  true,
			AccessKeyID:     "test",
			SecretAccessKey: "test",
		},
	}

	source, err := keytab.FromConfig(ctx, &cfg)
	require.NoError(t, err)

	fetched, err := source.Fetch(ctx)
	require.NoError(t, err)
	require.Equal(t, original, fetched)

	// The fetched bytes are a parseable keytab with the expected entry
	require.NoError(t, keytab.Validate(fetched))
	ok, err := keytab.HasPrincipal(fetched, "svc-s3@"+kdc.Realm())
	require.NoError(t, err)
	require.True(t, ok)
}

// TestKeytabSource_S3MissingObject surfaces a fetch error for a key
// that does not exist.
func TestKeytabSource_S3MissingObject(t *testing.T) {
	localstack := NewLocalstackHelper(t)
	ctx := context.Background()

	const bucket = "tgtkeep-e2e-missing"
	localstack.CreateBucket(ctx, bucket)

	cfg := config.KeytabConfig{
		Source: "s3",
		S3: config.S3KeytabConfig{
			Bucket:          bucket,
			Key:             "does/not/exist.keytab",
			Region:          "us-east-1",
			Endpoint:        localstack.Endpoint,
			ForcePathStyle:  true,
			AccessKeyID:     "test",
			SecretAccessKey: "test",
		},
	}

	source, err := keytab.FromConfig(ctx, &cfg)
	require.NoError(t, err)

	_, err = source.Fetch(ctx)
	require.Error(t, err)
}
