//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// KDCHelper manages a MIT Kerberos KDC testcontainer.
type KDCHelper struct {
	container testcontainers.Container
	realm     string
	kdcHost   string
	kdcPort   int
}

// KDCConfig holds configuration for the KDC container.
type KDCConfig struct {
	Realm string
}

// NewKDCHelper creates and starts a MIT Kerberos KDC container.
func NewKDCHelper(t *testing.T, cfg KDCConfig) *KDCHelper {
	t.Helper()

	if cfg.Realm == "" {
		cfg.Realm = "TGTKEEP.LOCAL"
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "gcavalcante8808/krb5-server:latest",
		ExposedPorts: []string{"88/tcp", "88/udp", "749/tcp"},
		Env: map[string]string{
			"KRB5_REALM": cfg.Realm,
			"KRB5_KDC":   "localhost",
			"KRB5_PASS":  "admin-e2e-password",
		},
		WaitingFor: wait.ForListeningPort("88/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start KDC container")

	mappedPort, err := container.MappedPort(ctx, nat.Port("88/tcp"))
	require.NoError(t, err, "failed to get KDC port")

	host, err := container.Host(ctx)
	require.NoError(t, err, "failed to get KDC host")

	helper := &KDCHelper{
		container: container,
		realm:     cfg.Realm,
		kdcHost:   host,
		kdcPort:   mappedPort.Int(),
	}

	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	return helper
}

// Realm returns the Kerberos realm name.
func (k *KDCHelper) Realm() string {
	return k.realm
}

// KDCAddress returns the host:port of the KDC as reachable from the
// test process.
func (k *KDCHelper) KDCAddress() string {
	return fmt.Sprintf("%s:%d", k.kdcHost, k.kdcPort)
}

// AddPrincipalWithKeytab creates a principal with a random key and
// exports its keytab to a file on the host. Returns the keytab path.
func (k *KDCHelper) AddPrincipalWithKeytab(t *testing.T, principal string) string {
	t.Helper()

	ctx := context.Background()
	full := fmt.Sprintf("%s@%s", principal, k.realm)

	cmd := fmt.Sprintf("kadmin.local -q \"addprinc -randkey %s\"", full)
	exitCode, _, err := k.container.Exec(ctx, []string{"bash", "-c", cmd})
	require.NoError(t, err, "failed to exec kadmin.local")
	require.Equal(t, 0, exitCode, "kadmin.local addprinc failed")

	containerPath := fmt.Sprintf("/tmp/%s.keytab", principal)
	cmd = fmt.Sprintf("kadmin.local -q \"ktadd -k %s %s\"", containerPath, full)
	exitCode, _, err = k.container.Exec(ctx, []string{"bash", "-c", cmd})
	require.NoError(t, err, "failed to exec kadmin.local ktadd")
	require.Equal(t, 0, exitCode, "kadmin.local ktadd failed")

	reader, err := k.container.CopyFileFromContainer(ctx, containerPath)
	require.NoError(t, err, "failed to copy keytab from container")
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	require.NoError(t, err, "failed to read keytab")

	hostPath := filepath.Join(t.TempDir(), principal+".keytab")
	require.NoError(t, os.WriteFile(hostPath, data, 0600))

	return hostPath
}

// WriteTemplate writes a krb5.conf template pointing at this KDC and
// returns its path. The kdc host placeholder stays a render token so
// the test exercises the real materialization path.
func (k *KDCHelper) WriteTemplate(t *testing.T, dir string) string {
	t.Helper()

	// udp_preference_limit forces TCP; only the TCP port is mapped out
	// of the container.
	content := fmt.Sprintf(`[libdefaults]
    default_realm = %s
    dns_lookup_realm = false
    dns_lookup_kdc = false
    udp_preference_limit = 1
    default_ccache_name = FILE:{{ccache_path}}

[realms]
    %s = {
        kdc = {{kdc}}
    }
`, k.realm, k.realm)

	path := filepath.Join(dir, "krb5.conf.tmpl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	return path
}
