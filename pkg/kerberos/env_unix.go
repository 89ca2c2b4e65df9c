//go:build !windows

package kerberos

import "errors"

// errNoPersistentStore signals that the platform has no OS-level
// persistent environment store; the process scope is the only one.
var errNoPersistentStore = errors.New("no persistent environment store")

// persistEnv is a no-op on Unix-like platforms. Environment variables
// there are inherited per process; the os.Setenv performed by
// materialize already covers every subprocess the manager spawns.
func persistEnv(key, value string) error {
	return errNoPersistentStore
}
