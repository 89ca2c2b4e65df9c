//go:build windows

package kerberos

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"
)

// errNoPersistentStore is never returned on Windows; it exists so the
// caller can branch uniformly across platforms.
var errNoPersistentStore = errors.New("no persistent environment store")

// persistEnv writes the variable to the per-user environment store
// (HKCU\Environment), so that tool invocations outside the current
// process tree observe it as well.
func persistEnv(key, value string) error {
	k, err := registry.OpenKey(registry.CURRENT_USER, "Environment", registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open HKCU\\Environment: %w", err)
	}
	defer k.Close()

	if err := k.SetStringValue(key, value); err != nil {
		return fmt.Errorf("set %s in HKCU\\Environment: %w", key, err)
	}

	return nil
}
