package kerberos

import (
	"errors"
	"fmt"
	"os"
	"strings"

	krb5config "github.com/jcmturner/gokrb5/v8/config"

	"github.com/marmos91/tgtkeep/internal/logger"
)

// Render substitutes the fixed placeholder vocabulary into a krb5.conf
// template.
//
// Recognized tokens: {{kdc}}, {{principal}}, {{keytab_path}},
// {{ccache_path}}. Anything else, including unrecognized {{...}}
// tokens, passes through verbatim so templates may carry realm-specific
// krb5 syntax untouched.
func Render(template, kdc, principal, keytabPath, ccachePath string) string {
	r := strings.NewReplacer(
		"{{kdc}}", kdc,
		"{{principal}}", principal,
		"{{keytab_path}}", keytabPath,
		"{{ccache_path}}", ccachePath,
	)
	return r.Replace(template)
}

// materialize renders the template against the resolved KDC and the
// manager's configuration and writes the result to the config target
// path, truncating prior content. Rendering is deterministic: an
// unchanged context produces byte-identical output.
//
// After writing, KRB5_CONFIG is exported in the process environment and
// in the OS-persistent environment store where the platform has one.
func (m *Manager) materialize(kdc string) error {
	tmpl, err := os.ReadFile(m.cfg.TemplatePath)
	if err != nil {
		return fmt.Errorf("read krb5 template %s: %w", m.cfg.TemplatePath, err)
	}

	rendered := Render(string(tmpl), kdc, m.cfg.Principal, m.cfg.KeytabPath, m.cfg.CcachePath)

	if err := os.WriteFile(m.cfg.ConfPath, []byte(rendered), 0644); err != nil {
		return fmt.Errorf("write krb5 config %s: %w", m.cfg.ConfPath, err)
	}

	// Best-effort sanity parse. Templates that keep foreign {{...}}
	// tokens are legal, so a parse failure is only worth a debug line.
	if _, err := krb5config.Load(m.cfg.ConfPath); err != nil {
		m.log.Debug("rendered krb5 config did not parse cleanly",
			logger.KeyPath, m.cfg.ConfPath,
			logger.KeyError, err.Error())
	}

	if err := os.Setenv("KRB5_CONFIG", m.cfg.ConfPath); err != nil {
		return fmt.Errorf("set KRB5_CONFIG: %w", err)
	}

	if err := persistEnv("KRB5_CONFIG", m.cfg.ConfPath); err != nil {
		if errors.Is(err, errNoPersistentStore) {
			m.log.Debug("no persistent environment store on this platform",
				"variable", "KRB5_CONFIG")
		} else {
			// Persistent scope is best-effort: the process scope is
			// already set and covers in-process invocations.
			m.log.Warn("failed to persist KRB5_CONFIG",
				logger.KeyError, err.Error())
		}
	}

	m.log.Debug("materialized krb5 config",
		logger.KeyPath, m.cfg.ConfPath,
		logger.KeyKdc, kdc)

	return nil
}
