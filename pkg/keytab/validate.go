package keytab

import (
	"fmt"
	"strings"
	"time"

	"github.com/jcmturner/gokrb5/v8/keytab"
)

// Entry summarizes one keytab entry for inspection output.
type Entry struct {
	Principal string    `json:"principal" yaml:"principal"`
	Realm     string    `json:"realm" yaml:"realm"`
	KVNO      uint32    `json:"kvno" yaml:"kvno"`
	EType     int32     `json:"etype" yaml:"etype"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Validate checks that data is a non-empty, well-formed keytab.
func Validate(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("keytab is empty")
	}

	kt := keytab.New()
	if err := kt.Unmarshal(data); err != nil {
		return fmt.Errorf("parse keytab: %w", err)
	}

	if len(kt.Entries) == 0 {
		return fmt.Errorf("keytab contains no entries")
	}

	return nil
}

// Entries parses data and returns a per-entry summary.
func Entries(data []byte) ([]Entry, error) {
	kt := keytab.New()
	if err := kt.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("parse keytab: %w", err)
	}

	entries := make([]Entry, 0, len(kt.Entries))
	for _, e := range kt.Entries {
		kvno := e.KVNO
		if kvno == 0 {
			kvno = uint32(e.KVNO8)
		}

		entries = append(entries, Entry{
			Principal: strings.Join(e.Principal.Components, "/"),
			Realm:     e.Principal.Realm,
			KVNO:      kvno,
			EType:     e.Key.KeyType,
			Timestamp: e.Timestamp,
		})
	}

	return entries, nil
}

// HasPrincipal reports whether the keytab carries an entry for the
// given principal. The principal may be given with or without a realm
// suffix (name@REALM); matching is case-insensitive on the realm and
// exact on the name components.
func HasPrincipal(data []byte, principal string) (bool, error) {
	name, realm := SplitPrincipal(principal)

	entries, err := Entries(data)
	if err != nil {
		return false, err
	}

	for _, e := range entries {
		if e.Principal != name {
			continue
		}
		if realm == "" || strings.EqualFold(e.Realm, realm) {
			return true, nil
		}
	}

	return false, nil
}

// SplitPrincipal separates a name@REALM principal into its parts. The
// realm is empty when the principal has no @ separator.
func SplitPrincipal(principal string) (name, realm string) {
	if i := strings.LastIndex(principal, "@"); i >= 0 {
		return principal[:i], principal[i+1:]
	}
	return principal, ""
}
