package kerberos

import (
	"fmt"
	"strings"
	"time"

	"github.com/jcmturner/gokrb5/v8/credentials"
)

// TicketStatus summarizes the credential cache on disk.
type TicketStatus struct {
	// Principal is the default principal of the cache (name without realm).
	Principal string `json:"principal" yaml:"principal"`

	// Realm is the default principal's realm.
	Realm string `json:"realm" yaml:"realm"`

	// HasTGT reports whether a krbtgt credential for the realm is present.
	HasTGT bool `json:"has_tgt" yaml:"has_tgt"`

	// IssuedAt is the TGT auth time (zero when no TGT).
	IssuedAt time.Time `json:"issued_at,omitempty" yaml:"issued_at,omitempty"`

	// ExpiresAt is the TGT end time (zero when no TGT).
	ExpiresAt time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`

	// RenewableUntil is the TGT renew-till time (zero when not renewable).
	RenewableUntil time.Time `json:"renewable_until,omitempty" yaml:"renewable_until,omitempty"`
}

// Expired reports whether the TGT is present but past its end time.
func (s *TicketStatus) Expired(now time.Time) bool {
	return s.HasTGT && now.After(s.ExpiresAt)
}

// InspectCCache reads the credential cache at path and extracts the
// ticket-granting ticket for the cache's default realm.
func InspectCCache(path string) (*TicketStatus, error) {
	cc, err := credentials.LoadCCache(path)
	if err != nil {
		return nil, fmt.Errorf("load ccache %s: %w", path, err)
	}

	realm := cc.DefaultPrincipal.Realm
	status := &TicketStatus{
		Principal: cc.DefaultPrincipal.PrincipalName.PrincipalNameString(),
		Realm:     realm,
	}

	tgtServer := "krbtgt/" + realm
	for _, cred := range cc.Credentials {
		server := cred.Server.PrincipalName.PrincipalNameString()
		if !strings.EqualFold(server, tgtServer) {
			continue
		}

		status.HasTGT = true
		status.IssuedAt = cred.AuthTime
		status.ExpiresAt = cred.EndTime
		status.RenewableUntil = cred.RenewTill
		break
	}

	return status, nil
}
