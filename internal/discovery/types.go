package discovery

import (
	"context"
	"time"

	"github.com/stackspend/stackspend/internal/spend"
)

const (
	SourceOkta              = "okta"
	SourceGoogleWorkspace   = "google_workspace"
	SourceAWSIdentityCenter = "aws_identity_center"
	SourceEntra             = "entra_id"
	SourceManual            = "manual"

	ManagedStateManaged   = "managed"
	ManagedStateUnmanaged = "unmanaged"

	ManagedReasonLinkedFreshSync = "linked_fresh_sync"
	ManagedReasonNotLinked       = "not_linked"
	ManagedReasonIgnored         = "ignored"
	ManagedReasonStaleSync       = "stale_sync"
)

// Observation is one source's report of an application and the people using it.
type Observation = spend.DiscoveryObservation

// Source collects observations from one upstream system.
type Source interface {
	Name() string
	Collect(ctx context.Context) ([]Observation, error)
}

type CanonicalInput struct {
	SourceKind       string
	SourceName       string
	SourceAppID      string
	SourceAppName    string
	SourceDomain     string
	SourceVendorName string
}

type AppMetadata struct {
	CanonicalKey string
	DisplayName  string
	Domain       string
	VendorName   string
}

type ManagedStateInput struct {
	HasApplication  bool
	Ignored         bool
	LastSeenAt      time.Time
	FreshnessWindow time.Duration
	Now             time.Time
}

type RiskInput struct {
	ManagedState          string
	HasPrivilegedScopes   bool
	HasConfidentialScopes bool
	HasOwner              bool
	UserCount             int
	ActiveUsers           int
}

// KnownSource reports whether s names a supported discovery source.
func KnownSource(s string) bool {
	switch s {
	case SourceOkta, SourceGoogleWorkspace, SourceAWSIdentityCenter, SourceEntra, SourceManual:
		return true
	default:
		return false
	}
}

// SourceDisplayName returns the human-readable name for a source kind.
func SourceDisplayName(s string) string {
	switch s {
	case SourceOkta:
		return "Okta"
	case SourceGoogleWorkspace:
		return "Google Workspace"
	case SourceAWSIdentityCenter:
		return "AWS IAM Identity Center"
	case SourceEntra:
		return "Microsoft Entra ID"
	case SourceManual:
		return "Manual"
	default:
		return s
	}
}
