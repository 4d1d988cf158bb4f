package discovery

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeDomain(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                                    "",
		"https://sub.prod.example.co.uk/path": "example.co.uk",
		"www.Canva.com:443":                   "canva.com",
		"app.notion.so:8443/login":            "notion.so",
		"*.atlassian.net":                     "atlassian.net",
		"10.0.0.12":                           "",
		"http://[::1]:8080":                   "",
		"localhost":                           "localhost",
	}
	for raw, want := range tests {
		if got := NormalizeDomain(raw); got != want {
			t.Errorf("NormalizeDomain(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestSlug(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"My Awesome SaaS":  "my-awesome-saas",
		"  --Build Box!! ": "build-box",
		"Café Ops":         "caf-ops",
		"***":              "",
	}
	tests[strings.Repeat("ab ", 40)] = strings.Repeat("ab-", 21) + "a"
	for in, want := range tests {
		if got := slug(in); got != want {
			t.Errorf("slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildMetadata(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   CanonicalInput
		want AppMetadata
	}{
		{
			name: "domain wins over okta app id",
			in:   CanonicalInput{SourceKind: SourceOkta, SourceName: "acme", SourceAppID: "0oa1", SourceAppName: "Payroll Tool", SourceDomain: "payroll.acme.com"},
			want: AppMetadata{CanonicalKey: "domain:acme.com", DisplayName: "Payroll Tool", Domain: "acme.com", VendorName: "Acme"},
		},
		{
			name: "okta app key without a domain",
			in:   CanonicalInput{SourceKind: SourceOkta, SourceName: "dev-123.okta.com", SourceAppID: "00o8XV2"},
			want: AppMetadata{CanonicalKey: "okta_app:dev-123.okta.com:00o8xv2", DisplayName: "00o8XV2"},
		},
		{
			name: "okta app key without an org name",
			in:   CanonicalInput{SourceKind: SourceOkta, SourceAppID: "0oa9", SourceAppName: "Wiki"},
			want: AppMetadata{CanonicalKey: "okta_app:okta:0oa9", DisplayName: "Wiki"},
		},
		{
			name: "ip falls back to the name",
			in:   CanonicalInput{SourceKind: SourceManual, SourceAppName: "Build Box", SourceDomain: "10.0.0.12"},
			want: AppMetadata{CanonicalKey: "name:build-box:manual", DisplayName: "Build Box"},
		},
		{
			name: "vendor hint is kept",
			in:   CanonicalInput{SourceKind: SourceManual, SourceAppName: "Payroll Tool", SourceVendorName: " Contoso "},
			want: AppMetadata{CanonicalKey: "name:payroll-tool:manual", DisplayName: "Payroll Tool", VendorName: "Contoso"},
		},
		{
			name: "hyphenated domain label",
			in:   CanonicalInput{SourceKind: SourceGoogleWorkspace, SourceAppName: "Monday", SourceDomain: "https://monday-com.example"},
			want: AppMetadata{CanonicalKey: "domain:monday-com.example", DisplayName: "Monday", Domain: "monday-com.example", VendorName: "Monday com"},
		},
		{
			name: "nothing known",
			want: AppMetadata{CanonicalKey: "name:unknown:unknown", DisplayName: "Unknown app"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tt.want, BuildMetadata(tt.in)); diff != "" {
				t.Fatalf("BuildMetadata() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
