package discovery

import (
	"net"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/net/publicsuffix"
)

const (
	maxSlugLen   = 64
	maxVendorLen = 80
)

// BuildMetadata derives the key, label, domain and vendor for an observed app.
func BuildMetadata(in CanonicalInput) AppMetadata {
	domain := NormalizeDomain(in.SourceDomain)
	return AppMetadata{
		CanonicalKey: CanonicalKey(in),
		DisplayName:  firstNonBlank(in.SourceAppName, in.SourceAppID, "Unknown app"),
		Domain:       domain,
		VendorName:   vendorName(in.SourceVendorName, domain),
	}
}

// CanonicalKey identifies an app across sources. Keys are tried from strongest to weakest:
//
//	domain:<eTLD+1>
//	okta_app:<org>:<app id>
//	name:<slug>:<source kind>
func CanonicalKey(in CanonicalInput) string {
	if domain := NormalizeDomain(in.SourceDomain); domain != "" {
		return "domain:" + domain
	}
	kind := strings.ToLower(strings.TrimSpace(in.SourceKind))
	appID := strings.ToLower(strings.TrimSpace(in.SourceAppID))
	if kind == SourceOkta && appID != "" {
		org := strings.ToLower(firstNonBlank(in.SourceName, "okta"))
		return "okta_app:" + org + ":" + appID
	}
	name := firstNonBlank(slug(in.SourceAppName), slug(in.SourceAppID), "unknown")
	return "name:" + name + ":" + firstNonBlank(kind, "unknown")
}

// NormalizeDomain reduces a URL or bare host to its registrable domain. IP addresses and
// blanks give "".
func NormalizeDomain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.ToLower(strings.Trim(strings.TrimPrefix(u.Hostname(), "*."), "."))
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}
	host = strings.TrimPrefix(host, "www.")
	if registrable, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return registrable
	}
	return host
}

// slug lowercases s and collapses every run of non-alphanumerics into one dash.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	out := b.String()
	if len(out) > maxSlugLen {
		out = strings.TrimRight(out[:maxSlugLen], "-")
	}
	return out
}

// vendorName prefers the source's own vendor label, else titles the domain's first label.
func vendorName(hint, domain string) string {
	if hint = strings.TrimSpace(hint); hint != "" {
		return truncate(hint, maxVendorLen)
	}
	label, _, _ := strings.Cut(domain, ".")
	label = strings.TrimSpace(strings.ReplaceAll(label, "-", " "))
	if label == "" {
		return ""
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
