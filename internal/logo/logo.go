// Package logo finds a displayable logo for an application, falling back to initials.
package logo

import (
	"context"
	"fmt"
	"hash/fnv"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"github.com/stackspend/stackspend/internal/metrics"
	"github.com/stackspend/stackspend/internal/spend"
)

// MaxCandidates bounds the probes made for one resolution.
const MaxCandidates = 6

const (
	defaultProbeTimeout = 3 * time.Second
	defaultCacheTTL     = 24 * time.Hour
)

var palette = []string{
	"#2563eb", "#7c3aed", "#db2777", "#dc2626", "#ea580c",
	"#ca8a04", "#16a34a", "#0d9488", "#0891b2", "#4f46e5",
}

// Logo is either a remote image URL or an initials badge.
type Logo struct {
	URL      string
	Initials string
	Color    string
	Fallback bool
}

// SVG renders the initials badge.
func (l Logo) SVG() []byte {
	return []byte(fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="64" height="64" viewBox="0 0 64 64">`+
			`<rect width="64" height="64" rx="12" fill="%s"/>`+
			`<text x="32" y="32" dy=".35em" text-anchor="middle" font-family="system-ui, sans-serif" font-size="26" font-weight="600" fill="#ffffff">%s</text>`+
			`</svg>`,
		l.Color, html.EscapeString(l.Initials)))
}

type Options struct {
	ProbeTimeout time.Duration
	CacheTTL     time.Duration
	HTTPClient   *http.Client
}

type Resolver struct {
	http         *resty.Client
	cache        *cache.Cache
	probeTimeout time.Duration
	candidates   func(spend.Application) []string
}

func NewResolver(opts Options) *Resolver {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	client := resty.NewWithClient(hc).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(3)).
		SetHeader("User-Agent", "stackspend-logo/1.0")
	return &Resolver{
		http:         client,
		cache:        cache.New(opts.CacheTTL, 2*opts.CacheTTL),
		probeTimeout: opts.ProbeTimeout,
		candidates:   Candidates,
	}
}

// Resolve returns the first candidate that answers a HEAD with a 2xx image, or the initials
// fallback. Both outcomes are cached.
func (r *Resolver) Resolve(ctx context.Context, app spend.Application) Logo {
	key := cacheKey(app)
	if v, ok := r.cache.Get(key); ok {
		metrics.LogoResolutionsTotal.WithLabelValues("cache").Inc()
		return v.(Logo)
	}

	candidates := r.candidates(app)
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			break
		}
		if r.probe(ctx, candidate) {
			logo := Logo{URL: candidate}
			r.cache.SetDefault(key, logo)
			metrics.LogoResolutionsTotal.WithLabelValues("probe").Inc()
			return logo
		}
	}

	logo := Fallback(app.Name)
	if ctx.Err() == nil {
		r.cache.SetDefault(key, logo)
	}
	metrics.LogoResolutionsTotal.WithLabelValues("fallback").Inc()
	return logo
}

// Forget drops the cached result, e.g. after the application's domain changes.
func (r *Resolver) Forget(app spend.Application) {
	r.cache.Delete(cacheKey(app))
}

func (r *Resolver) probe(ctx context.Context, candidate string) bool {
	ctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()
	resp, err := r.http.R().SetContext(ctx).Head(candidate)
	if err != nil || !resp.IsSuccess() {
		return false
	}
	return strings.HasPrefix(strings.ToLower(resp.Header().Get("Content-Type")), "image/")
}

func cacheKey(app spend.Application) string {
	return strconv.FormatInt(app.ID, 10) + "|" + strings.ToLower(app.Domain) + "|" + app.LogoURL + "|" + app.Name
}

// Candidates lists logo URLs in preference order, deduplicated and capped at MaxCandidates.
func Candidates(app spend.Application) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(u string) {
		if u == "" {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}

	if u := strings.TrimSpace(app.LogoURL); strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://") {
		add(u)
	}
	if domain := hostOf(app.Domain); domain != "" {
		add("https://logo.clearbit.com/" + domain)
		add("https://www.google.com/s2/favicons?sz=128&domain=" + url.QueryEscape(domain))
		add("https://" + domain + "/apple-touch-icon.png")
		add("https://" + domain + "/favicon.ico")
		if !strings.HasPrefix(domain, "www.") {
			add("https://www." + domain + "/favicon.ico")
		}
	}
	if len(out) > MaxCandidates {
		out = out[:MaxCandidates]
	}
	return out
}

func hostOf(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
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
	return u.Hostname()
}

// Fallback builds the initials badge. The color depends only on the name.
func Fallback(name string) Logo {
	return Logo{Initials: Initials(name), Color: Color(name), Fallback: true}
}

// Initials takes the first letter of the first two words, or "?" when there are none.
func Initials(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	initials := make([]rune, 0, 2)
	for _, w := range words {
		initials = append(initials, unicode.ToUpper([]rune(w)[0]))
		if len(initials) == 2 {
			break
		}
	}
	if len(initials) == 0 {
		return "?"
	}
	return string(initials)
}

func Color(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(strings.TrimSpace(name))))
	return palette[h.Sum32()%uint32(len(palette))]
}
