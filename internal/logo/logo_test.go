package logo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stackspend/stackspend/internal/spend"
)

func TestCandidates(t *testing.T) {
	t.Parallel()

	got := Candidates(spend.Application{Domain: "Notion.so", LogoURL: "https://cdn.example.com/notion.png"})
	want := []string{
		"https://cdn.example.com/notion.png",
		"https://logo.clearbit.com/notion.so",
		"https://www.google.com/s2/favicons?sz=128&domain=notion.so",
		"https://notion.so/apple-touch-icon.png",
		"https://notion.so/favicon.ico",
		"https://www.notion.so/favicon.ico",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Candidates mismatch (-want +got):\n%s", diff)
	}

	if got := Candidates(spend.Application{Name: "Internal tool"}); len(got) != 0 {
		t.Fatalf("Candidates without domain = %v, want none", got)
	}
	www := Candidates(spend.Application{Domain: "www.figma.com", LogoURL: "ftp://nope"})
	if len(www) != 4 {
		t.Fatalf("Candidates(www) = %v, want 4 entries", www)
	}
}

func TestInitialsAndColor(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Slack":               "S",
		"google workspace":    "GW",
		"Amazon Web Services": "AW",
		"  1password  ":       "1",
		"":                    "?",
		"--":                  "?",
		"éclair studio":       "ÉS",
	}
	for name, want := range tests {
		if got := Initials(name); got != want {
			t.Fatalf("Initials(%q) = %q, want %q", name, got, want)
		}
	}
	if Color("Slack") != Color(" slack ") {
		t.Fatal("color should depend only on the normalized name")
	}
	svg := string(Fallback("<Acme>").SVG())
	if !strings.Contains(svg, ">A</text>") || strings.Contains(svg, "<Acme>") {
		t.Fatalf("unexpected svg %s", svg)
	}
}

func TestResolveFirstImageWins(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		switch r.URL.Path {
		case "/html":
			w.Header().Set("Content-Type", "text/html")
		case "/logo.png":
			w.Header().Set("Content-Type", "image/png")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	r := NewResolver(Options{HTTPClient: server.Client(), ProbeTimeout: time.Second})
	r.candidates = func(spend.Application) []string {
		return []string{server.URL + "/missing", server.URL + "/html", server.URL + "/logo.png", server.URL + "/later.png"}
	}
	app := spend.Application{ID: 7, Name: "Acme"}

	got := r.Resolve(context.Background(), app)
	if got.Fallback || got.URL != server.URL+"/logo.png" {
		t.Fatalf("Resolve = %+v", got)
	}
	if hits.Load() != 3 {
		t.Fatalf("probes = %d, want 3", hits.Load())
	}

	again := r.Resolve(context.Background(), app)
	if again != got || hits.Load() != 3 {
		t.Fatalf("cached Resolve = %+v after %d probes", again, hits.Load())
	}
}

func TestResolveFallsBackAfterAtMostSixProbes(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	r := NewResolver(Options{HTTPClient: server.Client(), ProbeTimeout: time.Second})
	r.candidates = func(spend.Application) []string {
		out := make([]string, 0, 10)
		for i := range 10 {
			out = append(out, server.URL+"/logo-"+strconv.Itoa(i)+".png")
		}
		return out
	}
	app := spend.Application{ID: 9, Name: "Ghost Vendor"}

	got := r.Resolve(context.Background(), app)
	if !got.Fallback || got.Initials != "GV" || got.Color != Color("Ghost Vendor") {
		t.Fatalf("Resolve = %+v", got)
	}
	if n := hits.Load(); n != MaxCandidates {
		t.Fatalf("probes = %d, want %d", n, MaxCandidates)
	}

	r.Resolve(context.Background(), app)
	if n := hits.Load(); n != MaxCandidates {
		t.Fatalf("fallback was not cached: %d probes", n)
	}

	r.Forget(app)
	r.Resolve(context.Background(), app)
	if n := hits.Load(); n != 2*MaxCandidates {
		t.Fatalf("probes after Forget = %d, want %d", n, 2*MaxCandidates)
	}
}
