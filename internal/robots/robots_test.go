package robots

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperifyio/contactx/internal/cache"
)

func TestParseAndIsAllowed(t *testing.T) {
	rules := Parse(`
# comment
User-agent: *
Disallow: /private
Allow: /private/contact
Disallow: /*.pdf$

User-agent: contactx
User-agent: other
Disallow: /
Allow: /team
`)
	if len(rules.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(rules.Groups))
	}
	cases := []struct {
		ua, path string
		want     bool
	}{
		{"somebot/1.0", "/", true},
		{"somebot/1.0", "/private/x", false},
		{"somebot/1.0", "/private/contact", true},
		{"somebot/1.0", "/files/card.pdf", false},
		{"somebot/1.0", "/files/card.pdf?x=1", true},
		{"contactx/1.0 (+https://github.com/hyperifyio/contactx)", "/about", false},
		{"contactx/1.0", "/team/jane", true},
	}
	for _, tc := range cases {
		if got := rules.IsAllowed(tc.ua, tc.path); got != tc.want {
			t.Fatalf("IsAllowed(%q, %q)=%v, want %v", tc.ua, tc.path, got, tc.want)
		}
	}
}

func TestIsAllowed_TieGoesToAllow(t *testing.T) {
	rules := Parse("User-agent: *\nDisallow: /page\nAllow: /page\n")
	if !rules.IsAllowed("x", "/page") {
		t.Fatalf("equal specificity should allow")
	}
}

func TestIsAllowed_EmptyRules(t *testing.T) {
	if !(Rules{}).IsAllowed("x", "/anything") {
		t.Fatalf("no groups should allow")
	}
	if !Parse("User-agent: *\nDisallow:\n").IsAllowed("x", "/") {
		t.Fatalf("empty disallow should allow")
	}
}

func TestCompileRule_LeadingWildcard(t *testing.T) {
	r := compileRule("*/private", false)
	if !r.re.MatchString("/a/private") || r.score != len("/private") {
		t.Fatalf("unexpected rule %+v", r)
	}
}

func TestChecker_FetchesOncePerExpiryAndRevalidates(t *testing.T) {
	var hits int32
	const etag = `W/"v1"`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("ETag", etag)
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	c := &Checker{
		HTTPClient:        srv.Client(),
		Cache:             cache.NewHTTPCache(t.TempDir(), false),
		UserAgent:         "contactx-test/1.0",
		EntryExpiry:       time.Hour,
		CheckPrivateHosts: true,
	}
	if err := c.Check(ctx, srv.URL+"/contact"); err != nil {
		t.Fatalf("public page: %v", err)
	}
	if err := c.Check(ctx, srv.URL+"/private/list"); !errors.Is(err, ErrDisallowed) {
		t.Fatalf("want ErrDisallowed, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("expected 1 robots fetch, got %d", n)
	}

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if err := c.Check(ctx, srv.URL+"/private/again"); !errors.Is(err, ErrDisallowed) {
		t.Fatalf("revalidated rules should still disallow, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Fatalf("expected conditional refetch, got %d hits", n)
	}
}

func TestChecker_MissingRobotsAllows(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	c := &Checker{HTTPClient: srv.Client(), CheckPrivateHosts: true}
	if err := c.Check(context.Background(), srv.URL+"/anything"); err != nil {
		t.Fatalf("missing robots.txt should allow: %v", err)
	}
}

func TestChecker_ServerErrorAllows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)
	c := &Checker{HTTPClient: srv.Client(), CheckPrivateHosts: true}
	if err := c.Check(context.Background(), srv.URL+"/x"); err != nil {
		t.Fatalf("unreachable robots.txt should allow: %v", err)
	}
}

func TestChecker_PrivateHostsSkippedByDefault(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /\n"))
	}))
	t.Cleanup(srv.Close)
	c := &Checker{HTTPClient: srv.Client()}
	if err := c.Check(context.Background(), srv.URL+"/page"); err != nil {
		t.Fatalf("loopback host should be allowed: %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("robots.txt should not be fetched for loopback hosts")
	}
}

func TestChecker_RejectsNonHTTP(t *testing.T) {
	if err := (&Checker{}).Check(context.Background(), "ftp://example.com/x"); err == nil {
		t.Fatalf("expected scheme error")
	}
}

func TestIsLocalOrPrivateHost(t *testing.T) {
	for host, want := range map[string]bool{
		"localhost":   true,
		"127.0.0.1":   true,
		"10.1.2.3":    true,
		"::1":         true,
		"example.com": false,
		"8.8.8.8":     false,
	} {
		if got := isLocalOrPrivateHost(host); got != want {
			t.Fatalf("%s: want %v, got %v", host, want, got)
		}
	}
}
