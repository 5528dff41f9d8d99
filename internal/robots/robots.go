// Package robots decides whether a page may be fetched under its site's
// robots.txt.
package robots

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/contactx/internal/cache"
)

// ErrDisallowed is returned by Check when robots.txt forbids the page.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// maxRobotsBytes bounds a robots.txt body.
const maxRobotsBytes = 512 << 10

// Rules holds the parsed groups of one robots.txt.
type Rules struct {
	Groups []Group
}

// Group is a set of user agents sharing directives.
type Group struct {
	Agents []string
	rules  []rule
}

type rule struct {
	pattern string
	re      *regexp.Regexp
	allow   bool
	// score is the pattern length without wildcards or the end anchor.
	score int
}

// Checker fetches robots.txt once per site and expiry window.
type Checker struct {
	HTTPClient *http.Client
	// Cache, when set, revalidates robots.txt with conditional requests.
	Cache       *cache.HTTPCache
	UserAgent   string
	EntryExpiry time.Duration
	// CheckPrivateHosts also consults robots.txt on loopback and private
	// addresses, which are otherwise always allowed.
	CheckPrivateHosts bool

	mu  sync.Mutex
	mem map[string]memEntry
	now func() time.Time
}

type memEntry struct {
	rules  Rules
	expiry time.Time
}

// Check returns ErrDisallowed when pageURL may not be fetched. A site
// without a readable robots.txt allows everything.
func (c *Checker) Check(ctx context.Context, pageURL string) error {
	u, err := url.Parse(pageURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("unsupported url scheme: %q", u.Scheme)
	}
	if !c.CheckPrivateHosts && isLocalOrPrivateHost(u.Hostname()) {
		return nil
	}
	robotsURL := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/robots.txt"}).String()
	rules, err := c.rules(ctx, robotsURL)
	if err != nil {
		log.Warn().Err(err).Str("robots", robotsURL).Msg("robots.txt unavailable; allowing")
		return nil
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	if !rules.IsAllowed(c.UserAgent, path) {
		return fmt.Errorf("%w: %s", ErrDisallowed, pageURL)
	}
	return nil
}

func (c *Checker) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func (c *Checker) rules(ctx context.Context, robotsURL string) (Rules, error) {
	c.mu.Lock()
	if ent, ok := c.mem[robotsURL]; ok && c.clock().Before(ent.expiry) {
		c.mu.Unlock()
		return ent.rules, nil
	}
	c.mu.Unlock()

	rules, err := c.fetch(ctx, robotsURL)
	if err != nil {
		return Rules{}, err
	}
	exp := c.EntryExpiry
	if exp <= 0 {
		exp = 30 * time.Minute
	}
	c.mu.Lock()
	if c.mem == nil {
		c.mem = make(map[string]memEntry)
	}
	c.mem[robotsURL] = memEntry{rules: rules, expiry: c.clock().Add(exp)}
	c.mu.Unlock()
	return rules, nil
}

func (c *Checker) fetch(ctx context.Context, robotsURL string) (Rules, error) {
	var etag, lastMod string
	if c.Cache != nil {
		if meta, err := c.Cache.LoadMeta(ctx, robotsURL); err == nil && meta != nil {
			etag, lastMod = meta.ETag, meta.LastModified
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return Rules{}, fmt.Errorf("new request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastMod != "" {
		req.Header.Set("If-Modified-Since", lastMod)
	}
	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Rules{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && c.Cache != nil:
		body, err := c.Cache.LoadBody(ctx, robotsURL)
		if err != nil {
			return Rules{}, fmt.Errorf("load cached robots: %w", err)
		}
		return Parse(string(body)), nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// No robots.txt: everything is allowed.
		return Rules{}, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Rules{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return Rules{}, fmt.Errorf("read robots: %w", err)
	}
	if c.Cache != nil {
		_ = c.Cache.Save(ctx, robotsURL, "text/plain", resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"), data)
	}
	return Parse(string(data)), nil
}

// Parse reads robots.txt groups. Consecutive User-agent lines share the
// directives that follow them; unknown directives are ignored.
func Parse(text string) Rules {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var groups []Group
	var current Group
	flush := func() {
		if len(current.Agents) > 0 || len(current.rules) > 0 {
			groups = append(groups, current)
		}
		current = Group{}
	}
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		key, val, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		switch key {
		case "user-agent", "useragent":
			if len(current.rules) > 0 {
				flush()
			}
			current.Agents = append(current.Agents, strings.ToLower(val))
		case "allow", "disallow":
			if val == "" {
				continue
			}
			current.rules = append(current.rules, compileRule(val, key == "allow"))
		}
	}
	flush()
	return Rules{Groups: groups}
}

// compileRule turns a robots pattern into an anchored regexp where '*'
// matches any run and a trailing '$' anchors the end.
func compileRule(pattern string, allow bool) rule {
	p := pattern
	anchorEnd := strings.HasSuffix(p, "$")
	p = strings.TrimSuffix(p, "$")
	var b strings.Builder
	b.WriteString("^")
	for i, part := range strings.Split(p, "*") {
		if i > 0 {
			b.WriteString(".*")
		}
		b.WriteString(regexp.QuoteMeta(part))
	}
	if anchorEnd {
		b.WriteString("$")
	}
	return rule{
		pattern: pattern,
		re:      regexp.MustCompile(b.String()),
		allow:   allow,
		score:   len(strings.ReplaceAll(p, "*", "")),
	}
}

// IsAllowed applies the group that best matches userAgent: the longest
// agent token contained in it, with '*' as the fallback. Within the group
// the most specific matching rule wins and Allow beats Disallow on a tie.
// No matching rule means allowed.
func (r Rules) IsAllowed(userAgent, path string) bool {
	idx := r.selectGroup(userAgent)
	if idx < 0 {
		return true
	}
	bestScore := -1
	allowed := true
	for _, ru := range r.Groups[idx].rules {
		if !ru.re.MatchString(path) {
			continue
		}
		if ru.score > bestScore || (ru.score == bestScore && ru.allow && !allowed) {
			bestScore = ru.score
			allowed = ru.allow
		}
	}
	return allowed
}

func (r Rules) selectGroup(userAgent string) int {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	bestIdx, bestScore := -1, -1
	for i, g := range r.Groups {
		for _, token := range g.Agents {
			score := -1
			switch {
			case token == "*":
				score = 0
			case token != "" && strings.Contains(ua, token):
				score = len(token)
			}
			if score > bestScore {
				bestIdx, bestScore = i, score
			}
		}
	}
	return bestIdx
}

func isLocalOrPrivateHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "localhost" || h == "localhost.localdomain" {
		return true
	}
	if ip := net.ParseIP(strings.Trim(h, "[]")); ip != nil {
		return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
	}
	return false
}
