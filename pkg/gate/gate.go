// Package gate implements the pre-scoring access checks: the user's
// trusted-domain whitelist and short-lived proceed-anyway bypasses. A URL
// that passes the gate skips the scoring chain entirely.
package gate

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"
)

// WhitelistStore persists the set of trusted domains.
type WhitelistStore interface {
	Contains(domain string) bool
	Add(domain string) error
	Domains() []string
}

// NormalizeHost canonicalizes a hostname for whitelist comparison:
// NFKC-folded, lower-cased, leading "www." stripped. Unicode
// normalization keeps confusable-encoded lookalikes from dodging an
// exact-match list.
func NormalizeHost(host string) string {
	h := norm.NFKC.String(host)
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, "www.")
	return h
}

// bypassKey reduces a URL to origin+path so query-string churn during a
// redirect chain does not invalidate a fresh bypass.
func bypassKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(u.Scheme + "://" + u.Host + u.Path)
}

// Gate combines the whitelist with one-time bypasses.
type Gate struct {
	whitelist WhitelistStore

	mu       sync.Mutex
	bypasses map[string]time.Time
	ttl      time.Duration
	now      func() time.Time
}

// New creates a gate over the given whitelist. ttl bounds how long a
// proceed-anyway bypass stays valid.
func New(whitelist WhitelistStore, ttl time.Duration) *Gate {
	return &Gate{
		whitelist: whitelist,
		bypasses:  make(map[string]time.Time),
		ttl:       ttl,
		now:       time.Now,
	}
}

// IsWhitelisted reports whether rawURL's host is on the trusted list.
// Unparseable URLs are never whitelisted.
func (g *Gate) IsWhitelisted(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	return g.whitelist.Contains(NormalizeHost(u.Hostname()))
}

// AddToWhitelist normalizes and persists the host of rawURL.
func (g *Gate) AddToWhitelist(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("cannot whitelist %q: no hostname", rawURL)
	}
	domain := NormalizeHost(u.Hostname())
	if err := g.whitelist.Add(domain); err != nil {
		return "", err
	}
	return domain, nil
}

// AddOneTimeBypass grants a temporary pass for rawURL. Granting again resets the
// clock.
func (g *Gate) AddOneTimeBypass(rawURL string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bypasses[bypassKey(rawURL)] = g.now().Add(g.ttl)
}

// HasOneTimeBypass reports whether a live bypass covers rawURL. Expired entries
// are dropped on the way through.
func (g *Gate) HasOneTimeBypass(rawURL string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := bypassKey(rawURL)
	expires, ok := g.bypasses[key]
	if !ok {
		return false
	}
	if g.now().After(expires) {
		delete(g.bypasses, key)
		return false
	}
	return true
}

// FileWhitelist is a WhitelistStore backed by a JSON document of the form
// {"domains": ["example.com", ...]}. The file is read once on first use;
// Add rewrites it in place.
type FileWhitelist struct {
	path string

	once    sync.Once
	loadErr error

	mu      sync.RWMutex
	domains map[string]struct{}
}

// NewFileWhitelist creates a store over path. A missing file is an empty
// list, not an error.
func NewFileWhitelist(path string) *FileWhitelist {
	return &FileWhitelist{path: path, domains: make(map[string]struct{})}
}

type whitelistDoc struct {
	Domains []string `json:"domains"`
}

func (w *FileWhitelist) load() {
	w.once.Do(func() {
		data, err := os.ReadFile(w.path)
		if err != nil {
			if !os.IsNotExist(err) {
				w.loadErr = fmt.Errorf("read whitelist: %w", err)
			}
			return
		}
		var doc whitelistDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			w.loadErr = fmt.Errorf("parse whitelist: %w", err)
			return
		}
		w.mu.Lock()
		for _, d := range doc.Domains {
			w.domains[NormalizeHost(d)] = struct{}{}
		}
		w.mu.Unlock()
	})
}

// Contains reports whether the normalized domain is trusted.
func (w *FileWhitelist) Contains(domain string) bool {
	w.load()
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.domains[domain]
	return ok
}

// Add records domain and rewrites the backing file. Adding an existing
// domain is a no-op.
func (w *FileWhitelist) Add(domain string) error {
	w.load()
	if w.loadErr != nil {
		return w.loadErr
	}

	domain = NormalizeHost(domain)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.domains[domain]; ok {
		return nil
	}
	w.domains[domain] = struct{}{}

	doc := whitelistDoc{Domains: make([]string, 0, len(w.domains))}
	for d := range w.domains {
		doc.Domains = append(doc.Domains, d)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode whitelist: %w", err)
	}
	if err := os.WriteFile(w.path, data, 0o644); err != nil {
		delete(w.domains, domain)
		return fmt.Errorf("write whitelist: %w", err)
	}
	return nil
}

// Domains returns a snapshot of the trusted list.
func (w *FileWhitelist) Domains() []string {
	w.load()
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.domains))
	for d := range w.domains {
		out = append(out, d)
	}
	return out
}
