// Package patterns provides a centralized, high-performance registry of
// URL phishing heuristics. All regexes are compiled once at package init
// and shared across every check.
//
// Design principles:
// - COMPILE ONCE: All patterns compiled at init, not per-request
// - DRY: Single source of truth for heuristic URL patterns
// - CATEGORIZED: Patterns organized by threat category for targeted scans
package patterns

import (
	"regexp"
	"strings"
	"sync"
)

// Category represents a URL threat pattern category
type Category string

const (
	// CategoryCredentialHarvest covers login/verify/account lures in the
	// path or host.
	CategoryCredentialHarvest Category = "credential_harvest"

	// CategoryLookalike covers brand impersonation in hostnames.
	CategoryLookalike Category = "lookalike"

	// CategoryObfuscation covers encodings that hide the real destination.
	CategoryObfuscation Category = "obfuscation"

	// CategoryInfrastructure covers hosting choices rarely seen on
	// legitimate sites.
	CategoryInfrastructure Category = "infrastructure"
)

// Pattern holds a compiled regex with metadata
type Pattern struct {
	Name        string         // Human-readable name for logging
	Regex       *regexp.Regexp // Compiled regex (never nil after init)
	Category    Category       // Threat category
	Severity    int            // Risk score contribution (0-100)
	Description string         // What this pattern detects
}

// Registry holds all compiled patterns, organized by category
type Registry struct {
	mu         sync.RWMutex
	byCategory map[Category][]*Pattern
	all        []*Pattern
}

// global singleton - initialized once at package load
var (
	globalRegistry *Registry
	initOnce       sync.Once
)

// Get returns the global pattern registry (singleton)
// Thread-safe and guaranteed to be initialized
func Get() *Registry {
	initOnce.Do(func() {
		globalRegistry = newRegistry()
	})
	return globalRegistry
}

// newRegistry creates and populates the pattern registry
func newRegistry() *Registry {
	r := &Registry{
		byCategory: make(map[Category][]*Pattern),
		all:        make([]*Pattern, 0, 32),
	}

	r.registerCredentialHarvestPatterns()
	r.registerLookalikePatterns()
	r.registerObfuscationPatterns()
	r.registerInfrastructurePatterns()

	return r
}

// register adds a pattern to the registry (internal use only)
func (r *Registry) register(name string, pattern string, category Category, severity int, description string) {
	p := &Pattern{
		Name:        name,
		Regex:       regexp.MustCompile(pattern),
		Category:    category,
		Severity:    severity,
		Description: description,
	}

	r.byCategory[category] = append(r.byCategory[category], p)
	r.all = append(r.all, p)
}

// GetByCategory returns all patterns for a specific category
// Returns empty slice if category not found (never nil)
func (r *Registry) GetByCategory(cat Category) []*Pattern {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if patterns, ok := r.byCategory[cat]; ok {
		return patterns
	}
	return []*Pattern{}
}

// MatchAny checks if the URL matches any pattern, returning the first hit
// or nil. Optimized for early exit.
func (r *Registry) MatchAny(rawURL string) *Pattern {
	lower := strings.ToLower(rawURL)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.all {
		if p.Regex.MatchString(lower) {
			return p
		}
	}
	return nil
}

// MatchAll returns every pattern the URL matches, for scoring.
func (r *Registry) MatchAll(rawURL string) []*Pattern {
	lower := strings.ToLower(rawURL)
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*Pattern
	for _, p := range r.all {
		if p.Regex.MatchString(lower) {
			matches = append(matches, p)
		}
	}
	return matches
}

// ScanResult summarizes a pattern scan of one URL.
type ScanResult struct {
	Matches  []*Pattern
	Severity int // Highest single severity, not a sum; one strong signal convicts
}

// Scan matches rawURL against every registered pattern.
func (r *Registry) Scan(rawURL string) ScanResult {
	matches := r.MatchAll(rawURL)
	res := ScanResult{Matches: matches}
	for _, m := range matches {
		if m.Severity > res.Severity {
			res.Severity = m.Severity
		}
	}
	return res
}

// TotalPatterns returns the total count of registered patterns
func (r *Registry) TotalPatterns() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}

// CategoryCount returns the number of patterns in a category
func (r *Registry) CategoryCount(cat Category) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCategory[cat])
}
