// Package features derives the fixed numeric feature record a scoring model
// consumes from a raw URL string.
//
// Design principles:
// - NEVER FAILS: unparsable input degrades to naive string splitting
// - EXACT PARITY: derivation rules are frozen; the trained artifact's
//   scaler statistics were computed against exactly these rules
// - ONE COPY: every tier (local inference, remote inference, CLI) consumes
//   this package, so the feature logic cannot drift between call sites
package features

import (
	"net/url"
	"regexp"
	"strings"
)

// Record maps feature names to numeric values. Every record produced by
// Extract carries exactly the names in FieldNames; no key is ever absent.
type Record map[string]float64

// FieldNames is the canonical feature set, in the order the model artifact
// was trained with. Vectorization order is owned by the model metadata, not
// by this slice; it exists so tests can assert the two never drift apart.
var FieldNames = []string{
	"url_length", "num_subdirs", "num_dots", "num_hyphens", "num_underscores",
	"num_equals", "num_questionmarks", "num_ampersands", "num_percents", "has_ip",
	"suspicious_words", "has_https", "path_length", "query_length", "is_shortened",
	"num_special_chars", "tld_risk", "complexity_score", "suspicious_density",
	"query_path_ratio", "special_char_density",
}

// suspiciousKeywords is the fixed keyword list. Presence is tested by
// case-insensitive substring search on the whole URL; each keyword counts
// at most once regardless of repeats.
var suspiciousKeywords = []string{
	"login", "verify", "secure", "update", "account", "bank", "payment",
	"signin", "password", "confirm", "authenticate", "validation", "wallet",
	"credential", "oauth", "authorize", "admin", "portal", "access", "security",
}

// shortenerMarkers match known link-shortener domains anywhere in the URL,
// case-insensitive.
var shortenerMarkers = []string{
	"bit.ly", "goo.gl", "tinyurl", "t.co", "ow.ly",
	"is.gd", "buff.ly", "adf.ly", "bitly", "shorte",
}

// riskyTLDs are top-level domains with elevated phishing rates.
var riskyTLDs = map[string]bool{
	"ru": true, "tk": true, "cn": true, "ga": true, "cf": true, "ml": true,
	"gq": true, "xyz": true, "top": true, "club": true, "site": true, "online": true,
}

var reDottedQuad = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}$`)

// Extractor produces feature records. The zero value uses the canonical
// complexity_score formula; IncludeDotsInComplexity selects the variant that
// folds the dot count into complexity_score (observed in one training
// context, off by default to match the deployed artifact).
type Extractor struct {
	IncludeDotsInComplexity bool
}

// Extract is shorthand for the zero-value Extractor.
func Extract(rawURL string) Record {
	return Extractor{}.Extract(rawURL)
}

// Extract computes the full feature record for rawURL. It never returns an
// incomplete record: malformed URLs fall back to splitting on "/" to
// approximate domain, path and query.
func (e Extractor) Extract(rawURL string) Record {
	domain, pathname, search := splitURL(rawURL)

	urlLength := len(rawURL)
	numSubdirs := strings.Count(pathname, "/")
	numDots := strings.Count(rawURL, ".")
	numHyphens := strings.Count(rawURL, "-")
	numUnderscores := strings.Count(rawURL, "_")
	numEquals := strings.Count(rawURL, "=")
	numQuestionmarks := strings.Count(rawURL, "?")
	numAmpersands := strings.Count(rawURL, "&")
	numPercents := strings.Count(rawURL, "%")

	hasIP := 0.0
	if reDottedQuad.MatchString(domain) {
		hasIP = 1.0
	}

	lower := strings.ToLower(rawURL)
	suspiciousWords := 0
	for _, w := range suspiciousKeywords {
		if strings.Contains(lower, w) {
			suspiciousWords++
		}
	}

	hasHTTPS := 0.0
	if strings.HasPrefix(lower, "https://") {
		hasHTTPS = 1.0
	}

	isShortened := 0.0
	for _, marker := range shortenerMarkers {
		if strings.Contains(lower, marker) {
			isShortened = 1.0
			break
		}
	}

	numSpecialChars := countSpecialChars(rawURL)

	tld := ""
	if labels := strings.Split(domain, "."); len(labels) > 0 {
		tld = strings.ToLower(labels[len(labels)-1])
	}
	tldRisk := 0.0
	if riskyTLDs[tld] {
		tldRisk = 1.0
	}

	complexity := numSpecialChars + numSubdirs + numQuestionmarks + numAmpersands
	if e.IncludeDotsInComplexity {
		complexity += numDots
	}

	pathLength := len(pathname)
	queryLength := len(search)

	return Record{
		"url_length":           float64(urlLength),
		"num_subdirs":          float64(numSubdirs),
		"num_dots":             float64(numDots),
		"num_hyphens":          float64(numHyphens),
		"num_underscores":      float64(numUnderscores),
		"num_equals":           float64(numEquals),
		"num_questionmarks":    float64(numQuestionmarks),
		"num_ampersands":       float64(numAmpersands),
		"num_percents":         float64(numPercents),
		"has_ip":               hasIP,
		"suspicious_words":     float64(suspiciousWords),
		"has_https":            hasHTTPS,
		"path_length":          float64(pathLength),
		"query_length":         float64(queryLength),
		"is_shortened":         isShortened,
		"num_special_chars":    float64(numSpecialChars),
		"tld_risk":             tldRisk,
		"complexity_score":     float64(complexity),
		"suspicious_density":   float64(suspiciousWords) / maxf(float64(urlLength), 1),
		"query_path_ratio":     float64(queryLength) / maxf(float64(pathLength), 1),
		"special_char_density": float64(numSpecialChars) / maxf(float64(urlLength), 1),
	}
}

// splitURL returns (domain, path, query) for rawURL. The query keeps its
// leading "?" when present. A URL without a recognizable scheme and host is
// approximated by splitting on "/": everything before the first slash is the
// domain, the rest is the path, and the query is empty.
func splitURL(rawURL string) (domain, pathname, search string) {
	if u, err := url.Parse(rawURL); err == nil && u.Scheme != "" && u.Host != "" {
		domain = u.Hostname()
		pathname = u.Path
		if pathname == "" {
			// Hierarchical URLs always carry at least the root path.
			pathname = "/"
		}
		if u.RawQuery != "" {
			search = "?" + u.RawQuery
		}
		return domain, pathname, search
	}

	parts := strings.Split(rawURL, "/")
	domain = parts[0]
	pathname = "/" + strings.Join(parts[1:], "/")
	return domain, pathname, ""
}

// countSpecialChars counts bytes outside [a-zA-Z0-9./:-].
func countSpecialChars(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.' || c == '/' || c == ':' || c == '-':
		default:
			n++
		}
	}
	return n
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
