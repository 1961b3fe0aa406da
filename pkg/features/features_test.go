package features

import (
	"math"
	"testing"
)

func TestExtractAlwaysComplete(t *testing.T) {
	// Every input, no matter how broken, must yield a record with exactly
	// the documented keys and finite numeric values.
	inputs := []string{
		"https://example.com/",
		"http://paypa1-secure-login.tk/verify?acct=1",
		"not a url",
		"",
		"://///",
		"ftp://weird",
		"https://192.168.1.1/admin",
		"https://bit.ly/x",
		"http://example.com/a/b/c?x=1&y=2%20z",
	}

	for _, in := range inputs {
		rec := Extract(in)
		if len(rec) != len(FieldNames) {
			t.Errorf("Extract(%q): got %d fields, want %d", in, len(rec), len(FieldNames))
		}
		for _, name := range FieldNames {
			v, ok := rec[name]
			if !ok {
				t.Errorf("Extract(%q): missing field %q", in, name)
				continue
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Errorf("Extract(%q): field %q is not finite: %v", in, name, v)
			}
		}
	}
}

func TestExtractCounts(t *testing.T) {
	url := "http://sub.example-site.com/a/b_c/d?x=1&y=2&z=%20"
	rec := Extract(url)

	tests := []struct {
		field string
		want  float64
	}{
		{"url_length", float64(len(url))},
		{"num_subdirs", 3}, // /a/b_c/d
		{"num_dots", 2},
		{"num_hyphens", 1},
		{"num_underscores", 1},
		{"num_equals", 3},
		{"num_questionmarks", 1},
		{"num_ampersands", 2},
		{"num_percents", 1},
		{"has_ip", 0},
		{"has_https", 0},
		{"path_length", len8("/a/b_c/d")},
		{"query_length", len8("?x=1&y=2&z=%20")},
		{"is_shortened", 0},
		{"tld_risk", 0},
	}

	for _, tt := range tests {
		if got := rec[tt.field]; got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.field, got, tt.want)
		}
	}

	// ? = & _ and % are outside [a-zA-Z0-9./:-]
	if got := rec["num_special_chars"]; got != 8 {
		t.Errorf("num_special_chars: got %v, want 8", got)
	}
	// special(8) + subdirs(3) + questionmarks(1) + ampersands(2)
	if got := rec["complexity_score"]; got != 14 {
		t.Errorf("complexity_score: got %v, want 14", got)
	}
}

func len8(s string) float64 { return float64(len(s)) }

func TestExtractFlags(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		field string
		want  float64
	}{
		{"ipv4 host", "http://192.168.0.1/x", "has_ip", 1},
		{"named host", "http://example.com/x", "has_ip", 0},
		{"https", "HTTPS://Example.com", "has_https", 1},
		{"http", "http://example.com", "has_https", 0},
		{"shortener bitly", "https://bit.ly/abc", "is_shortened", 1},
		{"shortener case-insensitive", "https://TINYURL.com/abc", "is_shortened", 1},
		{"no shortener", "https://example.com", "is_shortened", 0},
		{"risky tld tk", "http://login.example.tk/", "tld_risk", 1},
		{"risky tld uppercase", "http://example.RU/", "tld_risk", 1},
		{"safe tld", "http://example.com/", "tld_risk", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Extract(tt.url)[tt.field]; got != tt.want {
				t.Errorf("%s(%q): got %v, want %v", tt.field, tt.url, got, tt.want)
			}
		})
	}
}

func TestExtractKeywords(t *testing.T) {
	rec := Extract("http://paypa1-secure-login.tk/verify?acct=1")

	// secure, login, verify
	if got := rec["suspicious_words"]; got != 3 {
		t.Errorf("suspicious_words: got %v, want 3", got)
	}
	if rec["tld_risk"] != 1 {
		t.Error("tld_risk: expected 1 for .tk")
	}
	if rec["suspicious_density"] <= 0 {
		t.Error("suspicious_density: expected positive")
	}

	// Repeats count once per keyword.
	rec = Extract("http://login-login-login.example.com/")
	if got := rec["suspicious_words"]; got != 1 {
		t.Errorf("repeated keyword: got %v, want 1", got)
	}
}

func TestExtractFallbackParsing(t *testing.T) {
	// No scheme: the URL constructor path fails and the naive split takes
	// over. Everything before the first slash is the domain.
	rec := Extract("evil.tk/fake/login")
	if rec["tld_risk"] != 1 {
		t.Error("fallback: expected tld_risk=1 for evil.tk")
	}
	// "/fake/login"
	if got := rec["num_subdirs"]; got != 2 {
		t.Errorf("fallback num_subdirs: got %v, want 2", got)
	}
	if got := rec["query_length"]; got != 0 {
		t.Errorf("fallback query_length: got %v, want 0", got)
	}
}

func TestExtractDensityGuards(t *testing.T) {
	// Empty input must not divide by zero.
	rec := Extract("")
	for _, f := range []string{"suspicious_density", "query_path_ratio", "special_char_density"} {
		if v := rec[f]; math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s on empty input: got %v", f, v)
		}
	}
}

func TestComplexityVariant(t *testing.T) {
	url := "http://a.b.c.example.com/x?y=1"
	base := Extractor{}.Extract(url)
	dots := Extractor{IncludeDotsInComplexity: true}.Extract(url)

	want := base["complexity_score"] + base["num_dots"]
	if got := dots["complexity_score"]; got != want {
		t.Errorf("dot variant complexity: got %v, want %v", got, want)
	}
}
