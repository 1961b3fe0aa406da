// Package config holds global settings for the PhishGuard gateway.
// All settings can be configured via environment variables, a YAML file, or
// programmatically.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds global settings for the detection gateway.
type Config struct {
	// === Core ===
	ListenPort    string `yaml:"listen_port"`
	ModelDir      string `yaml:"model_dir"`      // local model artifact directory
	WhitelistPath string `yaml:"whitelist_path"` // {"domains": [...]} document
	SafePageURL   string `yaml:"safe_page_url"`  // where "leave" sends the user

	// === Remote inference ===
	RemoteInferenceURL string        `yaml:"remote_inference_url"` // peer gateway base URL, empty disables the tier
	RemoteTimeout      time.Duration `yaml:"remote_timeout"`
	LocalTimeout       time.Duration `yaml:"local_timeout"` // local model round-trip budget

	// === Reputation services ===
	ThreatListURL      string        `yaml:"threat_list_url"`
	ThreatListAPIKey   string        `yaml:"threat_list_api_key"`
	ThreatListTimeout  time.Duration `yaml:"threat_list_timeout"`
	ThreatListCacheTTL time.Duration `yaml:"threat_list_cache_ttl"`
	ScanReportURL      string        `yaml:"scan_report_url"`
	ScanReportAPIKey   string        `yaml:"scan_report_api_key"`
	ScanReportTimeout  time.Duration `yaml:"scan_report_timeout"`
	ScanReportCacheTTL time.Duration `yaml:"scan_report_cache_ttl"`

	// === Access gate ===
	BypassTTL time.Duration `yaml:"bypass_ttl"` // one-time bypass lifetime

	// === Storage (optional backends) ===
	RedisAddr   string `yaml:"redis_addr"`   // reputation cache backend; empty = in-memory
	PostgresDSN string `yaml:"postgres_dsn"` // threat event store; empty = in-memory

	// === Audit ===
	AuditLogURL string `yaml:"audit_log_url"` // best-effort detection sink, empty disables

	// === Heuristic pattern scan ===
	// Minimum pattern severity (0-100) that blocks before the scoring
	// chain runs. Zero disables the scan.
	PatternMinSeverity int `yaml:"pattern_min_severity"`

	// === Feature extraction variant ===
	ComplexityIncludesDots bool `yaml:"complexity_includes_dots"`
}

// Default external service endpoints. Both are fixed third-party contracts
// consumed read-only.
const (
	DefaultThreatListURL = "https://safebrowsing.googleapis.com/v4/threatMatches:find"
	DefaultScanReportURL = "https://www.virustotal.com/vtapi/v2/url/report"
)

// NewDefaultConfig creates a Config with sensible defaults. All settings
// can be overridden via environment variables.
func NewDefaultConfig() *Config {
	return &Config{
		ListenPort:    GetEnv("PHISHGUARD_PORT", "3001"),
		ModelDir:      GetEnv("PHISHGUARD_MODEL_DIR", "model"),
		WhitelistPath: GetEnv("PHISHGUARD_WHITELIST", "whitelist.json"),
		SafePageURL:   GetEnv("PHISHGUARD_SAFE_PAGE", "https://www.google.com/"),

		RemoteInferenceURL: GetEnv("PHISHGUARD_REMOTE_URL", ""),
		RemoteTimeout:      GetEnvDuration("PHISHGUARD_REMOTE_TIMEOUT", 3*time.Second),
		LocalTimeout:       GetEnvDuration("PHISHGUARD_LOCAL_TIMEOUT", 2*time.Second),

		ThreatListURL:      GetEnv("PHISHGUARD_THREAT_LIST_URL", DefaultThreatListURL),
		ThreatListAPIKey:   GetEnv("PHISHGUARD_THREAT_LIST_API_KEY", ""),
		ThreatListTimeout:  GetEnvDuration("PHISHGUARD_THREAT_LIST_TIMEOUT", 5*time.Second),
		ThreatListCacheTTL: GetEnvDuration("PHISHGUARD_THREAT_LIST_CACHE_TTL", 30*time.Minute),
		ScanReportURL:      GetEnv("PHISHGUARD_SCAN_REPORT_URL", DefaultScanReportURL),
		ScanReportAPIKey:   GetEnv("PHISHGUARD_SCAN_REPORT_API_KEY", ""),
		ScanReportTimeout:  GetEnvDuration("PHISHGUARD_SCAN_REPORT_TIMEOUT", 8*time.Second),
		ScanReportCacheTTL: GetEnvDuration("PHISHGUARD_SCAN_REPORT_CACHE_TTL", 60*time.Minute),

		BypassTTL: GetEnvDuration("PHISHGUARD_BYPASS_TTL", 2*time.Minute),

		RedisAddr:   GetEnv("PHISHGUARD_REDIS_ADDR", ""),
		PostgresDSN: GetEnv("PHISHGUARD_POSTGRES_DSN", ""),

		AuditLogURL: GetEnv("PHISHGUARD_AUDIT_URL", ""),

		PatternMinSeverity: GetEnvInt("PHISHGUARD_PATTERN_MIN_SEVERITY", 80),

		ComplexityIncludesDots: GetEnvBool("PHISHGUARD_COMPLEXITY_DOTS", false),
	}
}

// NewStrictConfig creates a Config that favors catching more phishing at
// the cost of more interruptions: weaker pattern signals block, reputation
// answers go stale sooner, and bypasses are short.
func NewStrictConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.PatternMinSeverity = 60
	cfg.ThreatListCacheTTL = 10 * time.Minute
	cfg.ScanReportCacheTTL = 20 * time.Minute
	cfg.BypassTTL = 30 * time.Second
	return cfg
}

// NewLenientConfig creates a Config that favors fewer interruptions: only
// the strongest pattern signals block and bypasses last longer.
func NewLenientConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.PatternMinSeverity = 95
	cfg.BypassTTL = 10 * time.Minute
	return cfg
}

// NewOfflineConfig creates a Config for air-gapped operation: no peer
// inference, no reputation services, no audit sink. Only the local model
// tier scores.
func NewOfflineConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.RemoteInferenceURL = ""
	cfg.ThreatListAPIKey = ""
	cfg.ScanReportAPIKey = ""
	cfg.AuditLogURL = ""
	return cfg
}

// fileOverlay mirrors Config for YAML with pointer fields so absent keys
// leave the existing value alone, and durations as strings ("3s", "30m").
type fileOverlay struct {
	ListenPort    *string `yaml:"listen_port"`
	ModelDir      *string `yaml:"model_dir"`
	WhitelistPath *string `yaml:"whitelist_path"`
	SafePageURL   *string `yaml:"safe_page_url"`

	RemoteInferenceURL *string `yaml:"remote_inference_url"`
	RemoteTimeout      *string `yaml:"remote_timeout"`
	LocalTimeout       *string `yaml:"local_timeout"`

	ThreatListURL      *string `yaml:"threat_list_url"`
	ThreatListAPIKey   *string `yaml:"threat_list_api_key"`
	ThreatListTimeout  *string `yaml:"threat_list_timeout"`
	ThreatListCacheTTL *string `yaml:"threat_list_cache_ttl"`
	ScanReportURL      *string `yaml:"scan_report_url"`
	ScanReportAPIKey   *string `yaml:"scan_report_api_key"`
	ScanReportTimeout  *string `yaml:"scan_report_timeout"`
	ScanReportCacheTTL *string `yaml:"scan_report_cache_ttl"`

	BypassTTL *string `yaml:"bypass_ttl"`

	RedisAddr   *string `yaml:"redis_addr"`
	PostgresDSN *string `yaml:"postgres_dsn"`
	AuditLogURL *string `yaml:"audit_log_url"`

	PatternMinSeverity *int `yaml:"pattern_min_severity"`

	ComplexityIncludesDots *bool `yaml:"complexity_includes_dots"`
}

// LoadFile overlays YAML settings from path onto the config. Explicit file
// values win over environment defaults; absent keys change nothing.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var f fileOverlay
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setStr(&c.ListenPort, f.ListenPort)
	setStr(&c.ModelDir, f.ModelDir)
	setStr(&c.WhitelistPath, f.WhitelistPath)
	setStr(&c.SafePageURL, f.SafePageURL)
	setStr(&c.RemoteInferenceURL, f.RemoteInferenceURL)
	setStr(&c.ThreatListURL, f.ThreatListURL)
	setStr(&c.ThreatListAPIKey, f.ThreatListAPIKey)
	setStr(&c.ScanReportURL, f.ScanReportURL)
	setStr(&c.ScanReportAPIKey, f.ScanReportAPIKey)
	setStr(&c.RedisAddr, f.RedisAddr)
	setStr(&c.PostgresDSN, f.PostgresDSN)
	setStr(&c.AuditLogURL, f.AuditLogURL)

	durs := []struct {
		dst *time.Duration
		src *string
		key string
	}{
		{&c.RemoteTimeout, f.RemoteTimeout, "remote_timeout"},
		{&c.LocalTimeout, f.LocalTimeout, "local_timeout"},
		{&c.ThreatListTimeout, f.ThreatListTimeout, "threat_list_timeout"},
		{&c.ThreatListCacheTTL, f.ThreatListCacheTTL, "threat_list_cache_ttl"},
		{&c.ScanReportTimeout, f.ScanReportTimeout, "scan_report_timeout"},
		{&c.ScanReportCacheTTL, f.ScanReportCacheTTL, "scan_report_cache_ttl"},
		{&c.BypassTTL, f.BypassTTL, "bypass_ttl"},
	}
	for _, d := range durs {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil || v <= 0 {
			return fmt.Errorf("config %s: invalid duration %q", d.key, *d.src)
		}
		*d.dst = v
	}

	if f.PatternMinSeverity != nil {
		c.PatternMinSeverity = *f.PatternMinSeverity
	}
	if f.ComplexityIncludesDots != nil {
		c.ComplexityIncludesDots = *f.ComplexityIncludesDots
	}
	return nil
}

// Validate reports missing settings. Reputation lookups silently degrade
// without keys, so missing keys warn rather than fail.
func (c *Config) Validate() error {
	if c.ListenPort == "" {
		return fmt.Errorf("listen port is required")
	}
	if c.ThreatListAPIKey == "" {
		log.Println("[Config] Warning: no threat-list API key - threat-list lookups disabled")
	}
	if c.ScanReportAPIKey == "" {
		log.Println("[Config] Warning: no scan-report API key - multi-engine lookups disabled")
	}
	return nil
}

// Helper functions for environment variable parsing.

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvBool returns the boolean value of an environment variable or a
// default value.
func GetEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvInt returns the integer value of an environment variable or a
// default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

// GetEnvFloat returns the float64 value of an environment variable or a
// default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvDuration returns a duration from an environment variable ("3s",
// "30m") or a default value.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

// GetEnvSlice returns a comma-separated list from an environment variable
// or a default value.
func GetEnvSlice(key string, defaultValue []string) []string {
	if v := os.Getenv(key); v != "" {
		var parts []string
		for _, p := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}
