package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/joho/godotenv"

	"github.com/phishguard/phishguard/pkg/config"
	"github.com/phishguard/phishguard/pkg/decision"
	"github.com/phishguard/phishguard/pkg/features"
	"github.com/phishguard/phishguard/pkg/gate"
	"github.com/phishguard/phishguard/pkg/model"
	"github.com/phishguard/phishguard/pkg/patterns"
	"github.com/phishguard/phishguard/pkg/threatlog"
	"github.com/phishguard/phishguard/pkg/tiers"
	"github.com/phishguard/phishguard/pkg/verdict"
)

const Version = "1.0.0"

// Gateway holds the detection components. The remote and reputation
// layers are optional and the chain degrades gracefully without them.
type Gateway struct {
	config       *config.Config
	host         *tiers.ModelHost
	remote       *tiers.RemoteTier
	reputation   *tiers.ReputationTier
	gate         *gate.Gate
	events       threatlog.Store
	orchestrator *decision.Orchestrator

	mu          sync.RWMutex
	lastBlocked *decision.Interstitial
}

// NewGateway wires every component from configuration.
func NewGateway(ctx context.Context, cfg *config.Config) (*Gateway, error) {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}

	extractor := features.Extractor{IncludeDotsInComplexity: cfg.ComplexityIncludesDots}

	host := tiers.NewModelHost(extractor)
	host.Load(cfg.ModelDir)
	go host.Serve(ctx)

	// Reputation caches: shared Redis when configured, per-process otherwise.
	var tlCache, srCache tiers.Cache
	if cfg.RedisAddr != "" {
		tlCache = tiers.NewRedisCache(cfg.RedisAddr, "threatlist")
		srCache = tiers.NewRedisCache(cfg.RedisAddr, "scanreport")
		log.Printf("[Gateway] Reputation cache backed by Redis at %s", cfg.RedisAddr)
	} else {
		tlCache = tiers.NewMemoryCache()
		srCache = tiers.NewMemoryCache()
	}

	threatList := tiers.NewThreatListClient(cfg.ThreatListURL, cfg.ThreatListAPIKey, cfg.ThreatListCacheTTL, tlCache)
	scanReport := tiers.NewScanReportClient(cfg.ScanReportURL, cfg.ScanReportAPIKey, cfg.ScanReportCacheTTL, srCache)
	reputation := tiers.NewReputationTier(threatList, scanReport)

	remote := tiers.NewRemoteTier(cfg.RemoteInferenceURL, cfg.RemoteTimeout)
	local := tiers.NewLocalTier(host, cfg.LocalTimeout)

	var events threatlog.Store
	if cfg.PostgresDSN != "" {
		pg, err := threatlog.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("threat event store: %w", err)
		}
		events = pg
		log.Println("[Gateway] Threat events persisted to Postgres")
	} else {
		events = threatlog.NewMemoryStore()
	}

	g := gate.New(gate.NewFileWhitelist(cfg.WhitelistPath), cfg.BypassTTL)

	audit := threatlog.NewAuditSink(cfg.AuditLogURL)
	if audit.Enabled() {
		log.Printf("[Gateway] Audit records shipped to %s", cfg.AuditLogURL)
	}

	chain := []tiers.Tier{remote, local, reputation}
	if cfg.RemoteInferenceURL == "" {
		chain = chain[1:]
		log.Println("[Gateway] Remote inference disabled (no peer URL)")
	}

	orchestrator := decision.New(g, chain, events, audit, cfg.SafePageURL)
	if cfg.PatternMinSeverity > 0 {
		orchestrator.EnablePatternScan(patterns.Get(), cfg.PatternMinSeverity)
		log.Printf("[Gateway] Pattern scan enabled (%d patterns, min severity %d)",
			patterns.Get().TotalPatterns(), cfg.PatternMinSeverity)
	}

	return &Gateway{
		config:       cfg,
		host:         host,
		remote:       remote,
		reputation:   reputation,
		gate:         g,
		events:       events,
		orchestrator: orchestrator,
	}, nil
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Local development convenience; absence of a .env file is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		port := ""
		if len(os.Args) > 2 {
			port = os.Args[2]
		}
		runHTTPServer(port)
	case "check":
		if len(os.Args) < 3 {
			fmt.Println("Usage: phishguard check <url>")
			os.Exit(1)
		}
		runCLICheck(os.Args[2])
	case "version":
		fmt.Printf("PhishGuard v%s\n", Version)
		fmt.Println("Phishing URL Detection Gateway")
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("PhishGuard v%s - Phishing URL Detection Gateway\n\n", Version)
	fmt.Println("Usage:")
	fmt.Println("  phishguard serve [port]   Start HTTP server (default: 3001)")
	fmt.Println("  phishguard check <url>    Check a single URL and print the decision")
	fmt.Println("  phishguard version        Show version")
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Println("  phishguard serve 8080")
	fmt.Println("  phishguard check \"http://secure-login-verify.tk/account\"")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  PHISHGUARD_MODEL_DIR             Local model artifact directory")
	fmt.Println("  PHISHGUARD_REMOTE_URL            Peer gateway for remote inference")
	fmt.Println("  PHISHGUARD_THREAT_LIST_API_KEY   Threat list service key")
	fmt.Println("  PHISHGUARD_SCAN_REPORT_API_KEY   Multi-engine scan service key")
	fmt.Println("  PHISHGUARD_CONFIG                Optional YAML config file")
}

func loadConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	if path := os.Getenv("PHISHGUARD_CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			log.Fatalf("Config file %s: %v", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	return cfg
}

// ============================================================================
// HTTP Server Mode
// ============================================================================

func runHTTPServer(port string) {
	cfg := loadConfig()
	if port != "" {
		cfg.ListenPort = port
	}

	ctx := context.Background()
	gw, err := NewGateway(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.RemoteInferenceURL != "" {
		probeCtx, cancel := context.WithTimeout(ctx, cfg.RemoteTimeout)
		if ok, err := gw.remote.Health(probeCtx); err != nil {
			log.Printf("[Gateway] Remote peer unreachable: %v", err)
		} else if ok {
			log.Println("[Gateway] Remote peer healthy")
		} else {
			log.Println("[Gateway] Remote peer up but model not loaded")
		}
		cancel()
	}

	app := fiber.New(fiber.Config{
		AppName: "PhishGuard",
	})

	// Health check
	app.Get("/health", func(c fiber.Ctx) error {
		ready := gw.host.Ready()
		return c.JSON(fiber.Map{
			"status":          "healthy",
			"model_loaded":    ready,
			"metadata_loaded": ready,
			"timestamp":       time.Now().UTC().Format(time.RFC3339),
		})
	})

	// Raw model prediction for one URL. Peers call this as their remote
	// inference tier; a response without a threshold means "still loading".
	app.Post("/predict", func(c fiber.Ctx) error {
		req, ok := bindURL(c)
		if !ok {
			return nil
		}

		v, err := gw.host.Predict(req.URL, time.Now().UTC())
		if err != nil {
			v = verdict.NotReady(verdict.SourceLocal, 0, time.Now().UTC())
		}
		return c.JSON(fiber.Map{
			"status":         v.Status,
			"classification": v.Classification,
			"probability":    v.Probability,
			"threshold":      v.Threshold,
			"originalUrl":    req.URL,
		})
	})

	// Prediction plus the extracted feature record and both threshold
	// readings, for diagnosing disagreement with older clients that treated
	// the score as a safety probability.
	app.Post("/debug-predict", func(c fiber.Ctx) error {
		req, ok := bindURL(c)
		if !ok {
			return nil
		}

		meta := gw.host.Metadata()
		if meta == nil {
			return c.Status(503).JSON(fiber.Map{"error": "model not loaded"})
		}

		rec := gw.host.Features(req.URL)
		vec := model.InputVector(rec, meta)
		p, thr, err := gw.host.Score(req.URL)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}

		now := time.Now().UTC()
		canonical := verdict.Classify(p, thr, verdict.SourceLocal, now)
		legacy := verdict.Classify(1-p, thr, verdict.SourceLocal, now)
		return c.JSON(fiber.Map{
			"url":          req.URL,
			"features":     rec,
			"input_vector": vec,
			"probability":  p,
			"threshold":    thr,
			"canonical": fiber.Map{
				"status":         canonical.Status,
				"classification": canonical.Classification,
			},
			"legacy_inverted": fiber.Map{
				"status":         legacy.Status,
				"classification": legacy.Classification,
			},
		})
	})

	// Full navigation decision: gate, tier chain, block side effects.
	app.Post("/check", func(c fiber.Ctx) error {
		req, ok := bindURL(c)
		if !ok {
			return nil
		}

		if !decision.ShouldCheck(req.URL) {
			return c.JSON(decision.Decision{URL: req.URL, Allowed: true, Skipped: "scheme"})
		}

		d := gw.orchestrator.Check(c.Context(), req.URL)
		if d.Interstitial != nil {
			gw.mu.Lock()
			gw.lastBlocked = d.Interstitial
			gw.mu.Unlock()
		}
		return c.JSON(d)
	})

	// Reputation services only, bypassing the model tiers.
	app.Post("/reputation", func(c fiber.Ctx) error {
		req, ok := bindURL(c)
		if !ok {
			return nil
		}
		v, _ := gw.reputation.Check(c.Context(), req.URL)
		return c.JSON(v)
	})

	// Blocked-navigation statistics for the dashboard.
	app.Get("/stats", func(c fiber.Ctx) error {
		now := time.Now().UTC()
		total, err := gw.events.Count(c.Context())
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		recent, err := gw.events.Since(c.Context(), now.AddDate(0, 0, -6).Truncate(24*time.Hour))
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{
			"total_blocked":   total,
			"session_blocked": gw.orchestrator.BlockedCount(),
			"weekly":          threatlog.WeeklyBuckets(recent, now),
		})
	})

	// Proceed-anyway from the interstitial.
	app.Post("/allow-once", func(c fiber.Ctx) error {
		req, ok := bindURL(c)
		if !ok {
			return nil
		}
		gw.gate.AddOneTimeBypass(req.URL)
		log.Printf("[Gateway] One-time bypass granted for %s", req.URL)
		return c.JSON(fiber.Map{"allowed": true, "expires_in": gw.config.BypassTTL.String()})
	})

	// Trust-this-site from the interstitial.
	app.Post("/whitelist", func(c fiber.Ctx) error {
		req, ok := bindURL(c)
		if !ok {
			return nil
		}
		domain, err := gw.gate.AddToWhitelist(req.URL)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		}
		log.Printf("[Gateway] Whitelisted %s", domain)
		return c.JSON(fiber.Map{"whitelisted": domain})
	})

	// Interstitial payload for the most recent block. The warning page
	// falls back to this when it is loaded without query parameters.
	app.Get("/blocked/last", func(c fiber.Ctx) error {
		gw.mu.RLock()
		last := gw.lastBlocked
		gw.mu.RUnlock()
		if last == nil {
			return c.Status(404).JSON(fiber.Map{"error": "nothing blocked yet"})
		}
		return c.JSON(last)
	})

	log.Printf("PhishGuard v%s starting on :%s", Version, cfg.ListenPort)
	log.Printf("Endpoints:")
	log.Printf("  GET  /health         - Health check")
	log.Printf("  POST /predict        - Raw model prediction")
	log.Printf("  POST /debug-predict  - Prediction with features and both threshold readings")
	log.Printf("  POST /check          - Full navigation decision")
	log.Printf("  POST /reputation     - Reputation services only")
	log.Printf("  GET  /stats          - Blocked-navigation statistics")
	log.Printf("  POST /allow-once     - Grant a temporary bypass")
	log.Printf("  POST /whitelist      - Trust a domain permanently")
	log.Printf("  GET  /blocked/last   - Interstitial payload for the latest block")

	if err := app.Listen(":" + cfg.ListenPort); err != nil {
		log.Fatal(err)
	}
}

type urlRequest struct {
	URL string `json:"url"`
}

// bindURL parses the {"url": ...} body. On failure it writes the 400
// itself and reports ok=false; the handler just returns nil.
func bindURL(c fiber.Ctx) (urlRequest, bool) {
	var req urlRequest
	if err := c.Bind().Body(&req); err != nil {
		_ = c.Status(400).JSON(fiber.Map{"error": "invalid request"})
		return req, false
	}
	if req.URL == "" {
		_ = c.Status(400).JSON(fiber.Map{"error": "url field is required"})
		return req, false
	}
	return req, true
}

// ============================================================================
// CLI Mode
// ============================================================================

func runCLICheck(rawURL string) {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gw, err := NewGateway(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	// Wait briefly for the model so a cold start still scores locally.
	deadline := time.Now().Add(5 * time.Second)
	for !gw.host.Ready() && gw.host.LoadErr() == nil && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}

	d := gw.orchestrator.Check(ctx, rawURL)
	output, _ := json.MarshalIndent(d, "", "  ")
	fmt.Println(string(output))
}
