package patterns

// Pattern definitions, grouped by category. Inputs are lower-cased before
// matching, so character classes only need the lower-case range.

func (r *Registry) registerCredentialHarvestPatterns() {
	r.register(
		"hyphenated-lure-host",
		`^https?://[^/]*(?:secure|verify|login|signin|account|update|confirm)[a-z0-9]*-[a-z0-9-]+\.`,
		CategoryCredentialHarvest, 70,
		"Security-themed word joined by hyphens in the hostname",
	)
	r.register(
		"credential-page-path",
		`/(?:login|signin|verify|secure|account|banking|webscr|update)[a-z0-9-]*\.(?:php|html?|aspx?)`,
		CategoryCredentialHarvest, 60,
		"Credential-entry page name in the path",
	)
	r.register(
		"credential-in-query",
		`[?&](?:password|passwd|pwd|pin|ssn|cvv)=`,
		CategoryCredentialHarvest, 85,
		"Credential field passed as a query parameter",
	)
}

func (r *Registry) registerLookalikePatterns() {
	r.register(
		"brand-with-suffix",
		`^https?://[^/]*(?:paypal|apple|amazon|microsoft|netflix|facebook|instagram|whatsapp|chase)[a-z0-9]*-[a-z0-9-]+\.`,
		CategoryLookalike, 80,
		"Brand name padded with extra hyphenated words in the hostname",
	)
	r.register(
		"brand-as-subdomain",
		`^https?://(?:paypal|apple|amazon|microsoft|netflix|facebook|instagram|whatsapp|chase)\.[a-z0-9-]+\.[a-z]{2,}`,
		CategoryLookalike, 85,
		"Brand name used as a subdomain of an unrelated domain",
	)
	r.register(
		"digit-substitution",
		`(?:paypa1|pay-pal|g00gle|amaz0n|rnicrosoft|micros0ft|faceb00k|app1e|netf1ix|netfl1x)`,
		CategoryLookalike, 90,
		"Brand name with confusable character substitutions",
	)
}

func (r *Registry) registerObfuscationPatterns() {
	r.register(
		"userinfo-decoy",
		`^https?://[^/?#]*@`,
		CategoryObfuscation, 90,
		"Userinfo section hiding the real host behind a decoy",
	)
	r.register(
		"punycode-host",
		`^https?://(?:[a-z0-9-]+\.)*xn--`,
		CategoryObfuscation, 75,
		"Punycode-encoded label, a common homograph vehicle",
	)
	r.register(
		"heavy-percent-encoding",
		`(?:%[0-9a-f]{2}){4,}`,
		CategoryObfuscation, 65,
		"Long runs of percent-encoding obscuring the URL",
	)
	r.register(
		"dotted-ip-host",
		`^https?://(?:\d{1,3}\.){3}\d{1,3}`,
		CategoryObfuscation, 70,
		"Raw IP address instead of a hostname",
	)
	r.register(
		"hex-ip-host",
		`^https?://0x[0-9a-f]+`,
		CategoryObfuscation, 80,
		"Hexadecimal IP literal as the host",
	)
	r.register(
		"script-in-query",
		`[?&][a-z0-9_]+=(?:data:|javascript:)`,
		CategoryObfuscation, 85,
		"Executable scheme smuggled through a query parameter",
	)
	r.register(
		"open-redirect-param",
		`[?&](?:url|redirect|redir|next|goto|return|dest)=https?(?::|%3a)`,
		CategoryObfuscation, 55,
		"Full URL passed to a redirect-style parameter",
	)
}

func (r *Registry) registerInfrastructurePatterns() {
	r.register(
		"excessive-subdomains",
		`^https?://(?:[a-z0-9-]+\.){5,}`,
		CategoryInfrastructure, 60,
		"Five or more subdomain labels",
	)
	r.register(
		"free-tld-host",
		`^https?://[^/]*\.(?:tk|ml|ga|cf|gq)(?::\d+)?(?:/|$)`,
		CategoryInfrastructure, 65,
		"Hosted on a free TLD with heavy abuse rates",
	)
	r.register(
		"tunnel-service-host",
		`^https?://[^/]*\.(?:ngrok\.io|ngrok-free\.app|trycloudflare\.com|serveo\.net|loca\.lt)(?::\d+)?(?:/|$)`,
		CategoryInfrastructure, 55,
		"Served through an ephemeral tunnel service",
	)
}
