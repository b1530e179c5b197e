package secrets

import "regexp"

// Confidence is the tier a SecretPattern belongs to.
type Confidence int

const (
	// Possible patterns never auto-redact; they only warn.
	Possible Confidence = iota
	Probable
	Definite
)

func (c Confidence) String() string {
	switch c {
	case Definite:
		return "definite"
	case Probable:
		return "probable"
	default:
		return "possible"
	}
}

// pattern is a single compiled secret-detection rule.
type pattern struct {
	Type       string
	Service    string
	Confidence Confidence
	Regexp     *regexp.Regexp
	// RequiresContextWord and ExcludeContextWord are not read by Scan. The
	// "possible" tier's context-word checks (including the hex-near-"hash"
	// exclusion) use the contextKeywords and hexExcludeKeywords lists instead.
	RequiresContextWord []string
	ExcludeContextWord  []string
}

const contextWindow = 50

// builtinPatterns is the immutable, process-wide pattern registry. Patterns
// are compiled once at package init and never mutated at runtime, satisfying
// the "SecretDetector pattern registry is immutable at runtime" global-state
// rule in spec.md §9.
//
// Grounded on internal/agent/tool_result_guard.go's builtinSecretPatterns,
// split into the three confidence tiers spec.md §4.4 requires and extended
// with the service-specific definite patterns it names explicitly.
var builtinPatterns = []pattern{
	// --- definite: service-specific, low false-positive ---
	{Type: "api_key", Service: "openai", Confidence: Definite,
		Regexp: regexp.MustCompile(`sk-[A-Za-z0-9]{48}`)},
	{Type: "api_key", Service: "anthropic", Confidence: Definite,
		Regexp: regexp.MustCompile(`sk-ant-api[A-Za-z0-9_-]{20,}`)},
	{Type: "api_key", Service: "aws", Confidence: Definite,
		Regexp: regexp.MustCompile(`AKIA[A-Z0-9]{16}`)},
	{Type: "api_key", Service: "github", Confidence: Definite,
		Regexp: regexp.MustCompile(`ghp_[A-Za-z0-9]{36}`)},
	{Type: "api_key", Service: "stripe", Confidence: Definite,
		Regexp: regexp.MustCompile(`sk_live_[A-Za-z0-9]{24,}`)},
	{Type: "bot_token", Service: "telegram", Confidence: Definite,
		Regexp: regexp.MustCompile(`\d{6,10}:[A-Za-z0-9_-]{35}`)},
	{Type: "webhook", Service: "discord", Confidence: Definite,
		Regexp: regexp.MustCompile(`https://discord(?:app)?\.com/api/webhooks/\d+/[A-Za-z0-9_-]+`)},
	{Type: "private_key", Confidence: Definite,
		Regexp: regexp.MustCompile(`-----BEGIN (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----[\s\S]*?-----END (RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`)},
	{Type: "jwt", Confidence: Definite,
		Regexp: regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)},

	// --- probable: structurally suspicious but not service-pinned ---
	{Type: "database_url", Confidence: Probable,
		Regexp: regexp.MustCompile(`(?i)(postgres|postgresql|mysql|mongodb|redis)://[^:\s]+:[^@\s]+@[^\s]+`)},
	{Type: "bearer_token", Confidence: Probable,
		Regexp: regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-_.]{10,}`)},
	{Type: "password_assignment", Confidence: Probable,
		Regexp: regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[:=]\s*['"]?[^\s'"]{6,}['"]?`)},
	{Type: "generic_secret_assignment", Confidence: Probable,
		Regexp: regexp.MustCompile(`(?i)(api[_-]?key|apikey|secret|token|credential)\s*[:=]\s*['"]?[\w./+=-]{16,}['"]?`)},
}

// contextKeywords are the keywords that, found within contextWindow bytes
// before a "possible" match, upgrade an otherwise-bare base64/hex blob into
// a reportable finding.
var contextKeywords = []string{"key", "secret", "token", "password", "credential", "auth"}

// hexExcludeKeywords resolve spec.md's Open Question: long hex near "hash"
// frequently means a commit SHA, not a secret.
var hexExcludeKeywords = []string{"hash", "digest", "commit", "sha"}

var (
	possibleBase64 = regexp.MustCompile(`[A-Za-z0-9+/]{40,}={0,2}`)
	possibleHex    = regexp.MustCompile(`[0-9a-fA-F]{32,}`)
)
