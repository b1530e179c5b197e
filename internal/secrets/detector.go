// Package secrets implements the SecretDetector: a pure, side-effect-free
// pattern registry that scans text for credential-shaped spans and redacts
// them. It never retains or returns an actual secret value — only spans,
// types, and confidence tiers.
package secrets

import (
	"regexp"
	"sort"
	"strings"
)

// Finding is a single secret-shaped span. It is spec.md's SecretFinding;
// Span marks start/end byte offsets into the scanned text, never the
// matched text itself.
type Finding struct {
	Confidence Confidence
	Type       string
	Service    string
	Start      int
	End        int
}

// Summary is the only shape of SecretDetector state allowed to appear in
// audit entries (spec.md §4.4).
type Summary struct {
	DefiniteCount int `json:"definite_count"`
	ProbableCount int `json:"probable_count"`
	PossibleCount int `json:"possible_count"`
}

// ScanResult is the return value of Scan.
type ScanResult struct {
	Findings      []Finding
	DefiniteCount int
	ProbableCount int
	PossibleCount int
}

// Summarize reduces a ScanResult (or any finding slice) to the audit-safe
// Summary shape.
func Summarize(findings []Finding) Summary {
	s := Summary{}
	for _, f := range findings {
		switch f.Confidence {
		case Definite:
			s.DefiniteCount++
		case Probable:
			s.ProbableCount++
		case Possible:
			s.PossibleCount++
		}
	}
	return s
}

// Detector scans and redacts text. It holds no mutable state beyond the
// immutable pattern registry, so a single Detector is safe for concurrent
// use from many goroutines (spec.md §9: "pure functions after
// initialization").
type Detector struct {
	patterns []pattern
}

// New returns a Detector using the built-in, process-wide pattern registry.
func New() *Detector {
	return &Detector{patterns: builtinPatterns}
}

// Scan finds every secret-shaped span in text across all three confidence
// tiers. Overlapping matches of different patterns are all reported;
// Redact resolves overlap by applying replacements right-to-left.
func (d *Detector) Scan(text string) ScanResult {
	var findings []Finding

	for _, p := range d.patterns {
		for _, loc := range p.Regexp.FindAllStringIndex(text, -1) {
			findings = append(findings, Finding{
				Confidence: p.Confidence,
				Type:       p.Type,
				Service:    p.Service,
				Start:      loc[0],
				End:        loc[1],
			})
		}
	}

	findings = append(findings, d.scanPossible(text, possibleBase64, "possible_base64")...)
	findings = append(findings, d.scanPossible(text, possibleHex, "possible_hex")...)

	sort.Slice(findings, func(i, j int) bool { return findings[i].Start < findings[j].Start })

	res := ScanResult{Findings: findings}
	for _, f := range findings {
		switch f.Confidence {
		case Definite:
			res.DefiniteCount++
		case Probable:
			res.ProbableCount++
		case Possible:
			res.PossibleCount++
		}
	}
	return res
}

// scanPossible implements the "possible" tier: long base64/hex blobs are
// only reported when a context keyword appears within contextWindow bytes
// before the match. The hex variant additionally excludes hash/digest/
// commit/sha contexts per spec.md's Open Question.
func (d *Detector) scanPossible(text string, re *regexp.Regexp, kind string) []Finding {
	var out []Finding
	for _, loc := range re.FindAllStringIndex(text, -1) {
		start := loc[0]
		windowStart := start - contextWindow
		if windowStart < 0 {
			windowStart = 0
		}
		window := strings.ToLower(text[windowStart:start])

		if kind == "possible_hex" && containsAny(window, hexExcludeKeywords) {
			continue
		}
		if !containsAny(window, contextKeywords) {
			continue
		}
		out = append(out, Finding{
			Confidence: Possible,
			Type:       kind,
			Start:      start,
			End:        loc[1],
		})
	}
	return out
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// Redact returns text with every finding at or above minConfidence replaced
// by "[REDACTED:<type>[:service]]". Replacement happens right-to-left by
// span end so earlier offsets stay valid as later ones are rewritten.
func (d *Detector) Redact(text string, minConfidence Confidence) string {
	res := d.Scan(text)
	findings := make([]Finding, 0, len(res.Findings))
	for _, f := range res.Findings {
		if f.Confidence >= minConfidence {
			findings = append(findings, f)
		}
	}
	// Findings are sorted ascending by Start from Scan; redact back-to-front.
	sort.Slice(findings, func(i, j int) bool { return findings[i].End > findings[j].End })

	out := text
	for _, f := range findings {
		if f.End > len(out) || f.Start < 0 || f.Start > f.End {
			continue
		}
		repl := "[REDACTED:" + f.Type
		if f.Service != "" {
			repl += ":" + f.Service
		}
		repl += "]"
		out = out[:f.Start] + repl + out[f.End:]
	}
	return out
}

// RedactDefault redacts at the spec.md default of min_confidence=probable.
func (d *Detector) RedactDefault(text string) string {
	return d.Redact(text, Probable)
}

// maxPatternLength is an estimate of the longest fixed-width match any
// built-in pattern can produce (the PEM private-key block is unbounded, so
// this only bounds the fixed-width patterns used to size streaming chunks).
const maxPatternLength = 128

// MinChunkSize is the minimum chunk size streaming callers should use when
// feeding content to ScanChunk in overlapping windows, satisfying spec.md's
// "chunks sized >= 2 x max_pattern_length" performance note.
const MinChunkSize = 2 * maxPatternLength

// ScanChunk scans a bounded window of a larger stream. Callers should
// overlap consecutive windows by at least maxPatternLength bytes so a match
// straddling a chunk boundary is still found in at least one window; Scan
// callers deduplicate by (Type, Start+offset, End+offset) if needed.
func (d *Detector) ScanChunk(chunk string, offset int) ScanResult {
	res := d.Scan(chunk)
	for i := range res.Findings {
		res.Findings[i].Start += offset
		res.Findings[i].End += offset
	}
	return res
}
