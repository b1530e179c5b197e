package audit

import (
	"sync"
	"time"
)

// escalationKey identifies a (rule, user, tool) bucket for rate-based
// severity escalation and alert-storm dedup, per spec.md §4.5.
type escalationKey struct {
	rule string
	user string
	tool string
}

type bucket struct {
	minuteCount int
	minuteStart time.Time
	hourCount   int
	hourStart   time.Time

	cooldownUntil   time.Time
	suppressedCount int
}

// escalator promotes repeated events exceeding per-minute/per-hour
// thresholds to alert severity, deduping repeats of the same (rule, user,
// tool) key during a cooldown window and folding the suppressed count into
// the next alert of that key.
type escalator struct {
	mu      sync.Mutex
	buckets map[escalationKey]*bucket

	perMinuteThreshold int
	perHourThreshold   int
	cooldown           time.Duration
}

func newEscalator() *escalator {
	return &escalator{
		buckets:            make(map[escalationKey]*bucket),
		perMinuteThreshold: 10,
		perHourThreshold:   50,
		cooldown:           5 * time.Minute,
	}
}

// apply inspects e and, if it exceeds the rate thresholds for its
// (Action, UserID, ToolName) key, promotes it to alert severity. While a key
// is in its cooldown window after an escalation, further occurrences of the
// same key are suppressed (reported via the second return value) and
// counted, with the count attached to the next alert emitted for that key
// once the cooldown lapses.
//
// apply never suppresses an entry that already arrived at critical —
// escalation only promotes, it never downgrades or drops entries a caller
// explicitly marked critical.
func (es *escalator) apply(e Entry) (out Entry, suppress bool) {
	if e.Severity == SeverityCritical {
		return e, false
	}

	key := escalationKey{rule: e.Action, user: e.UserID, tool: e.ToolName}

	es.mu.Lock()
	defer es.mu.Unlock()

	b, ok := es.buckets[key]
	if !ok {
		b = &bucket{}
		es.buckets[key] = b
	}

	now := e.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	if now.Sub(b.minuteStart) > time.Minute {
		b.minuteStart = now
		b.minuteCount = 0
	}
	if now.Sub(b.hourStart) > time.Hour {
		b.hourStart = now
		b.hourCount = 0
	}
	b.minuteCount++
	b.hourCount++

	exceeded := b.minuteCount > es.perMinuteThreshold || b.hourCount > es.perHourThreshold

	if !exceeded && e.Severity != SeverityAlert {
		return e, false
	}

	e.Severity = SeverityAlert

	if now.Before(b.cooldownUntil) {
		b.suppressedCount++
		return e, true
	}

	if b.suppressedCount > 0 {
		e.SuppressedCount = b.suppressedCount
		b.suppressedCount = 0
	}
	b.cooldownUntil = now.Add(es.cooldown)
	return e, false
}
