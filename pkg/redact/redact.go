// Package redact scrubs PII from transcripts and replies before they
// reach logs or the metrics sink. Spoken input routinely contains
// emails and phone numbers ("call me at …"), so redaction is on by
// default and disabled only via NIA_REDACT_PII=false.
package redact

import (
	"regexp"
	"strings"
	"sync/atomic"
)

var enabled atomic.Bool

func init() {
	enabled.Store(true)
}

var rules = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`), "[EMAIL]"},
	{regexp.MustCompile(`\b\+?\d[\d\s\-]{7,}\d\b`), "[PHONE]"},
	// Bearer-style secrets pasted into text turns.
	{regexp.MustCompile(`\b(sk|pk|key|token)[-_][A-Za-z0-9]{16,}\b`), "[SECRET]"},
}

// SetEnabled toggles transcript redaction.
func SetEnabled(v bool) {
	enabled.Store(v)
}

// Enabled returns true when redaction is active.
func Enabled() bool {
	return enabled.Load()
}

// Transcript redacts emails, phone numbers, and pasted secrets when
// redaction is enabled. The input is returned unchanged otherwise.
func Transcript(in string) string {
	if !enabled.Load() || strings.TrimSpace(in) == "" {
		return in
	}
	out := in
	for _, r := range rules {
		out = r.re.ReplaceAllString(out, r.replacement)
	}
	return out
}
