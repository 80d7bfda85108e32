package tool

import "unicode/utf8"

// Limits controls output truncation boundaries.
type Limits struct {
	MaxBytes int
}

// ApplyOutputLimits truncates text to MaxBytes without splitting a UTF-8
// sequence.
func ApplyOutputLimits(text string, limits Limits) (out string, truncated bool) {
	if limits.MaxBytes <= 0 || len(text) <= limits.MaxBytes {
		return text, false
	}
	cut := limits.MaxBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut], true
}

// Limit applies limits to a result's content in place.
func (r Result) Limit(limits Limits) Result {
	var truncated bool
	r.Content, truncated = ApplyOutputLimits(r.Content, limits)
	r.TruncatedBytes = r.TruncatedBytes || truncated
	return r
}
