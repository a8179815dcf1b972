// Package clarify implements the reflective session pipeline: quota
// admission, context assembly, generation, structured parsing, and
// best-effort persistence fan-out.
package clarify

import (
	"regexp"
	"strings"

	"github.com/stillroom/clarity-engine/internal/domain"
)

// The model is instructed to emit four sections in a fixed order. It is an
// untrusted, best-effort producer, so each field is extracted
// independently and defaulted when absent. Matching is sequential: a
// section's text runs until the next expected header.
var (
	insightPattern  = regexp.MustCompile(`(?is)INSIGHT:\s*(.*?)\n\s*THREAD:`)
	threadPattern   = regexp.MustCompile(`(?is)THREAD:\s*(.*?)\n\s*CLARITY:`)
	clarityPattern  = regexp.MustCompile(`(?is)CLARITY:\s*(.*?)\n\s*QUESTION:`)
	questionPattern = regexp.MustCompile(`(?is)QUESTION:\s*(.*)`)
)

// Per-field fallbacks, used whenever a section is missing or empty.
const (
	defaultInsight  = "It sounds like you might want more distance from this right now."
	defaultThread   = "A quiet thread is trying to make itself known."
	defaultClarity  = "If this isn’t something you want to stay with, we don’t have to. You can share only what feels okay right now."
	defaultQuestion = "Would you prefer I leave this alone for now?"
)

// Parse extracts the four reply fields from raw model output. It is a
// total function: every field of the result is non-empty for any input,
// and it never returns an error.
func Parse(raw string) domain.StructuredReply {
	return domain.StructuredReply{
		Insight:  extract(insightPattern, raw, defaultInsight),
		Thread:   extract(threadPattern, raw, defaultThread),
		Clarity:  extract(clarityPattern, raw, defaultClarity),
		Question: extract(questionPattern, raw, defaultQuestion),
	}
}

func extract(pattern *regexp.Regexp, raw, fallback string) string {
	m := pattern.FindStringSubmatch(raw)
	if m == nil {
		return fallback
	}
	text := strings.TrimSpace(m[1])
	if text == "" {
		return fallback
	}
	return text
}
