package memory

import (
	"regexp"
	"strings"
)

// Need describes which memory tiers a piece of text calls for. Detection
// is deliberately cheap: substring and simple regex scans only, so no
// embedding work happens when nothing matches.
type Need struct {
	Recall           bool // search medium + long
	Reference        bool // search base
	ReferenceSubject string
	Yesterday        bool // include yesterday context + medium
	Comparison       bool // search medium + long
}

// Any reports whether any retrieval is warranted.
func (n Need) Any() bool {
	return n.Recall || n.Reference || n.Yesterday || n.Comparison
}

var (
	recallTriggers = []string{
		"remember", "recall", "earlier", "you said", "before",
		"we talked", "we discussed", "last time", "previously",
	}
	referenceTriggers = []string{
		"how to", "what is", "what are", "explain", "guide",
		"documentation", "tutorial", "definition of", "tell me about",
	}
	yesterdayTriggers = []string{
		"yesterday", "last night", "this morning",
	}
	comparisonTriggers = []string{
		"different from", "difference between", "versus", " vs ",
		"better than", "worse than", "compared to",
	}

	// referenceSubjectRe pulls the subject out of a reference-style
	// question, e.g. "what is the borrow checker" -> "the borrow checker".
	referenceSubjectRe = regexp.MustCompile(`(?i)(?:how to|what is|what are|explain|tell me about|definition of)\s+([^.?!,]+)`)
)

// DetectMemoryNeed scans the combined text (user input plus the last few
// thoughts) for retrieval trigger families.
func DetectMemoryNeed(combined string) Need {
	lower := strings.ToLower(combined)

	var need Need
	for _, trig := range recallTriggers {
		if strings.Contains(lower, trig) {
			need.Recall = true
			break
		}
	}
	for _, trig := range referenceTriggers {
		if strings.Contains(lower, trig) {
			need.Reference = true
			break
		}
	}
	if need.Reference {
		if match := referenceSubjectRe.FindStringSubmatch(combined); len(match) > 1 {
			need.ReferenceSubject = strings.TrimSpace(match[1])
		}
	}
	for _, trig := range yesterdayTriggers {
		if strings.Contains(lower, trig) {
			need.Yesterday = true
			break
		}
	}
	for _, trig := range comparisonTriggers {
		if strings.Contains(lower, trig) {
			need.Comparison = true
			break
		}
	}
	return need
}
