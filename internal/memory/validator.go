package memory

import (
	"context"
	"strings"

	"github.com/blueberrycongee/cachemux/internal/cache/semantic"
)

// hedgeMarkers flag content whose author signalled uncertainty. A turn
// carrying one of these never becomes a long-term fact.
var hedgeMarkers = []string{
	"i think",
	"i guess",
	"i believe",
	"maybe",
	"perhaps",
	"possibly",
	"probably",
	"not sure",
	"no idea",
	"might be",
	"could be",
	"if i recall",
	"if i remember",
}

// softeners lower confidence without blocking admission.
var softeners = []string{"usually", "often", "sometimes", "mostly"}

var negationMarkers = []string{" not ", "n't ", " never ", " no longer "}

// Decision is the outcome of an admission check. Rejection is terminal
// for the item; a corrected statement is a new item.
type Decision struct {
	Accept     bool
	Confidence float64
	Reason     string
}

// AdmissionValidator gates writes into long-term memory. It rejects
// hedged statements and statements that contradict an already-admitted
// fact, so one shaky utterance cannot be served as fact to later
// sessions.
type AdmissionValidator struct {
	matcher *semantic.Matcher // nil skips the contradiction check

	contradictionThreshold float64
}

// NewAdmissionValidator creates a validator. matcher may be nil, which
// disables contradiction detection.
func NewAdmissionValidator(matcher *semantic.Matcher, contradictionThreshold float64) *AdmissionValidator {
	if contradictionThreshold <= 0 || contradictionThreshold > 1 {
		contradictionThreshold = 0.85
	}
	return &AdmissionValidator{
		matcher:                matcher,
		contradictionThreshold: contradictionThreshold,
	}
}

// Validate decides whether content may enter long-term memory for the
// namespace. The contradiction check fails open: an unreachable index
// must not block admission outright.
func (v *AdmissionValidator) Validate(ctx context.Context, namespace, content string) Decision {
	lowered := " " + strings.ToLower(strings.TrimSpace(content)) + " "

	if strings.TrimSpace(content) == "" {
		return Decision{Accept: false, Confidence: 0, Reason: "empty content"}
	}

	for _, marker := range hedgeMarkers {
		if strings.Contains(lowered, marker) {
			return Decision{Accept: false, Confidence: 0.3, Reason: "hedging marker: " + marker}
		}
	}

	confidence := 1.0
	for _, s := range softeners {
		if strings.Contains(lowered, " "+s+" ") {
			confidence = 0.7
			break
		}
	}

	if v.matcher != nil {
		match, err := v.matcher.FindSimilar(ctx, namespace, content, v.contradictionThreshold)
		if err == nil && match != nil && oppositePolarity(lowered, match.MatchedPrompt) {
			return Decision{
				Accept:     false,
				Confidence: confidence,
				Reason:     "contradicts admitted fact: " + match.MatchedPrompt,
			}
		}
	}

	return Decision{Accept: true, Confidence: confidence}
}

// oppositePolarity reports whether exactly one of the two statements is
// negated. Two similar statements with opposite polarity contradict.
func oppositePolarity(a, b string) bool {
	return isNegated(a) != isNegated(" "+strings.ToLower(b)+" ")
}

func isNegated(s string) bool {
	for _, m := range negationMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
