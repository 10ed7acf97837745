package invoker

import (
	"regexp"
	"strings"
)

// Decision is the parsed tail of an agent's response: either terminal
// (COMPLETE) or a hand-off to another agent, per spec.md §4.4's
// "NEXT: <agent-name> | COMPLETE" / "REASON: <rationale>" contract.
type Decision struct {
	Terminal bool
	Next     string
	Reason   string
	// Normalized is true when Next was rewritten because the model named an
	// unknown agent (spec.md §4.4: normalized to "reviewer" with a warning).
	Normalized bool
	// Defaulted is true when no hand-off directive was found at all
	// (spec.md §4.4: defaults to next=reviewer, reason "no explicit
	// decision found").
	Defaulted bool
}

var (
	nextRE   = regexp.MustCompile(`(?im)^\s*NEXT\s*:\s*(.+?)\s*$`)
	reasonRE = regexp.MustCompile(`(?im)^\s*REASON\s*:\s*(.+?)\s*$`)
)

// ParseHandoff extracts the hand-off directive from an agent's response
// text, applying the normalization rules in spec.md §4.4. knownAgents
// should be the AgentRegistry's known names (case-sensitive, as registered).
func ParseHandoff(text string, knownAgents map[string]bool) Decision {
	nextMatch := nextRE.FindStringSubmatch(text)
	if nextMatch == nil {
		return Decision{
			Terminal:  false,
			Next:      "reviewer",
			Reason:    "no explicit decision found",
			Defaulted: true,
		}
	}

	reason := "no reason given"
	if m := reasonRE.FindStringSubmatch(text); m != nil {
		reason = strings.TrimSpace(m[1])
	}

	next := strings.TrimSpace(nextMatch[1])
	if strings.EqualFold(next, "COMPLETE") {
		return Decision{Terminal: true, Reason: reason}
	}

	if knownAgents != nil && !knownAgents[next] {
		return Decision{
			Next:       "reviewer",
			Reason:     reason,
			Normalized: true,
		}
	}
	return Decision{Next: next, Reason: reason}
}
