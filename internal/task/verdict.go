package task

import "strings"

// Verdict is the outcome a review text announces.
type Verdict string

const (
	VerdictApproved         Verdict = "APPROVED"
	VerdictChangesRequested Verdict = "CHANGES REQUESTED"
	VerdictUnknown          Verdict = "UNKNOWN"
)

// ExtractVerdict finds the review outcome in text. A request for changes
// wins over an approval mentioned in the same text.
func ExtractVerdict(text string) Verdict {
	t := strings.ToUpper(text)
	switch {
	case strings.Contains(t, string(VerdictChangesRequested)):
		return VerdictChangesRequested
	case strings.Contains(t, "NOT APPROVED"):
		return VerdictChangesRequested
	case strings.Contains(t, string(VerdictApproved)):
		return VerdictApproved
	default:
		return VerdictUnknown
	}
}
