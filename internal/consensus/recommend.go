package consensus

import (
	"fmt"
	"strconv"
	"strings"

	"bidflow/internal/domain"
)

const (
	maxLoneItemNotes   = 10
	lowConfidenceLimit = 0.6
)

// recommendations turns disagreements, weakly supported entries and
// non-participating models into review notes for a human estimator.
func recommendations(r *domain.ConsensusResult, participants int) []string {
	var out []string

	for _, d := range r.Disagreements {
		out = append(out, disagreementNote(d))
	}

	if participants >= 2 {
		var lone []string
		for _, it := range r.Items {
			if it.ConsensusCount == 1 {
				lone = append(lone, fmt.Sprintf("Verify %q: reported only by %s.", it.Name, it.Sources[0]))
			}
		}
		for _, is := range r.Issues {
			if is.ConsensusCount == 1 {
				lone = append(lone, fmt.Sprintf("Verify %q: reported only by %s.", is.Title, is.Sources[0]))
			}
		}
		if len(lone) > maxLoneItemNotes {
			rest := len(lone) - maxLoneItemNotes
			lone = append(lone[:maxLoneItemNotes], fmt.Sprintf("%d more entries were reported by a single model; review them before relying on this result.", rest))
		}
		out = append(out, lone...)
	}

	for _, ma := range r.ModelAgreements {
		if ma.Participated {
			continue
		}
		note := fmt.Sprintf("%s did not participate (%s)", ma.ModelID, ma.Status)
		if ma.Error != "" {
			note += ": " + ma.Error
		}
		out = append(out, note+".")
	}

	if r.Confidence < lowConfidenceLimit {
		out = append(out, fmt.Sprintf("Overall confidence is %.0f%%; treat this result as preliminary and verify quantities against the drawings.", r.Confidence*100))
	}
	if len(out) == 0 {
		out = append(out, "No manual review flagged: all participating models agreed.")
	}
	return out
}

func disagreementNote(d domain.Disagreement) string {
	parts := make([]string, len(d.Values))
	for i, v := range d.Values {
		parts[i] = fmt.Sprintf("%s=%s", v.ModelID, formatValue(v.Value))
	}
	if d.Kind == domain.DisagreementNumeric {
		return fmt.Sprintf("Review %q: models disagree on %s by %.0f%% (%s).", d.ItemName, d.Field, d.Spread*100, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("Review %q: models disagree on %s (%s).", d.ItemName, d.Field, strings.Join(parts, ", "))
}

func formatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
