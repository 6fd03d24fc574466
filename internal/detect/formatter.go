package detect

import (
	"strconv"
	"strings"
)

const summaryPrefix = "Automated analysis result: "

// NoDetectionsSummary is posted when the tool ran and found nothing. Callers
// may compare against it verbatim.
const NoDetectionsSummary = summaryPrefix + "no objects detected."

// Format turns an outcome into annotation text. It returns false when there is
// nothing worth posting.
func Format(o Outcome) (string, bool) {
	switch o.Kind {
	case OutcomeStructured:
		if len(o.Items) == 0 {
			return NoDetectionsSummary, true
		}
		parts := make([]string, 0, len(o.Items))
		for _, item := range o.Items {
			parts = append(parts, FormatItem(item))
		}
		return summaryPrefix + strings.Join(parts, ", ") + ".", true
	case OutcomeRawText:
		if o.Text == "" {
			return "", false
		}
		return summaryPrefix + o.Text + ".", true
	default:
		return "", false
	}
}

// FormatItem renders "label (97.0%)"
func FormatItem(item Item) string {
	return item.Label + " (" + strconv.FormatFloat(item.Confidence*100, 'f', 1, 64) + "%)"
}
