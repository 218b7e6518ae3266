package pipeline

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Structural validators for the two checklist stages. They operate only on
// structure (counts, coverage), never on content quality, so the revision
// edges stay deterministic regardless of model output.

var (
	sectionRe  = regexp.MustCompile(`(?m)^\s*(?:[-*]|\d+[.)])\s+\S`)
	citationRe = regexp.MustCompile(`\[[^\[\]]+\]|https?://\S+`)
)

// briefCheck validates the research brief's structure: it must contain
// between min and max bulleted or numbered sections.
func briefCheck(brief string, minSections, maxSections int) (bool, string) {
	if strings.TrimSpace(brief) == "" {
		return false, "brief is empty"
	}
	n := len(sectionRe.FindAllString(brief, -1))
	if n < minSections {
		return false, fmt.Sprintf("brief has %d sections, need at least %d distinct bulleted or numbered research directions", n, minSections)
	}
	if maxSections > 0 && n > maxSections {
		return false, fmt.Sprintf("brief has %d sections, trim to at most %d focused directions", n, maxSections)
	}
	return true, ""
}

// reportCheck validates the report's structure: enough citations, and the
// researched topics actually show up in the text.
func reportCheck(report string, notes []Note, minCitations int) (bool, string) {
	if strings.TrimSpace(report) == "" {
		return false, "report is empty"
	}
	if n := len(citationRe.FindAllString(report, -1)); n < minCitations {
		return false, fmt.Sprintf("report has %d citations, need at least %d", n, minCitations)
	}
	if missing := uncoveredTopics(report, notes); missing != nil {
		return false, fmt.Sprintf("report does not cover researched topics: %s", strings.Join(missing, "; "))
	}
	return true, ""
}

// uncoveredTopics returns researched topics absent from the report when
// more than half of them are missing, nil otherwise. The half threshold
// tolerates the model paraphrasing topic titles.
func uncoveredTopics(report string, notes []Note) []string {
	topics := make(map[string]bool)
	for _, note := range notes {
		if t := strings.TrimSpace(note.Topic); t != "" {
			topics[t] = true
		}
	}
	if len(topics) == 0 {
		return nil
	}

	lower := strings.ToLower(report)
	var missing []string
	for topic := range topics {
		if !topicMentioned(lower, topic) {
			missing = append(missing, topic)
		}
	}
	if len(missing)*2 <= len(topics) {
		return nil
	}
	sort.Strings(missing)
	return missing
}

// topicMentioned reports whether any significant word of the topic appears
// in the report.
func topicMentioned(lowerReport, topic string) bool {
	for _, word := range strings.Fields(strings.ToLower(topic)) {
		if len(word) < 4 {
			continue
		}
		if strings.Contains(lowerReport, word) {
			return true
		}
	}
	return false
}
