package enrich

import (
	"strings"

	"github.com/sells-group/contacts-cli/internal/refdata"
)

// ScoreTitle ranks a job title's seniority on a 0-100 scale using the
// reference priority table. Keywords are scanned longest-first so
// "amministratore delegato" outranks "amministratore". Unmatched
// titles score 0; they are deprioritized, not discarded.
func ScoreTitle(ref *refdata.Reference, title string) int {
	tl := strings.ToLower(title)
	for _, t := range ref.Titles {
		if strings.Contains(tl, t.Keyword) {
			return t.Score
		}
	}
	return 0
}

// ExtractTitle finds the first seniority keyword in free text and
// returns it with up to 20 trailing characters of context, trimmed of
// trailing punctuation and capped at 60 characters. Empty when no
// keyword matches.
func ExtractTitle(ref *refdata.Reference, text string) string {
	tl := strings.ToLower(text)
	for _, t := range ref.Titles {
		i := strings.Index(tl, t.Keyword)
		if i < 0 {
			continue
		}
		end := i + len(t.Keyword) + 20
		if end > len(text) {
			end = len(text)
		}
		out := strings.TrimSpace(text[i:end])
		out = strings.TrimRight(out, ".,;:|/")
		if len(out) > 60 {
			out = out[:60]
		}
		return out
	}
	return ""
}
