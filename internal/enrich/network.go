package enrich

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/contacts-cli/internal/model"
	"github.com/sells-group/contacts-cli/internal/refdata"
	"github.com/sells-group/contacts-cli/internal/websearch"
)

// seniorityDisjunction scopes the profile search to decision-maker
// titles in both English and Italian.
const seniorityDisjunction = `"CEO" OR "Founder" OR "Fondatore" OR "Titolare" OR ` +
	`"Amministratore" OR "Direttore" OR "Responsabile" OR ` +
	`"Managing Director" OR "General Manager" OR ` +
	`"Direttore Commerciale" OR "Direttore Marketing" OR ` +
	`"Sales Manager" OR "Export Manager" OR "CTO" OR "CFO" OR ` +
	`"Proprietario" OR "Owner" OR "Partner"`

var (
	legalSuffixRe = regexp.MustCompile(`(?i)\b(S\.?R\.?L\.?|S\.?P\.?A\.?|S\.?N\.?C\.?|S\.?A\.?S\.?|S\.?S\.?|SOCIETA'?\s*(PER\s*AZIONI|A\s*RESPONSABILITA'?\s*LIMITATA)?)\b`)
	multiSpaceRe  = regexp.MustCompile(`\s+`)
	snippetRoleRe = regexp.MustCompile(`(?i)[·\-]\s*(.+?)\s+(?:presso|at|@|a)\s+`)
	pipeSuffixRe  = regexp.MustCompile(`\s*\|.*$`)
	brandSuffixRe = regexp.MustCompile(`(?i)\s*-\s*LinkedIn.*$`)
)

const maxNetworkPeople = 10

// NetworkAdapter searches indexed professional-network profile pages
// for people associated with the company. It yields name and title
// fragments only, never emails.
type NetworkAdapter struct {
	search websearch.Client
	ref    *refdata.Reference
}

// NewNetworkAdapter builds the professional-network search adapter.
func NewNetworkAdapter(search websearch.Client, ref *refdata.Reference) *NetworkAdapter {
	return &NetworkAdapter{search: search, ref: ref}
}

func (a *NetworkAdapter) Name() model.SignalSource { return model.SourceNetwork }

// Fetch builds the scoped profile query and parses result titles and
// snippets into signals. Degraded mode short-circuits to nothing.
func (a *NetworkAdapter) Fetch(ctx context.Context, company *model.Company, mode Mode) []model.Signal {
	if mode == ModeDegraded {
		return nil
	}

	clean := CleanCompanyName(company.Name)
	if len(clean) < 2 {
		return nil
	}

	query := `site:linkedin.com/in "` + clean + `" (` + seniorityDisjunction + `)`
	results, err := a.search.Search(ctx, query)
	if err != nil {
		zap.L().Debug("enrich: network search failed",
			zap.String("company", company.Name),
			zap.Error(err),
		)
		return nil
	}

	return a.parsePeople(results)
}

// CleanCompanyName strips legal-form suffixes (SRL, SPA, ...) and
// collapses whitespace so the quoted query matches how people write
// the company on their profiles.
func CleanCompanyName(name string) string {
	clean := legalSuffixRe.ReplaceAllString(name, "")
	clean = multiSpaceRe.ReplaceAllString(clean, " ")
	return strings.Trim(strings.TrimSpace(clean), " -.,")
}

func (a *NetworkAdapter) parsePeople(results []websearch.Result) []model.Signal {
	var signals []model.Signal
	seen := make(map[string]struct{})

	for _, r := range results {
		combined := r.Title + " " + r.Snippet

		name, jobTitle := "", ""
		head := strings.ReplaceAll(r.Title, " | LinkedIn", "")
		head = strings.ReplaceAll(head, " - LinkedIn", "")
		parts := strings.Split(head, " - ")
		if candidate := strings.TrimSpace(parts[0]); IsPlausibleName(a.ref, candidate) {
			name = candidate
			if len(parts) >= 2 {
				jobTitle = strings.TrimSpace(parts[1])
			}
		}
		if name == "" {
			continue
		}

		if jobTitle == "" && r.Snippet != "" {
			if m := snippetRoleRe.FindStringSubmatch(r.Snippet); m != nil {
				jobTitle = strings.TrimSpace(m[1])
			}
		}
		if jobTitle == "" {
			jobTitle = ExtractTitle(a.ref, combined)
		}

		name = strings.TrimSpace(pipeSuffixRe.ReplaceAllString(name, ""))
		name = strings.TrimSpace(brandSuffixRe.ReplaceAllString(name, ""))
		upper := strings.ToUpper(name)
		if strings.Contains(upper, "SRL") || strings.Contains(upper, "SPA") ||
			strings.Contains(upper, "S.R.L") || strings.Contains(upper, "S.P.A") ||
			strings.Contains(upper, "LINKEDIN") {
			continue
		}
		if n := len(strings.Fields(name)); n < 2 || n > 4 {
			continue
		}

		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if len(jobTitle) > 80 {
			jobTitle = jobTitle[:80]
		}
		signals = append(signals, model.Signal{
			Source:     model.SourceNetwork,
			Name:       name,
			Title:      jobTitle,
			ProfileURL: r.URL,
		})
		if len(signals) >= maxNetworkPeople {
			break
		}
	}
	return signals
}
