package enrich

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/contacts-cli/internal/fetch"
	"github.com/sells-group/contacts-cli/internal/model"
	"github.com/sells-group/contacts-cli/internal/refdata"
	"github.com/sells-group/contacts-cli/internal/websearch"
)

var (
	teamClassRe   = regexp.MustCompile(`(?i)team|member|staff|person|card|profile`)
	teamAnchorRe  = regexp.MustCompile(`(?i)chi.siamo|about|team|staff|contatt|contact|azienda|company|persone|people|management|leadership|direzione|organizzazione`)
	fallbackPaths = []string{"/chi-siamo", "/contatti"}
)

// resolveSkipDomains are hosts that can never be a company's own site.
var resolveSkipDomains = []string{
	"facebook.com", "linkedin.com", "twitter.com", "instagram.com",
	"youtube.com", "paginegialle.it", "wikipedia.org", "amazon.com",
	"duckduckgo.com", "google.com",
}

// WebsiteAdapter scrapes the company's own website for people signals.
type WebsiteAdapter struct {
	fetcher     fetch.Fetcher
	search      websearch.Client
	ref         *refdata.Reference
	followLinks int
}

// NewWebsiteAdapter builds the website adapter. followLinks bounds how
// many internal team/contact pages are fetched after the homepage.
func NewWebsiteAdapter(fetcher fetch.Fetcher, search websearch.Client, ref *refdata.Reference, followLinks int) *WebsiteAdapter {
	if followLinks < 0 {
		followLinks = 0
	}
	return &WebsiteAdapter{fetcher: fetcher, search: search, ref: ref, followLinks: followLinks}
}

func (a *WebsiteAdapter) Name() model.SignalSource { return model.SourceWebsite }

// Fetch resolves the company homepage (searching for it when the input
// row has no website and the search backend is available), extracts
// signals from it, then follows a bounded number of team/contact links.
func (a *WebsiteAdapter) Fetch(ctx context.Context, company *model.Company, mode Mode) []model.Signal {
	log := zap.L().With(zap.String("company", company.Name))

	website := company.Website
	if website == "" {
		if mode == ModeDegraded {
			return nil
		}
		website = a.resolveWebsite(ctx, company)
		if website == "" {
			log.Debug("enrich: no website found via search")
			return nil
		}
		company.Website = website
		log.Debug("enrich: website resolved via search", zap.String("website", website))
	}
	if !strings.HasPrefix(website, "http") {
		website = "https://" + website
	}
	domain := DomainOf(website)

	doc, err := a.fetcher.Fetch(ctx, website)
	if err != nil || doc == nil {
		return nil
	}

	ex := newExtractor(a.ref, domain)
	signals := ex.extract(doc)
	hasEmail := false
	for _, s := range signals {
		if s.Email != "" {
			hasEmail = true
			break
		}
	}

	teamLinks := a.collectTeamLinks(doc, website, domain)
	for i, link := range teamLinks {
		if i >= a.followLinks {
			break
		}
		sub, err := a.fetcher.Fetch(ctx, link, fetch.Quick())
		if err != nil || sub == nil {
			continue
		}
		signals = append(signals, ex.extract(sub)...)
	}

	// No team links and nothing observed on the homepage: try the two
	// conventional paths before giving up.
	if len(teamLinks) == 0 && !hasEmail {
		base := strings.TrimRight(website, "/")
		for _, p := range fallbackPaths {
			sub, err := a.fetcher.Fetch(ctx, base+p, fetch.Quick())
			if err != nil || sub == nil {
				continue
			}
			signals = append(signals, ex.extract(sub)...)
		}
	}

	return signals
}

// resolveWebsite asks the search backend for the company's official
// site using the localized query template, skipping social networks
// and aggregators.
func (a *WebsiteAdapter) resolveWebsite(ctx context.Context, company *model.Company) string {
	query := company.Name + " sito ufficiale"
	if company.Province != "" {
		query = company.Name + " " + company.Province + " sito ufficiale"
	}
	results, err := a.search.Search(ctx, query)
	if err != nil {
		return ""
	}
	if len(results) > 8 {
		results = results[:8]
	}
	for _, r := range results {
		if !strings.HasPrefix(r.URL, "http") {
			continue
		}
		u, err := url.Parse(r.URL)
		if err != nil {
			continue
		}
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		skip := false
		for _, s := range resolveSkipDomains {
			if strings.Contains(host, s) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		return "https://" + u.Hostname()
	}
	return ""
}

// collectTeamLinks returns same-domain links whose anchor text or href
// matches the team/contact keyword set.
func (a *WebsiteAdapter) collectTeamLinks(doc *goquery.Document, base, domain string) []string {
	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := s.AttrOr("href", "")
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		if !teamAnchorRe.MatchString(text) && !teamAnchorRe.MatchString(href) {
			return
		}
		if !strings.HasPrefix(href, "http") {
			href = strings.TrimRight(base, "/") + "/" + strings.TrimLeft(href, "/")
		}
		if domain == "" || !strings.Contains(strings.ToLower(href), domain) {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		links = append(links, href)
	})
	return links
}

// extractor applies the four extraction phases to a page. The seen set
// spans pages within one adapter call so follow-up pages only
// contribute emails the homepage didn't already cover.
type extractor struct {
	ref    *refdata.Reference
	domain string
	seen   map[string]struct{}
}

func newExtractor(ref *refdata.Reference, domain string) *extractor {
	return &extractor{ref: ref, domain: domain, seen: make(map[string]struct{})}
}

// extract runs the fixed-priority phases: structured team blocks,
// heading/sibling pairs, explicit mailto links, then the full-page
// pattern fallback. Each phase only contributes what earlier phases
// didn't already cover.
func (ex *extractor) extract(doc *goquery.Document) []model.Signal {
	var signals []model.Signal
	signals = append(signals, ex.teamBlocks(doc)...)
	signals = append(signals, ex.headings(doc)...)
	signals = append(signals, ex.mailtoLinks(doc)...)
	signals = append(signals, ex.fullText(doc)...)
	return signals
}

func (ex *extractor) accept(email string) bool {
	if !AcceptEmail(ex.ref, email, ex.domain) {
		return false
	}
	_, dup := ex.seen[email]
	return !dup
}

// teamBlocks scans structured team/member markup: a container with a
// team-ish class, a heading-level name inside it, and an email nearby.
func (ex *extractor) teamBlocks(doc *goquery.Document) []model.Signal {
	var signals []model.Signal
	doc.Find("div, li, article").Each(func(_ int, block *goquery.Selection) {
		class := block.AttrOr("class", "")
		if !teamClassRe.MatchString(class) {
			return
		}
		text := squeeze(block.Text())
		if len(text) < 5 || len(text) > 500 {
			return
		}

		name := ""
		block.Find("h2, h3, h4, h5, strong, b, span").EachWithBreak(func(_ int, h *goquery.Selection) bool {
			if t := strings.TrimSpace(h.Text()); IsPlausibleName(ex.ref, t) {
				name = t
				return false
			}
			return true
		})

		email := ""
		block.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if e := mailtoAddr(a.AttrOr("href", "")); e != "" && ex.accept(e) {
				email = e
				return false
			}
			return true
		})
		if email == "" {
			for _, e := range ExtractEmails(text) {
				if ex.accept(e) {
					email = e
					break
				}
			}
		}
		if email == "" {
			return
		}

		ex.seen[email] = struct{}{}
		signals = append(signals, model.Signal{
			Source: model.SourceWebsite,
			Name:   name,
			Title:  ExtractTitle(ex.ref, text),
			Email:  email,
		})
	})
	return signals
}

// headings finds person names in heading elements and looks for a
// title and email in the next few siblings and the parent block. Names
// without an email still yield a name-only signal.
func (ex *extractor) headings(doc *goquery.Document) []model.Signal {
	var signals []model.Signal
	doc.Find("h2, h3, h4, h5, strong, b").Each(func(_ int, h *goquery.Selection) {
		name := strings.TrimSpace(h.Text())
		if !IsPlausibleName(ex.ref, name) {
			return
		}

		email, title := "", ""
		sibs := h.NextAll()
		for i := 0; i < sibs.Length() && i < 3; i++ {
			st := squeeze(sibs.Eq(i).Text())
			if title == "" {
				title = ExtractTitle(ex.ref, st)
			}
			if email == "" {
				for _, e := range ExtractEmails(st) {
					if ex.accept(e) {
						email = e
						break
					}
				}
			}
		}
		if parent := h.Parent(); parent.Length() > 0 {
			pt := squeeze(parent.Text())
			if title == "" {
				title = ExtractTitle(ex.ref, pt)
			}
			if email == "" {
				for _, e := range ExtractEmails(pt) {
					if ex.accept(e) {
						email = e
						break
					}
				}
			}
		}

		if email != "" {
			ex.seen[email] = struct{}{}
		}
		signals = append(signals, model.Signal{
			Source: model.SourceWebsite,
			Name:   name,
			Title:  title,
			Email:  email,
		})
	})
	return signals
}

// mailtoLinks collects explicit mailto anchors not covered above.
func (ex *extractor) mailtoLinks(doc *goquery.Document) []model.Signal {
	var signals []model.Signal
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		email := mailtoAddr(a.AttrOr("href", ""))
		if email == "" || !ex.accept(email) {
			return
		}
		name := strings.TrimSpace(a.Text())
		if !IsPlausibleName(ex.ref, name) {
			name = ""
		}
		title := ""
		if parent := a.Parent(); parent.Length() > 0 {
			title = ExtractTitle(ex.ref, squeeze(parent.Text()))
		}
		ex.seen[email] = struct{}{}
		signals = append(signals, model.Signal{
			Source: model.SourceWebsite,
			Name:   name,
			Title:  title,
			Email:  email,
		})
	})
	return signals
}

// fullText is the last-resort pattern scan over the page text.
func (ex *extractor) fullText(doc *goquery.Document) []model.Signal {
	var signals []model.Signal
	for _, e := range ExtractEmails(doc.Text()) {
		if !ex.accept(e) {
			continue
		}
		ex.seen[e] = struct{}{}
		signals = append(signals, model.Signal{
			Source: model.SourceWebsite,
			Email:  e,
		})
	}
	return signals
}

// mailtoAddr extracts the address from a mailto: href, dropping query
// parameters. Empty for non-mailto hrefs and filtered addresses.
func mailtoAddr(href string) string {
	if !strings.HasPrefix(href, "mailto:") {
		return ""
	}
	addr := strings.TrimPrefix(href, "mailto:")
	if i := strings.Index(addr, "?"); i >= 0 {
		addr = addr[:i]
	}
	return strings.ToLower(strings.TrimSpace(addr))
}

var spaceRe = regexp.MustCompile(`\s+`)

func squeeze(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
