package enrich

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contacts-cli/internal/fetch"
	"github.com/sells-group/contacts-cli/internal/model"
	"github.com/sells-group/contacts-cli/internal/websearch"
)

// fakeFetcher serves canned documents by URL.
type fakeFetcher struct {
	pages   map[string]string
	fetched []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, targetURL string, opts ...fetch.Option) (*goquery.Document, error) {
	f.fetched = append(f.fetched, targetURL)
	html, ok := f.pages[targetURL]
	if !ok {
		return nil, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestExtractor_TeamBlocks(t *testing.T) {
	ref := loadRef(t)
	doc := docFrom(t, `<html><body>
		<div class="team-member">
			<h3>Mario Rossi</h3>
			<p>CEO</p>
			<a href="mailto:mario.rossi@acme.it">scrivimi</a>
		</div>
	</body></html>`)

	ex := newExtractor(ref, "acme.it")
	signals := ex.teamBlocks(doc)

	require.Len(t, signals, 1)
	assert.Equal(t, "Mario Rossi", signals[0].Name)
	assert.Equal(t, "mario.rossi@acme.it", signals[0].Email)
	assert.Contains(t, signals[0].Title, "CEO")
}

func TestExtractor_Headings(t *testing.T) {
	ref := loadRef(t)
	doc := docFrom(t, `<html><body>
		<h3>Giulia Bianchi</h3>
		<p>Direttore Commerciale - giulia.bianchi@acme.it</p>
	</body></html>`)

	ex := newExtractor(ref, "acme.it")
	signals := ex.headings(doc)

	require.Len(t, signals, 1)
	assert.Equal(t, "Giulia Bianchi", signals[0].Name)
	assert.Equal(t, "giulia.bianchi@acme.it", signals[0].Email)
	assert.Contains(t, signals[0].Title, "Direttore Commerciale")
}

func TestExtractor_HeadingWithoutEmailStillYieldsName(t *testing.T) {
	ref := loadRef(t)
	doc := docFrom(t, `<html><body><h2>Mario Rossi</h2><p>Titolare</p></body></html>`)

	ex := newExtractor(ref, "acme.it")
	signals := ex.headings(doc)

	require.Len(t, signals, 1)
	assert.Equal(t, "Mario Rossi", signals[0].Name)
	assert.Empty(t, signals[0].Email)
	assert.Contains(t, signals[0].Title, "Titolare")
}

func TestExtractor_MailtoLinks(t *testing.T) {
	ref := loadRef(t)
	doc := docFrom(t, `<html><body>
		<a href="mailto:luca.verdi@acme.it?subject=ciao">Luca Verdi</a>
		<a href="mailto:info@acme.it">Info</a>
	</body></html>`)

	ex := newExtractor(ref, "acme.it")
	signals := ex.mailtoLinks(doc)

	require.Len(t, signals, 1)
	assert.Equal(t, "luca.verdi@acme.it", signals[0].Email)
	assert.Equal(t, "Luca Verdi", signals[0].Name)
}

func TestExtractor_FullTextScanFiltersAssetsAndGenerics(t *testing.T) {
	ref := loadRef(t)
	doc := docFrom(t, `<html><body>
		<p>icon@2x.png info@acme.it mario.rossi@acme.it someone@other.it</p>
	</body></html>`)

	ex := newExtractor(ref, "acme.it")
	signals := ex.fullText(doc)

	require.Len(t, signals, 1)
	assert.Equal(t, "mario.rossi@acme.it", signals[0].Email)
	assert.Empty(t, signals[0].Name)
}

func TestExtractor_SeenSetSpansPhases(t *testing.T) {
	ref := loadRef(t)
	doc := docFrom(t, `<html><body>
		<h3>Mario Rossi</h3>
		<p>CEO mario.rossi@acme.it</p>
	</body></html>`)

	ex := newExtractor(ref, "acme.it")
	signals := ex.extract(doc)

	emails := 0
	for _, s := range signals {
		if s.Email == "mario.rossi@acme.it" {
			emails++
		}
	}
	assert.Equal(t, 1, emails, "the full-text phase must not re-emit an email a prior phase claimed")
}

func TestWebsiteAdapter_FollowsTeamLinks(t *testing.T) {
	ref := loadRef(t)
	home := `<html><body>` + strings.Repeat("<p>filler</p>", 60) + `
		<a href="https://acme.it/chi-siamo">Chi siamo</a>
	</body></html>`
	team := `<html><body>
		<div class="team">
			<h3>Mario Rossi</h3>
			<span>Titolare</span>
			<a href="mailto:mario.rossi@acme.it">email</a>
		</div>
	</body></html>`

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://acme.it":           home,
		"https://acme.it/chi-siamo": team,
	}}
	adapter := NewWebsiteAdapter(fetcher, &fakeSearch{}, ref, 2)

	company := model.Company{Name: "Acme", Website: "https://acme.it"}
	signals := adapter.Fetch(context.Background(), &company, ModeFull)

	require.NotEmpty(t, signals)
	var found bool
	for _, s := range signals {
		if s.Email == "mario.rossi@acme.it" {
			found = true
		}
	}
	assert.True(t, found)
	assert.Contains(t, fetcher.fetched, "https://acme.it/chi-siamo")
}

func TestWebsiteAdapter_FallbackPathsWhenNoTeamLinks(t *testing.T) {
	ref := loadRef(t)
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://acme.it": `<html><body><p>plain homepage with no links</p></body></html>`,
	}}
	adapter := NewWebsiteAdapter(fetcher, &fakeSearch{}, ref, 2)

	company := model.Company{Name: "Acme", Website: "https://acme.it"}
	adapter.Fetch(context.Background(), &company, ModeFull)

	assert.Contains(t, fetcher.fetched, "https://acme.it/chi-siamo")
	assert.Contains(t, fetcher.fetched, "https://acme.it/contatti")
}

func TestWebsiteAdapter_ResolvesMissingWebsite(t *testing.T) {
	ref := loadRef(t)
	fetcher := &fakeFetcher{pages: map[string]string{}}
	search := &fakeSearch{results: []websearch.Result{
		{Title: "Acme | LinkedIn", URL: "https://www.linkedin.com/company/acme"},
		{Title: "Acme - Sito Ufficiale", URL: "https://acme.it/home"},
	}}

	adapter := NewWebsiteAdapter(fetcher, search, ref, 2)
	company := model.Company{Name: "Acme", Province: "MI"}
	adapter.Fetch(context.Background(), &company, ModeFull)

	require.Len(t, search.queries, 1)
	assert.Contains(t, search.queries[0], "sito ufficiale")
	assert.Contains(t, search.queries[0], "MI")
	assert.Equal(t, "https://acme.it", company.Website)
}

func TestWebsiteAdapter_DegradedWithoutWebsiteReturnsNothing(t *testing.T) {
	ref := loadRef(t)
	fetcher := &fakeFetcher{}
	search := &fakeSearch{}

	adapter := NewWebsiteAdapter(fetcher, search, ref, 2)
	company := model.Company{Name: "Acme"}
	assert.Empty(t, adapter.Fetch(context.Background(), &company, ModeDegraded))
	assert.Empty(t, search.queries)
}

func TestMailtoAddr(t *testing.T) {
	assert.Equal(t, "a@b.it", mailtoAddr("mailto:a@b.it"))
	assert.Equal(t, "a@b.it", mailtoAddr("mailto:A@B.it?subject=hi"))
	assert.Empty(t, mailtoAddr("https://b.it"))
}
