package websearch

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxResults = 10

// engine is one scrapeable search backend: a URL template plus a
// parser for its result markup.
type engine struct {
	name      string
	searchURL func(escapedQuery string) string
	parse     func(doc *goquery.Document) []Result
}

// engines in probe preference order. DuckDuckGo's HTML endpoints
// tolerate automated traffic far better than Google, so they go first.
var engines = []engine{
	{
		name: "ddg_html",
		searchURL: func(q string) string {
			return "https://html.duckduckgo.com/html/?q=" + q
		},
		parse: parseDDGHTML,
	},
	{
		name: "ddg_lite",
		searchURL: func(q string) string {
			return "https://lite.duckduckgo.com/lite/?q=" + q
		},
		parse: parseDDGLite,
	},
	{
		name: "google",
		searchURL: func(q string) string {
			return "https://www.google.com/search?q=" + q + "&num=10&hl=en"
		},
		parse: parseGoogle,
	},
}

func parseDDGHTML(doc *goquery.Document) []Result {
	var results []Result
	doc.Find("div.result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		title := s.Find("a.result__a").First()
		if title.Length() == 0 {
			return true
		}
		results = append(results, Result{
			Title:   strings.TrimSpace(title.Text()),
			Snippet: strings.TrimSpace(s.Find("a.result__snippet").First().Text()),
			URL:     title.AttrOr("href", ""),
		})
		return len(results) < maxResults
	})
	return results
}

func parseDDGLite(doc *goquery.Document) []Result {
	var results []Result
	doc.Find("a.result-link").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		snippet := ""
		if row := a.Closest("tr"); row.Length() > 0 {
			snippet = strings.TrimSpace(row.Next().Text())
		}
		results = append(results, Result{
			Title:   strings.TrimSpace(a.Text()),
			Snippet: snippet,
			URL:     a.AttrOr("href", ""),
		})
		return len(results) < maxResults
	})
	return results
}

func parseGoogle(doc *goquery.Document) []Result {
	var results []Result
	doc.Find("div.g").EachWithBreak(func(_ int, div *goquery.Selection) bool {
		a := div.Find("a[href]").First()
		if a.Length() == 0 {
			return true
		}
		snip := div.Find("span.st, span.aCOpRe").First()
		if snip.Length() == 0 {
			snip = div.Find("div[data-sncf]").First()
		}
		results = append(results, Result{
			Title:   strings.TrimSpace(a.Text()),
			Snippet: strings.TrimSpace(snip.Text()),
			URL:     a.AttrOr("href", ""),
		})
		return len(results) < maxResults
	})
	return results
}
