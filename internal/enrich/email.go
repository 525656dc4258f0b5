package enrich

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/contacts-cli/internal/refdata"
)

var emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// assetExts are fake "domains" produced by matching the email pattern
// against asset paths (icon@2x.png and friends).
var assetExts = []string{".png", ".jpg", ".css", ".js", ".gif"}

// ExtractEmails returns all email-shaped strings in text, lower-cased,
// in order of appearance with duplicates removed.
func ExtractEmails(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range emailRe.FindAllString(text, -1) {
		m = strings.ToLower(m)
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// AcceptEmail is the filter predicate every observed email must pass:
// no generic role local parts, no known junk domains, no asset
// extensions, local part of at least two chars. When a company domain
// is known the email's domain must match it.
func AcceptEmail(ref *refdata.Reference, email, companyDomain string) bool {
	email = strings.ToLower(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	local, domain := email[:at], email[at+1:]

	if ref.JunkDomains.Has(domain) || ref.GenericLocals.Has(local) {
		return false
	}
	for _, ext := range assetExts {
		if strings.HasSuffix(domain, ext) {
			return false
		}
	}
	if companyDomain != "" && domain != companyDomain {
		return false
	}
	return len(local) >= 2
}

// EmailMatchesName reports whether an email's local part plausibly
// encodes the given first/last name, using the standard corporate
// address patterns.
func EmailMatchesName(email, first, last string) bool {
	at := strings.Index(email, "@")
	if at <= 0 {
		return false
	}
	local := strings.ToLower(email[:at])
	f, l := Normalize(first), Normalize(last)
	if f == "" || l == "" {
		return false
	}
	patterns := []string{
		f + "." + l, f + l,
		l + "." + f, l + f,
		f[:1] + "." + l, f[:1] + l,
		f + "." + l[:1],
	}
	for _, p := range patterns {
		if strings.Contains(local, p) {
			return true
		}
	}
	return local == l
}

// GuessEmail synthesizes firstname.lastname@domain from a matched name.
// Returns "" when any part is missing after normalization.
func GuessEmail(first, last, domain string) string {
	f, l := Normalize(first), Normalize(last)
	if f == "" || l == "" || domain == "" {
		return ""
	}
	return f + "." + l + "@" + domain
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lower-cases, strips diacritics, and drops everything that
// is not an ASCII letter. "Ceré" -> "cere".
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	var b strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DomainOf extracts the bare host from a website URL, dropping the
// scheme and a leading "www.".
func DomainOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
