// Package refdata holds the static reference sets used by the
// enrichment heuristics: the multilingual first-name dictionary, the
// non-name blocklist, the generic email local-part list, the junk
// domain list, and the title seniority table. Everything is loaded
// once at process start and is immutable afterwards, so no
// synchronization is needed.
package refdata

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed data/firstnames.txt
var firstNamesRaw string

//go:embed data/nonnames.txt
var nonNamesRaw string

//go:embed data/generic_locals.txt
var genericLocalsRaw string

//go:embed data/junk_domains.txt
var junkDomainsRaw string

//go:embed data/titles.yaml
var titlesRaw []byte

// Set is a case-insensitive membership set.
type Set map[string]struct{}

// Has reports whether s contains v (case-insensitive).
func (s Set) Has(v string) bool {
	_, ok := s[strings.ToLower(v)]
	return ok
}

// TitleRank pairs a seniority keyword with its score.
type TitleRank struct {
	Keyword string `yaml:"keyword"`
	Score   int    `yaml:"score"`
}

// Reference is the full immutable reference data set.
type Reference struct {
	FirstNames    Set
	NonNames      Set
	GenericLocals Set
	JunkDomains   Set

	// Titles is ordered by keyword length descending so that the
	// longest match wins ("direttore commerciale" before "direttore").
	Titles []TitleRank
}

// Load parses the embedded reference data. Called once at startup.
func Load() (*Reference, error) {
	var tf struct {
		Titles []TitleRank `yaml:"titles"`
	}
	if err := yaml.Unmarshal(titlesRaw, &tf); err != nil {
		return nil, eris.Wrap(err, "refdata: parse titles")
	}
	if len(tf.Titles) == 0 {
		return nil, eris.New("refdata: empty title table")
	}
	for _, t := range tf.Titles {
		if t.Score < 0 || t.Score > 100 {
			return nil, eris.Errorf("refdata: title score out of range: %q=%d", t.Keyword, t.Score)
		}
	}

	titles := make([]TitleRank, len(tf.Titles))
	copy(titles, tf.Titles)
	sortByKeywordLen(titles)

	return &Reference{
		FirstNames:    parseSet(firstNamesRaw),
		NonNames:      parseSet(nonNamesRaw),
		GenericLocals: parseSet(genericLocalsRaw),
		JunkDomains:   parseSet(junkDomainsRaw),
		Titles:        titles,
	}, nil
}

func parseSet(raw string) Set {
	s := make(Set)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		s[line] = struct{}{}
	}
	return s
}

// sortByKeywordLen orders title ranks longest keyword first, using a
// simple insertion sort to keep the original order among equal lengths.
func sortByKeywordLen(titles []TitleRank) {
	for i := 1; i < len(titles); i++ {
		for j := i; j > 0 && len(titles[j].Keyword) > len(titles[j-1].Keyword); j-- {
			titles[j], titles[j-1] = titles[j-1], titles[j]
		}
	}
}
