package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreTitle(t *testing.T) {
	ref := loadRef(t)

	tests := []struct {
		title string
		want  int
	}{
		{"CEO", 100},
		{"ceo", 100},
		{"Amministratore Delegato", 100},
		{"Founder", 95},
		{"Fondatore", 95},
		{"Co-Founder", 94},
		{"Titolare", 93},
		{"Unknown Job", 0},
		{"", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ScoreTitle(ref, tt.title), tt.title)
	}
}

func TestScoreTitle_LongestKeywordWins(t *testing.T) {
	ref := loadRef(t)

	// "amministratore delegato" must not be shadowed by any shorter
	// keyword contained in it.
	assert.Equal(t, 100, ScoreTitle(ref, "Amministratore Delegato di Acme"))
	// "co-founder" contains "founder"; the longer keyword is scanned
	// first.
	assert.Equal(t, 94, ScoreTitle(ref, "co-founder"))
}

func TestExtractTitle(t *testing.T) {
	ref := loadRef(t)

	got := ExtractTitle(ref, "Mario Rossi, CEO di Acme Srl, guida il gruppo")
	assert.NotEmpty(t, got)
	assert.Contains(t, got, "CEO")
	assert.LessOrEqual(t, len(got), 60)

	assert.Empty(t, ExtractTitle(ref, "nothing relevant here"))
	assert.Empty(t, ExtractTitle(ref, ""))
}

func TestExtractTitle_TrimsTrailingPunctuation(t *testing.T) {
	ref := loadRef(t)

	got := ExtractTitle(ref, "Titolare.")
	assert.Equal(t, "Titolare", got)
}
