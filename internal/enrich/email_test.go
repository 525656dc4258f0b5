package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractEmails(t *testing.T) {
	text := `Contact Mario.Rossi@Acme.it or sales@acme.it.
	Duplicate: mario.rossi@acme.it`

	got := ExtractEmails(text)
	assert.Equal(t, []string{"mario.rossi@acme.it", "sales@acme.it"}, got)
}

func TestExtractEmails_NoMatches(t *testing.T) {
	assert.Empty(t, ExtractEmails("no addresses here"))
	assert.Empty(t, ExtractEmails(""))
}

func TestAcceptEmail(t *testing.T) {
	ref := loadRef(t)

	tests := []struct {
		email  string
		domain string
		want   bool
	}{
		{"mario.rossi@acme.it", "acme.it", true},
		{"mario.rossi@acme.it", "", true},

		// generic local parts
		{"info@acme.it", "acme.it", false},
		{"noreply@acme.it", "acme.it", false},

		// junk domains
		{"mario@example.com", "", false},
		{"mario@sentry.io", "", false},

		// asset-path artifacts
		{"icon@2x.png", "", false},
		{"logo@3x.jpg", "", false},

		// domain mismatch only enforced when the domain is known
		{"mario.rossi@other.it", "acme.it", false},
		{"mario.rossi@other.it", "", true},

		// structural rejects
		{"m@acme.it", "acme.it", false},
		{"@acme.it", "acme.it", false},
		{"mario@", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AcceptEmail(ref, tt.email, tt.domain), tt.email)
	}
}

func TestEmailMatchesName(t *testing.T) {
	tests := []struct {
		email string
		first string
		last  string
		want  bool
	}{
		{"mario.rossi@acme.it", "Mario", "Rossi", true},
		{"mariorossi@acme.it", "Mario", "Rossi", true},
		{"rossi.mario@acme.it", "Mario", "Rossi", true},
		{"m.rossi@acme.it", "Mario", "Rossi", true},
		{"mrossi@acme.it", "Mario", "Rossi", true},
		{"mario.r@acme.it", "Mario", "Rossi", true},
		{"rossi@acme.it", "Mario", "Rossi", true}, // local == last name
		{"giulia.bianchi@acme.it", "Mario", "Rossi", false},
		{"mario.rossi@acme.it", "", "Rossi", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EmailMatchesName(tt.email, tt.first, tt.last), tt.email)
	}
}

func TestEmailMatchesName_Diacritics(t *testing.T) {
	assert.True(t, EmailMatchesName("nicolo.cere@acme.it", "Nicolò", "Cerè"))
}

func TestGuessEmail(t *testing.T) {
	assert.Equal(t, "mario.rossi@acme.it", GuessEmail("Mario", "Rossi", "acme.it"))
	assert.Equal(t, "nicolo.cere@acme.it", GuessEmail("Nicolò", "Cerè", "acme.it"))
	assert.Empty(t, GuessEmail("", "Rossi", "acme.it"))
	assert.Empty(t, GuessEmail("Mario", "Rossi", ""))
	assert.Empty(t, GuessEmail("123", "456", "acme.it"))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Mario", "mario"},
		{"Cerè", "cere"},
		{"Nicolò", "nicolo"},
		{"De Luca", "deluca"},
		{"O'Brien", "obrien"},
		{"  Rossi  ", "rossi"},
		{"123", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestDomainOf(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.acme.it", "acme.it"},
		{"http://acme.it/about", "acme.it"},
		{"acme.it", "acme.it"},
		{"www.acme.it", "acme.it"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DomainOf(tt.in), tt.in)
	}
}
