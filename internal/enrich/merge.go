package enrich

import (
	"sort"
	"strings"

	"github.com/sells-group/contacts-cli/internal/model"
	"github.com/sells-group/contacts-cli/internal/refdata"
)

// record accumulates everything the sources observed about one person
// while the merge runs.
type record struct {
	first, last string
	title       string
	titleScore  int
	email       string
	guessed     bool
	sources     map[model.SignalSource]struct{}
	order       int
}

func (r *record) addSource(s model.SignalSource) {
	r.sources[s] = struct{}{}
}

func (r *record) maybeTitle(ref *refdata.Reference, title string) {
	if title == "" {
		return
	}
	score := ScoreTitle(ref, title)
	if r.title == "" || score > r.titleScore {
		r.title = title
		r.titleScore = score
	}
}

// Merge reconciles signals from all sources into a ranked, deduplicated
// contact list. Identity is the accent-folded lowercase name; network
// signals seed the set first so their richer titles win ties, then
// website names, then emails are attached to the best-matching person.
// Emails that match no plausible person are dropped. The result is
// deterministic for a given signal order.
func Merge(ref *refdata.Reference, domain string, signals []model.Signal, maxPeople int) []model.Contact {
	if maxPeople <= 0 {
		maxPeople = 1
	}

	byKey := make(map[string]*record)
	var order []*record
	nextOrder := 0

	upsert := func(first, last string, src model.SignalSource) *record {
		key := Normalize(first) + "\x00" + Normalize(last)
		if r, ok := byKey[key]; ok {
			r.addSource(src)
			return r
		}
		r := &record{
			first:   first,
			last:    last,
			sources: map[model.SignalSource]struct{}{src: {}},
			order:   nextOrder,
		}
		nextOrder++
		byKey[key] = r
		order = append(order, r)
		return r
	}

	// Pass 1: named signals establish the people set. Network first so
	// profile titles take precedence at equal score.
	for _, pass := range []model.SignalSource{model.SourceNetwork, model.SourceWebsite} {
		for _, sig := range signals {
			if sig.Source != pass || sig.Name == "" {
				continue
			}
			first, last, ok := SplitName(sig.Name)
			if !ok || !PlausiblePerson(ref, first, last) {
				continue
			}
			r := upsert(first, last, sig.Source)
			r.maybeTitle(ref, sig.Title)
			if sig.Email != "" && r.email == "" {
				r.email = sig.Email
			}
		}
	}

	// Pass 2: attach bare emails to the person whose name best matches
	// the local part. Unmatchable emails are dropped, never emitted as
	// nameless contacts.
	candidates := make([]NameCandidate, len(order))
	for i, r := range order {
		candidates[i] = NameCandidate{First: r.first, Last: r.last}
	}
	seenEmail := make(map[string]struct{})
	for _, r := range order {
		if r.email != "" {
			seenEmail[r.email] = struct{}{}
		}
	}
	for _, sig := range signals {
		if sig.Email == "" || sig.Name != "" {
			continue
		}
		if _, dup := seenEmail[sig.Email]; dup {
			continue
		}
		idx := MatchToName(sig.Email, candidates)
		if idx < 0 || order[idx].email != "" {
			continue
		}
		order[idx].email = sig.Email
		order[idx].addSource(sig.Source)
		seenEmail[sig.Email] = struct{}{}
	}

	// Pass 3: guess a pattern address for emailless people when the
	// company domain is known.
	if domain != "" {
		for _, r := range order {
			if r.email != "" {
				continue
			}
			guess := GuessEmail(r.first, r.last, domain)
			if guess == "" {
				continue
			}
			if _, dup := seenEmail[guess]; dup {
				continue
			}
			r.email = guess
			r.guessed = true
			seenEmail[guess] = struct{}{}
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.titleScore != b.titleScore {
			return a.titleScore > b.titleScore
		}
		if len(a.sources) != len(b.sources) {
			return len(a.sources) > len(b.sources)
		}
		return a.order < b.order
	})

	if len(order) > maxPeople {
		order = order[:maxPeople]
	}

	contacts := make([]model.Contact, 0, len(order))
	for _, r := range order {
		srcs := make([]model.SignalSource, 0, len(r.sources))
		for s := range r.sources {
			srcs = append(srcs, s)
		}
		sort.Slice(srcs, func(i, j int) bool { return srcs[i] < srcs[j] })
		contacts = append(contacts, model.Contact{
			FirstName:    titleCaseWords(r.first),
			LastName:     titleCaseWords(r.last),
			Title:        r.title,
			Email:        r.email,
			EmailGuessed: r.guessed,
			TitleScore:   r.titleScore,
			Sources:      srcs,
		})
	}
	return contacts
}

// titleCaseWords capitalizes each word of a (possibly multi-word)
// surname without touching interior case of particles like "De Luca".
func titleCaseWords(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
