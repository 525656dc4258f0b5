package enrich

import "strings"

// NameCandidate is a known person an email may be attributed to.
type NameCandidate struct {
	First string
	Last  string
}

// MatchToName picks the candidate whose name best explains the email's
// local part. Scoring: one point per local-part token (split on . _ -
// +) equal to a normalized name token, plus a bonus when the local
// part matches a standard first/last pattern. Ties are broken by the
// smallest edit distance between the local part and "first.last", then
// by candidate order. Returns -1 when no candidate scores above zero.
func MatchToName(email string, candidates []NameCandidate) int {
	at := strings.Index(email, "@")
	if at <= 0 {
		return -1
	}
	local := strings.ToLower(email[:at])
	tokens := splitLocal(local)

	best := -1
	bestScore := 0
	bestDist := 0
	for i, c := range candidates {
		f, l := Normalize(c.First), Normalize(c.Last)
		if f == "" || l == "" {
			continue
		}
		score := 0
		for _, t := range tokens {
			if t == f || t == l {
				score++
			}
		}
		if EmailMatchesName(email, c.First, c.Last) {
			score += 2
		}
		if score <= 0 {
			continue
		}
		dist := levenshtein(local, f+"."+l)
		if score > bestScore || (score == bestScore && dist < bestDist) {
			best = i
			bestScore = score
			bestDist = dist
		}
	}
	return best
}

func splitLocal(local string) []string {
	return strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
}

func levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min3(cur[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
