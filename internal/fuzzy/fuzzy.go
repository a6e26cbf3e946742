// Package fuzzy scores string similarity on a 0-100 scale and ranks
// candidate records against a free-text query.
//
// Scores are integers derived from the Levenshtein distance over runes, so
// multi-byte names such as "Gastrofüsterer" compare by character rather than
// by byte.
package fuzzy

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// MaxLimit caps every ranked result set.
const MaxLimit = 100

// DefaultLimit and DefaultMinScore are what tools use when a request omits them.
const (
	DefaultLimit    = 10
	DefaultMinScore = 60
)

// SuggestionCount is how many unfiltered suggestions Extract returns for
// name searches.
const SuggestionCount = 5

// Candidate is a record that can be matched by name.
type Candidate struct {
	ID   int64
	Name string
}

// Match is a scored candidate.
type Match struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"similarity_score"`
}

// Suggestion is a scored name without an id.
type Suggestion struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Ratio returns the whole-string similarity of a and b.
// Two empty strings are identical; one empty string scores 0.
func Ratio(a, b string) int {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 100
	}
	if la == 0 || lb == 0 {
		return 0
	}
	d := levenshtein.ComputeDistance(a, b)
	return score(1 - float64(d)/float64(longest))
}

// PartialRatio returns the best Ratio of the shorter string against every
// window of the same length in the longer string.
func PartialRatio(a, b string) int {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		if len(long) == 0 {
			return 100
		}
		return 0
	}
	if len(short) == len(long) {
		return Ratio(a, b)
	}

	s := string(short)
	best := 0
	for i := 0; i+len(short) <= len(long); i++ {
		r := Ratio(s, string(long[i:i+len(short)]))
		if r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

// WeightedRatio blends Ratio and PartialRatio. When one string is at least
// one and a half times the length of the other, a scaled partial score may
// win over the whole-string score.
func WeightedRatio(a, b string) int {
	base := Ratio(a, b)
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return base
	}
	lenRatio := float64(max(la, lb)) / float64(min(la, lb))
	if lenRatio < 1.5 {
		return base
	}
	partial := score(0.9 * float64(PartialRatio(a, b)) / 100)
	return max(base, partial)
}

// MatchAll scores every candidate with a non-blank name by PartialRatio of the
// case-folded query and name, sorted by descending score. Ties keep the
// candidate order.
func MatchAll(query string, candidates []Candidate) []Match {
	q := fold(query)
	out := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		out = append(out, Match{ID: c.ID, Name: c.Name, Score: PartialRatio(q, fold(c.Name))})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Search ranks candidates and keeps those scoring at least minScore, capped
// at min(limit, MaxLimit). A negative minScore counts as 0 and a
// non-positive limit yields no matches; defaults are the caller's concern.
// An empty result is not an error.
func Search(query string, candidates []Candidate, limit, minScore int) []Match {
	if limit <= 0 {
		return []Match{}
	}
	limit = min(limit, MaxLimit)
	minScore = max(minScore, 0)

	ranked := MatchAll(query, candidates)
	out := make([]Match, 0, min(limit, len(ranked)))
	for _, m := range ranked {
		if m.Score < minScore {
			// ranked is sorted, nothing after this passes either
			break
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Extract returns the k best names by WeightedRatio with no threshold.
func Extract(query string, names []string, k int) []Suggestion {
	if k <= 0 {
		k = SuggestionCount
	}
	q := fold(query)
	out := make([]Suggestion, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		out = append(out, Suggestion{Name: n, Score: WeightedRatio(q, fold(n))})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// ClampLimit maps a list limit into [1, MaxLimit], using DefaultLimit for
// non-positive requests. Search does not apply it.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func score(f float64) int {
	return int(math.Round(f * 100))
}
