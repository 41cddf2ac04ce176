// package resolver implements cross-catalog song identity matching.
//
// Given a canonical song and a target provider, the resolver decides whether
// an equivalent track exists in the target catalog, producing a
// confidence-scored match. Matching never mutates anything; callers decide
// what to do with the result.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mixtape-app/mixtape/internal/models"
	"github.com/mixtape-app/mixtape/internal/providers"
	"golang.org/x/text/unicode/norm"
)

const (
	// MinConfidence is the floor below which no primary match is reported.
	MinConfidence = 0.6
	// AlternativeConfidence is the floor for candidates worth surfacing for
	// caller-side disambiguation.
	AlternativeConfidence = 0.4

	// Scoring weights. Duration contributes nothing when unknown on either side.
	titleWeight    = 0.45
	artistWeight   = 0.35
	durationWeight = 0.20

	// Duration closeness: full credit within 3 seconds, decaying linearly to
	// zero at 15 seconds difference.
	durationFullSeconds = 3
	durationZeroSeconds = 15

	searchLimit = 10
)

// Candidate is one scored search result.
type Candidate struct {
	Song       models.Song `json:"song"`
	Confidence float64     `json:"confidence"`
}

// MatchResult is the outcome of resolving one song against one provider.
// A zero Confidence with empty ProviderID means "no match found", which is an
// outcome, not an error.
type MatchResult struct {
	ProviderID   string      `json:"providerId,omitempty"`
	Confidence   float64     `json:"confidence"`
	Alternatives []Candidate `json:"alternativeMatches,omitempty"`
}

// Matched reports whether a primary match was found.
func (r MatchResult) Matched() bool {
	return r.ProviderID != ""
}

// Resolver scores provider search results against canonical songs.
type Resolver struct{}

// New creates a Resolver.
func New() *Resolver {
	return &Resolver{}
}

// Resolve matches candidate against the target provider's catalog.
//
// When the song already carries a confirmed id for the provider, it is
// returned with confidence 1.0 without any network call. Otherwise the
// adapter's search is queried and each result scored; ranking is
// deterministic, with earlier provider positions winning score ties.
func (r *Resolver) Resolve(ctx context.Context, adapter providers.Adapter, token string, candidate models.Song) (MatchResult, error) {
	if id, ok := candidate.ProviderID(adapter.Name()); ok {
		return MatchResult{ProviderID: id, Confidence: 1.0}, nil
	}

	if err := candidate.Validate(); err != nil {
		return MatchResult{}, fmt.Errorf("cannot resolve invalid song: %w", err)
	}

	query := BuildQuery(candidate)
	results, err := adapter.Search(ctx, token, query, searchLimit)
	if err != nil {
		return MatchResult{}, fmt.Errorf("search against %s failed: %w", adapter.Name(), err)
	}

	scored := make([]Candidate, 0, len(results))
	for _, result := range results {
		scored = append(scored, Candidate{
			Song:       result,
			Confidence: Score(candidate, result),
		})
	}

	// Stable sort keeps the provider's relevance order for equal scores.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Confidence > scored[j].Confidence
	})

	match := MatchResult{}
	for _, c := range scored {
		if c.Confidence >= AlternativeConfidence {
			match.Alternatives = append(match.Alternatives, c)
		}
	}

	if len(scored) > 0 && scored[0].Confidence >= MinConfidence {
		best := scored[0]
		id, _ := best.Song.ProviderID(adapter.Name())
		match.ProviderID = id
		match.Confidence = best.Confidence
	}

	return match, nil
}

// BuildQuery builds the provider search query from normalized title and artist.
func BuildQuery(song models.Song) string {
	return strings.TrimSpace(Normalize(song.Title) + " " + Normalize(song.Artist))
}

// Score computes the weighted match confidence between the wanted song and a
// provider search result.
func Score(want, got models.Song) float64 {
	score := titleWeight * textScore(want.Title, got.Title)
	score += artistWeight * textScore(want.Artist, got.Artist)
	score += durationWeight * durationScore(want.DurationSeconds, got.DurationSeconds)
	return score
}

// textScore compares two normalized strings: exact scores 1.0, substring
// containment 0.7, and fuzzy similarity fills in below that.
func textScore(want, got string) float64 {
	w := Normalize(want)
	g := Normalize(got)
	if w == "" || g == "" {
		return 0
	}
	if w == g {
		return 1.0
	}
	if strings.Contains(g, w) || strings.Contains(w, g) {
		return 0.7
	}

	rank := fuzzy.RankMatchNormalizedFold(w, g)
	if rank < 0 {
		return 0
	}

	longest := max(len(w), len(g))
	similarity := 1.0 - float64(rank)/float64(longest)
	if similarity < 0 {
		similarity = 0
	}
	return 0.6 * similarity
}

// durationScore returns 1.0 within 3 seconds, decaying linearly to zero at 15
// seconds difference. Unknown duration on either side contributes nothing.
func durationScore(want, got int) float64 {
	if want <= 0 || got <= 0 {
		return 0
	}

	diff := want - got
	if diff < 0 {
		diff = -diff
	}

	switch {
	case diff <= durationFullSeconds:
		return 1.0
	case diff >= durationZeroSeconds:
		return 0
	default:
		return 1.0 - float64(diff-durationFullSeconds)/float64(durationZeroSeconds-durationFullSeconds)
	}
}

// Normalize lowercases, strips punctuation and diacritics, and collapses
// whitespace so cosmetic differences between catalogs don't defeat matching.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := true
	for _, r := range norm.NFD.String(strings.ToLower(s)) {
		switch {
		case unicode.Is(unicode.Mn, r):
			// combining marks dropped; "días" and "dias" compare equal
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}

// NormalizeTrackKey builds a stable comparison key from a title and artist.
// Used for playlist diffing and idempotency checks.
func NormalizeTrackKey(title, artist string) string {
	return Normalize(title) + "|" + Normalize(artist)
}
