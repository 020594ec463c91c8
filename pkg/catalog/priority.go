package catalog

import (
	"sort"
	"strings"
)

// popularityKeywords boost collections whose display name suggests traffic.
var popularityKeywords = []string{"featured", "popular", "trending", "new", "best"}

const (
	keywordBoost  = 10
	maxSlugLength = 10
)

// PriorityScore ranks a collection for cache warming. Names containing a
// popularity keyword score 10; short slugs score up to 10 more.
func PriorityScore(c Collection) int {
	score := 0

	name := strings.ToLower(c.Name)
	for _, kw := range popularityKeywords {
		if strings.Contains(name, kw) {
			score += keywordBoost
			break
		}
	}

	if n := len(c.Slug); n < maxSlugLength {
		score += maxSlugLength - n
	}

	return score
}

// SortByPriority returns a copy of collections ordered by descending score,
// ties broken by case-insensitive name.
func SortByPriority(collections []Collection) []Collection {
	out := make([]Collection, len(collections))
	copy(out, collections)

	sort.SliceStable(out, func(i, j int) bool {
		si, sj := PriorityScore(out[i]), PriorityScore(out[j])
		if si != sj {
			return si > sj
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})

	return out
}
