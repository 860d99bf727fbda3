package fulfillment

import (
	"strings"

	"github.com/aluiziolira/go-ebook-batch/models"
)

// apiBook is one hit in a search response.
type apiBook struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	MD5    string `json:"md5"`
	Year   string `json:"year"`
}

type searchResponse struct {
	Books []apiBook `json:"books"`
}

// matchBook picks the first hit of the strictest tier that has one:
// title, author and year; then title and author; then author alone.
// Title and author compare as case-insensitive substrings.
func matchBook(hits []apiBook, want models.BookInput) (apiBook, bool) {
	title := strings.ToLower(strings.TrimSpace(want.Title))
	author := strings.ToLower(strings.TrimSpace(want.Author))
	year := strings.TrimSpace(want.Year)

	authorMatches := func(b apiBook) bool {
		return strings.Contains(strings.ToLower(b.Author), author)
	}
	titleMatches := func(b apiBook) bool {
		return strings.Contains(strings.ToLower(b.Title), title)
	}

	tiers := []func(apiBook) bool{
		func(b apiBook) bool {
			return authorMatches(b) && titleMatches(b) && strings.TrimSpace(b.Year) == year
		},
		func(b apiBook) bool {
			return authorMatches(b) && titleMatches(b)
		},
		authorMatches,
	}

	for _, tier := range tiers {
		for _, hit := range hits {
			if hit.MD5 == "" {
				continue
			}
			if tier(hit) {
				return hit, true
			}
		}
	}
	return apiBook{}, false
}
