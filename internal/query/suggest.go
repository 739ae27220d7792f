package query

import "github.com/utafrali/coursesearch/internal/domain"

// SuggestionLimit caps the number of titles returned for autocomplete.
const SuggestionLimit = 10

// BuildSuggest returns the autocomplete query for a text fragment: a
// phrase-prefix match or a fuzzy match on the suggestion field, at least one
// of which must hold.
func BuildSuggest(fragment string) *Bool {
	return &Bool{
		Should: []Expr{
			&MatchPhrasePrefix{Field: domain.FieldTitleSuggest, Query: fragment},
			&Match{Field: domain.FieldTitleSuggest, Query: fragment, Fuzziness: FuzzinessAuto},
		},
		MinimumShouldMatch: 1,
	}
}

// NewSuggest assembles the engine request for a suggestion lookup. Only the
// title is fetched.
func NewSuggest(fragment string) *Request {
	return &Request{
		Query:  BuildSuggest(fragment),
		Size:   SuggestionLimit,
		Source: []string{domain.FieldTitle},
	}
}
