// Package query models search-engine queries as a small expression tree.
//
// Builders in this package produce engine-neutral expressions; each engine
// package owns the translation of the tree into its own wire format.
package query

import (
	"strconv"
	"time"
)

// Kind identifies the clause type of an expression node.
type Kind int

const (
	KindMatchAll Kind = iota
	KindBool
	KindMultiMatch
	KindMatch
	KindMatchPhrasePrefix
	KindTerm
	KindRange
)

func (k Kind) String() string {
	switch k {
	case KindMatchAll:
		return "match_all"
	case KindBool:
		return "bool"
	case KindMultiMatch:
		return "multi_match"
	case KindMatch:
		return "match"
	case KindMatchPhrasePrefix:
		return "match_phrase_prefix"
	case KindTerm:
		return "term"
	case KindRange:
		return "range"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Expr is a node in the query tree.
type Expr interface {
	Kind() Kind
}

// Fuzziness is the edit-distance tolerance of a text clause.
type Fuzziness string

// FuzzinessAuto lets the engine scale the edit distance with term length.
const FuzzinessAuto Fuzziness = "AUTO"

// Field is a field reference with an optional relevance boost.
type Field struct {
	Name  string
	Boost float64
}

// String renders the field in name^boost notation.
func (f Field) String() string {
	if f.Boost == 0 || f.Boost == 1 {
		return f.Name
	}
	return f.Name + "^" + strconv.FormatFloat(f.Boost, 'f', -1, 64)
}

// MatchAll matches every document.
type MatchAll struct{}

func (MatchAll) Kind() Kind { return KindMatchAll }

// Bool combines clauses. Must and Should clauses contribute to scoring,
// Filter clauses only restrict the result set.
type Bool struct {
	Must               []Expr
	Filter             []Expr
	Should             []Expr
	MinimumShouldMatch int
}

func (*Bool) Kind() Kind { return KindBool }

// IsEmpty reports whether the bool carries no clauses at all.
func (b *Bool) IsEmpty() bool {
	return len(b.Must) == 0 && len(b.Filter) == 0 && len(b.Should) == 0
}

// MultiMatch runs a full-text match of Query across several fields.
type MultiMatch struct {
	Query     string
	Fields    []Field
	Fuzziness Fuzziness
}

func (*MultiMatch) Kind() Kind { return KindMultiMatch }

// Match runs a full-text match of Query against one field.
type Match struct {
	Field     string
	Query     string
	Fuzziness Fuzziness
}

func (*Match) Kind() Kind { return KindMatch }

// MatchPhrasePrefix matches Query as a phrase whose last term is a prefix.
type MatchPhrasePrefix struct {
	Field string
	Query string
}

func (*MatchPhrasePrefix) Kind() Kind { return KindMatchPhrasePrefix }

// Term matches the exact, unanalyzed Value of a field.
type Term struct {
	Field string
	Value string
}

func (*Term) Kind() Kind { return KindTerm }

// Range bounds a numeric or date field. A nil bound is open.
// Bound values are int, float64 or time.Time.
type Range struct {
	Field string
	GTE   any
	LTE   any
}

func (*Range) Kind() Kind { return KindRange }

// AtLeast returns a range with an inclusive lower bound.
func AtLeast(field string, v any) *Range {
	return &Range{Field: field, GTE: v}
}

// AtMost returns a range with an inclusive upper bound.
func AtMost(field string, v any) *Range {
	return &Range{Field: field, LTE: v}
}

// FormatTime renders a date bound the way it is sent to the engines.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
