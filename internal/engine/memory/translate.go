package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/utafrali/coursesearch/internal/domain"
	"github.com/utafrali/coursesearch/internal/query"
)

// sortTypes tells bleve how to compare the fields results can be ordered by.
var sortTypes = map[string]search.SortFieldType{
	domain.FieldPrice:           search.SortFieldAsNumber,
	domain.FieldMinAge:          search.SortFieldAsNumber,
	domain.FieldMaxAge:          search.SortFieldAsNumber,
	domain.FieldNextSessionDate: search.SortFieldAsDate,
}

// translate converts a query tree into the equivalent bleve query.
func translate(e query.Expr) (blevequery.Query, error) {
	switch n := e.(type) {
	case nil, query.MatchAll, *query.MatchAll:
		return bleve.NewMatchAllQuery(), nil

	case *query.Bool:
		return translateBool(n)

	case *query.MultiMatch:
		perField := make([]blevequery.Query, 0, len(n.Fields))
		for _, f := range n.Fields {
			q := fuzzyMatch(f.Name, n.Query, n.Fuzziness)
			if f.Boost > 0 {
				q.SetBoost(f.Boost)
			}
			perField = append(perField, q)
		}
		return bleve.NewDisjunctionQuery(perField...), nil

	case *query.Match:
		return fuzzyMatch(n.Field, n.Query, n.Fuzziness), nil

	case *query.MatchPhrasePrefix:
		return phrasePrefix(n.Field, n.Query), nil

	case *query.Term:
		q := bleve.NewTermQuery(n.Value)
		q.SetField(n.Field)
		return q, nil

	case *query.Range:
		return translateRange(n)

	default:
		return nil, fmt.Errorf("unsupported query expression %T", e)
	}
}

func translateBool(b *query.Bool) (blevequery.Query, error) {
	if b.IsEmpty() {
		return bleve.NewMatchAllQuery(), nil
	}

	bq := bleve.NewBooleanQuery()
	required := append(append([]query.Expr{}, b.Must...), b.Filter...)
	for _, e := range required {
		q, err := translate(e)
		if err != nil {
			return nil, err
		}
		bq.AddMust(q)
	}

	if len(b.Should) > 0 {
		for _, e := range b.Should {
			q, err := translate(e)
			if err != nil {
				return nil, err
			}
			bq.AddShould(q)
		}
		// Without required clauses at least one optional clause must match.
		minShould := b.MinimumShouldMatch
		if minShould == 0 && len(required) == 0 {
			minShould = 1
		}
		bq.SetMinShould(float64(minShould))
	}

	return bq, nil
}

func translateRange(r *query.Range) (blevequery.Query, error) {
	if isTime(r.GTE) || isTime(r.LTE) {
		var start, end time.Time
		if t, ok := r.GTE.(time.Time); ok {
			start = t
		}
		if t, ok := r.LTE.(time.Time); ok {
			end = t
		}
		inclusive := true
		q := bleve.NewDateRangeInclusiveQuery(start, end, &inclusive, &inclusive)
		q.SetField(r.Field)
		return q, nil
	}

	lo, err := toFloat(r.GTE)
	if err != nil {
		return nil, fmt.Errorf("range on %s: %w", r.Field, err)
	}
	hi, err := toFloat(r.LTE)
	if err != nil {
		return nil, fmt.Errorf("range on %s: %w", r.Field, err)
	}
	inclusive := true
	q := bleve.NewNumericRangeInclusiveQuery(lo, hi, &inclusive, &inclusive)
	q.SetField(r.Field)
	return q, nil
}

// fuzzyMatch matches any term of text against field. With AUTO fuzziness
// the allowed edit distance grows with the length of each term.
func fuzzyMatch(field, text string, fuzziness query.Fuzziness) *blevequery.DisjunctionQuery {
	terms := strings.Fields(strings.ToLower(text))
	perTerm := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		mq := bleve.NewMatchQuery(term)
		mq.SetField(field)
		if fuzziness == query.FuzzinessAuto {
			mq.SetFuzziness(autoFuzziness(term))
		}
		perTerm = append(perTerm, mq)
	}
	return bleve.NewDisjunctionQuery(perTerm...)
}

// phrasePrefix requires every term but the last to match and treats the
// last term as a prefix.
func phrasePrefix(field, text string) blevequery.Query {
	terms := strings.Fields(strings.ToLower(text))
	if len(terms) == 0 {
		return bleve.NewMatchNoneQuery()
	}

	prefix := bleve.NewPrefixQuery(terms[len(terms)-1])
	prefix.SetField(field)
	if len(terms) == 1 {
		return prefix
	}

	head := bleve.NewMatchPhraseQuery(strings.Join(terms[:len(terms)-1], " "))
	head.SetField(field)
	return bleve.NewConjunctionQuery(head, prefix)
}

// autoFuzziness mirrors the AUTO edit distance: exact for terms of up to two
// characters, one edit up to five, two beyond.
func autoFuzziness(term string) int {
	switch n := len([]rune(term)); {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}

func translateSort(sorts []query.Sort) search.SortOrder {
	order := make(search.SortOrder, 0, len(sorts)+1)
	for _, s := range sorts {
		typ, ok := sortTypes[s.Field]
		if !ok {
			typ = search.SortFieldAuto
		}
		order = append(order, &search.SortField{
			Field: s.Field,
			Type:  typ,
			Desc:  s.Order == query.Desc,
		})
	}
	// Stable order for ties.
	return append(order, &search.SortDocID{})
}

func isTime(v interface{}) bool {
	_, ok := v.(time.Time)
	return ok
}

func toFloat(v interface{}) (*float64, error) {
	var f float64
	switch n := v.(type) {
	case nil:
		return nil, nil
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case float64:
		f = n
	default:
		return nil, fmt.Errorf("unsupported bound type %T", v)
	}
	return &f, nil
}
