package elasticsearch

import (
	"fmt"
	"time"

	"github.com/utafrali/coursesearch/internal/domain"
	"github.com/utafrali/coursesearch/internal/query"
)

// keywordFields maps exact-match fields to their unanalyzed sub-field.
var keywordFields = map[string]string{
	domain.FieldCategory: domain.FieldCategory + ".keyword",
	domain.FieldType:     domain.FieldType + ".keyword",
}

// buildRequestBody renders an engine request as the Elasticsearch search DSL.
func buildRequestBody(req *query.Request) (map[string]interface{}, error) {
	var q interface{} = map[string]interface{}{"match_all": map[string]interface{}{}}
	if req.Query != nil {
		var err error
		q, err = buildExpr(req.Query)
		if err != nil {
			return nil, err
		}
	}

	body := map[string]interface{}{
		"query": q,
		"from":  req.From,
		"size":  req.Size,
	}
	if req.TrackTotalHits {
		body["track_total_hits"] = true
	}
	if len(req.Sort) > 0 {
		body["sort"] = buildSort(req.Sort)
	}
	if req.Source != nil {
		body["_source"] = req.Source
	}
	return body, nil
}

// buildExpr renders one node of the query tree.
func buildExpr(e query.Expr) (map[string]interface{}, error) {
	switch n := e.(type) {
	case query.MatchAll, *query.MatchAll:
		return map[string]interface{}{"match_all": map[string]interface{}{}}, nil

	case *query.Bool:
		return buildBool(n)

	case *query.MultiMatch:
		fields := make([]string, 0, len(n.Fields))
		for _, f := range n.Fields {
			fields = append(fields, f.String())
		}
		mm := map[string]interface{}{
			"query":  n.Query,
			"fields": fields,
		}
		if n.Fuzziness != "" {
			mm["fuzziness"] = string(n.Fuzziness)
		}
		return map[string]interface{}{"multi_match": mm}, nil

	case *query.Match:
		m := map[string]interface{}{"query": n.Query}
		if n.Fuzziness != "" {
			m["fuzziness"] = string(n.Fuzziness)
		}
		return map[string]interface{}{
			"match": map[string]interface{}{n.Field: m},
		}, nil

	case *query.MatchPhrasePrefix:
		return map[string]interface{}{
			"match_phrase_prefix": map[string]interface{}{
				n.Field: map[string]interface{}{"query": n.Query},
			},
		}, nil

	case *query.Term:
		return map[string]interface{}{
			"term": map[string]interface{}{exactField(n.Field): n.Value},
		}, nil

	case *query.Range:
		bounds := map[string]interface{}{}
		if n.GTE != nil {
			bounds["gte"] = rangeValue(n.GTE)
		}
		if n.LTE != nil {
			bounds["lte"] = rangeValue(n.LTE)
		}
		return map[string]interface{}{
			"range": map[string]interface{}{n.Field: bounds},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported query expression %T", e)
	}
}

func buildBool(b *query.Bool) (map[string]interface{}, error) {
	clause := map[string]interface{}{}

	for key, exprs := range map[string][]query.Expr{
		"must":   b.Must,
		"filter": b.Filter,
		"should": b.Should,
	} {
		if len(exprs) == 0 {
			continue
		}
		rendered := make([]interface{}, 0, len(exprs))
		for _, e := range exprs {
			r, err := buildExpr(e)
			if err != nil {
				return nil, err
			}
			rendered = append(rendered, r)
		}
		clause[key] = rendered
	}

	if b.MinimumShouldMatch > 0 {
		clause["minimum_should_match"] = b.MinimumShouldMatch
	}

	return map[string]interface{}{"bool": clause}, nil
}

func buildSort(sorts []query.Sort) []interface{} {
	out := make([]interface{}, 0, len(sorts))
	for _, s := range sorts {
		out = append(out, map[string]interface{}{
			s.Field: map[string]interface{}{"order": string(s.Order)},
		})
	}
	return out
}

func exactField(field string) string {
	if kw, ok := keywordFields[field]; ok {
		return kw
	}
	return field
}

func rangeValue(v interface{}) interface{} {
	if t, ok := v.(time.Time); ok {
		return query.FormatTime(t)
	}
	return v
}
