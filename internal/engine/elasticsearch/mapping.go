package elasticsearch

// DefaultIndexName is the default Elasticsearch index used for course documents.
const DefaultIndexName = "courses"

// buildIndexMapping returns the JSON settings and mapping for the course index.
// Category and type keep a keyword sub-field for exact filtering, and
// titleSuggest is indexed as search-as-you-type for autocomplete.
func buildIndexMapping() string {
	return `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "properties": {
      "id":              { "type": "keyword" },
      "title":           { "type": "text" },
      "description":     { "type": "text" },
      "category":        { "type": "text", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 } } },
      "type":            { "type": "text", "fields": { "keyword": { "type": "keyword", "ignore_above": 256 } } },
      "minAge":          { "type": "integer" },
      "maxAge":          { "type": "integer" },
      "price":           { "type": "scaled_float", "scaling_factor": 100 },
      "nextSessionDate": { "type": "date" },
      "titleSuggest":    { "type": "search_as_you_type" }
    }
  }
}`
}
