// Package search provides full-text search over cards and agreements,
// backed by Meilisearch with a PostgreSQL fallback.
package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultCard      ResultType = "card"
	ResultAgreement ResultType = "agreement"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type       ResultType `json:"type"`
	ID         string     `json:"id"`
	Snippet    string     `json:"snippet"`
	BoardID    string     `json:"board_id"`
	BoardName  string     `json:"board_name"`
	SeriesID   string     `json:"series_id"`
	AuthorName string     `json:"author_name"`
}

// Query describes a search request. SeriesID is mandatory: results
// never cross series boundaries.
type Query struct {
	Text       string
	SeriesID   string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// CardRecord is the data we index for a card.
type CardRecord struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	BoardID    string `json:"board_id"`
	BoardName  string `json:"board_name"`
	SeriesID   string `json:"series_id"`
	AuthorName string `json:"author_name"`
}

// AgreementRecord is the data we index for an agreement.
type AgreementRecord struct {
	ID         string `json:"id"`
	Content    string `json:"content"`
	BoardID    string `json:"board_id"`
	BoardName  string `json:"board_name"`
	SeriesID   string `json:"series_id"`
	AuthorName string `json:"author_name"`
}
