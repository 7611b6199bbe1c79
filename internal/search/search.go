// Package search provides full-text search over buyers and projects,
// backed by Meilisearch with a PostgreSQL FTS fallback.
package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultBuyer   ResultType = "buyer"
	ResultProject ResultType = "project"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	BuyerID string     `json:"buyerId,omitempty"`
	Country string     `json:"country,omitempty"`
	Stage   string     `json:"stage,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text          string
	FilterType    ResultType // empty = all types
	FilterCountry string
	FilterStage   string
	Limit         int
	Offset        int
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

// Indexer can push entities into a search index.
type Indexer interface {
	IndexBuyer(b BuyerRecord) error
	IndexProject(p ProjectRecord) error
	DeleteBuyer(id string) error
	DeleteProject(id string) error
}

// BuyerRecord is the data we index for a buyer.
type BuyerRecord struct {
	ID          string `json:"id"`
	Company     string `json:"company"`
	Country     string `json:"country"`
	ContactName string `json:"contactName"`
	Channel     string `json:"channel"`
	Memo        string `json:"memo"`
}

// ProjectRecord is the data we index for a project.
type ProjectRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	BuyerID string `json:"buyerId"`
	Company string `json:"company"`
	Stage   string `json:"stage"`
}
