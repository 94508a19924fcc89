package dto

// Search depths.
const (
	SearchDepthBasic    = "basic"
	SearchDepthAdvanced = "advanced"
)

// SearchQuery is a request to the web-search provider.
type SearchQuery struct {
	Query          string   `json:"query"`
	Depth          string   `json:"search_depth"`
	MaxResults     int      `json:"max_results"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	ExcludeDomains []string `json:"exclude_domains,omitempty"`
}

// SearchItem is one result returned by the search provider.
type SearchItem struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// SearchResult is the provider's response.
type SearchResult struct {
	Answer  string       `json:"answer,omitempty"`
	Results []SearchItem `json:"results"`
}
