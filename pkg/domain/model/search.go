package model

// SearchResult is a stored document ranked by similarity to a query
type SearchResult struct {
	Document *Document
	// Score is cosine similarity, 1 - cosine distance
	Score float64
}
