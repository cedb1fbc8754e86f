package types

// DefaultTopK is the number of results returned when a query does not ask
// for a specific count.
const DefaultTopK = 10

// Query is an ephemeral similarity request. It is never persisted.
type Query struct {
	Text       string
	TopK       int
	Language   string // Equality filter; empty matches all
	PathPrefix string // Prefix filter on FilePath; empty matches all
}

// Normalize fills in defaults for unset fields.
func (q *Query) Normalize() {
	if q.TopK <= 0 {
		q.TopK = DefaultTopK
	}
}

// Validate checks that the query can be executed.
func (q *Query) Validate() error {
	if q.Text == "" {
		return ErrEmptyQuery
	}
	return nil
}

// ScoredChunk is one ranked retrieval result.
type ScoredChunk struct {
	Chunk Chunk
	Score float64 // Provider-native similarity; higher is better
	Rank  int     // 1-based position in the result set
}
