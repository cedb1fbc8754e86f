package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Search performs cosine-similarity search over the stored vectors. The
// candidate set is narrowed in SQL by the metadata filters; scoring and
// ranking happen in Go. Ranking is fully deterministic: score descending,
// then most recent last_indexed_at, then chunk_id ascending.
func (s *SQLiteStore) Search(ctx context.Context, vector []float32, topK int, filters *SearchFilters) ([]SearchHit, error) {
	if topK <= 0 {
		return []SearchHit{}, nil
	}

	query := `
		SELECT chunk_id, file_path, content, content_hash, chunk_type,
		       start_line, end_line, language, metadata, vector, last_indexed_at
		FROM chunks`
	var args []interface{}
	var where []string

	if filters != nil {
		if filters.Language != "" {
			where = append(where, "language = ?")
			args = append(args, filters.Language)
		}
		if filters.PathPrefix != "" {
			where = append(where, "file_path LIKE ? ESCAPE '\\'")
			args = append(args, escapeLike(filters.PathPrefix)+"%")
		}
	}
	for i, cond := range where {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []SearchHit
	for rows.Next() {
		sc, err := scanStoredChunk(rows)
		if err != nil {
			return nil, err
		}
		if len(sc.Vector) != len(vector) {
			// Should be unreachable given the upsert dimension guard.
			continue
		}
		hits = append(hits, SearchHit{
			Chunk:         sc.Chunk,
			Score:         cosineSimilarity(vector, sc.Vector),
			LastIndexedAt: sc.LastIndexedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if !hits[i].LastIndexedAt.Equal(hits[j].LastIndexedAt) {
			return hits[i].LastIndexedAt.After(hits[j].LastIndexedAt)
		}
		return hits[i].Chunk.ChunkID < hits[j].Chunk.ChunkID
	})

	if topK > len(hits) {
		topK = len(hits)
	}
	if hits == nil {
		return []SearchHit{}, nil
	}
	return hits[:topK], nil
}

// serializeVector converts a float32 slice to a little-endian byte blob.
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice.
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors of
// equal length.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// escapeLike escapes LIKE wildcards so a path prefix is matched literally.
func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
