package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/coderag/pkg/types"
)

// Meta keys.
const (
	metaModel     = "embedding_model"
	metaDimension = "vector_dimension"
)

// SQLiteStore implements Store using one SQLite database per project
// collection.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the store at dbPath and applies migrations.
// ":memory:" is accepted for tests.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// WAL keeps readers unblocked during the write-heavy upsert phase.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: enable WAL: %v", ErrUnavailable, err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: enable foreign keys: %v", ErrUnavailable, err)
	}

	// SQLite benefits from a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrations: %v", ErrUnavailable, err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertChunks inserts or replaces chunks by chunk_id. Every vector is
// validated against the established dimension before anything is written,
// so a mismatch performs no partial write.
func (s *SQLiteStore) UpsertChunks(ctx context.Context, chunks []ChunkWithVector) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	dim, err := s.dimensionTx(ctx, tx)
	if err != nil {
		return err
	}
	for _, cv := range chunks {
		if len(cv.Vector) == 0 {
			return fmt.Errorf("%w: chunk %s has no vector", ErrDimensionMismatch, cv.Chunk.ChunkID)
		}
		if dim > 0 && len(cv.Vector) != dim {
			return fmt.Errorf("%w: index dimension %d, got %d for chunk %s",
				ErrDimensionMismatch, dim, len(cv.Vector), cv.Chunk.ChunkID)
		}
	}

	now := time.Now().UTC()
	for _, cv := range chunks {
		meta, err := json.Marshal(cv.Chunk.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk metadata: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chunks (chunk_id, file_path, content, content_hash, chunk_type,
			                    start_line, end_line, language, metadata, vector, last_indexed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(chunk_id) DO UPDATE SET
				file_path = excluded.file_path,
				content = excluded.content,
				content_hash = excluded.content_hash,
				chunk_type = excluded.chunk_type,
				start_line = excluded.start_line,
				end_line = excluded.end_line,
				language = excluded.language,
				metadata = excluded.metadata,
				vector = excluded.vector,
				last_indexed_at = excluded.last_indexed_at`,
			cv.Chunk.ChunkID, cv.Chunk.FilePath, cv.Chunk.Content, cv.Chunk.ContentHash[:],
			string(cv.Chunk.ChunkType), cv.Chunk.StartLine, cv.Chunk.EndLine,
			cv.Chunk.Language, string(meta), serializeVector(cv.Vector), now)
		if err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", cv.Chunk.ChunkID, err)
		}
	}

	return tx.Commit()
}

// DeleteChunks removes chunks by ID, returning how many existed.
func (s *SQLiteStore) DeleteChunks(ctx context.Context, chunkIDs []string) (int, error) {
	if len(chunkIDs) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(chunkIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(chunkIDs))
	for i, id := range chunkIDs {
		args[i] = id
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE chunk_id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeleteByFile removes all chunks owned by filePath.
func (s *SQLiteStore) DeleteByFile(ctx context.Context, filePath string) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE file_path = ?", filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks for %s: %w", filePath, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// GetByFile returns all stored chunks for filePath, ordered by start line.
func (s *SQLiteStore) GetByFile(ctx context.Context, filePath string) ([]StoredChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, file_path, content, content_hash, chunk_type,
		       start_line, end_line, language, metadata, vector, last_indexed_at
		FROM chunks
		WHERE file_path = ?
		ORDER BY start_line, chunk_id`, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks for %s: %w", filePath, err)
	}
	defer func() { _ = rows.Close() }()

	var out []StoredChunk
	for rows.Next() {
		sc, err := scanStoredChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

// GetFileRecord returns the record for filePath, or ErrNotFound.
func (s *SQLiteStore) GetFileRecord(ctx context.Context, filePath string) (*FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT file_path, content_hash, chunk_ids, last_indexed_at
		FROM files WHERE file_path = ?`, filePath)
	return scanFileRecord(row)
}

// UpsertFileRecord inserts or replaces the record for rec.FilePath.
func (s *SQLiteStore) UpsertFileRecord(ctx context.Context, rec *FileRecord) error {
	ids, err := json.Marshal(rec.ChunkIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal chunk ids: %w", err)
	}
	if rec.LastIndexedAt.IsZero() {
		rec.LastIndexedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO files (file_path, content_hash, chunk_ids, last_indexed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			chunk_ids = excluded.chunk_ids,
			last_indexed_at = excluded.last_indexed_at`,
		rec.FilePath, rec.LastContentHash[:], string(ids), rec.LastIndexedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert file record %s: %w", rec.FilePath, err)
	}
	return nil
}

// DeleteFileRecord removes the record for filePath.
func (s *SQLiteStore) DeleteFileRecord(ctx context.Context, filePath string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM files WHERE file_path = ?", filePath)
	if err != nil {
		return fmt.Errorf("failed to delete file record %s: %w", filePath, err)
	}
	return nil
}

// ListFileRecords returns every tracked file record.
func (s *SQLiteStore) ListFileRecords(ctx context.Context) ([]*FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_path, content_hash, chunk_ids, last_indexed_at
		FROM files ORDER BY file_path`)
	if err != nil {
		return nil, fmt.Errorf("failed to list file records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*FileRecord
	for rows.Next() {
		rec, err := scanFileRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ModelInfo returns the embedding identity of the index, or ErrNotFound
// before the first SetModelInfo.
func (s *SQLiteStore) ModelInfo(ctx context.Context) (*ModelInfo, error) {
	var model, dimRaw string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM meta WHERE key = ?", metaModel).Scan(&model)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT value FROM meta WHERE key = ?", metaDimension).Scan(&dimRaw); err != nil {
		return nil, err
	}
	dim, err := strconv.Atoi(dimRaw)
	if err != nil {
		return nil, fmt.Errorf("corrupt dimension metadata %q: %w", dimRaw, err)
	}
	return &ModelInfo{Model: model, Dimension: dim}, nil
}

// SetModelInfo records the embedding identity for the index.
func (s *SQLiteStore) SetModelInfo(ctx context.Context, info ModelInfo) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	for key, value := range map[string]string{
		metaModel:     info.Model,
		metaDimension: strconv.Itoa(info.Dimension),
	} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO meta (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// Stats reports chunk and file counts plus a per-language breakdown.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{PerLanguage: make(map[string]int)}

	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks").Scan(&stats.TotalChunks); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT file_path) FROM chunks").Scan(&stats.TotalFiles); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT language, COUNT(*) FROM chunks GROUP BY language")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var lang string
		var n int
		if err := rows.Scan(&lang, &n); err != nil {
			return nil, err
		}
		stats.PerLanguage[lang] = n
	}
	return stats, rows.Err()
}

// Clear irreversibly wipes chunks, file records, and model identity.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		"DELETE FROM chunks",
		"DELETE FROM files",
		"DELETE FROM meta",
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear store: %w", err)
		}
	}
	return tx.Commit()
}

// dimensionTx reads the established vector dimension inside a
// transaction; zero means not yet established.
func (s *SQLiteStore) dimensionTx(ctx context.Context, tx *sql.Tx) (int, error) {
	var raw string
	err := tx.QueryRowContext(ctx,
		"SELECT value FROM meta WHERE key = ?", metaDimension).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	dim, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("corrupt dimension metadata %q: %w", raw, err)
	}
	return dim, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStoredChunk(r rowScanner) (*StoredChunk, error) {
	var sc StoredChunk
	var hash, vector []byte
	var metaRaw sql.NullString
	var chunkType string

	err := r.Scan(&sc.Chunk.ChunkID, &sc.Chunk.FilePath, &sc.Chunk.Content, &hash,
		&chunkType, &sc.Chunk.StartLine, &sc.Chunk.EndLine, &sc.Chunk.Language,
		&metaRaw, &vector, &sc.LastIndexedAt)
	if err != nil {
		return nil, err
	}

	copy(sc.Chunk.ContentHash[:], hash)
	sc.Chunk.ChunkType = types.ChunkType(chunkType)
	sc.Vector = deserializeVector(vector)
	if metaRaw.Valid && metaRaw.String != "" && metaRaw.String != "null" {
		if err := json.Unmarshal([]byte(metaRaw.String), &sc.Chunk.Metadata); err != nil {
			return nil, fmt.Errorf("corrupt chunk metadata for %s: %w", sc.Chunk.ChunkID, err)
		}
	}
	return &sc, nil
}

func scanFileRecord(r rowScanner) (*FileRecord, error) {
	var rec FileRecord
	var hash []byte
	var idsRaw string

	err := r.Scan(&rec.FilePath, &hash, &idsRaw, &rec.LastIndexedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	copy(rec.LastContentHash[:], hash)
	if err := json.Unmarshal([]byte(idsRaw), &rec.ChunkIDs); err != nil {
		return nil, fmt.Errorf("corrupt chunk id list for %s: %w", rec.FilePath, err)
	}
	return &rec, nil
}
