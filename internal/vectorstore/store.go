package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/void-indexd/internal/chunk"
)

var (
	// ErrOpen is returned when the store cannot be opened or its schema is
	// incompatible with the running binary.
	ErrOpen = errors.New("vectorstore: open failed")
	// ErrWrite is returned when a write transaction fails.
	ErrWrite = errors.New("vectorstore: write failed")
	// ErrRead is returned when a read query fails.
	ErrRead = errors.New("vectorstore: read failed")
	// ErrDimension is returned when a write's vector dimension does not
	// match the dimension the store was created or opened with.
	ErrDimension = errors.New("vectorstore: dimension mismatch")
)

// Store is the on-disk vector index for a single workspace. One Store owns
// exactly one SQLite file and one embedding dimension for its lifetime.
type Store struct {
	db        *sql.DB
	dimension int

	mu sync.RWMutex // guards dimension on first-write learn
}

// Open opens (creating if absent) the SQLite-backed vector store at dbPath.
// dimension is the expected embedding width; pass 0 to learn it from
// whatever is already on disk, or from the first UpsertFile call on a fresh
// store. It runs in WAL mode with a single pooled connection, since SQLite
// serializes writers regardless of Go-level pooling.
func Open(ctx context.Context, dbPath string, dimension int) (*Store, error) {
	db, err := sql.Open(driverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: enable WAL: %w", ErrOpen, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: enable foreign keys: %w", ErrOpen, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, dimension: dimension}
	if err := s.loadOrSeedDimension(ctx, dimension); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) loadOrSeedDimension(ctx context.Context, want int) error {
	row := s.db.QueryRowContext(ctx, `SELECT dimension FROM schema_meta WHERE id = 0`)
	var stored int
	switch err := row.Scan(&stored); err {
	case sql.ErrNoRows:
		if want <= 0 {
			return nil // unknown until first write; seeded there
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO schema_meta (id, version, dimension) VALUES (0, ?, ?)`,
			schemaVersion, want)
		if err != nil {
			return fmt.Errorf("%w: seed schema_meta: %w", ErrOpen, err)
		}
		s.dimension = want
		return nil
	case nil:
		if want > 0 && want != stored {
			return fmt.Errorf("%w: store dimension %d does not match requested %d", ErrOpen, stored, want)
		}
		s.dimension = stored
		return nil
	default:
		return fmt.Errorf("%w: read schema_meta: %w", ErrOpen, err)
	}
}

// Dimension returns the embedding width the store currently accepts, or 0
// if it has not been learned yet.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

func (s *Store) seedDimension(ctx context.Context, tx *sql.Tx, got int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension != 0 {
		if got != s.dimension {
			return fmt.Errorf("%w: chunk vector has dimension %d, store expects %d", ErrDimension, got, s.dimension)
		}
		return nil
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO schema_meta (id, version, dimension) VALUES (0, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET dimension = excluded.dimension`,
		schemaVersion, got)
	if err != nil {
		return fmt.Errorf("%w: seed dimension: %w", ErrOpen, err)
	}
	s.dimension = got
	return nil
}

// UpsertFile atomically replaces every chunk previously stored for path
// with the given embedded chunks: a delete of the old rows followed by an
// insert of the new ones, in a single transaction, so a search never sees
// a half-replaced file.
func (s *Store) UpsertFile(ctx context.Context, path string, chunks []chunk.Embedded) error {
	path = chunk.NormalizePath(path)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %w", ErrWrite, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE path = ?`, path); err != nil {
		return fmt.Errorf("%w: delete existing rows for %s: %w", ErrWrite, path, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, path, content, start_line, end_line, chunk_type, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %w", ErrWrite, err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrWrite, err)
		}
		if err := s.seedDimension(ctx, tx, len(c.Vector)); err != nil {
			return err
		}

		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		blob := serializeVector(c.Vector)
		if _, err := stmt.ExecContext(ctx, id, path, c.Content, c.StartLine, c.EndLine, string(c.ChunkType), blob); err != nil {
			return fmt.Errorf("%w: insert chunk %s: %w", ErrWrite, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrWrite, err)
	}
	return nil
}

// DeleteFile removes every chunk stored for path. Deleting a path with no
// stored chunks is not an error.
func (s *Store) DeleteFile(ctx context.Context, path string) error {
	path = chunk.NormalizePath(path)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE path = ?`, path); err != nil {
		return fmt.Errorf("%w: delete %s: %w", ErrWrite, path, err)
	}
	return nil
}

// Search returns the k chunks whose vectors are most similar to query,
// highest score first. Scores are in (0, 1]: cosine similarity over
// deserialized float32 vectors, converted to a 1/(1+d) similarity so that
// scores stay comparable regardless of which driver wrote the vectors.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]chunk.Result, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT path, content, start_line, end_line, chunk_type, vector FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("%w: query chunks: %w", ErrRead, err)
	}
	defer rows.Close()

	var candidates []chunk.Result
	for rows.Next() {
		var (
			path, content, chunkType string
			startLine, endLine       int
			blob                     []byte
		)
		if err := rows.Scan(&path, &content, &startLine, &endLine, &chunkType, &blob); err != nil {
			return nil, fmt.Errorf("%w: scan row: %w", ErrRead, err)
		}

		vec, err := deserializeVector(blob)
		if err != nil || len(vec) != len(query) {
			continue // dimension drift from a prior schema; skip rather than fail the whole search
		}

		score := similarityScore(query, vec)
		candidates = append(candidates, chunk.Result{
			Record: chunk.Record{
				Path:      path,
				Content:   content,
				StartLine: startLine,
				EndLine:   endLine,
				ChunkType: chunk.Type(chunkType),
			},
			Score: score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate rows: %w", ErrRead, err)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// Stats reports the store's row count, distinct path count, and learned
// dimension, surfaced by the bridge's supplemental status method.
func (s *Store) Stats(ctx context.Context) (rows int, paths int, dimension int, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT path) FROM chunks`)
	if scanErr := row.Scan(&rows, &paths); scanErr != nil {
		return 0, 0, 0, fmt.Errorf("%w: stats: %w", ErrRead, scanErr)
	}
	return rows, paths, s.Dimension(), nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func serializeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("vectorstore: vector blob length %d is not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		af, bf := float64(a[i]), float64(b[i])
		dot += af * bf
		normA += af * af
		normB += bf * bf
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// similarityScore maps cosine similarity to a distance-derived (0, 1]
// score, so a future native vector-index backend that only returns
// distances can be normalized onto the same scale.
func similarityScore(a, b []float32) float64 {
	distance := 1 - cosineSimilarity(a, b)
	if distance < 0 {
		distance = 0
	}
	return 1 / (1 + distance)
}
