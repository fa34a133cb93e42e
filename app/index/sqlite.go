package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the corpus in a single sqlite file so it survives
// process restarts, with an in-memory snapshot for brute-force cosine
// search. Replace writes the new corpus in one transaction and swaps
// the snapshot only after the commit succeeds.
type SQLiteStore struct {
	db *sql.DB

	mu   sync.RWMutex
	docs []Doc
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = filepath.Join("data", "index.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open index db at %s: %w", path, err)
	}

	if _, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS corpus (
            id TEXT PRIMARY KEY,
            seq INTEGER NOT NULL,
            source TEXT NOT NULL,
            content TEXT NOT NULL,
            embedding BLOB NOT NULL
        );
    `); err != nil {
		db.Close()
		return nil, fmt.Errorf("create corpus table: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err = s.reload(); err != nil {
		db.Close()
		return nil, err
	}
	if len(s.docs) > 0 {
		log.Printf("📂 Loaded %d indexed chunks from %s", len(s.docs), path)
	}
	return s, nil
}

// reload restores the snapshot from disk, keyed by the single corpus slot.
func (s *SQLiteStore) reload() error {
	rows, err := s.db.Query(`SELECT id, seq, source, content, embedding FROM corpus ORDER BY seq ASC`)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	defer rows.Close()

	var docs []Doc
	for rows.Next() {
		var d Doc
		var blob []byte
		if err = rows.Scan(&d.ID, &d.Seq, &d.Source, &d.Text, &blob); err != nil {
			return fmt.Errorf("scan corpus row: %w", err)
		}
		d.Vector = decodeVector(blob)
		docs = append(docs, d)
	}
	if err = rows.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.docs = docs
	s.mu.Unlock()
	return nil
}

func (s *SQLiteStore) Replace(ctx context.Context, docs []Doc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild tx: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM corpus`); err != nil {
		tx.Rollback()
		return fmt.Errorf("drop corpus: %w", err)
	}
	for _, d := range docs {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO corpus (id, seq, source, content, embedding) VALUES (?, ?, ?, ?, ?)`,
			d.ID, d.Seq, d.Source, d.Text, encodeVector(d.Vector),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert chunk %d: %w", d.Seq, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit rebuild: %w", err)
	}

	snapshot := make([]Doc, len(docs))
	copy(snapshot, docs)
	s.mu.Lock()
	s.docs = snapshot
	s.mu.Unlock()
	return nil
}

func (s *SQLiteStore) Search(ctx context.Context, vector []float32, k int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]Result, 0, len(s.docs))
	for _, d := range s.docs {
		score := NormalizeScore(CosineSimilarity(vector, d.Vector))
		results = append(results, Result{Doc: d, Score: score})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
