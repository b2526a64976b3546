package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MemoryType classifies how a memory decays.
type MemoryType string

const (
	TypeEpisodic   MemoryType = "episodic"   // conversation events; decays fastest
	TypeSemantic   MemoryType = "semantic"   // facts and preferences
	TypeProcedural MemoryType = "procedural" // how-to knowledge; decays slowest
)

// ValidMemoryType reports whether t is one of the known memory types.
func ValidMemoryType(t MemoryType) bool {
	switch t {
	case TypeEpisodic, TypeSemantic, TypeProcedural:
		return true
	}
	return false
}

// MemoryRecord is a stored conversational memory.
type MemoryRecord struct {
	ID             string
	Content        string
	MemoryType     MemoryType
	RetentionScore float64
	IsPinned       bool
	AccessCount    int
	LastAccessedAt *int64
	CreatedAt      int64
	UpdatedAt      int64
}

// CreateMemory inserts a new memory. Assigns a UUID if the ID is empty and
// defaults the type to episodic.
func (db *DB) CreateMemory(m *MemoryRecord) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.MemoryType == "" {
		m.MemoryType = TypeEpisodic
	}
	if !ValidMemoryType(m.MemoryType) {
		return fmt.Errorf("create memory: invalid memory type %q", m.MemoryType)
	}

	now := time.Now().UnixMilli()
	if m.CreatedAt == 0 {
		m.CreatedAt = now
	}
	_, err := db.Exec(`
		INSERT INTO memories (id, content, memory_type, retention_score, is_pinned, access_count, last_accessed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Content, string(m.MemoryType), 1.0, boolToInt(m.IsPinned), 0, nil, m.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("create memory: %w", err)
	}

	m.RetentionScore = 1.0
	m.AccessCount = 0
	m.UpdatedAt = now
	return nil
}

// GetMemory returns a memory by ID, or nil if not found.
func (db *DB) GetMemory(id string) (*MemoryRecord, error) {
	var m MemoryRecord
	var pinned int
	var memType string
	var lastAccessed sql.NullInt64
	err := db.QueryRow(`
		SELECT id, content, memory_type, retention_score, is_pinned, access_count, last_accessed_at, created_at, updated_at
		FROM memories WHERE id = ?
	`, id).Scan(&m.ID, &m.Content, &memType, &m.RetentionScore, &pinned,
		&m.AccessCount, &lastAccessed, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	m.MemoryType = MemoryType(memType)
	m.IsPinned = pinned != 0
	if lastAccessed.Valid {
		m.LastAccessedAt = &lastAccessed.Int64
	}
	return &m, nil
}

// ListMemories returns all memories ordered by retention score descending.
func (db *DB) ListMemories() ([]MemoryRecord, error) {
	rows, err := db.Query(`
		SELECT id, content, memory_type, retention_score, is_pinned, access_count, last_accessed_at, created_at, updated_at
		FROM memories ORDER BY retention_score DESC, created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// ListUnpinned returns all memories not excluded from decay.
func (db *DB) ListUnpinned() ([]MemoryRecord, error) {
	rows, err := db.Query(`
		SELECT id, content, memory_type, retention_score, is_pinned, access_count, last_accessed_at, created_at, updated_at
		FROM memories WHERE is_pinned = 0 ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list unpinned: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// GetMemoriesByIDs returns memories for the given list of IDs.
func (db *DB) GetMemoriesByIDs(ids []string) ([]MemoryRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, content, memory_type, retention_score, is_pinned, access_count, last_accessed_at, created_at, updated_at
		FROM memories WHERE id IN (%s)
	`, strings.Join(placeholders, ","))

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("get memories by ids: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// TouchMemory records an access: bumps access_count, stamps last_accessed_at,
// and resets retention to 1.0 (retrieval boost).
func (db *DB) TouchMemory(id string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		UPDATE memories SET last_accessed_at = ?, access_count = access_count + 1, retention_score = 1.0, updated_at = ?
		WHERE id = ?
	`, now, now, id)
	if err != nil {
		return fmt.Errorf("touch memory: %w", err)
	}
	return nil
}

// SetPinned toggles the pin flag. Idempotent. Pinning also restores the
// retention score to 1.0 since pinned memories always report full retention.
func (db *DB) SetPinned(id string, pinned bool) error {
	now := time.Now().UnixMilli()
	var err error
	if pinned {
		_, err = db.Exec(`UPDATE memories SET is_pinned = 1, retention_score = 1.0, updated_at = ? WHERE id = ?`, now, id)
	} else {
		_, err = db.Exec(`UPDATE memories SET is_pinned = 0, updated_at = ? WHERE id = ?`, now, id)
	}
	if err != nil {
		return fmt.Errorf("set pinned: %w", err)
	}
	return nil
}

// SetMemoryType reassigns the memory's type.
func (db *DB) SetMemoryType(id string, t MemoryType) error {
	if !ValidMemoryType(t) {
		return fmt.Errorf("set memory type: invalid memory type %q", t)
	}
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE memories SET memory_type = ?, updated_at = ? WHERE id = ?`, string(t), now, id)
	if err != nil {
		return fmt.Errorf("set memory type: %w", err)
	}
	return nil
}

// UpdateRetention persists a recomputed retention score.
func (db *DB) UpdateRetention(id string, score float64) error {
	_, err := db.Exec(`UPDATE memories SET retention_score = ? WHERE id = ?`, score, id)
	if err != nil {
		return fmt.Errorf("update retention: %w", err)
	}
	return nil
}

// DeleteMemories removes the given memories and their vectors.
// Returns the number of rows deleted.
func (db *DB) DeleteMemories(ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	ph := strings.Join(placeholders, ",")

	// Vectors lack ON DELETE CASCADE enforcement when foreign_keys is off in
	// older databases; delete explicitly.
	if _, err := db.Exec(fmt.Sprintf("DELETE FROM memory_vectors WHERE memory_id IN (%s)", ph), args...); err != nil {
		return 0, fmt.Errorf("delete vectors: %w", err)
	}

	result, err := db.Exec(fmt.Sprintf("DELETE FROM memories WHERE id IN (%s)", ph), args...)
	if err != nil {
		return 0, fmt.Errorf("delete memories: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// CountMemories returns the total number of stored memories.
func (db *DB) CountMemories() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM memories").Scan(&count)
	return count, err
}

func scanMemories(rows *sql.Rows) ([]MemoryRecord, error) {
	var memories []MemoryRecord
	for rows.Next() {
		var m MemoryRecord
		var pinned int
		var memType string
		var lastAccessed sql.NullInt64
		if err := rows.Scan(&m.ID, &m.Content, &memType, &m.RetentionScore, &pinned,
			&m.AccessCount, &lastAccessed, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		m.MemoryType = MemoryType(memType)
		m.IsPinned = pinned != 0
		if lastAccessed.Valid {
			m.LastAccessedAt = &lastAccessed.Int64
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
