// Package archive mirrors conversation messages into a SQLite database so
// message content can be searched across all conversations. The archive is
// advisory: the per-conversation JSON records remain the source of truth, and
// callers are expected to log and continue on archive errors.
package archive

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// Match is one search hit.
type Match struct {
	ConversationID string
	Role           string
	Content        string
	CreatedAt      time.Time
}

// Archive is a SQLite-backed message index.
type Archive struct {
	db *sql.DB
}

// Open opens (or creates) the archive database at path.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_busy_timeout=10000")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create messages table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_conversation
		ON messages (conversation_id);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create conversation index: %w", err)
	}
	return &Archive{db: db}, nil
}

// Record stores one message row.
func (a *Archive) Record(conversationID, role, content string, at time.Time) error {
	_, err := a.db.Exec(
		`INSERT INTO messages (conversation_id, role, content, created_at) VALUES (?,?,?,?);`,
		conversationID, role, content, at,
	)
	return err
}

// Search returns messages whose content contains query, case-insensitively,
// newest first.
func (a *Archive) Search(query string) ([]Match, error) {
	rows, err := a.db.Query(
		`SELECT conversation_id, role, content, created_at FROM messages
		 WHERE content LIKE '%' || ? || '%' COLLATE NOCASE
		 ORDER BY created_at DESC;`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PurgeConversation removes every archived row for one conversation.
func (a *Archive) PurgeConversation(conversationID string) error {
	_, err := a.db.Exec(`DELETE FROM messages WHERE conversation_id = ?;`, conversationID)
	return err
}

// PurgeAll empties the archive.
func (a *Archive) PurgeAll() error {
	_, err := a.db.Exec(`DELETE FROM messages;`)
	return err
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}
