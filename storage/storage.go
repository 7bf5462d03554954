// Package storage persists documents and chat transcripts in SQLite.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
	"github.com/tliron/commonlog"

	"github.com/odvcencio/scribe/chat"
)

// ErrDocumentNotFound is returned when a document id has no row.
var ErrDocumentNotFound = fmt.Errorf("document does not exist in db")

// MaxStoredMessages bounds the persisted transcript per document, matching
// the in-memory pruning.
const MaxStoredMessages = chat.MaxMessages

// DocumentRecord is a persisted document snapshot. Content holds the
// serialized block tree.
type DocumentRecord struct {
	ID         string
	Title      string
	Content    string
	Font       string
	CreatedAt  time.Time
	ModifiedAt time.Time
	Version    int
}

// Store wraps the SQLite connection.
type Store struct {
	conn *sql.DB
	log  commonlog.Logger
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	s := &Store{conn: conn, log: commonlog.GetLogger("scribe.storage")}
	if err := s.setup(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set up database: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) setup() error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL DEFAULT '[]',
			font TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			modified_at TIMESTAMP NOT NULL,
			version INTEGER NOT NULL DEFAULT 1
		);
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			doc_id TEXT NOT NULL REFERENCES documents(id),
			sender TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_doc ON messages(doc_id, created_at);
	`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// NewID returns a fresh sortable document id.
func NewID() string {
	return ulid.Make().String()
}

// SaveDocument inserts the record or, when the id exists, updates it and
// bumps the stored version.
func (s *Store) SaveDocument(rec DocumentRecord) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE documents
		SET title = ?, content = ?, font = ?, modified_at = ?, version = version + 1
		WHERE id = ?;
	`, rec.Title, rec.Content, rec.Font, rec.ModifiedAt, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		_, err = tx.Exec(`
			INSERT INTO documents (id, title, content, font, created_at, modified_at, version)
			VALUES (?, ?, ?, ?, ?, ?, 1);
		`, rec.ID, rec.Title, rec.Content, rec.Font, rec.CreatedAt, rec.ModifiedAt)
		if err != nil {
			return fmt.Errorf("failed to insert document: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadDocument retrieves a document by id.
func (s *Store) LoadDocument(id string) (DocumentRecord, error) {
	var rec DocumentRecord
	err := s.conn.QueryRow(`
		SELECT id, title, content, font, created_at, modified_at, version
		FROM documents WHERE id = ?;
	`, id).Scan(&rec.ID, &rec.Title, &rec.Content, &rec.Font,
		&rec.CreatedAt, &rec.ModifiedAt, &rec.Version)
	if err == sql.ErrNoRows {
		return rec, ErrDocumentNotFound
	} else if err != nil {
		return rec, fmt.Errorf("failed to retrieve document: %w", err)
	}
	return rec, nil
}

// LatestDocument returns the most recently modified document, or
// ErrDocumentNotFound when the table is empty.
func (s *Store) LatestDocument() (DocumentRecord, error) {
	var rec DocumentRecord
	err := s.conn.QueryRow(`
		SELECT id, title, content, font, created_at, modified_at, version
		FROM documents ORDER BY modified_at DESC LIMIT 1;
	`).Scan(&rec.ID, &rec.Title, &rec.Content, &rec.Font,
		&rec.CreatedAt, &rec.ModifiedAt, &rec.Version)
	if err == sql.ErrNoRows {
		return rec, ErrDocumentNotFound
	} else if err != nil {
		return rec, fmt.Errorf("failed to retrieve document: %w", err)
	}
	return rec, nil
}

// SaveMessages replaces the stored transcript for a document with the given
// messages, keeping only the newest MaxStoredMessages.
func (s *Store) SaveMessages(docID string, msgs []chat.Message) error {
	if len(msgs) > MaxStoredMessages {
		msgs = msgs[len(msgs)-MaxStoredMessages:]
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE doc_id = ?;`, docID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	for _, msg := range msgs {
		_, err := tx.Exec(`
			INSERT INTO messages (id, doc_id, sender, text, created_at)
			VALUES (?, ?, ?, ?, ?);
		`, msg.ID, docID, string(msg.Sender), msg.Text, msg.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadMessages retrieves a document's transcript in chronological order.
func (s *Store) LoadMessages(docID string) ([]chat.Message, error) {
	rows, err := s.conn.Query(`
		SELECT id, sender, text, created_at
		FROM messages WHERE doc_id = ? ORDER BY created_at, id;
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve messages: %w", err)
	}
	defer rows.Close()

	var msgs []chat.Message
	for rows.Next() {
		var msg chat.Message
		var sender string
		if err := rows.Scan(&msg.ID, &sender, &msg.Text, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Sender = chat.Sender(sender)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return msgs, nil
}
