package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/korjavin/newsdigestbot/models"
)

// DB handles all database operations
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes tables
func New(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err = createTables(db); err != nil {
		return nil, err
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// createTables creates the necessary tables if they don't exist
func createTables(db *sql.DB) error {
	// Quiz answers, one row per (user, quiz, question)
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS responses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			quiz_id TEXT NOT NULL,
			question_index INTEGER NOT NULL,
			question_text TEXT NOT NULL,
			answer_text TEXT NOT NULL,
			correct BOOLEAN NOT NULL,
			timestamp INTEGER NOT NULL,
			UNIQUE (user_id, quiz_id, question_index)
		)
	`)
	if err != nil {
		return err
	}

	// Voice practice attempts
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS pronunciation (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			original_text TEXT NOT NULL,
			transcribed_text TEXT NOT NULL,
			score INTEGER NOT NULL,
			feedback TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Published posts and the quiz questions they carry
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS posts (
			message_id TEXT PRIMARY KEY,
			channel_id TEXT NOT NULL,
			posted_at INTEGER NOT NULL,
			title TEXT NOT NULL,
			text TEXT NOT NULL,
			questions TEXT NOT NULL
		)
	`)
	return err
}

// Append records an answer. A second answer for the same triple yields ErrDuplicate.
func (db *DB) Append(ctx context.Context, rec models.ResponseRecord) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO responses (user_id, quiz_id, question_index, question_text, answer_text, correct, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)",
		rec.UserID, rec.QuizID, rec.QuestionIndex, rec.QuestionText, rec.AnswerText, rec.IsCorrect, rec.Timestamp.UnixNano(),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// All returns every stored answer in insertion order.
func (db *DB) All(ctx context.Context) ([]models.ResponseRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT user_id, quiz_id, question_index, question_text, answer_text, correct, timestamp
		FROM responses
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ResponseRecord
	for rows.Next() {
		var rec models.ResponseRecord
		var ts int64
		if err := rows.Scan(&rec.UserID, &rec.QuizID, &rec.QuestionIndex, &rec.QuestionText, &rec.AnswerText, &rec.IsCorrect, &ts); err != nil {
			return nil, err
		}
		rec.Timestamp = time.Unix(0, ts).UTC()
		result = append(result, rec)
	}
	return result, rows.Err()
}

// AppendPronunciation stores one voice-practice attempt.
func (db *DB) AppendPronunciation(ctx context.Context, rec models.PronunciationRecord) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO pronunciation (user_id, thread_id, original_text, transcribed_text, score, feedback, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)",
		rec.UserID, rec.ThreadID, rec.OriginalText, rec.TranscribedText, rec.Score, rec.Feedback, rec.Timestamp.UnixNano(),
	)
	return err
}

// AllPronunciation returns every attempt in insertion order.
func (db *DB) AllPronunciation(ctx context.Context) ([]models.PronunciationRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT user_id, thread_id, original_text, transcribed_text, score, feedback, timestamp
		FROM pronunciation
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.PronunciationRecord
	for rows.Next() {
		var rec models.PronunciationRecord
		var ts int64
		if err := rows.Scan(&rec.UserID, &rec.ThreadID, &rec.OriginalText, &rec.TranscribedText, &rec.Score, &rec.Feedback, &ts); err != nil {
			return nil, err
		}
		rec.Timestamp = time.Unix(0, ts).UTC()
		result = append(result, rec)
	}
	return result, rows.Err()
}

// SavePost stores or replaces the record for a published message.
func (db *DB) SavePost(ctx context.Context, post models.PostRecord) error {
	questions, err := json.Marshal(post.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	_, err = db.conn.ExecContext(ctx,
		"INSERT OR REPLACE INTO posts (message_id, channel_id, posted_at, title, text, questions) VALUES (?, ?, ?, ?, ?, ?)",
		post.MessageID, post.ChannelID, post.PostedAt.Unix(), post.Title, post.Text, string(questions),
	)
	return err
}

// GetPost retrieves a published message by id.
func (db *DB) GetPost(ctx context.Context, messageID string) (*models.PostRecord, error) {
	var post models.PostRecord
	var postedAt int64
	var questions string
	err := db.conn.QueryRowContext(ctx,
		"SELECT message_id, channel_id, posted_at, title, text, questions FROM posts WHERE message_id = ?",
		messageID,
	).Scan(&post.MessageID, &post.ChannelID, &postedAt, &post.Title, &post.Text, &questions)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	post.PostedAt = time.Unix(postedAt, 0).UTC()
	if err := json.Unmarshal([]byte(questions), &post.Questions); err != nil {
		return nil, fmt.Errorf("decode questions for %s: %w", messageID, err)
	}
	return &post, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
