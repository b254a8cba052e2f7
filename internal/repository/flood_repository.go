// Package repository provides data access implementations
package repository

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/abelzeko/flood-bot/internal/entities"
	_ "github.com/mattn/go-sqlite3"
)

// FloodRepository defines the persistence operations of the station
type FloodRepository interface {
	SaveReading(rec entities.ReadingRecord) (int64, error)
	LatestReading() (*entities.ReadingRecord, error)
	RecentReadings(limit int) ([]entities.ReadingRecord, error)
	PruneReadings(before time.Time) (int64, error)
	RecordAlert(rec entities.AlertRecord) error
	LastAlertTime() (time.Time, error)
	AddSubscriber(sub entities.Subscriber) error
	RemoveSubscriber(chatID int64) (bool, error)
	Subscribers() ([]entities.Subscriber, error)
	Close() error
}

// SQLiteFloodRepository implements FloodRepository using SQLite
type SQLiteFloodRepository struct {
	db     *sql.DB
	DBPath string
}

// NewSQLiteFloodRepository creates and initializes a new SQLite repository
func NewSQLiteFloodRepository(dbPath string) (*SQLiteFloodRepository, error) {
	if dbPath == "" {
		dbPath = filepath.Join("data", "flood.db")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	log.Printf("Opening database at %s", dbPath)
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// The monitor writes from the reading loop and the scheduler.
	db.SetMaxOpenConns(1)

	// Times are stored as unix nanoseconds
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS readings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		distance REAL NOT NULL,
		flow_rate REAL NOT NULL,
		height REAL NOT NULL,
		status TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_readings_timestamp ON readings(timestamp);
	CREATE TABLE IF NOT EXISTS alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		status TEXT NOT NULL,
		message TEXT NOT NULL,
		delivered INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		sent_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS subscribers (
		chat_id INTEGER PRIMARY KEY,
		username TEXT,
		created_at INTEGER NOT NULL
	);`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &SQLiteFloodRepository{
		db:     db,
		DBPath: dbPath,
	}, nil
}

// Close closes the database connection
func (r *SQLiteFloodRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// SaveReading stores a reading and returns its id
func (r *SQLiteFloodRepository) SaveReading(rec entities.ReadingRecord) (int64, error) {
	res, err := r.db.Exec(`
		INSERT INTO readings(distance, flow_rate, height, status, timestamp)
		VALUES(?, ?, ?, ?, ?)`,
		rec.Reading.Distance,
		rec.Reading.FlowRate,
		rec.State.Height,
		rec.Status,
		rec.Timestamp.UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert reading: %w", err)
	}
	return res.LastInsertId()
}

const readingColumns = `id, distance, flow_rate, height, status, timestamp`

func scanReading(scan func(dest ...any) error) (entities.ReadingRecord, error) {
	var rec entities.ReadingRecord
	var ts int64
	if err := scan(
		&rec.ID,
		&rec.Reading.Distance,
		&rec.Reading.FlowRate,
		&rec.State.Height,
		&rec.Status,
		&ts,
	); err != nil {
		return rec, err
	}
	rec.State.FlowRate = rec.Reading.FlowRate
	rec.Timestamp = time.Unix(0, ts)
	return rec, nil
}

// LatestReading returns the most recent reading, or nil if none is stored
func (r *SQLiteFloodRepository) LatestReading() (*entities.ReadingRecord, error) {
	row := r.db.QueryRow(`SELECT ` + readingColumns + ` FROM readings ORDER BY timestamp DESC, id DESC LIMIT 1`)
	rec, err := scanReading(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest reading: %w", err)
	}
	return &rec, nil
}

// RecentReadings returns up to limit readings, newest first
func (r *SQLiteFloodRepository) RecentReadings(limit int) ([]entities.ReadingRecord, error) {
	rows, err := r.db.Query(`SELECT `+readingColumns+` FROM readings ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	defer rows.Close()

	var result []entities.ReadingRecord
	for rows.Next() {
		rec, err := scanReading(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}

// PruneReadings deletes readings older than before and returns how many were removed
func (r *SQLiteFloodRepository) PruneReadings(before time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM readings WHERE timestamp < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune readings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	log.Printf("Pruned %d readings older than %s", n, before.Format(time.RFC3339))
	return n, nil
}

// RecordAlert appends an entry to the alert log
func (r *SQLiteFloodRepository) RecordAlert(rec entities.AlertRecord) error {
	_, err := r.db.Exec(`
		INSERT INTO alerts(status, message, delivered, failed, sent_at)
		VALUES(?, ?, ?, ?, ?)`,
		rec.Status,
		rec.Message,
		rec.Delivered,
		rec.Failed,
		rec.SentAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record alert: %w", err)
	}
	return nil
}

// LastAlertTime returns when the last alert was sent, or zero time if never
func (r *SQLiteFloodRepository) LastAlertTime() (time.Time, error) {
	var ts sql.NullInt64
	if err := r.db.QueryRow(`SELECT MAX(sent_at) FROM alerts`).Scan(&ts); err != nil {
		return time.Time{}, fmt.Errorf("failed to get last alert time: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Unix(0, ts.Int64), nil
}

// AddSubscriber registers a chat for alerts. Subscribing twice keeps the
// original subscription date.
func (r *SQLiteFloodRepository) AddSubscriber(sub entities.Subscriber) error {
	_, err := r.db.Exec(`
		INSERT INTO subscribers(chat_id, username, created_at)
		VALUES(?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET username=excluded.username`,
		sub.ChatID,
		sub.Username,
		sub.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to add subscriber %d: %w", sub.ChatID, err)
	}
	return nil
}

// RemoveSubscriber deletes a chat and reports whether it was subscribed
func (r *SQLiteFloodRepository) RemoveSubscriber(chatID int64) (bool, error) {
	res, err := r.db.Exec(`DELETE FROM subscribers WHERE chat_id = ?`, chatID)
	if err != nil {
		return false, fmt.Errorf("failed to remove subscriber %d: %w", chatID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Subscribers lists all subscribed chats, oldest first
func (r *SQLiteFloodRepository) Subscribers() ([]entities.Subscriber, error) {
	rows, err := r.db.Query(`SELECT chat_id, username, created_at FROM subscribers ORDER BY created_at, chat_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	var result []entities.Subscriber
	for rows.Next() {
		var sub entities.Subscriber
		var username sql.NullString
		var ts int64
		if err := rows.Scan(&sub.ChatID, &username, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		sub.Username = username.String
		sub.CreatedAt = time.Unix(0, ts)
		result = append(result, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	return result, nil
}
