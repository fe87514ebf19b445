package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const timestampLayout = "2006-01-02 15:04:05"

type SQLiteDatabase struct {
	db               *sql.DB
	connectionString string
	now              func() time.Time
}

func NewSQLiteDatabase(connectionString string) (*SQLiteDatabase, error) {
	db, err := sql.Open("sqlite", connectionString)
	if err != nil {
		return nil, err
	}
	// every connection to ":memory:" opens its own database
	db.SetMaxOpenConns(1)

	return &SQLiteDatabase{
		db:               db,
		connectionString: connectionString,
		now:              time.Now,
	}, nil
}

func (s *SQLiteDatabase) CreateDatabase() (*sql.DB, error) {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS predictions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		image_path TEXT,
		predicted_disease TEXT NOT NULL,
		confidence REAL NOT NULL,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return nil, err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_predictions_user ON predictions (user_id, created_at)`)
	if err != nil {
		return nil, err
	}

	return s.db, nil
}

func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteDatabase) DoesDatabaseExist() bool {
	// the file is created on connect, so a successful ping is enough
	err := s.db.Ping()
	return err == nil
}

func (s *SQLiteDatabase) CreatePrediction(p *Prediction) (int64, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	result, err := s.db.Exec(
		"INSERT INTO predictions (user_id, image_path, predicted_disease, confidence, created_at) VALUES (?, ?, ?, ?, ?)",
		p.UserID, p.ImagePath, p.PredictedDisease, p.Confidence, p.CreatedAt.UTC().Format(timestampLayout))
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	p.ID = id
	return id, nil
}

func (s *SQLiteDatabase) GetHistory(userID int, limit int) ([]*Prediction, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, image_path, predicted_disease, confidence, created_at
		FROM predictions WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close() // Explicitly ignore error as we're already returning an error from the function
	}()

	predictions := make([]*Prediction, 0, limit)
	for rows.Next() {
		var p Prediction
		var imagePath sql.NullString
		var createdAt string
		if err := rows.Scan(&p.ID, &p.UserID, &imagePath, &p.PredictedDisease, &p.Confidence, &createdAt); err != nil {
			return nil, err
		}
		p.ImagePath = imagePath.String
		p.CreatedAt, err = time.ParseInLocation(timestampLayout, createdAt, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("prediction %d has invalid created_at %q: %w", p.ID, createdAt, err)
		}
		predictions = append(predictions, &p)
	}
	return predictions, rows.Err()
}

func (s *SQLiteDatabase) DeleteHistory(userID int) (int64, error) {
	result, err := s.db.Exec("DELETE FROM predictions WHERE user_id = ?", userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
