package database

import "database/sql"

type DatabaseService interface {
	CreateDatabase() (*sql.DB, error)
	DoesDatabaseExist() bool
	Close() error

	// CreatePrediction stores p and returns its id. A zero CreatedAt is set to now.
	CreatePrediction(p *Prediction) (int64, error)
	// GetHistory returns at most limit predictions of a user, newest first.
	GetHistory(userID int, limit int) ([]*Prediction, error)
	// DeleteHistory removes all predictions of a user and reports how many were removed.
	DeleteHistory(userID int) (int64, error)
}
