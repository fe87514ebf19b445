package database

import "time"

// Prediction is one stored classification result.
type Prediction struct {
	ID               int64     `db:"id"`
	UserID           int       `db:"user_id"`
	ImagePath        string    `db:"image_path"` // data URI of the first submitted image
	PredictedDisease string    `db:"predicted_disease"`
	Confidence       float64   `db:"confidence"`
	CreatedAt        time.Time `db:"created_at"`
}
